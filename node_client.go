package main

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// UTXO is the tuple described in §3: an unspent output owned by the
// wallet adapter.
type UTXO struct {
	Txid          chainhash.Hash
	Vout          uint32
	ValueSat      int64
	ScriptPubKey  []byte
	Address       string // optional, empty if unknown
	Confirmations int64  // -1 if unknown
}

// BlockInfo is the subset of getblock(verbosity=2) this core consumes.
type BlockInfo struct {
	Hash         chainhash.Hash
	Height       uint64
	Transactions []RawTx
}

// RawTx is the subset of a decoded transaction this core consumes when
// scanning blocks for glyphstones (C8 <-> C3 boundary).
type RawTx struct {
	Txid    chainhash.Hash
	Outputs []RawTxOut
}

type RawTxOut struct {
	ValueSat int64
	PkScript []byte
}

// AddressInfo is the subset of getaddressinfo this core consumes (public
// key lookup for the Taproot address binder and HTLC counterparty keys).
type AddressInfo struct {
	Address   string
	PubKeyHex string
}

// TxOutInfo mirrors gettxout: nil means spent (or never existed).
type TxOutInfo struct {
	ValueSat      int64
	ScriptPubKey  []byte
	Confirmations int64
}

// NodeClient is the §6 Node RPC adapter surface: a thin interface over the
// handful of bitcoind JSON-RPC calls this core needs. The core never talks
// to a node directly; every component that needs chain data takes a
// NodeClient. Real wiring (signing, key derivation, broadcast) is handled
// by the concrete implementation, out of this core's scope per §1.
type NodeClient interface {
	ListUnspent(ctx context.Context) ([]UTXO, error)
	GetBlockCount(ctx context.Context) (uint64, error)
	GetBlockHash(ctx context.Context, height uint64) (chainhash.Hash, error)
	GetBlock(ctx context.Context, id chainhash.Hash) (*BlockInfo, error)
	GetRawTransaction(ctx context.Context, txid chainhash.Hash) (*RawTx, error)
	GetTxOut(ctx context.Context, txid chainhash.Hash, vout uint32) (*TxOutInfo, error)
	GetAddressInfo(ctx context.Context, address string) (*AddressInfo, error)
	GetNewAddress(ctx context.Context) (string, error)
	SignRawTransactionWithWallet(ctx context.Context, txHex string) (signedHex string, complete bool, err error)
	SendRawTransaction(ctx context.Context, txHex string) (chainhash.Hash, error)
}
