package main

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// fakeNodeClient is an in-memory NodeClient stub for exercising the tx
// builder and swap engine without a real bitcoind.
type fakeNodeClient struct {
	utxos        []UTXO
	txOuts       map[outpointKey]*TxOutInfo
	rawTxs       map[chainhash.Hash]*RawTx
	blockCount   uint64
	signedHex    string
	signComplete bool
	signErr      error
	sendTxid     chainhash.Hash
	sendErr      error
	lastSentHex  string
}

type outpointKey struct {
	hash chainhash.Hash
	vout uint32
}

func newFakeNodeClient() *fakeNodeClient {
	return &fakeNodeClient{
		txOuts:       map[outpointKey]*TxOutInfo{},
		rawTxs:       map[chainhash.Hash]*RawTx{},
		signComplete: true,
	}
}

func (f *fakeNodeClient) ListUnspent(ctx context.Context) ([]UTXO, error) {
	return f.utxos, nil
}

func (f *fakeNodeClient) GetBlockCount(ctx context.Context) (uint64, error) {
	return f.blockCount, nil
}

func (f *fakeNodeClient) GetBlockHash(ctx context.Context, height uint64) (chainhash.Hash, error) {
	return chainhash.Hash{}, newErr(ErrNotFound, "not implemented in fake")
}

func (f *fakeNodeClient) GetBlock(ctx context.Context, id chainhash.Hash) (*BlockInfo, error) {
	return nil, newErr(ErrNotFound, "not implemented in fake")
}

func (f *fakeNodeClient) GetRawTransaction(ctx context.Context, txid chainhash.Hash) (*RawTx, error) {
	raw, ok := f.rawTxs[txid]
	if !ok {
		return nil, newErr(ErrNotFound, "raw tx not found")
	}
	return raw, nil
}

func (f *fakeNodeClient) GetTxOut(ctx context.Context, txid chainhash.Hash, vout uint32) (*TxOutInfo, error) {
	return f.txOuts[outpointKey{txid, vout}], nil
}

func (f *fakeNodeClient) GetAddressInfo(ctx context.Context, address string) (*AddressInfo, error) {
	return nil, newErr(ErrNotFound, "not implemented in fake")
}

func (f *fakeNodeClient) GetNewAddress(ctx context.Context) (string, error) {
	return "", newErr(ErrNotFound, "not implemented in fake")
}

func (f *fakeNodeClient) SignRawTransactionWithWallet(ctx context.Context, txHex string) (string, bool, error) {
	if f.signErr != nil {
		return "", false, f.signErr
	}
	if f.signedHex != "" {
		return f.signedHex, f.signComplete, nil
	}
	return txHex, f.signComplete, nil
}

func (f *fakeNodeClient) SendRawTransaction(ctx context.Context, txHex string) (chainhash.Hash, error) {
	f.lastSentHex = txHex
	if f.sendErr != nil {
		return chainhash.Hash{}, f.sendErr
	}
	return f.sendTxid, nil
}
