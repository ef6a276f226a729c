package main

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	simdsha256 "github.com/minio/sha256-simd"
)

// HTLCParams is the tuple an HTLC output commits to (§3, §4.7).
type HTLCParams struct {
	SecretHash     [32]byte
	ReceiverPKHash [20]byte
	SenderPKHash   [20]byte
	Timelock       int64 // block height or MTP, per §4.7
}

// buildHTLCScript resolves the §9 open question (the source's layout
// duplicated OP_CHECKSIG): this script shares a single trailing
// OP_EQUALVERIFY/OP_CHECKSIG pair across both branches, so exactly one
// OP_CHECKSIG ever executes and the two redemption paths are structurally
// exclusive — the preimage path's SHA256 equality is enforced before any
// signature check, and the timelock path's CLTV check gates the branch
// before its signature check, per §4.7's "script MUST reject mixed paths"
// and "MUST enforce the hash equality before the signature check".
func buildHTLCScript(p HTLCParams) ([]byte, error) {
	b := txscript.NewScriptBuilder()
	b.AddOp(txscript.OP_IF)
	b.AddOp(txscript.OP_SHA256)
	b.AddData(p.SecretHash[:])
	b.AddOp(txscript.OP_EQUALVERIFY)
	b.AddOp(txscript.OP_DUP)
	b.AddOp(txscript.OP_HASH160)
	b.AddData(p.ReceiverPKHash[:])
	b.AddOp(txscript.OP_ELSE)
	b.AddInt64(p.Timelock)
	b.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	b.AddOp(txscript.OP_DROP)
	b.AddOp(txscript.OP_DUP)
	b.AddOp(txscript.OP_HASH160)
	b.AddData(p.SenderPKHash[:])
	b.AddOp(txscript.OP_ENDIF)
	b.AddOp(txscript.OP_EQUALVERIFY)
	b.AddOp(txscript.OP_CHECKSIG)
	script, err := b.Script()
	if err != nil {
		return nil, wrapErr(ErrInvalidArgument, "build htlc script", err)
	}
	return script, nil
}

// htlcWitnessScriptHashAddress wraps the HTLC script in a P2WSH address so
// it can be paid to like any other segwit output.
func htlcWitnessScriptHashAddress(script []byte, params *chaincfg.Params) (*btcutil.AddressWitnessScriptHash, error) {
	hash := simdsha256.Sum256(script)
	addr, err := btcutil.NewAddressWitnessScriptHash(hash[:], params)
	if err != nil {
		return nil, wrapErr(ErrInvalidArgument, "build htlc p2wsh address", err)
	}
	return addr, nil
}

// htlcClaimWitness builds the witness stack for the preimage-redemption
// path: <sig> <receiverPubkey> <preimage> OP_1 <script>. §9 flags
// claim_glyph/refund_glyph as stub methods in the source that the
// implementer "MUST complete... not mirror the stub" — this is that
// completion.
func htlcClaimWitness(sig []byte, receiverPubKey *btcec.PublicKey, preimage []byte, script []byte) [][]byte {
	return [][]byte{
		sig,
		receiverPubKey.SerializeCompressed(),
		preimage,
		[]byte{1}, // selects the OP_IF branch
		script,
	}
}

// htlcRefundWitness builds the witness stack for the timelock-redemption
// path: <sig> <senderPubkey> OP_0 <script>.
func htlcRefundWitness(sig []byte, senderPubKey *btcec.PublicKey, script []byte) [][]byte {
	return [][]byte{
		sig,
		senderPubKey.SerializeCompressed(),
		nil, // selects the OP_ELSE branch
		script,
	}
}

// signHTLCSigHash produces a DER-encoded ECDSA signature (with SIGHASH_ALL
// appended) over sigHash, the way P2WSH spends are signed.
func signHTLCSigHash(priv *btcec.PrivateKey, sigHash []byte) []byte {
	sig := ecdsa.Sign(priv, sigHash)
	return append(sig.Serialize(), byte(txscript.SigHashAll))
}

func hash160(b []byte) [20]byte {
	var out [20]byte
	copy(out[:], btcutil.Hash160(b))
	return out
}
