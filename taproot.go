package main

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	simdsha256 "github.com/minio/sha256-simd"
)

// BindTaprootAuxKey implements C6: given a base payment script and an
// auxiliary public key, constructs a Taproot output script committing to
// both (§4.6). The internal key is derived deterministically from the base
// script's bytes (a hash-to-curve "lift-x" retry loop, the same technique
// used for NUMS points in other Taproot tooling); the single tapleaf is
// {OP_1, push(auxPubKey)}, leaf version txscript.BaseLeafVersion. The
// result is deterministic for equal (baseScript, auxPubKey) pairs, as
// required by §4.6, since nothing here is randomly sampled.
func BindTaprootAuxKey(baseScript []byte, auxPubKey *btcec.PublicKey, params *chaincfg.Params) (*btcutil.AddressTaproot, error) {
	if len(baseScript) == 0 {
		return nil, newErr(ErrInvalidArgument, "base script required")
	}
	if auxPubKey == nil {
		return nil, newErr(ErrInvalidArgument, "auxiliary pubkey required")
	}

	internalKey, err := liftXFromSeed(baseScript)
	if err != nil {
		return nil, wrapErr(ErrInvalidArgument, "derive taproot internal key", err)
	}

	leafScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_1).
		AddData(schnorr.SerializePubKey(auxPubKey)).
		Script()
	if err != nil {
		return nil, wrapErr(ErrInvalidArgument, "build aux tapleaf script", err)
	}
	leaf := txscript.NewBaseTapLeaf(leafScript)
	tree := txscript.AssembleTaprootScriptTree(leaf)
	root := tree.RootNode.TapHash()

	outputKey := txscript.ComputeTaprootOutputKey(internalKey, root[:])
	witnessProgram := schnorr.SerializePubKey(outputKey)

	addr, err := btcutil.NewAddressTaproot(witnessProgram, params)
	if err != nil {
		return nil, wrapErr(ErrInvalidArgument, "build taproot address", err)
	}
	return addr, nil
}

// liftXFromSeed hashes seed into an x-only coordinate and retries with a
// counter-extended hash until the x coordinate lies on the curve (lift_x
// succeeds), which on secp256k1 happens for roughly half of candidate x
// values. 256 attempts is an effectively-never-exhausted bound.
func liftXFromSeed(seed []byte) (*btcec.PublicKey, error) {
	h := sha256Sum(seed)
	for i := 0; i < 256; i++ {
		candidate := append([]byte{0x02}, h[:]...)
		if pk, err := btcec.ParsePubKey(candidate); err == nil {
			return pk, nil
		}
		h = sha256Sum(append(h[:], byte(i)))
	}
	return nil, newErr(ErrInvalidArgument, "lift-x retry budget exhausted")
}

func sha256Sum(b []byte) [32]byte {
	return simdsha256.Sum256(b)
}
