package main

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

func testHTLCParams(t *testing.T) (HTLCParams, *btcec.PrivateKey, *btcec.PrivateKey) {
	t.Helper()
	receiver, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate receiver key: %v", err)
	}
	sender, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate sender key: %v", err)
	}
	secretHash := sha256Sum([]byte("correct horse battery staple"))
	return HTLCParams{
		SecretHash:     secretHash,
		ReceiverPKHash: hash160(receiver.PubKey().SerializeCompressed()),
		SenderPKHash:   hash160(sender.PubKey().SerializeCompressed()),
		Timelock:       500_000,
	}, receiver, sender
}

func TestBuildHTLCScriptHasExactlyOneChecksig(t *testing.T) {
	params, _, _ := testHTLCParams(t)
	script, err := buildHTLCScript(params)
	if err != nil {
		t.Fatalf("buildHTLCScript: %v", err)
	}

	count := 0
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		if tokenizer.Opcode() == txscript.OP_CHECKSIG {
			count++
		}
	}
	if err := tokenizer.Err(); err != nil {
		t.Fatalf("tokenize htlc script: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one OP_CHECKSIG, found %d", count)
	}
}

func TestHTLCScriptCommitsToBothPubkeyHashes(t *testing.T) {
	params, _, _ := testHTLCParams(t)
	script, err := buildHTLCScript(params)
	if err != nil {
		t.Fatalf("buildHTLCScript: %v", err)
	}
	if !bytes.Contains(script, params.ReceiverPKHash[:]) {
		t.Error("script does not commit to receiver pubkey hash")
	}
	if !bytes.Contains(script, params.SenderPKHash[:]) {
		t.Error("script does not commit to sender pubkey hash")
	}
	if !bytes.Contains(script, params.SecretHash[:]) {
		t.Error("script does not commit to secret hash")
	}
}

func TestHTLCWitnessScriptHashAddressDeterministic(t *testing.T) {
	params, _, _ := testHTLCParams(t)
	script, err := buildHTLCScript(params)
	if err != nil {
		t.Fatalf("buildHTLCScript: %v", err)
	}
	addr1, err := htlcWitnessScriptHashAddress(script, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("address 1: %v", err)
	}
	addr2, err := htlcWitnessScriptHashAddress(script, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("address 2: %v", err)
	}
	if addr1.EncodeAddress() != addr2.EncodeAddress() {
		t.Error("htlcWitnessScriptHashAddress is not deterministic for identical scripts")
	}
}

// TestHTLCExclusivity is the §8 "HTLC exclusivity" property: the claim
// witness selects the IF branch (push 1) while the refund witness selects
// the ELSE branch (push empty); no single witness stack can satisfy both,
// since the selector element is mutually exclusive by construction.
func TestHTLCExclusivity(t *testing.T) {
	params, receiver, sender := testHTLCParams(t)
	script, err := buildHTLCScript(params)
	if err != nil {
		t.Fatalf("buildHTLCScript: %v", err)
	}

	claim := htlcClaimWitness([]byte("sig"), receiver.PubKey(), []byte("preimage"), script)
	refund := htlcRefundWitness([]byte("sig"), sender.PubKey(), script)

	claimSelector := claim[len(claim)-2]
	refundSelector := refund[len(refund)-2]
	if len(claimSelector) == 0 {
		t.Error("claim witness selector must be a non-empty truthy push")
	}
	if len(refundSelector) != 0 {
		t.Error("refund witness selector must be an empty (falsy) push")
	}
}
