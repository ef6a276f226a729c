package main

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func testSwapKeys(t *testing.T) (receiver, sender *btcec.PrivateKey) {
	t.Helper()
	var err error
	receiver, err = btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate receiver key: %v", err)
	}
	sender, err = btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate sender key: %v", err)
	}
	return receiver, sender
}

func TestInitiateSwapRejectsEmptySecret(t *testing.T) {
	node := newFakeNodeClient()
	e := &SwapEngine{Builder: &TxBuilder{Node: node, Params: &chaincfg.MainNetParams}, Node: node}
	receiver, sender := testSwapKeys(t)

	_, _, err := e.InitiateSwap(context.Background(), GlyphID{BlockHeight: 1, TxIndex: 0}, 10, 1, testDestAddress(t), receiver.PubKey(), sender.PubKey(), nil, 500000, BuildOptions{})
	if err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestInitiateSwapBuildsHTLCLockedOutput(t *testing.T) {
	node := newFakeNodeClient()
	node.utxos = []UTXO{{Txid: chainhash.Hash{1}, Vout: 0, ValueSat: 100000}}
	e := &SwapEngine{Builder: &TxBuilder{Node: node, Params: &chaincfg.MainNetParams}, Node: node}
	receiver, sender := testSwapKeys(t)

	sess, _, err := e.InitiateSwap(context.Background(), GlyphID{BlockHeight: 1, TxIndex: 0}, 10, 1, testDestAddress(t), receiver.PubKey(), sender.PubKey(), []byte("secret"), 500000, BuildOptions{})
	if err != nil {
		t.Fatalf("InitiateSwap: %v", err)
	}
	if sess.State != SwapInitiated {
		t.Errorf("state = %v, want Initiated", sess.State)
	}
	if string(sess.Secret) != "secret" {
		t.Errorf("secret not recorded on the session")
	}
}

func TestParticipateSwapRejectsNonShorterTimelock(t *testing.T) {
	node := newFakeNodeClient()
	e := &SwapEngine{Builder: &TxBuilder{Node: node, Params: &chaincfg.MainNetParams}, Node: node}
	receiver, sender := testSwapKeys(t)

	counterparty := HTLCRef{
		Txid: chainhash.Hash{9},
		Vout: 0,
		Params: HTLCParams{
			SecretHash:     sha256Sum([]byte("s")),
			ReceiverPKHash: hash160(receiver.PubKey().SerializeCompressed()),
			SenderPKHash:   hash160(sender.PubKey().SerializeCompressed()),
			Timelock:       500000,
		},
	}
	_, _, err := e.ParticipateSwap(context.Background(), GlyphID{BlockHeight: 1, TxIndex: 0}, 10, 1, counterparty, testDestAddress(t), receiver.PubKey(), sender.PubKey(), 500000, BuildOptions{})
	if err == nil {
		t.Fatal("expected error when participant timelock is not strictly shorter")
	}
	code, ok := codeOf(err)
	if !ok || code != ErrSwapPreconditionFailed {
		t.Fatalf("expected ErrSwapPreconditionFailed, got %v", err)
	}
}

func TestParticipateSwapVerifiesCounterpartyScript(t *testing.T) {
	node := newFakeNodeClient()
	node.utxos = []UTXO{{Txid: chainhash.Hash{1}, Vout: 0, ValueSat: 100000}}
	e := &SwapEngine{Builder: &TxBuilder{Node: node, Params: &chaincfg.MainNetParams}, Node: node}
	receiver, sender := testSwapKeys(t)

	params := HTLCParams{
		SecretHash:     sha256Sum([]byte("s")),
		ReceiverPKHash: hash160(receiver.PubKey().SerializeCompressed()),
		SenderPKHash:   hash160(sender.PubKey().SerializeCompressed()),
		Timelock:       500000,
	}
	counterparty := HTLCRef{Txid: chainhash.Hash{9}, Vout: 0, Params: params}

	script, err := buildHTLCScript(params)
	if err != nil {
		t.Fatalf("buildHTLCScript: %v", err)
	}
	addr, err := htlcWitnessScriptHashAddress(script, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("htlcWitnessScriptHashAddress: %v", err)
	}
	destScript, err := txscriptPayToAddrScript(addr)
	if err != nil {
		t.Fatalf("txscriptPayToAddrScript: %v", err)
	}

	t.Run("mismatched on-chain script is rejected", func(t *testing.T) {
		node.txOuts[outpointKey{counterparty.Txid, counterparty.Vout}] = &TxOutInfo{ValueSat: 1000, Confirmations: 1}
		node.rawTxs[counterparty.Txid] = &RawTx{Txid: counterparty.Txid, Outputs: []RawTxOut{{ValueSat: 1000, PkScript: []byte{0x51}}}}

		_, _, err := e.ParticipateSwap(context.Background(), GlyphID{BlockHeight: 1, TxIndex: 0}, 10, 1, counterparty, testDestAddress(t), sender.PubKey(), receiver.PubKey(), 400000, BuildOptions{})
		if err == nil {
			t.Fatal("expected error for mismatched counterparty script")
		}
		code, ok := codeOf(err)
		if !ok || code != ErrSwapPreconditionFailed {
			t.Fatalf("expected ErrSwapPreconditionFailed, got %v", err)
		}
	})

	t.Run("matching on-chain script is accepted", func(t *testing.T) {
		node.txOuts[outpointKey{counterparty.Txid, counterparty.Vout}] = &TxOutInfo{ValueSat: 1000, Confirmations: 1}
		node.rawTxs[counterparty.Txid] = &RawTx{Txid: counterparty.Txid, Outputs: []RawTxOut{{ValueSat: 1000, PkScript: destScript}}}

		sess, _, err := e.ParticipateSwap(context.Background(), GlyphID{BlockHeight: 1, TxIndex: 0}, 10, 1, counterparty, testDestAddress(t), sender.PubKey(), receiver.PubKey(), 400000, BuildOptions{})
		if err != nil {
			t.Fatalf("ParticipateSwap: %v", err)
		}
		if sess.State != SwapParticipated {
			t.Errorf("state = %v, want Participated", sess.State)
		}
	})
}

func TestClaimSwapRequiresConfirmation(t *testing.T) {
	node := newFakeNodeClient()
	e := &SwapEngine{Builder: &TxBuilder{Node: node, Params: &chaincfg.MainNetParams}, Node: node}
	receiver, sender := testSwapKeys(t)

	preimage := []byte("secret")
	htlc := HTLCRef{
		Txid: chainhash.Hash{1},
		Vout: 0,
		Params: HTLCParams{
			SecretHash:     sha256Sum(preimage),
			ReceiverPKHash: hash160(receiver.PubKey().SerializeCompressed()),
			SenderPKHash:   hash160(sender.PubKey().SerializeCompressed()),
			Timelock:       500000,
		},
	}
	node.txOuts[outpointKey{htlc.Txid, htlc.Vout}] = &TxOutInfo{ValueSat: 10000, Confirmations: 0}

	_, err := e.ClaimSwap(context.Background(), htlc, preimage, receiver, testDestAddress(t), BuildOptions{})
	if err == nil {
		t.Fatal("expected error claiming an unconfirmed htlc output")
	}
	code, ok := codeOf(err)
	if !ok || code != ErrSwapPreconditionFailed {
		t.Fatalf("expected ErrSwapPreconditionFailed, got %v", err)
	}
}

func TestClaimSwapRejectsWrongPreimage(t *testing.T) {
	node := newFakeNodeClient()
	e := &SwapEngine{Builder: &TxBuilder{Node: node, Params: &chaincfg.MainNetParams}, Node: node}
	receiver, sender := testSwapKeys(t)

	htlc := HTLCRef{
		Txid: chainhash.Hash{1},
		Vout: 0,
		Params: HTLCParams{
			SecretHash:     sha256Sum([]byte("secret")),
			ReceiverPKHash: hash160(receiver.PubKey().SerializeCompressed()),
			SenderPKHash:   hash160(sender.PubKey().SerializeCompressed()),
			Timelock:       500000,
		},
	}
	node.txOuts[outpointKey{htlc.Txid, htlc.Vout}] = &TxOutInfo{ValueSat: 10000, Confirmations: 1, ScriptPubKey: []byte{0x00, 0x20}}

	_, err := e.ClaimSwap(context.Background(), htlc, []byte("wrong"), receiver, testDestAddress(t), BuildOptions{})
	if err == nil {
		t.Fatal("expected error for a preimage that does not hash to the committed secret")
	}
	code, ok := codeOf(err)
	if !ok || code != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestClaimSwapRejectsAlreadySpentOutput(t *testing.T) {
	node := newFakeNodeClient()
	e := &SwapEngine{Builder: &TxBuilder{Node: node, Params: &chaincfg.MainNetParams}, Node: node}
	receiver, sender := testSwapKeys(t)

	htlc := HTLCRef{
		Txid: chainhash.Hash{1},
		Vout: 0,
		Params: HTLCParams{
			SecretHash:     sha256Sum([]byte("secret")),
			ReceiverPKHash: hash160(receiver.PubKey().SerializeCompressed()),
			SenderPKHash:   hash160(sender.PubKey().SerializeCompressed()),
			Timelock:       500000,
		},
	}
	// No entry in node.txOuts: GetTxOut returns nil, meaning spent/unknown.

	_, err := e.ClaimSwap(context.Background(), htlc, []byte("secret"), receiver, testDestAddress(t), BuildOptions{})
	if err == nil {
		t.Fatal("expected error for an already-spent htlc output")
	}
	code, ok := codeOf(err)
	if !ok || code != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRefundSwapRequiresTimelockHeight(t *testing.T) {
	node := newFakeNodeClient()
	node.blockCount = 400000
	e := &SwapEngine{Builder: &TxBuilder{Node: node, Params: &chaincfg.MainNetParams}, Node: node}
	receiver, sender := testSwapKeys(t)

	htlc := HTLCRef{
		Txid: chainhash.Hash{1},
		Vout: 0,
		Params: HTLCParams{
			SecretHash:     sha256Sum([]byte("secret")),
			ReceiverPKHash: hash160(receiver.PubKey().SerializeCompressed()),
			SenderPKHash:   hash160(sender.PubKey().SerializeCompressed()),
			Timelock:       500000,
		},
	}

	_, err := e.RefundSwap(context.Background(), htlc, sender, testDestAddress(t), BuildOptions{})
	if err == nil {
		t.Fatal("expected error refunding before timelock+1 is reached")
	}
	code, ok := codeOf(err)
	if !ok || code != ErrSwapPreconditionFailed {
		t.Fatalf("expected ErrSwapPreconditionFailed, got %v", err)
	}
}

func TestRefundSwapAllowedAtTimelockPlusOne(t *testing.T) {
	node := newFakeNodeClient()
	node.blockCount = 500001
	e := &SwapEngine{Builder: &TxBuilder{Node: node, Params: &chaincfg.MainNetParams}, Node: node}
	receiver, sender := testSwapKeys(t)

	htlc := HTLCRef{
		Txid: chainhash.Hash{1},
		Vout: 0,
		Params: HTLCParams{
			SecretHash:     sha256Sum([]byte("secret")),
			ReceiverPKHash: hash160(receiver.PubKey().SerializeCompressed()),
			SenderPKHash:   hash160(sender.PubKey().SerializeCompressed()),
			Timelock:       500000,
		},
	}
	node.txOuts[outpointKey{htlc.Txid, htlc.Vout}] = &TxOutInfo{ValueSat: 10000, Confirmations: 1, ScriptPubKey: []byte{0x00, 0x20}}

	_, err := e.RefundSwap(context.Background(), htlc, sender, testDestAddress(t), BuildOptions{})
	if err != nil {
		t.Fatalf("RefundSwap at timelock+1: %v", err)
	}
}

func TestSwapStateString(t *testing.T) {
	cases := map[SwapState]string{
		SwapIdle:          "Idle",
		SwapInitiated:     "Initiated",
		SwapParticipated:  "Participated",
		SwapRedeemed:      "Redeemed",
		SwapRefunded:      "Refunded",
		SwapState(99):     "Unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("SwapState(%d).String() = %q, want %q", state, got, want)
		}
	}
}
