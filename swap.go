package main

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"
	"github.com/hako/durafmt"
	"github.com/remeh/sizedwaitgroup"
)

// SwapState is one leg of the §4.7 state machine: Idle -> Initiated ->
// Participated -> Redeemed (preimage path), or Idle -> Initiated ->
// Refunded (timelock path).
type SwapState int

const (
	SwapIdle SwapState = iota
	SwapInitiated
	SwapParticipated
	SwapRedeemed
	SwapRefunded
)

func (s SwapState) String() string {
	switch s {
	case SwapIdle:
		return "Idle"
	case SwapInitiated:
		return "Initiated"
	case SwapParticipated:
		return "Participated"
	case SwapRedeemed:
		return "Redeemed"
	case SwapRefunded:
		return "Refunded"
	default:
		return "Unknown"
	}
}

// HTLCRef locates a confirmed (or not-yet-confirmed) HTLC output, the unit
// both participate and claim/refund operate on.
type HTLCRef struct {
	Txid   chainhash.Hash
	Vout   uint32
	Params HTLCParams
	Script []byte
}

// SwapSession tracks one participant's view of one swap. It carries a UUID
// purely for log/CLI correlation across the several RPCs a swap entails;
// it has no on-chain meaning.
type SwapSession struct {
	ID       string
	GlyphID  GlyphID
	Amount   uint64
	State    SwapState
	Secret   []byte // only known to the initiator until revealed
	HTLC     *HTLCRef
	StartedAt time.Time
}

func newSwapSession(id GlyphID, amount uint64) *SwapSession {
	return &SwapSession{ID: uuid.NewString(), GlyphID: id, Amount: amount, State: SwapIdle, StartedAt: time.Now()}
}

// SwapEngine wires the HTLC script/address logic (C7) to the tx builder
// (C5) and node adapter (C8).
type SwapEngine struct {
	Builder *TxBuilder
	Node    NodeClient
}

// InitiateSwap implements initiate(glyph_id, amount, dst, counterparty_pubkey,
// secret, timelock) (§4.7): constructs an HTLC-locked output for amount
// glyphs committing to sha256(secret), publishes it when opts.Broadcast is
// set, and returns the session (which records the secret itself, not its
// hash) and the txid (zero when opts.Broadcast is false). timelockInitiator MUST be strictly
// greater than the timelock the counterparty will use in Participate, to
// avoid the asymmetric refund race the spec calls out.
func (e *SwapEngine) InitiateSwap(ctx context.Context, glyphID GlyphID, amount uint64, divisibility uint64, dst string, receiverPubKey, senderPubKey *btcec.PublicKey, secret []byte, timelockInitiator int64, opts BuildOptions) (*SwapSession, chainhash.Hash, error) {
	if len(secret) == 0 {
		return nil, chainhash.Hash{}, newErr(ErrInvalidArgument, "secret required")
	}
	secretHash := sha256Sum(secret)

	params := HTLCParams{
		SecretHash:     secretHash,
		ReceiverPKHash: hash160(receiverPubKey.SerializeCompressed()),
		SenderPKHash:   hash160(senderPubKey.SerializeCompressed()),
		Timelock:       timelockInitiator,
	}
	script, err := buildHTLCScript(params)
	if err != nil {
		return nil, chainhash.Hash{}, err
	}
	addr, err := htlcWitnessScriptHashAddress(script, e.Builder.Params)
	if err != nil {
		return nil, chainhash.Hash{}, err
	}

	sess := newSwapSession(glyphID, amount)
	txid, err := e.Builder.buildGlyphOutputTx(ctx, glyphID, amount, divisibility, addr.EncodeAddress(), opts)
	if err != nil {
		return sess, chainhash.Hash{}, err
	}
	sess.State = SwapInitiated
	sess.Secret = secret
	logger.Info("swap initiated", "session", sess.ID, "glyph", glyphID.String(), "timelock", timelockInitiator, "txid", txid.String())
	return sess, txid, nil
}

// ParticipateSwap implements participate(glyph_id, amount,
// counterparty_htlc, dst) (§4.7): verifies the counterparty's HTLC on
// chain (same hash, an equal-or-larger locktime gap) and publishes a
// mirror HTLC with a shorter relative timelock. The two verification RPCs
// (gettxout to confirm the output is unspent, getrawtransaction to compare
// its script; the output value is not checked) run concurrently via a
// small bounded worker pool.
func (e *SwapEngine) ParticipateSwap(ctx context.Context, glyphID GlyphID, amount uint64, divisibility uint64, counterparty HTLCRef, dst string, ownPubKey, counterpartyPubKey *btcec.PublicKey, participantTimelock int64, opts BuildOptions) (*SwapSession, chainhash.Hash, error) {
	if participantTimelock >= counterparty.Params.Timelock {
		return nil, chainhash.Hash{}, newErr(ErrSwapPreconditionFailed, "participant timelock must be shorter than the counterparty's")
	}

	var txOut *TxOutInfo
	var rawErr, outErr error
	swg := sizedwaitgroup.New(2)

	swg.Add()
	go func() {
		defer swg.Done()
		txOut, outErr = e.Node.GetTxOut(ctx, counterparty.Txid, counterparty.Vout)
	}()
	var raw *RawTx
	swg.Add()
	go func() {
		defer swg.Done()
		raw, rawErr = e.Node.GetRawTransaction(ctx, counterparty.Txid)
	}()
	swg.Wait()

	if outErr != nil {
		return nil, chainhash.Hash{}, outErr
	}
	if txOut == nil {
		return nil, chainhash.Hash{}, newErr(ErrNotFound, "counterparty htlc output is spent or unknown")
	}
	if rawErr != nil {
		return nil, chainhash.Hash{}, rawErr
	}
	if int(counterparty.Vout) >= len(raw.Outputs) {
		return nil, chainhash.Hash{}, newErr(ErrInvalidArgument, "counterparty htlc vout out of range")
	}

	script, err := buildHTLCScript(counterparty.Params)
	if err != nil {
		return nil, chainhash.Hash{}, err
	}
	wantAddr, err := htlcWitnessScriptHashAddress(script, e.Builder.Params)
	if err != nil {
		return nil, chainhash.Hash{}, err
	}
	gotScript := raw.Outputs[counterparty.Vout].PkScript
	wantScript, err := txscriptPayToAddrScript(wantAddr)
	if err != nil {
		return nil, chainhash.Hash{}, err
	}
	if !bytesEqual(gotScript, wantScript) {
		return nil, chainhash.Hash{}, newErr(ErrSwapPreconditionFailed, "counterparty htlc script does not match committed params")
	}

	mirrorParams := HTLCParams{
		SecretHash:     counterparty.Params.SecretHash,
		ReceiverPKHash: hash160(ownPubKey.SerializeCompressed()),
		SenderPKHash:   hash160(counterpartyPubKey.SerializeCompressed()),
		Timelock:       participantTimelock,
	}
	mirrorScript, err := buildHTLCScript(mirrorParams)
	if err != nil {
		return nil, chainhash.Hash{}, err
	}
	mirrorAddr, err := htlcWitnessScriptHashAddress(mirrorScript, e.Builder.Params)
	if err != nil {
		return nil, chainhash.Hash{}, err
	}

	sess := newSwapSession(glyphID, amount)
	txid, err := e.Builder.buildGlyphOutputTx(ctx, glyphID, amount, divisibility, mirrorAddr.EncodeAddress(), opts)
	if err != nil {
		return sess, chainhash.Hash{}, err
	}
	sess.State = SwapParticipated
	remaining := durafmt.Parse(time.Duration(counterparty.Params.Timelock-participantTimelock) * 10 * time.Minute)
	logger.Info("swap participated", "session", sess.ID, "glyph", glyphID.String(), "timelock_gap_approx", remaining.String(), "txid", txid.String())
	return sess, txid, nil
}

// ClaimSwap implements claim(htlc_txid, preimage, dst) (§4.7): spends the
// HTLC via the preimage path. Per §5's strict happens-before, this refuses
// to build the claim until the HTLC output has at least one confirmation.
func (e *SwapEngine) ClaimSwap(ctx context.Context, htlc HTLCRef, preimage []byte, receiverPriv *btcec.PrivateKey, dst string, opts BuildOptions) (chainhash.Hash, error) {
	out, err := e.Node.GetTxOut(ctx, htlc.Txid, htlc.Vout)
	if err != nil {
		return chainhash.Hash{}, err
	}
	if out == nil {
		return chainhash.Hash{}, newErr(ErrNotFound, "htlc output already spent")
	}
	if out.Confirmations < 1 {
		return chainhash.Hash{}, newErr(ErrSwapPreconditionFailed, "htlc output has no confirmations yet")
	}
	if sha256Sum(preimage) != htlc.Params.SecretHash {
		return chainhash.Hash{}, newErr(ErrInvalidArgument, "preimage does not hash to the committed secret")
	}

	txid, err := e.Builder.spendHTLC(ctx, htlc, dst, true, preimage, receiverPriv, opts)
	if err != nil {
		return chainhash.Hash{}, err
	}
	logger.Info("swap claimed", "txid", txid.String(), "htlc_txid", htlc.Txid.String())
	return txid, nil
}

// RefundSwap implements refund(htlc_txid, dst) (§4.7): spends via the
// timelock path. Per §5, refused until timelock+1 block height is reached.
func (e *SwapEngine) RefundSwap(ctx context.Context, htlc HTLCRef, senderPriv *btcec.PrivateKey, dst string, opts BuildOptions) (chainhash.Hash, error) {
	height, err := e.Node.GetBlockCount(ctx)
	if err != nil {
		return chainhash.Hash{}, err
	}
	if int64(height) < htlc.Params.Timelock+1 {
		return chainhash.Hash{}, newErr(ErrSwapPreconditionFailed, "refund timelock not yet reached")
	}
	out, err := e.Node.GetTxOut(ctx, htlc.Txid, htlc.Vout)
	if err != nil {
		return chainhash.Hash{}, err
	}
	if out == nil {
		return chainhash.Hash{}, newErr(ErrNotFound, "htlc output already spent")
	}

	txid, err := e.Builder.spendHTLC(ctx, htlc, dst, false, nil, senderPriv, opts)
	if err != nil {
		return chainhash.Hash{}, err
	}
	logger.Info("swap refunded", "txid", txid.String(), "htlc_txid", htlc.Txid.String())
	return txid, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
