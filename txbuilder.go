package main

import (
	"context"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/dustin/go-humanize"
)

// bootstrapInputEstimate is the minimum candidate UTXO value considered
// during naive selection (§4.5 step 3): 0.0001 BTC.
const bootstrapInputEstimate = int64(0.0001 * 1e8)

// BuildOptions is the options record of §4.5: {change_address,
// fee_rate_sat_per_vbyte, broadcast, input_override?, auxiliary_pubkey?}.
type BuildOptions struct {
	ChangeAddress     string
	FeeRateSatPerVB   int64
	Broadcast         bool
	InputOverride     *wire.OutPoint
	AuxiliaryPubKey   *btcec.PublicKey
}

// BuildResult is what every C5 operation returns: either the signed,
// broadcast txid, or an unsigned transaction for the caller to inspect.
type BuildResult struct {
	Tx   *wire.MsgTx
	Txid chainhash.Hash
	Sent bool
}

// TxBuilder implements C5: etch, mint, transfer, and the output-building
// primitives the swap engine (C7) reuses for its HTLC outputs.
type TxBuilder struct {
	Node   NodeClient
	Params *chaincfg.Params

	// Ledger, when set, gates Mint against the §3 mint-window/mint-cap
	// invariant (SPEC_FULL.md supplement to the §9 Open Question). A nil
	// Ledger leaves minting ungated, which test builders and the swap
	// engine's internal transfer-only use rely on.
	Ledger *MintLedger
}

// Etch implements the etch operation: composes an 'E' glyphstone, places
// the (optional) premine value on the destination output, and runs the
// common build algorithm of §4.5.
func (b *TxBuilder) Etch(ctx context.Context, f EtchFields, divisibilityUnits uint64, dst string, opts BuildOptions) (*BuildResult, error) {
	payload, err := composeEtch(f)
	if err != nil {
		return nil, err
	}
	var valueOut *wire.TxOut
	if f.Premine > 0 {
		valueOut, err = b.valueOutputFor(dst, f.Premine*divisibilityUnits, opts)
		if err != nil {
			return nil, err
		}
	}
	return b.build(ctx, payload, valueOut, opts)
}

// Mint implements the mint operation: composes an 'M' glyphstone for
// (id, amount) and places amount*10^divisibility on dst. If b.Ledger is
// set, the mint is first checked against the §3 window/cap invariant and
// rejected with ErrMintClosed rather than built.
func (b *TxBuilder) Mint(ctx context.Context, id GlyphID, amount uint64, divisibilityUnits uint64, dst string, opts BuildOptions) (*BuildResult, error) {
	if b.Ledger != nil {
		terms, err := b.Ledger.Terms(ctx, id)
		if err != nil {
			return nil, wrapErr(ErrMintClosed, "glyph not found in mint ledger", err)
		}
		height, err := b.Node.GetBlockCount(ctx)
		if err != nil {
			return nil, wrapErr(ErrNodeUnavailable, "fetch current block height", err)
		}
		if !isMintOpen(terms, height) {
			return nil, newErr(ErrMintClosed, "mint window closed or mint cap reached")
		}
	}

	payload := composeMint(MintFields{ID: id, Amount: amount})
	valueOut, err := b.valueOutputFor(dst, amount*divisibilityUnits, opts)
	if err != nil {
		return nil, err
	}
	res, err := b.build(ctx, payload, valueOut, opts)
	if err != nil {
		return nil, err
	}
	if b.Ledger != nil {
		if _, rerr := b.Ledger.RecordMint(ctx, id); rerr != nil {
			logger.Error("record mint in ledger", "glyph_id", id.String(), "error", rerr)
		}
	}
	return res, nil
}

// Transfer implements the transfer operation: composes a 'T' glyphstone
// pointing at output index 1 (the conventional slot right after the data
// carrier) and places amount*10^divisibility on dst.
func (b *TxBuilder) Transfer(ctx context.Context, id GlyphID, amount uint64, divisibilityUnits uint64, dst string, opts BuildOptions) (*BuildResult, error) {
	const destOutputIndex = 1
	payload := composeTransfer(TransferFields{ID: id, Amount: amount, OutputIndex: destOutputIndex})
	valueOut, err := b.valueOutputFor(dst, amount*divisibilityUnits, opts)
	if err != nil {
		return nil, err
	}
	return b.build(ctx, payload, valueOut, opts)
}

// buildGlyphOutputTx is the swap engine's entry point into the common build
// algorithm: it transfers amount glyphs of id onto dst (an HTLC P2WSH
// address in practice), reusing the exact same transfer glyphstone shape.
func (e *TxBuilder) buildGlyphOutputTx(ctx context.Context, id GlyphID, amount uint64, divisibilityUnits uint64, dst string, opts BuildOptions) (chainhash.Hash, error) {
	res, err := e.Transfer(ctx, id, amount, divisibilityUnits, dst, opts)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return res.Txid, nil
}

// build is the shared §4.5 algorithm, steps 1-7.
func (b *TxBuilder) build(ctx context.Context, payload []byte, valueOut *wire.TxOut, opts BuildOptions) (*BuildResult, error) {
	carrier, err := dataCarrierOutput(payload)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(carrier)
	if valueOut != nil {
		tx.AddTxOut(valueOut)
	}

	outpoint, inputValue, err := b.selectInput(ctx, opts.InputOverride)
	if err != nil {
		return nil, err
	}
	tx.AddTxIn(wire.NewTxIn(outpoint, nil, nil))

	feeRate := opts.FeeRateSatPerVB
	if feeRate <= 0 {
		feeRate = 1
	}
	fee := estimateVSize(tx) * feeRate

	spent := int64(0)
	for _, o := range tx.TxOut {
		spent += o.Value
	}
	if opts.ChangeAddress != "" {
		changeVal := inputValue - spent - fee
		if changeVal > 0 {
			changeOut, err := valueOutputFor(opts.ChangeAddress, uint64(changeVal), b.Params)
			if err != nil {
				return nil, err
			}
			tx.AddTxOut(changeOut)
		}
	}

	b.applyCenotaphGuard(tx)

	result := &BuildResult{Tx: tx}
	if !opts.Broadcast {
		return result, nil
	}

	rawHex, err := serializeTxHex(tx)
	if err != nil {
		return nil, err
	}
	signedHex, complete, err := b.Node.SignRawTransactionWithWallet(ctx, rawHex)
	if err != nil {
		return nil, wrapErr(ErrNodeUnavailable, "sign transaction", err)
	}
	if !complete {
		return nil, newErr(ErrInvalidArgument, "wallet could not fully sign transaction")
	}
	txid, err := b.Node.SendRawTransaction(ctx, signedHex)
	if err != nil {
		if isMissingInputsError(err.Error()) {
			return nil, wrapErr(ErrUTXOConflict, "send raw transaction", err)
		}
		return nil, wrapErr(ErrNodeUnavailable, "send raw transaction", err)
	}
	result.Txid = txid
	result.Sent = true
	logger.Info("broadcast transaction", "txid", txid.String(), "fee_sat", humanize.Comma(fee))
	return result, nil
}

// applyCenotaphGuard implements §4.5 step 6: if the data-carrier output
// (always tx.TxOut[0] in this builder) is cenotaph, every other output is
// discarded and replaced with a single zero-value burn output, so a
// malformed glyphstone can never be signed alongside a value transfer that
// looks legitimate.
func (b *TxBuilder) applyCenotaphGuard(tx *wire.MsgTx) {
	if len(tx.TxOut) == 0 {
		return
	}
	cenotaph, _ := isCenotaphOutput(tx.TxOut[0])
	if !cenotaph {
		return
	}
	carrier := tx.TxOut[0]
	tx.TxOut = []*wire.TxOut{carrier, wire.NewTxOut(0, []byte{})}
}

// selectInput implements §4.5 step 3.
func (b *TxBuilder) selectInput(ctx context.Context, override *wire.OutPoint) (*wire.OutPoint, int64, error) {
	if override != nil {
		out, err := b.Node.GetTxOut(ctx, override.Hash, override.Index)
		if err != nil {
			return nil, 0, wrapErr(ErrNodeUnavailable, "fetch input_override value", err)
		}
		if out == nil {
			return nil, 0, newErr(ErrNotFound, "input_override outpoint already spent")
		}
		return override, out.ValueSat, nil
	}

	utxos, err := b.Node.ListUnspent(ctx)
	if err != nil {
		return nil, 0, wrapErr(ErrNodeUnavailable, "list unspent", err)
	}
	for _, u := range utxos {
		if u.ValueSat >= bootstrapInputEstimate {
			op := wire.NewOutPoint(&u.Txid, u.Vout)
			return op, u.ValueSat, nil
		}
	}
	return nil, 0, newErr(ErrInsufficientFunds, "no wallet utxo meets the bootstrap estimate")
}

// spendHTLC builds the transaction spending htlc's output, either via the
// preimage path (claim=true) or the timelock path (claim=false).
func (b *TxBuilder) spendHTLC(ctx context.Context, htlc HTLCRef, dst string, claim bool, preimage []byte, priv *btcec.PrivateKey, opts BuildOptions) (chainhash.Hash, error) {
	outInfo, err := b.Node.GetTxOut(ctx, htlc.Txid, htlc.Vout)
	if err != nil {
		return chainhash.Hash{}, wrapErr(ErrNodeUnavailable, "fetch htlc output", err)
	}
	if outInfo == nil {
		return chainhash.Hash{}, newErr(ErrNotFound, "htlc output already spent")
	}

	script := htlc.Script
	if script == nil {
		script, err = buildHTLCScript(htlc.Params)
		if err != nil {
			return chainhash.Hash{}, err
		}
	}

	addr, err := btcutil.DecodeAddress(dst, b.Params)
	if err != nil {
		return chainhash.Hash{}, wrapErr(ErrInvalidArgument, "decode destination address", err)
	}
	destScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return chainhash.Hash{}, wrapErr(ErrInvalidArgument, "build destination script", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if !claim {
		tx.LockTime = uint32(htlc.Params.Timelock)
	}
	in := wire.NewTxIn(wire.NewOutPoint(&htlc.Txid, htlc.Vout), nil, nil)
	if !claim {
		in.Sequence = wire.MaxTxInSequenceNum - 1
	}
	tx.AddTxIn(in)

	feeRate := opts.FeeRateSatPerVB
	if feeRate <= 0 {
		feeRate = 1
	}
	tx.AddTxOut(wire.NewTxOut(outInfo.ValueSat, destScript))
	fee := estimateVSize(tx) * feeRate
	tx.TxOut[0].Value = outInfo.ValueSat - fee
	if tx.TxOut[0].Value <= 0 {
		return chainhash.Hash{}, newErr(ErrInsufficientFunds, "htlc value does not cover fee")
	}

	sigHashes := txscript.NewTxSigHashes(tx, txscript.NewCannedPrevOutputFetcher(outInfo.ScriptPubKey, outInfo.ValueSat))
	sigHash, err := txscript.CalcWitnessSigHash(script, sigHashes, txscript.SigHashAll, tx, 0, outInfo.ValueSat)
	if err != nil {
		return chainhash.Hash{}, wrapErr(ErrInvalidArgument, "compute htlc sighash", err)
	}
	sig := signHTLCSigHash(priv, sigHash)

	pub := priv.PubKey()
	if claim {
		tx.TxIn[0].Witness = htlcClaimWitness(sig, pub, preimage, script)
	} else {
		tx.TxIn[0].Witness = htlcRefundWitness(sig, pub, script)
	}

	rawHex, err := serializeTxHex(tx)
	if err != nil {
		return chainhash.Hash{}, err
	}
	if !opts.Broadcast {
		return tx.TxHash(), nil
	}
	txid, err := b.Node.SendRawTransaction(ctx, rawHex)
	if err != nil {
		if isMissingInputsError(err.Error()) {
			return chainhash.Hash{}, wrapErr(ErrUTXOConflict, "send htlc spend", err)
		}
		return chainhash.Hash{}, wrapErr(ErrNodeUnavailable, "send htlc spend", err)
	}
	return txid, nil
}

func valueOutputFor(addr string, valueAtomic uint64, params *chaincfg.Params) (*wire.TxOut, error) {
	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return nil, wrapErr(ErrInvalidArgument, "decode destination address", err)
	}
	script, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return nil, wrapErr(ErrInvalidArgument, "build destination script", err)
	}
	return wire.NewTxOut(int64(valueAtomic), script), nil
}

// valueOutputFor builds the destination output for dst, binding in
// opts.AuxiliaryPubKey (C6, the --nostr_pubkey flag) when set: the plain
// destination script becomes the Taproot internal-key seed of a new
// single-tapleaf address committing to the auxiliary key, instead of paying
// straight to dst.
func (b *TxBuilder) valueOutputFor(dst string, valueAtomic uint64, opts BuildOptions) (*wire.TxOut, error) {
	if opts.AuxiliaryPubKey == nil {
		return valueOutputFor(dst, valueAtomic, b.Params)
	}
	decoded, err := btcutil.DecodeAddress(dst, b.Params)
	if err != nil {
		return nil, wrapErr(ErrInvalidArgument, "decode destination address", err)
	}
	baseScript, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return nil, wrapErr(ErrInvalidArgument, "build destination script", err)
	}
	taprootAddr, err := BindTaprootAuxKey(baseScript, opts.AuxiliaryPubKey, b.Params)
	if err != nil {
		return nil, err
	}
	auxScript, err := txscript.PayToAddrScript(taprootAddr)
	if err != nil {
		return nil, wrapErr(ErrInvalidArgument, "build taproot destination script", err)
	}
	return wire.NewTxOut(int64(valueAtomic), auxScript), nil
}

func txscriptPayToAddrScript(addr btcutil.Address) ([]byte, error) {
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, wrapErr(ErrInvalidArgument, "build script for address", err)
	}
	return script, nil
}

// estimateVSize computes serialized virtual size (§4.5 step 4: base size
// plus witness size / 4, rounded up) locally since the pack does not carry
// btcd's mempool subpackage.
func estimateVSize(tx *wire.MsgTx) int64 {
	base := tx.SerializeSizeStripped()
	total := tx.SerializeSize()
	witness := total - base
	return int64(base + (witness+3)/4)
}

func serializeTxHex(tx *wire.MsgTx) (string, error) {
	var buf []byte
	w := byteSliceWriter{&buf}
	if err := tx.Serialize(w); err != nil {
		return "", wrapErr(ErrInvalidArgument, "serialize transaction", err)
	}
	return hex.EncodeToString(buf), nil
}

// byteSliceWriter adapts a []byte to io.Writer without pulling in
// bytes.Buffer just for a one-shot append.
type byteSliceWriter struct {
	buf *[]byte
}

func (w byteSliceWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}
