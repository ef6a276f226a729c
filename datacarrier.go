package main

import (
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// glyphstoneMarkerOp is the reserved marker opcode that, together with
// OP_RETURN, forms the two "magic opcodes" of §3: any output whose script
// is not exactly [OP_RETURN, glyphstoneMarkerOp, <push payload>] is not a
// glyphstone carrier at all (it is either an unrelated OP_RETURN output or,
// if the sender intended it as one, a cenotaph).
const glyphstoneMarkerOp = txscript.OP_13

// buildDataCarrierScript wraps payload in the two-magic-opcode data-carrier
// script described in §3.
func buildDataCarrierScript(payload []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddOp(glyphstoneMarkerOp).
		AddData(payload).
		Script()
}

// dataCarrierOutput builds the zero-value wire.TxOut carrying payload.
func dataCarrierOutput(payload []byte) (*wire.TxOut, error) {
	script, err := buildDataCarrierScript(payload)
	if err != nil {
		return nil, wrapErr(ErrInvalidArgument, "build data-carrier script", err)
	}
	return wire.NewTxOut(0, script), nil
}

// extractGlyphstonePayload inspects pkScript for the two magic opcodes
// followed by a single data push, returning the payload bytes. The second
// return value reports whether the script matched the magic prefix at all
// (false means "not a glyphstone output", not necessarily a cenotaph —
// plenty of OP_RETURN outputs on chain belong to other protocols).
func extractGlyphstonePayload(pkScript []byte) (payload []byte, magicMatched bool, wellFormed bool) {
	tokenizer := txscript.MakeScriptTokenizer(0, pkScript)

	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_RETURN {
		return nil, false, false
	}
	if !tokenizer.Next() || tokenizer.Opcode() != glyphstoneMarkerOp {
		return nil, false, false
	}
	if !tokenizer.Next() {
		return nil, true, false
	}
	payload = append([]byte(nil), tokenizer.Data()...)
	if tokenizer.Next() || tokenizer.Err() != nil {
		// Trailing data after the single push, or a tokenizer error: the
		// magic prefix matched but the record is not well-formed.
		return payload, true, false
	}
	return payload, true, true
}

// isCenotaphOutput implements is_cenotaph (§4.4): true iff the output does
// not begin with exactly the two magic opcodes, or the payload it wraps
// fails to parse under the glyphstone grammar in strict mode.
func isCenotaphOutput(out *wire.TxOut) (bool, *ParsedGlyphstone) {
	payload, magicMatched, wellFormed := extractGlyphstonePayload(out.PkScript)
	if !magicMatched || !wellFormed {
		return true, nil
	}
	parsed, cenotaph, err := parseGlyphstone(payload, true)
	if err != nil || cenotaph {
		return true, nil
	}
	return false, parsed
}
