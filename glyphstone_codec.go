package main

import "unicode/utf8"

// Glyphstone kind tags (§3).
const (
	kindEtch     byte = 'E'
	kindMint     byte = 'M'
	kindTransfer byte = 'T'
)

// Tagged-field bytes following the etch header, in normative emission order.
const (
	tagMintCap     byte = 'C'
	tagMintAmount  byte = 'A'
	tagStartHeight byte = 'S'
	tagEndHeight   byte = 'H'
	tagStartOffset byte = 'O'
	tagEndOffset   byte = 'F'
)

// EtchFields holds every field composable into an 'E' record.
type EtchFields struct {
	Name         string // raw name (pre name_to_int); spacers stripped by nameToInt
	Divisibility uint64
	Symbol       string // empty means absent
	Premine      uint64 // 0 means absent on compose
	MintCap      *uint64
	MintAmount   *uint64
	StartHeight  *uint64
	EndHeight    *uint64
	StartOffset  *uint64
	EndOffset    *uint64
}

// MintFields holds the fields of an 'M' record.
type MintFields struct {
	ID     GlyphID
	Amount uint64
}

// TransferFields holds the fields of a 'T' record.
type TransferFields struct {
	ID          GlyphID
	Amount      uint64
	OutputIndex uint64
}

// ParsedGlyphstone is the result of parsing a glyphstone payload: exactly
// one of Etch/Mint/Transfer is non-nil, selected by Kind.
type ParsedGlyphstone struct {
	Kind     byte
	Etch     *EtchFields
	Mint     *MintFields
	Transfer *TransferFields
}

// composeEtch implements the §4.3 composition rule for 'E' records: the
// mandatory prefix always emitted, the symbol appended iff present, premine
// appended iff > 0, and tagged fields appended in the fixed C,A,S,H,O,F
// order iff set. Ordering is normative for test reproducibility.
func composeEtch(f EtchFields) ([]byte, error) {
	nameInt, err := nameToInt(f.Name)
	if err != nil {
		return nil, err
	}
	out := []byte{kindEtch}
	out, _ = encodeVarint(out, nameInt)
	out, _ = encodeVarint(out, f.Divisibility)

	if f.Symbol != "" {
		if !isValidSymbol(f.Symbol) {
			return nil, newErr(ErrInvalidArgument, "invalid etch symbol: "+f.Symbol)
		}
		out = append(out, []byte(f.Symbol)...)
	}
	if f.Premine > 0 {
		out, _ = encodeVarint(out, f.Premine)
	}
	if f.MintCap != nil {
		out = append(out, tagMintCap)
		out, _ = encodeVarint(out, *f.MintCap)
	}
	if f.MintAmount != nil {
		out = append(out, tagMintAmount)
		out, _ = encodeVarint(out, *f.MintAmount)
	}
	if f.StartHeight != nil {
		out = append(out, tagStartHeight)
		out, _ = encodeVarint(out, *f.StartHeight)
	}
	if f.EndHeight != nil {
		out = append(out, tagEndHeight)
		out, _ = encodeVarint(out, *f.EndHeight)
	}
	if f.StartOffset != nil {
		out = append(out, tagStartOffset)
		out, _ = encodeVarint(out, *f.StartOffset)
	}
	if f.EndOffset != nil {
		out = append(out, tagEndOffset)
		out, _ = encodeVarint(out, *f.EndOffset)
	}
	return out, nil
}

// composeMint implements the 'M' record: varint(block_height) varint(tx_index) varint(amount).
func composeMint(f MintFields) []byte {
	out := []byte{kindMint}
	out, _ = encodeVarint(out, f.ID.BlockHeight)
	out, _ = encodeVarint(out, f.ID.TxIndex)
	out, _ = encodeVarint(out, f.Amount)
	return out
}

// composeTransfer implements the 'T' record: varint(block_height)
// varint(tx_index) varint(amount) varint(output_index).
func composeTransfer(f TransferFields) []byte {
	out := []byte{kindTransfer}
	out, _ = encodeVarint(out, f.ID.BlockHeight)
	out, _ = encodeVarint(out, f.ID.TxIndex)
	out, _ = encodeVarint(out, f.Amount)
	out, _ = encodeVarint(out, f.OutputIndex)
	return out
}

// isTagByte reports whether b is one of the recognized tagged-field tags.
func isTagByte(b byte) bool {
	switch b {
	case tagMintCap, tagMintAmount, tagStartHeight, tagEndHeight, tagStartOffset, tagEndOffset:
		return true
	default:
		return false
	}
}

// parseGlyphstone parses a glyphstone payload per §4.3. strict controls
// whether an unknown tag byte inside an etch record's tagged-field section
// is treated as a successful forward-compatible stop (strict=false) or as a
// cenotaph (strict=true), per the §9 open question. A malformed payload
// (empty payload, bad kind tag, truncated varint, overflow, zero name
// integer, duplicate etch tag) is always reported via the returned bool
// regardless of strict. Bytes after the etch header that do not decode to a
// symbol scalar are read as varint(premine), not reported as a cenotaph.
func parseGlyphstone(payload []byte, strict bool) (*ParsedGlyphstone, bool /*cenotaph*/, error) {
	if len(payload) == 0 {
		return nil, true, newErr(ErrCenotaph, "empty glyphstone payload")
	}
	kind := payload[0]
	rest := payload[1:]
	switch kind {
	case kindEtch:
		return parseEtch(rest, strict)
	case kindMint:
		return parseMint(rest)
	case kindTransfer:
		return parseTransfer(rest)
	default:
		return nil, true, newErr(ErrCenotaph, "unknown glyphstone kind tag")
	}
}

func parseEtch(b []byte, strict bool) (*ParsedGlyphstone, bool, error) {
	nameInt, b, err := decodeVarint(b)
	if err != nil {
		return nil, true, err
	}
	name, err := intToName(nameInt)
	if err != nil {
		return nil, true, err
	}
	divisibility, b, err := decodeVarint(b)
	if err != nil {
		return nil, true, err
	}

	f := &EtchFields{Name: name, Divisibility: divisibility}

	// Resolve the symbol/premine ambiguity (§4.3, §4.4, §9): attempt to
	// decode one UTF-8 scalar at the current position. If it decodes
	// cleanly and its category is not a letter/number, it is the symbol;
	// otherwise the bytes here are varint(premine).
	if len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r != utf8.RuneError && isSymbolRune(r) {
			f.Symbol = string(r)
			b = b[size:]
		}
	}

	if len(b) > 0 && !isTagByte(b[0]) {
		premine, rest, err := decodeVarint(b)
		if err != nil {
			return nil, true, err
		}
		f.Premine = premine
		b = rest
	}

	seen := map[byte]bool{}
	for len(b) > 0 {
		tag := b[0]
		if !isTagByte(tag) {
			if strict {
				return nil, true, newErr(ErrCenotaph, "unknown etch tag byte in strict mode")
			}
			// Forward-compatible stop: record is valid with fields gathered so far.
			break
		}
		if seen[tag] {
			return nil, true, newErr(ErrCenotaph, "duplicate etch tag byte")
		}
		seen[tag] = true
		v, rest, err := decodeVarint(b[1:])
		if err != nil {
			return nil, true, err
		}
		b = rest
		vv := v
		switch tag {
		case tagMintCap:
			f.MintCap = &vv
		case tagMintAmount:
			f.MintAmount = &vv
		case tagStartHeight:
			f.StartHeight = &vv
		case tagEndHeight:
			f.EndHeight = &vv
		case tagStartOffset:
			f.StartOffset = &vv
		case tagEndOffset:
			f.EndOffset = &vv
		}
	}

	return &ParsedGlyphstone{Kind: kindEtch, Etch: f}, false, nil
}

func parseMint(b []byte) (*ParsedGlyphstone, bool, error) {
	height, b, err := decodeVarint(b)
	if err != nil {
		return nil, true, err
	}
	idx, b, err := decodeVarint(b)
	if err != nil {
		return nil, true, err
	}
	amount, _, err := decodeVarint(b)
	if err != nil {
		return nil, true, err
	}
	return &ParsedGlyphstone{
		Kind: kindMint,
		Mint: &MintFields{ID: GlyphID{BlockHeight: height, TxIndex: idx}, Amount: amount},
	}, false, nil
}

func parseTransfer(b []byte) (*ParsedGlyphstone, bool, error) {
	height, b, err := decodeVarint(b)
	if err != nil {
		return nil, true, err
	}
	idx, b, err := decodeVarint(b)
	if err != nil {
		return nil, true, err
	}
	amount, b, err := decodeVarint(b)
	if err != nil {
		return nil, true, err
	}
	outIdx, _, err := decodeVarint(b)
	if err != nil {
		return nil, true, err
	}
	return &ParsedGlyphstone{
		Kind: kindTransfer,
		Transfer: &TransferFields{
			ID:          GlyphID{BlockHeight: height, TxIndex: idx},
			Amount:      amount,
			OutputIndex: outIdx,
		},
	}, false, nil
}
