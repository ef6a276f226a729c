package main

import (
	"fmt"
	"strconv"
	"strings"
)

// defaultMaxDivisibility is the protocol maximum for Glyph.Divisibility.
const defaultMaxDivisibility = 8

// GlyphID is the primary key of a glyph: its etch location. String form is
// "block_height:tx_index", e.g. "840000:17" (per original_source/pythonGlyphs.py).
type GlyphID struct {
	BlockHeight uint64
	TxIndex     uint64
}

func (g GlyphID) String() string {
	return fmt.Sprintf("%d:%d", g.BlockHeight, g.TxIndex)
}

// ParseGlyphID parses the canonical "block_height:tx_index" textual form.
func ParseGlyphID(s string) (GlyphID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return GlyphID{}, newErr(ErrInvalidArgument, "glyph id must be \"block_height:tx_index\": "+s)
	}
	h, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return GlyphID{}, wrapErr(ErrInvalidArgument, "glyph id block_height", err)
	}
	idx, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return GlyphID{}, wrapErr(ErrInvalidArgument, "glyph id tx_index", err)
	}
	return GlyphID{BlockHeight: h, TxIndex: idx}, nil
}

// MintTerms holds the optional minting terms declared at etch time, plus
// the running minted_count needed to evaluate isMintOpen. EtchHeight is
// carried alongside so start/end offsets can be resolved to absolute
// heights without a second lookup.
type MintTerms struct {
	EtchHeight  uint64
	MintCap     *uint64
	MintAmount  *uint64
	StartHeight *uint64
	EndHeight   *uint64
	StartOffset *uint64
	EndOffset   *uint64
	MintedCount uint64
}

// Glyph is a fungible token class identified by its etch location.
type Glyph struct {
	ID            GlyphID
	Name          string // validated, may contain spacers for display
	Divisibility  uint64
	Symbol        string // single Unicode scalar, may be empty
	Premine       uint64
	Terms         MintTerms
}

// AtomicUnitsPerWhole returns 10^divisibility.
func (g *Glyph) AtomicUnitsPerWhole() uint64 {
	u := uint64(1)
	for i := uint64(0); i < g.Divisibility; i++ {
		u *= 10
	}
	return u
}

// Validate checks the invariants of §3 that are local to the Glyph record
// itself (name/symbol grammar, divisibility bound, mint_cap consistency).
// It does not check chain state (e.g. whether the id is actually unique).
func (g *Glyph) Validate() error {
	if !isValidName(g.Name) {
		return newErr(ErrInvalidArgument, "invalid glyph name: "+g.Name)
	}
	if g.Divisibility > defaultMaxDivisibility {
		return newErr(ErrInvalidArgument, fmt.Sprintf("divisibility %d exceeds protocol maximum %d", g.Divisibility, defaultMaxDivisibility))
	}
	if g.Symbol != "" && !isValidSymbol(g.Symbol) {
		return newErr(ErrInvalidArgument, "invalid glyph symbol: "+g.Symbol)
	}
	if g.Terms.MintCap != nil && g.Terms.MintedCount > *g.Terms.MintCap {
		return newErr(ErrInvalidArgument, "minted_count exceeds mint_cap")
	}
	return nil
}
