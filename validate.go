package main

import "unicode"

// spacerRune is the decorative separator allowed inside glyph names. It
// carries no semantic value and is stripped before the base-26 fold.
const spacerRune = '•'

const maxNameLength = 26

// isValidName implements is_valid_name (§4.4): nonempty, length <= 26,
// every character is an uppercase letter or the spacer, spacers never at
// position 0, the last position, or adjacent to another spacer, and at
// least one letter is present.
func isValidName(s string) bool {
	runes := []rune(s)
	if len(runes) == 0 || len(runes) > maxNameLength {
		return false
	}
	letters := 0
	for i, r := range runes {
		switch {
		case r == spacerRune:
			if i == 0 || i == len(runes)-1 {
				return false
			}
			if runes[i-1] == spacerRune {
				return false
			}
		case r >= 'A' && r <= 'Z':
			letters++
		default:
			return false
		}
	}
	return letters > 0
}

// isValidSymbol implements is_valid_symbol (§4.4): exactly one Unicode
// scalar whose category is neither a letter (L*) nor a number (N*).
func isValidSymbol(s string) bool {
	runes := []rune(s)
	if len(runes) != 1 {
		return false
	}
	return isSymbolRune(runes[0])
}

func isSymbolRune(r rune) bool {
	if unicode.IsLetter(r) {
		return false
	}
	if unicode.IsNumber(r) || unicode.IsDigit(r) {
		return false
	}
	return true
}

// isMintOpen implements the §3 predicate: the mint is open at height h iff
// effective_start <= h < effective_end AND minted_count < mint_cap. Missing
// bounds default to 0 and +Inf; a missing mint_cap means no cap, i.e.
// minted_count is never considered exhausted.
func isMintOpen(info *MintTerms, h uint64) bool {
	if info == nil {
		return false
	}
	start := effectiveStart(info)
	end := effectiveEnd(info)
	if h < start || h >= end {
		return false
	}
	if info.MintCap != nil && info.MintedCount >= *info.MintCap {
		return false
	}
	return true
}

const noEndHeight = ^uint64(0)

func effectiveStart(info *MintTerms) uint64 {
	if info.StartHeight != nil {
		return *info.StartHeight
	}
	if info.StartOffset != nil {
		return info.EtchHeight + *info.StartOffset
	}
	return 0
}

func effectiveEnd(info *MintTerms) uint64 {
	if info.EndHeight != nil {
		return *info.EndHeight
	}
	if info.EndOffset != nil {
		return info.EtchHeight + *info.EndOffset
	}
	return noEndHeight
}
