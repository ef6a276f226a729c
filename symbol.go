package main

import "strings"

// Base-26 ticker name codec (C2). The alphabet is the 26 uppercase letters
// A-Z with BASE_OFFSET 1: the character at position i from the right
// contributes (ord(c)-ord('A')+1) * 26^i. So "A" -> 1, "Z" -> 26, "AA" -> 27.

const nameAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// nameToInt implements name_to_int: validate via isValidName, strip
// spacers, then fold right-to-left.
func nameToInt(name string) (uint64, error) {
	if !isValidName(name) {
		return 0, newErr(ErrInvalidArgument, "invalid name: "+name)
	}
	stripped := stripSpacers(name)

	var n uint64
	var pow uint64 = 1
	for i := len(stripped) - 1; i >= 0; i-- {
		c := stripped[i]
		digit := uint64(c-'A') + 1
		n += digit * pow
		pow *= 26
	}
	return n, nil
}

// intToName implements int_to_name: the inverse of nameToInt. n must be >= 1.
// The result never contains spacers — spacer positions are not recoverable
// from the integer alone.
func intToName(n uint64) (string, error) {
	if n < 1 {
		return "", newErr(ErrInvalidArgument, "int_to_name requires n >= 1")
	}
	var b []byte
	for n > 0 {
		n--
		r := n % 26
		n /= 26
		b = append([]byte{nameAlphabet[r]}, b...)
	}
	return string(b), nil
}

func stripSpacers(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == spacerRune {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
