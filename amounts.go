package main

import (
	"encoding/hex"
	"math"

	"github.com/dustin/go-humanize"
)

func hexDecode(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

const satPerBTC = 1e8

// btcToSat converts a bitcoind JSON-RPC float BTC amount to satoshis. The
// node always returns amounts rounded to 8 decimal places, so a single
// round after scaling is exact.
func btcToSat(btc float64) int64 {
	return int64(math.Round(btc * satPerBTC))
}

// formatSat renders a satoshi amount as a human BTC string for logs/CLI
// output, e.g. "0.00012345 BTC".
func formatSat(sat int64) string {
	btc := float64(sat) / satPerBTC
	return humanize.FormatFloat("#,###.########", btc) + " BTC"
}

// formatAtomic renders an atomic-unit glyph amount against its
// divisibility, e.g. formatAtomic(123450, 2) -> "1,234.50".
func formatAtomic(amount uint64, divisibility uint64) string {
	unit := uint64(1)
	for i := uint64(0); i < divisibility; i++ {
		unit *= 10
	}
	whole := amount / unit
	frac := amount % unit
	s := humanize.Comma(int64(whole))
	if divisibility == 0 {
		return s
	}
	fracStr := padLeftZeros(frac, divisibility)
	return s + "." + fracStr
}

func padLeftZeros(v uint64, width uint64) string {
	digits := make([]byte, width)
	for i := int64(width) - 1; i >= 0; i-- {
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	return string(digits)
}
