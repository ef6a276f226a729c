package main

import "testing"

func TestBtcToSat(t *testing.T) {
	cases := []struct {
		btc  float64
		want int64
	}{
		{0, 0},
		{1, 100000000},
		{0.00000001, 1},
		{0.12345678, 12345678},
	}
	for _, c := range cases {
		if got := btcToSat(c.btc); got != c.want {
			t.Errorf("btcToSat(%v) = %d, want %d", c.btc, got, c.want)
		}
	}
}

func TestFormatAtomic(t *testing.T) {
	cases := []struct {
		amount       uint64
		divisibility uint64
		want         string
	}{
		{123450, 2, "1,234.50"},
		{1000, 0, "1,000"},
		{5, 2, "0.05"},
		{100, 2, "1.00"},
	}
	for _, c := range cases {
		if got := formatAtomic(c.amount, c.divisibility); got != c.want {
			t.Errorf("formatAtomic(%d, %d) = %q, want %q", c.amount, c.divisibility, got, c.want)
		}
	}
}

func TestPadLeftZeros(t *testing.T) {
	cases := []struct {
		v     uint64
		width uint64
		want  string
	}{
		{5, 2, "05"},
		{50, 2, "50"},
		{0, 3, "000"},
	}
	for _, c := range cases {
		if got := padLeftZeros(c.v, c.width); got != c.want {
			t.Errorf("padLeftZeros(%d, %d) = %q, want %q", c.v, c.width, got, c.want)
		}
	}
}
