package main

import (
	"bytes"
	"testing"
)

func TestEncodeVarintSeedScenarios(t *testing.T) {
	cases := []struct {
		n    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xAC, 0x02}},
	}
	for _, c := range cases {
		got := encodeVarintBytes(c.n)
		if !bytes.Equal(got, c.want) {
			t.Errorf("encodeVarintBytes(%d) = % x, want % x", c.n, got, c.want)
		}
	}
}

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 2, 63, 64, 127, 128, 129, 300, 16384, 1 << 32, 1<<63 - 1}
	for _, n := range values {
		enc := encodeVarintBytes(n)
		got, rest, err := decodeVarint(enc)
		if err != nil {
			t.Fatalf("decodeVarint(encode(%d)): %v", n, err)
		}
		if got != n {
			t.Errorf("round trip %d -> %d", n, got)
		}
		if len(rest) != 0 {
			t.Errorf("round trip %d left %d trailing bytes", n, len(rest))
		}
	}
}

func TestVarintFraming(t *testing.T) {
	t.Run("two values back to back decode independently", func(t *testing.T) {
		a, b := uint64(42), uint64(123456)
		buf := append(encodeVarintBytes(a), encodeVarintBytes(b)...)

		gotA, rest, err := decodeVarint(buf)
		if err != nil {
			t.Fatalf("decode a: %v", err)
		}
		if gotA != a {
			t.Fatalf("got a=%d, want %d", gotA, a)
		}
		gotB, rest, err := decodeVarint(rest)
		if err != nil {
			t.Fatalf("decode b: %v", err)
		}
		if gotB != b {
			t.Fatalf("got b=%d, want %d", gotB, b)
		}
		if len(rest) != 0 {
			t.Fatalf("leftover bytes after framing: %d", len(rest))
		}
	})
}

func TestDecodeVarintTruncated(t *testing.T) {
	_, _, err := decodeVarint([]byte{0x80, 0x80})
	if err == nil {
		t.Fatal("expected truncation error")
	}
	code, ok := codeOf(err)
	if !ok || code != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestDecodeVarintEmpty(t *testing.T) {
	_, _, err := decodeVarint(nil)
	if err == nil {
		t.Fatal("expected error decoding empty input")
	}
}

func FuzzVarintRoundTrip(f *testing.F) {
	f.Add(uint64(0))
	f.Add(uint64(127))
	f.Add(uint64(128))
	f.Add(uint64(300))
	f.Add(uint64(1<<63 - 1))
	f.Fuzz(func(t *testing.T, n uint64) {
		enc := encodeVarintBytes(n)
		got, rest, err := decodeVarint(enc)
		if err != nil {
			t.Fatalf("decode(encode(%d)): %v", n, err)
		}
		if got != n || len(rest) != 0 {
			t.Fatalf("round trip mismatch for %d: got %d, rest=%d", n, got, len(rest))
		}
	})
}
