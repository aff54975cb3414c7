// Package xendian provides the endian-swapping and display helpers the
// Stratum wire format requires: header fields arrive as big-endian hex
// words that must be byte-swapped into the little-endian layout a block
// header uses on the wire.
package xendian

import (
	"encoding/hex"
	"fmt"
)

// SwapEndianWord reverses the byte order of a single 4-byte hex word.
// hexWord must decode to exactly 4 bytes.
func SwapEndianWord(hexWord string) ([]byte, error) {
	b, err := hex.DecodeString(hexWord)
	if err != nil {
		return nil, fmt.Errorf("xendian: decode word: %w", err)
	}
	if len(b) != 4 {
		return nil, fmt.Errorf("xendian: word must be 4 bytes, got %d", len(b))
	}
	return reverse(b), nil
}

// SwapEndianWords reverses the byte order within each 4-byte word of a
// hex-encoded buffer, leaving word order unchanged. hexWords must decode
// to a length that is a multiple of 4 bytes.
func SwapEndianWords(hexWords string) ([]byte, error) {
	b, err := hex.DecodeString(hexWords)
	if err != nil {
		return nil, fmt.Errorf("xendian: decode words: %w", err)
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("xendian: buffer length %d not a multiple of 4", len(b))
	}
	out := make([]byte, len(b))
	for w := 0; w < len(b); w += 4 {
		copy(out[w:w+4], reverse(b[w:w+4]))
	}
	return out, nil
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

// HumanReadableHashrate formats a hashes-per-second rate with the
// appropriate unit band: H/s below 1e3, kH/s below 1e7, MH/s below 1e10,
// else GH/s.
func HumanReadableHashrate(h float64) string {
	switch {
	case h < 1000:
		return fmt.Sprintf("%0.2f H/s", h)
	case h < 10000000:
		return fmt.Sprintf("%0.2f kH/s", h/1000)
	case h < 10000000000:
		return fmt.Sprintf("%0.2f MH/s", h/1000000)
	default:
		return fmt.Sprintf("%0.2f GH/s", h/1000000000)
	}
}
