// Package wireformat decodes the little-endian UTF-16 text Dache hosts use
// for discovery beacons and invalidation frames (spec.md §6). No example in
// this module's dependency pack parses UTF-16 wire data, so this package is
// built on the standard library's encoding/binary and unicode/utf16 — there is
// no ecosystem library in the pack's stack for this narrow a concern.
package wireformat

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/hyp3rd/ewrap"
)

// DecodeUTF16LE decodes a little-endian UTF-16 byte slice to a Go string.
// An odd-length input is a malformed frame.
func DecodeUTF16LE(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", ewrap.New("odd-length utf-16le payload")
	}

	units := make([]uint16, len(b)/2) //nolint:mnd
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[i*2:])
	}

	return string(utf16.Decode(units)), nil
}

// EncodeUTF16LE encodes s to little-endian UTF-16 bytes, for tests that need
// to construct wire frames.
func EncodeUTF16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units)*2) //nolint:mnd

	for i, u := range units {
		binary.LittleEndian.PutUint16(out[i*2:], u)
	}

	return out
}
