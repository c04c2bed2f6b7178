package serializer

import (
	"bytes"

	"github.com/ugorji/go/codec"

	"github.com/hyp3rd/ewrap"
)

//nolint:gochecknoglobals
var cborHandle = &codec.CborHandle{}

// CborSerializer leverages `ugorji/go/codec`'s CBOR handle to serialize
// items before storing them in the cache. Useful when a Host is fronted by
// a wire transport that prefers a compact binary envelope over JSON.
type CborSerializer struct{}

// Marshal serializes the given value into a byte slice.
func (*CborSerializer) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := codec.NewEncoder(&buf, cborHandle)

	err := enc.Encode(v)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to marshal cbor")
	}

	return buf.Bytes(), nil
}

// Unmarshal deserializes the given byte slice into the given value.
func (*CborSerializer) Unmarshal(data []byte, v any) error {
	dec := codec.NewDecoder(bytes.NewReader(data), cborHandle)

	err := dec.Decode(v)
	if err != nil {
		return ewrap.Wrap(err, "failed to unmarshal cbor")
	}

	return nil
}
