// Package serializer registers the value codecs a Client can be configured
// with by name: a default JSON codec plus msgpack and CBOR alternatives,
// selected via a Client's SerializerName.
package serializer

import (
	"github.com/goccy/go-json"

	"github.com/hyp3rd/ewrap"
)

// DefaultJSONSerializer is the registry's "default" entry, backed by
// goccy/go-json rather than encoding/json for its lower marshal/unmarshal
// overhead on the hot read/write path.
type DefaultJSONSerializer struct{}

// Marshal serializes v into its JSON encoding.
func (*DefaultJSONSerializer) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(&v)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to marshal json")
	}

	return data, nil
}

// Unmarshal decodes data's JSON encoding into v.
func (*DefaultJSONSerializer) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, &v); err != nil {
		return ewrap.Wrap(err, "failed to unmarshal json")
	}

	return nil
}
