// Package attrs provides reusable OpenTelemetry attribute key constants so
// every pkg/middleware decorator tags spans and metrics consistently instead
// of inlining its own key strings.
package attrs

const (
	// AttrKeyLength is the attribute key for a single cache key's length in
	// bytes.
	AttrKeyLength = "key.len"
	// AttrKeysCount is the attribute key for the number of keys/entries a
	// batch call carries.
	AttrKeysCount = "keys.count"
	// AttrResultCount is the attribute key for the number of items a read
	// call returned.
	AttrResultCount = "result.count"
	// AttrFailedCount is the attribute key marking a call as failed, used by
	// the metrics middleware to tag the calls counter.
	AttrFailedCount = "failed.count"
)
