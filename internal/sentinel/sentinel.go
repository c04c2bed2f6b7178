// Package sentinel centralizes the error values surfaced by the Dache
// client across routing, replication, and transport. All errors are
// created with ewrap so callers can unwrap and attach context without the
// client needing its own wrapping helpers.
package sentinel

import (
	"github.com/hyp3rd/ewrap"
)

var (
	// ErrArgumentInvalid is returned when a caller-supplied argument fails a
	// precondition (blank key, blank tag, blank pattern, empty batch).
	ErrArgumentInvalid = ewrap.New("argument invalid")

	// ErrSerialization is returned by single-item write operations when the
	// configured Serializer fails to marshal the value. It is never retried.
	ErrSerialization = ewrap.New("serialization failed")

	// ErrNoCacheHostsAvailable is returned when every Bucket in the Routing
	// Table is in the offline-index-set at lookup time.
	ErrNoCacheHostsAvailable = ewrap.New("no cache hosts available")

	// ErrConfigInvalid is returned when a Config value is internally
	// inconsistent (e.g. autoDetectCacheHosts without multicast settings).
	ErrConfigInvalid = ewrap.New("configuration invalid")

	// ErrHostNotFound is returned when a Host Connection lookup (by
	// endpoint) fails to find an owning Bucket.
	ErrHostNotFound = ewrap.New("host not found")

	// ErrSerializerNotFound is returned when a serializer name is not
	// registered.
	ErrSerializerNotFound = ewrap.New("serializer not found")

	// ErrParamCannotBeEmpty is returned when a required parameter is empty.
	ErrParamCannotBeEmpty = ewrap.New("param cannot be empty")

	// ErrClientClosed is returned when an operation is attempted on a
	// Cache Client after Shutdown has completed.
	ErrClientClosed = ewrap.New("cache client is shut down")

	// ErrMgmtHTTPShutdownTimeout is returned when the management HTTP
	// server fails to shut down before the context deadline.
	ErrMgmtHTTPShutdownTimeout = ewrap.New("management http shutdown timeout")

	// ErrTransport wraps any failure surfaced by a Host Connection RPC; the
	// Facade treats it as transient and retries.
	ErrTransport = ewrap.New("transport failure")
)
