// Package hostconn implements the Host Connection contract of the Dache
// client: one long-lived logical link to a single cache host, with its own
// reconnect state machine. The wire protocol itself (framing, codecs) is an
// external collaborator per the client/host split; Transport is the narrow
// seam a concrete wire client plugs into.
package hostconn

import (
	"context"
	"fmt"
	"time"
)

// Endpoint identifies a cache host uniquely within a fleet. It is never
// mutated once a Connection is constructed from it.
type Endpoint struct {
	Address string
	Port    int
}

// String renders the endpoint as address:port.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Address, e.Port)
}

// Less orders endpoints by (address, port) ascending, the ordering the
// Routing Table's assembly step sorts configured hosts by.
func (e Endpoint) Less(other Endpoint) bool {
	if e.Address != other.Address {
		return e.Address < other.Address
	}

	return e.Port < other.Port
}

// KeyValue is a single write target: a cache key and its serialized value.
type KeyValue struct {
	Key   string
	Value []byte
}

// WriteOptions carries the optional fields of AddOrUpdate that are shared
// across a batch (tag, expirations, notification/interning flags).
type WriteOptions struct {
	TagName            string
	AbsoluteExpiration time.Time
	SlidingExpiration  time.Duration
	NotifyRemoved      bool
	IsInterned         bool
}

// Transport is the wire-level operation surface a Host Connection drives.
// A concrete implementation owns the actual socket/HTTP/RPC client; Dache
// ships HTTPTransport as a reference implementation.
type Transport interface {
	// Dial establishes (or re-establishes) the underlying link.
	Dial(ctx context.Context) error
	// Close tears the underlying link down. Idempotent.
	Close() error

	Get(ctx context.Context, keys []string) ([][]byte, error)
	AddOrUpdate(ctx context.Context, items []KeyValue, opts WriteOptions) error
	Remove(ctx context.Context, keys []string) error
	GetTagged(ctx context.Context, tags []string, pattern string) ([][]byte, error)
	RemoveTagged(ctx context.Context, tags []string, pattern string) error
	GetCacheKeys(ctx context.Context, pattern string) ([]string, error)
	GetCacheKeysTagged(ctx context.Context, tags []string, pattern string) ([]string, error)
	Clear(ctx context.Context) error

	// Messages returns the channel the transport delivers inbound
	// host-pushed frames on (invalidation notices). Implementations that
	// never push messages may return a nil channel.
	Messages() <-chan []byte
}
