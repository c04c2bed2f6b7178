// Package routing owns the Routing Table: the ordered sequence of
// Redundancy Buckets plus the set of Bucket indices currently considered
// unreachable, and the Key Router's deterministic string→Bucket lookup.
package routing

import (
	"sort"
	"sync"

	"github.com/hyp3rd/dache/internal/bucket"
	"github.com/hyp3rd/dache/internal/hostconn"
	"github.com/hyp3rd/dache/internal/logging"
	"github.com/hyp3rd/dache/internal/sentinel"
)

// HostEvent carries the endpoint of a Host Connection whose observable
// state changed.
type HostEvent struct {
	Endpoint hostconn.Endpoint
}

// HostEventHandler is invoked when a Host Connection's reachability
// changes from the Routing Table's point of view.
type HostEventHandler func(HostEvent)

// Table is the ordered sequence of Buckets assembled at startup, plus the
// offline-index-set of Bucket positions whose online list is empty. The
// sequence order never changes after assembly; discovery only appends.
//
// All lookups take the read lock; membership transitions (Disconnected,
// Reconnected, discovery add) take the write lock. The write-lock holder
// never calls back into a Host Connection, so a disconnect storm handled
// here can never re-enter this lock from the same goroutine.
type Table struct {
	mu      sync.RWMutex
	buckets []*bucket.Bucket
	offline map[int]struct{}
	width   int
	logger  logging.Logger

	handlersMu         sync.RWMutex
	onHostDisconnected []HostEventHandler
	onHostReconnected  []HostEventHandler
}

// NewTable creates an empty Table with the given target replication width
// (hostRedundancyLayers + 1).
func NewTable(width int, logger logging.Logger) *Table {
	if logger == nil {
		logger = logging.Nop{}
	}

	return &Table{
		width:   width,
		offline: make(map[int]struct{}),
		logger:  logger,
	}
}

// Assemble builds the Table from the given connections: sort by
// (address, port) ascending, then fill Buckets in order until each
// reaches the target width; the final short Bucket, if any, is still
// appended. Assembly is deterministic and reproducible across client
// instances given the same configured fleet (spec.md §4.3, invariant 3).
// Each connection's event handlers are wired to this Table's reaction
// methods before Assemble returns.
func (t *Table) Assemble(conns []*hostconn.Connection) {
	sorted := append([]*hostconn.Connection(nil), conns...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Endpoint().Less(sorted[j].Endpoint())
	})

	t.mu.Lock()
	defer t.mu.Unlock()

	var current *bucket.Bucket

	for _, c := range sorted {
		if current == nil || len(current.Online())+len(current.Offline()) >= t.width {
			current = bucket.New(t.width)
			t.buckets = append(t.buckets, current)
		}

		current.Add(c)
		t.wireConnection(c)
	}
}

// wireConnection hooks a connection's Disconnected/Reconnected events to
// this Table's reaction methods. Must be called with t.mu held.
func (t *Table) wireConnection(c *hostconn.Connection) {
	c.OnDisconnected(func(conn *hostconn.Connection) { t.HandleDisconnected(conn) })
	c.OnReconnected(func(conn *hostconn.Connection) { t.HandleReconnected(conn) })
}

// Lookup implements the Key Router: deterministic mapping from a routing
// string (a cache key, or a tag name for tag-scoped operations) to a
// Bucket, skipping offline Buckets via first-available-successor.
func (t *Table) Lookup(routingString string) (*bucket.Bucket, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := len(t.buckets)
	if n == 0 || len(t.offline) == n {
		return nil, sentinel.ErrNoCacheHostsAvailable
	}

	idx := bucketIndex(WeakHash(routingString), n)

	for {
		if _, down := t.offline[idx]; !down {
			return t.buckets[idx], nil
		}

		idx = (idx + 1) % n
	}
}

// Buckets returns a snapshot of every Bucket in sequence order, for
// operations that fan out to the whole fleet (GetCacheKeys, Clear,
// Shutdown).
func (t *Table) Buckets() []*bucket.Bucket {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*bucket.Bucket, len(t.buckets))
	copy(out, t.buckets)

	return out
}

// OfflineIndexSet returns a snapshot of the Bucket positions currently
// considered unreachable.
func (t *Table) OfflineIndexSet() map[int]bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[int]bool, len(t.offline))
	for i := range t.offline {
		out[i] = true
	}

	return out
}

// HandleDisconnected reacts to a Host Connection's Disconnected event: it
// takes the owning Bucket's member offline and, if that empties the
// Bucket, adds its index to the offline-index-set. It is idempotent: if no
// Bucket currently lists conn online, it does nothing.
func (t *Table) HandleDisconnected(conn *hostconn.Connection) {
	t.mu.Lock()

	idx, b := t.findOwner(conn)
	if b == nil {
		t.mu.Unlock()

		return
	}

	moved := b.TakeOffline(conn)
	if moved && b.Next() == nil {
		t.offline[idx] = struct{}{}
	}

	t.mu.Unlock()

	if moved {
		t.logger.Printf("warn: host %s disconnected", conn.Endpoint())
		t.fireDisconnected(conn.Endpoint())
	}
}

// HandleReconnected reacts to a Host Connection's Reconnected event: it
// brings the owning Bucket's member back online and, if that Bucket (or
// any other) now has a reachable member, removes it from the
// offline-index-set.
func (t *Table) HandleReconnected(conn *hostconn.Connection) {
	t.mu.Lock()

	_, b := t.findOwner(conn)
	if b == nil {
		t.mu.Unlock()

		return
	}

	moved := b.BringOnline(conn)
	if moved {
		for i := range t.offline {
			if t.buckets[i].Len() > 0 {
				delete(t.offline, i)
			}
		}
	}

	t.mu.Unlock()

	if moved {
		t.logger.Printf("host %s reconnected", conn.Endpoint())
		t.fireReconnected(conn.Endpoint())
	}
}

// findOwner locates the Bucket containing conn (online or offline) along
// with its index. Must be called with t.mu held.
func (t *Table) findOwner(conn *hostconn.Connection) (int, *bucket.Bucket) {
	for i, b := range t.buckets {
		if b.Has(conn) {
			return i, b
		}
	}

	return -1, nil
}

// AppendHost implements the discovery insertion policy of spec.md §9: fill
// the last short Bucket first (if it is below target width), otherwise
// start a new Bucket. conn's events are wired the same way Assemble wires
// them.
func (t *Table) AppendHost(conn *hostconn.Connection) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.wireConnection(conn)

	if len(t.buckets) > 0 {
		last := t.buckets[len(t.buckets)-1]
		if len(last.Online())+len(last.Offline()) < t.width {
			last.Add(conn)

			return
		}
	}

	fresh := bucket.New(t.width)
	fresh.Add(conn)
	t.buckets = append(t.buckets, fresh)
}

// RemoveHost implements discovery's BYE: it permanently removes conn from
// its owning Bucket's tracking, treating it as a disconnect first so the
// offline-index-set stays consistent, then drops the connection entirely.
// The Bucket itself is never removed so index-based offline tracking
// remains stable — a Bucket whose sole member left BYE simply stays
// Shadow forever, like any other all-members-offline Bucket.
func (t *Table) RemoveHost(conn *hostconn.Connection) {
	t.HandleDisconnected(conn)

	t.mu.Lock()
	defer t.mu.Unlock()

	_, b := t.findOwner(conn)
	if b == nil {
		return
	}

	b.Remove(conn)
}

// OnHostDisconnected registers a handler invoked after a Host Connection
// is taken offline.
func (t *Table) OnHostDisconnected(fn HostEventHandler) {
	t.handlersMu.Lock()
	defer t.handlersMu.Unlock()

	t.onHostDisconnected = append(t.onHostDisconnected, fn)
}

// OnHostReconnected registers a handler invoked after a Host Connection is
// brought back online.
func (t *Table) OnHostReconnected(fn HostEventHandler) {
	t.handlersMu.Lock()
	defer t.handlersMu.Unlock()

	t.onHostReconnected = append(t.onHostReconnected, fn)
}

func (t *Table) fireDisconnected(e hostconn.Endpoint) {
	t.handlersMu.RLock()
	handlers := append([]HostEventHandler(nil), t.onHostDisconnected...)
	t.handlersMu.RUnlock()

	for _, h := range handlers {
		h(HostEvent{Endpoint: e})
	}
}

func (t *Table) fireReconnected(e hostconn.Endpoint) {
	t.handlersMu.RLock()
	handlers := append([]HostEventHandler(nil), t.onHostReconnected...)
	t.handlersMu.RUnlock()

	for _, h := range handlers {
		h(HostEvent{Endpoint: e})
	}
}
