// Package bucket implements the Redundancy Bucket: an ordered group of
// Host Connections that are logical replicas of one another. Reads are
// load-balanced round-robin across the online members; writes fan out to
// all of them via ForAll.
package bucket

import (
	"sync"
	"sync/atomic"

	"github.com/hyp3rd/dache/internal/hostconn"
)

// Bucket holds the online and offline Host Connections for one replica
// group, plus the target replication width it was constructed with.
//
// Membership is total: every Connection handed to Add is in exactly one of
// online or offline at all times. A single RWMutex guards both lists and
// the round-robin cursor; the cursor increment in Next happens under
// read-lock and may race between concurrent callers — the contract only
// requires approximate even distribution, not strict serialization.
type Bucket struct {
	mu      sync.RWMutex
	online  []*hostconn.Connection
	offline []*hostconn.Connection
	cursor  atomic.Uint64
	width   int
}

// New creates an empty Bucket with the given target replication width.
func New(width int) *Bucket {
	return &Bucket{width: width}
}

// Add appends conn to the online list. Used only at startup assembly and
// by the discovery adapter when a freshly discovered host joins.
func (b *Bucket) Add(conn *hostconn.Connection) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.online = append(b.online, conn)
}

// Next returns an online member using a round-robin cursor, or nil if the
// Bucket has no online members. The cursor always advances, even when it
// is used to compute the returned index, so repeated calls distribute load
// approximately evenly without requiring strict ordering guarantees.
func (b *Bucket) Next() *hostconn.Connection {
	b.mu.RLock()
	defer b.mu.RUnlock()

	idx := b.cursor.Add(1) - 1

	if len(b.online) == 0 {
		return nil
	}

	return b.online[idx%uint64(len(b.online))] //nolint:gosec
}

// ForAll snapshots the online list under read-lock, then invokes fn on
// each member outside the lock — invoking fn while holding the lock would
// let a disconnect callback triggered mid-call re-enter TakeOffline and
// deadlock. If any invocation fails, ForAll returns that error immediately;
// the caller (the Cache Client Facade) is expected to retry the whole
// operation.
func (b *Bucket) ForAll(fn func(*hostconn.Connection) error) error {
	b.mu.RLock()
	members := make([]*hostconn.Connection, len(b.online))
	copy(members, b.online)
	b.mu.RUnlock()

	for _, m := range members {
		err := fn(m)
		if err != nil {
			return err
		}
	}

	return nil
}

// Online returns a snapshot of the current online members.
func (b *Bucket) Online() []*hostconn.Connection {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*hostconn.Connection, len(b.online))
	copy(out, b.online)

	return out
}

// Offline returns a snapshot of the current offline members.
func (b *Bucket) Offline() []*hostconn.Connection {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*hostconn.Connection, len(b.offline))
	copy(out, b.offline)

	return out
}

// TakeOffline moves conn from online to offline, resetting the round-robin
// cursor. Returns false if conn was not online — idempotent under repeated
// Disconnected events for the same connection.
func (b *Bucket) TakeOffline(conn *hostconn.Connection) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, c := range b.online {
		if c == conn {
			b.online = append(b.online[:i], b.online[i+1:]...)
			b.offline = append(b.offline, conn)
			b.cursor.Store(0)

			return true
		}
	}

	return false
}

// BringOnline moves conn from offline to online. Returns false if conn was
// not offline — idempotent under repeated Reconnected events.
func (b *Bucket) BringOnline(conn *hostconn.Connection) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, c := range b.offline {
		if c == conn {
			b.offline = append(b.offline[:i], b.offline[i+1:]...)
			b.online = append(b.online, conn)

			return true
		}
	}

	return false
}

// Remove drops conn from the Bucket entirely, online or offline, for the
// discovery adapter's BYE handling. Returns false if conn was not a
// member.
func (b *Bucket) Remove(conn *hostconn.Connection) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, c := range b.online {
		if c == conn {
			b.online = append(b.online[:i], b.online[i+1:]...)
			b.cursor.Store(0)

			return true
		}
	}

	for i, c := range b.offline {
		if c == conn {
			b.offline = append(b.offline[:i], b.offline[i+1:]...)

			return true
		}
	}

	return false
}

// Has reports whether conn belongs to this Bucket (online or offline).
func (b *Bucket) Has(conn *hostconn.Connection) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, c := range b.online {
		if c == conn {
			return true
		}
	}

	for _, c := range b.offline {
		if c == conn {
			return true
		}
	}

	return false
}

// Count returns the Bucket's original target width, not its current
// online size, which may be transiently smaller.
func (b *Bucket) Count() int { return b.width }

// Len returns the current number of online members.
func (b *Bucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.online)
}
