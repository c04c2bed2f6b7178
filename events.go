package dache

import (
	"sync"

	"github.com/hyp3rd/dache/internal/hostconn"
)

// HostDisconnectedEvent carries the endpoint of a host that dropped out of
// the reachable fleet.
type HostDisconnectedEvent struct {
	Endpoint hostconn.Endpoint
}

// HostReconnectedEvent carries the endpoint of a host that rejoined the
// reachable fleet.
type HostReconnectedEvent struct {
	Endpoint hostconn.Endpoint
}

// CacheItemExpiredEvent carries the key a host reported as expired.
type CacheItemExpiredEvent struct {
	CacheKey string
}

// HostDisconnectedHandler receives HostDisconnectedEvent notifications.
type HostDisconnectedHandler func(HostDisconnectedEvent)

// HostReconnectedHandler receives HostReconnectedEvent notifications.
type HostReconnectedHandler func(HostReconnectedEvent)

// CacheItemExpiredHandler receives CacheItemExpiredEvent notifications.
type CacheItemExpiredHandler func(CacheItemExpiredEvent)

// subscribers fans out the three public event kinds spec.md §6 names.
// It is intentionally separate from the routing/invalidation packages'
// own handler registries: this is the public surface callers subscribe
// to, decoupled from the internal wiring that feeds it.
type subscribers struct {
	mu                 sync.RWMutex
	onHostDisconnected []HostDisconnectedHandler
	onHostReconnected  []HostReconnectedHandler
	onCacheItemExpired []CacheItemExpiredHandler
}

func (s *subscribers) addHostDisconnected(fn HostDisconnectedHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onHostDisconnected = append(s.onHostDisconnected, fn)
}

func (s *subscribers) addHostReconnected(fn HostReconnectedHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onHostReconnected = append(s.onHostReconnected, fn)
}

func (s *subscribers) addCacheItemExpired(fn CacheItemExpiredHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onCacheItemExpired = append(s.onCacheItemExpired, fn)
}

func (s *subscribers) fireHostDisconnected(e HostDisconnectedEvent) {
	s.mu.RLock()
	handlers := append([]HostDisconnectedHandler(nil), s.onHostDisconnected...)
	s.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

func (s *subscribers) fireHostReconnected(e HostReconnectedEvent) {
	s.mu.RLock()
	handlers := append([]HostReconnectedHandler(nil), s.onHostReconnected...)
	s.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

func (s *subscribers) fireCacheItemExpired(e CacheItemExpiredEvent) {
	s.mu.RLock()
	handlers := append([]CacheItemExpiredHandler(nil), s.onCacheItemExpired...)
	s.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
