// Package invalidation parses host-pushed expiration frames and raises
// CacheItemExpired events to subscribers, per spec.md §4.7.
package invalidation

import (
	"encoding/binary"
	"strings"
	"sync"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/dache/internal/hostconn"
	"github.com/hyp3rd/dache/internal/logging"
	"github.com/hyp3rd/dache/internal/wireformat"
)

var (
	errTruncatedLengthPrefix = ewrap.New("truncated length prefix")
	errTruncatedSegment      = ewrap.New("truncated utf-16le segment")
)

// Event carries the cache key whose expiration a host reported.
type Event struct {
	CacheKey string
}

// EventHandler receives expiration events in the order they were framed.
type EventHandler func(Event)

// Listener decodes inbound frames from any Host Connection and dispatches
// expiration events. A single Listener is meant to be wired to every
// Connection's OnMessage hook via Handle.
type Listener struct {
	logger logging.Logger

	mu       sync.RWMutex
	handlers []EventHandler
}

// New creates a Listener. A nil logger is replaced with logging.Nop.
func New(logger logging.Logger) *Listener {
	if logger == nil {
		logger = logging.Nop{}
	}

	return &Listener{logger: logger}
}

// OnExpired registers a handler invoked for every decoded expiration event.
func (l *Listener) OnExpired(fn EventHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.handlers = append(l.handlers, fn)
}

// Handle is a hostconn.MessageHandler: wire it to every Connection's
// OnMessage hook to feed this Listener from the whole fleet.
func (l *Listener) Handle(conn *hostconn.Connection, payload []byte) {
	segments, err := splitFrame(payload)
	if err != nil {
		l.logger.Printf("warn: malformed invalidation frame from %s: %v", conn.Endpoint(), err)

		return
	}

	if len(segments) == 0 {
		return
	}

	command := strings.ToLower(segments[0])
	if command != "expire" {
		return
	}

	handlers := l.snapshotHandlers()

	for _, key := range segments[1:] {
		for _, h := range handlers {
			h(Event{CacheKey: key})
		}
	}
}

func (l *Listener) snapshotHandlers() []EventHandler {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]EventHandler(nil), l.handlers...)
}

// splitFrame decodes a frame made of repeated 4-byte little-endian
// byte-length prefixes followed by a UTF-16LE segment, per spec.md §6.
func splitFrame(payload []byte) ([]string, error) {
	const prefixLen = 4

	var out []string

	for len(payload) > 0 {
		if len(payload) < prefixLen {
			return nil, errTruncatedLengthPrefix
		}

		segLen := binary.LittleEndian.Uint32(payload)
		payload = payload[prefixLen:]

		if uint64(len(payload)) < uint64(segLen) {
			return nil, errTruncatedSegment
		}

		segment, err := wireformat.DecodeUTF16LE(payload[:segLen])
		if err != nil {
			return nil, err
		}

		out = append(out, segment)
		payload = payload[segLen:]
	}

	return out, nil
}
