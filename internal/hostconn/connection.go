package hostconn

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/dache/internal/logging"
	"github.com/hyp3rd/dache/internal/sentinel"
)

// State is the observable connectivity state of a Connection.
type State int32

// Connection states.
const (
	Disconnected State = iota
	Connected
)

// DisconnectedHandler is invoked when a Connection transitions from
// Connected to Disconnected: a failed call, the transport's message
// channel closing, or an explicit Disconnect. A failed dial or redial of
// a Connection that is already Disconnected does not invoke it.
type DisconnectedHandler func(c *Connection)

// ReconnectedHandler is invoked when a Connection transitions back to
// Connected after having been Disconnected.
type ReconnectedHandler func(c *Connection)

// MessageHandler is invoked for every inbound frame the transport pushes.
type MessageHandler func(c *Connection, payload []byte)

// Connection owns a Transport to a single cache host and drives its own
// reconnection; callers (the Routing Table) only ever observe its events.
// Reconnection keeps running on ReconnectInterval until Disconnect is
// called explicitly — a transient Get/AddOrUpdate failure never stops it.
type Connection struct {
	endpoint          Endpoint
	id                string
	transport         Transport
	reconnectInterval time.Duration
	logger            logging.Logger

	mu    sync.RWMutex
	state State

	stopCh  chan struct{}
	stopped bool

	handlersMu     sync.RWMutex
	onDisconnected []DisconnectedHandler
	onReconnected  []ReconnectedHandler
	onMessage      []MessageHandler
}

// New creates a Connection bound to endpoint and transport. It does not
// dial; call Connect to do so.
func New(endpoint Endpoint, transport Transport, reconnectInterval time.Duration, logger logging.Logger) *Connection {
	if logger == nil {
		logger = logging.Nop{}
	}

	return &Connection{
		endpoint:          endpoint,
		id:                deriveID(endpoint),
		transport:         transport,
		reconnectInterval: reconnectInterval,
		logger:            logger,
		state:             Disconnected,
		stopCh:            make(chan struct{}),
	}
}

// deriveID derives a short, stable hex identifier from the endpoint for log
// correlation. It never participates in routing decisions.
func deriveID(e Endpoint) string {
	const idBytes = 8

	hv := xxhash.Sum64String(e.String())

	buf := make([]byte, idBytes)
	for i := range idBytes {
		buf[i] = byte(hv >> (8 * i)) //nolint:mnd
	}

	const hexDigits = "0123456789abcdef"

	out := make([]byte, 0, idBytes*2)
	for _, b := range buf {
		out = append(out, hexDigits[b>>4], hexDigits[b&0x0f])
	}

	return string(out)
}

// Endpoint returns the connection's fixed identity.
func (c *Connection) Endpoint() Endpoint { return c.endpoint }

// ID returns the derived correlation id.
func (c *Connection) ID() string { return c.id }

// State returns the current observable state.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state
}

// OnDisconnected registers a Disconnected handler.
func (c *Connection) OnDisconnected(fn DisconnectedHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.onDisconnected = append(c.onDisconnected, fn)
}

// OnReconnected registers a Reconnected handler.
func (c *Connection) OnReconnected(fn ReconnectedHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.onReconnected = append(c.onReconnected, fn)
}

// OnMessage registers an inbound-message handler.
func (c *Connection) OnMessage(fn MessageHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.onMessage = append(c.onMessage, fn)
}

// Connect dials the transport. On failure it schedules reconnection and
// returns the dial error; on success it starts the inbound message pump.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.stopped = false
	c.mu.Unlock()

	err := c.transport.Dial(ctx)
	if err != nil {
		c.markDisconnected()
		c.scheduleReconnect(ctx)

		return ewrap.Wrap(err, "dial "+c.endpoint.String())
	}

	c.markConnected()
	go c.pumpMessages(ctx)

	return nil
}

// Disconnect stops reconnection permanently and tears down the transport.
// It is idempotent and fires the same Disconnected event a transport
// failure would, so callers observing Connection (the Routing Table) see
// this Connection go offline the same way they would for any other
// disconnect.
func (c *Connection) Disconnect() error {
	c.mu.Lock()

	if c.stopped {
		c.mu.Unlock()

		return nil
	}

	c.stopped = true
	close(c.stopCh)
	c.stopCh = make(chan struct{})

	c.mu.Unlock()

	c.markDisconnected()

	return c.transport.Close()
}

func (c *Connection) markConnected() {
	c.mu.Lock()
	was := c.state
	c.state = Connected
	c.mu.Unlock()

	if was == Disconnected {
		c.fireReconnected()
	}
}

func (c *Connection) markDisconnected() {
	c.mu.Lock()
	was := c.state
	c.state = Disconnected
	c.mu.Unlock()

	if was == Connected {
		c.fireDisconnected()
	}
}

func (c *Connection) fireDisconnected() {
	c.logger.Printf("warn: host %s disconnected", c.endpoint)

	c.handlersMu.RLock()
	handlers := append([]DisconnectedHandler(nil), c.onDisconnected...)
	c.handlersMu.RUnlock()

	for _, h := range handlers {
		h(c)
	}
}

func (c *Connection) fireReconnected() {
	c.logger.Printf("host %s reconnected", c.endpoint)

	c.handlersMu.RLock()
	handlers := append([]ReconnectedHandler(nil), c.onReconnected...)
	c.handlersMu.RUnlock()

	for _, h := range handlers {
		h(c)
	}
}

// scheduleReconnect retries Dial on reconnectInterval until it succeeds or
// Disconnect is called. It runs on its own goroutine, never holding any
// Routing Table lock.
func (c *Connection) scheduleReconnect(ctx context.Context) {
	interval := c.reconnectInterval
	if interval <= 0 {
		interval = 5 * time.Second //nolint:mnd
	}

	c.mu.RLock()
	stop := c.stopCh
	c.mu.RUnlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := c.transport.Dial(ctx)
				if err == nil {
					c.markConnected()

					go c.pumpMessages(ctx)

					return
				}

				c.logger.Printf("warn: reconnect to %s failed: %v", c.endpoint, err)
			}
		}
	}()
}

// pumpMessages forwards inbound frames to registered handlers until the
// transport's channel closes, which is treated as a disconnect.
func (c *Connection) pumpMessages(ctx context.Context) {
	msgs := c.transport.Messages()
	if msgs == nil {
		return
	}

	c.mu.RLock()
	stop := c.stopCh
	c.mu.RUnlock()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case payload, ok := <-msgs:
			if !ok {
				c.markDisconnected()
				c.scheduleReconnect(ctx)

				return
			}

			c.handlersMu.RLock()
			handlers := append([]MessageHandler(nil), c.onMessage...)
			c.handlersMu.RUnlock()

			for _, h := range handlers {
				h(c, payload)
			}
		}
	}
}

// guardConnected returns ErrTransport if the connection is not currently
// Connected, sparing callers a round trip to a dead transport.
func (c *Connection) guardConnected() error {
	if c.State() != Connected {
		return ewrap.Wrap(sentinel.ErrTransport, "host "+c.endpoint.String()+" not connected")
	}

	return nil
}

// Get delegates to the transport, marking the connection disconnected and
// scheduling reconnection on failure.
func (c *Connection) Get(ctx context.Context, keys []string) ([][]byte, error) {
	if err := c.guardConnected(); err != nil {
		return nil, err
	}

	out, err := c.transport.Get(ctx, keys)

	return out, c.wrapTransportErr(ctx, err)
}

// AddOrUpdate delegates to the transport.
func (c *Connection) AddOrUpdate(ctx context.Context, items []KeyValue, opts WriteOptions) error {
	if err := c.guardConnected(); err != nil {
		return err
	}

	return c.wrapTransportErr(ctx, c.transport.AddOrUpdate(ctx, items, opts))
}

// Remove delegates to the transport.
func (c *Connection) Remove(ctx context.Context, keys []string) error {
	if err := c.guardConnected(); err != nil {
		return err
	}

	return c.wrapTransportErr(ctx, c.transport.Remove(ctx, keys))
}

// GetTagged delegates to the transport.
func (c *Connection) GetTagged(ctx context.Context, tags []string, pattern string) ([][]byte, error) {
	if err := c.guardConnected(); err != nil {
		return nil, err
	}

	out, err := c.transport.GetTagged(ctx, tags, pattern)

	return out, c.wrapTransportErr(ctx, err)
}

// RemoveTagged delegates to the transport.
func (c *Connection) RemoveTagged(ctx context.Context, tags []string, pattern string) error {
	if err := c.guardConnected(); err != nil {
		return err
	}

	return c.wrapTransportErr(ctx, c.transport.RemoveTagged(ctx, tags, pattern))
}

// GetCacheKeys delegates to the transport.
func (c *Connection) GetCacheKeys(ctx context.Context, pattern string) ([]string, error) {
	if err := c.guardConnected(); err != nil {
		return nil, err
	}

	out, err := c.transport.GetCacheKeys(ctx, pattern)

	return out, c.wrapTransportErr(ctx, err)
}

// GetCacheKeysTagged delegates to the transport.
func (c *Connection) GetCacheKeysTagged(ctx context.Context, tags []string, pattern string) ([]string, error) {
	if err := c.guardConnected(); err != nil {
		return nil, err
	}

	out, err := c.transport.GetCacheKeysTagged(ctx, tags, pattern)

	return out, c.wrapTransportErr(ctx, err)
}

// Clear delegates to the transport.
func (c *Connection) Clear(ctx context.Context) error {
	if err := c.guardConnected(); err != nil {
		return err
	}

	return c.wrapTransportErr(ctx, c.transport.Clear(ctx))
}

// wrapTransportErr marks the connection disconnected and schedules a
// reconnect when a call fails, then wraps the error as a transport failure
// for the Facade's retry logic.
func (c *Connection) wrapTransportErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	c.markDisconnected()
	c.scheduleReconnect(ctx)

	return ewrap.Wrap(sentinel.ErrTransport, err.Error())
}
