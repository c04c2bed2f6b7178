package dache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/dache/internal/bucket"
	"github.com/hyp3rd/dache/internal/discovery"
	"github.com/hyp3rd/dache/internal/hostconn"
	"github.com/hyp3rd/dache/internal/invalidation"
	"github.com/hyp3rd/dache/internal/libs/serializer"
	"github.com/hyp3rd/dache/internal/routing"
	"github.com/hyp3rd/dache/internal/sentinel"
)

// retryBackoff paces the Facade's retry-forever loop between failed
// attempts so a fully offline fleet does not spin a CPU core.
const retryBackoff = 50 * time.Millisecond

// Client is the Cache Client Facade: the public entry point callers use to
// read and write the distributed cache. T is the value type every
// operation on this Client instance serializes to and from — construct a
// separate Client[T] per value type, the way the teacher's generic cache
// type is instantiated once per backend value type.
type Client[T any] struct {
	cfg        Config
	table      *routing.Table
	serializer serializer.ISerializer
	listener   *invalidation.Listener
	discovery  *discovery.Adapter
	subs       *subscribers

	ctx    context.Context //nolint:containedctx
	cancel context.CancelFunc

	mgmt *managementServer

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// New constructs a Client[T], assembling the Routing Table from the
// configured fleet, dialing every Host Connection, and starting discovery
// and the management HTTP surface if configured.
func New[T any](options ...Option) (*Client[T], error) {
	cfg := NewConfig()
	ApplyOptions(&cfg, options...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ser, err := serializer.New(cfg.SerializerName)
	if err != nil {
		return nil, ewrap.Wrap(err, "resolve serializer")
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Client[T]{
		cfg:        cfg,
		serializer: ser,
		subs:       &subscribers{},
		listener:   invalidation.New(cfg.Logger),
		ctx:        ctx,
		cancel:     cancel,
	}

	c.listener.OnExpired(func(e invalidation.Event) {
		c.subs.fireCacheItemExpired(CacheItemExpiredEvent{CacheKey: e.CacheKey})
	})

	width := cfg.HostRedundancyLayers + 1
	c.table = routing.NewTable(width, cfg.Logger)

	c.table.OnHostDisconnected(func(e routing.HostEvent) {
		c.subs.fireHostDisconnected(HostDisconnectedEvent{Endpoint: e.Endpoint})
	})
	c.table.OnHostReconnected(func(e routing.HostEvent) {
		c.subs.fireHostReconnected(HostReconnectedEvent{Endpoint: e.Endpoint})
	})

	conns := make([]*hostconn.Connection, 0, len(cfg.CacheHosts))

	for _, ep := range cfg.CacheHosts {
		conn := hostconn.New(ep, c.newTransport(ep), cfg.HostReconnectInterval, cfg.Logger)
		conn.OnMessage(func(_ *hostconn.Connection, payload []byte) { c.listener.Handle(conn, payload) })
		conns = append(conns, conn)
	}

	c.table.Assemble(conns)

	for _, conn := range conns {
		go func(conn *hostconn.Connection) {
			if err := conn.Connect(ctx); err != nil {
				cfg.Logger.Printf("warn: initial connect to %s failed: %v", conn.Endpoint(), err)
			}
		}(conn)
	}

	if cfg.AutoDetectCacheHosts {
		c.discovery = discovery.New(c.table, c.newTransport, cfg.HostReconnectInterval, cfg.Logger)

		go func() {
			if err := c.discovery.Run(ctx, cfg.UDPMulticastIP, cfg.UDPMulticastPort); err != nil {
				cfg.Logger.Printf("warn: discovery adapter stopped: %v", err)
			}
		}()
	}

	if cfg.ManagementHTTPAddr != "" {
		c.mgmt = newManagementServer(c.table, cfg.Logger)

		go func() {
			if err := c.mgmt.Listen(cfg.ManagementHTTPAddr); err != nil {
				cfg.Logger.Printf("warn: management http server stopped: %v", err)
			}
		}()
	}

	return c, nil
}

// newTransport builds the wire Transport for endpoint, using the
// configured factory or a default HTTP/JSON transport against
// http://<endpoint>.
func (c *Client[T]) newTransport(ep hostconn.Endpoint) hostconn.Transport {
	if c.cfg.NewTransport != nil {
		return c.cfg.NewTransport(ep)
	}

	const defaultPollInterval = 2 * time.Second

	return hostconn.NewHTTPTransport("http://"+ep.String(), c.cfg.CommunicationTimeout, defaultPollInterval)
}

// OnHostDisconnected subscribes fn to HostDisconnected events.
func (c *Client[T]) OnHostDisconnected(fn HostDisconnectedHandler) { c.subs.addHostDisconnected(fn) }

// OnHostReconnected subscribes fn to HostReconnected events.
func (c *Client[T]) OnHostReconnected(fn HostReconnectedHandler) { c.subs.addHostReconnected(fn) }

// OnCacheItemExpired subscribes fn to CacheItemExpired events.
func (c *Client[T]) OnCacheItemExpired(fn CacheItemExpiredHandler) { c.subs.addCacheItemExpired(fn) }

// TryGet fetches a single key, deserializing the raw value into T.
// Returns (zero, false, nil) on a miss or a deserialization failure
// (logged, not an error to the caller) and (zero, false, err) for
// precondition violations, fleet exhaustion, a Client that has been shut
// down, or a context that ends while a retry is waiting.
func (c *Client[T]) TryGet(ctx context.Context, key string) (T, bool, error) {
	var zero T

	if strings.TrimSpace(key) == "" {
		return zero, false, ewrap.Wrap(sentinel.ErrArgumentInvalid, "key")
	}

	var (
		values [][]byte
	)

	err := c.retryForever(ctx, key, func(b *bucket.Bucket) error {
		conn := b.Next()
		if conn == nil {
			return ewrap.Wrap(sentinel.ErrTransport, "bucket has no reachable member")
		}

		out, getErr := conn.Get(ctx, []string{key})
		if getErr != nil {
			return getErr
		}

		values = out

		return nil
	})
	if err != nil {
		return zero, false, err
	}

	if len(values) == 0 || values[0] == nil {
		return zero, false, nil
	}

	var out T

	if unmarshalErr := c.serializer.Unmarshal(values[0], &out); unmarshalErr != nil {
		c.cfg.Logger.Printf("warn: deserialize key %q failed: %v", key, unmarshalErr)

		return zero, false, nil
	}

	return out, true, nil
}

// Get fetches multiple keys, grouping by target Bucket and concatenating
// per-Bucket results in Bucket iteration order. Items that fail to
// deserialize are logged and filled with T's zero value rather than
// aborting the call.
func (c *Client[T]) Get(ctx context.Context, keys []string) ([]T, error) {
	if len(keys) == 0 {
		return nil, ewrap.Wrap(sentinel.ErrArgumentInvalid, "keys")
	}

	raw := make([][]byte, 0, len(keys))

	err := c.retryForeverGrouped(ctx, keys, func(b *bucket.Bucket, groupKeys []string) error {
		conn := b.Next()
		if conn == nil {
			return ewrap.Wrap(sentinel.ErrTransport, "bucket has no reachable member")
		}

		out, getErr := conn.Get(ctx, groupKeys)
		if getErr != nil {
			return getErr
		}

		raw = append(raw, out...)

		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]T, len(raw))

	for i, v := range raw {
		if v == nil {
			continue
		}

		if unmarshalErr := c.serializer.Unmarshal(v, &out[i]); unmarshalErr != nil {
			c.cfg.Logger.Printf("warn: deserialize index %d failed: %v", i, unmarshalErr)
		}
	}

	return out, nil
}

// GetTagged fetches every item under tag, matching pattern ("*" if empty).
func (c *Client[T]) GetTagged(ctx context.Context, tag, pattern string) ([]T, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, ewrap.Wrap(sentinel.ErrArgumentInvalid, "tag")
	}

	pattern = defaultPattern(pattern)

	var raw [][]byte

	err := c.retryForever(ctx, tag, func(b *bucket.Bucket) error {
		conn := b.Next()
		if conn == nil {
			return ewrap.Wrap(sentinel.ErrTransport, "bucket has no reachable member")
		}

		out, getErr := conn.GetTagged(ctx, []string{tag}, pattern)
		if getErr != nil {
			return getErr
		}

		raw = out

		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]T, len(raw))

	for i, v := range raw {
		if v == nil {
			continue
		}

		if unmarshalErr := c.serializer.Unmarshal(v, &out[i]); unmarshalErr != nil {
			c.cfg.Logger.Printf("warn: deserialize tagged index %d failed: %v", i, unmarshalErr)
		}
	}

	return out, nil
}

// WriteOption configures a single AddOrUpdate call's transport-level
// options.
type WriteOption func(*hostconn.WriteOptions)

// WithTag sets the tag co-locating this write with others sharing it.
func WithTag(tag string) WriteOption {
	return func(o *hostconn.WriteOptions) { o.TagName = tag }
}

// WithAbsoluteExpiration sets an absolute expiration. Takes precedence
// over a sliding expiration set on the same call, per spec.md §4.4.
func WithAbsoluteExpiration(t time.Time) WriteOption {
	return func(o *hostconn.WriteOptions) { o.AbsoluteExpiration = t }
}

// WithSlidingExpiration sets a sliding expiration. Ignored if an absolute
// expiration is also set on the same call.
func WithSlidingExpiration(d time.Duration) WriteOption {
	return func(o *hostconn.WriteOptions) { o.SlidingExpiration = d }
}

// WithNotifyRemoved requests a removal notification from the host.
// Ignored when the item is interned.
func WithNotifyRemoved() WriteOption {
	return func(o *hostconn.WriteOptions) { o.NotifyRemoved = true }
}

// WithInterned marks the item interned: expirations and remove
// notifications are ignored for it.
func WithInterned() WriteOption {
	return func(o *hostconn.WriteOptions) { o.IsInterned = true }
}

func resolveWriteOptions(opts []WriteOption) hostconn.WriteOptions {
	var o hostconn.WriteOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !o.AbsoluteExpiration.IsZero() {
		o.SlidingExpiration = 0
	}

	if o.IsInterned {
		o.AbsoluteExpiration = time.Time{}
		o.SlidingExpiration = 0
		o.NotifyRemoved = false
	}

	return o
}

// AddOrUpdate writes a single key/value, fanning out to every replica in
// the target Bucket. A serialization failure is fatal for this call and
// surfaces immediately without retry.
func (c *Client[T]) AddOrUpdate(ctx context.Context, key string, value T, opts ...WriteOption) error {
	if strings.TrimSpace(key) == "" {
		return ewrap.Wrap(sentinel.ErrArgumentInvalid, "key")
	}

	o := resolveWriteOptions(opts)

	payload, err := c.serializer.Marshal(value)
	if err != nil {
		return ewrap.Wrap(sentinel.ErrSerialization, err.Error())
	}

	routingString := key
	if o.TagName != "" {
		routingString = o.TagName
	}

	item := hostconn.KeyValue{Key: key, Value: payload}

	return c.retryForever(ctx, routingString, func(b *bucket.Bucket) error {
		return b.ForAll(func(conn *hostconn.Connection) error {
			return conn.AddOrUpdate(ctx, []hostconn.KeyValue{item}, o)
		})
	})
}

// Entry is one item of a batch AddOrUpdate call; each entry routes
// independently by its own tag (if set) or key.
type Entry[T any] struct {
	Key     string
	Value   T
	Options []WriteOption
}

// AddOrUpdateBatch writes multiple entries, grouping by target Bucket.
// Entries that fail to serialize are skipped (logged) rather than failing
// the whole batch.
func (c *Client[T]) AddOrUpdateBatch(ctx context.Context, entries []Entry[T]) error {
	if len(entries) == 0 {
		return ewrap.Wrap(sentinel.ErrArgumentInvalid, "entries")
	}

	type writeJob struct {
		routingString string
		item          hostconn.KeyValue
		opts          hostconn.WriteOptions
	}

	jobs := make([]writeJob, 0, len(entries))

	for _, e := range entries {
		if strings.TrimSpace(e.Key) == "" {
			c.cfg.Logger.Printf("warn: skipping batch entry with blank key")

			continue
		}

		o := resolveWriteOptions(e.Options)

		payload, err := c.serializer.Marshal(e.Value)
		if err != nil {
			c.cfg.Logger.Printf("warn: skipping batch entry %q: serialize failed: %v", e.Key, err)

			continue
		}

		routingString := e.Key
		if o.TagName != "" {
			routingString = o.TagName
		}

		jobs = append(jobs, writeJob{routingString: routingString, item: hostconn.KeyValue{Key: e.Key, Value: payload}, opts: o})
	}

	for {
		if c.isClosed() {
			return sentinel.ErrClientClosed
		}

		buckets := map[*bucket.Bucket][]writeJob{}

		for _, j := range jobs {
			b, err := c.table.Lookup(j.routingString)
			if err != nil {
				return err
			}

			buckets[b] = append(buckets[b], j)
		}

		var attemptErr error

		for b, group := range buckets {
			for _, j := range group {
				attemptErr = b.ForAll(func(conn *hostconn.Connection) error {
					return conn.AddOrUpdate(ctx, []hostconn.KeyValue{j.item}, j.opts)
				})
				if attemptErr != nil {
					break
				}
			}

			if attemptErr != nil {
				break
			}
		}

		if attemptErr == nil {
			return nil
		}

		if waitErr := c.waitBeforeRetry(ctx); waitErr != nil {
			return waitErr
		}
	}
}

// Remove deletes a single key from every replica in its target Bucket.
func (c *Client[T]) Remove(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ewrap.Wrap(sentinel.ErrArgumentInvalid, "key")
	}

	return c.retryForever(ctx, key, func(b *bucket.Bucket) error {
		return b.ForAll(func(conn *hostconn.Connection) error {
			return conn.Remove(ctx, []string{key})
		})
	})
}

// RemoveBatch deletes multiple keys, grouping by target Bucket.
func (c *Client[T]) RemoveBatch(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return ewrap.Wrap(sentinel.ErrArgumentInvalid, "keys")
	}

	return c.retryForeverGrouped(ctx, keys, func(b *bucket.Bucket, groupKeys []string) error {
		return b.ForAll(func(conn *hostconn.Connection) error {
			return conn.Remove(ctx, groupKeys)
		})
	})
}

// RemoveTagged deletes every item under tag matching pattern.
func (c *Client[T]) RemoveTagged(ctx context.Context, tag, pattern string) error {
	if strings.TrimSpace(tag) == "" || strings.TrimSpace(pattern) == "" {
		return ewrap.Wrap(sentinel.ErrArgumentInvalid, "tag")
	}

	return c.retryForever(ctx, tag, func(b *bucket.Bucket) error {
		return b.ForAll(func(conn *hostconn.Connection) error {
			return conn.RemoveTagged(ctx, []string{tag}, pattern)
		})
	})
}

// RemoveTaggedBatch deletes every item under any of tags matching pattern,
// grouping by target Bucket.
func (c *Client[T]) RemoveTaggedBatch(ctx context.Context, tags []string, pattern string) error {
	if len(tags) == 0 {
		return ewrap.Wrap(sentinel.ErrArgumentInvalid, "tags")
	}

	if strings.TrimSpace(pattern) == "" {
		return ewrap.Wrap(sentinel.ErrArgumentInvalid, "pattern")
	}

	return c.retryForeverGrouped(ctx, tags, func(b *bucket.Bucket, groupTags []string) error {
		return b.ForAll(func(conn *hostconn.Connection) error {
			return conn.RemoveTagged(ctx, groupTags, pattern)
		})
	})
}

// GetCacheKeys lists keys across the entire fleet matching pattern.
func (c *Client[T]) GetCacheKeys(ctx context.Context, pattern string) ([]string, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, ewrap.Wrap(sentinel.ErrArgumentInvalid, "pattern")
	}

	pattern = defaultPattern(pattern)

	var out []string

	err := c.retryAllBuckets(ctx, func(b *bucket.Bucket) error {
		conn := b.Next()
		if conn == nil {
			return nil
		}

		keys, getErr := conn.GetCacheKeys(ctx, pattern)
		if getErr != nil {
			return getErr
		}

		out = append(out, keys...)

		return nil
	})

	return out, err
}

// GetCacheKeysTagged routes by tag and asks one member of that tag's
// Bucket for every key matching pattern. The tag selects the Bucket only;
// it is not sent to the host, so keys on that host under other tags (or
// none) are listed as well.
func (c *Client[T]) GetCacheKeysTagged(ctx context.Context, tag, pattern string) ([]string, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, ewrap.Wrap(sentinel.ErrArgumentInvalid, "tag")
	}

	if strings.TrimSpace(pattern) == "" {
		return nil, ewrap.Wrap(sentinel.ErrArgumentInvalid, "pattern")
	}

	var out []string

	err := c.retryForever(ctx, tag, func(b *bucket.Bucket) error {
		conn := b.Next()
		if conn == nil {
			return ewrap.Wrap(sentinel.ErrTransport, "bucket has no reachable member")
		}

		keys, getErr := conn.GetCacheKeys(ctx, pattern)
		if getErr != nil {
			return getErr
		}

		out = keys

		return nil
	})

	return out, err
}

// GetCacheKeysTaggedBatch lists keys under any of tags matching pattern,
// grouping by target Bucket.
func (c *Client[T]) GetCacheKeysTaggedBatch(ctx context.Context, tags []string, pattern string) ([]string, error) {
	if len(tags) == 0 {
		return nil, ewrap.Wrap(sentinel.ErrArgumentInvalid, "tags")
	}

	var out []string

	err := c.retryForeverGrouped(ctx, tags, func(b *bucket.Bucket, groupTags []string) error {
		conn := b.Next()
		if conn == nil {
			return ewrap.Wrap(sentinel.ErrTransport, "bucket has no reachable member")
		}

		keys, getErr := conn.GetCacheKeysTagged(ctx, groupTags, pattern)
		if getErr != nil {
			return getErr
		}

		out = append(out, keys...)

		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(out) == 0 {
		return nil, nil
	}

	return out, nil
}

// Clear removes every item on every host in the fleet.
func (c *Client[T]) Clear(ctx context.Context) error {
	return c.retryAllBuckets(ctx, func(b *bucket.Bucket) error {
		return b.ForAll(func(conn *hostconn.Connection) error {
			return conn.Clear(ctx)
		})
	})
}

// Shutdown disconnects every Host Connection and stops discovery and the
// management HTTP surface. It is synchronous and idempotent; calling it
// more than once is a no-op after the first.
func (c *Client[T]) Shutdown() error {
	var err error

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.cancel()

		if c.discovery != nil {
			c.discovery.Stop()
		}

		if c.mgmt != nil {
			if shutdownErr := c.mgmt.Shutdown(); shutdownErr != nil {
				c.cfg.Logger.Printf("warn: management http shutdown: %v", shutdownErr)
			}
		}

		for _, b := range c.table.Buckets() {
			for _, conn := range b.Online() {
				if discErr := conn.Disconnect(); discErr != nil {
					err = discErr
				}
			}

			for _, conn := range b.Offline() {
				if discErr := conn.Disconnect(); discErr != nil {
					err = discErr
				}
			}
		}
	})

	return err
}

func defaultPattern(pattern string) string {
	if pattern == "" {
		return "*"
	}

	return pattern
}

// groupByRoutingString partitions items by the Bucket their routing string
// (the item itself, for keys/tags) resolves to, preserving each Bucket's
// items in input order.
func (c *Client[T]) groupByRoutingString(items []string) (map[*bucket.Bucket][]string, error) {
	groups := map[*bucket.Bucket][]string{}

	for _, s := range items {
		b, err := c.table.Lookup(s)
		if err != nil {
			return nil, err
		}

		groups[b] = append(groups[b], s)
	}

	return groups, nil
}

// retryForever resolves routingString to a Bucket and invokes attempt,
// recomputing the lookup and retrying on transport failure until it
// succeeds or the whole fleet is exhausted.
func (c *Client[T]) retryForever(ctx context.Context, routingString string, attempt func(*bucket.Bucket) error) error {
	for {
		if c.isClosed() {
			return sentinel.ErrClientClosed
		}

		b, err := c.table.Lookup(routingString)
		if err != nil {
			return err
		}

		err = attempt(b)
		if err == nil {
			return nil
		}

		if waitErr := c.waitBeforeRetry(ctx); waitErr != nil {
			return waitErr
		}
	}
}

// retryForeverGrouped retries a multi-Bucket operation over items as a
// unit: on any group's failure the whole operation is retried, per
// spec.md §4.4's "retry whole operation" rule for batches. Groups are
// re-derived from items on every iteration, matching retryForever's
// re-Lookup-every-attempt pattern — a Bucket that goes fully offline or a
// routing string that moves to a different Bucket mid-retry is picked up
// on the next attempt instead of being retried forever against a stale
// *bucket.Bucket pointer.
func (c *Client[T]) retryForeverGrouped(
	ctx context.Context,
	items []string,
	attempt func(*bucket.Bucket, []string) error,
) error {
	for {
		if c.isClosed() {
			return sentinel.ErrClientClosed
		}

		groups, err := c.groupByRoutingString(items)
		if err != nil {
			return err
		}

		var attemptErr error

		for b, group := range groups {
			if err := attempt(b, group); err != nil {
				attemptErr = err

				break
			}
		}

		if attemptErr == nil {
			return nil
		}

		if waitErr := c.waitBeforeRetry(ctx); waitErr != nil {
			return waitErr
		}
	}
}

// retryAllBuckets invokes attempt on every Bucket currently known to the
// Table, retrying the whole fan-out on failure.
func (c *Client[T]) retryAllBuckets(ctx context.Context, attempt func(*bucket.Bucket) error) error {
	for {
		if c.isClosed() {
			return sentinel.ErrClientClosed
		}

		buckets := c.table.Buckets()
		if len(buckets) == 0 {
			return sentinel.ErrNoCacheHostsAvailable
		}

		var attemptErr error

		for _, b := range buckets {
			if err := attempt(b); err != nil {
				attemptErr = err

				break
			}
		}

		if attemptErr == nil {
			return nil
		}

		if waitErr := c.waitBeforeRetry(ctx); waitErr != nil {
			return waitErr
		}
	}
}

func (c *Client[T]) waitBeforeRetry(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(retryBackoff):
		return nil
	}
}

// isClosed reports whether Shutdown has already run. Every retry loop
// checks it on each iteration so an operation racing a concurrent Shutdown
// returns ErrClientClosed promptly instead of retrying against a fleet the
// Client has already torn down.
func (c *Client[T]) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.closed
}
