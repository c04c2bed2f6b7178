package dache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/longbridgeapp/assert"

	"github.com/hyp3rd/dache"
	"github.com/hyp3rd/dache/internal/hostconn"
)

// memTransport is an in-memory hostconn.Transport double shared across the
// facade's integration tests, avoiding any real network dial.
type memTransport struct {
	mu      sync.Mutex
	dialErr error
	getErr  error
	values  map[string][]byte
	tagged  map[string][]string
}

func newMemTransport() *memTransport {
	return &memTransport{values: map[string][]byte{}, tagged: map[string][]string{}}
}

func (m *memTransport) Dial(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.dialErr
}

func (m *memTransport) Close() error { return nil }

func (m *memTransport) Get(_ context.Context, keys []string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.values[k]
	}

	return out, nil
}

func (m *memTransport) AddOrUpdate(_ context.Context, items []hostconn.KeyValue, opts hostconn.WriteOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, it := range items {
		m.values[it.Key] = it.Value

		if opts.TagName != "" {
			m.tagged[opts.TagName] = append(m.tagged[opts.TagName], it.Key)
		}
	}

	return nil
}

func (m *memTransport) Remove(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.values, k)
	}

	return nil
}

func (m *memTransport) GetTagged(_ context.Context, tags []string, _ string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out [][]byte

	for _, tag := range tags {
		for _, k := range m.tagged[tag] {
			out = append(out, m.values[k])
		}
	}

	return out, nil
}

func (m *memTransport) RemoveTagged(_ context.Context, tags []string, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tag := range tags {
		for _, k := range m.tagged[tag] {
			delete(m.values, k)
		}

		delete(m.tagged, tag)
	}

	return nil
}

func (m *memTransport) GetCacheKeys(context.Context, string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.values))
	for k := range m.values {
		out = append(out, k)
	}

	return out, nil
}

func (m *memTransport) GetCacheKeysTagged(_ context.Context, tags []string, _ string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string

	for _, tag := range tags {
		out = append(out, m.tagged[tag]...)
	}

	return out, nil
}

func (m *memTransport) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values = map[string][]byte{}
	m.tagged = map[string][]string{}

	return nil
}

func (m *memTransport) Messages() <-chan []byte { return nil }

func newTestClient(t *testing.T, hosts ...hostconn.Endpoint) (*dache.Client[string], map[hostconn.Endpoint]*memTransport) {
	t.Helper()

	transports := make(map[hostconn.Endpoint]*memTransport, len(hosts))
	for _, h := range hosts {
		transports[h] = newMemTransport()
	}

	client, err := dache.New[string](
		dache.WithCacheHosts(hosts...),
		dache.WithTransportFactory(func(ep hostconn.Endpoint) hostconn.Transport { return transports[ep] }),
	)
	assert.Nil(t, err)

	waitConnected(t, client)

	return client, transports
}

func waitConnected(t *testing.T, client *dache.Client[string]) {
	t.Helper()

	deadline := time.After(time.Second)

	for {
		_, _, err := client.TryGet(context.Background(), "__warmup__")
		if err == nil {
			return
		}

		select {
		case <-deadline:
			t.Fatalf("client never reached a connected state: %v", err)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestClient_AddOrUpdateThenTryGet(t *testing.T) {
	client, _ := newTestClient(t, hostconn.Endpoint{Address: "10.0.0.1", Port: 9000})
	defer func() { _ = client.Shutdown() }()

	err := client.AddOrUpdate(context.Background(), "order-1", "hello")
	assert.Nil(t, err)

	val, ok, err := client.TryGet(context.Background(), "order-1")
	assert.Nil(t, err)
	assert.Equal(t, true, ok)
	assert.Equal(t, "hello", val)
}

func TestClient_TryGetMissingKey(t *testing.T) {
	client, _ := newTestClient(t, hostconn.Endpoint{Address: "10.0.0.1", Port: 9000})
	defer func() { _ = client.Shutdown() }()

	_, ok, err := client.TryGet(context.Background(), "does-not-exist")
	assert.Nil(t, err)
	assert.Equal(t, false, ok)
}

func TestClient_TaggedWriteAndReadBackTogether(t *testing.T) {
	client, _ := newTestClient(t, hostconn.Endpoint{Address: "10.0.0.1", Port: 9000})
	defer func() { _ = client.Shutdown() }()

	assert.Nil(t, client.AddOrUpdate(context.Background(), "p-1", "a", dache.WithTag("promo")))
	assert.Nil(t, client.AddOrUpdate(context.Background(), "p-2", "b", dache.WithTag("promo")))

	out, err := client.GetTagged(context.Background(), "promo", "")
	assert.Nil(t, err)
	assert.Equal(t, 2, len(out))
}

func TestClient_RemoveDeletesKey(t *testing.T) {
	client, _ := newTestClient(t, hostconn.Endpoint{Address: "10.0.0.1", Port: 9000})
	defer func() { _ = client.Shutdown() }()

	assert.Nil(t, client.AddOrUpdate(context.Background(), "order-9", "v"))
	assert.Nil(t, client.Remove(context.Background(), "order-9"))

	_, ok, err := client.TryGet(context.Background(), "order-9")
	assert.Nil(t, err)
	assert.Equal(t, false, ok)
}

func TestClient_AddOrUpdateRejectsBlankKey(t *testing.T) {
	client, _ := newTestClient(t, hostconn.Endpoint{Address: "10.0.0.1", Port: 9000})
	defer func() { _ = client.Shutdown() }()

	err := client.AddOrUpdate(context.Background(), "", "v")
	assert.NotNil(t, err)
}

func TestClient_AddOrUpdateBatchSkipsBlankKeyButWritesRest(t *testing.T) {
	client, _ := newTestClient(t, hostconn.Endpoint{Address: "10.0.0.1", Port: 9000})
	defer func() { _ = client.Shutdown() }()

	err := client.AddOrUpdateBatch(context.Background(), []dache.Entry[string]{
		{Key: "ok-1", Value: "a"},
		{Key: "", Value: "skipped"},
		{Key: "ok-2", Value: "b"},
	})
	assert.Nil(t, err)

	v1, ok, _ := client.TryGet(context.Background(), "ok-1")
	assert.Equal(t, true, ok)
	assert.Equal(t, "a", v1)

	v2, ok, _ := client.TryGet(context.Background(), "ok-2")
	assert.Equal(t, true, ok)
	assert.Equal(t, "b", v2)
}

func TestClient_ShutdownIsIdempotent(t *testing.T) {
	client, _ := newTestClient(t, hostconn.Endpoint{Address: "10.0.0.1", Port: 9000})

	assert.Nil(t, client.Shutdown())
	assert.Nil(t, client.Shutdown())
}

func TestClient_OperationsFailFastAfterShutdown(t *testing.T) {
	ep := hostconn.Endpoint{Address: "10.0.0.1", Port: 9000}
	client, _ := newTestClient(t, ep)

	waitConnected(t, client)

	assert.Nil(t, client.Shutdown())

	_, _, err := client.TryGet(context.Background(), "k")
	assert.NotNil(t, err)

	err = client.AddOrUpdate(context.Background(), "k", "v")
	assert.NotNil(t, err)
}

func TestClient_ShutdownFiresHostDisconnected(t *testing.T) {
	ep := hostconn.Endpoint{Address: "10.0.0.1", Port: 9000}
	client, _ := newTestClient(t, ep)

	waitConnected(t, client)

	var (
		mu   sync.Mutex
		seen bool
	)

	client.OnHostDisconnected(func(dache.HostDisconnectedEvent) { mu.Lock(); seen = true; mu.Unlock() })

	assert.Nil(t, client.Shutdown())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, true, seen)
}

func TestClient_OnHostDisconnectedFiresOnTransportFailure(t *testing.T) {
	ep := hostconn.Endpoint{Address: "10.0.0.1", Port: 9000}
	client, transports := newTestClient(t, ep)
	defer func() { _ = client.Shutdown() }()

	var (
		mu   sync.Mutex
		seen bool
	)

	client.OnHostDisconnected(func(dache.HostDisconnectedEvent) {
		mu.Lock()
		seen = true
		mu.Unlock()
	})

	transports[ep].mu.Lock()
	transports[ep].getErr = assertError("host unreachable")
	transports[ep].mu.Unlock()

	// The sole Bucket's only member now fails every call; once it is taken
	// offline, Lookup has nothing left to try and returns immediately
	// rather than retrying forever.
	_, _, err := client.TryGet(context.Background(), "k")
	assert.NotNil(t, err)

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, true, seen)
}

type assertError string

func (e assertError) Error() string { return string(e) }
