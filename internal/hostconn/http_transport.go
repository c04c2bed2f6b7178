package hostconn

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/hyp3rd/ewrap"
)

// statusThreshold marks the first HTTP status code treated as an error.
const statusThreshold = 300

// HTTPTransport is a reference Transport implementation speaking JSON over
// plain HTTP to a single Dache host. Production deployments are expected to
// swap this for the framed TCP client the host side actually exposes; this
// implementation exists so the client is runnable end-to-end against a
// trivial HTTP-fronted host during development and in tests.
type HTTPTransport struct {
	baseURL string
	client  *http.Client

	pollInterval time.Duration

	mu       sync.Mutex
	messages chan []byte
	stopPoll chan struct{}
}

// NewHTTPTransport builds an HTTPTransport against baseURL (scheme+host,
// no trailing slash) with the given per-call timeout. If pollInterval is
// positive, the transport long-polls /internal/cache/events for pushed
// invalidation frames and surfaces them on Messages().
func NewHTTPTransport(baseURL string, timeout, pollInterval time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 2 * time.Second //nolint:mnd
	}

	return &HTTPTransport{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: timeout},
		pollInterval: pollInterval,
	}
}

// Dial verifies the host is reachable and starts the event poller.
func (t *HTTPTransport) Dial(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/health", nil)
	if err != nil {
		return ewrap.Wrap(err, "new request")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return ewrap.Wrap(err, "do request")
	}

	defer func() { _ = resp.Body.Close() }() //nolint:errcheck

	if resp.StatusCode >= statusThreshold {
		return ewrap.Newf("health status %d", resp.StatusCode)
	}

	t.mu.Lock()
	if t.messages == nil && t.pollInterval > 0 {
		t.messages = make(chan []byte, 16) //nolint:mnd
		t.stopPoll = make(chan struct{})

		go t.poll(ctx, t.messages, t.stopPoll)
	}
	t.mu.Unlock()

	return nil
}

// Close stops the poller. The underlying http.Client needs no teardown.
func (t *HTTPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopPoll != nil {
		close(t.stopPoll)
		t.stopPoll = nil
	}

	if t.messages != nil {
		close(t.messages)
		t.messages = nil
	}

	return nil
}

// Messages returns the channel pushed invalidation frames arrive on, or
// nil if polling was not configured.
func (t *HTTPTransport) Messages() <-chan []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.messages
}

func (t *HTTPTransport) poll(ctx context.Context, out chan<- []byte, stop <-chan struct{}) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, ok := t.fetchEvent(ctx)
			if ok {
				select {
				case out <- frame:
				case <-stop:
					return
				}
			}
		}
	}
}

func (t *HTTPTransport) fetchEvent(ctx context.Context) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/internal/cache/events", nil)
	if err != nil {
		return nil, false
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, false
	}

	defer func() { _ = resp.Body.Close() }() //nolint:errcheck

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode >= statusThreshold {
		return nil, false
	}

	var body bytes.Buffer

	_, err = body.ReadFrom(resp.Body)
	if err != nil || body.Len() == 0 {
		return nil, false
	}

	return body.Bytes(), true
}

type batchGetRequest struct {
	Keys []string `json:"keys"`
}

type batchGetResponse struct {
	Values [][]byte `json:"values"`
}

// Get fetches the raw serialized values for keys, in order.
func (t *HTTPTransport) Get(ctx context.Context, keys []string) ([][]byte, error) {
	var resp batchGetResponse

	err := t.postJSON(ctx, "/internal/cache/get", batchGetRequest{Keys: keys}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.Values, nil
}

type addOrUpdateRequest struct {
	Items              []KeyValue `json:"items"`
	TagName            string     `json:"tagName,omitempty"`
	AbsoluteExpiration int64      `json:"absoluteExpirationUnixMs,omitempty"`
	SlidingExpiration  int64      `json:"slidingExpirationMs,omitempty"`
	NotifyRemoved      bool       `json:"notifyRemoved"`
	IsInterned         bool       `json:"isInterned"`
}

// AddOrUpdate writes items to the host, fanned out by the Bucket above this
// connection — this call targets a single host.
func (t *HTTPTransport) AddOrUpdate(ctx context.Context, items []KeyValue, opts WriteOptions) error {
	req := addOrUpdateRequest{
		Items:             items,
		TagName:           opts.TagName,
		SlidingExpiration: opts.SlidingExpiration.Milliseconds(),
		NotifyRemoved:     opts.NotifyRemoved,
		IsInterned:        opts.IsInterned,
	}

	if !opts.AbsoluteExpiration.IsZero() {
		req.AbsoluteExpiration = opts.AbsoluteExpiration.UnixMilli()
	}

	return t.postJSON(ctx, "/internal/cache/add", req, nil)
}

type removeRequest struct {
	Keys []string `json:"keys"`
}

// Remove deletes keys from the host.
func (t *HTTPTransport) Remove(ctx context.Context, keys []string) error {
	return t.postJSON(ctx, "/internal/cache/remove", removeRequest{Keys: keys}, nil)
}

type taggedRequest struct {
	Tags    []string `json:"tags"`
	Pattern string   `json:"pattern"`
}

// GetTagged fetches raw values for every item under any of tags.
func (t *HTTPTransport) GetTagged(ctx context.Context, tags []string, pattern string) ([][]byte, error) {
	var resp batchGetResponse

	err := t.postJSON(ctx, "/internal/cache/get-tagged", taggedRequest{Tags: tags, Pattern: pattern}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.Values, nil
}

// RemoveTagged deletes every item under any of tags matching pattern.
func (t *HTTPTransport) RemoveTagged(ctx context.Context, tags []string, pattern string) error {
	return t.postJSON(ctx, "/internal/cache/remove-tagged", taggedRequest{Tags: tags, Pattern: pattern}, nil)
}

type keysResponse struct {
	Keys []string `json:"keys"`
}

// GetCacheKeys lists keys on the host matching pattern.
func (t *HTTPTransport) GetCacheKeys(ctx context.Context, pattern string) ([]string, error) {
	q := url.Values{"pattern": {pattern}}

	var resp keysResponse

	err := t.getJSON(ctx, "/internal/cache/keys?"+q.Encode(), &resp)
	if err != nil {
		return nil, err
	}

	return resp.Keys, nil
}

// GetCacheKeysTagged lists keys under any of tags matching pattern.
func (t *HTTPTransport) GetCacheKeysTagged(ctx context.Context, tags []string, pattern string) ([]string, error) {
	var resp keysResponse

	err := t.postJSON(ctx, "/internal/cache/keys-tagged", taggedRequest{Tags: tags, Pattern: pattern}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.Keys, nil
}

// Clear removes every item on the host.
func (t *HTTPTransport) Clear(ctx context.Context) error {
	return t.postJSON(ctx, "/internal/cache/clear", nil, nil)
}

func (t *HTTPTransport) postJSON(ctx context.Context, path string, body, out any) error {
	var reader *bytes.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return ewrap.Wrap(err, "marshal request")
		}

		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, reader)
	if err != nil {
		return ewrap.Wrap(err, "new request")
	}

	req.Header.Set("Content-Type", "application/json")

	return t.do(req, out)
}

func (t *HTTPTransport) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return ewrap.Wrap(err, "new request")
	}

	return t.do(req, out)
}

func (t *HTTPTransport) do(req *http.Request, out any) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return ewrap.Wrap(err, "do request")
	}

	defer func() { _ = resp.Body.Close() }() //nolint:errcheck

	if resp.StatusCode >= statusThreshold {
		return ewrap.Newf("request to %s failed with status %s", req.URL.Path, strconv.Itoa(resp.StatusCode))
	}

	if out == nil {
		return nil
	}

	dec := json.NewDecoder(resp.Body)

	err = dec.Decode(out)
	if err != nil {
		return ewrap.Wrap(err, "decode response")
	}

	return nil
}
