package middleware_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/longbridgeapp/assert"

	"github.com/hyp3rd/dache"
	"github.com/hyp3rd/dache/pkg/middleware"
)

// stubAPI is a minimal dache.CacheAPI[string] double every middleware test
// wraps, so each decorator is exercised in isolation from the real Client.
type stubAPI struct {
	mu    sync.Mutex
	calls []string
}

func (s *stubAPI) record(name string) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()
}

func (s *stubAPI) TryGet(context.Context, string) (string, bool, error) {
	s.record("TryGet")

	return "v", true, nil
}
func (s *stubAPI) Get(context.Context, []string) ([]string, error) {
	s.record("Get")

	return []string{"v"}, nil
}
func (s *stubAPI) GetTagged(context.Context, string, string) ([]string, error) {
	s.record("GetTagged")

	return nil, nil
}
func (s *stubAPI) AddOrUpdate(context.Context, string, string, ...dache.WriteOption) error {
	s.record("AddOrUpdate")

	return nil
}
func (s *stubAPI) AddOrUpdateBatch(context.Context, []dache.Entry[string]) error {
	s.record("AddOrUpdateBatch")

	return nil
}
func (s *stubAPI) Remove(context.Context, string) error {
	s.record("Remove")

	return nil
}
func (s *stubAPI) RemoveBatch(context.Context, []string) error {
	s.record("RemoveBatch")

	return nil
}
func (s *stubAPI) RemoveTagged(context.Context, string, string) error {
	s.record("RemoveTagged")

	return nil
}
func (s *stubAPI) RemoveTaggedBatch(context.Context, []string, string) error {
	s.record("RemoveTaggedBatch")

	return nil
}
func (s *stubAPI) GetCacheKeys(context.Context, string) ([]string, error) {
	s.record("GetCacheKeys")

	return nil, nil
}
func (s *stubAPI) GetCacheKeysTagged(context.Context, string, string) ([]string, error) {
	s.record("GetCacheKeysTagged")

	return nil, nil
}
func (s *stubAPI) GetCacheKeysTaggedBatch(context.Context, []string, string) ([]string, error) {
	s.record("GetCacheKeysTaggedBatch")

	return nil, nil
}
func (s *stubAPI) Clear(context.Context) error {
	s.record("Clear")

	return nil
}
func (s *stubAPI) Shutdown() error {
	s.record("Shutdown")

	return nil
}

// recordingLogger captures Printf calls for assertions without touching
// stdout.
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Printf(format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func TestLoggingMiddleware_DelegatesAndLogs(t *testing.T) {
	stub := &stubAPI{}
	logger := &recordingLogger{}

	mw := middleware.NewLoggingMiddleware[string](stub, logger)

	_, _, err := mw.TryGet(context.Background(), "k")
	assert.Nil(t, err)

	assert.Equal(t, []string{"TryGet"}, stub.calls)

	logger.mu.Lock()
	defer logger.mu.Unlock()

	assert.Equal(t, true, len(logger.lines) >= 2)
}

func TestLoggingMiddleware_EveryMethodDelegates(t *testing.T) {
	stub := &stubAPI{}
	mw := middleware.NewLoggingMiddleware[string](stub, &recordingLogger{})

	ctx := context.Background()

	_, _, _ = mw.TryGet(ctx, "k")
	_, _ = mw.Get(ctx, []string{"k"})
	_, _ = mw.GetTagged(ctx, "t", "*")
	_ = mw.AddOrUpdate(ctx, "k", "v")
	_ = mw.AddOrUpdateBatch(ctx, []dache.Entry[string]{{Key: "k", Value: "v"}})
	_ = mw.Remove(ctx, "k")
	_ = mw.RemoveBatch(ctx, []string{"k"})
	_ = mw.RemoveTagged(ctx, "t", "*")
	_ = mw.RemoveTaggedBatch(ctx, []string{"t"}, "*")
	_, _ = mw.GetCacheKeys(ctx, "*")
	_, _ = mw.GetCacheKeysTagged(ctx, "t", "*")
	_, _ = mw.GetCacheKeysTaggedBatch(ctx, []string{"t"}, "*")
	_ = mw.Clear(ctx)
	_ = mw.Shutdown()

	assert.Equal(t, 14, len(stub.calls))
}
