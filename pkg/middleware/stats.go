package middleware

import (
	"context"
	"time"

	"github.com/hyp3rd/dache"
)

// StatsCollector receives counters and timings for each CacheAPI call. Its
// method set mirrors the statsd-style collector the teacher's stats
// package exposed (Incr/Timing); Dache's client is fleet-routed rather
// than backend-local, so that package doesn't carry over, but the
// collector contract middleware needs from it does.
type StatsCollector interface {
	Incr(name string, value int64)
	Timing(name string, durationNanos int64)
}

// StatsCollectorMiddleware collects stats for every CacheAPI call. It can
// and should reuse the same collector across every middleware-wrapped
// Client. Must implement dache.CacheAPI.
type StatsCollectorMiddleware[T any] struct {
	next           dache.CacheAPI[T]
	statsCollector StatsCollector
}

// NewStatsCollectorMiddleware returns a new StatsCollectorMiddleware
// wrapping next.
func NewStatsCollectorMiddleware[T any](next dache.CacheAPI[T], statsCollector StatsCollector) dache.CacheAPI[T] { //nolint:ireturn
	return &StatsCollectorMiddleware[T]{next: next, statsCollector: statsCollector}
}

func (mw *StatsCollectorMiddleware[T]) record(name string, start time.Time) {
	mw.statsCollector.Timing("dache_"+name+"_duration", time.Since(start).Nanoseconds())
	mw.statsCollector.Incr("dache_"+name+"_count", 1)
}

// TryGet collects stats for TryGet.
func (mw *StatsCollectorMiddleware[T]) TryGet(ctx context.Context, key string) (T, bool, error) {
	start := time.Now()
	defer mw.record("try_get", start)

	return mw.next.TryGet(ctx, key)
}

// Get collects stats for Get.
func (mw *StatsCollectorMiddleware[T]) Get(ctx context.Context, keys []string) ([]T, error) {
	start := time.Now()
	defer mw.record("get", start)

	return mw.next.Get(ctx, keys)
}

// GetTagged collects stats for GetTagged.
func (mw *StatsCollectorMiddleware[T]) GetTagged(ctx context.Context, tag, pattern string) ([]T, error) {
	start := time.Now()
	defer mw.record("get_tagged", start)

	return mw.next.GetTagged(ctx, tag, pattern)
}

// AddOrUpdate collects stats for AddOrUpdate.
func (mw *StatsCollectorMiddleware[T]) AddOrUpdate(ctx context.Context, key string, value T, opts ...dache.WriteOption) error {
	start := time.Now()
	defer mw.record("add_or_update", start)

	return mw.next.AddOrUpdate(ctx, key, value, opts...)
}

// AddOrUpdateBatch collects stats for AddOrUpdateBatch.
func (mw *StatsCollectorMiddleware[T]) AddOrUpdateBatch(ctx context.Context, entries []dache.Entry[T]) error {
	start := time.Now()
	defer mw.record("add_or_update_batch", start)

	return mw.next.AddOrUpdateBatch(ctx, entries)
}

// Remove collects stats for Remove.
func (mw *StatsCollectorMiddleware[T]) Remove(ctx context.Context, key string) error {
	start := time.Now()
	defer mw.record("remove", start)

	return mw.next.Remove(ctx, key)
}

// RemoveBatch collects stats for RemoveBatch.
func (mw *StatsCollectorMiddleware[T]) RemoveBatch(ctx context.Context, keys []string) error {
	start := time.Now()
	defer mw.record("remove_batch", start)

	return mw.next.RemoveBatch(ctx, keys)
}

// RemoveTagged collects stats for RemoveTagged.
func (mw *StatsCollectorMiddleware[T]) RemoveTagged(ctx context.Context, tag, pattern string) error {
	start := time.Now()
	defer mw.record("remove_tagged", start)

	return mw.next.RemoveTagged(ctx, tag, pattern)
}

// RemoveTaggedBatch collects stats for RemoveTaggedBatch.
func (mw *StatsCollectorMiddleware[T]) RemoveTaggedBatch(ctx context.Context, tags []string, pattern string) error {
	start := time.Now()
	defer mw.record("remove_tagged_batch", start)

	return mw.next.RemoveTaggedBatch(ctx, tags, pattern)
}

// GetCacheKeys collects stats for GetCacheKeys.
func (mw *StatsCollectorMiddleware[T]) GetCacheKeys(ctx context.Context, pattern string) ([]string, error) {
	start := time.Now()
	defer mw.record("get_cache_keys", start)

	return mw.next.GetCacheKeys(ctx, pattern)
}

// GetCacheKeysTagged collects stats for GetCacheKeysTagged.
func (mw *StatsCollectorMiddleware[T]) GetCacheKeysTagged(ctx context.Context, tag, pattern string) ([]string, error) {
	start := time.Now()
	defer mw.record("get_cache_keys_tagged", start)

	return mw.next.GetCacheKeysTagged(ctx, tag, pattern)
}

// GetCacheKeysTaggedBatch collects stats for GetCacheKeysTaggedBatch.
func (mw *StatsCollectorMiddleware[T]) GetCacheKeysTaggedBatch(ctx context.Context, tags []string, pattern string) ([]string, error) {
	start := time.Now()
	defer mw.record("get_cache_keys_tagged_batch", start)

	return mw.next.GetCacheKeysTaggedBatch(ctx, tags, pattern)
}

// Clear collects stats for Clear.
func (mw *StatsCollectorMiddleware[T]) Clear(ctx context.Context) error {
	start := time.Now()
	defer mw.record("clear", start)

	return mw.next.Clear(ctx)
}

// Shutdown collects stats for Shutdown.
func (mw *StatsCollectorMiddleware[T]) Shutdown() error {
	start := time.Now()
	defer mw.record("shutdown", start)

	return mw.next.Shutdown()
}
