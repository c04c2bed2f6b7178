package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/dache"
	"github.com/hyp3rd/dache/internal/telemetry/attrs"
)

// OTelMetricsMiddleware emits OpenTelemetry metrics for every CacheAPI
// method.
type OTelMetricsMiddleware[T any] struct {
	next  dache.CacheAPI[T]
	meter metric.Meter

	calls     metric.Int64Counter
	durations metric.Float64Histogram
}

// NewOTelMetricsMiddleware constructs a metrics middleware wrapping next
// with the given meter.
func NewOTelMetricsMiddleware[T any](next dache.CacheAPI[T], meter metric.Meter) (dache.CacheAPI[T], error) { //nolint:ireturn
	calls, err := meter.Int64Counter("dache.calls")
	if err != nil {
		return nil, ewrap.Wrap(err, "create counter")
	}

	durations, err := meter.Float64Histogram("dache.duration.ms")
	if err != nil {
		return nil, ewrap.Wrap(err, "create histogram")
	}

	return &OTelMetricsMiddleware[T]{next: next, meter: meter, calls: calls, durations: durations}, nil
}

// TryGet implements CacheAPI.TryGet with metrics.
func (mw *OTelMetricsMiddleware[T]) TryGet(ctx context.Context, key string) (T, bool, error) {
	start := time.Now()
	v, ok, err := mw.next.TryGet(ctx, key)
	mw.rec(ctx, "TryGet", start, err, attribute.Int(attrs.AttrKeyLength, len(key)), attribute.Bool("hit", ok))

	return v, ok, err
}

// Get implements CacheAPI.Get with metrics.
func (mw *OTelMetricsMiddleware[T]) Get(ctx context.Context, keys []string) ([]T, error) {
	start := time.Now()
	out, err := mw.next.Get(ctx, keys)
	mw.rec(ctx, "Get", start, err, attribute.Int(attrs.AttrKeysCount, len(keys)), attribute.Int(attrs.AttrResultCount, len(out)))

	return out, err
}

// GetTagged implements CacheAPI.GetTagged with metrics.
func (mw *OTelMetricsMiddleware[T]) GetTagged(ctx context.Context, tag, pattern string) ([]T, error) {
	start := time.Now()
	out, err := mw.next.GetTagged(ctx, tag, pattern)
	mw.rec(ctx, "GetTagged", start, err, attribute.Int(attrs.AttrResultCount, len(out)))

	return out, err
}

// AddOrUpdate implements CacheAPI.AddOrUpdate with metrics.
func (mw *OTelMetricsMiddleware[T]) AddOrUpdate(ctx context.Context, key string, value T, opts ...dache.WriteOption) error {
	start := time.Now()
	err := mw.next.AddOrUpdate(ctx, key, value, opts...)
	mw.rec(ctx, "AddOrUpdate", start, err, attribute.Int(attrs.AttrKeyLength, len(key)))

	return err
}

// AddOrUpdateBatch implements CacheAPI.AddOrUpdateBatch with metrics.
func (mw *OTelMetricsMiddleware[T]) AddOrUpdateBatch(ctx context.Context, entries []dache.Entry[T]) error {
	start := time.Now()
	err := mw.next.AddOrUpdateBatch(ctx, entries)
	mw.rec(ctx, "AddOrUpdateBatch", start, err, attribute.Int("entries.count", len(entries)))

	return err
}

// Remove implements CacheAPI.Remove with metrics.
func (mw *OTelMetricsMiddleware[T]) Remove(ctx context.Context, key string) error {
	start := time.Now()
	err := mw.next.Remove(ctx, key)
	mw.rec(ctx, "Remove", start, err, attribute.Int(attrs.AttrKeyLength, len(key)))

	return err
}

// RemoveBatch implements CacheAPI.RemoveBatch with metrics.
func (mw *OTelMetricsMiddleware[T]) RemoveBatch(ctx context.Context, keys []string) error {
	start := time.Now()
	err := mw.next.RemoveBatch(ctx, keys)
	mw.rec(ctx, "RemoveBatch", start, err, attribute.Int(attrs.AttrKeysCount, len(keys)))

	return err
}

// RemoveTagged implements CacheAPI.RemoveTagged with metrics.
func (mw *OTelMetricsMiddleware[T]) RemoveTagged(ctx context.Context, tag, pattern string) error {
	start := time.Now()
	err := mw.next.RemoveTagged(ctx, tag, pattern)
	mw.rec(ctx, "RemoveTagged", start, err)

	return err
}

// RemoveTaggedBatch implements CacheAPI.RemoveTaggedBatch with metrics.
func (mw *OTelMetricsMiddleware[T]) RemoveTaggedBatch(ctx context.Context, tags []string, pattern string) error {
	start := time.Now()
	err := mw.next.RemoveTaggedBatch(ctx, tags, pattern)
	mw.rec(ctx, "RemoveTaggedBatch", start, err, attribute.Int(attrs.AttrKeysCount, len(tags)))

	return err
}

// GetCacheKeys implements CacheAPI.GetCacheKeys with metrics.
func (mw *OTelMetricsMiddleware[T]) GetCacheKeys(ctx context.Context, pattern string) ([]string, error) {
	start := time.Now()
	keys, err := mw.next.GetCacheKeys(ctx, pattern)
	mw.rec(ctx, "GetCacheKeys", start, err, attribute.Int(attrs.AttrResultCount, len(keys)))

	return keys, err
}

// GetCacheKeysTagged implements CacheAPI.GetCacheKeysTagged with metrics.
func (mw *OTelMetricsMiddleware[T]) GetCacheKeysTagged(ctx context.Context, tag, pattern string) ([]string, error) {
	start := time.Now()
	keys, err := mw.next.GetCacheKeysTagged(ctx, tag, pattern)
	mw.rec(ctx, "GetCacheKeysTagged", start, err, attribute.Int(attrs.AttrResultCount, len(keys)))

	return keys, err
}

// GetCacheKeysTaggedBatch implements CacheAPI.GetCacheKeysTaggedBatch with
// metrics.
func (mw *OTelMetricsMiddleware[T]) GetCacheKeysTaggedBatch(ctx context.Context, tags []string, pattern string) ([]string, error) {
	start := time.Now()
	keys, err := mw.next.GetCacheKeysTaggedBatch(ctx, tags, pattern)
	mw.rec(ctx, "GetCacheKeysTaggedBatch", start, err, attribute.Int(attrs.AttrKeysCount, len(tags)), attribute.Int(attrs.AttrResultCount, len(keys)))

	return keys, err
}

// Clear implements CacheAPI.Clear with metrics.
func (mw *OTelMetricsMiddleware[T]) Clear(ctx context.Context) error {
	start := time.Now()
	err := mw.next.Clear(ctx)
	mw.rec(ctx, "Clear", start, err)

	return err
}

// Shutdown implements CacheAPI.Shutdown with metrics.
func (mw *OTelMetricsMiddleware[T]) Shutdown() error {
	start := time.Now()
	err := mw.next.Shutdown()
	mw.rec(context.Background(), "Shutdown", start, err)

	return err
}

// rec records call count and duration with attributes, tagging the calls
// counter with AttrFailedCount whenever the wrapped call returned an error.
func (mw *OTelMetricsMiddleware[T]) rec(ctx context.Context, method string, start time.Time, err error, extra ...attribute.KeyValue) {
	base := []attribute.KeyValue{attribute.String("method", method)}
	if len(extra) > 0 {
		base = append(base, extra...)
	}

	callAttrs := base
	if err != nil {
		callAttrs = append(append([]attribute.KeyValue{}, base...), attribute.Bool(attrs.AttrFailedCount, true))
	}

	mw.calls.Add(ctx, 1, metric.WithAttributes(callAttrs...))
	mw.durations.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(base...))
}
