package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyp3rd/dache"
	"github.com/hyp3rd/dache/internal/telemetry/attrs"
)

// OTelTracingMiddleware wraps dache.CacheAPI methods with OpenTelemetry
// spans.
type OTelTracingMiddleware[T any] struct {
	next   dache.CacheAPI[T]
	tracer trace.Tracer
	// commonAttrs are applied to every span.
	commonAttrs []attribute.KeyValue
}

// OTelTracingOption configures the tracing middleware.
type OTelTracingOption[T any] func(*OTelTracingMiddleware[T])

// WithCommonAttributes sets attributes applied to all spans.
func WithCommonAttributes[T any](attributes ...attribute.KeyValue) OTelTracingOption[T] {
	return func(m *OTelTracingMiddleware[T]) { m.commonAttrs = append(m.commonAttrs, attributes...) }
}

// NewOTelTracingMiddleware creates a tracing middleware wrapping next.
func NewOTelTracingMiddleware[T any](next dache.CacheAPI[T], tracer trace.Tracer, opts ...OTelTracingOption[T]) dache.CacheAPI[T] { //nolint:ireturn
	mw := &OTelTracingMiddleware[T]{next: next, tracer: tracer}
	for _, o := range opts {
		o(mw)
	}

	return mw
}

// TryGet implements CacheAPI.TryGet with tracing.
func (mw *OTelTracingMiddleware[T]) TryGet(ctx context.Context, key string) (T, bool, error) {
	ctx, span := mw.startSpan(ctx, "dache.TryGet", attribute.Int(attrs.AttrKeyLength, len(key)))
	defer span.End()

	v, ok, err := mw.next.TryGet(ctx, key)
	span.SetAttributes(attribute.Bool("hit", ok))

	if err != nil {
		span.RecordError(err)
	}

	return v, ok, err
}

// Get implements CacheAPI.Get with tracing.
func (mw *OTelTracingMiddleware[T]) Get(ctx context.Context, keys []string) ([]T, error) {
	ctx, span := mw.startSpan(ctx, "dache.Get", attribute.Int(attrs.AttrKeysCount, len(keys)))
	defer span.End()

	out, err := mw.next.Get(ctx, keys)
	span.SetAttributes(attribute.Int(attrs.AttrResultCount, len(out)))

	if err != nil {
		span.RecordError(err)
	}

	return out, err
}

// GetTagged implements CacheAPI.GetTagged with tracing.
func (mw *OTelTracingMiddleware[T]) GetTagged(ctx context.Context, tag, pattern string) ([]T, error) {
	ctx, span := mw.startSpan(ctx, "dache.GetTagged", attribute.String("tag", tag))
	defer span.End()

	out, err := mw.next.GetTagged(ctx, tag, pattern)
	span.SetAttributes(attribute.Int(attrs.AttrResultCount, len(out)))

	if err != nil {
		span.RecordError(err)
	}

	return out, err
}

// AddOrUpdate implements CacheAPI.AddOrUpdate with tracing.
func (mw *OTelTracingMiddleware[T]) AddOrUpdate(ctx context.Context, key string, value T, opts ...dache.WriteOption) error {
	ctx, span := mw.startSpan(ctx, "dache.AddOrUpdate", attribute.Int(attrs.AttrKeyLength, len(key)))
	defer span.End()

	err := mw.next.AddOrUpdate(ctx, key, value, opts...)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

// AddOrUpdateBatch implements CacheAPI.AddOrUpdateBatch with tracing.
func (mw *OTelTracingMiddleware[T]) AddOrUpdateBatch(ctx context.Context, entries []dache.Entry[T]) error {
	ctx, span := mw.startSpan(ctx, "dache.AddOrUpdateBatch", attribute.Int(attrs.AttrKeysCount, len(entries)))
	defer span.End()

	err := mw.next.AddOrUpdateBatch(ctx, entries)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

// Remove implements CacheAPI.Remove with tracing.
func (mw *OTelTracingMiddleware[T]) Remove(ctx context.Context, key string) error {
	ctx, span := mw.startSpan(ctx, "dache.Remove", attribute.Int(attrs.AttrKeyLength, len(key)))
	defer span.End()

	err := mw.next.Remove(ctx, key)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

// RemoveBatch implements CacheAPI.RemoveBatch with tracing.
func (mw *OTelTracingMiddleware[T]) RemoveBatch(ctx context.Context, keys []string) error {
	ctx, span := mw.startSpan(ctx, "dache.RemoveBatch", attribute.Int(attrs.AttrKeysCount, len(keys)))
	defer span.End()

	err := mw.next.RemoveBatch(ctx, keys)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

// RemoveTagged implements CacheAPI.RemoveTagged with tracing.
func (mw *OTelTracingMiddleware[T]) RemoveTagged(ctx context.Context, tag, pattern string) error {
	ctx, span := mw.startSpan(ctx, "dache.RemoveTagged", attribute.String("tag", tag))
	defer span.End()

	err := mw.next.RemoveTagged(ctx, tag, pattern)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

// RemoveTaggedBatch implements CacheAPI.RemoveTaggedBatch with tracing.
func (mw *OTelTracingMiddleware[T]) RemoveTaggedBatch(ctx context.Context, tags []string, pattern string) error {
	ctx, span := mw.startSpan(ctx, "dache.RemoveTaggedBatch", attribute.Int("tags.count", len(tags)))
	defer span.End()

	err := mw.next.RemoveTaggedBatch(ctx, tags, pattern)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

// GetCacheKeys implements CacheAPI.GetCacheKeys with tracing.
func (mw *OTelTracingMiddleware[T]) GetCacheKeys(ctx context.Context, pattern string) ([]string, error) {
	ctx, span := mw.startSpan(ctx, "dache.GetCacheKeys", attribute.String("pattern", pattern))
	defer span.End()

	keys, err := mw.next.GetCacheKeys(ctx, pattern)
	span.SetAttributes(attribute.Int(attrs.AttrResultCount, len(keys)))

	if err != nil {
		span.RecordError(err)
	}

	return keys, err
}

// GetCacheKeysTagged implements CacheAPI.GetCacheKeysTagged with tracing.
func (mw *OTelTracingMiddleware[T]) GetCacheKeysTagged(ctx context.Context, tag, pattern string) ([]string, error) {
	ctx, span := mw.startSpan(ctx, "dache.GetCacheKeysTagged", attribute.String("tag", tag))
	defer span.End()

	keys, err := mw.next.GetCacheKeysTagged(ctx, tag, pattern)
	span.SetAttributes(attribute.Int(attrs.AttrResultCount, len(keys)))

	if err != nil {
		span.RecordError(err)
	}

	return keys, err
}

// GetCacheKeysTaggedBatch implements CacheAPI.GetCacheKeysTaggedBatch with
// tracing.
func (mw *OTelTracingMiddleware[T]) GetCacheKeysTaggedBatch(ctx context.Context, tags []string, pattern string) ([]string, error) {
	ctx, span := mw.startSpan(ctx, "dache.GetCacheKeysTaggedBatch", attribute.Int("tags.count", len(tags)))
	defer span.End()

	keys, err := mw.next.GetCacheKeysTaggedBatch(ctx, tags, pattern)
	span.SetAttributes(attribute.Int(attrs.AttrResultCount, len(keys)))

	if err != nil {
		span.RecordError(err)
	}

	return keys, err
}

// Clear implements CacheAPI.Clear with tracing.
func (mw *OTelTracingMiddleware[T]) Clear(ctx context.Context) error {
	ctx, span := mw.startSpan(ctx, "dache.Clear")
	defer span.End()

	err := mw.next.Clear(ctx)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

// Shutdown implements CacheAPI.Shutdown with tracing.
func (mw *OTelTracingMiddleware[T]) Shutdown() error {
	_, span := mw.startSpan(context.Background(), "dache.Shutdown")
	defer span.End()

	err := mw.next.Shutdown()
	if err != nil {
		span.RecordError(err)
	}

	return err
}

func (mw *OTelTracingMiddleware[T]) startSpan(ctx context.Context, name string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := mw.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	if len(mw.commonAttrs) > 0 {
		span.SetAttributes(mw.commonAttrs...)
	}

	if len(attributes) > 0 {
		span.SetAttributes(attributes...)
	}

	return ctx, span
}
