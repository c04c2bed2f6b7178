// Package middleware provides decorator implementations for dache.Client,
// composing logging, stats, and OpenTelemetry tracing/metrics around the
// CacheAPI surface.
package middleware

import (
	"context"
	"time"

	"github.com/hyp3rd/dache"
)

// Logger describes a logging interface allowing different external or
// custom loggers to be plugged in. Tested with logrus and Uber's Zap
// (high-performance), but should work with any other logger that matches
// the interface.
type Logger interface {
	Printf(format string, v ...any)
}

// LoggingMiddleware logs the time it takes to execute each CacheAPI
// method. Must implement dache.CacheAPI.
type LoggingMiddleware[T any] struct {
	next   dache.CacheAPI[T]
	logger Logger
}

// NewLoggingMiddleware returns a new LoggingMiddleware wrapping next.
func NewLoggingMiddleware[T any](next dache.CacheAPI[T], logger Logger) dache.CacheAPI[T] { //nolint:ireturn
	return &LoggingMiddleware[T]{next: next, logger: logger}
}

// TryGet logs the time it takes to execute the next middleware.
func (mw *LoggingMiddleware[T]) TryGet(ctx context.Context, key string) (T, bool, error) {
	defer func(begin time.Time) {
		mw.logger.Printf("method TryGet took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("TryGet method called with key: %s", key)

	return mw.next.TryGet(ctx, key)
}

// Get logs the time it takes to execute the next middleware.
func (mw *LoggingMiddleware[T]) Get(ctx context.Context, keys []string) ([]T, error) {
	defer func(begin time.Time) {
		mw.logger.Printf("method Get took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("Get method called with %d keys", len(keys))

	return mw.next.Get(ctx, keys)
}

// GetTagged logs the time it takes to execute the next middleware.
func (mw *LoggingMiddleware[T]) GetTagged(ctx context.Context, tag, pattern string) ([]T, error) {
	defer func(begin time.Time) {
		mw.logger.Printf("method GetTagged took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("GetTagged method called with tag: %s pattern: %s", tag, pattern)

	return mw.next.GetTagged(ctx, tag, pattern)
}

// AddOrUpdate logs the time it takes to execute the next middleware.
func (mw *LoggingMiddleware[T]) AddOrUpdate(ctx context.Context, key string, value T, opts ...dache.WriteOption) error {
	defer func(begin time.Time) {
		mw.logger.Printf("method AddOrUpdate took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("AddOrUpdate method called with key: %s", key)

	return mw.next.AddOrUpdate(ctx, key, value, opts...)
}

// AddOrUpdateBatch logs the time it takes to execute the next middleware.
func (mw *LoggingMiddleware[T]) AddOrUpdateBatch(ctx context.Context, entries []dache.Entry[T]) error {
	defer func(begin time.Time) {
		mw.logger.Printf("method AddOrUpdateBatch took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("AddOrUpdateBatch method called with %d entries", len(entries))

	return mw.next.AddOrUpdateBatch(ctx, entries)
}

// Remove logs the time it takes to execute the next middleware.
func (mw *LoggingMiddleware[T]) Remove(ctx context.Context, key string) error {
	defer func(begin time.Time) {
		mw.logger.Printf("method Remove took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("Remove method called with key: %s", key)

	return mw.next.Remove(ctx, key)
}

// RemoveBatch logs the time it takes to execute the next middleware.
func (mw *LoggingMiddleware[T]) RemoveBatch(ctx context.Context, keys []string) error {
	defer func(begin time.Time) {
		mw.logger.Printf("method RemoveBatch took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("RemoveBatch method called with %d keys", len(keys))

	return mw.next.RemoveBatch(ctx, keys)
}

// RemoveTagged logs the time it takes to execute the next middleware.
func (mw *LoggingMiddleware[T]) RemoveTagged(ctx context.Context, tag, pattern string) error {
	defer func(begin time.Time) {
		mw.logger.Printf("method RemoveTagged took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("RemoveTagged method called with tag: %s", tag)

	return mw.next.RemoveTagged(ctx, tag, pattern)
}

// RemoveTaggedBatch logs the time it takes to execute the next middleware.
func (mw *LoggingMiddleware[T]) RemoveTaggedBatch(ctx context.Context, tags []string, pattern string) error {
	defer func(begin time.Time) {
		mw.logger.Printf("method RemoveTaggedBatch took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("RemoveTaggedBatch method called with %d tags", len(tags))

	return mw.next.RemoveTaggedBatch(ctx, tags, pattern)
}

// GetCacheKeys logs the time it takes to execute the next middleware.
func (mw *LoggingMiddleware[T]) GetCacheKeys(ctx context.Context, pattern string) ([]string, error) {
	defer func(begin time.Time) {
		mw.logger.Printf("method GetCacheKeys took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("GetCacheKeys method called with pattern: %s", pattern)

	return mw.next.GetCacheKeys(ctx, pattern)
}

// GetCacheKeysTagged logs the time it takes to execute the next
// middleware.
func (mw *LoggingMiddleware[T]) GetCacheKeysTagged(ctx context.Context, tag, pattern string) ([]string, error) {
	defer func(begin time.Time) {
		mw.logger.Printf("method GetCacheKeysTagged took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("GetCacheKeysTagged method called with tag: %s", tag)

	return mw.next.GetCacheKeysTagged(ctx, tag, pattern)
}

// GetCacheKeysTaggedBatch logs the time it takes to execute the next
// middleware.
func (mw *LoggingMiddleware[T]) GetCacheKeysTaggedBatch(ctx context.Context, tags []string, pattern string) ([]string, error) {
	defer func(begin time.Time) {
		mw.logger.Printf("method GetCacheKeysTaggedBatch took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("GetCacheKeysTaggedBatch method called with %d tags", len(tags))

	return mw.next.GetCacheKeysTaggedBatch(ctx, tags, pattern)
}

// Clear logs the time it takes to execute the next middleware.
func (mw *LoggingMiddleware[T]) Clear(ctx context.Context) error {
	defer func(begin time.Time) {
		mw.logger.Printf("method Clear took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("Clear method invoked")

	return mw.next.Clear(ctx)
}

// Shutdown logs the time it takes to execute the next middleware.
func (mw *LoggingMiddleware[T]) Shutdown() error {
	defer func(begin time.Time) {
		mw.logger.Printf("method Shutdown took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("Shutdown method invoked")

	return mw.next.Shutdown()
}
