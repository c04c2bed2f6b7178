package dache

import (
	"context"
)

// CacheAPI is the method set a middleware decorator wraps. Client[T]
// implements it; middlewares (pkg/middleware) take and return a CacheAPI[T]
// so logging/tracing/metrics/stats layers can be composed around the real
// Client the same way the teacher's Service decorators compose.
type CacheAPI[T any] interface {
	TryGet(ctx context.Context, key string) (T, bool, error)
	Get(ctx context.Context, keys []string) ([]T, error)
	GetTagged(ctx context.Context, tag, pattern string) ([]T, error)
	AddOrUpdate(ctx context.Context, key string, value T, opts ...WriteOption) error
	AddOrUpdateBatch(ctx context.Context, entries []Entry[T]) error
	Remove(ctx context.Context, key string) error
	RemoveBatch(ctx context.Context, keys []string) error
	RemoveTagged(ctx context.Context, tag, pattern string) error
	RemoveTaggedBatch(ctx context.Context, tags []string, pattern string) error
	GetCacheKeys(ctx context.Context, pattern string) ([]string, error)
	GetCacheKeysTagged(ctx context.Context, tag, pattern string) ([]string, error)
	GetCacheKeysTaggedBatch(ctx context.Context, tags []string, pattern string) ([]string, error)
	Clear(ctx context.Context) error
	Shutdown() error
}

var _ CacheAPI[any] = (*Client[any])(nil)
