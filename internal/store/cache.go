package store

import (
	"context"
	"time"
)

// Cache is the contract for the shared key-value cache tier. Values are
// serialized opaquely by the caller (JSON-first); the cache itself stores
// bytes.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)

	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	MSet(ctx context.Context, values map[string][]byte, ttl time.Duration) error
	DeletePattern(ctx context.Context, glob string) (int64, error)
	ClearNamespace(ctx context.Context, prefix string) (int64, error)

	HealthCheck(ctx context.Context) Health
}
