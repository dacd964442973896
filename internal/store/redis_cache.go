package store

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache dials a Redis instance described by a redis:// dsn.
func NewRedisCache(dsn string) (*RedisCache, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, &ConnectionError{Backend: "redis", Cause: err}
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, &ConnectionError{Backend: "redis", Cause: err}
	}
	return &RedisCache{client: client}, nil
}

func classifyRedisErr(err error) error {
	if err == nil {
		return nil
	}
	if err == redis.Nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "context deadline exceeded"), strings.Contains(msg, "i/o timeout"):
		return &OperationTimeout{Backend: "redis", Operation: "call"}
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connect:"), strings.Contains(msg, "EOF"):
		return &ConnectionError{Backend: "redis", Cause: err}
	default:
		return &DatabaseError{Backend: "redis", Cause: err}
	}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classifyRedisErr(err)
	}
	return b, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return classifyRedisErr(r.client.Set(ctx, key, value, ttl).Err())
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return classifyRedisErr(r.client.Del(ctx, key).Err())
}

func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, classifyRedisErr(err)
	}
	return n > 0, nil
}

func (r *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return classifyRedisErr(r.client.Expire(ctx, key, ttl).Err())
}

func (r *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, classifyRedisErr(err)
	}
	return d, nil
}

func (r *RedisCache) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, classifyRedisErr(err)
	}
	out := make(map[string][]byte, len(keys))
	for i, v := range vals {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[keys[i]] = []byte(s)
		}
	}
	return out, nil
}

func (r *RedisCache) MSet(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	pipe := r.client.Pipeline()
	for k, v := range values {
		pipe.Set(ctx, k, v, ttl)
	}
	_, err := pipe.Exec(ctx)
	return classifyRedisErr(err)
}

func (r *RedisCache) DeletePattern(ctx context.Context, glob string) (int64, error) {
	var cursor uint64
	var deleted int64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, glob, 200).Result()
		if err != nil {
			return deleted, classifyRedisErr(err)
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, classifyRedisErr(err)
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return deleted, nil
}

func (r *RedisCache) ClearNamespace(ctx context.Context, prefix string) (int64, error) {
	return r.DeletePattern(ctx, prefix+"*")
}

func (r *RedisCache) HealthCheck(ctx context.Context) Health {
	return timed(func() error {
		cctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return r.client.Ping(cctx).Err()
	})
}

var _ Cache = (*RedisCache)(nil)
