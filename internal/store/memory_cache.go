package store

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type memCacheEntry struct {
	value   []byte
	expires time.Time
}

// MemoryCache is a Cache used for tests and the "none" backend. Expiry is
// checked lazily on access.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memCacheEntry
}

// NewMemoryCache constructs an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memCacheEntry)}
}

func (m *MemoryCache) expired(e memCacheEntry) bool {
	return !e.expires.IsZero() && time.Now().After(e.expires)
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.expired(e) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	m.entries[key] = memCacheEntry{value: value, expires: exp}
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.Get(ctx, key)
	return ok, err
}

func (m *MemoryCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	e.expires = time.Now().Add(ttl)
	m.entries[key] = e
	return nil
}

func (m *MemoryCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok || e.expires.IsZero() {
		return 0, nil
	}
	return time.Until(e.expires), nil
}

func (m *MemoryCache) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok, _ := m.Get(ctx, k); ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryCache) MSet(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	for k, v := range values {
		if err := m.Set(ctx, k, v, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryCache) DeletePattern(ctx context.Context, glob string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.entries {
		if ok, _ := filepath.Match(glob, k); ok {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryCache) ClearNamespace(ctx context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryCache) HealthCheck(ctx context.Context) Health {
	return Health{Status: "ok"}
}

var _ Cache = (*MemoryCache)(nil)
