package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveKey_ScopesBySupplierThenPricelist(t *testing.T) {
	assert.Equal(t, "ingest/sup-1/pl-1/prices.csv", ArchiveKey("sup-1", "pl-1", "prices.csv"))
}

// flakyStore fails Put with a transient error the first N times, then
// delegates to an inner MemoryStore.
type flakyStore struct {
	*MemoryStore
	failures int32
	err      error
}

func (f *flakyStore) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (string, error) {
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return "", f.err
	}
	return f.MemoryStore.Put(ctx, key, r, opts)
}

func TestRetryingStore_RetriesTransientPutFailures(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemoryStore(), failures: 2, err: errors.New("connection reset")}
	store := NewRetryingStore(inner, RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	etag, err := store.Put(context.Background(), ArchiveKey("sup-1", "pl-1", "f.csv"), bytes.NewReader([]byte("data")), PutOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, etag)
}

func TestRetryingStore_GivesUpOnPermanentError(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemoryStore(), failures: 100, err: ErrAccessDenied}
	store := NewRetryingStore(inner, RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	_, err := store.Put(context.Background(), ArchiveKey("sup-1", "pl-1", "f.csv"), bytes.NewReader([]byte("data")), PutOptions{})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestRetryingStore_ExhaustsRetriesOnPersistentTransientError(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemoryStore(), failures: 100, err: errors.New("timeout")}
	store := NewRetryingStore(inner, RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})

	_, err := store.Put(context.Background(), ArchiveKey("sup-1", "pl-1", "f.csv"), bytes.NewReader([]byte("data")), PutOptions{})
	assert.Error(t, err)
}

func TestRetryingStore_DelegatesReadsToInner(t *testing.T) {
	inner := NewMemoryStore()
	store := NewRetryingStore(inner, RetryConfig{})
	_, err := inner.Put(context.Background(), "k", bytes.NewReader([]byte("v")), PutOptions{})
	require.NoError(t, err)

	exists, err := store.Exists(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, exists)
}
