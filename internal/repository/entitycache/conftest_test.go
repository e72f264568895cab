package entitycache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hubsearch/internal/db"
)

type mockFetcher struct {
	data  json.RawMessage
	err   error
	calls int
}

func (m *mockFetcher) Fetch(_ context.Context, _ string) (json.RawMessage, error) {
	m.calls++
	return m.data, m.err
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	delFn func(ctx context.Context, key string) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func (m *mockKVStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func newTestCachedFetcher(t *testing.T, inner *mockFetcher) (*CachedFetcher, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	cf := New(inner, ms, "test:", time.Minute, nil, zap.NewNop())
	return cf, ms
}
