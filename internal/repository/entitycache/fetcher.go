// Package entitycache caches catalog-owning entity JSON in a key-value store.
package entitycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hubsearch/internal/db"
)

// Fetcher loads entity JSON by id.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (json.RawMessage, error)
}

// store is the consumer interface for the entity cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// CachedFetcher caches fetched entities. Cache failures degrade to the inner fetcher.
type CachedFetcher struct {
	inner      Fetcher
	store      store
	prefix     string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"/"invalidated"), passed explicitly.
func New(
	inner Fetcher,
	s store,
	prefix string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedFetcher {
	return &CachedFetcher{
		inner:      inner,
		store:      s,
		prefix:     prefix,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Fetch returns the cached entity or loads and caches it.
func (c *CachedFetcher) Fetch(ctx context.Context, id string) (json.RawMessage, error) {
	key := c.cacheKey(id)

	if data, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return data, nil
	}

	c.incCache("miss")

	data, err := c.inner.Fetch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch entity: %w", err)
	}

	c.putToCache(ctx, key, data)
	return data, nil
}

// Invalidate drops the cached entity so the next Fetch reloads it.
func (c *CachedFetcher) Invalidate(ctx context.Context, id string) error {
	key := c.cacheKey(id)
	if err := c.store.Del(ctx, key); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	c.incCache("invalidated")
	return nil
}

func (c *CachedFetcher) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedFetcher) cacheKey(id string) string {
	return c.prefix + "entity:" + id
}

func (c *CachedFetcher) getFromCache(ctx context.Context, key string) (json.RawMessage, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached entity", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if !json.Valid(data) {
		c.logger.Warn("Discarding malformed cached entity", zap.String("key", key))
		return nil, false
	}
	return json.RawMessage(data), true
}

func (c *CachedFetcher) putToCache(ctx context.Context, key string, data json.RawMessage) {
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache entity", zap.String("key", key), zap.Error(err))
	}
}
