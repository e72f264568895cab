package hubsearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/hubsearch/internal/backend"
	"github.com/kailas-cloud/hubsearch/internal/backend/ogc"
	"github.com/kailas-cloud/hubsearch/internal/backend/portal"
	"github.com/kailas-cloud/hubsearch/internal/db"
	dbRedis "github.com/kailas-cloud/hubsearch/internal/db/redis"
	"github.com/kailas-cloud/hubsearch/internal/repository/entitycache"
	"github.com/kailas-cloud/hubsearch/internal/usecase/containment"
	"github.com/kailas-cloud/hubsearch/internal/usecase/explain"
	healthuc "github.com/kailas-cloud/hubsearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/hubsearch/internal/usecase/search"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultCacheTTL       = 5 * time.Minute
	defaultCachePrefix    = "hubsearch:"
	cacheReadinessTimeout = 5 * time.Second
)

// Client is the hubsearch SDK entry point.
type Client struct {
	store     db.Store
	search    *searchuc.Service
	engine    *containment.Engine
	explainer *explain.Explainer
	health    *healthuc.Service
	obs       *observer
}

// New creates a Client for the configured backends. The context bounds the
// cache readiness check when WithRedisCache is set.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		timeout:     defaultTimeout,
		cacheTTL:    defaultCacheTTL,
		cachePrefix: defaultCachePrefix,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.portalURL == "" && cfg.ogcURL == "" {
		return nil, errors.New("hubsearch: backend required (use WithPortal or WithOGC)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var store db.Store
	if len(cfg.cacheAddrs) > 0 {
		s, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.cacheAddrs, Password: cfg.cachePassword})
		if err != nil {
			return nil, fmt.Errorf("hubsearch: create cache store: %w", err)
		}
		if err := s.WaitForReady(ctx, cacheReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("hubsearch: cache not ready: %w", err)
		}
		store = s
	}

	return wireClient(cfg, store, obs), nil
}

func wireClient(cfg *clientConfig, store db.Store, obs *observer) *Client {
	doer := cfg.doer
	if doer == nil {
		doer = &http.Client{Timeout: cfg.timeout}
	}
	plain := backend.HTTPFetch(doer)

	checks := map[string]healthuc.Pinger{}
	var portalExec, ogcExec searchuc.Executor
	var entities containment.EntityFetcher
	var groups explain.GroupFetcher
	if cfg.portalURL != "" {
		fetch := cfg.outbound("portal", plain)
		portalExec = portal.NewExecutor(cfg.portalURL, fetch)
		entities = portal.NewEntityFetcher(cfg.portalURL, fetch, cfg.entityCred)
		groups = portal.NewGroupFetcher(cfg.portalURL, fetch)
		checks["portal"] = backend.NewPinger(cfg.portalURL, plain)
	}
	if cfg.ogcURL != "" {
		ogcExec = ogc.NewExecutor(cfg.ogcURL, cfg.outbound("ogc", plain), cfg.ogcCollections)
		checks["ogc"] = backend.NewPinger(cfg.ogcURL, plain)
	}
	if store != nil {
		checks["cache"] = store
		if entities != nil {
			entities = entitycache.New(entities, store, cfg.cachePrefix, cfg.cacheTTL, nil, zap.NewNop())
		}
	}

	search := searchuc.New(portalExec, ogcExec)
	return &Client{
		store:     store,
		search:    search,
		engine:    containment.NewEngine(search, entities),
		explainer: explain.New(groups),
		health:    healthuc.New(checks),
		obs:       obs,
	}
}

// outbound wraps fetch with the configured breaker and rate limiter.
func (c *clientConfig) outbound(name string, fetch backend.FetchFunc) backend.FetchFunc {
	if c.breaker {
		fetch = backend.WithBreaker(fetch, backend.NewBreaker("hubsearch-sdk-"+name, backend.BreakerConfig{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}, nil))
	}
	if c.rate > 0 {
		burst := c.burst
		if burst <= 0 {
			burst = 1
		}
		fetch = backend.WithRateLimit(fetch, rate.NewLimiter(rate.Limit(c.rate), burst))
	}
	return fetch
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks every configured backend and the cache.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	report := c.health.Check(ctx)
	if report.Status != healthuc.Healthy {
		return fmt.Errorf("ping: %s: %v", report.Status, report.Checks)
	}
	return nil
}

// Search runs q against the backend for its target entity and returns the
// first page. Use Page.Next for the following pages.
func (c *Client) Search(ctx context.Context, q Query, opts SearchOptions) (page *Page, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err, "entity", string(q.TargetEntity)) }()

	return c.search.Search(ctx, q, opts)
}

// Explain reports which predicates of q match res.
func (c *Client) Explain(ctx context.Context, res Result, q Query, opts SearchOptions) (ex Explanation, err error) {
	start := time.Now()
	defer func() { c.obs.observe("explain", start, err) }()

	return c.explainer.Explain(ctx, res, q, opts)
}
