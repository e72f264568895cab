package hubsearch

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/hubsearch/internal/backend"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	portalURL      string
	ogcURL         string
	ogcCollections map[EntityKind]string

	doer       backend.Doer
	timeout    time.Duration
	rate       float64
	burst      int
	breaker    bool
	entityCred *Credential

	cacheAddrs    []string
	cachePassword string
	cacheTTL      time.Duration
	cachePrefix   string

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithPortal enables the portal backend for items, groups and users.
func WithPortal(baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.portalURL = baseURL
	})
}

// WithOGC enables the OGC backend. collections overrides the collection id
// per entity kind; nil keeps the built-in ids.
func WithOGC(baseURL string, collections map[EntityKind]string) Option {
	return optionFunc(func(c *clientConfig) {
		c.ogcURL = baseURL
		c.ogcCollections = collections
	})
}

// WithHTTPClient sets the client used for backend requests.
// Defaults to an *http.Client with a 30s timeout.
func WithHTTPClient(d backend.Doer) Option {
	return optionFunc(func(c *clientConfig) {
		c.doer = d
	})
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithRateLimit caps outbound requests per second per backend.
func WithRateLimit(perSecond float64, burst int) Option {
	return optionFunc(func(c *clientConfig) {
		c.rate = perSecond
		c.burst = burst
	})
}

// WithCircuitBreaker stops calling a backend after repeated failures and
// probes it again after a cool-down.
func WithCircuitBreaker() Option {
	return optionFunc(func(c *clientConfig) {
		c.breaker = true
	})
}

// WithEntityCredential sets the credential used to load the catalogs of
// parent entities during containment checks.
func WithEntityCredential(cred *Credential) Option {
	return optionFunc(func(c *clientConfig) {
		c.entityCred = cred
	})
}

// WithRedisCache caches parent entities loaded during containment checks.
// Cache failures fall back to direct fetches. A non-positive ttl keeps the
// 5 minute default.
func WithRedisCache(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheAddrs = []string{addr}
		c.cachePassword = password
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
