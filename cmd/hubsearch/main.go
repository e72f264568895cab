package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/hubsearch/internal/backend"
	"github.com/kailas-cloud/hubsearch/internal/backend/ogc"
	"github.com/kailas-cloud/hubsearch/internal/backend/portal"
	"github.com/kailas-cloud/hubsearch/internal/config"
	dbRedis "github.com/kailas-cloud/hubsearch/internal/db/redis"
	logpkg "github.com/kailas-cloud/hubsearch/internal/logger"
	"github.com/kailas-cloud/hubsearch/internal/metrics"
	"github.com/kailas-cloud/hubsearch/internal/repository/entitycache"
	chiTransport "github.com/kailas-cloud/hubsearch/internal/transport/chi"
	"github.com/kailas-cloud/hubsearch/internal/usecase/containment"
	"github.com/kailas-cloud/hubsearch/internal/usecase/explain"
	healthuc "github.com/kailas-cloud/hubsearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/hubsearch/internal/usecase/search"
	"github.com/kailas-cloud/hubsearch/internal/version"
)

const cacheReadyTimeout = 5 * time.Second

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting hubsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("portal_url", cfg.Backends.Portal.BaseURL),
		zap.String("ogc_url", cfg.Backends.OGC.BaseURL),
		zap.Strings("cache_addrs", cfg.Cache.Addrs),
	)

	// Register backend metrics explicitly (no init())
	metrics.RegisterBackendMetrics()

	client := &http.Client{Timeout: time.Duration(cfg.Outbound.TimeoutSec) * time.Second}
	plain := backend.HTTPFetch(client)
	portalFetch := buildFetch("portal", plain, cfg.Outbound, logger)
	ogcFetch := buildFetch("ogc", plain, cfg.Outbound, logger)

	checks := map[string]healthuc.Pinger{}

	// Executors. A nil executor leaves that backend unconfigured.
	var portalExec, ogcExec searchuc.Executor
	var entities containment.EntityFetcher
	var groups explain.GroupFetcher
	if u := cfg.Backends.Portal.BaseURL; u != "" {
		portalExec = portal.NewExecutor(u, portalFetch)
		entities = portal.NewEntityFetcher(u, portalFetch, nil)
		groups = portal.NewGroupFetcher(u, portalFetch)
		checks["portal"] = backend.NewPinger(u, plain)
	}
	if u := cfg.Backends.OGC.BaseURL; u != "" {
		ogcExec = ogc.NewExecutor(u, ogcFetch, cfg.OGCCollections())
		checks["ogc"] = backend.NewPinger(u, plain)
	}

	// Entity cache. Cache failures degrade to direct fetches.
	if len(cfg.Cache.Addrs) > 0 && entities != nil {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:       cfg.Cache.Addrs,
			Password:    cfg.Cache.Password,
			DialTimeout: time.Duration(cfg.Cache.DialTimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(context.Background(), cacheReadyTimeout); err != nil {
			logger.Warn("Cache not ready, continuing without warm cache", zap.Error(err))
		} else {
			logger.Info("Connected to cache")
		}
		entities = entitycache.New(entities, store, cfg.Cache.KeyPrefix,
			time.Duration(cfg.Cache.TTLSec)*time.Second, metrics.EntityCacheTotal, logger)
		checks["cache"] = store
	}

	// Create use case services
	searchSvc := searchuc.New(portalExec, ogcExec)
	engine := containment.NewEngine(searchSvc, entities)
	explainer := explain.New(groups)
	healthSvc := healthuc.New(checks)

	// Create chi server
	server := chiTransport.NewServer(searchSvc, engine, explainer, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildFetch assembles the outbound chain: HTTP -> breaker -> rate limiter.
// Each backend gets its own breaker and limiter.
func buildFetch(name string, base backend.FetchFunc, cfg config.OutboundConfig, logger *zap.Logger) backend.FetchFunc {
	fetch := base
	if cfg.Breaker.Enabled {
		cb := backend.NewBreaker(name, backend.BreakerConfig{
			MaxRequests:  cfg.Breaker.MaxRequests,
			Interval:     time.Duration(cfg.Breaker.IntervalSec) * time.Second,
			Timeout:      time.Duration(cfg.Breaker.TimeoutSec) * time.Second,
			MinRequests:  cfg.Breaker.MinRequests,
			FailureRatio: cfg.Breaker.FailureRatio,
		}, logger)
		fetch = backend.WithBreaker(fetch, cb)
	}
	if cfg.RatePerSec > 0 {
		fetch = backend.WithRateLimit(fetch, rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst))
	}
	return fetch
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.CodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// One line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
