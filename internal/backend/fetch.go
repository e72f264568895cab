package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/hubsearch/internal/domain"
)

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchFunc performs one outbound request. Executors take it as a dependency
// so tests and the CLI can swap the transport.
type FetchFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

// HTTPFetch adapts a Doer. A nil Doer uses http.DefaultClient.
func HTTPFetch(d Doer) FetchFunc {
	if d == nil {
		d = http.DefaultClient
	}
	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return d.Do(req.WithContext(ctx)) //nolint:wrapcheck // callers wrap with the URL
	}
}

// BreakerConfig configures the outbound circuit breaker.
type BreakerConfig struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// NewBreaker creates a breaker that trips once MinRequests have been seen and
// the failure ratio reaches FailureRatio.
func NewBreaker(name string, cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	minReq := cfg.MinRequests
	if minReq == 0 {
		minReq = 3
	}
	ratio := cfg.FailureRatio
	if ratio <= 0 {
		ratio = 0.6
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minReq && failureRatio >= ratio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// WithBreaker routes fetches through cb. Transport errors and 5xx responses
// count as failures; a 5xx is consumed and returned as *domain.RemoteError.
func WithBreaker(next FetchFunc, cb *gobreaker.CircuitBreaker) FetchFunc {
	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		out, err := cb.Execute(func() (interface{}, error) {
			resp, err := next(ctx, req)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= http.StatusInternalServerError {
				return nil, remoteError(resp, req.URL.String())
			}
			return resp, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, fmt.Errorf("backend unavailable: %w", err)
			}
			return nil, err
		}
		return out.(*http.Response), nil
	}
}

// WithRateLimit waits on lim before each fetch.
func WithRateLimit(next FetchFunc, lim *rate.Limiter) FetchFunc {
	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
		return next(ctx, req)
	}
}

const maxErrorBody = 4 << 10

// remoteError drains and closes resp, returning the translated failure.
func remoteError(resp *http.Response, url string) *domain.RemoteError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &domain.RemoteError{
		Status:  resp.StatusCode,
		URL:     url,
		Message: http.StatusText(resp.StatusCode),
		Detail:  extractMessage(body),
	}
}

// ErrorType classifies a fetch failure for metrics labels.
func ErrorType(err error) string {
	var re *domain.RemoteError
	switch {
	case errors.As(err, &re):
		return "remote"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "transport"
	}
}
