package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hubsearch/internal/domain"
	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/result"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
	"github.com/kailas-cloud/hubsearch/internal/logger"
	"github.com/kailas-cloud/hubsearch/internal/metrics"
)

// Service routes queries to the backend executor for their target entity.
type Service struct {
	executors map[request.Backend]Executor
}

// New creates a search service. A nil executor leaves that backend unconfigured.
func New(portal, ogc Executor) *Service {
	ex := make(map[request.Backend]Executor, 2)
	if portal != nil {
		ex[request.Portal] = portal
	}
	if ogc != nil {
		ex[request.OGC] = ogc
	}
	return &Service{executors: ex}
}

// Search validates q, picks the backend and executes the first page.
// Unsatisfiable queries are answered locally with an empty page.
func (s *Service) Search(
	ctx context.Context, q query.Query, opts request.Options,
) (*result.Response[result.Result], error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if q.Unsatisfiable() {
		metrics.ShortCircuitTotal.WithLabelValues("unsatisfiable").Inc()
		return result.Empty[result.Result](), nil
	}

	backend := opts.ResolveBackend(q.TargetEntity)
	ex, ok := s.executors[backend]
	if !ok {
		return nil, fmt.Errorf("search %s via %s: %w", q.TargetEntity, backend, domain.ErrUnsupportedBackend)
	}

	start := time.Now()
	resp, err := ex.Search(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", q.TargetEntity, err)
	}
	logger.FromContext(ctx).Debug("search executed",
		zap.String("entity", string(q.TargetEntity)),
		zap.String("backend", string(backend)),
		zap.Int("total", resp.Total),
		zap.Duration("took", time.Since(start)),
	)
	return resp, nil
}
