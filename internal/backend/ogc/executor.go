package ogc

import (
	"context"
	"fmt"
	"maps"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hubsearch/internal/backend"
	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/result"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
	"github.com/kailas-cloud/hubsearch/internal/logger"
	"github.com/kailas-cloud/hubsearch/internal/metrics"
)

const backendLabel = "ogc"

// Executor runs collection item searches against an OGC API root.
type Executor struct {
	baseURL     string
	fetch       backend.FetchFunc
	collections map[entity.Kind]string
}

// NewExecutor creates an executor. collections overrides DefaultCollections
// per entity kind; a nil fetch uses http.DefaultClient.
func NewExecutor(baseURL string, fetch backend.FetchFunc, collections map[entity.Kind]string) *Executor {
	if fetch == nil {
		fetch = backend.HTTPFetch(nil)
	}
	colls := maps.Clone(DefaultCollections)
	for k, v := range collections {
		if v != "" {
			colls[k] = v
		}
	}
	return &Executor{baseURL: baseURL, fetch: fetch, collections: colls}
}

// Search compiles q and fetches the first page. Unsatisfiable queries return
// an empty page without a backend call.
func (e *Executor) Search(
	ctx context.Context, q query.Query, opts request.Options,
) (*result.Response[result.Result], error) {
	if q.Unsatisfiable() {
		metrics.ShortCircuitTotal.WithLabelValues("unsatisfiable").Inc()
		return result.Empty[result.Result](), nil
	}
	p, err := Compile(q, opts)
	if err != nil {
		return nil, err
	}
	if id, ok := e.collections[q.TargetEntity]; ok {
		p.CollectionID = id
	}
	return e.execute(ctx, p)
}

func (e *Executor) execute(ctx context.Context, p Params) (*result.Response[result.Result], error) {
	log := logger.FromContext(ctx)
	qs := p.Encode()
	url := backend.JoinURL(e.baseURL, p.Path(), qs)

	log.Debug("ogc search", zap.String("entity", string(p.Kind)), zap.String("collection", p.CollectionID))

	start := time.Now()
	var raw featureCollection
	err := backend.GetJSON(ctx, e.fetch, url, nil, &raw)
	metrics.BackendRequestDuration.WithLabelValues(backendLabel, string(p.Kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(backendLabel, string(p.Kind), "error").Inc()
		metrics.BackendErrorsTotal.WithLabelValues(backendLabel, backend.ErrorType(err)).Inc()
		log.Warn("ogc search failed", zap.String("collection", p.CollectionID), zap.Error(err))
		return nil, fmt.Errorf("ogc search %s: %w", p.Kind, err)
	}
	metrics.BackendRequestsTotal.WithLabelValues(backendLabel, string(p.Kind), "success").Inc()

	pg, err := normalize(p.Kind, raw, p.StartIndex)
	if err != nil {
		return nil, err
	}

	var next result.NextFunc[result.Result]
	if pg.hasNext {
		nextIndex := pg.nextIndex
		next = func(ctx context.Context) (*result.Response[result.Result], error) {
			np := p.Clone()
			np.StartIndex = nextIndex
			return e.execute(ctx, np)
		}
	}

	resp := result.New(pg.total, pg.results, next)
	resp.Aggregations = pg.aggregations
	resp.ExecutedQuerySize = len(qs)
	return resp, nil
}
