package portal

import (
	"context"
	"fmt"
	"slices"
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

// IncludeGroups asks the executor to load item group memberships.
const IncludeGroups = "groups"

const backendLabel = "portal"

// Executor runs portal searches.
type Executor struct {
	baseURL string
	fetch   backend.FetchFunc
	groups  *GroupFetcher
}

// NewExecutor creates a portal executor. A nil fetch uses http.DefaultClient.
func NewExecutor(baseURL string, fetch backend.FetchFunc) *Executor {
	if fetch == nil {
		fetch = backend.HTTPFetch(nil)
	}
	return &Executor{
		baseURL: baseURL,
		fetch:   fetch,
		groups:  NewGroupFetcher(baseURL, fetch),
	}
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
	includeGroups := q.TargetEntity == entity.Item && slices.Contains(opts.Include, IncludeGroups)
	return e.execute(ctx, p, includeGroups)
}

func (e *Executor) execute(ctx context.Context, p Params, includeGroups bool) (*result.Response[result.Result], error) {
	log := logger.FromContext(ctx)
	qs := p.Encode()
	url := backend.JoinURL(e.baseURL, p.Path, qs)

	log.Debug("portal search", zap.String("entity", string(p.Kind)), zap.String("url", url))

	start := time.Now()
	var raw searchResponse
	err := backend.GetJSON(ctx, e.fetch, url, p.Credential, &raw)
	metrics.BackendRequestDuration.WithLabelValues(backendLabel, string(p.Kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(backendLabel, string(p.Kind), "error").Inc()
		metrics.BackendErrorsTotal.WithLabelValues(backendLabel, backend.ErrorType(err)).Inc()
		log.Warn("portal search failed", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("portal search %s: %w", p.Kind, err)
	}
	metrics.BackendRequestsTotal.WithLabelValues(backendLabel, string(p.Kind), "success").Inc()

	pg, err := normalize(p.Kind, raw)
	if err != nil {
		return nil, err
	}
	if includeGroups {
		if err := e.attachGroups(ctx, pg.results, p); err != nil {
			return nil, err
		}
	}

	var next result.NextFunc[result.Result]
	if pg.hasNext {
		nextStart := pg.next
		next = func(ctx context.Context) (*result.Response[result.Result], error) {
			np, err := p.Clone()
			if err != nil {
				return nil, err
			}
			np.Start = nextStart
			return e.execute(ctx, np, includeGroups)
		}
	}

	resp := result.New(pg.total, pg.results, next)
	resp.Aggregations = pg.aggregations
	resp.ExecutedQuerySize = len(qs)
	return resp, nil
}

func (e *Executor) attachGroups(ctx context.Context, results []result.Result, p Params) error {
	for i := range results {
		if len(results[i].Groups) > 0 {
			continue
		}
		ids, err := e.groups.ItemGroups(ctx, results[i].ID, p.Credential)
		if err != nil {
			return fmt.Errorf("load groups for %s: %w", results[i].ID, err)
		}
		results[i].Groups = ids
	}
	return nil
}
