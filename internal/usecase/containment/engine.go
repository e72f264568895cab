// Package containment decides whether an identifier is reachable through a
// chain of nested catalogs.
package containment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hubsearch/internal/domain/catalog"
	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
	"github.com/kailas-cloud/hubsearch/internal/logger"
	"github.com/kailas-cloud/hubsearch/internal/metrics"
)

// ErrNoFetcher is returned when a descriptor needs fetching but the engine has no fetcher.
var ErrNoFetcher = errors.New("containment: no entity fetcher configured")

// Descriptor is one catalog in the chain: either resolved or the id of its owning entity.
type Descriptor struct {
	Catalog  *catalog.Catalog
	EntityID string
}

// Options configures a containment check.
type Options struct {
	// EntityKind selects the scope to check; defaults to item.
	EntityKind entity.Kind
	// Search is passed to every probe search (num and start are overridden).
	Search request.Options
}

// Result is the outcome of a check. Not being contained is not an error.
type Result struct {
	Identifier  string        `json:"identifier"`
	IsContained bool          `json:"isContained"`
	Duration    time.Duration `json:"duration"`
}

// Engine evaluates containment chains.
type Engine struct {
	search Searcher
	fetch  EntityFetcher
}

// NewEngine creates an engine. fetch may be nil when every descriptor carries its catalog.
func NewEngine(search Searcher, fetch EntityFetcher) *Engine {
	return &Engine{search: search, fetch: fetch}
}

// Contains walks chain innermost first and stops at the first catalog whose
// scope, narrowed to identifier, returns a result. Catalogs without the
// relevant scope are skipped. Transport failures are returned.
func (e *Engine) Contains(ctx context.Context, identifier string, chain []Descriptor, opts Options) (Result, error) {
	start := time.Now()
	log := logger.FromContext(ctx)
	kind := opts.EntityKind
	if kind == "" {
		kind = entity.Item
	}
	out := Result{Identifier: identifier}

	for i, d := range chain {
		cat, err := e.resolve(ctx, d)
		if err != nil {
			metrics.ContainmentChecksTotal.WithLabelValues("error").Inc()
			return Result{}, fmt.Errorf("resolve catalog %d: %w", i, err)
		}
		if cat == nil {
			log.Debug("containment: entity has no catalog", zap.String("entity_id", d.EntityID))
			continue
		}
		scope, ok := cat.Scope(kind)
		if !ok {
			log.Debug("containment: catalog has no scope",
				zap.String("catalog", cat.Title()), zap.String("scope", string(kind)))
			continue
		}

		q := scope.Append(query.NewFilter(query.SetPredicate(query.FieldID, query.Exactly(identifier))))
		sopts := opts.Search
		sopts.Num = 1
		sopts.Start = request.DefaultStart
		resp, err := e.search.Search(ctx, q, sopts)
		if err != nil {
			metrics.ContainmentChecksTotal.WithLabelValues("error").Inc()
			return Result{}, fmt.Errorf("probe catalog %q: %w", cat.Title(), err)
		}
		if len(resp.Results) > 0 {
			out.IsContained = true
			break
		}
	}

	out.Duration = time.Since(start)
	if out.IsContained {
		metrics.ContainmentChecksTotal.WithLabelValues("contained").Inc()
	} else {
		metrics.ContainmentChecksTotal.WithLabelValues("not_contained").Inc()
	}
	return out, nil
}

func (e *Engine) resolve(ctx context.Context, d Descriptor) (*catalog.Catalog, error) {
	if d.Catalog != nil {
		return d.Catalog, nil
	}
	if d.EntityID == "" {
		return nil, nil //nolint:nilnil // empty descriptor is skipped
	}
	if e.fetch == nil {
		return nil, ErrNoFetcher
	}
	data, err := e.fetch.Fetch(ctx, d.EntityID)
	if err != nil {
		return nil, err
	}
	cat, err := CatalogFromEntity(data)
	if err != nil {
		if inv, ok := e.fetch.(Invalidator); ok {
			if ierr := inv.Invalidate(ctx, d.EntityID); ierr != nil {
				logger.FromContext(ctx).Warn("containment: invalidate entity failed",
					zap.String("entity_id", d.EntityID), zap.Error(ierr))
			}
		}
		return nil, fmt.Errorf("entity %s: %w", d.EntityID, err)
	}
	return cat, nil
}

// CatalogFromEntity extracts the catalog of an entity, read from data.catalog
// or a top-level catalog key. It returns nil when the entity carries none.
func CatalogFromEntity(data json.RawMessage) (*catalog.Catalog, error) {
	var ent struct {
		Catalog json.RawMessage `json:"catalog"`
		Data    struct {
			Catalog json.RawMessage `json:"catalog"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &ent); err != nil {
		return nil, fmt.Errorf("decode entity: %w", err)
	}
	raw := ent.Data.Catalog
	if isAbsent(raw) {
		raw = ent.Catalog
	}
	if isAbsent(raw) {
		return nil, nil //nolint:nilnil // entity without catalog
	}
	return catalog.FromJSON(raw)
}

func isAbsent(b json.RawMessage) bool {
	return len(b) == 0 || string(b) == "null"
}
