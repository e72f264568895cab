// Package catalog searches catalogs: per-scope and per-collection searches,
// concurrent fan-out and memoized containment checks.
package catalog

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	dcatalog "github.com/kailas-cloud/hubsearch/internal/domain/catalog"
	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/result"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
	"github.com/kailas-cloud/hubsearch/internal/logger"
	"github.com/kailas-cloud/hubsearch/internal/metrics"
	"github.com/kailas-cloud/hubsearch/internal/usecase/containment"
)

// Page is a page of canonical results.
type Page = result.Response[result.Result]

// Input is a free-text term or a caller-supplied query, ANDed with a scope.
type Input struct {
	term  string
	query *query.Query
}

// Term searches for free text. An empty term adds no constraint.
func Term(term string) Input { return Input{term: term} }

// WithQuery appends the filters of q. Its target entity is ignored.
func WithQuery(q query.Query) Input { return Input{query: &q} }

func (in Input) filters() []query.Filter {
	if in.query != nil {
		return in.query.Filters
	}
	if in.term == "" {
		return nil
	}
	return []query.Filter{query.NewFilter(query.TermPredicate(in.term))}
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithParents sets the enclosing catalogs, innermost first, consulted by Contains
// after this one.
func WithParents(parents ...containment.Descriptor) Option {
	return func(c *Catalog) { c.parents = parents }
}

// Catalog is a catalog definition bound to a search backend.
// The containment cache lives as long as the instance; replace the
// instance to invalidate it.
type Catalog struct {
	def     *dcatalog.Catalog
	search  Searcher
	checker Checker
	parents []containment.Descriptor

	mu       sync.Mutex
	contains map[string]containment.Result
	flight   singleflight.Group
}

// New binds def to search. checker may be nil when Contains is not used.
func New(def *dcatalog.Catalog, search Searcher, checker Checker, opts ...Option) *Catalog {
	c := &Catalog{
		def:      def,
		search:   search,
		checker:  checker,
		contains: make(map[string]containment.Result),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Definition returns the underlying catalog definition.
func (c *Catalog) Definition() *dcatalog.Catalog { return c.def }

// Title returns the catalog title.
func (c *Catalog) Title() string { return c.def.Title() }

// SearchItems searches the item scope.
func (c *Catalog) SearchItems(ctx context.Context, in Input, opts request.Options) (*Page, error) {
	return c.SearchScope(ctx, entity.Item, in, opts)
}

// SearchGroups searches the group scope.
func (c *Catalog) SearchGroups(ctx context.Context, in Input, opts request.Options) (*Page, error) {
	return c.SearchScope(ctx, entity.Group, in, opts)
}

// SearchUsers searches the user scope.
func (c *Catalog) SearchUsers(ctx context.Context, in Input, opts request.Options) (*Page, error) {
	return c.SearchScope(ctx, entity.User, in, opts)
}

// SearchScope searches the base scope for kind narrowed by in. Without a
// scope for kind it returns an empty page with a missingScope message and
// never calls the backend.
func (c *Catalog) SearchScope(ctx context.Context, kind entity.Kind, in Input, opts request.Options) (*Page, error) {
	scope, ok := c.def.Scope(kind)
	if !ok {
		metrics.ShortCircuitTotal.WithLabelValues("missing_scope").Inc()
		logger.FromContext(ctx).Debug("catalog scope missing",
			zap.String("catalog", c.def.Title()), zap.String("scope", string(kind)))
		return result.MissingScope[result.Result](string(kind)), nil
	}
	ctx = logger.With(ctx, zap.String("catalog", c.def.Title()), zap.String("scope", string(kind)))
	return c.search.Search(ctx, scope.Append(in.filters()...), opts)
}

// SearchScopes searches every listed scope concurrently, or every configured
// scope when kinds is empty. The first failure cancels the rest and is returned.
func (c *Catalog) SearchScopes(
	ctx context.Context, in Input, opts request.Options, kinds ...entity.Kind,
) (map[entity.Kind]*Page, error) {
	if len(kinds) == 0 {
		kinds = c.def.ScopeKinds()
	}
	return fanOut(ctx, kinds, func(ctx context.Context, k entity.Kind) (*Page, error) {
		return c.SearchScope(ctx, k, in, opts)
	})
}

// Collection returns the collection for key bound to the search backend.
func (c *Catalog) Collection(key string) (*Collection, error) {
	col, err := c.def.Collection(key)
	if err != nil {
		return nil, err
	}
	return &Collection{Collection: col, search: c.search}, nil
}

// CustomCollection returns the "<kind>-custom" collection narrowed by extra.
func (c *Catalog) CustomCollection(kind entity.Kind, extra ...query.Filter) *Collection {
	return &Collection{Collection: c.def.CustomCollection(kind, extra...), search: c.search}
}

// SearchCollections searches every collection concurrently, keyed by collection key.
func (c *Catalog) SearchCollections(ctx context.Context, in Input, opts request.Options) (map[string]*Page, error) {
	keys := c.def.CollectionKeys()
	cols := make(map[string]*Collection, len(keys))
	for _, k := range keys {
		col, err := c.Collection(k)
		if err != nil {
			return nil, err
		}
		cols[k] = col
	}
	return fanOut(ctx, keys, func(ctx context.Context, k string) (*Page, error) {
		return cols[k].Search(ctx, in, opts)
	})
}

// Contains reports whether identifier is reachable through this catalog or
// its parents. Outcomes are memoized per identifier and entity kind; concurrent
// calls for the same key share one evaluation. Failures are not cached.
func (c *Catalog) Contains(ctx context.Context, identifier string, opts containment.Options) (containment.Result, error) {
	key := string(opts.EntityKind) + "\x00" + identifier

	c.mu.Lock()
	if r, ok := c.contains[key]; ok {
		c.mu.Unlock()
		return r, nil
	}
	c.mu.Unlock()

	v, err, _ := c.flight.Do(key, func() (any, error) {
		c.mu.Lock()
		r, ok := c.contains[key]
		c.mu.Unlock()
		if ok {
			return r, nil
		}
		chain := make([]containment.Descriptor, 0, 1+len(c.parents))
		chain = append(chain, containment.Descriptor{Catalog: c.def})
		chain = append(chain, c.parents...)
		r, err := c.checker.Contains(ctx, identifier, chain, opts)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.contains[key] = r
		c.mu.Unlock()
		return r, nil
	})
	if err != nil {
		return containment.Result{}, err
	}
	return v.(containment.Result), nil
}

// Collection is a collection bound to the search backend.
type Collection struct {
	dcatalog.Collection
	search Searcher
}

// Search searches the effective scope narrowed by in. The collection's sort
// and include settings apply unless opts sets its own.
func (col *Collection) Search(ctx context.Context, in Input, opts request.Options) (*Page, error) {
	if opts.SortField == "" {
		opts.SortField = col.SortField
	}
	if opts.SortOrder == "" && col.SortDirection != "" {
		opts.SortOrder = request.SortOrder(col.SortDirection)
	}
	if len(opts.Include) == 0 && len(col.Include) > 0 {
		opts.Include = append([]string(nil), col.Include...)
	}
	return col.search.Search(ctx, col.Scope.Append(in.filters()...), opts)
}

// SearchAll searches the kind scope of every catalog concurrently, keyed by
// catalog title. Repeated titles get a "#n" suffix in input order.
func SearchAll(
	ctx context.Context, catalogs []*Catalog, kind entity.Kind, in Input, opts request.Options,
) (map[string]*Page, error) {
	idx := make([]int, len(catalogs))
	for i := range idx {
		idx[i] = i
	}
	pages, err := fanOut(ctx, idx, func(ctx context.Context, i int) (*Page, error) {
		return catalogs[i].SearchScope(ctx, kind, in, opts)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Page, len(catalogs))
	seen := make(map[string]int, len(catalogs))
	for i, c := range catalogs {
		key := c.Title()
		if n := seen[key]; n > 0 {
			key += "#" + strconv.Itoa(n+1)
		}
		seen[c.Title()]++
		out[key] = pages[i]
	}
	return out, nil
}

// fanOut runs fn for every key concurrently. All calls start before any is
// awaited; the first error cancels the shared context and is returned.
func fanOut[K comparable](
	ctx context.Context, keys []K, fn func(ctx context.Context, k K) (*Page, error),
) (map[K]*Page, error) {
	g, gctx := errgroup.WithContext(ctx)
	pages := make([]*Page, len(keys))
	for i, k := range keys {
		g.Go(func() error {
			p, err := fn(gctx, k)
			if err != nil {
				return err
			}
			pages[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[K]*Page, len(keys))
	for i, k := range keys {
		out[k] = pages[i]
	}
	return out, nil
}
