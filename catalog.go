package hubsearch

import (
	"context"
	"encoding/json"
	"time"

	cataloguc "github.com/kailas-cloud/hubsearch/internal/usecase/catalog"
	"github.com/kailas-cloud/hubsearch/internal/usecase/containment"
)

// Input narrows a catalog search by a free-text term or a query.
type Input = cataloguc.Input

// ContainsOptions configures a containment check.
type ContainsOptions = containment.Options

// Parent is a catalog above the one being checked for containment: either a
// definition or the id of an entity whose JSON carries a catalog.
type Parent = containment.Descriptor

var (
	// Term narrows a search by a free-text term; an empty term adds nothing.
	Term = cataloguc.Term
	// QueryInput narrows a search by every filter of q.
	QueryInput = cataloguc.WithQuery
)

// ParentEntity returns a Parent loaded from the portal entity with id.
func ParentEntity(id string) Parent { return Parent{EntityID: id} }

// ParentCatalog returns a Parent for an already loaded definition.
func ParentCatalog(def *CatalogDefinition) Parent { return Parent{Catalog: def} }

// CatalogService searches within one catalog. Containment outcomes are
// memoized for the lifetime of the service.
type CatalogService struct {
	cat *cataloguc.Catalog
	obs *observer
}

// Catalog binds def to the client's backends.
func (c *Client) Catalog(def *CatalogDefinition, parents ...Parent) *CatalogService {
	var opts []cataloguc.Option
	if len(parents) > 0 {
		opts = append(opts, cataloguc.WithParents(parents...))
	}
	return &CatalogService{
		cat: cataloguc.New(def, c.search, c.engine, opts...),
		obs: c.obs,
	}
}

// Title returns the catalog title.
func (s *CatalogService) Title() string { return s.cat.Title() }

// DisplayConfig returns the catalog's display configuration untouched.
func (s *CatalogService) DisplayConfig() json.RawMessage { return s.cat.Definition().DisplayConfig() }

// SearchScope searches the scope for kind. A catalog without that scope
// returns an empty page carrying MessageMissingScope.
func (s *CatalogService) SearchScope(ctx context.Context, kind EntityKind, in Input, opts SearchOptions) (page *Page, err error) {
	start := time.Now()
	defer func() { s.obs.observe("catalog_search", start, err, "scope", string(kind)) }()

	return s.cat.SearchScope(ctx, kind, in, opts)
}

// SearchScopes searches several scopes concurrently, every configured one
// when kinds is empty.
func (s *CatalogService) SearchScopes(
	ctx context.Context, in Input, opts SearchOptions, kinds ...EntityKind,
) (pages map[EntityKind]*Page, err error) {
	start := time.Now()
	defer func() { s.obs.observe("catalog_search_scopes", start, err, "scopes", len(pages)) }()

	return s.cat.SearchScopes(ctx, in, opts, kinds...)
}

// SearchCollection searches the collection with key.
func (s *CatalogService) SearchCollection(ctx context.Context, key string, in Input, opts SearchOptions) (page *Page, err error) {
	start := time.Now()
	defer func() { s.obs.observe("collection_search", start, err, "collection", key) }()

	col, err := s.cat.Collection(key)
	if err != nil {
		return nil, err
	}
	return col.Search(ctx, in, opts)
}

// SearchCollections searches every collection concurrently, keyed by collection key.
func (s *CatalogService) SearchCollections(ctx context.Context, in Input, opts SearchOptions) (pages map[string]*Page, err error) {
	start := time.Now()
	defer func() { s.obs.observe("collection_search_all", start, err, "collections", len(pages)) }()

	return s.cat.SearchCollections(ctx, in, opts)
}

// Contains reports whether identifier is reachable through the catalog or
// its parents.
func (s *CatalogService) Contains(ctx context.Context, identifier string, opts ContainsOptions) (res ContainmentResult, err error) {
	start := time.Now()
	defer func() {
		s.obs.observe("contains", start, err, "identifier", identifier, "contained", res.IsContained)
	}()

	return s.cat.Contains(ctx, identifier, opts)
}

// SearchAll searches the kind scope of every catalog concurrently, keyed by
// catalog title. Repeated titles get a "#n" suffix.
func (c *Client) SearchAll(
	ctx context.Context, catalogs []*CatalogService, kind EntityKind, in Input, opts SearchOptions,
) (pages map[string]*Page, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search_all", start, err, "catalogs", len(catalogs)) }()

	cats := make([]*cataloguc.Catalog, len(catalogs))
	for i, s := range catalogs {
		cats[i] = s.cat
	}
	return cataloguc.SearchAll(ctx, cats, kind, in, opts)
}
