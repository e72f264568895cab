package containment

import (
	"context"
	"encoding/json"

	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/result"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
)

// Searcher runs a single query.
type Searcher interface {
	Search(ctx context.Context, q query.Query, opts request.Options) (*result.Response[result.Result], error)
}

// EntityFetcher loads the JSON of a catalog-owning entity.
type EntityFetcher interface {
	Fetch(ctx context.Context, id string) (json.RawMessage, error)
}

// Invalidator is implemented by caching fetchers. The engine drops an entity
// whose stored JSON no longer yields a valid catalog.
type Invalidator interface {
	Invalidate(ctx context.Context, id string) error
}
