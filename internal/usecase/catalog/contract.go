package catalog

import (
	"context"

	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/result"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
	"github.com/kailas-cloud/hubsearch/internal/usecase/containment"
)

// Searcher runs a single query.
type Searcher interface {
	Search(ctx context.Context, q query.Query, opts request.Options) (*result.Response[result.Result], error)
}

// Checker evaluates containment over a catalog chain.
type Checker interface {
	Contains(
		ctx context.Context, identifier string, chain []containment.Descriptor, opts containment.Options,
	) (containment.Result, error)
}
