package search

import (
	"context"

	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/result"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
)

// Executor runs a query against one backend.
type Executor interface {
	Search(ctx context.Context, q query.Query, opts request.Options) (*result.Response[result.Result], error)
}
