package request

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/hubsearch/internal/domain/auth"
	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
)

// Paging limits.
const (
	DefaultNum = 10
	MaxNum     = 100
	// DefaultStart is the first record offset; both backends count from 1.
	DefaultStart = 1
)

// Backend selects the wire protocol a query is compiled for.
type Backend string

// Supported backends.
const (
	// Portal is the legacy field-query-string search endpoint.
	Portal Backend = "portal"
	// OGC is the OGC-API style collection items endpoint.
	OGC Backend = "ogc"
)

// IsValid checks if the backend is one of the supported values.
func (b Backend) IsValid() bool { return b == Portal || b == OGC }

// SortOrder is the sort direction.
type SortOrder string

// Sort directions.
const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Options configures a single search execution.
type Options struct {
	// Backend overrides the default backend for the target entity.
	Backend Backend
	Num     int
	Start   int

	SortField string
	SortOrder SortOrder

	// Fields projects the returned properties (OGC only).
	Fields []string
	// Flatten asks the OGC backend to flatten nested arrays.
	Flatten bool

	// AggFields requests terms aggregations; AggLimit caps buckets per field.
	AggFields []string
	AggLimit  int

	// Include names related resources to enrich results with (e.g. "groups").
	Include []string

	Credential *auth.Credential

	// Now resolves relative date predicates; zero means time.Now.
	Now time.Time
}

// Normalize applies defaults and clamps paging.
func (o Options) Normalize() (Options, error) {
	if o.Backend != "" && !o.Backend.IsValid() {
		return Options{}, fmt.Errorf("invalid backend: %q", o.Backend)
	}
	switch o.SortOrder {
	case "", Asc, Desc:
	default:
		return Options{}, fmt.Errorf("invalid sort order: %q", o.SortOrder)
	}
	if o.Num <= 0 {
		o.Num = DefaultNum
	}
	if o.Num > MaxNum {
		o.Num = MaxNum
	}
	if o.Start <= 0 {
		o.Start = DefaultStart
	}
	if o.AggLimit < 0 {
		o.AggLimit = 0
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	return o, nil
}

// DefaultBackend returns the backend used for kind when none is chosen.
func DefaultBackend(kind entity.Kind) Backend {
	switch kind {
	case entity.Item, entity.Group, entity.User:
		return Portal
	default:
		return OGC
	}
}

// ResolveBackend picks the explicit backend or the default for kind.
func (o Options) ResolveBackend(kind entity.Kind) Backend {
	if o.Backend != "" {
		return o.Backend
	}
	return DefaultBackend(kind)
}
