package chi

import (
	"encoding/json"
	"time"

	"github.com/kailas-cloud/hubsearch/internal/domain/auth"
	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/result"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
)

// ErrorCode is a stable machine-readable error code.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	CodeBadRequest         ErrorCode = "bad_request"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeInvalidQuery       ErrorCode = "invalid_query"
	CodeUnknownField       ErrorCode = "unknown_predicate_field"
	CodeUnknownEntityKind  ErrorCode = "unknown_entity_kind"
	CodeUnsupportedBackend ErrorCode = "unsupported_backend"
	CodeInvalidCatalog     ErrorCode = "invalid_catalog"
	CodeNoCollections      ErrorCode = "no_collections"
	CodeCollectionNotFound ErrorCode = "collection_not_found"
	CodeRemoteError        ErrorCode = "remote_error"
	CodeBackendUnavailable ErrorCode = "backend_unavailable"
	CodeTimeout            ErrorCode = "timeout"
	CodeNotImplemented     ErrorCode = "not_implemented"
	CodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	// Status is the upstream HTTP status for remote errors.
	Status int `json:"status,omitempty"`
}

// OptionsRequest mirrors request.Options on the wire.
type OptionsRequest struct {
	Backend   request.Backend   `json:"backend,omitempty"`
	Num       int               `json:"num,omitempty"`
	Start     int               `json:"start,omitempty"`
	SortField string            `json:"sortField,omitempty"`
	SortOrder request.SortOrder `json:"sortOrder,omitempty"`
	Fields    []string          `json:"fields,omitempty"`
	Flatten   bool              `json:"flatten,omitempty"`
	AggFields []string          `json:"aggFields,omitempty"`
	AggLimit  int               `json:"aggLimit,omitempty"`
	Include   []string          `json:"include,omitempty"`
	Now       *time.Time        `json:"now,omitempty"`
}

func (o OptionsRequest) toDomain(cred *auth.Credential) request.Options {
	opts := request.Options{
		Backend:    o.Backend,
		Num:        o.Num,
		Start:      o.Start,
		SortField:  o.SortField,
		SortOrder:  o.SortOrder,
		Fields:     o.Fields,
		Flatten:    o.Flatten,
		AggFields:  o.AggFields,
		AggLimit:   o.AggLimit,
		Include:    o.Include,
		Credential: cred,
	}
	if o.Now != nil {
		opts.Now = *o.Now
	}
	return opts
}

// SearchParams are the query-string overrides accepted by search routes.
type SearchParams struct {
	Num     *int    `json:"num,omitempty"`
	Start   *int    `json:"start,omitempty"`
	Backend *string `json:"backend,omitempty"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query   query.Query    `json:"query"`
	Options OptionsRequest `json:"options"`
}

// CompileRequest is the body of POST /compile.
type CompileRequest = SearchRequest

// PortalCompiled is a compiled portal request.
type PortalCompiled struct {
	Path        string `json:"path"`
	QueryString string `json:"queryString"`
	Q           string `json:"q"`
}

// OGCCompiled is a compiled OGC request.
type OGCCompiled struct {
	Path        string `json:"path"`
	QueryString string `json:"queryString"`
	Filter      string `json:"filter"`
}

// CompileResponse holds the query compiled for every backend that supports its entity.
type CompileResponse struct {
	Unsatisfiable bool              `json:"unsatisfiable"`
	Portal        *PortalCompiled   `json:"portal,omitempty"`
	OGC           *OGCCompiled      `json:"ogc,omitempty"`
	Errors        map[string]string `json:"errors,omitempty"`
}

// CatalogInput is the free text or query a catalog search is narrowed with.
type CatalogInput struct {
	Term  string       `json:"term,omitempty"`
	Query *query.Query `json:"query,omitempty"`
}

// CatalogSearchRequest is the body of POST /catalogs/search.
type CatalogSearchRequest struct {
	Catalog json.RawMessage `json:"catalog"`
	CatalogInput
	// Kinds limits the searched scopes; empty means every configured scope.
	Kinds   []entity.Kind  `json:"kinds,omitempty"`
	Options OptionsRequest `json:"options"`
}

// CollectionSearchRequest is the body of POST /catalogs/collections/{key}/search.
type CollectionSearchRequest struct {
	Catalog json.RawMessage `json:"catalog"`
	CatalogInput
	Options OptionsRequest `json:"options"`
}

// ParentRequest is an enclosing catalog: inline or by owning entity id.
type ParentRequest struct {
	Catalog  json.RawMessage `json:"catalog,omitempty"`
	EntityID string          `json:"entityId,omitempty"`
}

// ContainsRequest is the body of POST /catalogs/contains. A single
// Identifier answers with one result, Identifiers with a list in input order.
type ContainsRequest struct {
	Catalog     json.RawMessage `json:"catalog"`
	Parents     []ParentRequest `json:"parents,omitempty"`
	Identifier  string          `json:"identifier,omitempty"`
	Identifiers []string        `json:"identifiers,omitempty"`
	EntityKind  entity.Kind     `json:"entityKind,omitempty"`
	Options     OptionsRequest  `json:"options"`
}

// SearchAllRequest is the body of POST /catalogs/search-all.
type SearchAllRequest struct {
	Catalogs   []json.RawMessage `json:"catalogs"`
	EntityKind entity.Kind       `json:"entityKind"`
	CatalogInput
	Options OptionsRequest `json:"options"`
}

// ExplainRequest is the body of POST /explain.
type ExplainRequest struct {
	Result  result.Result  `json:"result"`
	Query   query.Query    `json:"query"`
	Options OptionsRequest `json:"options"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
