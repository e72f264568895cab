package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/hubsearch/internal/backend/ogc"
	"github.com/kailas-cloud/hubsearch/internal/backend/portal"
	"github.com/kailas-cloud/hubsearch/internal/domain"
	"github.com/kailas-cloud/hubsearch/internal/domain/auth"
	dcatalog "github.com/kailas-cloud/hubsearch/internal/domain/catalog"
	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
	cataloguc "github.com/kailas-cloud/hubsearch/internal/usecase/catalog"
	"github.com/kailas-cloud/hubsearch/internal/usecase/containment"
	"github.com/kailas-cloud/hubsearch/internal/usecase/explain"
	healthuc "github.com/kailas-cloud/hubsearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/hubsearch/internal/usecase/search"
)

// Credential headers forwarded to the portal backend.
const (
	HeaderPortalToken = "X-Portal-Token"
	HeaderPortalUser  = "X-Portal-User"
	HeaderPortalURL   = "X-Portal-URL"
)

const (
	maxBodyBytes      = 1 << 20
	maxContainsFanOut = 8
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the search, catalog and explain API.
type Server struct {
	search        *searchuc.Service
	containment   *containment.Engine
	explainer     *explain.Explainer
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	engine *containment.Engine,
	explainer *explain.Explainer,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:      search,
		containment: engine,
		explainer:   explainer,
		health:      health,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		configErrorHandler,
		remoteErrorHandler,
		detailHandler(domain.ErrUnknownPredicateField, http.StatusBadRequest, CodeUnknownField),
		detailHandler(domain.ErrUnknownEntityKind, http.StatusBadRequest, CodeUnknownEntityKind),
		detailHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery),
		sentinelHandler(domain.ErrUnsupportedBackend, http.StatusBadRequest, CodeUnsupportedBackend),
		sentinelHandler(gobreakerOpen, http.StatusServiceUnavailable, CodeBackendUnavailable),
		sentinelHandler(gobreakerTooMany, http.StatusServiceUnavailable, CodeBackendUnavailable),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout),
		sentinelHandler(containment.ErrNoFetcher, http.StatusNotImplemented, CodeNotImplemented),
	}
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Post("/search", s.Search)
	r.Post("/compile", s.Compile)
	r.Post("/explain", s.Explain)
	r.Route("/catalogs", func(r chi.Router) {
		r.Post("/search", s.SearchCatalog)
		r.Post("/search-all", s.SearchAll)
		r.Post("/contains", s.Contains)
		r.Post("/collections/{key}/search", s.SearchCollection)
	})
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	opts, ok := s.options(w, r, req.Options)
	if !ok {
		return
	}
	resp, err := s.search.Search(r.Context(), req.Query, opts)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Compile handles POST /compile. Each backend that cannot serve the target
// entity reports its error instead of failing the request.
func (s *Server) Compile(w http.ResponseWriter, r *http.Request) {
	var req CompileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Query.Validate(); err != nil {
		s.handleDomainError(w, err)
		return
	}
	opts, err := req.Options.toDomain(nil).Normalize()
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	out := CompileResponse{Unsatisfiable: req.Query.Unsatisfiable(), Errors: map[string]string{}}
	if p, err := portal.Compile(req.Query, opts); err == nil {
		out.Portal = &PortalCompiled{Path: p.Path, QueryString: p.Encode(), Q: p.Q}
	} else {
		out.Errors[string(request.Portal)] = err.Error()
	}
	if p, err := ogc.Compile(req.Query, opts); err == nil {
		out.OGC = &OGCCompiled{Path: p.Path(), QueryString: p.Encode(), Filter: p.Filter}
	} else {
		out.Errors[string(request.OGC)] = err.Error()
	}
	if out.Portal == nil && out.OGC == nil {
		writeError(w, http.StatusBadRequest, CodeUnsupportedBackend, domain.ErrUnsupportedBackend.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Explain handles POST /explain.
func (s *Server) Explain(w http.ResponseWriter, r *http.Request) {
	var req ExplainRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ex, err := s.explainer.Explain(r.Context(), req.Result, req.Query, req.Options.toDomain(credential(r)))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

// SearchCatalog handles POST /catalogs/search.
func (s *Server) SearchCatalog(w http.ResponseWriter, r *http.Request) {
	var req CatalogSearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	for _, k := range req.Kinds {
		if !k.IsValid() {
			writeError(w, http.StatusBadRequest, CodeUnknownEntityKind, fmt.Sprintf("unknown entity kind %q", k))
			return
		}
	}
	cat, err := s.bindCatalog(req.Catalog)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	opts, ok := s.options(w, r, req.Options)
	if !ok {
		return
	}
	pages, err := cat.SearchScopes(r.Context(), req.input(), opts, req.Kinds...)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

// SearchCollection handles POST /catalogs/collections/{key}/search.
func (s *Server) SearchCollection(w http.ResponseWriter, r *http.Request) {
	var key string
	err := runtime.BindStyledParameterWithOptions("simple", "key", chi.URLParam(r, "key"), &key,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid collection key")
		return
	}

	var req CollectionSearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cat, err := s.bindCatalog(req.Catalog)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	col, err := cat.Collection(key)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	opts, ok := s.options(w, r, req.Options)
	if !ok {
		return
	}
	page, err := col.Search(r.Context(), req.input(), opts)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Contains handles POST /catalogs/contains.
func (s *Server) Contains(w http.ResponseWriter, r *http.Request) {
	var req ContainsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ids := req.identifiers()
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "identifier is required")
		return
	}
	if req.EntityKind != "" && !req.EntityKind.IsValid() {
		writeError(w, http.StatusBadRequest, CodeUnknownEntityKind, fmt.Sprintf("unknown entity kind %q", req.EntityKind))
		return
	}

	parents := make([]containment.Descriptor, 0, len(req.Parents))
	for i, p := range req.Parents {
		d := containment.Descriptor{EntityID: p.EntityID}
		if len(p.Catalog) > 0 {
			def, err := dcatalog.FromJSON(p.Catalog)
			if err != nil {
				s.handleDomainError(w, fmt.Errorf("parent %d: %w", i, err))
				return
			}
			d.Catalog = def
		}
		parents = append(parents, d)
	}
	cat, err := s.bindCatalog(req.Catalog, cataloguc.WithParents(parents...))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	opts := containment.Options{EntityKind: req.EntityKind, Search: req.Options.toDomain(credential(r))}
	results := make([]containment.Result, len(ids))
	g, gctx := errgroup.WithContext(r.Context())
	g.SetLimit(maxContainsFanOut)
	for i, id := range ids {
		g.Go(func() error {
			res, err := cat.Contains(gctx, id, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.handleDomainError(w, err)
		return
	}
	if req.Identifier != "" && len(req.Identifiers) == 0 {
		writeJSON(w, http.StatusOK, results[0])
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// SearchAll handles POST /catalogs/search-all.
func (s *Server) SearchAll(w http.ResponseWriter, r *http.Request) {
	var req SearchAllRequest
	if !decodeBody(w, r, &req) {
		return
	}
	kind := req.EntityKind
	if kind == "" {
		kind = entity.Item
	}
	if !kind.IsValid() {
		writeError(w, http.StatusBadRequest, CodeUnknownEntityKind, fmt.Sprintf("unknown entity kind %q", kind))
		return
	}
	cats := make([]*cataloguc.Catalog, 0, len(req.Catalogs))
	for i, raw := range req.Catalogs {
		cat, err := s.bindCatalog(raw)
		if err != nil {
			s.handleDomainError(w, fmt.Errorf("catalog %d: %w", i, err))
			return
		}
		cats = append(cats, cat)
	}
	opts, ok := s.options(w, r, req.Options)
	if !ok {
		return
	}
	pages, err := cataloguc.SearchAll(r.Context(), cats, kind, req.input(), opts)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) bindCatalog(raw json.RawMessage, opts ...cataloguc.Option) (*cataloguc.Catalog, error) {
	if len(raw) == 0 {
		return nil, domain.NewConfigError(domain.NameInvalidCatalog, domain.ErrInvalidCatalog, "catalog is required")
	}
	def, err := dcatalog.FromJSON(raw)
	if err != nil {
		return nil, err
	}
	return cataloguc.New(def, s.search, s.containment, opts...), nil
}

// options merges body options with the num, start and backend query parameters.
func (s *Server) options(w http.ResponseWriter, r *http.Request, body OptionsRequest) (request.Options, bool) {
	var params SearchParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "num", q, &params.Num); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid num parameter")
		return request.Options{}, false
	}
	if err := runtime.BindQueryParameter("form", true, false, "start", q, &params.Start); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid start parameter")
		return request.Options{}, false
	}
	if err := runtime.BindQueryParameter("form", true, false, "backend", q, &params.Backend); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid backend parameter")
		return request.Options{}, false
	}

	opts := body.toDomain(credential(r))
	if params.Num != nil {
		opts.Num = *params.Num
	}
	if params.Start != nil {
		opts.Start = *params.Start
	}
	if params.Backend != nil {
		opts.Backend = request.Backend(*params.Backend)
	}
	if opts.Backend != "" && !opts.Backend.IsValid() {
		writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("invalid backend: %q", opts.Backend))
		return request.Options{}, false
	}
	return opts, true
}

func (in CatalogInput) input() cataloguc.Input {
	if in.Query != nil {
		return cataloguc.WithQuery(*in.Query)
	}
	return cataloguc.Term(in.Term)
}

func (req ContainsRequest) identifiers() []string {
	if req.Identifier != "" && len(req.Identifiers) == 0 {
		return []string{req.Identifier}
	}
	return req.Identifiers
}

// credential builds the portal credential from request headers, or nil.
func credential(r *http.Request) *auth.Credential {
	tok := r.Header.Get(HeaderPortalToken)
	if tok == "" {
		return nil
	}
	return auth.NewCredential(r.Header.Get(HeaderPortalURL), r.Header.Get(HeaderPortalUser), tok, time.Time{})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		var ce *domain.ConfigError
		switch {
		case errors.As(err, &ce):
			writeConfigError(w, ce)
		case errors.Is(err, domain.ErrUnknownPredicateField):
			writeError(w, http.StatusBadRequest, CodeUnknownField, err.Error())
		case errors.Is(err, domain.ErrInvalidQuery):
			writeError(w, http.StatusBadRequest, CodeInvalidQuery, err.Error())
		default:
			writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		}
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
