package hubsearch

import (
	"github.com/kailas-cloud/hubsearch/internal/domain/auth"
	"github.com/kailas-cloud/hubsearch/internal/domain/catalog"
	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/result"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
	"github.com/kailas-cloud/hubsearch/internal/usecase/containment"
	"github.com/kailas-cloud/hubsearch/internal/usecase/explain"
)

// Query model.
type (
	Query        = query.Query
	Filter       = query.Filter
	Predicate    = query.Predicate
	Field        = query.Field
	MatchOptions = query.MatchOptions
	DateRange    = query.DateRange
	BBox         = query.BBox
	EntityKind   = entity.Kind
)

// Entity kinds.
const (
	Item           = entity.Item
	Group          = entity.Group
	User           = entity.User
	GroupMember    = entity.GroupMember
	DiscussionPost = entity.DiscussionPost
	Event          = entity.Event
	Channel        = entity.Channel
)

// Commonly used predicate fields. Any name accepted by ParseQuery works.
const (
	FieldID       = query.FieldID
	FieldGroup    = query.FieldGroup
	FieldType     = query.FieldType
	FieldOwner    = query.FieldOwner
	FieldTags     = query.FieldTags
	FieldAccess   = query.FieldAccess
	FieldOrgID    = query.FieldOrgID
	FieldCreated  = query.FieldCreated
	FieldModified = query.FieldModified
)

// Query constructors.
var (
	NewQuery      = query.New
	ForTerm       = query.ForTerm
	NewFilter     = query.NewFilter
	AnyOf         = query.AnyOf
	TermPredicate = query.TermPredicate
	SetPredicate  = query.SetPredicate
	Exactly       = query.Exactly
	OneOf         = query.OneOf
	Between       = query.Between
	Last          = query.Last
	ParseQuery    = query.Parse
	ParseBBox     = query.ParseBBox
)

// Results and options.
type (
	Result            = result.Result
	Page              = result.Response[result.Result]
	Message           = result.Message
	Aggregation       = result.Aggregation
	SearchOptions     = request.Options
	Backend           = request.Backend
	SortOrder         = request.SortOrder
	Credential        = auth.Credential
	TokenRefresher    = auth.TokenRefresher
	Explanation       = explain.Explanation
	ContainmentResult = containment.Result
	CatalogDefinition = catalog.Catalog
	CollectionDef     = catalog.Collection
)

// Backends and sort orders.
const (
	Portal = request.Portal
	OGC    = request.OGC
	Asc    = request.Asc
	Desc   = request.Desc
)

// MessageMissingScope is attached to pages searched through a catalog scope that is not configured.
const MessageMissingScope = result.CodeMissingScope

var (
	// NewCredential creates a portal credential.
	NewCredential = auth.NewCredential
	// ParseCatalog decodes and validates a catalog definition.
	ParseCatalog = catalog.FromJSON
	// NewCatalogDefinition creates an empty catalog definition.
	NewCatalogDefinition = catalog.New
)
