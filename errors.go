package hubsearch

import (
	"github.com/kailas-cloud/hubsearch/internal/domain"
	"github.com/kailas-cloud/hubsearch/internal/usecase/containment"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidCatalog        = domain.ErrInvalidCatalog
	ErrCollectionNotFound    = domain.ErrCollectionNotFound
	ErrNoCollections         = domain.ErrNoCollections
	ErrInvalidQuery          = domain.ErrInvalidQuery
	ErrUnknownPredicateField = domain.ErrUnknownPredicateField
	ErrUnknownEntityKind     = domain.ErrUnknownEntityKind
	ErrUnsupportedBackend    = domain.ErrUnsupportedBackend
	ErrRemote                = domain.ErrRemote
	ErrNoEntityFetcher       = containment.ErrNoFetcher
)

// Typed errors. Use errors.As() to inspect.
type (
	// ConfigError carries a stable Name such as "CollectionNotFound".
	ConfigError = domain.ConfigError
	// RemoteError carries the backend HTTP status.
	RemoteError = domain.RemoteError
)
