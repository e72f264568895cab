package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCatalog signals a missing or malformed catalog definition.
	ErrInvalidCatalog = errors.New("invalid catalog")
	// ErrCollectionNotFound signals an unknown collection key.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrNoCollections signals a catalog without any collections.
	ErrNoCollections = errors.New("catalog has no collections")
	// ErrInvalidQuery signals a malformed query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUnknownPredicateField signals a predicate field outside the known set.
	ErrUnknownPredicateField = errors.New("unknown predicate field")
	// ErrUnknownEntityKind signals an unsupported target entity.
	ErrUnknownEntityKind = errors.New("unknown entity kind")
	// ErrUnsupportedBackend signals a target entity or query shape the chosen
	// backend cannot express.
	ErrUnsupportedBackend = errors.New("not supported by backend")
	// ErrRemote signals a non-2xx response from a search backend.
	ErrRemote = errors.New("remote request failed")
)

// Stable configuration error names.
const (
	NameInvalidCatalog     = "InvalidCatalog"
	NameCollectionNotFound = "CollectionNotFound"
	NameNoCollections      = "NoCollections"
	NameInvalidQuery       = "InvalidQuery"
)

// ConfigError is a catalog/collection configuration failure with a stable name.
type ConfigError struct {
	Name    string
	Message string
	err     error
}

func (e *ConfigError) Error() string { return e.Name + ": " + e.Message }

func (e *ConfigError) Unwrap() error { return e.err }

// NewConfigError creates a ConfigError that unwraps to sentinel.
func NewConfigError(name string, sentinel error, format string, args ...any) error {
	return &ConfigError{Name: name, Message: fmt.Sprintf(format, args...), err: sentinel}
}

// RemoteError is returned by executors when a backend answers with a non-2xx status.
// Message is the HTTP status text; Detail carries what the body said, if anything.
type RemoteError struct {
	Status  int
	URL     string
	Message string
	Detail  string
}

func (e *RemoteError) Error() string {
	s := fmt.Sprintf("%s: %d %s (%s)", ErrRemote.Error(), e.Status, e.Message, e.URL)
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	return s
}

func (e *RemoteError) Unwrap() error { return ErrRemote }
