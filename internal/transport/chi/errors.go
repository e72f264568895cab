package chi

import (
	"context"
	"errors"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/kailas-cloud/hubsearch/internal/domain"
	"github.com/kailas-cloud/hubsearch/internal/usecase/containment"
)

var (
	gobreakerOpen    = gobreaker.ErrOpenState
	gobreakerTooMany = gobreaker.ErrTooManyRequests
)

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidCatalog,
		domain.ErrCollectionNotFound,
		domain.ErrNoCollections,
		domain.ErrInvalidQuery,
		domain.ErrUnknownPredicateField,
		domain.ErrUnknownEntityKind,
		domain.ErrUnsupportedBackend,
		domain.ErrRemote,
		gobreaker.ErrOpenState,
		gobreaker.ErrTooManyRequests,
		context.DeadlineExceeded,
		containment.ErrNoFetcher,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// detailHandler is a sentinelHandler for validation errors, whose full
// message describes caller input and is safe to return.
func detailHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, _ string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

// configErrorHandler maps catalog configuration errors by their stable name.
func configErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	var ce *domain.ConfigError
	if !errors.As(err, &ce) {
		return false
	}
	writeConfigError(w, ce)
	return true
}

func writeConfigError(w http.ResponseWriter, ce *domain.ConfigError) {
	switch ce.Name {
	case domain.NameCollectionNotFound:
		writeError(w, http.StatusNotFound, CodeCollectionNotFound, ce.Error())
	case domain.NameNoCollections:
		writeError(w, http.StatusBadRequest, CodeNoCollections, ce.Error())
	case domain.NameInvalidQuery:
		writeError(w, http.StatusBadRequest, CodeInvalidQuery, ce.Error())
	default:
		writeError(w, http.StatusBadRequest, CodeInvalidCatalog, ce.Error())
	}
}

// remoteErrorHandler reports a failed backend call with its upstream status.
func remoteErrorHandler(w http.ResponseWriter, err error, msg string) bool {
	var re *domain.RemoteError
	if !errors.As(err, &re) {
		return false
	}
	writeJSON(w, http.StatusBadGateway, ErrorResponse{
		Code:    CodeRemoteError,
		Message: msg,
		Status:  re.Status,
	})
	return true
}
