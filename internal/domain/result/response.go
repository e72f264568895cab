package result

import "context"

// Message codes.
const (
	// CodeMissingScope marks a search against an entity kind the catalog has no scope for.
	CodeMissingScope = "missingScope"
)

// Message is a soft, non-error note attached to a response.
type Message struct {
	Code    string         `json:"code"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// AggregationValue is one bucket of a terms aggregation.
type AggregationValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Aggregation is a terms aggregation over a field.
type Aggregation struct {
	Field  string             `json:"field"`
	Values []AggregationValue `json:"values"`
}

// NextFunc fetches the page after the one it was bound to.
type NextFunc[T any] func(ctx context.Context) (*Response[T], error)

// Response is a page of results. Next is a closure bound to the compiled
// request, not a server-side cursor.
type Response[T any] struct {
	Total             int           `json:"total"`
	Results           []T           `json:"results"`
	HasNext           bool          `json:"hasNext"`
	Aggregations      []Aggregation `json:"aggregations,omitempty"`
	Messages          []Message     `json:"messages,omitempty"`
	ExecutedQuerySize int           `json:"executedQuerySize,omitempty"`

	next NextFunc[T]
}

// New creates a page. HasNext is true iff next is non-nil.
func New[T any](total int, results []T, next NextFunc[T]) *Response[T] {
	if results == nil {
		results = []T{}
	}
	return &Response[T]{
		Total:   total,
		Results: results,
		HasNext: next != nil,
		next:    next,
	}
}

// Empty creates a terminal page with no results.
func Empty[T any](msgs ...Message) *Response[T] {
	r := New[T](0, nil, nil)
	r.Messages = msgs
	return r
}

// MissingScope creates the empty response for an unconfigured scope.
func MissingScope[T any](scope string) *Response[T] {
	return Empty[T](Message{
		Code:    CodeMissingScope,
		Message: "no scope configured for " + scope,
		Data:    map[string]any{"scope": scope},
	})
}

// Next fetches the following page. After the last page it returns (nil, nil).
func (r *Response[T]) Next(ctx context.Context) (*Response[T], error) {
	if r == nil || !r.HasNext || r.next == nil {
		return nil, nil //nolint:nilnil // end of pagination is not an error
	}
	return r.next(ctx)
}

// HasMessage reports whether a message with code is attached.
func (r *Response[T]) HasMessage(code string) bool {
	if r == nil {
		return false
	}
	for _, m := range r.Messages {
		if m.Code == code {
			return true
		}
	}
	return false
}
