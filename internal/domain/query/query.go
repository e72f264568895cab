package query

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/hubsearch/internal/domain"
	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
)

// Operation combines the predicates of one filter.
type Operation string

// Filter operations.
const (
	And Operation = "AND"
	Or  Operation = "OR"
)

// Query describes which content of one entity kind matches.
// Filters are ANDed; an empty filter list matches everything.
type Query struct {
	TargetEntity entity.Kind     `json:"targetEntity"`
	Filters      []Filter        `json:"filters"`
	Properties   json.RawMessage `json:"properties,omitempty"`
}

// Filter groups predicates combined with Operation (AND when unset).
// An empty predicate list matches nothing.
type Filter struct {
	Operation  Operation   `json:"operation,omitempty"`
	Predicates []Predicate `json:"predicates"`
}

// NewFilter creates an AND filter.
func NewFilter(preds ...Predicate) Filter {
	return Filter{Predicates: preds}
}

// AnyOf creates an OR filter.
func AnyOf(preds ...Predicate) Filter {
	return Filter{Operation: Or, Predicates: preds}
}

// Op returns the effective operation.
func (f Filter) Op() Operation {
	if f.Operation == "" {
		return And
	}
	return f.Operation
}

// New creates a query for kind with the given filters.
func New(kind entity.Kind, filters ...Filter) Query {
	return Query{TargetEntity: kind, Filters: filters}
}

// ForTerm creates a single-filter free-text query. An empty term yields no filters.
func ForTerm(kind entity.Kind, term string) Query {
	if term == "" {
		return Query{TargetEntity: kind, Filters: []Filter{}}
	}
	return New(kind, NewFilter(TermPredicate(term)))
}

// Append returns a copy with extra filters after the existing ones.
// The receiver is never mutated.
func (q Query) Append(extra ...Filter) Query {
	out := q
	out.Filters = make([]Filter, 0, len(q.Filters)+len(extra))
	out.Filters = append(out.Filters, q.Filters...)
	out.Filters = append(out.Filters, extra...)
	return out
}

// Unsatisfiable reports whether some filter has no predicates.
func (q Query) Unsatisfiable() bool {
	for _, f := range q.Filters {
		if len(f.Predicates) == 0 {
			return true
		}
	}
	return false
}

// Terms collects the free-text terms of all predicates in order, without duplicates.
func (q Query) Terms() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, f := range q.Filters {
		for _, p := range f.Predicates {
			t := p.Term()
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// HasField reports whether any predicate uses f.
func (q Query) HasField(f Field) bool {
	for _, fl := range q.Filters {
		for _, p := range fl.Predicates {
			for _, pf := range p.Fields() {
				if pf == f {
					return true
				}
			}
		}
	}
	return false
}

// Validate checks the target entity, operations and every predicate.
func (q Query) Validate() error {
	if !q.TargetEntity.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownEntityKind, q.TargetEntity)
	}
	for i, f := range q.Filters {
		switch f.Operation {
		case "", And, Or:
		default:
			return fmt.Errorf("%w: filter %d: unknown operation %q", domain.ErrInvalidQuery, i, f.Operation)
		}
		for j, p := range f.Predicates {
			if err := p.Validate(); err != nil {
				return fmt.Errorf("filter %d predicate %d: %w", i, j, err)
			}
		}
	}
	return nil
}

// Parse decodes and validates query JSON.
func Parse(data []byte) (Query, error) {
	var q Query
	if err := json.Unmarshal(data, &q); err != nil {
		return Query{}, fmt.Errorf("decode query: %w", err)
	}
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}
