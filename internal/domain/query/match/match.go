// Package match evaluates query predicates against in-memory records.
//
// It is the reference semantics of the query model: explain uses it to report
// which predicates matched a result, and compiler tests use it as the oracle
// the compiled backend expressions must agree with.
package match

import (
	"strings"
	"time"

	"github.com/kailas-cloud/hubsearch/internal/domain/query"
)

// Record is the matchable projection of a search result.
type Record struct {
	Values map[query.Field][]string
	Text   []string
	Dates  map[query.Field]time.Time
	Extent *query.BBox
}

// FieldResult reports the outcome for one predicate field.
type FieldResult struct {
	Field   query.Field `json:"field"`
	Matched bool        `json:"matched"`
	Values  []string    `json:"values,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// PredicateResult reports the outcome for one predicate.
type PredicateResult struct {
	Matched bool          `json:"matched"`
	Fields  []FieldResult `json:"fields"`
}

// Predicate evaluates every field of p against r. All fields must match.
func Predicate(p query.Predicate, r Record, now time.Time) PredicateResult {
	fields := p.Fields()
	out := PredicateResult{Matched: len(fields) > 0, Fields: make([]FieldResult, 0, len(fields))}
	for _, f := range fields {
		fr := field(p, f, r, now)
		out.Fields = append(out.Fields, fr)
		if !fr.Matched {
			out.Matched = false
		}
	}
	return out
}

// Filter evaluates a filter: predicates combined by its operation.
// A filter without predicates matches nothing.
func Filter(f query.Filter, r Record, now time.Time) bool {
	if len(f.Predicates) == 0 {
		return false
	}
	if f.Op() == query.Or {
		for _, p := range f.Predicates {
			if Predicate(p, r, now).Matched {
				return true
			}
		}
		return false
	}
	for _, p := range f.Predicates {
		if !Predicate(p, r, now).Matched {
			return false
		}
	}
	return true
}

// Query evaluates all filters (ANDed). An empty query matches everything.
func Query(q query.Query, r Record, now time.Time) bool {
	for _, f := range q.Filters {
		if !Filter(f, r, now) {
			return false
		}
	}
	return true
}

func field(p query.Predicate, f query.Field, r Record, now time.Time) FieldResult {
	switch f.Kind() {
	case query.KindTerm:
		ok := Term(p.Term(), r.Text)
		return FieldResult{Field: f, Matched: ok, Reason: reason(ok, "term found", "term not found")}
	case query.KindSet:
		m, _ := p.Set(f)
		vals := r.Values[f]
		ok, why := Options(m, vals)
		return FieldResult{Field: f, Matched: ok, Values: vals, Reason: why}
	case query.KindDate:
		d, _ := p.Date(f)
		t, has := r.Dates[f]
		if !has {
			return FieldResult{Field: f, Reason: "record has no " + string(f) + " date"}
		}
		ok := Date(d, t, now)
		return FieldResult{
			Field: f, Matched: ok,
			Values: []string{t.UTC().Format(time.RFC3339)},
			Reason: reason(ok, "date in range", "date out of range"),
		}
	case query.KindBBox:
		b, _ := p.BBox()
		if r.Extent == nil {
			return FieldResult{Field: f, Reason: "record has no extent"}
		}
		ok := b.Intersects(*r.Extent)
		return FieldResult{
			Field: f, Matched: ok,
			Values: []string{r.Extent.String()},
			Reason: reason(ok, "extent intersects bbox", "extent outside bbox"),
		}
	default:
		return FieldResult{Field: f, Reason: "unknown field"}
	}
}

// Options applies {any, all, not} set semantics to the record values.
// Comparison is case-insensitive.
func Options(m query.MatchOptions, values []string) (bool, string) {
	if m.IsEmpty() {
		return false, "no match options"
	}
	if len(m.Any) > 0 && !containsAny(values, m.Any) {
		return false, "none of any matched"
	}
	for _, v := range m.All {
		if !contains(values, v) {
			return false, "missing " + v + " from all"
		}
	}
	for _, v := range m.Not {
		if contains(values, v) {
			return false, "has excluded " + v
		}
	}
	return true, "matched"
}

// Term reports whether every word of term occurs in some text entry.
func Term(term string, text []string) bool {
	words := strings.Fields(strings.ToLower(term))
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		found := false
		for _, t := range text {
			if strings.Contains(strings.ToLower(t), w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Date reports whether t falls inside the resolved range (inclusive).
func Date(d query.DateRange, t, now time.Time) bool {
	from, to := d.Resolve(now)
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if strings.EqualFold(x, v) {
			return true
		}
	}
	return false
}

func containsAny(values, wanted []string) bool {
	for _, w := range wanted {
		if contains(values, w) {
			return true
		}
	}
	return false
}

func reason(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
