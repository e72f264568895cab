package query

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/kailas-cloud/hubsearch/internal/domain"
)

// Predicate is a single matching constraint. In JSON it is an open map of
// fields; here it is the closed set of known field kinds. All fields of a
// predicate must match.
type Predicate struct {
	term  string
	sets  map[Field]MatchOptions
	dates map[Field]DateRange
	bbox  string
}

// TermPredicate creates a free-text predicate.
func TermPredicate(term string) Predicate {
	return Predicate{term: term}
}

// SetPredicate creates a predicate with one set-valued field.
func SetPredicate(f Field, m MatchOptions) Predicate {
	return Predicate{}.WithSet(f, m)
}

// WithTerm returns a copy with the free-text term set.
func (p Predicate) WithTerm(term string) Predicate {
	out := p.clone()
	out.term = term
	return out
}

// WithSet returns a copy with a set-valued field set.
func (p Predicate) WithSet(f Field, m MatchOptions) Predicate {
	out := p.clone()
	if out.sets == nil {
		out.sets = make(map[Field]MatchOptions, 1)
	}
	out.sets[f] = m
	return out
}

// WithDate returns a copy with a date range field set.
func (p Predicate) WithDate(f Field, d DateRange) Predicate {
	out := p.clone()
	if out.dates == nil {
		out.dates = make(map[Field]DateRange, 1)
	}
	out.dates[f] = d
	return out
}

// WithBBox returns a copy with the bounding box set.
func (p Predicate) WithBBox(b BBox) Predicate {
	out := p.clone()
	out.bbox = b.String()
	return out
}

func (p Predicate) clone() Predicate {
	return Predicate{
		term:  p.term,
		sets:  maps.Clone(p.sets),
		dates: maps.Clone(p.dates),
		bbox:  p.bbox,
	}
}

// Term returns the free-text term ("" when absent).
func (p Predicate) Term() string { return p.term }

// Set returns the options for a set-valued field.
func (p Predicate) Set(f Field) (MatchOptions, bool) {
	m, ok := p.sets[f]
	return m, ok
}

// Date returns the range for a date field.
func (p Predicate) Date(f Field) (DateRange, bool) {
	d, ok := p.dates[f]
	return d, ok
}

// BBox returns the parsed bounding box.
func (p Predicate) BBox() (BBox, bool) {
	if p.bbox == "" {
		return BBox{}, false
	}
	b, err := ParseBBox(p.bbox)
	if err != nil {
		return BBox{}, false
	}
	return b, true
}

// Fields lists the fields present in a stable order:
// term first, then set fields, date fields and bbox, each sorted by name.
func (p Predicate) Fields() []Field {
	out := make([]Field, 0, 2+len(p.sets)+len(p.dates))
	if p.term != "" {
		out = append(out, FieldTerm)
	}
	sets := make([]Field, 0, len(p.sets))
	for f := range p.sets {
		sets = append(sets, f)
	}
	sortFields(sets)
	out = append(out, sets...)

	dates := make([]Field, 0, len(p.dates))
	for f := range p.dates {
		dates = append(dates, f)
	}
	sortFields(dates)
	out = append(out, dates...)

	if p.bbox != "" {
		out = append(out, FieldBBox)
	}
	return out
}

// IsEmpty reports whether the predicate has no fields.
func (p Predicate) IsEmpty() bool {
	return p.term == "" && len(p.sets) == 0 && len(p.dates) == 0 && p.bbox == ""
}

// Validate checks every field against its kind.
func (p Predicate) Validate() error {
	if p.IsEmpty() {
		return fmt.Errorf("%w: predicate has no fields", domain.ErrInvalidQuery)
	}
	for f, m := range p.sets {
		if f.Kind() != KindSet {
			return fmt.Errorf("%w: %q", domain.ErrUnknownPredicateField, f)
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrInvalidQuery, f, err)
		}
	}
	for f, d := range p.dates {
		if f.Kind() != KindDate {
			return fmt.Errorf("%w: %q", domain.ErrUnknownPredicateField, f)
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrInvalidQuery, f, err)
		}
	}
	if p.bbox != "" {
		if _, err := ParseBBox(p.bbox); err != nil {
			return fmt.Errorf("%w: bbox: %w", domain.ErrInvalidQuery, err)
		}
	}
	return nil
}

// MarshalJSON writes the predicate as an open field map.
func (p Predicate) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(p.sets)+len(p.dates)+2)
	if p.term != "" {
		obj[string(FieldTerm)] = p.term
	}
	for f, m := range p.sets {
		obj[string(f)] = m
	}
	for f, d := range p.dates {
		obj[string(f)] = d
	}
	if p.bbox != "" {
		obj[string(FieldBBox)] = p.bbox
	}
	return json.Marshal(obj)
}

// UnmarshalJSON decodes an open field map. Unknown fields are rejected.
func (p *Predicate) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: predicate: %w", domain.ErrInvalidQuery, err)
	}

	var out Predicate
	for name, val := range raw {
		f, kind, ok := Lookup(name)
		if !ok {
			return fmt.Errorf("%w: %q", domain.ErrUnknownPredicateField, name)
		}
		switch kind {
		case KindTerm:
			if err := json.Unmarshal(val, &out.term); err != nil {
				return fmt.Errorf("%w: term must be a string", domain.ErrInvalidQuery)
			}
		case KindSet:
			var m MatchOptions
			if err := json.Unmarshal(val, &m); err != nil {
				return fmt.Errorf("%w: %s: %w", domain.ErrInvalidQuery, name, err)
			}
			if out.sets == nil {
				out.sets = make(map[Field]MatchOptions)
			}
			out.sets[f] = m
		case KindDate:
			var d DateRange
			if err := json.Unmarshal(val, &d); err != nil {
				return fmt.Errorf("%w: %s: %w", domain.ErrInvalidQuery, name, err)
			}
			if out.dates == nil {
				out.dates = make(map[Field]DateRange)
			}
			out.dates[f] = d
		case KindBBox:
			if err := json.Unmarshal(val, &out.bbox); err != nil {
				return fmt.Errorf("%w: bbox must be a string", domain.ErrInvalidQuery)
			}
		}
	}
	*p = out
	return nil
}
