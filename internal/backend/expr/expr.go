// Package expr lowers a query into a backend-neutral boolean tree.
// Both compilers render this tree, so the filter-array AND, the per-filter
// AND/OR and the {any, all, not} expansion are decided in one place.
package expr

import (
	"errors"
	"time"

	"github.com/kailas-cloud/hubsearch/internal/domain/query"
)

// Node is a boolean expression node.
type Node interface{ node() }

// And matches when every child matches. An And without children is true.
type And struct{ Children []Node }

// Or matches when any child matches. An Or without children is false.
type Or struct{ Children []Node }

// Not negates its child.
type Not struct{ Child Node }

// In matches when the field holds any of Values.
type In struct {
	Field  query.Field
	Values []string
}

// Range matches when the date field lies in [From, To]; zero ends are open.
type Range struct {
	Field    query.Field
	From, To time.Time
}

// Text is a free-text term.
type Text struct{ Term string }

// Intersects matches records whose extent overlaps BBox.
type Intersects struct{ BBox query.BBox }

// Const is a literal true/false.
type Const bool

func (And) node()        {}
func (Or) node()         {}
func (Not) node()        {}
func (In) node()         {}
func (Range) node()      {}
func (Text) node()       {}
func (Intersects) node() {}
func (Const) node()      {}

// FromQuery lowers all filters, ANDed. An empty query lowers to Const(true).
func FromQuery(q query.Query, now time.Time) Node {
	if len(q.Filters) == 0 {
		return Const(true)
	}
	children := make([]Node, 0, len(q.Filters))
	for _, f := range q.Filters {
		children = append(children, FromFilter(f, now))
	}
	return simplify(And{Children: children})
}

// FromFilter lowers one filter. A filter without predicates is Const(false).
func FromFilter(f query.Filter, now time.Time) Node {
	if len(f.Predicates) == 0 {
		return Const(false)
	}
	children := make([]Node, 0, len(f.Predicates))
	for _, p := range f.Predicates {
		children = append(children, FromPredicate(p, now))
	}
	if f.Op() == query.Or {
		return simplify(Or{Children: children})
	}
	return simplify(And{Children: children})
}

// FromPredicate lowers one predicate: its fields are ANDed.
// A predicate without fields matches nothing.
func FromPredicate(p query.Predicate, now time.Time) Node {
	fields := p.Fields()
	if len(fields) == 0 {
		return Const(false)
	}
	children := make([]Node, 0, len(fields))
	for _, f := range fields {
		switch f.Kind() {
		case query.KindTerm:
			children = append(children, Text{Term: p.Term()})
		case query.KindSet:
			m, _ := p.Set(f)
			children = append(children, fromOptions(f, m))
		case query.KindDate:
			d, _ := p.Date(f)
			from, to := d.Resolve(now)
			children = append(children, Range{Field: f, From: from, To: to})
		case query.KindBBox:
			b, _ := p.BBox()
			children = append(children, Intersects{BBox: b})
		}
	}
	return simplify(And{Children: children})
}

func fromOptions(f query.Field, m query.MatchOptions) Node {
	var parts []Node
	if len(m.Any) > 0 {
		parts = append(parts, In{Field: f, Values: m.Any})
	}
	for _, v := range m.All {
		parts = append(parts, In{Field: f, Values: []string{v}})
	}
	if len(m.Not) > 0 {
		parts = append(parts, Not{Child: In{Field: f, Values: m.Not}})
	}
	if len(parts) == 0 {
		return Const(false)
	}
	return simplify(And{Children: parts})
}

// simplify collapses single-child groups and flattens nested groups of the same kind.
func simplify(n Node) Node {
	switch v := n.(type) {
	case And:
		var out []Node
		for _, c := range v.Children {
			if inner, ok := c.(And); ok {
				out = append(out, inner.Children...)
				continue
			}
			out = append(out, c)
		}
		if len(out) == 1 {
			return out[0]
		}
		return And{Children: out}
	case Or:
		var out []Node
		for _, c := range v.Children {
			if inner, ok := c.(Or); ok {
				out = append(out, inner.Children...)
				continue
			}
			out = append(out, c)
		}
		if len(out) == 1 {
			return out[0]
		}
		return Or{Children: out}
	default:
		return n
	}
}

// Extract lifts nodes accepted by pick out of conjunctive positions (the root
// and, recursively, children of And) and returns them. Backends use it to move
// free text and bbox into dedicated request parameters. Nodes under Or or Not
// stay in place; ANDing them with the rest of the request would narrow it.
func Extract(n Node, pick func(Node) bool) (Node, []Node) {
	if pick(n) {
		return Const(true), []Node{n}
	}
	and, ok := n.(And)
	if !ok {
		return n, nil
	}
	var lifted []Node
	out := make([]Node, 0, len(and.Children))
	for _, c := range and.Children {
		rest, l := Extract(c, pick)
		lifted = append(lifted, l...)
		if rest == Const(true) {
			continue
		}
		out = append(out, rest)
	}
	if len(out) == 0 {
		return Const(true), lifted
	}
	return simplify(And{Children: out}), lifted
}

// IsText reports whether n is a free-text node.
func IsText(n Node) bool {
	_, ok := n.(Text)
	return ok
}

// IsIntersects reports whether n is a bbox node.
func IsIntersects(n Node) bool {
	_, ok := n.(Intersects)
	return ok
}

// Contains reports whether any node of n is accepted by pick.
func Contains(n Node, pick func(Node) bool) bool {
	if pick(n) {
		return true
	}
	switch v := n.(type) {
	case And:
		for _, c := range v.Children {
			if Contains(c, pick) {
				return true
			}
		}
	case Or:
		for _, c := range v.Children {
			if Contains(c, pick) {
				return true
			}
		}
	case Not:
		return Contains(v.Child, pick)
	}
	return false
}

// ErrMultipleBBoxes reports distinct bboxes that must all hold at once.
var ErrMultipleBBoxes = errors.New("more than one distinct bbox")

// OneBBox collapses lifted Intersects nodes into the single bbox a request can
// carry. Equal boxes collapse; distinct ones return ErrMultipleBBoxes.
func OneBBox(nodes []Node) (query.BBox, bool, error) {
	if len(nodes) == 0 {
		return query.BBox{}, false, nil
	}
	first := nodes[0].(Intersects).BBox
	for _, n := range nodes[1:] {
		if n.(Intersects).BBox != first {
			return query.BBox{}, false, ErrMultipleBBoxes
		}
	}
	return first, true, nil
}
