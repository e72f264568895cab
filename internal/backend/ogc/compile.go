// Package ogc compiles queries into OGC API collection item requests with a
// CQL text filter, executes them and normalizes the feature collections.
package ogc

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/hubsearch/internal/backend"
	"github.com/kailas-cloud/hubsearch/internal/backend/expr"
	"github.com/kailas-cloud/hubsearch/internal/domain"
	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
)

// unsatisfiable is a CQL predicate matching nothing.
const unsatisfiable = "1=0"

// DefaultCollections maps entity kinds to collection ids.
var DefaultCollections = map[entity.Kind]string{
	entity.Item:           "all",
	entity.Group:          "groups",
	entity.User:           "users",
	entity.GroupMember:    "groupMembers",
	entity.DiscussionPost: "discussionPosts",
	entity.Event:          "events",
	entity.Channel:        "channels",
}

// wireNames maps predicate fields whose property name differs.
var wireNames = map[query.Field]string{
	query.FieldTypeKeywords: "typeKeywords",
	query.FieldOrgID:        "orgId",
	query.FieldLastLogin:    "lastLogin",
}

func wireName(f query.Field) string {
	if n, ok := wireNames[f]; ok {
		return n
	}
	return string(f)
}

// Params is a compiled collection items request.
type Params struct {
	Kind         entity.Kind
	CollectionID string
	Filter       string
	Q            string
	BBox         string
	SortBy       string
	Fields       []string
	Flatten      bool
	Token        string
	Limit        int
	StartIndex   int
	Aggregations string
}

// Path returns the items endpoint relative to the API root.
func (p Params) Path() string { return "collections/" + p.CollectionID + "/items" }

// Values returns the wire parameters.
func (p Params) Values() map[string]any {
	v := map[string]any{
		"filter":     p.Filter,
		"q":          p.Q,
		"bbox":       p.BBox,
		"sortBy":     p.SortBy,
		"fields":     p.Fields,
		"token":      p.Token,
		"limit":      p.Limit,
		"startindex": p.StartIndex,
	}
	if p.Flatten {
		v["flatten"] = true
	}
	if p.Aggregations != "" {
		v["aggregations"] = p.Aggregations
	}
	return v
}

// Encode renders the query string.
func (p Params) Encode() string { return backend.BuildQueryString(p.Values()) }

// Clone deep-copies the params.
func (p Params) Clone() Params {
	out := p
	out.Fields = append([]string(nil), p.Fields...)
	return out
}

// Compile translates q into collection item params.
func Compile(q query.Query, opts request.Options) (Params, error) {
	if err := q.Validate(); err != nil {
		return Params{}, fmt.Errorf("compile ogc query: %w", err)
	}
	opts, err := opts.Normalize()
	if err != nil {
		return Params{}, fmt.Errorf("compile ogc query: %w: %w", domain.ErrInvalidQuery, err)
	}
	coll, ok := DefaultCollections[q.TargetEntity]
	if !ok {
		return Params{}, fmt.Errorf("ogc: %s: %w", q.TargetEntity, domain.ErrUnsupportedBackend)
	}

	p := Params{
		Kind:         q.TargetEntity,
		CollectionID: coll,
		Fields:       opts.Fields,
		Flatten:      opts.Flatten,
		Limit:        opts.Num,
		StartIndex:   opts.Start,
	}
	if opts.SortField != "" {
		p.SortBy = "properties." + wireName(query.Field(opts.SortField))
		if opts.SortOrder == request.Desc {
			p.SortBy = "-" + p.SortBy
		}
	}
	if len(opts.AggFields) > 0 {
		p.Aggregations = "terms(fields=(" + strings.Join(opts.AggFields, ",") + "))"
	}
	if opts.Credential != nil {
		tok, err := opts.Credential.Token()
		if err != nil {
			return Params{}, fmt.Errorf("compile ogc query: %w", err)
		}
		p.Token = tok
	}

	tree := expr.FromQuery(q, opts.Now)
	tree, texts := expr.Extract(tree, expr.IsText)
	tree, boxes := expr.Extract(tree, expr.IsIntersects)

	if expr.Contains(tree, expr.IsText) {
		return Params{}, fmt.Errorf("ogc: free text under OR or NOT: %w", domain.ErrUnsupportedBackend)
	}
	if expr.Contains(tree, expr.IsIntersects) {
		return Params{}, fmt.Errorf("ogc: bbox under OR or NOT: %w", domain.ErrUnsupportedBackend)
	}
	bbox, ok, err := expr.OneBBox(boxes)
	if err != nil {
		return Params{}, fmt.Errorf("ogc: %w: %w", domain.ErrUnsupportedBackend, err)
	}
	if ok {
		p.BBox = bbox.String()
	}
	p.Q = joinTerms(texts)
	p.Filter = render(tree)
	return p, nil
}

func joinTerms(nodes []expr.Node) string {
	seen := make(map[string]struct{}, len(nodes))
	terms := make([]string, 0, len(nodes))
	for _, n := range nodes {
		t := n.(expr.Text).Term
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return strings.Join(terms, " ")
}

// render writes n as CQL text. "" means the node constrains nothing.
// Set values compare case-insensitively through LOWER.
func render(n expr.Node) string {
	switch v := n.(type) {
	case expr.Const:
		if v {
			return ""
		}
		return unsatisfiable
	case expr.And:
		parts := make([]string, 0, len(v.Children))
		for _, c := range v.Children {
			s := render(c)
			if s == "" {
				continue
			}
			if _, ok := c.(expr.Or); ok {
				s = "(" + s + ")"
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, " AND ")
	case expr.Or:
		parts := make([]string, 0, len(v.Children))
		for _, c := range v.Children {
			s := render(c)
			if s == "" {
				return ""
			}
			if _, ok := c.(expr.And); ok {
				s = "(" + s + ")"
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, " OR ")
	case expr.Not:
		if in, ok := v.Child.(expr.In); ok {
			return lower(in.Field) + " NOT IN (" + literals(in.Values) + ")"
		}
		s := render(v.Child)
		if s == "" {
			return unsatisfiable
		}
		return "NOT (" + s + ")"
	case expr.In:
		if len(v.Values) == 1 {
			return lower(v.Field) + " = " + literal(v.Values[0])
		}
		return lower(v.Field) + " IN (" + literals(v.Values) + ")"
	case expr.Range:
		name := wireName(v.Field)
		switch {
		case !v.From.IsZero() && !v.To.IsZero():
			return "(" + name + " >= " + millis(v.From) + " AND " + name + " <= " + millis(v.To) + ")"
		case !v.From.IsZero():
			return name + " >= " + millis(v.From)
		case !v.To.IsZero():
			return name + " <= " + millis(v.To)
		default:
			return name + " IS NOT NULL"
		}
	default:
		// Compile rejects nested text and bbox before rendering.
		return unsatisfiable
	}
}

func lower(f query.Field) string { return "LOWER(" + wireName(f) + ")" }

func literal(s string) string {
	return "'" + strings.ReplaceAll(strings.ToLower(s), "'", "''") + "'"
}

func literals(vs []string) string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = literal(v)
	}
	return strings.Join(out, ", ")
}

func millis(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }
