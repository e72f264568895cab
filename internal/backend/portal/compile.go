// Package portal compiles queries into the legacy portal search dialect,
// executes them and normalizes the responses.
package portal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/hubsearch/internal/backend"
	"github.com/kailas-cloud/hubsearch/internal/backend/expr"
	"github.com/kailas-cloud/hubsearch/internal/domain"
	"github.com/kailas-cloud/hubsearch/internal/domain/auth"
	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
)

// Search endpoints relative to the portal base URL.
const (
	PathItems  = "sharing/rest/search"
	PathGroups = "sharing/rest/community/groups"
	PathUsers  = "sharing/rest/portals/self/users/search"
)

// unsatisfiable matches no document.
const unsatisfiable = "-*:*"

// Open range bounds in epoch milliseconds.
const (
	rangeMin = "0"
	rangeMax = "9999999999999"
)

// Params is a compiled portal request.
type Params struct {
	Kind        entity.Kind
	Path        string
	Q           string
	BBox        string
	Num         int
	Start       int
	SortField   string
	SortOrder   string
	CountFields []string
	CountSize   int
	Credential  *auth.Credential
}

// Values returns the wire parameters.
func (p Params) Values() map[string]any {
	v := map[string]any{
		"f":         "json",
		"q":         p.Q,
		"bbox":      p.BBox,
		"num":       p.Num,
		"start":     p.Start,
		"sortField": p.SortField,
		"sortOrder": p.SortOrder,
	}
	if len(p.CountFields) > 0 {
		v["countFields"] = p.CountFields
		if p.CountSize > 0 {
			v["countSize"] = p.CountSize
		}
	}
	return v
}

// Encode renders the query string.
func (p Params) Encode() string { return backend.BuildQueryString(p.Values()) }

// Clone deep-copies the params. The credential is rebuilt through its
// serialize/deserialize pair so the copy never shares its lock or token state.
func (p Params) Clone() (Params, error) {
	out := p
	out.CountFields = append([]string(nil), p.CountFields...)
	cred, err := p.Credential.Clone()
	if err != nil {
		return Params{}, fmt.Errorf("clone credential: %w", err)
	}
	out.Credential = cred
	return out, nil
}

// PathFor returns the search endpoint for kind.
func PathFor(kind entity.Kind) (string, error) {
	switch kind {
	case entity.Item:
		return PathItems, nil
	case entity.Group:
		return PathGroups, nil
	case entity.User:
		return PathUsers, nil
	default:
		return "", fmt.Errorf("portal: %s: %w", kind, domain.ErrUnsupportedBackend)
	}
}

// Compile translates q into portal params.
func Compile(q query.Query, opts request.Options) (Params, error) {
	if err := q.Validate(); err != nil {
		return Params{}, fmt.Errorf("compile portal query: %w", err)
	}
	opts, err := opts.Normalize()
	if err != nil {
		return Params{}, fmt.Errorf("compile portal query: %w: %w", domain.ErrInvalidQuery, err)
	}
	path, err := PathFor(q.TargetEntity)
	if err != nil {
		return Params{}, err
	}

	p := Params{
		Kind:        q.TargetEntity,
		Path:        path,
		Num:         opts.Num,
		Start:       opts.Start,
		SortField:   opts.SortField,
		SortOrder:   string(opts.SortOrder),
		CountFields: opts.AggFields,
		CountSize:   opts.AggLimit,
		Credential:  opts.Credential,
	}

	clauses := make([]string, 0, len(q.Filters))
	var boxes []expr.Node
	for _, f := range q.Filters {
		node, lifted := expr.Extract(expr.FromFilter(f, opts.Now), expr.IsIntersects)
		if expr.Contains(node, expr.IsIntersects) {
			return Params{}, fmt.Errorf("portal: bbox under OR or NOT: %w", domain.ErrUnsupportedBackend)
		}
		boxes = append(boxes, lifted...)
		s := render(node)
		if s == "" {
			continue
		}
		clauses = append(clauses, "("+s+")")
	}
	bbox, ok, err := expr.OneBBox(boxes)
	if err != nil {
		return Params{}, fmt.Errorf("portal: %w: %w", domain.ErrUnsupportedBackend, err)
	}
	if ok {
		p.BBox = bbox.String()
	}
	p.Q = strings.Join(clauses, " AND ")
	return p, nil
}

// render writes n in the portal query syntax. "" means the node constrains nothing.
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
			if grouped(c, s) {
				s = "(" + s + ")"
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, " OR ")
	case expr.Not:
		s := render(v.Child)
		if s == "" {
			return unsatisfiable
		}
		switch v.Child.(type) {
		case expr.And, expr.Or:
			return "-(" + s + ")"
		}
		return "-" + s
	case expr.In:
		if len(v.Values) == 1 {
			return string(v.Field) + ":" + quoteValue(v.Values[0])
		}
		vals := make([]string, len(v.Values))
		for i, x := range v.Values {
			vals[i] = quoteValue(x)
		}
		return string(v.Field) + ":(" + strings.Join(vals, " OR ") + ")"
	case expr.Range:
		return string(v.Field) + ":[" + bound(v.From, rangeMin) + " TO " + bound(v.To, rangeMax) + "]"
	case expr.Text:
		return quoteTerm(v.Term)
	default:
		// Compile rejects a nested bbox before rendering.
		return unsatisfiable
	}
}

// grouped reports whether an Or operand needs parentheses: conjunctions and
// multi-word terms.
func grouped(c expr.Node, s string) bool {
	switch c.(type) {
	case expr.And:
		return true
	case expr.Text:
		return strings.ContainsAny(s, " \t")
	}
	return false
}

func bound(t time.Time, open string) string {
	if t.IsZero() {
		return open
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

const reserved = `+-&|!(){}[]^"~*?:\/`

// quoteValue quotes a field value carrying whitespace or reserved characters.
func quoteValue(s string) string {
	if s == "" || strings.ContainsAny(s, reserved+" \t\n") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}

// quoteTerm leaves multi-word terms as-is and only quotes reserved characters.
func quoteTerm(s string) string {
	if strings.ContainsAny(s, reserved) {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
