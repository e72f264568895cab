package portal

import (
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/hubsearch/internal/backend/expr"
	"github.com/kailas-cloud/hubsearch/internal/backend/expr/exprtest"
	"github.com/kailas-cloud/hubsearch/internal/domain"
	"github.com/kailas-cloud/hubsearch/internal/domain/auth"
	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/query/match"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
)

func set(f query.Field, m query.MatchOptions) query.Predicate { return query.SetPredicate(f, m) }

func TestCompile_Q(t *testing.T) {
	tests := []struct {
		name string
		q    query.Query
		want string
	}{
		{
			name: "no filters",
			q:    query.New(entity.Item),
			want: "",
		},
		{
			name: "any",
			q:    query.New(entity.Item, query.NewFilter(set(query.FieldGroup, query.OneOf("a", "b")))),
			want: "(group:(a OR b))",
		},
		{
			name: "filters and appended term",
			q: query.New(entity.Item,
				query.NewFilter(set(query.FieldGroup, query.OneOf("G1"))),
				query.NewFilter(set(query.FieldGroup, query.OneOf("G2"))),
			).Append(query.NewFilter(query.TermPredicate("Oak"))),
			want: "(group:G1) AND (group:G2) AND (Oak)",
		},
		{
			name: "all and not",
			q: query.New(entity.Item, query.NewFilter(set(query.FieldTags,
				query.MatchOptions{All: []string{"a", "b"}, Not: []string{"c", "d"}}))),
			want: "(tags:a AND tags:b AND -tags:(c OR d))",
		},
		{
			name: "or filter",
			q: query.New(entity.Item, query.AnyOf(
				set(query.FieldOwner, query.Exactly("casey")),
				set(query.FieldTags, query.Exactly("x")),
			)),
			want: "(owner:casey OR tags:x)",
		},
		{
			name: "or of multi field predicates",
			q: query.New(entity.Item, query.AnyOf(
				set(query.FieldOwner, query.Exactly("a")).WithSet(query.FieldTags, query.Exactly("b")),
				set(query.FieldType, query.Exactly("x")),
			)),
			want: "((owner:a AND tags:b) OR type:x)",
		},
		{
			name: "quoted value",
			q:    query.New(entity.Item, query.NewFilter(set(query.FieldType, query.Exactly("Feature Service")))),
			want: `(type:"Feature Service")`,
		},
		{
			name: "open ended date",
			q: query.New(entity.Item, query.NewFilter(query.Predicate{}.WithDate(query.FieldCreated,
				query.Between(time.UnixMilli(1000), time.Time{})))),
			want: "(created:[1000 TO 9999999999999])",
		},
		{
			name: "unsatisfiable filter",
			q: query.New(entity.Item,
				query.NewFilter(set(query.FieldGroup, query.Exactly("G1"))),
				query.Filter{},
			),
			want: "(group:G1) AND (-*:*)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.q, request.Options{})
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if p.Q != tt.want {
				t.Errorf("q = %q, want %q", p.Q, tt.want)
			}
		})
	}
}

func TestCompile_AgreesWithMatch(t *testing.T) {
	rejected := map[string]bool{"bbox or owner": true, "disjoint bboxes": true}
	recs := exprtest.Records()
	for name, q := range exprtest.Queries() {
		t.Run(name, func(t *testing.T) {
			p, err := Compile(q, request.Options{Now: exprtest.Now})
			if rejected[name] {
				if !errors.Is(err, domain.ErrUnsupportedBackend) {
					t.Fatalf("expected ErrUnsupportedBackend, got %v (q=%q bbox=%q)", err, p.Q, p.BBox)
				}
				return
			}
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			for id, r := range recs {
				want := match.Query(q, r, exprtest.Now)
				if got := portalMatches(t, p, r); got != want {
					t.Errorf("record %s: q=%q bbox=%q returns %v, evaluator says %v", id, p.Q, p.BBox, got, want)
				}
			}
		})
	}
}

func TestCompile_RejectsUnliftableBBox(t *testing.T) {
	pdx := query.BBox{MinLon: 0, MinLat: 0, MaxLon: 1, MaxLat: 1}
	far := query.BBox{MinLon: 20, MinLat: 20, MaxLon: 30, MaxLat: 30}
	tests := []struct {
		name string
		q    query.Query
		want error
	}{
		{
			name: "bbox under or",
			q: query.New(entity.Item, query.AnyOf(
				query.Predicate{}.WithBBox(pdx),
				set(query.FieldOwner, query.Exactly("casey")),
			)),
			want: domain.ErrUnsupportedBackend,
		},
		{
			name: "two distinct bboxes",
			q: query.New(entity.Item,
				query.NewFilter(query.Predicate{}.WithBBox(pdx)),
				query.NewFilter(query.Predicate{}.WithBBox(far)),
			),
			want: expr.ErrMultipleBBoxes,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.q, request.Options{})
			if !errors.Is(err, tt.want) || !errors.Is(err, domain.ErrUnsupportedBackend) {
				t.Fatalf("err = %v, want %v (q=%q bbox=%q)", err, tt.want, p.Q, p.BBox)
			}
		})
	}
}

func TestCompile_TermUnderOr(t *testing.T) {
	q := query.New(entity.Item, query.AnyOf(
		query.TermPredicate("oak canopy"),
		set(query.FieldGroup, query.Exactly("G1")),
	))
	p, err := Compile(q, request.Options{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if want := "((oak canopy) OR group:G1)"; p.Q != want {
		t.Errorf("q = %q, want %q", p.Q, want)
	}
}

func TestCompile_BBoxAndPaging(t *testing.T) {
	bbox := query.BBox{MinLon: -123, MinLat: 45, MaxLon: -122, MaxLat: 46}
	q := query.New(entity.Item, query.NewFilter(query.Predicate{}.WithBBox(bbox)))
	p, err := Compile(q, request.Options{Num: 25, Start: 26, SortField: "modified", SortOrder: request.Desc})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if p.BBox != "-123,45,-122,46" || p.Q != "" {
		t.Fatalf("bbox=%q q=%q", p.BBox, p.Q)
	}
	want := "bbox=-123%2C45%2C-122%2C46&f=json&num=25&sortField=modified&sortOrder=desc&start=26"
	if got := p.Encode(); got != want {
		t.Errorf("encode = %q\nwant     %q", got, want)
	}
}

func TestCompile_Aggregations(t *testing.T) {
	p, err := Compile(query.New(entity.Item), request.Options{AggFields: []string{"type", "tags"}, AggLimit: 5})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := "countFields=type%2Ctags&countSize=5&f=json&num=10&start=1"
	if got := p.Encode(); got != want {
		t.Errorf("encode = %q", got)
	}
}

func TestCompile_Paths(t *testing.T) {
	for kind, want := range map[entity.Kind]string{
		entity.Item:  PathItems,
		entity.Group: PathGroups,
		entity.User:  PathUsers,
	} {
		p, err := Compile(query.New(kind), request.Options{})
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if p.Path != want {
			t.Errorf("%s path = %q", kind, p.Path)
		}
	}

	_, err := Compile(query.New(entity.Event), request.Options{})
	if !errors.Is(err, domain.ErrUnsupportedBackend) {
		t.Errorf("event: expected ErrUnsupportedBackend, got %v", err)
	}
}

func TestCompile_InvalidQuery(t *testing.T) {
	q := query.New(entity.Item, query.NewFilter(query.Predicate{}))
	if _, err := Compile(q, request.Options{}); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestParams_Clone(t *testing.T) {
	cred := auth.NewCredential("https://org", "casey", "tok", time.Time{})
	p := Params{Kind: entity.Item, Q: "x", CountFields: []string{"type"}, Credential: cred}

	cl, err := p.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	cl.CountFields[0] = "tags"
	if p.CountFields[0] != "type" {
		t.Error("clone shares CountFields")
	}
	if cl.Credential == cred {
		t.Error("clone shares the credential pointer")
	}
	if tok, _ := cl.Credential.Token(); tok != "tok" {
		t.Errorf("cloned token = %q", tok)
	}
}
