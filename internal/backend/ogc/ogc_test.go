package ogc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/hubsearch/internal/backend"
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

func TestCompile_Filter(t *testing.T) {
	from := time.UnixMilli(1000)
	to := time.UnixMilli(2000)
	tests := []struct {
		name   string
		q      query.Query
		filter string
		term   string
	}{
		{"no filters", query.New(entity.Event), "", ""},
		{
			"in", query.New(entity.Event, query.NewFilter(set(query.FieldTags, query.OneOf("a", "b")))),
			"LOWER(tags) IN ('a', 'b')", "",
		},
		{
			"single value", query.New(entity.Event, query.NewFilter(set(query.FieldOwner, query.Exactly("o'neil")))),
			"LOWER(owner) = 'o''neil'", "",
		},
		{
			"all and not",
			query.New(entity.Event, query.NewFilter(set(query.FieldTags,
				query.MatchOptions{All: []string{"a", "b"}, Not: []string{"c"}}))),
			"LOWER(tags) = 'a' AND LOWER(tags) = 'b' AND LOWER(tags) NOT IN ('c')", "",
		},
		{
			"date range",
			query.New(entity.Event, query.NewFilter(query.Predicate{}.WithDate(query.FieldStartDate, query.Between(from, to)))),
			"(startDate >= 1000 AND startDate <= 2000)", "",
		},
		{
			"terms extracted and deduplicated",
			query.New(entity.Item,
				query.NewFilter(set(query.FieldTypeKeywords, query.Exactly("Hub Site"))),
				query.NewFilter(query.TermPredicate("parks")),
				query.NewFilter(query.TermPredicate("parks")),
			),
			"LOWER(typeKeywords) = 'hub site'", "parks",
		},
		{
			"or filter",
			query.New(entity.Channel, query.AnyOf(
				set(query.FieldAccess, query.Exactly("public")),
				set(query.FieldOrgID, query.Exactly("org1")).WithSet(query.FieldStatus, query.Exactly("active")),
			)),
			"LOWER(access) = 'public' OR (LOWER(orgId) = 'org1' AND LOWER(status) = 'active')", "",
		},
		{
			"unsatisfiable",
			query.New(entity.Event, query.Filter{}),
			"1=0", "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.q, request.Options{})
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if p.Filter != tt.filter {
				t.Errorf("filter = %q, want %q", p.Filter, tt.filter)
			}
			if p.Q != tt.term {
				t.Errorf("q = %q, want %q", p.Q, tt.term)
			}
		})
	}
}

func TestCompile_AgreesWithMatch(t *testing.T) {
	rejected := map[string]bool{
		"term or group":     true,
		"text in or":        true,
		"phrase in or":      true,
		"term and group or": true,
		"bbox or owner":     true,
		"disjoint bboxes":   true,
	}
	recs := exprtest.Records()
	for name, q := range exprtest.Queries() {
		t.Run(name, func(t *testing.T) {
			p, err := Compile(q, request.Options{Now: exprtest.Now})
			if rejected[name] {
				if !errors.Is(err, domain.ErrUnsupportedBackend) {
					t.Fatalf("expected ErrUnsupportedBackend, got %v (filter=%q q=%q)", err, p.Filter, p.Q)
				}
				return
			}
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			for id, r := range recs {
				want := match.Query(q, r, exprtest.Now)
				if got := ogcMatches(t, p, r); got != want {
					t.Errorf("record %s: filter=%q q=%q bbox=%q returns %v, evaluator says %v",
						id, p.Filter, p.Q, p.BBox, got, want)
				}
			}
		})
	}
}

func TestCompile_RejectsNestedTextAndBBox(t *testing.T) {
	box := query.BBox{MinLon: 0, MinLat: 0, MaxLon: 1, MaxLat: 1}
	far := query.BBox{MinLon: 20, MinLat: 20, MaxLon: 30, MaxLat: 30}
	group := func(v string) query.Predicate { return set(query.FieldGroup, query.Exactly(v)) }
	tests := []struct {
		name string
		q    query.Query
		want error
	}{
		{
			"term or group",
			query.New(entity.Item, query.AnyOf(query.TermPredicate("oak"), group("G1"))),
			domain.ErrUnsupportedBackend,
		},
		{
			"term inside or branch",
			query.New(entity.Item, query.AnyOf(group("G1").WithTerm("oak"), group("G2"))),
			domain.ErrUnsupportedBackend,
		},
		{
			"bbox or owner",
			query.New(entity.Item, query.AnyOf(query.Predicate{}.WithBBox(box), set(query.FieldOwner, query.Exactly("casey")))),
			domain.ErrUnsupportedBackend,
		},
		{
			"two distinct bboxes",
			query.New(entity.Item,
				query.NewFilter(query.Predicate{}.WithBBox(box)),
				query.NewFilter(query.Predicate{}.WithBBox(far)),
			),
			expr.ErrMultipleBBoxes,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.q, request.Options{})
			if !errors.Is(err, tt.want) || !errors.Is(err, domain.ErrUnsupportedBackend) {
				t.Fatalf("err = %v, want %v (filter=%q q=%q bbox=%q)", err, tt.want, p.Filter, p.Q, p.BBox)
			}
		})
	}
}

func TestCompile_Params(t *testing.T) {
	cred := auth.NewCredential("https://org", "casey", "tok", time.Time{})
	q := query.New(entity.Event, query.NewFilter(query.Predicate{}.WithBBox(query.BBox{MinLon: 1, MinLat: 2, MaxLon: 3, MaxLat: 4})))
	p, err := Compile(q, request.Options{
		Num: 5, Start: 11, SortField: "startDate", SortOrder: request.Desc,
		Fields: []string{"id", "title"}, Flatten: true, AggFields: []string{"tags", "access"},
		Credential: cred,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if p.Path() != "collections/events/items" {
		t.Errorf("path = %q", p.Path())
	}
	want := "aggregations=terms%28fields%3D%28tags%2Caccess%29%29&bbox=1%2C2%2C3%2C4&fields=id%2Ctitle" +
		"&flatten=true&limit=5&sortBy=-properties.startDate&startindex=11&token=tok"
	if got := p.Encode(); got != want {
		t.Errorf("encode = %q\nwant     %q", got, want)
	}
}

func TestCompile_Unsupported(t *testing.T) {
	_, err := Compile(query.Query{TargetEntity: "widget"}, request.Options{})
	if !errors.Is(err, domain.ErrUnknownEntityKind) {
		t.Errorf("expected ErrUnknownEntityKind, got %v", err)
	}
}

// pagedCollection serves total features and emits a next link while more remain.
func pagedCollection(t *testing.T, total int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasPrefix(r.URL.Path, "/collections/custom-events/items") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		start, _ := strconv.Atoi(r.URL.Query().Get("startindex"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var feats []map[string]any
		for i := start; i < start+limit && i <= total; i++ {
			feats = append(feats, map[string]any{
				"id":         "ev" + strconv.Itoa(i),
				"properties": map[string]any{"title": fmt.Sprintf("Event %d", i), "startDate": "2025-05-01T10:00:00Z"},
			})
		}
		body := map[string]any{"numberMatched": total, "numberReturned": len(feats), "features": feats}
		if start+limit <= total {
			body["links"] = []map[string]string{{
				"rel": "next", "href": srv.URL + r.URL.Path + "?limit=" + strconv.Itoa(limit) + "&startindex=" + strconv.Itoa(start+limit),
			}}
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	return srv
}

func TestExecutor_FollowsNextLinks(t *testing.T) {
	var calls atomic.Int32
	srv := pagedCollection(t, 5, &calls)
	defer srv.Close()

	ex := NewExecutor(srv.URL, backend.HTTPFetch(srv.Client()), map[entity.Kind]string{entity.Event: "custom-events"})
	page, err := ex.Search(context.Background(), query.New(entity.Event), request.Options{Num: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if page.Total != 5 || !page.HasNext {
		t.Fatalf("first page = %+v", page)
	}
	if page.Results[0].StartDate.IsZero() || page.Results[0].Name != "Event 1" {
		t.Errorf("result = %+v", page.Results[0])
	}

	var ids []string
	for page != nil {
		for _, r := range page.Results {
			ids = append(ids, r.ID)
		}
		if page, err = page.Next(context.Background()); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if len(ids) != 5 || ids[4] != "ev5" {
		t.Errorf("ids = %v", ids)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestExecutor_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"description":"collection unavailable"}`))
	}))
	defer srv.Close()

	ex := NewExecutor(srv.URL, backend.HTTPFetch(srv.Client()), nil)
	_, err := ex.Search(context.Background(), query.New(entity.Channel), request.Options{})
	var re *domain.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if re.Message != "Internal Server Error" || re.Detail != "collection unavailable" {
		t.Errorf("message = %q, detail = %q", re.Message, re.Detail)
	}
}

func TestExecutor_UnsatisfiableSkipsFetch(t *testing.T) {
	var calls atomic.Int32
	fetch := func(context.Context, *http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("unexpected")
	}
	ex := NewExecutor("http://ogc", fetch, nil)
	page, err := ex.Search(context.Background(), query.New(entity.Event, query.Filter{}), request.Options{})
	if err != nil || page.Total != 0 || calls.Load() != 0 {
		t.Fatalf("page=%+v err=%v calls=%d", page, err, calls.Load())
	}
}

func TestNormalize_DiscussionPost(t *testing.T) {
	body := strings.Repeat("x", 100)
	raw := featureCollection{
		NumberMatched: 1,
		Features: []feature{{
			ID:         json.RawMessage(`"p1"`),
			Properties: json.RawMessage(`{"body":"` + body + `","creator":"casey","discussion":"hub://item/abc","channelId":"c1","createdAt":"2025-01-01T00:00:00Z"}`),
		}},
	}
	pg, err := normalize(entity.DiscussionPost, raw, 1)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	r := pg.results[0]
	if r.Name != body[:80] || r.Summary != body || r.Owner != "casey" || r.Channel != "c1" {
		t.Errorf("post = %+v", r)
	}
	if r.CreatedSource != "properties.createdAt" {
		t.Errorf("created source = %q", r.CreatedSource)
	}
	if pg.hasNext {
		t.Error("no next link should mean no next page")
	}
}

func TestNormalize_NextLinkWithoutStartIndex(t *testing.T) {
	raw := featureCollection{
		NumberMatched:  30,
		NumberReturned: 10,
		Links:          []link{{Rel: "self", Href: "x"}, {Rel: "next", Href: "https://h/items?cursor=abc"}},
	}
	pg, err := normalize(entity.Item, raw, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !pg.hasNext || pg.nextIndex != 11 {
		t.Errorf("hasNext=%v nextIndex=%d", pg.hasNext, pg.nextIndex)
	}
}

func TestNormalize_Aggregations(t *testing.T) {
	var raw featureCollection
	data := `{"numberMatched":0,"features":[],"aggregations":{"terms":{"fields":[
		{"field":"tags","aggregations":[{"label":"parks","value":4}]}]}}}`
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		t.Fatal(err)
	}
	pg, err := normalize(entity.Item, raw, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(pg.aggregations) != 1 || pg.aggregations[0].Values[0].Count != 4 {
		t.Errorf("aggregations = %+v", pg.aggregations)
	}
}
