package portal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/hubsearch/internal/backend"
	"github.com/kailas-cloud/hubsearch/internal/domain"
	"github.com/kailas-cloud/hubsearch/internal/domain/auth"
	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
)

// pagedPortal serves `total` items in pages and reports nextStart=-1 on the last one.
func pagedPortal(t *testing.T, total int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/"+PathItems {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("request %d lost the credential", calls.Load())
		}
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		num, _ := strconv.Atoi(r.URL.Query().Get("num"))
		var results []map[string]any
		for i := start; i < start+num && i <= total; i++ {
			results = append(results, map[string]any{
				"id": "item" + strconv.Itoa(i), "title": "Item " + strconv.Itoa(i),
				"type": "Web Map", "created": 1700000000000, "modified": 1700000100000,
			})
		}
		next := start + num
		if next > total {
			next = -1
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total": total, "start": start, "num": num, "nextStart": next, "results": results,
		})
	}))
}

func TestExecutor_PaginatesWithCredential(t *testing.T) {
	var calls atomic.Int32
	srv := pagedPortal(t, 5, &calls)
	defer srv.Close()

	ex := NewExecutor(srv.URL, backend.HTTPFetch(srv.Client()))
	cred := auth.NewCredential(srv.URL, "casey", "tok", time.Time{})
	opts := request.Options{Num: 2, Credential: cred}

	page, err := ex.Search(context.Background(), query.New(entity.Item), opts)
	if err != nil {
		t.Fatalf("Search: %v", err)
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
	if len(ids) != 5 || ids[4] != "item5" {
		t.Fatalf("ids = %v", ids)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestExecutor_NormalizesItems(t *testing.T) {
	var calls atomic.Int32
	srv := pagedPortal(t, 1, &calls)
	defer srv.Close()

	ex := NewExecutor(srv.URL, backend.HTTPFetch(srv.Client()))
	cred := auth.NewCredential(srv.URL, "casey", "tok", time.Time{})
	page, err := ex.Search(context.Background(), query.New(entity.Item), request.Options{Credential: cred})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if page.HasNext {
		t.Error("single page should not have next")
	}
	r := page.Results[0]
	if r.Name != "Item 1" || r.Family != "map" || r.EntityKind != entity.Item {
		t.Errorf("result = %+v", r)
	}
	if r.CreatedSource != "item.created" || r.Created.UnixMilli() != 1700000000000 {
		t.Errorf("created = %v from %q", r.Created, r.CreatedSource)
	}
	if page.ExecutedQuerySize == 0 {
		t.Error("executed query size not set")
	}
}

func TestExecutor_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ex := NewExecutor(srv.URL, backend.HTTPFetch(srv.Client()))
	_, err := ex.Search(context.Background(), query.New(entity.Group), request.Options{})
	var re *domain.RemoteError
	if !errors.As(err, &re) || re.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500 RemoteError, got %v", err)
	}
	if re.Message != "Internal Server Error" || re.Detail != "boom" {
		t.Errorf("message = %q, detail = %q", re.Message, re.Detail)
	}
}

func TestExecutor_UnsatisfiableSkipsFetch(t *testing.T) {
	fetch := func(context.Context, *http.Request) (*http.Response, error) {
		t.Fatal("unexpected fetch")
		return nil, nil
	}
	ex := NewExecutor("http://portal", fetch)
	q := query.New(entity.Item, query.Filter{})
	page, err := ex.Search(context.Background(), q, request.Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if page.Total != 0 || len(page.Results) != 0 || page.HasNext {
		t.Errorf("page = %+v", page)
	}
}

func TestExecutor_IncludeGroups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/" + PathItems:
			_, _ = w.Write([]byte(`{"total":1,"nextStart":-1,"results":[{"id":"abc","title":"A"}]}`))
		case "/sharing/rest/content/items/abc/groups":
			_, _ = w.Write([]byte(`{"admin":[{"id":"g1"}],"member":[{"id":"g2"}],"other":[]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	ex := NewExecutor(srv.URL, backend.HTTPFetch(srv.Client()))
	page, err := ex.Search(context.Background(), query.New(entity.Item), request.Options{Include: []string{IncludeGroups}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := page.Results[0].Groups; len(got) != 2 || got[0] != "g1" || got[1] != "g2" {
		t.Errorf("groups = %v", got)
	}
}

func TestNextOffset(t *testing.T) {
	tests := []struct {
		nextStart, total, want int
	}{
		{-1, 20, 21},
		{0, 20, 21},
		{10, 10, 10},
		{11, 30, 11},
	}
	for _, tt := range tests {
		if got := nextOffset(tt.nextStart, tt.total); got != tt.want {
			t.Errorf("nextOffset(%d, %d) = %d, want %d", tt.nextStart, tt.total, got, tt.want)
		}
	}
}

func TestNormalize_UsersAndGroups(t *testing.T) {
	raw := searchResponse{
		Total:     1,
		NextStart: -1,
		Results:   []json.RawMessage{json.RawMessage(`{"username":"casey","fullName":"Casey Doe","role":"org_admin","lastLogin":-1,"created":1600000000000}`)},
	}
	pg, err := normalize(entity.User, raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	u := pg.results[0]
	if u.ID != "casey" || u.Name != "Casey Doe" || u.Role != "org_admin" {
		t.Errorf("user = %+v", u)
	}
	if !u.Updated.IsZero() || u.UpdatedSource != "" {
		t.Errorf("never-logged-in user should have no updated date: %v %q", u.Updated, u.UpdatedSource)
	}
	if pg.hasNext {
		t.Error("hasNext on last page")
	}

	raw.Results = []json.RawMessage{json.RawMessage(`{"id":"g1","title":"Parks","access":"public","created":1600000000000}`)}
	pg, err = normalize(entity.Group, raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if g := pg.results[0]; g.Name != "Parks" || g.CreatedSource != "group.created" || g.Family != "team" {
		t.Errorf("group = %+v", g)
	}
}

func TestNormalize_Aggregations(t *testing.T) {
	var raw searchResponse
	body := `{"total":3,"nextStart":-1,"results":[],"aggregations":{"counts":[
		{"fieldName":"type","fieldValues":[{"value":"Web Map","count":2},{"value":"PDF","count":1}]}]}}`
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		t.Fatal(err)
	}
	pg, err := normalize(entity.Item, raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(pg.aggregations) != 1 || pg.aggregations[0].Values[0].Value != "Web Map" || pg.aggregations[0].Values[0].Count != 2 {
		t.Errorf("aggregations = %+v", pg.aggregations)
	}
}

func TestEntityFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sharing/rest/content/items/site1/data" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"catalog":{"groups":["g1"]}}`))
	}))
	defer srv.Close()

	f := NewEntityFetcher(srv.URL, backend.HTTPFetch(srv.Client()), nil)
	got, err := f.Fetch(context.Background(), "site1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	var ent struct {
		ID   string
		Data struct {
			Catalog struct{ Groups []string }
		}
	}
	if err := json.Unmarshal(got, &ent); err != nil {
		t.Fatal(err)
	}
	if ent.ID != "site1" || len(ent.Data.Catalog.Groups) != 1 {
		t.Errorf("entity = %s", got)
	}
}
