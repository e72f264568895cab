package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/hubsearch/internal/domain"
	"github.com/kailas-cloud/hubsearch/internal/domain/auth"
)

func TestBuildQueryString(t *testing.T) {
	var nilInt *int
	zero := 0
	tests := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{"empty", map[string]any{}, ""},
		{"drops nil and empty", map[string]any{"q": "", "bbox": nil, "num": 10, "x": nilInt, "f": []string{}}, "num=10"},
		{"keeps zero int pointer", map[string]any{"start": &zero}, "start=0"},
		{"encodes values", map[string]any{"q": "tags:(a OR b)", "filter": "owner = 'x'"}, "filter=owner+%3D+%27x%27&q=tags%3A%28a+OR+b%29"},
		{"joins slices", map[string]any{"fields": []string{"id", "title"}}, "fields=id%2Ctitle"},
		{"bool", map[string]any{"flatten": true}, "flatten=true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildQueryString(tt.params)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if strings.Contains(got, "null") || strings.Contains(got, "undefined") {
				t.Errorf("query string leaks null/undefined: %q", got)
			}
		})
	}
}

func TestJoinURL(t *testing.T) {
	if got := JoinURL("https://h/api/", "/collections/x/items", "a=1"); got != "https://h/api/collections/x/items?a=1" {
		t.Errorf("got %q", got)
	}
	if got := JoinURL("https://h", "search", ""); got != "https://h/search" {
		t.Errorf("got %q", got)
	}
}

func TestGetJSON_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(RequestIDHeader) == "" {
			t.Error("missing request id header")
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "hubsearch/") {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{"total": 3}`))
	}))
	defer srv.Close()

	var out struct{ Total int }
	cred := auth.NewCredential(srv.URL, "u", "tok", time.Time{})
	if err := GetJSON(context.Background(), HTTPFetch(srv.Client()), srv.URL, cred, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Total != 3 {
		t.Errorf("total = %d", out.Total)
	}
}

func TestGetJSON_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail": "index offline"}`))
	}))
	defer srv.Close()

	var out map[string]any
	err := GetJSON(context.Background(), HTTPFetch(srv.Client()), srv.URL+"/x", nil, &out)
	var re *domain.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if re.Status != 500 || re.Message != "Internal Server Error" || re.Detail != "index offline" || re.URL != srv.URL+"/x" {
		t.Errorf("remote error = %+v", re)
	}
	if !errors.Is(err, domain.ErrRemote) {
		t.Error("RemoteError should unwrap to ErrRemote")
	}
}

func TestGetJSON_EmbeddedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error": {"code": 498, "message": "Invalid token."}}`))
	}))
	defer srv.Close()

	var out map[string]any
	err := GetJSON(context.Background(), HTTPFetch(srv.Client()), srv.URL, nil, &out)
	var re *domain.RemoteError
	if !errors.As(err, &re) || re.Status != 498 {
		t.Fatalf("expected 498 RemoteError, got %v", err)
	}
	if re.Message != "Invalid token." || re.Detail != "Invalid token." {
		t.Errorf("remote error = %+v", re)
	}
}

func TestWithBreaker_TripsOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cb := NewBreaker("test", BreakerConfig{MinRequests: 2, FailureRatio: 0.5, Timeout: time.Minute}, nil)
	fetch := WithBreaker(HTTPFetch(srv.Client()), cb)

	var out map[string]any
	for range 2 {
		err := GetJSON(context.Background(), fetch, srv.URL, nil, &out)
		if !errors.Is(err, domain.ErrRemote) {
			t.Fatalf("expected remote error, got %v", err)
		}
	}
	err := GetJSON(context.Background(), fetch, srv.URL, nil, &out)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server calls = %d, want 2", calls.Load())
	}
}

func TestWithRateLimit_ContextCanceled(t *testing.T) {
	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	next := func(context.Context, *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Body: http.NoBody}, nil
	}
	fetch := WithRateLimit(next, lim)
	req := httptest.NewRequest(http.MethodGet, "http://x", http.NoBody)

	if _, err := fetch(context.Background(), req); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := fetch(ctx, req); err == nil {
		t.Fatal("expected rate limit wait error")
	}
}
