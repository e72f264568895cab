package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/kailas-cloud/hubsearch/internal/version"
)

// Pinger checks that a backend answers. Any status below 500 counts as up.
type Pinger struct {
	url   string
	fetch FetchFunc
}

// NewPinger creates a pinger for url. A nil fetch uses http.DefaultClient.
func NewPinger(url string, fetch FetchFunc) *Pinger {
	if fetch == nil {
		fetch = HTTPFetch(nil)
	}
	return &Pinger{url: url, fetch: fetch}
}

// Ping issues a GET to the backend root.
func (p *Pinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := p.fetch(ctx, req)
	if err != nil {
		return fmt.Errorf("ping %s: %w", p.url, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return remoteError(resp, p.url)
	}
	_ = resp.Body.Close()
	return nil
}
