package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/kailas-cloud/hubsearch/internal/backend"
	"github.com/kailas-cloud/hubsearch/internal/domain/auth"
)

// EntityFetcher loads catalog-owning entities (sites, pages, initiatives)
// as {"id": ..., "data": <item data>}, so their catalog sits at data.catalog.
type EntityFetcher struct {
	baseURL string
	fetch   backend.FetchFunc
	cred    *auth.Credential
}

// NewEntityFetcher creates a fetcher. cred may be nil for public content.
func NewEntityFetcher(baseURL string, fetch backend.FetchFunc, cred *auth.Credential) *EntityFetcher {
	if fetch == nil {
		fetch = backend.HTTPFetch(nil)
	}
	return &EntityFetcher{baseURL: baseURL, fetch: fetch, cred: cred}
}

// Fetch returns the entity JSON for id.
func (f *EntityFetcher) Fetch(ctx context.Context, id string) (json.RawMessage, error) {
	u := backend.JoinURL(f.baseURL, "sharing/rest/content/items/"+url.PathEscape(id)+"/data",
		backend.BuildQueryString(map[string]any{"f": "json"}))

	var data json.RawMessage
	if err := backend.GetJSON(ctx, f.fetch, u, f.cred, &data); err != nil {
		return nil, fmt.Errorf("fetch entity %s: %w", id, err)
	}
	out, err := json.Marshal(struct {
		ID   string          `json:"id"`
		Data json.RawMessage `json:"data"`
	}{ID: id, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode entity %s: %w", id, err)
	}
	return out, nil
}
