package portal

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kailas-cloud/hubsearch/internal/backend"
	"github.com/kailas-cloud/hubsearch/internal/domain/auth"
)

// GroupFetcher loads the groups an item is shared to.
type GroupFetcher struct {
	baseURL string
	fetch   backend.FetchFunc
}

// NewGroupFetcher creates a fetcher against the portal at baseURL.
func NewGroupFetcher(baseURL string, fetch backend.FetchFunc) *GroupFetcher {
	if fetch == nil {
		fetch = backend.HTTPFetch(nil)
	}
	return &GroupFetcher{baseURL: baseURL, fetch: fetch}
}

type itemGroupsResponse struct {
	Admin  []struct{ ID string } `json:"admin"`
	Member []struct{ ID string } `json:"member"`
	Other  []struct{ ID string } `json:"other"`
}

// ItemGroups returns the ids of every group visible to cred that holds the item.
func (g *GroupFetcher) ItemGroups(ctx context.Context, itemID string, cred *auth.Credential) ([]string, error) {
	u := backend.JoinURL(g.baseURL, "sharing/rest/content/items/"+url.PathEscape(itemID)+"/groups",
		backend.BuildQueryString(map[string]any{"f": "json"}))

	var raw itemGroupsResponse
	if err := backend.GetJSON(ctx, g.fetch, u, cred, &raw); err != nil {
		return nil, fmt.Errorf("item groups: %w", err)
	}
	ids := make([]string, 0, len(raw.Admin)+len(raw.Member)+len(raw.Other))
	for _, set := range [][]struct{ ID string }{raw.Admin, raw.Member, raw.Other} {
		for _, grp := range set {
			ids = append(ids, grp.ID)
		}
	}
	return ids, nil
}
