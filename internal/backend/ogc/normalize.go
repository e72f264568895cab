package ogc

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/result"
)

type link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type feature struct {
	ID         json.RawMessage `json:"id"`
	Properties json.RawMessage `json:"properties"`
	BBox       []float64       `json:"bbox"`
}

type featureCollection struct {
	NumberMatched  int       `json:"numberMatched"`
	NumberReturned int       `json:"numberReturned"`
	Features       []feature `json:"features"`
	Links          []link    `json:"links"`
	Aggregations   *struct {
		Terms struct {
			Fields []struct {
				Field        string `json:"field"`
				Aggregations []struct {
					Label string `json:"label"`
					Value int    `json:"value"`
				} `json:"aggregations"`
			} `json:"fields"`
		} `json:"terms"`
	} `json:"aggregations"`
}

type page struct {
	total        int
	results      []result.Result
	aggregations []result.Aggregation
	hasNext      bool
	nextIndex    int
}

// normalize maps a feature collection. The next page exists iff a link with
// rel "next" is present; its startindex becomes the next offset. A next link
// without startindex advances by the returned count from current.
func normalize(kind entity.Kind, raw featureCollection, current int) (page, error) {
	out := page{
		total:   raw.NumberMatched,
		results: make([]result.Result, 0, len(raw.Features)),
	}
	for i, f := range raw.Features {
		r, err := normalizeFeature(kind, f)
		if err != nil {
			return page{}, fmt.Errorf("normalize %s feature %d: %w", kind, i, err)
		}
		out.results = append(out.results, r)
	}

	for _, l := range raw.Links {
		if l.Rel != "next" {
			continue
		}
		out.hasNext = true
		out.nextIndex = startIndex(l.Href, current+raw.NumberReturned)
		break
	}

	if raw.Aggregations != nil {
		for _, f := range raw.Aggregations.Terms.Fields {
			agg := result.Aggregation{Field: f.Field, Values: make([]result.AggregationValue, 0, len(f.Aggregations))}
			for _, a := range f.Aggregations {
				agg.Values = append(agg.Values, result.AggregationValue{Value: a.Label, Count: a.Value})
			}
			out.aggregations = append(out.aggregations, agg)
		}
	}
	return out, nil
}

func startIndex(href string, fallback int) int {
	u, err := url.Parse(href)
	if err != nil {
		return fallback
	}
	n, err := strconv.Atoi(u.Query().Get("startindex"))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// props is the union of the property names used across collections.
type props struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Name         string      `json:"name"`
	Summary      string      `json:"summary"`
	Snippet      string      `json:"snippet"`
	Description  string      `json:"description"`
	Body         string      `json:"body"`
	Owner        string      `json:"owner"`
	Creator      string      `json:"creator"`
	Username     string      `json:"username"`
	Type         string      `json:"type"`
	TypeKeywords []string    `json:"typeKeywords"`
	Tags         []string    `json:"tags"`
	Categories   []string    `json:"categories"`
	Groups       []string    `json:"groups"`
	Access       string      `json:"access"`
	OrgID        string      `json:"orgId"`
	Role         string      `json:"role"`
	MemberType   string      `json:"memberType"`
	Status       string      `json:"status"`
	ParentID     string      `json:"parentId"`
	Discussion   string      `json:"discussion"`
	ChannelID    string      `json:"channelId"`
	URL          string      `json:"url"`
	Thumbnail    string      `json:"thumbnail"`
	Created      flexTime    `json:"created"`
	CreatedAt    flexTime    `json:"createdAt"`
	Modified     flexTime    `json:"modified"`
	UpdatedAt    flexTime    `json:"updatedAt"`
	StartDate    flexTime    `json:"startDate"`
	Extent       [][]float64 `json:"extent"`
}

// flexTime accepts epoch milliseconds or an RFC 3339 string.
type flexTime struct{ time.Time }

func (t *flexTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err == nil {
		if ms > 0 {
			t.Time = time.UnixMilli(ms).UTC()
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be epoch ms or RFC 3339: %w", err)
	}
	if s == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	t.Time = parsed.UTC()
	return nil
}

func featureID(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

func normalizeFeature(kind entity.Kind, f feature) (result.Result, error) {
	var p props
	if len(f.Properties) > 0 {
		if err := json.Unmarshal(f.Properties, &p); err != nil {
			return result.Result{}, fmt.Errorf("decode properties: %w", err)
		}
	}
	id := featureID(f.ID)
	if id == "" {
		id = p.ID
	}
	if kind == entity.DiscussionPost {
		return normalizePost(id, p, f.Properties), nil
	}

	r := result.Result{
		ID:           id,
		EntityKind:   kind,
		Name:         first(p.Title, p.Name, p.Username),
		Summary:      first(p.Summary, p.Snippet),
		Description:  p.Description,
		Owner:        first(p.Owner, p.Creator, p.Username),
		Type:         p.Type,
		Family:       familyFor(kind),
		TypeKeywords: p.TypeKeywords,
		Tags:         p.Tags,
		Categories:   p.Categories,
		Groups:       p.Groups,
		Access:       p.Access,
		OrgID:        p.OrgID,
		Role:         p.Role,
		MemberType:   p.MemberType,
		Status:       p.Status,
		ParentID:     p.ParentID,
		Channel:      p.ChannelID,
		URL:          p.URL,
		Thumbnail:    p.Thumbnail,
		Extent:       extent(p.Extent, f.BBox),
		StartDate:    p.StartDate.Time,
		Raw:          f.Properties,
	}
	r.Created, r.CreatedSource = pick(p.Created, "properties.created", p.CreatedAt, "properties.createdAt")
	r.Updated, r.UpdatedSource = pick(p.Modified, "properties.modified", p.UpdatedAt, "properties.updatedAt")
	return r, nil
}

// postNameLength caps a post name derived from its body.
const postNameLength = 80

func normalizePost(id string, p props, raw json.RawMessage) result.Result {
	name := p.Title
	if name == "" {
		name = truncate(p.Body, postNameLength)
	}
	r := result.Result{
		ID:         id,
		EntityKind: entity.DiscussionPost,
		Name:       name,
		Summary:    p.Body,
		Owner:      p.Creator,
		Type:       "Discussion Post",
		Family:     familyFor(entity.DiscussionPost),
		Access:     p.Access,
		OrgID:      p.OrgID,
		Status:     p.Status,
		ParentID:   p.ParentID,
		Discussion: p.Discussion,
		Channel:    p.ChannelID,
		Raw:        raw,
	}
	r.Created, r.CreatedSource = pick(p.CreatedAt, "properties.createdAt", p.Created, "properties.created")
	r.Updated, r.UpdatedSource = pick(p.UpdatedAt, "properties.updatedAt", p.Modified, "properties.modified")
	return r
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func pick(a flexTime, aSrc string, b flexTime, bSrc string) (time.Time, string) {
	if !a.IsZero() {
		return a.Time, aSrc
	}
	if !b.IsZero() {
		return b.Time, bSrc
	}
	return time.Time{}, ""
}

func first(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}

func extent(e [][]float64, bbox []float64) *query.BBox {
	if len(e) == 2 && len(e[0]) == 2 && len(e[1]) == 2 {
		return &query.BBox{MinLon: e[0][0], MinLat: e[0][1], MaxLon: e[1][0], MaxLat: e[1][1]}
	}
	if len(bbox) == 4 {
		return &query.BBox{MinLon: bbox[0], MinLat: bbox[1], MaxLon: bbox[2], MaxLat: bbox[3]}
	}
	return nil
}

func familyFor(kind entity.Kind) string {
	switch kind {
	case entity.Group, entity.GroupMember:
		return "team"
	case entity.User:
		return "people"
	case entity.Event:
		return "event"
	case entity.DiscussionPost, entity.Channel:
		return "discussion"
	default:
		return "content"
	}
}
