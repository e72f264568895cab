package portal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/result"
)

// searchResponse is the portal search envelope shared by items, groups and users.
type searchResponse struct {
	Total        int               `json:"total"`
	Start        int               `json:"start"`
	Num          int               `json:"num"`
	NextStart    int               `json:"nextStart"`
	Results      []json.RawMessage `json:"results"`
	Aggregations *struct {
		Counts []struct {
			FieldName   string `json:"fieldName"`
			FieldValues []struct {
				Value any `json:"value"`
				Count int `json:"count"`
			} `json:"fieldValues"`
		} `json:"counts"`
	} `json:"aggregations"`
}

// nextOffset is nextStart when positive, otherwise total+1. A portal that
// reports nextStart=-1 on the last page therefore never yields a next page.
func nextOffset(nextStart, total int) int {
	if nextStart > 0 {
		return nextStart
	}
	return total + 1
}

// page is a normalized response plus the offset of the following page.
type page struct {
	total        int
	results      []result.Result
	aggregations []result.Aggregation
	next         int
	hasNext      bool
}

func normalize(kind entity.Kind, raw searchResponse) (page, error) {
	out := page{
		total:   raw.Total,
		results: make([]result.Result, 0, len(raw.Results)),
		next:    nextOffset(raw.NextStart, raw.Total),
	}
	out.hasNext = out.next <= raw.Total

	for i, r := range raw.Results {
		res, err := normalizeRecord(kind, r)
		if err != nil {
			return page{}, fmt.Errorf("normalize %s result %d: %w", kind, i, err)
		}
		out.results = append(out.results, res)
	}

	if raw.Aggregations != nil {
		for _, c := range raw.Aggregations.Counts {
			agg := result.Aggregation{Field: c.FieldName, Values: make([]result.AggregationValue, 0, len(c.FieldValues))}
			for _, fv := range c.FieldValues {
				agg.Values = append(agg.Values, result.AggregationValue{Value: fmt.Sprint(fv.Value), Count: fv.Count})
			}
			out.aggregations = append(out.aggregations, agg)
		}
	}
	return out, nil
}

func normalizeRecord(kind entity.Kind, raw json.RawMessage) (result.Result, error) {
	switch kind {
	case entity.Item:
		return normalizeItem(raw)
	case entity.Group:
		return normalizeGroup(raw)
	case entity.User:
		return normalizeUser(raw)
	default:
		return result.Result{}, fmt.Errorf("no portal normalizer for %s", kind)
	}
}

type portalItem struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Snippet      string      `json:"snippet"`
	Description  string      `json:"description"`
	Owner        string      `json:"owner"`
	Type         string      `json:"type"`
	TypeKeywords []string    `json:"typeKeywords"`
	Tags         []string    `json:"tags"`
	Categories   []string    `json:"categories"`
	Groups       []string    `json:"groups"`
	Access       string      `json:"access"`
	OrgID        string      `json:"orgId"`
	URL          string      `json:"url"`
	Thumbnail    string      `json:"thumbnail"`
	Extent       [][]float64 `json:"extent"`
	Created      int64       `json:"created"`
	Modified     int64       `json:"modified"`
}

func normalizeItem(raw json.RawMessage) (result.Result, error) {
	var it portalItem
	if err := json.Unmarshal(raw, &it); err != nil {
		return result.Result{}, fmt.Errorf("decode item: %w", err)
	}
	r := result.Result{
		ID:           it.ID,
		EntityKind:   entity.Item,
		Name:         it.Title,
		Summary:      it.Snippet,
		Description:  it.Description,
		Owner:        it.Owner,
		Type:         it.Type,
		Family:       family(it.Type),
		TypeKeywords: it.TypeKeywords,
		Tags:         it.Tags,
		Categories:   it.Categories,
		Groups:       it.Groups,
		Access:       it.Access,
		OrgID:        it.OrgID,
		URL:          it.URL,
		Thumbnail:    it.Thumbnail,
		Extent:       extent(it.Extent),
		Raw:          raw,
	}
	r.Created, r.CreatedSource = millis(it.Created, "item.created")
	r.Updated, r.UpdatedSource = millis(it.Modified, "item.modified")
	return r, nil
}

type portalGroup struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Snippet     string   `json:"snippet"`
	Description string   `json:"description"`
	Owner       string   `json:"owner"`
	Tags        []string `json:"tags"`
	Access      string   `json:"access"`
	OrgID       string   `json:"orgId"`
	Thumbnail   string   `json:"thumbnail"`
	Created     int64    `json:"created"`
	Modified    int64    `json:"modified"`
}

func normalizeGroup(raw json.RawMessage) (result.Result, error) {
	var g portalGroup
	if err := json.Unmarshal(raw, &g); err != nil {
		return result.Result{}, fmt.Errorf("decode group: %w", err)
	}
	r := result.Result{
		ID:          g.ID,
		EntityKind:  entity.Group,
		Name:        g.Title,
		Summary:     g.Snippet,
		Description: g.Description,
		Owner:       g.Owner,
		Type:        "Group",
		Family:      "team",
		Tags:        g.Tags,
		Access:      g.Access,
		OrgID:       g.OrgID,
		Thumbnail:   g.Thumbnail,
		Raw:         raw,
	}
	r.Created, r.CreatedSource = millis(g.Created, "group.created")
	r.Updated, r.UpdatedSource = millis(g.Modified, "group.modified")
	return r, nil
}

type portalUser struct {
	Username    string   `json:"username"`
	FullName    string   `json:"fullName"`
	Description string   `json:"description"`
	Role        string   `json:"role"`
	OrgID       string   `json:"orgId"`
	Access      string   `json:"access"`
	Tags        []string `json:"tags"`
	Thumbnail   string   `json:"thumbnail"`
	Created     int64    `json:"created"`
	LastLogin   int64    `json:"lastLogin"`
}

func normalizeUser(raw json.RawMessage) (result.Result, error) {
	var u portalUser
	if err := json.Unmarshal(raw, &u); err != nil {
		return result.Result{}, fmt.Errorf("decode user: %w", err)
	}
	name := u.FullName
	if name == "" {
		name = u.Username
	}
	r := result.Result{
		ID:          u.Username,
		EntityKind:  entity.User,
		Name:        name,
		Description: u.Description,
		Owner:       u.Username,
		Type:        "User",
		Family:      "people",
		Role:        u.Role,
		OrgID:       u.OrgID,
		Access:      u.Access,
		Tags:        u.Tags,
		Thumbnail:   u.Thumbnail,
		Raw:         raw,
	}
	r.Created, r.CreatedSource = millis(u.Created, "user.created")
	// lastLogin is -1 for users that never signed in
	r.Updated, r.UpdatedSource = millis(u.LastLogin, "user.lastLogin")
	return r, nil
}

func millis(ms int64, source string) (time.Time, string) {
	if ms <= 0 {
		return time.Time{}, ""
	}
	return time.UnixMilli(ms).UTC(), source
}

// extent converts [[xmin, ymin], [xmax, ymax]].
func extent(e [][]float64) *query.BBox {
	if len(e) != 2 || len(e[0]) != 2 || len(e[1]) != 2 {
		return nil
	}
	return &query.BBox{MinLon: e[0][0], MinLat: e[0][1], MaxLon: e[1][0], MaxLat: e[1][1]}
}

// family buckets item types into the coarse groups used for faceting.
func family(itemType string) string {
	switch itemType {
	case "Web Map", "Web Scene", "Map Service", "Vector Tile Service", "Image Service":
		return "map"
	case "Feature Service", "Feature Collection", "CSV", "Shapefile", "GeoJson", "File Geodatabase", "Table":
		return "dataset"
	case "Web Mapping Application", "Dashboard", "StoryMap", "Hub Site Application", "Hub Page", "Form":
		return "app"
	case "PDF", "Microsoft Word", "Microsoft Excel", "Microsoft Powerpoint", "Document Link":
		return "document"
	case "":
		return ""
	default:
		return "content"
	}
}
