package result

import (
	"encoding/json"
	"time"

	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/query/match"
)

// Result is the canonical search hit shared by every backend.
// CreatedSource/UpdatedSource name the raw path the date was read from.
type Result struct {
	ID            string          `json:"id"`
	EntityKind    entity.Kind     `json:"entityKind"`
	Name          string          `json:"name"`
	Summary       string          `json:"summary,omitempty"`
	Description   string          `json:"description,omitempty"`
	Owner         string          `json:"owner,omitempty"`
	Type          string          `json:"type,omitempty"`
	Family        string          `json:"family,omitempty"`
	TypeKeywords  []string        `json:"typeKeywords,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
	Categories    []string        `json:"categories,omitempty"`
	Groups        []string        `json:"groups,omitempty"`
	Access        string          `json:"access,omitempty"`
	OrgID         string          `json:"orgId,omitempty"`
	Role          string          `json:"role,omitempty"`
	MemberType    string          `json:"memberType,omitempty"`
	Status        string          `json:"status,omitempty"`
	ParentID      string          `json:"parentId,omitempty"`
	Discussion    string          `json:"discussion,omitempty"`
	Channel       string          `json:"channel,omitempty"`
	URL           string          `json:"url,omitempty"`
	Thumbnail     string          `json:"thumbnail,omitempty"`
	Extent        *query.BBox     `json:"extent,omitempty"`
	Created       time.Time       `json:"created"`
	CreatedSource string          `json:"createdDateSource,omitempty"`
	Updated       time.Time       `json:"updated"`
	UpdatedSource string          `json:"updatedDateSource,omitempty"`
	StartDate     time.Time       `json:"startDate,omitzero"`
	Raw           json.RawMessage `json:"-"`
}

// Record projects the result into the matchable form used by the evaluator.
func (r *Result) Record() match.Record {
	vals := map[query.Field][]string{
		query.FieldID:           nonEmpty(r.ID),
		query.FieldGroup:        r.Groups,
		query.FieldType:         nonEmpty(r.Type),
		query.FieldTypeKeywords: r.TypeKeywords,
		query.FieldOwner:        nonEmpty(r.Owner),
		query.FieldTags:         r.Tags,
		query.FieldCategories:   r.Categories,
		query.FieldAccess:       nonEmpty(r.Access),
		query.FieldOrgID:        nonEmpty(r.OrgID),
		query.FieldTitle:        nonEmpty(r.Name),
		query.FieldName:         nonEmpty(r.Name),
		query.FieldRole:         nonEmpty(r.Role),
		query.FieldMemberType:   nonEmpty(r.MemberType),
		query.FieldStatus:       nonEmpty(r.Status),
		query.FieldParentID:     nonEmpty(r.ParentID),
		query.FieldDiscussion:   nonEmpty(r.Discussion),
		query.FieldChannel:      nonEmpty(r.Channel),
	}
	if r.EntityKind == entity.User {
		vals[query.FieldUsername] = nonEmpty(r.ID)
	}

	dates := make(map[query.Field]time.Time, 3)
	if !r.Created.IsZero() {
		dates[query.FieldCreated] = r.Created
	}
	if !r.Updated.IsZero() {
		dates[query.FieldModified] = r.Updated
		if r.EntityKind == entity.User {
			dates[query.FieldLastLogin] = r.Updated
		}
	}
	if !r.StartDate.IsZero() {
		dates[query.FieldStartDate] = r.StartDate
	}

	text := make([]string, 0, 3+len(r.Tags))
	for _, s := range []string{r.Name, r.Summary, r.Description} {
		if s != "" {
			text = append(text, s)
		}
	}
	text = append(text, r.Tags...)

	return match.Record{Values: vals, Text: text, Dates: dates, Extent: r.Extent}
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
