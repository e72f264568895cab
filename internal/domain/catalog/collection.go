package catalog

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/kailas-cloud/hubsearch/internal/domain"
	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
	"github.com/kailas-cloud/hubsearch/internal/domain/query"
)

// Sort directions accepted in collection JSON.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Collection is a named, pre-scoped view of one entity kind.
type Collection struct {
	Key           string
	Label         string
	TargetEntity  entity.Kind
	Scope         query.Query
	SortField     string
	SortDirection string
	Include       []string

	// raw keeps keys this package does not model.
	raw map[string]json.RawMessage
}

// CustomKey is the key of the collection synthesized for ad-hoc filters.
func CustomKey(kind entity.Kind) string { return string(kind) + "-custom" }

type collectionJSON struct {
	Key           string      `json:"key"`
	Label         string      `json:"label"`
	TargetEntity  entity.Kind `json:"targetEntity"`
	Scope         query.Query `json:"scope"`
	SortField     string      `json:"sortField,omitempty"`
	SortDirection string      `json:"sortDirection,omitempty"`
	Include       []string    `json:"include,omitempty"`
}

// UnmarshalJSON decodes a collection and keeps unmodeled keys.
func (c *Collection) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode collection: %w", err)
	}
	var v collectionJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode collection: %w", err)
	}
	*c = Collection{
		Key:           v.Key,
		Label:         v.Label,
		TargetEntity:  v.TargetEntity,
		Scope:         v.Scope,
		SortField:     v.SortField,
		SortDirection: v.SortDirection,
		Include:       v.Include,
		raw:           raw,
	}
	return nil
}

// MarshalJSON writes the modeled fields over the preserved raw keys.
// Unchanged modeled fields keep their original bytes.
func (c Collection) MarshalJSON() ([]byte, error) {
	out := maps.Clone(c.raw)
	if out == nil {
		out = make(map[string]json.RawMessage, 7)
	}
	put := func(key string, v any, omit bool) error {
		if omit {
			// a cleared optional field drops its key; an originally empty one is kept as written
			if old, had := c.raw[key]; had && !isEmptyJSON(old) {
				delete(out, key)
			}
			return nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode collection %s: %w", key, err)
		}
		if old, had := c.raw[key]; had && jsonEqual(old, b) {
			return nil
		}
		out[key] = b
		return nil
	}
	for _, f := range []struct {
		key  string
		v    any
		omit bool
	}{
		{"key", c.Key, false},
		{"label", c.Label, false},
		{"targetEntity", c.TargetEntity, false},
		{"scope", c.Scope, isZeroQuery(c.Scope)},
		{"sortField", c.SortField, c.SortField == ""},
		{"sortDirection", c.SortDirection, c.SortDirection == ""},
		{"include", c.Include, len(c.Include) == 0},
	} {
		if err := put(f.key, f.v, f.omit); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

// Validate checks the collection definition.
func (c Collection) Validate() error {
	if c.Key == "" {
		return domain.NewConfigError(domain.NameInvalidCatalog, domain.ErrInvalidCatalog, "collection without key")
	}
	if !c.TargetEntity.IsValid() {
		return domain.NewConfigError(domain.NameInvalidCatalog, domain.ErrInvalidCatalog,
			"collection %q: unknown target entity %q", c.Key, c.TargetEntity)
	}
	switch c.SortDirection {
	case "", SortAsc, SortDesc:
	default:
		return domain.NewConfigError(domain.NameInvalidCatalog, domain.ErrInvalidCatalog,
			"collection %q: invalid sort direction %q", c.Key, c.SortDirection)
	}
	scope := c.Scope
	if scope.TargetEntity == "" {
		scope.TargetEntity = c.TargetEntity
	}
	if err := scope.Validate(); err != nil {
		return domain.NewConfigError(domain.NameInvalidCatalog, domain.ErrInvalidCatalog,
			"collection %q: %v", c.Key, err)
	}
	return nil
}

// withBase returns a copy whose scope is base's filters followed by the
// collection's own, targeting the collection's entity.
func (c Collection) withBase(base query.Query, hasBase bool) Collection {
	out := c
	out.Include = append([]string(nil), c.Include...)
	own := c.Scope
	if !hasBase {
		out.Scope = query.New(c.TargetEntity).Append(own.Filters...)
	} else {
		out.Scope = query.New(c.TargetEntity).Append(base.Filters...).Append(own.Filters...)
	}
	out.Scope.Properties = own.Properties
	return out
}

func isZeroQuery(q query.Query) bool {
	return q.TargetEntity == "" && q.Filters == nil && q.Properties == nil
}

func jsonEqual(a, b []byte) bool {
	var x, y any
	if json.Unmarshal(a, &x) != nil || json.Unmarshal(b, &y) != nil {
		return false
	}
	xb, _ := json.Marshal(x)
	yb, _ := json.Marshal(y)
	return string(xb) == string(yb)
}

func isEmptyJSON(b []byte) bool {
	var v any
	if json.Unmarshal(b, &v) != nil {
		return false
	}
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	default:
		return false
	}
}
