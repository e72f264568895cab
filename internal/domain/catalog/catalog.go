// Package catalog models catalogs: per-entity base scopes plus named
// collections, persisted as opaque JSON inside an owning entity.
//
// FromJSON/ToJSON round-trip losslessly: keys the package does not model are
// preserved, and modeled keys are only re-encoded after they were changed.
// Defaults are applied by getters and never written back.
package catalog

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/kailas-cloud/hubsearch/internal/domain"
	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
	"github.com/kailas-cloud/hubsearch/internal/domain/query"
)

// DefaultSchemaVersion is reported when the stored JSON has none.
const DefaultSchemaVersion = 1

// Catalog is a bundle of base scopes and collections.
type Catalog struct {
	raw map[string]json.RawMessage

	schemaVersion *int
	title         string
	scopes        map[entity.Kind]query.Query
	collections   []Collection
	displayConfig json.RawMessage
}

// New creates an empty catalog.
func New(title string) *Catalog {
	c := &Catalog{raw: map[string]json.RawMessage{}}
	c.SetTitle(title)
	return c
}

type catalogJSON struct {
	SchemaVersion *int                        `json:"schemaVersion"`
	Title         string                      `json:"title"`
	Scopes        map[entity.Kind]query.Query `json:"scopes"`
	Collections   []Collection                `json:"collections"`
	DisplayConfig json.RawMessage             `json:"displayConfig"`
}

// FromJSON decodes and validates a catalog.
func FromJSON(data []byte) (*Catalog, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, domain.NewConfigError(domain.NameInvalidCatalog, domain.ErrInvalidCatalog, "decode catalog: %v", err)
	}
	if raw == nil {
		return nil, domain.NewConfigError(domain.NameInvalidCatalog, domain.ErrInvalidCatalog, "catalog is null")
	}
	var v catalogJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, domain.NewConfigError(domain.NameInvalidCatalog, domain.ErrInvalidCatalog, "decode catalog: %v", err)
	}
	c := &Catalog{
		raw:           raw,
		schemaVersion: v.SchemaVersion,
		title:         v.Title,
		scopes:        v.Scopes,
		collections:   v.Collections,
		displayConfig: v.DisplayConfig,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ToJSON encodes the catalog.
func (c *Catalog) ToJSON() ([]byte, error) {
	data, err := json.Marshal(c.raw)
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	return data, nil
}

// MarshalJSON implements json.Marshaler.
func (c *Catalog) MarshalJSON() ([]byte, error) { return c.ToJSON() }

// UnmarshalJSON implements json.Unmarshaler.
func (c *Catalog) UnmarshalJSON(data []byte) error {
	parsed, err := FromJSON(data)
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}

// Validate checks scopes and collections.
func (c *Catalog) Validate() error {
	for kind, q := range c.scopes {
		if !kind.IsValid() {
			return domain.NewConfigError(domain.NameInvalidCatalog, domain.ErrInvalidCatalog, "unknown scope %q", kind)
		}
		if q.TargetEntity == "" {
			q.TargetEntity = kind
		}
		if err := q.Validate(); err != nil {
			return domain.NewConfigError(domain.NameInvalidCatalog, domain.ErrInvalidCatalog, "scope %s: %v", kind, err)
		}
	}
	seen := make(map[string]struct{}, len(c.collections))
	for _, col := range c.collections {
		if err := col.Validate(); err != nil {
			return err
		}
		if _, dup := seen[col.Key]; dup {
			return domain.NewConfigError(domain.NameInvalidCatalog, domain.ErrInvalidCatalog, "duplicate collection key %q", col.Key)
		}
		seen[col.Key] = struct{}{}
	}
	return nil
}

// SchemaVersion returns the stored version or DefaultSchemaVersion.
func (c *Catalog) SchemaVersion() int {
	if c.schemaVersion == nil {
		return DefaultSchemaVersion
	}
	return *c.schemaVersion
}

// Title returns the catalog title.
func (c *Catalog) Title() string { return c.title }

// SetTitle changes the title.
func (c *Catalog) SetTitle(title string) {
	c.title = title
	c.set("title", title)
}

// DisplayConfig returns the opaque display configuration.
func (c *Catalog) DisplayConfig() json.RawMessage { return c.displayConfig }

// Scope returns the base scope for kind. It never fails.
func (c *Catalog) Scope(kind entity.Kind) (query.Query, bool) {
	q, ok := c.scopes[kind]
	if !ok {
		return query.Query{}, false
	}
	if q.TargetEntity == "" {
		q.TargetEntity = kind
	}
	return q, true
}

// ScopeKinds lists the configured scopes in entity.All order.
func (c *Catalog) ScopeKinds() []entity.Kind {
	out := make([]entity.Kind, 0, len(c.scopes))
	for _, k := range entity.All() {
		if _, ok := c.scopes[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// SetScope replaces the base scope for kind.
func (c *Catalog) SetScope(kind entity.Kind, q query.Query) error {
	if q.TargetEntity == "" {
		q.TargetEntity = kind
	}
	if q.TargetEntity != kind {
		return domain.NewConfigError(domain.NameInvalidCatalog, domain.ErrInvalidCatalog,
			"scope %s targets %s", kind, q.TargetEntity)
	}
	if err := q.Validate(); err != nil {
		return domain.NewConfigError(domain.NameInvalidCatalog, domain.ErrInvalidCatalog, "scope %s: %v", kind, err)
	}
	if c.scopes == nil {
		c.scopes = make(map[entity.Kind]query.Query, 1)
	}
	c.scopes[kind] = q
	c.setScopes()
	return nil
}

// RemoveScope deletes the base scope for kind.
func (c *Catalog) RemoveScope(kind entity.Kind) {
	if _, ok := c.scopes[kind]; !ok {
		return
	}
	delete(c.scopes, kind)
	c.setScopes()
}

// setScopes re-encodes only the scope entries; untouched ones keep their bytes.
func (c *Catalog) setScopes() {
	var prev map[string]json.RawMessage
	if b, ok := c.raw["scopes"]; ok {
		_ = json.Unmarshal(b, &prev)
	}
	next := make(map[string]json.RawMessage, len(c.scopes))
	for k, q := range c.scopes {
		b, err := json.Marshal(q)
		if err != nil {
			continue
		}
		if old, ok := prev[string(k)]; ok && jsonEqual(old, b) {
			b = old
		}
		next[string(k)] = b
	}
	c.set("scopes", next)
}

// Collections returns the stored collections with their own scopes.
func (c *Catalog) Collections() []Collection {
	out := make([]Collection, len(c.collections))
	copy(out, c.collections)
	return out
}

// Collection returns the collection for key with its effective scope:
// the base scope filters for its entity followed by its own filters.
func (c *Catalog) Collection(key string) (Collection, error) {
	if len(c.collections) == 0 {
		return Collection{}, domain.NewConfigError(domain.NameNoCollections, domain.ErrNoCollections,
			"catalog %q has no collections", c.title)
	}
	for _, col := range c.collections {
		if col.Key == key {
			base, ok := c.Scope(col.TargetEntity)
			return col.withBase(base, ok), nil
		}
	}
	return Collection{}, domain.NewConfigError(domain.NameCollectionNotFound, domain.ErrCollectionNotFound,
		"collection %q not found in catalog %q", key, c.title)
}

// CollectionKeys lists collection keys in stored order.
func (c *Catalog) CollectionKeys() []string {
	out := make([]string, len(c.collections))
	for i, col := range c.collections {
		out[i] = col.Key
	}
	return out
}

// AddCollection appends col, creating the collections list when missing.
func (c *Catalog) AddCollection(col Collection) error {
	if err := col.Validate(); err != nil {
		return err
	}
	for _, existing := range c.collections {
		if existing.Key == col.Key {
			return domain.NewConfigError(domain.NameInvalidCatalog, domain.ErrInvalidCatalog,
				"duplicate collection key %q", col.Key)
		}
	}
	c.collections = append(c.collections, col)
	c.set("collections", c.collections)
	return nil
}

// RemoveCollection deletes the collection with key. It reports whether one was removed.
func (c *Catalog) RemoveCollection(key string) bool {
	for i, col := range c.collections {
		if col.Key == key {
			c.collections = append(c.collections[:i:i], c.collections[i+1:]...)
			c.set("collections", c.collections)
			return true
		}
	}
	return false
}

// CustomCollection synthesizes the "<kind>-custom" collection: the base scope
// for kind plus extra filters, or the extra filters alone without a base scope.
func (c *Catalog) CustomCollection(kind entity.Kind, extra ...query.Filter) Collection {
	col := Collection{
		Key:          CustomKey(kind),
		Label:        CustomKey(kind),
		TargetEntity: kind,
		Scope:        query.New(kind).Append(extra...),
	}
	base, ok := c.Scope(kind)
	return col.withBase(base, ok)
}

// Clone returns an independent copy.
func (c *Catalog) Clone() (*Catalog, error) {
	data, err := c.ToJSON()
	if err != nil {
		return nil, err
	}
	return FromJSON(data)
}

func (c *Catalog) set(key string, v any) {
	if c.raw == nil {
		c.raw = map[string]json.RawMessage{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		// modeled values are validated before they get here
		return
	}
	if old, ok := c.raw[key]; ok && jsonEqual(old, b) {
		return
	}
	c.raw = maps.Clone(c.raw)
	c.raw[key] = b
}
