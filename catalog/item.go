package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is returned when an item is built from incomplete props
	ErrValidation = errors.New("catalog validation failed")

	// ErrCategoryMismatch is returned by EnsureCategory
	ErrCategoryMismatch = errors.New("catalog category mismatch")

	// ErrItemNotFound is returned by repositories when a required item is absent
	ErrItemNotFound = errors.New("catalog item not found")
)

// Props is the serializable snapshot of an Item.
// It is what repositories, caches and seed files exchange.
type Props struct {
	ID           string         `json:"id" yaml:"id"`
	TenantID     string         `json:"tenantId" yaml:"tenantId"`
	CategorySlug string         `json:"categorySlug" yaml:"category"`
	Slug         string         `json:"slug" yaml:"slug"`
	Label        string         `json:"label" yaml:"label"`
	Order        *int           `json:"ordem,omitempty" yaml:"ordem,omitempty"`
	Active       bool           `json:"ativo" yaml:"ativo"`
	Metadata     map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	ProductID    string         `json:"produtoId,omitempty" yaml:"produtoId,omitempty"`
}

// Item is an immutable, tenant-scoped catalog record.
// Statuses, rule operators, rule actions and rule fields are all items.
type Item struct {
	id           string
	tenantID     string
	categorySlug string
	slug         string
	label        string
	order        *int
	active       bool
	productID    string
	raw          map[string]any
	meta         Metadata
}

// NewItem validates props and builds an Item.
// Metadata is parsed once here; accessors never look at the raw bag again.
func NewItem(p Props) (*Item, error) {
	required := []struct {
		name  string
		value string
	}{
		{"id", p.ID},
		{"tenantId", p.TenantID},
		{"categorySlug", p.CategorySlug},
		{"slug", p.Slug},
		{"label", p.Label},
	}
	for _, field := range required {
		if field.value == "" {
			return nil, fmt.Errorf("%w: %s is required", ErrValidation, field.name)
		}
	}

	item := &Item{
		id:           p.ID,
		tenantID:     p.TenantID,
		categorySlug: p.CategorySlug,
		slug:         p.Slug,
		label:        p.Label,
		active:       p.Active,
		productID:    p.ProductID,
		raw:          copyMap(p.Metadata),
	}
	if p.Order != nil {
		order := *p.Order
		item.order = &order
	}
	item.meta = parseMetadata(item.raw)

	return item, nil
}

// MustNewItem is NewItem for fixtures and seeds known to be valid
func MustNewItem(p Props) *Item {
	item, err := NewItem(p)
	if err != nil {
		panic(err)
	}
	return item
}

func (i *Item) ID() string           { return i.id }
func (i *Item) TenantID() string     { return i.tenantID }
func (i *Item) CategorySlug() string { return i.categorySlug }
func (i *Item) Slug() string         { return i.slug }
func (i *Item) Label() string        { return i.label }
func (i *Item) Active() bool         { return i.active }
func (i *Item) ProductID() string    { return i.productID }

// Order returns the display order and whether one is set
func (i *Item) Order() (int, bool) {
	if i.order == nil {
		return 0, false
	}
	return *i.order, true
}

// Metadata returns the parsed metadata
func (i *Item) Metadata() Metadata {
	return i.meta
}

// RawMetadata returns a copy of the metadata bag, nil when the item has none
func (i *Item) RawMetadata() map[string]any {
	return copyMap(i.raw)
}

// Equals compares identity only: (id, tenantId).
// Metadata and label are ignored, so a stale copy of an edited item still compares equal.
func (i *Item) Equals(other *Item) bool {
	if i == nil || other == nil {
		return i == other
	}
	return i.id == other.id && i.tenantID == other.tenantID
}

// EnsureCategory fails when the item does not belong to the expected category
func (i *Item) EnsureCategory(expected string) error {
	if i.categorySlug != expected {
		return fmt.Errorf("%w: item %s belongs to %q, expected %q", ErrCategoryMismatch, i.id, i.categorySlug, expected)
	}
	return nil
}

// LegacyValue returns metadata.legacyValue when it is a string, else the upper-cased slug.
// Bridges to the codes used before statuses and rule types became catalog records.
func (i *Item) LegacyValue() string {
	if i.meta.HasLegacyValue {
		return i.meta.LegacyValue
	}
	return strings.ToUpper(i.slug)
}

// Props returns a snapshot that rebuilds an equivalent item through NewItem
func (i *Item) Props() Props {
	p := Props{
		ID:           i.id,
		TenantID:     i.tenantID,
		CategorySlug: i.categorySlug,
		Slug:         i.slug,
		Label:        i.label,
		Active:       i.active,
		Metadata:     copyMap(i.raw),
		ProductID:    i.productID,
	}
	if i.order != nil {
		order := *i.order
		p.Order = &order
	}
	return p
}

func (i *Item) String() string {
	return fmt.Sprintf("%s/%s(%s)", i.categorySlug, i.slug, i.id)
}

// copyMap is shallow on purpose: nested values are treated as read-only
func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
