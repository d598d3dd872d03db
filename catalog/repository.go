package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Categories known to the discovery core
const (
	CategoryDiscoveryStatus  = "discovery_status"
	CategoryHypothesisStatus = "hipotese_status"
	CategoryResearchStatus   = "pesquisa_status"
	CategoryExperimentStatus = "experimento_status"
	CategoryInsightStatus    = "insight_status"
	CategoryDemandStatus     = "demanda_status"

	CategoryRuleFields    = "regra_campos"
	CategoryRuleOperators = "regra_operadores"
	CategoryRuleActions   = "regra_acoes"
)

// Lookup identifies one item inside a tenant and category.
// Exactly one of ID, Slug or LegacyValue is expected; ID wins when several are set.
type Lookup struct {
	TenantID    string
	Category    string
	ID          string
	Slug        string
	LegacyValue string
}

func (l Lookup) validate() error {
	if l.TenantID == "" {
		return fmt.Errorf("%w: lookup requires tenantId", ErrValidation)
	}
	if l.ID == "" && l.Slug == "" && l.LegacyValue == "" {
		return fmt.Errorf("%w: lookup requires id, slug or legacyValue", ErrValidation)
	}
	if l.ID == "" && l.Category == "" {
		return fmt.Errorf("%w: lookup by slug requires category", ErrValidation)
	}
	return nil
}

// key is the cache key of a lookup
func (l Lookup) key() string {
	switch {
	case l.ID != "":
		return l.TenantID + ":id:" + l.ID
	case l.Slug != "":
		return l.TenantID + ":" + l.Category + ":slug:" + l.Slug
	default:
		return l.TenantID + ":" + l.Category + ":legacy:" + strings.ToUpper(l.LegacyValue)
	}
}

func (l Lookup) String() string {
	switch {
	case l.ID != "":
		return fmt.Sprintf("tenant=%s category=%s id=%s", l.TenantID, l.Category, l.ID)
	case l.Slug != "":
		return fmt.Sprintf("tenant=%s category=%s slug=%s", l.TenantID, l.Category, l.Slug)
	default:
		return fmt.Sprintf("tenant=%s category=%s legacyValue=%s", l.TenantID, l.Category, l.LegacyValue)
	}
}

// Repository resolves catalog items
type Repository interface {
	// GetRequiredItem returns the item or an error wrapping ErrItemNotFound.
	// When Category is set the item must belong to it.
	GetRequiredItem(ctx context.Context, lookup Lookup) (*Item, error)

	// FindItemsByIDs returns the items found, in no particular order; missing ids are skipped
	FindItemsByIDs(ctx context.Context, tenantID string, ids []string) ([]*Item, error)

	// ListByCategory returns the tenant's items of a category sorted by order then label
	ListByCategory(ctx context.Context, tenantID, category string) ([]*Item, error)
}

// InMemoryRepository implements Repository with a map, safe for concurrent use
type InMemoryRepository struct {
	items map[string]*Item // tenant:id -> item
	mu    sync.RWMutex
}

// NewInMemoryRepository creates an empty repository
func NewInMemoryRepository(items ...*Item) *InMemoryRepository {
	r := &InMemoryRepository{items: make(map[string]*Item)}
	for _, item := range items {
		r.items[item.tenantID+":"+item.id] = item
	}
	return r
}

// Add stores an item, replacing any item with the same identity
func (r *InMemoryRepository) Add(items ...*Item) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range items {
		r.items[item.tenantID+":"+item.id] = item
	}
}

// GetRequiredItem resolves by id, slug or legacy value
func (r *InMemoryRepository) GetRequiredItem(_ context.Context, lookup Lookup) (*Item, error) {
	if err := lookup.validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if lookup.ID != "" {
		item, ok := r.items[lookup.TenantID+":"+lookup.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrItemNotFound, lookup)
		}
		if lookup.Category != "" {
			if err := item.EnsureCategory(lookup.Category); err != nil {
				return nil, err
			}
		}
		return item, nil
	}

	for _, item := range r.items {
		if item.tenantID != lookup.TenantID || item.categorySlug != lookup.Category {
			continue
		}
		if lookup.Slug != "" && item.slug == lookup.Slug {
			return item, nil
		}
		if lookup.Slug == "" && strings.EqualFold(item.LegacyValue(), lookup.LegacyValue) {
			return item, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrItemNotFound, lookup)
}

// FindItemsByIDs returns every item found among ids
func (r *InMemoryRepository) FindItemsByIDs(_ context.Context, tenantID string, ids []string) ([]*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	found := make([]*Item, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if item, ok := r.items[tenantID+":"+id]; ok {
			found = append(found, item)
		}
	}
	return found, nil
}

// ListByCategory returns the tenant's items of one category
func (r *InMemoryRepository) ListByCategory(_ context.Context, tenantID, category string) ([]*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var list []*Item
	for _, item := range r.items {
		if item.tenantID == tenantID && item.categorySlug == category {
			list = append(list, item)
		}
	}
	SortItems(list)
	return list, nil
}

// SortItems orders items by explicit order (unordered last), then label, then id
func SortItems(items []*Item) {
	sort.SliceStable(items, func(a, b int) bool {
		oa, hasA := items[a].Order()
		ob, hasB := items[b].Order()
		if hasA != hasB {
			return hasA
		}
		if oa != ob {
			return oa < ob
		}
		if items[a].label != items[b].label {
			return items[a].label < items[b].label
		}
		return items[a].id < items[b].id
	})
}
