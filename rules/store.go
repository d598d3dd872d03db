package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/liamcoop/discovery/catalog"
)

// RuleStore persists rule aggregates per tenant
type RuleStore interface {
	// Save inserts or updates a rule
	Save(ctx context.Context, rule *Rule) error

	// FindByID returns ErrRuleNotFound when the rule does not exist for the tenant
	FindByID(ctx context.Context, tenantID, id string) (*Rule, error)

	// FindByTenant lists every rule of a tenant in execution order
	FindByTenant(ctx context.Context, tenantID string) ([]*Rule, error)

	// FindActiveByTenant lists the active rules of a tenant in execution order
	FindActiveByTenant(ctx context.Context, tenantID string) ([]*Rule, error)

	// Delete removes a rule from every listing
	Delete(ctx context.Context, tenantID, id string) error
}

// InMemoryRuleStore keeps the persisted projection and hydrates on every
// read, so callers never share a *Rule with the store
type InMemoryRuleStore struct {
	catalog catalog.Repository
	rules   map[string]PersistedRule // tenant:id -> rule
	mu      sync.RWMutex
}

func NewInMemoryRuleStore(repo catalog.Repository) *InMemoryRuleStore {
	return &InMemoryRuleStore{
		catalog: repo,
		rules:   make(map[string]PersistedRule),
	}
}

func storeKey(tenantID, id string) string {
	return tenantID + ":" + id
}

// Save keeps the original creation time when the rule already exists
func (s *InMemoryRuleStore) Save(_ context.Context, rule *Rule) error {
	p := rule.ToPersistence()

	s.mu.Lock()
	defer s.mu.Unlock()

	key := storeKey(p.TenantID, p.ID)
	if existing, ok := s.rules[key]; ok {
		p.CreatedAt = existing.CreatedAt
	}
	s.rules[key] = p
	return nil
}

func (s *InMemoryRuleStore) FindByID(ctx context.Context, tenantID, id string) (*Rule, error) {
	s.mu.RLock()
	p, ok := s.rules[storeKey(tenantID, id)]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return Hydrate(ctx, s.catalog, p)
}

func (s *InMemoryRuleStore) FindByTenant(ctx context.Context, tenantID string) ([]*Rule, error) {
	return s.list(ctx, tenantID, false)
}

func (s *InMemoryRuleStore) FindActiveByTenant(ctx context.Context, tenantID string) ([]*Rule, error) {
	return s.list(ctx, tenantID, true)
}

func (s *InMemoryRuleStore) list(ctx context.Context, tenantID string, activeOnly bool) ([]*Rule, error) {
	s.mu.RLock()
	var persisted []PersistedRule
	for _, p := range s.rules {
		if p.TenantID != tenantID || (activeOnly && !p.Active) {
			continue
		}
		persisted = append(persisted, p)
	}
	s.mu.RUnlock()

	sort.Slice(persisted, func(i, j int) bool {
		a, b := persisted[i], persisted[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	out := make([]*Rule, 0, len(persisted))
	for _, p := range persisted {
		r, err := Hydrate(ctx, s.catalog, p)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *InMemoryRuleStore) Delete(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storeKey(tenantID, id)
	if _, ok := s.rules[key]; !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	delete(s.rules, key)
	return nil
}
