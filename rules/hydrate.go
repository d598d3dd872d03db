package rules

import (
	"context"
	"fmt"

	"github.com/liamcoop/discovery/catalog"
)

// Hydrate rebuilds a rule from its storage projection. Every catalog id is
// resolved with a single FindItemsByIDs call; a missing id fails the rule.
func Hydrate(ctx context.Context, repo catalog.Repository, p PersistedRule) (*Rule, error) {
	items, err := repo.FindItemsByIDs(ctx, p.TenantID, p.CatalogIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog items for rule %s: %w", p.ID, err)
	}
	byID := make(map[string]*catalog.Item, len(items))
	for _, item := range items {
		byID[item.ID()] = item
	}
	resolve := func(id string) (*catalog.Item, error) {
		item, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: item %s referenced by rule %s", catalog.ErrItemNotFound, id, p.ID)
		}
		return item, nil
	}

	conditions := make([]*Condition, 0, len(p.Conditions))
	for _, pc := range p.Conditions {
		field, err := resolve(pc.FieldID)
		if err != nil {
			return nil, err
		}
		operator, err := resolve(pc.OperatorID)
		if err != nil {
			return nil, err
		}
		c, err := NewCondition(ConditionProps{Field: field, Operator: operator, Value: pc.Value, Logic: pc.Logic})
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", p.ID, err)
		}
		conditions = append(conditions, c)
	}

	actions := make([]*Action, 0, len(p.Actions))
	for _, pa := range p.Actions {
		kind, err := resolve(pa.TypeID)
		if err != nil {
			return nil, err
		}
		var field *catalog.Item
		if pa.FieldID != "" {
			if field, err = resolve(pa.FieldID); err != nil {
				return nil, err
			}
		}
		a, err := NewAction(ActionProps{Type: kind, Field: field, Value: pa.Value, Config: pa.Config})
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", p.ID, err)
		}
		actions = append(actions, a)
	}

	return Restore(RuleProps{
		ID:          p.ID,
		TenantID:    p.TenantID,
		Name:        p.Name,
		Description: p.Description,
		Conditions:  conditions,
		Actions:     actions,
		Active:      p.Active,
		Order:       p.Order,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	})
}
