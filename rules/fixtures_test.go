package rules

import (
	"context"
	"testing"

	"github.com/liamcoop/discovery/catalog"
)

const testTenant = "tenant-1"

// fixture resolves items from the default catalog of testTenant
type fixture struct {
	t    *testing.T
	repo *catalog.InMemoryRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	items, err := catalog.DefaultSeed(testTenant)
	if err != nil {
		t.Fatalf("DefaultSeed() failed: %v", err)
	}
	return &fixture{t: t, repo: catalog.NewInMemoryRepository(items...)}
}

func (f *fixture) item(category, slug string) *catalog.Item {
	f.t.Helper()
	item, err := f.repo.GetRequiredItem(context.Background(), catalog.Lookup{
		TenantID: testTenant,
		Category: category,
		Slug:     slug,
	})
	if err != nil {
		f.t.Fatalf("GetRequiredItem(%s/%s) failed: %v", category, slug, err)
	}
	return item
}

func (f *fixture) condition(field, operator string, value any) *Condition {
	f.t.Helper()
	c, err := NewCondition(ConditionProps{
		Field:    f.item(catalog.CategoryRuleFields, field),
		Operator: f.item(catalog.CategoryRuleOperators, operator),
		Value:    value,
	})
	if err != nil {
		f.t.Fatalf("NewCondition(%s %s) failed: %v", field, operator, err)
	}
	return c
}

func (f *fixture) action(kind, field string, value any, config map[string]any) *Action {
	f.t.Helper()
	props := ActionProps{
		Type:   f.item(catalog.CategoryRuleActions, kind),
		Value:  value,
		Config: config,
	}
	if field != "" {
		props.Field = f.item(catalog.CategoryRuleFields, field)
	}
	a, err := NewAction(props)
	if err != nil {
		f.t.Fatalf("NewAction(%s) failed: %v", kind, err)
	}
	return a
}

// rule builds an active rule matching demanda.status == NOVO that adds a tag
func (f *fixture) rule(name string, order int) *Rule {
	f.t.Helper()
	r, err := NewRule(RuleProps{
		TenantID:   testTenant,
		Name:       name,
		Conditions: []*Condition{f.condition("demanda_status", "igual", "NOVO")},
		Actions:    []*Action{f.action("adicionar_tag", "", "triagem", nil)},
		Active:     true,
		Order:      order,
	})
	if err != nil {
		f.t.Fatalf("NewRule(%s) failed: %v", name, err)
	}
	return r
}

// customItem adds a catalog item outside the default seed
func (f *fixture) customItem(category, slug string, metadata map[string]any) *catalog.Item {
	item := catalog.MustNewItem(catalog.Props{
		ID:           catalog.SeedID(testTenant, category, slug),
		TenantID:     testTenant,
		CategorySlug: category,
		Slug:         slug,
		Label:        slug,
		Active:       true,
		Metadata:     metadata,
	})
	f.repo.Add(item)
	return item
}

func newContext(status string) map[string]any {
	return map[string]any{"demanda": map[string]any{"status": status}}
}
