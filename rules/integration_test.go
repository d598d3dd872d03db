//go:build integration
// +build integration

package rules_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liamcoop/discovery/catalog"
	"github.com/liamcoop/discovery/rules"

	_ "github.com/lib/pq"
)

// setupTestDB creates a PostgreSQL container and returns a connection
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "discovery_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgresContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("host=%s port=%s user=test password=test dbname=discovery_test sslmode=disable", host, port.Port())

	var db *sql.DB
	for range 30 {
		db, err = sql.Open("postgres", connStr)
		if err == nil {
			err = db.Ping()
			if err == nil {
				break
			}
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	migrationSQL, err := os.ReadFile(filepath.Join("..", "migrations", "000001_initial_schema.up.sql"))
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}
	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		postgresContainer.Terminate(ctx)
	}

	return db, cleanup
}

// createTenant inserts a tenant and seeds its default catalog
func createTenant(t *testing.T, db *sql.DB, name string) string {
	var tenantID string
	err := db.QueryRow(`INSERT INTO tenants (name) VALUES ($1) RETURNING id`, name).Scan(&tenantID)
	if err != nil {
		t.Fatalf("Failed to create tenant: %v", err)
	}

	items, err := catalog.DefaultSeed(tenantID)
	if err != nil {
		t.Fatalf("DefaultSeed() failed: %v", err)
	}
	repo := catalog.NewPostgresRepository(db)
	for _, item := range items {
		if err := repo.Upsert(context.Background(), item); err != nil {
			t.Fatalf("Failed to seed catalog: %v", err)
		}
	}
	return tenantID
}

func lookup(t *testing.T, repo catalog.Repository, tenantID, category, slug string) *catalog.Item {
	item, err := repo.GetRequiredItem(context.Background(), catalog.Lookup{TenantID: tenantID, Category: category, Slug: slug})
	if err != nil {
		t.Fatalf("GetRequiredItem(%s/%s) failed: %v", category, slug, err)
	}
	return item
}

// statusRule builds a rule tagging demands in the given legacy status
func statusRule(t *testing.T, repo catalog.Repository, tenantID, name, status string, order int) *rules.Rule {
	cond, err := rules.NewCondition(rules.ConditionProps{
		Field:    lookup(t, repo, tenantID, catalog.CategoryRuleFields, "demanda_status"),
		Operator: lookup(t, repo, tenantID, catalog.CategoryRuleOperators, "igual"),
		Value:    status,
	})
	if err != nil {
		t.Fatalf("NewCondition() failed: %v", err)
	}
	act, err := rules.NewAction(rules.ActionProps{
		Type:  lookup(t, repo, tenantID, catalog.CategoryRuleActions, "adicionar_tag"),
		Value: name,
	})
	if err != nil {
		t.Fatalf("NewAction() failed: %v", err)
	}
	r, err := rules.NewRule(rules.RuleProps{
		TenantID:   tenantID,
		Name:       name,
		Conditions: []*rules.Condition{cond},
		Actions:    []*rules.Action{act},
		Active:     true,
		Order:      order,
	})
	if err != nil {
		t.Fatalf("NewRule() failed: %v", err)
	}
	return r
}

func TestPostgresRuleStore_BasicCRUD(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	tenantID := createTenant(t, db, "test-tenant")
	repo := catalog.NewPostgresRepository(db)
	store := rules.NewPostgresRuleStore(db, repo)

	rule := statusRule(t, repo, tenantID, "triagem", "NOVO", 1)
	if err := store.Save(ctx, rule); err != nil {
		t.Fatalf("Failed to save rule: %v", err)
	}

	retrieved, err := store.FindByID(ctx, tenantID, rule.ID())
	if err != nil {
		t.Fatalf("Failed to get rule: %v", err)
	}
	if retrieved.Name() != "triagem" {
		t.Errorf("Expected name 'triagem', got '%s'", retrieved.Name())
	}
	if !retrieved.AppliesTo(map[string]any{"demanda": map[string]any{"status": "NOVO"}}) {
		t.Error("Hydrated rule should match NOVO")
	}

	active, err := store.FindActiveByTenant(ctx, tenantID)
	if err != nil {
		t.Fatalf("Failed to list active rules: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("Expected 1 active rule, got %d", len(active))
	}

	retrieved.Deactivate()
	if err := retrieved.Rename("triagem-inativa", ""); err != nil {
		t.Fatalf("Rename() failed: %v", err)
	}
	if err := store.Save(ctx, retrieved); err != nil {
		t.Fatalf("Failed to update rule: %v", err)
	}

	updated, err := store.FindByID(ctx, tenantID, rule.ID())
	if err != nil {
		t.Fatalf("Failed to get updated rule: %v", err)
	}
	if updated.Name() != "triagem-inativa" || updated.Active() {
		t.Errorf("Update not stored: name=%s active=%v", updated.Name(), updated.Active())
	}
	if updated.CreatedAt().Sub(rule.CreatedAt()).Abs() > time.Millisecond {
		t.Errorf("criado_em changed on update: %v -> %v", rule.CreatedAt(), updated.CreatedAt())
	}

	active, err = store.FindActiveByTenant(ctx, tenantID)
	if err != nil {
		t.Fatalf("Failed to list active rules: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("Expected 0 active rules, got %d", len(active))
	}

	if err := store.Delete(ctx, tenantID, rule.ID()); err != nil {
		t.Fatalf("Failed to delete rule: %v", err)
	}
	if _, err := store.FindByID(ctx, tenantID, rule.ID()); !errors.Is(err, rules.ErrRuleNotFound) {
		t.Errorf("Expected ErrRuleNotFound for deleted rule, got %v", err)
	}

	var deletedAt sql.NullTime
	if err := db.QueryRow(`SELECT deleted_at FROM automation_rules WHERE id = $1`, rule.ID()).Scan(&deletedAt); err != nil {
		t.Fatalf("Soft deleted row should remain: %v", err)
	}
	if !deletedAt.Valid {
		t.Error("deleted_at should be set")
	}
}

func TestPostgresRuleStore_TenantIsolation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	tenantA := createTenant(t, db, "tenant-a")
	tenantB := createTenant(t, db, "tenant-b")
	repo := catalog.NewPostgresRepository(db)
	store := rules.NewPostgresRuleStore(db, repo)

	ruleA := statusRule(t, repo, tenantA, "tenant-a-rule", "NOVO", 1)
	ruleB := statusRule(t, repo, tenantB, "tenant-b-rule", "TRIAGEM", 1)
	for _, r := range []*rules.Rule{ruleA, ruleB} {
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("Failed to save rule: %v", err)
		}
	}

	if _, err := store.FindByID(ctx, tenantA, ruleB.ID()); !errors.Is(err, rules.ErrRuleNotFound) {
		t.Error("Tenant A should not be able to see tenant B's rule")
	}
	if err := store.Delete(ctx, tenantB, ruleA.ID()); !errors.Is(err, rules.ErrRuleNotFound) {
		t.Error("Tenant B should not be able to delete tenant A's rule")
	}

	rulesA, err := store.FindByTenant(ctx, tenantA)
	if err != nil {
		t.Fatalf("Failed to list rules for tenant A: %v", err)
	}
	if len(rulesA) != 1 || rulesA[0].Name() != "tenant-a-rule" {
		t.Errorf("Unexpected tenant A rules: %v", rulesA)
	}

	// rule A references tenant A's catalog ids, which tenant B cannot resolve
	persisted := ruleA.ToPersistence()
	persisted.TenantID = tenantB
	if _, err := rules.Hydrate(ctx, repo, persisted); !errors.Is(err, catalog.ErrItemNotFound) {
		t.Errorf("Cross-tenant hydrate should fail with ErrItemNotFound, got %v", err)
	}
}

func TestPostgresRuleStore_Ordering(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	tenantID := createTenant(t, db, "test-tenant")
	repo := catalog.NewPostgresRepository(db)
	store := rules.NewPostgresRuleStore(db, repo)

	for i, name := range []string{"c", "a", "b"} {
		order := map[string]int{"a": 1, "b": 2, "c": 3}[name]
		if err := store.Save(ctx, statusRule(t, repo, tenantID, name, "NOVO", order)); err != nil {
			t.Fatalf("Failed to save rule %d: %v", i, err)
		}
	}

	list, err := store.FindActiveByTenant(ctx, tenantID)
	if err != nil {
		t.Fatalf("Failed to list rules: %v", err)
	}
	got := ""
	for _, r := range list {
		got += r.Name()
	}
	if got != "abc" {
		t.Errorf("Expected order abc, got %s", got)
	}

	exec := rules.NewExecutor(rules.DefaultRegistry(nil))
	results := exec.ExecuteRules(ctx, list, map[string]any{"demanda": map[string]any{"status": "NOVO"}})
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for _, res := range results {
		if !res.Success {
			t.Errorf("Rule %s failed: %v", res.RuleName, res.Errors)
		}
	}
}

func TestPostgresCatalogRepository_Lookups(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	tenantID := createTenant(t, db, "test-tenant")
	repo := catalog.NewPostgresRepository(db)

	approved, err := repo.GetRequiredItem(ctx, catalog.Lookup{
		TenantID:    tenantID,
		Category:    catalog.CategoryDemandStatus,
		LegacyValue: "aprovado",
	})
	if err != nil {
		t.Fatalf("Legacy value lookup failed: %v", err)
	}
	if approved.LegacyValue() != "APROVADO" {
		t.Errorf("Expected APROVADO, got %s", approved.LegacyValue())
	}

	_, err = repo.GetRequiredItem(ctx, catalog.Lookup{
		TenantID: tenantID,
		Category: catalog.CategoryRuleFields,
		ID:       approved.ID(),
	})
	if !errors.Is(err, catalog.ErrCategoryMismatch) {
		t.Errorf("Expected ErrCategoryMismatch, got %v", err)
	}

	operators, err := repo.ListByCategory(ctx, tenantID, catalog.CategoryRuleOperators)
	if err != nil {
		t.Fatalf("ListByCategory() failed: %v", err)
	}
	if len(operators) != 12 {
		t.Errorf("Expected 12 operators, got %d", len(operators))
	}
}
