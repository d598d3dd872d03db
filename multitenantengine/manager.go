package multitenantengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/liamcoop/discovery/catalog"
	"github.com/liamcoop/discovery/discovery"
	"github.com/liamcoop/discovery/internal/logger"
	"github.com/liamcoop/discovery/rules"
)

// ErrTenantNotFound is returned for tenants that were never registered
var ErrTenantNotFound = errors.New("tenant not found")

// RuleDefinition is the input of CreateRule and UpdateRule. Catalog
// references accept either an item id or its slug.
type RuleDefinition struct {
	Name        string                `json:"nome"`
	Description string                `json:"descricao,omitempty"`
	Conditions  []ConditionDefinition `json:"condicoes"`
	Actions     []ActionDefinition    `json:"acoes"`
	Active      *bool                 `json:"ativo,omitempty"`
	Order       int                   `json:"ordem"`
	CreatedBy   string                `json:"criadoPor,omitempty"`
}

type ConditionDefinition struct {
	Field    string `json:"campo"`
	Operator string `json:"operador"`
	Value    any    `json:"valor,omitempty"`
	Logic    string `json:"logica,omitempty"`
}

type ActionDefinition struct {
	Type   string         `json:"tipo"`
	Field  string         `json:"campo,omitempty"`
	Value  any            `json:"valor,omitempty"`
	Config map[string]any `json:"configuracao,omitempty"`
}

// TenantEngine holds what the manager knows about one tenant
type TenantEngine struct {
	TenantID string
	LoadedAt time.Time
}

// Dependencies wires a Manager. Catalog and Store are required.
type Dependencies struct {
	Catalog  catalog.Repository
	Store    rules.RuleStore
	Cache    rules.RulesCache
	Engine   *rules.Engine
	Executor *rules.Executor
}

// MultiTenantEngineManager manages rules for all tenants
type MultiTenantEngineManager struct {
	catalog  catalog.Repository
	store    rules.RuleStore
	cache    rules.RulesCache
	engine   *rules.Engine
	executor *rules.Executor

	tenants map[string]*TenantEngine
	mu      sync.RWMutex

	// cacheMu orders cache refills against invalidations
	cacheMu sync.Mutex
}

// NewMultiTenantEngineManager creates a new manager instance. A missing
// cache, engine or executor is replaced by the default one.
func NewMultiTenantEngineManager(deps Dependencies) (*MultiTenantEngineManager, error) {
	if deps.Catalog == nil || deps.Store == nil {
		return nil, errors.New("catalog repository and rule store are required")
	}

	m := &MultiTenantEngineManager{
		catalog:  deps.Catalog,
		store:    deps.Store,
		cache:    deps.Cache,
		engine:   deps.Engine,
		executor: deps.Executor,
		tenants:  make(map[string]*TenantEngine),
	}
	if m.cache == nil {
		m.cache = rules.NewInMemoryRulesCache(rules.DefaultCacheConfig())
	}
	if m.engine == nil {
		engine, err := rules.NewEngine()
		if err != nil {
			return nil, fmt.Errorf("failed to create engine: %w", err)
		}
		m.engine = engine
	}
	if m.executor == nil {
		m.executor = rules.NewExecutor(rules.DefaultRegistry(m.engine))
	}
	return m, nil
}

// TenantLister enumerates known tenants
type TenantLister interface {
	ListTenantIDs(ctx context.Context) ([]string, error)
}

// PostgresTenantLister reads tenant ids from the tenants table
type PostgresTenantLister struct {
	db *sql.DB
}

func NewPostgresTenantLister(db *sql.DB) *PostgresTenantLister {
	return &PostgresTenantLister{db: db}
}

func (l *PostgresTenantLister) ListTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id FROM tenants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tenants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tenant row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenant rows: %w", err)
	}
	return ids, nil
}

// LoadAllTenants registers every tenant the lister returns
func (m *MultiTenantEngineManager) LoadAllTenants(ctx context.Context, lister TenantLister) (int, error) {
	ids, err := lister.ListTenantIDs(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := m.CreateTenant(id); err != nil {
			return 0, fmt.Errorf("failed to initialize tenant %s: %w", id, err)
		}
	}
	logger.Info("tenants loaded", "count", len(ids))
	return len(ids), nil
}

// CreateTenant registers a tenant; registering twice is a no-op
func (m *MultiTenantEngineManager) CreateTenant(tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantId é obrigatório", rules.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tenants[tenantID]; !exists {
		m.tenants[tenantID] = &TenantEngine{TenantID: tenantID, LoadedAt: time.Now()}
	}
	return nil
}

// ListTenants returns all loaded tenant IDs, sorted
func (m *MultiTenantEngineManager) ListTenants() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tenants := make([]string, 0, len(m.tenants))
	for tenantID := range m.tenants {
		tenants = append(tenants, tenantID)
	}
	sort.Strings(tenants)
	return tenants
}

// DeleteTenant unloads a tenant and drops its cached rules.
// Stored rules and catalog items are left untouched.
func (m *MultiTenantEngineManager) DeleteTenant(tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tenants[tenantID]; !exists {
		return fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}
	delete(m.tenants, tenantID)
	m.invalidate(tenantID)
	return nil
}

func (m *MultiTenantEngineManager) requireTenant(tenantID string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, exists := m.tenants[tenantID]; !exists {
		return fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}
	return nil
}

// ListCatalog returns the live items of one catalog category
func (m *MultiTenantEngineManager) ListCatalog(ctx context.Context, tenantID, category string) ([]*catalog.Item, error) {
	if err := m.requireTenant(tenantID); err != nil {
		return nil, err
	}
	return m.catalog.ListByCategory(ctx, tenantID, category)
}

// CreateRule validates def, resolves its catalog references and stores a new rule
func (m *MultiTenantEngineManager) CreateRule(ctx context.Context, tenantID string, def RuleDefinition) (*rules.Rule, error) {
	if err := m.requireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := ValidateRuleDefinition(def); err != nil {
		return nil, err
	}

	conditions, actions, err := m.resolve(ctx, tenantID, def)
	if err != nil {
		return nil, err
	}

	active := true
	if def.Active != nil {
		active = *def.Active
	}
	rule, err := rules.NewRule(rules.RuleProps{
		TenantID:    tenantID,
		Name:        def.Name,
		Description: def.Description,
		Conditions:  conditions,
		Actions:     actions,
		Active:      active,
		Order:       def.Order,
		CreatedBy:   def.CreatedBy,
	})
	if err != nil {
		return nil, err
	}

	if err := m.store.Save(ctx, rule); err != nil {
		return nil, err
	}
	m.invalidate(tenantID)

	logger.Info("rule created", "tenant_id", tenantID, "rule_id", rule.ID(), "name", rule.Name())
	return rule, nil
}

// UpdateRule replaces name, conditions, actions and order of a stored rule.
// Active is only changed when def sets it.
func (m *MultiTenantEngineManager) UpdateRule(ctx context.Context, tenantID, ruleID string, def RuleDefinition) (*rules.Rule, error) {
	if err := m.requireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := ValidateRuleDefinition(def); err != nil {
		return nil, err
	}

	rule, err := m.store.FindByID(ctx, tenantID, ruleID)
	if err != nil {
		return nil, err
	}
	conditions, actions, err := m.resolve(ctx, tenantID, def)
	if err != nil {
		return nil, err
	}

	if err := rule.Rename(def.Name, def.Description); err != nil {
		return nil, err
	}
	if err := rule.ReplaceConditions(conditions); err != nil {
		return nil, err
	}
	if err := rule.ReplaceActions(actions); err != nil {
		return nil, err
	}
	rule.SetOrder(def.Order)
	if def.Active != nil {
		if *def.Active {
			rule.Activate()
		} else {
			rule.Deactivate()
		}
	}

	if err := m.store.Save(ctx, rule); err != nil {
		return nil, err
	}
	m.invalidate(tenantID)

	logger.Info("rule updated", "tenant_id", tenantID, "rule_id", rule.ID())
	return rule, nil
}

// SetRuleActive activates or deactivates a stored rule
func (m *MultiTenantEngineManager) SetRuleActive(ctx context.Context, tenantID, ruleID string, active bool) (*rules.Rule, error) {
	if err := m.requireTenant(tenantID); err != nil {
		return nil, err
	}

	rule, err := m.store.FindByID(ctx, tenantID, ruleID)
	if err != nil {
		return nil, err
	}
	if active {
		rule.Activate()
	} else {
		rule.Deactivate()
	}

	if err := m.store.Save(ctx, rule); err != nil {
		return nil, err
	}
	m.invalidate(tenantID)
	return rule, nil
}

func (m *MultiTenantEngineManager) DeleteRule(ctx context.Context, tenantID, ruleID string) error {
	if err := m.requireTenant(tenantID); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, tenantID, ruleID); err != nil {
		return err
	}
	m.invalidate(tenantID)

	logger.Info("rule deleted", "tenant_id", tenantID, "rule_id", ruleID)
	return nil
}

func (m *MultiTenantEngineManager) GetRule(ctx context.Context, tenantID, ruleID string) (*rules.Rule, error) {
	if err := m.requireTenant(tenantID); err != nil {
		return nil, err
	}
	return m.store.FindByID(ctx, tenantID, ruleID)
}

// ListRules returns every stored rule of the tenant, active or not
func (m *MultiTenantEngineManager) ListRules(ctx context.Context, tenantID string) ([]*rules.Rule, error) {
	if err := m.requireTenant(tenantID); err != nil {
		return nil, err
	}
	return m.store.FindByTenant(ctx, tenantID)
}

func (m *MultiTenantEngineManager) invalidate(tenantID string) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	m.cache.Invalidate(tenantID)
}

// activeRules serves the tenant's active rules from the cache. A refill
// holds cacheMu so that an invalidation cannot be overwritten by a stale load.
func (m *MultiTenantEngineManager) activeRules(ctx context.Context, tenantID string) ([]*rules.Rule, error) {
	if cached, ok := m.cache.Get(tenantID); ok {
		return cached, nil
	}

	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	if cached, ok := m.cache.Get(tenantID); ok {
		return cached, nil
	}

	active, err := m.store.FindActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	m.cache.Set(tenantID, active)
	logger.Debug("rules cache refreshed", "tenant_id", tenantID, "rules", len(active))
	return active, nil
}

// Execute runs the tenant's active rules against evalCtx
func (m *MultiTenantEngineManager) Execute(ctx context.Context, tenantID string, evalCtx map[string]any) ([]rules.ExecutionResult, error) {
	if err := m.requireTenant(tenantID); err != nil {
		return nil, err
	}

	active, err := m.activeRules(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return m.executor.ExecuteRules(ctx, active, evalCtx), nil
}

// ExecuteForDemand runs the demand's tenant rules against its rule context
func (m *MultiTenantEngineManager) ExecuteForDemand(ctx context.Context, demand *discovery.Demand) ([]rules.ExecutionResult, error) {
	return m.Execute(ctx, demand.TenantID(), demand.RuleContext())
}

// resolve turns the definition's references into value objects and checks
// what can only be checked once the catalog items are known
func (m *MultiTenantEngineManager) resolve(ctx context.Context, tenantID string, def RuleDefinition) ([]*rules.Condition, []*rules.Action, error) {
	conditions := make([]*rules.Condition, 0, len(def.Conditions))
	for i, c := range def.Conditions {
		field, err := m.item(ctx, tenantID, catalog.CategoryRuleFields, c.Field)
		if err != nil {
			return nil, nil, fmt.Errorf("condição %d: %w", i+1, err)
		}
		operator, err := m.item(ctx, tenantID, catalog.CategoryRuleOperators, c.Operator)
		if err != nil {
			return nil, nil, fmt.Errorf("condição %d: %w", i+1, err)
		}
		cond, err := rules.NewCondition(rules.ConditionProps{
			Field:    field,
			Operator: operator,
			Value:    c.Value,
			Logic:    rules.Logic(c.Logic),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("condição %d: %w", i+1, err)
		}
		if err := validateFieldPath(cond.FieldPath()); err != nil {
			return nil, nil, fmt.Errorf("%w: condição %d: %v", rules.ErrValidation, i+1, err)
		}
		conditions = append(conditions, cond)
	}

	actions := make([]*rules.Action, 0, len(def.Actions))
	for i, a := range def.Actions {
		kind, err := m.item(ctx, tenantID, catalog.CategoryRuleActions, a.Type)
		if err != nil {
			return nil, nil, fmt.Errorf("ação %d: %w", i+1, err)
		}
		var field *catalog.Item
		if a.Field != "" {
			if field, err = m.item(ctx, tenantID, catalog.CategoryRuleFields, a.Field); err != nil {
				return nil, nil, fmt.Errorf("ação %d: %w", i+1, err)
			}
		}
		action, err := rules.NewAction(rules.ActionProps{
			Type:   kind,
			Field:  field,
			Value:  a.Value,
			Config: a.Config,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("ação %d: %w", i+1, err)
		}
		if err := m.validateAction(action); err != nil {
			return nil, nil, fmt.Errorf("%w: ação %d: %v", rules.ErrValidation, i+1, err)
		}
		actions = append(actions, action)
	}

	return conditions, actions, nil
}

// item resolves ref as an id first, then as a slug
func (m *MultiTenantEngineManager) item(ctx context.Context, tenantID, category, ref string) (*catalog.Item, error) {
	item, err := m.catalog.GetRequiredItem(ctx, catalog.Lookup{TenantID: tenantID, Category: category, ID: ref})
	if err == nil || !errors.Is(err, catalog.ErrItemNotFound) {
		return item, err
	}
	return m.catalog.GetRequiredItem(ctx, catalog.Lookup{TenantID: tenantID, Category: category, Slug: ref})
}

// validateAction checks field paths and pre-compiles validation expressions
func (m *MultiTenantEngineManager) validateAction(action *rules.Action) error {
	if action.Field() != nil {
		if err := validateFieldPath(action.FieldPath()); err != nil {
			return err
		}
	}
	if action.Code() != rules.ActionValidateField {
		return nil
	}
	expr, _ := action.Config()["expressao"].(string)
	if expr == "" {
		return nil
	}
	_, err := m.engine.Compile(expr)
	return err
}
