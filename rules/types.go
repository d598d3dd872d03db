package rules

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation is returned when a condition, action or rule violates its invariants
	ErrValidation = errors.New("rule validation failed")

	// ErrUnsupportedOperator is returned for operator codes outside the known set
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrUnsupportedAction is matched by UnsupportedActionError
	ErrUnsupportedAction = errors.New("unsupported action")

	// ErrRuleNotFound is returned by stores when a rule does not exist for the tenant
	ErrRuleNotFound = errors.New("rule not found")
)

// UnsupportedActionError is returned by the registry for codes without a handler
type UnsupportedActionError struct {
	Code ActionCode
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("Tipo de ação não suportado: %s", e.Code)
}

func (e *UnsupportedActionError) Is(target error) bool {
	return target == ErrUnsupportedAction
}

// ActionResult is the outcome of one dispatched action.
// Result is nil whenever Error is set.
type ActionResult struct {
	Type   ActionCode `json:"tipo"`
	Result any        `json:"resultado"`
	Error  string     `json:"erro,omitempty"`
}

// ExecutionResult is the outcome of one applicable rule
type ExecutionResult struct {
	RuleID   string         `json:"regraId"`
	RuleName string         `json:"regraNome"`
	Success  bool           `json:"sucesso"`
	Actions  []ActionResult `json:"acoesExecutadas"`
	Errors   []string       `json:"erros"`
}

// PersistedCondition references catalog items by id only
type PersistedCondition struct {
	FieldID    string `json:"fieldId"`
	OperatorID string `json:"operatorId"`
	Value      any    `json:"value,omitempty"`
	Logic      Logic  `json:"logic"`
}

// PersistedAction references catalog items by id only
type PersistedAction struct {
	TypeID  string         `json:"typeId"`
	FieldID string         `json:"fieldId,omitempty"`
	Value   any            `json:"value,omitempty"`
	Config  map[string]any `json:"config,omitempty"`
}

// PersistedRule is the storage projection of a Rule
type PersistedRule struct {
	ID          string               `json:"id"`
	TenantID    string               `json:"tenantId"`
	Name        string               `json:"nome"`
	Description string               `json:"descricao,omitempty"`
	Conditions  []PersistedCondition `json:"condicoes"`
	Actions     []PersistedAction    `json:"acoes"`
	Active      bool                 `json:"ativo"`
	Order       int                  `json:"ordem"`
	CreatedBy   string               `json:"criadoPor,omitempty"`
	CreatedAt   time.Time            `json:"criadoEm"`
	UpdatedAt   time.Time            `json:"atualizadoEm"`
}

// CatalogIDs lists every catalog id the rule references, without duplicates
func (p PersistedRule) CatalogIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, c := range p.Conditions {
		add(c.FieldID)
		add(c.OperatorID)
	}
	for _, a := range p.Actions {
		add(a.TypeID)
		add(a.FieldID)
	}
	return ids
}
