package main

import (
	"time"

	"github.com/liamcoop/discovery/catalog"
	"github.com/liamcoop/discovery/rules"
)

// API request and response models. Keys follow the Portuguese naming of
// the rule definitions and execution results.

// CreateTenantRequest is the body of POST /tenants. ID is optional.
type CreateTenantRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type TenantResponse struct {
	ID string `json:"id"`
}

type TenantsListResponse struct {
	Tenants []string `json:"tenants"`
}

// CatalogItemResponse is one catalog entry
type CatalogItemResponse struct {
	ID        string         `json:"id"`
	Category  string         `json:"categoria"`
	Slug      string         `json:"slug"`
	Label     string         `json:"label"`
	Order     *int           `json:"ordem,omitempty"`
	Active    bool           `json:"ativo"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	ProductID string         `json:"produtoId,omitempty"`
}

type CatalogListResponse struct {
	Items []CatalogItemResponse `json:"itens"`
}

type ConditionResponse struct {
	FieldID    string `json:"campoId"`
	Field      string `json:"campo"`
	Path       string `json:"caminho"`
	OperatorID string `json:"operadorId"`
	Operator   string `json:"operador"`
	Value      any    `json:"valor,omitempty"`
	Logic      string `json:"logica"`
}

type ActionResponse struct {
	TypeID  string         `json:"tipoId"`
	Type    string         `json:"tipo"`
	FieldID string         `json:"campoId,omitempty"`
	Field   string         `json:"campo,omitempty"`
	Value   any            `json:"valor,omitempty"`
	Config  map[string]any `json:"configuracao,omitempty"`
}

// RuleResponse is a rule with its catalog references expanded
type RuleResponse struct {
	ID          string              `json:"id"`
	TenantID    string              `json:"tenantId"`
	Name        string              `json:"nome"`
	Description string              `json:"descricao,omitempty"`
	Conditions  []ConditionResponse `json:"condicoes"`
	Actions     []ActionResponse    `json:"acoes"`
	Active      bool                `json:"ativo"`
	Order       int                 `json:"ordem"`
	CreatedBy   string              `json:"criadoPor,omitempty"`
	CreatedAt   time.Time           `json:"criadoEm"`
	UpdatedAt   time.Time           `json:"atualizadoEm"`
}

type RulesListResponse struct {
	Rules []RuleResponse `json:"regras"`
}

// ExecuteRequest carries the evaluation context, e.g. {"demanda": {...}}
type ExecuteRequest struct {
	Context map[string]any `json:"contexto"`
}

type ExecuteResponse struct {
	Results       []rules.ExecutionResult `json:"resultados"`
	ExecutionTime string                  `json:"tempoExecucao"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	Mode          string `json:"mode"`
	TenantsLoaded int    `json:"tenantsLoaded"`
	Error         string `json:"error,omitempty"`
}

func newCatalogItemResponse(item *catalog.Item) CatalogItemResponse {
	resp := CatalogItemResponse{
		ID:        item.ID(),
		Category:  item.CategorySlug(),
		Slug:      item.Slug(),
		Label:     item.Label(),
		Active:    item.Active(),
		Metadata:  item.RawMetadata(),
		ProductID: item.ProductID(),
	}
	if order, ok := item.Order(); ok {
		resp.Order = &order
	}
	return resp
}

func newRuleResponse(r *rules.Rule) RuleResponse {
	resp := RuleResponse{
		ID:          r.ID(),
		TenantID:    r.TenantID(),
		Name:        r.Name(),
		Description: r.Description(),
		Conditions:  make([]ConditionResponse, 0, len(r.Conditions())),
		Actions:     make([]ActionResponse, 0, len(r.Actions())),
		Active:      r.Active(),
		Order:       r.Order(),
		CreatedBy:   r.CreatedBy(),
		CreatedAt:   r.CreatedAt(),
		UpdatedAt:   r.UpdatedAt(),
	}

	for _, c := range r.Conditions() {
		resp.Conditions = append(resp.Conditions, ConditionResponse{
			FieldID:    c.Field().ID(),
			Field:      c.Field().Slug(),
			Path:       c.FieldPath(),
			OperatorID: c.Operator().ID(),
			Operator:   string(c.OperatorCode()),
			Value:      c.Value(),
			Logic:      string(c.Logic()),
		})
	}
	for _, a := range r.Actions() {
		action := ActionResponse{
			TypeID: a.Type().ID(),
			Type:   string(a.Code()),
			Value:  a.Value(),
			Config: a.Config(),
		}
		if f := a.Field(); f != nil {
			action.FieldID = f.ID()
			action.Field = f.Slug()
		}
		resp.Actions = append(resp.Actions, action)
	}
	return resp
}

func newRulesListResponse(list []*rules.Rule) RulesListResponse {
	resp := RulesListResponse{Rules: make([]RuleResponse, 0, len(list))}
	for _, r := range list {
		resp.Rules = append(resp.Rules, newRuleResponse(r))
	}
	return resp
}
