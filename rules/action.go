package rules

import (
	"fmt"
	"strings"

	"github.com/liamcoop/discovery/catalog"
)

// ActionCode identifies an action handler. It comes from the action type
// item's legacy value, upper-cased. Codes are checked at dispatch time.
type ActionCode string

const (
	ActionSetField         ActionCode = "DEFINIR_CAMPO"
	ActionAddTag           ActionCode = "ADICIONAR_TAG"
	ActionRemoveTag        ActionCode = "REMOVER_TAG"
	ActionChangeStatus     ActionCode = "ALTERAR_STATUS"
	ActionChangePriority   ActionCode = "ALTERAR_PRIORIDADE"
	ActionChangeImpact     ActionCode = "ALTERAR_IMPACTO"
	ActionChangeUrgency    ActionCode = "ALTERAR_URGENCIA"
	ActionChangeComplexity ActionCode = "ALTERAR_COMPLEXIDADE"
	ActionAssignPM         ActionCode = "ATRIBUIR_PM"
	ActionAssignOwner      ActionCode = "ATRIBUIR_RESPONSAVEL"
	ActionSendEmail        ActionCode = "ENVIAR_EMAIL"
	ActionSendNotice       ActionCode = "ENVIAR_NOTIFICACAO"
	ActionRequireField     ActionCode = "TORNAR_CAMPO_OBRIGATORIO"
	ActionValidateField    ActionCode = "VALIDAR_CAMPO"
	ActionCallWebhook      ActionCode = "CHAMAR_WEBHOOK"
	ActionCreateTask       ActionCode = "CRIAR_TAREFA"
)

// ActionProps builds an Action. Field is optional unless the type requires it.
type ActionProps struct {
	Type   *catalog.Item
	Field  *catalog.Item
	Value  any
	Config map[string]any
}

// Action is one effect descriptor executed when a rule matches
type Action struct {
	kind   *catalog.Item
	field  *catalog.Item
	code   ActionCode
	value  any
	config map[string]any
}

// NewAction enforces the requiresField, requiresValue and requiresConfig
// flags of the action type
func NewAction(p ActionProps) (*Action, error) {
	if p.Type == nil {
		return nil, fmt.Errorf("%w: tipo da ação é obrigatório", ErrValidation)
	}
	if err := p.Type.EnsureCategory(catalog.CategoryRuleActions); err != nil {
		return nil, err
	}
	if p.Field != nil {
		if err := p.Field.EnsureCategory(catalog.CategoryRuleFields); err != nil {
			return nil, err
		}
	}

	code := ActionCode(strings.ToUpper(p.Type.LegacyValue()))
	meta := p.Type.Metadata()
	if meta.RequiresField && p.Field == nil {
		return nil, fmt.Errorf("%w: campo é obrigatório para a ação %s", ErrValidation, code)
	}
	if meta.RequiresValueOr(false) && isMissing(p.Value) {
		return nil, fmt.Errorf("%w: valor é obrigatório para a ação %s", ErrValidation, code)
	}
	if meta.RequiresConfig && len(p.Config) == 0 {
		return nil, fmt.Errorf("%w: configuração é obrigatória para a ação %s", ErrValidation, code)
	}

	return &Action{
		kind:   p.Type,
		field:  p.Field,
		code:   code,
		value:  p.Value,
		config: copyConfig(p.Config),
	}, nil
}

func (a *Action) Type() *catalog.Item  { return a.kind }
func (a *Action) Field() *catalog.Item { return a.field }
func (a *Action) Code() ActionCode     { return a.code }
func (a *Action) Value() any           { return a.value }

// Config returns a copy of the action configuration
func (a *Action) Config() map[string]any { return copyConfig(a.config) }

// FieldPath is the field's metadata.path, its slug, or "" without a field
func (a *Action) FieldPath() string {
	if a.field == nil {
		return ""
	}
	if path := a.field.Metadata().Path; path != "" {
		return path
	}
	return a.field.Slug()
}

// PendingAction is what handlers receive: the action with its catalog data
// already resolved, so dispatch needs no catalog access
type PendingAction struct {
	Code         ActionCode
	TypeID       string
	TypeLabel    string
	TypeMetadata catalog.Metadata
	FieldID      string
	FieldPath    string
	Value        any
	Config       map[string]any
}

func (a *Action) pending() PendingAction {
	p := PendingAction{
		Code:         a.code,
		TypeID:       a.kind.ID(),
		TypeLabel:    a.kind.Label(),
		TypeMetadata: a.kind.Metadata(),
		FieldPath:    a.FieldPath(),
		Value:        a.value,
		Config:       copyConfig(a.config),
	}
	if a.field != nil {
		p.FieldID = a.field.ID()
	}
	return p
}

func copyConfig(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
