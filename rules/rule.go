package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RuleProps builds a Rule. NewRule generates ID and timestamps; Restore keeps them.
type RuleProps struct {
	ID          string
	TenantID    string
	Name        string
	Description string
	Conditions  []*Condition
	Actions     []*Action
	Active      bool
	Order       int
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Rule is an ordered, toggleable set of conditions and actions for one tenant
type Rule struct {
	id          string
	tenantID    string
	name        string
	description string
	conditions  []*Condition
	actions     []*Action
	active      bool
	order       int
	createdBy   string
	createdAt   time.Time
	updatedAt   time.Time
}

// NewRule creates a rule with a fresh id
func NewRule(p RuleProps) (*Rule, error) {
	now := time.Now()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now
	return build(p)
}

// Restore rebuilds a rule from persisted state
func Restore(p RuleProps) (*Rule, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, fmt.Errorf("%w: id da regra é obrigatório", ErrValidation)
	}
	return build(p)
}

func build(p RuleProps) (*Rule, error) {
	if strings.TrimSpace(p.TenantID) == "" {
		return nil, fmt.Errorf("%w: tenantId é obrigatório", ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("%w: nome da regra é obrigatório", ErrValidation)
	}
	r := &Rule{
		id:          p.ID,
		tenantID:    p.TenantID,
		name:        p.Name,
		description: p.Description,
		active:      p.Active,
		order:       p.Order,
		createdBy:   p.CreatedBy,
		createdAt:   p.CreatedAt,
		updatedAt:   p.UpdatedAt,
	}
	if err := r.checkConditions(p.Conditions); err != nil {
		return nil, err
	}
	if err := r.checkActions(p.Actions); err != nil {
		return nil, err
	}
	r.conditions = append([]*Condition(nil), p.Conditions...)
	r.actions = append([]*Action(nil), p.Actions...)
	return r, nil
}

func (r *Rule) checkConditions(conditions []*Condition) error {
	if len(conditions) == 0 {
		return fmt.Errorf("%w: a regra deve ter pelo menos uma condição", ErrValidation)
	}
	for i, c := range conditions {
		if c == nil {
			return fmt.Errorf("%w: condição %d ausente", ErrValidation, i)
		}
		if c.field.TenantID() != r.tenantID || c.operator.TenantID() != r.tenantID {
			return fmt.Errorf("%w: condição %d pertence a outro tenant", ErrValidation, i)
		}
	}
	return nil
}

func (r *Rule) checkActions(actions []*Action) error {
	if len(actions) == 0 {
		return fmt.Errorf("%w: a regra deve ter pelo menos uma ação", ErrValidation)
	}
	for i, a := range actions {
		if a == nil {
			return fmt.Errorf("%w: ação %d ausente", ErrValidation, i)
		}
		if a.kind.TenantID() != r.tenantID || (a.field != nil && a.field.TenantID() != r.tenantID) {
			return fmt.Errorf("%w: ação %d pertence a outro tenant", ErrValidation, i)
		}
	}
	return nil
}

func (r *Rule) ID() string           { return r.id }
func (r *Rule) TenantID() string     { return r.tenantID }
func (r *Rule) Name() string         { return r.name }
func (r *Rule) Description() string  { return r.description }
func (r *Rule) Active() bool         { return r.active }
func (r *Rule) Order() int           { return r.order }
func (r *Rule) CreatedBy() string    { return r.createdBy }
func (r *Rule) CreatedAt() time.Time { return r.createdAt }
func (r *Rule) UpdatedAt() time.Time { return r.updatedAt }

func (r *Rule) Conditions() []*Condition {
	return append([]*Condition(nil), r.conditions...)
}

func (r *Rule) Actions() []*Action {
	return append([]*Action(nil), r.actions...)
}

func (r *Rule) Activate() {
	r.active = true
	r.touch()
}

func (r *Rule) Deactivate() {
	r.active = false
	r.touch()
}

// ReplaceConditions swaps the whole condition set; it must not be empty
func (r *Rule) ReplaceConditions(conditions []*Condition) error {
	if err := r.checkConditions(conditions); err != nil {
		return err
	}
	r.conditions = append([]*Condition(nil), conditions...)
	r.touch()
	return nil
}

// ReplaceActions swaps the whole action set; it must not be empty
func (r *Rule) ReplaceActions(actions []*Action) error {
	if err := r.checkActions(actions); err != nil {
		return err
	}
	r.actions = append([]*Action(nil), actions...)
	r.touch()
	return nil
}

func (r *Rule) SetOrder(order int) {
	r.order = order
	r.touch()
}

// Rename changes name and description
func (r *Rule) Rename(name, description string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: nome da regra é obrigatório", ErrValidation)
	}
	r.name = name
	r.description = description
	r.touch()
	return nil
}

func (r *Rule) touch() {
	r.updatedAt = time.Now()
}

// AppliesTo is the AND of every condition. Logic is not consulted.
func (r *Rule) AppliesTo(evalCtx map[string]any) bool {
	for _, c := range r.conditions {
		if !c.Evaluate(evalCtx) {
			return false
		}
	}
	return true
}

// PendingActions projects the actions into dispatchable records, in order
func (r *Rule) PendingActions() []PendingAction {
	out := make([]PendingAction, len(r.actions))
	for i, a := range r.actions {
		out[i] = a.pending()
	}
	return out
}

// ToPersistence projects the rule into its storage shape
func (r *Rule) ToPersistence() PersistedRule {
	p := PersistedRule{
		ID:          r.id,
		TenantID:    r.tenantID,
		Name:        r.name,
		Description: r.description,
		Conditions:  make([]PersistedCondition, len(r.conditions)),
		Actions:     make([]PersistedAction, len(r.actions)),
		Active:      r.active,
		Order:       r.order,
		CreatedBy:   r.createdBy,
		CreatedAt:   r.createdAt,
		UpdatedAt:   r.updatedAt,
	}
	for i, c := range r.conditions {
		p.Conditions[i] = PersistedCondition{
			FieldID:    c.field.ID(),
			OperatorID: c.operator.ID(),
			Value:      c.value,
			Logic:      c.logic,
		}
	}
	for i, a := range r.actions {
		pa := PersistedAction{
			TypeID: a.kind.ID(),
			Value:  a.value,
			Config: copyConfig(a.config),
		}
		if a.field != nil {
			pa.FieldID = a.field.ID()
		}
		p.Actions[i] = pa
	}
	return p
}
