package discovery

import (
	"time"

	"github.com/liamcoop/discovery/status"
)

// InsightProps builds an Insight; ID is generated when empty
type InsightProps struct {
	ID          string
	TenantID    string
	DiscoveryID string
	Description string
	Evidence    []string
	Status      status.Status
	CreatedAt   time.Time
}

// Insight is a learning extracted from research or experiments
type Insight struct {
	lifecycle
	discoveryID string
	description string
	evidence    []string
}

// NewInsight validates props
func NewInsight(p InsightProps) (*Insight, error) {
	if err := required("insight", "description", p.Description); err != nil {
		return nil, err
	}
	lc, err := newLifecycle("insight", status.Insight, p.ID, p.TenantID, p.Status, p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &Insight{
		lifecycle:   lc,
		discoveryID: p.DiscoveryID,
		description: p.Description,
		evidence:    append([]string(nil), p.Evidence...),
	}, nil
}

func (i *Insight) DiscoveryID() string { return i.discoveryID }
func (i *Insight) Description() string { return i.description }
func (i *Insight) Evidence() []string  { return append([]string(nil), i.evidence...) }

// SubmitForValidation moves rascunho -> em_validacao
func (i *Insight) SubmitForValidation(next status.Status) error {
	return i.transition(next, "enviar insight para validação", status.InsightEmValidacao, status.InsightRascunho)
}

// Validate moves em_validacao -> validado
func (i *Insight) Validate(next status.Status) error {
	return i.transition(next, "validar insight", status.InsightValidado, status.InsightEmValidacao)
}

// Refute moves em_validacao -> refutado
func (i *Insight) Refute(next status.Status) error {
	return i.transition(next, "refutar insight", status.InsightRefutado, status.InsightEmValidacao)
}
