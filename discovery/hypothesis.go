package discovery

import (
	"time"

	"github.com/liamcoop/discovery/status"
)

// HypothesisProps builds a Hypothesis; ID is generated when empty
type HypothesisProps struct {
	ID              string
	TenantID        string
	DiscoveryID     string
	Statement       string
	SuccessCriteria string
	Status          status.Status
	CreatedAt       time.Time
}

// Hypothesis is a testable statement inside a discovery
type Hypothesis struct {
	lifecycle
	discoveryID     string
	statement       string
	successCriteria string
	result          string
}

// NewHypothesis validates props
func NewHypothesis(p HypothesisProps) (*Hypothesis, error) {
	if err := required("hypothesis", "statement", p.Statement); err != nil {
		return nil, err
	}
	lc, err := newLifecycle("hypothesis", status.Hypothesis, p.ID, p.TenantID, p.Status, p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &Hypothesis{
		lifecycle:       lc,
		discoveryID:     p.DiscoveryID,
		statement:       p.Statement,
		successCriteria: p.SuccessCriteria,
	}, nil
}

func (h *Hypothesis) DiscoveryID() string     { return h.discoveryID }
func (h *Hypothesis) Statement() string       { return h.statement }
func (h *Hypothesis) SuccessCriteria() string { return h.successCriteria }
func (h *Hypothesis) Result() string          { return h.result }

// StartTest moves pendente -> em_teste
func (h *Hypothesis) StartTest(next status.Status) error {
	return h.transition(next, "iniciar teste da hipótese", status.HypothesisEmTeste, status.HypothesisPendente)
}

// Validate moves em_teste -> validada and records the evidence
func (h *Hypothesis) Validate(next status.Status, result string) error {
	if err := h.transition(next, "validar hipótese", status.HypothesisValidada, status.HypothesisEmTeste); err != nil {
		return err
	}
	h.result = result
	return nil
}

// Refute moves em_teste -> refutada and records the evidence
func (h *Hypothesis) Refute(next status.Status, result string) error {
	if err := h.transition(next, "refutar hipótese", status.HypothesisRefutada, status.HypothesisEmTeste); err != nil {
		return err
	}
	h.result = result
	return nil
}

// Archive moves pendente or em_teste -> arquivada
func (h *Hypothesis) Archive(next status.Status) error {
	return h.transition(next, "arquivar hipótese", status.HypothesisArquivada,
		status.HypothesisPendente, status.HypothesisEmTeste)
}
