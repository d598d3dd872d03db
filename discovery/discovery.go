package discovery

import (
	"fmt"
	"strings"
	"time"

	"github.com/liamcoop/discovery/status"
)

// DiscoveryProps builds a Discovery; ID is generated when empty
type DiscoveryProps struct {
	ID        string
	TenantID  string
	DemandID  string
	Title     string
	Status    status.Status
	CreatedAt time.Time
}

// Discovery groups the research done for one demand until a decision is taken
type Discovery struct {
	lifecycle
	demandID     string
	title        string
	decision     string
	cancelReason string
}

// NewDiscovery validates props
func NewDiscovery(p DiscoveryProps) (*Discovery, error) {
	if err := required("discovery", "title", p.Title); err != nil {
		return nil, err
	}
	lc, err := newLifecycle("discovery", status.Discovery, p.ID, p.TenantID, p.Status, p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &Discovery{lifecycle: lc, demandID: p.DemandID, title: p.Title}, nil
}

func (d *Discovery) DemandID() string     { return d.demandID }
func (d *Discovery) Title() string        { return d.title }
func (d *Discovery) Decision() string     { return d.decision }
func (d *Discovery) CancelReason() string { return d.cancelReason }

// StartValidation moves em_pesquisa -> validando
func (d *Discovery) StartValidation(next status.Status) error {
	return d.transition(next, "iniciar validação do discovery", status.DiscoveryValidando, status.DiscoveryEmPesquisa)
}

// Decide moves validando -> decidido; a decision text is required
func (d *Discovery) Decide(next status.Status, decision string) error {
	if strings.TrimSpace(decision) == "" {
		return fmt.Errorf("%w: decision is required", ErrValidation)
	}
	if err := d.transition(next, "registrar decisão do discovery", status.DiscoveryDecidido, status.DiscoveryValidando); err != nil {
		return err
	}
	d.decision = decision
	return nil
}

// Close moves decidido -> fechado
func (d *Discovery) Close(next status.Status) error {
	return d.transition(next, "fechar discovery", status.DiscoveryFechado, status.DiscoveryDecidido)
}

// Cancel moves any open state -> cancelado
func (d *Discovery) Cancel(next status.Status, reason string) error {
	if err := d.transition(next, "cancelar discovery", status.DiscoveryCancelado,
		status.DiscoveryEmPesquisa, status.DiscoveryValidando, status.DiscoveryDecidido); err != nil {
		return err
	}
	d.cancelReason = reason
	return nil
}
