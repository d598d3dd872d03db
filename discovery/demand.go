package discovery

import (
	"time"

	"github.com/liamcoop/discovery/status"
)

// DemandProps builds a Demand; ID is generated when empty
type DemandProps struct {
	ID          string
	TenantID    string
	Title       string
	Description string
	Priority    string
	Impact      string
	Urgency     string
	Complexity  string
	Tags        []string
	ProductID   string
	OwnerID     string
	PMID        string
	Status      status.Status
	CreatedAt   time.Time
}

// Demand is the intake item that may turn into a discovery. Its transitions
// come from the tenant's catalog metadata rather than a fixed table.
type Demand struct {
	lifecycle
	title        string
	description  string
	priority     string
	impact       string
	urgency      string
	complexity   string
	tags         []string
	productID    string
	ownerID      string
	pmID         string
	rejectReason string
}

// NewDemand validates props
func NewDemand(p DemandProps) (*Demand, error) {
	if err := required("demand", "title", p.Title); err != nil {
		return nil, err
	}
	lc, err := newLifecycle("demand", status.Demand, p.ID, p.TenantID, p.Status, p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &Demand{
		lifecycle:   lc,
		title:       p.Title,
		description: p.Description,
		priority:    p.Priority,
		impact:      p.Impact,
		urgency:     p.Urgency,
		complexity:  p.Complexity,
		tags:        append([]string(nil), p.Tags...),
		productID:   p.ProductID,
		ownerID:     p.OwnerID,
		pmID:        p.PMID,
	}, nil
}

func (d *Demand) Title() string        { return d.title }
func (d *Demand) Description() string  { return d.description }
func (d *Demand) Priority() string     { return d.priority }
func (d *Demand) Impact() string       { return d.impact }
func (d *Demand) Urgency() string      { return d.urgency }
func (d *Demand) Complexity() string   { return d.complexity }
func (d *Demand) Tags() []string       { return append([]string(nil), d.tags...) }
func (d *Demand) ProductID() string    { return d.productID }
func (d *Demand) OwnerID() string      { return d.ownerID }
func (d *Demand) PMID() string         { return d.pmID }
func (d *Demand) RejectReason() string { return d.rejectReason }

// StartTriage moves the demand to em_triagem
func (d *Demand) StartTriage(next status.Status) error {
	return d.moveTo(next, "iniciar triagem da demanda", status.DemandEmTriagem)
}

// Approve moves the demand to aprovada
func (d *Demand) Approve(next status.Status) error {
	return d.moveTo(next, "aprovar demanda", status.DemandAprovada)
}

// Reject moves the demand to rejeitada and keeps the reason
func (d *Demand) Reject(next status.Status, reason string) error {
	if err := required("demand rejection", "reason", reason); err != nil {
		return err
	}
	if err := d.moveTo(next, "rejeitar demanda", status.DemandRejeitada); err != nil {
		return err
	}
	d.rejectReason = reason
	return nil
}

// Archive moves the demand to arquivada
func (d *Demand) Archive(next status.Status) error {
	return d.moveTo(next, "arquivar demanda", status.DemandArquivada)
}

// RuleContext is the evaluation context automation rules read, keyed the
// way the default rule fields address it (demanda.status, demanda.tags...).
// The status is exposed by its legacy value.
func (d *Demand) RuleContext() map[string]any {
	tags := make([]any, len(d.tags))
	for i, t := range d.tags {
		tags[i] = t
	}
	return map[string]any{
		"demanda": map[string]any{
			"id":            d.id,
			"status":        d.status.Item().LegacyValue(),
			"titulo":        d.title,
			"descricao":     d.description,
			"prioridade":    d.priority,
			"impacto":       d.impact,
			"urgencia":      d.urgency,
			"complexidade":  d.complexity,
			"tags":          tags,
			"produtoId":     d.productID,
			"responsavelId": d.ownerID,
			"pmId":          d.pmID,
		},
	}
}
