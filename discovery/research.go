package discovery

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/liamcoop/discovery/status"
)

// Interview is one conversation recorded during research
type Interview struct {
	ID          string
	Participant string
	Notes       string
	ConductedAt time.Time
}

// ResearchProps builds a Research; ID is generated when empty
type ResearchProps struct {
	ID          string
	TenantID    string
	DiscoveryID string
	Title       string
	Method      string
	Status      status.Status
	CreatedAt   time.Time
}

// Research is a user-research effort (interviews, surveys) inside a discovery
type Research struct {
	lifecycle
	discoveryID string
	title       string
	method      string
	summary     string
	interviews  []Interview
}

// NewResearch validates props
func NewResearch(p ResearchProps) (*Research, error) {
	if err := required("research", "title", p.Title); err != nil {
		return nil, err
	}
	lc, err := newLifecycle("research", status.Research, p.ID, p.TenantID, p.Status, p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &Research{lifecycle: lc, discoveryID: p.DiscoveryID, title: p.Title, method: p.Method}, nil
}

func (r *Research) DiscoveryID() string { return r.discoveryID }
func (r *Research) Title() string       { return r.title }
func (r *Research) Method() string      { return r.method }
func (r *Research) Summary() string     { return r.summary }

// Interviews returns a copy of the recorded interviews
func (r *Research) Interviews() []Interview {
	return append([]Interview(nil), r.interviews...)
}

// Start moves planejada -> em_andamento
func (r *Research) Start(next status.Status) error {
	return r.transition(next, "iniciar pesquisa", status.ResearchEmAndamento, status.ResearchPlanejada)
}

// AddInterview records an interview while the research is open
func (r *Research) AddInterview(interview Interview) (Interview, error) {
	if err := r.status.Permit(status.GuardAddInterview, "adicionar entrevista"); err != nil {
		return Interview{}, rejected(&r.lifecycle, "adicionar entrevista", err)
	}
	if strings.TrimSpace(interview.Participant) == "" {
		return Interview{}, fmt.Errorf("%w: interview requires a participant", ErrValidation)
	}
	if interview.ID == "" {
		interview.ID = uuid.NewString()
	}
	if interview.ConductedAt.IsZero() {
		interview.ConductedAt = time.Now()
	}

	r.interviews = append(r.interviews, interview)
	r.touch()
	return interview, nil
}

// Complete moves em_andamento -> concluida
func (r *Research) Complete(next status.Status, summary string) error {
	if err := r.status.Permit(status.GuardFinish, "concluir pesquisa"); err != nil {
		return rejected(&r.lifecycle, "concluir pesquisa", err)
	}
	if err := r.transition(next, "concluir pesquisa", status.ResearchConcluida, status.ResearchEmAndamento); err != nil {
		return err
	}
	r.summary = summary
	return nil
}

// Cancel moves planejada or em_andamento -> cancelada
func (r *Research) Cancel(next status.Status) error {
	return r.transition(next, "cancelar pesquisa", status.ResearchCancelada,
		status.ResearchPlanejada, status.ResearchEmAndamento)
}
