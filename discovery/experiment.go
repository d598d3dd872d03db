package discovery

import (
	"time"

	"github.com/liamcoop/discovery/status"
)

// ExperimentProps builds an Experiment; ID is generated when empty
type ExperimentProps struct {
	ID           string
	TenantID     string
	HypothesisID string
	Name         string
	Metric       string
	Status       status.Status
	CreatedAt    time.Time
}

// Experiment tests a hypothesis against a metric
type Experiment struct {
	lifecycle
	hypothesisID string
	name         string
	metric       string
	startedAt    time.Time
	finishedAt   time.Time
	results      map[string]any
	cancelReason string
}

// NewExperiment validates props
func NewExperiment(p ExperimentProps) (*Experiment, error) {
	if err := required("experiment", "name", p.Name); err != nil {
		return nil, err
	}
	lc, err := newLifecycle("experiment", status.Experiment, p.ID, p.TenantID, p.Status, p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &Experiment{lifecycle: lc, hypothesisID: p.HypothesisID, name: p.Name, metric: p.Metric}, nil
}

func (e *Experiment) HypothesisID() string  { return e.hypothesisID }
func (e *Experiment) Name() string          { return e.name }
func (e *Experiment) Metric() string        { return e.metric }
func (e *Experiment) StartedAt() time.Time  { return e.startedAt }
func (e *Experiment) FinishedAt() time.Time { return e.finishedAt }
func (e *Experiment) CancelReason() string  { return e.cancelReason }

// Results returns a copy of the recorded results
func (e *Experiment) Results() map[string]any {
	if e.results == nil {
		return nil
	}
	out := make(map[string]any, len(e.results))
	for k, v := range e.results {
		out[k] = v
	}
	return out
}

// StartExecution moves planejado -> em_execucao
func (e *Experiment) StartExecution(next status.Status) error {
	if err := e.status.Permit(status.GuardStartExecution, "iniciar execução do experimento"); err != nil {
		return rejected(&e.lifecycle, "iniciar execução do experimento", err)
	}
	if err := e.transition(next, "iniciar execução do experimento", status.ExperimentEmExecucao, status.ExperimentPlanejado); err != nil {
		return err
	}
	e.startedAt = e.updatedAt
	return nil
}

// Finish moves em_execucao -> concluido and stores the results
func (e *Experiment) Finish(next status.Status, results map[string]any) error {
	if err := e.status.Permit(status.GuardFinish, "finalizar experimento"); err != nil {
		return rejected(&e.lifecycle, "finalizar experimento", err)
	}
	if err := e.transition(next, "finalizar experimento", status.ExperimentConcluido, status.ExperimentEmExecucao); err != nil {
		return err
	}
	e.finishedAt = e.updatedAt
	e.results = make(map[string]any, len(results))
	for k, v := range results {
		e.results[k] = v
	}
	return nil
}

// Cancel moves planejado or em_execucao -> cancelado
func (e *Experiment) Cancel(next status.Status, reason string) error {
	if err := e.transition(next, "cancelar experimento", status.ExperimentCancelado,
		status.ExperimentPlanejado, status.ExperimentEmExecucao); err != nil {
		return err
	}
	e.cancelReason = reason
	return nil
}
