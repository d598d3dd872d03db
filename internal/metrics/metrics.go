// Package metrics holds the Prometheus collectors of the rule executor.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "discovery"

// Recorder groups the executor collectors
type Recorder struct {
	rulesEvaluated  *prometheus.CounterVec
	actionsExecuted *prometheus.CounterVec
	duration        prometheus.Histogram
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		rulesEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_evaluated_total",
			Help:      "Rules considered by the executor, by outcome (inactive, skipped, applied).",
		}, []string{"outcome"}),
		actionsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_actions_total",
			Help:      "Dispatched rule actions, by action code and status (ok, error).",
		}, []string{"action", "status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rule_execution_seconds",
			Help:      "Time spent executing one batch of rules.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{r.rulesEvaluated, r.actionsExecuted, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustNew is New that panics, for main packages
func MustNew(reg prometheus.Registerer) *Recorder {
	r, err := New(reg)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Recorder) RuleEvaluated(outcome string) {
	if r == nil {
		return
	}
	r.rulesEvaluated.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ActionExecuted(action string, failed bool) {
	if r == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	r.actionsExecuted.WithLabelValues(action, status).Inc()
}

func (r *Recorder) ObserveExecution(d time.Duration) {
	if r == nil {
		return
	}
	r.duration.Observe(d.Seconds())
}
