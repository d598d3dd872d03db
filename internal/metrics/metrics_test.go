package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	require.NoError(t, err)

	r.RuleEvaluated("applied")
	r.RuleEvaluated("applied")
	r.RuleEvaluated("skipped")
	r.ActionExecuted("ADICIONAR_TAG", false)
	r.ActionExecuted("CHAMAR_WEBHOOK", true)
	r.ObserveExecution(3 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.rulesEvaluated.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rulesEvaluated.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.actionsExecuted.WithLabelValues("CHAMAR_WEBHOOK", "error")))

	expected := `
# HELP discovery_rule_actions_total Dispatched rule actions, by action code and status (ok, error).
# TYPE discovery_rule_actions_total counter
discovery_rule_actions_total{action="ADICIONAR_TAG",status="ok"} 1
discovery_rule_actions_total{action="CHAMAR_WEBHOOK",status="error"} 1
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected), "discovery_rule_actions_total")
	assert.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "discovery_rule_execution_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
	assert.Panics(t, func() { MustNew(reg) })
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RuleEvaluated("applied")
		r.ActionExecuted("ADICIONAR_TAG", false)
		r.ObserveExecution(time.Millisecond)
	})
}
