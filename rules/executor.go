package rules

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/liamcoop/discovery/internal/logger"
	"github.com/liamcoop/discovery/internal/metrics"
)

// Rule outcomes reported to metrics
const (
	outcomeInactive = "inactive"
	outcomeSkipped  = "skipped"
	outcomeApplied  = "applied"
)

// Executor runs applicable rules against an evaluation context
type Executor struct {
	registry *Registry
	metrics  *metrics.Recorder
}

type ExecutorOption func(*Executor)

// WithMetrics records rule and action counts on m
func WithMetrics(m *metrics.Recorder) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{registry: registry}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteRules runs rules in ascending order. Inactive and non-applicable
// rules produce no result. Actions of an applicable rule run one after the
// other; a failing action is recorded and the next one still runs.
func (e *Executor) ExecuteRules(ctx context.Context, rules []*Rule, evalCtx map[string]any) []ExecutionResult {
	start := time.Now()
	defer func() { e.metrics.ObserveExecution(time.Since(start)) }()

	ordered := append([]*Rule(nil), rules...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order() < ordered[j].Order() })

	results := make([]ExecutionResult, 0, len(ordered))
	for _, rule := range ordered {
		if !rule.Active() {
			e.metrics.RuleEvaluated(outcomeInactive)
			continue
		}
		if !rule.AppliesTo(evalCtx) {
			e.metrics.RuleEvaluated(outcomeSkipped)
			logger.Trace("rule not applicable", "rule_id", rule.ID(), "tenant_id", rule.TenantID())
			continue
		}

		e.metrics.RuleEvaluated(outcomeApplied)
		logger.RuleExecutions.Add(1)
		logger.Debug("executing rule", "rule_id", rule.ID(), "tenant_id", rule.TenantID(), "order", rule.Order())

		results = append(results, e.executeRule(ctx, rule, evalCtx))
	}
	return results
}

func (e *Executor) executeRule(ctx context.Context, rule *Rule, evalCtx map[string]any) ExecutionResult {
	pending := rule.PendingActions()
	result := ExecutionResult{
		RuleID:   rule.ID(),
		RuleName: rule.Name(),
		Actions:  make([]ActionResult, 0, len(pending)),
		Errors:   []string{},
	}

	for _, action := range pending {
		out, err := e.dispatch(ctx, action, evalCtx)
		e.metrics.ActionExecuted(string(action.Code), err != nil)
		if err != nil {
			logger.FailedRuleActions.Add(1)
			logger.Warn("rule action failed",
				"rule_id", rule.ID(),
				"tenant_id", rule.TenantID(),
				"action", action.Code,
				"error", err,
			)
			result.Actions = append(result.Actions, ActionResult{Type: action.Code, Error: err.Error()})
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Actions = append(result.Actions, ActionResult{Type: action.Code, Result: out})
	}

	result.Success = len(result.Errors) == 0
	return result
}

// dispatch turns a handler panic into an error for that action only
func (e *Executor) dispatch(ctx context.Context, action PendingAction, evalCtx map[string]any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("ação %s falhou: %v", action.Code, r)
		}
	}()
	return e.registry.Dispatch(ctx, action, evalCtx)
}
