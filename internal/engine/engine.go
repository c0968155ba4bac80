package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hygieia/hygieia/internal/async"
	"github.com/hygieia/hygieia/internal/health"
	"github.com/hygieia/hygieia/internal/monitoring"
)

// PassResult summarizes one evaluation pass
type PassResult struct {
	RulesEvaluated  int `json:"rules_evaluated"`
	AlertsTriggered int `json:"alerts_triggered"`
	Failures        int `json:"failures"`
}

// Engine runs evaluation passes over every active alert rule. It holds
// no state between passes; everything it needs is fetched fresh from
// the stores on each pass.
type Engine struct {
	rules      health.RuleStore
	dispatcher *Dispatcher
	evaluators map[health.AlertType]Evaluator
	pool       *async.Pool
	clock      health.Clock
	metrics    *monitoring.Metrics
	tracer     *monitoring.Tracer
	logger     *slog.Logger
}

// New creates a rule engine. The pool must already be started; the
// engine submits one job per rule and waits for the pass to drain.
func New(rules health.RuleStore, metricStore health.MetricStore, dispatcher *Dispatcher,
	pool *async.Pool, clock health.Clock, metrics *monitoring.Metrics,
	tracer *monitoring.Tracer, logger *slog.Logger) *Engine {
	return &Engine{
		rules:      rules,
		dispatcher: dispatcher,
		evaluators: newEvaluators(metricStore, clock, logger),
		pool:       pool,
		clock:      clock,
		metrics:    metrics,
		tracer:     tracer,
		logger:     logger,
	}
}

// EvaluatePass evaluates every active rule once. Rules run concurrently
// on the worker pool, one job per rule, so no two evaluations of the
// same rule can overlap within a pass. Per-rule failures are counted
// and logged; only the initial rule listing can fail the pass.
func (e *Engine) EvaluatePass(ctx context.Context) (PassResult, error) {
	start := e.clock.Now()

	rules, err := e.rules.ListActiveRules(ctx)
	if err != nil {
		e.logger.Error("Failed to list active rules", "error", err)
		return PassResult{}, err
	}

	var (
		mu     sync.Mutex
		result = PassResult{RulesEvaluated: len(rules)}
		wg     sync.WaitGroup
	)

	for _, rule := range rules {
		rule := rule
		wg.Add(1)
		job := func(jobCtx context.Context) {
			defer wg.Done()
			triggered, failed := e.evaluateRule(jobCtx, rule)
			mu.Lock()
			if triggered {
				result.AlertsTriggered++
			}
			if failed {
				result.Failures++
			}
			mu.Unlock()
		}
		if submitErr := e.pool.Submit(job); submitErr != nil {
			// Queue full or pool stopped: run inline rather than skip
			// the rule, the pass must stay total over all rules.
			e.logger.Warn("Pool rejected rule job, evaluating inline",
				"ruleID", rule.ID, "error", submitErr)
			job(ctx)
		}
		e.metrics.SetQueueDepth(e.pool.QueueDepth())
	}
	wg.Wait()
	e.metrics.SetQueueDepth(0)

	duration := e.clock.Now().Sub(start)
	e.metrics.RecordPass(duration.Seconds())
	if e.tracer != nil {
		e.tracer.TracePass(ctx, result.RulesEvaluated, result.AlertsTriggered, duration, nil)
	}
	e.logger.Info("Evaluation pass complete",
		"rulesEvaluated", result.RulesEvaluated,
		"alertsTriggered", result.AlertsTriggered,
		"failures", result.Failures,
		"duration", duration)

	return result, nil
}

// evaluateRule runs quiet-hours filtering, the matching evaluator and,
// on a positive verdict, the dispatcher for one rule
func (e *Engine) evaluateRule(ctx context.Context, rule health.AlertRule) (triggered, failed bool) {
	now := e.clock.Now()
	if isSuppressed(rule, now) {
		e.logger.Debug("Rule suppressed by quiet hours", "ruleID", rule.ID)
		return false, false
	}

	evaluator, ok := e.evaluators[rule.Type]
	if !ok {
		// Unknown or unwired alert types are a non-match, not a
		// failure; one malformed rule must not halt the pass.
		e.logger.Warn("No evaluator for alert type, treating as non-match",
			"ruleID", rule.ID, "alertType", rule.Type)
		e.metrics.RecordVerdict(string(rule.Type), false)
		return false, false
	}

	evalStart := e.clock.Now()
	verdict, err := evaluator.Evaluate(ctx, rule)
	e.metrics.RecordRuleEvaluated()
	if e.tracer != nil {
		e.tracer.TraceRuleEvaluation(ctx, rule.ID, string(rule.Type),
			verdict.Matched, e.clock.Now().Sub(evalStart), err)
	}
	if err != nil {
		e.logger.Error("Rule evaluation failed",
			"ruleID", rule.ID, "alertType", rule.Type, "error", err)
		e.metrics.RecordEvaluationError(string(rule.Type))
		return false, true
	}

	e.metrics.RecordVerdict(string(rule.Type), verdict.Matched)
	if !verdict.Matched {
		return false, false
	}

	event := health.TriggerEvent{
		RuleID:      rule.ID,
		UserID:      rule.UserID,
		Priority:    rule.Priority,
		Title:       rule.Name,
		Message:     "Alert condition met: " + rule.Description,
		EvaluatedAt: now,
		Snapshot:    verdict.Values,
	}
	if err := e.dispatcher.Dispatch(ctx, rule, event); err != nil {
		e.logger.Error("Alert dispatch failed", "ruleID", rule.ID, "error", err)
		return false, true
	}
	return true, false
}
