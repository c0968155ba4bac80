package engine

import (
	"context"
	"time"

	"github.com/hygieia/hygieia/internal/health"
)

// thresholdEvaluator compares the latest sample of a metric against a
// fixed threshold, optionally requiring the condition to hold across a
// trailing duration window.
type thresholdEvaluator struct {
	metrics health.MetricStore
	clock   health.Clock
}

func (e *thresholdEvaluator) Evaluate(ctx context.Context, rule health.AlertRule) (Verdict, error) {
	cond, err := parseThresholdConditions(rule.Conditions)
	if err != nil {
		return Verdict{}, err
	}

	now := e.clock.Now()
	windowMinutes := cond.DurationMinutes
	if windowMinutes < minThresholdWindowMin {
		windowMinutes = minThresholdWindowMin
	}

	samples, err := e.metrics.Query(ctx, health.MetricQuery{
		UserID: rule.UserID,
		Type:   cond.Metric,
		Range: health.TimeRange{
			Start: now.Add(-time.Duration(windowMinutes) * time.Minute),
			End:   now,
		},
		Order: health.OrderDescending,
	})
	if err != nil {
		return Verdict{}, err
	}
	if len(samples) == 0 {
		return Verdict{}, nil
	}

	latest := samples[0]
	if !compare(latest.Value, cond.Threshold, cond.Operator) {
		return Verdict{}, nil
	}

	// With a duration the condition must hold across the whole window,
	// not just at the latest sample. Only the strict operators sustain;
	// >=, <= and == fire on the latest value alone.
	if cond.DurationMinutes > 0 && (cond.Operator == opGreater || cond.Operator == opLess) {
		cutoff := now.Add(-time.Duration(cond.DurationMinutes) * time.Minute)
		for _, s := range samples {
			if s.Timestamp.Before(cutoff) {
				continue
			}
			if !compare(s.Value, cond.Threshold, cond.Operator) {
				return Verdict{}, nil
			}
		}
	}

	return Verdict{
		Matched: true,
		Values:  map[string]float64{string(cond.Metric): latest.Value},
	}, nil
}
