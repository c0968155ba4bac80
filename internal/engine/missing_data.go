package engine

import (
	"context"
	"time"

	"github.com/hygieia/hygieia/internal/health"
)

// missingDataEvaluator fires when a metric has produced no samples at
// all within the trailing window, signalling a stalled sync or a
// device that stopped reporting.
type missingDataEvaluator struct {
	metrics health.MetricStore
	clock   health.Clock
}

func (e *missingDataEvaluator) Evaluate(ctx context.Context, rule health.AlertRule) (Verdict, error) {
	cond, err := parseMissingDataConditions(rule.Conditions)
	if err != nil {
		return Verdict{}, err
	}

	now := e.clock.Now()
	samples, err := e.metrics.Query(ctx, health.MetricQuery{
		UserID: rule.UserID,
		Type:   cond.Metric,
		Range: health.TimeRange{
			Start: now.Add(-time.Duration(cond.WindowHours) * time.Hour),
			End:   now,
		},
		Order: health.OrderDescending,
		Limit: 1,
	})
	if err != nil {
		return Verdict{}, err
	}
	if len(samples) > 0 {
		return Verdict{}, nil
	}

	return Verdict{
		Matched: true,
		Values:  map[string]float64{"window_hours": float64(cond.WindowHours)},
	}, nil
}
