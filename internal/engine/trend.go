package engine

import (
	"context"

	"github.com/hygieia/hygieia/internal/health"
	"github.com/hygieia/hygieia/internal/stats"
)

// trendEvaluator fits an ordinary-least-squares line through the
// trailing window of samples and matches on the slope's sign.
type trendEvaluator struct {
	metrics health.MetricStore
	clock   health.Clock
}

func (e *trendEvaluator) Evaluate(ctx context.Context, rule health.AlertRule) (Verdict, error) {
	cond, err := parseTrendConditions(rule.Conditions)
	if err != nil {
		return Verdict{}, err
	}

	now := e.clock.Now()
	samples, err := e.metrics.Query(ctx, health.MetricQuery{
		UserID: rule.UserID,
		Type:   cond.Metric,
		Range:  health.LastDays(now, cond.Days),
		Order:  health.OrderAscending,
	})
	if err != nil {
		return Verdict{}, err
	}
	if len(samples) < 2 {
		return Verdict{}, nil
	}

	// Regress value against elapsed seconds since the earliest sample
	// so irregular sampling intervals weight the fit correctly.
	origin := samples[0].Timestamp
	x := make([]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = s.Timestamp.Sub(origin).Seconds()
		y[i] = s.Value
	}

	slope := stats.Slope(x, y)

	var matched bool
	switch cond.Direction {
	case "increasing":
		matched = slope > 0
	case "decreasing":
		matched = slope < 0
	}
	if !matched {
		return Verdict{}, nil
	}

	return Verdict{
		Matched: true,
		Values: map[string]float64{
			string(cond.Metric): samples[len(samples)-1].Value,
			"slope":             slope,
		},
	}, nil
}
