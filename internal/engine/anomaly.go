package engine

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/hygieia/hygieia/internal/health"
	"github.com/hygieia/hygieia/internal/stats"
)

// anomalyEvaluator z-scores today's most recent sample against a
// historical baseline that excludes the current day.
type anomalyEvaluator struct {
	metrics health.MetricStore
	clock   health.Clock
	logger  *slog.Logger
}

func (e *anomalyEvaluator) Evaluate(ctx context.Context, rule health.AlertRule) (Verdict, error) {
	cond, err := parseAnomalyConditions(rule.Conditions)
	if err != nil {
		return Verdict{}, err
	}

	now := e.clock.Now()

	// Baseline ends one day ago so today's value cannot shift the
	// statistics it is scored against.
	baseline, err := e.metrics.Query(ctx, health.MetricQuery{
		UserID: rule.UserID,
		Type:   cond.Metric,
		Range: health.TimeRange{
			Start: now.AddDate(0, 0, -cond.LookbackDays-1),
			End:   now.AddDate(0, 0, -1),
		},
		Order: health.OrderAscending,
	})
	if err != nil {
		return Verdict{}, err
	}
	if len(baseline) == 0 {
		return Verdict{}, nil
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := e.metrics.Query(ctx, health.MetricQuery{
		UserID: rule.UserID,
		Type:   cond.Metric,
		Range:  health.TimeRange{Start: startOfDay, End: now},
		Order:  health.OrderDescending,
		Limit:  1,
	})
	if err != nil {
		return Verdict{}, err
	}
	if len(today) == 0 {
		return Verdict{}, nil
	}

	values := make([]float64, len(baseline))
	for i, s := range baseline {
		values[i] = s.Value
	}
	mean := stats.Mean(values)
	std := stats.StdDev(values)
	if std == 0 {
		// No baseline variability, nothing to score against.
		e.logger.Debug("Anomaly baseline has zero variance, skipping",
			"ruleID", rule.ID, "metric", cond.Metric)
		return Verdict{}, nil
	}

	z := math.Abs(stats.ZScore(today[0].Value, mean, std))
	if z <= cond.Sensitivity {
		return Verdict{}, nil
	}

	return Verdict{
		Matched: true,
		Values: map[string]float64{
			string(cond.Metric): today[0].Value,
			"z_score":           z,
			"baseline_mean":     mean,
			"baseline_std":      std,
		},
	}, nil
}
