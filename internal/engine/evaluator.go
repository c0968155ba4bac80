package engine

import (
	"context"
	"log/slog"

	"github.com/hygieia/hygieia/internal/health"
)

// Verdict is the outcome of evaluating one rule's conditions
type Verdict struct {
	Matched bool
	// Values holds the observations behind a positive verdict, keyed by
	// metric name or derived quantity. Nil for non-matches.
	Values map[string]float64
}

// Evaluator decides whether a rule's conditions currently hold.
// Data absence resolves to a non-match, never an error; errors are
// reserved for malformed conditions and store failures.
type Evaluator interface {
	Evaluate(ctx context.Context, rule health.AlertRule) (Verdict, error)
}

// newEvaluators builds the evaluator lookup table. Alert types without
// an entry (correlation among them) resolve to a logged non-match in
// the engine loop.
func newEvaluators(metrics health.MetricStore, clock health.Clock, logger *slog.Logger) map[health.AlertType]Evaluator {
	threshold := &thresholdEvaluator{metrics: metrics, clock: clock}
	return map[health.AlertType]Evaluator{
		health.AlertTypeThreshold:     threshold,
		health.AlertTypeTrend:         &trendEvaluator{metrics: metrics, clock: clock},
		health.AlertTypeAnomaly:       &anomalyEvaluator{metrics: metrics, clock: clock, logger: logger},
		health.AlertTypeMissingData:   &missingDataEvaluator{metrics: metrics, clock: clock},
		health.AlertTypeEnvironmental: &environmentalEvaluator{threshold: threshold},
	}
}
