package engine

import (
	"context"
	"fmt"

	apperrors "github.com/hygieia/hygieia/internal/errors"
	"github.com/hygieia/hygieia/internal/health"
)

// environmentalEvaluator applies threshold semantics to the closed set
// of environmental metric types (air quality, UV index and the like).
type environmentalEvaluator struct {
	threshold *thresholdEvaluator
}

func (e *environmentalEvaluator) Evaluate(ctx context.Context, rule health.AlertRule) (Verdict, error) {
	cond, err := parseThresholdConditions(rule.Conditions)
	if err != nil {
		return Verdict{}, err
	}
	if !cond.Metric.IsEnvironmental() {
		return Verdict{}, apperrors.NewError(apperrors.ErrCodeInvalidMetric).
			WithMessage(fmt.Sprintf("metric %q is not an environmental metric", cond.Metric)).
			Build()
	}
	return e.threshold.Evaluate(ctx, rule)
}
