package engine

import (
	"fmt"

	apperrors "github.com/hygieia/hygieia/internal/errors"
	"github.com/hygieia/hygieia/internal/health"
)

// Condition payload defaults
const (
	defaultTrendDays         = 7
	defaultAnomalySensitivity = 2.0
	defaultLookbackDays      = 30
	defaultMissingWindowHrs  = 24
	minThresholdWindowMin    = 60
)

// Comparison operators accepted by threshold conditions
const (
	opGreater      = ">"
	opLess         = "<"
	opGreaterEqual = ">="
	opLessEqual    = "<="
	opEqual        = "=="
)

type thresholdConditions struct {
	Metric          health.MetricType
	Operator        string
	Threshold       float64
	DurationMinutes int
}

type trendConditions struct {
	Metric    health.MetricType
	Direction string
	Days      int
}

type anomalyConditions struct {
	Metric       health.MetricType
	Sensitivity  float64
	LookbackDays int
}

type missingDataConditions struct {
	Metric      health.MetricType
	WindowHours int
}

// conditionError builds the validation error used for malformed or
// incomplete rule condition payloads
func conditionError(field string) *apperrors.ServiceError {
	return apperrors.NewError(apperrors.ErrCodeValidationFailed).
		WithMessage(fmt.Sprintf("rule conditions missing or invalid field %q", field)).
		Build()
}

func parseThresholdConditions(m map[string]any) (thresholdConditions, error) {
	var c thresholdConditions

	metric, ok := condString(m, "metric")
	if !ok {
		return c, conditionError("metric")
	}
	c.Metric = health.MetricType(metric)

	op, ok := condString(m, "operator")
	if !ok {
		return c, conditionError("operator")
	}
	switch op {
	case opGreater, opLess, opGreaterEqual, opLessEqual, opEqual:
		c.Operator = op
	default:
		return c, conditionError("operator")
	}

	threshold, ok := condFloat(m, "threshold")
	if !ok {
		return c, conditionError("threshold")
	}
	c.Threshold = threshold

	c.DurationMinutes = condIntDefault(m, "duration_minutes", 0)
	if c.DurationMinutes < 0 {
		return c, conditionError("duration_minutes")
	}
	return c, nil
}

func parseTrendConditions(m map[string]any) (trendConditions, error) {
	var c trendConditions

	metric, ok := condString(m, "metric")
	if !ok {
		return c, conditionError("metric")
	}
	c.Metric = health.MetricType(metric)

	direction, ok := condString(m, "direction")
	if !ok || (direction != "increasing" && direction != "decreasing") {
		return c, conditionError("direction")
	}
	c.Direction = direction

	c.Days = condIntDefault(m, "days", defaultTrendDays)
	if c.Days <= 0 {
		return c, conditionError("days")
	}
	return c, nil
}

func parseAnomalyConditions(m map[string]any) (anomalyConditions, error) {
	var c anomalyConditions

	metric, ok := condString(m, "metric")
	if !ok {
		return c, conditionError("metric")
	}
	c.Metric = health.MetricType(metric)

	c.Sensitivity = condFloatDefault(m, "sensitivity", defaultAnomalySensitivity)
	if c.Sensitivity <= 0 {
		return c, conditionError("sensitivity")
	}

	c.LookbackDays = condIntDefault(m, "lookback_days", defaultLookbackDays)
	if c.LookbackDays <= 0 {
		return c, conditionError("lookback_days")
	}
	return c, nil
}

func parseMissingDataConditions(m map[string]any) (missingDataConditions, error) {
	var c missingDataConditions

	metric, ok := condString(m, "metric")
	if !ok {
		return c, conditionError("metric")
	}
	c.Metric = health.MetricType(metric)

	c.WindowHours = condIntDefault(m, "window_hours", defaultMissingWindowHrs)
	if c.WindowHours <= 0 {
		return c, conditionError("window_hours")
	}
	return c, nil
}

// compare applies a threshold operator
func compare(value, threshold float64, operator string) bool {
	switch operator {
	case opGreater:
		return value > threshold
	case opLess:
		return value < threshold
	case opGreaterEqual:
		return value >= threshold
	case opLessEqual:
		return value <= threshold
	case opEqual:
		return value == threshold
	default:
		return false
	}
}

func condString(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// condFloat reads a numeric field. JSON decoding yields float64, but
// hand-built condition maps in code and tests often carry int.
func condFloat(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func condFloatDefault(m map[string]any, key string, def float64) float64 {
	if v, ok := condFloat(m, key); ok {
		return v
	}
	return def
}

func condIntDefault(m map[string]any, key string, def int) int {
	if v, ok := condFloat(m, key); ok {
		return int(v)
	}
	return def
}
