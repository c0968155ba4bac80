package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hygieia/hygieia/internal/health"
)

func anomalyRule(sensitivity float64) health.AlertRule {
	return health.AlertRule{
		ID:       3,
		UserID:   1,
		Name:     "Resting HR anomaly",
		Type:     health.AlertTypeAnomaly,
		Priority: health.PriorityWarning,
		Conditions: map[string]any{
			"metric": "resting_hr", "sensitivity": sensitivity, "lookback_days": 30,
		},
		IsActive: true,
	}
}

func restingHRSample(value float64, ts time.Time) health.MetricSample {
	return health.MetricSample{
		UserID: 1, Type: health.MetricRestingHeartRate,
		Value: value, Unit: "bpm", Timestamp: ts,
	}
}

// baselineSamples spreads values over the lookback window, one per day,
// all before yesterday's cutoff
func baselineSamples(now time.Time, values []float64) []health.MetricSample {
	samples := make([]health.MetricSample, len(values))
	for i, v := range values {
		samples[i] = restingHRSample(v, now.AddDate(0, 0, -(i+2)))
	}
	return samples
}

func TestAnomaly_HighZScore(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	// Baseline mean 60, sample std 5.
	baseline := baselineSamples(now, []float64{55, 55, 60, 65, 65})
	today := restingHRSample(80, now.Add(-2*time.Hour))

	store := &fakeMetricStore{samples: append(baseline, today)}
	eval := &anomalyEvaluator{metrics: store, clock: &fakeClock{now: now}, logger: testLogger()}

	verdict, err := eval.Evaluate(context.Background(), anomalyRule(2.0))
	require.NoError(t, err)
	assert.True(t, verdict.Matched)
	assert.InDelta(t, 4.0, verdict.Values["z_score"], 1e-9)
	assert.InDelta(t, 60.0, verdict.Values["baseline_mean"], 1e-9)
}

func TestAnomaly_WithinSensitivity(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	baseline := baselineSamples(now, []float64{55, 55, 60, 60, 65, 65})
	today := restingHRSample(62, now.Add(-2*time.Hour))

	store := &fakeMetricStore{samples: append(baseline, today)}
	eval := &anomalyEvaluator{metrics: store, clock: &fakeClock{now: now}, logger: testLogger()}

	verdict, err := eval.Evaluate(context.Background(), anomalyRule(2.0))
	require.NoError(t, err)
	assert.False(t, verdict.Matched)
}

func TestAnomaly_ZeroStdNeverMatches(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	baseline := baselineSamples(now, []float64{60, 60, 60, 60})
	today := restingHRSample(200, now.Add(-2*time.Hour))

	store := &fakeMetricStore{samples: append(baseline, today)}
	eval := &anomalyEvaluator{metrics: store, clock: &fakeClock{now: now}, logger: testLogger()}

	verdict, err := eval.Evaluate(context.Background(), anomalyRule(2.0))
	require.NoError(t, err)
	assert.False(t, verdict.Matched)
}

func TestAnomaly_EmptyBaseline(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	store := &fakeMetricStore{samples: []health.MetricSample{
		restingHRSample(80, now.Add(-2 * time.Hour)),
	}}
	eval := &anomalyEvaluator{metrics: store, clock: &fakeClock{now: now}, logger: testLogger()}

	verdict, err := eval.Evaluate(context.Background(), anomalyRule(2.0))
	require.NoError(t, err)
	assert.False(t, verdict.Matched)
}

func TestAnomaly_NoTodaySample(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	store := &fakeMetricStore{samples: baselineSamples(now, []float64{55, 60, 65})}
	eval := &anomalyEvaluator{metrics: store, clock: &fakeClock{now: now}, logger: testLogger()}

	verdict, err := eval.Evaluate(context.Background(), anomalyRule(2.0))
	require.NoError(t, err)
	assert.False(t, verdict.Matched)
}

func TestMissingData_Evaluator(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	rule := health.AlertRule{
		ID: 4, UserID: 1, Type: health.AlertTypeMissingData,
		Conditions: map[string]any{"metric": "steps", "window_hours": 24},
	}

	empty := &missingDataEvaluator{metrics: &fakeMetricStore{}, clock: &fakeClock{now: now}}
	verdict, err := empty.Evaluate(context.Background(), rule)
	require.NoError(t, err)
	assert.True(t, verdict.Matched)

	inside := &missingDataEvaluator{metrics: &fakeMetricStore{samples: []health.MetricSample{
		{UserID: 1, Type: health.MetricSteps, Value: 4000, Timestamp: now.Add(-23 * time.Hour)},
	}}, clock: &fakeClock{now: now}}
	verdict, err = inside.Evaluate(context.Background(), rule)
	require.NoError(t, err)
	assert.False(t, verdict.Matched)

	outside := &missingDataEvaluator{metrics: &fakeMetricStore{samples: []health.MetricSample{
		{UserID: 1, Type: health.MetricSteps, Value: 4000, Timestamp: now.Add(-25 * time.Hour)},
	}}, clock: &fakeClock{now: now}}
	verdict, err = outside.Evaluate(context.Background(), rule)
	require.NoError(t, err)
	assert.True(t, verdict.Matched)
}

func TestEnvironmental_RejectsBodyMetric(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	threshold := &thresholdEvaluator{metrics: &fakeMetricStore{}, clock: &fakeClock{now: now}}
	eval := &environmentalEvaluator{threshold: threshold}

	_, err := eval.Evaluate(context.Background(), health.AlertRule{
		UserID:     1,
		Type:       health.AlertTypeEnvironmental,
		Conditions: map[string]any{"metric": "heart_rate", "operator": ">", "threshold": 150.0},
	})
	assert.Error(t, err)
}

func TestEnvironmental_ThresholdSemantics(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	store := &fakeMetricStore{samples: []health.MetricSample{
		{UserID: 1, Type: health.MetricAirQualityIndex, Value: 180, Timestamp: now.Add(-5 * time.Minute)},
	}}
	eval := &environmentalEvaluator{threshold: &thresholdEvaluator{metrics: store, clock: &fakeClock{now: now}}}

	verdict, err := eval.Evaluate(context.Background(), health.AlertRule{
		UserID:     1,
		Type:       health.AlertTypeEnvironmental,
		Conditions: map[string]any{"metric": "aqi", "operator": ">", "threshold": 150.0},
	})
	require.NoError(t, err)
	assert.True(t, verdict.Matched)
}
