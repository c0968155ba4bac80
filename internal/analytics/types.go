package analytics

import (
	"time"

	"github.com/hygieia/hygieia/internal/health"
)

// Trend directions
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// TrendPoint is one daily aggregate with its trailing moving average
type TrendPoint struct {
	Date          time.Time `json:"date"`
	Value         float64   `json:"value"`
	MovingAverage float64   `json:"moving_average"`
}

// TrendReport describes how a metric developed over a range
type TrendReport struct {
	MetricType       health.MetricType `json:"metric_type"`
	Points           []TrendPoint      `json:"data"`
	Direction        string            `json:"trend_direction"`
	ChangePercentage float64           `json:"change_percentage"`
	Unit             string            `json:"unit"`
}

// PeriodComparison contrasts the current period's mean with the
// preceding period of the same length
type PeriodComparison struct {
	MetricType       health.MetricType `json:"metric_type"`
	Period           string            `json:"period"`
	CurrentPeriod    float64           `json:"current_period"`
	PreviousPeriod   float64           `json:"previous_period"`
	Change           float64           `json:"change"`
	ChangePercentage float64           `json:"change_percentage"`
	Unit             string            `json:"unit"`
}

// HistogramBin is one bucket of a value distribution
type HistogramBin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// Distribution is the histogram and percentile summary of a metric
type Distribution struct {
	MetricType  health.MetricType  `json:"metric_type"`
	Histogram   []HistogramBin     `json:"histogram"`
	Percentiles map[string]float64 `json:"percentiles"`
}
