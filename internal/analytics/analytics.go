// Package analytics computes correlations, anomaly reports, trends and
// distribution summaries over a user's metric history. Every operation
// resolves sparse data to zero-valued results instead of errors so the
// API surface never fails on an empty range.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/hygieia/hygieia/internal/cache"
	apperrors "github.com/hygieia/hygieia/internal/errors"
	"github.com/hygieia/hygieia/internal/health"
	"github.com/hygieia/hygieia/internal/monitoring"
	"github.com/hygieia/hygieia/internal/stats"
)

const (
	correlationCacheTTL = 5 * time.Minute
	defaultBins         = 20

	// Relative change below this over the whole range reads as noise.
	trendDeadband = 0.05
)

// Engine answers analytics queries against the metric store
type Engine struct {
	metrics health.MetricStore
	cache   cache.Cache
	mon     *monitoring.Metrics
	tracer  *monitoring.Tracer
	clock   health.Clock
	logger  *slog.Logger
}

// New creates an analytics engine. The cache holds find_correlations
// responses; pass a small TTL cache shared with nothing else.
func New(metrics health.MetricStore, c cache.Cache, mon *monitoring.Metrics,
	tracer *monitoring.Tracer, clock health.Clock, logger *slog.Logger) *Engine {
	return &Engine{
		metrics: metrics,
		cache:   c,
		mon:     mon,
		tracer:  tracer,
		clock:   clock,
		logger:  logger,
	}
}

// Now exposes the engine's clock so callers can build trailing ranges
// consistent with the engine's own windows
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// observe records duration metrics and a trace span for one operation
func (e *Engine) observe(ctx context.Context, operation string, userID int64, start time.Time) {
	duration := e.clock.Now().Sub(start)
	e.mon.RecordAnalytics(operation, duration.Seconds())
	if e.tracer != nil {
		e.tracer.TraceAnalytics(ctx, operation, userID, duration, nil)
	}
}

// dayValue is one calendar day's mean value
type dayValue struct {
	day   time.Time
	value float64
}

// dailyMeans collapses samples to one mean value per calendar day,
// returned in day order
func dailyMeans(samples []health.MetricSample) []dayValue {
	type acc struct {
		sum   float64
		count int
	}
	byDay := map[time.Time]*acc{}
	for _, s := range samples {
		day := time.Date(s.Timestamp.Year(), s.Timestamp.Month(), s.Timestamp.Day(),
			0, 0, 0, 0, time.UTC)
		a, ok := byDay[day]
		if !ok {
			a = &acc{}
			byDay[day] = a
		}
		a.sum += s.Value
		a.count++
	}

	out := make([]dayValue, 0, len(byDay))
	for day, a := range byDay {
		out = append(out, dayValue{day: day, value: a.sum / float64(a.count)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].day.Before(out[j].day) })
	return out
}

// Correlation computes the relationship between two metrics over their
// shared calendar days. Fewer than two joined days yields the zero
// result {0, 1, 0} rather than an error.
func (e *Engine) Correlation(ctx context.Context, userID int64, metricX, metricY health.MetricType,
	r health.TimeRange, method health.CorrelationMethod) (health.CorrelationResult, error) {
	defer e.observe(ctx, "correlation", userID, e.clock.Now())

	result := health.CorrelationResult{
		MetricX: metricX,
		MetricY: metricY,
		PValue:  1,
		Method:  method,
	}

	seriesX, err := e.metrics.Query(ctx, health.MetricQuery{
		UserID: userID, Type: metricX, Range: r, Order: health.OrderAscending,
	})
	if err != nil {
		return result, err
	}
	seriesY, err := e.metrics.Query(ctx, health.MetricQuery{
		UserID: userID, Type: metricY, Range: r, Order: health.OrderAscending,
	})
	if err != nil {
		return result, err
	}

	dailyX := dailyMeans(seriesX)
	dailyY := dailyMeans(seriesY)

	byDayY := make(map[time.Time]float64, len(dailyY))
	for _, d := range dailyY {
		byDayY[d.day] = d.value
	}

	var joinedX, joinedY []float64
	for _, d := range dailyX {
		if y, ok := byDayY[d.day]; ok {
			joinedX = append(joinedX, d.value)
			joinedY = append(joinedY, y)
		}
	}
	if len(joinedX) < 2 {
		return result, nil
	}

	if method == health.MethodSpearman {
		result.Correlation, result.PValue = stats.Spearman(joinedX, joinedY)
	} else {
		result.Correlation, result.PValue = stats.Pearson(joinedX, joinedY)
	}
	result.SampleSize = len(joinedX)
	return result, nil
}

// FindCorrelations scans the user's metric types for related pairs.
// With an anchor metric it correlates the anchor against every other
// type; otherwise it evaluates all unordered pairs. Pairs below minAbs
// in absolute correlation are dropped and the rest are returned by
// descending |correlation|, ties keeping enumeration order.
func (e *Engine) FindCorrelations(ctx context.Context, userID int64, anchor health.MetricType,
	minAbs float64, r health.TimeRange, method health.CorrelationMethod) ([]health.CorrelationResult, error) {
	defer e.observe(ctx, "find_correlations", userID, e.clock.Now())

	cacheKey := fmt.Sprintf("correlations:%d:%s:%v:%d:%d:%s",
		userID, anchor, minAbs, r.Start.Unix(), r.End.Unix(), method)
	if cached, ok := e.cache.Get(cacheKey); ok {
		if results, ok := cached.([]health.CorrelationResult); ok {
			return results, nil
		}
	}

	types, err := e.metrics.DistinctMetricTypes(ctx, userID)
	if err != nil {
		return nil, err
	}

	var pairs [][2]health.MetricType
	if anchor != "" {
		for _, other := range types {
			if other != anchor {
				pairs = append(pairs, [2]health.MetricType{anchor, other})
			}
		}
	} else {
		for i, x := range types {
			for _, y := range types[i+1:] {
				pairs = append(pairs, [2]health.MetricType{x, y})
			}
		}
	}

	results := make([]health.CorrelationResult, 0, len(pairs))
	for _, pair := range pairs {
		res, err := e.Correlation(ctx, userID, pair[0], pair[1], r, method)
		if err != nil {
			return nil, err
		}
		if math.Abs(res.Correlation) >= minAbs {
			results = append(results, res)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return math.Abs(results[i].Correlation) > math.Abs(results[j].Correlation)
	})

	e.cache.Set(cacheKey, results, correlationCacheTTL)
	return results, nil
}

// DetectAnomalies z-scores every sample in the lookback window against
// the window's own mean and standard deviation. Unlike the alerting
// evaluator this scores the whole window, it feeds visualization, not
// rule firing.
func (e *Engine) DetectAnomalies(ctx context.Context, userID int64, metric health.MetricType,
	sensitivity float64, lookbackDays int) (health.AnomalyReport, error) {
	defer e.observe(ctx, "detect_anomalies", userID, e.clock.Now())

	report := health.AnomalyReport{MetricType: metric, Anomalies: []health.AnomalyPoint{}}

	now := e.clock.Now()
	samples, err := e.metrics.Query(ctx, health.MetricQuery{
		UserID: userID, Type: metric,
		Range: health.LastDays(now, lookbackDays),
		Order: health.OrderAscending,
	})
	if err != nil {
		return report, err
	}
	if len(samples) == 0 {
		return report, nil
	}

	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	report.BaselineMean = stats.Mean(values)
	report.BaselineStd = stats.StdDev(values)
	if report.BaselineStd == 0 {
		return report, nil
	}

	for _, s := range samples {
		z := stats.ZScore(s.Value, report.BaselineMean, report.BaselineStd)
		if math.Abs(z) > sensitivity {
			report.Anomalies = append(report.Anomalies, health.AnomalyPoint{
				Timestamp: s.Timestamp,
				Value:     s.Value,
				ZScore:    z,
			})
		}
	}
	return report, nil
}

// Segment buckets samples by a derived calendar key and summarizes
// each bucket. Buckets are returned in natural calendar order, hours
// numerically, an unrecognized segmentBy collapses to one "all" bucket.
func (e *Engine) Segment(ctx context.Context, userID int64, metric health.MetricType,
	segmentBy string, r health.TimeRange) ([]health.SegmentSummary, error) {
	defer e.observe(ctx, "segment", userID, e.clock.Now())

	samples, err := e.metrics.Query(ctx, health.MetricQuery{
		UserID: userID, Type: metric, Range: r, Order: health.OrderAscending,
	})
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return []health.SegmentSummary{}, nil
	}

	keyOf := func(t time.Time) string { return "all" }
	var order []string
	switch segmentBy {
	case "day_of_week":
		keyOf = func(t time.Time) string { return t.Weekday().String() }
		for d := time.Monday; d <= time.Saturday; d++ {
			order = append(order, d.String())
		}
		order = append(order, time.Sunday.String())
	case "hour_of_day":
		keyOf = func(t time.Time) string { return fmt.Sprintf("%d", t.Hour()) }
		for h := 0; h < 24; h++ {
			order = append(order, fmt.Sprintf("%d", h))
		}
	case "month":
		keyOf = func(t time.Time) string { return t.Month().String() }
		for m := time.January; m <= time.December; m++ {
			order = append(order, m.String())
		}
	default:
		order = []string{"all"}
	}

	buckets := map[string][]float64{}
	for _, s := range samples {
		key := keyOf(s.Timestamp)
		buckets[key] = append(buckets[key], s.Value)
	}

	summaries := make([]health.SegmentSummary, 0, len(buckets))
	for _, key := range order {
		values, ok := buckets[key]
		if !ok {
			continue
		}
		summaries = append(summaries, health.SegmentSummary{
			Segment: key,
			Count:   len(values),
			Mean:    stats.Mean(values),
			Median:  stats.Median(values),
			Std:     stats.StdDev(values),
		})
	}
	return summaries, nil
}

// Summary computes the statistical summary of one metric over a range.
// An empty range yields a zero-valued summary.
func (e *Engine) Summary(ctx context.Context, userID int64, metric health.MetricType,
	r health.TimeRange) (health.MetricSummary, error) {
	defer e.observe(ctx, "summary", userID, e.clock.Now())

	summary := health.MetricSummary{MetricType: metric}

	samples, err := e.metrics.Query(ctx, health.MetricQuery{
		UserID: userID, Type: metric, Range: r, Order: health.OrderAscending,
	})
	if err != nil {
		return summary, err
	}
	if len(samples) == 0 {
		return summary, nil
	}

	values := make([]float64, len(samples))
	minV, maxV := samples[0].Value, samples[0].Value
	for i, s := range samples {
		values[i] = s.Value
		minV = math.Min(minV, s.Value)
		maxV = math.Max(maxV, s.Value)
	}

	summary.Count = len(values)
	summary.Mean = stats.Mean(values)
	summary.Median = stats.Median(values)
	summary.Min = minV
	summary.Max = maxV
	summary.Std = stats.StdDev(values)
	summary.Unit = samples[0].Unit
	return summary, nil
}

// Latest returns the newest sample for each of the user's metric types
func (e *Engine) Latest(ctx context.Context, userID int64) (map[health.MetricType]health.MetricSample, error) {
	defer e.observe(ctx, "latest", userID, e.clock.Now())
	return e.metrics.LatestByType(ctx, userID)
}

// Trend returns daily aggregates with a trailing moving average and a
// direction verdict. The direction comes from the OLS slope over the
// daily series; total relative change within the deadband reads as
// stable.
func (e *Engine) Trend(ctx context.Context, userID int64, metric health.MetricType,
	r health.TimeRange, window int) (TrendReport, error) {
	defer e.observe(ctx, "trend", userID, e.clock.Now())

	report := TrendReport{MetricType: metric, Direction: TrendStable, Points: []TrendPoint{}}
	if window < 1 {
		window = 7
	}

	samples, err := e.metrics.Query(ctx, health.MetricQuery{
		UserID: userID, Type: metric, Range: r, Order: health.OrderAscending,
	})
	if err != nil {
		return report, err
	}
	if len(samples) == 0 {
		return report, nil
	}
	report.Unit = samples[0].Unit

	daily := dailyMeans(samples)
	report.Points = make([]TrendPoint, len(daily))
	var trailing []float64
	for i, d := range daily {
		trailing = append(trailing, d.value)
		if len(trailing) > window {
			trailing = trailing[1:]
		}
		report.Points[i] = TrendPoint{
			Date:          d.day,
			Value:         d.value,
			MovingAverage: stats.Mean(trailing),
		}
	}

	first, last := daily[0].value, daily[len(daily)-1].value
	if first != 0 {
		report.ChangePercentage = (last - first) / first * 100
	}

	if len(daily) < 2 {
		return report, nil
	}
	x := make([]float64, len(daily))
	y := make([]float64, len(daily))
	for i, d := range daily {
		x[i] = float64(i)
		y[i] = d.value
	}
	slope := stats.Slope(x, y)
	mean := stats.Mean(y)
	if mean != 0 {
		totalChange := slope * float64(len(daily)-1) / math.Abs(mean)
		switch {
		case totalChange > trendDeadband:
			report.Direction = TrendIncreasing
		case totalChange < -trendDeadband:
			report.Direction = TrendDecreasing
		}
	}
	return report, nil
}

// periodDays maps a comparison period name to its length in days
var periodDays = map[string]int{
	"week":    7,
	"month":   30,
	"quarter": 91,
	"year":    365,
}

// ComparePeriods contrasts the metric's mean over the current period
// against the immediately preceding period of the same length
func (e *Engine) ComparePeriods(ctx context.Context, userID int64, metric health.MetricType,
	period string) (PeriodComparison, error) {
	defer e.observe(ctx, "compare_periods", userID, e.clock.Now())

	comparison := PeriodComparison{MetricType: metric, Period: period}

	days, ok := periodDays[period]
	if !ok {
		return comparison, apperrors.NewError(apperrors.ErrCodeInvalidRequest).
			WithMessage(fmt.Sprintf("unknown comparison period %q", period)).
			Build()
	}

	now := e.clock.Now()
	current, err := e.metrics.Query(ctx, health.MetricQuery{
		UserID: userID, Type: metric,
		Range: health.TimeRange{Start: now.AddDate(0, 0, -days), End: now},
		Order: health.OrderAscending,
	})
	if err != nil {
		return comparison, err
	}
	previous, err := e.metrics.Query(ctx, health.MetricQuery{
		UserID: userID, Type: metric,
		Range: health.TimeRange{Start: now.AddDate(0, 0, -2*days), End: now.AddDate(0, 0, -days)},
		Order: health.OrderAscending,
	})
	if err != nil {
		return comparison, err
	}

	comparison.CurrentPeriod = meanOf(current)
	comparison.PreviousPeriod = meanOf(previous)
	comparison.Change = comparison.CurrentPeriod - comparison.PreviousPeriod
	if comparison.PreviousPeriod != 0 {
		comparison.ChangePercentage = comparison.Change / comparison.PreviousPeriod * 100
	}
	if len(current) > 0 {
		comparison.Unit = current[0].Unit
	} else if len(previous) > 0 {
		comparison.Unit = previous[0].Unit
	}
	return comparison, nil
}

func meanOf(samples []health.MetricSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	return stats.Mean(values)
}

// Distribution returns an equal-width histogram and the standard
// percentile summary of the metric's values over the range
func (e *Engine) Distribution(ctx context.Context, userID int64, metric health.MetricType,
	r health.TimeRange, bins int) (Distribution, error) {
	defer e.observe(ctx, "distribution", userID, e.clock.Now())

	dist := Distribution{
		MetricType: metric,
		Histogram:  []HistogramBin{},
		Percentiles: map[string]float64{
			"p10": 0, "p25": 0, "p50": 0, "p75": 0, "p90": 0,
		},
	}
	if bins < 1 {
		bins = defaultBins
	}

	samples, err := e.metrics.Query(ctx, health.MetricQuery{
		UserID: userID, Type: metric, Range: r, Order: health.OrderAscending,
	})
	if err != nil {
		return dist, err
	}
	if len(samples) == 0 {
		return dist, nil
	}

	values := make([]float64, len(samples))
	minV, maxV := samples[0].Value, samples[0].Value
	for i, s := range samples {
		values[i] = s.Value
		minV = math.Min(minV, s.Value)
		maxV = math.Max(maxV, s.Value)
	}

	dist.Percentiles["p10"] = stats.Percentile(values, 10)
	dist.Percentiles["p25"] = stats.Percentile(values, 25)
	dist.Percentiles["p50"] = stats.Percentile(values, 50)
	dist.Percentiles["p75"] = stats.Percentile(values, 75)
	dist.Percentiles["p90"] = stats.Percentile(values, 90)

	if minV == maxV {
		dist.Histogram = []HistogramBin{{Low: minV, High: maxV, Count: len(values)}}
		return dist, nil
	}

	width := (maxV - minV) / float64(bins)
	counts := make([]int, bins)
	for _, v := range values {
		idx := int((v - minV) / width)
		if idx >= bins {
			idx = bins - 1 // the maximum lands in the last bin
		}
		counts[idx]++
	}
	dist.Histogram = make([]HistogramBin, bins)
	for i, count := range counts {
		dist.Histogram[i] = HistogramBin{
			Low:   minV + float64(i)*width,
			High:  minV + float64(i+1)*width,
			Count: count,
		}
	}
	return dist, nil
}
