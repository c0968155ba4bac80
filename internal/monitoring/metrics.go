// Package monitoring provides observability for the health engine:
// Prometheus metrics, distributed tracing and component health checks.
package monitoring

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus integration for the engine and its collaborators
type Metrics struct {
	// Evaluation pass metrics
	passesTotal     prometheus.Counter
	passDuration    prometheus.Histogram
	rulesEvaluated  prometheus.Counter
	alertsTriggered *prometheus.CounterVec
	verdicts        *prometheus.CounterVec
	evaluationErrors *prometheus.CounterVec

	// Worker pool metrics
	queueDepth prometheus.Gauge

	// Notification metrics
	notificationsTotal *prometheus.CounterVec

	// Analytics metrics
	analyticsDuration *prometheus.HistogramVec

	// Registry
	registry *prometheus.Registry
	logger   *slog.Logger
}

// NewMetrics creates a new Prometheus metrics collector
func NewMetrics(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		logger:   logger,
	}

	m.initEvaluationMetrics()
	m.initPoolMetrics()
	m.initNotificationMetrics()
	m.initAnalyticsMetrics()
	m.registerMetrics()

	return m
}

// initEvaluationMetrics initializes rule-evaluation metrics
func (m *Metrics) initEvaluationMetrics() {
	m.passesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hygieia",
			Name:      "evaluation_passes_total",
			Help:      "Total number of rule evaluation passes",
		},
	)

	m.passDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hygieia",
			Name:      "evaluation_pass_duration_seconds",
			Help:      "Rule evaluation pass duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	m.rulesEvaluated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hygieia",
			Name:      "rules_evaluated_total",
			Help:      "Total number of rules evaluated",
		},
	)

	m.alertsTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hygieia",
			Name:      "alerts_triggered_total",
			Help:      "Total number of alerts triggered",
		},
		[]string{"priority"},
	)

	m.verdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hygieia",
			Name:      "evaluator_verdicts_total",
			Help:      "Evaluator verdicts by alert type",
		},
		[]string{"alert_type", "verdict"},
	)

	m.evaluationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hygieia",
			Name:      "evaluation_errors_total",
			Help:      "Evaluation or dispatch failures by alert type",
		},
		[]string{"alert_type"},
	)
}

// initPoolMetrics initializes worker pool metrics
func (m *Metrics) initPoolMetrics() {
	m.queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hygieia",
			Name:      "evaluation_queue_depth",
			Help:      "Current number of queued rule evaluations",
		},
	)
}

// initNotificationMetrics initializes notification delivery metrics
func (m *Metrics) initNotificationMetrics() {
	m.notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hygieia",
			Name:      "notifications_total",
			Help:      "Notification send attempts by method and outcome",
		},
		[]string{"method", "status"},
	)
}

// initAnalyticsMetrics initializes analytics request metrics
func (m *Metrics) initAnalyticsMetrics() {
	m.analyticsDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hygieia",
			Name:      "analytics_operation_duration_seconds",
			Help:      "Analytics operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(
		m.passesTotal,
		m.passDuration,
		m.rulesEvaluated,
		m.alertsTriggered,
		m.verdicts,
		m.evaluationErrors,
		m.queueDepth,
		m.notificationsTotal,
		m.analyticsDuration,
	)
}

// RecordPass records a completed evaluation pass
func (m *Metrics) RecordPass(durationSeconds float64) {
	m.passesTotal.Inc()
	m.passDuration.Observe(durationSeconds)
}

// RecordRuleEvaluated increments the evaluated-rules counter
func (m *Metrics) RecordRuleEvaluated() {
	m.rulesEvaluated.Inc()
}

// RecordVerdict records an evaluator verdict for an alert type
func (m *Metrics) RecordVerdict(alertType string, matched bool) {
	verdict := "no_match"
	if matched {
		verdict = "match"
	}
	m.verdicts.WithLabelValues(alertType, verdict).Inc()
}

// RecordAlertTriggered records a triggered alert by priority
func (m *Metrics) RecordAlertTriggered(priority string) {
	m.alertsTriggered.WithLabelValues(priority).Inc()
}

// RecordEvaluationError records an evaluation or dispatch failure
func (m *Metrics) RecordEvaluationError(alertType string) {
	m.evaluationErrors.WithLabelValues(alertType).Inc()
}

// SetQueueDepth updates the evaluation queue depth gauge
func (m *Metrics) SetQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

// RecordNotification records a notification delivery attempt
func (m *Metrics) RecordNotification(method string, success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	m.notificationsTotal.WithLabelValues(method, status).Inc()
}

// RecordAnalytics records the duration of one analytics operation
func (m *Metrics) RecordAnalytics(operation string, durationSeconds float64) {
	m.analyticsDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// Registry exposes the underlying registry for testing
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the metrics in Prometheus format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
