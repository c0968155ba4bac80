// Package server exposes the HTTP API: alert management, on-demand
// evaluation passes, analytics queries and the operational endpoints.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hygieia/hygieia/internal/analytics"
	"github.com/hygieia/hygieia/internal/config"
	"github.com/hygieia/hygieia/internal/engine"
	"github.com/hygieia/hygieia/internal/health"
	"github.com/hygieia/hygieia/internal/monitoring"
)

const (
	serverDefaultRate  = 20.0 // requests per second per client
	serverDefaultBurst = 40

	readHeaderTimeout = 30 * time.Second
)

// PassRunner triggers one evaluation pass on demand
type PassRunner interface {
	EvaluatePass(ctx context.Context) (engine.PassResult, error)
}

// Alerter is the alert interaction surface the API needs
type Alerter interface {
	AcknowledgeAlert(ctx context.Context, alertID string, userID int64) (*health.Alert, error)
}

// Server is the HTTP front of the engine
type Server struct {
	*http.Server
	config      *config.Config
	logger      *slog.Logger
	engine      PassRunner
	alerter     Alerter
	alerts      health.AlertStore
	analytics   *analytics.Engine
	metrics     *monitoring.Metrics
	healthMon   *monitoring.HealthMonitor
	rateLimiter *HTTPRateLimiter
}

// New wires the API routes. The caller owns the lifecycle of every
// dependency; the server only serves requests against them.
func New(cfg *config.Config, eng PassRunner, alerter Alerter, alerts health.AlertStore,
	analyticsEngine *analytics.Engine, metrics *monitoring.Metrics,
	healthMon *monitoring.HealthMonitor, logger *slog.Logger) *Server {

	s := &Server{
		config:    cfg,
		logger:    logger,
		engine:    eng,
		alerter:   alerter,
		alerts:    alerts,
		analytics: analyticsEngine,
		metrics:   metrics,
		healthMon: healthMon,
		rateLimiter: NewHTTPRateLimiter(&RateLimiterConfig{
			DefaultRate:  serverDefaultRate,
			DefaultBurst: serverDefaultBurst,
			PerIP:        true,
			PerEndpoint:  true,
		}),
	}

	s.Server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler builds the route table. Exposed separately so tests can drive
// the mux through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Operational endpoints bypass rate limiting.
	mux.Handle("GET /health", s.healthMon.Handler())
	mux.Handle("GET /metrics", s.metrics.Handler())

	api := func(h http.HandlerFunc) http.Handler {
		return RateLimitMiddleware(s.rateLimiter)(h)
	}

	mux.Handle("GET /api/v1/alerts", api(s.handleListAlerts))
	mux.Handle("POST /api/v1/alerts/{id}/acknowledge", api(s.handleAcknowledgeAlert))
	mux.Handle("POST /api/v1/alerts/check", api(s.handleEvaluatePass))

	mux.Handle("GET /api/v1/analytics/correlation", api(s.handleCorrelation))
	mux.Handle("GET /api/v1/analytics/correlations", api(s.handleFindCorrelations))
	mux.Handle("GET /api/v1/analytics/anomalies/{metric}", api(s.handleAnomalies))
	mux.Handle("GET /api/v1/analytics/segments/{metric}", api(s.handleSegments))
	mux.Handle("GET /api/v1/analytics/summary/{metric}", api(s.handleSummary))
	mux.Handle("GET /api/v1/analytics/latest", api(s.handleLatest))

	mux.Handle("GET /api/v1/trends/{metric}", api(s.handleTrend))
	mux.Handle("GET /api/v1/trends/compare/{metric}", api(s.handleComparePeriods))
	mux.Handle("GET /api/v1/trends/distribution/{metric}", api(s.handleDistribution))

	return s.loggingMiddleware(mux)
}

// Start runs the HTTP listener until shutdown
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "port", s.config.Port)
	return s.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}

// statusRecorder captures the response code for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", getClientIP(r))
	})
}
