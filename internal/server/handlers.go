package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	apperrors "github.com/hygieia/hygieia/internal/errors"
	"github.com/hygieia/hygieia/internal/health"
)

// Query parameter defaults
const (
	defaultRangeDays      = 30
	defaultSensitivity    = 2.0
	defaultMinCorrelation = 0.3
	defaultTrendWindow    = 7
)

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	alerts, err := s.alerts.ListActiveAlerts(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if alerts == nil {
		alerts = []health.Alert{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	alert, err := s.alerter.AcknowledgeAlert(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleEvaluatePass(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.EvaluatePass(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metricX := health.MetricType(r.URL.Query().Get("metric_x"))
	metricY := health.MetricType(r.URL.Query().Get("metric_y"))
	if metricX == "" || metricY == "" {
		s.writeError(w, invalidParam("metric_x and metric_y are required"))
		return
	}
	method, err := correlationMethod(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.analytics.Correlation(r.Context(), userID, metricX, metricY,
		s.queryRange(r), method)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFindCorrelations(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	method, err := correlationMethod(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	anchor := health.MetricType(r.URL.Query().Get("metric"))
	minAbs := queryFloat(r, "min_correlation", defaultMinCorrelation)

	results, err := s.analytics.FindCorrelations(r.Context(), userID, anchor, minAbs,
		s.queryRange(r), method)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if results == nil {
		results = []health.CorrelationResult{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"correlations": results,
		"count":        len(results),
	})
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metric := health.MetricType(r.PathValue("metric"))
	sensitivity := queryFloat(r, "sensitivity", defaultSensitivity)
	days := queryInt(r, "days", defaultRangeDays)

	report, err := s.analytics.DetectAnomalies(r.Context(), userID, metric, sensitivity, days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metric := health.MetricType(r.PathValue("metric"))
	segmentBy := r.URL.Query().Get("segment_by")

	segments, err := s.analytics.Segment(r.Context(), userID, metric, segmentBy, s.queryRange(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"metric_type": metric,
		"segment_by":  segmentBy,
		"segments":    segments,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metric := health.MetricType(r.PathValue("metric"))

	summary, err := s.analytics.Summary(r.Context(), userID, metric, s.queryRange(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	latest, err := s.analytics.Latest(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metric := health.MetricType(r.PathValue("metric"))
	window := queryInt(r, "window", defaultTrendWindow)

	report, err := s.analytics.Trend(r.Context(), userID, metric, s.queryRange(r), window)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleComparePeriods(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metric := health.MetricType(r.PathValue("metric"))
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "week"
	}

	comparison, err := s.analytics.ComparePeriods(r.Context(), userID, metric, period)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, comparison)
}

func (s *Server) handleDistribution(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metric := health.MetricType(r.PathValue("metric"))
	bins := queryInt(r, "bins", 0) // 0 lets the engine pick its default

	dist, err := s.analytics.Distribution(r.Context(), userID, metric, s.queryRange(r), bins)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dist)
}

// queryRange builds the trailing time range from the days parameter
func (s *Server) queryRange(r *http.Request) health.TimeRange {
	return health.LastDays(s.analytics.Now(), queryInt(r, "days", defaultRangeDays))
}

// requireUserID reads the mandatory user_id query parameter
func requireUserID(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		return 0, invalidParam("user_id is required")
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID < 1 {
		return 0, invalidParam("user_id must be a positive integer")
	}
	return userID, nil
}

// correlationMethod reads the optional method parameter, defaulting to pearson
func correlationMethod(r *http.Request) (health.CorrelationMethod, error) {
	switch raw := r.URL.Query().Get("method"); raw {
	case "", string(health.MethodPearson):
		return health.MethodPearson, nil
	case string(health.MethodSpearman):
		return health.MethodSpearman, nil
	default:
		return "", invalidParam(fmt.Sprintf("unknown correlation method %q", raw))
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

func queryFloat(r *http.Request, key string, fallback float64) float64 {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return fallback
}

func invalidParam(message string) error {
	return apperrors.NewError(apperrors.ErrCodeInvalidRequest).
		WithMessage(message).
		Build()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

// writeError maps service errors to their HTTP status; anything else is
// an opaque 500 so internals never leak to the client
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var svcErr *apperrors.ServiceError
	if !errors.As(err, &svcErr) {
		svcErr = apperrors.NewError(apperrors.ErrCodeInternalError).
			WithMessage("internal server error").
			WithCause(err).
			Build()
	}
	if svcErr.HTTPStatusCode() >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
	}
	s.writeJSON(w, svcErr.HTTPStatusCode(), svcErr.ToErrorResponse())
}
