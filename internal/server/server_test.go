package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hygieia/hygieia/internal/analytics"
	"github.com/hygieia/hygieia/internal/cache"
	"github.com/hygieia/hygieia/internal/config"
	"github.com/hygieia/hygieia/internal/engine"
	apperrors "github.com/hygieia/hygieia/internal/errors"
	"github.com/hygieia/hygieia/internal/health"
	"github.com/hygieia/hygieia/internal/monitoring"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeRunner struct {
	result engine.PassResult
	err    error
	calls  int
}

func (r *fakeRunner) EvaluatePass(context.Context) (engine.PassResult, error) {
	r.calls++
	return r.result, r.err
}

type fakeAlerter struct {
	alerts map[string]*health.Alert
}

func (a *fakeAlerter) AcknowledgeAlert(_ context.Context, alertID string, userID int64) (*health.Alert, error) {
	alert, ok := a.alerts[alertID]
	if !ok || alert.UserID != userID {
		return nil, apperrors.NotFound("alert")
	}
	alert.Acknowledged = true
	alert.IsActive = false
	return alert, nil
}

type fakeAlertStore struct {
	active []health.Alert
	err    error
}

func (s *fakeAlertStore) InsertAlert(context.Context, *health.Alert) error { return nil }
func (s *fakeAlertStore) InsertHistory(context.Context, *health.AlertHistory) error {
	return nil
}
func (s *fakeAlertStore) CommitTrigger(context.Context, *health.Alert, *health.AlertHistory, int, time.Time) error {
	return nil
}
func (s *fakeAlertStore) UpdateDeliveryStatus(context.Context, string, map[string]string, time.Time) error {
	return nil
}
func (s *fakeAlertStore) GetAlert(context.Context, string, int64) (*health.Alert, error) {
	return nil, nil
}
func (s *fakeAlertStore) AcknowledgeAlert(context.Context, string, int64) (*health.Alert, error) {
	return nil, nil
}
func (s *fakeAlertStore) ListActiveAlerts(_ context.Context, userID int64) ([]health.Alert, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []health.Alert
	for _, a := range s.active {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeMetricStore struct {
	samples []health.MetricSample
}

func (s *fakeMetricStore) Query(_ context.Context, q health.MetricQuery) ([]health.MetricSample, error) {
	var out []health.MetricSample
	for _, sample := range s.samples {
		if sample.UserID == q.UserID && sample.Type == q.Type && q.Range.Contains(sample.Timestamp) {
			out = append(out, sample)
		}
	}
	return out, nil
}

func (s *fakeMetricStore) DistinctMetricTypes(context.Context, int64) ([]health.MetricType, error) {
	return nil, nil
}

func (s *fakeMetricStore) LatestByType(_ context.Context, userID int64) (map[health.MetricType]health.MetricSample, error) {
	out := map[health.MetricType]health.MetricSample{}
	for _, sample := range s.samples {
		if sample.UserID != userID {
			continue
		}
		if cur, ok := out[sample.Type]; !ok || sample.Timestamp.After(cur.Timestamp) {
			out[sample.Type] = sample
		}
	}
	return out, nil
}

type testServer struct {
	handler http.Handler
	runner  *fakeRunner
	alerts  *fakeAlertStore
}

func newTestServer(t *testing.T, metricStore *fakeMetricStore, alerter *fakeAlerter,
	alerts *fakeAlertStore) *testServer {
	t.Helper()

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	c := cache.NewMemoryCache(32)
	t.Cleanup(c.Stop)

	metrics := monitoring.NewMetrics(logger)
	analyticsEngine := analytics.New(metricStore, c, metrics, nil, &fakeClock{now: now}, logger)
	healthMon := monitoring.NewHealthMonitor(logger, "test")

	runner := &fakeRunner{result: engine.PassResult{RulesEvaluated: 2, AlertsTriggered: 1}}

	cfg := &config.Config{Port: "8080"}
	srv := New(cfg, runner, alerter, alerts, analyticsEngine, metrics, healthMon, logger)

	return &testServer{handler: srv.Handler(), runner: runner, alerts: alerts}
}

func (ts *testServer) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, &fakeMetricStore{}, &fakeAlerter{}, &fakeAlertStore{})

	rec := ts.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["overall_status"])
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer(t, &fakeMetricStore{}, &fakeAlerter{}, &fakeAlertStore{})

	rec := ts.do(t, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hygieia_")
}

func TestServer_ListAlerts(t *testing.T) {
	alerts := &fakeAlertStore{active: []health.Alert{
		{ID: "a-1", UserID: 1, Title: "High heart rate", IsActive: true},
		{ID: "a-2", UserID: 2, Title: "Other user", IsActive: true},
	}}
	ts := newTestServer(t, &fakeMetricStore{}, &fakeAlerter{}, alerts)

	rec := ts.do(t, http.MethodGet, "/api/v1/alerts?user_id=1")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])

	list, ok := body["alerts"].([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	first := list[0].(map[string]any)
	assert.Equal(t, "a-1", first["id"])
}

func TestServer_ListAlerts_EmptyIsArray(t *testing.T) {
	ts := newTestServer(t, &fakeMetricStore{}, &fakeAlerter{}, &fakeAlertStore{})

	rec := ts.do(t, http.MethodGet, "/api/v1/alerts?user_id=9")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alerts":[]`)
}

func TestServer_ListAlerts_MissingUserID(t *testing.T) {
	ts := newTestServer(t, &fakeMetricStore{}, &fakeAlerter{}, &fakeAlertStore{})

	rec := ts.do(t, http.MethodGet, "/api/v1/alerts")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, string(apperrors.ErrCodeInvalidRequest), body["error"])
}

func TestServer_AcknowledgeAlert(t *testing.T) {
	alerter := &fakeAlerter{alerts: map[string]*health.Alert{
		"a-1": {ID: "a-1", UserID: 1, IsActive: true},
	}}
	ts := newTestServer(t, &fakeMetricStore{}, alerter, &fakeAlertStore{})

	rec := ts.do(t, http.MethodPost, "/api/v1/alerts/a-1/acknowledge?user_id=1")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["acknowledged"])
}

func TestServer_AcknowledgeAlert_NotFound(t *testing.T) {
	ts := newTestServer(t, &fakeMetricStore{}, &fakeAlerter{}, &fakeAlertStore{})

	rec := ts.do(t, http.MethodPost, "/api/v1/alerts/missing/acknowledge?user_id=1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, string(apperrors.ErrCodeNotFound), body["error"])
}

func TestServer_ManualEvaluationPass(t *testing.T) {
	ts := newTestServer(t, &fakeMetricStore{}, &fakeAlerter{}, &fakeAlertStore{})

	rec := ts.do(t, http.MethodPost, "/api/v1/alerts/check")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.runner.calls)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["rules_evaluated"])
	assert.Equal(t, float64(1), body["alerts_triggered"])
}

func TestServer_ManualEvaluationPass_Failure(t *testing.T) {
	ts := newTestServer(t, &fakeMetricStore{}, &fakeAlerter{}, &fakeAlertStore{})
	ts.runner.err = apperrors.NewError(apperrors.ErrCodeDatabaseError).
		WithMessage("rules unavailable").Build()

	rec := ts.do(t, http.MethodPost, "/api/v1/alerts/check")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_Summary(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	store := &fakeMetricStore{}
	for i, v := range []float64{80, 82, 84} {
		store.samples = append(store.samples, health.MetricSample{
			UserID: 1, Type: health.MetricWeight, Value: v, Unit: "kg",
			Timestamp: now.AddDate(0, 0, -5+i),
		})
	}
	ts := newTestServer(t, store, &fakeAlerter{}, &fakeAlertStore{})

	rec := ts.do(t, http.MethodGet, "/api/v1/analytics/summary/weight?user_id=1&days=10")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(3), body["count"])
	assert.Equal(t, float64(82), body["mean"])
	assert.Equal(t, "kg", body["unit"])
}

func TestServer_Correlation_MissingMetrics(t *testing.T) {
	ts := newTestServer(t, &fakeMetricStore{}, &fakeAlerter{}, &fakeAlertStore{})

	rec := ts.do(t, http.MethodGet, "/api/v1/analytics/correlation?user_id=1&metric_x=steps")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Correlation_UnknownMethod(t *testing.T) {
	ts := newTestServer(t, &fakeMetricStore{}, &fakeAlerter{}, &fakeAlertStore{})

	rec := ts.do(t, http.MethodGet,
		"/api/v1/analytics/correlation?user_id=1&metric_x=steps&metric_y=calories&method=kendall")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Correlation(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	store := &fakeMetricStore{}
	for i := 0; i < 5; i++ {
		at := now.AddDate(0, 0, -6+i)
		store.samples = append(store.samples,
			health.MetricSample{UserID: 1, Type: health.MetricSteps, Value: float64(i + 1), Timestamp: at},
			health.MetricSample{UserID: 1, Type: health.MetricCalories, Value: float64(2 * (i + 1)), Timestamp: at},
		)
	}
	ts := newTestServer(t, store, &fakeAlerter{}, &fakeAlertStore{})

	rec := ts.do(t, http.MethodGet,
		"/api/v1/analytics/correlation?user_id=1&metric_x=steps&metric_y=calories&days=10")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.InDelta(t, 1.0, body["correlation"].(float64), 1e-9)
	assert.Equal(t, float64(5), body["sample_size"])
}

func TestServer_ComparePeriods_UnknownPeriod(t *testing.T) {
	ts := newTestServer(t, &fakeMetricStore{}, &fakeAlerter{}, &fakeAlertStore{})

	rec := ts.do(t, http.MethodGet, "/api/v1/trends/compare/steps?user_id=1&period=fortnight")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Trend(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	store := &fakeMetricStore{}
	for i, v := range []float64{80, 82, 84, 86} {
		store.samples = append(store.samples, health.MetricSample{
			UserID: 1, Type: health.MetricWeight, Value: v, Unit: "kg",
			Timestamp: now.AddDate(0, 0, -6+i),
		})
	}
	ts := newTestServer(t, store, &fakeAlerter{}, &fakeAlertStore{})

	rec := ts.do(t, http.MethodGet, "/api/v1/trends/weight?user_id=1&days=10&window=2")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "increasing", body["trend_direction"])
	data, ok := body["data"].([]any)
	require.True(t, ok)
	assert.Len(t, data, 4)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &fakeMetricStore{}, &fakeAlerter{}, &fakeAlertStore{})

	rec := ts.do(t, http.MethodDelete, "/api/v1/alerts?user_id=1")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimiter_RejectsOverLimit(t *testing.T) {
	limiter := NewHTTPRateLimiter(&RateLimiterConfig{
		DefaultRate:  1,
		DefaultBurst: 2,
		PerIP:        true,
		PerEndpoint:  true,
	})
	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_SeparateBucketsPerIP(t *testing.T) {
	limiter := NewHTTPRateLimiter(&RateLimiterConfig{
		DefaultRate:  1,
		DefaultBurst: 1,
		PerIP:        true,
		PerEndpoint:  true,
	})

	first := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	second := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	second.RemoteAddr = "10.0.0.2:1234"

	assert.True(t, limiter.Allow(first))
	assert.False(t, limiter.Allow(first), "same client exhausted its bucket")
	assert.True(t, limiter.Allow(second), "other clients are unaffected")
}
