package monitoring

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

// Health statuses
const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// checkTimeout bounds a single component check
const checkTimeout = 5 * time.Second

// HealthCheck represents a health check result for one component
type HealthCheck struct {
	Name        string       `json:"name"`
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastChecked time.Time    `json:"last_checked"`
	DurationMS  int64        `json:"duration_ms"`
}

// HealthReport represents the overall health report
type HealthReport struct {
	OverallStatus HealthStatus           `json:"overall_status"`
	Timestamp     time.Time              `json:"timestamp"`
	Version       string                 `json:"version"`
	Checks        map[string]HealthCheck `json:"checks"`
	SystemInfo    map[string]any         `json:"system_info"`
}

// HealthChecker implements a health check for a specific component
type HealthChecker func(ctx context.Context) error

// HealthMonitor manages health checks for all components
type HealthMonitor struct {
	logger    *slog.Logger
	checks    map[string]HealthChecker
	mu        sync.RWMutex
	version   string
	startTime time.Time
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(logger *slog.Logger, version string) *HealthMonitor {
	return &HealthMonitor{
		logger:    logger,
		checks:    make(map[string]HealthChecker),
		version:   version,
		startTime: time.Now(),
	}
}

// Register adds a named component check
func (hm *HealthMonitor) Register(name string, check HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[name] = check
}

// Report runs all registered checks and aggregates the results
func (hm *HealthMonitor) Report(ctx context.Context) HealthReport {
	hm.mu.RLock()
	checks := make(map[string]HealthChecker, len(hm.checks))
	for name, check := range hm.checks {
		checks[name] = check
	}
	hm.mu.RUnlock()

	report := HealthReport{
		OverallStatus: HealthStatusHealthy,
		Timestamp:     time.Now(),
		Version:       hm.version,
		Checks:        make(map[string]HealthCheck, len(checks)),
		SystemInfo: map[string]any{
			"goroutines":     runtime.NumGoroutine(),
			"uptime_seconds": int64(time.Since(hm.startTime).Seconds()),
		},
	}

	for name, check := range checks {
		result := hm.runCheck(ctx, name, check)
		report.Checks[name] = result
		if result.Status == HealthStatusUnhealthy {
			report.OverallStatus = HealthStatusUnhealthy
		} else if result.Status == HealthStatusDegraded && report.OverallStatus == HealthStatusHealthy {
			report.OverallStatus = HealthStatusDegraded
		}
	}

	return report
}

// runCheck executes one component check with a timeout
func (hm *HealthMonitor) runCheck(ctx context.Context, name string, check HealthChecker) HealthCheck {
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := check(checkCtx)
	duration := time.Since(start)

	result := HealthCheck{
		Name:        name,
		Status:      HealthStatusHealthy,
		LastChecked: start,
		DurationMS:  duration.Milliseconds(),
	}

	if err != nil {
		result.Status = HealthStatusUnhealthy
		result.Message = err.Error()
		hm.logger.Warn("Health check failed", "check", name, "error", err)
	}

	return result
}

// Handler returns an HTTP handler serving the health report as JSON
func (hm *HealthMonitor) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := hm.Report(r.Context())

		status := http.StatusOK
		if report.OverallStatus == HealthStatusUnhealthy {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(report); err != nil {
			hm.logger.Error("Failed to encode health report", "error", err)
		}
	})
}
