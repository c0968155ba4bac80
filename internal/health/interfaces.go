package health

import (
	"context"
	"time"
)

// SortOrder controls the timestamp ordering of a metric query
type SortOrder string

// Sort orders
const (
	OrderAscending  SortOrder = "asc"
	OrderDescending SortOrder = "desc"
)

// MetricQuery describes a time-ranged, filtered read of one user's samples
type MetricQuery struct {
	UserID int64
	Type   MetricType
	Range  TimeRange
	Order  SortOrder
	Limit  int // 0 means no limit
}

// MetricStore provides read-only access to metric samples.
// Implementations must be safe for concurrent reads.
type MetricStore interface {
	// Query returns samples matching the query in the requested order
	Query(ctx context.Context, q MetricQuery) ([]MetricSample, error)
	// DistinctMetricTypes returns the metric types present for a user
	DistinctMetricTypes(ctx context.Context, userID int64) ([]MetricType, error)
	// LatestByType returns the newest sample for each of the user's metric types
	LatestByType(ctx context.Context, userID int64) (map[MetricType]MetricSample, error)
}

// RuleStore provides the rules to evaluate and accepts trigger-state updates
type RuleStore interface {
	// ListActiveRules returns every rule with is_active=true, across all users
	ListActiveRules(ctx context.Context) ([]AlertRule, error)
	// UpdateTriggerState persists a rule's trigger counter and timestamp
	UpdateTriggerState(ctx context.Context, ruleID int64, triggerCount int, lastTriggered time.Time) error
}

// AlertSink accepts the records produced when a rule fires
type AlertSink interface {
	// InsertAlert persists a new active alert
	InsertAlert(ctx context.Context, alert *Alert) error
	// InsertHistory persists a new audit record
	InsertHistory(ctx context.Context, history *AlertHistory) error
	// CommitTrigger persists the alert, the history entry and the rule's
	// trigger-state update as one unit; either all three land or none do
	CommitTrigger(ctx context.Context, alert *Alert, history *AlertHistory, triggerCount int, lastTriggered time.Time) error
	// UpdateDeliveryStatus records per-method delivery outcomes on a history entry
	UpdateDeliveryStatus(ctx context.Context, historyID string, status map[string]string, deliveredAt time.Time) error
}

// AlertStore extends the sink with the reads and user interactions the
// API surface needs
type AlertStore interface {
	AlertSink
	// GetAlert returns the user's alert with the given id, or nil when absent
	GetAlert(ctx context.Context, alertID string, userID int64) (*Alert, error)
	// AcknowledgeAlert marks the alert acknowledged and inactive.
	// Returns nil when no such alert belongs to the user.
	AcknowledgeAlert(ctx context.Context, alertID string, userID int64) (*Alert, error)
	// ListActiveAlerts returns the user's currently-active alerts, newest first
	ListActiveAlerts(ctx context.Context, userID int64) ([]Alert, error)
}

// NotificationDispatcher delivers a trigger event over one channel.
// Failures are reported in the outcome, never returned as errors, so a
// broken channel cannot abort an evaluation pass.
type NotificationDispatcher interface {
	Send(ctx context.Context, method DeliveryMethod, event TriggerEvent) DeliveryOutcome
}

// Clock supplies the current time for quiet-hours and baseline windows.
// Now is expected to return a time in the engine's configured location;
// injected so tests can control time deterministically.
type Clock interface {
	Now() time.Time
}
