// Package health provides the domain types and collaborator interfaces
// shared across the rule-evaluation and analytics engines.
package health

import "time"

// MetricType identifies what a sample measures
type MetricType string

// Cardiovascular metrics
const (
	MetricHeartRate            MetricType = "heart_rate"
	MetricHeartRateVariability MetricType = "hrv"
	MetricRestingHeartRate     MetricType = "resting_hr"
	MetricVO2Max               MetricType = "vo2_max"
	MetricBPSystolic           MetricType = "bp_systolic"
	MetricBPDiastolic          MetricType = "bp_diastolic"
)

// Sleep metrics
const (
	MetricSleepDuration    MetricType = "sleep_duration"
	MetricSleepDeep        MetricType = "sleep_deep"
	MetricSleepREM         MetricType = "sleep_rem"
	MetricSleepLight       MetricType = "sleep_light"
	MetricSleepAwake       MetricType = "sleep_awake"
	MetricSleepScore       MetricType = "sleep_score"
	MetricSleepTemperature MetricType = "sleep_temperature"
)

// Activity metrics
const (
	MetricSteps         MetricType = "steps"
	MetricDistance      MetricType = "distance"
	MetricCalories      MetricType = "calories"
	MetricActiveMinutes MetricType = "active_minutes"
	MetricFloorsClimbed MetricType = "floors_climbed"
)

// Body composition metrics
const (
	MetricWeight       MetricType = "weight"
	MetricBodyFatPct   MetricType = "body_fat_pct"
	MetricMuscleMass   MetricType = "muscle_mass"
	MetricBMI          MetricType = "bmi"
	MetricMetabolicAge MetricType = "metabolic_age"
)

// Stress and recovery metrics
const (
	MetricStressLevel    MetricType = "stress_level"
	MetricBodyBattery    MetricType = "body_battery"
	MetricReadinessScore MetricType = "readiness_score"
	MetricRecoveryTime   MetricType = "recovery_time"
)

// Training metrics
const (
	MetricTrainingLoad     MetricType = "training_load"
	MetricIntensityMinutes MetricType = "intensity_minutes"
)

// Environmental metrics
const (
	MetricTemperature        MetricType = "temperature"
	MetricHumidity           MetricType = "humidity"
	MetricAirQualityIndex    MetricType = "aqi"
	MetricUVIndex            MetricType = "uv_index"
	MetricBarometricPressure MetricType = "barometric_pressure"
)

// environmentalMetrics is the closed set accepted by environmental rules
var environmentalMetrics = map[MetricType]bool{
	MetricTemperature:        true,
	MetricHumidity:           true,
	MetricAirQualityIndex:    true,
	MetricUVIndex:            true,
	MetricBarometricPressure: true,
}

// IsEnvironmental reports whether the metric type measures the environment
// rather than the user
func (m MetricType) IsEnvironmental() bool {
	return environmentalMetrics[m]
}

// SampleOrigin distinguishes synced from hand-entered samples
type SampleOrigin string

// Sample origins
const (
	OriginAutomatic SampleOrigin = "automatic"
	OriginManual    SampleOrigin = "manual"
)

// MetricSample is one time-series reading. Samples are immutable once synced;
// (UserID, Type, Source, Timestamp) identifies a sample for dedup at the store layer.
type MetricSample struct {
	ID           int64        `json:"id" db:"id"`
	UserID       int64        `json:"user_id" db:"user_id"`
	Type         MetricType   `json:"metric_type" db:"metric_type"`
	Source       string       `json:"source" db:"source"`
	Value        float64      `json:"value" db:"value"`
	Unit         string       `json:"unit" db:"unit"`
	Timestamp    time.Time    `json:"timestamp" db:"timestamp"`
	QualityScore *float64     `json:"quality_score,omitempty" db:"quality_score"`
	Origin       SampleOrigin `json:"origin" db:"origin"`
}

// AlertType selects the condition evaluator for a rule
type AlertType string

// Alert types
const (
	AlertTypeThreshold     AlertType = "threshold"
	AlertTypeTrend         AlertType = "trend"
	AlertTypeAnomaly       AlertType = "anomaly"
	AlertTypeCorrelation   AlertType = "correlation"
	AlertTypeMissingData   AlertType = "missing_data"
	AlertTypeEnvironmental AlertType = "environmental"
)

// Priority ranks the urgency of an alert
type Priority string

// Alert priorities
const (
	PriorityInfo     Priority = "info"
	PriorityWarning  Priority = "warning"
	PriorityCritical Priority = "critical"
)

// DeliveryMethod names a notification channel
type DeliveryMethod string

// Delivery methods
const (
	DeliveryInApp DeliveryMethod = "in_app"
	DeliveryEmail DeliveryMethod = "email"
	DeliverySMS   DeliveryMethod = "sms"
	DeliveryPush  DeliveryMethod = "push"
)

// AlertRule is a user-defined rule evaluated on every pass.
// Only LastTriggered and TriggerCount are mutated by the engine;
// everything else belongs to the rule-management API.
type AlertRule struct {
	ID              int64            `json:"id"`
	UserID          int64            `json:"user_id"`
	Name            string           `json:"name"`
	Description     string           `json:"description,omitempty"`
	Type            AlertType        `json:"alert_type"`
	Priority        Priority         `json:"priority"`
	Conditions      map[string]any   `json:"conditions"`
	DeliveryMethods []DeliveryMethod `json:"delivery_methods"`
	QuietHoursStart *int             `json:"quiet_hours_start,omitempty"` // hour of day 0-23
	QuietHoursEnd   *int             `json:"quiet_hours_end,omitempty"`   // hour of day 0-23
	WeekdaysOnly    bool             `json:"weekdays_only"`
	IsActive        bool             `json:"is_active"`
	LastTriggered   *time.Time       `json:"last_triggered,omitempty"`
	TriggerCount    int              `json:"trigger_count"`
}

// TriggerEvent is the ephemeral record of a positive verdict. It is produced
// by the rule engine and consumed exactly once by the dispatcher.
type TriggerEvent struct {
	RuleID      int64              `json:"rule_id"`
	UserID      int64              `json:"user_id"`
	Priority    Priority           `json:"priority"`
	Title       string             `json:"title"`
	Message     string             `json:"message"`
	EvaluatedAt time.Time          `json:"evaluated_at"`
	Snapshot    map[string]float64 `json:"snapshot,omitempty"` // metric values that caused the trigger
}

// Alert is the currently-active surfaced notification derived from a TriggerEvent
type Alert struct {
	ID          string     `json:"id" db:"id"`
	UserID      int64      `json:"user_id" db:"user_id"`
	AlertRuleID *int64     `json:"alert_rule_id,omitempty" db:"alert_rule_id"` // nil for manual alerts
	Priority    Priority   `json:"priority" db:"priority"`
	Title       string     `json:"title" db:"title"`
	Message     string     `json:"message" db:"message"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	Acknowledged bool      `json:"acknowledged" db:"acknowledged"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// AlertHistory is the append-only audit record mirroring each TriggerEvent.
// It is updated only to record delivery outcome, acknowledgment and snooze.
type AlertHistory struct {
	ID             string             `json:"id"`
	AlertRuleID    int64              `json:"alert_rule_id"`
	Priority       Priority           `json:"priority"`
	Title          string             `json:"title"`
	Message        string             `json:"message"`
	MetricValues   map[string]float64 `json:"metric_values,omitempty"`
	DeliveryStatus map[string]string  `json:"delivery_status,omitempty"` // method -> outcome
	DeliveredAt    *time.Time         `json:"delivered_at,omitempty"`
	Acknowledged   bool               `json:"acknowledged"`
	AcknowledgedAt *time.Time         `json:"acknowledged_at,omitempty"`
	SnoozedUntil   *time.Time         `json:"snoozed_until,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// CorrelationMethod selects the correlation statistic
type CorrelationMethod string

// Correlation methods
const (
	MethodPearson  CorrelationMethod = "pearson"
	MethodSpearman CorrelationMethod = "spearman"
)

// CorrelationResult reports the relationship between two metrics over
// aligned daily aggregates
type CorrelationResult struct {
	MetricX     MetricType        `json:"metric_x"`
	MetricY     MetricType        `json:"metric_y"`
	Correlation float64           `json:"correlation"`
	PValue      float64           `json:"p_value"`
	SampleSize  int               `json:"sample_size"`
	Method      CorrelationMethod `json:"method"`
}

// AnomalyPoint is one flagged sample in an anomaly report
type AnomalyPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	ZScore    float64   `json:"z_score"`
}

// AnomalyReport lists the samples whose z-score exceeded the sensitivity
type AnomalyReport struct {
	MetricType   MetricType     `json:"metric_type"`
	BaselineMean float64        `json:"baseline_mean"`
	BaselineStd  float64        `json:"baseline_std"`
	Anomalies    []AnomalyPoint `json:"anomalies"`
}

// SegmentSummary is the per-bucket statistics of a segmentation
type SegmentSummary struct {
	Segment string  `json:"segment"`
	Count   int     `json:"count"`
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	Std     float64 `json:"std"`
}

// MetricSummary is the statistical summary of one metric over a range
type MetricSummary struct {
	MetricType MetricType `json:"metric_type"`
	Count      int        `json:"count"`
	Mean       float64    `json:"mean"`
	Median     float64    `json:"median"`
	Min        float64    `json:"min"`
	Max        float64    `json:"max"`
	Std        float64    `json:"std"`
	Unit       string     `json:"unit"`
}

// TimeRange bounds a metric query. A zero Start or End leaves that side open.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range
func (r TimeRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// LastDays builds a range covering the trailing number of days ending at now
func LastDays(now time.Time, days int) TimeRange {
	return TimeRange{
		Start: now.AddDate(0, 0, -days),
		End:   now,
	}
}

// DeliveryOutcome records the result of one notification send
type DeliveryOutcome struct {
	Method  DeliveryMethod `json:"method"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	SentAt  time.Time      `json:"sent_at"`
}

// Status renders the outcome as a history delivery-status value
func (o DeliveryOutcome) Status() string {
	if o.Success {
		return "sent"
	}
	return "failed: " + o.Error
}
