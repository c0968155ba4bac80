// Package store persists metric samples, alert rules and alerts in
// SQLite behind the narrow interfaces the engine consumes.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hygieia/hygieia/internal/health"
)

const schema = `
CREATE TABLE IF NOT EXISTS metrics (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id       INTEGER NOT NULL,
	metric_type   TEXT NOT NULL,
	source        TEXT NOT NULL DEFAULT '',
	value         REAL NOT NULL,
	unit          TEXT NOT NULL DEFAULT '',
	timestamp     TIMESTAMP NOT NULL,
	quality_score REAL,
	origin        TEXT NOT NULL DEFAULT 'automatic',
	UNIQUE (user_id, metric_type, source, timestamp)
);
CREATE INDEX IF NOT EXISTS idx_metrics_user_type_ts ON metrics (user_id, metric_type, timestamp);

CREATE TABLE IF NOT EXISTS alert_rules (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id           INTEGER NOT NULL,
	name              TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	alert_type        TEXT NOT NULL,
	priority          TEXT NOT NULL DEFAULT 'info',
	conditions        TEXT NOT NULL DEFAULT '{}',
	delivery_methods  TEXT NOT NULL DEFAULT '[]',
	quiet_hours_start INTEGER,
	quiet_hours_end   INTEGER,
	weekdays_only     INTEGER NOT NULL DEFAULT 0,
	is_active         INTEGER NOT NULL DEFAULT 1,
	last_triggered    TIMESTAMP,
	trigger_count     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_alert_rules_active ON alert_rules (is_active);

CREATE TABLE IF NOT EXISTS alerts (
	id            TEXT PRIMARY KEY,
	user_id       INTEGER NOT NULL,
	alert_rule_id INTEGER REFERENCES alert_rules(id),
	priority      TEXT NOT NULL,
	title         TEXT NOT NULL,
	message       TEXT NOT NULL DEFAULT '',
	is_active     INTEGER NOT NULL DEFAULT 1,
	acknowledged  INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL,
	expires_at    TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_alerts_user_active ON alerts (user_id, is_active);

CREATE TABLE IF NOT EXISTS alert_history (
	id              TEXT PRIMARY KEY,
	alert_rule_id   INTEGER NOT NULL REFERENCES alert_rules(id),
	priority        TEXT NOT NULL,
	title           TEXT NOT NULL,
	message         TEXT NOT NULL DEFAULT '',
	metric_values   TEXT,
	delivery_status TEXT,
	delivered_at    TIMESTAMP,
	acknowledged    INTEGER NOT NULL DEFAULT 0,
	acknowledged_at TIMESTAMP,
	snoozed_until   TIMESTAMP,
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alert_history_rule ON alert_history (alert_rule_id);
`

// Store is the SQLite-backed implementation of MetricStore, RuleStore
// and AlertStore
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

var (
	_ health.MetricStore = (*Store)(nil)
	_ health.RuleStore   = (*Store)(nil)
	_ health.AlertStore  = (*Store)(nil)
)

// Open connects to the SQLite database at path and applies the schema.
// Use ":memory:" for an in-memory database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	// A single writer keeps the trigger transaction simple under the
	// concurrent evaluation pass.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Query returns samples matching the query in the requested order
func (s *Store) Query(ctx context.Context, q health.MetricQuery) ([]health.MetricSample, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT * FROM metrics WHERE user_id = ? AND metric_type = ?`)
	args := []any{q.UserID, q.Type}

	if !q.Range.Start.IsZero() {
		sb.WriteString(` AND timestamp >= ?`)
		args = append(args, q.Range.Start)
	}
	if !q.Range.End.IsZero() {
		sb.WriteString(` AND timestamp <= ?`)
		args = append(args, q.Range.End)
	}

	if q.Order == health.OrderDescending {
		sb.WriteString(` ORDER BY timestamp DESC`)
	} else {
		sb.WriteString(` ORDER BY timestamp ASC`)
	}
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	var samples []health.MetricSample
	if err := s.db.SelectContext(ctx, &samples, sb.String(), args...); err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	return samples, nil
}

// InsertSample persists one sample. Duplicates on
// (user_id, metric_type, source, timestamp) are silently ignored.
func (s *Store) InsertSample(ctx context.Context, sample *health.MetricSample) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO metrics
			(user_id, metric_type, source, value, unit, timestamp, quality_score, origin)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sample.UserID, sample.Type, sample.Source, sample.Value,
		sample.Unit, sample.Timestamp, sample.QualityScore, sample.Origin)
	if err != nil {
		return fmt.Errorf("failed to insert metric: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		sample.ID = id
	}
	return nil
}

// DistinctMetricTypes returns the metric types present for a user
func (s *Store) DistinctMetricTypes(ctx context.Context, userID int64) ([]health.MetricType, error) {
	var types []health.MetricType
	err := s.db.SelectContext(ctx, &types,
		`SELECT DISTINCT metric_type FROM metrics WHERE user_id = ? ORDER BY metric_type`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list metric types: %w", err)
	}
	return types, nil
}

// LatestByType returns the newest sample for each of the user's metric types
func (s *Store) LatestByType(ctx context.Context, userID int64) (map[health.MetricType]health.MetricSample, error) {
	var samples []health.MetricSample
	err := s.db.SelectContext(ctx, &samples, `
		SELECT m.* FROM metrics m
		JOIN (
			SELECT metric_type, MAX(timestamp) AS max_ts
			FROM metrics WHERE user_id = ? GROUP BY metric_type
		) latest ON m.metric_type = latest.metric_type AND m.timestamp = latest.max_ts
		WHERE m.user_id = ?`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest metrics: %w", err)
	}

	out := make(map[health.MetricType]health.MetricSample, len(samples))
	for _, sample := range samples {
		out[sample.Type] = sample
	}
	return out, nil
}

// ruleRow is the flat row shape of alert_rules; JSON columns are
// decoded into the domain type on the way out
type ruleRow struct {
	ID              int64      `db:"id"`
	UserID          int64      `db:"user_id"`
	Name            string     `db:"name"`
	Description     string     `db:"description"`
	AlertType       string     `db:"alert_type"`
	Priority        string     `db:"priority"`
	Conditions      string     `db:"conditions"`
	DeliveryMethods string     `db:"delivery_methods"`
	QuietHoursStart *int       `db:"quiet_hours_start"`
	QuietHoursEnd   *int       `db:"quiet_hours_end"`
	WeekdaysOnly    bool       `db:"weekdays_only"`
	IsActive        bool       `db:"is_active"`
	LastTriggered   *time.Time `db:"last_triggered"`
	TriggerCount    int        `db:"trigger_count"`
}

func (r ruleRow) toRule() (health.AlertRule, error) {
	rule := health.AlertRule{
		ID:              r.ID,
		UserID:          r.UserID,
		Name:            r.Name,
		Description:     r.Description,
		Type:            health.AlertType(r.AlertType),
		Priority:        health.Priority(r.Priority),
		QuietHoursStart: r.QuietHoursStart,
		QuietHoursEnd:   r.QuietHoursEnd,
		WeekdaysOnly:    r.WeekdaysOnly,
		IsActive:        r.IsActive,
		LastTriggered:   r.LastTriggered,
		TriggerCount:    r.TriggerCount,
	}
	if err := json.Unmarshal([]byte(r.Conditions), &rule.Conditions); err != nil {
		return rule, fmt.Errorf("rule %d has malformed conditions: %w", r.ID, err)
	}
	if r.DeliveryMethods != "" {
		if err := json.Unmarshal([]byte(r.DeliveryMethods), &rule.DeliveryMethods); err != nil {
			return rule, fmt.Errorf("rule %d has malformed delivery methods: %w", r.ID, err)
		}
	}
	return rule, nil
}

// ListActiveRules returns every rule with is_active=true, across all users
func (s *Store) ListActiveRules(ctx context.Context) ([]health.AlertRule, error) {
	var rows []ruleRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM alert_rules WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}

	rules := make([]health.AlertRule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.toRule()
		if err != nil {
			// A corrupt row must not hide the rest of the rules.
			s.logger.Warn("Skipping undecodable alert rule", "ruleID", row.ID, "error", err)
			continue
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// InsertRule persists a new alert rule and assigns its id
func (s *Store) InsertRule(ctx context.Context, rule *health.AlertRule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}
	methods, err := json.Marshal(rule.DeliveryMethods)
	if err != nil {
		return fmt.Errorf("failed to encode delivery methods: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_rules
			(user_id, name, description, alert_type, priority, conditions, delivery_methods,
			 quiet_hours_start, quiet_hours_end, weekdays_only, is_active, last_triggered, trigger_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.UserID, rule.Name, rule.Description, rule.Type, rule.Priority,
		string(conditions), string(methods),
		rule.QuietHoursStart, rule.QuietHoursEnd, rule.WeekdaysOnly,
		rule.IsActive, rule.LastTriggered, rule.TriggerCount)
	if err != nil {
		return fmt.Errorf("failed to insert alert rule: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read rule id: %w", err)
	}
	rule.ID = id
	return nil
}

// UpdateTriggerState persists a rule's trigger counter and timestamp
func (s *Store) UpdateTriggerState(ctx context.Context, ruleID int64, triggerCount int, lastTriggered time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE alert_rules SET trigger_count = ?, last_triggered = ? WHERE id = ?`,
		triggerCount, lastTriggered, ruleID)
	if err != nil {
		return fmt.Errorf("failed to update trigger state: %w", err)
	}
	return nil
}

// InsertAlert persists a new active alert
func (s *Store) InsertAlert(ctx context.Context, alert *health.Alert) error {
	return s.insertAlert(ctx, s.db, alert)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertAlert(ctx context.Context, ex execer, alert *health.Alert) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO alerts
			(id, user_id, alert_rule_id, priority, title, message, is_active, acknowledged, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, alert.UserID, alert.AlertRuleID, alert.Priority, alert.Title,
		alert.Message, alert.IsActive, alert.Acknowledged, alert.CreatedAt, alert.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// InsertHistory persists a new audit record
func (s *Store) InsertHistory(ctx context.Context, history *health.AlertHistory) error {
	return s.insertHistory(ctx, s.db, history)
}

func (s *Store) insertHistory(ctx context.Context, ex execer, history *health.AlertHistory) error {
	values, err := marshalNullable(history.MetricValues)
	if err != nil {
		return fmt.Errorf("failed to encode metric values: %w", err)
	}
	status, err := marshalNullable(history.DeliveryStatus)
	if err != nil {
		return fmt.Errorf("failed to encode delivery status: %w", err)
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO alert_history
			(id, alert_rule_id, priority, title, message, metric_values, delivery_status,
			 delivered_at, acknowledged, acknowledged_at, snoozed_until, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		history.ID, history.AlertRuleID, history.Priority, history.Title, history.Message,
		values, status, history.DeliveredAt, history.Acknowledged,
		history.AcknowledgedAt, history.SnoozedUntil, history.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert alert history: %w", err)
	}
	return nil
}

// CommitTrigger persists the alert, the history entry and the rule's
// trigger-state update in one transaction
func (s *Store) CommitTrigger(ctx context.Context, alert *health.Alert, history *health.AlertHistory,
	triggerCount int, lastTriggered time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin trigger transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.insertAlert(ctx, tx, alert); err != nil {
		return err
	}
	if err := s.insertHistory(ctx, tx, history); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE alert_rules SET trigger_count = ?, last_triggered = ? WHERE id = ?`,
		triggerCount, lastTriggered, history.AlertRuleID); err != nil {
		return fmt.Errorf("failed to update trigger state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trigger: %w", err)
	}
	return nil
}

// UpdateDeliveryStatus records per-method delivery outcomes on a history entry
func (s *Store) UpdateDeliveryStatus(ctx context.Context, historyID string,
	status map[string]string, deliveredAt time.Time) error {
	encoded, err := marshalNullable(status)
	if err != nil {
		return fmt.Errorf("failed to encode delivery status: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE alert_history SET delivery_status = ?, delivered_at = ? WHERE id = ?`,
		encoded, deliveredAt, historyID)
	if err != nil {
		return fmt.Errorf("failed to update delivery status: %w", err)
	}
	return nil
}

// GetAlert returns the user's alert with the given id, or nil when absent
func (s *Store) GetAlert(ctx context.Context, alertID string, userID int64) (*health.Alert, error) {
	var alert health.Alert
	err := s.db.GetContext(ctx, &alert,
		`SELECT * FROM alerts WHERE id = ? AND user_id = ?`, alertID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return &alert, nil
}

// AcknowledgeAlert marks the alert acknowledged and inactive.
// Returns nil when no such alert belongs to the user; repeating the
// call on an acknowledged alert re-applies the same state.
func (s *Store) AcknowledgeAlert(ctx context.Context, alertID string, userID int64) (*health.Alert, error) {
	alert, err := s.GetAlert(ctx, alertID, userID)
	if err != nil || alert == nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE alerts SET acknowledged = 1, is_active = 0 WHERE id = ? AND user_id = ?`,
		alertID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	alert.Acknowledged = true
	alert.IsActive = false
	return alert, nil
}

// ListActiveAlerts returns the user's currently-active alerts, newest first
func (s *Store) ListActiveAlerts(ctx context.Context, userID int64) ([]health.Alert, error) {
	var alerts []health.Alert
	err := s.db.SelectContext(ctx, &alerts,
		`SELECT * FROM alerts WHERE user_id = ? AND is_active = 1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	return alerts, nil
}

// GetHistory returns one history entry by id, or nil when absent
func (s *Store) GetHistory(ctx context.Context, historyID string) (*health.AlertHistory, error) {
	var row historyRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM alert_history WHERE id = ?`, historyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert history: %w", err)
	}
	return row.toHistory()
}

type historyRow struct {
	ID             string     `db:"id"`
	AlertRuleID    int64      `db:"alert_rule_id"`
	Priority       string     `db:"priority"`
	Title          string     `db:"title"`
	Message        string     `db:"message"`
	MetricValues   *string    `db:"metric_values"`
	DeliveryStatus *string    `db:"delivery_status"`
	DeliveredAt    *time.Time `db:"delivered_at"`
	Acknowledged   bool       `db:"acknowledged"`
	AcknowledgedAt *time.Time `db:"acknowledged_at"`
	SnoozedUntil   *time.Time `db:"snoozed_until"`
	CreatedAt      time.Time  `db:"created_at"`
}

func (r historyRow) toHistory() (*health.AlertHistory, error) {
	h := &health.AlertHistory{
		ID:             r.ID,
		AlertRuleID:    r.AlertRuleID,
		Priority:       health.Priority(r.Priority),
		Title:          r.Title,
		Message:        r.Message,
		DeliveredAt:    r.DeliveredAt,
		Acknowledged:   r.Acknowledged,
		AcknowledgedAt: r.AcknowledgedAt,
		SnoozedUntil:   r.SnoozedUntil,
		CreatedAt:      r.CreatedAt,
	}
	if r.MetricValues != nil {
		if err := json.Unmarshal([]byte(*r.MetricValues), &h.MetricValues); err != nil {
			return nil, fmt.Errorf("history %s has malformed metric values: %w", r.ID, err)
		}
	}
	if r.DeliveryStatus != nil {
		if err := json.Unmarshal([]byte(*r.DeliveryStatus), &h.DeliveryStatus); err != nil {
			return nil, fmt.Errorf("history %s has malformed delivery status: %w", r.ID, err)
		}
	}
	return h, nil
}

// marshalNullable JSON-encodes a map, mapping empty to SQL NULL
func marshalNullable[M ~map[string]V, V any](m M) (*string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}
