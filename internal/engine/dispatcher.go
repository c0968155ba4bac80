package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	apperrors "github.com/hygieia/hygieia/internal/errors"
	"github.com/hygieia/hygieia/internal/health"
	"github.com/hygieia/hygieia/internal/monitoring"
)

// Dispatcher turns a positive rule verdict into its persistent and
// outward-facing effects: one Alert, one AlertHistory entry, the rule's
// trigger-state bump, and a notification per configured delivery
// method. The three store writes commit as one transaction; delivery
// is best effort afterwards.
type Dispatcher struct {
	alerts   health.AlertStore
	notifier health.NotificationDispatcher
	metrics  *monitoring.Metrics
	logger   *slog.Logger
}

// NewDispatcher creates an alert dispatcher
func NewDispatcher(alerts health.AlertStore, notifier health.NotificationDispatcher,
	metrics *monitoring.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		alerts:   alerts,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// Dispatch commits the trigger records for a fired rule and fans the
// event out to the rule's delivery methods. A failed commit is returned
// to the caller; delivery failures are recorded on the history row and
// logged, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, rule health.AlertRule, event health.TriggerEvent) error {
	ruleID := rule.ID
	alert := &health.Alert{
		ID:          uuid.NewString(),
		UserID:      rule.UserID,
		AlertRuleID: &ruleID,
		Priority:    rule.Priority,
		Title:       rule.Name,
		Message:     "Alert condition met: " + rule.Description,
		IsActive:    true,
		CreatedAt:   event.EvaluatedAt,
	}
	history := &health.AlertHistory{
		ID:           uuid.NewString(),
		AlertRuleID:  rule.ID,
		Priority:     rule.Priority,
		Title:        rule.Name,
		Message:      "Alert triggered: " + rule.Description,
		MetricValues: event.Snapshot,
		CreatedAt:    event.EvaluatedAt,
	}

	err := d.alerts.CommitTrigger(ctx, alert, history, rule.TriggerCount+1, event.EvaluatedAt)
	if err != nil {
		return apperrors.NewError(apperrors.ErrCodeDatabaseError).
			WithMessage("failed to commit alert trigger").
			WithContext("rule_id", rule.ID).
			WithCause(err).
			Build()
	}

	d.metrics.RecordAlertTriggered(string(rule.Priority))
	d.logger.Info("Alert triggered",
		"ruleID", rule.ID,
		"userID", rule.UserID,
		"priority", rule.Priority,
		"alertID", alert.ID)

	d.deliver(ctx, rule, event, history.ID)
	return nil
}

// deliver sends the event over each configured channel and records the
// per-method outcomes on the history entry
func (d *Dispatcher) deliver(ctx context.Context, rule health.AlertRule, event health.TriggerEvent, historyID string) {
	if len(rule.DeliveryMethods) == 0 {
		return
	}

	status := make(map[string]string, len(rule.DeliveryMethods))
	for _, method := range rule.DeliveryMethods {
		outcome := d.notifier.Send(ctx, method, event)
		status[string(method)] = outcome.Status()
		d.metrics.RecordNotification(string(method), outcome.Success)
		if !outcome.Success {
			d.logger.Warn("Notification delivery failed",
				"ruleID", rule.ID,
				"method", method,
				"error", outcome.Error)
		}
	}

	if err := d.alerts.UpdateDeliveryStatus(ctx, historyID, status, event.EvaluatedAt); err != nil {
		d.logger.Error("Failed to record delivery status",
			"historyID", historyID, "error", err)
	}
}

// AcknowledgeAlert marks the user's alert acknowledged and inactive.
// Acknowledging an already-acknowledged alert is a no-op that returns
// the alert unchanged; an unknown or foreign id is NOT_FOUND.
func (d *Dispatcher) AcknowledgeAlert(ctx context.Context, alertID string, userID int64) (*health.Alert, error) {
	alert, err := d.alerts.AcknowledgeAlert(ctx, alertID, userID)
	if err != nil {
		return nil, apperrors.NewError(apperrors.ErrCodeDatabaseError).
			WithMessage("failed to acknowledge alert").
			WithContext("alert_id", alertID).
			WithCause(err).
			Build()
	}
	if alert == nil {
		return nil, apperrors.NotFound("alert")
	}
	return alert, nil
}
