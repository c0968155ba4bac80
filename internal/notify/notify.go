// Package notify delivers trigger events over the configured channels.
// Channels that are missing required configuration are skipped at
// construction; delivery failures are reported as outcomes, never as
// errors, so a dead channel cannot abort an evaluation pass.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/hygieia/hygieia/internal/config"
	"github.com/hygieia/hygieia/internal/health"
)

// Sender delivers one event over a single channel
type Sender interface {
	Send(ctx context.Context, event health.TriggerEvent) error
}

// Dispatcher routes trigger events to per-method senders behind a
// shared rate limiter
type Dispatcher struct {
	senders map[health.DeliveryMethod]Sender
	limiter *rate.Limiter
	clock   health.Clock
	logger  *slog.Logger
}

var _ health.NotificationDispatcher = (*Dispatcher)(nil)

// NewDispatcher wires up every channel the configuration supports.
// The in-app channel is always available; email requires SMTP settings,
// sms and push require their gateway URLs.
func NewDispatcher(cfg *config.Config, clock health.Clock, logger *slog.Logger) *Dispatcher {
	senders := map[health.DeliveryMethod]Sender{
		health.DeliveryInApp: &inAppSender{},
	}

	if cfg.EmailConfigured() {
		senders[health.DeliveryEmail] = newEmailSender(cfg)
	} else {
		logger.Info("Email channel not configured, skipping")
	}
	if cfg.SMSGatewayURL != "" {
		senders[health.DeliverySMS] = newGatewaySender(cfg.SMSGatewayURL, "sms")
	} else {
		logger.Info("SMS channel not configured, skipping")
	}
	if cfg.PushGatewayURL != "" {
		senders[health.DeliveryPush] = newGatewaySender(cfg.PushGatewayURL, "push")
	} else {
		logger.Info("Push channel not configured, skipping")
	}

	return &Dispatcher{
		senders: senders,
		limiter: rate.NewLimiter(rate.Limit(cfg.NotifyRateLimit), cfg.NotifyBurst),
		clock:   clock,
		logger:  logger,
	}
}

// Send delivers the event over one channel and reports the outcome
func (d *Dispatcher) Send(ctx context.Context, method health.DeliveryMethod,
	event health.TriggerEvent) health.DeliveryOutcome {
	outcome := health.DeliveryOutcome{Method: method, SentAt: d.clock.Now()}

	sender, ok := d.senders[method]
	if !ok {
		outcome.Error = fmt.Sprintf("channel %s is not configured", method)
		return outcome
	}

	if !d.limiter.Allow() {
		outcome.Error = "notification rate limit exceeded"
		return outcome
	}

	if err := sender.Send(ctx, event); err != nil {
		outcome.Error = err.Error()
		d.logger.Warn("Notification send failed", "method", method, "error", err)
		return outcome
	}

	outcome.Success = true
	return outcome
}

// inAppSender is deliberately a no-op: the persisted Alert row is the
// in-app surface, there is nothing further to push
type inAppSender struct{}

func (s *inAppSender) Send(_ context.Context, _ health.TriggerEvent) error {
	return nil
}

var titleCaser = cases.Title(language.English)

// humanizeMetric turns a metric identifier into display text,
// "resting_hr" becomes "Resting Hr"
func humanizeMetric(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

// formatBody renders the plain-text notification body shared by the
// email and gateway channels
func formatBody(event health.TriggerEvent) string {
	var b strings.Builder
	b.WriteString(event.Message)
	if len(event.Snapshot) > 0 {
		b.WriteString("\n")
		for _, key := range sortedKeys(event.Snapshot) {
			fmt.Fprintf(&b, "\n%s: %g", humanizeMetric(key), event.Snapshot[key])
		}
	}
	fmt.Fprintf(&b, "\n\nPriority: %s", event.Priority)
	fmt.Fprintf(&b, "\nEvaluated at: %s", event.EvaluatedAt.Format("2006-01-02 15:04:05 MST"))
	return b.String()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
