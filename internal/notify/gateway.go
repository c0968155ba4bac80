package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hygieia/hygieia/internal/health"
)

// gatewayPayload is the JSON body posted to the SMS and push gateways
type gatewayPayload struct {
	Channel  string             `json:"channel"`
	UserID   int64              `json:"user_id"`
	Priority string             `json:"priority"`
	Title    string             `json:"title"`
	Body     string             `json:"body"`
	Values   map[string]float64 `json:"values,omitempty"`
	SentAt   time.Time          `json:"sent_at"`
}

// gatewaySender posts events to an external delivery gateway
type gatewaySender struct {
	url     string
	channel string
	client  *http.Client
}

func newGatewaySender(url, channel string) *gatewaySender {
	return &gatewaySender{
		url:     url,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *gatewaySender) Send(ctx context.Context, event health.TriggerEvent) error {
	payload := gatewayPayload{
		Channel:  s.channel,
		UserID:   event.UserID,
		Priority: string(event.Priority),
		Title:    event.Title,
		Body:     formatBody(event),
		Values:   event.Snapshot,
		SentAt:   event.EvaluatedAt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s gateway: %w", s.channel, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s gateway returned status %d: %s", s.channel, resp.StatusCode, string(detail))
	}
	return nil
}
