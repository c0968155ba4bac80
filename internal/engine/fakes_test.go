package engine

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hygieia/hygieia/internal/health"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock returns a fixed instant
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// fakeMetricStore serves canned samples with real query semantics
type fakeMetricStore struct {
	samples []health.MetricSample
	err     error
}

func (s *fakeMetricStore) Query(_ context.Context, q health.MetricQuery) ([]health.MetricSample, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []health.MetricSample
	for _, sample := range s.samples {
		if sample.UserID != q.UserID || sample.Type != q.Type {
			continue
		}
		if !q.Range.Contains(sample.Timestamp) {
			continue
		}
		out = append(out, sample)
	}
	sort.Slice(out, func(i, j int) bool {
		if q.Order == health.OrderDescending {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *fakeMetricStore) DistinctMetricTypes(_ context.Context, userID int64) ([]health.MetricType, error) {
	seen := map[health.MetricType]bool{}
	var out []health.MetricType
	for _, sample := range s.samples {
		if sample.UserID == userID && !seen[sample.Type] {
			seen[sample.Type] = true
			out = append(out, sample.Type)
		}
	}
	return out, nil
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

// fakeRuleStore serves rules and records trigger-state updates
type fakeRuleStore struct {
	mu      sync.Mutex
	rules   []health.AlertRule
	updates map[int64]struct {
		count int
		at    time.Time
	}
	err error
}

func (s *fakeRuleStore) ListActiveRules(_ context.Context) ([]health.AlertRule, error) {
	if s.err != nil {
		return nil, s.err
	}
	var active []health.AlertRule
	for _, r := range s.rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	return active, nil
}

func (s *fakeRuleStore) UpdateTriggerState(_ context.Context, ruleID int64, count int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updates == nil {
		s.updates = map[int64]struct {
			count int
			at    time.Time
		}{}
	}
	s.updates[ruleID] = struct {
		count int
		at    time.Time
	}{count, at}
	return nil
}

// fakeAlertStore records committed triggers in memory
type fakeAlertStore struct {
	mu        sync.Mutex
	alerts    []health.Alert
	histories []health.AlertHistory
	triggers  map[int64]int // ruleID -> committed trigger count
	statuses  map[string]map[string]string
	commitErr error
}

func (s *fakeAlertStore) InsertAlert(_ context.Context, alert *health.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, *alert)
	return nil
}

func (s *fakeAlertStore) InsertHistory(_ context.Context, history *health.AlertHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories = append(s.histories, *history)
	return nil
}

func (s *fakeAlertStore) CommitTrigger(_ context.Context, alert *health.Alert, history *health.AlertHistory,
	triggerCount int, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return s.commitErr
	}
	s.alerts = append(s.alerts, *alert)
	s.histories = append(s.histories, *history)
	if s.triggers == nil {
		s.triggers = map[int64]int{}
	}
	s.triggers[history.AlertRuleID] = triggerCount
	return nil
}

func (s *fakeAlertStore) UpdateDeliveryStatus(_ context.Context, historyID string,
	status map[string]string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statuses == nil {
		s.statuses = map[string]map[string]string{}
	}
	s.statuses[historyID] = status
	return nil
}

func (s *fakeAlertStore) GetAlert(_ context.Context, alertID string, userID int64) (*health.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == alertID && s.alerts[i].UserID == userID {
			a := s.alerts[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (s *fakeAlertStore) AcknowledgeAlert(_ context.Context, alertID string, userID int64) (*health.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == alertID && s.alerts[i].UserID == userID {
			s.alerts[i].Acknowledged = true
			s.alerts[i].IsActive = false
			a := s.alerts[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (s *fakeAlertStore) ListActiveAlerts(_ context.Context, userID int64) ([]health.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []health.Alert
	for _, a := range s.alerts {
		if a.UserID == userID && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeNotifier records every send and can fail selected methods
type fakeNotifier struct {
	mu    sync.Mutex
	sent  []health.DeliveryMethod
	fails map[health.DeliveryMethod]string
}

func (n *fakeNotifier) Send(_ context.Context, method health.DeliveryMethod,
	_ health.TriggerEvent) health.DeliveryOutcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, method)
	if msg, ok := n.fails[method]; ok {
		return health.DeliveryOutcome{Method: method, Success: false, Error: msg}
	}
	return health.DeliveryOutcome{Method: method, Success: true}
}
