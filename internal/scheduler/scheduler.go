// Package scheduler drives periodic rule evaluation passes. A pass that
// is still running when the next tick arrives is not stacked; the tick
// is skipped and the overlap logged.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hygieia/hygieia/internal/engine"
)

// Runner is the evaluation surface the scheduler drives
type Runner interface {
	EvaluatePass(ctx context.Context) (engine.PassResult, error)
}

// Scheduler triggers an evaluation pass at a fixed interval
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger

	inFlight atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// New creates a scheduler that evaluates every interval. Intervals below
// one second are raised to one second.
func New(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval < time.Second {
		interval = time.Second
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the ticker loop. The first pass runs immediately rather
// than waiting out a full interval. Start is a no-op when already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Scheduler started", "interval", s.interval.String())
}

// Stop cancels the loop and waits for any in-flight pass to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.run(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

// run executes one pass in its own goroutine under a single-flight
// guard, so a slow pass delays nothing and overlapping ticks are dropped
func (s *Scheduler) run(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Warn("Previous evaluation pass still running, skipping tick")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)

		result, err := s.runner.EvaluatePass(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("Evaluation pass failed", "error", err)
			}
			return
		}
		s.logger.Debug("Evaluation pass finished",
			"rules_evaluated", result.RulesEvaluated,
			"alerts_triggered", result.AlertsTriggered,
			"failures", result.Failures)
	}()
}
