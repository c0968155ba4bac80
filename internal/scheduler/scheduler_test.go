package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hygieia/hygieia/internal/engine"
)

type countingRunner struct {
	passes atomic.Int64
	delay  time.Duration
}

func (r *countingRunner) EvaluatePass(ctx context.Context) (engine.PassResult, error) {
	r.passes.Add(1)
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
		}
	}
	return engine.PassResult{RulesEvaluated: 1}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_RunsImmediatelyAndPeriodically(t *testing.T) {
	runner := &countingRunner{}
	s := New(runner, time.Second, testLogger())
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return runner.passes.Load() >= 1
	}, time.Second, 5*time.Millisecond, "first pass runs without waiting an interval")
}

func TestScheduler_SkipsOverlappingTicks(t *testing.T) {
	// A pass longer than several intervals must not stack passes.
	runner := &countingRunner{delay: 500 * time.Millisecond}
	s := New(runner, time.Second, testLogger())
	s.interval = 20 * time.Millisecond

	s.Start(context.Background())
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	assert.LessOrEqual(t, runner.passes.Load(), int64(1),
		"ticks during a running pass are dropped")
}

func TestScheduler_StopWaitsForInFlightPass(t *testing.T) {
	runner := &countingRunner{delay: 50 * time.Millisecond}
	s := New(runner, time.Second, testLogger())
	s.Start(context.Background())

	require.Eventually(t, func() bool {
		return runner.passes.Load() == 1
	}, time.Second, time.Millisecond)

	s.Stop() // must not panic or leak; waits for the pass goroutine
	assert.Equal(t, int64(1), runner.passes.Load())
}

func TestScheduler_StartAndStopAreIdempotent(t *testing.T) {
	runner := &countingRunner{}
	s := New(runner, time.Second, testLogger())

	s.Stop() // stop before start is a no-op

	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx)
	s.Stop()
	s.Stop()
}

func TestScheduler_MinimumInterval(t *testing.T) {
	s := New(&countingRunner{}, time.Millisecond, testLogger())
	assert.Equal(t, time.Second, s.interval)
}
