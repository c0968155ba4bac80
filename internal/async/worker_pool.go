// Package async provides the worker pool that runs rule evaluations
// concurrently within one evaluation pass.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultWorkerPoolSize is the default number of workers in the pool
	DefaultWorkerPoolSize = 4
	// DefaultQueueSize is the default size of the job queue
	DefaultQueueSize = 64
	// DefaultJobTimeout is the default timeout for a single job
	DefaultJobTimeout = 30 * time.Second
)

// ErrQueueFull is returned when the job queue cannot accept more work
var ErrQueueFull = errors.New("job queue is full")

// ErrPoolStopped is returned when submitting to a stopped pool
var ErrPoolStopped = errors.New("worker pool is stopped")

// Job is a unit of work executed by the pool. The context carries the
// pool's job timeout.
type Job func(ctx context.Context)

// PoolStats holds point-in-time pool statistics
type PoolStats struct {
	Workers       int
	QueueLength   int
	QueueCapacity int
	JobsProcessed int64
}

// Pool manages a fixed set of workers consuming from a bounded queue.
// Each submitted job runs exactly once on exactly one worker, so work
// submitted once per rule is naturally serialized per rule.
type Pool struct {
	logger     *slog.Logger
	jobQueue   chan Job
	workers    int
	jobTimeout time.Duration
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc

	mu        sync.Mutex
	processed int64
}

// NewPool creates a worker pool with the given size and queue capacity.
// Non-positive values fall back to the defaults.
func NewPool(workers, queueSize int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkerPoolSize
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		logger:     logger,
		jobQueue:   make(chan Job, queueSize),
		workers:    workers,
		jobTimeout: DefaultJobTimeout,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	p.logger.Info("Starting worker pool", "workers", p.workers, "queue_capacity", cap(p.jobQueue))
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
}

// Stop stops the pool and waits for in-flight jobs to finish
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Submit queues a job for execution. It never blocks: a full queue is
// reported to the caller, who decides whether to retry or drop.
func (p *Pool) Submit(job Job) error {
	select {
	case <-p.ctx.Done():
		return ErrPoolStopped
	default:
	}

	select {
	case p.jobQueue <- job:
		return nil
	default:
		p.logger.Warn("Job queue full, rejecting job", "queue_capacity", cap(p.jobQueue))
		return ErrQueueFull
	}
}

// Stats returns current pool statistics
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	processed := p.processed
	p.mu.Unlock()

	return PoolStats{
		Workers:       p.workers,
		QueueLength:   len(p.jobQueue),
		QueueCapacity: cap(p.jobQueue),
		JobsProcessed: processed,
	}
}

// QueueDepth returns the number of queued jobs
func (p *Pool) QueueDepth() int {
	return len(p.jobQueue)
}

// run is the worker loop
func (p *Pool) run(id int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started", "workerID", id)

	for {
		select {
		case job, ok := <-p.jobQueue:
			if !ok {
				p.logger.Debug("Worker exiting", "workerID", id)
				return
			}
			p.process(job)

		case <-p.ctx.Done():
			p.logger.Debug("Worker context canceled", "workerID", id)
			return
		}
	}
}

// process executes one job with the pool's timeout
func (p *Pool) process(job Job) {
	ctx, cancel := context.WithTimeout(p.ctx, p.jobTimeout)
	defer cancel()

	job(ctx)

	p.mu.Lock()
	p.processed++
	p.mu.Unlock()
}
