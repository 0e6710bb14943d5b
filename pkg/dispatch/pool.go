// Package dispatch provides a bounded worker pool for fire-and-forget trigger
// runs. Saturation is surfaced to the caller instead of queueing unboundedly.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	ErrQueueFull = errors.New("dispatch queue is full")
	ErrShutDown  = errors.New("dispatch pool is shut down")
)

// Job is one unit of fire-and-forget work. The job's error is logged, never
// returned, because no caller is waiting on it.
type Job func(ctx context.Context) error

type Pool struct {
	logger *slog.Logger
	jobs   chan Job
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool starts workers goroutines consuming a queue of queueSize pending
// jobs. Workers run until Shutdown.
func NewPool(logger *slog.Logger, workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}

	if queueSize < 1 {
		queueSize = workers
	}

	pool := &Pool{
		logger: logger.With("module", "dispatch"),
		jobs:   make(chan Job, queueSize),
	}

	for i := 0; i < workers; i++ {
		pool.wg.Add(1)

		go pool.worker(i)
	}

	return pool
}

// Submit enqueues a job without blocking. It returns ErrQueueFull when the
// queue is saturated and ErrShutDown after Shutdown has begun.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrShutDown
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops intake and waits until every queued and in-flight job has
// finished or ctx expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()

		return nil
	}

	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger := p.logger.With("worker_id", id)

	for job := range p.jobs {
		if err := job(context.Background()); err != nil {
			logger.Error("Dispatched job failed", "error", err)
		}
	}
}
