// Package worker runs admitted lifecycle requests in the background and
// periodically sweeps expired retention holds.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Executor drives one request to a terminal state. Execute owns persistence
// of the terminal status; the pool only logs the error.
type Executor interface {
	Execute(ctx context.Context, requestID string) error
}

// ErrQueueFull is returned when the pool cannot accept more work. The caller
// fails the request rather than blocking the admission path.
var ErrQueueFull = errors.New("lifecycle worker queue full")

// ErrStopped is returned when the pool is no longer accepting work.
var ErrStopped = errors.New("lifecycle worker pool stopped")

// Pool executes lifecycle requests on a fixed set of workers fed from a
// bounded channel. Every enqueued request is executed exactly once; requests
// that cannot be enqueued are refused synchronously.
type Pool struct {
	executor Executor
	queue    chan string
	workers  int
	logger   *slog.Logger
	group    *errgroup.Group

	mu      sync.RWMutex
	stopped bool
}

func NewPool(executor Executor, workers, queueSize int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = workers * 4
	}
	return &Pool{
		executor: executor,
		queue:    make(chan string, queueSize),
		workers:  workers,
		logger:   logger,
	}
}

// Start launches the workers. They drain the queue until Stop is called,
// finishing in-flight requests before returning.
func (p *Pool) Start(ctx context.Context) {
	p.group, _ = errgroup.WithContext(context.WithoutCancel(ctx))
	for i := 0; i < p.workers; i++ {
		worker := i
		p.group.Go(func() error {
			for requestID := range p.queue {
				if err := p.executor.Execute(ctx, requestID); err != nil {
					p.logger.Error("lifecycle execution failed",
						"worker", worker, "request_id", requestID, "error", err)
				}
			}
			return nil
		})
	}
	p.logger.Info("lifecycle worker pool started", "workers", p.workers, "queue", cap(p.queue))
}

// Enqueue hands a request id to the pool. Non-blocking: a full queue refuses
// the work so the admission path never stalls behind slow executions.
func (p *Pool) Enqueue(requestID string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.queue <- requestID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses further work and waits for in-flight executions to reach a
// terminal state.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	if p.group != nil {
		p.group.Wait() //nolint:errcheck // workers only return nil
	}
	p.logger.Info("lifecycle worker pool stopped")
}
