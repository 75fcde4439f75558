// Package worker provides a fixed-size pool for fire-and-forget background
// tasks. Submitters hold no handle to a running task; failures stay inside
// the pool's error boundary and are logged.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/Cardboom/cardboomtest-sub005/internal/platform/observability"
)

// Task is a unit of background work.
type Task struct {
	// Name identifies the task in logs.
	Name string
	// Run executes the work. A returned error is logged, never propagated.
	Run func(ctx context.Context) error
}

// Pool maintains a fixed number of worker goroutines pulling tasks from a
// bounded queue.
type Pool struct {
	workers int
	queue   chan Task
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *observability.Logger

	closeOnce sync.Once
}

// NewPool creates a pool with the given number of workers and queue buffer.
// Workers start immediately.
func NewPool(ctx context.Context, workers, queueSize int, logger *observability.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	poolCtx, cancel := context.WithCancel(ctx)

	p := &Pool{
		workers: workers,
		queue:   make(chan Task, queueSize),
		ctx:     poolCtx,
		cancel:  cancel,
		logger:  logger,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.queue:
			p.run(task)
		}
	}
}

// run executes a single task inside the pool's error boundary.
func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.LogError(p.ctx, "background task panicked",
				fmt.Errorf("panic: %v", r),
				"task", task.Name,
			)
		}
	}()

	if err := task.Run(p.ctx); err != nil {
		p.logger.LogWarn(p.ctx, "background task failed",
			"task", task.Name,
			"error", err.Error(),
		)
	}
}

// TrySubmit enqueues a task without blocking. Returns false when the queue
// is full or the pool is shut down; the task is dropped in that case.
func (p *Pool) TrySubmit(task Task) bool {
	select {
	case <-p.ctx.Done():
		return false
	default:
	}

	select {
	case p.queue <- task:
		return true
	default:
		return false
	}
}

// Submit enqueues a task, blocking while the queue is full. Returns an error
// only when the pool is shut down.
func (p *Pool) Submit(task Task) error {
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.queue <- task:
		return nil
	}
}

// Close stops accepting tasks and waits for in-flight work to finish.
// The queue channel is never closed so late submitters fail cleanly
// instead of panicking; undrained tasks are dropped.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
	})
}

// Workers returns the number of workers in the pool.
func (p *Pool) Workers() int {
	return p.workers
}

// QueueLen returns the current number of queued tasks.
func (p *Pool) QueueLen() int {
	return len(p.queue)
}
