// Package pool fans compression tasks out across a bounded set of worker
// goroutines and fans their outcomes back in over a single channel.
package pool

import (
	"context"
	"runtime"
	"sync"

	"image-compressor-go/internal/task"

	"github.com/sirupsen/logrus"
)

// Pool is a bounded worker pool. Tasks are pulled from a shared exhaustible
// channel, so no task is ever handed to two workers; outcomes are published
// into a bounded channel, so workers block instead of buffering unboundedly
// when the consumer is slow.
type Pool struct {
	workers int
	logger  *logrus.Logger

	// OnTaskStart, when set, is invoked by a worker right before it starts
	// executing a task. It must be safe for concurrent use.
	OnTaskStart func(task.Task)
}

// New returns a pool with the given worker count. A non-positive count
// falls back to the host parallelism.
func New(workers int, logger *logrus.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers, logger: logger}
}

// Workers returns the effective worker count.
func (p *Pool) Workers() int {
	return p.workers
}

// Run executes tasks across the pool and returns the outcome channel. The
// channel is closed once every dispatched task has completed. Outcomes
// arrive in completion order, not task order.
//
// Cancelling ctx stops dispatch of new tasks; workers finish the task they
// are on, so destinations are never left half-written, and outcomes already
// produced are still delivered.
func (p *Pool) Run(ctx context.Context, exec task.Executor, tasks []task.Task) <-chan task.Outcome {
	taskCh := make(chan task.Task)
	outcomes := make(chan task.Outcome, p.workers)

	go func() {
		defer close(taskCh)
		for _, t := range tasks {
			if ctx.Err() != nil {
				p.logger.Infof("Cancellation requested, stopping task dispatch")
				return
			}
			select {
			case taskCh <- t:
			case <-ctx.Done():
				p.logger.Infof("Cancellation requested, stopping task dispatch")
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, exec, taskCh, outcomes)
		}()
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	return outcomes
}

// worker processes tasks from the channel until it is exhausted or the
// context is cancelled.
func (p *Pool) worker(ctx context.Context, exec task.Executor, taskCh <-chan task.Task, outcomes chan<- task.Outcome) {
	for t := range taskCh {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if p.OnTaskStart != nil {
			p.OnTaskStart(t)
		}
		outcomes <- exec.Execute(ctx, t)
	}
}
