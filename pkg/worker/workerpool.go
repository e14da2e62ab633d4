// Package worker runs jobs on a fixed set of goroutines.
package worker

import (
	"context"
	"sync"
)

// Job is a unit of work submitted to the WorkerPool.
// It returns an error to indicate failure; callers deliver results themselves.
type Job func(ctx context.Context) error

// WorkerPool runs jobs using a fixed number of goroutines.
//
// The queue is unbounded so Submit never blocks the caller: jobs wait when
// every worker is busy. Every accepted job runs exactly once. If the pool
// context is canceled, queued jobs still run, with the canceled context, so
// they can report the cancellation to whoever is waiting on them.
type WorkerPool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Job
	closed  bool
	started bool
	wg      sync.WaitGroup
	workers int
	stop    func() bool

	// OnError is called with every non-nil job error. It may run on any worker.
	OnError func(error)
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
// queue is the initial queue capacity; it is a hint, not a limit.
func NewWorkerPool(workers, queue int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = workers * 2
	}
	p := &WorkerPool{
		queue:   make([]Job, 0, queue),
		workers: workers,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start begins the worker goroutines. Canceling ctx stops the pool from
// accepting jobs; workers exit once the queue is drained.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.wg.Add(p.workers)
	p.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.cond.Broadcast()
	})
	p.mu.Lock()
	p.stop = stop
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		go func() {
			defer p.wg.Done()
			for {
				job, ok := p.next()
				if !ok {
					return
				}
				if err := job(ctx); err != nil && p.OnError != nil {
					p.OnError(err)
				}
			}
		}()
	}
}

// next blocks until a job is available or the pool is closed and drained.
func (p *WorkerPool) next() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 {
		if p.closed {
			return nil, false
		}
		p.cond.Wait()
	}
	job := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return job, true
}

// Submit enqueues a job for processing. Returns ErrPoolClosed if the pool is closed.
func (p *WorkerPool) Submit(job Job) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.queue = append(p.queue, job)
	p.mu.Unlock()
	p.cond.Signal()
	return nil
}

// SubmitCtx is Submit, but returns ctx.Err() without enqueueing if ctx is already done.
func (p *WorkerPool) SubmitCtx(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.Submit(job)
}

// Pending returns the number of queued jobs not yet picked up by a worker.
func (p *WorkerPool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Workers returns the number of worker goroutines.
func (p *WorkerPool) Workers() int { return p.workers }

// Close stops accepting new jobs and waits for queued jobs to finish.
// Jobs queued on a pool that was never started run on the caller's goroutine
// with a canceled context.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	p.closed = true
	started, stop := p.started, p.stop
	var orphaned []Job
	if !started {
		orphaned, p.queue = p.queue, nil
	}
	p.mu.Unlock()
	p.cond.Broadcast()
	if !started {
		p.cancelAll(orphaned)
		return
	}
	p.wg.Wait()
	if stop != nil {
		stop()
	}
}

func (p *WorkerPool) cancelAll(jobs []Job) {
	if len(jobs) == 0 {
		return
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(ErrPoolClosed)
	for _, job := range jobs {
		if err := job(ctx); err != nil && p.OnError != nil {
			p.OnError(err)
		}
	}
}

// ErrPoolClosed is returned if a Submit is attempted after Close.
var ErrPoolClosed = &PoolError{"worker pool closed"}

// PoolError provides a simple typed error for pool operations.
type PoolError struct{ msg string }

func (e *PoolError) Error() string { return e.msg }
