// Package bridge schedules tasks on a worker pool and delivers their results
// back onto the host loop exactly once.
//
// The sequence for one task is fixed: Schedule returns a pending promise
// immediately, a worker runs Perform, then a closure posted to the loop runs
// Complete and settles the promise. Nothing orders distinct tasks.
package bridge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/japaniel/spellbridge/pkg/hostloop"
	"github.com/japaniel/spellbridge/pkg/task"
	"github.com/japaniel/spellbridge/pkg/worker"
)

// Pool is the part of worker.WorkerPool the scheduler uses.
type Pool interface {
	Submit(worker.Job) error
}

// Scheduler couples a host loop with a worker pool.
type Scheduler struct {
	loop     *hostloop.Loop
	pool     Pool
	logger   *slog.Logger
	inflight atomic.Int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger. nil means no logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler creates a scheduler delivering onto loop. The pool must
// already be started.
func NewScheduler(loop *hostloop.Loop, pool Pool, opts ...Option) *Scheduler {
	s := &Scheduler{loop: loop, pool: pool}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// Loop returns the host loop results are delivered on.
func (s *Scheduler) Loop() *hostloop.Loop { return s.loop }

// InFlight returns the number of scheduled tasks not yet delivered.
func (s *Scheduler) InFlight() int64 { return s.inflight.Load() }

// Schedule hands t to the pool and returns the promise its outcome settles.
// It never blocks. The task's archive reference is released as soon as
// Perform returns, before delivery.
//
// If the host loop stops before the outcome reaches it, the promise is
// abandoned with an error wrapping hostloop.ErrLoopClosed instead.
func Schedule[R, V any](s *Scheduler, t task.Task[R, V]) *hostloop.Promise[V] {
	p := hostloop.NewPromise[V](s.loop)
	s.inflight.Add(1)
	p.Finally(func() { s.inflight.Add(-1) })
	queued := time.Now()

	job := func(ctx context.Context) error {
		start := time.Now()
		raw, err := task.Run(ctx, t)
		t.Release()
		s.logger.Debug("task performed",
			"kind", t.Kind().String(), "word", t.Word(),
			"queued", start.Sub(queued), "took", time.Since(start), "err", err)
		s.deliver(p, t.Kind(), t.Word(), func() { complete(p, t, raw, err) })
		return err
	}

	if err := s.pool.Submit(job); err != nil {
		t.Release()
		rejectErr := task.Fail(t.Kind(), t.Word(), err)
		s.logger.Warn("task rejected by pool", "kind", t.Kind().String(), "word", t.Word(), "err", err)
		s.deliver(p, t.Kind(), t.Word(), func() { p.Reject(rejectErr) })
	}
	return p
}

// settler is the off-loop side of a promise.
type settler interface {
	Abandon(error) bool
}

// deliver posts fn to the loop. Once the loop has stopped, fn can no longer
// run and p is abandoned so awaiters still see an outcome.
func (s *Scheduler) deliver(p settler, kind task.Kind, word string, fn func()) {
	err := s.loop.Post(fn)
	if err == nil {
		return
	}
	if p.Abandon(task.Fail(kind, word, err)) {
		s.logger.Warn("result abandoned: host loop stopped", "kind", kind.String(), "word", word, "err", err)
	}
}

// complete runs on the loop goroutine.
func complete[R, V any](p *hostloop.Promise[V], t task.Task[R, V], raw R, err error) {
	if err != nil {
		p.Reject(err)
		return
	}
	v, err := completeSafely(t, raw)
	if err != nil {
		p.Reject(task.Fail(t.Kind(), t.Word(), err))
		return
	}
	p.Resolve(v)
}

func completeSafely[R, V any](t task.Task[R, V], raw R) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("complete panicked: %v", r)
		}
	}()
	return t.Complete(raw)
}
