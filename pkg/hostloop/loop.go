// Package hostloop models the host's single cooperative execution thread.
//
// A Loop runs posted callbacks one at a time on the goroutine that called Run.
// Post is safe from any goroutine and never blocks, so worker goroutines can
// hand results back without waiting on the host. Promise is the
// single-assignment result slot settled on the loop.
package hostloop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

var (
	ErrLoopClosed  = errors.New("host loop closed")
	ErrLoopRunning = errors.New("host loop already running")
)

// Loop is a single-goroutine callback queue.
type Loop struct {
	mu       sync.Mutex
	queue    []func()
	closing  bool
	finished bool
	wake     chan struct{}

	// unsettled promises keep the loop alive; each maps to its abandon func
	promises map[uint64]func(error)
	nextID   uint64

	running atomic.Bool
	logger  *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used to report recovered callback panics.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) { lp.logger = l }
}

// New creates a Loop. Nothing runs until Run is called.
func New(opts ...Option) *Loop {
	l := &Loop{wake: make(chan struct{}, 1), promises: make(map[uint64]func(error))}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}

// Post enqueues fn to run on the loop goroutine. It fails only after Run has
// returned.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.finished {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.signal()
	return nil
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes callbacks until ctx is done, or until Close has been called and
// the loop is idle: no queued callbacks and no pending promises.
//
// When ctx ends Run first, queued callbacks are dropped and every pending
// promise is abandoned with an error wrapping ErrLoopClosed, so goroutines
// blocked in Await still return.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		idle := len(batch) == 0 && l.closing && len(l.promises) == 0
		if idle {
			l.finished = true
		}
		l.mu.Unlock()

		if idle {
			return nil
		}
		for _, fn := range batch {
			l.invoke(fn)
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			l.shutdown(ctx.Err())
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) shutdown(cause error) {
	l.mu.Lock()
	l.finished = true
	dropped := len(l.queue)
	l.queue = nil
	abandon := l.promises
	l.promises = make(map[uint64]func(error))
	l.mu.Unlock()

	if dropped > 0 || len(abandon) > 0 {
		l.logger.Warn("host loop stopped with work outstanding",
			"callbacks", dropped, "promises", len(abandon), "err", cause)
	}
	err := fmt.Errorf("%w: %w", ErrLoopClosed, cause)
	for _, fn := range abandon {
		fn(err)
	}
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("host loop callback panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// Close asks Run to return once the loop is idle. Callbacks and promises
// still in flight are delivered first.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closing = true
	l.mu.Unlock()
	l.signal()
}

// Pending returns the number of unsettled promises bound to the loop.
func (l *Loop) Pending() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.promises))
}

// track registers an unsettled promise. It reports false once Run has
// returned; the promise must then be abandoned by the caller.
func (l *Loop) track(abandon func(error)) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finished {
		return 0, false
	}
	l.nextID++
	l.promises[l.nextID] = abandon
	return l.nextID, true
}

func (l *Loop) untrack(id uint64) {
	l.mu.Lock()
	_, ok := l.promises[id]
	delete(l.promises, id)
	idle := ok && len(l.promises) == 0
	l.mu.Unlock()
	if idle {
		l.signal()
	}
}
