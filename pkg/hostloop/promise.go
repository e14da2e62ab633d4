package hostloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var errNilRejection = errors.New("promise rejected with nil error")

// Promise is a single-assignment result slot bound to a Loop.
//
// Resolve and Reject must be called on the loop goroutine; only the first
// settlement wins. Callbacks registered with Then always run on the loop.
// Other goroutines may wait with Await or Done. Abandon is the one way to
// settle from elsewhere, once the loop can no longer run anything.
type Promise[T any] struct {
	loop *Loop
	id   uint64

	mu        sync.Mutex
	settled   bool
	value     T
	err       error
	callbacks []func(T, error)
	finally   []func()
	done      chan struct{}
}

// NewPromise creates a pending promise. The loop stays alive until it settles.
// A promise created after Run has returned is abandoned immediately.
func NewPromise[T any](l *Loop) *Promise[T] {
	p := &Promise[T]{loop: l, done: make(chan struct{})}
	id, ok := l.track(func(err error) { p.Abandon(err) })
	if !ok {
		p.Abandon(ErrLoopClosed)
		return p
	}
	p.id = id
	return p
}

// Resolve fulfils the promise with v. It reports false if already settled.
func (p *Promise[T]) Resolve(v T) bool {
	return p.settle(v, nil)
}

// Reject fails the promise with err. It reports false if already settled.
func (p *Promise[T]) Reject(err error) bool {
	if err == nil {
		err = errNilRejection
	}
	var zero T
	return p.settle(zero, err)
}

// Abandon fails the promise with an error wrapping ErrLoopClosed without
// running its Then callbacks. It is safe from any goroutine: awaiters wake,
// callbacks are dropped. It reports false if already settled.
func (p *Promise[T]) Abandon(err error) bool {
	switch {
	case err == nil:
		err = ErrLoopClosed
	case !errors.Is(err, ErrLoopClosed):
		err = fmt.Errorf("%w: %w", err, ErrLoopClosed)
	}
	var zero T
	cbs, ok := p.store(zero, err)
	if !ok {
		return false
	}
	if len(cbs) > 0 {
		p.loop.logger.Debug("dropping promise callbacks", "count", len(cbs), "err", err)
	}
	p.finish()
	return true
}

func (p *Promise[T]) settle(v T, err error) bool {
	cbs, ok := p.store(v, err)
	if !ok {
		return false
	}
	for _, cb := range cbs {
		cb := cb
		p.loop.invoke(func() { cb(v, err) })
	}
	p.finish()
	return true
}

// store records the outcome and hands back the callbacks to run.
func (p *Promise[T]) store(v T, err error) ([]func(T, error), bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settled {
		return nil, false
	}
	p.settled = true
	p.value, p.err = v, err
	cbs := p.callbacks
	p.callbacks = nil
	close(p.done)
	return cbs, true
}

func (p *Promise[T]) finish() {
	p.mu.Lock()
	fns := p.finally
	p.finally = nil
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	p.loop.untrack(p.id)
}

// Finally registers fn to run once the promise settles, on whichever
// goroutine settles it. If the promise has settled, fn runs immediately.
// fn must not block.
func (p *Promise[T]) Finally(fn func()) {
	p.mu.Lock()
	if !p.settled {
		p.finally = append(p.finally, fn)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	fn()
}

// Then registers fn to receive the outcome on the loop goroutine. If the
// promise has already settled, fn is posted rather than called inline.
func (p *Promise[T]) Then(fn func(T, error)) {
	p.mu.Lock()
	if !p.settled {
		p.callbacks = append(p.callbacks, fn)
		p.mu.Unlock()
		return
	}
	v, err := p.value, p.err
	p.mu.Unlock()
	if postErr := p.loop.Post(func() { fn(v, err) }); postErr != nil {
		p.loop.logger.Warn("dropping promise callback", "err", postErr)
	}
}

// Done is closed once the promise settles.
func (p *Promise[T]) Done() <-chan struct{} { return p.done }

// Settled reports whether the promise has a value or an error.
func (p *Promise[T]) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Await blocks until the promise settles or ctx is done. It must not be
// called on the loop goroutine, which would deadlock the host.
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
