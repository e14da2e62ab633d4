package hostloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T, l *Loop) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(context.Background()) }()
	return errCh
}

func waitRun(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for loop to exit")
		return nil
	}
}

func TestPostRunsInOrder(t *testing.T) {
	l := New()
	var got []int // only touched on the loop goroutine
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, l.Post(func() { got = append(got, i) }))
	}
	errCh := startLoop(t, l)
	l.Close()
	require.NoError(t, waitRun(t, errCh))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	assert.ErrorIs(t, l.Post(func() {}), ErrLoopClosed)
}

func TestRunTwice(t *testing.T) {
	l := New()
	errCh := startLoop(t, l)

	started := make(chan struct{})
	require.NoError(t, l.Post(func() { close(started) }))
	<-started
	assert.ErrorIs(t, l.Run(context.Background()), ErrLoopRunning)

	l.Close()
	require.NoError(t, waitRun(t, errCh))
}

func TestRunContextCancel(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	cancel()
	assert.ErrorIs(t, waitRun(t, errCh), context.Canceled)
}

func TestLoopWaitsForPendingPromises(t *testing.T) {
	l := New()
	p := NewPromise[string](l)
	errCh := startLoop(t, l)
	l.Close()

	select {
	case <-errCh:
		t.Fatal("loop exited with a pending promise")
	case <-time.After(20 * time.Millisecond):
	}
	assert.EqualValues(t, 1, l.Pending())

	require.NoError(t, l.Post(func() { p.Resolve("done") }))
	require.NoError(t, waitRun(t, errCh))

	v, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.Zero(t, l.Pending())
}

func TestCallbackPanicIsRecovered(t *testing.T) {
	l := New()
	ran := false
	require.NoError(t, l.Post(func() { panic("boom") }))
	require.NoError(t, l.Post(func() { ran = true }))
	errCh := startLoop(t, l)
	l.Close()
	require.NoError(t, waitRun(t, errCh))
	assert.True(t, ran)
}

func TestPromiseSettlesOnce(t *testing.T) {
	l := New()
	p := NewPromise[int](l)

	var calls int
	var results []int
	require.NoError(t, l.Post(func() {
		p.Then(func(v int, err error) {
			calls++
			results = append(results, v)
		})
		assert.True(t, p.Resolve(1))
		assert.False(t, p.Resolve(2))
		assert.False(t, p.Reject(errors.New("late")))
	}))
	errCh := startLoop(t, l)
	l.Close()
	require.NoError(t, waitRun(t, errCh))

	assert.Equal(t, 1, calls)
	assert.Equal(t, []int{1}, results)
	assert.True(t, p.Settled())
	v, err := p.Await(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestPromiseReject(t *testing.T) {
	l := New()
	p := NewPromise[[]string](l)
	boom := errors.New("boom")

	var gotErr error
	require.NoError(t, l.Post(func() {
		p.Reject(boom)
		// registered after settlement: delivered by a later loop turn
		p.Then(func(_ []string, err error) { gotErr = err })
		assert.Nil(t, gotErr)
	}))
	errCh := startLoop(t, l)
	l.Close()
	require.NoError(t, waitRun(t, errCh))

	assert.ErrorIs(t, gotErr, boom)
	_, err := p.Await(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRejectNil(t *testing.T) {
	l := New()
	p := NewPromise[bool](l)
	require.NoError(t, l.Post(func() { p.Reject(nil) }))
	errCh := startLoop(t, l)
	l.Close()
	require.NoError(t, waitRun(t, errCh))
	_, err := p.Await(context.Background())
	assert.Error(t, err)
}

func TestAwaitContext(t *testing.T) {
	l := New()
	p := NewPromise[int](l)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, p.Settled())
}

func TestRunCancelAbandonsPendingPromises(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	p := NewPromise[int](l)
	var thenRan, finallyRan bool
	p.Then(func(int, error) { thenRan = true })
	p.Finally(func() { finallyRan = true })

	cancel()
	assert.ErrorIs(t, waitRun(t, errCh), context.Canceled)

	awaitCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	_, err := p.Await(awaitCtx)
	assert.ErrorIs(t, err, ErrLoopClosed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, thenRan)
	assert.True(t, finallyRan)
	assert.Zero(t, l.Pending())

	// settling on the loop is no longer possible
	assert.False(t, p.Resolve(1))
	assert.ErrorIs(t, l.Post(func() {}), ErrLoopClosed)

	late := NewPromise[int](l)
	assert.True(t, late.Settled())
	_, err = late.Await(context.Background())
	assert.ErrorIs(t, err, ErrLoopClosed)
}

func TestAbandonWrapsLoopClosed(t *testing.T) {
	l := New()
	p := NewPromise[string](l)
	cause := errors.New("engine gone")
	require.True(t, p.Abandon(cause))
	assert.False(t, p.Abandon(cause))
	assert.False(t, p.Reject(cause))

	_, err := p.Await(context.Background())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrLoopClosed)
	assert.Zero(t, l.Pending())

	errCh := startLoop(t, l)
	l.Close()
	require.NoError(t, waitRun(t, errCh))
}
