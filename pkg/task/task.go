// Package task defines the deferred units of engine work scheduled off the
// host loop: correctness checks and suggestion queries.
//
// A task is split the same way every bridge call is: Perform runs on a worker
// goroutine and touches only the shared archive; Complete runs on the host
// loop and turns the raw result into the value handed to the host.
package task

import (
	"context"
	"errors"
	"fmt"
)

// Kind tells correctness checks and suggestion queries apart.
type Kind int

const (
	KindCheck Kind = iota
	KindSuggest
)

func (k Kind) String() string {
	switch k {
	case KindCheck:
		return "check"
	case KindSuggest:
		return "suggest"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Task is one immutable unit of work producing a raw result R that is
// delivered to the host as V.
type Task[R, V any] interface {
	Kind() Kind
	Word() string
	// Perform runs on a worker goroutine.
	Perform(ctx context.Context) (R, error)
	// Complete runs on the host loop after Perform succeeded.
	Complete(raw R) (V, error)
	// Release drops the task's archive reference. Safe to call more than once.
	Release()
}

// ErrTaskExecution matches every *ExecutionError.
var ErrTaskExecution = errors.New("task execution failed")

// ExecutionError reports a task that failed instead of producing a result.
type ExecutionError struct {
	Kind Kind
	Word string
	Err  error
}

func (e *ExecutionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s %q: %v", e.Kind, e.Word, e.Err)
}

func (e *ExecutionError) Unwrap() []error { return []error{ErrTaskExecution, e.Err} }

// Fail wraps err as an *ExecutionError for t, unless it already is one.
func Fail(kind Kind, word string, err error) error {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return err
	}
	return &ExecutionError{Kind: kind, Word: word, Err: err}
}

// Run performs t, turning a canceled context, a returned error or a panic
// into an *ExecutionError. It never panics.
func Run[R, V any](ctx context.Context, t Task[R, V]) (raw R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			raw, err = zero, Fail(t.Kind(), t.Word(), fmt.Errorf("panic: %v", r))
		}
	}()
	if err := ctx.Err(); err != nil {
		return raw, Fail(t.Kind(), t.Word(), err)
	}
	raw, err = t.Perform(ctx)
	if err != nil {
		return raw, Fail(t.Kind(), t.Word(), err)
	}
	return raw, nil
}
