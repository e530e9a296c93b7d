// Package tasks implements a conditional task executor: a state machine
// that runs a secondary task the first time a boolean condition yields
// true. It is the Go reshaping of Beam's Tasks::WhenTask, rearchitected
// as an explicit finite-state machine driven by channels rather than a
// reactor-combinator DSL.
package tasks

import (
	"context"
	"sync"

	"github.com/tschof/subscriptions/pkg/expect"
)

// State is one of the states of the When state machine.
type State int

const (
	// Initial is the state before the condition has yielded true.
	Initial State = 0
	// Failed is a terminal state: the condition or the inner task failed.
	Failed State = 2
	// StartedInner is the transient state entered the instant the
	// condition first yields true, before the inner task is observed
	// running.
	StartedInner State = 3
	// Running is the state while the inner task executes.
	Running State = 4
	// Complete is a terminal state: the condition stream ended without
	// ever yielding true, or the inner task finished in Complete.
	Complete State = 1
	// Canceled is a terminal state reached via Cancel.
	Canceled State = -1
)

// IsTerminal reports whether s is one of the absorbing terminal states.
func IsTerminal(s State) bool {
	return s == Complete || s == Failed || s == Canceled
}

// Condition is a boolean reactor: it is polled, via Next, for a stream of
// Expect[bool] values until it signals completion.
type Condition interface {
	// Next blocks until the condition has a new value, the condition
	// stream ends (ok == false, err == nil), or ctx is done.
	Next(ctx context.Context) (value expect.Expect[bool], ok bool, err error)
}

// InnerTask is the task executed once Condition first yields true.
type InnerTask interface {
	// Run executes the task to completion or until ctx is canceled,
	// returning the terminal State it reached (Complete, Failed, or
	// Canceled) and, for Failed, the error that caused it.
	Run(ctx context.Context) (State, error)
}

// When runs InnerTask the first time Condition yields true.
type When struct {
	condition Condition
	inner     InnerTask

	mu      sync.Mutex
	state   State
	message error

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a When in the Initial state. It does not start running
// until Execute is called.
func New(condition Condition, inner InnerTask) *When {
	return &When{
		condition: condition,
		inner:     inner,
		state:     Initial,
		done:      make(chan struct{}),
	}
}

// State returns the current state.
func (w *When) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Err returns the error associated with a Failed terminal state, or nil.
func (w *When) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.message
}

// Done returns a channel closed once When reaches a terminal state.
func (w *When) Done() <-chan struct{} {
	return w.done
}

// Execute starts the state machine: state 0, polling Condition until it
// yields true (-> StartedInner -> Running, the inner task is started),
// yields an error (-> Failed), or its stream ends (-> Complete).
func (w *When) Execute(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	go w.s0(ctx)
}

// Cancel requests termination. From Initial it terminates immediately;
// from Running it also cancels the inner task's context. Cancel on an
// already-terminal When is a no-op.
func (w *When) Cancel() {
	w.mu.Lock()
	state := w.state
	cancel := w.cancel
	w.mu.Unlock()

	if IsTerminal(state) {
		return
	}
	if cancel != nil {
		cancel()
	}
	w.terminate(Canceled, nil)
}

// s0 is state 0 (Initial): poll the condition until it yields true, the
// stream ends, or ctx is canceled.
func (w *When) s0(ctx context.Context) {
	for {
		value, ok, err := w.condition.Next(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				w.terminate(Canceled, nil)
			default:
				w.terminate(Failed, err)
			}
			return
		}
		if !ok {
			w.terminate(Complete, nil)
			return
		}
		cond, condErr := value.Get()
		if condErr != nil {
			w.terminate(Failed, condErr)
			return
		}
		if cond {
			w.s3(ctx)
			return
		}
		// cond == false: keep polling, matching Beam's OnCondition which
		// only transitions on a true value and otherwise stays in state 0.
	}
}

// s3/s4 is the StartedInner -> Running transition: the inner task is
// created and started, then its terminal state is adopted as our own.
func (w *When) s3(ctx context.Context) {
	w.setState(StartedInner, nil)
	w.setState(Running, nil)

	state, err := w.inner.Run(ctx)
	if state == Failed {
		w.terminate(Failed, err)
		return
	}
	w.terminate(state, err)
}

func (w *When) setState(s State, err error) {
	w.mu.Lock()
	w.state = s
	w.message = err
	w.mu.Unlock()
}

func (w *When) terminate(s State, err error) {
	w.mu.Lock()
	if IsTerminal(w.state) {
		w.mu.Unlock()
		return
	}
	w.state = s
	w.message = err
	w.mu.Unlock()
	close(w.done)
}
