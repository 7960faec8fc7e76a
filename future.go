package pulse

import (
	"context"
	"sync/atomic"

	"github.com/Tap30/pulse-go/value"
)

// State is the lifecycle position of one call.
type State int32

const (
	StateReceived State = iota
	StateValidated
	StateMerged
	StateEncoded
	StateDispatched
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateValidated:
		return "validated"
	case StateMerged:
		return "merged"
	case StateEncoded:
		return "encoded"
	case StateDispatched:
		return "dispatched"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether s is Completed or Failed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Future is the handle returned by every client operation. It never
// carries an error: failures are logged and the future settles as Failed
// with the zero value.
type Future[T any] struct {
	state  atomic.Int32
	done   chan struct{}
	result T
	decode func(value.Value) T
}

func newFuture[T any](decode func(value.Value) T) *Future[T] {
	return &Future[T]{done: make(chan struct{}), decode: decode}
}

// Done is closed once the call settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// State returns the current state without waiting.
func (f *Future[T]) State() State {
	return State(f.state.Load())
}

// Wait blocks until the call settles or ctx ends and returns the state
// reached.
func (f *Future[T]) Wait(ctx context.Context) State {
	select {
	case <-f.done:
	case <-ctx.Done():
	}
	return f.State()
}

// Get waits like Wait and returns the result, or the zero value when the
// call failed or ctx ended first.
func (f *Future[T]) Get(ctx context.Context) T {
	if f.Wait(ctx) != StateCompleted {
		var zero T
		return zero
	}
	return f.result
}

func (f *Future[T]) advance(s State) {
	f.state.Store(int32(s))
}

func (f *Future[T]) settle(s State, v value.Value) {
	if s == StateCompleted && f.decode != nil {
		f.result = f.decode(v)
	}
	f.state.Store(int32(s))
	close(f.done)
}

// tracker is the untyped view of a Future the dispatcher drives.
type tracker interface {
	advance(State)
	settle(State, value.Value)
}

func decodeBool(v value.Value) bool {
	b, _ := v.Boolean()
	return b
}

func decodeString(v value.Value) string {
	s, _ := v.Str()
	return s
}
