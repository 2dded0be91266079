// Package asyncrt error types: a cause-chain-friendly error family
// (wrapping via Unwrap, comparable via errors.Is/errors.As), covering
// the error kinds this runtime needs.
package asyncrt

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that don't carry extra data.
var (
	// ErrRuntimeNotStarted is returned by BlockOn when called before
	// Start (or after a Runtime was only ever constructed, never
	// started). Spawn starts the Runtime itself instead.
	ErrRuntimeNotStarted = errors.New("asyncrt: runtime not started")

	// ErrRuntimeShuttingDown is returned by Spawn when the runtime is
	// draining outstanding work on the way to Shutdown.
	ErrRuntimeShuttingDown = errors.New("asyncrt: runtime is shutting down")

	// ErrRuntimeAlreadyStarted is returned by Start when called after
	// Shutdown. A second Start on a running Runtime is a no-op.
	ErrRuntimeAlreadyStarted = errors.New("asyncrt: runtime already started")

	// ErrInvalidOption is returned by New when an Option was given a
	// value it doesn't recognize (e.g. an unknown reactor backend name).
	ErrInvalidOption = errors.New("asyncrt: invalid option")
)

// IOError wraps an OS syscall result code surfaced by the reactor.
type IOError struct {
	Op    string
	Errno error
}

func (e *IOError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("asyncrt: io error: %v", e.Errno)
	}
	return fmt.Sprintf("asyncrt: io error during %s: %v", e.Op, e.Errno)
}

// Unwrap exposes the underlying syscall error for errors.Is/errors.As.
func (e *IOError) Unwrap() error { return e.Errno }

// TimeoutError is returned when a timed operation (reactor Timeout op, or
// the Timeout combinator) expires before the inner operation completes.
type TimeoutError struct {
	Cause error
}

func (e *TimeoutError) Error() string {
	if e.Cause == nil {
		return "asyncrt: operation timed out"
	}
	return fmt.Sprintf("asyncrt: operation timed out: %v", e.Cause)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// Is matches any *TimeoutError, regardless of Cause, so callers can use
// errors.Is(err, &TimeoutError{}) without constructing the exact cause.
func (e *TimeoutError) Is(target error) bool {
	_, ok := target.(*TimeoutError)
	return ok
}

// CancelledError is returned when a Task is aborted or an in-flight
// reactor operation is cancelled.
type CancelledError struct {
	Reason any
}

func (e *CancelledError) Error() string {
	if e.Reason == nil {
		return "asyncrt: cancelled"
	}
	if s, ok := e.Reason.(string); ok {
		return "asyncrt: cancelled: " + s
	}
	if err, ok := e.Reason.(error); ok {
		return "asyncrt: cancelled: " + err.Error()
	}
	return "asyncrt: cancelled"
}

func (e *CancelledError) Is(target error) bool {
	_, ok := target.(*CancelledError)
	return ok
}

func (e *CancelledError) Unwrap() error {
	if err, ok := e.Reason.(error); ok {
		return err
	}
	return nil
}

// ResourceExhaustedError is returned when a capacity bound is hit in a
// way that cannot simply overflow elsewhere (e.g. the reactor is out of
// completion-bridge slots).
type ResourceExhaustedError struct {
	Resource string
}

func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("asyncrt: resource exhausted: %s", e.Resource)
}

// TaskPanicError wraps a panic recovered from a task's poll, delivered
// through the owning JoinHandle.
type TaskPanicError struct {
	Value  any
	Stack  []byte
	TaskID TaskID
}

func (e *TaskPanicError) Error() string {
	return fmt.Sprintf("asyncrt: task %d panicked: %v", e.TaskID, e.Value)
}

// Unwrap returns the panic value if it is itself an error, enabling
// errors.Is/errors.As through the cause chain.
func (e *TaskPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// WrapError wraps cause with a message, preserving errors.Is(result,
// cause) via %w.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
