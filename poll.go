package asyncrt

// PollResult is the outcome of a single Future.Poll call: either the
// Future produced its final value (Ready), or it needs to be polled again
// later, once its registered Waker fires (Pending).
//
// A Future that returns a Ready PollResult must never be polled again; the
// scheduler upholds this for Tasks, but hand-written Future composition
// (e.g. a custom combinator) must uphold it too.
type PollResult[T any] struct {
	value T
	ready bool
}

// Ready constructs a completed PollResult carrying v.
func Ready[T any](v T) PollResult[T] {
	return PollResult[T]{value: v, ready: true}
}

// PendingResult constructs an incomplete PollResult.
//
// Named PendingResult (not Pending) to avoid colliding with the common
// "Pending" identifier used elsewhere for task/promise state constants.
func PendingResult[T any]() PollResult[T] {
	return PollResult[T]{}
}

// IsReady reports whether the poll produced a final value.
func (p PollResult[T]) IsReady() bool {
	return p.ready
}

// Value returns the completed value and true, or the zero value and false
// if the result is Pending.
func (p PollResult[T]) Value() (T, bool) {
	return p.value, p.ready
}

// MustValue returns the completed value, panicking if the result is
// Pending. Intended for use after IsReady has already been checked.
func (p PollResult[T]) MustValue() T {
	if !p.ready {
		panic("asyncrt: MustValue called on a Pending PollResult")
	}
	return p.value
}
