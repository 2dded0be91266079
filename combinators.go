package asyncrt

import "time"

// Map adapts fut's eventual output through f, without spawning a new
// task: the returned Future polls fut and applies f only once fut
// settles.
func Map[T, U any](fut Future[T], f func(T) U) Future[U] {
	return FutureFunc[U](func(cx *Context) PollResult[U] {
		v, ready := fut.Poll(cx).Value()
		if !ready {
			return PendingResult[U]()
		}
		return Ready(f(v))
	})
}

// AndThen sequences two Futures: it polls fut to completion, then feeds
// its output into f to obtain the next Future, and polls that to
// completion in turn.
func AndThen[T, U any](fut Future[T], f func(T) Future[U]) Future[U] {
	var next Future[U]
	return FutureFunc[U](func(cx *Context) PollResult[U] {
		if next == nil {
			v, ready := fut.Poll(cx).Value()
			if !ready {
				return PendingResult[U]()
			}
			next = f(v)
		}
		return next.Poll(cx)
	})
}

// Result carries either fut's value or the error that kept it from
// producing one. Combinators like Timeout need this because PollResult's
// Ready is value-only: it cannot itself distinguish "fut produced T's
// zero value" from "fut did not produce a value at all".
type Result[T any] struct {
	Value T
	Err   error
}

// Ok reports whether Err is nil.
func (r Result[T]) Ok() bool { return r.Err == nil }

// Timeout races fut against a deadline d, using the Context's Reactor
// for the timer leg (covers wrapping a never-completing Future
// in a timeout). If the deadline elapses first, the returned Future
// resolves Ready with a Result carrying a *TimeoutError instead of fut's
// value; fut itself is left running (it is the caller's responsibility
// to also Abort a spawned task backing fut, if it should stop doing
// work).
func Timeout[T any](fut Future[T], d time.Duration) Future[Result[T]] {
	var (
		deadline  time.Time
		handle    OpHandle
		submitted bool
		submitErr error
	)
	return FutureFunc[Result[T]](func(cx *Context) PollResult[Result[T]] {
		if v, ready := fut.Poll(cx).Value(); ready {
			return Ready(Result[T]{Value: v})
		}

		if cx.Reactor() == nil {
			// No reactor to race against; behave as a plain passthrough.
			return PendingResult[Result[T]]()
		}

		if !submitted {
			deadline = time.Now().Add(d)
			handle, submitErr = cx.Reactor().SubmitTimeout(deadline)
			submitted = true
		}
		if submitErr != nil {
			return PendingResult[Result[T]]()
		}

		outcome, ready := handle.Poll(cx).Value()
		if !ready {
			return PendingResult[Result[T]]()
		}
		if outcome.TimedOut {
			var zero T
			return Ready(Result[T]{Value: zero, Err: &TimeoutError{}})
		}
		// Reactor completed the timer bridge for a reason other than
		// timing out (e.g. poisoned); surface pending so the caller's
		// own error handling (on the reactor itself) takes over.
		return PendingResult[Result[T]]()
	})
}

// JoinAll polls every Future in futs concurrently (within a single
// poll -- no new tasks are spawned) and resolves once all have produced
// a value, preserving input order.
func JoinAll[T any](futs []Future[T]) Future[[]T] {
	results := make([]T, len(futs))
	done := make([]bool, len(futs))
	remaining := len(futs)
	return FutureFunc[[]T](func(cx *Context) PollResult[[]T] {
		for i, f := range futs {
			if done[i] {
				continue
			}
			if v, ready := f.Poll(cx).Value(); ready {
				results[i] = v
				done[i] = true
				remaining--
			}
		}
		if remaining > 0 {
			return PendingResult[[]T]()
		}
		return Ready(results)
	})
}

// Race polls every Future in futs concurrently and resolves with the
// value (and index) of whichever settles first; the rest are left
// unpolled thereafter.
type RaceResult[T any] struct {
	Index int
	Value T
}

func Race[T any](futs []Future[T]) Future[RaceResult[T]] {
	settled := false
	return FutureFunc[RaceResult[T]](func(cx *Context) PollResult[RaceResult[T]] {
		if settled {
			return PendingResult[RaceResult[T]]()
		}
		for i, f := range futs {
			if v, ready := f.Poll(cx).Value(); ready {
				settled = true
				return Ready(RaceResult[T]{Index: i, Value: v})
			}
		}
		return PendingResult[RaceResult[T]]()
	})
}
