package asyncrt

// Future is any value supporting a single-step, non-blocking advance.
//
// Contract: Poll must never perform a syscall that could
// suspend the OS thread. If it cannot progress, it must, before
// returning PendingResult, arrange for the Context's Waker (or a clone of
// it) to be invoked at least once when progress becomes possible. Spurious
// wakes are permitted. A Future must never be polled again after it has
// returned a Ready result; behavior if it is, is unspecified.
type Future[Output any] interface {
	Poll(cx *Context) PollResult[Output]
}

// FutureFunc adapts a plain poll function to the Future interface.
type FutureFunc[Output any] func(cx *Context) PollResult[Output]

// Poll implements Future.
func (f FutureFunc[Output]) Poll(cx *Context) PollResult[Output] {
	return f(cx)
}

// ReadyFuture returns a Future that resolves immediately with v on its first
// poll.
func ReadyFuture[T any](v T) Future[T] {
	return FutureFunc[T](func(*Context) PollResult[T] {
		return Ready(v)
	})
}
