package asyncrt

import "sync"

// joinSlot holds the eventual result of a spawned Future, delivered once
// by the worker that drives the task to completion: a mutex, a settled
// flag, and a list of wakers to notify, instead of channel subscribers
// (JoinHandle is polled, not read off a channel).
type joinSlot[T any] struct {
	mu       sync.Mutex
	settled  bool
	value    T
	panicErr *TaskPanicError
	waiters  []Waker
}

func (s *joinSlot[T]) deliver(v T) {
	s.mu.Lock()
	if s.settled {
		s.mu.Unlock()
		return
	}
	s.settled = true
	s.value = v
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()
	for _, w := range waiters {
		w.Wake()
	}
}

func (s *joinSlot[T]) deliverPanic(e *TaskPanicError) {
	s.mu.Lock()
	if s.settled {
		s.mu.Unlock()
		return
	}
	s.settled = true
	s.panicErr = e
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()
	for _, w := range waiters {
		w.Wake()
	}
}

// poll returns (value, panicErr, settled).
func (s *joinSlot[T]) poll(cx *Context) (T, *TaskPanicError, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled {
		return s.value, s.panicErr, true
	}
	s.waiters = append(s.waiters, cx.Waker().Clone())
	var zero T
	return zero, nil, false
}

// JoinHandle is a Future representing "await the completion of a
// previously spawned Task". It is itself pollable, and additionally
// exposes Abort and IsFinished for direct use outside a poll loop.
type JoinHandle[T any] struct {
	t    *task
	slot *joinSlot[T]
}

// Poll implements Future[T]. A JoinHandle resolves with the task's
// Output once Completed; if the task panicked or was aborted, Poll
// returns Ready with the zero value — callers that need the panic should
// use TryValue, which surfaces the *TaskPanicError.
func (h JoinHandle[T]) Poll(cx *Context) PollResult[T] {
	v, panicErr, settled := h.slot.poll(cx)
	if !settled {
		return PendingResult[T]()
	}
	if panicErr != nil {
		var zero T
		return Ready(zero)
	}
	return Ready(v)
}

// TryValue returns the settled value, any task panic, and whether the
// task has settled yet at all (neither value nor panic is valid if false).
func (h JoinHandle[T]) TryValue() (value T, panicErr *TaskPanicError, settled bool) {
	h.slot.mu.Lock()
	defer h.slot.mu.Unlock()
	return h.slot.value, h.slot.panicErr, h.slot.settled
}

// Abort requests cancellation of the underlying task. The next time the
// scheduler visits the task, its poll is skipped and the task is
// dropped. Abort does not itself settle the JoinHandle: the handle
// settles when the scheduler drops the task, with a *TaskPanicError
// whose Value is a *CancelledError (visible through TryValue). Aborting
// a task that has already completed has no effect.
func (h JoinHandle[T]) Abort() {
	h.t.abort()
}

// IsFinished reports whether the task has already settled (Completed,
// panicked, or aborted and dropped by the scheduler). An abort request
// alone does not make it true: it becomes true once the scheduler has
// visited the aborted task.
func (h JoinHandle[T]) IsFinished() bool {
	h.slot.mu.Lock()
	defer h.slot.mu.Unlock()
	return h.slot.settled
}

// TaskID returns the ID of the underlying task, for diagnostics.
func (h JoinHandle[T]) TaskID() TaskID {
	return h.t.id
}
