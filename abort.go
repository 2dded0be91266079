package asyncrt

import (
	"sync"
	"time"
)

// AbortSignal communicates cancellation to whatever task or operation was
// handed it, mirroring the W3C DOM AbortController/AbortSignal shape: a
// one-shot, broadcast "please stop" with an optional reason. Unlike the
// task cancellation in task.go/abort() (an internal scheduler mechanic),
// AbortSignal is a cooperative signal aimed at user code: Futures built on
// top of this module poll it the same way they poll anything else.
type AbortSignal struct {
	mu       sync.RWMutex
	aborted  bool
	reason   any
	handlers []func(reason any)
}

func newAbortSignal() *AbortSignal {
	return &AbortSignal{}
}

// Aborted reports whether the signal has fired.
func (s *AbortSignal) Aborted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aborted
}

// Reason returns the abort reason, or nil if not aborted or none given.
func (s *AbortSignal) Reason() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

// OnAbort registers handler to run when the signal fires. If the signal
// has already fired, handler runs immediately (synchronously, on the
// calling goroutine).
func (s *AbortSignal) OnAbort(handler func(reason any)) {
	if handler == nil {
		return
	}
	s.mu.Lock()
	if s.aborted {
		reason := s.reason
		s.mu.Unlock()
		handler(reason)
		return
	}
	s.handlers = append(s.handlers, handler)
	s.mu.Unlock()
}

// ThrowIfAborted returns a *CancelledError if the signal has fired, nil
// otherwise -- for Futures that want to bail out of a poll early.
func (s *AbortSignal) ThrowIfAborted() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.aborted {
		return &CancelledError{Reason: s.reason}
	}
	return nil
}

func (s *AbortSignal) abort(reason any) {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	s.reason = reason
	handlers := make([]func(reason any), len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()
	for _, h := range handlers {
		h(reason)
	}
}

// AbortController owns the write side of an AbortSignal.
type AbortController struct {
	signal *AbortSignal
}

// NewAbortController returns a controller with a fresh, unfired signal.
func NewAbortController() *AbortController {
	return &AbortController{signal: newAbortSignal()}
}

// Signal returns the controller's AbortSignal, to hand to whatever should
// observe the abort.
func (c *AbortController) Signal() *AbortSignal {
	return c.signal
}

// Abort fires the signal with reason (defaulting to a generic
// *CancelledError if reason is nil). Subsequent calls are no-ops.
func (c *AbortController) Abort(reason any) {
	if reason == nil {
		reason = &CancelledError{Reason: "aborted"}
	}
	c.signal.abort(reason)
}

// AbortTask wires signal so that firing it aborts h's underlying task
// (JoinHandle.Abort), the bridge between a user-facing cancellation
// signal and the scheduler's own cancellation mechanic.
func AbortTask[T any](signal *AbortSignal, h JoinHandle[T]) {
	signal.OnAbort(func(any) {
		h.Abort()
	})
}

// AbortAfter returns a controller that aborts itself after d elapses,
// useful for bounding a spawned task's lifetime without building a full
// Timeout combinator around it.
func AbortAfter(d time.Duration) *AbortController {
	c := NewAbortController()
	timer := time.AfterFunc(d, func() {
		c.Abort(&TimeoutError{})
	})
	c.signal.OnAbort(func(any) {
		timer.Stop()
	})
	return c
}

// AbortAny returns a signal that fires as soon as any of signals fires,
// carrying that signal's reason. A nil or empty signals yields a signal
// that never fires on its own.
func AbortAny(signals []*AbortSignal) *AbortSignal {
	composite := newAbortSignal()
	if len(signals) == 0 {
		return composite
	}

	for _, sig := range signals {
		if sig != nil && sig.Aborted() {
			composite.abort(sig.Reason())
			return composite
		}
	}

	var once sync.Once
	for _, sig := range signals {
		if sig == nil {
			continue
		}
		s := sig
		s.OnAbort(func(reason any) {
			once.Do(func() {
				composite.abort(reason)
			})
		})
	}
	return composite
}
