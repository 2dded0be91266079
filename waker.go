package asyncrt

import "sync/atomic"

// Waker is a cheap-to-clone capability object that signals a previously
// Pending Future may be able to make progress. Wake and WakeByRef are safe
// to call from any goroutine, including concurrently with each other.
//
// A Go interface value is already a {data pointer, method table} pair at
// the runtime level, so wakerData provides the vtable-style erasure spec
// calls for without resorting to unsafe.Pointer bookkeeping: Clone is a
// plain struct copy, and Drop is a documented no-op since the GC reclaims
// the referenced task once no Waker (and no queue) still points at it.
type Waker struct {
	inner wakerData
}

type wakerData interface {
	wake()
	wakeByRef()
	clone() wakerData
}

// Wake consumes the Waker and requests that its associated task be
// scheduled for another poll. Calling Wake on a zero-value Waker is a
// no-op.
func (w Waker) Wake() {
	if w.inner != nil {
		w.inner.wake()
	}
}

// WakeByRef behaves like Wake but does not consume w; w remains usable
// afterwards (e.g. to wake again on a subsequent spurious condition).
func (w Waker) WakeByRef() {
	if w.inner != nil {
		w.inner.wakeByRef()
	}
}

// Clone returns a new Waker referencing the same wake target. Cloning is
// cheap: a struct copy plus, for task-backed wakers, nothing more (the
// Go GC tracks the shared *task already).
func (w Waker) Clone() Waker {
	if w.inner == nil {
		return Waker{}
	}
	return Waker{inner: w.inner.clone()}
}

// Drop releases any resources held by the Waker. Present for contract
// parity with the {wake, wake_by_ref, clone, drop} vtable shape; it is a
// no-op under Go's garbage collector.
func (w Waker) Drop() {}

// IsNil reports whether w carries no wake target (e.g. the zero Waker).
func (w Waker) IsNil() bool {
	return w.inner == nil
}

// taskWaker is the Task-backed Waker implementation described in spec
// §4.2: waking transitions the task's phase to Runnable (coalescing
// repeat wakes) and hands it to the scheduler for placement.
type taskWaker struct {
	t *task
}

func newTaskWaker(t *task) Waker {
	return Waker{inner: taskWaker{t: t}}
}

func (w taskWaker) wake()            { w.t.wake() }
func (w taskWaker) wakeByRef()       { w.t.wake() }
func (w taskWaker) clone() wakerData { return w }

// NoopWaker returns a Waker whose Wake/WakeByRef do nothing. Used by
// foreground single-poll drivers (e.g. a best-effort poll outside a
// runtime) where there is nothing to re-schedule.
func NoopWaker() Waker {
	return Waker{inner: noopWakerData{}}
}

type noopWakerData struct{}

func (noopWakerData) wake()            {}
func (noopWakerData) wakeByRef()       {}
func (noopWakerData) clone() wakerData { return noopWakerData{} }

// channelWaker wakes by sending (non-blocking) on a buffered channel; used
// by BlockOn to drive the top-level future on the calling goroutine.
type channelWaker struct {
	ch      chan struct{}
	pending *atomic.Bool
}

func newChannelWaker(ch chan struct{}, pending *atomic.Bool) Waker {
	return Waker{inner: channelWaker{ch: ch, pending: pending}}
}

func (w channelWaker) wake() { w.wakeByRef() }

func (w channelWaker) wakeByRef() {
	if w.pending.CompareAndSwap(false, true) {
		select {
		case w.ch <- struct{}{}:
		default:
		}
	}
}

func (w channelWaker) clone() wakerData { return w }
