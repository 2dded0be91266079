package asyncrt

import (
	"sync"
	"time"
)

// BridgeStatus is the lifecycle state of a CompletionBridge.
type BridgeStatus uint32

const (
	BridgeSubmitted BridgeStatus = iota
	BridgeReady
	BridgeTimedOut
	BridgeCancelled
	BridgeFailed
)

func (s BridgeStatus) String() string {
	switch s {
	case BridgeSubmitted:
		return "Submitted"
	case BridgeReady:
		return "Ready"
	case BridgeTimedOut:
		return "TimedOut"
	case BridgeCancelled:
		return "Cancelled"
	case BridgeFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// OpKind identifies which reactor operation a CompletionBridge belongs
// to.
type OpKind uint8

const (
	OpRead OpKind = iota
	OpWrite
	OpAccept
	OpConnect
	OpTimeout
)

// OpResult is the readiness/completion payload delivered to a bridge.
// For readiness backends (epoll/kqueue) Events reports which conditions
// fired and the caller is expected to perform its own non-blocking
// syscall and re-register on EAGAIN, translating readiness into
// completion the same way a readiness-based backend always must.
type OpResult struct {
	Events IOEvents
}

// OpOutcome is what OpHandle.Poll delivers once a bridge reaches a
// terminal status.
type OpOutcome struct {
	Result    OpResult
	Err       error
	TimedOut  bool
	Cancelled bool
}

// CompletionBridge is the per-in-flight-operation record: fixed
// shape, written by exactly one side at a time (submitter before
// submission, reactor between submission and completion, submitter
// again after), status read/written with acquire/release semantics via
// the mutex below.
//
// Each bridge gets a freshly allocated token (reactor.go's tokenCounter)
// and is never recycled into a slot a later op could reuse, so the usual
// staleness problem an epoll-backed poller has to guard against (the fd
// table changing during a blocking EpollWait) cannot arise here by
// construction. fdState lookups are guarded against concurrent
// register/unregister by the reactor's fdMu and each fdState's own
// mutex (see reactor.go), not by a version counter.
type CompletionBridge struct {
	token    uint64
	kind     OpKind
	fd       int
	deadline time.Time

	mu      sync.Mutex
	status  BridgeStatus
	result  OpResult
	failErr error
	waker   Waker
	cancel  bool
}

func (b *CompletionBridge) reset(token uint64, kind OpKind, fd int, deadline time.Time) {
	b.token = token
	b.kind = kind
	b.fd = fd
	b.deadline = deadline
	b.status = BridgeSubmitted
	b.result = OpResult{}
	b.failErr = nil
	if !b.waker.IsNil() {
		b.waker.Drop()
	}
	b.waker = Waker{}
	b.cancel = false
}

// complete delivers a terminal status exactly once; subsequent calls
// (e.g. a readiness event racing a timeout) are ignored. A pending
// cancel request reclassifies an otherwise-Ready completion as
// Cancelled, matching the reactor's best-effort cancel semantics.
func (b *CompletionBridge) complete(status BridgeStatus, result OpResult, err error) {
	b.mu.Lock()
	if b.status != BridgeSubmitted {
		b.mu.Unlock()
		return
	}
	if b.cancel && status == BridgeReady {
		status = BridgeCancelled
	}
	b.status = status
	b.result = result
	b.failErr = err
	w := b.waker
	b.waker = Waker{}
	b.mu.Unlock()
	if !w.IsNil() {
		w.Wake()
	}
}

// requestCancel marks the bridge cancel-pending; best-effort, per spec
// §4.5 ("the operation may already be in flight and complete normally").
func (b *CompletionBridge) requestCancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancel = true
}

// poll reports the bridge's terminal state, or registers cx's Waker and
// reports not-done if still Submitted.
func (b *CompletionBridge) poll(cx *Context) (status BridgeStatus, result OpResult, err error, done bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == BridgeSubmitted {
		if !b.waker.IsNil() {
			b.waker.Drop()
		}
		b.waker = cx.Waker().Clone()
		return b.status, OpResult{}, nil, false
	}
	return b.status, b.result, b.failErr, true
}

// OpHandle is the caller-visible handle returned by a reactor submit_*
// call.
type OpHandle struct {
	bridge *CompletionBridge
	r      *Reactor
}

// Poll advances the operation, registering cx's Waker if it is not yet
// complete.
func (h OpHandle) Poll(cx *Context) PollResult[OpOutcome] {
	status, result, err, done := h.bridge.poll(cx)
	if !done {
		return PendingResult[OpOutcome]()
	}
	switch status {
	case BridgeReady:
		return Ready(OpOutcome{Result: result})
	case BridgeTimedOut:
		return Ready(OpOutcome{TimedOut: true, Err: &TimeoutError{}})
	case BridgeCancelled:
		return Ready(OpOutcome{Cancelled: true, Err: &CancelledError{Reason: "reactor operation cancelled"}})
	case BridgeFailed:
		return Ready(OpOutcome{Err: err})
	default:
		return PendingResult[OpOutcome]()
	}
}

// Cancel requests cancellation of the underlying operation.
func (h OpHandle) Cancel() {
	h.r.cancel(h)
}
