package asyncrt

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// IOEvents is a bitset of readiness conditions, shared by every platform
// backend.
type IOEvents uint32

const (
	EventRead IOEvents = 1 << iota
	EventWrite
	EventError
	EventHangup
)

// reactorBackend is the uniform platform abstraction a Reactor drives;
// each platform file (reactor_linux.go, reactor_darwin.go,
// reactor_windows.go, reactor_generic.go) supplies newPlatformBackend,
// selected at compile time via build tags. The portable backend in
// reactor_portable.go is built on every platform and can be selected
// at New time with WithReactorBackend.
type reactorBackend interface {
	init() error
	close() error
	registerFD(fd int, events IOEvents) error
	modifyFD(fd int, events IOEvents) error
	unregisterFD(fd int) error
	// pollOnce blocks for at most timeoutMs (a negative value blocks
	// indefinitely) and invokes dispatch once per ready fd with the
	// events that fired. Returns the number of fds dispatched.
	pollOnce(timeoutMs int, dispatch func(fd int, events IOEvents)) (int, error)
	// wake interrupts a concurrent pollOnce blocked in this backend,
	// from any goroutine.
	wake()
}

// fdState tracks the (at most one read-side, one write-side) bridges
// currently interested in a given fd, split into two slots because a
// single fd can have an outstanding read and an outstanding write
// simultaneously.
type fdState struct {
	mu    sync.Mutex
	read  *CompletionBridge
	write *CompletionBridge
}

func (s *fdState) wantedEvents() IOEvents {
	var e IOEvents
	if s.read != nil {
		e |= EventRead
	}
	if s.write != nil {
		e |= EventWrite
	}
	return e
}

// Reactor is the single per-runtime I/O driver: it owns a
// platform backend, a table of in-flight fd interests, and a timer heap
// for Timeout operations.
type Reactor struct {
	backend reactorBackend

	fdMu sync.RWMutex
	fds  map[int]*fdState

	tokenCounter atomic.Uint64

	timers *timerHeap

	poisoned  atomic.Bool
	closeOnce sync.Once
}

// newReactor constructs a Reactor bound to the given backend and
// performs its platform-specific init.
func newReactor(backend reactorBackend) (*Reactor, error) {
	r := &Reactor{
		backend: backend,
		fds:     make(map[int]*fdState),
		timers:  newTimerHeap(),
	}
	if err := backend.init(); err != nil {
		return nil, &IOError{Op: "reactor init", Errno: err}
	}
	return r, nil
}

func (r *Reactor) nextToken() uint64 { return r.tokenCounter.Add(1) }

func (r *Reactor) stateFor(fd int, create bool) *fdState {
	r.fdMu.RLock()
	st := r.fds[fd]
	r.fdMu.RUnlock()
	if st != nil || !create {
		return st
	}
	r.fdMu.Lock()
	defer r.fdMu.Unlock()
	st = r.fds[fd]
	if st == nil {
		st = &fdState{}
		r.fds[fd] = st
	}
	return st
}

func (r *Reactor) submitReadiness(kind OpKind, fd int, events IOEvents) (OpHandle, error) {
	if r.poisoned.Load() {
		return OpHandle{}, &IOError{Op: "submit", Errno: ErrReactorPoisoned}
	}
	bridge := &CompletionBridge{}
	bridge.reset(r.nextToken(), kind, fd, time.Time{})

	st := r.stateFor(fd, true)
	st.mu.Lock()
	before := st.wantedEvents()
	switch {
	case events&EventRead != 0:
		st.read = bridge
	case events&EventWrite != 0:
		st.write = bridge
	}
	after := st.wantedEvents()
	st.mu.Unlock()

	var err error
	switch {
	case before == 0:
		err = r.backend.registerFD(fd, after)
	case after != before:
		err = r.backend.modifyFD(fd, after)
	}
	if err != nil {
		st.mu.Lock()
		if st.read == bridge {
			st.read = nil
		}
		if st.write == bridge {
			st.write = nil
		}
		st.mu.Unlock()
		return OpHandle{}, &IOError{Op: "register", Errno: err}
	}
	return OpHandle{bridge: bridge, r: r}, nil
}

// SubmitRead registers interest in fd becoming read-ready.
func (r *Reactor) SubmitRead(fd int) (OpHandle, error) {
	return r.submitReadiness(OpRead, fd, EventRead)
}

// SubmitWrite registers interest in fd becoming write-ready.
func (r *Reactor) SubmitWrite(fd int) (OpHandle, error) {
	return r.submitReadiness(OpWrite, fd, EventWrite)
}

// SubmitAccept registers interest in listenFD having a connection to
// accept (read-readiness, per the readiness-backend translation in
// the reactor.
func (r *Reactor) SubmitAccept(listenFD int) (OpHandle, error) {
	return r.submitReadiness(OpAccept, listenFD, EventRead)
}

// SubmitConnect registers interest in fd completing an in-progress
// connect (write-readiness).
func (r *Reactor) SubmitConnect(fd int) (OpHandle, error) {
	return r.submitReadiness(OpConnect, fd, EventWrite)
}

// SubmitTimeout arms a one-shot timer; the returned OpHandle resolves
// to TimedOut once deadline has passed.
func (r *Reactor) SubmitTimeout(deadline time.Time) (OpHandle, error) {
	if r.poisoned.Load() {
		return OpHandle{}, &IOError{Op: "submit", Errno: ErrReactorPoisoned}
	}
	bridge := &CompletionBridge{}
	bridge.reset(r.nextToken(), OpTimeout, -1, deadline)
	r.timers.add(deadline, bridge)
	r.backend.wake()
	return OpHandle{bridge: bridge, r: r}, nil
}

// cancel implements a best-effort cancel: for readiness ops it
// unregisters the fd slot; for timeouts it completes the bridge as
// Cancelled but leaves the heap entry in place until its deadline, when
// the expired completion is ignored. If
// the operation has already completed, the cancel request is simply
// dropped (poll already observed a terminal status).
func (r *Reactor) cancel(h OpHandle) {
	b := h.bridge
	b.requestCancel()

	if b.kind == OpTimeout {
		b.complete(BridgeCancelled, OpResult{}, nil)
		return
	}

	st := r.stateFor(b.fd, false)
	if st == nil {
		return
	}
	st.mu.Lock()
	if st.read == b {
		st.read = nil
	}
	if st.write == b {
		st.write = nil
	}
	after := st.wantedEvents()
	st.mu.Unlock()

	if after == 0 {
		_ = r.backend.unregisterFD(b.fd)
	} else {
		_ = r.backend.modifyFD(b.fd, after)
	}
	b.complete(BridgeCancelled, OpResult{}, nil)
}

// PollOnce blocks on the backend for at most timeout,
// dispatches any ready fds and any expired timers, and reports the total
// number of completions dispatched. A negative timeout blocks until at
// least one event (readiness or timer) is available.
func (r *Reactor) PollOnce(timeout time.Duration) (int, error) {
	if r.poisoned.Load() {
		return 0, &IOError{Op: "poll_once", Errno: ErrReactorPoisoned}
	}

	effective := timeout
	if next, ok := r.timers.nextDeadline(); ok {
		until := time.Until(next)
		if until < 0 {
			until = 0
		}
		if timeout < 0 || until < timeout {
			effective = until
		}
	}

	timeoutMs := -1
	if effective >= 0 {
		timeoutMs = int(effective / time.Millisecond)
	}

	n, err := r.backend.pollOnce(timeoutMs, r.dispatchReadiness)
	if err != nil {
		r.poison(err)
		return n, &IOError{Op: "poll_once", Errno: err}
	}

	fired := r.timers.expire(time.Now())
	for _, b := range fired {
		b.complete(BridgeTimedOut, OpResult{}, nil)
	}
	return n + len(fired), nil
}

func (r *Reactor) dispatchReadiness(fd int, events IOEvents) {
	st := r.stateFor(fd, false)
	if st == nil {
		return
	}
	st.mu.Lock()
	var readB, writeB *CompletionBridge
	if events&(EventRead|EventError|EventHangup) != 0 && st.read != nil {
		readB, st.read = st.read, nil
	}
	if events&(EventWrite|EventError|EventHangup) != 0 && st.write != nil {
		writeB, st.write = st.write, nil
	}
	after := st.wantedEvents()
	st.mu.Unlock()

	if after == 0 {
		_ = r.backend.unregisterFD(fd)
	} else {
		_ = r.backend.modifyFD(fd, after)
	}

	if readB != nil {
		readB.complete(BridgeReady, OpResult{Events: events}, nil)
	}
	if writeB != nil {
		writeB.complete(BridgeReady, OpResult{Events: events}, nil)
	}
}

// Wake interrupts a blocked PollOnce from any goroutine, used by workers
// that submit new operations while another thread is parked inside
// PollOnce (the reactor's driving loop).
func (r *Reactor) Wake() { r.backend.wake() }

// poison marks the reactor permanently broken: every
// outstanding bridge resolves Failed and no further submissions are
// accepted.
func (r *Reactor) poison(cause error) {
	if !r.poisoned.CompareAndSwap(false, true) {
		return
	}
	logReactorPoisoned(cause)
	r.fdMu.Lock()
	states := make([]*fdState, 0, len(r.fds))
	for _, st := range r.fds {
		states = append(states, st)
	}
	r.fdMu.Unlock()
	failErr := &IOError{Op: "reactor", Errno: cause}
	for _, st := range states {
		st.mu.Lock()
		read, write := st.read, st.write
		st.read, st.write = nil, nil
		st.mu.Unlock()
		if read != nil {
			read.complete(BridgeFailed, OpResult{}, failErr)
		}
		if write != nil {
			write.complete(BridgeFailed, OpResult{}, failErr)
		}
	}
	for _, b := range r.timers.expire(time.Now().Add(365 * 24 * time.Hour)) {
		b.complete(BridgeFailed, OpResult{}, failErr)
	}
}

// Close releases the backend's OS resources. Safe to call once the
// scheduler has joined every worker.
func (r *Reactor) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.backend.close()
	})
	return err
}

// ErrReactorPoisoned is returned once a backend fatal error has been
// observed.
var ErrReactorPoisoned = fmt.Errorf("asyncrt: reactor poisoned")
