package asyncrt

import (
	"errors"
	"sync/atomic"
	"time"
)

// Runtime owns a Scheduler, a Reactor, and the background goroutine that
// drives the reactor's blocking poll loop. It is the top-level handle a
// caller holds: construct with New, admit work with Spawn or BlockOn,
// and release resources with Shutdown.
type Runtime struct {
	sched   *Scheduler
	reactor *Reactor
	cfg     *RuntimeConfig

	started     atomic.Bool
	stopped     atomic.Bool
	reactorDone chan struct{}
}

// New constructs a Runtime from opts but does not start it; call Start
// (or Spawn, which starts it implicitly) before use. BlockOn does not
// start it and returns ErrRuntimeNotStarted on a Runtime never started.
func New(opts ...Option) (*Runtime, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	backend := selectReactorBackend(cfg)
	reactor, err := newReactor(backend)
	if err != nil {
		return nil, err
	}
	sched := newScheduler(cfg, reactor)
	return &Runtime{
		sched:       sched,
		reactor:     reactor,
		cfg:         cfg,
		reactorDone: make(chan struct{}),
	}, nil
}

// selectReactorBackend honors cfg.reactorBackend: ReactorBackendPortable
// always picks the portable, syscall-free backend; anything else falls
// through to the platform's dedicated one (itself a portable fallback on
// platforms with no dedicated implementation).
func selectReactorBackend(cfg *RuntimeConfig) reactorBackend {
	if cfg.reactorBackend == ReactorBackendPortable {
		return newPortableBackend()
	}
	return newPlatformBackend()
}

// Start spins up the worker pool and the reactor-driving goroutine. It is
// idempotent: calling it again after the first call is a no-op (matching
// Scheduler.start's sync.Once semantics), but calling it after Shutdown
// returns ErrRuntimeAlreadyStarted to catch reuse-after-close bugs early.
func (rt *Runtime) Start() error {
	if rt.stopped.Load() {
		return ErrRuntimeAlreadyStarted
	}
	if !rt.started.CompareAndSwap(false, true) {
		return nil
	}
	rt.sched.start()
	go rt.driveReactor()
	return nil
}

// driveReactor repeatedly blocks in the reactor's backend poll, completing
// ready I/O operations and expired timers, until Shutdown closes the
// scheduler's shutdown channel and wakes it one last time.
func (rt *Runtime) driveReactor() {
	defer close(rt.reactorDone)
	for {
		select {
		case <-rt.sched.shutdownCh:
			return
		default:
		}
		if _, err := rt.reactor.PollOnce(200 * time.Millisecond); err != nil {
			if errors.Is(err, ErrReactorPoisoned) {
				return
			}
		}
	}
}

// Shutdown stops accepting new wakes from the reactor, signals every
// worker to drain and exit, and waits for both to finish. It is safe to
// call multiple times and from any goroutine.
func (rt *Runtime) Shutdown() error {
	if !rt.stopped.CompareAndSwap(false, true) {
		return nil
	}
	rt.sched.stop()
	rt.reactor.Wake()
	<-rt.reactorDone
	return rt.reactor.Close()
}

// Reactor exposes the runtime's I/O reactor, for building higher-level
// I/O futures on top of SubmitRead/SubmitWrite/SubmitAccept/SubmitConnect/
// SubmitTimeout.
func (rt *Runtime) Reactor() *Reactor {
	return rt.reactor
}

// Spawn admits fut as a new, independently-scheduled Task and returns a
// JoinHandle for observing its result. The runtime is
// started implicitly on first use if it has not been already.
func Spawn[T any](rt *Runtime, fut Future[T]) (JoinHandle[T], error) {
	if rt.stopped.Load() {
		return JoinHandle[T]{}, ErrRuntimeShuttingDown
	}
	if err := rt.Start(); err != nil {
		return JoinHandle[T]{}, err
	}

	slot := &joinSlot[T]{}
	t := newTask(rt.sched, nil)
	t.poll = func(cx *Context) bool {
		result := fut.Poll(cx)
		v, ready := result.Value()
		if !ready {
			return false
		}
		slot.deliver(v)
		return true
	}
	t.onCancel = func() {
		slot.deliverPanic(&TaskPanicError{
			Value:  &CancelledError{Reason: "task aborted"},
			TaskID: t.id,
		})
	}
	t.onPanic = func(pe *TaskPanicError) {
		slot.deliverPanic(pe)
	}

	rt.sched.spawnTask(t)

	return JoinHandle[T]{t: t, slot: slot}, nil
}

// BlockOn drives fut to completion on the calling goroutine, outside the
// worker pool, parking the goroutine between wakes (the same
// foreground driver). It requires a started Runtime so that any I/O or
// timers fut depends on have a reactor driving them; ErrRuntimeNotStarted
// is returned otherwise.
func BlockOn[T any](rt *Runtime, fut Future[T]) (T, error) {
	var zero T
	if !rt.started.Load() {
		return zero, ErrRuntimeNotStarted
	}

	ch := make(chan struct{}, 1)
	var pending atomic.Bool
	waker := newChannelWaker(ch, &pending)
	cx := &Context{waker: waker, reactor: rt.reactor, budget: NewBudget(DefaultBudget)}

	for {
		pending.Store(false)
		result := fut.Poll(cx)
		if v, ok := result.Value(); ok {
			return v, nil
		}
		<-ch
	}
}
