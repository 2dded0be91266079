package asyncrt

import (
	"runtime"
	"sync/atomic"
	"time"
)

// globalQueueCheckInterval is the default for RuntimeConfig's
// globalPollInterval: every this-many ticks of the run loop, a worker
// checks the global queue before its own local queue, so tasks
// submitted from outside (or overflowed from a busy sibling) cannot be
// starved by a steady supply of local-queue work. The LIFO slot is
// still checked before this, so a task that keeps refilling the slot
// is not bounded by it.
// Mirrors the "check global roughly every 61 ticks" fairness knob common
// to work-stealing runtimes.
const globalQueueCheckInterval = 61

// stealBatchSize is the default for RuntimeConfig's stealBatchSize: how
// many tasks a single batch-steal round moves in one go, for the batch
// steal round.
const stealBatchSize = 32

// spinBeforeParkIters is the default for RuntimeConfig's
// spinBeforePark: how many empty-queue iterations, re-attempting all
// three steal rounds, a worker spins through before it actually parks
// (the park step of the worker loop).
const spinBeforeParkIters = 4

type worker struct {
	idx   int
	sched *Scheduler

	local    *localQueue
	lifoSlot atomic.Pointer[task]

	parked atomic.Bool
	parkCh chan struct{}

	rngState uint64
	ticks    uint64
}

func newWorker(idx int, sched *Scheduler) *worker {
	capacity := defaultLocalQueueCapacity
	if sched.cfg != nil && sched.cfg.queueCapacity > 0 {
		capacity = sched.cfg.queueCapacity
	}
	w := &worker{
		idx:      idx,
		sched:    sched,
		local:    newLocalQueue(capacity),
		parkCh:   make(chan struct{}, 1),
		rngState: uint64(idx)*2654435761 + uint64(time.Now().UnixNano()),
	}
	if w.rngState == 0 {
		w.rngState = 1
	}
	return w
}

// nextRand produces the next value from a xorshift64* generator, used
// only for picking a steal victim; it does not need to be
// cryptographically sound, only cheap and thread-confined (each worker
// owns its own state, no contention).
func (w *worker) nextRand() uint64 {
	x := w.rngState
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	w.rngState = x
	return x * 2685821657736338717
}

// run is the worker's main loop. It exits once the
// scheduler signals shutdown and no more work is reachable.
func (w *worker) run() {
	defer w.sched.wg.Done()
	spins := 0
	spinLimit := spinBeforeParkIters
	if w.sched.cfg != nil && w.sched.cfg.spinBeforePark > 0 {
		spinLimit = w.sched.cfg.spinBeforePark
	}
	for {
		if w.sched.stopping.Load() && w.sched.drained() {
			return
		}

		t, ok := w.nextTask()
		if !ok {
			spins++
			if spins <= spinLimit {
				continue
			}
			spins = 0
			if w.sched.stopping.Load() && w.sched.drained() {
				return
			}
			logStealStarved(w.idx)
			w.park()
			continue
		}
		spins = 0
		w.execute(t)
	}
}

// nextTask implements the per-tick source ordering:
// LIFO slot, periodic global-queue check, local queue, global queue,
// then three rounds of stealing.
func (w *worker) nextTask() (*task, bool) {
	w.ticks++

	if w.sched.cfg == nil || w.sched.cfg.enableLIFOSlot {
		if t := w.lifoSlot.Swap(nil); t != nil {
			return t, true
		}
	}

	interval := uint64(globalQueueCheckInterval)
	if w.sched.cfg != nil && w.sched.cfg.globalPollInterval > 0 {
		interval = uint64(w.sched.cfg.globalPollInterval)
	}
	if w.ticks%interval == 0 {
		if t, ok := w.sched.global.pop(); ok {
			return t, true
		}
	}

	if t, ok := w.local.popTail(); ok {
		return t, true
	}

	if t, ok := w.sched.global.pop(); ok {
		return t, true
	}

	return w.sched.steal(w)
}

// execute drives t exactly once through either a cancellation callback
// or a single Future.Poll.
func (w *worker) execute(t *task) {
	if t.phase.Load() == PhaseCancelled {
		if t.onCancel != nil {
			t.onCancel()
		}
		w.sched.taskCompleted()
		return
	}

	if !t.phase.TryTransition(PhaseRunnable, PhaseRunning) {
		// Lost a race with a concurrent abort: skip the poll and drop
		// the task here, as in the Cancelled case above.
		if t.phase.Load() == PhaseCancelled {
			if t.onCancel != nil {
				t.onCancel()
			}
			w.sched.taskCompleted()
		}
		return
	}

	t.homeWorker.Store(int32(w.idx))

	waker := newTaskWaker(t)
	cx := &Context{waker: waker, reactor: w.sched.reactor, budget: NewBudget(DefaultBudget)}

	done := w.pollTask(t, cx)
	if done {
		t.phase.Store(PhaseCompleted)
		w.sched.taskCompleted()
		return
	}

	// Commit the not-done result, but a wake (or abort) may have raced
	// in while we were still inside poll. Retry against whatever phase
	// actually landed instead of assuming Running.
	for {
		switch t.phase.Load() {
		case PhaseRunning:
			if t.phase.TryTransition(PhaseRunning, PhaseAwaitingWake) {
				return
			}
		case PhaseRunningNotified:
			// A wake landed mid-poll: treat it as poll-once-more rather
			// than parking a task that's already due to run again.
			if t.phase.TryTransition(PhaseRunningNotified, PhaseRunnable) {
				w.sched.scheduleWoken(t)
				return
			}
		case PhaseCancelled:
			if t.onCancel != nil {
				t.onCancel()
			}
			w.sched.taskCompleted()
			return
		default:
			return
		}
	}
}

// pollTask calls t.poll, converting a panic into a delivered
// TaskPanicError instead of crashing the worker: a panicking Future's
// Poll must not take the whole worker down with it.
func (w *worker) pollTask(t *task, cx *Context) (done bool) {
	defer func() {
		if r := recover(); r != nil {
			done = true
			pe := &TaskPanicError{Value: r, Stack: capturePanicStack(), TaskID: t.id}
			t.panicErr.Store(pe)
			logTaskPanic(pe)
			if t.onPanic != nil {
				t.onPanic(pe)
			}
		}
	}()
	return t.poll(cx)
}

// park marks w idle and blocks until unparked or the scheduler shuts
// down. Between setting parked/idleCount and actually blocking, it
// claims any pending wakeOne signal that raced in after the caller's
// last (empty) nextTask check -- without this double-check, such a wake
// would see idleCount==0, find no parked peer, and be lost while w goes
// on to block on work that is already queued.
func (w *worker) park() {
	w.parked.Store(true)
	w.sched.idleCount.Add(1)
	if w.sched.claimPendingWake() {
		w.sched.idleCount.Add(-1)
		w.parked.Store(false)
		return
	}
	select {
	case <-w.parkCh:
	case <-w.sched.shutdownCh:
	}
	w.parked.Store(false)
}

// unpark wakes w if it is currently parked; a no-op (and safe to call
// redundantly) otherwise.
func (w *worker) unpark() {
	if w.parked.CompareAndSwap(true, false) {
		w.sched.idleCount.Add(-1)
		w.sched.claimPendingWake()
		select {
		case w.parkCh <- struct{}{}:
		default:
		}
	}
}

func capturePanicStack() []byte {
	buf := make([]byte, 4096)
	for {
		n := runtime.Stack(buf, false)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, len(buf)*2)
	}
}
