package asyncrt

import (
	"sync/atomic"
)

// TaskID is an opaque, monotonically increasing identifier, unique within
// a Runtime instance.
type TaskID uint64

var taskIDCounter atomic.Uint64

func nextTaskID() TaskID {
	return TaskID(taskIDCounter.Add(1))
}

// Phase is a Task's position in its lifecycle state machine:
//
//	(spawned) -> Runnable -> Running -> (Pending)   -> AwaitingWake
//	                               \-> (Ready)     -> Completed
//	     AwaitingWake --(wake)--------------------------> Runnable
//	     Any --(cancel)-----------------------------> Cancelled -> (drop)
//
// RunningNotified is Running plus "a wake arrived during this poll": a
// wake that lands while the task's owning worker is still inside
// Future.Poll cannot simply transition AwaitingWake->Runnable (the task
// isn't AwaitingWake yet), and it must not be dropped either, so it
// instead bumps Running to RunningNotified. The worker checks for this
// once poll returns, before it would otherwise commit the task to
// AwaitingWake, and treats it as poll-once-more instead of parking.
//
// Phase is stored as a lock-free CAS state machine.
type Phase uint32

const (
	PhaseIdle Phase = iota
	PhaseRunnable
	PhaseRunning
	PhaseRunningNotified
	PhaseAwaitingWake
	PhaseCompleted
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseRunnable:
		return "Runnable"
	case PhaseRunning:
		return "Running"
	case PhaseRunningNotified:
		return "RunningNotified"
	case PhaseAwaitingWake:
		return "AwaitingWake"
	case PhaseCompleted:
		return "Completed"
	case PhaseCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// phaseState is a lock-free CAS wrapper around Phase: pure atomic
// compare-and-swap, no transition validation (callers are trusted to
// request only legal transitions).
type phaseState struct {
	v atomic.Uint32
}

func newPhaseState(initial Phase) *phaseState {
	s := &phaseState{}
	s.v.Store(uint32(initial))
	return s
}

func (s *phaseState) Load() Phase { return Phase(s.v.Load()) }

func (s *phaseState) Store(p Phase) { s.v.Store(uint32(p)) }

func (s *phaseState) TryTransition(from, to Phase) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// task is the heap-allocated, type-erased scheduler bookkeeping record for
// a spawned Future.
type task struct {
	id    TaskID
	phase *phaseState

	// poll advances the erased Future exactly once. It returns true once
	// the Future has produced its Ready value (result already delivered
	// to the join slot by the closure Spawn built around it).
	poll func(cx *Context) (ready bool)

	sched *Scheduler

	// placement bookkeeping: which worker currently "owns" this task for
	// LIFO-slot purposes, i.e. which worker's wake should prefer its own
	// LIFO slot. -1 means "no preferred worker" (e.g. not yet polled).
	homeWorker atomic.Int32

	// panicErr, set if the task's poll panicked; delivered to the
	// JoinHandle instead of a Ready value.
	panicErr atomic.Pointer[TaskPanicError]

	abortRequested atomic.Bool

	// onCancel is invoked by the worker instead of poll once the task has
	// observed PhaseCancelled; it delivers a cancellation to whatever is
	// awaiting the task (set by the spawn wrapper, which closes over the
	// join slot).
	onCancel func()

	// onPanic is invoked by the worker when poll panics, delivering the
	// recovered value to whatever is awaiting the task.
	onPanic func(*TaskPanicError)
}

func newTask(sched *Scheduler, pollFn func(cx *Context) bool) *task {
	t := &task{
		id:    nextTaskID(),
		phase: newPhaseState(PhaseRunnable),
		poll:  pollFn,
		sched: sched,
	}
	t.homeWorker.Store(-1)
	return t
}

// wake implements the Task-backed Waker's wake operation.
//
// A wake that arrives while the task is Running (its owning worker is
// inside Future.Poll right now) cannot transition AwaitingWake->Runnable
// since the task isn't AwaitingWake yet, and dropping it would strand
// the task forever if poll itself returns Pending. It instead bumps
// Running to RunningNotified, a note-to-self the worker reads once poll
// returns, before it would otherwise commit to AwaitingWake.
func (t *task) wake() {
	for {
		cur := t.phase.Load()
		switch cur {
		case PhaseAwaitingWake, PhaseIdle:
			if t.phase.TryTransition(cur, PhaseRunnable) {
				if t.sched != nil {
					t.sched.scheduleWoken(t)
				}
				return
			}
		case PhaseRunning:
			if t.phase.TryTransition(PhaseRunning, PhaseRunningNotified) {
				return
			}
		case PhaseRunnable, PhaseRunningNotified:
			// Already due for another poll; coalesce.
			return
		default:
			// Completed or Cancelled: nothing to wake.
			return
		}
	}
}

// abort marks the task Cancelled; the next scheduler visit skips polling
// it and drops it instead.
//
// Only a transition out of Idle/AwaitingWake re-enqueues: those are the
// only states in which the task is parked and not already reachable
// through a run queue or a worker's exclusive hold on it. A Runnable
// task is already sitting in some queue; a Running task's owning worker
// will notice the Cancelled phase itself once its current poll returns
// (see worker.execute) and run the cancellation there directly --
// calling scheduleWoken here as well would enqueue a task that is
// already being dropped.
func (t *task) abort() {
	t.abortRequested.Store(true)
	for {
		cur := t.phase.Load()
		if cur == PhaseCompleted || cur == PhaseCancelled {
			return
		}
		if t.phase.TryTransition(cur, PhaseCancelled) {
			if (cur == PhaseAwaitingWake || cur == PhaseIdle) && t.sched != nil {
				t.sched.scheduleWoken(t)
			}
			return
		}
	}
}
