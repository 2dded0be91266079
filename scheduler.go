package asyncrt

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Scheduler owns the pool of workers, the global injection queue, and
// the steal coordination between them: N worker goroutines, a shared
// injection queue for overflow and fairness, and a three-round stealing
// policy (random victim, longest queue, full sweep; see steal) for
// moving work to an idle worker.
type Scheduler struct {
	workers []*worker
	global  *globalQueue
	reactor *Reactor
	cfg     *RuntimeConfig

	idleCount atomic.Int32

	// pendingWakes counts wakeOne calls not yet claimed by a worker,
	// either delivered to an already-parked worker (unpark) or claimed
	// by a worker's double-check right before it would otherwise block
	// in park. This closes the race where a producer's push-then-wakeOne
	// lands in the gap between a worker's last empty nextTask and its
	// actual park call: the worker would otherwise see idleCount==0 at
	// wakeOne time, find no parked peer, and go on to park on work that
	// is already queued.
	pendingWakes atomic.Int32

	stopping   atomic.Bool
	shutdownCh chan struct{}
	wg         sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once

	// outstanding counts tasks that exist but have not yet reached
	// PhaseCompleted/PhaseCancelled; shutdown drains until this reaches
	// zero. There is no deadline: workers keep running for as long as
	// any task is outstanding.
	outstanding atomic.Int64
}

// newScheduler constructs a Scheduler from cfg and binds it to reactor
// (may be nil for a purely CPU-bound runtime configuration, though
// Runtime always supplies one today).
func newScheduler(cfg *RuntimeConfig, reactor *Reactor) *Scheduler {
	n := cfg.workerThreads
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	s := &Scheduler{
		global:     newGlobalQueue(),
		reactor:    reactor,
		cfg:        cfg,
		shutdownCh: make(chan struct{}),
	}
	s.workers = make([]*worker, n)
	for i := range s.workers {
		s.workers[i] = newWorker(i, s)
	}
	return s
}

func (s *Scheduler) start() {
	s.startOnce.Do(func() {
		s.wg.Add(len(s.workers))
		for _, w := range s.workers {
			go w.run()
		}
		logSchedulerStarted(len(s.workers))
	})
}

// stop signals every worker to exit once drained and waits for them.
func (s *Scheduler) stop() {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		close(s.shutdownCh)
		for _, w := range s.workers {
			w.unpark()
		}
		s.wg.Wait()
		logSchedulerStopped()
	})
}

func (s *Scheduler) drained() bool {
	return s.outstanding.Load() == 0
}

// spawnTask admits a brand-new task into the scheduler through the
// global injection queue: Spawn may run on any goroutine, and a worker's
// local queue only accepts pushes from its owning worker.
func (s *Scheduler) spawnTask(t *task) {
	s.outstanding.Add(1)
	s.global.push(t)
	s.wakeOne()
}

// taskCompleted must be called exactly once per task, when it leaves
// PhaseRunnable/Running for good (Completed or Cancelled-and-dropped).
func (s *Scheduler) taskCompleted() {
	s.outstanding.Add(-1)
}

// scheduleWoken places an already-existing, newly-Runnable task back
// onto a run queue.
//
// Placement policy: prefer the task's home worker -- the worker that
// last polled it -- over trying to detect "is the calling goroutine
// itself a worker", which Go has no cheap, safe way to answer without
// goroutine-local storage. This lands on the same outcome for the
// common case that matters most (a future waking itself, or waking a
// sibling it just spawned, during its own poll: homeWorker is exactly
// that worker), and additionally gives cross-thread wakes (timer fires,
// I/O completions) a sticky affinity to whichever worker is already
// warm on that task's data, which is the same trade real work-stealing
// runtimes make with their LIFO-slot heuristic.
func (s *Scheduler) scheduleWoken(t *task) {
	home := t.homeWorker.Load()
	if home >= 0 && int(home) < len(s.workers) {
		w := s.workers[home]
		if s.cfg.enableLIFOSlot {
			if old := w.lifoSlot.Swap(t); old != nil {
				// Bumped a previous occupant out of the slot; it still
				// needs a home, push it onto that worker's local queue
				// or overflow to global.
				if !w.local.push(old) {
					s.global.push(old)
				}
			}
		} else if !w.local.push(t) {
			s.global.push(t)
		}
		s.wakeOne()
		return
	}
	s.global.push(t)
	s.wakeOne()
}

// wakeOne unparks a single idle worker, if any, so newly available work
// is picked up promptly.
//
// pendingWakes is bumped unconditionally, before the idleCount check:
// that ordering is what lets a worker's park double-check (claimPendingWake)
// observe this wake even when it raced in after idleCount read 0 here.
func (s *Scheduler) wakeOne() {
	s.pendingWakes.Add(1)
	if s.idleCount.Load() == 0 {
		return
	}
	for _, w := range s.workers {
		if w.parked.Load() {
			w.unpark()
			return
		}
	}
}

// claimPendingWake consumes one outstanding wakeOne signal, if any.
func (s *Scheduler) claimPendingWake() bool {
	for {
		cur := s.pendingWakes.Load()
		if cur <= 0 {
			return false
		}
		if s.pendingWakes.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// steal implements the three-round stealing policy:
//
//  1. Pick a uniformly random victim and attempt a half-queue batch
//     steal from it.
//  2. If that yields nothing, scan all peers and target whichever has
//     the longest observed queue, stealing a single task from it.
//  3. If still nothing, sweep every peer for a best-effort batch steal,
//     then fall back to (another) global queue check.
func (s *Scheduler) steal(w *worker) (*task, bool) {
	n := len(s.workers)
	if n <= 1 || !s.cfg.enableWorkStealing {
		if t, ok := s.global.pop(); ok {
			return t, true
		}
		return nil, false
	}

	// Round 1: random victim, batch steal half its queue.
	victimIdx := int(w.nextRand() % uint64(n))
	if victimIdx != w.idx {
		victim := s.workers[victimIdx]
		half := (victim.local.length() + 1) / 2
		if half > 0 {
			if moved := victim.local.stealBatch(w.local, half); moved > 0 {
				if s.cfg.enableLIFOSlot {
					if t := w.lifoSlot.Swap(nil); t != nil {
						// A task woken into the slot meanwhile goes to the
						// tail of the local queue, so the popTail below
						// returns it ahead of the stolen tasks; it
						// overflows to global if the local queue is full.
						if !w.local.push(t) {
							s.global.push(t)
						}
					}
				}
				if t, ok := w.local.popTail(); ok {
					return t, true
				}
			}
		}
	}

	// Round 2: target the longest queue among all peers, steal one task.
	bestIdx := -1
	bestLen := 0
	for i, peer := range s.workers {
		if i == w.idx {
			continue
		}
		if l := peer.local.length(); l > bestLen {
			bestLen = l
			bestIdx = i
		}
	}
	if bestIdx >= 0 {
		if t, ok := s.workers[bestIdx].local.steal(); ok {
			return t, true
		}
	}

	// Round 3: sweep everyone for a best-effort batch steal.
	for i, peer := range s.workers {
		if i == w.idx {
			continue
		}
		if moved := peer.local.stealBatch(w.local, s.cfg.stealBatchSize); moved > 0 {
			if t, ok := w.local.popTail(); ok {
				return t, true
			}
		}
	}

	if t, ok := s.global.pop(); ok {
		return t, true
	}

	return nil, false
}
