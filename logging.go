package asyncrt

import (
	"os"
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// globalLogger holds the package-level structured logger: an
// RWMutex-guarded logiface.Logger with the stumpy JSON backend, set via
// SetLogger and read via getLogger.
var globalLogger struct {
	sync.RWMutex
	logger *logiface.Logger[*stumpy.Event]
}

func init() {
	globalLogger.logger = stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
	)
}

// SetLogger replaces the package-level logger used for runtime
// diagnostics (task panics, reactor poisoning, worker lifecycle). Passing
// nil restores a logger that discards everything.
func SetLogger(logger *logiface.Logger[*stumpy.Event]) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	if logger == nil {
		logger = stumpy.L.New()
	}
	globalLogger.logger = logger
}

func getLogger() *logiface.Logger[*stumpy.Event] {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	return globalLogger.logger
}

// diagnosticLimiter rate-limits repeated log lines for conditions that can
// otherwise flood output under sustained backpressure: failed steal
// sweeps, repeated reactor poison attempts, and the like. One event per
// category per second, capped at 5 per ten seconds, mirrors a reasonable
// "tell me it's happening, don't spam me" default.
var diagnosticLimiter = catrate.NewLimiter(map[time.Duration]int{
	time.Second:      1,
	10 * time.Second: 5,
})

// logRateLimited logs msg at the given level iff category has not already
// logged within its current rate-limit window.
func logRateLimited(category any, level logiface.Level, build func(b *logiface.Builder[*stumpy.Event]) *logiface.Builder[*stumpy.Event], msg string) {
	if _, ok := diagnosticLimiter.Allow(category); !ok {
		return
	}
	logger := getLogger()
	if logger == nil {
		return
	}
	b := logger.Build(level)
	if build != nil {
		b = build(b)
	}
	b.Log(msg)
}

// logTaskPanic records a task's recovered panic ("trap,
// mark task Failed, deliver error to JoinHandle, log").
func logTaskPanic(pe *TaskPanicError) {
	logger := getLogger()
	if logger == nil {
		return
	}
	logger.Err().
		Uint64("task_id", uint64(pe.TaskID)).
		Str("panic", pe.Error()).
		Log("task panicked")
}

// logReactorPoisoned records that the reactor backend has failed and all
// in-flight and future I/O operations will be completed with an error.
func logReactorPoisoned(cause error) {
	logger := getLogger()
	if logger == nil {
		return
	}
	logger.Crit().Err(cause).Log("reactor poisoned")
}

// logStealStarved rate-limits a diagnostic for a worker that repeatedly
// finds nothing across all three steal rounds and the global queue; a
// single occurrence is normal (momentary lull), sustained occurrences
// suggest systemic starvation worth surfacing.
func logStealStarved(workerIdx int) {
	logRateLimited("steal-starved", logiface.LevelDebug, func(b *logiface.Builder[*stumpy.Event]) *logiface.Builder[*stumpy.Event] {
		return b.Int("worker", workerIdx)
	}, "worker found no work across all steal rounds")
}

// logSchedulerStarted/logSchedulerStopped record runtime lifecycle
// transitions.
func logSchedulerStarted(workers int) {
	logger := getLogger()
	if logger == nil {
		return
	}
	logger.Info().Int("workers", workers).Log("runtime started")
}

func logSchedulerStopped() {
	logger := getLogger()
	if logger == nil {
		return
	}
	logger.Info().Log("runtime stopped")
}
