package asyncrt

import (
	"os"
	"runtime"
	"strconv"
)

// RuntimeConfig holds the resolved configuration for a Runtime.
type RuntimeConfig struct {
	workerThreads      int
	queueCapacity      int
	enableWorkStealing bool
	stealBatchSize     int
	globalPollInterval int
	spinBeforePark     int
	reactorQueueDepth  int
	enableLIFOSlot     bool
	reactorBackend     string
}

// Reactor backend names accepted by WithReactorBackend.
const (
	// ReactorBackendAuto selects the platform's dedicated backend
	// (epoll on Linux, kqueue on Darwin, IOCP on Windows), falling back
	// to ReactorBackendPortable on any other platform. This is the
	// default.
	ReactorBackendAuto = "auto"

	// ReactorBackendPortable selects the timer-and-Wake-only backend
	// regardless of platform: fd readiness registration always fails
	// with ErrBackendUnsupported. Mainly useful for tests that want
	// deterministic, syscall-free reactor behavior.
	ReactorBackendPortable = "portable"
)

// Option configures a Runtime.
type Option interface {
	applyRuntime(*RuntimeConfig) error
}

type optionImpl struct {
	applyFunc func(*RuntimeConfig) error
}

func (o *optionImpl) applyRuntime(cfg *RuntimeConfig) error {
	return o.applyFunc(cfg)
}

// WithWorkerThreads sets the worker count; <= 0 means auto-detect
// (GOMAXPROCS, or the ASYNCRT_WORKER_THREADS environment override).
func WithWorkerThreads(n int) Option {
	return &optionImpl{func(cfg *RuntimeConfig) error {
		cfg.workerThreads = n
		return nil
	}}
}

// WithQueueCapacity sets each worker's local run queue capacity
// (rounded up to a power of two).
func WithQueueCapacity(n int) Option {
	return &optionImpl{func(cfg *RuntimeConfig) error {
		cfg.queueCapacity = n
		return nil
	}}
}

// WithWorkStealing toggles stealing between workers. Disabling it still
// leaves the global queue as the only cross-worker path, useful for
// deterministic single-worker-equivalent testing.
func WithWorkStealing(enabled bool) Option {
	return &optionImpl{func(cfg *RuntimeConfig) error {
		cfg.enableWorkStealing = enabled
		return nil
	}}
}

// WithStealBatchSize sets the maximum number of tasks moved by a single
// batch-steal attempt.
func WithStealBatchSize(n int) Option {
	return &optionImpl{func(cfg *RuntimeConfig) error {
		cfg.stealBatchSize = n
		return nil
	}}
}

// WithGlobalPollInterval sets how many run-loop ticks elapse between a
// worker's fairness checks of the global queue.
func WithGlobalPollInterval(n int) Option {
	return &optionImpl{func(cfg *RuntimeConfig) error {
		cfg.globalPollInterval = n
		return nil
	}}
}

// WithSpinBeforePark sets how many empty-queue iterations a worker
// busy-spins through before parking.
func WithSpinBeforePark(n int) Option {
	return &optionImpl{func(cfg *RuntimeConfig) error {
		cfg.spinBeforePark = n
		return nil
	}}
}

// WithReactorQueueDepth hints the expected number of concurrent
// in-flight reactor operations. The value is stored in the
// RuntimeConfig; the reactor does not read it and presizes nothing.
func WithReactorQueueDepth(n int) Option {
	return &optionImpl{func(cfg *RuntimeConfig) error {
		cfg.reactorQueueDepth = n
		return nil
	}}
}

// WithLIFOSlot toggles each worker's single-task LIFO slot, the fast
// path that lets a task which just woke a successor (or spawned a
// child) hand it to the same worker without going through a queue.
// Disabling it trades that cache-warm handoff for stricter FIFO-ish
// fairness between unrelated tasks sharing a worker.
func WithLIFOSlot(enabled bool) Option {
	return &optionImpl{func(cfg *RuntimeConfig) error {
		cfg.enableLIFOSlot = enabled
		return nil
	}}
}

// WithReactorBackend selects the reactor's I/O backend by name: one of
// ReactorBackendAuto (the default) or ReactorBackendPortable. An
// unrecognized name is rejected at New time.
func WithReactorBackend(name string) Option {
	return &optionImpl{func(cfg *RuntimeConfig) error {
		switch name {
		case ReactorBackendAuto, ReactorBackendPortable:
			cfg.reactorBackend = name
			return nil
		default:
			return WrapError("asyncrt: invalid reactor backend "+strconv.Quote(name), ErrInvalidOption)
		}
	}}
}

const envWorkerThreads = "ASYNCRT_WORKER_THREADS"

// resolveOptions applies Option instances over the documented defaults.
func resolveOptions(opts []Option) (*RuntimeConfig, error) {
	cfg := &RuntimeConfig{
		workerThreads:      0,
		queueCapacity:      defaultLocalQueueCapacity,
		enableWorkStealing: true,
		stealBatchSize:     stealBatchSize,
		globalPollInterval: globalQueueCheckInterval,
		spinBeforePark:     spinBeforeParkIters,
		reactorQueueDepth:  256,
		enableLIFOSlot:     true,
		reactorBackend:     ReactorBackendAuto,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRuntime(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.workerThreads <= 0 {
		if v := os.Getenv(envWorkerThreads); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				cfg.workerThreads = n
			}
		}
	}
	if cfg.workerThreads <= 0 {
		cfg.workerThreads = runtime.GOMAXPROCS(0)
	}
	return cfg, nil
}
