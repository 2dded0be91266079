package asyncrt

import (
	"errors"
	"sync"
	"time"
)

// portableBackend is the platform-independent reactorBackend: it cannot
// provide real fd readiness notification without a platform-specific
// syscall, so registerFD/modifyFD/unregisterFD report
// ErrBackendUnsupported, but pollOnce still honors timers and Wake --
// enough to keep Timeout-only use of the reactor (and the runtime's own
// shutdown signaling) working.
//
// It backs newPlatformBackend on any platform with no dedicated backend
// in this module (only linux/epoll, darwin/kqueue and windows/IOCP get a
// real one), and is also selectable on those platforms via
// WithReactorBackend(ReactorBackendPortable), mainly for deterministic
// tests that don't want real fd readiness.
type portableBackend struct {
	mu     sync.Mutex
	closed bool
	wakeCh chan struct{}
}

// ErrBackendUnsupported is returned by fd-registration calls when running
// on the portable backend.
var ErrBackendUnsupported = errors.New("asyncrt: no reactor backend for this platform; fd-based operations are unavailable")

func newPortableBackend() reactorBackend {
	return &portableBackend{wakeCh: make(chan struct{}, 1)}
}

func (b *portableBackend) init() error { return nil }

func (b *portableBackend) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *portableBackend) registerFD(int, IOEvents) error { return ErrBackendUnsupported }
func (b *portableBackend) modifyFD(int, IOEvents) error   { return ErrBackendUnsupported }
func (b *portableBackend) unregisterFD(int) error         { return ErrBackendUnsupported }

func (b *portableBackend) pollOnce(timeoutMs int, _ func(fd int, events IOEvents)) (int, error) {
	if timeoutMs < 0 {
		<-b.wakeCh
		return 0, nil
	}
	select {
	case <-b.wakeCh:
	case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
	}
	return 0, nil
}

func (b *portableBackend) wake() {
	select {
	case b.wakeCh <- struct{}{}:
	default:
	}
}
