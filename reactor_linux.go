//go:build linux

package asyncrt

import (
	"sync"

	"golang.org/x/sys/unix"
)

// epollBackend is the Linux reactorBackend: an epoll instance plus a
// preallocated event buffer. Dispatch reports (fd, events) to the
// Reactor's own fdState table instead of invoking a per-fd callback
// stored alongside the poller -- the Reactor already owns that
// bookkeeping (CompletionBridge), so this backend only needs to talk
// epoll.
//
// The wake mechanism is an eventfd registered for read-readiness,
// written to from Wake.
type epollBackend struct {
	epfd     int
	wakeFD   int
	eventBuf [256]unix.EpollEvent

	mu     sync.Mutex
	closed bool
}

func newPlatformBackend() reactorBackend {
	return &epollBackend{}
}

func (b *epollBackend) init() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return err
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFD, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFD),
	}); err != nil {
		_ = unix.Close(wakeFD)
		_ = unix.Close(epfd)
		return err
	}
	b.epfd = epfd
	b.wakeFD = wakeFD
	return nil
}

func (b *epollBackend) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	_ = unix.Close(b.wakeFD)
	return unix.Close(b.epfd)
}

func (b *epollBackend) registerFD(fd int, events IOEvents) error {
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	})
}

func (b *epollBackend) modifyFD(fd int, events IOEvents) error {
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	})
}

func (b *epollBackend) unregisterFD(fd int) error {
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (b *epollBackend) pollOnce(timeoutMs int, dispatch func(fd int, events IOEvents)) (int, error) {
	n, err := unix.EpollWait(b.epfd, b.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	dispatched := 0
	for i := 0; i < n; i++ {
		fd := int(b.eventBuf[i].Fd)
		if fd == b.wakeFD {
			var buf [8]byte
			for {
				if _, rerr := unix.Read(b.wakeFD, buf[:]); rerr != nil {
					break
				}
			}
			continue
		}
		dispatch(fd, epollToEvents(b.eventBuf[i].Events))
		dispatched++
	}
	return dispatched, nil
}

func (b *epollBackend) wake() {
	var one [8]byte
	one[0] = 1
	_, _ = unix.Write(b.wakeFD, one[:])
}

func eventsToEpoll(events IOEvents) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(e uint32) IOEvents {
	var events IOEvents
	if e&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if e&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
