//go:build darwin

package asyncrt

import (
	"sync"

	"golang.org/x/sys/unix"
)

// kqueueBackend is the Darwin reactorBackend: a kqueue instance with a
// preallocated Kevent_t buffer. Wake-up is a dedicated EVFILT_USER
// trigger instead of a pipe fd, since kqueue supports user events
// natively.
type kqueueBackend struct {
	kq       int
	eventBuf [256]unix.Kevent_t

	mu     sync.Mutex
	closed bool
}

func newPlatformBackend() reactorBackend {
	return &kqueueBackend{}
}

const wakeIdent = 1

func (b *kqueueBackend) init() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	_, err = unix.Kevent(kq, []unix.Kevent_t{{
		Ident:  wakeIdent,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}, nil, nil)
	if err != nil {
		_ = unix.Close(kq)
		return err
	}
	b.kq = kq
	return nil
}

func (b *kqueueBackend) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return unix.Close(b.kq)
}

func (b *kqueueBackend) registerFD(fd int, events IOEvents) error {
	kevents := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	if len(kevents) == 0 {
		return nil
	}
	_, err := unix.Kevent(b.kq, kevents, nil, nil)
	return err
}

func (b *kqueueBackend) modifyFD(fd int, events IOEvents) error {
	all := EventRead | EventWrite
	del := eventsToKevents(fd, all&^events, unix.EV_DELETE)
	if len(del) > 0 {
		_, _ = unix.Kevent(b.kq, del, nil, nil)
	}
	add := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	if len(add) > 0 {
		if _, err := unix.Kevent(b.kq, add, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

func (b *kqueueBackend) unregisterFD(fd int) error {
	kevents := eventsToKevents(fd, EventRead|EventWrite, unix.EV_DELETE)
	_, err := unix.Kevent(b.kq, kevents, nil, nil)
	return err
}

func (b *kqueueBackend) pollOnce(timeoutMs int, dispatch func(fd int, events IOEvents)) (int, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}
	n, err := unix.Kevent(b.kq, nil, b.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	dispatched := 0
	for i := 0; i < n; i++ {
		kev := &b.eventBuf[i]
		if kev.Filter == unix.EVFILT_USER && kev.Ident == wakeIdent {
			continue
		}
		dispatch(int(kev.Ident), keventToEvents(kev))
		dispatched++
	}
	return dispatched, nil
}

func (b *kqueueBackend) wake() {
	_, _ = unix.Kevent(b.kq, []unix.Kevent_t{{
		Ident:  wakeIdent,
		Filter: unix.EVFILT_USER,
		Fflags: unix.NOTE_TRIGGER,
	}}, nil, nil)
}

func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t
	if events&EventRead != 0 {
		kevents = append(kevents, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&EventWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return kevents
}

func keventToEvents(kev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	return events
}
