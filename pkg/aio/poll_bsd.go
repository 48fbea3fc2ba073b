//go:build darwin || freebsd

package aio

import (
	"time"

	"golang.org/x/sys/unix"
)

const spliceSupported = false

const (
	parkedRead uint8 = 1 << iota
	parkedWrite
)

func newOSPoller() (osPoller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, newOpErr("kqueue", err)
	}
	var pipeFds [2]int
	if err = unix.Pipe(pipeFds[:]); err != nil {
		_ = unix.Close(kq)
		return nil, newOpErr("pipe", err)
	}
	_ = unix.SetNonblock(pipeFds[0], true)
	_ = unix.SetNonblock(pipeFds[1], true)
	var ev unix.Kevent_t
	unix.SetKevent(&ev, pipeFds[0], unix.EVFILT_READ, unix.EV_ADD)
	if _, err = unix.Kevent(kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		_ = unix.Close(pipeFds[0])
		_ = unix.Close(pipeFds[1])
		_ = unix.Close(kq)
		return nil, newOpErr("kevent", err)
	}
	return &kqueuePoller{
		kq:         kq,
		pipeR:      pipeFds[0],
		pipeW:      pipeFds[1],
		registered: make(map[int]uint8),
		scratch:    make([]unix.Kevent_t, 128),
	}, nil
}

type kqueuePoller struct {
	kq         int
	pipeR      int
	pipeW      int
	registered map[int]uint8
	scratch    []unix.Kevent_t
}

func (p *kqueuePoller) update(fd int, read bool, write bool) error {
	current := p.registered[fd]
	if err := p.updateFilter(fd, unix.EVFILT_READ, read, current&parkedRead != 0); err != nil {
		return err
	}
	if err := p.updateFilter(fd, unix.EVFILT_WRITE, write, current&parkedWrite != 0); err != nil {
		return err
	}
	next := uint8(0)
	if read {
		next |= parkedRead
	}
	if write {
		next |= parkedWrite
	}
	if next == 0 {
		delete(p.registered, fd)
	} else {
		p.registered[fd] = next
	}
	return nil
}

func (p *kqueuePoller) updateFilter(fd int, filter int, want bool, have bool) error {
	if want == have {
		return nil
	}
	var ev unix.Kevent_t
	if want {
		unix.SetKevent(&ev, fd, filter, unix.EV_ADD|unix.EV_ONESHOT)
	} else {
		unix.SetKevent(&ev, fd, filter, unix.EV_DELETE)
	}
	if _, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		if !want && (err == unix.ENOENT || err == unix.EBADF) {
			return nil
		}
		return newOpErr("kevent", err)
	}
	return nil
}

func (p *kqueuePoller) wait(events []pollEvent, timeout time.Duration) (n int, err error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		spec := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &spec
	}
	batch := p.scratch
	if len(events) > 0 && len(events) < len(batch) {
		batch = batch[:len(events)]
	}
	m, waitErr := unix.Kevent(p.kq, nil, batch, ts)
	if waitErr != nil {
		if waitErr == unix.EINTR {
			return 0, nil
		}
		return 0, newOpErr("kevent", waitErr)
	}
	for i := 0; i < m; i++ {
		kev := batch[i]
		fd := int(kev.Ident)
		if fd == p.pipeR {
			var drain [64]byte
			_, _ = unix.Read(p.pipeR, drain[:])
			continue
		}
		write := kev.Filter == unix.EVFILT_WRITE
		// oneshot filters disarm on delivery
		if current, ok := p.registered[fd]; ok {
			if write {
				current &^= parkedWrite
			} else {
				current &^= parkedRead
			}
			if current == 0 {
				delete(p.registered, fd)
			} else {
				p.registered[fd] = current
			}
		}
		events[n] = pollEvent{fd: fd, write: write}
		n++
	}
	return
}

func (p *kqueuePoller) wake() error {
	if _, err := unix.Write(p.pipeW, []byte{1}); err != nil && err != unix.EAGAIN {
		return newOpErr("pipe write", err)
	}
	return nil
}

func (p *kqueuePoller) close() error {
	_ = unix.Close(p.pipeR)
	_ = unix.Close(p.pipeW)
	if err := unix.Close(p.kq); err != nil {
		return newOpErr("close", err)
	}
	return nil
}

func performSplice(op *Operation) (int, error) {
	return 0, ErrUnsupported
}
