//go:build linux

package aio

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const spliceSupported = true

func newOSPoller() (osPoller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, newOpErr("epoll_create1", err)
	}
	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, newOpErr("eventfd", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(efd)}
	if err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, efd, &ev); err != nil {
		_ = unix.Close(efd)
		_ = unix.Close(epfd)
		return nil, newOpErr("epoll_ctl", err)
	}
	return &epollPoller{
		epfd:       epfd,
		eventFd:    efd,
		registered: make(map[int]struct{}),
		scratch:    make([]unix.EpollEvent, 128),
	}, nil
}

type epollPoller struct {
	epfd       int
	eventFd    int
	registered map[int]struct{}
	scratch    []unix.EpollEvent
}

func (p *epollPoller) update(fd int, read bool, write bool) error {
	if !read && !write {
		if _, ok := p.registered[fd]; !ok {
			return nil
		}
		delete(p.registered, fd)
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil && err != unix.ENOENT && err != unix.EBADF {
			return newOpErr("epoll_ctl", err)
		}
		return nil
	}
	events := uint32(unix.EPOLLONESHOT | unix.EPOLLRDHUP)
	if read {
		events |= unix.EPOLLIN
	}
	if write {
		events |= unix.EPOLLOUT
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	mode := unix.EPOLL_CTL_ADD
	if _, ok := p.registered[fd]; ok {
		mode = unix.EPOLL_CTL_MOD
	}
	err := unix.EpollCtl(p.epfd, mode, fd, &ev)
	if err == unix.EEXIST {
		err = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
	} else if err == unix.ENOENT {
		err = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
	}
	if err != nil {
		return newOpErr("epoll_ctl", err)
	}
	p.registered[fd] = struct{}{}
	return nil
}

func (p *epollPoller) wait(events []pollEvent, timeout time.Duration) (n int, err error) {
	msec := -1
	if timeout >= 0 {
		msec = int(timeout / time.Millisecond)
		if timeout > 0 && msec == 0 {
			msec = 1
		}
	}
	batch := p.scratch
	if max := len(events) / 2; max > 0 && max < len(batch) {
		batch = batch[:max]
	}
	m, waitErr := unix.EpollWait(p.epfd, batch, msec)
	if waitErr != nil {
		if waitErr == unix.EINTR {
			return 0, nil
		}
		return 0, newOpErr("epoll_wait", waitErr)
	}
	for i := 0; i < m; i++ {
		raw := batch[i]
		fd := int(raw.Fd)
		if fd == p.eventFd {
			var drain [8]byte
			_, _ = unix.Read(p.eventFd, drain[:])
			continue
		}
		hangup := raw.Events&(unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0
		if raw.Events&unix.EPOLLIN != 0 || hangup {
			events[n] = pollEvent{fd: fd}
			n++
		}
		if raw.Events&unix.EPOLLOUT != 0 || hangup {
			events[n] = pollEvent{fd: fd, write: true}
			n++
		}
	}
	return
}

func (p *epollPoller) wake() error {
	one := uint64(1)
	b := (*[8]byte)(unsafe.Pointer(&one))[:]
	if _, err := unix.Write(p.eventFd, b); err != nil && err != unix.EAGAIN {
		return newOpErr("eventfd write", err)
	}
	return nil
}

func (p *epollPoller) close() error {
	_ = unix.Close(p.eventFd)
	if err := unix.Close(p.epfd); err != nil {
		return newOpErr("close", err)
	}
	return nil
}

func sysAccept(fd int) (int, unix.Sockaddr, error) {
	nfd, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return 0, nil, err
	}
	return nfd, sa, nil
}

func performSplice(op *Operation) (int, error) {
	req := op.splice
	var offIn, offOut *int64
	if req.offIn >= 0 {
		in := req.offIn
		offIn = &in
	}
	if req.offOut >= 0 {
		out := req.offOut
		offOut = &out
	}
	n, err := unix.Splice(req.fdIn, offIn, req.fdOut, offOut, int(req.nbytes), int(req.flags))
	if err != nil {
		return 0, newOpErr(OpSplice.String(), err)
	}
	return int(n), nil
}

func sysStat(path string, stat *Stat) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return err
	}
	stat.Size = st.Size
	stat.Mode = st.Mode
	stat.Ino = st.Ino
	stat.Nlink = uint64(st.Nlink)
	stat.Uid = st.Uid
	stat.Gid = st.Gid
	stat.ModTime = time.Unix(int64(st.Mtim.Sec), int64(st.Mtim.Nsec))
	return nil
}
