//go:build linux || darwin || freebsd

package aio

import (
	"syscall"
	"time"
	"unsafe"

	"github.com/brickingsoft/coio/pkg/buf"
	"golang.org/x/sys/unix"
)

// pollEvent reports one readiness edge. The platform poller filters its
// own wake channel out before returning.
type pollEvent struct {
	fd    int
	write bool
}

// osPoller is the platform half of the readiness backend: oneshot
// interest registration plus a bounded wait.
type osPoller interface {
	// update replaces the interest set of fd. Both false drops fd.
	update(fd int, read bool, write bool) error
	wait(events []pollEvent, timeout time.Duration) (int, error)
	wake() error
	close() error
}

// pollDriver emulates completion over readiness. Pollable operations are
// tried nonblocking and parked on EAGAIN until their fd turns ready; file
// operations run synchronously at submit and surface through the next
// Wait, so the completion shape stays identical to the native backends.
type pollDriver struct {
	registry *Registry
	os       osPoller
	intake   []Entry
	parked   map[int]*fdParking
	events   []pollEvent
}

type fdParking struct {
	readers []Key
	writers []Key
}

func newPollDriver(options Options) (*pollDriver, error) {
	os, err := newOSPoller()
	if err != nil {
		return nil, err
	}
	return &pollDriver{
		registry: NewRegistry(options.RegistryCapacity),
		os:       os,
		parked:   make(map[int]*fdParking),
		events:   make([]pollEvent, 128),
	}, nil
}

func (d *pollDriver) Name() string {
	return "poll"
}

func (d *pollDriver) Registry() *Registry {
	return d.registry
}

func (d *pollDriver) Supports(kind OpKind) Support {
	if kind >= opLast {
		return SupportNone
	}
	if kind == OpSplice && !spliceSupported {
		return SupportNone
	}
	return SupportEmulated
}

func (d *pollDriver) Submit(op *Operation) (key Key, err error) {
	key, err = d.registry.Insert(op)
	if err != nil {
		return
	}
	switch op.kind {
	case OpCancel:
		d.cancelTarget(op.target)
		d.intake = append(d.intake, Entry{Key: key})
	case OpAccept, OpConnect, OpRecv, OpSend, OpRecvMsg, OpSendMsg:
		n, done, opErr := tryPollable(op)
		if done {
			d.intake = append(d.intake, Entry{Key: key, N: n, Err: opErr})
			return
		}
		d.park(op, key)
	default:
		n, opErr := performSync(op)
		d.intake = append(d.intake, Entry{Key: key, N: n, Err: opErr})
	}
	return
}

func (d *pollDriver) Cancel(target Key) error {
	d.cancelTarget(target)
	return nil
}

func (d *pollDriver) Wait(entries []Entry, timeout time.Duration) (n int, err error) {
	n = d.drainIntake(entries)
	if n > 0 {
		timeout = 0
	}
	m, waitErr := d.os.wait(d.events, timeout)
	if waitErr != nil && n == 0 {
		err = waitErr
		return
	}
	for i := 0; i < m; i++ {
		d.handleEvent(d.events[i])
	}
	n += d.drainIntake(entries[n:])
	return
}

func (d *pollDriver) Wake() error {
	return d.os.wake()
}

func (d *pollDriver) Close() error {
	for fd := range d.parked {
		_ = d.os.update(fd, false, false)
		delete(d.parked, fd)
	}
	keys := make([]Key, 0, d.registry.Inflight())
	d.registry.Range(func(key Key, _ *Operation) {
		keys = append(keys, key)
	})
	for _, key := range keys {
		op := d.registry.Retire(key)
		op.failed(ErrClosed)
	}
	d.intake = d.intake[:0]
	return d.os.close()
}

func (d *pollDriver) drainIntake(entries []Entry) int {
	n := copy(entries, d.intake)
	remain := copy(d.intake, d.intake[n:])
	d.intake = d.intake[:remain]
	return n
}

func (d *pollDriver) park(op *Operation, key Key) {
	p := d.parked[op.fd]
	if p == nil {
		p = &fdParking{}
		d.parked[op.fd] = p
	}
	if pollableWrites(op.kind) {
		p.writers = append(p.writers, key)
	} else {
		p.readers = append(p.readers, key)
	}
	_ = d.os.update(op.fd, len(p.readers) > 0, len(p.writers) > 0)
}

func (d *pollDriver) handleEvent(ev pollEvent) {
	p := d.parked[ev.fd]
	if p == nil {
		return
	}
	var keys []Key
	if ev.write {
		keys, p.writers = p.writers, nil
	} else {
		keys, p.readers = p.readers, nil
	}
	for i, key := range keys {
		op := d.registry.Get(key)
		if op == nil {
			continue
		}
		n, done, opErr := tryPollable(op)
		if done {
			d.intake = append(d.intake, Entry{Key: key, N: n, Err: opErr})
			continue
		}
		// still blocked, the rest of the batch will be too
		if ev.write {
			p.writers = append(p.writers, keys[i:]...)
		} else {
			p.readers = append(p.readers, keys[i:]...)
		}
		break
	}
	if len(p.readers) == 0 && len(p.writers) == 0 {
		delete(d.parked, ev.fd)
		_ = d.os.update(ev.fd, false, false)
		return
	}
	_ = d.os.update(ev.fd, len(p.readers) > 0, len(p.writers) > 0)
}

func (d *pollDriver) cancelTarget(target Key) {
	op := d.registry.Get(target)
	if op == nil {
		return
	}
	op.flags |= opCancelRequested
	p := d.parked[op.fd]
	if p == nil {
		return
	}
	if removeKey(&p.readers, target) || removeKey(&p.writers, target) {
		d.intake = append(d.intake, Entry{Key: target, Err: ErrCanceled})
		if len(p.readers) == 0 && len(p.writers) == 0 {
			delete(d.parked, op.fd)
		}
		_ = d.os.update(op.fd, len(p.readers) > 0, len(p.writers) > 0)
	}
}

func removeKey(keys *[]Key, target Key) bool {
	for i, key := range *keys {
		if key == target {
			*keys = append((*keys)[:i], (*keys)[i+1:]...)
			return true
		}
	}
	return false
}

func pollableWrites(kind OpKind) bool {
	switch kind {
	case OpConnect, OpSend, OpSendMsg:
		return true
	default:
		return false
	}
}

// tryPollable attempts a socket operation without blocking. done is false
// when the fd needs to turn ready first.
func tryPollable(op *Operation) (n int, done bool, err error) {
	switch op.kind {
	case OpAccept:
		nfd, sa, acceptErr := sysAccept(op.fd)
		for acceptErr == unix.EINTR {
			nfd, sa, acceptErr = sysAccept(op.fd)
		}
		if acceptErr != nil {
			if wouldBlock(acceptErr) {
				return
			}
			return 0, true, newOpErr(op.kind.String(), acceptErr)
		}
		if sa != nil {
			if l, encErr := sockaddrToRaw(sa, &op.rsa); encErr == nil {
				op.rsaLen = uint32(l)
			}
		}
		return nfd, true, nil
	case OpConnect:
		if op.flags&opConnectStarted == 0 {
			sa, decErr := rawToSockaddr(&op.rsa)
			if decErr != nil {
				return 0, true, decErr
			}
			op.flags |= opConnectStarted
			connErr := unix.Connect(op.fd, sa)
			switch {
			case connErr == nil:
				return 0, true, nil
			// an interrupted connect keeps going in the kernel, so EINTR
			// parks like EINPROGRESS and SO_ERROR settles it
			case connErr == unix.EINPROGRESS || connErr == unix.EINTR || wouldBlock(connErr):
				return
			default:
				return 0, true, newOpErr(op.kind.String(), connErr)
			}
		}
		soErr, getErr := unix.GetsockoptInt(op.fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if getErr != nil {
			return 0, true, newOpErr(op.kind.String(), getErr)
		}
		if soErr != 0 {
			return 0, true, newOpErr(op.kind.String(), unix.Errno(soErr))
		}
		return 0, true, nil
	case OpRecv:
		m, _, recvErr := unix.Recvfrom(op.fd, buf.Writable(op.b), 0)
		for recvErr == unix.EINTR {
			m, _, recvErr = unix.Recvfrom(op.fd, buf.Writable(op.b), 0)
		}
		if recvErr != nil {
			if wouldBlock(recvErr) {
				return
			}
			return 0, true, newOpErr(op.kind.String(), recvErr)
		}
		return m, true, nil
	case OpSend:
		m, sendErr := unix.Write(op.fd, buf.Initialized(op.b))
		for sendErr == unix.EINTR {
			m, sendErr = unix.Write(op.fd, buf.Initialized(op.b))
		}
		if sendErr != nil {
			if wouldBlock(sendErr) {
				return
			}
			return 0, true, newOpErr(op.kind.String(), sendErr)
		}
		return m, true, nil
	case OpRecvMsg:
		var oob []byte
		if op.sysData.msg.Control != nil {
			oob = controlBytes(&op.sysData.msg)
		}
		m, oobn, _, from, recvErr := unix.Recvmsg(op.fd, buf.Writable(op.b), oob, 0)
		for recvErr == unix.EINTR {
			m, oobn, _, from, recvErr = unix.Recvmsg(op.fd, buf.Writable(op.b), oob, 0)
		}
		if recvErr != nil {
			if wouldBlock(recvErr) {
				return
			}
			return 0, true, newOpErr(op.kind.String(), recvErr)
		}
		op.sysData.msg.SetControllen(oobn)
		if from != nil {
			if l, encErr := sockaddrToRaw(from, &op.rsa); encErr == nil {
				op.sysData.msg.Namelen = uint32(l)
			}
		}
		return m, true, nil
	case OpSendMsg:
		var to unix.Sockaddr
		if op.rsaLen > 0 {
			var decErr error
			if to, decErr = rawToSockaddr(&op.rsa); decErr != nil {
				return 0, true, decErr
			}
		}
		var oob []byte
		if op.sysData.msg.Control != nil {
			oob = controlBytes(&op.sysData.msg)
		}
		m, sendErr := unix.SendmsgN(op.fd, buf.Initialized(op.b), oob, to, 0)
		for sendErr == unix.EINTR {
			m, sendErr = unix.SendmsgN(op.fd, buf.Initialized(op.b), oob, to, 0)
		}
		if sendErr != nil {
			if wouldBlock(sendErr) {
				return
			}
			return 0, true, newOpErr(op.kind.String(), sendErr)
		}
		return m, true, nil
	default:
		return 0, true, ErrUnsupported
	}
}

// performSync executes a file operation directly. The caller surfaces the
// outcome through its completion path so the shape matches native
// backends.
func performSync(op *Operation) (n int, err error) {
	switch op.kind {
	case OpNop:
		return 0, nil
	case OpRead, OpReadFixed:
		m, rdErr := readAt(op.fd, buf.Writable(op.b), op.offset)
		if rdErr != nil {
			return 0, newOpErr(op.kind.String(), rdErr)
		}
		return m, nil
	case OpWrite, OpWriteFixed:
		m, wrErr := writeAt(op.fd, buf.Initialized(op.b), op.offset)
		if wrErr != nil {
			return 0, newOpErr(op.kind.String(), wrErr)
		}
		return m, nil
	case OpReadVector:
		offset := op.offset
		for _, member := range op.vector.Buffers() {
			m, rdErr := readAt(op.fd, buf.Writable(member), offset)
			if rdErr != nil {
				if n > 0 {
					return n, nil
				}
				return 0, newOpErr(op.kind.String(), rdErr)
			}
			n += m
			if offset != NoOffset {
				offset += uint64(m)
			}
			if m < member.Cap() {
				break
			}
		}
		return n, nil
	case OpWriteVector:
		offset := op.offset
		for _, member := range op.vector.Buffers() {
			m, wrErr := writeAt(op.fd, buf.Initialized(member), offset)
			if wrErr != nil {
				if n > 0 {
					return n, nil
				}
				return 0, newOpErr(op.kind.String(), wrErr)
			}
			n += m
			if offset != NoOffset {
				offset += uint64(m)
			}
			if m < member.Len() {
				break
			}
		}
		return n, nil
	case OpOpen:
		fd, openErr := unix.Open(op.pathString(), int(op.opFlags), op.mode)
		if openErr != nil {
			return 0, newOpErr(op.kind.String(), openErr)
		}
		return fd, nil
	case OpCloseFd:
		if closeErr := unix.Close(op.fd); closeErr != nil {
			return 0, newOpErr(op.kind.String(), closeErr)
		}
		return 0, nil
	case OpStat:
		if statErr := sysStat(op.pathString(), op.stat); statErr != nil {
			return 0, newOpErr(op.kind.String(), statErr)
		}
		return 0, nil
	case OpSplice:
		m, spliceErr := performSplice(op)
		if spliceErr != nil {
			return 0, spliceErr
		}
		return m, nil
	default:
		return 0, ErrUnsupported
	}
}

func readAt(fd int, p []byte, offset uint64) (n int, err error) {
	for {
		if offset == NoOffset {
			n, err = unix.Read(fd, p)
		} else {
			n, err = unix.Pread(fd, p, int64(offset))
			if err == unix.ESPIPE {
				n, err = unix.Read(fd, p)
			}
		}
		if err != unix.EINTR {
			return
		}
	}
}

func writeAt(fd int, p []byte, offset uint64) (n int, err error) {
	for {
		if offset == NoOffset {
			n, err = unix.Write(fd, p)
		} else {
			n, err = unix.Pwrite(fd, p, int64(offset))
			if err == unix.ESPIPE {
				n, err = unix.Write(fd, p)
			}
		}
		if err != unix.EINTR {
			return
		}
	}
}

func controlBytes(msg *syscall.Msghdr) []byte {
	if msg.Control == nil || msg.Controllen == 0 {
		return nil
	}
	return unsafe.Slice(msg.Control, int(msg.Controllen))
}

func wouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}
