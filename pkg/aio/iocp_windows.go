//go:build windows

package aio

import (
	"syscall"
	"time"
	"unsafe"

	"github.com/brickingsoft/coio/pkg/buf"
	"golang.org/x/sys/windows"
)

// iocpDriver is the completion port backend. Read, write, accept, connect
// and the WSA verbs run natively through the port; open, stat, close and
// the vectored verbs run synchronously at submit and surface through the
// next Wait, matching the unix emulation.
type iocpDriver struct {
	port       windows.Handle
	registry   *Registry
	associated map[windows.Handle]struct{}
	intake     []Entry
}

func newIOCPDriver(options Options) (*iocpDriver, error) {
	port, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, newOpErr("create completion port", err)
	}
	return &iocpDriver{
		port:       port,
		registry:   NewRegistry(options.RegistryCapacity),
		associated: make(map[windows.Handle]struct{}),
	}, nil
}

func (d *iocpDriver) Name() string {
	return "iocp"
}

func (d *iocpDriver) Registry() *Registry {
	return d.registry
}

func (d *iocpDriver) Supports(kind OpKind) Support {
	switch kind {
	case OpRead, OpWrite, OpReadFixed, OpWriteFixed,
		OpAccept, OpConnect, OpRecv, OpSend, OpRecvMsg, OpSendMsg:
		return SupportNative
	case OpNop, OpReadVector, OpWriteVector, OpOpen, OpCloseFd, OpStat, OpCancel:
		return SupportEmulated
	default:
		return SupportNone
	}
}

func (d *iocpDriver) associate(h windows.Handle) error {
	if _, ok := d.associated[h]; ok {
		return nil
	}
	if _, err := windows.CreateIoCompletionPort(h, d.port, 0, 0); err != nil {
		return newOpErr("associate handle", err)
	}
	d.associated[h] = struct{}{}
	return nil
}

func (d *iocpDriver) Submit(op *Operation) (key Key, err error) {
	if d.Supports(op.kind) == SupportNone {
		err = ErrUnsupported
		return
	}
	key, err = d.registry.Insert(op)
	if err != nil {
		return
	}
	if startErr := d.start(op, key); startErr != nil {
		d.intake = append(d.intake, Entry{Key: key, Err: startErr})
	}
	return
}

// start issues the system call behind op. A nil return means a completion
// packet will arrive through the port or was already queued to intake.
func (d *iocpDriver) start(op *Operation, key Key) error {
	h := windows.Handle(op.fd)
	switch op.kind {
	case OpNop:
		d.intake = append(d.intake, Entry{Key: key})
		return nil
	case OpRead, OpReadFixed:
		if err := d.associate(h); err != nil {
			return err
		}
		sys := d.registry.arm(key)
		setOverlappedOffset(&sys.overlapped, op.offset)
		return pendingOK(op.kind, windows.ReadFile(h, buf.Writable(op.b), nil, &sys.overlapped))
	case OpWrite, OpWriteFixed:
		if err := d.associate(h); err != nil {
			return err
		}
		sys := d.registry.arm(key)
		setOverlappedOffset(&sys.overlapped, op.offset)
		return pendingOK(op.kind, windows.WriteFile(h, buf.Initialized(op.b), nil, &sys.overlapped))
	case OpAccept:
		return d.startAccept(op, key)
	case OpConnect:
		return d.startConnect(op, key)
	case OpRecv:
		if err := d.associate(h); err != nil {
			return err
		}
		sys := d.registry.arm(key)
		sys.wsabuf = windows.WSABuf{Len: uint32(op.b.Cap()), Buf: (*byte)(op.b.Ptr())}
		return pendingOK(op.kind, windows.WSARecv(h, &sys.wsabuf, 1, &sys.qty, &sys.wsaflags, &sys.overlapped, nil))
	case OpSend:
		if err := d.associate(h); err != nil {
			return err
		}
		sys := d.registry.arm(key)
		sys.wsabuf = windows.WSABuf{Len: uint32(op.b.Len()), Buf: (*byte)(op.b.Ptr())}
		return pendingOK(op.kind, windows.WSASend(h, &sys.wsabuf, 1, &sys.qty, 0, &sys.overlapped, nil))
	case OpRecvMsg:
		if err := d.associate(h); err != nil {
			return err
		}
		sys := d.registry.arm(key)
		sys.wsabuf = windows.WSABuf{Len: uint32(op.b.Cap()), Buf: (*byte)(op.b.Ptr())}
		sys.rsaLen = int32(unsafe.Sizeof(op.rsa))
		from := (*windows.RawSockaddrAny)(unsafe.Pointer(&op.rsa))
		return pendingOK(op.kind, windows.WSARecvFrom(h, &sys.wsabuf, 1, &sys.qty, &sys.wsaflags, from, &sys.rsaLen, &sys.overlapped, nil))
	case OpSendMsg:
		if err := d.associate(h); err != nil {
			return err
		}
		var to windows.Sockaddr
		if op.rsaLen > 0 {
			var decErr error
			if to, decErr = rawToWinSockaddr(&op.rsa); decErr != nil {
				return decErr
			}
		}
		sys := d.registry.arm(key)
		sys.wsabuf = windows.WSABuf{Len: uint32(op.b.Len()), Buf: (*byte)(op.b.Ptr())}
		return pendingOK(op.kind, windows.WSASendto(h, &sys.wsabuf, 1, &sys.qty, 0, to, &sys.overlapped, nil))
	case OpCancel:
		d.cancelTarget(op.target)
		d.intake = append(d.intake, Entry{Key: key})
		return nil
	default:
		n, opErr := performSyncWindows(op)
		d.intake = append(d.intake, Entry{Key: key, N: n, Err: opErr})
		return nil
	}
}

func (d *iocpDriver) startAccept(op *Operation, key Key) error {
	ls := windows.Handle(op.fd)
	if err := d.associate(ls); err != nil {
		return err
	}
	family := windows.AF_INET
	if sa, err := windows.Getsockname(ls); err == nil {
		if _, ok := sa.(*windows.SockaddrInet6); ok {
			family = windows.AF_INET6
		}
	}
	as, err := windows.WSASocket(int32(family), windows.SOCK_STREAM, 0, nil, 0, windows.WSA_FLAG_OVERLAPPED|windows.WSA_FLAG_NO_HANDLE_INHERIT)
	if err != nil {
		return newOpErr(op.kind.String(), err)
	}
	sys := d.registry.arm(key)
	sys.accepted = as
	half := uint32(len(sys.addrBuf) / 2)
	acceptErr := windows.AcceptEx(ls, as, &sys.addrBuf[0], 0, half, half, &sys.qty, &sys.overlapped)
	if err = pendingOK(op.kind, acceptErr); err != nil {
		_ = windows.Closesocket(as)
		return err
	}
	return nil
}

func (d *iocpDriver) startConnect(op *Operation, key Key) error {
	h := windows.Handle(op.fd)
	if err := d.associate(h); err != nil {
		return err
	}
	sa, err := rawToWinSockaddr(&op.rsa)
	if err != nil {
		return err
	}
	// ConnectEx requires a bound socket
	switch sa.(type) {
	case *windows.SockaddrInet6:
		_ = windows.Bind(h, &windows.SockaddrInet6{})
	default:
		_ = windows.Bind(h, &windows.SockaddrInet4{})
	}
	sys := d.registry.arm(key)
	return pendingOK(op.kind, windows.ConnectEx(h, sa, nil, 0, nil, &sys.overlapped))
}

func (d *iocpDriver) cancelTarget(target Key) {
	op := d.registry.Get(target)
	if op == nil {
		return
	}
	op.flags |= opCancelRequested
	sys := d.registry.sysOf(target)
	if sys == nil {
		return
	}
	_ = windows.CancelIoEx(windows.Handle(op.fd), &sys.overlapped)
}

func (d *iocpDriver) Cancel(target Key) error {
	d.cancelTarget(target)
	return nil
}

func (d *iocpDriver) Wait(entries []Entry, timeout time.Duration) (n int, err error) {
	n = d.drainIntake(entries)
	ms := uint32(windows.INFINITE)
	if n > 0 || timeout == 0 {
		ms = 0
	} else if timeout > 0 {
		ms = uint32(timeout / time.Millisecond)
		if ms == 0 {
			ms = 1
		}
	}
	for n < len(entries) {
		var qty uint32
		var ckey uintptr
		var ov *windows.Overlapped
		waitErr := windows.GetQueuedCompletionStatus(d.port, &qty, &ckey, &ov, ms)
		ms = 0
		if ov == nil {
			// wake post or timeout
			break
		}
		key := overlappedKey(ov)
		entries[n] = d.translate(key, qty, waitErr)
		n++
	}
	n += d.drainIntake(entries[n:])
	return
}

func (d *iocpDriver) translate(key Key, qty uint32, waitErr error) (entry Entry) {
	entry.Key = key
	op := d.registry.Get(key)
	if waitErr != nil {
		if waitErr == windows.ERROR_OPERATION_ABORTED {
			entry.Err = ErrCanceled
		} else if op != nil {
			entry.Err = newOpErr(op.kind.String(), waitErr)
		} else {
			entry.Err = newOpErr("iocp", waitErr)
		}
		d.closeAbandonedAccept(key)
		return
	}
	entry.N = int(qty)
	if op == nil {
		return
	}
	switch op.kind {
	case OpAccept:
		sys := d.registry.sysOf(key)
		ls := op.fd
		_ = windows.Setsockopt(sys.accepted, windows.SOL_SOCKET, windows.SO_UPDATE_ACCEPT_CONTEXT,
			(*byte)(unsafe.Pointer(&ls)), int32(unsafe.Sizeof(ls)))
		d.fillAcceptAddr(op, sys)
		entry.N = int(sys.accepted)
	case OpConnect:
		h := windows.Handle(op.fd)
		_ = windows.Setsockopt(h, windows.SOL_SOCKET, windows.SO_UPDATE_CONNECT_CONTEXT, nil, 0)
	case OpRecvMsg:
		if sys := d.registry.sysOf(key); sys != nil {
			op.rsaLen = uint32(sys.rsaLen)
		}
	default:
	}
	return
}

func (d *iocpDriver) fillAcceptAddr(op *Operation, sys *sysSlot) {
	var local, remote *windows.RawSockaddrAny
	var localLen, remoteLen int32
	half := uint32(len(sys.addrBuf) / 2)
	windows.GetAcceptExSockaddrs(&sys.addrBuf[0], 0, half, half, &local, &localLen, &remote, &remoteLen)
	if remote != nil {
		op.rsaLen = uint32(copyRawSockaddr(&op.rsa, remote, remoteLen))
	}
}

// closeAbandonedAccept releases the pre-created socket of a failed accept.
func (d *iocpDriver) closeAbandonedAccept(key Key) {
	op := d.registry.Get(key)
	if op == nil || op.kind != OpAccept {
		return
	}
	sys := d.registry.sysOf(key)
	if sys != nil && sys.accepted != 0 && sys.accepted != windows.InvalidHandle {
		_ = windows.Closesocket(sys.accepted)
		sys.accepted = windows.InvalidHandle
	}
}

func (d *iocpDriver) Wake() error {
	if err := windows.PostQueuedCompletionStatus(d.port, 0, uintptr(keyWake), nil); err != nil {
		return newOpErr("post completion", err)
	}
	return nil
}

func (d *iocpDriver) Close() error {
	keys := make([]Key, 0, d.registry.Inflight())
	d.registry.Range(func(key Key, _ *Operation) {
		keys = append(keys, key)
	})
	for _, key := range keys {
		d.closeAbandonedAccept(key)
		op := d.registry.Retire(key)
		op.failed(ErrClosed)
	}
	d.intake = d.intake[:0]
	if err := windows.CloseHandle(d.port); err != nil {
		return newOpErr("close", err)
	}
	return nil
}

func (d *iocpDriver) drainIntake(entries []Entry) int {
	n := copy(entries, d.intake)
	remain := copy(d.intake, d.intake[n:])
	d.intake = d.intake[:remain]
	return n
}

func setOverlappedOffset(ov *windows.Overlapped, offset uint64) {
	if offset == NoOffset {
		return
	}
	ov.Offset = uint32(offset)
	ov.OffsetHigh = uint32(offset >> 32)
}

// pendingOK folds the overlapped start convention: both a clean return and
// ERROR_IO_PENDING mean a packet will arrive through the port.
func pendingOK(kind OpKind, err error) error {
	if err == nil || err == windows.ERROR_IO_PENDING || err == syscall.Errno(windows.WSA_IO_PENDING) {
		return nil
	}
	return newOpErr(kind.String(), err)
}
