//go:build linux

package aio

import (
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/brickingsoft/coio/pkg/buf"
	"github.com/pawelgaczynski/giouring"
	"golang.org/x/sys/unix"
)

// ringDriver is the io_uring backend. Operations the running kernel
// carries natively go through the submission queue; the rest run through
// the same synchronous emulation the poll backend uses, so callers see one
// completion shape either way.
type ringDriver struct {
	ring     *giouring.Ring
	registry *Registry
	eventFd  int
	wakeBuf  uint64
	probed   bool
	caps     [opLast]Support
	intake   []Entry
	cqes     []*giouring.CompletionQueueEvent
	statxes  map[Key]*unix.Statx_t
	fixed    []*buf.Fixed
	fixedMu  sync.Mutex
	freeIdx  []int
}

func newRingDriver(options Options) (*ringDriver, error) {
	ring, err := giouring.CreateRing(options.Entries)
	if err != nil {
		return nil, newOpErr("io_uring_setup", err)
	}
	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		ring.QueueExit()
		return nil, newOpErr("eventfd", err)
	}
	d := &ringDriver{
		ring:     ring,
		registry: NewRegistry(options.RegistryCapacity),
		eventFd:  efd,
		cqes:     make([]*giouring.CompletionQueueEvent, 256),
		statxes:  make(map[Key]*unix.Statx_t),
	}
	if options.RegisteredBuffers > 0 {
		if err = d.registerBuffers(options.RegisteredBuffers, options.RegisteredBufferCap); err != nil {
			ring.QueueExit()
			_ = unix.Close(efd)
			return nil, err
		}
	}
	d.armWake()
	return d, nil
}

func (d *ringDriver) registerBuffers(count uint32, capacity uint32) error {
	if capacity == 0 {
		capacity = 4096
	}
	slab := make([]byte, int(count)*int(capacity))
	iovecs := make([]syscall.Iovec, count)
	d.fixed = make([]*buf.Fixed, count)
	d.freeIdx = make([]int, 0, count)
	for i := uint32(0); i < count; i++ {
		region := slab[int(i)*int(capacity) : int(i+1)*int(capacity)]
		iovecs[i] = syscall.Iovec{Base: &region[0]}
		iovecs[i].SetLen(len(region))
		d.fixed[i] = buf.NewFixed(int(i), region)
		d.freeIdx = append(d.freeIdx, int(i))
	}
	if _, err := d.ring.RegisterBuffers(iovecs); err != nil {
		return newOpErr("io_uring_register buffers", err)
	}
	return nil
}

func (d *ringDriver) Name() string {
	return "ring"
}

func (d *ringDriver) Registry() *Registry {
	return d.registry
}

func (d *ringDriver) AcquireFixed() *buf.Fixed {
	d.fixedMu.Lock()
	defer d.fixedMu.Unlock()
	if len(d.freeIdx) == 0 {
		return nil
	}
	idx := d.freeIdx[len(d.freeIdx)-1]
	d.freeIdx = d.freeIdx[:len(d.freeIdx)-1]
	f := d.fixed[idx]
	f.Reset()
	return f
}

func (d *ringDriver) ReleaseFixed(f *buf.Fixed) {
	if f == nil || f.Index() >= len(d.fixed) || d.fixed[f.Index()] != f {
		return
	}
	d.fixedMu.Lock()
	d.freeIdx = append(d.freeIdx, f.Index())
	d.fixedMu.Unlock()
}

func (d *ringDriver) Supports(kind OpKind) Support {
	if !d.probed {
		d.probe()
	}
	if kind >= opLast {
		return SupportNone
	}
	return d.caps[kind]
}

var ringOpcodes = [opLast]uint8{
	OpNop:         giouring.OpNop,
	OpRead:        giouring.OpRead,
	OpWrite:       giouring.OpWrite,
	OpReadFixed:   giouring.OpReadFixed,
	OpWriteFixed:  giouring.OpWriteFixed,
	OpReadVector:  giouring.OpReadv,
	OpWriteVector: giouring.OpWritev,
	OpAccept:      giouring.OpAccept,
	OpConnect:     giouring.OpConnect,
	OpRecv:        giouring.OpRecv,
	OpSend:        giouring.OpSend,
	OpRecvMsg:     giouring.OpRecvmsg,
	OpSendMsg:     giouring.OpSendmsg,
	OpOpen:        giouring.OpOpenat,
	OpCloseFd:     giouring.OpClose,
	OpStat:        giouring.OpStatx,
	OpSplice:      giouring.OpSplice,
	OpCancel:      giouring.OpAsyncCancel,
}

// probe asks the kernel once which opcodes it carries. Unsupported file
// verbs degrade to the synchronous emulation; unsupported socket verbs are
// refused, the poll backend covers kernels that old.
func (d *ringDriver) probe() {
	d.probed = true
	probe, err := giouring.GetProbe()
	for kind := OpKind(0); kind < opLast; kind++ {
		native := err == nil && probe != nil && probe.IsSupported(ringOpcodes[kind])
		if native {
			d.caps[kind] = SupportNative
			continue
		}
		switch kind {
		case OpNop, OpRead, OpWrite, OpReadFixed, OpWriteFixed,
			OpReadVector, OpWriteVector, OpOpen, OpCloseFd, OpStat:
			d.caps[kind] = SupportEmulated
		case OpSplice:
			if spliceSupported {
				d.caps[kind] = SupportEmulated
			} else {
				d.caps[kind] = SupportNone
			}
		default:
			d.caps[kind] = SupportNone
		}
	}
}

func (d *ringDriver) Submit(op *Operation) (key Key, err error) {
	switch d.Supports(op.kind) {
	case SupportNone:
		err = ErrUnsupported
		return
	case SupportEmulated:
		key, err = d.registry.Insert(op)
		if err != nil {
			return
		}
		n, opErr := performSync(op)
		d.intake = append(d.intake, Entry{Key: key, N: n, Err: opErr})
		return
	default:
	}
	key, err = d.registry.Insert(op)
	if err != nil {
		return
	}
	sqe := d.getSQE()
	if sqe == nil {
		d.registry.Retire(key)
		err = ErrBusy
		return
	}
	if encodeErr := d.encodeSQE(sqe, op, key); encodeErr != nil {
		sqe.PrepareNop()
		sqe.SetData64(uint64(keyCancel))
		d.registry.Retire(key)
		err = encodeErr
		return
	}
	sqe.SetData64(uint64(key))
	return
}

func (d *ringDriver) getSQE() *giouring.SubmissionQueueEntry {
	sqe := d.ring.GetSQE()
	if sqe == nil {
		_, _ = d.ring.Submit()
		sqe = d.ring.GetSQE()
	}
	return sqe
}

func (d *ringDriver) encodeSQE(sqe *giouring.SubmissionQueueEntry, op *Operation, key Key) error {
	switch op.kind {
	case OpNop:
		sqe.PrepareNop()
	case OpRead:
		sqe.PrepareRead(op.fd, uintptr(op.b.Ptr()), uint32(op.b.Cap()), op.offset)
	case OpWrite:
		sqe.PrepareWrite(op.fd, uintptr(op.b.Ptr()), uint32(op.b.Len()), op.offset)
	case OpReadFixed:
		fixed := op.b.(*buf.Fixed)
		sqe.PrepareReadFixed(op.fd, uintptr(fixed.Ptr()), uint32(fixed.Cap()), op.offset, fixed.Index())
	case OpWriteFixed:
		fixed := op.b.(*buf.Fixed)
		sqe.PrepareWriteFixed(op.fd, uintptr(fixed.Ptr()), uint32(fixed.Len()), op.offset, fixed.Index())
	case OpReadVector:
		op.sysData.iovecs = op.vector.WritableIovecs()
		sqe.PrepareReadv(op.fd, uintptr(unsafe.Pointer(&op.sysData.iovecs[0])), uint32(len(op.sysData.iovecs)), op.offset)
	case OpWriteVector:
		op.sysData.iovecs = op.vector.InitializedIovecs()
		sqe.PrepareWritev(op.fd, uintptr(unsafe.Pointer(&op.sysData.iovecs[0])), uint32(len(op.sysData.iovecs)), op.offset)
	case OpAccept:
		sqe.PrepareAccept(op.fd, uintptr(unsafe.Pointer(&op.rsa)), uint64(uintptr(unsafe.Pointer(&op.rsaLen))), 0)
	case OpConnect:
		sqe.PrepareConnect(op.fd, (*syscall.Sockaddr)(unsafe.Pointer(&op.rsa)), uint64(op.rsaLen))
	case OpRecv:
		sqe.PrepareRecv(op.fd, uintptr(op.b.Ptr()), uint32(op.b.Cap()), 0)
	case OpSend:
		sqe.PrepareSend(op.fd, uintptr(op.b.Ptr()), uint32(op.b.Len()), 0)
	case OpRecvMsg:
		sqe.PrepareRecvMsg(op.fd, &op.sysData.msg, 0)
	case OpSendMsg:
		sqe.PrepareSendMsg(op.fd, &op.sysData.msg, 0)
	case OpOpen:
		sqe.PrepareOpenat(unix.AT_FDCWD, op.path, int(op.opFlags), op.mode)
	case OpCloseFd:
		sqe.PrepareClose(op.fd)
	case OpStat:
		statx := &unix.Statx_t{}
		d.statxes[key] = statx
		sqe.PrepareStatx(unix.AT_FDCWD, op.path, 0, unix.STATX_BASIC_STATS, statx)
	case OpSplice:
		req := op.splice
		sqe.PrepareSplice(req.fdIn, req.offIn, req.fdOut, req.offOut, req.nbytes, req.flags)
	case OpCancel:
		sqe.PrepareCancel64(uint64(op.target), 0)
	default:
		return ErrUnsupported
	}
	return nil
}

func (d *ringDriver) Cancel(target Key) error {
	sqe := d.getSQE()
	if sqe == nil {
		return ErrBusy
	}
	sqe.PrepareCancel64(uint64(target), 0)
	sqe.SetData64(uint64(keyCancel))
	return nil
}

func (d *ringDriver) Wait(entries []Entry, timeout time.Duration) (n int, err error) {
	n = d.drainIntake(entries)
	if n > 0 {
		timeout = 0
	}
	_, _ = d.ring.Submit()
	if timeout != 0 {
		var ts *syscall.Timespec
		if timeout > 0 {
			spec := syscall.NsecToTimespec(timeout.Nanoseconds())
			ts = &spec
		}
		_, _ = d.ring.WaitCQEs(1, ts, nil)
	}
	batch := d.cqes
	if remain := len(entries) - n; remain > 0 && remain < len(batch) {
		batch = batch[:remain]
	}
	got := d.ring.PeekBatchCQE(batch)
	wakeSeen := false
	for i := uint32(0); i < got; i++ {
		cqe := batch[i]
		key := Key(cqe.UserData)
		switch key {
		case keyWake:
			wakeSeen = true
		case keyCancel:
			// completion of an internal cancel request, nothing to route
		default:
			entries[n] = d.translateCQE(key, cqe)
			n++
		}
	}
	d.ring.CQAdvance(got)
	if wakeSeen {
		d.armWake()
	}
	return
}

func (d *ringDriver) translateCQE(key Key, cqe *giouring.CompletionQueueEvent) (entry Entry) {
	entry.Key = key
	entry.Flags = cqe.Flags
	if cqe.Res < 0 {
		errno := syscall.Errno(-cqe.Res)
		if errno == syscall.ECANCELED {
			entry.Err = ErrCanceled
		} else {
			op := d.registry.Get(key)
			kind := "io_uring"
			if op != nil {
				kind = op.kind.String()
			}
			entry.Err = newOpErr(kind, errno)
		}
		delete(d.statxes, key)
		return
	}
	entry.N = int(cqe.Res)
	if statx, ok := d.statxes[key]; ok {
		delete(d.statxes, key)
		if op := d.registry.Get(key); op != nil && op.stat != nil {
			op.stat.Size = int64(statx.Size)
			op.stat.Mode = uint32(statx.Mode)
			op.stat.Ino = statx.Ino
			op.stat.Nlink = uint64(statx.Nlink)
			op.stat.Uid = statx.Uid
			op.stat.Gid = statx.Gid
			op.stat.ModTime = time.Unix(statx.Mtime.Sec, int64(statx.Mtime.Nsec))
		}
	}
	return
}

// armWake keeps one read pending on the eventfd so a foreign-thread write
// interrupts the next wait.
func (d *ringDriver) armWake() {
	sqe := d.getSQE()
	if sqe == nil {
		return
	}
	sqe.PrepareRead(d.eventFd, uintptr(unsafe.Pointer(&d.wakeBuf)), 8, 0)
	sqe.SetData64(uint64(keyWake))
}

func (d *ringDriver) Wake() error {
	one := uint64(1)
	b := (*[8]byte)(unsafe.Pointer(&one))[:]
	if _, err := unix.Write(d.eventFd, b); err != nil && err != unix.EAGAIN {
		return newOpErr("eventfd write", err)
	}
	return nil
}

func (d *ringDriver) Close() error {
	keys := make([]Key, 0, d.registry.Inflight())
	d.registry.Range(func(key Key, _ *Operation) {
		keys = append(keys, key)
	})
	for _, key := range keys {
		op := d.registry.Retire(key)
		delete(d.statxes, key)
		op.failed(ErrClosed)
	}
	d.intake = d.intake[:0]
	d.ring.QueueExit()
	if err := unix.Close(d.eventFd); err != nil {
		return newOpErr("close", err)
	}
	return nil
}

func (d *ringDriver) drainIntake(entries []Entry) int {
	n := copy(entries, d.intake)
	remain := copy(d.intake, d.intake[n:])
	d.intake = d.intake[:remain]
	return n
}
