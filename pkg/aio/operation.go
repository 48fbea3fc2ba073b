package aio

import (
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"github.com/brickingsoft/coio/pkg/buf"
)

const (
	opStatusReady int64 = iota
	opStatusInflight
	opStatusCompleted
)

const (
	opBorrowed uint8 = 1 << iota
	opCancelRequested
	opConnectStarted
)

var operations = sync.Pool{
	New: func() interface{} {
		return newOperation()
	},
}

// AcquireOperation takes a pooled operation. Release it after retiring.
func AcquireOperation() *Operation {
	op := operations.Get().(*Operation)
	op.flags |= opBorrowed
	return op
}

// ReleaseOperation resets op and puts it back. Releasing an operation that
// is still in flight is a contract violation the pool cannot detect, so
// the release is refused instead.
func ReleaseOperation(op *Operation) {
	if op.status.Load() != opStatusReady && op.status.Load() != opStatusCompleted {
		return
	}
	if op.flags&opBorrowed == 0 {
		return
	}
	op.reset()
	operations.Put(op)
}

func newOperation() *Operation {
	return &Operation{
		kind:     opLast,
		fd:       -1,
		resultCh: make(chan Result, 1),
	}
}

// NewOperation builds an unpooled operation.
func NewOperation() *Operation {
	return newOperation()
}

type spliceRequest struct {
	fdIn   int
	offIn  int64
	fdOut  int
	offOut int64
	nbytes uint32
	flags  uint32
}

// Operation is a tagged variant over the supported syscalls: the kind, the
// resource handle, scalar arguments, and one owned buffer (or a vector).
// Between submit and retire the operation and its buffer belong to the
// registry; the constructing side gets them back exactly once, through the
// future or the task continuation attached to it.
type Operation struct {
	kind     OpKind
	flags    uint8
	status   atomic.Int64
	fd       int
	b        buf.IoBuf
	vector   *buf.Vector
	path     []byte
	rsa      syscall.RawSockaddrAny
	rsaLen   uint32
	sysData  opSysData
	offset   uint64
	opFlags  uint32
	mode     uint32
	splice   spliceRequest
	stat     *Stat
	deadline time.Time
	target   Key
	key      Key

	resultCh chan Result
	task     *Task
	resume   func(tk *Task, res Result)
}

// Kind returns the operation's tag.
func (op *Operation) Kind() OpKind {
	return op.kind
}

// Fd returns the resource handle the operation addresses.
func (op *Operation) Fd() int {
	return op.fd
}

// Buffer returns the owned buffer. Valid for the caller before submit and
// after retire; while in flight it belongs to the registry.
func (op *Operation) Buffer() buf.IoBuf {
	return op.b
}

// Vector returns the owned buffer list of a vectored operation.
func (op *Operation) Vector() *buf.Vector {
	return op.vector
}

// WithDeadline bounds the operation: the event loop cancels it when the
// deadline passes before completion. The completion still arrives through
// the normal path, tagged ErrCanceled when the cancel won the race.
func (op *Operation) WithDeadline(deadline time.Time) *Operation {
	op.deadline = deadline
	return op
}

// NoOffset makes a read or write use the file's current position instead
// of an explicit offset.
const NoOffset = ^uint64(0)

func (op *Operation) PrepareNop() {
	op.kind = OpNop
}

// PrepareRead reads up to b.Cap() bytes from fd at offset into b. The
// entry's N reports produced bytes; the loop advances b's initialized
// length before handing it back.
func (op *Operation) PrepareRead(fd int, offset uint64, b buf.IoBuf) {
	op.kind = OpRead
	op.fd = fd
	op.offset = offset
	op.b = b
}

// PrepareWrite writes b's initialized region to fd at offset.
func (op *Operation) PrepareWrite(fd int, offset uint64, b buf.IoBuf) {
	op.kind = OpWrite
	op.fd = fd
	op.offset = offset
	op.b = b
}

// PrepareReadFixed is PrepareRead over a registered buffer.
func (op *Operation) PrepareReadFixed(fd int, offset uint64, b *buf.Fixed) {
	op.kind = OpReadFixed
	op.fd = fd
	op.offset = offset
	op.b = b
}

// PrepareWriteFixed is PrepareWrite over a registered buffer.
func (op *Operation) PrepareWriteFixed(fd int, offset uint64, b *buf.Fixed) {
	op.kind = OpWriteFixed
	op.fd = fd
	op.offset = offset
	op.b = b
}

func (op *Operation) PrepareReadVector(fd int, offset uint64, v *buf.Vector) {
	op.kind = OpReadVector
	op.fd = fd
	op.offset = offset
	op.vector = v
}

func (op *Operation) PrepareWriteVector(fd int, offset uint64, v *buf.Vector) {
	op.kind = OpWriteVector
	op.fd = fd
	op.offset = offset
	op.vector = v
}

// PrepareAccept accepts one connection on the listening fd. The entry's N
// is the accepted handle; the peer address lands in the operation's
// sockaddr storage, see Addr.
func (op *Operation) PrepareAccept(fd int) {
	op.kind = OpAccept
	op.fd = fd
	op.rsaLen = uint32(unsafe.Sizeof(op.rsa))
}

// PrepareConnect connects fd to the encoded address.
func (op *Operation) PrepareConnect(fd int, rsa *syscall.RawSockaddrAny, rsaLen int) {
	op.kind = OpConnect
	op.fd = fd
	op.rsa = *rsa
	op.rsaLen = uint32(rsaLen)
}

func (op *Operation) PrepareRecv(fd int, b buf.IoBuf) {
	op.kind = OpRecv
	op.fd = fd
	op.b = b
}

func (op *Operation) PrepareSend(fd int, b buf.IoBuf) {
	op.kind = OpSend
	op.fd = fd
	op.b = b
}

// PrepareOpen opens path with flags and mode. The entry's N is the new
// handle.
func (op *Operation) PrepareOpen(path string, flags int, mode uint32) {
	op.kind = OpOpen
	op.path = append(op.path[:0], path...)
	op.path = append(op.path, 0)
	op.opFlags = uint32(flags)
	op.mode = mode
}

func (op *Operation) PrepareClose(fd int) {
	op.kind = OpCloseFd
	op.fd = fd
}

// PrepareStat stats path into stat, which stays owned by the caller but
// must not be read until the completion arrives.
func (op *Operation) PrepareStat(path string, stat *Stat) {
	op.kind = OpStat
	op.path = append(op.path[:0], path...)
	op.path = append(op.path, 0)
	op.stat = stat
}

func (op *Operation) PrepareSplice(fdIn int, offIn int64, fdOut int, offOut int64, nbytes uint32, flags uint32) {
	op.kind = OpSplice
	op.splice = spliceRequest{fdIn: fdIn, offIn: offIn, fdOut: fdOut, offOut: offOut, nbytes: nbytes, flags: flags}
}

// PrepareCancel requests cancellation of the in-flight operation target.
func (op *Operation) PrepareCancel(target Key) {
	op.kind = OpCancel
	op.target = target
}

func (op *Operation) pathString() string {
	if len(op.path) == 0 {
		return ""
	}
	return string(op.path[:len(op.path)-1])
}

// Addr exposes the sockaddr storage filled by accept/recvmsg.
func (op *Operation) Addr() (rsa *syscall.RawSockaddrAny, rsaLen int) {
	return &op.rsa, int(op.rsaLen)
}

func (op *Operation) markInflight() bool {
	return op.status.CompareAndSwap(opStatusReady, opStatusInflight)
}

func (op *Operation) markCompleted() bool {
	return op.status.CompareAndSwap(opStatusInflight, opStatusCompleted)
}

func (op *Operation) failed(err error) {
	if op.status.CompareAndSwap(opStatusReady, opStatusCompleted) ||
		op.status.CompareAndSwap(opStatusInflight, opStatusCompleted) {
		op.deliver(Result{Err: err})
	}
}

// complete advances buffers per the entry and hands the result to the
// waiter. Runs on the loop goroutine, once per operation.
func (op *Operation) complete(res Result) {
	if !op.markCompleted() {
		return
	}
	if res.Err == nil && res.N >= 0 {
		switch op.kind {
		case OpRead, OpReadFixed, OpRecv, OpRecvMsg:
			if op.b != nil {
				op.b.SetLen(res.N)
			}
		case OpReadVector:
			if op.vector != nil {
				op.vector.SetLen(res.N)
			}
		default:
		}
	}
	if op.kind == OpRecvMsg {
		op.finishMsg()
	}
	op.deliver(res)
}

func (op *Operation) deliver(res Result) {
	if op.task != nil {
		op.task.resolve(op, res)
		return
	}
	op.resultCh <- res
}

// Await blocks until the operation completes and returns its outcome. The
// owned buffer is accessible again through Buffer.
func (op *Operation) Await() (n int, flags uint32, err error) {
	res := <-op.resultCh
	return res.N, res.Flags, res.Err
}

func (op *Operation) reset() {
	op.kind = opLast
	if op.flags&opBorrowed != 0 {
		op.flags = opBorrowed
	} else {
		op.flags = 0
	}
	op.status.Store(opStatusReady)
	op.fd = -1
	op.b = nil
	op.vector = nil
	op.path = op.path[:0]
	op.rsa = syscall.RawSockaddrAny{}
	op.rsaLen = 0
	op.sysData = opSysData{}
	op.offset = 0
	op.opFlags = 0
	op.mode = 0
	op.splice = spliceRequest{}
	op.stat = nil
	op.deadline = time.Time{}
	op.target = 0
	op.key = 0
	op.task = nil
	op.resume = nil
	for len(op.resultCh) > 0 {
		<-op.resultCh
	}
}
