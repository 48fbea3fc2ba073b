//go:build linux || darwin || freebsd

package aio

import (
	"syscall"
	"unsafe"

	"github.com/brickingsoft/coio/pkg/buf"
)

// opSysData is the unix half of an operation: the msghdr and the iovec
// list handed to the kernel, kept alive for the whole flight.
type opSysData struct {
	msg    syscall.Msghdr
	iovecs []syscall.Iovec
}

// PrepareRecvMsg receives one message on fd: payload into b, ancillary
// data into oob, the peer address into the operation's sockaddr storage.
func (op *Operation) PrepareRecvMsg(fd int, b buf.IoBuf, oob []byte) {
	op.kind = OpRecvMsg
	op.fd = fd
	op.b = b
	op.rsaLen = uint32(unsafe.Sizeof(op.rsa))
	op.setMsg(b, oob, true)
}

// PrepareSendMsg sends one message on fd, addressed when rsa is non-nil.
func (op *Operation) PrepareSendMsg(fd int, b buf.IoBuf, oob []byte, rsa *syscall.RawSockaddrAny, rsaLen int) {
	op.kind = OpSendMsg
	op.fd = fd
	op.b = b
	if rsa != nil {
		op.rsa = *rsa
		op.rsaLen = uint32(rsaLen)
	}
	op.setMsg(b, oob, false)
}

func (op *Operation) setMsg(b buf.IoBuf, oob []byte, receiving bool) {
	op.sysData.msg = syscall.Msghdr{}
	if b != nil && b.Cap() > 0 {
		iov := &syscall.Iovec{Base: (*byte)(b.Ptr())}
		if receiving {
			iov.SetLen(b.Cap())
		} else {
			iov.SetLen(b.Len())
		}
		op.sysData.msg.Iov = iov
		op.sysData.msg.Iovlen = 1
	}
	if len(oob) > 0 {
		op.sysData.msg.Control = &oob[0]
		op.sysData.msg.SetControllen(len(oob))
	}
	if receiving || op.rsaLen > 0 {
		op.sysData.msg.Name = (*byte)(unsafe.Pointer(&op.rsa))
		op.sysData.msg.Namelen = op.rsaLen
	}
}

func (op *Operation) finishMsg() {
	op.rsaLen = op.sysData.msg.Namelen
}

// Control reports how many ancillary bytes a completed recvmsg produced.
func (op *Operation) Control() int {
	return int(op.sysData.msg.Controllen)
}
