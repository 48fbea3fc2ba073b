//go:build windows

package aio

import (
	"syscall"
	"unsafe"

	"github.com/brickingsoft/coio/pkg/buf"
)

// opSysData has no extra state on windows: the per-call WSA plumbing lives
// in the registry slot instead.
type opSysData struct{}

// PrepareRecvMsg receives one datagram on fd: payload into b, the peer
// address into the operation's sockaddr storage. Ancillary data is not
// carried on windows.
func (op *Operation) PrepareRecvMsg(fd int, b buf.IoBuf, _ []byte) {
	op.kind = OpRecvMsg
	op.fd = fd
	op.b = b
	op.rsaLen = uint32(unsafe.Sizeof(op.rsa))
}

// PrepareSendMsg sends one datagram on fd, addressed when rsa is non-nil.
func (op *Operation) PrepareSendMsg(fd int, b buf.IoBuf, _ []byte, rsa *syscall.RawSockaddrAny, rsaLen int) {
	op.kind = OpSendMsg
	op.fd = fd
	op.b = b
	if rsa != nil {
		op.rsa = *rsa
		op.rsaLen = uint32(rsaLen)
	}
}

func (op *Operation) finishMsg() {}

// Control reports how many ancillary bytes a completed recvmsg produced.
// Always zero on windows.
func (op *Operation) Control() int {
	return 0
}
