package aio

// OpKind tags one supported operation variant. The set is closed: every
// backend either implements a kind natively or routes it through the poll
// emulation, and Driver.Supports reports which of the two it will be.
type OpKind uint8

const (
	OpNop OpKind = iota
	OpRead
	OpWrite
	OpReadFixed
	OpWriteFixed
	OpReadVector
	OpWriteVector
	OpAccept
	OpConnect
	OpRecv
	OpSend
	OpRecvMsg
	OpSendMsg
	OpOpen
	OpCloseFd
	OpStat
	OpSplice
	OpCancel
	opLast
)

var opKindNames = [opLast]string{
	OpNop:         "nop",
	OpRead:        "read",
	OpWrite:       "write",
	OpReadFixed:   "read_fixed",
	OpWriteFixed:  "write_fixed",
	OpReadVector:  "readv",
	OpWriteVector: "writev",
	OpAccept:      "accept",
	OpConnect:     "connect",
	OpRecv:        "recv",
	OpSend:        "send",
	OpRecvMsg:     "recvmsg",
	OpSendMsg:     "sendmsg",
	OpOpen:        "open",
	OpCloseFd:     "close",
	OpStat:        "stat",
	OpSplice:      "splice",
	OpCancel:      "cancel",
}

func (kind OpKind) String() string {
	if kind >= opLast {
		return "invalid"
	}
	return opKindNames[kind]
}
