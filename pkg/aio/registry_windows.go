//go:build windows

package aio

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// sysSlot fronts the OVERLAPPED handed to the kernel plus the per-call
// state WSA verbs need to keep alive until the completion packet arrives.
// The overlapped field stays first so a dequeued OVERLAPPED pointer
// converts back to its slot.
type sysSlot struct {
	overlapped windows.Overlapped
	key        Key
	wsabuf     windows.WSABuf
	wsaflags   uint32
	qty        uint32
	rsaLen     int32
	accepted   windows.Handle
	addrBuf    [256]byte
}

// arm resets the slot's system state for one submission and returns it.
// The pointers stay valid until the key is retired.
func (r *Registry) arm(key Key) *sysSlot {
	s := r.lookup(key)
	if s == nil {
		return nil
	}
	s.sys = sysSlot{key: key}
	return &s.sys
}

// sysOf resolves the slot state of an in-flight key without resetting it.
func (r *Registry) sysOf(key Key) *sysSlot {
	s := r.lookup(key)
	if s == nil {
		return nil
	}
	return &s.sys
}

func overlappedKey(o *windows.Overlapped) Key {
	return (*sysSlot)(unsafe.Pointer(o)).key
}
