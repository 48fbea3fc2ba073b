package buf

import (
	"fmt"
	"unsafe"
)

// IoBuf is the contract for any memory region handed to the kernel as an
// I/O target. The region behind Ptr must stay valid and un-aliased for as
// long as the operation owning it is in flight: ownership moves into the
// operation registry at submit time and moves back at retire time.
//
// Cap is the allocated capacity, Len the logically initialized length.
// Len never exceeds Cap.
type IoBuf interface {
	// Ptr returns the base address of the region.
	Ptr() unsafe.Pointer
	// Cap returns the allocated capacity in bytes.
	Cap() int
	// Len returns the initialized length in bytes.
	Len() int
	// SetLen marks the first n bytes of the region initialized after a
	// completion reported n bytes produced. Marking beyond Cap means
	// out-of-bounds writes already happened, so it panics rather than
	// returning an error.
	SetLen(n int)
}

// Initialized returns the initialized region of b as a byte slice.
func Initialized(b IoBuf) []byte {
	n := b.Len()
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(b.Ptr()), n)
}

// Writable returns the whole capacity of b as a byte slice. Bytes past
// b.Len() are not initialized and must not be read until SetLen advances
// over them.
func Writable(b IoBuf) []byte {
	c := b.Cap()
	if c == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(b.Ptr()), c)
}

func checkSetLen(n int, capacity int) {
	if n < 0 || n > capacity {
		panic(fmt.Sprintf("buf: SetLen(%d) out of range (cap %d)", n, capacity))
	}
}

// Wrap adopts p as an I/O buffer. The initialized length starts at len(p)
// and the capacity is cap(p).
func Wrap(p []byte) *Slice {
	return &Slice{b: p}
}

// Slice is an IoBuf over a plain byte slice.
type Slice struct {
	b []byte
}

func (s *Slice) Ptr() unsafe.Pointer {
	if cap(s.b) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(s.b[:cap(s.b)]))
}

func (s *Slice) Cap() int {
	return cap(s.b)
}

func (s *Slice) Len() int {
	return len(s.b)
}

func (s *Slice) SetLen(n int) {
	checkSetLen(n, cap(s.b))
	s.b = s.b[:n]
}

// Bytes returns the initialized region.
func (s *Slice) Bytes() []byte {
	return s.b
}
