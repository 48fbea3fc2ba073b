package buf

import (
	"unsafe"
)

// NewFixed builds a fixed buffer over value, registered at index in the
// driver's buffer table. Fixed buffers participate in read_fixed and
// write_fixed on backends that support buffer registration.
func NewFixed(index int, value []byte) *Fixed {
	return &Fixed{value: value[:0:len(value)], index: index}
}

// Fixed is a registered buffer. Its backing memory is pinned for the
// lifetime of the registration, so the region never moves under the kernel.
type Fixed struct {
	value []byte
	index int
}

// Index returns the registration index used by fixed-buffer verbs.
func (f *Fixed) Index() int {
	return f.index
}

func (f *Fixed) Ptr() unsafe.Pointer {
	if cap(f.value) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(f.value[:cap(f.value)]))
}

func (f *Fixed) Cap() int {
	return cap(f.value)
}

func (f *Fixed) Len() int {
	return len(f.value)
}

func (f *Fixed) SetLen(n int) {
	checkSetLen(n, cap(f.value))
	f.value = f.value[:n]
}

func (f *Fixed) Bytes() []byte {
	return f.value
}

func (f *Fixed) Reset() {
	f.value = f.value[:0]
}
