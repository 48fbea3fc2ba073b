//go:build linux || darwin || freebsd

package buf

import (
	"syscall"
)

// WritableIovecs builds an iovec list over the full capacity of each
// member for a vectored read. The caller must keep the returned slice
// alive while the operation is in flight.
func (v *Vector) WritableIovecs() []syscall.Iovec {
	iovecs := make([]syscall.Iovec, 0, len(v.bufs))
	for _, b := range v.bufs {
		if b.Cap() == 0 {
			continue
		}
		iov := syscall.Iovec{Base: (*byte)(b.Ptr())}
		iov.SetLen(b.Cap())
		iovecs = append(iovecs, iov)
	}
	return iovecs
}

// InitializedIovecs builds an iovec list over the initialized region of
// each member for a vectored write.
func (v *Vector) InitializedIovecs() []syscall.Iovec {
	iovecs := make([]syscall.Iovec, 0, len(v.bufs))
	for _, b := range v.bufs {
		if b.Len() == 0 {
			continue
		}
		iov := syscall.Iovec{Base: (*byte)(b.Ptr())}
		iov.SetLen(b.Len())
		iovecs = append(iovecs, iov)
	}
	return iovecs
}
