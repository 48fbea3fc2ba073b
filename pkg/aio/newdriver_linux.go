//go:build linux

package aio

import (
	"github.com/brickingsoft/coio/pkg/kernel"
)

// ringKernelMajor/Minor gate the ring backend: 5.6 is the first kernel
// carrying the full socket and file opcode set used here.
const (
	ringKernelMajor = 5
	ringKernelMinor = 6
)

func newDriver(options Options) (Driver, error) {
	backend := options.Backend
	if backend == BackendAuto {
		if kernel.Get().GTE(ringKernelMajor, ringKernelMinor, 0) {
			backend = BackendRing
		} else {
			backend = BackendPoll
		}
	}
	switch backend {
	case BackendRing:
		return newRingDriver(options)
	case BackendPoll:
		return newPollDriver(options)
	default:
		return nil, ErrUnsupported
	}
}
