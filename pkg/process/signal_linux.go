//go:build linux

package process

import (
	"golang.org/x/sys/unix"
)

// MaskInterruptSignals blocks ordinary interruption signals on the calling
// thread so that only threads designated for signal delivery observe them.
// Worker threads call this right after runtime.LockOSThread; otherwise the
// kernel may pick a parked worker to deliver SIGINT and the like.
func MaskInterruptSignals() error {
	var set unix.Sigset_t
	for _, sig := range []unix.Signal{unix.SIGINT, unix.SIGTERM, unix.SIGHUP, unix.SIGQUIT} {
		idx := uint(sig - 1)
		set.Val[idx/64] |= 1 << (idx % 64)
	}
	return unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil)
}
