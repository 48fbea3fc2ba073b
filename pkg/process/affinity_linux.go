//go:build linux

package process

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// SetCPUAffinity pins the calling thread to one CPU. Call it after
// runtime.LockOSThread so the pin sticks to the worker's thread.
func SetCPUAffinity(index int) error {
	var mask unix.CPUSet
	mask.Zero()
	mask.Set(index % runtime.NumCPU())
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		return fmt.Errorf("process: sched_setaffinity: %w", err)
	}
	return nil
}
