//go:build !windows

package aio

// sysSlot has no content on platforms whose backends address operations by
// key alone.
type sysSlot struct{}
