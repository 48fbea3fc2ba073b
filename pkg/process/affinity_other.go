//go:build !linux

package process

// SetCPUAffinity is a no-op where thread affinity syscalls are
// unavailable.
func SetCPUAffinity(_ int) error {
	return nil
}
