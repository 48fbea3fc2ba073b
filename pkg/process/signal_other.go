//go:build !linux

package process

// MaskInterruptSignals is a no-op outside linux; the Go runtime already
// routes signals to a dedicated thread on those platforms.
func MaskInterruptSignals() error {
	return nil
}
