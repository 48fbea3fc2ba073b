//go:build !linux

package kernel

// Get returns an invalid version on platforms without a Linux kernel;
// callers fall back to the platform's native completion mechanism.
func Get() Version {
	return Version{}
}
