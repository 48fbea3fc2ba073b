//go:build linux

package kernel

import (
	"bytes"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

var (
	version     = Version{}
	versionOnce = sync.Once{}
)

func parseRelease(release string) (major int, minor int, patch int, flavor string, err error) {
	var partial string
	parsed, _ := fmt.Sscanf(release, "%d.%d%s", &major, &minor, &partial)
	if parsed < 2 {
		err = fmt.Errorf("cannot parse kernel release: %s", release)
		return
	}
	if parsed, _ = fmt.Sscanf(partial, ".%d%s", &patch, &flavor); parsed < 1 {
		flavor = partial
	}
	return
}

func Get() Version {
	versionOnce.Do(func() {
		uts := &unix.Utsname{}
		if err := unix.Uname(uts); err != nil {
			return
		}
		release := string(uts.Release[:bytes.IndexByte(uts.Release[:], 0)])
		major, minor, patch, flavor, parseErr := parseRelease(release)
		if parseErr != nil {
			return
		}
		version = Version{Major: major, Minor: minor, Patch: patch, Flavor: flavor, valid: true}
	})
	return version
}
