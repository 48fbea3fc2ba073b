// Package kernel reports the running kernel release. The ring backend
// uses it to gate io_uring support by version.
package kernel

type Version struct {
	Major  int
	Minor  int
	Patch  int
	Flavor string

	valid bool
}

func (v Version) Invalid() bool {
	return !v.valid
}

// GTE reports whether the version is at least major.minor.patch.
func (v Version) GTE(major int, minor int, patch int) bool {
	if v.Major != major {
		return v.Major > major
	}
	if v.Minor != minor {
		return v.Minor > minor
	}
	return v.Patch >= patch
}
