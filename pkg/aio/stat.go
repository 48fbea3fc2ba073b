package aio

import (
	"time"
)

// Stat is the backend-neutral file metadata record filled by OpStat. Ring
// backends fill it from statx, the others from stat.
type Stat struct {
	Size    int64
	Mode    uint32
	Ino     uint64
	Nlink   uint64
	Uid     uint32
	Gid     uint32
	ModTime time.Time
}
