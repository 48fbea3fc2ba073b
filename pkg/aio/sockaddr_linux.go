//go:build linux

package aio

import (
	"syscall"
)

func markInet4(r *syscall.RawSockaddrInet4) {
	r.Family = syscall.AF_INET
}

func markInet6(r *syscall.RawSockaddrInet6) {
	r.Family = syscall.AF_INET6
}

func markUnix(r *syscall.RawSockaddrUnix, _ int) {
	r.Family = syscall.AF_UNIX
}
