//go:build darwin || freebsd

package aio

import (
	"syscall"
	"unsafe"
)

func markInet4(r *syscall.RawSockaddrInet4) {
	r.Len = syscall.SizeofSockaddrInet4
	r.Family = syscall.AF_INET
}

func markInet6(r *syscall.RawSockaddrInet6) {
	r.Len = syscall.SizeofSockaddrInet6
	r.Family = syscall.AF_INET6
}

func markUnix(r *syscall.RawSockaddrUnix, pathLen int) {
	r.Len = uint8(unsafe.Offsetof(r.Path) + uintptr(pathLen) + 1)
	r.Family = syscall.AF_UNIX
}
