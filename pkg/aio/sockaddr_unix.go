//go:build linux || darwin || freebsd

package aio

import (
	"syscall"
	"unsafe"

	"github.com/brickingsoft/errors"
	"golang.org/x/sys/unix"
)

// sockaddrToRaw encodes sa into the operation's raw sockaddr storage and
// returns the encoded length.
func sockaddrToRaw(sa unix.Sockaddr, rsa *syscall.RawSockaddrAny) (int, error) {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		r := (*syscall.RawSockaddrInet4)(unsafe.Pointer(rsa))
		*r = syscall.RawSockaddrInet4{}
		markInet4(r)
		p := (*[2]byte)(unsafe.Pointer(&r.Port))
		p[0] = byte(a.Port >> 8)
		p[1] = byte(a.Port)
		r.Addr = a.Addr
		return syscall.SizeofSockaddrInet4, nil
	case *unix.SockaddrInet6:
		r := (*syscall.RawSockaddrInet6)(unsafe.Pointer(rsa))
		*r = syscall.RawSockaddrInet6{}
		markInet6(r)
		p := (*[2]byte)(unsafe.Pointer(&r.Port))
		p[0] = byte(a.Port >> 8)
		p[1] = byte(a.Port)
		r.Addr = a.Addr
		r.Scope_id = a.ZoneId
		return syscall.SizeofSockaddrInet6, nil
	case *unix.SockaddrUnix:
		r := (*syscall.RawSockaddrUnix)(unsafe.Pointer(rsa))
		*r = syscall.RawSockaddrUnix{}
		if len(a.Name) >= len(r.Path) {
			return 0, errors.New("unix socket path too long", errors.WithMeta(errMetaPkgKey, errMetaPkgVal))
		}
		for i := 0; i < len(a.Name); i++ {
			r.Path[i] = int8(a.Name[i])
		}
		markUnix(r, len(a.Name))
		return int(unsafe.Offsetof(r.Path)) + len(a.Name) + 1, nil
	default:
		return 0, errors.New("unsupported sockaddr kind", errors.WithMeta(errMetaPkgKey, errMetaPkgVal))
	}
}

// rawToSockaddr decodes the operation's raw sockaddr storage.
func rawToSockaddr(rsa *syscall.RawSockaddrAny) (unix.Sockaddr, error) {
	switch int(rsa.Addr.Family) {
	case unix.AF_INET:
		r := (*syscall.RawSockaddrInet4)(unsafe.Pointer(rsa))
		p := (*[2]byte)(unsafe.Pointer(&r.Port))
		sa := &unix.SockaddrInet4{Port: int(p[0])<<8 | int(p[1])}
		sa.Addr = r.Addr
		return sa, nil
	case unix.AF_INET6:
		r := (*syscall.RawSockaddrInet6)(unsafe.Pointer(rsa))
		p := (*[2]byte)(unsafe.Pointer(&r.Port))
		sa := &unix.SockaddrInet6{Port: int(p[0])<<8 | int(p[1]), ZoneId: r.Scope_id}
		sa.Addr = r.Addr
		return sa, nil
	case unix.AF_UNIX:
		r := (*syscall.RawSockaddrUnix)(unsafe.Pointer(rsa))
		n := 0
		for n < len(r.Path) && r.Path[n] != 0 {
			n++
		}
		name := make([]byte, n)
		for i := 0; i < n; i++ {
			name[i] = byte(r.Path[i])
		}
		return &unix.SockaddrUnix{Name: string(name)}, nil
	default:
		return nil, errors.New("unsupported sockaddr family", errors.WithMeta(errMetaPkgKey, errMetaPkgVal))
	}
}
