//go:build windows

package aio

import (
	"syscall"
	"unsafe"

	"github.com/brickingsoft/errors"
	"golang.org/x/sys/windows"
)

// rawToWinSockaddr decodes the operation's sockaddr storage into the shape
// ConnectEx and WSASendTo take.
func rawToWinSockaddr(rsa *syscall.RawSockaddrAny) (windows.Sockaddr, error) {
	switch int(rsa.Addr.Family) {
	case windows.AF_INET:
		r := (*syscall.RawSockaddrInet4)(unsafe.Pointer(rsa))
		p := (*[2]byte)(unsafe.Pointer(&r.Port))
		sa := &windows.SockaddrInet4{Port: int(p[0])<<8 | int(p[1])}
		sa.Addr = r.Addr
		return sa, nil
	case windows.AF_INET6:
		r := (*syscall.RawSockaddrInet6)(unsafe.Pointer(rsa))
		p := (*[2]byte)(unsafe.Pointer(&r.Port))
		sa := &windows.SockaddrInet6{Port: int(p[0])<<8 | int(p[1]), ZoneId: r.Scope_id}
		sa.Addr = r.Addr
		return sa, nil
	default:
		return nil, errors.New("unsupported sockaddr family", errors.WithMeta(errMetaPkgKey, errMetaPkgVal))
	}
}

// winSockaddrToRaw encodes a decoded peer address back into the
// operation's sockaddr storage.
func winSockaddrToRaw(sa windows.Sockaddr, rsa *syscall.RawSockaddrAny) (int, error) {
	switch a := sa.(type) {
	case *windows.SockaddrInet4:
		r := (*syscall.RawSockaddrInet4)(unsafe.Pointer(rsa))
		*r = syscall.RawSockaddrInet4{Family: windows.AF_INET}
		p := (*[2]byte)(unsafe.Pointer(&r.Port))
		p[0] = byte(a.Port >> 8)
		p[1] = byte(a.Port)
		r.Addr = a.Addr
		return int(unsafe.Sizeof(*r)), nil
	case *windows.SockaddrInet6:
		r := (*syscall.RawSockaddrInet6)(unsafe.Pointer(rsa))
		*r = syscall.RawSockaddrInet6{Family: windows.AF_INET6}
		p := (*[2]byte)(unsafe.Pointer(&r.Port))
		p[0] = byte(a.Port >> 8)
		p[1] = byte(a.Port)
		r.Addr = a.Addr
		r.Scope_id = a.ZoneId
		return int(unsafe.Sizeof(*r)), nil
	default:
		return 0, errors.New("unsupported sockaddr kind", errors.WithMeta(errMetaPkgKey, errMetaPkgVal))
	}
}

// copyRawSockaddr copies a peer address produced by GetAcceptExSockaddrs
// into the operation's storage.
func copyRawSockaddr(dst *syscall.RawSockaddrAny, src *windows.RawSockaddrAny, srcLen int32) int {
	n := int(srcLen)
	if n > int(unsafe.Sizeof(*dst)) {
		n = int(unsafe.Sizeof(*dst))
	}
	copy((*[unsafe.Sizeof(*dst)]byte)(unsafe.Pointer(dst))[:n], (*[unsafe.Sizeof(*dst)]byte)(unsafe.Pointer(src))[:n])
	return n
}
