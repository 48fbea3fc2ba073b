//go:build linux || darwin || freebsd

package aio

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSockaddrRoundTripInet4(t *testing.T) {
	var rsa syscall.RawSockaddrAny
	sa := &unix.SockaddrInet4{Port: 8080, Addr: [4]byte{127, 0, 0, 1}}

	l, err := sockaddrToRaw(sa, &rsa)
	require.NoError(t, err)
	require.Equal(t, syscall.SizeofSockaddrInet4, l)

	back, err := rawToSockaddr(&rsa)
	require.NoError(t, err)
	got, ok := back.(*unix.SockaddrInet4)
	require.True(t, ok)
	require.Equal(t, sa.Port, got.Port)
	require.Equal(t, sa.Addr, got.Addr)
}

func TestSockaddrRoundTripInet6(t *testing.T) {
	var rsa syscall.RawSockaddrAny
	sa := &unix.SockaddrInet6{Port: 443, ZoneId: 3}
	sa.Addr[15] = 1

	l, err := sockaddrToRaw(sa, &rsa)
	require.NoError(t, err)
	require.Equal(t, syscall.SizeofSockaddrInet6, l)

	back, err := rawToSockaddr(&rsa)
	require.NoError(t, err)
	got, ok := back.(*unix.SockaddrInet6)
	require.True(t, ok)
	require.Equal(t, sa.Port, got.Port)
	require.Equal(t, sa.Addr, got.Addr)
	require.Equal(t, sa.ZoneId, got.ZoneId)
}

func TestSockaddrRoundTripUnix(t *testing.T) {
	var rsa syscall.RawSockaddrAny
	sa := &unix.SockaddrUnix{Name: "/tmp/coio.sock"}

	l, err := sockaddrToRaw(sa, &rsa)
	require.NoError(t, err)
	require.Greater(t, l, 0)

	back, err := rawToSockaddr(&rsa)
	require.NoError(t, err)
	got, ok := back.(*unix.SockaddrUnix)
	require.True(t, ok)
	require.Equal(t, sa.Name, got.Name)
}

func TestSockaddrUnixPathTooLong(t *testing.T) {
	var rsa syscall.RawSockaddrAny
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	_, err := sockaddrToRaw(&unix.SockaddrUnix{Name: string(long)}, &rsa)
	require.Error(t, err)
}
