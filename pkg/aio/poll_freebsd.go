//go:build freebsd

package aio

import (
	"time"

	"golang.org/x/sys/unix"
)

func sysAccept(fd int) (int, unix.Sockaddr, error) {
	nfd, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return 0, nil, err
	}
	return nfd, sa, nil
}

func sysStat(path string, stat *Stat) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return err
	}
	stat.Size = st.Size
	stat.Mode = uint32(st.Mode)
	stat.Ino = st.Ino
	stat.Nlink = uint64(st.Nlink)
	stat.Uid = st.Uid
	stat.Gid = st.Gid
	stat.ModTime = time.Unix(st.Mtim.Sec, st.Mtim.Nsec)
	return nil
}
