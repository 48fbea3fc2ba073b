//go:build darwin

package aio

import (
	"time"

	"golang.org/x/sys/unix"
)

func sysAccept(fd int) (int, unix.Sockaddr, error) {
	nfd, sa, err := unix.Accept(fd)
	if err != nil {
		return 0, nil, err
	}
	_ = unix.SetNonblock(nfd, true)
	unix.CloseOnExec(nfd)
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
	stat.ModTime = time.Unix(st.Mtimespec.Sec, st.Mtimespec.Nsec)
	return nil
}
