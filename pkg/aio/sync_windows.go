//go:build windows

package aio

import (
	"syscall"
	"time"
	"unsafe"

	"github.com/brickingsoft/coio/pkg/buf"
	"golang.org/x/sys/windows"
)

// performSyncWindows runs the emulated kinds at submit time. Vectored reads
// and writes walk the members one call at a time; open, stat and close map
// onto the plain Win32 file calls.
func performSyncWindows(op *Operation) (n int, err error) {
	switch op.kind {
	case OpReadVector:
		h := windows.Handle(op.fd)
		offset := op.offset
		for _, member := range op.vector.Buffers() {
			p := buf.Writable(member)
			if len(p) == 0 {
				continue
			}
			m, rerr := syncRead(h, p, offset)
			n += m
			if rerr != nil {
				err = newOpErr(op.kind.String(), rerr)
				return
			}
			if offset != NoOffset {
				offset += uint64(m)
			}
			if m < len(p) {
				return
			}
		}
		return
	case OpWriteVector:
		h := windows.Handle(op.fd)
		offset := op.offset
		for _, member := range op.vector.Buffers() {
			p := buf.Initialized(member)
			if len(p) == 0 {
				continue
			}
			m, werr := syncWrite(h, p, offset)
			n += m
			if werr != nil {
				err = newOpErr(op.kind.String(), werr)
				return
			}
			if offset != NoOffset {
				offset += uint64(m)
			}
			if m < len(p) {
				return
			}
		}
		return
	case OpOpen:
		p16, perr := windows.UTF16PtrFromString(op.pathString())
		if perr != nil {
			err = newOpErr(op.kind.String(), perr)
			return
		}
		h, cerr := windows.CreateFile(
			p16,
			openAccess(op.opFlags),
			windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
			nil,
			openDisposition(op.opFlags),
			windows.FILE_ATTRIBUTE_NORMAL|windows.FILE_FLAG_OVERLAPPED,
			0,
		)
		if cerr != nil {
			err = newOpErr(op.kind.String(), cerr)
			return
		}
		n = int(h)
		return
	case OpStat:
		p16, perr := windows.UTF16PtrFromString(op.pathString())
		if perr != nil {
			err = newOpErr(op.kind.String(), perr)
			return
		}
		var data windows.Win32FileAttributeData
		if serr := windows.GetFileAttributesEx(p16, windows.GetFileExInfoStandard, (*byte)(unsafe.Pointer(&data))); serr != nil {
			err = newOpErr(op.kind.String(), serr)
			return
		}
		if op.stat != nil {
			op.stat.Size = int64(data.FileSizeHigh)<<32 | int64(data.FileSizeLow)
			op.stat.Mode = data.FileAttributes
			op.stat.Nlink = 1
			op.stat.ModTime = time.Unix(0, data.LastWriteTime.Nanoseconds())
		}
		return
	case OpCloseFd:
		if cerr := windows.CloseHandle(windows.Handle(op.fd)); cerr != nil {
			err = newOpErr(op.kind.String(), cerr)
		}
		return
	default:
		err = ErrUnsupported
		return
	}
}

// newSyncOverlapped builds an overlapped whose event has the low bit set so
// the kernel skips the completion port even when the handle is associated.
func newSyncOverlapped(offset uint64) (ov *windows.Overlapped, ev windows.Handle, err error) {
	ev, err = windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return
	}
	ov = &windows.Overlapped{HEvent: windows.Handle(uintptr(ev) | 1)}
	setOverlappedOffset(ov, offset)
	return
}

func syncRead(h windows.Handle, p []byte, offset uint64) (int, error) {
	ov, ev, err := newSyncOverlapped(offset)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(ev)
	var qty uint32
	rerr := windows.ReadFile(h, p, &qty, ov)
	if rerr == windows.ERROR_IO_PENDING {
		rerr = windows.GetOverlappedResult(h, ov, &qty, true)
	}
	if rerr == windows.ERROR_HANDLE_EOF {
		rerr = nil
	}
	return int(qty), rerr
}

func syncWrite(h windows.Handle, p []byte, offset uint64) (int, error) {
	ov, ev, err := newSyncOverlapped(offset)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(ev)
	var qty uint32
	werr := windows.WriteFile(h, p, &qty, ov)
	if werr == windows.ERROR_IO_PENDING {
		werr = windows.GetOverlappedResult(h, ov, &qty, true)
	}
	return int(qty), werr
}

func openAccess(flags int) (access uint32) {
	switch flags & (syscall.O_RDONLY | syscall.O_WRONLY | syscall.O_RDWR) {
	case syscall.O_WRONLY:
		access = windows.GENERIC_WRITE
	case syscall.O_RDWR:
		access = windows.GENERIC_READ | windows.GENERIC_WRITE
	default:
		access = windows.GENERIC_READ
	}
	if flags&syscall.O_APPEND != 0 {
		access &^= windows.GENERIC_WRITE
		access |= windows.FILE_APPEND_DATA
	}
	return
}

func openDisposition(flags int) uint32 {
	switch {
	case flags&(syscall.O_CREAT|syscall.O_EXCL) == syscall.O_CREAT|syscall.O_EXCL:
		return windows.CREATE_NEW
	case flags&(syscall.O_CREAT|syscall.O_TRUNC) == syscall.O_CREAT|syscall.O_TRUNC:
		return windows.CREATE_ALWAYS
	case flags&syscall.O_CREAT != 0:
		return windows.OPEN_ALWAYS
	case flags&syscall.O_TRUNC != 0:
		return windows.TRUNCATE_EXISTING
	default:
		return windows.OPEN_EXISTING
	}
}
