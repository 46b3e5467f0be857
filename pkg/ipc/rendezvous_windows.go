//go:build windows

package ipc

import (
	"os"

	"golang.org/x/sys/windows"
)

// lockExclusive locks the whole file with LockFileEx. Windows file locks are
// mandatory rather than advisory, but since every accessor goes through this
// package the distinction does not matter here.
func lockExclusive(f *os.File, block bool) error {
	flags := uint32(windows.LOCKFILE_EXCLUSIVE_LOCK)
	if !block {
		flags |= windows.LOCKFILE_FAIL_IMMEDIATELY
	}
	ol := new(windows.Overlapped)
	err := windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, ^uint32(0), ^uint32(0), ol)
	if err == windows.ERROR_LOCK_VIOLATION {
		return ErrLockUnavailable
	}
	return err
}

func unlock(f *os.File) {
	ol := new(windows.Overlapped)
	_ = windows.UnlockFileEx(windows.Handle(f.Fd()), 0, ^uint32(0), ^uint32(0), ol)
}
