//go:build !windows

package ipc

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockExclusive takes an exclusive advisory flock on f. With block=false a
// held lock surfaces as ErrLockUnavailable instead of waiting.
func lockExclusive(f *os.File, block bool) error {
	how := unix.LOCK_EX
	if !block {
		how |= unix.LOCK_NB
	}
	for {
		err := unix.Flock(int(f.Fd()), how)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EWOULDBLOCK {
			return ErrLockUnavailable
		}
		return err
	}
}

func unlock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
