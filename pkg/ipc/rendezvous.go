package ipc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// RendezvousFile is an open, exclusively locked handle on a rendezvous
// point. The lock is held for the lifetime of the handle and released by
// Close. Two live handles on the same path cannot coexist, which is what
// serializes all would-be clients of one service across processes.
//
// The byte layout is cookie (32 bytes) followed by the address text. An
// empty file, or any file shorter than a cookie, means no server is
// registered.
type RendezvousFile struct {
	path string
	file *os.File
}

// OpenRendezvous opens (creating if necessary) and exclusively locks the
// rendezvous file at path. The parent directory is created if absent. The
// call blocks until the lock is acquired.
func OpenRendezvous(path string) (*RendezvousFile, error) {
	return openRendezvous(path, true)
}

// TryOpenRendezvous is the non-blocking variant of OpenRendezvous. If
// another process holds the lock it returns ErrLockUnavailable instead of
// waiting.
func TryOpenRendezvous(path string) (*RendezvousFile, error) {
	return openRendezvous(path, false)
}

func openRendezvous(path string, block bool) (*RendezvousFile, error) {
	if parent := filepath.Dir(path); parent != "" {
		if err := os.MkdirAll(parent, 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", parent, err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	if err := lockExclusive(f, block); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}

	return &RendezvousFile{path: path, file: f}, nil
}

// Path returns the pathname of the rendezvous point.
func (rf *RendezvousFile) Path() string {
	return rf.path
}

// Read reads the whole file and splits off the cookie. ok is false when the
// file is too short to contain one; rest is the remaining bytes, expected
// (but not required by this layer) to be an address text.
func (rf *RendezvousFile) Read() (cookie Cookie, rest []byte, ok bool, err error) {
	if _, err = rf.file.Seek(0, io.SeekStart); err != nil {
		return Cookie{}, nil, false, fmt.Errorf("rewinding %s: %w", rf.path, err)
	}

	content, err := io.ReadAll(rf.file)
	if err != nil {
		return Cookie{}, nil, false, fmt.Errorf("reading %s: %w", rf.path, err)
	}

	cookie, rest, ok = ExtractCookie(content)
	return cookie, rest, ok, nil
}

// Write replaces the file contents with the cookie followed by data.
func (rf *RendezvousFile) Write(cookie Cookie, data []byte) error {
	if _, err := rf.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding %s: %w", rf.path, err)
	}
	if err := rf.file.Truncate(0); err != nil {
		return fmt.Errorf("truncating %s: %w", rf.path, err)
	}
	if _, err := rf.file.Write(cookie[:]); err != nil {
		return fmt.Errorf("updating %s: %w", rf.path, err)
	}
	if _, err := rf.file.Write(data); err != nil {
		return fmt.Errorf("updating %s: %w", rf.path, err)
	}
	return nil
}

// Clear truncates the file, removing any registered record.
func (rf *RendezvousFile) Clear() error {
	if err := rf.file.Truncate(0); err != nil {
		return fmt.Errorf("truncating %s: %w", rf.path, err)
	}
	if _, err := rf.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding %s: %w", rf.path, err)
	}
	return nil
}

// Close releases the lock and the underlying file. It is safe to call more
// than once.
func (rf *RendezvousFile) Close() error {
	if rf.file == nil {
		return nil
	}
	f := rf.file
	rf.file = nil
	unlock(f)
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", rf.path, err)
	}
	return nil
}
