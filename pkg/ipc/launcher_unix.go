//go:build !windows

package ipc

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"syscall"
)

// fork spawns the service executable as a detached background child. The
// listening socket travels as the child's standard input; the child rebuilds
// a listener from file descriptor 0.
func (d *Descriptor) fork(listener *net.TCPListener) error {
	file, err := listener.File()
	if err != nil {
		return fmt.Errorf("exporting listener: %w", err)
	}
	defer file.Close()

	cmd := newBackgroundCommand(d.executable, d.forkArgs()...)
	cmd.Stdin = file
	// Stdout and Stderr stay nil: the child writes into the null device.

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", d.executable, err)
	}
	return cmd.Process.Release()
}

// newBackgroundCommand builds a child process command detached from the
// current session, so the service outlives the client that forked it.
func newBackgroundCommand(path string, args ...string) *exec.Cmd {
	cmd := exec.Command(path, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
	return cmd
}

// inheritedListener reconstructs the listening socket passed across the exec
// boundary as file descriptor 0.
func inheritedListener() (net.Listener, error) {
	file := os.NewFile(0, "inherited-listener")
	listener, err := net.FileListener(file)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return listener, nil
}
