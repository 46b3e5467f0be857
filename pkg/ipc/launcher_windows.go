//go:build windows

package ipc

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"
)

// socketEnvVar carries the decimal raw handle of the inherited listener to
// the child. Blocking handles redirected to stdin misbehave under
// overlapped I/O on Windows, so the socket goes through the environment
// instead.
const socketEnvVar = "SOCKET"

// fork spawns the service executable as a detached background child. Socket
// handles are not inheritable by default; the listener's handle is marked
// inheritable and its numeric value passed via the SOCKET environment
// variable.
func (d *Descriptor) fork(listener *net.TCPListener) error {
	raw, err := rawSocketHandle(listener)
	if err != nil {
		return err
	}

	err = windows.SetHandleInformation(windows.Handle(raw),
		windows.HANDLE_FLAG_INHERIT, windows.HANDLE_FLAG_INHERIT)
	if err != nil {
		return fmt.Errorf("marking listener inheritable: %w", err)
	}

	cmd := newBackgroundCommand(d.executable, d.forkArgs()...)
	cmd.Env = append(os.Environ(), socketEnvVar+"="+strconv.FormatUint(uint64(raw), 10))

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", d.executable, err)
	}
	return cmd.Process.Release()
}

// rawSocketHandle extracts the underlying SOCKET value of the listener.
func rawSocketHandle(listener *net.TCPListener) (uintptr, error) {
	sys, err := listener.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("exporting listener: %w", err)
	}
	var raw uintptr
	if err := sys.Control(func(fd uintptr) { raw = fd }); err != nil {
		return 0, fmt.Errorf("exporting listener: %w", err)
	}
	return raw, nil
}

// newBackgroundCommand builds a child process command that does not open a
// console window.
func newBackgroundCommand(path string, args ...string) *exec.Cmd {
	cmd := exec.Command(path, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW,
	}
	return cmd
}

// inheritedListener reconstructs the listening socket whose handle arrived
// in the SOCKET environment variable.
func inheritedListener() (net.Listener, error) {
	value := os.Getenv(socketEnvVar)
	if value == "" {
		return nil, fmt.Errorf("%s environment variable is not set", socketEnvVar)
	}
	raw, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing %s=%q: %w", socketEnvVar, value, err)
	}

	file := os.NewFile(uintptr(raw), "inherited-listener")
	listener, err := net.FileListener(file)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return listener, nil
}
