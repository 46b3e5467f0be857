//go:build windows

package ipc

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/windows"
)

var (
	wsaOnce    sync.Once
	wsaStarted atomic.Bool
)

// ensureWinsock initializes the Windows Sockets library once, before the
// first socket call issued by this package. Cleanup is skipped entirely if
// startup failed.
func ensureWinsock() {
	wsaOnce.Do(func() {
		var data windows.WSAData
		err := windows.WSAStartup(uint32(0x202), &data) // version 2.2
		wsaStarted.Store(err == nil)
	})
}

// CleanupWinsock tears the Windows Sockets library down. Call it at process
// shutdown; it is a no-op if startup never ran or failed.
func CleanupWinsock() {
	if wsaStarted.Swap(false) {
		_ = windows.WSACleanup()
	}
}
