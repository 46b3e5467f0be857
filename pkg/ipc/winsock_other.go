//go:build !windows

package ipc

// ensureWinsock is a no-op outside Windows.
func ensureWinsock() {}

// CleanupWinsock is a no-op outside Windows.
func CleanupWinsock() {}
