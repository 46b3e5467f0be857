package ipc

import "errors"

var (
	// ErrConnectionClosed indicates the peer closed the connection before the
	// handshake completed.
	ErrConnectionClosed = errors.New("connection closed unexpectedly")

	// ErrLockUnavailable is returned by TryOpenRendezvous when another
	// process currently holds the rendezvous lock. Blocking opens never
	// return it.
	ErrLockUnavailable = errors.New("rendezvous file is locked by another process")

	// ErrMalformed indicates the rendezvous file contents could not be read.
	ErrMalformed = errors.New("rendezvous record is malformed")

	// ErrAddressInvalid indicates the trailing bytes of a rendezvous record
	// do not parse as an ip:port socket address. Whether the address is a
	// loopback one is not checked.
	ErrAddressInvalid = errors.New("rendezvous address is invalid")

	// ErrLaunchFailed indicates no launcher managed to start a server. Under
	// the robust policy both the external and the in-process launcher failed.
	ErrLaunchFailed = errors.New("failed to launch server")

	// ErrRetriesExhausted indicates the rendezvous record kept turning stale
	// across the bounded number of connect attempts.
	ErrRetriesExhausted = errors.New("rendezvous retries exhausted")

	// ErrUsage indicates the server was invoked with a malformed command
	// line.
	ErrUsage = errors.New("usage error")
)
