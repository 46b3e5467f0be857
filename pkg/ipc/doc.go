// Package ipc implements discovery and bootstrap of co-located keywarden
// services over loopback TCP.
//
// The filesystem is used as a namespace to discover services. Every service
// has a small file called its rendezvous point; access to it is serialized
// with an OS-level exclusive file lock. The file stores a 32-byte random
// cookie followed by the text of a loopback socket address. Clients that find
// a live record connect and authenticate with the cookie; clients that find
// nothing start a server on demand and register it. The design mimics Unix
// domain sockets but works anywhere ordinary files and TCP on 127.0.0.1 do.
//
// Servers can run as external processes (the listening socket is inherited
// across the process boundary) or as a worker goroutine inside the current
// process. The default policy tries an external process first and falls back
// to an in-process worker.
package ipc
