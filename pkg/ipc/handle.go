package ipc

import "net"

// ServerHandle observes the termination of an in-process server worker.
type ServerHandle struct {
	done chan struct{}
	err  error
}

// spawnWorker runs the server's accept loop on a background goroutine and
// returns a handle for observing its termination.
func spawnWorker(server *Server, l net.Listener) *ServerHandle {
	h := &ServerHandle{done: make(chan struct{})}
	go func() {
		h.err = server.ServeListener(l)
		close(h.done)
	}()
	return h
}

// Done returns a channel closed when the worker terminates.
func (h *ServerHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the worker terminates and returns its fatal error, if
// any. Servers have no graceful-shutdown path, so under normal operation
// Wait blocks for the life of the process.
func (h *ServerHandle) Wait() error {
	<-h.done
	return h.err
}

// Running reports whether the worker is still serving.
func (h *ServerHandle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}
