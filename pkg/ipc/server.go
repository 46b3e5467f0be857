package ipc

import (
	"context"
	"fmt"
	"net"

	"github.com/marmos91/keywarden/internal/logger"
	"github.com/marmos91/keywarden/pkg/metrics"
)

// Server accepts authenticated sessions for one service instance.
//
// The bootstrap protocol is:
//
//   - The first client exclusively locks the rendezvous file.
//   - The client binds a loopback TCP socket and generates a cookie.
//   - The client starts the server, passing it the listener.
//   - The client connects and sends the cookie on that connection.
//   - The client drops the connection and unlocks the rendezvous file,
//     allowing other clients in.
//   - The server latches the cookie from that first connection, then serves.
//
// The initialization connection is never used for RPC; the server closes it
// immediately after receiving the cookie.
type Server struct {
	descriptor *Descriptor

	// Metrics is an optional recorder for session lifecycle metrics.
	// If nil, no metrics are collected.
	Metrics metrics.SessionMetrics
}

// NewServer creates a server for the descriptor.
func NewServer(descriptor *Descriptor) (*Server, error) {
	if descriptor.factory == nil {
		return nil, fmt.Errorf("descriptor has no handler factory")
	}
	return &Server{descriptor: descriptor, Metrics: descriptor.Metrics}, nil
}

// Serve turns this process into a server.
//
// External servers call this early on. On Unix it expects file descriptor 0
// to be a listening TCP socket; on Windows it expects the SOCKET environment
// variable to carry the numeric handle of one.
func (s *Server) Serve() error {
	ensureWinsock()

	listener, err := inheritedListener()
	if err != nil {
		return fmt.Errorf("reconstructing inherited listener: %w", err)
	}
	return s.ServeListener(listener)
}

// ServeListener runs the accept loop on l.
//
// Exactly one initialization connection is accepted first; its 32 bytes
// become the expected cookie for this server's lifetime. Every subsequent
// connection must present the same cookie or it is dropped without any
// indication of why. Per-connection failures never terminate the server;
// listener-level failures do.
func (s *Server) ServeListener(l net.Listener) error {
	defer l.Close()

	init, err := l.Accept()
	if err != nil {
		return fmt.Errorf("accepting initialization connection: %w", err)
	}
	expected, err := ReceiveCookie(init)
	_ = init.Close()
	if err != nil {
		return err
	}

	handler, err := s.descriptor.factory(s.descriptor)
	if err != nil {
		return fmt.Errorf("building service handler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("server accepting sessions", "address", l.Addr())

	for {
		conn, err := l.Accept()
		if err != nil {
			return fmt.Errorf("accepting on %s: %w", l.Addr(), err)
		}
		go s.handleSession(ctx, conn, expected, handler)
	}
}

// handleSession authenticates one accepted connection and hands it to the
// service handler. Rejections are silent towards the peer.
func (s *Server) handleSession(ctx context.Context, conn net.Conn, expected Cookie, handler Handler) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	received, err := ReceiveCookie(conn)
	if err != nil || !received.Equal(expected) {
		if s.Metrics != nil {
			s.Metrics.RecordSessionRejected()
		}
		logger.Debug("session rejected", "remote", conn.RemoteAddr())
		_ = conn.Close()
		return
	}

	if s.Metrics != nil {
		s.Metrics.RecordSessionAccepted()
	}
	logger.Debug("session accepted", "remote", conn.RemoteAddr())

	handler.Handle(ctx, conn)

	if s.Metrics != nil {
		s.Metrics.RecordSessionClosed()
	}
}
