package ipc

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strconv"

	"github.com/marmos91/keywarden/internal/logger"
	"github.com/marmos91/keywarden/pkg/metrics"
)

// connectAttempts bounds how often Connect restarts after finding a stale or
// malformed rendezvous record. A fresh record is created on the first empty
// read, so the bound is only ever hit when a concurrent actor keeps
// invalidating the file.
const connectAttempts = 3

// Handler serves established, authenticated sessions. Handle is called once
// per session on its own goroutine and owns conn; it must close it. The
// context is cancelled when the server shuts down.
type Handler interface {
	Handle(ctx context.Context, conn net.Conn)
}

// HandlerFactory builds the service handler. It runs once per server, after
// the bootstrap cookie has been received.
type HandlerFactory func(d *Descriptor) (Handler, error)

// Descriptor is the client-side identity of a service: where to find its
// rendezvous point, which executable to fork for the external variant, and
// how to build the service handler for the in-process variant. Descriptors
// are immutable and safe to share.
type Descriptor struct {
	ctx        Context
	rendezvous string
	executable string
	factory    HandlerFactory

	// Metrics, when non-nil, is attached to every server this descriptor
	// starts. Set it before first use; nil disables collection.
	Metrics metrics.SessionMetrics
}

// NewDescriptor creates a descriptor from its rendezvous point, the path of
// the service executable, and a handler factory.
func NewDescriptor(ctx Context, rendezvous, executable string, factory HandlerFactory) *Descriptor {
	return &Descriptor{
		ctx:        ctx,
		rendezvous: rendezvous,
		executable: executable,
		factory:    factory,
	}
}

// Context returns the service context.
func (d *Descriptor) Context() Context {
	return d.ctx
}

// Rendezvous returns the rendezvous pathname.
func (d *Descriptor) Rendezvous() string {
	return d.rendezvous
}

// Connect locates the service, starting it if necessary, and returns an
// established authenticated session ready for the RPC layer. The launch
// strategy comes from the descriptor's context.
func (d *Descriptor) Connect() (net.Conn, error) {
	return d.ConnectWithPolicy(d.ctx.Policy)
}

// ConnectWithPolicy is Connect with an explicit launch policy.
//
// The whole critical section runs under the rendezvous file's exclusive
// lock: read an existing record and reuse it, or generate a cookie, start a
// server, latch the cookie into it over a throwaway initialization
// connection, and (for external servers) register it in the file. A stale
// record is cleared and the protocol restarted; at most connectAttempts
// passes are made in total.
func (d *Descriptor) ConnectWithPolicy(policy Policy) (net.Conn, error) {
	ensureWinsock()

	for attempt := 0; attempt < connectAttempts; attempt++ {
		conn, retry, err := d.connectOnce(policy)
		if err != nil {
			return nil, err
		}
		if !retry {
			return conn, nil
		}
		logger.Debug("stale rendezvous record cleared, retrying",
			"path", d.rendezvous, "attempt", attempt+1)
	}

	return nil, fmt.Errorf("connecting via %s: %w", d.rendezvous, ErrRetriesExhausted)
}

// connectOnce performs one pass of the connect protocol. retry=true means
// the rendezvous record was stale and has been cleared; the caller should
// start over.
func (d *Descriptor) connectOnce(policy Policy) (conn net.Conn, retry bool, err error) {
	if err := os.MkdirAll(d.ctx.Home, 0755); err != nil {
		return nil, false, fmt.Errorf("creating %s: %w", d.ctx.Home, err)
	}

	file, err := OpenRendezvous(d.rendezvous)
	if err != nil {
		return nil, false, err
	}
	defer file.Close()

	cookie, rest, ok, err := file.Read()
	if err != nil {
		return nil, false, err
	}

	if ok {
		// A record exists. It is only trusted as far as a TCP connect to the
		// recorded address succeeds; anything else invalidates it.
		stream, dialErr := dialRecord(rest)
		if dialErr != nil {
			if err := file.Clear(); err != nil {
				return nil, false, err
			}
			return nil, true, nil
		}
		session, err := finishConnect(cookie, stream)
		if err != nil {
			return nil, false, err
		}
		return session, false, nil
	}

	// Empty rendezvous: this client decides how the service starts. The lock
	// guarantees no other client reaches this point concurrently.
	cookie, err = NewCookie()
	if err != nil {
		return nil, false, err
	}

	addr, external, _, err := d.start(policy)
	if err != nil {
		return nil, false, err
	}

	if err := sendInitCookie(cookie, addr); err != nil {
		return nil, false, err
	}

	if external {
		// Register the server for other processes. In-process servers die
		// with this process and are deliberately not registered.
		if err := file.Write(cookie, []byte(addr)); err != nil {
			return nil, false, err
		}
	}

	if err := file.Close(); err != nil {
		return nil, false, err
	}

	stream, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, false, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	session, err := finishConnect(cookie, stream)
	if err != nil {
		return nil, false, err
	}
	return session, false, nil
}

// Bootstrap turns the current process into the registered server for this
// descriptor. If a live server is already registered it returns (nil, nil).
// Otherwise it starts an in-process worker, registers it in the rendezvous
// file, and returns the worker's handle.
//
// Unlike Connect, the in-process server *is* registered: here "in-process"
// means this long-lived daemon, which is exactly what later clients should
// discover. This function is for services starting themselves; clients
// should never call it.
func (d *Descriptor) Bootstrap() (*ServerHandle, error) {
	ensureWinsock()

	if err := os.MkdirAll(d.ctx.Home, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", d.ctx.Home, err)
	}

	file, err := OpenRendezvous(d.rendezvous)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if cookie, rest, ok, err := file.Read(); err != nil {
		return nil, err
	} else if ok {
		if stream, dialErr := dialRecord(rest); dialErr == nil {
			sendErr := cookie.Send(stream)
			_ = stream.Close()
			if sendErr == nil {
				// There is already a server running.
				return nil, nil
			}
		}
	}

	cookie, err := NewCookie()
	if err != nil {
		return nil, err
	}

	addr, _, handle, err := d.start(PolicyInProcess)
	if err != nil {
		return nil, err
	}

	if err := file.Write(cookie, []byte(addr)); err != nil {
		return nil, err
	}
	if err := file.Close(); err != nil {
		return nil, err
	}

	if err := sendInitCookie(cookie, addr); err != nil {
		return nil, err
	}

	logger.Info("service bootstrapped", "rendezvous", d.rendezvous, "address", addr)
	return handle, nil
}

// start binds a fresh loopback listener on a kernel-assigned port and stands
// a server up on it according to policy. The returned handle is non-nil only
// for in-process servers.
func (d *Descriptor) start(policy Policy) (addr string, external bool, handle *ServerHandle, err error) {
	switch policy {
	case PolicyExternal:
		addr, err = d.startExternal()
		return addr, true, nil, err
	case PolicyInProcess:
		addr, handle, err = d.startInProcess()
		return addr, false, handle, err
	case PolicyRobust:
		addr, extErr := d.startExternal()
		if extErr == nil {
			return addr, true, nil, nil
		}
		logger.Debug("external launch failed, falling back to in-process", "error", extErr)
		addr, handle, inErr := d.startInProcess()
		if inErr != nil {
			return "", false, nil, fmt.Errorf("%w: external: %v; in-process: %v",
				ErrLaunchFailed, extErr, inErr)
		}
		return addr, false, handle, nil
	default:
		return "", false, nil, fmt.Errorf("%w: unknown policy %v", ErrLaunchFailed, policy)
	}
}

// startExternal forks the service executable with the freshly bound listener
// inherited across the exec boundary. It returns as soon as the spawn
// succeeds; readiness is observed by the caller's own connect.
func (d *Descriptor) startExternal() (string, error) {
	listener, err := bindLoopback()
	if err != nil {
		return "", err
	}
	addr := listener.Addr().String()

	err = d.fork(listener)
	_ = listener.Close()
	if err != nil {
		return "", err
	}

	logger.Debug("external server forked", "executable", d.executable, "address", addr)
	return addr, nil
}

// startInProcess hands the freshly bound listener to a background worker in
// this process.
func (d *Descriptor) startInProcess() (string, *ServerHandle, error) {
	listener, err := bindLoopback()
	if err != nil {
		return "", nil, err
	}
	addr := listener.Addr().String()

	server, err := NewServer(d)
	if err != nil {
		_ = listener.Close()
		return "", nil, err
	}
	handle := spawnWorker(server, listener)

	logger.Debug("in-process server started", "address", addr)
	return addr, handle, nil
}

func (d *Descriptor) forkArgs() []string {
	return []string{
		"--home", d.ctx.Home,
		"--lib", d.ctx.Lib,
		"--ephemeral", strconv.FormatBool(d.ctx.Ephemeral),
	}
}

func bindLoopback() (*net.TCPListener, error) {
	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		return nil, fmt.Errorf("binding loopback listener: %w", err)
	}
	return listener, nil
}

// dialRecord parses the trailing bytes of a rendezvous record as a socket
// address and connects to it.
func dialRecord(rest []byte) (net.Conn, error) {
	addrPort, err := netip.ParseAddrPort(string(rest))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrAddressInvalid, rest)
	}
	conn, err := net.Dial("tcp", addrPort.String())
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// sendInitCookie opens the throwaway initialization connection whose only
// purpose is to latch the cookie into a freshly started server. The server
// inherited an already-listening socket, so the connect succeeds out of the
// backlog even before the server calls accept.
func sendInitCookie(cookie Cookie, addr string) error {
	init, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer init.Close()
	return cookie.Send(init)
}

// finishConnect sends the cookie on an established stream and promotes it to
// a session for the RPC layer. The connect counts as successful once the
// cookie has been written; a mismatched server simply closes the stream and
// the RPC layer observes that.
func finishConnect(cookie Cookie, stream net.Conn) (net.Conn, error) {
	if err := cookie.Send(stream); err != nil {
		_ = stream.Close()
		return nil, err
	}
	if tcp, ok := stream.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			logger.Debug("failed to set TCP_NODELAY", "error", err)
		}
	}
	return stream, nil
}
