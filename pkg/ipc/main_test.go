package ipc

import (
	"context"
	"io"
	"net"
	"os"
	"testing"
	"time"
)

// helperEnv makes the test binary serve an inherited listener instead of
// running tests. Tests that fork an external server re-exec themselves with
// this variable set, so the spawned "service executable" is this very
// binary.
const helperEnv = "KEYWARDEN_IPC_TEST_SERVE"

func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		runHelperServer()
		return
	}
	os.Exit(m.Run())
}

// runHelperServer is the body of a forked external test server: an echo
// service on the listener inherited across the exec boundary. It exits when
// a session sends "QUIT", so tests can tear it down.
func runHelperServer() {
	descriptor := NewDescriptor(Context{}, "", "", func(d *Descriptor) (Handler, error) {
		return echoHandler{allowQuit: true}, nil
	})
	server, err := NewServer(descriptor)
	if err != nil {
		os.Exit(1)
	}
	if err := server.Serve(); err != nil {
		os.Exit(1)
	}
}

// echoHandler writes every chunk it reads straight back. With allowQuit set
// a "QUIT" chunk terminates the whole process; only external helper servers
// enable that.
type echoHandler struct {
	allowQuit bool
}

func (h echoHandler) Handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		if h.allowQuit && string(buf[:n]) == "QUIT" {
			_ = conn.Close()
			os.Exit(0)
		}
		if _, err := conn.Write(buf[:n]); err != nil {
			return
		}
	}
}

// stopExternalServer authenticates against the server registered at path
// and asks it to exit. Best effort; tests call it from t.Cleanup.
func stopExternalServer(path string) {
	file, err := OpenRendezvous(path)
	if err != nil {
		return
	}
	defer file.Close()

	cookie, rest, ok, err := file.Read()
	if err != nil || !ok {
		return
	}
	conn, err := net.DialTimeout("tcp", string(rest), time.Second)
	if err != nil {
		return
	}
	defer conn.Close()

	if err := cookie.Send(conn); err != nil {
		return
	}
	_, _ = conn.Write([]byte("QUIT"))
	// Give the server a moment to see the command before the conn drops.
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _ = conn.Read(make([]byte, 1))
	_ = file.Clear()
}

// exerciseSession proves a session is wired to an echo server end to end.
func exerciseSession(t *testing.T, conn net.Conn) {
	t.Helper()

	payload := []byte("hello keywarden")
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("writing to session: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, len(payload))
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("reading echo reply: %v", err)
	}
	if string(buf) != string(payload) {
		t.Fatalf("echo reply %q, want %q", buf, payload)
	}
	_ = conn.SetReadDeadline(time.Time{})
}
