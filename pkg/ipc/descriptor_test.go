package ipc

import (
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var addrPattern = regexp.MustCompile(`^127\.0\.0\.1:\d+$`)

// testDescriptor builds a descriptor whose in-process servers echo, and
// whose external servers are this test binary re-executed (see main_test).
// The counter tracks handler factory invocations, i.e. in-process starts.
func testDescriptor(t *testing.T, policy Policy) (*Descriptor, *atomic.Int32) {
	t.Helper()

	home := t.TempDir()
	executable, err := os.Executable()
	require.NoError(t, err)

	var starts atomic.Int32
	factory := func(d *Descriptor) (Handler, error) {
		starts.Add(1)
		return echoHandler{}, nil
	}

	ctx := Context{Home: home, Lib: filepath.Join(home, "lib"), Policy: policy}
	d := NewDescriptor(ctx, filepath.Join(home, "service.rendezvous"), executable, factory)
	return d, &starts
}

func readRecord(t *testing.T, path string) (Cookie, string) {
	t.Helper()

	file, err := OpenRendezvous(path)
	require.NoError(t, err)
	defer file.Close()

	cookie, rest, ok, err := file.Read()
	require.NoError(t, err)
	require.True(t, ok, "expected a registered record in %s", path)
	return cookie, string(rest)
}

// ============================================================================
// Cold Start Scenarios
// ============================================================================

func TestConnectColdStartInProcess(t *testing.T) {
	d, starts := testDescriptor(t, PolicyInProcess)

	conn, err := d.Connect()
	require.NoError(t, err)
	defer conn.Close()

	exerciseSession(t, conn)
	assert.Equal(t, int32(1), starts.Load())

	// In-process servers are not registered: their lifetime is tied to this
	// process and other processes cannot use them.
	info, err := os.Stat(d.Rendezvous())
	if err == nil {
		assert.Zero(t, info.Size(), "rendezvous must stay empty after an in-process start")
	} else {
		assert.True(t, os.IsNotExist(err))
	}
}

func TestConnectColdStartExternal(t *testing.T) {
	t.Setenv(helperEnv, "1")

	d, starts := testDescriptor(t, PolicyExternal)
	t.Cleanup(func() { stopExternalServer(d.Rendezvous()) })

	conn, err := d.Connect()
	require.NoError(t, err)
	defer conn.Close()

	exerciseSession(t, conn)
	assert.Zero(t, starts.Load(), "external start must not invoke the in-process factory")

	_, addr := readRecord(t, d.Rendezvous())
	assert.Regexp(t, addrPattern, addr)

	t.Run("SecondClientReusesServer", func(t *testing.T) {
		second := NewDescriptor(d.Context(), d.Rendezvous(), "/nonexistent/never-spawned",
			func(d *Descriptor) (Handler, error) {
				t.Error("reuse must not start anything")
				return echoHandler{}, nil
			})

		conn2, err := second.Connect()
		require.NoError(t, err)
		defer conn2.Close()

		exerciseSession(t, conn2)
		assert.Equal(t, conn.RemoteAddr().String(), conn2.RemoteAddr().String())
	})
}

// ============================================================================
// Recovery Scenarios
// ============================================================================

func TestConnectClearsStaleRecord(t *testing.T) {
	t.Setenv(helperEnv, "1")

	d, _ := testDescriptor(t, PolicyExternal)
	t.Cleanup(func() { stopExternalServer(d.Rendezvous()) })

	// Register an unreachable server by hand. Port 1 on loopback refuses.
	stale, err := NewCookie()
	require.NoError(t, err)
	file, err := OpenRendezvous(d.Rendezvous())
	require.NoError(t, err)
	require.NoError(t, file.Write(stale, []byte("127.0.0.1:1")))
	require.NoError(t, file.Close())

	conn, err := d.Connect()
	require.NoError(t, err)
	defer conn.Close()

	exerciseSession(t, conn)

	cookie, addr := readRecord(t, d.Rendezvous())
	assert.NotEqual(t, "127.0.0.1:1", addr)
	assert.Regexp(t, addrPattern, addr)
	assert.False(t, cookie.Equal(stale), "a fresh cookie must replace the stale one")
}

func TestConnectClearsMalformedAddress(t *testing.T) {
	d, starts := testDescriptor(t, PolicyInProcess)

	garbage, err := NewCookie()
	require.NoError(t, err)
	file, err := OpenRendezvous(d.Rendezvous())
	require.NoError(t, err)
	require.NoError(t, file.Write(garbage, []byte("not an address")))
	require.NoError(t, file.Close())

	conn, err := d.Connect()
	require.NoError(t, err)
	defer conn.Close()

	exerciseSession(t, conn)
	assert.Equal(t, int32(1), starts.Load())
}

func TestConnectRobustFallsBackToInProcess(t *testing.T) {
	d, starts := testDescriptor(t, PolicyRobust)
	broken := NewDescriptor(d.Context(), d.Rendezvous(),
		filepath.Join(t.TempDir(), "does-not-exist"), d.factory)

	conn, err := broken.Connect()
	require.NoError(t, err)
	defer conn.Close()

	exerciseSession(t, conn)
	assert.Equal(t, int32(1), starts.Load(), "fallback must have started the in-process worker")
}

func TestConnectExternalFailsWithoutExecutable(t *testing.T) {
	d, _ := testDescriptor(t, PolicyExternal)
	broken := NewDescriptor(d.Context(), d.Rendezvous(),
		filepath.Join(t.TempDir(), "does-not-exist"), d.factory)

	_, err := broken.Connect()
	require.Error(t, err)
}

// ============================================================================
// Serialization Scenarios
// ============================================================================

func TestConnectAtMostOneStart(t *testing.T) {
	t.Setenv(helperEnv, "1")

	d, _ := testDescriptor(t, PolicyExternal)
	t.Cleanup(func() { stopExternalServer(d.Rendezvous()) })

	const clients = 5
	addrs := make([]string, clients)

	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := d.Connect()
			if err != nil {
				t.Errorf("client %d: %v", i, err)
				return
			}
			defer conn.Close()
			exerciseSession(t, conn)
			addrs[i] = conn.RemoteAddr().String()
		}(i)
	}
	wg.Wait()

	// The rendezvous lock serializes the decision to start: every client
	// must have ended up at the same server.
	for i := 1; i < clients; i++ {
		assert.Equal(t, addrs[0], addrs[i])
	}
	_, registered := readRecord(t, d.Rendezvous())
	assert.Equal(t, addrs[0], registered)
}

// ============================================================================
// Bootstrap Scenarios
// ============================================================================

func TestBootstrap(t *testing.T) {
	d, starts := testDescriptor(t, PolicyRobust)

	handle, err := d.Bootstrap()
	require.NoError(t, err)
	require.NotNil(t, handle, "first bootstrap must start a worker")
	assert.True(t, handle.Running())
	// The factory runs on the worker once the init cookie arrives, which may
	// be just after Bootstrap returns.
	assert.Eventually(t, func() bool { return starts.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	// Bootstrap registers the in-process server: this daemon is exactly
	// what later clients should discover.
	_, addr := readRecord(t, d.Rendezvous())
	assert.Regexp(t, addrPattern, addr)

	t.Run("ClientConnectsToBootstrappedServer", func(t *testing.T) {
		conn, err := d.Connect()
		require.NoError(t, err)
		defer conn.Close()

		exerciseSession(t, conn)
		assert.Equal(t, int32(1), starts.Load(), "connect must reuse the bootstrapped worker")
	})

	t.Run("SecondBootstrapSeesRunningServer", func(t *testing.T) {
		again, err := d.Bootstrap()
		require.NoError(t, err)
		assert.Nil(t, again)
		assert.Equal(t, int32(1), starts.Load())
	})
}
