package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gwngames/persister/internal/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) handle(_ context.Context, line []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, string(line))
}

func (c *lineCollector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func testConfig() config.ServerConfig {
	return config.ServerConfig{
		Host:                         "127.0.0.1",
		Port:                         0,
		MaxConnections:               4,
		MaxUnactiveConnectionSeconds: 600,
		UnactiveConnListenSeconds:    60,
		ReadTimeoutSeconds:           1200,
	}
}

func startServer(t *testing.T, cfg config.ServerConfig, h Handler) (*Server, context.CancelFunc) {
	t.Helper()
	srv := New(cfg, h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("server did not stop")
		}
	})
	return srv, cancel
}

func TestServerDeliversLines(t *testing.T) {
	collector := &lineCollector{}
	srv, _ := startServer(t, testConfig(), collector.handle)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("{\"a\":1}\n  \n{\"b\":2}\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(collector.snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{`{"a":1}`, `{"b":2}`}, collector.snapshot())
}

func TestServerReassemblesSplitLines(t *testing.T) {
	collector := &lineCollector{}
	srv, _ := startServer(t, testConfig(), collector.handle)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	// one message split across writes, trailing whitespace around it
	_, err = conn.Write([]byte("  {\"title\":"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, err = conn.Write([]byte("\"half\"} \n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(collector.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, `{"title":"half"}`, collector.snapshot()[0])
}

func TestServerTracksAndReleasesConnections(t *testing.T) {
	collector := &lineCollector{}
	srv, _ := startServer(t, testConfig(), collector.handle)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return srv.ActiveConnections() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return srv.ActiveConnections() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServerRejectsConnectionsOverLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 1
	collector := &lineCollector{}
	srv, _ := startServer(t, cfg, collector.handle)

	first, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer first.Close()

	require.Eventually(t, func() bool {
		return srv.ActiveConnections() == 1
	}, 2*time.Second, 10*time.Millisecond)

	second, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer second.Close()

	// the surplus connection is closed by the server: the read returns EOF
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = second.Read(buf)
	assert.Error(t, err)
	assert.Equal(t, 1, srv.ActiveConnections())
}

func TestReaperClosesIdleConnections(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUnactiveConnectionSeconds = 1
	cfg.UnactiveConnListenSeconds = 1
	collector := &lineCollector{}
	srv, _ := startServer(t, cfg, collector.handle)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return srv.ActiveConnections() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return srv.ActiveConnections() == 0
	}, 5*time.Second, 50*time.Millisecond, "idle connection must be reaped")
}

func TestServerShutdownClosesClients(t *testing.T) {
	collector := &lineCollector{}
	srv, cancel := startServer(t, testConfig(), collector.handle)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return srv.ActiveConnections() == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.Error(t, err)
}
