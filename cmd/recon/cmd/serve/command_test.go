package serve

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/recon"
	"github.com/agentstation/recon/internal/cmd/application"
	"github.com/agentstation/recon/internal/metrics"
	"github.com/agentstation/recon/internal/server"
	"github.com/agentstation/recon/pkg/logging"
)

func TestParseConfigKeepsBaseWhenFlagsUnset(t *testing.T) {
	base := server.DefaultConfig()
	base.Port = 9100
	base.RateLimit = 5

	cmd := NewCommand(&application.Mock{})
	require.NoError(t, cmd.ParseFlags(nil))

	assert.Equal(t, base, parseConfig(cmd, base))
}

func TestParseConfigOverrides(t *testing.T) {
	cmd := NewCommand(&application.Mock{})
	require.NoError(t, cmd.ParseFlags([]string{
		"--port", "3000",
		"--host", "127.0.0.1",
		"--prefix", "/v2",
		"--cors-origins", "https://a.example,https://b.example",
		"--rate-limit", "0",
		"--cache-ttl", "1m",
		"--max-body-bytes", "1024",
		"--metrics=false",
	}))

	cfg := parseConfig(cmd, server.DefaultConfig())
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, "/v2", cfg.PathPrefix)
	assert.True(t, cfg.CORSEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Zero(t, cfg.RateLimit)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, int64(1024), cfg.MaxBodyBytes)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, server.DefaultConfig().ReadTimeout, cfg.ReadTimeout)
}

func TestServeWithGracefulShutdown(t *testing.T) {
	engine, err := recon.New(recon.WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)
	defer func() { _ = engine.Close() }()

	cfg := server.DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	srv, err := server.New(engine, cfg, logging.NewNopLogger(), metrics.New())
	require.NoError(t, err)
	srv.Start()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serveWithGracefulShutdown(ctx, srv.HTTPServer(), listener, srv, logging.NewNopLogger())
	}()

	resp, err := http.Get("http://" + listener.Addr().String() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "healthy")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
