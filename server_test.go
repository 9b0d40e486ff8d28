package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/simple-item-server/config"
	"github.com/stevemurr/simple-item-server/logging"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())

	srv, cleanup, err := newServer(cfg, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(cleanup)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestServerWiring(t *testing.T) {
	for _, backend := range []string{"memory", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			ts := newTestServer(t, func(c *config.Config) { c.Store.Backend = backend })

			resp, err := http.Post(ts.URL+"/items", "application/json", strings.NewReader(`{"name":"Test"}`))
			require.NoError(t, err)
			resp.Body.Close()
			require.Equal(t, http.StatusCreated, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
			assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

			resp, err = http.Get(ts.URL + "/metrics")
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), "item_server_items 1")
			assert.Contains(t, string(body), `item_server_http_requests_total{method="POST",route="POST /items",status="201"} 1`)
		})
	}
}

func TestServerMetricsDisabled(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Metrics.Enabled = false })
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerBodyLimit(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Server.MaxBodyBytes = 8 })
	resp, err := http.Post(ts.URL+"/items", "application/json", strings.NewReader(`{"name":"far too long"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.ShutdownTimeout = 2 * time.Second
	srv, cleanup, err := newServer(cfg, logging.Nop())
	require.NoError(t, err)
	defer cleanup()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, srv, ln, cfg, logging.Nop()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "item-server dev")
}

func TestConfigCommandAppliesFlags(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "--port", "9999", "--store", "sqlite"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "port: 9999")
	assert.Contains(t, out.String(), "backend: sqlite")
}

func TestConfigCommandRejectsInvalid(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"config", "--store", "redis"})
	assert.ErrorIs(t, cmd.Execute(), config.ErrInvalid)
}

func TestServeRejectsClashingMetricsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics:\n  path: /items\n"), 0o644))

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"serve", "--config", path, "--port", "0"})
	assert.ErrorIs(t, cmd.Execute(), config.ErrInvalid)
}
