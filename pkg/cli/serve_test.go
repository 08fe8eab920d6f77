package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/sandbox/pkg/config"
	"github.com/getmockd/sandbox/pkg/mockoon"
	"github.com/getmockd/sandbox/pkg/specs"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

// runCLI executes the root command with args and returns what it printed.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonOutput = false
	specImportName = ""
	envCreate = mockoon.CreateRequest{}
	enhanceHint = ""
	analyticsEnv = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// startServer runs a sandboxd backend with an in-memory store and returns
// its admin URL and the port its single environment slot uses.
func startServer(t *testing.T) (string, int) {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Store.Backend = "memory"
	envPort := freePort(t)
	cfg.Mockoon.PortStart, cfg.Mockoon.PortEnd = envPort, envPort

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := newServer(ctx, cfg, io.Discard)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(15 * time.Second):
			t.Error("server did not shut down")
		}
	})
	return "http://" + srv.Addr().String(), envPort
}

func TestServeEndToEnd(t *testing.T) {
	base, envPort := startServer(t)
	c := NewAdminClient(base)
	require.NoError(t, c.Health(context.Background()))

	out, err := runCLI(t, "specs", "import", "../mockoon/testdata/petstore.yaml", "--admin-url", base, "--json")
	require.NoError(t, err)
	var spec specs.Spec
	require.NoError(t, json.Unmarshal([]byte(out), &spec))
	assert.Equal(t, "Petstore", spec.Name)

	out, err = runCLI(t, "env", "create", spec.ID, "--start", "--admin-url", base, "--json")
	require.NoError(t, err)
	var env mockoon.Record
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	require.Equal(t, mockoon.StatusRunning, env.Status, env.Error)
	assert.Equal(t, envPort, env.Port)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/v1/pets", envPort))
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		sum, err := c.AnalyticsSummary(context.Background(), env.ID)
		return err == nil && sum.Total == 1
	}, 5*time.Second, 20*time.Millisecond)

	out, err = runCLI(t, "analytics", "--admin-url", base, "--env", env.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Calls:      1")
	assert.Contains(t, out, "/v1/pets")

	out, err = runCLI(t, "env", "list", "--admin-url", base)
	require.NoError(t, err)
	assert.Contains(t, out, env.ID)
	assert.Contains(t, out, "running")

	_, err = runCLI(t, "enhance", env.ID, "--admin-url", base)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ai_disabled")

	out, err = runCLI(t, "env", "stop", env.ID, "--admin-url", base)
	require.NoError(t, err)
	assert.Contains(t, out, "Stopped environment "+env.ID)

	out, err = runCLI(t, "specs", "list", "--admin-url", base)
	require.NoError(t, err)
	assert.Contains(t, out, "Petstore")

	_, err = runCLI(t, "specs", "delete", spec.ID, "--admin-url", base)
	require.NoError(t, err)
	_, err = runCLI(t, "specs", "delete", spec.ID, "--admin-url", base)
	assert.True(t, IsNotFound(err))
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version", "--json")
	require.NoError(t, err)
	var v VersionOutput
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.NotEmpty(t, v.Go)
	assert.NotEmpty(t, v.Version)

	out, err = runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sandboxd ")
}

func TestServeFlagsOverrideConfig(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, serveCmd.Flags().Set("runner", "cli"))
	require.NoError(t, serveCmd.Flags().Set("port", "4400"))
	t.Cleanup(func() {
		_ = serveCmd.Flags().Set("runner", config.DefaultRunner)
		_ = serveCmd.Flags().Set("port", "4300")
	})

	require.NoError(t, serveOpts.apply(serveCmd, cfg))
	assert.Equal(t, "cli", cfg.Mockoon.Runner)
	assert.Equal(t, 4400, cfg.Server.Port)
	assert.Equal(t, config.DefaultHost, cfg.Server.Host)

	require.NoError(t, serveCmd.Flags().Set("runner", "docker"))
	assert.Error(t, serveOpts.apply(serveCmd, cfg))
}
