package mockoon

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeCLI(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "mockoon-cli")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func TestCLIRunner(t *testing.T) {
	dir := t.TempDir()
	runner := &CLIRunner{Path: fakeCLI(t, `echo "args: $@"; exec sleep 30`), DataDir: dir}
	env := Build(loadPetstore(t), BuildOptions{})

	inst, err := runner.Start(context.Background(), "env_cli", env, 3456)
	require.NoError(t, err)

	data, err := os.ReadFile(runner.DataFile("env_cli"))
	require.NoError(t, err)
	var written Environment
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, 3456, written.Port)

	require.Eventually(t, func() bool {
		for _, l := range inst.Logs() {
			if strings.Contains(l, "args: start --data "+runner.DataFile("env_cli")+" --port 3456") {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, inst.Stop(context.Background()))
	assert.ErrorIs(t, inst.Err(), ErrStopped)
}

func TestCLIRunnerUnexpectedExit(t *testing.T) {
	runner := &CLIRunner{Path: fakeCLI(t, `echo boom >&2; exit 3`), DataDir: t.TempDir()}
	env := &Environment{Name: "crash"}
	inst, err := runner.Start(context.Background(), "env_crash", env, 3457)
	require.NoError(t, err)

	select {
	case <-inst.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit")
	}
	require.Error(t, inst.Err())
	assert.NotErrorIs(t, inst.Err(), ErrStopped)
	assert.Contains(t, strings.Join(inst.Logs(), "\n"), "boom")
	assert.NoError(t, inst.Stop(context.Background()))
}

func TestCLIRunnerMissingBinary(t *testing.T) {
	runner := &CLIRunner{Path: filepath.Join(t.TempDir(), "nope"), DataDir: t.TempDir()}
	_, err := runner.Start(context.Background(), "env_x", &Environment{}, 3458)
	assert.Error(t, err)
}

func TestLineWriter(t *testing.T) {
	var lines []string
	w := &lineWriter{add: func(s string) { lines = append(lines, s) }}
	_, _ = w.Write([]byte("one\r\ntw"))
	_, _ = w.Write([]byte("o\n\nthree"))
	w.flush()
	assert.Equal(t, []string{"one", "two", "three"}, lines)
}

func TestLineBufferBounded(t *testing.T) {
	b := newLineBuffer(2)
	b.Add("a")
	b.Add("b")
	b.Add("c")
	lines := b.Lines()
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], " b"))
	assert.True(t, strings.HasSuffix(lines[1], " c"))
}
