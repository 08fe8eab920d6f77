package mockoon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getmockd/sandbox/pkg/logging"
)

// DefaultCLIPath is the mockoon-cli executable looked up on PATH.
const DefaultCLIPath = "mockoon-cli"

// stopGrace is how long Stop waits after an interrupt before killing.
const stopGrace = 5 * time.Second

// CLIRunner runs environments with mockoon-cli. Each started environment is
// written to <DataDir>/environments/<id>.json.
type CLIRunner struct {
	Path     string
	DataDir  string
	Logger   *slog.Logger
	LogLines int
}

// Name implements Runner.
func (c *CLIRunner) Name() string { return RunnerCLI }

// DataFile returns the environment file path for environmentID.
func (c *CLIRunner) DataFile(environmentID string) string {
	return filepath.Join(c.DataDir, "environments", environmentID+".json")
}

// Start implements Runner.
func (c *CLIRunner) Start(_ context.Context, environmentID string, env *Environment, port int) (Instance, error) {
	if env == nil {
		return nil, errors.New("environment is required")
	}
	file := c.DataFile(environmentID)
	if err := writeEnvironmentFile(file, env, port); err != nil {
		return nil, err
	}

	bin := c.Path
	if bin == "" {
		bin = DefaultCLIPath
	}
	log := c.Logger
	if log == nil {
		log = logging.Nop()
	}

	inst := &CLIInstance{exitState: newExitState(), logs: newLineBuffer(c.LogLines)}
	out := &lineWriter{add: inst.logs.Add}
	cmd := exec.Command(bin, "start", "--data", file, "--port", strconv.Itoa(port))
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", bin, err)
	}
	inst.cmd = cmd
	inst.logs.Add(fmt.Sprintf("started %s (pid %d) on port %d", bin, cmd.Process.Pid, port))
	log.Info("mockoon-cli started", "environment", environmentID, "pid", cmd.Process.Pid, "port", port)

	go func() {
		err := cmd.Wait()
		out.flush()
		if inst.stopping.Load() {
			inst.finish(ErrStopped)
			return
		}
		if err == nil {
			err = errors.New("mockoon-cli exited")
		} else {
			err = fmt.Errorf("mockoon-cli exited: %w", err)
		}
		inst.logs.Add(err.Error())
		log.Warn("mockoon-cli exited unexpectedly", "environment", environmentID, "error", err)
		inst.finish(err)
	}()
	return inst, nil
}

func writeEnvironmentFile(path string, env *Environment, port int) error {
	e := env.Clone()
	e.Port = port
	e.normalize()
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("encode environment: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create environment directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write environment file: %w", err)
	}
	return nil
}

// CLIInstance is a running mockoon-cli process.
type CLIInstance struct {
	*exitState
	cmd      *exec.Cmd
	logs     *lineBuffer
	stopping atomic.Bool
}

// Logs implements Instance.
func (i *CLIInstance) Logs() []string { return i.logs.Lines() }

// Stop interrupts the process and kills it if it has not exited after a
// grace period or when ctx ends.
func (i *CLIInstance) Stop(ctx context.Context) error {
	select {
	case <-i.Done():
		return nil
	default:
	}
	i.stopping.Store(true)
	if err := i.cmd.Process.Signal(os.Interrupt); err != nil {
		_ = i.cmd.Process.Kill()
	}
	t := time.NewTimer(stopGrace)
	defer t.Stop()
	select {
	case <-i.Done():
		return nil
	case <-t.C:
	case <-ctx.Done():
	}
	if err := i.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill mockoon-cli: %w", err)
	}
	<-i.Done()
	return nil
}

// lineWriter splits process output into log lines.
type lineWriter struct {
	mu  sync.Mutex
	buf []byte
	add func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimRight(w.buf[:i], "\r"); len(line) > 0 {
			w.add(string(line))
		}
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.add(string(w.buf))
		w.buf = nil
	}
}
