package mockoon

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/getmockd/sandbox/pkg/analytics"
)

// Runner names.
const (
	RunnerBuiltin = "builtin"
	RunnerCLI     = "cli"
)

// ErrStopped is returned by Instance.Err after a requested stop.
var ErrStopped = errors.New("instance stopped")

// Runner starts mock servers for environments.
type Runner interface {
	Name() string
	// Start serves env on port. The instance runs until Stop is called or
	// it fails; env must not be modified afterwards.
	Start(ctx context.Context, environmentID string, env *Environment, port int) (Instance, error)
}

// Instance is one running environment.
type Instance interface {
	Stop(ctx context.Context) error
	// Done is closed when the instance exits for any reason.
	Done() <-chan struct{}
	// Err is nil while running, ErrStopped after Stop, and the exit cause
	// otherwise.
	Err() error
	Logs() []string
}

// CallRecorder receives one Call per request served by the builtin runner.
type CallRecorder interface {
	Record(c *analytics.Call)
}

// DefaultLogLines is the log buffer size of an instance.
const DefaultLogLines = 500

// lineBuffer keeps the last N log lines.
type lineBuffer struct {
	mu    sync.Mutex
	lines []string
	max   int
	now   func() time.Time
}

func newLineBuffer(maxLines int) *lineBuffer {
	if maxLines <= 0 {
		maxLines = DefaultLogLines
	}
	return &lineBuffer{max: maxLines, now: time.Now}
}

func (b *lineBuffer) Add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) >= b.max {
		copy(b.lines, b.lines[1:])
		b.lines = b.lines[:len(b.lines)-1]
	}
	b.lines = append(b.lines, b.now().UTC().Format(time.RFC3339)+" "+line)
}

func (b *lineBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.lines)
}

// exitState tracks Done/Err for instances.
type exitState struct {
	once sync.Once
	done chan struct{}
	mu   sync.Mutex
	err  error
}

func newExitState() *exitState { return &exitState{done: make(chan struct{})} }

func (s *exitState) finish(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *exitState) Done() <-chan struct{} { return s.done }

func (s *exitState) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
