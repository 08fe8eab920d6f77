package mockoon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/getmockd/sandbox/internal/id"
	"github.com/getmockd/sandbox/pkg/config"
	"github.com/getmockd/sandbox/pkg/events"
	"github.com/getmockd/sandbox/pkg/fakers"
	"github.com/getmockd/sandbox/pkg/logging"
	"github.com/getmockd/sandbox/pkg/metrics"
	"github.com/getmockd/sandbox/pkg/specs"
	"github.com/getmockd/sandbox/pkg/store"
)

// Default port range for allocated environments, shared with the
// configuration defaults.
const (
	DefaultPortStart = config.DefaultPortStart
	DefaultPortEnd   = config.DefaultPortEnd
)

// SpecSource loads the documents environments are built from.
type SpecSource interface {
	Get(ctx context.Context, specID string) (*specs.Spec, error)
	Document(ctx context.Context, specID string) (*openapi3.T, error)
}

// Manager owns environment records and delegates serving to a Runner.
type Manager struct {
	records   *store.Collection[Record]
	specs     SpecSource
	runner    Runner
	generator *fakers.Generator
	portStart int
	portEnd   int
	hostname  string
	pub       events.Publisher
	metrics   *metrics.Set
	log       *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	instances map[string]Instance
	lastLogs  map[string][]string
}

// Option configures a Manager.
type Option func(*Manager)

// WithPortRange sets the range ports are allocated from.
func WithPortRange(start, end int) Option {
	return func(m *Manager) {
		if start > 0 && end >= start {
			m.portStart, m.portEnd = start, end
		}
	}
}

// WithHostname sets the hostname written into built environments.
func WithHostname(host string) Option {
	return func(m *Manager) { m.hostname = host }
}

// WithGenerator sets the sample generator used by Build.
func WithGenerator(g *fakers.Generator) Option {
	return func(m *Manager) {
		if g != nil {
			m.generator = g
		}
	}
}

// WithPublisher sets where environment.* events are sent.
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.pub = p
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithMetrics sets the metrics updated on status changes.
func WithMetrics(s *metrics.Set) Option {
	return func(m *Manager) { m.metrics = s }
}

// NewManager returns a Manager persisting records to kv.
func NewManager(kv store.KV, src SpecSource, runner Runner, opts ...Option) *Manager {
	m := &Manager{
		records:   store.NewCollection[Record](kv, Collection),
		specs:     src,
		runner:    runner,
		generator: fakers.NewGenerator(nil),
		portStart: DefaultPortStart,
		portEnd:   DefaultPortEnd,
		pub:       events.NopPublisher{},
		log:       logging.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
		instances: make(map[string]Instance),
		lastLogs:  make(map[string][]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunnerName returns the name of the configured runner.
func (m *Manager) RunnerName() string { return m.runner.Name() }

// Create builds an environment from a stored spec.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Record, error) {
	spec, err := m.specs.Get(ctx, req.SpecID)
	if err != nil {
		return nil, err
	}
	doc, err := m.specs.Document(ctx, req.SpecID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	port, err := m.allocatePort(ctx, "", req.Port)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = spec.Name
	}
	env := Build(doc, BuildOptions{Name: name, Port: port, Hostname: m.hostname, Generator: m.generator})

	now := m.now()
	rec := &Record{
		ID:          id.Prefixed(id.PrefixEnvironment),
		SpecID:      spec.ID,
		Name:        name,
		Port:        port,
		Status:      StatusStopped,
		Routes:      len(env.Routes),
		Environment: env,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.records.Put(ctx, rec.ID, rec); err != nil {
		return nil, fmt.Errorf("store environment: %w", err)
	}
	m.log.Info("environment created", "id", rec.ID, "spec", spec.ID, "port", port, "routes", rec.Routes)
	m.pub.Publish(events.TypeEnvironmentCreated, rec.Summary())

	if req.Start {
		if err := m.startLocked(ctx, rec); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// allocatePort validates want, or picks the first port in range that no
// other record uses when want is 0.
func (m *Manager) allocatePort(ctx context.Context, self string, want int) (int, error) {
	if want < 0 || want > 65535 {
		return 0, ErrInvalidPort
	}
	all, err := m.records.List(ctx)
	if err != nil {
		return 0, err
	}
	used := make(map[int]string, len(all))
	for _, r := range all {
		if r.ID != self {
			used[r.Port] = r.ID
		}
	}
	if want != 0 {
		if other, ok := used[want]; ok {
			return 0, fmt.Errorf("%w: %d (%s)", ErrPortInUse, want, other)
		}
		return want, nil
	}
	for p := m.portStart; p <= m.portEnd; p++ {
		if _, ok := used[p]; !ok {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w %d-%d", ErrNoFreePort, m.portStart, m.portEnd)
}

// List returns every record ordered by port.
func (m *Manager) List(ctx context.Context) ([]*Record, error) {
	all, err := m.records.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Port != all[j].Port {
			return all[i].Port < all[j].Port
		}
		return all[i].ID < all[j].ID
	})
	return all, nil
}

// Get returns the record with the given ID.
func (m *Manager) Get(ctx context.Context, envID string) (*Record, error) {
	rec, err := m.records.Get(ctx, envID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Delete stops the environment if needed and removes it.
func (m *Manager) Delete(ctx context.Context, envID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.Get(ctx, envID)
	if err != nil {
		return err
	}
	if err := m.stopLocked(ctx, rec); err != nil {
		m.log.Warn("stop before delete failed", "id", envID, "error", err)
	}
	if err := m.records.Delete(ctx, envID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	delete(m.lastLogs, envID)
	m.log.Info("environment deleted", "id", envID)
	m.pub.Publish(events.TypeEnvironmentDeleted, map[string]string{"id": envID})
	return nil
}

// Start runs the environment. It returns ErrAlreadyRunning when it is
// already served.
func (m *Manager) Start(ctx context.Context, envID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.Get(ctx, envID)
	if err != nil {
		return nil, err
	}
	if _, ok := m.instances[envID]; ok {
		return rec, ErrAlreadyRunning
	}
	err = m.startLocked(ctx, rec)
	return rec, err
}

func (m *Manager) startLocked(ctx context.Context, rec *Record) error {
	rec.Status = StatusStarting
	rec.Error = ""
	m.save(ctx, rec)

	env := rec.Environment
	if env == nil {
		env = &Environment{Name: rec.Name}
		env.normalize()
	}
	inst, err := m.runner.Start(ctx, rec.ID, env, rec.Port)
	if err != nil {
		rec.Status = StatusError
		rec.Error = err.Error()
		m.save(ctx, rec)
		m.log.Error("environment failed to start", "id", rec.ID, "port", rec.Port, "error", err)
		return fmt.Errorf("start environment: %w", err)
	}

	m.instances[rec.ID] = inst
	now := m.now()
	rec.Status = StatusRunning
	rec.StartedAt = &now
	m.save(ctx, rec)
	m.refreshGauge()
	m.log.Info("environment started", "id", rec.ID, "port", rec.Port, "runner", m.runner.Name())
	go m.watch(rec.ID, inst)
	return nil
}

// watch marks the record as errored when the instance exits on its own.
func (m *Manager) watch(envID string, inst Instance) {
	<-inst.Done()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.instances[envID] != inst {
		return
	}
	delete(m.instances, envID)
	m.lastLogs[envID] = inst.Logs()
	m.refreshGauge()

	ctx := context.Background()
	rec, err := m.Get(ctx, envID)
	if err != nil {
		return
	}
	now := m.now()
	rec.Status = StatusError
	rec.StoppedAt = &now
	if cause := inst.Err(); cause != nil {
		rec.Error = cause.Error()
	}
	m.save(ctx, rec)
	m.log.Warn("environment exited", "id", envID, "error", rec.Error)
}

// Stop stops the environment. Stopping a stopped environment is a no-op.
func (m *Manager) Stop(ctx context.Context, envID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.Get(ctx, envID)
	if err != nil {
		return nil, err
	}
	return rec, m.stopLocked(ctx, rec)
}

func (m *Manager) stopLocked(ctx context.Context, rec *Record) error {
	inst, ok := m.instances[rec.ID]
	if !ok {
		if rec.Status != StatusStopped {
			rec.Status = StatusStopped
			rec.Error = ""
			m.save(ctx, rec)
		}
		return nil
	}
	delete(m.instances, rec.ID)
	err := inst.Stop(ctx)
	m.lastLogs[rec.ID] = inst.Logs()
	m.refreshGauge()

	now := m.now()
	rec.Status = StatusStopped
	rec.Error = ""
	rec.StoppedAt = &now
	m.save(ctx, rec)
	m.log.Info("environment stopped", "id", rec.ID)
	if err != nil {
		return fmt.Errorf("stop environment: %w", err)
	}
	return nil
}

// Restart stops then starts the environment.
func (m *Manager) Restart(ctx context.Context, envID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.Get(ctx, envID)
	if err != nil {
		return nil, err
	}
	if err := m.stopLocked(ctx, rec); err != nil {
		return rec, err
	}
	return rec, m.startLocked(ctx, rec)
}

// UpdateEnvironment replaces the environment body, keeping the record port.
// A running environment is restarted to serve the new routes.
func (m *Manager) UpdateEnvironment(ctx context.Context, envID string, env *Environment) (*Record, error) {
	if env == nil {
		return nil, errors.New("environment is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.Get(ctx, envID)
	if err != nil {
		return nil, err
	}
	env = env.Clone()
	env.Port = rec.Port
	env.normalize()
	rec.Environment = env
	rec.Routes = len(env.Routes)
	rec.UpdatedAt = m.now()

	if _, running := m.instances[envID]; running {
		if err := m.stopLocked(ctx, rec); err != nil {
			return rec, err
		}
		if err := m.startLocked(ctx, rec); err != nil {
			return rec, err
		}
	} else if err := m.records.Put(ctx, rec.ID, rec); err != nil {
		return nil, fmt.Errorf("store environment: %w", err)
	}
	m.pub.Publish(events.TypeEnvironmentUpdated, rec.Summary())
	return rec, nil
}

// Logs returns up to limit recent log lines of the environment, from the
// running instance or the last one that exited. limit <= 0 returns all.
func (m *Manager) Logs(ctx context.Context, envID string, limit int) ([]string, error) {
	if _, err := m.Get(ctx, envID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	var lines []string
	if inst, ok := m.instances[envID]; ok {
		lines = inst.Logs()
	} else {
		lines = m.lastLogs[envID]
	}
	m.mu.Unlock()

	if lines == nil {
		lines = []string{}
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines, nil
}

// Export returns the environment as Mockoon JSON.
func (m *Manager) Export(ctx context.Context, envID string) ([]byte, error) {
	rec, err := m.Get(ctx, envID)
	if err != nil {
		return nil, err
	}
	env := &Environment{Name: rec.Name}
	if rec.Environment != nil {
		env = rec.Environment.Clone()
	}
	env.Port = rec.Port
	env.normalize()
	return json.MarshalIndent(env, "", "  ")
}

// StopAll stops every running environment.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for envID := range m.instances {
		rec, err := m.Get(ctx, envID)
		if err != nil {
			inst := m.instances[envID]
			delete(m.instances, envID)
			errs = append(errs, inst.Stop(ctx))
			continue
		}
		errs = append(errs, m.stopLocked(ctx, rec))
	}
	m.refreshGauge()
	return errors.Join(errs...)
}

// Reconcile marks records left running by a previous process as stopped.
// It returns the number of records changed.
func (m *Manager) Reconcile(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.records.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, rec := range all {
		if _, ok := m.instances[rec.ID]; ok || !rec.Running() {
			continue
		}
		rec.Status = StatusStopped
		m.save(ctx, rec)
		n++
	}
	return n, nil
}

// Status summarizes environment states.
func (m *Manager) Status(ctx context.Context) (*StatusSummary, error) {
	all, err := m.records.List(ctx)
	if err != nil {
		return nil, err
	}
	s := &StatusSummary{
		Runner:    m.runner.Name(),
		Total:     len(all),
		PortStart: m.portStart,
		PortEnd:   m.portEnd,
	}
	for _, rec := range all {
		switch rec.Status {
		case StatusRunning, StatusStarting:
			s.Running++
		case StatusError:
			s.Errored++
		default:
			s.Stopped++
		}
	}
	return s, nil
}

// save persists rec and publishes its status. Store failures are logged;
// the in-memory lifecycle has already happened.
func (m *Manager) save(ctx context.Context, rec *Record) {
	rec.UpdatedAt = m.now()
	if err := m.records.Put(ctx, rec.ID, rec); err != nil {
		m.log.Error("persist environment status", "id", rec.ID, "error", err)
	}
	m.pub.Publish(events.TypeEnvironmentStatus, map[string]any{
		"id":     rec.ID,
		"status": rec.Status,
		"port":   rec.Port,
		"error":  rec.Error,
	})
}

func (m *Manager) refreshGauge() {
	m.metrics.SetEnvironmentsRunning(len(m.instances))
}
