// Package file provides a file-based KV backend.
// All collections are stored in one JSON document, data.json, in the data
// directory. Writes are debounced and saved atomically.
package file

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getmockd/sandbox/pkg/logging"
	"github.com/getmockd/sandbox/pkg/store"
)

// Current data format version for migration support
const dataVersion = 1

// DataFileName is the name of the document inside the data directory.
const DataFileName = "data.json"

func init() {
	store.RegisterBackend(store.BackendFile, func(ctx context.Context, cfg store.Config) (store.KV, error) {
		fs := New(cfg)
		if err := fs.Open(ctx); err != nil {
			_ = fs.Close()
			return nil, err
		}
		return fs, nil
	})
}

// FileStore implements store.KV using a JSON file.
type FileStore struct {
	cfg          store.Config
	mu           sync.RWMutex
	data         *storeData
	dirty        atomic.Bool
	saveMu       sync.Mutex // serializes writes of data.json
	closed       atomic.Bool
	saveDebounce time.Duration
	saveCh       chan struct{}
	closeCh      chan struct{}
	closeOnce    sync.Once
	closedCh     chan struct{} // signals when saveLoop has exited
	log          *slog.Logger
}

// storeData holds all persisted data.
type storeData struct {
	Version     int                          `json:"version"`
	Collections map[string]map[string]*entry `json:"collections"`
}

// entry is one stored value. JSON values are kept inline so data.json stays
// readable; anything else is base64 encoded in Raw.
type entry struct {
	JSON      json.RawMessage `json:"json,omitempty"`
	Raw       []byte          `json:"raw,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (e *entry) value() []byte {
	if e.JSON != nil {
		return append([]byte(nil), e.JSON...)
	}
	return append([]byte(nil), e.Raw...)
}

func newEntry(value []byte) *entry {
	e := &entry{UpdatedAt: time.Now().UTC()}
	if len(value) > 0 && json.Valid(value) {
		e.JSON = append(json.RawMessage(nil), value...)
	} else {
		e.Raw = append([]byte(nil), value...)
	}
	return e
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithDebounce sets the delay between a write and the save to disk.
func WithDebounce(d time.Duration) Option {
	return func(s *FileStore) { s.saveDebounce = d }
}

// WithLogger sets the logger used for background save failures.
func WithLogger(log *slog.Logger) Option {
	return func(s *FileStore) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a new FileStore with the given configuration.
func New(cfg store.Config, opts ...Option) *FileStore {
	if cfg.DataDir == "" {
		cfg.DataDir = store.DefaultDataDir()
	}
	fs := &FileStore{
		cfg:          cfg,
		data:         newStoreData(),
		saveDebounce: 500 * time.Millisecond,
		saveCh:       make(chan struct{}, 1),
		closeCh:      make(chan struct{}),
		closedCh:     make(chan struct{}),
		log:          logging.Nop(),
	}
	for _, opt := range opts {
		opt(fs)
	}
	// Start debounced save goroutine
	go fs.saveLoop()
	return fs
}

func newStoreData() *storeData {
	return &storeData{Version: dataVersion, Collections: make(map[string]map[string]*entry)}
}

// saveLoop debounces saves. Debounced saves run on this goroutine, so once
// it exits no save is in flight.
func (s *FileStore) saveLoop() {
	defer close(s.closedCh)
	timer := time.NewTimer(s.saveDebounce)
	timer.Stop()
	for {
		select {
		case <-s.saveCh:
			timer.Reset(s.saveDebounce)
		case <-timer.C:
			if s.dirty.Load() {
				if err := s.doSave(); err != nil {
					s.log.Error("failed to save store data", "error", err)
				}
			}
		case <-s.closeCh:
			timer.Stop()
			if s.dirty.Load() {
				if err := s.doSave(); err != nil {
					s.log.Error("failed to save store data on close", "error", err)
				}
			}
			return
		}
	}
}

// Open creates the data directory and loads data from disk.
func (s *FileStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.cfg.DataDir, 0700); err != nil {
		return err
	}

	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			s.data = newStoreData()
			return nil
		}
		return err
	}

	stored := newStoreData()
	if err := json.Unmarshal(data, stored); err != nil {
		return err
	}
	if stored.Collections == nil {
		stored.Collections = make(map[string]map[string]*entry)
	}
	s.data = stored
	s.dirty.Store(false)
	return nil
}

// Close saves any pending changes and closes the store. Safe to call multiple times.
func (s *FileStore) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
	})
	<-s.closedCh
	return nil
}

func (s *FileStore) path() string {
	return filepath.Join(s.cfg.DataDir, DataFileName)
}

// Put stores value under collection/key.
func (s *FileStore) Put(ctx context.Context, collection, key string, value []byte) error {
	if err := store.ValidateKey(collection, key); err != nil {
		return err
	}
	if err := s.writable(); err != nil {
		return err
	}
	s.mu.Lock()
	c, ok := s.data.Collections[collection]
	if !ok {
		c = make(map[string]*entry)
		s.data.Collections[collection] = c
	}
	c[key] = newEntry(value)
	s.mu.Unlock()

	s.markDirty()
	return nil
}

// Get returns the value stored under collection/key.
func (s *FileStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data.Collections[collection][key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return e.value(), nil
}

// Delete removes collection/key.
func (s *FileStore) Delete(ctx context.Context, collection, key string) error {
	if err := s.writable(); err != nil {
		return err
	}
	s.mu.Lock()
	if _, ok := s.data.Collections[collection][key]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.data.Collections[collection], key)
	if len(s.data.Collections[collection]) == 0 {
		delete(s.data.Collections, collection)
	}
	s.mu.Unlock()

	s.markDirty()
	return nil
}

// List returns every record in collection sorted by key.
func (s *FileStore) List(ctx context.Context, collection string) ([]store.Record, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	s.mu.RLock()
	out := make([]store.Record, 0, len(s.data.Collections[collection]))
	for k, e := range s.data.Collections[collection] {
		out = append(out, store.Record{Key: k, Value: e.value(), UpdatedAt: e.UpdatedAt})
	}
	s.mu.RUnlock()
	store.SortRecords(out)
	return out, nil
}

func (s *FileStore) writable() error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	if s.cfg.ReadOnly {
		return store.ErrReadOnly
	}
	return nil
}

// doSave writes a snapshot of the data to a temp file and renames it over
// data.json. Concurrent calls run one after another, each with the data
// current when it starts.
func (s *FileStore) doSave() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if s.cfg.ReadOnly {
		return store.ErrReadOnly
	}

	s.mu.RLock()
	s.data.Version = dataVersion
	data, err := json.MarshalIndent(s.data, "", "  ")
	s.dirty.Store(false)
	s.mu.RUnlock()
	if err != nil {
		s.dirty.Store(true)
		return err
	}

	// Atomic write: write to temp file, then rename
	dataFile := s.path()
	tmpFile := dataFile + ".tmp"

	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		s.dirty.Store(true)
		return err
	}
	if err := os.Rename(tmpFile, dataFile); err != nil {
		_ = os.Remove(tmpFile)
		s.dirty.Store(true)
		return err
	}
	return nil
}

// markDirty marks data as needing to be saved (thread-safe).
func (s *FileStore) markDirty() {
	s.dirty.Store(true)
	select {
	case s.saveCh <- struct{}{}:
	default:
		// Channel full, save already pending
	}
}

// ForceSave immediately saves data to disk.
func (s *FileStore) ForceSave() error {
	s.dirty.Store(true)
	return s.doSave()
}

// DataDir returns the data directory path.
func (s *FileStore) DataDir() string {
	return s.cfg.DataDir
}
