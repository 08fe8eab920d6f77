// Package store provides the key-value persistence layer for sandboxd.
//
// Data lives in named collections of keyed records. Three backends are
// available:
//   - file:   a single JSON document in the data directory
//   - sqlite: an embedded SQLite database
//   - memory: no persistence (tests, ephemeral servers)
//
// The data directory follows the XDG Base Directory Specification
// (~/.local/share/sandboxd on Linux).
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Common errors
var (
	ErrNotFound       = errors.New("not found")
	ErrReadOnly       = errors.New("store is read-only")
	ErrInvalidKey     = errors.New("invalid key")
	ErrClosed         = errors.New("store is closed")
	ErrUnknownBackend = errors.New("unknown store backend")
)

// Backend represents a storage backend type.
type Backend string

const (
	// BackendFile uses a JSON file for storage
	BackendFile Backend = "file"
	// BackendSQLite uses embedded SQLite database
	BackendSQLite Backend = "sqlite"
	// BackendMemory uses in-memory storage (no persistence)
	BackendMemory Backend = "memory"
)

const appName = "sandboxd"

// Config holds store configuration.
type Config struct {
	// Backend specifies the storage backend to use
	Backend Backend `json:"backend" yaml:"backend"`

	// DataDir is the base directory for data storage.
	// Defaults to XDG_DATA_HOME/sandboxd or ~/.local/share/sandboxd
	DataDir string `json:"dataDir,omitempty" yaml:"dataDir,omitempty"`

	// ReadOnly prevents any write operations
	ReadOnly bool `json:"readOnly,omitempty" yaml:"readOnly,omitempty"`
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		Backend: BackendFile,
		DataDir: DefaultDataDir(),
	}
}

// DefaultDataDir returns the default data directory following XDG spec.
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+appName, "data")
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName)
	case "windows":
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			return filepath.Join(appData, appName)
		}
		return filepath.Join(home, "AppData", "Local", appName)
	}
	return filepath.Join(home, ".local", "share", appName)
}

// Record is a stored value with its key.
type Record struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// KV is the persistence collaborator used by every service.
//
// Implementations must be safe for concurrent use. Get and Delete return
// ErrNotFound for missing keys; writes on a read-only store return
// ErrReadOnly. List returns records sorted by key.
type KV interface {
	Put(ctx context.Context, collection, key string, value []byte) error
	Get(ctx context.Context, collection, key string) ([]byte, error)
	Delete(ctx context.Context, collection, key string) error
	List(ctx context.Context, collection string) ([]Record, error)
	Close() error
}

// Opener creates a KV for a backend.
type Opener func(ctx context.Context, cfg Config) (KV, error)

var (
	openersMu sync.RWMutex
	openers   = map[Backend]Opener{
		BackendMemory: func(_ context.Context, cfg Config) (KV, error) {
			return NewMemory(cfg.ReadOnly), nil
		},
	}
)

// RegisterBackend makes a backend available to Open. Backend packages call it
// from init.
func RegisterBackend(b Backend, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[b] = open
}

// Backends returns the registered backend names, sorted.
func Backends() []Backend {
	openersMu.RLock()
	defer openersMu.RUnlock()
	out := make([]Backend, 0, len(openers))
	for b := range openers {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Open returns a KV for cfg.Backend. An empty backend selects BackendFile and
// an empty DataDir selects DefaultDataDir.
func Open(ctx context.Context, cfg Config) (KV, error) {
	if cfg.Backend == "" {
		cfg.Backend = BackendFile
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	openersMu.RLock()
	open, ok := openers[cfg.Backend]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	return open(ctx, cfg)
}

// ValidateKey rejects empty collection or key names.
func ValidateKey(collection, key string) error {
	if collection == "" || key == "" {
		return ErrInvalidKey
	}
	return nil
}
