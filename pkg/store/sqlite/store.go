// Package sqlite provides a KV backend on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/getmockd/sandbox/pkg/store"
)

// DatabaseFileName is the database file inside the data directory.
const DatabaseFileName = "sandboxd.db"

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	collection TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (collection, key)
);
`

func init() {
	store.RegisterBackend(store.BackendSQLite, func(ctx context.Context, cfg store.Config) (store.KV, error) {
		return Open(ctx, cfg)
	})
}

// Store implements store.KV on SQLite.
type Store struct {
	db       *sql.DB
	path     string
	readOnly bool
}

// Open creates or opens the database in cfg.DataDir. A DataDir of ":memory:"
// opens a private in-memory database.
func Open(ctx context.Context, cfg store.Config) (*Store, error) {
	path := cfg.DataDir
	if path != ":memory:" {
		if path == "" {
			path = store.DefaultDataDir()
		}
		if err := os.MkdirAll(path, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		path = filepath.Join(path, DatabaseFileName)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, readOnly: cfg.ReadOnly}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) Put(ctx context.Context, collection, key string, value []byte) error {
	if err := store.ValidateKey(collection, key); err != nil {
		return err
	}
	if s.readOnly {
		return store.ErrReadOnly
	}
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (collection, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		collection, key, value, time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE collection = ? AND key = ?`, collection, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return value, nil
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	if s.readOnly {
		return store.ErrReadOnly
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE collection = ? AND key = ?`, collection, key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, updated_at FROM kv WHERE collection = ? ORDER BY key`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		var (
			rec     store.Record
			updated int64
		)
		if err := rows.Scan(&rec.Key, &rec.Value, &updated); err != nil {
			return nil, err
		}
		rec.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
