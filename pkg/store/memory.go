package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory KV. It is the default for tests.
type Memory struct {
	mu       sync.RWMutex
	data     map[string]map[string]Record
	readOnly bool
	closed   bool
}

// NewMemory creates an empty in-memory store.
func NewMemory(readOnly bool) *Memory {
	return &Memory{
		data:     make(map[string]map[string]Record),
		readOnly: readOnly,
	}
}

func (m *Memory) Put(ctx context.Context, collection, key string, value []byte) error {
	if err := ValidateKey(collection, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.readOnly {
		return ErrReadOnly
	}
	c, ok := m.data[collection]
	if !ok {
		c = make(map[string]Record)
		m.data[collection] = c
	}
	c[key] = Record{Key: key, Value: clone(value), UpdatedAt: time.Now().UTC()}
	return nil
}

func (m *Memory) Get(ctx context.Context, collection, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	rec, ok := m.data[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(rec.Value), nil
}

func (m *Memory) Delete(ctx context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.readOnly {
		return ErrReadOnly
	}
	if _, ok := m.data[collection][key]; !ok {
		return ErrNotFound
	}
	delete(m.data[collection], key)
	return nil
}

func (m *Memory) List(ctx context.Context, collection string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]Record, 0, len(m.data[collection]))
	for _, rec := range m.data[collection] {
		rec.Value = clone(rec.Value)
		out = append(out, rec)
	}
	SortRecords(out)
	return out, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// SortRecords orders records by key.
func SortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Key < recs[j].Key })
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
