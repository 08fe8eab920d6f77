package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection is a typed view over one KV collection. Values are stored as
// JSON.
type Collection[T any] struct {
	kv   KV
	name string
}

// NewCollection returns a typed collection named name.
func NewCollection[T any](kv KV, name string) *Collection[T] {
	return &Collection[T]{kv: kv, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Put stores v under key.
func (c *Collection[T]) Put(ctx context.Context, key string, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, key, err)
	}
	return c.kv.Put(ctx, c.name, key, data)
}

// Get loads the value stored under key.
func (c *Collection[T]) Get(ctx context.Context, key string) (*T, error) {
	data, err := c.kv.Get(ctx, c.name, key)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", c.name, key, err)
	}
	return &v, nil
}

// Delete removes key.
func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	return c.kv.Delete(ctx, c.name, key)
}

// List decodes every value in the collection, ordered by key.
func (c *Collection[T]) List(ctx context.Context) ([]*T, error) {
	recs, err := c.kv.List(ctx, c.name)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", c.name, rec.Key, err)
		}
		out = append(out, &v)
	}
	return out, nil
}

// Clear deletes every value in the collection.
func (c *Collection[T]) Clear(ctx context.Context) error {
	recs, err := c.kv.List(ctx, c.name)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := c.kv.Delete(ctx, c.name, rec.Key); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}
