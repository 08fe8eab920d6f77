package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/sandbox/pkg/store"
	"github.com/getmockd/sandbox/pkg/store/storetest"
)

func TestMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T, readOnly bool) store.KV {
		return store.NewMemory(readOnly)
	})
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := store.Open(context.Background(), store.Config{Backend: "redis"})
	assert.True(t, errors.Is(err, store.ErrUnknownBackend))
}

func TestOpenMemory(t *testing.T) {
	kv, err := store.Open(context.Background(), store.Config{Backend: store.BackendMemory})
	require.NoError(t, err)
	defer kv.Close()
	assert.IsType(t, &store.Memory{}, kv)
}

type widget struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCollection(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory(false)
	c := store.NewCollection[widget](kv, "widgets")

	require.NoError(t, c.Put(ctx, "b", &widget{Name: "bolt", Count: 2}))
	require.NoError(t, c.Put(ctx, "a", &widget{Name: "axle", Count: 1}))

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "axle", got.Name)

	all, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "axle", all[0].Name)
	assert.Equal(t, "bolt", all[1].Name)

	require.NoError(t, c.Clear(ctx))
	all, err = c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCollectionDecodeError(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory(false)
	require.NoError(t, kv.Put(ctx, "widgets", "bad", []byte("not json")))

	_, err := store.NewCollection[widget](kv, "widgets").Get(ctx, "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "widgets/bad")
}
