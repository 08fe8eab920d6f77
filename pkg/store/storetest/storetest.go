// Package storetest holds a conformance suite shared by every KV backend.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/sandbox/pkg/store"
)

// Factory creates a fresh, empty KV.
type Factory func(t *testing.T, readOnly bool) store.KV

// Run exercises the KV contract against the backend built by newKV.
func Run(t *testing.T, newKV Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGet", func(t *testing.T) {
		kv := newKV(t, false)
		defer kv.Close()

		require.NoError(t, kv.Put(ctx, "specs", "one", []byte(`{"a":1}`)))
		got, err := kv.Get(ctx, "specs", "one")
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(got))
	})

	t.Run("Overwrite", func(t *testing.T) {
		kv := newKV(t, false)
		defer kv.Close()

		require.NoError(t, kv.Put(ctx, "specs", "one", []byte(`1`)))
		require.NoError(t, kv.Put(ctx, "specs", "one", []byte(`2`)))
		got, err := kv.Get(ctx, "specs", "one")
		require.NoError(t, err)
		assert.Equal(t, "2", string(got))
	})

	t.Run("NonJSONValue", func(t *testing.T) {
		kv := newKV(t, false)
		defer kv.Close()

		require.NoError(t, kv.Put(ctx, "raw", "k", []byte("plain text")))
		got, err := kv.Get(ctx, "raw", "k")
		require.NoError(t, err)
		assert.Equal(t, "plain text", string(got))
	})

	t.Run("MissingKey", func(t *testing.T) {
		kv := newKV(t, false)
		defer kv.Close()

		_, err := kv.Get(ctx, "specs", "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, kv.Delete(ctx, "specs", "missing"), store.ErrNotFound)
	})

	t.Run("InvalidKey", func(t *testing.T) {
		kv := newKV(t, false)
		defer kv.Close()

		assert.ErrorIs(t, kv.Put(ctx, "", "k", nil), store.ErrInvalidKey)
		assert.ErrorIs(t, kv.Put(ctx, "c", "", nil), store.ErrInvalidKey)
	})

	t.Run("ListSortedAndScoped", func(t *testing.T) {
		kv := newKV(t, false)
		defer kv.Close()

		require.NoError(t, kv.Put(ctx, "envs", "b", []byte(`"b"`)))
		require.NoError(t, kv.Put(ctx, "envs", "a", []byte(`"a"`)))
		require.NoError(t, kv.Put(ctx, "specs", "c", []byte(`"c"`)))

		recs, err := kv.List(ctx, "envs")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "a", recs[0].Key)
		assert.Equal(t, "b", recs[1].Key)
		assert.False(t, recs[0].UpdatedAt.IsZero())

		recs, err = kv.List(ctx, "empty")
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("Delete", func(t *testing.T) {
		kv := newKV(t, false)
		defer kv.Close()

		require.NoError(t, kv.Put(ctx, "envs", "a", []byte(`1`)))
		require.NoError(t, kv.Delete(ctx, "envs", "a"))
		_, err := kv.Get(ctx, "envs", "a")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ReadOnly", func(t *testing.T) {
		kv := newKV(t, true)
		defer kv.Close()

		assert.ErrorIs(t, kv.Put(ctx, "specs", "one", []byte(`1`)), store.ErrReadOnly)
		assert.ErrorIs(t, kv.Delete(ctx, "specs", "one"), store.ErrReadOnly)
	})
}
