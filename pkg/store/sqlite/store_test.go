package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/sandbox/pkg/store"
	"github.com/getmockd/sandbox/pkg/store/storetest"
)

func TestSQLiteContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T, readOnly bool) store.KV {
		s, err := Open(context.Background(), store.Config{DataDir: t.TempDir(), ReadOnly: readOnly})
		require.NoError(t, err)
		return s
	})
}

func TestSQLitePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, store.Config{DataDir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DatabaseFileName), s.Path())
	require.NoError(t, s.Put(ctx, "settings", "ai", []byte(`{"provider":"openai"}`)))
	require.NoError(t, s.Close())

	s, err = Open(ctx, store.Config{DataDir: dir})
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, "settings", "ai")
	require.NoError(t, err)
	assert.JSONEq(t, `{"provider":"openai"}`, string(got))
}

func TestSQLiteInMemory(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, store.Config{DataDir: ":memory:"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ctx, "c", "k", []byte("v")))
	recs, err := s.List(ctx, "c")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "v", string(recs[0].Value))
}

func TestOpenRegistersSQLiteBackend(t *testing.T) {
	kv, err := store.Open(context.Background(), store.Config{Backend: store.BackendSQLite, DataDir: t.TempDir()})
	require.NoError(t, err)
	defer kv.Close()
	assert.IsType(t, &Store{}, kv)
}
