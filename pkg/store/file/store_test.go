package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/sandbox/pkg/store"
	"github.com/getmockd/sandbox/pkg/store/storetest"
)

func newTestStore(t *testing.T, dir string, readOnly bool) *FileStore {
	t.Helper()
	fs := New(store.Config{Backend: store.BackendFile, DataDir: dir, ReadOnly: readOnly}, WithDebounce(10*time.Millisecond))
	require.NoError(t, fs.Open(context.Background()))
	return fs
}

func TestFileStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T, readOnly bool) store.KV {
		return newTestStore(t, t.TempDir(), readOnly)
	})
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fs := newTestStore(t, dir, false)
	require.NoError(t, fs.Put(ctx, "specs", "s1", []byte(`{"name":"petstore"}`)))
	require.NoError(t, fs.Put(ctx, "blobs", "b1", []byte{0xff, 0x00}))
	require.NoError(t, fs.Close())

	raw, err := os.ReadFile(filepath.Join(dir, DataFileName))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.EqualValues(t, dataVersion, doc["version"])

	reopened := newTestStore(t, dir, false)
	defer reopened.Close()
	got, err := reopened.Get(ctx, "specs", "s1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"petstore"}`, string(got))

	got, err = reopened.Get(ctx, "blobs", "b1")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0x00}, got)
}

func TestFileStoreDebouncedSave(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs := newTestStore(t, dir, false)
	defer fs.Close()

	require.NoError(t, fs.Put(ctx, "envs", "e1", []byte(`1`)))
	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, DataFileName))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.NoFileExists(t, filepath.Join(dir, DataFileName+".tmp"))
}

func TestFileStoreCloseKeepsWritesAfterDebouncedSave(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fs := newTestStore(t, dir, false)
	require.NoError(t, fs.Put(ctx, "envs", "e1", []byte(`{"n":1}`)))
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, DataFileName))
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, fs.Put(ctx, "envs", "e2", []byte(`{"n":2}`)))
	require.NoError(t, fs.Close())

	reopened := newTestStore(t, dir, false)
	defer reopened.Close()
	recs, err := reopened.List(ctx, "envs")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "e1", recs[0].Key)
	assert.Equal(t, "e2", recs[1].Key)
}

func TestFileStoreConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fs := New(store.Config{DataDir: dir}, WithDebounce(time.Millisecond))
	require.NoError(t, fs.Open(ctx))

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, fs.Put(ctx, "calls", fmt.Sprintf("k%02d", i), []byte(`{}`)))
			assert.NoError(t, fs.ForceSave())
		}()
	}
	wg.Wait()
	require.NoError(t, fs.Close())

	reopened := newTestStore(t, dir, false)
	defer reopened.Close()
	recs, err := reopened.List(ctx, "calls")
	require.NoError(t, err)
	assert.Len(t, recs, 50)
	assert.NoFileExists(t, filepath.Join(dir, DataFileName+".tmp"))
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DataFileName), []byte("{oops"), 0600))

	fs := New(store.Config{DataDir: dir})
	defer fs.Close()
	assert.Error(t, fs.Open(context.Background()))
}

func TestFileStoreClosed(t *testing.T) {
	fs := newTestStore(t, t.TempDir(), false)
	require.NoError(t, fs.Close())
	require.NoError(t, fs.Close())

	assert.ErrorIs(t, fs.Put(context.Background(), "c", "k", nil), store.ErrClosed)
	_, err := fs.Get(context.Background(), "c", "k")
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestOpenRegistersFileBackend(t *testing.T) {
	kv, err := store.Open(context.Background(), store.Config{Backend: store.BackendFile, DataDir: t.TempDir()})
	require.NoError(t, err)
	defer kv.Close()
	assert.IsType(t, &FileStore{}, kv)
}
