package tilestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tilecache/internal/fs"
)

// testStore runs the Store contract against s.
func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	k := Key{Band: "b", X: 1, Y: 2}

	_, err := s.Get(ctx, k)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, k, []byte("one")))
	got, err := s.Get(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)

	require.NoError(t, s.Put(ctx, k, []byte("two")))
	got, err = s.Get(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	other := Key{Band: "b", X: 2, Y: 1}
	_, err = s.Get(ctx, other)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, k))
	require.NoError(t, s.Delete(ctx, k))
	_, err = s.Get(ctx, k)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	testStore(t, s)
	assert.Equal(t, 0, s.Len())

	// stored bytes are copied
	data := []byte{1, 2}
	require.NoError(t, s.Put(context.Background(), Key{Band: "x"}, data))
	data[0] = 9
	got, err := s.Get(context.Background(), Key{Band: "x"})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, got)
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	testStore(t, NewFileStore(dir, nil))

	s := NewFileStore(dir, nil)
	require.NoError(t, s.Put(context.Background(), Key{Band: "dem", X: 3, Y: 4}, []byte("x")))
	_, err := os.Stat(filepath.Join(dir, "dem", "4", "3.tile"))
	assert.NoError(t, err)
}

func TestFileStore_SyncFailureKeepsOldTile(t *testing.T) {
	dir := t.TempDir()
	ffs := fs.NewFaultyFS(nil)
	s := NewFileStore(dir, ffs)
	ctx := context.Background()
	k := Key{Band: "dem", X: 0, Y: 0}

	require.NoError(t, s.Put(ctx, k, []byte("old")))

	ffs.AddRule(filepath.Join(dir, "dem"), fs.Fault{FailAfterBytes: -1, FailOnSync: true})
	err := s.Put(ctx, k, []byte("new"))
	assert.ErrorIs(t, err, fs.ErrInjected)

	ffs.ClearRules()
	got, err := s.Get(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), got)

	entries, err := os.ReadDir(filepath.Join(dir, "dem", "0"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file removed")
}

func TestFileStore_RenameFailure(t *testing.T) {
	dir := t.TempDir()
	ffs := fs.NewFaultyFS(nil)
	s := NewFileStore(dir, ffs)
	k := Key{Band: "dem", X: 5, Y: 5}

	ffs.AddRule("5.tile", fs.Fault{FailAfterBytes: -1, FailOnRename: true})
	assert.ErrorIs(t, s.Put(context.Background(), k, []byte("x")), fs.ErrInjected)

	ffs.ClearRules()
	_, err := s.Get(context.Background(), k)
	assert.ErrorIs(t, err, ErrNotFound)
}
