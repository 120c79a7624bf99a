package blockcache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tilecache/testutil"
)

func TestBlock_RefCounting(t *testing.T) {
	acct := NewAccountant()
	bc := newBand(t, acct, testutil.NewStubBand(), gridGeom(4, 4))

	b, err := bc.CreateBlock(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, b.RefCount())
	assert.Equal(t, 1, b.X())
	assert.Equal(t, 2, b.Y())
	assert.Equal(t, int64(blockBytes), b.Size())
	assert.Len(t, b.Data(), blockBytes)

	b.Acquire()
	assert.Equal(t, 2, b.RefCount())
	b.Release()
	assert.False(t, b.freed.Load())

	// uncached block is destroyed with its last reference
	b.Release()
	assert.True(t, b.freed.Load())
	assert.Nil(t, b.Data())

	assert.Panics(t, func() { b.Release() })
}

func TestBlock_DirtyOnlyWhileCached(t *testing.T) {
	acct := NewAccountant()
	bc := newBand(t, acct, testutil.NewStubBand(), gridGeom(4, 4))

	b, err := bc.CreateBlock(0, 0)
	require.NoError(t, err)
	b.MarkDirty()
	assert.False(t, b.IsDirty(), "uncached block cannot become dirty")
	assert.False(t, bc.HasDirtyBlocks())

	require.NoError(t, bc.AdoptBlock(b))
	b.MarkDirty()
	b.MarkDirty()
	assert.True(t, b.IsDirty())
	assert.True(t, bc.HasDirtyBlocks())
	assert.Equal(t, 1, bc.DirtyBlockCount())
	assert.Equal(t, int64(blockBytes), acct.DirtyBytes())

	b.ClearDirty()
	b.ClearDirty()
	assert.False(t, bc.HasDirtyBlocks())
	assert.Equal(t, int64(0), acct.DirtyBytes())
	b.Release()
}

func TestBlock_Ready(t *testing.T) {
	acct := NewAccountant()
	bc := newBand(t, acct, testutil.NewStubBand(), gridGeom(4, 4))

	b, err := bc.CreateBlock(0, 0)
	require.NoError(t, err)

	select {
	case <-b.Ready():
		t.Fatal("fresh block must not be ready")
	default:
	}
	assert.NoError(t, b.Err())

	loadErr := errors.New("boom")
	b.markReady(loadErr)
	b.markReady(nil)
	assert.ErrorIs(t, b.Wait(), loadErr)
	assert.ErrorIs(t, b.Err(), loadErr)
	b.Release()
}

func TestBlock_PixelLock(t *testing.T) {
	acct := NewAccountant()
	bc := newBand(t, acct, testutil.NewStubBand(), gridGeom(4, 4))
	b := put(t, bc, 0, 0)
	defer b.Release()

	b.Lock()
	assert.False(t, b.TryLock())
	b.Unlock()
	assert.True(t, b.TryLock())
	b.Unlock()
}
