package tilecache_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tilecache"
	"github.com/hupe1980/tilecache/blockcache"
	"github.com/hupe1980/tilecache/testutil"
	"github.com/hupe1980/tilecache/tilestore"
)

// 8x8 one-byte-pixel blocks on a 4x4 grid.
const blockBytes = 64

func geom() tilecache.Geometry {
	return tilecache.Geometry{
		RasterXSize: 32,
		RasterYSize: 32,
		BlockXSize:  8,
		BlockYSize:  8,
		PixelSize:   1,
	}
}

func newCache(t *testing.T, optFns ...tilecache.Option) *tilecache.Cache {
	t.Helper()
	c, err := tilecache.New(optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNew_Defaults(t *testing.T) {
	t.Setenv(tilecache.EnvCacheMax, "")

	c := newCache(t)
	assert.NotEmpty(t, c.ID())
	assert.Positive(t, c.Budget())
	assert.Empty(t, c.Bands())
}

func TestNew_EnvBudget(t *testing.T) {
	t.Setenv(tilecache.EnvCacheMax, "3")

	c := newCache(t)
	assert.Equal(t, int64(3<<20), c.Budget())
}

func TestNew_InvalidBudget(t *testing.T) {
	_, err := tilecache.New(tilecache.WithBudgetString("a lot"))
	var target *tilecache.ErrInvalidBudget
	require.ErrorAs(t, err, &target)

	_, err = tilecache.New(tilecache.WithBudget(1), tilecache.WithHardMemoryLimit(-1))
	require.Error(t, err)
}

func TestCache_OpenBand(t *testing.T) {
	c := newCache(t, tilecache.WithBudget(1<<20))

	red, err := c.OpenBand("red", testutil.NewStubBand(), geom())
	require.NoError(t, err)
	assert.Equal(t, "red", red.Name())
	assert.Equal(t, tilecache.StrategyArray, red.Strategy())

	_, err = c.OpenBand("red", testutil.NewStubBand(), geom())
	require.ErrorIs(t, err, tilecache.ErrDuplicateBand)

	_, err = c.OpenBand("bad", testutil.NewStubBand(), tilecache.Geometry{})
	require.ErrorIs(t, err, tilecache.ErrInvalidGeometry)

	green, err := c.OpenBand("green", testutil.NewStubBand(), geom(), blockcache.WithStrategy(tilecache.StrategyHashSet))
	require.NoError(t, err)
	assert.Equal(t, tilecache.StrategyHashSet, green.Strategy())

	assert.Equal(t, []string{"green", "red"}, c.Bands())

	got, err := c.Band("green")
	require.NoError(t, err)
	assert.Same(t, green, got)

	_, err = c.Band("blue")
	var notFound *tilecache.ErrBandNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "blue", notFound.Name)

	require.NoError(t, green.Close())
	assert.Equal(t, []string{"red"}, c.Bands())
}

func TestCache_StrategyOptions(t *testing.T) {
	c := newCache(t, tilecache.WithBudget(1<<20), tilecache.WithDenseThreshold(4))

	b, err := c.OpenBand("sparse", testutil.NewStubBand(), geom())
	require.NoError(t, err)
	assert.Equal(t, tilecache.StrategyHashSet, b.Strategy(), "16 slots exceed the dense threshold")

	c2 := newCache(t, tilecache.WithBudget(1<<20), tilecache.WithStrategy(tilecache.StrategyHashSet))
	b2, err := c2.OpenBand("forced", testutil.NewStubBand(), geom())
	require.NoError(t, err)
	assert.Equal(t, tilecache.StrategyHashSet, b2.Strategy())
}

func TestCache_SharedBudget(t *testing.T) {
	mc := &tilecache.BasicMetricsCollector{}
	c := newCache(t, tilecache.WithBudget(4*blockBytes), tilecache.WithMetricsCollector(mc))

	stubA, stubB := testutil.NewStubBand(), testutil.NewStubBand()
	a, err := c.OpenBand("a", stubA, geom())
	require.NoError(t, err)
	b, err := c.OpenBand("b", stubB, geom())
	require.NoError(t, err)

	for x := 0; x < 4; x++ {
		blk, err := a.GetLockedBlock(x, 0, true)
		require.NoError(t, err)
		blk.Release()
	}
	assert.Equal(t, 4, a.Len())

	blk, err := b.GetLockedBlock(0, 0, true)
	require.NoError(t, err)
	blk.MarkDirty()
	blk.Release()

	assert.LessOrEqual(t, c.Used(), c.Budget())
	assert.Equal(t, 3, a.Len(), "oldest block of band a evicted")
	assert.Equal(t, 1, b.Len())

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, int64(5), stats.Misses)

	require.NoError(t, c.FlushAll(context.Background()))
	assert.Equal(t, 1, stubB.WriteCount())
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, int64(0), c.Used())
}

func TestCache_SetBudgetEvicts(t *testing.T) {
	c := newCache(t, tilecache.WithBudget(1<<20))
	stub := testutil.NewStubBand()
	band, err := c.OpenBand("a", stub, geom())
	require.NoError(t, err)

	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			blk, err := band.GetLockedBlock(x, y, false)
			require.NoError(t, err)
			blk.MarkDirty()
			blk.Release()
		}
	}
	assert.Equal(t, int64(8*blockBytes), c.Used())

	c.SetBudget(2 * blockBytes)
	assert.Equal(t, int64(2*blockBytes), c.Used())
	assert.Equal(t, 6, stub.WriteCount())
	assert.Equal(t, int64(6), c.Stats().Evictions)
}

func TestCache_FlushAllReportsFailedBlocks(t *testing.T) {
	c := newCache(t, tilecache.WithBudget(1<<20))
	stub := testutil.NewStubBand()
	stub.FailWrite(2, 1, testutil.ErrStub)
	band, err := c.OpenBand("a", stub, geom())
	require.NoError(t, err)

	for _, xy := range [][2]int{{0, 0}, {2, 1}} {
		blk, err := band.GetLockedBlock(xy[0], xy[1], false)
		require.NoError(t, err)
		blk.MarkDirty()
		blk.Release()
	}

	err = c.FlushAll(context.Background())
	require.ErrorIs(t, err, testutil.ErrStub)
	assert.Equal(t, []tilecache.Coord{{X: 2, Y: 1}}, tilecache.FailedBlocks(err))
	assert.True(t, band.HasDirtyBlocks())

	stub.FailWrite(2, 1, nil)
	require.NoError(t, c.FlushAll(context.Background()))
	assert.False(t, band.HasDirtyBlocks())
}

func TestCache_HardMemoryLimit(t *testing.T) {
	c := newCache(t, tilecache.WithBudget(1<<20), tilecache.WithHardMemoryLimit(2*blockBytes))
	band, err := c.OpenBand("a", testutil.NewStubBand(), geom())
	require.NoError(t, err)

	b1, err := band.GetLockedBlock(0, 0, false)
	require.NoError(t, err)
	b2, err := band.GetLockedBlock(1, 0, false)
	require.NoError(t, err)

	_, err = band.GetLockedBlock(2, 0, false)
	require.ErrorIs(t, err, tilecache.ErrAllocation)
	require.ErrorIs(t, err, tilecache.ErrMemoryLimitExceeded)
	assert.Equal(t, int64(2*blockBytes), c.MemoryUsage())
	assert.Equal(t, int64(2*blockBytes), c.Stats().MemoryLimit)

	b1.Release()
	b2.Release()
}

func TestCache_StoreBand(t *testing.T) {
	ctx := context.Background()
	store := tilestore.NewMemoryStore()

	c := newCache(t, tilecache.WithBudget(1<<20))
	band, err := c.OpenStoreBand(ctx, store, "dem", geom(), tilestore.WithCodec(tilestore.CodecLZ4))
	require.NoError(t, err)

	blk, err := band.GetLockedBlock(1, 1, true)
	require.NoError(t, err)
	blk.Lock()
	copy(blk.Data(), testutil.Pattern(1, 1, blockBytes))
	blk.MarkDirty()
	blk.Unlock()
	blk.Release()

	require.NoError(t, band.FlushCache())
	assert.Equal(t, 1, store.Len())

	coords := []tilecache.Coord{{X: 1, Y: 1}, {X: 2, Y: 2}}
	require.NoError(t, band.Prefetch(ctx, coords, 2))
	assert.Equal(t, 2, band.Len())

	blk = band.TryGetLockedBlock(1, 1)
	require.NotNil(t, blk)
	assert.Equal(t, testutil.Pattern(1, 1, blockBytes), blk.Data())
	band.UnreferenceBlock(blk)

	require.NoError(t, band.Delete(1, 1))
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 1, band.Len())

	plain, err := c.OpenBand("plain", testutil.NewStubBand(), geom())
	require.NoError(t, err)
	assert.Error(t, plain.Delete(0, 0))
}

func TestCache_Close(t *testing.T) {
	stub := testutil.NewStubBand()
	c, err := tilecache.New(tilecache.WithBudget(1 << 20))
	require.NoError(t, err)

	band, err := c.OpenBand("a", stub, geom())
	require.NoError(t, err)
	blk, err := band.GetLockedBlock(3, 3, false)
	require.NoError(t, err)
	blk.MarkDirty()
	blk.Release()

	require.NoError(t, c.Close())
	assert.Equal(t, 1, stub.WriteCount())
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.Empty(t, c.Bands())

	_, err = c.OpenBand("b", stub, geom())
	require.ErrorIs(t, err, tilecache.ErrClosed)

	require.NoError(t, c.Close(), "close is idempotent")
	require.NoError(t, band.Close())
}

func TestCache_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := tilecache.NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := newCache(t, tilecache.WithBudget(blockBytes), tilecache.WithLogger(logger))
	band, err := c.OpenBand("a", testutil.NewStubBand(), geom())
	require.NoError(t, err)

	blk, err := band.GetLockedBlock(0, 0, false)
	require.NoError(t, err)
	blk2, err := band.GetLockedBlock(1, 0, false)
	require.NoError(t, err)
	blk.Release()
	blk2.Release()

	out := buf.String()
	assert.Contains(t, out, `"cache":"`+c.ID()+`"`)
	assert.Contains(t, out, "cache budget set")
	assert.Contains(t, out, "band opened")
	assert.Contains(t, out, "cache budget exceeded")
}

func TestCache_WriteBackGovernor(t *testing.T) {
	c := newCache(t,
		tilecache.WithBudget(1<<20),
		tilecache.WithMaxConcurrentWriteBacks(1),
		tilecache.WithWriteBackRateLimit(1<<20),
		tilecache.WithLogLevel(slog.LevelError),
	)
	stub := testutil.NewStubBand()
	band, err := c.OpenBand("a", stub, geom())
	require.NoError(t, err)

	for x := 0; x < 4; x++ {
		blk, err := band.GetLockedBlock(x, 2, false)
		require.NoError(t, err)
		blk.MarkDirty()
		blk.Release()
	}

	require.NoError(t, c.FlushAll(context.Background()))
	assert.Equal(t, 4, stub.WriteCount())
	assert.Equal(t, int64(4), c.Stats().WriteBacks)
}
