package blockcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tilecache/internal/resource"
	"github.com/hupe1980/tilecache/testutil"
)

func TestAccountant_Defaults(t *testing.T) {
	acct := NewAccountant()
	assert.Equal(t, DefaultBudget, acct.Budget())

	acct.SetBudget(-5)
	assert.Equal(t, int64(0), acct.Budget())

	acct.SetBudget(1024)
	s := acct.Stats()
	assert.Equal(t, int64(1024), s.Budget)
	assert.Equal(t, int64(0), s.Used)
	assert.Equal(t, 0, s.Bands)
}

func TestAccountant_EvictionRespectsBudget(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, s Strategy) {
		acct := NewAccountant(WithBudget(4 * blockBytes))
		bc := newBand(t, acct, testutil.NewStubBand(), gridGeom(8, 8), WithStrategy(s))

		for i := 0; i < 20; i++ {
			putReleased(t, bc, i%8, i/8, false)
			assert.LessOrEqual(t, acct.Used(), int64(4*blockBytes))
		}
		assert.Equal(t, 4, bc.Len())
		assert.Equal(t, int64(16), acct.Stats().Evictions)
	})
}

func TestAccountant_LRUOrder(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, s Strategy) {
		acct := NewAccountant(WithBudget(3 * blockBytes))
		bc := newBand(t, acct, testutil.NewStubBand(), gridGeom(4, 4), WithStrategy(s))

		putReleased(t, bc, 0, 0, false) // a
		putReleased(t, bc, 1, 0, false) // b
		putReleased(t, bc, 2, 0, false) // c

		lru := acct.lruOrder()
		require.Len(t, lru, 3)
		assert.Equal(t, 2, lru[0].X(), "most recent first")
		assert.Equal(t, 0, lru[2].X())

		// touch a
		b := bc.TryGetLockedBlock(0, 0)
		require.NotNil(t, b)
		bc.UnreferenceBlock(b)
		assert.Equal(t, 0, acct.lruOrder()[0].X())

		putReleased(t, bc, 3, 0, false) // d evicts b

		assert.True(t, cached(bc, 0, 0))
		assert.False(t, cached(bc, 1, 0))
		assert.True(t, cached(bc, 2, 0))
		assert.True(t, cached(bc, 3, 0))
	})
}

func TestAccountant_AcquireRefreshesLRU(t *testing.T) {
	acct := NewAccountant()
	bc := newBand(t, acct, testutil.NewStubBand(), gridGeom(4, 4))

	a := put(t, bc, 0, 0)
	putReleased(t, bc, 1, 0, false)
	putReleased(t, bc, 2, 0, false)
	require.Equal(t, 0, acct.lruOrder()[2].X())

	a.Acquire()
	assert.Equal(t, 0, acct.lruOrder()[0].X())
	assert.Equal(t, 2, a.RefCount())

	a.Release()
	a.Release()
}

func TestAccountant_ReferencedBlocksNotEvicted(t *testing.T) {
	obs := &recordingObserver{}
	acct := NewAccountant(WithMetricsObserver(obs))
	bc := newBand(t, acct, testutil.NewStubBand(), gridGeom(4, 4))

	held := []*Block{put(t, bc, 0, 0), put(t, bc, 1, 0), put(t, bc, 2, 0)}

	acct.SetBudget(blockBytes)
	assert.Equal(t, int64(3*blockBytes), acct.Used(), "budget applies at the next check")

	acct.EnforceBudget()
	assert.Equal(t, int64(3*blockBytes), acct.Used())
	assert.Equal(t, int64(1), acct.Stats().Overshoots)
	assert.Equal(t, 1, obs.overshoots)
	for _, b := range held {
		assert.False(t, b.freed.Load())
		assert.Equal(t, blockBytes, len(b.Data()))
	}

	held[0].Release()
	acct.EnforceBudget()
	assert.Equal(t, int64(2*blockBytes), acct.Used())
	assert.True(t, held[0].freed.Load())

	held[1].Release()
	held[2].Release()
	acct.EnforceBudget()
	assert.Equal(t, int64(blockBytes), acct.Used())
	assert.Equal(t, int64(2*blockBytes), obs.freedBytes)
}

func TestAccountant_DirtyVictimWrittenBack(t *testing.T) {
	obs := &recordingObserver{}
	acct := NewAccountant(WithBudget(2*blockBytes), WithMetricsObserver(obs))
	stub := testutil.NewStubBand()
	bc := newBand(t, acct, stub, gridGeom(4, 4))

	putReleased(t, bc, 0, 0, true)
	putReleased(t, bc, 1, 0, false)
	putReleased(t, bc, 2, 0, false)

	require.Equal(t, 1, stub.WriteCount())
	w := stub.Writes()[0]
	assert.Equal(t, 0, w.X)
	assert.Equal(t, testutil.Pattern(0, 0, blockBytes), w.Data)
	assert.False(t, bc.HasDirtyBlocks())
	assert.Equal(t, int64(0), acct.DirtyBytes())
	assert.Equal(t, 1, obs.dirtyEvictions)
	assert.Equal(t, 1, obs.writeBacks)
}

func TestAccountant_WriteFailureKeepsBlock(t *testing.T) {
	acct := NewAccountant(WithBudget(2 * blockBytes))
	stub := testutil.NewStubBand()
	bc := newBand(t, acct, stub, gridGeom(4, 4))

	stub.FailWrite(0, 0, testutil.ErrStub)
	putReleased(t, bc, 0, 0, true)
	putReleased(t, bc, 1, 0, false)
	putReleased(t, bc, 2, 0, false)

	assert.True(t, cached(bc, 0, 0), "unwritable block stays resident")
	assert.False(t, cached(bc, 1, 0), "next candidate evicted instead")
	assert.Equal(t, []Coord{{0, 0}}, bc.DirtyBlocks())
	assert.Equal(t, int64(2*blockBytes), acct.Used())

	s := acct.Stats()
	assert.Equal(t, int64(1), s.WriteFailures)
	assert.Equal(t, int64(1), s.Evictions)
}

func TestAccountant_SkipsDirtyBlocksOfDisabledBand(t *testing.T) {
	acct := NewAccountant(WithBudget(2 * blockBytes))
	stub := testutil.NewStubBand()
	bc := newBand(t, acct, stub, gridGeom(4, 4))
	bc.DisableDirtyBlockWriting()

	putReleased(t, bc, 0, 0, true)
	putReleased(t, bc, 1, 0, false)
	putReleased(t, bc, 2, 0, false)

	assert.Equal(t, 0, stub.WriteCount())
	assert.True(t, cached(bc, 0, 0))
	assert.False(t, cached(bc, 1, 0))

	bc.EnableDirtyBlockWriting()
	acct.SetBudget(0)
	acct.EnforceBudget()
	assert.Equal(t, 1, stub.WriteCount())
	assert.False(t, cached(bc, 0, 0))
}

func TestAccountant_EvictorAndFlusherWriteOnce(t *testing.T) {
	acct := NewAccountant(WithBudget(blockBytes))
	stub := testutil.NewStubBand()
	bc := newBand(t, acct, stub, gridGeom(4, 4))

	putReleased(t, bc, 0, 0, true)

	stub.Gate = make(chan struct{})
	stub.Started = make(chan [2]int, 1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		putReleased(t, bc, 1, 0, false) // triggers eviction of (0,0)
	}()
	assert.Equal(t, [2]int{0, 0}, <-stub.Started)

	go func() {
		defer wg.Done()
		assert.NoError(t, bc.FlushBlock(0, 0, true))
	}()

	close(stub.Gate)
	wg.Wait()

	assert.Equal(t, 1, stub.WriteCount())
	assert.False(t, cached(bc, 0, 0))
	assert.False(t, bc.HasDirtyBlocks())
}

func TestAccountant_FlushAll(t *testing.T) {
	acct := NewAccountant()
	stub1, stub2 := testutil.NewStubBand(), testutil.NewStubBand()
	bc1 := newBand(t, acct, stub1, gridGeom(4, 4))
	bc2 := newBand(t, acct, stub2, gridGeom(4, 4), WithStrategy(StrategyHashSet))

	putReleased(t, bc1, 0, 0, true)
	putReleased(t, bc1, 1, 1, true)
	putReleased(t, bc2, 2, 2, true)
	stub2.FailWrite(2, 2, testutil.ErrStub)

	err := acct.FlushAll(context.Background())
	require.ErrorIs(t, err, testutil.ErrStub)
	assert.Equal(t, []Coord{{2, 2}}, FailedBlocks(err))
	assert.Equal(t, 2, stub1.WriteCount())
	assert.Equal(t, int64(blockBytes), acct.Used())

	stub2.FailWrite(2, 2, nil)
	require.NoError(t, acct.FlushAll(context.Background()))
	assert.Equal(t, int64(0), acct.Used())
	assert.Equal(t, 2, acct.Stats().Bands)
}

func TestAccountant_FlushAllCanceled(t *testing.T) {
	acct := NewAccountant()
	bc := newBand(t, acct, testutil.NewStubBand(), gridGeom(4, 4))
	putReleased(t, bc, 0, 0, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, acct.FlushAll(ctx), context.Canceled)
	assert.True(t, bc.HasDirtyBlocks())
}

func TestAccountant_Close(t *testing.T) {
	rc := resource.NewController(resource.Config{})
	acct := NewAccountant(WithResourceController(rc))
	stub := testutil.NewStubBand()
	bc1 := newBand(t, acct, stub, gridGeom(4, 4))
	bc2 := newBand(t, acct, testutil.NewStubBand(), gridGeom(4, 4))

	putReleased(t, bc1, 0, 0, true)
	putReleased(t, bc2, 0, 0, false)

	require.NoError(t, acct.Close())
	require.NoError(t, acct.Close())
	assert.Equal(t, 1, stub.WriteCount())
	assert.Equal(t, int64(0), acct.Used())
	assert.Equal(t, int64(0), rc.MemoryUsage())

	_, err := NewBandCache(acct, stub, gridGeom(4, 4))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAccountant_ConcurrentAccess(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, s Strategy) {
		rc := resource.NewController(resource.Config{MaxConcurrentWriteBacks: 2})
		acct := NewAccountant(WithBudget(8*blockBytes), WithResourceController(rc))
		stub := testutil.NewStubBand()
		bc := newBand(t, acct, stub, gridGeom(8, 8), WithStrategy(s))

		const workers = 8
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(seed int64) {
				defer wg.Done()
				rng := testutil.NewRNG(seed)
				for i := 0; i < 300; i++ {
					x, y := rng.Intn(8), rng.Intn(8)
					b, err := bc.GetLockedBlock(x, y, true)
					if !assert.NoError(t, err) {
						return
					}
					b.Lock()
					b.Data()[0]++
					b.MarkDirty()
					b.Unlock()
					if i%7 == 0 {
						bc.UnreferenceBlock(b)
						acct.FreeDanglingBlocks()
					} else {
						b.Release()
					}
					if i%50 == 0 {
						_ = bc.FlushBlock(x, y, true)
					}
				}
			}(int64(w))
		}
		wg.Wait()

		acct.EnforceBudget()
		assert.LessOrEqual(t, acct.Used(), int64(8*blockBytes))
		require.NoError(t, bc.FlushCache())
		assert.Equal(t, int64(0), acct.Used())
		assert.Equal(t, int64(0), acct.DirtyBytes())
		assert.Equal(t, int64(0), acct.BlockCount())
		assert.False(t, bc.HasDirtyBlocks())

		acct.FreeDanglingBlocks()
		assert.Equal(t, int64(0), rc.MemoryUsage())
	})
}

func TestAccountant_EnforceBudgetIdle(t *testing.T) {
	acct := NewAccountant(WithBudget(blockBytes))
	done := make(chan struct{})
	go func() {
		acct.EnforceBudget()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("EnforceBudget blocked on an empty cache")
	}
}
