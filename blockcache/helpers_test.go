package blockcache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tilecache/testutil"
)

// 4x4 pixel blocks of one byte per pixel.
const blockBytes = 16

func gridGeom(bx, by int) Geometry {
	return Geometry{
		RasterXSize: bx * 4,
		RasterYSize: by * 4,
		BlockXSize:  4,
		BlockYSize:  4,
		PixelSize:   1,
	}
}

func newBand(t *testing.T, acct *Accountant, bio BandIO, geom Geometry, opts ...BandOption) BandCache {
	t.Helper()
	bc, err := NewBandCache(acct, bio, geom, opts...)
	require.NoError(t, err)
	return bc
}

// put creates, fills and adopts the block at (x, y). The caller holds the
// returned reference.
func put(t *testing.T, bc BandCache, x, y int) *Block {
	t.Helper()
	b, err := bc.CreateBlock(x, y)
	require.NoError(t, err)
	copy(b.Data(), testutil.Pattern(x, y, len(b.Data())))
	require.NoError(t, bc.AdoptBlock(b))
	return b
}

// putReleased adopts the block at (x, y) and drops the caller reference.
func putReleased(t *testing.T, bc BandCache, x, y int, dirty bool) {
	t.Helper()
	b := put(t, bc, x, y)
	if dirty {
		b.MarkDirty()
	}
	b.Release()
}

func cached(bc BandCache, x, y int) bool {
	b := bc.TryGetLockedBlock(x, y)
	if b == nil {
		return false
	}
	bc.UnreferenceBlock(b)
	return true
}

type recordingObserver struct {
	mu             sync.Mutex
	hits, misses   int
	evictions      int
	dirtyEvictions int
	writeBacks     int
	writeErrors    int
	overshoots     int
	freedBytes     int64
}

func (o *recordingObserver) OnLookup(hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func (o *recordingObserver) OnEviction(_ int64, dirty bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.evictions++
	if dirty {
		o.dirtyEvictions++
	}
}

func (o *recordingObserver) OnWriteBack(_ time.Duration, _ int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.writeBacks++
	if err != nil {
		o.writeErrors++
	}
}

func (o *recordingObserver) OnOvershoot(int64, int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.overshoots++
}

func (o *recordingObserver) OnBlockFreed(bytes int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.freedBytes += bytes
}
