package blockcache

import (
	"sync"
	"sync/atomic"
)

// Block is one fixed-size tile of pixel data owned by a band cache.
//
// A block is reachable from its band's index while linked. Holders pin it
// through its reference count; the evictor never destroys a block with a
// non-zero count. Once unlinked, the block is destroyed when the last
// reference is dropped or when the accountant drains its free list.
type Block struct {
	band *baseCache
	x, y int
	key  uint64
	data []byte
	size int64

	refs   atomic.Int32
	dirty  atomic.Bool
	linked atomic.Bool
	freed  atomic.Bool

	mu   sync.Mutex // pixel lock
	wbMu sync.Mutex // serializes write-back between evictor and flushers

	ready   chan struct{}
	readyMu sync.Once
	loadErr error

	// guarded by Accountant.mu
	prev, next *Block
	inLRU      bool
	accounted  bool

	// guarded by freeList.mu
	nextFree   *Block
	onFreeList bool
}

func newBlock(band *baseCache, x, y int, data []byte) *Block {
	return &Block{
		band:  band,
		x:     x,
		y:     y,
		key:   band.idx.key(x, y),
		data:  data,
		size:  int64(len(data)),
		ready: make(chan struct{}),
	}
}

// X returns the block column.
func (b *Block) X() int { return b.x }

// Y returns the block row.
func (b *Block) Y() int { return b.y }

// Data returns the pixel buffer. The caller must hold a reference, and
// should hold the pixel lock while reading or writing it.
func (b *Block) Data() []byte { return b.data }

// Size returns the buffer size in bytes.
func (b *Block) Size() int64 { return b.size }

// RefCount returns the current number of references.
func (b *Block) RefCount() int { return int(b.refs.Load()) }

// IsDirty reports whether the block holds modifications not yet written back.
func (b *Block) IsDirty() bool { return b.dirty.Load() }

// Lock acquires the pixel lock.
func (b *Block) Lock() { b.mu.Lock() }

// TryLock tries to acquire the pixel lock without blocking.
func (b *Block) TryLock() bool { return b.mu.TryLock() }

// Unlock releases the pixel lock.
func (b *Block) Unlock() { b.mu.Unlock() }

// Acquire adds a reference and marks a cached block most recently used.
// The caller must already hold one.
func (b *Block) Acquire() {
	b.refs.Add(1)
	b.band.keepAliveAdd(1)
	if b.linked.Load() {
		b.band.acct.touch(b)
	}
}

// Release drops a reference. Dropping the last reference of a block that is
// no longer cached destroys it.
func (b *Block) Release() {
	n := b.refs.Add(-1)
	if n < 0 {
		panic("blockcache: release of unreferenced block")
	}
	b.band.keepAliveAdd(-1)
	if n == 0 && !b.linked.Load() {
		b.destroy()
	}
}

// pin takes an internal reference that does not count as outside use.
func (b *Block) pin() {
	b.refs.Add(1)
}

func (b *Block) unpin() {
	n := b.refs.Add(-1)
	if n < 0 {
		panic("blockcache: unpin of unreferenced block")
	}
	if n == 0 && !b.linked.Load() {
		b.band.acct.free.push(b)
	}
}

// MarkDirty flags the block as modified. It is a no-op if the block is
// already dirty or no longer cached.
func (b *Block) MarkDirty() {
	if b.dirty.Load() {
		return
	}
	c := b.band
	c.dirtyMu.Lock()
	if b.linked.Load() && b.dirty.CompareAndSwap(false, true) {
		c.dirtySet.Add(b.key)
		c.dirtyCount.Add(1)
		c.acct.dirtyBytes.Add(b.size)
	}
	c.dirtyMu.Unlock()
}

// ClearDirty flags the block as clean.
func (b *Block) ClearDirty() {
	if !b.dirty.Load() {
		return
	}
	c := b.band
	c.dirtyMu.Lock()
	if b.dirty.CompareAndSwap(true, false) {
		c.dirtySet.Remove(b.key)
		c.dirtyCount.Add(-1)
		c.acct.dirtyBytes.Add(-b.size)
	}
	c.dirtyMu.Unlock()
}

// Ready returns a channel closed once the block buffer is populated.
func (b *Block) Ready() <-chan struct{} { return b.ready }

// Wait blocks until the buffer is populated and returns the population error.
func (b *Block) Wait() error {
	<-b.ready
	return b.loadErr
}

// Err returns the population error. It is only meaningful after Ready is closed.
func (b *Block) Err() error {
	select {
	case <-b.ready:
		return b.loadErr
	default:
		return nil
	}
}

func (b *Block) markReady(err error) {
	b.readyMu.Do(func() {
		b.loadErr = err
		close(b.ready)
	})
}

// destroy releases the buffer exactly once.
func (b *Block) destroy() bool {
	if !b.freed.CompareAndSwap(false, true) {
		return false
	}
	a := b.band.acct
	b.data = nil
	a.rc.ReleaseMemory(b.size)
	a.freed.Add(1)
	a.metrics.OnBlockFreed(b.size)
	return true
}
