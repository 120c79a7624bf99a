package blockcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/tilecache/internal/mem"
	"github.com/hupe1980/tilecache/internal/resource"
)

// errRetained marks a dirty block kept because writing is disabled.
var errRetained = errors.New("dirty block retained")

// baseCache holds the state and operations shared by both index strategies.
type baseCache struct {
	io         BandIO
	geom       Geometry
	acct       *Accountant
	strategy   Strategy
	name       string
	blockBytes int
	logger     *slog.Logger

	idx index
	mu  sync.Mutex // guards idx

	// dirtyMu orders dirty transitions against removal from idx.
	dirtyMu    sync.Mutex
	dirtySet   *roaring64.Bitmap
	dirtyCount atomic.Int64

	writeDisabled atomic.Int32

	keepAlive atomic.Int64
	keepMu    sync.Mutex
	keepCond  *sync.Cond

	closed atomic.Bool
}

func (c *baseCache) keepAliveAdd(delta int64) {
	n := c.keepAlive.Add(delta)
	if n < 0 {
		panic("blockcache: negative keep-alive count")
	}
	if n == 0 && delta < 0 {
		c.keepMu.Lock()
		c.keepCond.Broadcast()
		c.keepMu.Unlock()
	}
}

func (c *baseCache) waitKeepAlive() {
	c.keepMu.Lock()
	for c.keepAlive.Load() > 0 {
		c.keepCond.Wait()
	}
	c.keepMu.Unlock()
}

func (c *baseCache) Geometry() Geometry { return c.geom }

func (c *baseCache) Strategy() Strategy { return c.strategy }

func (c *baseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idx.count()
}

func (c *baseCache) ResidentBytes() int64 {
	return int64(c.Len()) * int64(c.blockBytes)
}

func (c *baseCache) CreateBlock(x, y int) (*Block, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if !c.geom.Contains(x, y) {
		return nil, fmt.Errorf("%w: (%d,%d)", ErrInvalidBlock, x, y)
	}

	size := int64(c.blockBytes)
	rc := c.acct.rc
	// Detached buffers waiting on the free list still hold memory.
	if !rc.TryAcquireMemory(size) && (c.acct.free.drain() == 0 || !rc.TryAcquireMemory(size)) {
		return nil, fmt.Errorf("%w: block (%d,%d): %w", ErrAllocation, x, y, resource.ErrMemoryLimitExceeded)
	}
	data, err := mem.AllocAligned(c.blockBytes)
	if err != nil {
		rc.ReleaseMemory(size)
		return nil, fmt.Errorf("%w: block (%d,%d): %w", ErrAllocation, x, y, err)
	}

	b := newBlock(c, x, y, data)
	b.refs.Store(1)
	c.keepAliveAdd(1)
	return b, nil
}

func (c *baseCache) TryGetLockedBlock(x, y int) *Block {
	if !c.geom.Contains(x, y) {
		return nil
	}
	c.mu.Lock()
	b := c.idx.lookup(x, y)
	if b != nil {
		b.refs.Add(1)
		c.keepAliveAdd(1)
		c.acct.touch(b)
	}
	c.mu.Unlock()

	c.acct.metrics.OnLookup(b != nil)
	return b
}

func (c *baseCache) AdoptBlock(b *Block) error {
	if b.band != c {
		panic("blockcache: adopting a block created by another band")
	}
	if b.freed.Load() || b.linked.Load() {
		panic("blockcache: adopting a block that is cached or destroyed")
	}
	if c.closed.Load() {
		return ErrClosed
	}

	c.mu.Lock()
	ok := c.insertLocked(b)
	c.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("blockcache: block (%d,%d) already cached", b.x, b.y))
	}
	b.markReady(nil)

	c.acct.EnforceBudget()
	return nil
}

// insertLocked links b into the index and the LRU list. It returns false if
// the cell is occupied.
func (c *baseCache) insertLocked(b *Block) bool {
	if !c.idx.insert(b) {
		return false
	}
	b.linked.Store(true)
	c.acct.link(b)
	return true
}

func (c *baseCache) UnreferenceBlock(b *Block) {
	n := b.refs.Add(-1)
	if n < 0 {
		panic("blockcache: release of unreferenced block")
	}
	c.keepAliveAdd(-1)
	if n == 0 && !b.linked.Load() {
		c.acct.free.push(b)
	}
}

func (c *baseCache) GetLockedBlock(x, y int, fetch bool) (*Block, error) {
	if b := c.TryGetLockedBlock(x, y); b != nil {
		return c.awaitReady(b)
	}

	b, err := c.CreateBlock(x, y)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if existing := c.idx.lookup(x, y); existing != nil {
		existing.refs.Add(1)
		c.keepAliveAdd(1)
		c.acct.touch(existing)
		c.mu.Unlock()
		b.Release()
		return c.awaitReady(existing)
	}
	c.insertLocked(b)
	c.mu.Unlock()

	c.acct.EnforceBudget()

	if fetch {
		b.mu.Lock()
		err = c.io.ReadBlock(x, y, b.data)
		b.mu.Unlock()
	}
	if err != nil {
		err = fmt.Errorf("read block (%d,%d): %w", x, y, err)
		b.markReady(err)
		_ = c.flushOne(b, false, false)
		b.Release()
		c.logger.Error("block read failed", "x", x, "y", y, "error", err)
		return nil, err
	}
	b.markReady(nil)
	return b, nil
}

func (c *baseCache) awaitReady(b *Block) (*Block, error) {
	if err := b.Wait(); err != nil {
		b.Release()
		return nil, err
	}
	return b, nil
}

func (c *baseCache) FlushBlock(x, y int, writeDirty bool) error {
	if !c.geom.Contains(x, y) {
		return fmt.Errorf("%w: (%d,%d)", ErrInvalidBlock, x, y)
	}
	c.mu.Lock()
	b := c.idx.lookup(x, y)
	if b == nil {
		c.mu.Unlock()
		return nil
	}
	b.pin()
	c.mu.Unlock()

	err := c.flushOne(b, writeDirty, false)
	b.unpin()
	if errors.Is(err, errRetained) {
		return fmt.Errorf("%w: block (%d,%d)", ErrWriteBackDisabled, x, y)
	}
	return err
}

// flushOne writes back b if needed and removes it from the index. The
// caller holds a pin on b.
func (c *baseCache) flushOne(b *Block, writeDirty, force bool) error {
	b.wbMu.Lock()
	defer b.wbMu.Unlock()

	for b.linked.Load() {
		if b.dirty.Load() {
			switch {
			case !writeDirty:
				b.ClearDirty()
			case c.writeDisabled.Load() > 0 && !force:
				return errRetained
			default:
				if err := c.writeBack(b); err != nil {
					return &WriteBackError{X: b.x, Y: b.y, Err: err}
				}
			}
		}
		if c.detach(b, false) {
			return nil
		}
	}
	return nil
}

// evict is called by the accountant with b pinned, off the LRU list and
// its write-back lock held. It reports whether b left the cache.
func (c *baseCache) evict(b *Block) bool {
	defer b.wbMu.Unlock()

	if !b.linked.Load() {
		return true
	}
	if b.refs.Load() > 1 {
		c.acct.relink(b, true)
		return false
	}

	wasDirty := b.dirty.Load()
	if wasDirty {
		if c.writeDisabled.Load() > 0 {
			c.acct.relink(b, false)
			return false
		}
		if err := c.writeBack(b); err != nil {
			c.acct.relink(b, false)
			return false
		}
	}

	if !c.detach(b, true) {
		c.acct.relink(b, true)
		return false
	}

	c.acct.evictions.Add(1)
	c.acct.metrics.OnEviction(b.size, wasDirty)
	c.logger.Debug("block evicted", "x", b.x, "y", b.y, "dirty", wasDirty)
	return true
}

// detach removes a clean block from the index and uncharges it. With
// exclusive set, the block must not be referenced outside the caller's pin.
func (c *baseCache) detach(b *Block, exclusive bool) bool {
	c.mu.Lock()
	if exclusive && b.refs.Load() != 1 {
		c.mu.Unlock()
		return false
	}
	c.dirtyMu.Lock()
	if b.dirty.Load() {
		c.dirtyMu.Unlock()
		c.mu.Unlock()
		return false
	}
	b.linked.Store(false)
	c.dirtyMu.Unlock()

	if !c.idx.remove(b) {
		c.mu.Unlock()
		panic(fmt.Sprintf("blockcache: linked block (%d,%d) missing from index", b.x, b.y))
	}
	c.acct.unlink(b)
	c.mu.Unlock()

	c.acct.free.push(b)
	return true
}

// writeBack persists b and clears its dirty flag on success. No band or
// accountant lock may be held.
func (c *baseCache) writeBack(b *Block) error {
	rc := c.acct.rc
	if err := rc.AcquireWriteBack(context.Background(), len(b.data)); err != nil {
		return err
	}
	defer rc.ReleaseWriteBack()

	start := time.Now()
	b.mu.Lock()
	err := c.io.WriteBlock(b.x, b.y, b.data)
	if err == nil {
		b.ClearDirty()
	}
	b.mu.Unlock()

	c.acct.writeBacks.Add(1)
	c.acct.metrics.OnWriteBack(time.Since(start), len(b.data), err)
	if err != nil {
		c.acct.writeFailures.Add(1)
		c.logger.Error("block write-back failed", "x", b.x, "y", b.y, "error", err)
	}
	return err
}

func (c *baseCache) FlushCache() error {
	return c.flushCache(false)
}

func (c *baseCache) flushCache(force bool) error {
	c.waitKeepAlive()

	blocks := c.snapshot()
	var (
		errs     []error
		retained int
		written  int
	)
	for _, b := range blocks {
		wasDirty := b.dirty.Load()
		err := c.flushOne(b, true, force)
		b.unpin()
		switch {
		case errors.Is(err, errRetained):
			retained++
		case err != nil:
			errs = append(errs, err)
		case wasDirty:
			written++
		}
	}
	c.acct.free.drain()

	if retained > 0 {
		errs = append(errs, fmt.Errorf("%w: %d dirty blocks retained", ErrWriteBackDisabled, retained))
	}
	err := errors.Join(errs...)
	if err != nil {
		c.logger.Warn("band flush incomplete", "blocks", len(blocks), "written", written, "retained", retained, "error", err)
	} else if len(blocks) > 0 {
		c.logger.Info("band flushed", "blocks", len(blocks), "written", written)
	}
	return err
}

// snapshot pins every cached block: dirty ones in ascending key order first,
// then the rest.
func (c *baseCache) snapshot() []*Block {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dirtyMu.Lock()
	keys := c.dirtySet.ToArray()
	c.dirtyMu.Unlock()

	out := make([]*Block, 0, c.idx.count())
	seen := make(map[*Block]struct{}, len(keys))
	for _, k := range keys {
		x, y := c.idx.coord(k)
		if b := c.idx.lookup(x, y); b != nil {
			b.pin()
			seen[b] = struct{}{}
			out = append(out, b)
		}
	}
	c.idx.forEach(func(b *Block) {
		if _, ok := seen[b]; ok {
			return
		}
		b.pin()
		out = append(out, b)
	})
	return out
}

func (c *baseCache) EnableDirtyBlockWriting() {
	if c.writeDisabled.Add(-1) < 0 {
		c.writeDisabled.Add(1)
	}
}

func (c *baseCache) DisableDirtyBlockWriting() {
	c.writeDisabled.Add(1)
}

func (c *baseCache) HasDirtyBlocks() bool {
	return c.dirtyCount.Load() > 0
}

func (c *baseCache) DirtyBlockCount() int {
	return int(c.dirtyCount.Load())
}

func (c *baseCache) DirtyBlocks() []Coord {
	c.dirtyMu.Lock()
	keys := c.dirtySet.ToArray()
	c.dirtyMu.Unlock()

	out := make([]Coord, len(keys))
	for i, k := range keys {
		x, y := c.idx.coord(k)
		out[i] = Coord{X: x, Y: y}
	}
	return out
}

func (c *baseCache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := c.flushCache(true)
	if err != nil {
		for _, b := range c.snapshot() {
			_ = c.flushOne(b, false, true)
			b.unpin()
		}
	}
	c.acct.unregister(c)

	c.mu.Lock()
	c.idx.destroy(func(b *Block) {
		b.ClearDirty()
		b.linked.Store(false)
		c.acct.unlink(b)
		c.acct.free.push(b)
	})
	c.mu.Unlock()
	c.acct.free.drain()

	c.logger.Debug("band cache closed")
	return err
}
