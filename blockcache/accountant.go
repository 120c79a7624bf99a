package blockcache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/tilecache/internal/resource"
)

// Stats is a snapshot of accountant state.
type Stats struct {
	Used          int64
	Budget        int64
	MemoryLimit   int64 // hard buffer ceiling, 0 if unlimited
	DirtyBytes    int64
	Blocks        int64
	Bands         int
	Evictions     int64
	WriteBacks    int64
	WriteFailures int64
	Overshoots    int64
	BlocksFreed   int64
	PendingFree   int
}

// Accountant tracks resident block memory across all bands sharing a budget
// and evicts least recently used blocks when the budget is exceeded.
//
// Lock order: a band lock may be held while taking the accountant lock,
// never the reverse. No backing store I/O happens under either lock.
type Accountant struct {
	mu   sync.Mutex
	head *Block // most recently used
	tail *Block // least recently used

	used       atomic.Int64
	count      atomic.Int64
	budget     atomic.Int64
	dirtyBytes atomic.Int64

	evictions     atomic.Int64
	writeBacks    atomic.Int64
	writeFailures atomic.Int64
	overshoots    atomic.Int64
	freed         atomic.Int64

	free freeList

	bandsMu sync.Mutex
	bands   map[*baseCache]struct{}

	rc      *resource.Controller
	logger  *slog.Logger
	metrics MetricsObserver

	closed atomic.Bool
}

// NewAccountant creates an accountant.
func NewAccountant(optFns ...AccountantOption) *Accountant {
	opts := accountantOptions{
		budget:  DefaultBudget,
		logger:  discardLogger(),
		metrics: NoopMetricsObserver{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.rc == nil {
		opts.rc = resource.NewController(resource.Config{})
	}

	a := &Accountant{
		bands:   make(map[*baseCache]struct{}),
		rc:      opts.rc,
		logger:  opts.logger,
		metrics: opts.metrics,
	}
	a.SetBudget(opts.budget)
	return a
}

// SetBudget changes the budget. It takes effect at the next eviction check.
func (a *Accountant) SetBudget(bytes int64) {
	if bytes < 0 {
		bytes = 0
	}
	a.budget.Store(bytes)
}

// Budget returns the budget in bytes.
func (a *Accountant) Budget() int64 { return a.budget.Load() }

// Used returns the bytes of all blocks reachable from a band index.
func (a *Accountant) Used() int64 { return a.used.Load() }

// DirtyBytes returns the bytes of all dirty blocks.
func (a *Accountant) DirtyBytes() int64 { return a.dirtyBytes.Load() }

// BlockCount returns the number of blocks reachable from a band index.
func (a *Accountant) BlockCount() int64 { return a.count.Load() }

// Stats returns a snapshot of the accountant counters.
func (a *Accountant) Stats() Stats {
	a.bandsMu.Lock()
	bands := len(a.bands)
	a.bandsMu.Unlock()
	return Stats{
		Used:          a.used.Load(),
		Budget:        a.budget.Load(),
		MemoryLimit:   a.rc.MemoryLimit(),
		DirtyBytes:    a.dirtyBytes.Load(),
		Blocks:        a.count.Load(),
		Bands:         bands,
		Evictions:     a.evictions.Load(),
		WriteBacks:    a.writeBacks.Load(),
		WriteFailures: a.writeFailures.Load(),
		Overshoots:    a.overshoots.Load(),
		BlocksFreed:   a.freed.Load(),
		PendingFree:   a.free.len(),
	}
}

// FreeDanglingBlocks destroys evicted or flushed blocks whose last
// reference has been dropped. It returns the number destroyed.
func (a *Accountant) FreeDanglingBlocks() int {
	return a.free.drain()
}

// EnforceBudget evicts until usage is within budget or nothing else can be evicted.
func (a *Accountant) EnforceBudget() {
	if a.used.Load() <= a.budget.Load() {
		return
	}

	var tried map[*Block]struct{}
	evicted := 0
	for {
		a.mu.Lock()
		used, budget := a.used.Load(), a.budget.Load()
		if used <= budget {
			a.mu.Unlock()
			break
		}
		victim := a.pickVictimLocked(tried)
		if victim == nil {
			a.mu.Unlock()
			a.overshoot(used, budget)
			break
		}
		a.unlinkLocked(victim)
		victim.pin()
		a.mu.Unlock()

		// victim.wbMu is held; evict releases it.
		if victim.band.evict(victim) {
			evicted++
		} else {
			if tried == nil {
				tried = make(map[*Block]struct{})
			}
			tried[victim] = struct{}{}
		}
		victim.unpin()
	}

	if evicted > 0 {
		a.free.drain()
	}
}

// pickVictimLocked walks from the LRU end and returns the first block that
// can be evicted, with its write-back lock held.
func (a *Accountant) pickVictimLocked(tried map[*Block]struct{}) *Block {
	for b := a.tail; b != nil; b = b.prev {
		if b.refs.Load() > 0 {
			continue
		}
		if _, ok := tried[b]; ok {
			continue
		}
		if b.dirty.Load() && b.band.writeDisabled.Load() > 0 {
			continue
		}
		if !b.wbMu.TryLock() {
			continue
		}
		return b
	}
	return nil
}

func (a *Accountant) overshoot(used, budget int64) {
	a.overshoots.Add(1)
	a.metrics.OnOvershoot(used, budget)
	a.logger.Warn("cache budget exceeded, no evictable blocks",
		"used", humanize.IBytes(uint64(used)),
		"budget", humanize.IBytes(uint64(budget)),
		"blocks", a.count.Load())
}

// link inserts b at the MRU end and charges its bytes. The caller holds the band lock.
func (a *Accountant) link(b *Block) {
	a.mu.Lock()
	if b.accounted {
		a.mu.Unlock()
		panic("blockcache: block accounted twice")
	}
	a.pushFrontLocked(b)
	b.accounted = true
	a.used.Add(b.size)
	a.count.Add(1)
	a.mu.Unlock()
}

// unlink removes b from the list and uncharges its bytes. The caller holds the band lock.
func (a *Accountant) unlink(b *Block) {
	a.mu.Lock()
	a.unlinkLocked(b)
	if b.accounted {
		b.accounted = false
		a.used.Add(-b.size)
		a.count.Add(-1)
	}
	a.mu.Unlock()
}

// touch moves b to the MRU end.
func (a *Accountant) touch(b *Block) {
	a.mu.Lock()
	if b.inLRU && a.head != b {
		a.unlinkLocked(b)
		a.pushFrontLocked(b)
	}
	a.mu.Unlock()
}

// relink puts an eviction candidate back on the list. Blocks that were
// dropped from their index meanwhile are left off.
func (a *Accountant) relink(b *Block, mru bool) {
	a.mu.Lock()
	if b.accounted && !b.inLRU {
		if mru {
			a.pushFrontLocked(b)
		} else {
			a.pushBackLocked(b)
		}
	}
	a.mu.Unlock()
}

func (a *Accountant) pushFrontLocked(b *Block) {
	b.prev = nil
	b.next = a.head
	if a.head != nil {
		a.head.prev = b
	}
	a.head = b
	if a.tail == nil {
		a.tail = b
	}
	b.inLRU = true
}

func (a *Accountant) pushBackLocked(b *Block) {
	b.next = nil
	b.prev = a.tail
	if a.tail != nil {
		a.tail.next = b
	}
	a.tail = b
	if a.head == nil {
		a.head = b
	}
	b.inLRU = true
}

func (a *Accountant) unlinkLocked(b *Block) {
	if !b.inLRU {
		return
	}
	if b.prev != nil {
		b.prev.next = b.next
	} else {
		a.head = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	} else {
		a.tail = b.prev
	}
	b.prev, b.next = nil, nil
	b.inLRU = false
}

// lruOrder returns the blocks from most to least recently used.
func (a *Accountant) lruOrder() []*Block {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*Block
	for b := a.head; b != nil; b = b.next {
		out = append(out, b)
	}
	return out
}

func (a *Accountant) register(c *baseCache) error {
	a.bandsMu.Lock()
	defer a.bandsMu.Unlock()
	if a.closed.Load() {
		return ErrClosed
	}
	a.bands[c] = struct{}{}
	return nil
}

func (a *Accountant) unregister(c *baseCache) {
	a.bandsMu.Lock()
	delete(a.bands, c)
	a.bandsMu.Unlock()
}

func (a *Accountant) snapshotBands() []*baseCache {
	a.bandsMu.Lock()
	defer a.bandsMu.Unlock()
	out := make([]*baseCache, 0, len(a.bands))
	for c := range a.bands {
		out = append(out, c)
	}
	return out
}

// FlushAll flushes every registered band concurrently and joins their errors.
func (a *Accountant) FlushAll(ctx context.Context) error {
	bands := a.snapshotBands()

	var (
		mu   sync.Mutex
		errs []error
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range bands {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := c.FlushCache(); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close closes every registered band and destroys all remaining blocks.
func (a *Accountant) Close() error {
	a.bandsMu.Lock()
	if !a.closed.CompareAndSwap(false, true) {
		a.bandsMu.Unlock()
		return nil
	}
	a.bandsMu.Unlock()

	var errs []error
	for _, c := range a.snapshotBands() {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.free.drain()
	return errors.Join(errs...)
}
