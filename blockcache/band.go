package blockcache

import (
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// BandIO reads and writes whole blocks of one band in its backing store.
// Implementations must be safe for concurrent use.
type BandIO interface {
	// ReadBlock fills buf with the pixels of block (x, y).
	ReadBlock(x, y int, buf []byte) error

	// WriteBlock persists buf as the pixels of block (x, y).
	WriteBlock(x, y int, buf []byte) error
}

// Strategy selects the per-band block index.
type Strategy int

const (
	// StrategyAuto picks StrategyArray for small known grids and
	// StrategyHashSet otherwise.
	StrategyAuto Strategy = iota
	// StrategyArray indexes blocks in a dense slice of every grid cell.
	StrategyArray
	// StrategyHashSet indexes only resident blocks in a hash set.
	StrategyHashSet
)

func (s Strategy) String() string {
	switch s {
	case StrategyAuto:
		return "auto"
	case StrategyArray:
		return "array"
	case StrategyHashSet:
		return "hashset"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// BandCache caches the blocks of one raster band.
type BandCache interface {
	// CreateBlock allocates an unpopulated, uncached block. The caller owns
	// the returned reference.
	CreateBlock(x, y int) (*Block, error)

	// TryGetLockedBlock returns the cached block at (x, y) with a reference
	// added, or nil. A block returned here may still be being populated by
	// another goroutine; callers that did not populate it should Wait.
	TryGetLockedBlock(x, y int) *Block

	// AdoptBlock inserts a populated block created by this cache. The
	// caller keeps its reference. Adopting onto an occupied cell panics.
	AdoptBlock(b *Block) error

	// UnreferenceBlock drops a reference obtained from a lookup. Blocks no
	// longer cached are handed to the deferred free list.
	UnreferenceBlock(b *Block)

	// GetLockedBlock returns the block at (x, y), creating it and reading it
	// from the backing store when fetch is set, or zero-filling it otherwise.
	GetLockedBlock(x, y int, fetch bool) (*Block, error)

	// FlushBlock writes back the block at (x, y) if dirty and writeDirty is
	// set, then removes it from the cache. With writeDirty unset, pending
	// modifications are discarded.
	FlushBlock(x, y int, writeDirty bool) error

	// FlushCache waits until no block of the band is referenced, then
	// writes back every dirty block and empties the cache.
	FlushCache() error

	EnableDirtyBlockWriting()
	DisableDirtyBlockWriting()

	HasDirtyBlocks() bool
	DirtyBlockCount() int
	DirtyBlocks() []Coord

	Len() int
	ResidentBytes() int64
	Geometry() Geometry
	Strategy() Strategy

	// Close flushes the band, discards blocks that could not be written and
	// detaches it from the accountant.
	Close() error
}

// maxArraySlots bounds the slice allocated by a forced array strategy.
const maxArraySlots = 1 << 28

// index is the storage strategy of a band cache. All methods are called
// with the band lock held.
type index interface {
	key(x, y int) uint64
	coord(key uint64) (x, y int)
	lookup(x, y int) *Block
	insert(b *Block) bool
	remove(b *Block) bool
	forEach(fn func(*Block))
	count() int
	destroy(fn func(*Block))
}

// NewBandCache creates a band cache registered with acct.
func NewBandCache(acct *Accountant, bio BandIO, geom Geometry, optFns ...BandOption) (BandCache, error) {
	if acct == nil || bio == nil {
		return nil, fmt.Errorf("blockcache: accountant and band io are required")
	}
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	blockBytes, err := geom.BlockBytes()
	if err != nil {
		return nil, err
	}

	opts := bandOptions{
		denseThreshold: DefaultDenseThreshold,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	strategy := chooseStrategy(geom, opts.strategy, opts.denseThreshold)

	c := &baseCache{
		io:         bio,
		geom:       geom,
		acct:       acct,
		strategy:   strategy,
		name:       opts.name,
		blockBytes: blockBytes,
		dirtySet:   roaring64.New(),
	}
	c.keepCond = sync.NewCond(&c.keepMu)
	c.logger = acct.logger.With("band", opts.name, "strategy", strategy.String())

	var bc BandCache
	switch strategy {
	case StrategyArray:
		if geom.Blocks() > maxArraySlots {
			return nil, fmt.Errorf("%w: %d blocks exceed the array strategy limit", ErrInvalidGeometry, geom.Blocks())
		}
		ac := newArrayCache(c)
		c.idx = ac
		bc = ac
	default:
		hc := newHashSetCache(c)
		c.idx = hc
		bc = hc
	}

	if err := acct.register(c); err != nil {
		return nil, err
	}
	c.logger.Debug("band cache opened",
		"blocks_per_row", geom.BlocksPerRow(),
		"blocks_per_column", geom.BlocksPerColumn(),
		"block_bytes", blockBytes)
	return bc, nil
}

func chooseStrategy(geom Geometry, forced Strategy, denseThreshold int64) Strategy {
	if geom.Virtual || !geom.bounded() {
		return StrategyHashSet
	}
	if forced != StrategyAuto {
		return forced
	}
	if geom.Blocks() <= denseThreshold {
		return StrategyArray
	}
	return StrategyHashSet
}
