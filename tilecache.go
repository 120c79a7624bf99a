package tilecache

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/tilecache/blockcache"
	"github.com/hupe1980/tilecache/internal/resource"
	"github.com/hupe1980/tilecache/tilestore"
)

type (
	// Geometry describes the block grid of a band.
	Geometry = blockcache.Geometry
	// Coord is a block grid position.
	Coord = blockcache.Coord
	// Block is a cached, reference counted block of pixels.
	Block = blockcache.Block
	// BandIO reads and writes whole blocks of one band in its backing store.
	BandIO = blockcache.BandIO
	// BandCache caches the blocks of one raster band.
	BandCache = blockcache.BandCache
	// BandOption configures a band cache.
	BandOption = blockcache.BandOption
	// Strategy selects the per-band block index.
	Strategy = blockcache.Strategy
	// Stats is a snapshot of cache accounting.
	Stats = blockcache.Stats
)

// Index strategies, see blockcache.Strategy.
const (
	StrategyAuto    = blockcache.StrategyAuto
	StrategyArray   = blockcache.StrategyArray
	StrategyHashSet = blockcache.StrategyHashSet
)

// Cache is a process-wide block cache shared by any number of bands. All
// bands draw from one soft memory budget; least recently used blocks are
// written back if dirty and evicted when the budget is exceeded.
//
// Cache is safe for concurrent use.
type Cache struct {
	id     string
	opts   options
	acct   *blockcache.Accountant
	rc     *resource.Controller
	logger *Logger

	mu     sync.Mutex
	bands  map[string]*Band
	closed bool
}

// New creates a cache.
func New(optFns ...Option) (*Cache, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.logger
	if logger == nil {
		if opts.logLevel != nil {
			logger = NewTextLogger(*opts.logLevel)
		} else {
			logger = NoopLogger()
		}
	}
	id := uuid.NewString()
	logger = logger.WithCache(id)

	budget, source, err := opts.resolveBudget(logger)
	if err != nil {
		return nil, err
	}
	if opts.hardMemoryLimit < 0 {
		return nil, &ErrInvalidBudget{Value: fmt.Sprintf("hard limit %d", opts.hardMemoryLimit)}
	}

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:        opts.hardMemoryLimit,
		MaxConcurrentWriteBacks: opts.maxWriteBacks,
		WriteBackBytesPerSec:    opts.writeBackRate,
	})
	acct := blockcache.NewAccountant(
		blockcache.WithBudget(budget),
		blockcache.WithResourceController(rc),
		blockcache.WithLogger(logger.Logger),
		blockcache.WithMetricsObserver(opts.metricsCollector),
	)

	logger.LogBudget(context.Background(), budget, source)

	return &Cache{
		id:     id,
		opts:   opts,
		acct:   acct,
		rc:     rc,
		logger: logger,
		bands:  make(map[string]*Band),
	}, nil
}

// ID returns the unique instance id attached to every log record.
func (c *Cache) ID() string { return c.id }

// OpenBand registers a band backed by bio. Band names are unique per cache.
// Options given here override the cache wide strategy settings.
func (c *Cache) OpenBand(name string, bio BandIO, geom Geometry, optFns ...BandOption) (*Band, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if _, ok := c.bands[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateBand, name)
	}

	bandOpts := make([]BandOption, 0, len(optFns)+3)
	bandOpts = append(bandOpts, blockcache.WithName(name), blockcache.WithStrategy(c.opts.strategy))
	if c.opts.denseThreshold > 0 {
		bandOpts = append(bandOpts, blockcache.WithDenseThreshold(c.opts.denseThreshold))
	}
	bandOpts = append(bandOpts, optFns...)

	bc, err := blockcache.NewBandCache(c.acct, bio, geom, bandOpts...)
	if err != nil {
		return nil, translateError(err)
	}

	b := &Band{
		BandCache: bc,
		name:      name,
		cache:     c,
		logger:    c.logger.WithBand(name),
	}
	c.bands[name] = b

	c.logger.LogBandOpened(context.Background(), name, bc.Strategy().String(), geom.Blocks())
	return b, nil
}

// OpenStoreBand registers a band whose blocks live in store as encoded tiles.
func (c *Cache) OpenStoreBand(ctx context.Context, store tilestore.Store, name string, geom Geometry, optFns ...tilestore.BandOption) (*Band, error) {
	sb := tilestore.NewBand(ctx, store, name, optFns...)
	b, err := c.OpenBand(name, sb, geom)
	if err != nil {
		return nil, err
	}
	b.store = sb
	return b, nil
}

// Band returns the open band with the given name.
func (c *Cache) Band(name string) (*Band, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.bands[name]
	if !ok {
		return nil, &ErrBandNotFound{Name: name}
	}
	return b, nil
}

// Bands returns the names of all open bands in sorted order.
func (c *Cache) Bands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.bands))
	for name := range c.bands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (c *Cache) forget(name string, b *Band) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bands[name] == b {
		delete(c.bands, name)
	}
}

// FlushAll writes back every dirty block of every band and empties the
// bands. Blocks that fail to write stay cached; use FailedBlocks on the
// returned error to find them.
func (c *Cache) FlushAll(ctx context.Context) error {
	n := len(c.Bands())
	err := c.acct.FlushAll(ctx)
	c.logger.LogFlush(ctx, n, err)
	return translateError(err)
}

// SetBudget changes the soft memory budget. Negative values are treated as 0.
func (c *Cache) SetBudget(bytes int64) {
	c.acct.SetBudget(bytes)
	c.logger.LogBudget(context.Background(), c.acct.Budget(), "set")
	c.acct.EnforceBudget()
}

// Budget returns the soft memory budget in bytes.
func (c *Cache) Budget() int64 { return c.acct.Budget() }

// Used returns the bytes held by cached blocks.
func (c *Cache) Used() int64 { return c.acct.Used() }

// MemoryUsage returns the bytes held by all live block buffers, including
// blocks that are referenced but no longer cached.
func (c *Cache) MemoryUsage() int64 { return c.rc.MemoryUsage() }

// EnforceBudget evicts until the cache is within budget or nothing more can
// be evicted.
func (c *Cache) EnforceBudget() { c.acct.EnforceBudget() }

// FreeDanglingBlocks destroys released blocks waiting on the deferred free
// list and returns how many were destroyed.
func (c *Cache) FreeDanglingBlocks() int { return c.acct.FreeDanglingBlocks() }

// Stats returns a snapshot of cache accounting.
func (c *Cache) Stats() Stats { return c.acct.Stats() }

// Close flushes and closes every band. Dirty blocks that cannot be written
// are discarded and reported in the returned error.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	n := len(c.bands)
	c.bands = make(map[string]*Band)
	c.mu.Unlock()

	err := c.acct.Close()
	c.logger.LogFlush(context.Background(), n, err)
	return translateError(err)
}

// Band is a band cache opened on a Cache.
type Band struct {
	BandCache

	name   string
	cache  *Cache
	store  *tilestore.Band
	logger *Logger
}

// Name returns the band name.
func (b *Band) Name() string { return b.name }

// Prefetch reads coords into the cache with at most limit concurrent reads.
func (b *Band) Prefetch(ctx context.Context, coords []Coord, limit int) error {
	return translateError(blockcache.Prefetch(ctx, b.BandCache, coords, limit))
}

// Delete drops the block at (x, y) from the cache without writing it back
// and removes its tile from the backing store. Only bands opened with
// OpenStoreBand support it.
func (b *Band) Delete(x, y int) error {
	if b.store == nil {
		return fmt.Errorf("band %q has no tile store", b.name)
	}
	if err := b.BandCache.FlushBlock(x, y, false); err != nil {
		return translateError(err)
	}
	if err := b.store.DeleteBlock(x, y); err != nil {
		return err
	}
	b.logger.Debug("tile deleted", "x", x, "y", y)
	return nil
}

// Close flushes the band, releases its blocks and removes it from the cache.
func (b *Band) Close() error {
	err := b.BandCache.Close()
	b.cache.forget(b.name, b)
	return translateError(err)
}
