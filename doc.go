// Package tilecache is an in-memory block cache for tiled raster bands.
//
// Rasters are split into fixed size blocks. A Cache keeps recently used
// blocks of any number of bands in memory under one shared soft budget and
// writes modified (dirty) blocks back to the band's backing store before
// they are evicted. Each band picks a block index: a dense array for small
// known grids, or a hash set for huge, sparse or virtual grids.
//
// # Quick Start
//
//	cache, _ := tilecache.New(tilecache.WithBudgetString("256MB"))
//	defer cache.Close()
//
//	store := tilestore.NewMemoryStore()
//	band, _ := cache.OpenStoreBand(ctx, store, "elevation", tilecache.Geometry{
//	    RasterXSize: 40000, RasterYSize: 20000,
//	    BlockXSize: 256, BlockYSize: 256,
//	    PixelSize: 4,
//	})
//
//	b, _ := band.GetLockedBlock(3, 7, true) // read from the store on a miss
//	b.Lock()
//	copy(b.Data(), pixels)
//	b.MarkDirty()
//	b.Unlock()
//	b.Release()
//
//	_ = cache.FlushAll(ctx) // write back dirty blocks
//
// # Budget
//
// The soft budget is resolved once in New: WithBudget or WithBudgetString,
// else the TILECACHE_CACHEMAX environment variable, else 5% of physical
// memory, else 64 MiB. Budget strings accept "512MB", "1 GiB", "25%" and
// plain integers (below 100000 they are MiB, otherwise bytes). Use
// Cache.SetBudget to change it at run time.
//
// The budget is soft: blocks that are referenced are never evicted, so the
// cache may overshoot while callers hold many blocks. WithHardMemoryLimit
// adds a hard ceiling at which block creation fails instead.
//
// # Dirty Blocks
//
// Dirty blocks are written back on eviction, on FlushBlock and FlushCache,
// and on Close. Failed write-backs keep the block cached and dirty; flush
// methods report them as joined *WriteBackError values (see FailedBlocks).
// DisableDirtyBlockWriting pins the dirty blocks of a band in memory, for
// example while the backing store is being rewritten.
//
// # Backing Stores
//
// Any BandIO can back a band. The tilestore package adapts key/value tile
// stores (memory, local files, SQLite, MinIO, S3) and encodes tiles with
// optional LZ4 or zstd compression and a CRC32C checksum.
package tilecache
