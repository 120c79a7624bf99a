// Package blockcache caches fixed-size blocks of raster band pixel data in
// memory under a shared byte budget.
//
// Each band owns a BandCache that indexes its resident blocks, either in a
// dense array over the block grid or in a hash set of resident blocks only.
// All bands sharing an Accountant are evicted least recently used first;
// dirty blocks are written back through the band's BandIO before removal.
//
// Blocks are reference counted. A block with outstanding references is never
// destroyed; blocks removed from an index while still referenced are parked
// on a deferred free list and destroyed once the last reference is gone.
//
// Usage:
//
//	acct := blockcache.NewAccountant(blockcache.WithBudget(256 << 20))
//	band, err := blockcache.NewBandCache(acct, bio, blockcache.Geometry{
//		RasterXSize: 4096, RasterYSize: 4096,
//		BlockXSize: 256, BlockYSize: 256,
//		PixelSize: 1,
//	})
//	if err != nil {
//		return err
//	}
//	defer band.Close()
//
//	b, err := band.GetLockedBlock(3, 7, true)
//	if err != nil {
//		return err
//	}
//	b.Lock()
//	b.Data()[0] = 255
//	b.MarkDirty()
//	b.Unlock()
//	b.Release()
package blockcache
