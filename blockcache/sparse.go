package blockcache

import (
	"github.com/hupe1980/tilecache/internal/hash"
	"github.com/hupe1980/tilecache/internal/hashset"
)

type entry struct {
	key uint64
	b   *Block
}

// hashsetCache indexes only resident blocks. Bounded grids key by the
// row-major cell index, unbounded grids by packed 32-bit coordinates.
// Memory is proportional to the resident count, not the grid size.
type hashsetCache struct {
	*baseCache
	bpr     uint64 // 0 when unbounded
	set     *hashset.Set[entry]
	release func(*Block)
}

func newHashSetCache(c *baseCache) *hashsetCache {
	h := &hashsetCache{baseCache: c}
	if c.geom.bounded() {
		h.bpr = uint64(c.geom.BlocksPerRow())
	}
	h.set = hashset.New(
		func(e entry) uint64 { return hash.Mix64(e.key) },
		func(a, b entry) bool { return a.key == b.key },
		func(e entry) {
			if h.release != nil {
				h.release(e.b)
			}
		},
	)
	return h
}

func (h *hashsetCache) key(x, y int) uint64 {
	if h.bpr > 0 {
		return uint64(y)*h.bpr + uint64(x)
	}
	return uint64(y)<<32 | uint64(x)
}

func (h *hashsetCache) coord(key uint64) (int, int) {
	if h.bpr > 0 {
		return int(key % h.bpr), int(key / h.bpr)
	}
	return int(key & 0xffffffff), int(key >> 32)
}

func (h *hashsetCache) lookup(x, y int) *Block {
	e, ok := h.set.Lookup(entry{key: h.key(x, y)})
	if !ok {
		return nil
	}
	return e.b
}

func (h *hashsetCache) insert(b *Block) bool {
	return h.set.Insert(entry{key: b.key, b: b})
}

func (h *hashsetCache) remove(b *Block) bool {
	e, ok := h.set.Lookup(entry{key: b.key})
	if !ok || e.b != b {
		return false
	}
	return h.set.Remove(e)
}

func (h *hashsetCache) forEach(fn func(*Block)) {
	h.set.Range(func(e entry) bool {
		fn(e.b)
		return true
	})
}

func (h *hashsetCache) count() int { return h.set.Len() }

func (h *hashsetCache) destroy(fn func(*Block)) {
	h.release = fn
	h.set.Destroy()
	h.release = nil
}
