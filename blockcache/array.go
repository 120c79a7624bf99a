package blockcache

// Blocks are grouped into square chunks allocated on first use so that a
// large grid with few resident blocks stays small.
const (
	chunkShift = 6
	chunkSize  = 1 << chunkShift
	chunkMask  = chunkSize - 1
)

type chunk struct {
	blocks [chunkSize * chunkSize]*Block
	n      int
}

// arrayCache indexes blocks by grid position. Lookups are O(1).
type arrayCache struct {
	*baseCache
	bpr          int
	chunksPerRow int
	chunks       []*chunk
	n            int
}

func newArrayCache(c *baseCache) *arrayCache {
	bpr, bpc := c.geom.BlocksPerRow(), c.geom.BlocksPerColumn()
	cpr := (bpr + chunkMask) >> chunkShift
	cpc := (bpc + chunkMask) >> chunkShift
	return &arrayCache{
		baseCache:    c,
		bpr:          bpr,
		chunksPerRow: cpr,
		chunks:       make([]*chunk, cpr*cpc),
	}
}

func (a *arrayCache) key(x, y int) uint64 {
	return uint64(y)*uint64(a.bpr) + uint64(x)
}

func (a *arrayCache) coord(key uint64) (int, int) {
	return int(key % uint64(a.bpr)), int(key / uint64(a.bpr))
}

func (a *arrayCache) slot(x, y int) (int, int) {
	return (y>>chunkShift)*a.chunksPerRow + x>>chunkShift, (y&chunkMask)<<chunkShift | x&chunkMask
}

func (a *arrayCache) lookup(x, y int) *Block {
	ci, bi := a.slot(x, y)
	ch := a.chunks[ci]
	if ch == nil {
		return nil
	}
	return ch.blocks[bi]
}

func (a *arrayCache) insert(b *Block) bool {
	ci, bi := a.slot(b.x, b.y)
	ch := a.chunks[ci]
	if ch == nil {
		ch = &chunk{}
		a.chunks[ci] = ch
	}
	if ch.blocks[bi] != nil {
		return false
	}
	ch.blocks[bi] = b
	ch.n++
	a.n++
	return true
}

func (a *arrayCache) remove(b *Block) bool {
	ci, bi := a.slot(b.x, b.y)
	ch := a.chunks[ci]
	if ch == nil || ch.blocks[bi] != b {
		return false
	}
	ch.blocks[bi] = nil
	ch.n--
	a.n--
	if ch.n == 0 {
		a.chunks[ci] = nil
	}
	return true
}

func (a *arrayCache) forEach(fn func(*Block)) {
	for _, ch := range a.chunks {
		if ch == nil {
			continue
		}
		for _, b := range ch.blocks {
			if b != nil {
				fn(b)
			}
		}
	}
}

func (a *arrayCache) count() int { return a.n }

func (a *arrayCache) destroy(fn func(*Block)) {
	a.forEach(fn)
	clear(a.chunks)
	a.n = 0
}
