package blockcache

import (
	"fmt"
	"math"

	"github.com/hupe1980/tilecache/internal/mem"
)

// Coord is a block grid position.
type Coord struct {
	X, Y int
}

// Geometry describes the block grid of a band.
type Geometry struct {
	// RasterXSize and RasterYSize are the band size in pixels. Both may be
	// 0 for a Virtual band whose extent is unknown.
	RasterXSize, RasterYSize int

	// BlockXSize and BlockYSize are the block size in pixels.
	BlockXSize, BlockYSize int

	// PixelSize is the number of bytes per pixel.
	PixelSize int

	// Virtual marks bands whose grid is huge, unknown or composited so that
	// most cells are never touched. Virtual bands always use the hash set strategy.
	Virtual bool
}

// maxHashCoord is the largest block offset the packed key of an unbounded
// grid can hold.
const maxHashCoord = math.MaxUint32

// BlocksPerRow returns ceil(RasterXSize/BlockXSize).
func (g Geometry) BlocksPerRow() int {
	if g.BlockXSize <= 0 {
		return 0
	}
	return (g.RasterXSize + g.BlockXSize - 1) / g.BlockXSize
}

// BlocksPerColumn returns ceil(RasterYSize/BlockYSize).
func (g Geometry) BlocksPerColumn() int {
	if g.BlockYSize <= 0 {
		return 0
	}
	return (g.RasterYSize + g.BlockYSize - 1) / g.BlockYSize
}

// BlockBytes returns the size of one block buffer.
func (g Geometry) BlockBytes() (int, error) {
	n, err := mem.BlockBytes(g.BlockXSize, g.BlockYSize, g.PixelSize)
	if err != nil {
		return 0, fmt.Errorf("%w: block %dx%d with %d byte pixels", ErrInvalidGeometry, g.BlockXSize, g.BlockYSize, g.PixelSize)
	}
	return n, nil
}

// Validate checks that the geometry describes a usable block grid.
func (g Geometry) Validate() error {
	if _, err := g.BlockBytes(); err != nil {
		return err
	}
	if g.RasterXSize < 0 || g.RasterYSize < 0 {
		return fmt.Errorf("%w: negative raster size %dx%d", ErrInvalidGeometry, g.RasterXSize, g.RasterYSize)
	}
	if !g.Virtual && (g.RasterXSize == 0 || g.RasterYSize == 0) {
		return fmt.Errorf("%w: empty raster", ErrInvalidGeometry)
	}
	if g.bounded() {
		bpr, bpc := int64(g.BlocksPerRow()), int64(g.BlocksPerColumn())
		if bpr > math.MaxInt64/bpc {
			return fmt.Errorf("%w: %dx%d block grid overflows the cell index", ErrInvalidGeometry, bpr, bpc)
		}
	}
	return nil
}

// bounded reports whether the grid extent is known.
func (g Geometry) bounded() bool {
	return g.RasterXSize > 0 && g.RasterYSize > 0
}

// Contains reports whether (x, y) is a valid block offset.
func (g Geometry) Contains(x, y int) bool {
	if x < 0 || y < 0 {
		return false
	}
	if g.bounded() {
		return x < g.BlocksPerRow() && y < g.BlocksPerColumn()
	}
	return uint64(x) <= maxHashCoord && uint64(y) <= maxHashCoord
}

// Blocks returns the number of cells in the grid, saturating at MaxInt64.
// Unbounded grids report MaxInt64.
func (g Geometry) Blocks() int64 {
	if !g.bounded() {
		return math.MaxInt64
	}
	bpr, bpc := int64(g.BlocksPerRow()), int64(g.BlocksPerColumn())
	if bpr > math.MaxInt64/bpc {
		return math.MaxInt64
	}
	return bpr * bpc
}
