package blockcache

import (
	"errors"
	"fmt"
)

var (
	// ErrAllocation is returned when a block buffer cannot be sized or allocated.
	ErrAllocation = errors.New("block allocation failed")

	// ErrInvalidBlock is returned for block coordinates outside the band grid.
	ErrInvalidBlock = errors.New("block offset out of range")

	// ErrClosed is returned when an operation is attempted on a closed band cache or accountant.
	ErrClosed = errors.New("block cache closed")

	// ErrWriteBackDisabled is returned by FlushCache when dirty blocks were
	// retained because dirty block writing is disabled for the band.
	ErrWriteBackDisabled = errors.New("dirty block writing disabled")

	// ErrInvalidGeometry is returned when a band geometry cannot describe a block grid.
	ErrInvalidGeometry = errors.New("invalid band geometry")
)

// WriteBackError reports a block whose dirty data could not be written to the
// backing store. The block stays resident and dirty.
type WriteBackError struct {
	X, Y int
	Err  error
}

func (e *WriteBackError) Error() string {
	return fmt.Sprintf("write back block (%d,%d): %v", e.X, e.Y, e.Err)
}

func (e *WriteBackError) Unwrap() error { return e.Err }

// FailedBlocks extracts the coordinates of every WriteBackError joined in err.
func FailedBlocks(err error) []Coord {
	if err == nil {
		return nil
	}
	var out []Coord
	var walk func(error)
	walk = func(err error) {
		var wbe *WriteBackError
		if errors.As(err, &wbe) {
			out = append(out, Coord{X: wbe.X, Y: wbe.Y})
			return
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				walk(e)
			}
		}
	}
	walk(err)
	return out
}
