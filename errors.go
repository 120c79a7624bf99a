package tilecache

import (
	"errors"
	"fmt"

	"github.com/hupe1980/tilecache/blockcache"
	"github.com/hupe1980/tilecache/internal/resource"
	"github.com/hupe1980/tilecache/tilestore"
)

var (
	// ErrAllocation is returned when a block buffer cannot be allocated.
	ErrAllocation = blockcache.ErrAllocation

	// ErrInvalidBlock is returned for block coordinates outside a band grid.
	ErrInvalidBlock = blockcache.ErrInvalidBlock

	// ErrClosed is returned when an operation is attempted on a closed cache.
	ErrClosed = blockcache.ErrClosed

	// ErrWriteBackDisabled is returned by a flush that retained dirty blocks
	// because dirty block writing is disabled for their band.
	ErrWriteBackDisabled = blockcache.ErrWriteBackDisabled

	// ErrInvalidGeometry is returned for a band geometry that cannot describe a block grid.
	ErrInvalidGeometry = blockcache.ErrInvalidGeometry

	// ErrMemoryLimitExceeded is returned when an allocation would exceed the hard memory limit.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded

	// ErrNotFound is returned by stores for a tile that was never written.
	ErrNotFound = tilestore.ErrNotFound

	// ErrCorrupt is returned by stores for a tile whose frame fails validation.
	ErrCorrupt = tilestore.ErrCorrupt

	// ErrDuplicateBand is returned when a band name is opened twice on one cache.
	ErrDuplicateBand = errors.New("band already open")
)

// WriteBackError reports a block whose dirty data could not be written.
type WriteBackError = blockcache.WriteBackError

// ErrInvalidBudget indicates a cache budget that cannot be parsed.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidBudget struct {
	Value string
	cause error
}

func (e *ErrInvalidBudget) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("invalid cache budget %q: %v", e.Value, e.cause)
	}
	return fmt.Sprintf("invalid cache budget %q", e.Value)
}

func (e *ErrInvalidBudget) Unwrap() error { return e.cause }

// ErrBandNotFound indicates a band name that is not open on the cache.
type ErrBandNotFound struct {
	Name string
}

func (e *ErrBandNotFound) Error() string {
	return fmt.Sprintf("band not found: %q", e.Name)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Joined write-back failures are returned as is so FailedBlocks keeps
	// working on the result.
	if _, ok := err.(interface{ Unwrap() []error }); ok {
		return err
	}

	if errors.Is(err, blockcache.ErrClosed) {
		return ErrClosed
	}

	return err
}

// FailedBlocks extracts the coordinates of every block that failed to write
// back from an error returned by a flush.
func FailedBlocks(err error) []blockcache.Coord {
	return blockcache.FailedBlocks(err)
}
