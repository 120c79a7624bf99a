package tilestore

import (
	"context"
	"errors"
	"strconv"
)

var (
	// ErrNotFound is returned when a tile does not exist.
	ErrNotFound = errors.New("tile not found")

	// ErrCorrupt is returned when a stored tile fails validation.
	ErrCorrupt = errors.New("tile corrupt")
)

// Key identifies one tile of a band.
type Key struct {
	Band string
	X, Y int
}

// Path returns the slash separated object name "band/y/x.tile".
func (k Key) Path() string {
	return k.Band + "/" + strconv.Itoa(k.Y) + "/" + strconv.Itoa(k.X) + ".tile"
}

func (k Key) String() string {
	return k.Path()
}

// Store persists encoded tiles.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the stored bytes of key, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Put stores data under key, replacing any previous value.
	Put(ctx context.Context, key Key, data []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error
}
