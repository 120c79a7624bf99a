package tilestore

import (
	"context"
	"errors"

	"github.com/hupe1980/tilecache/internal/cache"
)

// CachingStore keeps recently read and written tile frames of a slower
// Store, such as an object store, in memory. Writes go through to the
// inner store before they are cached. Missing tiles are not cached.
type CachingStore struct {
	inner  Store
	frames *cache.Sharded[Key]
}

// NewCachingStore wraps inner with a frame cache of at most capacity bytes.
func NewCachingStore(inner Store, capacity int64) *CachingStore {
	return &CachingStore{
		inner:  inner,
		frames: cache.NewSharded[Key](capacity, nil),
	}
}

func (s *CachingStore) Get(ctx context.Context, key Key) ([]byte, error) {
	if frame, ok := s.frames.Get(key); ok {
		return append([]byte(nil), frame...), nil
	}
	frame, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	s.frames.Set(key, append([]byte(nil), frame...))
	return frame, nil
}

func (s *CachingStore) Put(ctx context.Context, key Key, data []byte) error {
	s.frames.Remove(key)
	if err := s.inner.Put(ctx, key, data); err != nil {
		return err
	}
	s.frames.Set(key, append([]byte(nil), data...))
	return nil
}

func (s *CachingStore) Delete(ctx context.Context, key Key) error {
	s.frames.Remove(key)
	err := s.inner.Delete(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Purge drops every cached frame.
func (s *CachingStore) Purge() { s.frames.Purge() }

// Stats returns frame cache hits and misses.
func (s *CachingStore) Stats() (hits, misses int64) { return s.frames.Stats() }

// Size returns the bytes of cached frames.
func (s *CachingStore) Size() int64 { return s.frames.Size() }
