package cache

import (
	"hash/maphash"

	"github.com/hupe1980/tilecache/internal/resource"
)

const numShards = 64

// Sharded is an LRU cache split over 64 shards to reduce lock contention.
// Recency is tracked per shard.
type Sharded[K comparable] struct {
	shards [numShards]*LRU[K]
	seed   maphash.Seed
}

// NewSharded creates a sharded cache. The capacity is divided evenly
// across all shards.
func NewSharded[K comparable](capacity int64, rc *resource.Controller) *Sharded[K] {
	shardCapacity := capacity / numShards
	if shardCapacity < 1 {
		shardCapacity = 1
	}

	s := &Sharded[K]{
		seed: maphash.MakeSeed(),
	}
	for i := range numShards {
		s.shards[i] = NewLRU[K](shardCapacity, rc)
	}
	return s
}

func (s *Sharded[K]) shard(key K) *LRU[K] {
	return s.shards[maphash.Comparable(s.seed, key)%numShards]
}

// Get returns the cached value of key.
func (s *Sharded[K]) Get(key K) ([]byte, bool) {
	return s.shard(key).Get(key)
}

// Set caches b under key.
func (s *Sharded[K]) Set(key K, b []byte) {
	s.shard(key).Set(key, b)
}

// Remove drops key.
func (s *Sharded[K]) Remove(key K) bool {
	return s.shard(key).Remove(key)
}

// Purge drops every value.
func (s *Sharded[K]) Purge() {
	for i := range numShards {
		s.shards[i].Purge()
	}
}

// Stats returns aggregated hit/miss statistics.
func (s *Sharded[K]) Stats() (hits, misses int64) {
	for i := range numShards {
		h, m := s.shards[i].Stats()
		hits += h
		misses += m
	}
	return hits, misses
}

// Len returns the number of cached values across all shards.
func (s *Sharded[K]) Len() int {
	var n int
	for i := range numShards {
		n += s.shards[i].Len()
	}
	return n
}

// Size returns the total size across all shards.
func (s *Sharded[K]) Size() int64 {
	var total int64
	for i := range numShards {
		total += s.shards[i].Size()
	}
	return total
}

type shardStats struct {
	ShardID int
	Size    int64
	Hits    int64
	Misses  int64
}

func (s *Sharded[K]) shardStats() []shardStats {
	stats := make([]shardStats, numShards)
	for i := range numShards {
		h, m := s.shards[i].Stats()
		stats[i] = shardStats{
			ShardID: i,
			Size:    s.shards[i].Size(),
			Hits:    h,
			Misses:  m,
		}
	}
	return stats
}
