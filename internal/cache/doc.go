// Package cache provides byte-bounded LRU caches for immutable byte slices.
//
// The Sharded cache spreads keys over 64 independently locked LRU shards so
// that concurrent readers of unrelated keys rarely contend. Both caches can
// report their memory to a resource.Controller so a hard memory limit covers
// them as well.
package cache
