package tilecache

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/tilecache/blockcache"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// OnLookup is called for every cache lookup.
	OnLookup(hit bool)

	// OnEviction is called after a block is evicted to honor the budget.
	OnEviction(bytes int64, dirty bool)

	// OnWriteBack is called after each write-back attempt.
	// err is nil if successful.
	OnWriteBack(duration time.Duration, bytes int, err error)

	// OnOvershoot is called when the cache stays above budget because every
	// resident block is in use.
	OnOvershoot(used, budget int64)

	// OnBlockFreed is called when a block buffer is released.
	OnBlockFreed(bytes int64)
}

var _ blockcache.MetricsObserver = MetricsCollector(nil)

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) OnLookup(bool)                         {}
func (NoopMetricsCollector) OnEviction(int64, bool)                {}
func (NoopMetricsCollector) OnWriteBack(time.Duration, int, error) {}
func (NoopMetricsCollector) OnOvershoot(int64, int64)              {}
func (NoopMetricsCollector) OnBlockFreed(int64)                    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	Hits            atomic.Int64
	Misses          atomic.Int64
	Evictions       atomic.Int64
	DirtyEvictions  atomic.Int64
	EvictedBytes    atomic.Int64
	WriteBacks      atomic.Int64
	WriteBackErrors atomic.Int64
	WriteBackBytes  atomic.Int64
	WriteBackNanos  atomic.Int64
	Overshoots      atomic.Int64
	BlocksFreed     atomic.Int64
	FreedBytes      atomic.Int64
}

// OnLookup implements MetricsCollector.
func (b *BasicMetricsCollector) OnLookup(hit bool) {
	if hit {
		b.Hits.Add(1)
	} else {
		b.Misses.Add(1)
	}
}

// OnEviction implements MetricsCollector.
func (b *BasicMetricsCollector) OnEviction(bytes int64, dirty bool) {
	b.Evictions.Add(1)
	b.EvictedBytes.Add(bytes)
	if dirty {
		b.DirtyEvictions.Add(1)
	}
}

// OnWriteBack implements MetricsCollector.
func (b *BasicMetricsCollector) OnWriteBack(duration time.Duration, bytes int, err error) {
	b.WriteBacks.Add(1)
	b.WriteBackNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteBackErrors.Add(1)
		return
	}
	b.WriteBackBytes.Add(int64(bytes))
}

// OnOvershoot implements MetricsCollector.
func (b *BasicMetricsCollector) OnOvershoot(int64, int64) {
	b.Overshoots.Add(1)
}

// OnBlockFreed implements MetricsCollector.
func (b *BasicMetricsCollector) OnBlockFreed(bytes int64) {
	b.BlocksFreed.Add(1)
	b.FreedBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		Hits:              b.Hits.Load(),
		Misses:            b.Misses.Load(),
		HitRatio:          b.hitRatio(),
		Evictions:         b.Evictions.Load(),
		DirtyEvictions:    b.DirtyEvictions.Load(),
		EvictedBytes:      b.EvictedBytes.Load(),
		WriteBacks:        b.WriteBacks.Load(),
		WriteBackErrors:   b.WriteBackErrors.Load(),
		WriteBackBytes:    b.WriteBackBytes.Load(),
		WriteBackAvgNanos: b.avgWriteBackNanos(),
		Overshoots:        b.Overshoots.Load(),
		BlocksFreed:       b.BlocksFreed.Load(),
		FreedBytes:        b.FreedBytes.Load(),
	}
}

func (b *BasicMetricsCollector) hitRatio() float64 {
	hits, misses := b.Hits.Load(), b.Misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

func (b *BasicMetricsCollector) avgWriteBackNanos() int64 {
	count := b.WriteBacks.Load()
	if count == 0 {
		return 0
	}
	return b.WriteBackNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	Hits              int64
	Misses            int64
	HitRatio          float64
	Evictions         int64
	DirtyEvictions    int64
	EvictedBytes      int64
	WriteBacks        int64
	WriteBackErrors   int64
	WriteBackBytes    int64
	WriteBackAvgNanos int64
	Overshoots        int64
	BlocksFreed       int64
	FreedBytes        int64
}
