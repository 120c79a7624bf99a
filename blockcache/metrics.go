package blockcache

import "time"

// MetricsObserver defines the interface for observing cache events.
type MetricsObserver interface {
	// OnLookup is called for every TryGetLockedBlock.
	OnLookup(hit bool)

	// OnEviction is called when a block is evicted to honor the budget.
	OnEviction(bytes int64, dirty bool)

	// OnWriteBack is called after every write-back attempt.
	OnWriteBack(duration time.Duration, bytes int, err error)

	// OnOvershoot is called when eviction stops above budget because
	// nothing else is evictable.
	OnOvershoot(used, budget int64)

	// OnBlockFreed is called when a block buffer is physically released.
	OnBlockFreed(bytes int64)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnLookup(bool)                         {}
func (NoopMetricsObserver) OnEviction(int64, bool)                {}
func (NoopMetricsObserver) OnWriteBack(time.Duration, int, error) {}
func (NoopMetricsObserver) OnOvershoot(int64, int64)              {}
func (NoopMetricsObserver) OnBlockFreed(int64)                    {}
