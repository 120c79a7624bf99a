package resource

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when memory limit would be exceeded.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for pixel buffers. Unlike the soft
	// cache budget it is never exceeded: reservations beyond it fail.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// MaxConcurrentWriteBacks is the maximum number of write-back calls in
	// flight across all bands. If 0, defaults to GOMAXPROCS.
	MaxConcurrentWriteBacks int64

	// WriteBackBytesPerSec is the maximum write-back throughput.
	// If 0, unlimited.
	WriteBackBytesPerSec int64
}

// Controller manages global resources (memory, write-back concurrency, IO).
type Controller struct {
	cfg Config

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// Concurrency
	wbSem *semaphore.Weighted

	// IO
	ioLimiter *rate.Limiter
	ioBurst   int
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentWriteBacks <= 0 {
		cfg.MaxConcurrentWriteBacks = int64(runtime.GOMAXPROCS(0))
	}

	c := &Controller{
		cfg:   cfg,
		wbSem: semaphore.NewWeighted(cfg.MaxConcurrentWriteBacks),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.WriteBackBytesPerSec > 0 {
		c.ioBurst = int(cfg.WriteBackBytesPerSec)
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.WriteBackBytesPerSec), c.ioBurst)
	}

	return c
}

// TryAcquireMemory attempts to reserve memory without blocking.
// Returns true if acquired, false if limit would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil {
		return true
	}
	if bytes <= 0 {
		return true
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return false
		}
	}

	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil {
		return
	}
	if bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireWriteBack reserves a write-back slot and waits until the IO limit
// allows bytes to be written. The slot must be returned with ReleaseWriteBack.
func (c *Controller) AcquireWriteBack(ctx context.Context, bytes int) error {
	if c == nil {
		return nil
	}
	if err := c.wbSem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := c.AcquireIO(ctx, bytes); err != nil {
		c.wbSem.Release(1)
		return err
	}
	return nil
}

// ReleaseWriteBack releases a write-back slot.
func (c *Controller) ReleaseWriteBack() {
	if c == nil {
		return
	}
	c.wbSem.Release(1)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than the limiter burst are split.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	for bytes > 0 {
		n := min(bytes, c.ioBurst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
