package tilecache

import (
	"log/slog"

	"github.com/hupe1980/tilecache/blockcache"
)

type options struct {
	budget           int64
	budgetSet        bool
	budgetString     string
	hardMemoryLimit  int64
	maxWriteBacks    int64
	writeBackRate    int64
	strategy         blockcache.Strategy
	denseThreshold   int64
	metricsCollector MetricsCollector
	logger           *Logger
	logLevel         *slog.Level
	lookupEnv        func(string) (string, bool)
	physicalMemory   func() (int64, bool)
}

// Option configures a Cache.
//
// The budget is resolved once in New, in this order: WithBudget,
// WithBudgetString, the TILECACHE_CACHEMAX environment variable, a share of
// physical memory, DefaultBudget. Use Cache.SetBudget to change it later.
type Option func(*options)

// WithBudget sets the soft cache budget in bytes.
func WithBudget(bytes int64) Option {
	return func(o *options) {
		o.budget = bytes
		o.budgetSet = true
	}
}

// WithBudgetString sets the soft cache budget from a string. See ParseBudget
// for the accepted forms.
func WithBudgetString(s string) Option {
	return func(o *options) {
		o.budgetString = s
	}
}

// WithHardMemoryLimit caps the bytes held by block buffers. Unlike the soft
// budget, block creation fails with ErrAllocation once the cap is reached.
// If 0, no hard limit is enforced.
func WithHardMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.hardMemoryLimit = bytes
	}
}

// WithMaxConcurrentWriteBacks limits write-back calls in flight across all
// bands. Defaults to GOMAXPROCS.
func WithMaxConcurrentWriteBacks(n int) Option {
	return func(o *options) {
		o.maxWriteBacks = int64(n)
	}
}

// WithWriteBackRateLimit limits write-back throughput in bytes per second.
// If 0, unlimited.
func WithWriteBackRateLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.writeBackRate = bytesPerSec
	}
}

// WithStrategy forces the block index strategy of every band opened on the
// cache. Per-band options passed to OpenBand take precedence.
func WithStrategy(s blockcache.Strategy) Option {
	return func(o *options) {
		o.strategy = s
	}
}

// WithDenseThreshold sets the largest grid, in block slots, served by a
// dense array when the strategy is automatic.
func WithDenseThreshold(slots int64) Option {
	return func(o *options) {
		o.denseThreshold = slots
	}
}

// WithMetricsCollector configures metrics collection for cache operations.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
//
// If nil is passed, NoopLogger is used.
//
// Example:
//
//	logger := tilecache.NewJSONLogger(slog.LevelInfo)
//	cache, err := tilecache.New(tilecache.WithLogger(logger))
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel enables text logging to stderr at the given level. It is
// ignored when WithLogger is also set.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logLevel = &level
	}
}

func defaultOptions() options {
	return options{
		metricsCollector: NoopMetricsCollector{},
		lookupEnv:        lookupEnv,
		physicalMemory:   physicalMemory,
	}
}
