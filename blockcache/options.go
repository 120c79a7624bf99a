package blockcache

import (
	"io"
	"log/slog"

	"github.com/hupe1980/tilecache/internal/resource"
)

// DefaultBudget is the accountant budget used when none is configured.
const DefaultBudget int64 = 64 << 20

// DefaultDenseThreshold is the largest grid, in block slots, that
// StrategyAuto serves with a dense array.
const DefaultDenseThreshold int64 = 1 << 20

// AccountantOption configures an Accountant.
type AccountantOption func(*accountantOptions)

type accountantOptions struct {
	budget  int64
	rc      *resource.Controller
	logger  *slog.Logger
	metrics MetricsObserver
}

// WithBudget sets the soft memory budget in bytes.
func WithBudget(bytes int64) AccountantOption {
	return func(o *accountantOptions) {
		o.budget = bytes
	}
}

// WithResourceController sets the governor for hard memory limits and write-back throughput.
func WithResourceController(rc *resource.Controller) AccountantOption {
	return func(o *accountantOptions) {
		o.rc = rc
	}
}

// WithLogger sets the logger. Defaults to a discard logger.
func WithLogger(l *slog.Logger) AccountantOption {
	return func(o *accountantOptions) {
		o.logger = l
	}
}

// WithMetricsObserver sets the metrics observer.
func WithMetricsObserver(m MetricsObserver) AccountantOption {
	return func(o *accountantOptions) {
		o.metrics = m
	}
}

// BandOption configures a band cache.
type BandOption func(*bandOptions)

type bandOptions struct {
	name           string
	strategy       Strategy
	denseThreshold int64
}

// WithName labels the band in log records.
func WithName(name string) BandOption {
	return func(o *bandOptions) {
		o.name = name
	}
}

// WithStrategy forces the index strategy.
func WithStrategy(s Strategy) BandOption {
	return func(o *bandOptions) {
		o.strategy = s
	}
}

// WithDenseThreshold sets the largest grid, in block slots, that
// StrategyAuto serves with a dense array.
func WithDenseThreshold(slots int64) BandOption {
	return func(o *bandOptions) {
		o.denseThreshold = slots
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
