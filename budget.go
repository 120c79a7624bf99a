package tilecache

import (
	"errors"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/hupe1980/tilecache/blockcache"
)

// EnvCacheMax names the environment variable consulted for the budget when
// no budget option is given. It accepts every form ParseBudget does.
const EnvCacheMax = "TILECACHE_CACHEMAX"

// DefaultBudget is used when neither options, the environment nor the
// physical memory size yield a budget.
const DefaultBudget = blockcache.DefaultBudget

// DefaultMemoryShare is the percentage of physical memory used as budget
// when nothing else is configured.
const DefaultMemoryShare = 5

// Plain integers below this value are read as MiB.
const plainMiBLimit = 100000

var errNoPhysicalMemory = errors.New("physical memory size unavailable")

// ParseBudget parses a cache budget. Accepted forms:
//
//	"25%"     share of physical memory
//	"512"     plain integers below 100000 are MiB
//	"1048576" larger plain integers are bytes
//	"512MB"   sizes with a unit, as understood by go-humanize ("1 GiB", "64k")
func ParseBudget(s string) (int64, error) {
	return parseBudget(s, physicalMemory)
}

func parseBudget(s string, physMem func() (int64, bool)) (int64, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return 0, &ErrInvalidBudget{Value: s}
	}

	if pct, ok := strings.CutSuffix(v, "%"); ok {
		p, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil {
			return 0, &ErrInvalidBudget{Value: s, cause: err}
		}
		if p < 0 || p > 100 || math.IsNaN(p) {
			return 0, &ErrInvalidBudget{Value: s}
		}
		total, ok := physMem()
		if !ok {
			return 0, &ErrInvalidBudget{Value: s, cause: errNoPhysicalMemory}
		}
		return int64(float64(total) * p / 100), nil
	}

	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n < 0 {
			return 0, &ErrInvalidBudget{Value: s}
		}
		if n < plainMiBLimit {
			return n << 20, nil
		}
		return n, nil
	}

	n, err := humanize.ParseBytes(v)
	if err != nil {
		return 0, &ErrInvalidBudget{Value: s, cause: err}
	}
	if n > math.MaxInt64 {
		return 0, &ErrInvalidBudget{Value: s}
	}
	return int64(n), nil
}

// resolveBudget returns the configured budget and a label naming where it
// came from.
func (o *options) resolveBudget(logger *Logger) (int64, string, error) {
	if o.budgetSet {
		if o.budget < 0 {
			return 0, "", &ErrInvalidBudget{Value: strconv.FormatInt(o.budget, 10)}
		}
		return o.budget, "option", nil
	}

	if o.budgetString != "" {
		n, err := parseBudget(o.budgetString, o.physicalMemory)
		if err != nil {
			return 0, "", err
		}
		return n, "option", nil
	}

	if v, ok := o.lookupEnv(EnvCacheMax); ok && strings.TrimSpace(v) != "" {
		n, err := parseBudget(v, o.physicalMemory)
		if err == nil {
			return n, "env", nil
		}
		logger.Warn("ignoring invalid cache budget", "env", EnvCacheMax, "error", err)
	}

	if total, ok := o.physicalMemory(); ok && total > 0 {
		return total * DefaultMemoryShare / 100, "physical memory", nil
	}

	return DefaultBudget, "default", nil
}

func lookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}
