package tilecache

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_Helpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).
		WithCache("c1").
		WithBand("red")
	ctx := context.Background()

	l.LogBudget(ctx, 64<<20, "env")
	assert.Contains(t, buf.String(), "budget=\"64 MiB\"")
	assert.Contains(t, buf.String(), "source=env")
	assert.Contains(t, buf.String(), "cache=c1 band=red")
	buf.Reset()

	l.LogFlush(ctx, 2, nil)
	assert.Contains(t, buf.String(), "level=INFO")
	assert.Contains(t, buf.String(), "bands=2")
	buf.Reset()

	l.LogFlush(ctx, 1, errors.New("disk full"))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "disk full")
	buf.Reset()

	l.LogBandOpened(ctx, "nir", "hashset", 42)
	assert.Contains(t, buf.String(), "strategy=hashset")
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	l.LogFlush(context.Background(), 1, errors.New("ignored"))
	assert.NotNil(t, l.Logger)
}

func TestWithLogger_Nil(t *testing.T) {
	opts := defaultOptions()
	WithLogger(nil)(&opts)
	assert.NotNil(t, opts.logger)
}
