package tilestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/tilecache/blockcache"
)

var _ blockcache.BandIO = (*Band)(nil)

// BandOption configures a Band.
type BandOption func(*bandOptions)

type bandOptions struct {
	codec   Codec
	fill    byte
	timeout time.Duration
}

// WithCodec sets the compression used for written tiles. Defaults to CodecZstd.
func WithCodec(c Codec) BandOption {
	return func(o *bandOptions) {
		o.codec = c
	}
}

// WithFill sets the byte value missing tiles read as. Defaults to zero.
func WithFill(v byte) BandOption {
	return func(o *bandOptions) {
		o.fill = v
	}
}

// WithTimeout bounds each store call. Zero means no per-call deadline.
func WithTimeout(d time.Duration) BandOption {
	return func(o *bandOptions) {
		o.timeout = d
	}
}

// Band adapts a Store to blockcache.BandIO for one named band.
type Band struct {
	ctx   context.Context
	store Store
	name  string
	opts  bandOptions
}

// NewBand creates a band adapter. ctx bounds every read and write issued
// through it.
func NewBand(ctx context.Context, store Store, name string, optFns ...BandOption) *Band {
	opts := bandOptions{codec: CodecZstd}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Band{ctx: ctx, store: store, name: name, opts: opts}
}

// Name returns the band name used in tile keys.
func (b *Band) Name() string { return b.name }

func (b *Band) key(x, y int) Key {
	return Key{Band: b.name, X: x, Y: y}
}

func (b *Band) callCtx() (context.Context, context.CancelFunc) {
	if b.opts.timeout > 0 {
		return context.WithTimeout(b.ctx, b.opts.timeout)
	}
	return b.ctx, func() {}
}

// ReadBlock implements blockcache.BandIO.
func (b *Band) ReadBlock(x, y int, buf []byte) error {
	ctx, cancel := b.callCtx()
	defer cancel()

	frame, err := b.store.Get(ctx, b.key(x, y))
	if errors.Is(err, ErrNotFound) {
		for i := range buf {
			buf[i] = b.opts.fill
		}
		return nil
	}
	if err != nil {
		return err
	}

	if err := DecodeInto(frame, buf); err != nil {
		return fmt.Errorf("tile %s: %w", b.key(x, y), err)
	}
	return nil
}

// WriteBlock implements blockcache.BandIO.
func (b *Band) WriteBlock(x, y int, buf []byte) error {
	frame, err := Encode(b.opts.codec, buf)
	if err != nil {
		return err
	}

	ctx, cancel := b.callCtx()
	defer cancel()
	return b.store.Put(ctx, b.key(x, y), frame)
}

// DeleteBlock removes the stored tile of (x, y).
func (b *Band) DeleteBlock(x, y int) error {
	ctx, cancel := b.callCtx()
	defer cancel()
	return b.store.Delete(ctx, b.key(x, y))
}
