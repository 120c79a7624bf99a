package blockcache

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Prefetch reads coords into bc with at most limit reads in flight. Blocks
// already cached are only touched in the LRU. It returns the first read
// error; blocks read before the failure stay cached.
func Prefetch(ctx context.Context, bc BandCache, coords []Coord, limit int) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, c := range coords {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := bc.GetLockedBlock(c.X, c.Y, true)
			if err != nil {
				return err
			}
			b.Release()
			return nil
		})
	}
	return g.Wait()
}
