package syncer

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// fetchAllByKey executes fetch concurrently across keys using a bounded
// worker pool. The first error cancels the remaining fetches.
func fetchAllByKey[K comparable, T any](
	ctx context.Context,
	keys []K,
	workers int,
	fetch func(context.Context, K) (T, error),
) (map[K]T, error) {
	out := make(map[K]T, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	if workers <= 0 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	for _, key := range keys {
		key := key
		g.Go(func() error {
			v, err := fetch(gctx, key)
			if err != nil {
				return err
			}
			mu.Lock()
			out[key] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
