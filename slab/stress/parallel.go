package stress

import (
	"context"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"github.com/joshuapare/slabkit/slab/alloc"
)

// Factory returns a fresh allocator for one run.
type Factory func(seed uint64) (*alloc.SlabAllocator, error)

// RunSeeds runs cfg once per seed, each on its own allocator, with at most workers
// runs in flight. Results are ordered by seed. The first error cancels runs that have
// not started yet.
func RunSeeds(ctx context.Context, seeds []uint64, workers int, cfg Config, newAllocator Factory) ([]Result, error) {
	p := pool.NewWithResults[Result]().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(max(workers, 1))

	for _, seed := range seeds {
		p.Go(func(ctx context.Context) (Result, error) {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			a, err := newAllocator(seed)
			if err != nil {
				return Result{}, err
			}
			runCfg := cfg
			runCfg.Seed = seed
			return Run(a, runCfg)
		})
	}

	results, err := p.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Seed < results[j].Seed })
	return results, err
}
