package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/joshuapare/slabkit/internal/format"
	"github.com/joshuapare/slabkit/internal/logger"
	"github.com/joshuapare/slabkit/slab/alloc"
	"github.com/joshuapare/slabkit/slab/stress"
)

// stressOptions holds the flags of the stress command.
type stressOptions struct {
	Seed       uint64
	Runs       int
	Workers    int
	Steps      int
	Warmup     int
	MaxSlabs   int
	ChunkRatio float64
	Drain      bool
	NoVerify   bool
	Trace      bool
}

var stressOpts = stressOptions{
	Seed:     1,
	Runs:     1,
	Workers:  4,
	Steps:    1000,
	Warmup:   30,
	MaxSlabs: 128,
}

func init() {
	cmd := newStressCmd()
	cmd.Flags().Uint64Var(&stressOpts.Seed, "seed", stressOpts.Seed, "Seed of the first run")
	cmd.Flags().IntVar(&stressOpts.Runs, "runs", stressOpts.Runs, "Number of runs, with consecutive seeds")
	cmd.Flags().IntVar(&stressOpts.Workers, "workers", stressOpts.Workers, "Runs executed in parallel")
	cmd.Flags().IntVar(&stressOpts.Steps, "steps", stressOpts.Steps, "Mixed allocate/free steps per run")
	cmd.Flags().IntVar(&stressOpts.Warmup, "warmup", stressOpts.Warmup, "Warm-up allocations per run")
	cmd.Flags().IntVar(&stressOpts.MaxSlabs, "max-slabs", stressOpts.MaxSlabs, "Largest slab run requested")
	cmd.Flags().Float64Var(&stressOpts.ChunkRatio, "chunk-ratio", 0, "Fraction of allocations served as chunks")
	cmd.Flags().BoolVar(&stressOpts.Drain, "drain", false, "Free everything at the end of each run")
	cmd.Flags().BoolVar(&stressOpts.NoVerify, "no-verify", false, "Skip the invariant check after each step")
	cmd.Flags().BoolVar(&stressOpts.Trace, "trace", false, "Print every operation and the zone bitmaps (single run only)")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stress",
		Short: "Run randomized allocation stress tests",
		Long: `The stress command drives fresh allocators with random slab-run and chunk
allocations interleaved with frees, checking every allocator invariant after each
step. Runs are reproducible from their seed.

Example:
  slabctl stress
  slabctl stress --runs 16 --workers 8 --chunk-ratio 0.5
  slabctl stress --seed 42 --steps 20 --trace`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(cmd.Context(), globalAllocatorConfig(), stressOpts)
		},
	}
}

// StressOutput is the JSON form of the stress command.
type StressOutput struct {
	Runs   []StressRun `json:"runs"`
	Failed int         `json:"failed_allocations"`
}

// StressRun is one run in StressOutput.
type StressRun struct {
	Seed        uint64 `json:"seed"`
	Allocs      int    `json:"allocs"`
	Frees       int    `json:"frees"`
	Failures    int    `json:"failures"`
	Live        int    `json:"live"`
	PeakLive    int    `json:"peak_live"`
	LiveBytes   uint64 `json:"live_bytes"`
	Zones       int    `json:"zones"`
	Fingerprint string `json:"fingerprint"`
}

func runStress(ctx context.Context, cfg allocatorConfig, opts stressOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Runs < 1 {
		return fmt.Errorf("--runs must be at least 1")
	}
	if opts.Trace && opts.Runs > 1 {
		return fmt.Errorf("--trace needs a single run")
	}

	runCfg := stress.Config{
		Warmup:     opts.Warmup,
		Steps:      opts.Steps,
		MaxSlabs:   opts.MaxSlabs,
		ChunkRatio: opts.ChunkRatio,
		Verify:     !opts.NoVerify,
		Drain:      opts.Drain,
		Logger:     logger.L,
	}
	if opts.Trace {
		runCfg.Trace = os.Stdout
	}

	seeds := make([]uint64, opts.Runs)
	for i := range seeds {
		seeds[i] = opts.Seed + uint64(i)
	}

	var (
		mu      sync.Mutex
		closers []func() error
	)
	factory := func(uint64) (*alloc.SlabAllocator, error) {
		mu.Lock()
		defer mu.Unlock()
		a, closeFn, err := newAllocator(cfg)
		if err != nil {
			return nil, err
		}
		closers = append(closers, closeFn)
		return a, nil
	}
	printVerbose("Running %d run(s) from seed %d on %d worker(s)\n", opts.Runs, opts.Seed, opts.Workers)
	results, err := stress.RunSeeds(ctx, seeds, opts.Workers, runCfg, factory)
	for _, closeFn := range closers {
		_ = closeFn()
	}
	if err != nil {
		return err
	}

	out := StressOutput{}
	for _, r := range results {
		out.Failed += r.Failures
		out.Runs = append(out.Runs, StressRun{
			Seed:        r.Seed,
			Allocs:      r.Allocs,
			Frees:       r.Frees,
			Failures:    r.Failures,
			Live:        r.Live,
			PeakLive:    r.PeakLive,
			LiveBytes:   r.LiveBytes,
			Zones:       r.Zones,
			Fingerprint: fmt.Sprintf("%016x", r.Fingerprint),
		})
	}

	if jsonOut {
		return printJSON(out)
	}

	for _, r := range out.Runs {
		printInfo("%s %s\n", render(headerStyle, fmt.Sprintf("Seed %d:", r.Seed)), render(freeStyle, "ok"))
		printInfo("  Allocations: %s (%s freed, %s failed)\n",
			format.Count(r.Allocs), format.Count(r.Frees), format.Count(r.Failures))
		printInfo("  Live: %s (peak %s), %s\n",
			format.Count(r.Live), format.Count(r.PeakLive), format.Bytes(r.LiveBytes))
		printInfo("  Zones: %d\n", r.Zones)
		printInfo("  Fingerprint: %s\n", render(mutedStyle, r.Fingerprint))
	}
	return nil
}
