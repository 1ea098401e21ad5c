// Package stress drives a SlabAllocator with random allocations and frees and checks
// its invariants after every step.
package stress

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/tidwall/hashmap"
	"golang.org/x/exp/rand"

	"github.com/joshuapare/slabkit/slab/alloc"
)

// Config controls a stress run.
type Config struct {
	Seed uint64

	// Warmup allocations of max(1, sqrt(uniform(1, 200))) slabs made before the
	// mixed phase.
	Warmup int

	// Steps of the mixed phase. Each step allocates with probability 2/3 and frees
	// a random live allocation otherwise.
	Steps int

	// MaxSlabs bounds the slab count of a whole-slab request. A one-slab request
	// is not a slab run: it fits the top chunk level, whose one-slab groups stay
	// reserved after their chunk is freed.
	MaxSlabs int

	// ChunkRatio is the fraction of mixed-phase allocations that request a chunk
	// (1..MaxChunkSize bytes) instead of a slab run.
	ChunkRatio float64

	// Verify runs SlabAllocator.Verify after every step.
	Verify bool

	// Drain frees every remaining allocation once the steps are done.
	Drain bool

	// Trace, when set, receives one line per operation followed by the allocator's
	// visualization.
	Trace io.Writer

	Logger *slog.Logger
}

// DefaultConfig returns the classic slab test: 30 warm-up allocations followed by
// 1000 mixed steps of 1..128 slabs, verified after every step.
func DefaultConfig(seed uint64) Config {
	return Config{
		Seed:     seed,
		Warmup:   30,
		Steps:    1000,
		MaxSlabs: 128,
		Verify:   true,
	}
}

// Result summarises a run.
type Result struct {
	Seed        uint64
	Allocs      int
	Frees       int
	Failures    int // allocations the backing could not serve
	Live        int
	PeakLive    int
	LiveBytes   uint64
	Zones       int
	Fingerprint uint64
}

// ErrInvalidConfig is returned for configurations that cannot run.
var ErrInvalidConfig = errors.New("stress: invalid config")

type entry struct {
	id  alloc.Identifier
	loc alloc.Allocation
}

type runner struct {
	cfg   Config
	a     *alloc.SlabAllocator
	rng   *rand.Rand
	live  []entry
	index hashmap.Map[alloc.Identifier, int] // position in live
	res   Result
}

// Run executes cfg against a. It stops at the first failed verification, or when an
// identifier is handed out while still live, and returns an error naming the step.
// Invariant panics from the allocator are not recovered.
func Run(a *alloc.SlabAllocator, cfg Config) (Result, error) {
	if cfg.MaxSlabs < 1 || cfg.Steps < 0 || cfg.Warmup < 0 || cfg.ChunkRatio < 0 || cfg.ChunkRatio > 1 {
		return Result{}, fmt.Errorf("%w: %+v", ErrInvalidConfig, cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &runner{
		cfg: cfg,
		a:   a,
		rng: rand.New(rand.NewSource(cfg.Seed)),
		res: Result{Seed: cfg.Seed},
	}

	for step := range cfg.Warmup {
		numSlabs := max(1, int(math.Sqrt(float64(r.uniform(1, 200)))))
		if err := r.allocSlabs(numSlabs); err != nil {
			return r.finish(), r.wrap("warmup", step, err)
		}
		if err := r.check(); err != nil {
			return r.finish(), r.wrap("warmup", step, err)
		}
	}

	for step := range cfg.Steps {
		var err error
		if r.uniform(0, 2) != 0 || len(r.live) == 0 {
			if cfg.ChunkRatio > 0 && r.rng.Float64() < cfg.ChunkRatio {
				err = r.alloc(uint64(r.uniform(1, int(a.MaxChunkSize()))))
			} else {
				err = r.allocSlabs(r.uniform(1, cfg.MaxSlabs))
			}
		} else {
			r.free(r.rng.Intn(len(r.live)))
		}
		if err == nil {
			err = r.check()
		}
		if err != nil {
			return r.finish(), r.wrap("mixed", step, err)
		}
	}

	if cfg.Drain {
		for step := 0; len(r.live) > 0; step++ {
			r.free(len(r.live) - 1)
			if err := r.check(); err != nil {
				return r.finish(), r.wrap("drain", step, err)
			}
		}
	}
	return r.finish(), nil
}

// ErrDuplicate reports an identifier returned by Alloc while an earlier allocation
// with the same identifier was still live.
var ErrDuplicate = errors.New("stress: identifier handed out twice")

// uniform returns an integer in [lo, hi].
func (r *runner) uniform(lo, hi int) int {
	return lo + r.rng.Intn(hi-lo+1)
}

func (r *runner) allocSlabs(numSlabs int) error {
	return r.alloc(uint64(numSlabs) * r.a.SlabSize())
}

func (r *runner) alloc(size uint64) error {
	id, loc := r.a.Alloc(size)
	if !loc.IsValid() {
		r.res.Failures++
		r.trace("Allocating: %d bytes failed\n", size)
		return nil
	}
	if _, dup := r.index.Get(id); dup {
		return fmt.Errorf("%w: %s", ErrDuplicate, id)
	}
	r.index.Set(id, len(r.live))
	r.live = append(r.live, entry{id: id, loc: loc})
	r.res.Allocs++
	r.res.PeakLive = max(r.res.PeakLive, len(r.live))
	r.trace("Allocating: %d bytes -> %s zone:%d offset:%d\n", size, id, loc.Zone, loc.Offset)
	return nil
}

// free releases live[i], moving the last entry into its place.
func (r *runner) free(i int) {
	e := r.live[i]
	last := len(r.live) - 1
	r.live[i] = r.live[last]
	r.index.Set(r.live[i].id, i)
	r.live = r.live[:last]
	r.index.Delete(e.id)

	r.a.Free(e.id)
	r.res.Frees++
	r.trace("Freeing: %s\n", e.id)
}

func (r *runner) trace(format string, args ...any) {
	if r.cfg.Trace != nil {
		fmt.Fprintf(r.cfg.Trace, format, args...)
	}
}

func (r *runner) check() error {
	if r.cfg.Trace != nil {
		if err := r.a.Visualize(r.cfg.Trace, false); err != nil {
			return err
		}
	}
	if !r.cfg.Verify {
		return nil
	}
	return r.a.Verify()
}

func (r *runner) wrap(phase string, step int, err error) error {
	r.cfg.Logger.Error("stress run failed", "seed", r.cfg.Seed, "phase", phase, "step", step, "error", err)
	return fmt.Errorf("stress: seed %d %s step %d: %w", r.cfg.Seed, phase, step, err)
}

func (r *runner) finish() Result {
	r.res.Live = len(r.live)
	r.res.LiveBytes = 0
	for _, e := range r.live {
		r.res.LiveBytes += e.loc.Size
	}
	r.res.Zones = r.a.NumZones()
	r.res.Fingerprint = r.a.Fingerprint()
	r.cfg.Logger.Debug("stress run finished",
		"seed", r.res.Seed, "allocs", r.res.Allocs, "frees", r.res.Frees,
		"failures", r.res.Failures, "zones", r.res.Zones)
	return r.res
}

func (res Result) String() string {
	return fmt.Sprintf("seed=%d allocs=%d frees=%d failures=%d live=%d peak=%d zones=%d fingerprint=%016x",
		res.Seed, res.Allocs, res.Frees, res.Failures, res.Live, res.PeakLive, res.Zones, res.Fingerprint)
}
