package alloc

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/joshuapare/slabkit/slab/zone"
)

const (
	// DefaultSlabSize is the slab size used by DefaultOptions.
	DefaultSlabSize = 256 << 10

	// DefaultZoneSize is the zone size used by DefaultOptions.
	DefaultZoneSize = 128 << 20

	// MinSlabSize and MaxSlabSize bound Options.SlabSize. The upper bound keeps
	// chunk ids of the smallest level within an Identifier.
	MinSlabSize = 256
	MaxSlabSize = 64 << 20

	// MinAlignment is the alignment every allocation offset satisfies.
	MinAlignment = 128
)

// Options configures a SlabAllocator.
type Options struct {
	// SlabSize is the allocation granularity of zones. Must be a power of two
	// between MinSlabSize and MaxSlabSize.
	SlabSize uint64

	// ZoneSize is the size requested from Backing for ordinary zones. Must be a
	// multiple of 64 slabs and at most 4096 slabs.
	ZoneSize uint64

	// Backing commits memory for new zones. Required.
	Backing ZoneBackingFunc

	// UserContext is passed to Backing unchanged.
	UserContext any

	// Logger receives debug records about zone growth and backing failures.
	// Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns options for 256 KiB slabs in 128 MiB zones with the given
// backing function.
func DefaultOptions(backing ZoneBackingFunc) Options {
	return Options{
		SlabSize: DefaultSlabSize,
		ZoneSize: DefaultZoneSize,
		Backing:  backing,
	}
}

func checkOptions(opts *Options) error {
	if opts.SlabSize < MinSlabSize || opts.SlabSize > MaxSlabSize ||
		opts.SlabSize&(opts.SlabSize-1) != 0 {
		return fmt.Errorf("%w: %d (want a power of two in [%d, %d])",
			ErrSlabSize, opts.SlabSize, MinSlabSize, MaxSlabSize)
	}
	if opts.ZoneSize%opts.SlabSize != 0 {
		return fmt.Errorf("%w: %d is not a multiple of the slab size %d",
			ErrZoneSize, opts.ZoneSize, opts.SlabSize)
	}
	numSlabs := opts.ZoneSize / opts.SlabSize
	if numSlabs < zone.MinSlabs || numSlabs > zone.MaxSlabs || numSlabs%zone.GroupSize != 0 {
		return fmt.Errorf("%w: %d slabs (want a multiple of %d in [%d, %d])",
			ErrZoneSize, numSlabs, zone.GroupSize, zone.MinSlabs, zone.MaxSlabs)
	}
	if opts.Backing == nil {
		return ErrNoBacking
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return nil
}
