package alloc

import (
	"log/slog"

	"github.com/joshuapare/slabkit/internal/buf"
	"github.com/joshuapare/slabkit/slab/chunk"
	"github.com/joshuapare/slabkit/slab/sizeclass"
	"github.com/joshuapare/slabkit/slab/verify"
	"github.com/joshuapare/slabkit/slab/zone"
)

// SlabAllocator hands out chunks and slab runs from zones committed through a
// ZoneBackingFunc.
//
// Requests up to MaxChunkSize are rounded up to the nearest chunk level and served
// from that level's chunk groups; larger requests take whole slabs directly from a
// zone. Zones and chunk groups are created on demand and never released.
//
// SlabAllocator is not safe for concurrent use.
type SlabAllocator struct {
	opts   Options
	table  *sizeclass.Table
	zones  []*zone.Zone
	levels []*chunk.Level
	log    *slog.Logger

	counters counters
}

type counters struct {
	allocs          uint64
	frees           uint64
	failedAllocs    uint64
	backingFailures uint64
}

// New returns an allocator for the given slab and zone sizes.
func New(slabSize, zoneSize uint64, backing ZoneBackingFunc) (*SlabAllocator, error) {
	return NewWithOptions(Options{
		SlabSize: slabSize,
		ZoneSize: zoneSize,
		Backing:  backing,
	})
}

// NewWithOptions returns an allocator configured by opts. No zone is committed until
// the first allocation.
func NewWithOptions(opts Options) (*SlabAllocator, error) {
	if err := checkOptions(&opts); err != nil {
		return nil, err
	}

	table := sizeclass.NewTable(opts.SlabSize)
	levels := make([]*chunk.Level, table.NumLevels())
	for i, info := range table.Levels() {
		levels[i] = chunk.NewLevel(info)
	}

	return &SlabAllocator{
		opts:   opts,
		table:  table,
		levels: levels,
		log:    opts.Logger,
	}, nil
}

// SlabSize returns the slab size in bytes.
func (a *SlabAllocator) SlabSize() uint64 { return a.opts.SlabSize }

// ZoneSize returns the size requested for ordinary zones.
func (a *SlabAllocator) ZoneSize() uint64 { return a.opts.ZoneSize }

// SlabsPerZone returns the slab count of an ordinary zone.
func (a *SlabAllocator) SlabsPerZone() int { return int(a.opts.ZoneSize / a.opts.SlabSize) }

// MaxChunkSize returns the largest request served from a chunk level.
func (a *SlabAllocator) MaxChunkSize() uint64 { return a.table.MaxChunkSize() }

// Table returns the chunk level geometry.
func (a *SlabAllocator) Table() *sizeclass.Table { return a.table }

// NumZones returns the number of zones committed so far.
func (a *SlabAllocator) NumZones() int { return len(a.zones) }

// Alloc reserves size bytes. On backing exhaustion, and for size 0 or sizes larger
// than the biggest possible zone, it returns InvalidIdentifier and an invalid
// Allocation.
func (a *SlabAllocator) Alloc(size uint64) (Identifier, Allocation) {
	if size == 0 {
		return a.fail()
	}
	if size <= a.table.MaxChunkSize() {
		return a.allocChunk(sizeclass.BestLevel(uint32(size)))
	}
	return a.allocSlabRun(size)
}

// AllocAligned is like Alloc but the returned offset is a multiple of alignment,
// which must be a power of two. Every allocation is aligned to MinAlignment; larger
// alignments up to the slab size are met by moving to a chunk level whose size is a
// multiple of alignment. Alignments above the slab size cannot be served. Offsets are
// relative to the zone, so the backing must align zones to the slab size.
func (a *SlabAllocator) AllocAligned(size, alignment uint64) (Identifier, Allocation) {
	if alignment == 0 || alignment&(alignment-1) != 0 {
		verify.Fail(verify.New("SlabAllocator", "alignment").
			Msg("%d is not a power of two", alignment))
	}
	if alignment <= MinAlignment {
		return a.Alloc(size)
	}
	if size == 0 || alignment > a.opts.SlabSize {
		a.log.Debug("unsupported alignment", "size", size, "alignment", alignment)
		return a.fail()
	}

	if size <= a.table.MaxChunkSize() {
		for level := sizeclass.BestLevel(uint32(size)); level <= a.table.MaxLevel(); level++ {
			if uint64(sizeclass.ChunkSize(level))%alignment == 0 {
				return a.allocChunk(level)
			}
		}
	}
	return a.allocSlabRun(size)
}

func (a *SlabAllocator) fail() (Identifier, Allocation) {
	a.counters.failedAllocs++
	return InvalidIdentifier, Allocation{}
}

func (a *SlabAllocator) allocChunk(level int) (Identifier, Allocation) {
	l := a.levels[level]
	numGroups := l.NumGroups()

	chunkID, groupID, ok := l.Alloc(a)
	if !ok {
		return a.fail()
	}
	group := l.Group(groupID)
	if l.NumGroups() != numGroups {
		a.log.Debug("chunk group created",
			"level", level, "group", groupID, "zone", group.Zone,
			"slab_offset", group.SlabOffset, "slabs", group.NumSlabs)
	}

	a.counters.allocs++
	return ChunkIdentifier(level, groupID, chunkID), Allocation{
		Zone:   group.Zone,
		Offset: l.ChunkOffset(chunkID, groupID, a.opts.SlabSize),
		Size:   uint64(l.Info().ChunkSize),
	}
}

func (a *SlabAllocator) allocSlabRun(size uint64) (Identifier, Allocation) {
	slabSize := a.opts.SlabSize
	numSlabs := buf.DivCeil(size, slabSize)
	if numSlabs > zone.MaxSlabs {
		a.log.Debug("request exceeds the largest zone", "size", size, "slabs", numSlabs)
		return a.fail()
	}

	zoneID, offset, ok := a.AllocSlabs(int(numSlabs))
	if !ok {
		return a.fail()
	}

	a.counters.allocs++
	return SlabRunIdentifier(zoneID, offset, int(numSlabs)), Allocation{
		Zone:   zoneID,
		Offset: uint64(offset) * slabSize,
		Size:   numSlabs * slabSize,
	}
}

// AllocSlabs reserves numSlabs contiguous slabs in the first zone that has room,
// committing a new zone when none does. It returns ok == false only when the backing
// cannot provide a zone large enough.
func (a *SlabAllocator) AllocSlabs(numSlabs int) (zoneID, offset int, ok bool) {
	if numSlabs < 1 || numSlabs > zone.MaxSlabs {
		verify.Fail(verify.New("SlabAllocator", "num_slabs").
			Msg("%d outside [1, %d]", numSlabs, zone.MaxSlabs))
	}

	for i, z := range a.zones {
		if z.NumFreeSlabs() < numSlabs {
			continue
		}
		if offset, ok := z.Alloc(numSlabs); ok {
			return i, offset, true
		}
	}

	if !a.addZone(numSlabs) {
		return -1, -1, false
	}
	zoneID = len(a.zones) - 1
	z := a.zones[zoneID]
	if z.NumSlabs() < numSlabs {
		return -1, -1, false
	}
	offset, ok = z.Alloc(numSlabs)
	if !ok {
		return -1, -1, false
	}
	return zoneID, offset, true
}

// addZone commits a zone able to hold at least minSlabs contiguous slabs. Committed
// sizes are floored to whole slab groups; the zone is kept even if the backing
// committed less than requested.
func (a *SlabAllocator) addZone(minSlabs int) bool {
	slabSize := a.opts.SlabSize
	groupBytes := slabSize * zone.GroupSize

	need, _ := buf.AlignUp(uint64(minSlabs)*slabSize, groupBytes)
	requested := max(a.opts.ZoneSize, need)
	index := len(a.zones)

	committed := a.opts.Backing(requested, index, a.opts.UserContext)
	if committed == 0 {
		a.counters.backingFailures++
		a.log.Debug("zone backing exhausted", "zone", index, "requested", requested)
		return false
	}

	numSlabs := min(committed/slabSize/zone.GroupSize*zone.GroupSize, zone.MaxSlabs)
	if numSlabs < zone.MinSlabs {
		a.counters.backingFailures++
		a.log.Warn("zone backing committed less than one slab group",
			"zone", index, "requested", requested, "committed", committed)
		return false
	}
	if committed < requested {
		a.log.Warn("zone backing committed less than requested",
			"zone", index, "requested", requested, "committed", committed)
	}

	a.zones = append(a.zones, zone.New(int(numSlabs)))
	a.log.Debug("zone added", "zone", index, "slabs", numSlabs, "bytes", numSlabs*slabSize)
	return true
}

// Free releases an allocation. id must come from a successful Alloc and must not have
// been freed already; anything else is an invariant violation and panics.
func (a *SlabAllocator) Free(id Identifier) {
	switch {
	case id.IsChunk():
		level, groupID, chunkID := id.Chunk()
		if level >= len(a.levels) {
			verify.Fail(verify.New("SlabAllocator", "level_id").InLevel(level).
				Msg("level out of range (%d chunk levels)", len(a.levels)))
		}
		a.levels[level].Free(chunkID, groupID)

	case id.IsSlabRun():
		zoneID, slabID, count := id.SlabRun()
		if zoneID >= len(a.zones) {
			verify.Fail(verify.New("SlabAllocator", "zone_id").InZone(zoneID).
				Msg("zone out of range (%d zones)", len(a.zones)))
		}
		a.zones[zoneID].Clear(slabID, count)

	default:
		verify.Fail(verify.New("SlabAllocator", "identifier").
			Msg("invalid identifier %#x", uint64(id)))
	}
	a.counters.frees++
}

// Verify checks every zone and chunk level, and that the slabs of every chunk group
// are marked used in their zone. It returns the first *verify.Mismatch found.
func (a *SlabAllocator) Verify() error {
	for i, z := range a.zones {
		if err := z.Verify(i); err != nil {
			return err
		}
	}

	for _, l := range a.levels {
		if err := l.Verify(); err != nil {
			return err
		}
		levelID := l.Info().Level
		for id := range l.NumGroups() {
			g := l.Group(id)
			if g.Zone < 0 || g.Zone >= len(a.zones) {
				return verify.New("ChunkLevel", "zone_id").InLevel(levelID).InGroup(id).
					Values(len(a.zones)-1, g.Zone).Msg("group refers to a missing zone")
			}
			z := a.zones[g.Zone]
			if g.SlabOffset < 0 || g.SlabOffset+g.NumSlabs > z.NumSlabs() ||
				!z.IsRangeUsed(g.SlabOffset, g.NumSlabs) {
				return verify.New("ChunkLevel", "group_slabs").InLevel(levelID).
					InZone(g.Zone).InGroup(id).
					Msg("slabs [%d, %d) are not reserved in the zone",
						g.SlabOffset, g.SlabOffset+g.NumSlabs)
			}
		}
	}
	return nil
}
