package alloc

// Stats summarises allocator state and activity.
type Stats struct {
	Zones           int
	TotalSlabs      int
	FreeSlabs       int
	ChunkGroups     int
	GroupSlabs      int // slabs reserved by chunk groups
	Allocs          uint64
	Frees           uint64
	FailedAllocs    uint64
	BackingFailures uint64
	CommittedBytes  uint64 // bytes covered by zones
	Levels          []LevelStats
}

// LevelStats describes one chunk level with at least one group.
type LevelStats struct {
	Level      int
	ChunkSize  uint32
	Groups     int
	Chunks     int
	FreeChunks int
}

// ZoneInfo describes one zone.
type ZoneInfo struct {
	Index     int
	NumSlabs  int
	FreeSlabs int
	Bytes     uint64
}

// Live returns the number of allocations not yet freed.
func (s Stats) Live() uint64 { return s.Allocs - s.Frees }

// UsedSlabs returns the number of slabs in use, by chunk groups or slab runs.
func (s Stats) UsedSlabs() int { return s.TotalSlabs - s.FreeSlabs }

// Zones returns a description of every zone in creation order.
func (a *SlabAllocator) Zones() []ZoneInfo {
	infos := make([]ZoneInfo, len(a.zones))
	for i, z := range a.zones {
		infos[i] = ZoneInfo{
			Index:     i,
			NumSlabs:  z.NumSlabs(),
			FreeSlabs: z.NumFreeSlabs(),
			Bytes:     uint64(z.NumSlabs()) * a.opts.SlabSize,
		}
	}
	return infos
}

// Stats collects current statistics. It walks every zone and group.
func (a *SlabAllocator) Stats() Stats {
	s := Stats{
		Zones:           len(a.zones),
		Allocs:          a.counters.allocs,
		Frees:           a.counters.frees,
		FailedAllocs:    a.counters.failedAllocs,
		BackingFailures: a.counters.backingFailures,
	}

	for _, z := range a.zones {
		s.TotalSlabs += z.NumSlabs()
		s.FreeSlabs += z.NumFreeSlabs()
	}
	s.CommittedBytes = uint64(s.TotalSlabs) * a.opts.SlabSize

	for _, l := range a.levels {
		n := l.NumGroups()
		if n == 0 {
			continue
		}
		info := l.Info()
		ls := LevelStats{
			Level:     info.Level,
			ChunkSize: info.ChunkSize,
			Groups:    n,
			Chunks:    n * info.ChunksPerGroup,
		}
		for id := range n {
			ls.FreeChunks += l.Group(id).NumFree
		}
		s.ChunkGroups += n
		s.GroupSlabs += n * info.SlabsPerGroup
		s.Levels = append(s.Levels, ls)
	}
	return s
}
