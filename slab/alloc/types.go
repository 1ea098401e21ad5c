package alloc

import "fmt"

// Identifier is the handle returned by Alloc and required, unmodified, by Free.
//
// Layout (bit 63 set on every valid identifier, bit 62 selects the kind):
//
//	chunk:    | 1 | 0 | level:6 @52 | group:32 @20 | chunk:20 @0 |
//	slab run: | 1 | 1 | zone:30 @32 | count:16 @16 | slab:16 @0  |
//
// The zero value is the invalid identifier.
type Identifier uint64

const (
	idValid   Identifier = 1 << 63
	idSlabRun Identifier = 1 << 62

	chunkIDBits = 20
	groupIDBits = 32
	levelIDBits = 6

	groupIDShift = chunkIDBits
	levelIDShift = chunkIDBits + groupIDBits

	slabIDBits    = 16
	slabCountBits = 16
	zoneIDBits    = 30

	slabCountShift = slabIDBits
	zoneIDShift    = slabIDBits + slabCountBits
)

// InvalidIdentifier is returned together with an invalid Allocation when Alloc fails.
const InvalidIdentifier Identifier = 0

func fits(v, nbits int) bool { return v >= 0 && v < 1<<nbits }

// ChunkIdentifier packs a chunk allocation. It panics if a field does not fit.
func ChunkIdentifier(level, groupID, chunkID int) Identifier {
	if !fits(level, levelIDBits) || !fits(groupID, groupIDBits) || !fits(chunkID, chunkIDBits) {
		panic(fmt.Sprintf("alloc: chunk identifier out of range (level=%d group=%d chunk=%d)",
			level, groupID, chunkID))
	}
	return idValid |
		Identifier(level)<<levelIDShift |
		Identifier(groupID)<<groupIDShift |
		Identifier(chunkID)
}

// SlabRunIdentifier packs a slab-run allocation. It panics if a field does not fit.
func SlabRunIdentifier(zoneID, slabID, slabCount int) Identifier {
	if !fits(zoneID, zoneIDBits) || !fits(slabID, slabIDBits) || !fits(slabCount, slabCountBits) ||
		slabCount == 0 {
		panic(fmt.Sprintf("alloc: slab run identifier out of range (zone=%d slab=%d count=%d)",
			zoneID, slabID, slabCount))
	}
	return idValid | idSlabRun |
		Identifier(zoneID)<<zoneIDShift |
		Identifier(slabCount)<<slabCountShift |
		Identifier(slabID)
}

// IsValid reports whether id was produced by a successful allocation.
func (id Identifier) IsValid() bool { return id&idValid != 0 }

// IsSlabRun reports whether id refers to a direct slab-run allocation.
func (id Identifier) IsSlabRun() bool { return id&(idValid|idSlabRun) == idValid|idSlabRun }

// IsChunk reports whether id refers to a chunk allocation.
func (id Identifier) IsChunk() bool { return id&(idValid|idSlabRun) == idValid }

// Chunk unpacks a chunk identifier.
func (id Identifier) Chunk() (level, groupID, chunkID int) {
	level = int(id>>levelIDShift) & (1<<levelIDBits - 1)
	groupID = int(id>>groupIDShift) & (1<<groupIDBits - 1)
	chunkID = int(id) & (1<<chunkIDBits - 1)
	return level, groupID, chunkID
}

// SlabRun unpacks a slab-run identifier.
func (id Identifier) SlabRun() (zoneID, slabID, slabCount int) {
	zoneID = int(id>>zoneIDShift) & (1<<zoneIDBits - 1)
	slabCount = int(id>>slabCountShift) & (1<<slabCountBits - 1)
	slabID = int(id) & (1<<slabIDBits - 1)
	return zoneID, slabID, slabCount
}

func (id Identifier) String() string {
	switch {
	case id.IsChunk():
		level, group, chunk := id.Chunk()
		return fmt.Sprintf("chunk(level:%d group:%d chunk:%d)", level, group, chunk)
	case id.IsSlabRun():
		zone, slab, count := id.SlabRun()
		return fmt.Sprintf("slabs(zone:%d slab:%d count:%d)", zone, slab, count)
	default:
		return "invalid"
	}
}

// Allocation locates an allocated block. The allocator never touches the memory
// itself; callers translate (Zone, Offset) into an address or device offset.
type Allocation struct {
	Zone   int
	Offset uint64 // byte offset inside the zone
	Size   uint64 // reserved bytes: the chunk size or the whole slab run
}

// IsValid reports whether the allocation succeeded.
func (a Allocation) IsValid() bool { return a.Size != 0 }

// End returns the byte offset just past the allocation.
func (a Allocation) End() uint64 { return a.Offset + a.Size }

// Overlaps reports whether a and b share any byte.
func (a Allocation) Overlaps(b Allocation) bool {
	return a.Zone == b.Zone && a.Offset < b.End() && b.Offset < a.End()
}

// ZoneBackingFunc commits memory for a new zone. It receives the requested size in
// bytes, the index the zone will get and the caller's context, and returns the number
// of bytes actually committed, or 0 when the backing store is exhausted.
type ZoneBackingFunc func(requested uint64, zoneIndex int, userCtx any) (committed uint64)

// Unbounded is a ZoneBackingFunc that commits every request in full. It is useful
// when the allocator only hands out offsets and nothing backs them.
func Unbounded(requested uint64, _ int, _ any) uint64 { return requested }
