// Package alloc provides the segmented slab allocator.
//
// # Overview
//
// Memory is managed in zones: large regions committed on demand through a caller
// supplied ZoneBackingFunc. Each zone is divided into equal slabs, tracked 64 at a
// time in occupancy words (see package zone). Small requests are served from chunk
// levels (see package chunk), each of which cuts slab runs into chunks of one size
// class; large requests take a run of whole slabs.
//
// The allocator never touches the memory it manages. Alloc returns an Identifier,
// needed to free the block, and an Allocation locating it as (zone, offset, size).
//
// # Usage Example
//
//	a, err := alloc.New(256<<10, 128<<20, func(requested uint64, zone int, _ any) uint64 {
//	    if !device.Reserve(zone, requested) {
//	        return 0
//	    }
//	    return requested
//	})
//	if err != nil {
//	    return err
//	}
//
//	id, loc := a.Alloc(200) // 256-byte chunk
//	if !loc.IsValid() {
//	    // backing store exhausted
//	}
//	...
//	a.Free(id)
//
// # Size Classes
//
// Chunk sizes follow a ladder of alternating 1.5x and 4/3x steps:
//
//	Level 0:  256 B
//	Level 1:  384 B
//	Level 2:  512 B
//	Level 3:  768 B
//	Level 4:    1 KB
//	...
//
// Only levels whose chunk fits in a slab are used. A request larger than MaxChunkSize
// is rounded up to whole slabs instead.
//
// # Zone Growth
//
// When no zone has room, a new zone of max(ZoneSize, request rounded up to 64 slabs)
// is requested from the backing function. A return of 0 means the backing store is
// exhausted; Alloc then returns InvalidIdentifier and an invalid Allocation. Zones
// and chunk groups are never released.
//
// # Errors
//
// Misuse such as freeing an identifier twice, or an identifier that was never
// returned by Alloc, is an invariant violation and panics with a *verify.Mismatch.
// Verify checks every internal invariant and returns the first mismatch found.
package alloc
