// Package backing provides zone backing stores for the slab allocator.
//
// Host commits every zone as an anonymous memory mapping and resolves allocations to
// byte slices:
//
//	host := backing.NewHostAligned(1<<30, alloc.DefaultSlabSize)
//	defer host.Close()
//
//	a, err := alloc.New(alloc.DefaultSlabSize, alloc.DefaultZoneSize, host.Commit)
//	if err != nil {
//	    return err
//	}
//	id, loc := a.Alloc(4096)
//	if !loc.IsValid() {
//	    return errOutOfMemory
//	}
//	buf := host.Bytes(loc)
package backing

import (
	"fmt"
	"math"
	"os"
	"unsafe"

	"go.uber.org/multierr"

	"github.com/joshuapare/slabkit/internal/buf"
	"github.com/joshuapare/slabkit/internal/mmfile"
	"github.com/joshuapare/slabkit/slab/alloc"
)

// Host backs zones with anonymous memory mappings, up to a total byte budget. Zone
// base addresses are aligned to the host's alignment, so an offset aligned inside a
// zone is aligned as an address too up to that value.
type Host struct {
	budget    uint64 // 0 means unlimited
	committed uint64
	zones     []mapping
	pageSize  uint64
	alignment uint64
}

type mapping struct {
	data  []byte
	unmap func() error
}

// NewHost returns a host that commits at most budget bytes in total. A budget of 0
// disables the limit. Zones are page aligned, which covers AllocAligned requests up
// to the page size; use NewHostAligned for larger alignments.
func NewHost(budget uint64) *Host {
	return NewHostAligned(budget, 0)
}

// NewHostAligned is like NewHost but aligns every zone base to alignment, a power of
// two. Pass the slab size to honour every alignment SlabAllocator.AllocAligned
// accepts. Alignments up to the page size need no extra memory; larger ones map up
// to alignment extra bytes per zone, which do not count against the budget.
func NewHostAligned(budget, alignment uint64) *Host {
	if alignment&(alignment-1) != 0 {
		panic(fmt.Sprintf("backing: alignment %d is not a power of two", alignment))
	}
	pageSize := uint64(os.Getpagesize())
	return &Host{
		budget:    budget,
		pageSize:  pageSize,
		alignment: max(alignment, pageSize),
	}
}

// Alignment returns the alignment of zone base addresses.
func (h *Host) Alignment() uint64 { return h.alignment }

// Commit is an alloc.ZoneBackingFunc. Zones must be committed in index order. It
// returns 0 when the budget would be exceeded or the mapping fails.
func (h *Host) Commit(requested uint64, zoneIndex int, _ any) uint64 {
	if zoneIndex != len(h.zones) {
		panic(fmt.Sprintf("backing: zone %d committed out of order (%d zones backed)",
			zoneIndex, len(h.zones)))
	}

	size, ok := buf.AlignUp(requested, h.pageSize)
	if !ok {
		return 0
	}
	if h.budget != 0 && h.committed+size > h.budget {
		return 0
	}

	var pad uint64
	if h.alignment > h.pageSize {
		pad = h.alignment
	}
	if size+pad > math.MaxInt {
		return 0
	}
	data, unmap, err := mmfile.Anonymous(int(size + pad))
	if err != nil {
		return 0
	}
	if pad != 0 {
		base := uint64(uintptr(unsafe.Pointer(unsafe.SliceData(data))))
		aligned, _ := buf.AlignUp(base, h.alignment)
		skip := aligned - base
		data = data[skip : skip+size : skip+size]
	}
	h.zones = append(h.zones, mapping{data: data, unmap: unmap})
	h.committed += size
	return size
}

// Committed returns the number of bytes mapped so far.
func (h *Host) Committed() uint64 { return h.committed }

// Budget returns the byte budget, 0 if unlimited.
func (h *Host) Budget() uint64 { return h.budget }

// NumZones returns the number of zones backed.
func (h *Host) NumZones() int { return len(h.zones) }

// Zone returns the memory of zone i.
func (h *Host) Zone(i int) []byte { return h.zones[i].data }

// Bytes returns the memory of an allocation. It panics for invalid allocations or
// zones this host did not back.
func (h *Host) Bytes(a alloc.Allocation) []byte {
	if !a.IsValid() {
		panic("backing: invalid allocation")
	}
	b, ok := buf.Slice(h.zones[a.Zone].data, a.Offset, a.Size)
	if !ok {
		panic(fmt.Sprintf("backing: allocation %+v outside zone %d", a, a.Zone))
	}
	return b
}

// Release returns the whole pages covered by a freed allocation to the operating
// system. The range stays mapped and may be handed out again.
func (h *Host) Release(a alloc.Allocation) error {
	if !a.IsValid() {
		return nil
	}
	start, _ := buf.AlignUp(a.Offset, h.pageSize)
	end := buf.AlignDown(a.End(), h.pageSize)
	if start >= end {
		return nil
	}
	b, ok := buf.Slice(h.zones[a.Zone].data, start, end-start)
	if !ok {
		return fmt.Errorf("backing: allocation %+v outside zone %d", a, a.Zone)
	}
	return mmfile.Release(b)
}

// Close unmaps every zone. The host must not be used afterwards.
func (h *Host) Close() error {
	var err error
	for _, z := range h.zones {
		err = multierr.Append(err, z.unmap())
	}
	h.zones = nil
	h.committed = 0
	return err
}
