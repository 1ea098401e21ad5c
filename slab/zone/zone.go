// Package zone tracks slab occupancy inside one backing region.
//
// A zone is split into groups of 64 slabs; each group is one uint64 word with a bit
// set for every slab in use. Two summary masks (one bit per group) record which words
// are all-zero and which are all-one, so searches can skip full groups without
// touching them.
package zone

import (
	"math/bits"

	"github.com/joshuapare/slabkit/slab/verify"
)

const (
	// GroupSize is the number of slabs tracked by one occupancy word.
	GroupSize  = 64
	groupShift = 6
	groupMask  = GroupSize - 1

	// MinSlabs and MaxSlabs bound the size of a zone. MaxSlabs keeps the summary
	// masks within a single word.
	MinSlabs = GroupSize
	MaxSlabs = GroupSize * 64

	fullWord = ^uint64(0)
)

// Zone is the slab occupancy state of one backing region.
type Zone struct {
	groups      []uint64
	numSlabs    int
	numFree     int
	emptyGroups uint64
	fullGroups  uint64
}

// New returns an empty zone of numSlabs slabs. numSlabs must be a multiple of
// GroupSize between MinSlabs and MaxSlabs.
func New(numSlabs int) *Zone {
	if numSlabs < MinSlabs || numSlabs > MaxSlabs || numSlabs&groupMask != 0 {
		verify.Fail(verify.New("Zone", "num_slabs").
			Msg("%d is not a multiple of %d in [%d, %d]", numSlabs, GroupSize, MinSlabs, MaxSlabs))
	}
	numGroups := numSlabs >> groupShift
	return &Zone{
		groups:      make([]uint64, numGroups),
		numSlabs:    numSlabs,
		numFree:     numSlabs,
		emptyGroups: lowBits(numGroups),
	}
}

// NumSlabs returns the number of slabs in the zone.
func (z *Zone) NumSlabs() int { return z.numSlabs }

// NumFreeSlabs returns the number of unused slabs.
func (z *Zone) NumFreeSlabs() int { return z.numFree }

// NumGroups returns the number of occupancy words.
func (z *Zone) NumGroups() int { return len(z.groups) }

// Words returns the occupancy words. The slice must not be modified.
func (z *Zone) Words() []uint64 { return z.groups }

// EmptyGroups returns the mask of groups with no slab in use.
func (z *Zone) EmptyGroups() uint64 { return z.emptyGroups }

// FullGroups returns the mask of groups with every slab in use.
func (z *Zone) FullGroups() uint64 { return z.fullGroups }

// lowBits returns a word with the n lowest bits set (n may be 0..64).
func lowBits(n int) uint64 {
	if n >= 64 {
		return fullWord
	}
	return (uint64(1) << uint(n)) - 1
}

// runMasks returns the group range covered by [offset, offset+count) and the bit
// masks of the first and last word.
func runMasks(offset, count int) (first, last int, firstBits, lastBits uint64) {
	first = offset >> groupShift
	last = (offset + count - 1) >> groupShift

	firstBits = lowBits(count) << uint(offset&groupMask)
	if last != first {
		end := (offset + count) & groupMask
		if end == 0 {
			lastBits = fullWord
		} else {
			lastBits = lowBits(end)
		}
	} else {
		lastBits = firstBits
	}
	return first, last, firstBits, lastBits
}

func (z *Zone) checkRange(op string, offset, count int) {
	if count < 1 || offset < 0 || offset+count > z.numSlabs {
		verify.Fail(verify.New("Zone", op).
			Msg("slab range [%d, %d) outside zone of %d slabs", offset, offset+count, z.numSlabs))
	}
}

// IsRangeUsed reports whether every slab in [offset, offset+count) is in use.
func (z *Zone) IsRangeUsed(offset, count int) bool {
	z.checkRange("range", offset, count)
	first, last, firstBits, lastBits := runMasks(offset, count)
	if z.groups[first]&firstBits != firstBits {
		return false
	}
	for g := first + 1; g < last; g++ {
		if z.groups[g] != fullWord {
			return false
		}
	}
	return z.groups[last]&lastBits == lastBits
}

// isRangeFree reports whether no slab in [offset, offset+count) is in use.
func (z *Zone) isRangeFree(offset, count int) bool {
	first, last, firstBits, lastBits := runMasks(offset, count)
	if z.groups[first]&firstBits != 0 {
		return false
	}
	for g := first + 1; g < last; g++ {
		if z.groups[g] != 0 {
			return false
		}
	}
	return z.groups[last]&lastBits == 0
}

// Fill marks count slabs starting at offset as used. Every slab in the range must be
// free; anything else is an invariant violation.
func (z *Zone) Fill(offset, count int) {
	z.checkRange("fill", offset, count)
	if !z.isRangeFree(offset, count) {
		verify.Fail(verify.New("Zone", "fill").InGroup(offset>>groupShift).
			Msg("slab range [%d, %d) overlaps used slabs", offset, offset+count))
	}

	first, last, firstBits, lastBits := runMasks(offset, count)
	z.groups[first] |= firstBits
	if last != first {
		z.groups[last] |= lastBits
	}
	for g := first + 1; g < last; g++ {
		z.groups[g] = fullWord
	}

	numGroups := last - first + 1
	// Interior words were just set to all-ones.
	full := lowBits(max(numGroups-2, 0)) << uint(first+1)
	if z.groups[first] == fullWord {
		full |= 1 << uint(first)
	}
	if z.groups[last] == fullWord {
		full |= 1 << uint(last)
	}

	z.numFree -= count
	z.emptyGroups &^= lowBits(numGroups) << uint(first)
	z.fullGroups |= full
}

// Clear marks count slabs starting at offset as free. Every slab in the range must be
// in use; clearing a free slab means the range was freed twice.
func (z *Zone) Clear(offset, count int) {
	z.checkRange("clear", offset, count)
	if !z.IsRangeUsed(offset, count) {
		verify.Fail(verify.New("Zone", "clear").InGroup(offset>>groupShift).
			Msg("slab range [%d, %d) is not fully used (double free?)", offset, offset+count))
	}

	first, last, firstBits, lastBits := runMasks(offset, count)
	z.groups[first] &^= firstBits
	if last != first {
		z.groups[last] &^= lastBits
	}
	for g := first + 1; g < last; g++ {
		z.groups[g] = 0
	}

	numGroups := last - first + 1
	empty := lowBits(max(numGroups-2, 0)) << uint(first+1)
	if z.groups[first] == 0 {
		empty |= 1 << uint(first)
	}
	if z.groups[last] == 0 {
		empty |= 1 << uint(last)
	}

	z.numFree += count
	z.fullGroups &^= lowBits(numGroups) << uint(first)
	z.emptyGroups |= empty
}

// Alloc finds numSlabs contiguous free slabs, marks them as used and returns the
// offset of the first one.
func (z *Zone) Alloc(numSlabs int) (int, bool) {
	offset, ok := z.Find(numSlabs)
	if !ok {
		return -1, false
	}
	z.Fill(offset, numSlabs)
	return offset, true
}

// Find returns the offset of the first run of numSlabs contiguous free slabs
// without changing the zone.
func (z *Zone) Find(numSlabs int) (int, bool) {
	if numSlabs < 1 || numSlabs > z.numSlabs {
		verify.Fail(verify.New("Zone", "find").
			Msg("cannot search for %d slabs in a zone of %d", numSlabs, z.numSlabs))
	}
	if z.numFree < numSlabs {
		return -1, false
	}

	numGroups := len(z.groups)
	notFull := ^z.fullGroups & lowBits(numGroups)
	if notFull == 0 {
		return -1, false
	}
	firstGroup := bits.TrailingZeros64(notFull)

	switch {
	case numSlabs == 1:
		bit := bits.TrailingZeros64(^z.groups[firstGroup])
		return firstGroup<<groupShift + bit, true

	case numSlabs <= GroupSize:
		for g := firstGroup; g < numGroups; g++ {
			word := z.groups[g]
			if word == fullWord {
				continue
			}
			if off := FindRun(^word, numSlabs); off >= 0 {
				return g<<groupShift + off, true
			}
			// Free slabs at the top of g continued by free slabs at the bottom of g+1.
			if g+1 < numGroups {
				curSpace := bits.LeadingZeros64(word)
				nextSpace := bits.TrailingZeros64(z.groups[g+1])
				if curSpace+nextSpace >= numSlabs {
					return g<<groupShift + GroupSize - curSpace, true
				}
			}
		}

	default:
		for g := firstGroup; g < numGroups; g++ {
			word := z.groups[g]
			if word == fullWord {
				continue
			}
			curSpace := bits.LeadingZeros64(word)
			total := curSpace
			for j := g + 1; j < numGroups; j++ {
				space := bits.TrailingZeros64(z.groups[j])
				total += space
				if space < GroupSize || total >= numSlabs {
					break
				}
			}
			if total >= numSlabs {
				return g<<groupShift + GroupSize - curSpace, true
			}
		}
	}

	return -1, false
}

// FindRun returns the index of the first bit that starts a run of at least n set
// bits in word, or -1. Each step ANDs the word with itself shifted by half of the
// remaining length, so a bit survives only if the n-1 bits above it are set too.
func FindRun(word uint64, n int) int {
	for n > 1 {
		s := n >> 1
		word &= word >> uint(s)
		n -= s
	}
	if word == 0 {
		return -1
	}
	return bits.TrailingZeros64(word)
}
