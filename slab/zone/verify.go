package zone

import (
	"math/bits"

	"github.com/joshuapare/slabkit/slab/verify"
)

// Verify recomputes the summary masks and the free slab count from the occupancy
// words and returns a *verify.Mismatch for the first field that disagrees.
func (z *Zone) Verify(zoneID int) error {
	used := 0
	for g, word := range z.groups {
		used += bits.OnesCount64(word)

		isEmpty := word == 0
		isFull := word == fullWord
		markedEmpty := z.emptyGroups&(1<<uint(g)) != 0
		markedFull := z.fullGroups&(1<<uint(g)) != 0

		if isEmpty != markedEmpty {
			return verify.New("Zone", "empty_groups").InZone(zoneID).InGroup(g).
				Values(isEmpty, markedEmpty)
		}
		if isFull != markedFull {
			return verify.New("Zone", "full_groups").InZone(zoneID).InGroup(g).
				Values(isFull, markedFull)
		}
	}

	outside := ^lowBits(len(z.groups))
	if z.emptyGroups&outside != 0 || z.fullGroups&outside != 0 {
		return verify.New("Zone", "summary_masks").InZone(zoneID).
			Msg("bits set past group %d", len(z.groups)-1)
	}

	if free := z.numSlabs - used; free != z.numFree {
		return verify.New("Zone", "num_free_slabs").InZone(zoneID).Values(free, z.numFree)
	}
	return nil
}
