package alloc

import (
	"bufio"
	"fmt"
	"io"

	"github.com/joshuapare/slabkit/internal/format"
)

// Visualize writes the occupancy of every zone as bit strings, one line per slab
// group, least significant slab first. When chunks is set, the chunk bitmaps of every
// group are written as well.
func (a *SlabAllocator) Visualize(w io.Writer, chunks bool) error {
	bw := bufio.NewWriter(w)

	for i, z := range a.zones {
		fmt.Fprintf(bw, "Zone %d: num_free:%d empty_groups:%s full_groups:%s\n",
			i, z.NumFreeSlabs(),
			format.Bits(z.EmptyGroups(), z.NumGroups(), 8),
			format.Bits(z.FullGroups(), z.NumGroups(), 8))
		for g, word := range z.Words() {
			fmt.Fprintf(bw, "Group %3d: %s\n", g, format.Word(word))
		}
		bw.WriteByte('\n')
	}

	if chunks {
		for _, l := range a.levels {
			if l.NumGroups() == 0 {
				continue
			}
			info := l.Info()
			fmt.Fprintf(bw, "Level %d (%s chunks, %d per group):\n",
				info.Level, format.Bytes(uint64(info.ChunkSize)), info.ChunksPerGroup)
			for id := range l.NumGroups() {
				g := l.Group(id)
				fmt.Fprintf(bw, "  Group %d: zone:%d slabs:[%d, %d) free:%d\n",
					id, g.Zone, g.SlabOffset, g.SlabOffset+g.NumSlabs, g.NumFree)
				for _, line := range format.BitsMulti(l.Words(id), info.ChunksPerGroup, 8) {
					fmt.Fprintf(bw, "    %s\n", line)
				}
			}
			bw.WriteByte('\n')
		}
	}

	return bw.Flush()
}
