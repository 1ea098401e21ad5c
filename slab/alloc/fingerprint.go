package alloc

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// Fingerprint hashes the complete occupancy state: zone words and summary masks,
// chunk bitmaps and group placement. Two allocators fed the same request sequence
// have the same fingerprint.
func (a *SlabAllocator) Fingerprint() uint64 {
	h := xxh3.New()
	var buf []byte

	put := func(v uint64) {
		buf = binary.LittleEndian.AppendUint64(buf, v)
	}

	put(uint64(len(a.zones)))
	for _, z := range a.zones {
		put(uint64(z.NumSlabs()))
		put(z.EmptyGroups())
		put(z.FullGroups())
		for _, word := range z.Words() {
			put(word)
		}
		h.Write(buf)
		buf = buf[:0]
	}

	for _, l := range a.levels {
		put(uint64(l.NumGroups()))
		for id := range l.NumGroups() {
			g := l.Group(id)
			put(uint64(g.Zone))
			put(uint64(g.SlabOffset))
			for _, word := range l.Words(id) {
				put(word)
			}
		}
		h.Write(buf)
		buf = buf[:0]
	}

	return h.Sum64()
}
