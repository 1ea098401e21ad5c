package chunk

import (
	"math/bits"

	"github.com/joshuapare/slabkit/slab/verify"
)

// Verify checks every group's free count against its bitmap, the padding bits, and
// that the not-full list holds exactly the groups with free chunks.
func (l *Level) Verify() error {
	levelID := l.info.Level
	wordsPerGroup := l.info.WordsPerGroup
	totalBits := wordsPerGroup * 64

	for id := range l.groups {
		g := &l.groups[id]
		words := l.groupWords(id)

		used := 0
		for _, word := range words {
			used += bits.OnesCount64(word)
		}
		if free := totalBits - used; free != g.numFree {
			return verify.New("ChunkLevel", "num_free_chunks").InLevel(levelID).
				InZone(g.zone).InGroup(id).Values(free, g.numFree)
		}
		if last := words[wordsPerGroup-1]; last&l.padding != l.padding {
			return verify.New("ChunkLevel", "padding_bits").InLevel(levelID).
				InZone(g.zone).InGroup(id).Values(l.padding, last&l.padding)
		}
	}

	listed := make([]bool, len(l.groups))
	steps := 0
	for id := l.head; id != noGroup; id = l.groups[id].next {
		if id < 0 || id >= len(l.groups) {
			return verify.New("ChunkLevel", "not_full_list").InLevel(levelID).InGroup(id).
				Msg("link out of range")
		}
		if listed[id] || steps > len(l.groups) {
			return verify.New("ChunkLevel", "not_full_list").InLevel(levelID).InGroup(id).
				Msg("cycle in list")
		}
		listed[id] = true
		steps++
	}

	for id := range l.groups {
		hasFree := l.groups[id].numFree > 0
		if hasFree != listed[id] {
			return verify.New("ChunkLevel", "not_full_list").InLevel(levelID).
				InZone(l.groups[id].zone).InGroup(id).Values(hasFree, listed[id])
		}
	}
	return nil
}
