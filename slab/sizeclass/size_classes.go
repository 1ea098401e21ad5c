// Package sizeclass defines the chunk size ladder used by the slab allocator.
//
// Chunk sizes grow by alternating factors of 1.5 and 4/3, which gives a worst-case
// internal fragmentation of about 12.5% on average:
//
//	Level  0:   256 B
//	Level  1:   384 B
//	Level  2:   512 B
//	Level  3:   768 B
//	Level  4:     1 KB
//	...
//	Level 30:     8 MB
//
// Levels are pure arithmetic. A Table adds the slab-dependent part: how many slabs a
// chunk group of each level spans and how many chunks fit in it.
package sizeclass

import (
	"fmt"
	"math/bits"
)

const (
	// MinChunkSize is the chunk size of level 0.
	MinChunkSize = 256
	minChunkBits = 8

	// NumLevels is the number of levels on the ladder (0..30).
	NumLevels = 31

	// MaxGroupSlabs is the largest slab run a single chunk group may reserve.
	MaxGroupSlabs = 64

	// maxWasteDivisor bounds group waste: waste * 20 < group bytes, i.e. under 5%.
	maxWasteDivisor = 20
)

// ChunkSize returns the chunk size of the given level.
func ChunkSize(level int) uint32 {
	size := uint32(MinChunkSize) << (level >> 1)
	if level&1 != 0 {
		size += size >> 1
	}
	return size
}

// BestLevel returns the smallest level whose chunk size is >= size.
// Sizes up to MinChunkSize (including 0) map to level 0. The result may be
// >= NumLevels for sizes above the top of the ladder; callers check the bound.
func BestLevel(size uint32) int {
	if size <= MinChunkSize {
		return 0
	}
	// 2^(nbits-1) < size <= 2^nbits
	v := size - 1
	nbits := 32 - bits.LeadingZeros32(v)
	// Bit below the top one decides between 1.5 * 2^(nbits-1) and 2^nbits.
	half := int(v>>(nbits-2)) & 1
	return 2*(nbits-minChunkBits) - 1 + half
}

// LevelInfo holds the group geometry of one level for a given slab size.
type LevelInfo struct {
	Level          int
	ChunkSize      uint32
	SlabsPerGroup  int
	ChunksPerGroup int
	WordsPerGroup  int // 64-bit words in the group's chunk bitmap
}

// GroupBytes returns the number of bytes a group of this level reserves.
func (li LevelInfo) GroupBytes(slabSize uint64) uint64 {
	return uint64(li.SlabsPerGroup) * slabSize
}

// Waste returns the bytes of a group not covered by any chunk.
func (li LevelInfo) Waste(slabSize uint64) uint64 {
	return li.GroupBytes(slabSize) - uint64(li.ChunksPerGroup)*uint64(li.ChunkSize)
}

// Table holds the computed group geometry of every chunk level for one slab size.
type Table struct {
	slabSize uint64
	levels   []LevelInfo // index == level, only chunk levels
}

// NewTable computes the group geometry for every level whose chunk size fits in a slab.
// slabSize must be a power of two and at least MinChunkSize.
func NewTable(slabSize uint64) *Table {
	if slabSize < MinChunkSize || slabSize&(slabSize-1) != 0 {
		panic(fmt.Sprintf("sizeclass: invalid slab size %d", slabSize))
	}

	table := &Table{
		slabSize: slabSize,
		levels:   make([]LevelInfo, 0, NumLevels),
	}

	for level := 0; level < NumLevels; level++ {
		chunk := uint64(ChunkSize(level))
		if chunk > slabSize {
			break
		}
		table.levels = append(table.levels, groupGeometry(level, slabSize))
	}

	return table
}

// groupGeometry picks the smallest slab count for which the group wastes under 5%.
func groupGeometry(level int, slabSize uint64) LevelInfo {
	chunk := uint64(ChunkSize(level))
	info := LevelInfo{Level: level, ChunkSize: uint32(chunk)}

	for slabs := 1; slabs <= MaxGroupSlabs; slabs++ {
		groupBytes := uint64(slabs) * slabSize
		chunks := groupBytes / chunk
		if chunks == 0 {
			continue
		}
		waste := groupBytes - chunks*chunk
		if waste*maxWasteDivisor < groupBytes {
			info.SlabsPerGroup = slabs
			info.ChunksPerGroup = int(chunks)
			break
		}
	}

	// Chunk sizes are 2^k or 3*2^k, so three slabs always divide evenly.
	if info.SlabsPerGroup == 0 {
		panic(fmt.Sprintf("sizeclass: no group geometry for level %d", level))
	}

	info.WordsPerGroup = (info.ChunksPerGroup + 63) >> 6
	return info
}

// SlabSize returns the slab size the table was built for.
func (t *Table) SlabSize() uint64 {
	return t.slabSize
}

// NumLevels returns the number of chunk levels (levels 0..NumLevels()-1).
func (t *Table) NumLevels() int {
	return len(t.levels)
}

// MaxLevel returns the highest chunk level.
func (t *Table) MaxLevel() int {
	return len(t.levels) - 1
}

// MaxChunkSize returns the chunk size of the highest chunk level. Larger requests
// are served as slab runs.
func (t *Table) MaxChunkSize() uint64 {
	return uint64(t.levels[len(t.levels)-1].ChunkSize)
}

// Level returns the geometry of a chunk level.
func (t *Table) Level(level int) LevelInfo {
	return t.levels[level]
}

// Levels returns the geometry of every chunk level.
func (t *Table) Levels() []LevelInfo {
	return t.levels
}

// String returns a short description of the table.
func (t *Table) String() string {
	return fmt.Sprintf("slab=%d levels=%d max_chunk=%d", t.slabSize, len(t.levels), t.MaxChunkSize())
}
