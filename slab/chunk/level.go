// Package chunk manages the chunk groups of a single size class.
//
// A group is a run of slabs reserved from some zone and cut into equal chunks. Groups
// live in an append-only arena and are referenced by index; their chunk bitmaps live
// in a parallel word arena. Groups with at least one free chunk are linked into a
// singly-linked list threaded through the arena, and allocation always takes the
// head of that list, so both Alloc and Free are O(1) apart from the bitmap scan.
//
// Groups are never returned to their zone, even when all their chunks are free.
package chunk

import (
	"math/bits"

	"github.com/joshuapare/slabkit/slab/sizeclass"
	"github.com/joshuapare/slabkit/slab/verify"
)

// noGroup terminates the not-full list.
const noGroup = -1

// SlabSource reserves slab runs for new groups.
type SlabSource interface {
	// AllocSlabs reserves n contiguous slabs and returns their zone and offset.
	AllocSlabs(n int) (zone, offset int, ok bool)
}

// group is one slab run split into chunks.
type group struct {
	zone       int
	slabOffset int
	numFree    int
	next       int // next group in the not-full list
}

// GroupInfo describes a chunk group.
type GroupInfo struct {
	Zone       int
	SlabOffset int
	NumSlabs   int
	NumChunks  int
	NumFree    int
}

// Level holds all chunk groups of one size class.
type Level struct {
	info   sizeclass.LevelInfo
	groups []group
	words  []uint64 // group i owns words[i*WordsPerGroup : (i+1)*WordsPerGroup]
	head   int      // first not-full group

	// padding is OR-ed into the last word of every bitmap so that bits past
	// ChunksPerGroup always read as used.
	padding uint64
}

// NewLevel returns an empty level with the given geometry.
func NewLevel(info sizeclass.LevelInfo) *Level {
	l := &Level{
		info: info,
		head: noGroup,
	}
	if tail := info.ChunksPerGroup & 63; tail != 0 {
		l.padding = ^uint64(0) << uint(tail)
	}
	return l
}

// Info returns the level geometry.
func (l *Level) Info() sizeclass.LevelInfo { return l.info }

// NumGroups returns the number of groups created so far.
func (l *Level) NumGroups() int { return len(l.groups) }

// Group returns a description of group id.
func (l *Level) Group(id int) GroupInfo {
	l.checkGroup("group", id)
	g := &l.groups[id]
	return GroupInfo{
		Zone:       g.zone,
		SlabOffset: g.slabOffset,
		NumSlabs:   l.info.SlabsPerGroup,
		NumChunks:  l.info.ChunksPerGroup,
		NumFree:    g.numFree,
	}
}

// Words returns the chunk bitmap of group id. The slice must not be modified.
func (l *Level) Words(id int) []uint64 {
	l.checkGroup("group", id)
	return l.groupWords(id)
}

func (l *Level) groupWords(id int) []uint64 {
	n := l.info.WordsPerGroup
	return l.words[id*n : (id+1)*n : (id+1)*n]
}

func (l *Level) checkGroup(op string, id int) {
	if id < 0 || id >= len(l.groups) {
		verify.Fail(verify.New("ChunkLevel", op).InLevel(l.info.Level).InGroup(id).
			Msg("group id out of range (%d groups)", len(l.groups)))
	}
}

// addGroup appends a group backed by the given slabs and links it at the head.
func (l *Level) addGroup(zone, slabOffset int) int {
	id := len(l.groups)
	l.groups = append(l.groups, group{
		zone:       zone,
		slabOffset: slabOffset,
		numFree:    l.info.ChunksPerGroup,
		next:       l.head,
	})
	l.words = append(l.words, make([]uint64, l.info.WordsPerGroup)...)
	l.words[len(l.words)-1] |= l.padding
	l.head = id
	return id
}

// Alloc takes a chunk from the group at the head of the not-full list. When the list
// is empty a new group is created from slabs reserved through src; ok is false only
// if src could not provide them.
func (l *Level) Alloc(src SlabSource) (chunkID, groupID int, ok bool) {
	if l.head == noGroup {
		zone, offset, ok := src.AllocSlabs(l.info.SlabsPerGroup)
		if !ok {
			return -1, -1, false
		}
		l.addGroup(zone, offset)
	}

	groupID = l.head
	g := &l.groups[groupID]

	chunkID = -1
	for i, word := range l.groupWords(groupID) {
		if word != ^uint64(0) {
			bit := bits.TrailingZeros64(^word)
			l.words[groupID*l.info.WordsPerGroup+i] |= 1 << uint(bit)
			chunkID = i<<6 + bit
			break
		}
	}
	if chunkID < 0 {
		verify.Fail(verify.New("ChunkLevel", "num_free_chunks").InLevel(l.info.Level).
			InZone(g.zone).InGroup(groupID).Values(0, g.numFree).
			Msg("group on the not-full list has no free chunk"))
	}

	g.numFree--
	if g.numFree == 0 {
		l.head = g.next
		g.next = noGroup
	}
	return chunkID, groupID, true
}

// Free releases a chunk. Freeing a chunk that is not allocated is an invariant
// violation.
func (l *Level) Free(chunkID, groupID int) {
	l.checkGroup("free", groupID)
	g := &l.groups[groupID]

	if chunkID < 0 || chunkID >= l.info.ChunksPerGroup {
		verify.Fail(verify.New("ChunkLevel", "chunk_id").InLevel(l.info.Level).
			InZone(g.zone).InGroup(groupID).
			Msg("chunk %d out of range (%d chunks per group)", chunkID, l.info.ChunksPerGroup))
	}

	idx := groupID*l.info.WordsPerGroup + chunkID>>6
	bit := uint64(1) << uint(chunkID&63)
	if l.words[idx]&bit == 0 {
		verify.Fail(verify.New("ChunkLevel", "chunk_bitmap").InLevel(l.info.Level).
			InZone(g.zone).InGroup(groupID).Values(1, 0).
			Msg("chunk %d is not allocated (double free?)", chunkID))
	}
	if g.numFree >= l.info.ChunksPerGroup {
		verify.Fail(verify.New("ChunkLevel", "num_free_chunks").InLevel(l.info.Level).
			InZone(g.zone).InGroup(groupID).Values(l.info.ChunksPerGroup-1, g.numFree).
			Msg("more chunks freed than allocated"))
	}

	l.words[idx] &^= bit
	g.numFree++
	if g.numFree == 1 {
		g.next = l.head
		l.head = groupID
	}
}

// ChunkOffset returns the byte offset of a chunk inside its zone.
func (l *Level) ChunkOffset(chunkID, groupID int, slabSize uint64) uint64 {
	g := &l.groups[groupID]
	return uint64(g.slabOffset)*slabSize + uint64(chunkID)*uint64(l.info.ChunkSize)
}
