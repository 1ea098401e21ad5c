package zone

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slabkit/slab/verify"
)

// requirePanicsWithMismatch asserts that fn panics with a *verify.Mismatch.
func requirePanicsWithMismatch(t *testing.T, fn func()) *verify.Mismatch {
	t.Helper()
	var m *verify.Mismatch
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected panic")
			var ok bool
			m, ok = r.(*verify.Mismatch)
			require.True(t, ok, "panic value should be *verify.Mismatch, got %T", r)
		}()
		fn()
	}()
	return m
}

func TestNew_Empty(t *testing.T) {
	z := New(512)

	require.Equal(t, 512, z.NumSlabs())
	require.Equal(t, 512, z.NumFreeSlabs())
	require.Equal(t, 8, z.NumGroups())
	require.Equal(t, uint64(0xFF), z.EmptyGroups())
	require.Zero(t, z.FullGroups())
	require.NoError(t, z.Verify(0))
}

func TestNew_InvalidSize(t *testing.T) {
	requirePanicsWithMismatch(t, func() { New(0) })
	requirePanicsWithMismatch(t, func() { New(100) })
	requirePanicsWithMismatch(t, func() { New(MaxSlabs + GroupSize) })
}

func TestNew_MaxSize(t *testing.T) {
	z := New(MaxSlabs)
	require.Equal(t, fullWord, z.EmptyGroups())

	off, ok := z.Alloc(MaxSlabs)
	require.True(t, ok)
	require.Zero(t, off)
	require.Equal(t, fullWord, z.FullGroups())
	require.Zero(t, z.EmptyGroups())
	require.NoError(t, z.Verify(0))
}

// TestFill_SingleWord tests a run inside one group word.
func TestFill_SingleWord(t *testing.T) {
	z := New(128)

	z.Fill(3, 5)
	require.Equal(t, uint64(0b11111000), z.Words()[0])
	require.Equal(t, 123, z.NumFreeSlabs())
	require.Equal(t, uint64(0b10), z.EmptyGroups())
	require.Zero(t, z.FullGroups())
	require.NoError(t, z.Verify(0))

	z.Clear(3, 5)
	require.Zero(t, z.Words()[0])
	require.Equal(t, uint64(0b11), z.EmptyGroups())
	require.NoError(t, z.Verify(0))
}

// TestFill_GroupBoundary tests a run crossing exactly one group boundary.
func TestFill_GroupBoundary(t *testing.T) {
	z := New(128)

	z.Fill(60, 8)
	require.Equal(t, uint64(0xF)<<60, z.Words()[0])
	require.Equal(t, uint64(0xF), z.Words()[1])
	require.Zero(t, z.EmptyGroups())
	require.Zero(t, z.FullGroups())
	require.Equal(t, 120, z.NumFreeSlabs())
	require.NoError(t, z.Verify(0))

	z.Clear(60, 8)
	require.Equal(t, uint64(0b11), z.EmptyGroups())
	require.Equal(t, 128, z.NumFreeSlabs())
	require.NoError(t, z.Verify(0))
}

// TestFill_Interior tests a run covering whole interior words.
func TestFill_Interior(t *testing.T) {
	z := New(512)

	// 10..(10+200): group 0 partial, groups 1..2 full, group 3 partial.
	z.Fill(10, 200)
	require.Equal(t, fullWord&^lowBits(10), z.Words()[0])
	require.Equal(t, fullWord, z.Words()[1])
	require.Equal(t, fullWord, z.Words()[2])
	require.Equal(t, lowBits(210-192), z.Words()[3])
	require.Equal(t, uint64(0b0110), z.FullGroups())
	require.Equal(t, uint64(0xF0), z.EmptyGroups())
	require.NoError(t, z.Verify(0))

	z.Clear(10, 200)
	require.Equal(t, uint64(0xFF), z.EmptyGroups())
	require.Zero(t, z.FullGroups())
	require.NoError(t, z.Verify(0))
}

// TestFill_AlignedEnd tests a run ending exactly on a group boundary.
func TestFill_AlignedEnd(t *testing.T) {
	z := New(256)

	z.Fill(32, 96)
	require.Equal(t, fullWord&^lowBits(32), z.Words()[0])
	require.Equal(t, fullWord, z.Words()[1])
	require.Equal(t, uint64(0b10), z.FullGroups())
	require.Equal(t, uint64(0b1100), z.EmptyGroups())
	require.NoError(t, z.Verify(0))

	z.Fill(0, 32)
	require.Equal(t, uint64(0b11), z.FullGroups())
	require.NoError(t, z.Verify(0))
}

// TestFill_Overlap tests that filling used slabs is an invariant violation.
func TestFill_Overlap(t *testing.T) {
	z := New(128)
	z.Fill(10, 10)

	m := requirePanicsWithMismatch(t, func() { z.Fill(15, 2) })
	require.Equal(t, "fill", m.Field)
	require.NoError(t, z.Verify(0), "failed fill must not modify the zone")
}

// TestClear_DoubleFree tests that clearing free slabs is an invariant violation.
func TestClear_DoubleFree(t *testing.T) {
	z := New(128)
	z.Fill(60, 8)
	z.Clear(60, 8)

	m := requirePanicsWithMismatch(t, func() { z.Clear(60, 8) })
	require.Equal(t, "clear", m.Field)
	require.Contains(t, m.Error(), "double free")
}

// TestClear_OutOfRange tests range checks.
func TestClear_OutOfRange(t *testing.T) {
	z := New(128)
	requirePanicsWithMismatch(t, func() { z.Clear(120, 9) })
	requirePanicsWithMismatch(t, func() { z.Fill(-1, 2) })
	requirePanicsWithMismatch(t, func() { z.Fill(0, 0) })
}

func TestFindRun(t *testing.T) {
	require.Equal(t, 0, FindRun(fullWord, 64))
	require.Equal(t, 0, FindRun(fullWord, 1))
	require.Equal(t, -1, FindRun(0, 1))
	require.Equal(t, 4, FindRun(0b1111_0000, 4))
	require.Equal(t, -1, FindRun(0b1111_0000, 5))
	require.Equal(t, 5, FindRun(0b1111_1110_1100, 3))
	require.Equal(t, 12, FindRun(0b1111_0000_1110_1100, 4))
	require.Equal(t, 60, FindRun(uint64(0xF)<<60, 4))
	require.Equal(t, -1, FindRun(fullWord>>1, 64))
	require.Equal(t, 1, FindRun(fullWord&^1, 63))
}

// TestFindRun_Naive compares FindRun with a bit-by-bit scan.
func TestFindRun_Naive(t *testing.T) {
	naive := func(word uint64, n int) int {
		for start := 0; start+n <= 64; start++ {
			if word>>uint(start)&lowBits(n) == lowBits(n) {
				return start
			}
		}
		return -1
	}

	rng := rand.New(rand.NewSource(7))
	for range 20000 {
		// Sparse, dense and mixed words.
		word := rng.Uint64() | rng.Uint64()
		if rng.Intn(2) == 0 {
			word &= rng.Uint64()
		}
		n := 1 + rng.Intn(64)
		require.Equal(t, naive(word, n), FindRun(word, n), "word=%064b n=%d", word, n)
	}
}

func TestAlloc_SingleSlab(t *testing.T) {
	z := New(128)
	z.Fill(0, 64)
	z.Fill(64, 3)

	off, ok := z.Alloc(1)
	require.True(t, ok)
	require.Equal(t, 67, off)
	require.NoError(t, z.Verify(0))
}

// TestAlloc_SpansTwoWords tests the trailing/leading zero join of two words.
func TestAlloc_SpansTwoWords(t *testing.T) {
	z := New(128)
	z.Fill(0, 40)  // group 0: 24 free at the top
	z.Fill(80, 48) // group 1: 16 free at the bottom

	off, ok := z.Alloc(30)
	require.True(t, ok)
	require.Equal(t, 40, off)
	require.Equal(t, 128-40-48-30, z.NumFreeSlabs())
	require.NoError(t, z.Verify(0))

	_, ok = z.Find(11)
	require.False(t, ok)
	off, ok = z.Find(10)
	require.True(t, ok)
	require.Equal(t, 70, off)
}

// TestAlloc_LargeRun tests runs longer than one group.
func TestAlloc_LargeRun(t *testing.T) {
	z := New(512)
	z.Fill(0, 100)
	z.Fill(300, 1)

	// 100..300 is free: 200 slabs.
	off, ok := z.Alloc(200)
	require.True(t, ok)
	require.Equal(t, 100, off)
	require.NoError(t, z.Verify(0))

	// 301..512 is free: 211 slabs; the run starts mid-word.
	_, ok = z.Find(212)
	require.False(t, ok)
	off, ok = z.Alloc(211)
	require.True(t, ok)
	require.Equal(t, 301, off)
	require.Zero(t, z.NumFreeSlabs())
	require.Equal(t, lowBits(8), z.FullGroups())
	require.NoError(t, z.Verify(0))
}

// TestAlloc_Exhausted tests that a full zone reports failure without changes.
func TestAlloc_Exhausted(t *testing.T) {
	z := New(64)
	_, ok := z.Alloc(64)
	require.True(t, ok)

	_, ok = z.Alloc(1)
	require.False(t, ok)
	_, ok = z.Alloc(2)
	require.False(t, ok)
	require.NoError(t, z.Verify(0))
}

// TestVerify_DetectsCorruption tests that each tracked field is checked.
func TestVerify_DetectsCorruption(t *testing.T) {
	z := New(128)
	z.Fill(0, 64)

	z.numFree++
	err := z.Verify(3)
	require.Error(t, err)
	require.Contains(t, err.Error(), "num_free_slabs")
	require.Contains(t, err.Error(), "zone_id:3")
	z.numFree--

	z.fullGroups = 0
	err = z.Verify(3)
	require.Error(t, err)
	require.Contains(t, err.Error(), "full_groups")
	require.Contains(t, err.Error(), "group_id:0")
	z.fullGroups = 1

	z.emptyGroups |= 1
	err = z.Verify(3)
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty_groups")
	z.emptyGroups &^= 1

	z.emptyGroups |= 1 << 5
	require.Error(t, z.Verify(3))
	z.emptyGroups &^= 1 << 5
	require.NoError(t, z.Verify(3))
}

// TestZone_RandomFillClear runs random alloc/free cycles and checks invariants
// after every step.
func TestZone_RandomFillClear(t *testing.T) {
	type run struct{ off, n int }

	z := New(512)
	rng := rand.New(rand.NewSource(1))
	var live []run

	for step := range 5000 {
		if rng.Intn(2) == 0 || len(live) == 0 {
			n := 1 + rng.Intn(128)
			off, ok := z.Alloc(n)
			if ok {
				require.True(t, z.IsRangeUsed(off, n), "step %d", step)
				live = append(live, run{off, n})
			} else {
				// Cross-check the failure with a brute force scan.
				for start := 0; start+n <= z.NumSlabs(); start++ {
					require.False(t, z.isRangeFree(start, n),
						"step %d: missed %d free slabs at %d", step, n, start)
				}
			}
		} else {
			i := rng.Intn(len(live))
			z.Clear(live[i].off, live[i].n)
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
		}
		require.NoError(t, z.Verify(0), "step %d", step)
	}
}
