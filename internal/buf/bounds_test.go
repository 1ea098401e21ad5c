package buf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddOverflowSafe(t *testing.T) {
	sum, ok := AddOverflowSafe(10, 5)
	require.True(t, ok)
	require.Equal(t, uint64(15), sum)

	_, ok = AddOverflowSafe(math.MaxUint64, 1)
	require.False(t, ok, "expected overflow when adding to MaxUint64")
}

func TestMulOverflowSafe(t *testing.T) {
	p, ok := MulOverflowSafe(4096, 256<<10)
	require.True(t, ok)
	require.Equal(t, uint64(1<<30), p)

	p, ok = MulOverflowSafe(0, math.MaxUint64)
	require.True(t, ok)
	require.Zero(t, p)

	_, ok = MulOverflowSafe(1<<32, 1<<32)
	require.False(t, ok)
}

func TestDivCeil(t *testing.T) {
	require.Equal(t, uint64(0), DivCeil(0, 256))
	require.Equal(t, uint64(1), DivCeil(1, 256))
	require.Equal(t, uint64(1), DivCeil(256, 256))
	require.Equal(t, uint64(2), DivCeil(257, 256))
	require.Equal(t, uint64(1<<46), DivCeil(math.MaxUint64, 1<<18))
}

func TestAlign(t *testing.T) {
	for _, tt := range []struct{ n, want uint64 }{
		{0, 0}, {1, 4096}, {4096, 4096}, {4097, 8192},
	} {
		got, ok := AlignUp(tt.n, 4096)
		require.True(t, ok)
		require.Equal(t, tt.want, got, "AlignUp(%d)", tt.n)
	}
	_, ok := AlignUp(math.MaxUint64-10, 4096)
	require.False(t, ok)

	require.Equal(t, uint64(4096), AlignDown(8191, 4096))
	require.Equal(t, uint64(8192), AlignDown(8192, 4096))
}

func TestSliceAndHas(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4}

	got, ok := Slice(data, 1, 3)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, got)
	require.Equal(t, 3, cap(got))

	_, ok = Slice(data, 4, 2)
	require.False(t, ok, "Slice should fail when extending beyond len")
	_, ok = Slice(data, math.MaxUint64, 2)
	require.False(t, ok)

	require.True(t, Has(data, 5, 0))
	require.False(t, Has(data, 2, 4))
}
