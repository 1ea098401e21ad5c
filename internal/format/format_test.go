package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBits(t *testing.T) {
	require.Equal(t, "1101 0000", Bits(0b1011, 8, 4))
	require.Equal(t, "10000000", Bits(1, 8, 0))
	require.Equal(t, "", Bits(^uint64(0), 0, 8))
	require.Equal(t, "00000000 00000000 00000000 00000000 00000000 00000000 00000000 00000001",
		Word(1<<63))
}

func TestBitsMulti(t *testing.T) {
	lines := BitsMulti([]uint64{^uint64(0), 0b101}, 68, 0)
	require.Len(t, lines, 2)
	require.Len(t, lines[0], 64)
	require.Equal(t, "1010", lines[1])

	require.Len(t, BitsMulti([]uint64{0, 0}, 64, 8), 1)
}

func TestBytes(t *testing.T) {
	cases := []struct {
		n    uint64
		want string
	}{
		{0, "0 B"},
		{256, "256 B"},
		{1024, "1 KiB"},
		{384 << 10, "384 KiB"},
		{3 << 19, "1.5 MiB"},
		{128 << 20, "128 MiB"},
		{100_000_000, "95.4 MiB"},
		{8 << 30, "8 GiB"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Bytes(tc.n), "n=%d", tc.n)
	}
}

func TestCount(t *testing.T) {
	require.Equal(t, "0", Count(0))
	require.Equal(t, "999", Count(999))
	require.Equal(t, "1,048,576", Count(uint64(1<<20)))
	require.Equal(t, "-4,096", Count(-4096))
}

func TestPercent(t *testing.T) {
	require.Equal(t, "0.0%", Percent(1, 0))
	require.Equal(t, "12.5%", Percent(1, 8))
	require.Equal(t, "100.0%", Percent(5, 5))
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"0", 0},
		{"4096", 4096},
		{"512B", 512},
		{"64K", 64 << 10},
		{"256KiB", 256 << 10},
		{"2m", 2 << 20},
		{" 1G ", 1 << 30},
		{"3T", 3 << 40},
	}
	for _, tt := range tests {
		got, err := ParseBytes(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "K", "1.5M", "-4", "12X", "20000000000000000000G"} {
		_, err := ParseBytes(bad)
		require.Error(t, err, bad)
	}
}
