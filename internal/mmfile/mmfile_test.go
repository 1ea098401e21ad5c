package mmfile

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnonymous(t *testing.T) {
	const size = 1 << 20
	data, cleanup, err := Anonymous(size)
	require.NoError(t, err)
	require.Len(t, data, size)

	require.Zero(t, data[0])
	require.Zero(t, data[size-1])
	data[0], data[size-1] = 0xde, 0xad

	require.NoError(t, Release(data))
	if runtime.GOOS == "linux" || runtime.GOOS == "windows" {
		require.Zero(t, data[0])
		require.Zero(t, data[size-1])
	}

	require.NoError(t, cleanup())
	require.NoError(t, cleanup(), "second cleanup is a no-op")
}

func TestAnonymousZeroLength(t *testing.T) {
	data, cleanup, err := Anonymous(0)
	require.NoError(t, err)
	require.Empty(t, data)
	require.NotNil(t, cleanup)
	require.NoError(t, cleanup())
	require.NoError(t, Release(data))
}
