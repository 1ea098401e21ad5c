package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClasses(t *testing.T) {
	withFlags(t, false)

	out, err := captureOutput(t, func() error { return runClasses(testConfig()) })
	require.NoError(t, err)
	require.Contains(t, out, "Slab size 256 KiB, zone size 128 MiB (512 slabs)")
	require.Contains(t, out, "Level")
	require.Contains(t, out, "Requests above 256 KiB are served as whole slab runs.")

	rows := 0
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && line[0] >= '0' && line[0] <= '9' {
			rows++
		}
	}
	require.Equal(t, 21, rows)
}

func TestClasses_JSON(t *testing.T) {
	withFlags(t, true)

	out, err := captureOutput(t, func() error { return runClasses(testConfig()) })
	require.NoError(t, err)

	var got ClassesOutput
	decodeJSON(t, out, &got)
	require.Equal(t, uint64(256<<10), got.SlabSize)
	require.Equal(t, uint64(256<<10), got.MaxChunkSize)
	require.Len(t, got.Classes, 21)
	require.Equal(t, uint32(256), got.Classes[0].ChunkSize)
	require.Equal(t, uint32(384), got.Classes[1].ChunkSize)
	for _, c := range got.Classes {
		require.Less(t, c.WasteBytes*20, c.GroupBytes, "level %d", c.Level)
	}
}

func TestClasses_InvalidSlabSize(t *testing.T) {
	withFlags(t, false)
	cfg := testConfig()
	cfg.SlabSize = 1000
	_, err := captureOutput(t, func() error { return runClasses(cfg) })
	require.Error(t, err)
}
