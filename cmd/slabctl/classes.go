package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/slabkit/internal/format"
)

func init() {
	rootCmd.AddCommand(newClassesCmd())
}

func newClassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "List chunk size classes",
		Long: `The classes command lists every chunk level for the configured slab size:
the chunk size, how many slabs a chunk group spans, how many chunks it holds and how
many bytes of the group are left unused.

Example:
  slabctl classes
  slabctl classes --slab-size 65536 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses(globalAllocatorConfig())
		},
	}
}

// ClassInfo describes one chunk level.
type ClassInfo struct {
	Level          int    `json:"level"`
	ChunkSize      uint32 `json:"chunk_size"`
	SlabsPerGroup  int    `json:"slabs_per_group"`
	ChunksPerGroup int    `json:"chunks_per_group"`
	GroupBytes     uint64 `json:"group_bytes"`
	WasteBytes     uint64 `json:"waste_bytes"`
}

// ClassesOutput is the JSON form of the classes command.
type ClassesOutput struct {
	SlabSize     uint64      `json:"slab_size"`
	ZoneSize     uint64      `json:"zone_size"`
	MaxChunkSize uint64      `json:"max_chunk_size"`
	Classes      []ClassInfo `json:"classes"`
}

func runClasses(cfg allocatorConfig) error {
	a, closeFn, err := newAllocator(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	table := a.Table()
	out := ClassesOutput{
		SlabSize:     a.SlabSize(),
		ZoneSize:     a.ZoneSize(),
		MaxChunkSize: a.MaxChunkSize(),
	}
	for _, info := range table.Levels() {
		out.Classes = append(out.Classes, ClassInfo{
			Level:          info.Level,
			ChunkSize:      info.ChunkSize,
			SlabsPerGroup:  info.SlabsPerGroup,
			ChunksPerGroup: info.ChunksPerGroup,
			GroupBytes:     info.GroupBytes(a.SlabSize()),
			WasteBytes:     info.Waste(a.SlabSize()),
		})
	}

	if jsonOut {
		return printJSON(out)
	}

	printInfo("%s\n", render(headerStyle, fmt.Sprintf("Slab size %s, zone size %s (%s slabs)",
		format.Bytes(out.SlabSize), format.Bytes(out.ZoneSize), format.Count(a.SlabsPerZone()))))
	printInfo("\n%5s  %10s  %6s  %7s  %10s  %6s\n", "Level", "Chunk", "Slabs", "Chunks", "Group", "Waste")
	for _, c := range out.Classes {
		printInfo("%5d  %10s  %6d  %7s  %10s  %6s\n",
			c.Level, format.Bytes(uint64(c.ChunkSize)), c.SlabsPerGroup,
			format.Count(c.ChunksPerGroup), format.Bytes(c.GroupBytes),
			format.Percent(c.WasteBytes, c.GroupBytes))
	}
	printInfo("\n%s\n", render(mutedStyle, fmt.Sprintf(
		"Requests above %s are served as whole slab runs.", format.Bytes(out.MaxChunkSize))))
	return nil
}
