package main

import (
	"bytes"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/slabkit/internal/logger"
	"github.com/joshuapare/slabkit/slab/alloc"
	"github.com/joshuapare/slabkit/slab/stress"
)

// visualizeOptions holds the flags of the visualize command.
type visualizeOptions struct {
	Seed       uint64
	Steps      int
	ChunkRatio float64
	Chunks     bool
}

var visualizeOpts = visualizeOptions{Seed: 1, Steps: 200}

func init() {
	cmd := newVisualizeCmd()
	cmd.Flags().Uint64Var(&visualizeOpts.Seed, "seed", visualizeOpts.Seed, "Seed of the workload")
	cmd.Flags().IntVar(&visualizeOpts.Steps, "steps", visualizeOpts.Steps, "Mixed allocate/free steps before rendering")
	cmd.Flags().Float64Var(&visualizeOpts.ChunkRatio, "chunk-ratio", 0.5, "Fraction of allocations served as chunks")
	cmd.Flags().BoolVar(&visualizeOpts.Chunks, "chunks", false, "Also render every chunk group bitmap")
	rootCmd.AddCommand(cmd)
}

func newVisualizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "visualize",
		Short: "Render zone occupancy after a random workload",
		Long: `The visualize command runs a short seeded workload and prints the slab bitmap
of every zone, one line per 64-slab group. Used slabs are 1, free slabs are 0.

Example:
  slabctl visualize
  slabctl visualize --seed 7 --steps 50 --chunks`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVisualize(globalAllocatorConfig(), visualizeOpts)
		},
	}
}

func runVisualize(cfg allocatorConfig, opts visualizeOptions) error {
	a, closeFn, err := newAllocator(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	runCfg := stress.DefaultConfig(opts.Seed)
	runCfg.Steps = opts.Steps
	runCfg.ChunkRatio = opts.ChunkRatio
	runCfg.Logger = logger.L
	res, err := stress.Run(a, runCfg)
	if err != nil {
		return err
	}
	printVerbose("Workload: %s\n", res)

	return printVisualization(a, opts.Chunks)
}

// printVisualization renders a's bitmaps with colored bits.
func printVisualization(a *alloc.SlabAllocator, chunks bool) error {
	var buf bytes.Buffer
	if err := a.Visualize(&buf, chunks); err != nil {
		return err
	}
	if buf.Len() == 0 {
		printInfo("%s\n", render(mutedStyle, "No zones allocated"))
		return nil
	}
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		printInfo("%s\n", colorizeLine(line))
	}
	return nil
}

func colorizeLine(line string) string {
	trimmed := strings.TrimLeft(line, " ")
	switch {
	case strings.HasPrefix(trimmed, "Zone "), strings.HasPrefix(trimmed, "Level "):
		return render(headerStyle, line)
	case strings.HasPrefix(trimmed, "Group ") && strings.Contains(trimmed, "zone:"):
		return render(mutedStyle, line)
	case strings.HasPrefix(trimmed, "Group "):
		label, bits, _ := strings.Cut(line, ": ")
		return label + ": " + colorizeBits(bits)
	case strings.Trim(trimmed, "01 ") == "":
		return colorizeBits(line)
	}
	return line
}
