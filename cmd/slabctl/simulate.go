package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/slabkit/internal/format"
	"github.com/joshuapare/slabkit/slab/alloc"
)

var simulateChunks bool

func init() {
	cmd := newSimulateCmd()
	cmd.Flags().BoolVar(&simulateChunks, "chunks", false, "Include chunk group bitmaps in visualize output")
	rootCmd.AddCommand(cmd)
}

func newSimulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate [script]",
		Short: "Replay an allocation script",
		Long: `The simulate command replays an allocation script against a fresh allocator.
The script is read from the named file, or from stdin when the name is missing or "-".
Each line holds one command; blank lines and lines starting with # are skipped:

  alloc <name> <size> [alignment]   allocate and remember the result as <name>
  free <name>                       free a named allocation
  verify                            check every allocator invariant
  visualize                         print the zone bitmaps
  stats                             print allocator statistics

Sizes take an optional K, M, G or T suffix.

Example:
  slabctl simulate workload.txt
  printf 'alloc a 1M\nalloc b 300\nfree a\nstats\n' | slabctl simulate`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := io.Reader(os.Stdin)
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open script: %w", err)
				}
				defer f.Close()
				in = f
			}
			return runSimulate(globalAllocatorConfig(), in, simulateChunks)
		},
	}
}

// SimulateEvent records one executed command for JSON output.
type SimulateEvent struct {
	Line       int     `json:"line"`
	Op         string  `json:"op"`
	Name       string  `json:"name,omitempty"`
	Size       uint64  `json:"size,omitempty"`
	Identifier string  `json:"identifier,omitempty"`
	Zone       *int    `json:"zone,omitempty"` // set for successful allocations only
	Offset     *uint64 `json:"offset,omitempty"`
	Allocated  uint64  `json:"allocated,omitempty"`
	Failed     bool    `json:"failed,omitempty"`
}

// SimulateOutput is the JSON form of the simulate command.
type SimulateOutput struct {
	Events []SimulateEvent `json:"events"`
	Stats  StatsOutput     `json:"stats"`
}

// StatsOutput is the JSON form of alloc.Stats.
type StatsOutput struct {
	Zones           int          `json:"zones"`
	TotalSlabs      int          `json:"total_slabs"`
	FreeSlabs       int          `json:"free_slabs"`
	ChunkGroups     int          `json:"chunk_groups"`
	GroupSlabs      int          `json:"group_slabs"`
	Allocs          uint64       `json:"allocs"`
	Frees           uint64       `json:"frees"`
	FailedAllocs    uint64       `json:"failed_allocs"`
	BackingFailures uint64       `json:"backing_failures"`
	CommittedBytes  uint64       `json:"committed_bytes"`
	Levels          []LevelEntry `json:"levels,omitempty"`
}

// LevelEntry is one level in StatsOutput.
type LevelEntry struct {
	Level      int    `json:"level"`
	ChunkSize  uint32 `json:"chunk_size"`
	Groups     int    `json:"groups"`
	Chunks     int    `json:"chunks"`
	FreeChunks int    `json:"free_chunks"`
}

func newStatsOutput(s alloc.Stats) StatsOutput {
	out := StatsOutput{
		Zones:           s.Zones,
		TotalSlabs:      s.TotalSlabs,
		FreeSlabs:       s.FreeSlabs,
		ChunkGroups:     s.ChunkGroups,
		GroupSlabs:      s.GroupSlabs,
		Allocs:          s.Allocs,
		Frees:           s.Frees,
		FailedAllocs:    s.FailedAllocs,
		BackingFailures: s.BackingFailures,
		CommittedBytes:  s.CommittedBytes,
	}
	for _, ls := range s.Levels {
		out.Levels = append(out.Levels, LevelEntry(ls))
	}
	return out
}

var errScript = errors.New("script error")

type simulator struct {
	a      *alloc.SlabAllocator
	chunks bool
	named  map[string]alloc.Identifier
	events []SimulateEvent
}

func runSimulate(cfg allocatorConfig, in io.Reader, chunks bool) error {
	a, closeFn, err := newAllocator(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	sim := &simulator{a: a, chunks: chunks, named: make(map[string]alloc.Identifier)}
	sc := bufio.NewScanner(in)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := sim.exec(lineNo, strings.Fields(line)); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}

	if jsonOut {
		return printJSON(SimulateOutput{Events: sim.events, Stats: newStatsOutput(a.Stats())})
	}
	return nil
}

func (s *simulator) exec(lineNo int, fields []string) error {
	op := fields[0]
	ev := SimulateEvent{Line: lineNo, Op: op}

	switch op {
	case "alloc":
		if len(fields) < 3 || len(fields) > 4 {
			return fmt.Errorf("%w: usage: alloc <name> <size> [alignment]", errScript)
		}
		name := fields[1]
		if _, ok := s.named[name]; ok {
			return fmt.Errorf("%w: %q is already allocated", errScript, name)
		}
		size, err := format.ParseBytes(fields[2])
		if err != nil {
			return fmt.Errorf("%w: %w", errScript, err)
		}
		var (
			id  alloc.Identifier
			loc alloc.Allocation
		)
		if len(fields) == 4 {
			align, err := format.ParseBytes(fields[3])
			if err != nil {
				return fmt.Errorf("%w: %w", errScript, err)
			}
			if align == 0 || align&(align-1) != 0 {
				return fmt.Errorf("%w: alignment %d is not a power of two", errScript, align)
			}
			id, loc = s.a.AllocAligned(size, align)
		} else {
			id, loc = s.a.Alloc(size)
		}

		ev.Name, ev.Size = name, size
		if !loc.IsValid() {
			ev.Failed = true
			s.say("alloc %s (%s): %s\n", name, format.Bytes(size), render(usedStyle, "failed"))
			break
		}
		s.named[name] = id
		ev.Identifier, ev.Zone, ev.Offset, ev.Allocated = id.String(), &loc.Zone, &loc.Offset, loc.Size
		s.say("alloc %s (%s): %s zone:%d offset:%#x size:%s\n",
			name, format.Bytes(size), id, loc.Zone, loc.Offset, format.Bytes(loc.Size))

	case "free":
		if len(fields) != 2 {
			return fmt.Errorf("%w: usage: free <name>", errScript)
		}
		name := fields[1]
		id, ok := s.named[name]
		if !ok {
			return fmt.Errorf("%w: %q is not allocated", errScript, name)
		}
		delete(s.named, name)
		s.a.Free(id)
		ev.Name, ev.Identifier = name, id.String()
		s.say("free %s: %s\n", name, id)

	case "verify":
		if err := s.a.Verify(); err != nil {
			return err
		}
		s.say("verify: %s\n", render(freeStyle, "ok"))

	case "visualize":
		if !jsonOut {
			if err := printVisualization(s.a, s.chunks); err != nil {
				return err
			}
		}

	case "stats":
		if !jsonOut {
			printStats(s.a.Stats())
		}

	default:
		return fmt.Errorf("%w: unknown command %q", errScript, op)
	}

	s.events = append(s.events, ev)
	return nil
}

// say prints a result line unless the output is JSON.
func (s *simulator) say(format string, args ...any) {
	if !jsonOut {
		printInfo(format, args...)
	}
}

func printStats(s alloc.Stats) {
	printInfo("%s\n", render(headerStyle, "Allocator Statistics:"))
	printInfo("  Zones: %d (%s committed)\n", s.Zones, format.Bytes(s.CommittedBytes))
	printInfo("  Slabs: %s used of %s (%s)\n",
		format.Count(s.UsedSlabs()), format.Count(s.TotalSlabs),
		format.Percent(uint64(s.UsedSlabs()), uint64(s.TotalSlabs)))
	printInfo("  Chunk groups: %d (%s slabs)\n", s.ChunkGroups, format.Count(s.GroupSlabs))
	printInfo("  Allocations: %s live, %s total, %s failed\n",
		format.Count(s.Live()), format.Count(s.Allocs), format.Count(s.FailedAllocs))
	if s.BackingFailures > 0 {
		printInfo("  Backing failures: %d\n", s.BackingFailures)
	}
	if len(s.Levels) == 0 {
		return
	}
	printInfo("\n%s\n", render(headerStyle, "Chunk Levels:"))
	for _, ls := range s.Levels {
		printInfo("  Level %2d (%s): %d group(s), %s of %s chunks free\n",
			ls.Level, format.Bytes(uint64(ls.ChunkSize)), ls.Groups,
			format.Count(ls.FreeChunks), format.Count(ls.Chunks))
	}
}
