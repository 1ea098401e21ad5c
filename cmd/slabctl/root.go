package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/joshuapare/slabkit/internal/logger"
	"github.com/joshuapare/slabkit/slab/alloc"
	"github.com/joshuapare/slabkit/slab/backing"
)

var (
	// Global flags
	verbose  bool
	quiet    bool
	jsonOut  bool
	noColor  bool
	jsonLogs bool
	logDir   string

	// Allocator flags
	slabSize uint64
	zoneSize uint64
	budget   uint64
	useHost  bool
)

var rootCmd = &cobra.Command{
	Use:   "slabctl",
	Short: "Inspect and exercise the slab allocator",
	Long: `slabctl prints the chunk size classes of a slab allocator configuration,
replays allocation scripts, renders zone occupancy and runs randomized stress tests
with invariant checks after every step.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		return logger.Init(logger.Options{
			Enabled: !quiet,
			Level:   level,
			JSON:    jsonLogs,
			LogDir:  logDir,
		})
	},
	SilenceUsage: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Write log records as JSON")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Write logs to a dated file in this directory")

	rootCmd.PersistentFlags().
		Uint64Var(&slabSize, "slab-size", alloc.DefaultSlabSize, "Slab size in bytes (power of two)")
	rootCmd.PersistentFlags().
		Uint64Var(&zoneSize, "zone-size", alloc.DefaultZoneSize, "Default zone size in bytes")
	rootCmd.PersistentFlags().
		Uint64Var(&budget, "budget", 0, "Total bytes the backing may commit (0 = unlimited)")
	rootCmd.PersistentFlags().
		BoolVar(&useHost, "host-memory", false, "Back zones with real anonymous memory mappings")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// allocatorConfig holds what is needed to build an allocator for one command.
type allocatorConfig struct {
	SlabSize uint64
	ZoneSize uint64
	Budget   uint64
	Host     bool
}

func globalAllocatorConfig() allocatorConfig {
	return allocatorConfig{
		SlabSize: slabSize,
		ZoneSize: zoneSize,
		Budget:   budget,
		Host:     useHost,
	}
}

// newAllocator builds an allocator and returns a function releasing its backing.
func newAllocator(cfg allocatorConfig) (*alloc.SlabAllocator, func() error, error) {
	opts := alloc.Options{
		SlabSize: cfg.SlabSize,
		ZoneSize: cfg.ZoneSize,
		Logger:   logger.L,
	}
	closeFn := func() error { return nil }

	if cfg.Host {
		align := cfg.SlabSize
		if align&(align-1) != 0 {
			align = 0 // rejected by NewWithOptions below
		}
		host := backing.NewHostAligned(cfg.Budget, align)
		opts.Backing = host.Commit
		closeFn = host.Close
	} else {
		opts.Backing = budgetBacking(cfg.Budget)
	}

	a, err := alloc.NewWithOptions(opts)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return a, closeFn, nil
}

// budgetBacking commits requests without backing them until budget bytes have been
// handed out.
func budgetBacking(budget uint64) alloc.ZoneBackingFunc {
	var committed uint64
	return func(requested uint64, zoneIndex int, _ any) uint64 {
		if budget != 0 && committed+requested > budget {
			logger.L.Debug("budget exhausted", "zone", zoneIndex, "requested", requested, "committed", committed)
			return 0
		}
		committed += requested
		return requested
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = os.Stdout.Write(data)
	return err
}
