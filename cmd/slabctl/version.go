package main

import (
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/joshuapare/slabkit/slab/alloc"
)

// Set by the linker.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// VersionInfo is the JSON form of the version command.
type VersionInfo struct {
	Version         string `json:"version"`
	Commit          string `json:"commit"`
	Built           string `json:"built"`
	GoVersion       string `json:"go_version"`
	Platform        string `json:"platform"`
	DefaultSlabSize uint64 `json:"default_slab_size"`
	DefaultZoneSize uint64 `json:"default_zone_size"`
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion()
		},
	})
}

func versionInfo() VersionInfo {
	info := VersionInfo{
		Version:         version,
		Commit:          commit,
		Built:           date,
		GoVersion:       runtime.Version(),
		Platform:        runtime.GOOS + "/" + runtime.GOARCH,
		DefaultSlabSize: alloc.DefaultSlabSize,
		DefaultZoneSize: alloc.DefaultZoneSize,
	}
	// go install builds carry the module version instead of linker flags.
	if bi, ok := debug.ReadBuildInfo(); ok && info.Version == "dev" &&
		bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	return info
}

func runVersion() error {
	info := versionInfo()
	if jsonOut {
		return printJSON(info)
	}
	printInfo("slabctl %s\n", info.Version)
	printInfo("  commit: %s\n", info.Commit)
	printInfo("  built: %s\n", info.Built)
	printInfo("  go: %s %s\n", info.GoVersion, info.Platform)
	return nil
}
