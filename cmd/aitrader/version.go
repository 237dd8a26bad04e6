package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.Version=...". Unset values fall back to the
// module build info.
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

type buildInfo struct {
	version, commit, built, goVersion string
	modified                          bool
}

func readBuildInfo() buildInfo {
	b := buildInfo{version: Version, commit: GitCommit, built: BuildTime}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	b.goVersion = info.GoVersion
	if b.version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.commit == "" {
				b.commit = s.Value
			}
		case "vcs.time":
			if b.built == "" {
				b.built = s.Value
			}
		case "vcs.modified":
			b.modified = s.Value == "true"
		}
	}
	return b
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		b := readBuildInfo()
		commit := orUnknown(b.commit)
		if b.modified {
			commit += " (dirty)"
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "aitrader %s\n", b.version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", orUnknown(b.built))
		fmt.Fprintf(out, "  go:     %s\n", orUnknown(b.goVersion))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
