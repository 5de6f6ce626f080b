package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// Version information (set at build time via ldflags).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// VersionInfo holds version information for JSON output.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"buildDate"`
	GitCommit string `json:"gitCommit"`
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "version",
		Short:   "Print version information",
		Args:    cobra.NoArgs,
		Example: `  wdlrun version
  wdlrun version --output json`,
		RunE: runVersion,
	}
	return cmd
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := VersionInfo{Version: Version, BuildDate: BuildDate, GitCommit: GitCommit}

	if outputFormat == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wdlrun v%s\n", info.Version)
	fmt.Fprintf(cmd.OutOrStdout(), "Build Date: %s\n", info.BuildDate)
	fmt.Fprintf(cmd.OutOrStdout(), "Git Commit: %s\n", info.GitCommit)
	return nil
}
