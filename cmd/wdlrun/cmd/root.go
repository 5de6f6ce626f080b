// Package cmd provides the CLI commands for wdlrun.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// cfgFile holds the path to the config file.
	cfgFile string
	// verbose enables verbose output.
	verbose bool
	// outputFormat specifies the output format (json|plain).
	outputFormat string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "wdlrun",
	Short: "WDL workflow execution engine",
	Long: `wdlrun parses, validates, and runs Workflow Description Language
(WDL) documents.

A run drives a workflow's task calls through a Temporal-backed engine,
staging each call's inputs into a run directory, executing it in a
container backend, and collecting its outputs.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// NewRootCmd creates a new root command for testing, with a fresh
// command tree so tests don't share registered subcommands/flag state.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "wdlrun",
		Short:        "WDL workflow execution engine",
		Long:         rootCmd.Long,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (JSON)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "plain", "output format (json|plain)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newWorkerCmd())
	cmd.AddCommand(newSubmitCmd())

	return cmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "plain", "output format (json|plain)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newWorkerCmd())
	rootCmd.AddCommand(newSubmitCmd())
}

// isVerbose returns true if verbose mode is enabled.
func isVerbose() bool {
	return verbose
}

// printVerbose prints message only if verbose mode is enabled.
func printVerbose(cmd *cobra.Command, format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	}
}

// printError prints an error message to stderr.
func printError(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: "+format+"\n", args...)
}

// exitWithError prints an error and exits with code 1.
func exitWithError(cmd *cobra.Command, err error) {
	printError(cmd, "%v", err)
	os.Exit(1)
}
