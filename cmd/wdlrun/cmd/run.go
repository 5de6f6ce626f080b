package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wdlrun/wdlrun/internal/rundir"
	"github.com/wdlrun/wdlrun/internal/store"
	"github.com/wdlrun/wdlrun/internal/workflowrun"
)

var inputsPath string

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <document>",
		Short: "Run a WDL workflow document to completion",
		Long: `Run starts a workflow's run in-process, blocks until it
finishes, and prints its outputs.

This spins up a full engine (Temporal worker, task queue, download
cache, run store) for the duration of one run; use "wdlrun worker" for
a long-running process that serves many runs.`,
		Args: cobra.ExactArgs(1),
		Example: `  wdlrun run workflow.wdl
  wdlrun run --inputs inputs.json workflow.wdl`,
		RunE: runRun,
	}
	cmd.Flags().StringVar(&inputsPath, "inputs", "", "path to a JSON inputs file")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	documentURI := args[0]

	inputs := json.RawMessage("{}")
	if inputsPath != "" {
		data, err := os.ReadFile(inputsPath)
		if err != nil {
			return fmt.Errorf("reading inputs: %w", err)
		}
		inputs = data
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	printVerbose(cmd, "Starting engine\n")
	rt, err := bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer rt.close()

	runID := uuid.NewString()
	run, err := rundir.New(rt.cfg.RunRoot, runID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("run: creating run directory: %w", err)
	}

	if err := rt.store.CreateRun(ctx, &store.Run{ID: runID, DocumentURI: documentURI, RunPath: run.Path, Status: store.StatusRunning}); err != nil {
		return fmt.Errorf("run: recording run: %w", err)
	}

	printVerbose(cmd, "Executing %s as run %s\n", documentURI, runID)
	execution, err := rt.engine.ExecuteRun(ctx, runID, workflowrun.RunInput{
		DocumentURI: documentURI,
		RunPath:     run.Path,
		Inputs:      inputs,
	})
	if err != nil {
		rt.store.UpdateStatus(ctx, runID, store.StatusFailed, err.Error())
		return fmt.Errorf("run: %w", err)
	}

	out, err := rt.engine.GetRunResult(ctx, runID, execution.GetRunID())
	if err != nil {
		rt.store.UpdateStatus(ctx, runID, store.StatusFailed, err.Error())
		return fmt.Errorf("run: %w", err)
	}
	if err := rt.store.UpdateStatus(ctx, runID, store.StatusSucceeded, ""); err != nil {
		printError(cmd, "recording run status: %v", err)
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]any{"run_id": runID, "outputs": out.Outputs})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s succeeded\n", runID)
	for name, raw := range out.Outputs {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", name, string(raw))
	}
	return nil
}
