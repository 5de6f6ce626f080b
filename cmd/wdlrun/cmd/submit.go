package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wdlrun/wdlrun/internal/taskqueue"
)

var submitInputsPath string

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <document>",
		Short: "Enqueue a workflow run for a running worker to pick up",
		Long: `Submit enqueues a workflow run onto the job queue and returns
immediately with a run ID; use "wdlrun worker" to actually execute
submitted runs.`,
		Args: cobra.ExactArgs(1),
		Example: `  wdlrun submit workflow.wdl
  wdlrun submit --inputs inputs.json workflow.wdl`,
		RunE: runSubmit,
	}
	cmd.Flags().StringVar(&submitInputsPath, "inputs", "", "path to a JSON inputs file")
	return cmd
}

func runSubmit(cmd *cobra.Command, args []string) error {
	documentURI := args[0]

	inputs := json.RawMessage("{}")
	if submitInputsPath != "" {
		data, err := os.ReadFile(submitInputsPath)
		if err != nil {
			return fmt.Errorf("reading inputs: %w", err)
		}
		inputs = data
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	queue, err := taskqueue.NewManager(cfg.Queue)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	runID := uuid.NewString()
	job, err := taskqueue.NewWorkflowJob(taskqueue.WorkflowJobPayload{
		RunID:       runID,
		DocumentURI: documentURI,
		Inputs:      inputs,
	})
	if err != nil {
		return fmt.Errorf("submit: building job: %w", err)
	}
	if _, err := queue.Enqueue(cmd.Context(), job); err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]any{"run_id": runID})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "submitted run %s\n", runID)
	return nil
}
