package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/wdlrun/wdlrun/internal/rundir"
	"github.com/wdlrun/wdlrun/internal/shutdown"
	"github.com/wdlrun/wdlrun/internal/store"
	"github.com/wdlrun/wdlrun/internal/taskqueue"
	"github.com/wdlrun/wdlrun/internal/workflowrun"
)

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the long-lived engine worker and job queue",
		Long: `Worker starts the Temporal worker that drives task calls and
scatter instances, plus an Asynq consumer that picks up workflow runs
submitted with "wdlrun submit", and blocks until it receives SIGINT or
SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: runWorker,
	}
	return cmd
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	rt, err := bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	defer rt.close()

	queue, err := taskqueue.NewManager(rt.cfg.Queue)
	if err != nil {
		return fmt.Errorf("worker: starting job queue: %w", err)
	}
	queue.RegisterHandlerFunc(taskqueue.JobRunWorkflow, func(ctx context.Context, t *asynq.Task) error {
		return handleWorkflowJob(ctx, rt, t.Payload())
	})
	if err := queue.Start(); err != nil {
		return fmt.Errorf("worker: starting job queue: %w", err)
	}
	rt.shutdown.Register("job-queue", shutdown.PriorityBackgroundWorkers, func(ctx context.Context) error {
		return queue.Stop()
	})

	var obsServer *http.Server
	if rt.cfg.Metrics.Enabled {
		obsServer = &http.Server{Addr: rt.cfg.Metrics.Addr, Handler: rt.observabilityHandler()}
		go func() {
			if err := obsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				rt.logger.Error("observability server failed", "error", err.Error())
			}
		}()
		rt.shutdown.Register("observability-server", shutdown.PriorityHTTPServer, func(ctx context.Context) error {
			return obsServer.Shutdown(ctx)
		})
		fmt.Fprintf(cmd.OutOrStdout(), "health/metrics listening on %s\n", rt.cfg.Metrics.Addr)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "wdlrun worker listening for submitted runs")

	done := rt.shutdown.ListenForSignals()
	<-done
	fmt.Fprintln(cmd.OutOrStdout(), "\nWorker shut down.")
	return nil
}

// handleWorkflowJob executes one submitted run to completion and records
// its outcome in the run store, the Asynq handler counterpart to "wdlrun
// run"'s direct engine call.
func handleWorkflowJob(ctx context.Context, rt *runtime, payload []byte) error {
	var job taskqueue.WorkflowJobPayload
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decoding workflow job: %w", err)
	}

	runPath := job.RunPath
	if runPath == "" {
		run, err := rundir.New(rt.cfg.RunRoot, job.RunID, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("creating run directory: %w", err)
		}
		runPath = run.Path
	}

	if err := rt.store.CreateRun(ctx, &store.Run{ID: job.RunID, DocumentURI: job.DocumentURI, RunPath: runPath, Status: store.StatusRunning}); err != nil {
		return fmt.Errorf("recording run: %w", err)
	}

	execution, err := rt.engine.ExecuteRun(ctx, job.RunID, workflowrun.RunInput{
		DocumentURI: job.DocumentURI,
		RunPath:     runPath,
		Inputs:      job.Inputs,
	})
	if err != nil {
		rt.store.UpdateStatus(ctx, job.RunID, store.StatusFailed, err.Error())
		return err
	}
	if _, err := rt.engine.GetRunResult(ctx, job.RunID, execution.GetRunID()); err != nil {
		rt.store.UpdateStatus(ctx, job.RunID, store.StatusFailed, err.Error())
		return err
	}
	return rt.store.UpdateStatus(ctx, job.RunID, store.StatusSucceeded, "")
}
