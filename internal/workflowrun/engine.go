package workflowrun

import (
	"context"
	"fmt"
	"sync"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/wdlrun/wdlrun/internal/plugin"
)

// Engine owns the Temporal client/worker pair that runs WorkflowRun (the
// document-driving workflow function) and the RunTaskCall activity (one
// task call).
type Engine struct {
	client  client.Client
	worker  worker.Worker
	config  Config
	plugins *plugin.Registry
	mu      sync.RWMutex
	running bool
}

// NewEngine creates a new workflow engine with the given configuration.
// plugins may be nil to run without any workflow-lifecycle hooks.
func NewEngine(cfg Config, plugins *plugin.Registry) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("workflowrun: validating config: %w", err)
	}
	return &Engine{config: cfg, plugins: plugins}, nil
}

// Start connects to Temporal, registers WorkflowRun/ScatterBody/
// RunTaskCall, and starts polling the task queue.
func (e *Engine) Start(ctx context.Context, activities *Activities) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrEngineAlreadyStarted
	}

	c, err := client.Dial(client.Options{
		HostPort:  e.config.TemporalHostPort,
		Namespace: e.config.Namespace,
	})
	if err != nil {
		return fmt.Errorf("workflowrun: connecting to temporal: %w", err)
	}
	e.client = c

	w := worker.New(c, e.config.TaskQueue, worker.Options{
		MaxConcurrentWorkflowTaskExecutionSize: e.config.MaxConcurrentWorkflows,
		MaxConcurrentActivityExecutionSize:     e.config.MaxConcurrentActivities,
		Identity:                               e.config.WorkerID,
	})
	w.RegisterWorkflow(WorkflowRun)
	w.RegisterWorkflow(ScatterBody)
	w.RegisterActivity(activities.RunTaskCall)

	if err := w.Start(); err != nil {
		e.client.Close()
		return fmt.Errorf("workflowrun: starting worker: %w", err)
	}
	e.worker = w
	e.running = true
	return nil
}

// Stop gracefully shuts the engine down.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return ErrEngineNotStarted
	}
	e.worker.Stop()
	e.client.Close()
	e.running = false
	return nil
}

// ExecuteRun starts one WorkflowRun execution for a parsed document.
func (e *Engine) ExecuteRun(ctx context.Context, runID string, input RunInput) (client.WorkflowRun, error) {
	e.mu.RLock()
	if !e.running {
		e.mu.RUnlock()
		return nil, ErrEngineNotStarted
	}
	c, taskQueue, timeout := e.client, e.config.TaskQueue, e.config.DefaultTimeout
	e.mu.RUnlock()

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       runID,
		TaskQueue:                taskQueue,
		WorkflowExecutionTimeout: timeout,
	}, WorkflowRun, input)
	if err != nil {
		return nil, fmt.Errorf("workflowrun: executing run: %w", err)
	}
	return run, nil
}

// GetRunResult blocks for a run's RunOutput.
func (e *Engine) GetRunResult(ctx context.Context, runID, temporalRunID string) (*RunOutput, error) {
	e.mu.RLock()
	if !e.running {
		e.mu.RUnlock()
		return nil, ErrEngineNotStarted
	}
	c := e.client
	e.mu.RUnlock()

	var out RunOutput
	run := c.GetWorkflow(ctx, runID, temporalRunID)
	if err := run.Get(ctx, &out); err != nil {
		if e.plugins != nil {
			e.plugins.NotifyFailure(ctx, plugin.WorkflowRunInfo{RunID: runID}, err)
		}
		return nil, fmt.Errorf("workflowrun: getting run result: %w", err)
	}
	return &out, nil
}

// CancelRun cancels a running workflow execution, propagating cancellation
// to every in-flight task activity and scatter child workflow.
func (e *Engine) CancelRun(ctx context.Context, runID, temporalRunID string) error {
	e.mu.RLock()
	if !e.running {
		e.mu.RUnlock()
		return ErrEngineNotStarted
	}
	c := e.client
	e.mu.RUnlock()
	if err := c.CancelWorkflow(ctx, runID, temporalRunID); err != nil {
		return fmt.Errorf("workflowrun: cancelling run: %w", err)
	}
	return nil
}

// IsRunning reports whether the engine's worker is polling.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Client returns the underlying Temporal client.
func (e *Engine) Client() client.Client {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.client
}
