// Package plugin lets host code intercept three points in a run: how a
// File/Directory input URI is fetched, what a task call actually runs
// and what inputs it sees, and what a workflow run does with its final
// outputs or failure. Adapted from the reference repo's event bus
// (internal/event/bus, internal/event/dispatcher): that bus is a
// fire-and-forget pub/sub for observability events, while every hook
// here is a synchronous call/response the runtime's own control flow
// depends on, so Registry replaces Publish/Subscribe with direct
// invocation helpers instead of a worker-pool async buffer.
package plugin

import "context"

// FileDownloadHook fetches a URI this hook's scheme was registered for
// (see Registry.RegisterFileDownload) and returns the local path it was
// written to. internal/downloadcache.Scheme extracts the scheme a URI
// is dispatched on.
type FileDownloadHook interface {
	Download(ctx context.Context, uri string) (localPath string, err error)
}

// FileDownloadHookFunc adapts a function to a FileDownloadHook.
type FileDownloadHookFunc func(ctx context.Context, uri string) (string, error)

func (f FileDownloadHookFunc) Download(ctx context.Context, uri string) (string, error) {
	return f(ctx, uri)
}

// TaskCallInfo identifies the task call a TaskHook is intercepting.
type TaskCallInfo struct {
	DocumentURI string
	TaskName    string
	CallName    string
}

// TaskHook can rewrite a task call before it runs and observe or amend
// its result afterward. Prepare returning a non-empty taskSource
// substitutes the command a task runs without altering the parsed
// document (e.g. injecting a wrapper script); a nil inputs return
// leaves the call's evaluated inputs unchanged.
type TaskHook interface {
	// Prepare runs after a call's inputs are evaluated but before
	// staging, and can override the task's command source and/or
	// rewrite its inputs.
	Prepare(ctx context.Context, call TaskCallInfo, source string, inputs map[string]any) (newSource string, newInputs map[string]any, err error)

	// Finalize runs after a task call completes, successfully or not.
	// failure is nil on success. The returned outputs replace the
	// call's own outputs; a hook that doesn't need to change anything
	// returns outputs unmodified.
	Finalize(ctx context.Context, call TaskCallInfo, outputs map[string]any, failure error) (map[string]any, error)
}

// WorkflowRunInfo identifies the run a WorkflowHook is observing.
type WorkflowRunInfo struct {
	RunID       string
	DocumentURI string
}

// WorkflowHook observes a run's terminal outcome. Only failure is
// modeled as a hook point (rather than also an OnSuccess) because the
// reference use case for this hook — alerting, auto-retry policy,
// quarantining a bad input — only needs to act when something went
// wrong; a successful run's outputs are already visible through the
// normal RunOutput path.
type WorkflowHook interface {
	OnFailure(ctx context.Context, run WorkflowRunInfo, failure error)
}

// WorkflowHookFunc adapts a function to a WorkflowHook.
type WorkflowHookFunc func(ctx context.Context, run WorkflowRunInfo, failure error)

func (f WorkflowHookFunc) OnFailure(ctx context.Context, run WorkflowRunInfo, failure error) {
	f(ctx, run, failure)
}
