package plugin

import (
	"context"
	"fmt"
	"sync"
)

// Logger is the logging capability Registry needs, matching the
// reference event bus's minimal Logger interface so the same
// pkg/logging adapter backs both.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Registry holds every hook the runtime has been given, keyed by hook
// group. Unlike the reference event bus's Subscribe (append to a list,
// fire-and-forget to all), task and file-download hooks here return
// values the caller's control flow depends on, so registration enforces
// at most one hook per file-download scheme and chains task hooks in
// registration order, each seeing the previous one's rewrite.
type Registry struct {
	mu            sync.RWMutex
	fileDownloads map[string]FileDownloadHook
	taskHooks     []TaskHook
	workflowHooks []WorkflowHook
	logger        Logger
}

// New creates an empty Registry. A nil logger disables logging.
func New(logger Logger) *Registry {
	return &Registry{
		fileDownloads: make(map[string]FileDownloadHook),
		logger:        logger,
	}
}

// RegisterFileDownload installs hook as the handler for every URI whose
// scheme equals scheme (e.g. "s3", "gs"); registering a second hook for
// the same scheme replaces the first.
func (r *Registry) RegisterFileDownload(scheme string, hook FileDownloadHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fileDownloads[scheme] = hook
	if r.logger != nil {
		r.logger.Debug("file download hook registered", "scheme", scheme)
	}
}

// RegisterTask appends a TaskHook, chained after any already registered.
func (r *Registry) RegisterTask(hook TaskHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taskHooks = append(r.taskHooks, hook)
}

// RegisterWorkflow appends a WorkflowHook.
func (r *Registry) RegisterWorkflow(hook WorkflowHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflowHooks = append(r.workflowHooks, hook)
}

// HasFileDownload reports whether a hook is registered for scheme, so a
// caller can fall back to its own default fetch logic otherwise.
func (r *Registry) HasFileDownload(scheme string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.fileDownloads[scheme]
	return ok
}

// Download dispatches to the hook registered for uri's scheme.
func (r *Registry) Download(ctx context.Context, scheme, uri string) (string, error) {
	r.mu.RLock()
	hook, ok := r.fileDownloads[scheme]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("plugin: no file download hook registered for scheme %q", scheme)
	}
	return hook.Download(ctx, uri)
}

// Prepare runs every registered TaskHook in order, each seeing the
// previous one's rewritten source/inputs, before a task call is staged.
func (r *Registry) Prepare(ctx context.Context, call TaskCallInfo, source string, inputs map[string]any) (string, map[string]any, error) {
	r.mu.RLock()
	hooks := append([]TaskHook(nil), r.taskHooks...)
	r.mu.RUnlock()

	for _, h := range hooks {
		newSource, newInputs, err := r.safePrepare(ctx, h, call, source, inputs)
		if err != nil {
			return "", nil, fmt.Errorf("plugin: prepare hook for %q: %w", call.CallName, err)
		}
		if newSource != "" {
			source = newSource
		}
		if newInputs != nil {
			inputs = newInputs
		}
	}
	return source, inputs, nil
}

// Finalize runs every registered TaskHook in order, each seeing the
// previous one's rewritten outputs, after a task call completes.
func (r *Registry) Finalize(ctx context.Context, call TaskCallInfo, outputs map[string]any, failure error) (map[string]any, error) {
	r.mu.RLock()
	hooks := append([]TaskHook(nil), r.taskHooks...)
	r.mu.RUnlock()

	for _, h := range hooks {
		next, err := r.safeFinalize(ctx, h, call, outputs, failure)
		if err != nil {
			return nil, fmt.Errorf("plugin: finalize hook for %q: %w", call.CallName, err)
		}
		if next != nil {
			outputs = next
		}
	}
	return outputs, nil
}

// NotifyFailure calls every registered WorkflowHook's OnFailure,
// isolating a panicking hook from its peers the same way the reference
// event bus isolates a panicking subscriber.
func (r *Registry) NotifyFailure(ctx context.Context, run WorkflowRunInfo, failure error) {
	r.mu.RLock()
	hooks := append([]WorkflowHook(nil), r.workflowHooks...)
	r.mu.RUnlock()

	for _, h := range hooks {
		r.safeOnFailure(ctx, h, run, failure)
	}
}

func (r *Registry) safePrepare(ctx context.Context, h TaskHook, call TaskCallInfo, source string, inputs map[string]any) (newSource string, newInputs map[string]any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return h.Prepare(ctx, call, source, inputs)
}

func (r *Registry) safeFinalize(ctx context.Context, h TaskHook, call TaskCallInfo, outputs map[string]any, failure error) (next map[string]any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return h.Finalize(ctx, call, outputs, failure)
}

func (r *Registry) safeOnFailure(ctx context.Context, h WorkflowHook, run WorkflowRunInfo, failure error) {
	defer func() {
		if rec := recover(); rec != nil && r.logger != nil {
			r.logger.Error("workflow hook panicked", "runID", run.RunID, "panic", rec)
		}
	}()
	h.OnFailure(ctx, run, failure)
}
