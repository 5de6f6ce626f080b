package workflowrun

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/wdlrun/wdlrun/internal/ast"
	"github.com/wdlrun/wdlrun/internal/backend"
	"github.com/wdlrun/wdlrun/internal/downloadcache"
	"github.com/wdlrun/wdlrun/internal/env"
	"github.com/wdlrun/wdlrun/internal/eval"
	"github.com/wdlrun/wdlrun/internal/plugin"
	"github.com/wdlrun/wdlrun/internal/rundir"
	"github.com/wdlrun/wdlrun/internal/stdlib"
	"github.com/wdlrun/wdlrun/internal/taskrun"
	"github.com/wdlrun/wdlrun/internal/types"
	"github.com/wdlrun/wdlrun/internal/values"
)

// Activities holds everything RunTaskCall needs to execute a task call
// that WorkflowRun dispatched as an activity: a document loader, a
// container backend, and the fixed container-side path a task's staged
// inputs are bind-mounted at.
type Activities struct {
	Loader     func(uri string) (*ast.Document, error)
	Backend    backend.Backend
	IO         stdlib.IO
	MountPoint string
	// Plugins, if set, lets host-installed hooks rewrite a call's inputs
	// before it runs and its outputs after, and is consulted for
	// file-download URIs stdlib's read_*/write_* IO doesn't know how to
	// fetch itself. Nil disables all three.
	Plugins *plugin.Registry
}

// NewActivities constructs an Activities bound to the given document
// loader, container backend, and IO capability for read_*/write_*/glob
// calls in task private declarations and outputs. Pass a nil registry
// to run without any prepare/finalize/file-download hooks installed.
func NewActivities(loader func(uri string) (*ast.Document, error), be backend.Backend, io stdlib.IO, mountPoint string, plugins *plugin.Registry) *Activities {
	return &Activities{Loader: loader, Backend: be, IO: io, MountPoint: mountPoint, Plugins: plugins}
}

// CallActivityInput is RunTaskCall's parameter: enough to reload the task
// definition and rebuild its input scope without shipping ast nodes
// across the activity boundary.
type CallActivityInput struct {
	DocumentURI string
	TaskName    string
	CallName    string
	RunPath     string
	Inputs      map[string]json.RawMessage
	// AllowedRoots is the run's declared-input allow-list, computed once
	// from the workflow's top-level inputs and forwarded unchanged to
	// every call: the host paths a File/Directory input may resolve to,
	// beyond RunPath itself. See taskrun.Runner.AllowedRoots.
	AllowedRoots []string
}

// CallActivityOutput is RunTaskCall's result.
type CallActivityOutput struct {
	Failed          bool
	FailureCategory string
	FailureMessage  string
	Outputs         map[string]json.RawMessage
}

// RunTaskCall drives one task call through internal/taskrun. An ordinary
// task failure (CommandFailed, OutputError, ...) is reported in the
// returned CallActivityOutput, never as a Go error, so Temporal's own
// retry policy never re-attempts a call whose taskrun-level retry budget
// is already exhausted; only infrastructure failures (document won't
// load, staging directories can't be created) surface as an activity
// error.
func (a *Activities) RunTaskCall(ctx context.Context, in CallActivityInput) (*CallActivityOutput, error) {
	doc, err := a.Loader(in.DocumentURI)
	if err != nil {
		return nil, fmt.Errorf("workflowrun: loading document: %w", err)
	}
	task := findTask(doc, in.TaskName)
	if task == nil {
		return nil, fmt.Errorf("workflowrun: task %q not found", in.TaskName)
	}
	structs := structsOf(doc)

	callInfo := plugin.TaskCallInfo{DocumentURI: in.DocumentURI, TaskName: in.TaskName, CallName: in.CallName}
	inputs := in.Inputs
	if a.Plugins != nil {
		inputsAny := make(map[string]any, len(inputs))
		for name, raw := range inputs {
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("workflowrun: decoding input %q for prepare hook: %w", name, err)
			}
			inputsAny[name] = v
		}
		// newSource is reserved for a future command-override hook; today's
		// taskrun.Runner executes the statically-resolved *ast.Task, so a
		// rewritten source string has nowhere to land yet.
		_, newInputsAny, err := a.Plugins.Prepare(ctx, callInfo, "", inputsAny)
		if err != nil {
			return nil, fmt.Errorf("workflowrun: task hook prepare: %w", err)
		}
		if newInputsAny != nil {
			rewritten := make(map[string]json.RawMessage, len(newInputsAny))
			for name, v := range newInputsAny {
				raw, err := json.Marshal(v)
				if err != nil {
					return nil, fmt.Errorf("workflowrun: encoding prepared input %q: %w", name, err)
				}
				rewritten[name] = raw
			}
			inputs = rewritten
		}
	}

	ev := eval.New(a.IO)
	scope := env.Empty[values.Value]()
	for _, d := range task.Inputs {
		t := types.FromExpr(d.DeclType, structs)
		if raw, ok := inputs[d.Name]; ok {
			var generic any
			if err := json.Unmarshal(raw, &generic); err != nil {
				return nil, fmt.Errorf("workflowrun: decoding input %q: %w", d.Name, err)
			}
			if a.Plugins != nil && (t.Base().Kind == types.KindFile || t.Base().Kind == types.KindDirectory) {
				if uri, ok := generic.(string); ok {
					if local, err := a.downloadIfRemote(ctx, uri); err != nil {
						return nil, fmt.Errorf("workflowrun: fetching input %q: %w", d.Name, err)
					} else if local != "" {
						generic = local
					}
				}
			}
			v, err := values.FromJSON(t, generic)
			if err != nil {
				return nil, fmt.Errorf("workflowrun: input %q: %w", d.Name, err)
			}
			scope = scope.Bind(d.Name, v)
			continue
		}
		if d.Expr != nil {
			v, err := ev.Eval(scope, d.Expr)
			if err != nil {
				return nil, fmt.Errorf("workflowrun: default for input %q: %w", d.Name, err)
			}
			scope = scope.Bind(d.Name, v)
		}
	}
	for _, d := range task.Privates {
		if d.Expr == nil {
			continue
		}
		v, err := ev.Eval(scope, d.Expr)
		if err != nil {
			return nil, fmt.Errorf("workflowrun: private declaration %q: %w", d.Name, err)
		}
		scope = scope.Bind(d.Name, v)
	}

	res, err := resourcesFromRuntime(ev, scope, task.Runtime)
	if err != nil {
		return nil, fmt.Errorf("workflowrun: evaluating runtime: %w", err)
	}

	run := &rundir.Run{Path: in.RunPath}
	callDir, err := run.Call(in.CallName)
	if err != nil {
		return nil, fmt.Errorf("workflowrun: creating call directory: %w", err)
	}

	runner := taskrun.New(task, callDir, a.Backend, ev, a.MountPoint, in.AllowedRoots)
	result, err := runner.Run(ctx, scope, res)
	if err != nil {
		return nil, fmt.Errorf("workflowrun: running task %q: %w", in.TaskName, err)
	}

	if result.State != taskrun.Succeeded {
		msg := ""
		if result.Err != nil {
			msg = result.Err.Error()
		} else if result.Category == taskrun.CommandFailed {
			msg = fmt.Sprintf("command exited %d", result.ExitCode)
		}
		if a.Plugins != nil {
			recovered, ferr := a.Plugins.Finalize(ctx, callInfo, nil, fmt.Errorf("%s: %s", result.Category, msg))
			if ferr != nil {
				return nil, fmt.Errorf("workflowrun: task hook finalize: %w", ferr)
			}
			if recovered != nil {
				outs, err := marshalOutputsAny(recovered)
				if err != nil {
					return nil, err
				}
				return &CallActivityOutput{Outputs: outs}, nil
			}
		}
		return &CallActivityOutput{
			Failed:          true,
			FailureCategory: string(result.Category),
			FailureMessage:  msg,
		}, nil
	}

	outs := make(map[string]json.RawMessage, len(result.Outputs))
	for name, v := range result.Outputs {
		raw, err := marshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("workflowrun: encoding output %q: %w", name, err)
		}
		outs[name] = raw
	}

	if a.Plugins != nil {
		outsAny := make(map[string]any, len(outs))
		for name, raw := range outs {
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("workflowrun: decoding output %q for finalize hook: %w", name, err)
			}
			outsAny[name] = v
		}
		rewritten, err := a.Plugins.Finalize(ctx, callInfo, outsAny, nil)
		if err != nil {
			return nil, fmt.Errorf("workflowrun: task hook finalize: %w", err)
		}
		if rewritten != nil {
			outs, err = marshalOutputsAny(rewritten)
			if err != nil {
				return nil, err
			}
		}
	}
	return &CallActivityOutput{Outputs: outs}, nil
}

// downloadIfRemote resolves uri through a.Plugins' file-download hook for
// its scheme, returning the local path a hook fetched it to, or "" when
// uri has no registered scheme (a local path, passed through unchanged).
func (a *Activities) downloadIfRemote(ctx context.Context, uri string) (string, error) {
	scheme := downloadcache.Scheme(uri)
	if scheme == "" || !a.Plugins.HasFileDownload(scheme) {
		return "", nil
	}
	return a.Plugins.Download(ctx, scheme, uri)
}

// marshalOutputsAny encodes a finalize hook's output map back into the
// json.RawMessage form CallActivityOutput carries across the activity
// boundary.
func marshalOutputsAny(outputs map[string]any) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(outputs))
	for name, v := range outputs {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("workflowrun: encoding output %q: %w", name, err)
		}
		out[name] = raw
	}
	return out, nil
}

// resourcesFromRuntime evaluates a task's runtime{} block into the
// taskrun.Resources request the container backend and retry budgets act
// on. Unset attributes fall back to unconstrained (0) or the WDL default
// (maxRetries 0, no preemption).
func resourcesFromRuntime(ev *eval.Evaluator, scope eval.Env, rt *ast.RuntimeSection) (taskrun.Resources, error) {
	var res taskrun.Resources
	if rt == nil {
		return res, nil
	}
	if expr, ok := rt.Attrs["docker"]; ok {
		v, err := ev.Eval(scope, expr)
		if err != nil {
			return res, fmt.Errorf("runtime.docker: %w", err)
		}
		res.Image = v.String()
	}
	if expr, ok := rt.Attrs["cpu"]; ok {
		v, err := ev.Eval(scope, expr)
		if err != nil {
			return res, fmt.Errorf("runtime.cpu: %w", err)
		}
		res.CPU = v.AsFloat()
	}
	if expr, ok := rt.Attrs["memory"]; ok {
		v, err := ev.Eval(scope, expr)
		if err != nil {
			return res, fmt.Errorf("runtime.memory: %w", err)
		}
		mb, err := parseMemoryMB(v)
		if err != nil {
			return res, fmt.Errorf("runtime.memory: %w", err)
		}
		res.MemoryMB = mb
	}
	if expr, ok := rt.Attrs["maxRetries"]; ok {
		v, err := ev.Eval(scope, expr)
		if err != nil {
			return res, fmt.Errorf("runtime.maxRetries: %w", err)
		}
		res.MaxRetries = int(v.Int())
	}
	if expr, ok := rt.Attrs["preemptible"]; ok {
		v, err := ev.Eval(scope, expr)
		if err != nil {
			return res, fmt.Errorf("runtime.preemptible: %w", err)
		}
		if v.Type().Kind == types.KindBoolean {
			if v.Bool() {
				res.Preemptible = 1
			}
		} else {
			res.Preemptible = int(v.Int())
		}
	}
	return res, nil
}

// parseMemoryMB accepts either a bare number of bytes or a Cromwell-style
// "<number> <unit>" string (KB/MB/GB/TB, KiB/MiB/GiB/TiB), returning
// whole megabytes.
func parseMemoryMB(v values.Value) (int64, error) {
	if v.Type().Kind != types.KindString {
		return v.Int() / (1024 * 1024), nil
	}
	s := strings.TrimSpace(v.String())
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty memory specification")
	}
	n, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory quantity %q", fields[0])
	}
	unit := "B"
	if len(fields) > 1 {
		unit = fields[1]
	}
	bytesPerUnit := map[string]float64{
		"B":   1,
		"KB":  1000,
		"MB":  1000 * 1000,
		"GB":  1000 * 1000 * 1000,
		"TB":  1000 * 1000 * 1000 * 1000,
		"KiB": 1024,
		"MiB": 1024 * 1024,
		"GiB": 1024 * 1024 * 1024,
		"TiB": 1024 * 1024 * 1024 * 1024,
	}
	factor, ok := bytesPerUnit[unit]
	if !ok {
		return 0, fmt.Errorf("unknown memory unit %q", unit)
	}
	return int64(n * factor / (1024 * 1024)), nil
}
