// Package taskrun drives one task invocation through its state machine:
// CREATED -> STAGED -> RENDERED -> RUNNING -> COLLECTED -> SUCCEEDED/FAILED,
// with independent retry budgets for CommandFailed (maxRetries) and
// Interrupted (preemptible) that are never merged into a shared pool.
package taskrun

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wdlrun/wdlrun/internal/ast"
	"github.com/wdlrun/wdlrun/internal/backend"
	"github.com/wdlrun/wdlrun/internal/eval"
	"github.com/wdlrun/wdlrun/internal/rundir"
	"github.com/wdlrun/wdlrun/internal/types"
	"github.com/wdlrun/wdlrun/internal/values"
)

// State names the task's position in the state machine.
type State int

const (
	Created State = iota
	Staged
	Rendered
	Running
	Collected
	Succeeded
	Failed
)

func (s State) String() string {
	return [...]string{"CREATED", "STAGED", "RENDERED", "RUNNING", "COLLECTED", "SUCCEEDED", "FAILED"}[s]
}

// FailureCategory distinguishes why a task failed, driving which retry
// budget (if any) applies.
type FailureCategory string

const (
	CommandFailed  FailureCategory = "CommandFailed"
	OutputError    FailureCategory = "OutputError"
	Interrupted    FailureCategory = "Interrupted"
	ImageNotFound  FailureCategory = "ImageNotFound"
	DownloadFailed FailureCategory = "DownloadFailed"
	InputErrorCat  FailureCategory = "InputError"
)

// Budgets tracks the two independently-accounted retry allowances a task
// carries: maxRetries for CommandFailed, preemptible for Interrupted.
// Exhausting either is terminal; the counters never share a pool, so a
// task that fails twice on CommandFailed and once on Interrupted (with
// maxRetries=2, preemptible=1) still has no attempts left, matching the
// spec's explicit decision to keep the budgets separate.
type Budgets struct {
	MaxRetries      int
	Preemptible     int
	commandAttempts int
	interruptCount  int
}

// Allow reports whether another attempt is permitted after a failure of
// the given category, consuming budget as a side effect.
func (b *Budgets) Allow(cat FailureCategory) bool {
	switch cat {
	case CommandFailed:
		if b.commandAttempts >= b.MaxRetries {
			return false
		}
		b.commandAttempts++
		return true
	case Interrupted:
		if b.interruptCount >= b.Preemptible {
			return false
		}
		b.interruptCount++
		return true
	}
	return false
}

// Resources describes what a task's runtime{} block requested.
type Resources struct {
	CPU              float64
	MemoryMB         int64
	Image            string
	InlineDockerfile string
	MaxRetries       int
	Preemptible      int
	EnvPassthrough   []string
}

// Result is the outcome of one completed task invocation.
type Result struct {
	State    State
	Outputs  map[string]values.Value
	ExitCode int
	Category FailureCategory
	Err      error
	WorkDir  *rundir.WorkDir
}

// Runner drives a single task through its state machine.
type Runner struct {
	Task       *ast.Task
	Call       *rundir.CallDir
	Backend    backend.Backend
	Evaluator  *eval.Evaluator
	MountPoint string // container-side work/ mount point, e.g. "/work"
	// AllowedRoots lists the host paths (and their ancestor directories)
	// a File/Directory input is permitted to resolve to, beyond Call's
	// own run directory: the File/Directory values bound to the run's
	// top-level declared inputs. A value reachable from scope that
	// resolves outside every allowed root (e.g. a workflow-body literal
	// or a struct smuggling an arbitrary host path through an unrelated
	// call's output) fails staging rather than being symlinked in.
	AllowedRoots []string
}

// New constructs a Runner. mountPoint is the fixed container-side path
// work/ is bind-mounted at. allowedRoots is the run's declared-input
// allow-list (see AllowedRoots); Call.RunPath is always implicitly
// allowed in addition, since outputs chained from an earlier call in the
// same run legitimately live there.
func New(task *ast.Task, call *rundir.CallDir, be backend.Backend, ev *eval.Evaluator, mountPoint string, allowedRoots []string) *Runner {
	return &Runner{Task: task, Call: call, Backend: be, Evaluator: ev, MountPoint: mountPoint, AllowedRoots: allowedRoots}
}

// Run executes the task end to end, retrying per budgets until it
// succeeds or the relevant budget is exhausted.
func (r *Runner) Run(ctx context.Context, scope eval.Env, res Resources) (*Result, error) {
	budgets := &Budgets{MaxRetries: res.MaxRetries, Preemptible: res.Preemptible}
	for {
		work, err := r.Call.NextWorkDir()
		if err != nil {
			return nil, fmt.Errorf("taskrun: allocating work directory: %w", err)
		}
		result, retryable := r.attempt(ctx, scope, res, work)
		if result.State == Succeeded {
			return result, nil
		}
		if !retryable || !budgets.Allow(result.Category) {
			return result, nil
		}
	}
}

func (r *Runner) attempt(ctx context.Context, scope eval.Env, res Resources, work *rundir.WorkDir) (*Result, bool) {
	inputsDir := work.InputsDir()
	if err := os.MkdirAll(inputsDir, 0o755); err != nil {
		return &Result{State: Failed, Category: InputErrorCat, Err: err, WorkDir: work}, false
	}

	staged, err := r.stage(scope, inputsDir)
	if err != nil {
		return &Result{State: Failed, Category: InputErrorCat, Err: err, WorkDir: work}, false
	}
	containerPaths := make(map[string]string, len(staged))
	for host, hostStaged := range staged {
		rel, relErr := filepath.Rel(work.Path, hostStaged)
		if relErr != nil {
			return &Result{State: Failed, Category: InputErrorCat, Err: relErr, WorkDir: work}, false
		}
		containerPaths[host] = filepath.Join(r.MountPoint, rel)
	}

	containerScope := rewriteScope(scope, containerPaths)
	script, err := r.render(containerScope)
	if err != nil {
		return &Result{State: Failed, Category: InputErrorCat, Err: err, WorkDir: work}, false
	}
	if err := work.WriteCommand(script); err != nil {
		return &Result{State: Failed, Category: InputErrorCat, Err: err, WorkDir: work}, false
	}

	handle, err := r.Backend.Run(ctx, backend.Spec{
		Image:      res.Image,
		Command:    []string{"/bin/bash", filepath.Join(r.MountPoint, "command")},
		WorkDir:    work.Path,
		MountPoint: r.MountPoint,
		CPU:        res.CPU,
		MemoryMB:   res.MemoryMB,
	})
	if err != nil {
		return &Result{State: Failed, Category: ImageNotFound, Err: err, WorkDir: work}, true
	}

	exit, err := handle.Wait(ctx)
	if err != nil {
		return &Result{State: Failed, Category: Interrupted, Err: err, WorkDir: work}, true
	}
	if exit != 0 {
		return &Result{State: Failed, Category: CommandFailed, ExitCode: exit, WorkDir: work}, true
	}

	outputs, err := r.collect(scope, work)
	if err != nil {
		return &Result{State: Failed, Category: OutputError, Err: err, WorkDir: work}, false
	}
	return &Result{State: Succeeded, Outputs: outputs, ExitCode: 0, WorkDir: work}, false
}

// stage materializes every File/Directory input under inputsDir, using
// hash-disambiguated staging directories symlinked in place for
// already-local files. Every host path is checked against the run's
// declared-input allow-list (plus the call's own run directory) before
// anything is symlinked.
func (r *Runner) stage(scope eval.Env, inputsDir string) (map[string]string, error) {
	roots := append(append([]string{}, r.AllowedRoots...), r.Call.RunPath)
	staged := map[string]string{}
	var stageErr error
	scope.Walk(func(name string, v values.Value) {
		if stageErr != nil {
			return
		}
		values.Files(v, func(fv values.Value) {
			if stageErr != nil {
				return
			}
			host := fv.String()
			if _, done := staged[host]; done {
				return
			}
			target, err := stageOne(inputsDir, host, roots)
			if err != nil {
				stageErr = err
				return
			}
			staged[host] = target
		})
	})
	return staged, stageErr
}

// isUnderAnyRoot reports whether path, once symlinks are resolved, is
// equal to or a descendant of one of roots (also symlink-resolved). A
// root or path that does not yet exist on disk is compared literally.
func isUnderAnyRoot(path string, roots []string) bool {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		real = path
	}
	for _, root := range roots {
		realRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			realRoot = root
		}
		rel, err := filepath.Rel(realRoot, real)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return true
		}
	}
	return false
}

func stageOne(inputsDir, hostPath string, allowedRoots []string) (string, error) {
	if !isUnderAnyRoot(hostPath, allowedRoots) {
		return "", fmt.Errorf("taskrun: inputs use unknown file %q: not in the declared input set", hostPath)
	}
	if _, err := os.Stat(hostPath); err != nil {
		return "", fmt.Errorf("taskrun: input %q is not accessible: %w", hostPath, err)
	}
	sum := sha256.Sum256([]byte(hostPath))
	hash := hex.EncodeToString(sum[:])[:16]
	dir := filepath.Join(inputsDir, "_miniwdl_inputs", hash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	target := filepath.Join(dir, filepath.Base(hostPath))
	if _, err := os.Lstat(target); err == nil {
		return target, nil
	}
	if err := os.Symlink(hostPath, target); err != nil {
		return "", fmt.Errorf("taskrun: staging %q: %w", hostPath, err)
	}
	return target, nil
}

// render interpolates the command template against scope, whose
// File/Directory values have already been rewritten to the container-side
// staged paths by rewriteScope.
func (r *Runner) render(scope eval.Env) (string, error) {
	cmd := &ast.StringLiteral{Parts: r.Task.Command.Parts}
	v, err := r.Evaluator.Eval(scope, cmd)
	if err != nil {
		return "", fmt.Errorf("taskrun: rendering command: %w", err)
	}
	return v.String(), nil
}

// rewriteScope rebinds every File/Directory value reachable from scope to
// its container-side staged path, leaving unreferenced bindings untouched.
func rewriteScope(scope eval.Env, containerPaths map[string]string) eval.Env {
	out := scope
	scope.Walk(func(name string, v values.Value) {
		rewritten := values.WithFiles(v, func(fv values.Value) values.Value {
			if cp, ok := containerPaths[fv.String()]; ok {
				if fv.Type().Kind == types.KindDirectory {
					return values.DirectoryPath(cp)
				}
				return values.FilePath(cp)
			}
			return fv
		})
		out = out.Bind(name, rewritten)
	})
	return out
}

// collect evaluates output declarations in turn, each binding visible to
// the next (outputs may reference earlier outputs), and verifies every
// File/Directory value resolves inside work/ once relative paths are
// anchored there and symlinks are traced to their real target.
func (r *Runner) collect(scope eval.Env, work *rundir.WorkDir) (map[string]values.Value, error) {
	outputs := map[string]values.Value{}
	outScope := scope
	for _, decl := range r.Task.Outputs {
		if decl.Expr == nil {
			continue
		}
		v, err := r.Evaluator.Eval(outScope, decl.Expr)
		if err != nil {
			return nil, fmt.Errorf("taskrun: output %q: %w", decl.Name, err)
		}
		anchored := values.WithFiles(v, func(fv values.Value) values.Value {
			p := fv.String()
			if !filepath.IsAbs(p) {
				p = filepath.Join(work.Path, p)
			}
			if fv.Type().Kind == types.KindDirectory {
				return values.DirectoryPath(p)
			}
			return values.FilePath(p)
		})
		var containErr error
		values.Files(anchored, func(fv values.Value) {
			if containErr != nil {
				return
			}
			if err := verifyContained(fv.String(), work.Path); err != nil {
				containErr = err
			}
		})
		if containErr != nil {
			return nil, containErr
		}
		outputs[decl.Name] = anchored
		outScope = outScope.Bind(decl.Name, anchored)
	}
	return outputs, nil
}

// verifyContained ensures path, once symlinks are resolved, lies inside root.
func verifyContained(path, root string) error {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return fmt.Errorf("taskrun: output path %q: %w", path, err)
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("taskrun: work directory %q: %w", root, err)
	}
	rel, err := filepath.Rel(realRoot, real)
	if err != nil || rel == ".." || (len(rel) >= 3 && rel[:3] == "../") {
		return fmt.Errorf("taskrun: output path %q escapes work directory %q", path, root)
	}
	return nil
}

// WriteDirectoryMarker drops the .WDL_Directory sentinel alongside an
// output Directory value, so downstream consumers can distinguish a
// staged directory from an ordinary one.
func WriteDirectoryMarker(dir string) error {
	return os.WriteFile(filepath.Join(dir, ".WDL_Directory"), nil, 0o644)
}
