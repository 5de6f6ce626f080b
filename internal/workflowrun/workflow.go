package workflowrun

import (
	"encoding/json"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/wdlrun/wdlrun/internal/ast"
	"github.com/wdlrun/wdlrun/internal/env"
	"github.com/wdlrun/wdlrun/internal/eval"
	"github.com/wdlrun/wdlrun/internal/types"
	"github.com/wdlrun/wdlrun/internal/values"
)

// DocumentLoader parses and resolves the document at uri. It is set once
// at worker startup; WorkflowRun and ScatterBody call it to re-derive the
// AST rather than shipping it across the wire on every workflow/activity
// boundary, since ast.Document does not round-trip through Temporal's
// default JSON data converter (its nodes carry unexported position fields).
var DocumentLoader func(uri string) (*ast.Document, error)

// RunInput starts one workflow execution.
type RunInput struct {
	DocumentURI string          `json:"document_uri"`
	RunPath     string          `json:"run_path"`
	Inputs      json.RawMessage `json:"inputs"`
}

// RunOutput is WorkflowRun's terminal result.
type RunOutput struct {
	Outputs map[string]json.RawMessage `json:"outputs"`
}

// nopIO satisfies stdlib.IO for workflow-body expression evaluation. No
// function with a filesystem side effect (read_*/write_*/glob/size) is
// valid in workflow-body or call-input expressions, only in a task's
// private declarations, command, and outputs.
type nopIO struct{}

func (nopIO) ReadFile(string) (string, error) {
	return "", fmt.Errorf("workflowrun: file-reading functions are not valid in workflow expressions")
}
func (nopIO) WriteFile(string) (string, error) {
	return "", fmt.Errorf("workflowrun: file-writing functions are not valid in workflow expressions")
}
func (nopIO) Glob(string) ([]string, error) {
	return nil, fmt.Errorf("workflowrun: glob() is not valid in workflow expressions")
}
func (nopIO) FileSize(string) (int64, error) {
	return 0, fmt.Errorf("workflowrun: size() is not valid in workflow expressions")
}

func loadWorkflow(uri string) (*ast.Workflow, *ast.Document, error) {
	if DocumentLoader == nil {
		return nil, nil, fmt.Errorf("workflowrun: no document loader registered")
	}
	doc, err := DocumentLoader(uri)
	if err != nil {
		return nil, nil, fmt.Errorf("workflowrun: loading %s: %w", uri, err)
	}
	if doc.Workflow == nil {
		return nil, nil, fmt.Errorf("workflowrun: %s declares no workflow", uri)
	}
	return doc.Workflow, doc, nil
}

// findTask locates a task by name; target may carry a dotted import
// prefix, in which case only the final segment is matched.
func findTask(doc *ast.Document, target string) *ast.Task {
	name := target
	for i := len(target) - 1; i >= 0; i-- {
		if target[i] == '.' {
			name = target[i+1:]
			break
		}
	}
	for _, t := range doc.Tasks {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// structsOf resolves the document's local struct declarations into
// types.Type, used to rehydrate JSON crossing an activity/child-workflow
// boundary into its declared output type rather than a dynamically-typed
// Any.
func structsOf(doc *ast.Document) map[string]types.Type {
	known := map[string]types.Type{}
	for _, s := range doc.Structs {
		members := make([]types.StructMember, len(s.Members))
		for i, m := range s.Members {
			members[i] = types.StructMember{Name: m.Name, Type: types.FromExpr(m.Type, known)}
		}
		known[s.Name] = types.Struct(s.Name, members)
	}
	return known
}

// WorkflowRun is the Temporal workflow function. It threads an eval.Env
// through the document's workflow body, dispatching each CallDecl as a
// RunTaskCall activity, each ScatterDecl as a batch of child workflow
// iterations, and each ConditionalDecl inline.
func WorkflowRun(ctx workflow.Context, input RunInput) (*RunOutput, error) {
	wf, doc, err := loadWorkflow(input.DocumentURI)
	if err != nil {
		return nil, err
	}

	scope, err := bindInputs(doc, wf.Inputs, input.Inputs)
	if err != nil {
		return nil, err
	}
	allowedRoots := declaredInputRoots(scope)

	scope, err = runBody(ctx, input.DocumentURI, doc, wf.Body, scope, input.RunPath, "", allowedRoots)
	if err != nil {
		return nil, ErrRunFailed{WorkflowID: wf.Name, RunID: workflow.GetInfo(ctx).WorkflowExecution.ID, Cause: err}
	}

	ev := eval.New(nopIO{})
	outputs := map[string]json.RawMessage{}
	for _, d := range wf.Outputs {
		if d.Expr == nil {
			continue
		}
		v, err := ev.Eval(scope, d.Expr)
		if err != nil {
			return nil, ErrRunFailed{WorkflowID: wf.Name, RunID: workflow.GetInfo(ctx).WorkflowExecution.ID, Cause: err}
		}
		raw, err := marshalValue(v)
		if err != nil {
			return nil, err
		}
		outputs[d.Name] = raw
	}
	return &RunOutput{Outputs: outputs}, nil
}

// declaredInputRoots collects the host File/Directory paths bound in
// scope, the run's declared-input allow-list handed to every task call's
// staging step (see taskrun.Runner.AllowedRoots). Called once, against
// the workflow's top-level input scope, before any call runs.
func declaredInputRoots(scope eval.Env) []string {
	var roots []string
	scope.Walk(func(name string, v values.Value) {
		values.Files(v, func(fv values.Value) {
			roots = append(roots, fv.String())
		})
	})
	return roots
}

// runBody runs every node of a workflow/scatter/conditional body. Calls
// within the body are dispatched concurrently as soon as their
// dependencies (the `after` clause plus any call alias an input
// expression references) are satisfied; every other node runs inline, in
// document order, once every call in the body has settled.
func runBody(ctx workflow.Context, docURI string, doc *ast.Document, body []ast.WorkflowNode, scope eval.Env, runPath, callSuffix string, allowedRoots []string) (eval.Env, error) {
	ev := eval.New(nopIO{})
	structs := structsOf(doc)

	calls := map[string]*ast.CallDecl{}
	for _, node := range body {
		if c, ok := node.(*ast.CallDecl); ok {
			calls[c.Alias] = c
		}
	}

	pending := make(map[string]*ast.CallDecl, len(calls))
	for alias, c := range calls {
		pending[alias] = c
	}
	running := map[string]bool{}
	results := map[string]values.Value{}
	selector := workflow.NewSelector(ctx)
	var callErr error

	launch := func(alias string) {
		c := pending[alias]
		running[alias] = true

		task := findTask(doc, c.Target)
		if task == nil {
			callErr = ErrCallFailed{CallName: alias, Cause: fmt.Errorf("task %q not found", c.Target)}
			return
		}

		rawInputs := map[string]json.RawMessage{}
		for _, in := range c.Inputs {
			v, err := ev.Eval(scope, in.Expr)
			if err != nil {
				callErr = ErrCallFailed{CallName: alias, Cause: err}
				return
			}
			raw, err := marshalValue(v)
			if err != nil {
				callErr = ErrCallFailed{CallName: alias, Cause: err}
				return
			}
			rawInputs[in.Name] = raw
		}

		payload := CallActivityInput{
			DocumentURI:  docURI,
			TaskName:     task.Name,
			CallName:     alias + callSuffix,
			RunPath:      runPath,
			Inputs:       rawInputs,
			AllowedRoots: allowedRoots,
		}

		actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: 24 * time.Hour,
			RetryPolicy: &temporal.RetryPolicy{
				// internal/taskrun already exhausts the task's own
				// CommandFailed/Interrupted retry budget before this
				// activity returns; a few Temporal-level attempts here
				// only cover the activity worker crashing outright.
				MaximumAttempts: 3,
			},
		})
		future := workflow.ExecuteActivity(actCtx, "RunTaskCall", payload)

		selector.AddFuture(future, func(f workflow.Future) {
			delete(pending, alias)
			var out CallActivityOutput
			if err := f.Get(ctx, &out); err != nil {
				callErr = ErrCallFailed{CallName: alias, Cause: err}
				return
			}
			if out.Failed {
				callErr = ErrCallFailed{CallName: alias, Cause: fmt.Errorf("%s: %s", out.FailureCategory, out.FailureMessage)}
				return
			}
			v, err := decodeTaskOutputs(task, out.Outputs, structs)
			if err != nil {
				callErr = ErrCallFailed{CallName: alias, Cause: err}
				return
			}
			results[alias] = v
		})
	}

	for len(pending) > 0 || len(running) > 0 {
		for alias, c := range pending {
			if running[alias] {
				continue
			}
			// Only this body's call aliases are dependencies; any other
			// identifier an input names is not waited on.
			known := make(map[string]values.Value, len(results))
			for k, v := range results {
				known[k] = v
			}
			for _, in := range c.Inputs {
				for _, ref := range referencedAliases(in.Expr) {
					if _, isCall := calls[ref]; !isCall {
						known[ref] = values.Value{}
					}
				}
			}
			if dependenciesSatisfied(c, known) {
				launch(alias)
			}
		}
		if callErr != nil {
			return scope, callErr
		}
		if len(running) == 0 {
			return scope, fmt.Errorf("workflowrun: call graph has an unresolved dependency")
		}
		selector.Select(ctx)
		if callErr != nil {
			return scope, callErr
		}
		for alias := range running {
			if _, stillPending := pending[alias]; !stillPending {
				delete(running, alias)
			}
		}
	}

	for alias, v := range results {
		scope = scope.Bind(alias, v)
	}

	for i, node := range body {
		switch n := node.(type) {
		case *ast.CallDecl:
			// already dispatched and bound above
		case *ast.Declaration:
			v, err := ev.Eval(scope, n.Expr)
			if err != nil {
				return scope, err
			}
			scope = scope.Bind(n.Name, v)
		case *ast.ScatterDecl:
			var err error
			scope, err = runScatter(ctx, docURI, doc, n, scope, runPath, callSuffix, i, allowedRoots)
			if err != nil {
				return scope, err
			}
		case *ast.ConditionalDecl:
			var err error
			scope, err = runConditional(ctx, docURI, doc, n, scope, runPath, callSuffix, i, allowedRoots)
			if err != nil {
				return scope, err
			}
		}
	}
	return scope, nil
}

// decodeTaskOutputs rehydrates an activity's raw output JSON into a
// struct-shaped Value keyed by the task's declared output names and types,
// so a downstream call's File/Directory-typed input still carries the
// right Kind for staging.
func decodeTaskOutputs(task *ast.Task, outs map[string]json.RawMessage, structs map[string]types.Type) (values.Value, error) {
	fields := map[string]values.Value{}
	order := make([]string, 0, len(task.Outputs))
	for _, d := range task.Outputs {
		t := types.FromExpr(d.DeclType, structs)
		raw, ok := outs[d.Name]
		var generic any
		if ok {
			if err := json.Unmarshal(raw, &generic); err != nil {
				return values.Value{}, fmt.Errorf("workflowrun: decoding output %q: %w", d.Name, err)
			}
		}
		v, err := values.FromJSON(t, generic)
		if err != nil {
			return values.Value{}, fmt.Errorf("workflowrun: output %q: %w", d.Name, err)
		}
		fields[d.Name] = v
		order = append(order, d.Name)
	}
	return values.Struct(types.Object(), fields, order), nil
}

// dependenciesSatisfied reports whether every call alias c's `after`
// clause or input expressions reference has already produced a result.
func dependenciesSatisfied(c *ast.CallDecl, results map[string]values.Value) bool {
	for _, dep := range c.After {
		if _, ok := results[dep]; !ok {
			return false
		}
	}
	for _, in := range c.Inputs {
		for _, ref := range referencedAliases(in.Expr) {
			if _, ok := results[ref]; !ok {
				return false
			}
		}
	}
	return true
}

// referencedAliases walks expr collecting every Identifier it reaches;
// callers filter these against the set of call aliases in scope.
func referencedAliases(expr ast.Expression) []string {
	var out []string
	var walk func(ast.Expression)
	walk = func(e ast.Expression) {
		switch n := e.(type) {
		case *ast.Identifier:
			out = append(out, n.Name)
		case *ast.MemberAccess:
			walk(n.Object)
		case *ast.IndexExpr:
			walk(n.Object)
			walk(n.Subscript)
		case *ast.BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *ast.UnaryExpr:
			walk(n.Operand)
		case *ast.IfThenElseExpr:
			walk(n.Condition)
			walk(n.Then)
			walk(n.Else)
		case *ast.FunctionCall:
			for _, a := range n.Args {
				walk(a)
			}
		case *ast.ArrayLiteral:
			for _, el := range n.Elements {
				walk(el)
			}
		case *ast.PairLiteral:
			walk(n.Left)
			walk(n.Right)
		}
	}
	if expr != nil {
		walk(expr)
	}
	return out
}

// scatterChildInput/Output carry a scatter iteration across a Temporal
// child workflow boundary by reference (document URI + a path of body
// indices down to the ScatterDecl) rather than by value, since ast nodes
// do not serialize.
type scatterChildInput struct {
	DocumentURI  string
	Path         []int
	RunPath      string
	CallSuffix   string
	Scope        map[string]json.RawMessage
	AllowedRoots []string
}

type scatterChildOutput struct {
	Bound map[string]json.RawMessage
}

// ScatterBody is the Temporal child workflow one scatter iteration runs as.
func ScatterBody(ctx workflow.Context, input scatterChildInput) (*scatterChildOutput, error) {
	wf, doc, err := loadWorkflow(input.DocumentURI)
	if err != nil {
		return nil, err
	}
	node, err := navigateToNode(wf.Body, input.Path)
	if err != nil {
		return nil, err
	}
	s, ok := node.(*ast.ScatterDecl)
	if !ok {
		return nil, fmt.Errorf("workflowrun: scatter path does not resolve to a scatter")
	}

	scope, err := decodeScope(input.Scope)
	if err != nil {
		return nil, err
	}

	scope, err = runBody(ctx, input.DocumentURI, doc, s.Body, scope, input.RunPath, input.CallSuffix, input.AllowedRoots)
	if err != nil {
		return nil, err
	}

	out := map[string]json.RawMessage{}
	for _, name := range boundNames(s.Body) {
		if v, ok := scope.Resolve(name); ok {
			raw, err := marshalValue(v)
			if err != nil {
				return nil, err
			}
			out[name] = raw
		}
	}
	return &scatterChildOutput{Bound: out}, nil
}

// navigateToNode walks body down a path of indices through nested
// ScatterDecl/ConditionalDecl bodies to the node path identifies.
func navigateToNode(body []ast.WorkflowNode, path []int) (ast.WorkflowNode, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("workflowrun: empty body path")
	}
	cur := body
	for i, idx := range path {
		if idx < 0 || idx >= len(cur) {
			return nil, fmt.Errorf("workflowrun: body path index %d out of range", idx)
		}
		node := cur[idx]
		if i == len(path)-1 {
			return node, nil
		}
		switch n := node.(type) {
		case *ast.ScatterDecl:
			cur = n.Body
		case *ast.ConditionalDecl:
			cur = n.Body
		default:
			return nil, fmt.Errorf("workflowrun: body path does not lead through a nested body")
		}
	}
	return nil, fmt.Errorf("workflowrun: unreachable body path")
}

// boundNames lists every name a body binds directly: call aliases and
// declaration names. Nested scatter/conditional bodies are flattened in,
// since their own export-widening (Array[T] / T?) is applied by the
// caller one level further out.
func boundNames(body []ast.WorkflowNode) []string {
	var names []string
	for _, node := range body {
		switch n := node.(type) {
		case *ast.CallDecl:
			names = append(names, n.Alias)
		case *ast.Declaration:
			names = append(names, n.Name)
		case *ast.ScatterDecl:
			names = append(names, boundNames(n.Body)...)
		case *ast.ConditionalDecl:
			names = append(names, boundNames(n.Body)...)
		}
	}
	return names
}

func decodeScope(raw map[string]json.RawMessage) (eval.Env, error) {
	scope := env.Empty[values.Value]()
	for name, r := range raw {
		var generic any
		if err := json.Unmarshal(r, &generic); err != nil {
			return scope, fmt.Errorf("workflowrun: decoding scope entry %q: %w", name, err)
		}
		v, err := values.FromJSON(types.Any(), generic)
		if err != nil {
			return scope, fmt.Errorf("workflowrun: scope entry %q: %w", name, err)
		}
		scope = scope.Bind(name, v)
	}
	return scope, nil
}

func encodeScope(scope eval.Env) (map[string]json.RawMessage, error) {
	out := map[string]json.RawMessage{}
	var encErr error
	scope.Walk(func(name string, v values.Value) {
		if encErr != nil {
			return
		}
		raw, err := marshalValue(v)
		if err != nil {
			encErr = err
			return
		}
		out[name] = raw
	})
	return out, encErr
}

// runScatter spawns one child workflow per iterable element and gathers
// every name the scatter body binds into an Array[T] in the enclosing
// scope.
func runScatter(ctx workflow.Context, docURI string, doc *ast.Document, s *ast.ScatterDecl, scope eval.Env, runPath, callSuffix string, index int, allowedRoots []string) (eval.Env, error) {
	ev := eval.New(nopIO{})
	iterVal, err := ev.Eval(scope, s.Iterable)
	if err != nil {
		return scope, err
	}
	elements := iterVal.Elements()

	outerScope, err := encodeScope(scope)
	if err != nil {
		return scope, err
	}

	path := []int{index}
	futures := make([]workflow.ChildWorkflowFuture, len(elements))
	for i, elem := range elements {
		elemJSON, err := marshalValue(elem)
		if err != nil {
			return scope, err
		}
		childScope := make(map[string]json.RawMessage, len(outerScope)+1)
		for k, v := range outerScope {
			childScope[k] = v
		}
		childScope[s.Variable] = elemJSON

		cctx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: fmt.Sprintf("%s-scatter-%s-%d", workflow.GetInfo(ctx).WorkflowExecution.ID, s.Variable, i),
		})
		futures[i] = workflow.ExecuteChildWorkflow(cctx, ScatterBody, scatterChildInput{
			DocumentURI:  docURI,
			Path:         path,
			RunPath:      runPath,
			CallSuffix:   fmt.Sprintf("%s-%d", callSuffix, i),
			Scope:        childScope,
			AllowedRoots: allowedRoots,
		})
	}

	collected := map[string][]values.Value{}
	order := boundNames(s.Body)
	for _, f := range futures {
		var out scatterChildOutput
		if err := f.Get(ctx, &out); err != nil {
			return scope, err
		}
		for _, name := range order {
			raw, ok := out.Bound[name]
			if !ok {
				continue
			}
			var generic any
			if err := json.Unmarshal(raw, &generic); err != nil {
				return scope, err
			}
			v, err := values.FromJSON(types.Any(), generic)
			if err != nil {
				return scope, err
			}
			collected[name] = append(collected[name], v)
		}
	}
	for _, name := range order {
		vals := collected[name]
		elemType := types.Any()
		if len(vals) > 0 {
			elemType = vals[0].Type()
		}
		scope = scope.Bind(name, values.Array(elemType, vals))
	}
	return scope, nil
}

// runConditional executes body inline when condition is true; every name
// it binds becomes null (of indeterminate optional type) in the enclosing
// scope when the condition is false.
func runConditional(ctx workflow.Context, docURI string, doc *ast.Document, c *ast.ConditionalDecl, scope eval.Env, runPath, callSuffix string, index int, allowedRoots []string) (eval.Env, error) {
	ev := eval.New(nopIO{})
	cond, err := ev.Eval(scope, c.Condition)
	if err != nil {
		return scope, err
	}
	if !cond.Bool() {
		for _, name := range boundNames(c.Body) {
			scope = scope.Bind(name, values.Null(types.Any()))
		}
		return scope, nil
	}
	return runBody(ctx, docURI, doc, c.Body, scope, runPath, callSuffix, allowedRoots)
}

func bindInputs(doc *ast.Document, decls []*ast.Declaration, raw json.RawMessage) (eval.Env, error) {
	var m map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return env.Empty[values.Value](), fmt.Errorf("workflowrun: decoding run inputs: %w", err)
		}
	}
	structs := structsOf(doc)
	scope := env.Empty[values.Value]()
	ev := eval.New(nopIO{})
	for _, d := range decls {
		t := types.FromExpr(d.DeclType, structs)
		if r, ok := m[d.Name]; ok {
			var generic any
			if err := json.Unmarshal(r, &generic); err != nil {
				return scope, fmt.Errorf("workflowrun: decoding input %q: %w", d.Name, err)
			}
			v, err := values.FromJSON(t, generic)
			if err != nil {
				return scope, fmt.Errorf("workflowrun: input %q: %w", d.Name, err)
			}
			scope = scope.Bind(d.Name, v)
			continue
		}
		if d.Expr != nil {
			v, err := ev.Eval(scope, d.Expr)
			if err != nil {
				return scope, err
			}
			scope = scope.Bind(d.Name, v)
		}
	}
	return scope, nil
}

func marshalValue(v values.Value) (json.RawMessage, error) {
	generic, err := values.ToJSON(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
