package typecheck

import (
	"github.com/wdlrun/wdlrun/internal/ast"
	"github.com/wdlrun/wdlrun/internal/env"
	"github.com/wdlrun/wdlrun/internal/stdlib"
	"github.com/wdlrun/wdlrun/internal/types"
)

// Scope is a type environment: dotted names (including namespaced scatter/
// call bindings) to their declared types. It is the type-checking instance
// of the generic internal/env trie, the same structure internal/eval uses
// for values.
type Scope = env.Env[types.Type]

// Checker performs bottom-up type inference and checking over one
// document's tasks and workflow.
type Checker struct {
	source     string
	structs    map[string]types.Type
	checkQuant bool
	diags      Diagnostics
}

// NewChecker builds a Checker. checkQuant toggles strict vs relaxed
// optional/nonempty enforcement (the `check_quant=false` mode).
func NewChecker(source string, structs map[string]types.Type, checkQuant bool) *Checker {
	return &Checker{source: source, structs: structs, checkQuant: checkQuant}
}

func (c *Checker) opts() types.CoercibleOptions {
	return types.CoercibleOptions{CheckQuant: c.checkQuant}
}

func (c *Checker) err(pos ast.Position, kind Kind, format string, args ...any) {
	c.diags.Add(NewDiagnostic(c.source, pos, kind, format, args...))
}

// Diagnostics returns every diagnostic accumulated so far.
func (c *Checker) Diagnostics() *Diagnostics { return &c.diags }

// CheckTask type-checks one task: inputs declare a scope, private decls
// must type-check against their declared type (if any), the command and
// runtime sections must reference only bound names, and outputs must
// coerce to their declared types.
func (c *Checker) CheckTask(t *ast.Task) {
	scope := env.Empty[types.Type]()
	for _, d := range t.Inputs {
		scope = c.checkDeclaration(scope, d)
	}
	for _, d := range t.Privates {
		scope = c.checkDeclaration(scope, d)
	}
	for _, part := range t.Command.Parts {
		if part.Placeholder != nil {
			c.Infer(scope, part.Placeholder.Expr)
		}
	}
	if t.Runtime != nil {
		for _, expr := range t.Runtime.Attrs {
			c.Infer(scope, expr)
		}
	}
	for _, d := range t.Outputs {
		c.checkDeclaration(scope, d)
	}
}

// CheckWorkflow type-checks a workflow body, threading a Scope through
// declarations, calls, scatters and conditionals in document order so each
// construct only sees names bound earlier (WDL requires declare-before-use).
func (c *Checker) CheckWorkflow(wf *ast.Workflow, tasks map[string]TaskSig) {
	scope := env.Empty[types.Type]()
	for _, d := range wf.Inputs {
		scope = c.checkDeclaration(scope, d)
	}
	scope = c.checkBody(scope, wf.Body, tasks)
	for _, d := range wf.Outputs {
		c.checkDeclaration(scope, d)
	}
}

// TaskSig is the subset of resolver.TaskSignature the checker needs,
// duplicated here (rather than importing resolver) to avoid a dependency
// cycle: resolver imports typecheck.Diagnostic, typecheck must not import
// resolver back.
type TaskSig struct {
	Inputs  map[string]types.Type
	Outputs map[string]types.Type
}

func (c *Checker) checkBody(scope Scope, body []ast.WorkflowNode, tasks map[string]TaskSig) Scope {
	for _, node := range body {
		switch n := node.(type) {
		case *ast.Declaration:
			scope = c.checkDeclaration(scope, n)
		case *ast.CallDecl:
			scope = c.checkCall(scope, n, tasks)
		case *ast.ScatterDecl:
			scope = c.checkScatter(scope, n, tasks)
		case *ast.ConditionalDecl:
			scope = c.checkConditional(scope, n, tasks)
		}
	}
	return scope
}

func (c *Checker) checkDeclaration(scope Scope, d *ast.Declaration) Scope {
	declared := resolveType(d.DeclType, c.structs)
	if d.Expr != nil {
		actual := c.Infer(scope, d.Expr)
		if actual.Kind != types.KindAny && !actual.CoercibleTo(declared, c.opts()) {
			c.err(d.Pos(), StaticTypeMismatch, "cannot assign %s to declared type %s in %q", actual, declared, d.Name)
		}
	}
	if scope.Has(d.Name) {
		c.err(d.Pos(), MultipleDefinitions, "%q is already declared in this scope", d.Name)
	}
	return scope.Bind(d.Name, declared)
}

func (c *Checker) checkCall(scope Scope, call *ast.CallDecl, tasks map[string]TaskSig) Scope {
	sig, ok := tasks[call.Target]
	if !ok {
		c.err(call.Pos(), UnknownIdentifier, "call target %q is unresolved", call.Target)
		return scope.Bind(call.Alias, types.Object())
	}
	for _, in := range call.Inputs {
		want, ok := sig.Inputs[in.Name]
		if !ok {
			c.err(call.Pos(), NoSuchInput, "task %q has no input %q", call.Target, in.Name)
			continue
		}
		got := c.Infer(scope, in.Expr)
		if got.Kind != types.KindAny && !got.CoercibleTo(want, c.opts()) {
			c.err(call.Pos(), StaticTypeMismatch, "input %q of %q: cannot assign %s to %s", in.Name, call.Target, got, want)
		}
	}
	for name, want := range sig.Inputs {
		if want.Optional || hasInput(call.Inputs, name) {
			continue
		}
		if !scope.Has(name) {
			c.err(call.Pos(), NoSuchInput, "required input %q of %q is not supplied and no matching name is in scope", name, call.Target)
		}
	}
	out := env.Empty[types.Type]()
	for name, t := range sig.Outputs {
		out = out.Bind(name, t)
	}
	return scope.Merge(out.WrapNamespace(call.Alias))
}

func hasInput(inputs []ast.CallInput, name string) bool {
	for _, in := range inputs {
		if in.Name == name {
			return true
		}
	}
	return false
}

func (c *Checker) checkScatter(scope Scope, s *ast.ScatterDecl, tasks map[string]TaskSig) Scope {
	iterType := c.Infer(scope, s.Iterable)
	elem := types.Any()
	if iterType.Kind == types.KindArray {
		elem = *iterType.Elem
	} else if iterType.Kind != types.KindAny {
		c.err(s.Pos(), NotAnArray, "scatter iterates over %s, which is not an Array", iterType)
	}
	inner := scope.Bind(s.Variable, elem)
	inner = c.checkBody(inner, s.Body, tasks)
	// Every name bound inside the scatter body becomes Array[T] in the
	// enclosing scope.
	exported := scope
	inner.Walk(func(name string, t types.Type) {
		if name == s.Variable || scope.Has(name) {
			return
		}
		exported = exported.Bind(name, types.Array(t, false))
	})
	return exported
}

func (c *Checker) checkConditional(scope Scope, cond *ast.ConditionalDecl, tasks map[string]TaskSig) Scope {
	condType := c.Infer(scope, cond.Condition)
	if condType.Kind != types.KindAny && condType.Kind != types.KindBoolean {
		c.err(cond.Pos(), InvalidType, "if condition must be Boolean, got %s", condType)
	}
	inner := c.checkBody(scope, cond.Body, tasks)
	exported := scope
	inner.Walk(func(name string, t types.Type) {
		if scope.Has(name) {
			return
		}
		exported = exported.Bind(name, t.WithOptional(true))
	})
	return exported
}

func resolveType(t *ast.TypeExpr, structs map[string]types.Type) types.Type {
	return types.FromExpr(t, structs)
}

// Infer computes expr's static type within scope, the WDL analogue of the
// teacher's TypeChecker.InferType, generalized from a four-kind dynamic
// type system to the full WDL lattice with short-circuiting, member
// access, subscripting, and the standard function library.
func (c *Checker) Infer(scope Scope, expr ast.Expression) types.Type {
	switch n := expr.(type) {
	case *ast.IntLiteral:
		return types.Int()
	case *ast.FloatLiteral:
		return types.Float()
	case *ast.BoolLiteral:
		return types.Boolean()
	case *ast.NoneLiteral:
		return types.Any().WithOptional(true)
	case *ast.StringLiteral:
		for _, p := range n.Parts {
			if p.Placeholder != nil {
				c.Infer(scope, p.Placeholder.Expr)
			}
		}
		return types.String()
	case *ast.Identifier:
		if t, ok := scope.Resolve(n.Name); ok {
			return t
		}
		c.err(n.Pos(), UnknownIdentifier, "undefined identifier %q", n.Name)
		return types.Any()
	case *ast.ArrayLiteral:
		return c.inferArray(scope, n)
	case *ast.MapLiteral:
		return c.inferMap(scope, n)
	case *ast.PairLiteral:
		return types.Pair(c.Infer(scope, n.Left), c.Infer(scope, n.Right))
	case *ast.ObjectLiteral:
		return c.inferObject(scope, n)
	case *ast.MemberAccess:
		return c.inferMember(scope, n)
	case *ast.IndexExpr:
		return c.inferIndex(scope, n)
	case *ast.UnaryExpr:
		return c.inferUnary(scope, n)
	case *ast.BinaryExpr:
		return c.inferBinary(scope, n)
	case *ast.IfThenElseExpr:
		return c.inferIfThenElse(scope, n)
	case *ast.FunctionCall:
		return c.inferCall(scope, n)
	}
	return types.Any()
}

func (c *Checker) inferArray(scope Scope, n *ast.ArrayLiteral) types.Type {
	if len(n.Elements) == 0 {
		return types.Array(types.Any(), false)
	}
	elem := c.Infer(scope, n.Elements[0])
	for _, e := range n.Elements[1:] {
		t := c.Infer(scope, e)
		u, ok := types.Unify(elem, t)
		if !ok {
			c.err(n.Pos(), IndeterminateType, "array elements have incompatible types %s and %s", elem, t)
			return types.Array(types.Any(), false)
		}
		elem = u
	}
	return types.Array(elem, true)
}

func (c *Checker) inferMap(scope Scope, n *ast.MapLiteral) types.Type {
	if len(n.Entries) == 0 {
		return types.Map(types.Any(), types.Any())
	}
	key := c.Infer(scope, n.Entries[0].Key)
	val := c.Infer(scope, n.Entries[0].Value)
	for _, e := range n.Entries[1:] {
		kt := c.Infer(scope, e.Key)
		vt := c.Infer(scope, e.Value)
		if u, ok := types.Unify(key, kt); ok {
			key = u
		}
		if u, ok := types.Unify(val, vt); ok {
			val = u
		}
	}
	return types.Map(key, val)
}

func (c *Checker) inferObject(scope Scope, n *ast.ObjectLiteral) types.Type {
	if n.TypeName != "" {
		if st, ok := c.structs[n.TypeName]; ok {
			for _, e := range n.Entries {
				c.Infer(scope, e.Value)
			}
			return st
		}
	}
	for _, e := range n.Entries {
		c.Infer(scope, e.Value)
	}
	return types.Object()
}

func (c *Checker) inferMember(scope Scope, n *ast.MemberAccess) types.Type {
	objType := c.Infer(scope, n.Object)
	switch objType.Kind {
	case types.KindPair:
		switch n.Field {
		case "left":
			return *objType.Left
		case "right":
			return *objType.Right
		}
		c.err(n.Pos(), NoSuchMember, "Pair has no member %q", n.Field)
	case types.KindStruct, types.KindObject:
		if t, ok := objType.Member(n.Field); ok {
			return t
		}
		if objType.Kind == types.KindObject {
			return types.Any()
		}
		c.err(n.Pos(), NoSuchMember, "%s has no member %q", objType, n.Field)
	case types.KindAny:
		return types.Any()
	default:
		c.err(n.Pos(), NoSuchMember, "%s is not a struct, object or Pair", objType)
	}
	return types.Any()
}

func (c *Checker) inferIndex(scope Scope, n *ast.IndexExpr) types.Type {
	objType := c.Infer(scope, n.Object)
	idxType := c.Infer(scope, n.Subscript)
	switch objType.Kind {
	case types.KindArray:
		if idxType.Kind != types.KindAny && idxType.Kind != types.KindInt {
			c.err(n.Pos(), InvalidType, "array subscript must be Int, got %s", idxType)
		}
		return *objType.Elem
	case types.KindMap:
		if idxType.Kind != types.KindAny && !idxType.CoercibleTo(*objType.Key, c.opts()) {
			c.err(n.Pos(), InvalidType, "map subscript must be %s, got %s", objType.Key, idxType)
		}
		return *objType.Elem
	case types.KindAny:
		return types.Any()
	}
	c.err(n.Pos(), NotAnArray, "%s is not subscriptable", objType)
	return types.Any()
}

func (c *Checker) inferUnary(scope Scope, n *ast.UnaryExpr) types.Type {
	t := c.Infer(scope, n.Operand)
	switch n.Operator {
	case "!":
		if t.Kind != types.KindAny && t.Kind != types.KindBoolean {
			c.err(n.Pos(), IncompatibleOperand, "! requires Boolean, got %s", t)
		}
		return types.Boolean()
	case "-":
		if t.Kind != types.KindAny && !t.IsNumeric() {
			c.err(n.Pos(), IncompatibleOperand, "unary - requires a numeric type, got %s", t)
		}
		return t
	}
	return types.Any()
}

func (c *Checker) inferBinary(scope Scope, n *ast.BinaryExpr) types.Type {
	l := c.Infer(scope, n.Left)
	r := c.Infer(scope, n.Right)
	switch n.Operator {
	case "&&", "||":
		return types.Boolean()
	case "==", "!=":
		return types.Boolean()
	case "<", "<=", ">", ">=":
		return types.Boolean()
	case "+":
		if l.Kind == types.KindString || r.Kind == types.KindString {
			if (l.IsCoercibleToString() || l.Kind == types.KindAny) && (r.IsCoercibleToString() || r.Kind == types.KindAny) {
				return types.String()
			}
		}
		return numericResult(c, n, l, r)
	case "-", "*", "/", "%":
		return numericResult(c, n, l, r)
	}
	return types.Any()
}

func numericResult(c *Checker, n *ast.BinaryExpr, l, r types.Type) types.Type {
	if l.Kind == types.KindAny || r.Kind == types.KindAny {
		return types.Any()
	}
	if !l.IsNumeric() || !r.IsNumeric() {
		c.err(n.Pos(), IncompatibleOperand, "operator %q is not defined for %s and %s", n.Operator, l, r)
		return types.Any()
	}
	if l.Kind == types.KindFloat || r.Kind == types.KindFloat {
		return types.Float()
	}
	return types.Int()
}

func (c *Checker) inferIfThenElse(scope Scope, n *ast.IfThenElseExpr) types.Type {
	condType := c.Infer(scope, n.Condition)
	if condType.Kind != types.KindAny && condType.Kind != types.KindBoolean {
		c.err(n.Pos(), InvalidType, "if condition must be Boolean, got %s", condType)
	}
	thenType := c.Infer(scope, n.Then)
	elseType := c.Infer(scope, n.Else)
	u, ok := types.Unify(thenType, elseType)
	if !ok {
		c.err(n.Pos(), IndeterminateType, "if/then/else branches have incompatible types %s and %s", thenType, elseType)
		return types.Any()
	}
	return u
}

func (c *Checker) inferCall(scope Scope, n *ast.FunctionCall) types.Type {
	sig, ok := stdlib.Lookup(n.Name)
	if !ok {
		c.err(n.Pos(), NoSuchFunction, "no such function %q", n.Name)
		return types.Any()
	}
	argTypes := make([]types.Type, len(n.Args))
	for i, a := range n.Args {
		argTypes[i] = c.Infer(scope, a)
	}
	result, err := sig.CheckArgs(argTypes)
	if err != nil {
		c.err(n.Pos(), IncompatibleOperand, "%s: %v", n.Name, err)
		return types.Any()
	}
	return result
}
