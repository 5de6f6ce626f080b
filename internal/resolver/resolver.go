// Package resolver performs name resolution over a WDL document: it
// collects top-level names (structs, tasks, the workflow, and imported
// aliases), then checks that every call names a known task or workflow.
// Expression identifiers are not bound here. It is the WDL analogue of the
// teacher's SymbolTable, generalized from single-scope variables to
// struct/task/workflow namespaces and import aliasing.
package resolver

import (
	"github.com/wdlrun/wdlrun/internal/ast"
	"github.com/wdlrun/wdlrun/internal/typecheck"
	"github.com/wdlrun/wdlrun/internal/types"
)

// scope is one lexical level of name resolution, chained to its parent so
// a lookup walks outward until it finds a binding or runs out of scopes.
type scope struct {
	names  map[string]types.Type
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{names: map[string]types.Type{}, parent: parent}
}

func (s *scope) declare(name string, t types.Type) bool {
	if _, exists := s.names[name]; exists {
		return false
	}
	s.names[name] = t
	return true
}

func (s *scope) lookup(name string) (types.Type, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.names[name]; ok {
			return t, true
		}
	}
	return types.Type{}, false
}

// Document is a resolved document: its own declarations plus every WDL
// document it (transitively) imports, keyed by import URI.
type Document struct {
	AST      *ast.Document
	Structs  map[string]types.Type
	Imports  map[string]*Document
	Tasks    map[string]TaskSignature
	Workflow *WorkflowSignature
}

// TaskSignature is a task's externally visible input/output type shape,
// used both for call-site checking and cross-document imports.
type TaskSignature struct {
	Name    string
	Inputs  map[string]types.Type
	Outputs map[string]types.Type
}

// WorkflowSignature mirrors TaskSignature for the document's workflow, if any.
type WorkflowSignature struct {
	Name    string
	Inputs  map[string]types.Type
	Outputs map[string]types.Type
}

// Resolver resolves one document against its already-resolved imports.
type Resolver struct {
	doc      *ast.Document
	source   string
	imports  map[string]*Document
	diags    typecheck.Diagnostics
	structs  map[string]types.Type
	tasks    map[string]TaskSignature
	workflow *WorkflowSignature
	visiting map[string]bool // import cycle detection, URI -> in-progress
}

// New constructs a Resolver for doc, given its already-resolved import
// graph (import URI -> resolved Document) and the set of import URIs
// currently being resolved by an ancestor call. The set is stored but not
// consulted by Resolve; import cycles are not detected here.
func New(doc *ast.Document, imports map[string]*Document, visiting map[string]bool) *Resolver {
	if visiting == nil {
		visiting = map[string]bool{}
	}
	return &Resolver{
		doc:      doc,
		source:   doc.SourceText,
		imports:  imports,
		structs:  map[string]types.Type{},
		tasks:    map[string]TaskSignature{},
		visiting: visiting,
	}
}

// Resolve collects structs, tasks and the workflow, checks call targets,
// and returns the resolved Document plus any diagnostics
// (MultipleDefinitions, UnknownIdentifier).
func (r *Resolver) Resolve() (*Document, *typecheck.Diagnostics) {
	r.collectStructs()
	r.collectTasks()
	r.collectWorkflow()
	r.checkCallTargets()

	if r.diags.HasErrors() {
		return nil, &r.diags
	}
	return &Document{AST: r.doc, Structs: r.structs, Imports: r.imports, Tasks: r.tasks, Workflow: r.workflow}, &r.diags
}

func (r *Resolver) err(pos ast.Position, kind typecheck.Kind, format string, args ...any) {
	r.diags.Add(diagnosticAt(r.source, pos, kind, format, args...))
}

func diagnosticAt(source string, pos ast.Position, kind typecheck.Kind, format string, args ...any) *typecheck.Diagnostic {
	return typecheck.NewDiagnostic(source, pos, kind, format, args...)
}

func (r *Resolver) collectStructs() {
	for _, s := range r.doc.Structs {
		t := structType(s, r.structs)
		if !addUnique(r.structs, s.Name, t) {
			r.err(s.Pos(), typecheck.MultipleDefinitions, "struct %q is already defined", s.Name)
		}
	}
	// Imported struct aliases are merged in after local structs so a local
	// definition always wins a name collision against an import.
	for _, imp := range r.doc.Imports {
		resolved, ok := r.imports[imp.URI]
		if !ok {
			continue
		}
		for name, t := range resolved.Structs {
			exposed := name
			if alias, ok := imp.StructAliases[name]; ok {
				exposed = alias
			}
			if _, exists := r.structs[exposed]; !exists {
				r.structs[exposed] = t
			}
		}
	}
}

func addUnique(m map[string]types.Type, name string, t types.Type) bool {
	if _, exists := m[name]; exists {
		return false
	}
	m[name] = t
	return true
}

func structType(s *ast.StructTypeDecl, known map[string]types.Type) types.Type {
	members := make([]types.StructMember, len(s.Members))
	for i, m := range s.Members {
		members[i] = types.StructMember{Name: m.Name, Type: types.FromExpr(m.Type, known)}
	}
	return types.Struct(s.Name, members)
}

func (r *Resolver) collectTasks() {
	for _, t := range r.doc.Tasks {
		sig := TaskSignature{Name: t.Name, Inputs: map[string]types.Type{}, Outputs: map[string]types.Type{}}
		for _, d := range t.Inputs {
			sig.Inputs[d.Name] = types.FromExpr(d.DeclType, r.structs)
		}
		for _, d := range t.Outputs {
			sig.Outputs[d.Name] = types.FromExpr(d.DeclType, r.structs)
		}
		if _, exists := r.tasks[t.Name]; exists {
			r.err(t.Pos(), typecheck.MultipleDefinitions, "task %q is already defined", t.Name)
			continue
		}
		r.tasks[t.Name] = sig
	}
}

func (r *Resolver) collectWorkflow() {
	if r.doc.Workflow == nil {
		return
	}
	wf := r.doc.Workflow
	sig := &WorkflowSignature{Name: wf.Name, Inputs: map[string]types.Type{}, Outputs: map[string]types.Type{}}
	for _, d := range wf.Inputs {
		sig.Inputs[d.Name] = types.FromExpr(d.DeclType, r.structs)
	}
	for _, d := range wf.Outputs {
		sig.Outputs[d.Name] = types.FromExpr(d.DeclType, r.structs)
	}
	r.workflow = sig
}

// checkCallTargets verifies every `call` statement names a task (locally
// or via an imported document) or a callable sub-workflow, reporting
// UnknownIdentifier otherwise.
func (r *Resolver) checkCallTargets() {
	if r.doc.Workflow == nil {
		return
	}
	r.checkCallsIn(r.doc.Workflow.Body)
}

func (r *Resolver) checkCallsIn(body []ast.WorkflowNode) {
	for _, node := range body {
		switch n := node.(type) {
		case *ast.CallDecl:
			if !r.resolveCallTarget(n.Target) {
				r.err(n.Pos(), typecheck.UnknownIdentifier, "call target %q is not a known task or workflow", n.Target)
			}
		case *ast.ScatterDecl:
			r.checkCallsIn(n.Body)
		case *ast.ConditionalDecl:
			r.checkCallsIn(n.Body)
		}
	}
}

func (r *Resolver) resolveCallTarget(target string) bool {
	if _, ok := r.tasks[target]; ok {
		return true
	}
	if r.workflow != nil && r.workflow.Name == target {
		return true
	}
	for _, imp := range r.doc.Imports {
		prefix := imp.Alias + "."
		if len(target) > len(prefix) && target[:len(prefix)] == prefix {
			name := target[len(prefix):]
			resolved, ok := r.imports[imp.URI]
			if !ok {
				continue
			}
			if resolved.AST.Workflow != nil && resolved.AST.Workflow.Name == name {
				return true
			}
			for _, t := range resolved.AST.Tasks {
				if t.Name == name {
					return true
				}
			}
		}
	}
	return false
}
