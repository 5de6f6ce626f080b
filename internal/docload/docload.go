// Package docload turns a document URI into a fully resolved and
// type-checked *ast.Document, the shape workflowrun.DocumentLoader and
// the validate/run CLI commands both need. It is the composition root
// for internal/parser, internal/resolver, and internal/typecheck: none
// of those packages know about the other two, so something has to walk
// the import graph and run them in order.
package docload

import (
	"fmt"
	"path/filepath"

	"github.com/wdlrun/wdlrun/internal/ast"
	"github.com/wdlrun/wdlrun/internal/parser"
	"github.com/wdlrun/wdlrun/internal/resolver"
	"github.com/wdlrun/wdlrun/internal/typecheck"
)

// Loader caches resolved documents by URI so a diamond import graph
// parses and typechecks each file only once.
type Loader struct {
	checkQuant bool
	resolved   map[string]*resolver.Document
}

// New constructs a Loader. checkQuant enables strict optional/non-empty
// enforcement during type checking (WDL's `check_quant=true`, the
// default every wdlrun document is checked under).
func New(checkQuant bool) *Loader {
	return &Loader{checkQuant: checkQuant, resolved: map[string]*resolver.Document{}}
}

// Load parses uri (and everything it imports, transitively), resolves
// names, and type-checks the result, returning the resolved *ast.Document
// on success or a typecheck.Diagnostics-wrapping error otherwise.
func (l *Loader) Load(uri string) (*ast.Document, error) {
	doc, err := l.load(uri, map[string]bool{})
	if err != nil {
		return nil, err
	}
	return doc.AST, nil
}

func (l *Loader) load(uri string, visiting map[string]bool) (*resolver.Document, error) {
	if doc, ok := l.resolved[uri]; ok {
		return doc, nil
	}
	if visiting[uri] {
		return nil, fmt.Errorf("docload: %s: import cycle", uri)
	}
	visiting[uri] = true
	defer delete(visiting, uri)

	parsed, err := parser.ParseFile(uri)
	if err != nil {
		return nil, fmt.Errorf("docload: parsing %s: %w", uri, err)
	}

	imports := map[string]*resolver.Document{}
	for _, imp := range parsed.Imports {
		importURI := imp.URI
		if !filepath.IsAbs(importURI) {
			importURI = filepath.Join(filepath.Dir(uri), importURI)
		}
		resolvedImport, err := l.load(importURI, visiting)
		if err != nil {
			return nil, err
		}
		imports[imp.URI] = resolvedImport
	}

	res := resolver.New(parsed, imports, visiting)
	resolved, diags := res.Resolve()
	if diags.HasErrors() {
		return nil, fmt.Errorf("docload: resolving %s: %w", uri, diags)
	}

	checker := typecheck.NewChecker(parsed.SourceText, resolved.Structs, l.checkQuant)
	for _, t := range parsed.Tasks {
		checker.CheckTask(t)
	}
	if parsed.Workflow != nil {
		checker.CheckWorkflow(parsed.Workflow, taskSignatures(resolved))
	}
	if checker.Diagnostics().HasErrors() {
		return nil, fmt.Errorf("docload: type-checking %s: %w", uri, checker.Diagnostics())
	}

	l.resolved[uri] = resolved
	return resolved, nil
}

// taskSignatures narrows resolver.TaskSignature down to the Inputs/
// Outputs pair typecheck.TaskSig needs for call-site checking, folding in
// every imported document's own tasks under their import alias so calls
// like `alias.taskName` resolve the same way Resolver.resolveCallTarget
// does.
func taskSignatures(doc *resolver.Document) map[string]typecheck.TaskSig {
	sigs := make(map[string]typecheck.TaskSig, len(doc.Tasks))
	for name, sig := range doc.Tasks {
		sigs[name] = typecheck.TaskSig{Inputs: sig.Inputs, Outputs: sig.Outputs}
	}
	for _, imp := range doc.AST.Imports {
		imported, ok := doc.Imports[imp.URI]
		if !ok {
			continue
		}
		for name, sig := range imported.Tasks {
			sigs[imp.Alias+"."+name] = typecheck.TaskSig{Inputs: sig.Inputs, Outputs: sig.Outputs}
		}
	}
	return sigs
}
