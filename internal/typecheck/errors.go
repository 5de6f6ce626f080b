// Package typecheck performs static type checking over a resolved WDL
// document: bottom-up type inference per expression, declaration/call/
// scatter/conditional checking, and a full static error taxonomy.
package typecheck

import (
	"fmt"
	"strings"

	"github.com/wdlrun/wdlrun/internal/ast"
)

// Kind categorizes a static diagnostic for structured handling by callers
// (CLI exit codes, JSON error envelopes).
type Kind int

const (
	SyntaxError Kind = iota
	InvalidType
	UnknownIdentifier
	NoSuchFunction
	NoSuchMember
	NotAnArray
	NoSuchInput
	StaticTypeMismatch
	IncompatibleOperand
	IndeterminateType
	MultipleDefinitions
	CircularDependencies
	UncallableWorkflow
)

var kindNames = map[Kind]string{
	SyntaxError:          "SyntaxError",
	InvalidType:          "InvalidType",
	UnknownIdentifier:    "UnknownIdentifier",
	NoSuchFunction:       "NoSuchFunction",
	NoSuchMember:         "NoSuchMember",
	NotAnArray:           "NotAnArray",
	NoSuchInput:          "NoSuchInput",
	StaticTypeMismatch:   "StaticTypeMismatch",
	IncompatibleOperand:  "IncompatibleOperand",
	IndeterminateType:    "IndeterminateType",
	MultipleDefinitions:  "MultipleDefinitions",
	CircularDependencies: "CircularDependencies",
	UncallableWorkflow:   "UncallableWorkflow",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Diagnostic is a single static error, carrying a source snippet the way
// miniwdl's _error_util.py attaches one line of context to every
// SourcePosition-bearing error.
type Diagnostic struct {
	Position ast.Position
	Kind     Kind
	Message  string
	Snippet  string
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	if d.Position.IsValid() {
		fmt.Fprintf(&b, "%s: ", d.Position.String())
	}
	fmt.Fprintf(&b, "%s: %s", d.Kind, d.Message)
	if d.Snippet != "" {
		fmt.Fprintf(&b, "\n    %s", d.Snippet)
	}
	return b.String()
}

// NewDiagnostic builds a Diagnostic and fills Snippet from source when the
// position is valid, mirroring miniwdl's single-line source excerpt. It is
// exported so the resolver package (which runs before typecheck proper)
// can report diagnostics in the same shape.
func NewDiagnostic(source string, pos ast.Position, kind Kind, format string, args ...any) *Diagnostic {
	d := &Diagnostic{Position: pos, Kind: kind, Message: fmt.Sprintf(format, args...)}
	if pos.IsValid() {
		lines := strings.Split(source, "\n")
		if pos.Line-1 >= 0 && pos.Line-1 < len(lines) {
			d.Snippet = strings.TrimRight(lines[pos.Line-1], "\r")
		}
	}
	return d
}

// Diagnostics aggregates every static error found while checking a
// document; its Error lists them all under an "N validation errors" header.
type Diagnostics struct {
	Items []*Diagnostic
}

func (d *Diagnostics) Add(diag *Diagnostic) { d.Items = append(d.Items, diag) }
func (d *Diagnostics) HasErrors() bool      { return len(d.Items) > 0 }

func (d *Diagnostics) Error() string {
	if len(d.Items) == 0 {
		return "no diagnostics"
	}
	if len(d.Items) == 1 {
		return d.Items[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors:\n", len(d.Items))
	for i, item := range d.Items {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, item.Error())
	}
	return b.String()
}

func (d *Diagnostics) Unwrap() []error {
	out := make([]error, len(d.Items))
	for i, item := range d.Items {
		out[i] = item
	}
	return out
}
