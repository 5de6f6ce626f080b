// Package ast defines the abstract syntax tree produced by the WDL parser.
//
// Nodes are untyped: the resolver and type checker annotate them in later
// passes rather than mutating node shape. Every node carries a Position for
// diagnostics.
package ast

import "fmt"

// Position locates a node within its originating document.
type Position struct {
	// URI is the import URI as written in the source (or "<inline>").
	URI string
	// Abspath is the resolved absolute path, empty for in-memory documents.
	Abspath string
	Line    int
	Column  int
	EndLine int
	EndColumn int
}

// String renders "uri:line:col" or, when the node spans multiple
// lines/columns, "uri:line:col-endLine:endCol".
func (p Position) String() string {
	if p.EndLine != 0 && (p.EndLine != p.Line || p.EndColumn != p.Column) {
		return fmt.Sprintf("%s:%d:%d-%d:%d", p.URI, p.Line, p.Column, p.EndLine, p.EndColumn)
	}
	return fmt.Sprintf("%s:%d:%d", p.URI, p.Line, p.Column)
}

// IsValid reports whether the position was ever set.
func (p Position) IsValid() bool { return p.Line > 0 }

// NodeType discriminates AST node variants for logging and diagnostics; the
// Go type of a Node is still the authoritative discriminator in switches.
type NodeType int

const (
	NodeDocument NodeType = iota
	NodeImportDecl
	NodeStructTypeDecl
	NodeTaskDecl
	NodeWorkflowDecl
	NodeDeclaration
	NodeCallDecl
	NodeScatterDecl
	NodeConditionalDecl
	NodeCommandSection
	NodeRuntimeSection
	NodeMetaSection
	NodeOutputSection
	NodeInputSection

	// Type syntax nodes (unevaluated type expressions as written).
	NodeTypeExpr

	// Expression nodes.
	NodeIntLiteral
	NodeFloatLiteral
	NodeBoolLiteral
	NodeStringLiteral
	NodeNoneLiteral
	NodeArrayLiteral
	NodeMapLiteral
	NodePairLiteral
	NodeObjectLiteral
	NodeIdentifier
	NodeMemberAccess
	NodeIndexExpr
	NodeUnaryExpr
	NodeBinaryExpr
	NodeIfThenElseExpr
	NodeFunctionCall
	NodePlaceholder
)

var nodeTypeNames = map[NodeType]string{
	NodeDocument:        "Document",
	NodeImportDecl:      "ImportDecl",
	NodeStructTypeDecl:  "StructTypeDecl",
	NodeTaskDecl:        "TaskDecl",
	NodeWorkflowDecl:    "WorkflowDecl",
	NodeDeclaration:     "Declaration",
	NodeCallDecl:        "CallDecl",
	NodeScatterDecl:     "ScatterDecl",
	NodeConditionalDecl: "ConditionalDecl",
	NodeCommandSection:  "CommandSection",
	NodeRuntimeSection:  "RuntimeSection",
	NodeMetaSection:     "MetaSection",
	NodeOutputSection:   "OutputSection",
	NodeInputSection:    "InputSection",
	NodeTypeExpr:        "TypeExpr",
	NodeIntLiteral:      "IntLiteral",
	NodeFloatLiteral:    "FloatLiteral",
	NodeBoolLiteral:     "BoolLiteral",
	NodeStringLiteral:   "StringLiteral",
	NodeNoneLiteral:     "NoneLiteral",
	NodeArrayLiteral:    "ArrayLiteral",
	NodeMapLiteral:      "MapLiteral",
	NodePairLiteral:     "PairLiteral",
	NodeObjectLiteral:   "ObjectLiteral",
	NodeIdentifier:      "Identifier",
	NodeMemberAccess:    "MemberAccess",
	NodeIndexExpr:       "IndexExpr",
	NodeUnaryExpr:       "UnaryExpr",
	NodeBinaryExpr:      "BinaryExpr",
	NodeIfThenElseExpr:  "IfThenElseExpr",
	NodeFunctionCall:    "FunctionCall",
	NodePlaceholder:     "Placeholder",
}

func (nt NodeType) String() string {
	if name, ok := nodeTypeNames[nt]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", nt)
}

// GrammarVersion identifies which published WDL grammar a document uses.
type GrammarVersion int

const (
	// VersionDraft2 is the implicit grammar when a document has no version
	// declaration: no input{} section requirement, ${} placeholders only.
	VersionDraft2 GrammarVersion = iota
	Version1_0
	Version1_1
	VersionDevelopment
)

func (v GrammarVersion) String() string {
	switch v {
	case VersionDraft2:
		return "draft-2"
	case Version1_0:
		return "1.0"
	case Version1_1:
		return "1.1"
	case VersionDevelopment:
		return "development"
	default:
		return fmt.Sprintf("GrammarVersion(%d)", int(v))
	}
}

// AllowsTildePlaceholder reports whether ~{expr} interpolation is accepted
// (1.0 and later); draft-2 only accepts ${expr}.
func (v GrammarVersion) AllowsTildePlaceholder() bool { return v >= Version1_0 }

// RequiresInputSection reports whether `input { }` task/workflow sections
// are mandatory (1.0+); draft-2 declares unbound decls directly in the body.
func (v GrammarVersion) RequiresInputSection() bool { return v >= Version1_0 }

// AllowsAfterClause reports whether call sites may declare explicit
// `after <call>` ordering edges (1.1+).
func (v GrammarVersion) AllowsAfterClause() bool { return v >= Version1_1 }

// AllowsNoneLiteral reports whether the `None` keyword literal is available
// (1.1+); earlier grammars only express "no value" via an unset optional.
func (v GrammarVersion) AllowsNoneLiteral() bool { return v >= Version1_1 }
