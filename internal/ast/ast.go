package ast

import (
	"fmt"
	"strings"
)

// Node is implemented by every AST node.
type Node interface {
	Pos() Position
	Type() NodeType
	String() string
}

// Expression is a marker interface for nodes that evaluate to a value.
type Expression interface {
	Node
	exprNode()
}

// TypeExpr is the unevaluated syntax for a WDL type annotation, e.g.
// `Array[File]+?`. The type checker resolves it to a types.Type.
type TypeExpr struct {
	pos      Position
	Name     string // Boolean, Int, Float, String, File, Directory, Array, Map, Pair, Object, or a struct name
	Params   []*TypeExpr
	Optional bool // trailing '?'
	NonEmpty bool // trailing '+' (Array only)
}

func (t *TypeExpr) Pos() Position  { return t.pos }
func (t *TypeExpr) Type() NodeType { return NodeTypeExpr }
func (t *TypeExpr) String() string {
	var b strings.Builder
	b.WriteString(t.Name)
	if len(t.Params) > 0 {
		b.WriteString("[")
		for i, p := range t.Params {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(p.String())
		}
		b.WriteString("]")
	}
	if t.NonEmpty {
		b.WriteString("+")
	}
	if t.Optional {
		b.WriteString("?")
	}
	return b.String()
}

// ===========================================================================
// Expressions
// ===========================================================================

type IntLiteral struct {
	pos   Position
	Value int64
}

func (n *IntLiteral) Pos() Position  { return n.pos }
func (n *IntLiteral) Type() NodeType { return NodeIntLiteral }
func (n *IntLiteral) exprNode()      {}
func (n *IntLiteral) String() string { return fmt.Sprintf("%d", n.Value) }

type FloatLiteral struct {
	pos   Position
	Value float64
}

func (n *FloatLiteral) Pos() Position  { return n.pos }
func (n *FloatLiteral) Type() NodeType { return NodeFloatLiteral }
func (n *FloatLiteral) exprNode()      {}
func (n *FloatLiteral) String() string { return fmt.Sprintf("%g", n.Value) }

type BoolLiteral struct {
	pos   Position
	Value bool
}

func (n *BoolLiteral) Pos() Position  { return n.pos }
func (n *BoolLiteral) Type() NodeType { return NodeBoolLiteral }
func (n *BoolLiteral) exprNode()      {}
func (n *BoolLiteral) String() string { return fmt.Sprintf("%v", n.Value) }

// NoneLiteral is the 1.1+ `None` keyword: an explicit null of indeterminate
// optional type, unifying with any `T?`.
type NoneLiteral struct {
	pos Position
}

func (n *NoneLiteral) Pos() Position  { return n.pos }
func (n *NoneLiteral) Type() NodeType { return NodeNoneLiteral }
func (n *NoneLiteral) exprNode()      {}
func (n *NoneLiteral) String() string { return "None" }

// StringPart is one chunk of a possibly-interpolated string: either a
// literal run of text, or a Placeholder expression.
type StringPart struct {
	Literal     string // set when Placeholder == nil
	Placeholder *Placeholder
}

// StringLiteral is a (possibly interpolated) single- or double-quoted
// string, or the contents of a command block.
type StringLiteral struct {
	pos   Position
	Parts []StringPart
}

func (n *StringLiteral) Pos() Position  { return n.pos }
func (n *StringLiteral) Type() NodeType { return NodeStringLiteral }
func (n *StringLiteral) exprNode()      {}
func (n *StringLiteral) String() string {
	var b strings.Builder
	b.WriteString(`"`)
	for _, p := range n.Parts {
		if p.Placeholder != nil {
			b.WriteString(p.Placeholder.String())
		} else {
			b.WriteString(p.Literal)
		}
	}
	b.WriteString(`"`)
	return b.String()
}

// IsStatic reports whether the string has no placeholders.
func (n *StringLiteral) IsStatic() bool {
	for _, p := range n.Parts {
		if p.Placeholder != nil {
			return false
		}
	}
	return true
}

// PlaceholderOption is one of `sep=`, `true=`/`false=`, or `default=`.
type PlaceholderOption struct {
	Kind  string // "sep", "true", "false", "default"
	Value string // static string operand
}

// Placeholder is an embedded `${expr}`/`~{expr}` inside a string or command.
type Placeholder struct {
	pos     Position
	Expr    Expression
	Options []PlaceholderOption
	Tilde   bool // true for ~{...}, false for ${...}
}

func (n *Placeholder) Pos() Position  { return n.pos }
func (n *Placeholder) Type() NodeType { return NodePlaceholder }
func (n *Placeholder) exprNode()      {}
func (n *Placeholder) String() string {
	open := "${"
	if n.Tilde {
		open = "~{"
	}
	return open + n.Expr.String() + "}"
}

type ArrayLiteral struct {
	pos      Position
	Elements []Expression
}

func (n *ArrayLiteral) Pos() Position  { return n.pos }
func (n *ArrayLiteral) Type() NodeType { return NodeArrayLiteral }
func (n *ArrayLiteral) exprNode()      {}
func (n *ArrayLiteral) String() string {
	parts := make([]string, len(n.Elements))
	for i, e := range n.Elements {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

type MapEntry struct {
	Key   Expression
	Value Expression
}

type MapLiteral struct {
	pos     Position
	Entries []MapEntry
}

func (n *MapLiteral) Pos() Position  { return n.pos }
func (n *MapLiteral) Type() NodeType { return NodeMapLiteral }
func (n *MapLiteral) exprNode()      {}
func (n *MapLiteral) String() string {
	parts := make([]string, len(n.Entries))
	for i, e := range n.Entries {
		parts[i] = e.Key.String() + ": " + e.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

type PairLiteral struct {
	pos   Position
	Left  Expression
	Right Expression
}

func (n *PairLiteral) Pos() Position  { return n.pos }
func (n *PairLiteral) Type() NodeType { return NodePairLiteral }
func (n *PairLiteral) exprNode()      {}
func (n *PairLiteral) String() string {
	return "(" + n.Left.String() + ", " + n.Right.String() + ")"
}

// ObjectLiteral covers both the legacy `object {k: v}` sentinel type and
// struct literals `StructName {k: v}` (TypeName empty for the former).
type ObjectLiteral struct {
	pos      Position
	TypeName string
	Entries  []MapEntry
}

func (n *ObjectLiteral) Pos() Position  { return n.pos }
func (n *ObjectLiteral) Type() NodeType { return NodeObjectLiteral }
func (n *ObjectLiteral) exprNode()      {}
func (n *ObjectLiteral) String() string {
	parts := make([]string, len(n.Entries))
	for i, e := range n.Entries {
		parts[i] = e.Key.String() + ": " + e.Value.String()
	}
	return n.TypeName + "{" + strings.Join(parts, ", ") + "}"
}

type Identifier struct {
	pos  Position
	Name string
}

func (n *Identifier) Pos() Position  { return n.pos }
func (n *Identifier) Type() NodeType { return NodeIdentifier }
func (n *Identifier) exprNode()      {}
func (n *Identifier) String() string { return n.Name }

// MemberAccess is `expr.field`; the resolver disambiguates namespace
// access, struct field access, and Pair .left/.right.
type MemberAccess struct {
	pos    Position
	Object Expression
	Field  string
}

func (n *MemberAccess) Pos() Position  { return n.pos }
func (n *MemberAccess) Type() NodeType { return NodeMemberAccess }
func (n *MemberAccess) exprNode()      {}
func (n *MemberAccess) String() string { return n.Object.String() + "." + n.Field }

type IndexExpr struct {
	pos       Position
	Object    Expression
	Subscript Expression
}

func (n *IndexExpr) Pos() Position  { return n.pos }
func (n *IndexExpr) Type() NodeType { return NodeIndexExpr }
func (n *IndexExpr) exprNode()      {}
func (n *IndexExpr) String() string {
	return fmt.Sprintf("%s[%s]", n.Object.String(), n.Subscript.String())
}

type UnaryExpr struct {
	pos      Position
	Operator string // "!" or "-"
	Operand  Expression
}

func (n *UnaryExpr) Pos() Position  { return n.pos }
func (n *UnaryExpr) Type() NodeType { return NodeUnaryExpr }
func (n *UnaryExpr) exprNode()      {}
func (n *UnaryExpr) String() string { return n.Operator + n.Operand.String() }

type BinaryExpr struct {
	pos      Position
	Left     Expression
	Operator string // * / % + - < <= > >= == != && ||
	Right    Expression
}

func (n *BinaryExpr) Pos() Position  { return n.pos }
func (n *BinaryExpr) Type() NodeType { return NodeBinaryExpr }
func (n *BinaryExpr) exprNode()      {}
func (n *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left.String(), n.Operator, n.Right.String())
}

type IfThenElseExpr struct {
	pos       Position
	Condition Expression
	Then      Expression
	Else      Expression
}

func (n *IfThenElseExpr) Pos() Position  { return n.pos }
func (n *IfThenElseExpr) Type() NodeType { return NodeIfThenElseExpr }
func (n *IfThenElseExpr) exprNode()      {}
func (n *IfThenElseExpr) String() string {
	return fmt.Sprintf("if %s then %s else %s", n.Condition, n.Then, n.Else)
}

type FunctionCall struct {
	pos  Position
	Name string
	Args []Expression
}

func (n *FunctionCall) Pos() Position  { return n.pos }
func (n *FunctionCall) Type() NodeType { return NodeFunctionCall }
func (n *FunctionCall) exprNode()      {}
func (n *FunctionCall) String() string {
	parts := make([]string, len(n.Args))
	for i, a := range n.Args {
		parts[i] = a.String()
	}
	return n.Name + "(" + strings.Join(parts, ", ") + ")"
}

// ===========================================================================
// Declarations and statements
// ===========================================================================

// Declaration is `Type name = expr` (expr nil for unbound task/workflow
// inputs); it is shared by input sections, private declarations, and
// output sections.
type Declaration struct {
	pos      Position
	DeclType *TypeExpr
	Name     string
	Expr     Expression // nil if unbound (input only)
}

func (n *Declaration) Pos() Position  { return n.pos }
func (n *Declaration) Type() NodeType { return NodeDeclaration }
func (n *Declaration) String() string {
	if n.Expr == nil {
		return fmt.Sprintf("%s %s", n.DeclType, n.Name)
	}
	return fmt.Sprintf("%s %s = %s", n.DeclType, n.Name, n.Expr)
}

// CallInput binds one task/workflow input at a call site: `name = expr` or,
// via the `name` shorthand, `name = name`.
type CallInput struct {
	Name string
	Expr Expression
}

// CallDecl instantiates a task or sub-workflow inside a workflow body.
type CallDecl struct {
	pos    Position
	Target string // dotted name of the task/workflow being called
	Alias  string // `as alias`, or Target's basename when absent
	Inputs []CallInput
	After  []string // 1.1+ `after` clause, names of prior calls
}

func (n *CallDecl) Pos() Position  { return n.pos }
func (n *CallDecl) Type() NodeType { return NodeCallDecl }
func (n *CallDecl) String() string { return fmt.Sprintf("call %s as %s", n.Target, n.Alias) }

// WorkflowNode is implemented by every construct allowed in a workflow
// body: Declaration, CallDecl, ScatterDecl, ConditionalDecl.
type WorkflowNode interface {
	Node
}

// ScatterDecl maps Body over Iterable, binding Variable to each element.
type ScatterDecl struct {
	pos      Position
	Variable string
	Iterable Expression
	Body     []WorkflowNode
}

func (n *ScatterDecl) Pos() Position  { return n.pos }
func (n *ScatterDecl) Type() NodeType { return NodeScatterDecl }
func (n *ScatterDecl) String() string {
	return fmt.Sprintf("scatter (%s in %s) { %d nodes }", n.Variable, n.Iterable, len(n.Body))
}

// ConditionalDecl executes Body only when Condition evaluates true.
type ConditionalDecl struct {
	pos       Position
	Condition Expression
	Body      []WorkflowNode
}

func (n *ConditionalDecl) Pos() Position  { return n.pos }
func (n *ConditionalDecl) Type() NodeType { return NodeConditionalDecl }
func (n *ConditionalDecl) String() string {
	return fmt.Sprintf("if (%s) { %d nodes }", n.Condition, len(n.Body))
}

// CommandSection is a task's command template: literal text interleaved
// with placeholders, exactly like StringLiteral but always using `~{}`
// inside a `<<< >>>` heredoc (or `${}` in the legacy `command { }` form).
type CommandSection struct {
	pos     Position
	Parts   []StringPart
	Heredoc bool // true for <<< >>>, false for command { }
}

func (n *CommandSection) Pos() Position  { return n.pos }
func (n *CommandSection) Type() NodeType { return NodeCommandSection }
func (n *CommandSection) String() string { return "command { ... }" }

// RuntimeSection holds a task's `runtime { }` attribute map; values are
// expressions evaluated in the task's private-declaration environment.
type RuntimeSection struct {
	pos   Position
	Attrs map[string]Expression
}

func (n *RuntimeSection) Pos() Position  { return n.pos }
func (n *RuntimeSection) Type() NodeType { return NodeRuntimeSection }
func (n *RuntimeSection) String() string { return fmt.Sprintf("runtime{%d attrs}", len(n.Attrs)) }

// MetaSection holds a task/workflow's `meta { }` or `parameter_meta { }`
// block. Values are opaque JSON-ish literals, never evaluated.
type MetaSection struct {
	pos     Position
	Entries map[string]any
}

func (n *MetaSection) Pos() Position  { return n.pos }
func (n *MetaSection) Type() NodeType { return NodeMetaSection }
func (n *MetaSection) String() string { return fmt.Sprintf("meta{%d entries}", len(n.Entries)) }

// StructMember is one field of a struct type definition.
type StructMember struct {
	Name string
	Type *TypeExpr
}

// StructTypeDecl declares a named struct type: `struct Name { ... }`.
type StructTypeDecl struct {
	pos     Position
	Name    string
	Members []StructMember
}

func (n *StructTypeDecl) Pos() Position  { return n.pos }
func (n *StructTypeDecl) Type() NodeType { return NodeStructTypeDecl }
func (n *StructTypeDecl) String() string { return "struct " + n.Name }

// Task is a parameterized, containerized unit of work.
type Task struct {
	pos           Position
	Name          string
	Inputs        []*Declaration // from `input { }`, or bare decls pre-1.0
	Privates      []*Declaration
	Command       *CommandSection
	Outputs       []*Declaration
	Runtime       *RuntimeSection
	Meta          *MetaSection
	ParameterMeta *MetaSection
}

func (n *Task) Pos() Position  { return n.pos }
func (n *Task) Type() NodeType { return NodeTaskDecl }
func (n *Task) String() string { return "task " + n.Name }

// Workflow is a composition of declarations, calls, scatters and
// conditionals producing typed outputs.
type Workflow struct {
	pos           Position
	Name          string
	Inputs        []*Declaration
	Body          []WorkflowNode
	Outputs       []*Declaration
	Meta          *MetaSection
	ParameterMeta *MetaSection
}

func (n *Workflow) Pos() Position  { return n.pos }
func (n *Workflow) Type() NodeType { return NodeWorkflowDecl }
func (n *Workflow) String() string { return "workflow " + n.Name }

// ImportDecl brings another document's exported names into scope.
type ImportDecl struct {
	pos           Position
	URI           string
	Alias         string            // explicit `as` clause, or URI basename
	StructAliases map[string]string // explicit per-struct aliasing
}

func (n *ImportDecl) Pos() Position  { return n.pos }
func (n *ImportDecl) Type() NodeType { return NodeImportDecl }
func (n *ImportDecl) String() string { return "import " + n.URI }

// Document is a complete parsed WDL file: one translation unit.
type Document struct {
	pos        Position
	Version    GrammarVersion
	Imports    []*ImportDecl
	Structs    []*StructTypeDecl
	Tasks      []*Task
	Workflow   *Workflow // nil if the document defines only tasks
	SourceText string    // raw text, retained for diagnostic snippets
}

func (n *Document) Pos() Position  { return n.pos }
func (n *Document) Type() NodeType { return NodeDocument }
func (n *Document) String() string {
	return fmt.Sprintf("Document(version=%s, tasks=%d, workflow=%v)",
		n.Version, len(n.Tasks), n.Workflow != nil)
}

// NewPosition is a convenience constructor used by the parser.
func NewPosition(uri string, line, col, endLine, endCol int) Position {
	return Position{URI: uri, Line: line, Column: col, EndLine: endLine, EndColumn: endCol}
}
