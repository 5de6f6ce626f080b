// Package parser provides a Participle-based parser for WDL documents.
//
// One permissive grammar parses every supported grammar version (draft-2,
// 1.0, 1.1, development); version-gated syntax (the `input {}` requirement,
// `~{}` placeholders, `after` clauses, `None`) is accepted unconditionally
// here and rejected later by the resolver/type checker using the
// ast.GrammarVersion helpers: the parser itself accepts a superset grammar
// and lets downstream passes enforce the version-specific restrictions.
package parser

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	plex "github.com/alecthomas/participle/v2/lexer"

	"github.com/wdlrun/wdlrun/internal/ast"
	wdllex "github.com/wdlrun/wdlrun/internal/lexer"
)

// =============================================================================
// Participle grammar (intermediate representation)
// =============================================================================

type pDocument struct {
	Pos     plex.Position
	Version *string      `parser:"(Version @(Ident | DecInt Dot DecInt | Ident))?"`
	Items   []*pDocItem  `parser:"@@*"`
}

type pDocItem struct {
	Pos      plex.Position
	Import   *pImportDecl `parser:"  @@"`
	Struct   *pStructDecl `parser:"| @@"`
	Task     *pTaskDecl   `parser:"| @@"`
	Workflow *pWorkflow   `parser:"| @@"`
}

type pImportDecl struct {
	Pos     plex.Position
	URI     string             `parser:"Import @String"`
	Alias   *string            `parser:"(As @Ident)?"`
	Aliases []*pStructAliasPair `parser:"(Alias @@)*"`
}

type pStructAliasPair struct {
	From string `parser:"@Ident"`
	To   string `parser:"As @Ident"`
}

type pStructDecl struct {
	Pos     plex.Position
	Name    string           `parser:"Struct @Ident LBrace"`
	Members []*pStructMember `parser:"@@* RBrace"`
}

type pStructMember struct {
	Type *pTypeExpr `parser:"@@"`
	Name string     `parser:"@Ident"`
}

type pTaskDecl struct {
	Pos           plex.Position
	Name          string          `parser:"Task @Ident LBrace"`
	Inputs        *pInputSection  `parser:"@@?"`
	Declarations  []*pDeclaration `parser:"@@*"`
	Command       *pCommandBlock  `parser:"@@"`
	Outputs       *pOutputSection `parser:"@@?"`
	Runtime       *pRuntimeBlock  `parser:"@@?"`
	ParameterMeta *pMetaBlock     `parser:"@@?"`
	Meta          *pMetaBlock     `parser:"@@? RBrace"`
}

type pWorkflow struct {
	Pos           plex.Position
	Name          string          `parser:"Workflow @Ident LBrace"`
	Inputs        *pInputSection  `parser:"@@?"`
	Body          []*pWFBodyItem  `parser:"@@*"`
	Outputs       *pOutputSection `parser:"@@?"`
	ParameterMeta *pMetaBlock     `parser:"@@?"`
	Meta          *pMetaBlock     `parser:"@@? RBrace"`
}

type pWFBodyItem struct {
	Pos         plex.Position
	Call        *pCallDecl        `parser:"  @@"`
	Scatter     *pScatterDecl     `parser:"| @@"`
	Conditional *pConditionalDecl `parser:"| @@"`
	Decl        *pDeclaration     `parser:"| @@"`
}

type pInputSection struct {
	Pos          plex.Position
	Declarations []*pDeclaration `parser:"Input LBrace @@* RBrace"`
}

type pOutputSection struct {
	Pos          plex.Position
	Declarations []*pDeclaration `parser:"Output LBrace @@* RBrace"`
}

type pDeclaration struct {
	Pos  plex.Position
	Type *pTypeExpr  `parser:"@@"`
	Name string      `parser:"@Ident"`
	Expr *pExpr      `parser:"(Equals @@)?"`
}

type pCallDecl struct {
	Pos    plex.Position
	Target string           `parser:"Call @Ident (Dot @Ident)*"`
	Alias  *string          `parser:"(As @Ident)?"`
	After  []string         `parser:"(After @Ident)*"`
	Inputs []*pCallInput    `parser:"(LBrace (Input)? Colon? @@ (Comma @@)* RBrace)?"`
}

type pCallInput struct {
	Name string `parser:"@Ident"`
	Expr *pExpr `parser:"(Equals @@)?"`
}

type pScatterDecl struct {
	Pos      plex.Position
	Variable string         `parser:"Scatter LParen @Ident"`
	Iterable *pExpr         `parser:"In @@ RParen LBrace"`
	Body     []*pWFBodyItem `parser:"@@* RBrace"`
}

type pConditionalDecl struct {
	Pos       plex.Position
	Condition *pExpr         `parser:"If LParen @@ RParen LBrace"`
	Body      []*pWFBodyItem `parser:"@@* RBrace"`
}

type pCommandBlock struct {
	Pos  plex.Position
	Text string `parser:"(HeredocOpen @CommandPart* HeredocClose) | (BraceCommandOpen @CommandPart* BraceCommandClose)"`
}

type pRuntimeBlock struct {
	Pos   plex.Position
	Attrs []*pRuntimeAttr `parser:"Runtime LBrace @@* RBrace"`
}

type pRuntimeAttr struct {
	Name string `parser:"@Ident Colon"`
	Expr *pExpr `parser:"@@"`
}

type pMetaBlock struct {
	Pos     plex.Position
	Kind    string           `parser:"@(Meta | ParameterMeta) LBrace"`
	Entries []*pMetaEntry    `parser:"@@* RBrace"`
}

type pMetaEntry struct {
	Name  string `parser:"@Ident Colon"`
	Value string `parser:"@String"`
}

// pTypeExpr parses a WDL type annotation: a leaf name, optionally a
// bracketed parameter list (Array/Map/Pair), and trailing '+'/'?'.
type pTypeExpr struct {
	Pos      plex.Position
	Name     string       `parser:"@(Boolean|Int|Float|StringType|FileType|DirectoryType|Array|Map|Pair|AnyType|Object|Ident)"`
	Params   []*pTypeExpr `parser:"(LBracket @@ (Comma @@)* RBracket)?"`
	NonEmpty bool         `parser:"@Plus?"`
	Optional bool         `parser:"@Question?"`
}

// =============================================================================
// Expression grammar, precedence encoded by struct nesting
// (member/subscript > unary > * / % > + - > < <= > >= > == != > && > || > if)
// =============================================================================

type pExpr struct {
	Pos  plex.Position
	If   *pIfExpr `parser:"  @@"`
	Or   *pOrExpr `parser:"| @@"`
}

type pIfExpr struct {
	Pos       plex.Position
	Condition *pExpr `parser:"If @@"`
	Then      *pExpr `parser:"Then @@"`
	Else      *pExpr `parser:"Else @@"`
}

type pOrExpr struct {
	Pos   plex.Position
	Left  *pAndExpr   `parser:"@@"`
	Rest  []*pAndExpr `parser:"(OrOr @@)*"`
}

type pAndExpr struct {
	Pos  plex.Position
	Left *pEqExpr   `parser:"@@"`
	Rest []*pEqExpr `parser:"(AndAnd @@)*"`
}

type pEqExpr struct {
	Pos  plex.Position
	Left *pCmpExpr `parser:"@@"`
	Op   *string   `parser:"(@(Eq|Ne)"`
	Right *pCmpExpr `parser:" @@)?"`
}

type pCmpExpr struct {
	Pos   plex.Position
	Left  *pAddExpr `parser:"@@"`
	Op    *string   `parser:"(@(Le|Ge|Lt|Gt)"`
	Right *pAddExpr `parser:" @@)?"`
}

type pAddExpr struct {
	Pos  plex.Position
	Left *pMulExpr    `parser:"@@"`
	Ops  []string     `parser:"(@(Plus|Minus)"`
	Rest []*pMulExpr  `parser:" @@)*"`
}

type pMulExpr struct {
	Pos  plex.Position
	Left *pUnaryExpr   `parser:"@@"`
	Ops  []string      `parser:"(@(Star|Slash|Percent)"`
	Rest []*pUnaryExpr `parser:" @@)*"`
}

type pUnaryExpr struct {
	Pos     plex.Position
	Op      *string      `parser:"@(Not|Minus)?"`
	Operand *pPostfixExpr `parser:"@@"`
}

type pPostfixExpr struct {
	Pos     plex.Position
	Primary *pPrimary     `parser:"@@"`
	Suffixes []*pSuffix   `parser:"@@*"`
}

type pSuffix struct {
	Field *string `parser:"  Dot @Ident"`
	Index *pExpr  `parser:"| LBracket @@ RBracket"`
}

type pPrimary struct {
	Pos        plex.Position
	Float      *string        `parser:"  @Float64"`
	Hex        *string        `parser:"| @HexInt"`
	Int        *string        `parser:"| @DecInt"`
	True       bool           `parser:"| @True"`
	False      bool           `parser:"| @False"`
	None       bool            `parser:"| @None"`
	StringLit  *pStringLit    `parser:"| @@"`
	ObjectLit  *pObjectLit    `parser:"| @@"`
	PairLit    *pPairLit      `parser:"| @@"`
	ArrayLit   *pArrayLit     `parser:"| @@"`
	MapLit     *pMapLit       `parser:"| @@"`
	Call       *pCallExpr     `parser:"| @@"`
	Ident      *string        `parser:"| @Ident"`
	Paren      *pExpr         `parser:"| LParen @@ RParen"`
}

type pCallExpr struct {
	Name string   `parser:"@Ident LParen"`
	Args []*pExpr `parser:"(@@ (Comma @@)*)? RParen"`
}

type pArrayLit struct {
	Elements []*pExpr `parser:"LBracket (@@ (Comma @@)*)? RBracket"`
}

type pMapLit struct {
	Entries []*pMapEntryLit `parser:"LBrace (@@ (Comma @@)*)? RBrace"`
}

type pMapEntryLit struct {
	Key   *pExpr `parser:"@@ Colon"`
	Value *pExpr `parser:"@@"`
}

type pPairLit struct {
	Left  *pExpr `parser:"LParen @@ Comma"`
	Right *pExpr `parser:"@@ RParen"`
}

type pObjectLit struct {
	TypeName *string         `parser:"@(Object|Ident)?"`
	Entries  []*pMapEntryLit `parser:"LBrace (@@ (Comma @@)*)? RBrace"`
}

// pStringLit matches a quoted string as a flat token sequence: the
// stateful lexer yields StringChunk tokens for literal runs and a nested
// Root-state token run (terminated by RBrace) for each placeholder.
type pStringLit struct {
	Open  string         `parser:"@(DQuoteOpen|SQuoteOpen)"`
	Parts []*pStringPart `parser:"@@*"`
	Close string         `parser:"@(DQuoteClose|SQuoteClose)"`
}

type pStringPart struct {
	Chunk       *string          `parser:"  @(StringChunk|StringChunkS)"`
	Placeholder *pPlaceholderLit `parser:"| @@"`
}

type pPlaceholderLit struct {
	Tilde   bool             `parser:"(@TildePlaceholderOpen|@TildePlaceholderOpenS|@TildePlaceholderOpenC|@TildePlaceholderOpenB)"`
	Dollar  bool             `parser:"| (@DollarPlaceholderOpen|@DollarPlaceholderOpenS|@DollarPlaceholderOpenB)"`
	Options []*pPlaceholderOpt `parser:"@@*"`
	Expr    *pExpr           `parser:"@@ RBrace"`
}

type pPlaceholderOpt struct {
	Kind  string `parser:"@Ident Equals"`
	Value string `parser:"@String"`
}

// =============================================================================
// Parser construction
// =============================================================================

var instance = participle.MustBuild[pDocument](
	participle.Lexer(wdllex.WDL),
	participle.Elide("whitespace", "Comment"),
	participle.UseLookahead(4),
	participle.Unquote("String"),
)

// Parse parses source (from the given URI, used for diagnostics) into a
// Document AST. The document's GrammarVersion is derived from its leading
// `version` declaration, defaulting to draft-2 when absent.
func Parse(uri, source string) (*ast.Document, error) {
	parsed, err := instance.ParseString(uri, source)
	if err != nil {
		return nil, fmt.Errorf("parser: %s: %w", uri, err)
	}
	return convertDocument(uri, source, parsed)
}

// ParseFile reads and parses the WDL document at path.
func ParseFile(path string) (*ast.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("parser: reading %s: %w", path, err)
	}
	return Parse(path, string(data))
}

// =============================================================================
// Conversion: Participle IR -> ast
// =============================================================================

func pos(uri string, p plex.Position) ast.Position {
	return ast.NewPosition(uri, p.Line, p.Column, p.Line, p.Column)
}

func convertDocument(uri, source string, d *pDocument) (*ast.Document, error) {
	version := ast.VersionDraft2
	if d.Version != nil {
		switch strings.TrimSpace(*d.Version) {
		case "1.0", "draft-3":
			version = ast.Version1_0
		case "1.1":
			version = ast.Version1_1
		case "development", "1.2":
			version = ast.VersionDevelopment
		}
	}

	doc := &ast.Document{
		Version:    version,
		SourceText: source,
	}
	_ = doc // copied into out below; no source position is recorded on the Document

	out := &ast.Document{}
	*out = *doc

	for _, item := range d.Items {
		switch {
		case item.Import != nil:
			imp, err := convertImport(uri, item.Import)
			if err != nil {
				return nil, err
			}
			out.Imports = append(out.Imports, imp)
		case item.Struct != nil:
			out.Structs = append(out.Structs, convertStruct(uri, item.Struct))
		case item.Task != nil:
			t, err := convertTask(uri, item.Task)
			if err != nil {
				return nil, err
			}
			out.Tasks = append(out.Tasks, t)
		case item.Workflow != nil:
			wf, err := convertWorkflow(uri, item.Workflow)
			if err != nil {
				return nil, err
			}
			out.Workflow = wf
		}
	}
	return out, nil
}

func convertImport(uri string, i *pImportDecl) (*ast.ImportDecl, error) {
	alias := ""
	if i.Alias != nil {
		alias = *i.Alias
	}
	aliases := map[string]string{}
	for _, a := range i.Aliases {
		aliases[a.From] = a.To
	}
	importURI, err := unquote(i.URI)
	if err != nil {
		return nil, err
	}
	return &ast.ImportDecl{URI: importURI, Alias: alias, StructAliases: aliases}, nil
}

func convertStruct(uri string, s *pStructDecl) *ast.StructTypeDecl {
	members := make([]ast.StructMember, len(s.Members))
	for i, m := range s.Members {
		members[i] = ast.StructMember{Name: m.Name, Type: convertTypeExpr(m.Type)}
	}
	return &ast.StructTypeDecl{Name: s.Name, Members: members}
}

func convertTypeExpr(t *pTypeExpr) *ast.TypeExpr {
	if t == nil {
		return nil
	}
	params := make([]*ast.TypeExpr, len(t.Params))
	for i, p := range t.Params {
		params[i] = convertTypeExpr(p)
	}
	return &ast.TypeExpr{Name: t.Name, Params: params, Optional: t.Optional, NonEmpty: t.NonEmpty}
}

func convertTask(uri string, t *pTaskDecl) (*ast.Task, error) {
	task := &ast.Task{Name: t.Name}
	if t.Inputs != nil {
		inputs, err := convertDeclarations(t.Inputs.Declarations)
		if err != nil {
			return nil, err
		}
		task.Inputs = inputs
	}
	privates, err := convertDeclarations(t.Declarations)
	if err != nil {
		return nil, err
	}
	task.Privates = privates
	cmd, err := convertCommand(t.Command)
	if err != nil {
		return nil, err
	}
	task.Command = cmd
	if t.Outputs != nil {
		outputs, err := convertDeclarations(t.Outputs.Declarations)
		if err != nil {
			return nil, err
		}
		task.Outputs = outputs
	}
	if t.Runtime != nil {
		runtime, err := convertRuntime(t.Runtime)
		if err != nil {
			return nil, err
		}
		task.Runtime = runtime
	}
	if t.Meta != nil {
		meta, err := convertMeta(t.Meta)
		if err != nil {
			return nil, err
		}
		task.Meta = meta
	}
	if t.ParameterMeta != nil {
		meta, err := convertMeta(t.ParameterMeta)
		if err != nil {
			return nil, err
		}
		task.ParameterMeta = meta
	}
	return task, nil
}

func convertWorkflow(uri string, w *pWorkflow) (*ast.Workflow, error) {
	wf := &ast.Workflow{Name: w.Name}
	if w.Inputs != nil {
		inputs, err := convertDeclarations(w.Inputs.Declarations)
		if err != nil {
			return nil, err
		}
		wf.Inputs = inputs
	}
	for _, item := range w.Body {
		node, err := convertWFBodyItem(item)
		if err != nil {
			return nil, err
		}
		wf.Body = append(wf.Body, node)
	}
	if w.Outputs != nil {
		outputs, err := convertDeclarations(w.Outputs.Declarations)
		if err != nil {
			return nil, err
		}
		wf.Outputs = outputs
	}
	if w.Meta != nil {
		meta, err := convertMeta(w.Meta)
		if err != nil {
			return nil, err
		}
		wf.Meta = meta
	}
	if w.ParameterMeta != nil {
		meta, err := convertMeta(w.ParameterMeta)
		if err != nil {
			return nil, err
		}
		wf.ParameterMeta = meta
	}
	return wf, nil
}

func convertWFBodyItem(item *pWFBodyItem) (ast.WorkflowNode, error) {
	switch {
	case item.Call != nil:
		return convertCall(item.Call)
	case item.Scatter != nil:
		return convertScatter(item.Scatter)
	case item.Conditional != nil:
		return convertConditional(item.Conditional)
	case item.Decl != nil:
		return convertDeclaration(item.Decl)
	}
	return nil, fmt.Errorf("parser: empty workflow body item")
}

func convertDeclarations(ds []*pDeclaration) ([]*ast.Declaration, error) {
	out := make([]*ast.Declaration, len(ds))
	for i, d := range ds {
		decl, err := convertDeclaration(d)
		if err != nil {
			return nil, err
		}
		out[i] = decl
	}
	return out, nil
}

func convertDeclaration(d *pDeclaration) (*ast.Declaration, error) {
	decl := &ast.Declaration{DeclType: convertTypeExpr(d.Type), Name: d.Name}
	if d.Expr != nil {
		expr, err := convertExpr(d.Expr)
		if err != nil {
			return nil, err
		}
		decl.Expr = expr
	}
	return decl, nil
}

func convertCall(c *pCallDecl) (*ast.CallDecl, error) {
	alias := c.Target
	if c.Alias != nil {
		alias = *c.Alias
	}
	inputs := make([]ast.CallInput, len(c.Inputs))
	for i, in := range c.Inputs {
		expr := ast.Expression(&ast.Identifier{})
		if in.Expr != nil {
			e, err := convertExpr(in.Expr)
			if err != nil {
				return nil, err
			}
			expr = e
		}
		inputs[i] = ast.CallInput{Name: in.Name, Expr: expr}
	}
	return &ast.CallDecl{Target: c.Target, Alias: alias, Inputs: inputs, After: c.After}, nil
}

func convertScatter(s *pScatterDecl) (*ast.ScatterDecl, error) {
	body := make([]ast.WorkflowNode, 0, len(s.Body))
	for _, item := range s.Body {
		n, err := convertWFBodyItem(item)
		if err != nil {
			return nil, err
		}
		body = append(body, n)
	}
	iterable, err := convertExpr(s.Iterable)
	if err != nil {
		return nil, err
	}
	return &ast.ScatterDecl{Variable: s.Variable, Iterable: iterable, Body: body}, nil
}

func convertConditional(c *pConditionalDecl) (*ast.ConditionalDecl, error) {
	body := make([]ast.WorkflowNode, 0, len(c.Body))
	for _, item := range c.Body {
		n, err := convertWFBodyItem(item)
		if err != nil {
			return nil, err
		}
		body = append(body, n)
	}
	condition, err := convertExpr(c.Condition)
	if err != nil {
		return nil, err
	}
	return &ast.ConditionalDecl{Condition: condition, Body: body}, nil
}

func convertCommand(c *pCommandBlock) (*ast.CommandSection, error) {
	parts, err := parseInterpolatedText(c.Text)
	if err != nil {
		return nil, err
	}
	return &ast.CommandSection{Parts: parts}, nil
}

func convertRuntime(r *pRuntimeBlock) (*ast.RuntimeSection, error) {
	attrs := make(map[string]ast.Expression, len(r.Attrs))
	for _, a := range r.Attrs {
		expr, err := convertExpr(a.Expr)
		if err != nil {
			return nil, err
		}
		attrs[a.Name] = expr
	}
	return &ast.RuntimeSection{Attrs: attrs}, nil
}

func convertMeta(m *pMetaBlock) (*ast.MetaSection, error) {
	entries := make(map[string]any, len(m.Entries))
	for _, e := range m.Entries {
		val, err := unquote(e.Value)
		if err != nil {
			return nil, err
		}
		entries[e.Name] = val
	}
	return &ast.MetaSection{Entries: entries}, nil
}

// parseInterpolatedText is a fallback path for command text captured as a
// single raw chunk by the lexer's Command states (rather than re-entering
// the grammar's placeholder-aware pStringLit machinery); it scans for
// ~{...} (and legacy ${...} inside BraceCommand) and recursively parses
// each placeholder body as an expression.
func parseInterpolatedText(text string) ([]ast.StringPart, error) {
	var parts []ast.StringPart
	i := 0
	for i < len(text) {
		next := strings.IndexAny(text[i:], "~$")
		if next < 0 || i+next+1 >= len(text) || text[i+next+1] != '{' {
			parts = append(parts, ast.StringPart{Literal: text[i:]})
			break
		}
		start := i + next
		if start > i {
			parts = append(parts, ast.StringPart{Literal: text[i:start]})
		}
		tilde := text[start] == '~'
		depth := 1
		j := start + 2
		for j < len(text) && depth > 0 {
			switch text[j] {
			case '{':
				depth++
			case '}':
				depth--
			}
			if depth > 0 {
				j++
			}
		}
		if depth != 0 {
			return nil, fmt.Errorf("parser: unterminated placeholder in command text")
		}
		inner := text[start+2 : j]
		expr, err := ParseExprString(inner)
		if err != nil {
			return nil, fmt.Errorf("parser: placeholder %q: %w", inner, err)
		}
		parts = append(parts, ast.StringPart{Placeholder: &ast.Placeholder{Expr: expr, Tilde: tilde}})
		i = j + 1
	}
	return parts, nil
}

var exprInstance = participle.MustBuild[pExpr](
	participle.Lexer(wdllex.WDL),
	participle.Elide("whitespace", "Comment"),
	participle.UseLookahead(4),
	participle.Unquote("String"),
)

// ParseExprString parses a standalone WDL expression, used both for
// placeholder bodies and by callers (e.g. lint tooling) that only need
// expression-level parsing.
func ParseExprString(src string) (ast.Expression, error) {
	parsed, err := exprInstance.ParseString("<expr>", src)
	if err != nil {
		return nil, err
	}
	return convertExpr(parsed)
}

func convertExpr(e *pExpr) (ast.Expression, error) {
	if e.If != nil {
		cond, err := convertExpr(e.If.Condition)
		if err != nil {
			return nil, err
		}
		then, err := convertExpr(e.If.Then)
		if err != nil {
			return nil, err
		}
		els, err := convertExpr(e.If.Else)
		if err != nil {
			return nil, err
		}
		return &ast.IfThenElseExpr{Condition: cond, Then: then, Else: els}, nil
	}
	return convertOr(e.Or)
}

func convertOr(o *pOrExpr) (ast.Expression, error) {
	left, err := convertAnd(o.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range o.Rest {
		right, err := convertAnd(r)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Left: left, Operator: "||", Right: right}
	}
	return left, nil
}

func convertAnd(a *pAndExpr) (ast.Expression, error) {
	left, err := convertEq(a.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range a.Rest {
		right, err := convertEq(r)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Left: left, Operator: "&&", Right: right}
	}
	return left, nil
}

func convertEq(e *pEqExpr) (ast.Expression, error) {
	left, err := convertCmp(e.Left)
	if err != nil {
		return nil, err
	}
	if e.Op != nil && e.Right != nil {
		right, err := convertCmp(e.Right)
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpr{Left: left, Operator: *e.Op, Right: right}, nil
	}
	return left, nil
}

func convertCmp(c *pCmpExpr) (ast.Expression, error) {
	left, err := convertAdd(c.Left)
	if err != nil {
		return nil, err
	}
	if c.Op != nil && c.Right != nil {
		right, err := convertAdd(c.Right)
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpr{Left: left, Operator: *c.Op, Right: right}, nil
	}
	return left, nil
}

func convertAdd(a *pAddExpr) (ast.Expression, error) {
	left, err := convertMul(a.Left)
	if err != nil {
		return nil, err
	}
	for i, op := range a.Ops {
		right, err := convertMul(a.Rest[i])
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func convertMul(m *pMulExpr) (ast.Expression, error) {
	left, err := convertUnary(m.Left)
	if err != nil {
		return nil, err
	}
	for i, op := range m.Ops {
		right, err := convertUnary(m.Rest[i])
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func convertUnary(u *pUnaryExpr) (ast.Expression, error) {
	operand, err := convertPostfix(u.Operand)
	if err != nil {
		return nil, err
	}
	if u.Op != nil {
		return &ast.UnaryExpr{Operator: *u.Op, Operand: operand}, nil
	}
	return operand, nil
}

func convertPostfix(p *pPostfixExpr) (ast.Expression, error) {
	expr, err := convertPrimary(p.Primary)
	if err != nil {
		return nil, err
	}
	for _, s := range p.Suffixes {
		if s.Field != nil {
			expr = &ast.MemberAccess{Object: expr, Field: *s.Field}
		} else if s.Index != nil {
			sub, err := convertExpr(s.Index)
			if err != nil {
				return nil, err
			}
			expr = &ast.IndexExpr{Object: expr, Subscript: sub}
		}
	}
	return expr, nil
}

func convertPrimary(p *pPrimary) (ast.Expression, error) {
	switch {
	case p.Float != nil:
		f, _ := strconv.ParseFloat(*p.Float, 64)
		return &ast.FloatLiteral{Value: f}, nil
	case p.Hex != nil:
		n, _ := strconv.ParseInt(strings.TrimPrefix(strings.TrimPrefix(*p.Hex, "0x"), "0X"), 16, 64)
		return &ast.IntLiteral{Value: n}, nil
	case p.Int != nil:
		n, _ := strconv.ParseInt(*p.Int, 10, 64)
		return &ast.IntLiteral{Value: n}, nil
	case p.True:
		return &ast.BoolLiteral{Value: true}, nil
	case p.False:
		return &ast.BoolLiteral{Value: false}, nil
	case p.None:
		return &ast.NoneLiteral{}, nil
	case p.StringLit != nil:
		return convertStringLit(p.StringLit)
	case p.ObjectLit != nil:
		return convertObjectLit(p.ObjectLit)
	case p.PairLit != nil:
		left, err := convertExpr(p.PairLit.Left)
		if err != nil {
			return nil, err
		}
		right, err := convertExpr(p.PairLit.Right)
		if err != nil {
			return nil, err
		}
		return &ast.PairLiteral{Left: left, Right: right}, nil
	case p.ArrayLit != nil:
		elems := make([]ast.Expression, len(p.ArrayLit.Elements))
		for i, e := range p.ArrayLit.Elements {
			elem, err := convertExpr(e)
			if err != nil {
				return nil, err
			}
			elems[i] = elem
		}
		return &ast.ArrayLiteral{Elements: elems}, nil
	case p.MapLit != nil:
		return convertMapLit(p.MapLit)
	case p.Call != nil:
		args := make([]ast.Expression, len(p.Call.Args))
		for i, a := range p.Call.Args {
			arg, err := convertExpr(a)
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		return &ast.FunctionCall{Name: p.Call.Name, Args: args}, nil
	case p.Ident != nil:
		return &ast.Identifier{Name: *p.Ident}, nil
	case p.Paren != nil:
		return convertExpr(p.Paren)
	}
	return &ast.NoneLiteral{}, nil
}

func convertMapLit(m *pMapLit) (ast.Expression, error) {
	entries := make([]ast.MapEntry, len(m.Entries))
	for i, e := range m.Entries {
		key, err := convertExpr(e.Key)
		if err != nil {
			return nil, err
		}
		val, err := convertExpr(e.Value)
		if err != nil {
			return nil, err
		}
		entries[i] = ast.MapEntry{Key: key, Value: val}
	}
	return &ast.MapLiteral{Entries: entries}, nil
}

func convertObjectLit(o *pObjectLit) (ast.Expression, error) {
	typeName := ""
	if o.TypeName != nil {
		typeName = *o.TypeName
	}
	entries := make([]ast.MapEntry, len(o.Entries))
	for i, e := range o.Entries {
		key, err := convertExpr(e.Key)
		if err != nil {
			return nil, err
		}
		val, err := convertExpr(e.Value)
		if err != nil {
			return nil, err
		}
		entries[i] = ast.MapEntry{Key: key, Value: val}
	}
	return &ast.ObjectLiteral{TypeName: typeName, Entries: entries}, nil
}

func convertStringLit(s *pStringLit) (ast.Expression, error) {
	var parts []ast.StringPart
	for _, p := range s.Parts {
		if p.Chunk != nil {
			lit, err := unescapeChunk(*p.Chunk)
			if err != nil {
				return nil, err
			}
			parts = append(parts, ast.StringPart{Literal: lit})
		} else if p.Placeholder != nil {
			opts := make([]ast.PlaceholderOption, len(p.Placeholder.Options))
			for i, o := range p.Placeholder.Options {
				val, err := unquote(o.Value)
				if err != nil {
					return nil, err
				}
				opts[i] = ast.PlaceholderOption{Kind: o.Kind, Value: val}
			}
			expr, err := convertExpr(p.Placeholder.Expr)
			if err != nil {
				return nil, err
			}
			parts = append(parts, ast.StringPart{Placeholder: &ast.Placeholder{
				Expr:    expr,
				Options: opts,
				Tilde:   p.Placeholder.Tilde,
			}})
		}
	}
	return &ast.StringLiteral{Parts: parts}, nil
}

// unescapeChunk resolves the C-style escapes a WDL string literal allows:
// \n \t \r \\ \' \" , octal \NNN, hex \xNN, unicode \uNNNN. Any other
// character following a backslash is a lex error, not a literal backslash.
func unescapeChunk(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case '\'':
			b.WriteByte('\'')
		case '"':
			b.WriteByte('"')
		case 'x':
			if i+2 >= len(s) {
				return "", fmt.Errorf("parser: truncated \\x escape in %q", s)
			}
			n, err := strconv.ParseInt(s[i+1:i+3], 16, 32)
			if err != nil {
				return "", fmt.Errorf("parser: invalid \\x escape in %q: %w", s, err)
			}
			b.WriteRune(rune(n))
			i += 2
		case 'u':
			if i+4 >= len(s) {
				return "", fmt.Errorf("parser: truncated \\u escape in %q", s)
			}
			n, err := strconv.ParseInt(s[i+1:i+5], 16, 32)
			if err != nil {
				return "", fmt.Errorf("parser: invalid \\u escape in %q: %w", s, err)
			}
			b.WriteRune(rune(n))
			i += 4
		default:
			if s[i] >= '0' && s[i] <= '7' && i+2 < len(s) {
				n, err := strconv.ParseInt(s[i:i+3], 8, 32)
				if err == nil {
					b.WriteRune(rune(n))
					i += 2
					continue
				}
			}
			return "", fmt.Errorf("parser: unrecognized escape \\%c in %q", s[i], s)
		}
	}
	return b.String(), nil
}

func unquote(s string) (string, error) {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return unescapeChunk(s[1 : len(s)-1])
	}
	return s, nil
}
