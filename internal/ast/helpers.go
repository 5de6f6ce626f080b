package ast

import "strings"

// Visitor is called for each node during a Walk. Returning false stops
// descent into that node's children (siblings still run).
type Visitor func(node Node) bool

// Walk traverses node and its descendants in depth-first, pre-order
// fashion. A false from the visitor skips only that node's children; the
// rest of the walk continues, and Walk itself always returns true.
func Walk(node Node, visitor Visitor) bool {
	if node == nil {
		return true
	}
	if !visitor(node) {
		return true
	}

	switch n := node.(type) {
	case *Document:
		for _, imp := range n.Imports {
			if !Walk(imp, visitor) {
				return false
			}
		}
		for _, s := range n.Structs {
			if !Walk(s, visitor) {
				return false
			}
		}
		for _, t := range n.Tasks {
			if !Walk(t, visitor) {
				return false
			}
		}
		if n.Workflow != nil {
			if !Walk(n.Workflow, visitor) {
				return false
			}
		}

	case *ImportDecl:
		// leaf

	case *StructTypeDecl:
		// leaf; member types are unevaluated syntax, not walked as expressions

	case *Task:
		for _, d := range n.Inputs {
			if !Walk(d, visitor) {
				return false
			}
		}
		for _, d := range n.Privates {
			if !Walk(d, visitor) {
				return false
			}
		}
		if n.Command != nil {
			if !Walk(n.Command, visitor) {
				return false
			}
		}
		for _, d := range n.Outputs {
			if !Walk(d, visitor) {
				return false
			}
		}
		if n.Runtime != nil {
			if !Walk(n.Runtime, visitor) {
				return false
			}
		}

	case *Workflow:
		for _, d := range n.Inputs {
			if !Walk(d, visitor) {
				return false
			}
		}
		for _, wn := range n.Body {
			if !Walk(wn, visitor) {
				return false
			}
		}
		for _, d := range n.Outputs {
			if !Walk(d, visitor) {
				return false
			}
		}

	case *Declaration:
		if n.Expr != nil {
			if !Walk(n.Expr, visitor) {
				return false
			}
		}

	case *CallDecl:
		for _, in := range n.Inputs {
			if !Walk(in.Expr, visitor) {
				return false
			}
		}

	case *ScatterDecl:
		if !Walk(n.Iterable, visitor) {
			return false
		}
		for _, wn := range n.Body {
			if !Walk(wn, visitor) {
				return false
			}
		}

	case *ConditionalDecl:
		if !Walk(n.Condition, visitor) {
			return false
		}
		for _, wn := range n.Body {
			if !Walk(wn, visitor) {
				return false
			}
		}

	case *CommandSection:
		for _, p := range n.Parts {
			if p.Placeholder != nil {
				if !Walk(p.Placeholder, visitor) {
					return false
				}
			}
		}

	case *RuntimeSection:
		for _, e := range n.Attrs {
			if !Walk(e, visitor) {
				return false
			}
		}

	case *MetaSection:
		// opaque values, not walked

	case *Placeholder:
		if !Walk(n.Expr, visitor) {
			return false
		}

	case *StringLiteral:
		for _, p := range n.Parts {
			if p.Placeholder != nil {
				if !Walk(p.Placeholder, visitor) {
					return false
				}
			}
		}

	case *ArrayLiteral:
		for _, e := range n.Elements {
			if !Walk(e, visitor) {
				return false
			}
		}

	case *MapLiteral:
		for _, e := range n.Entries {
			if !Walk(e.Key, visitor) {
				return false
			}
			if !Walk(e.Value, visitor) {
				return false
			}
		}

	case *PairLiteral:
		if !Walk(n.Left, visitor) {
			return false
		}
		if !Walk(n.Right, visitor) {
			return false
		}

	case *ObjectLiteral:
		for _, e := range n.Entries {
			if !Walk(e.Value, visitor) {
				return false
			}
		}

	case *MemberAccess:
		if !Walk(n.Object, visitor) {
			return false
		}

	case *IndexExpr:
		if !Walk(n.Object, visitor) {
			return false
		}
		if !Walk(n.Subscript, visitor) {
			return false
		}

	case *UnaryExpr:
		if !Walk(n.Operand, visitor) {
			return false
		}

	case *BinaryExpr:
		if !Walk(n.Left, visitor) {
			return false
		}
		if !Walk(n.Right, visitor) {
			return false
		}

	case *IfThenElseExpr:
		if !Walk(n.Condition, visitor) {
			return false
		}
		if !Walk(n.Then, visitor) {
			return false
		}
		if !Walk(n.Else, visitor) {
			return false
		}

	case *FunctionCall:
		for _, a := range n.Args {
			if !Walk(a, visitor) {
				return false
			}
		}

	case *IntLiteral, *FloatLiteral, *BoolLiteral, *NoneLiteral, *Identifier, *TypeExpr:
		// leaves
	}

	return true
}

// Identifiers collects the names of every Identifier node reachable from
// expr, in the order they are encountered. Used by the resolver to find an
// expression's free variables before scopes are fully built.
func Identifiers(expr Expression) []string {
	var names []string
	Walk(expr, func(node Node) bool {
		if id, ok := node.(*Identifier); ok {
			names = append(names, id.Name)
		}
		return true
	})
	return names
}

// Print renders node as an indented tree, for diagnostics and tests.
func Print(node Node) string {
	var b strings.Builder
	printNode(&b, node, 0)
	return b.String()
}

func printNode(b *strings.Builder, node Node, indent int) {
	if node == nil {
		b.WriteString(strings.Repeat("  ", indent))
		b.WriteString("<nil>\n")
		return
	}
	prefix := strings.Repeat("  ", indent)
	b.WriteString(prefix)
	b.WriteString(node.Type().String())
	if s := node.String(); s != "" {
		b.WriteString(": ")
		b.WriteString(s)
	}
	b.WriteString("\n")

	switch n := node.(type) {
	case *Document:
		for _, t := range n.Tasks {
			printNode(b, t, indent+1)
		}
		if n.Workflow != nil {
			printNode(b, n.Workflow, indent+1)
		}
	case *Task:
		for _, d := range n.Inputs {
			printNode(b, d, indent+1)
		}
		for _, d := range n.Outputs {
			printNode(b, d, indent+1)
		}
	case *Workflow:
		for _, wn := range n.Body {
			printNode(b, wn, indent+1)
		}
	case *ScatterDecl:
		for _, wn := range n.Body {
			printNode(b, wn, indent+1)
		}
	case *ConditionalDecl:
		for _, wn := range n.Body {
			printNode(b, wn, indent+1)
		}
	}
}

// StructurallyEqual reports whether two expressions have the same shape and
// literal values, ignoring position. Used by tests comparing parser output.
func StructurallyEqual(a, b Expression) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type() != b.Type() {
		return false
	}
	switch na := a.(type) {
	case *IntLiteral:
		return na.Value == b.(*IntLiteral).Value
	case *FloatLiteral:
		return na.Value == b.(*FloatLiteral).Value
	case *BoolLiteral:
		return na.Value == b.(*BoolLiteral).Value
	case *NoneLiteral:
		return true
	case *Identifier:
		return na.Name == b.(*Identifier).Name
	case *StringLiteral:
		nb := b.(*StringLiteral)
		if len(na.Parts) != len(nb.Parts) {
			return false
		}
		for i := range na.Parts {
			pa, pb := na.Parts[i], nb.Parts[i]
			if (pa.Placeholder == nil) != (pb.Placeholder == nil) {
				return false
			}
			if pa.Placeholder != nil {
				if !StructurallyEqual(pa.Placeholder.Expr, pb.Placeholder.Expr) {
					return false
				}
			} else if pa.Literal != pb.Literal {
				return false
			}
		}
		return true
	case *ArrayLiteral:
		nb := b.(*ArrayLiteral)
		if len(na.Elements) != len(nb.Elements) {
			return false
		}
		for i := range na.Elements {
			if !StructurallyEqual(na.Elements[i], nb.Elements[i]) {
				return false
			}
		}
		return true
	case *BinaryExpr:
		nb := b.(*BinaryExpr)
		return na.Operator == nb.Operator &&
			StructurallyEqual(na.Left, nb.Left) &&
			StructurallyEqual(na.Right, nb.Right)
	case *UnaryExpr:
		nb := b.(*UnaryExpr)
		return na.Operator == nb.Operator && StructurallyEqual(na.Operand, nb.Operand)
	case *MemberAccess:
		nb := b.(*MemberAccess)
		return na.Field == nb.Field && StructurallyEqual(na.Object, nb.Object)
	case *IndexExpr:
		nb := b.(*IndexExpr)
		return StructurallyEqual(na.Object, nb.Object) && StructurallyEqual(na.Subscript, nb.Subscript)
	case *FunctionCall:
		nb := b.(*FunctionCall)
		if na.Name != nb.Name || len(na.Args) != len(nb.Args) {
			return false
		}
		for i := range na.Args {
			if !StructurallyEqual(na.Args[i], nb.Args[i]) {
				return false
			}
		}
		return true
	case *IfThenElseExpr:
		nb := b.(*IfThenElseExpr)
		return StructurallyEqual(na.Condition, nb.Condition) &&
			StructurallyEqual(na.Then, nb.Then) &&
			StructurallyEqual(na.Else, nb.Else)
	default:
		return a.String() == b.String()
	}
}
