// Package eval evaluates WDL expressions against a value environment. It
// is total for well-typed pure expressions, short-circuits
// &&/||/if-then-else, and reports a distinct evaluation-layer error
// taxonomy (EvalError, NullValue, OutOfBounds, NoSuchFunction,
// NoSuchMember).
package eval

import (
	"fmt"

	"github.com/wdlrun/wdlrun/internal/ast"
	"github.com/wdlrun/wdlrun/internal/env"
	"github.com/wdlrun/wdlrun/internal/stdlib"
	"github.com/wdlrun/wdlrun/internal/types"
	"github.com/wdlrun/wdlrun/internal/values"
)

// Env is a value environment: dotted names to already-evaluated Values.
type Env = env.Env[values.Value]

// Error wraps an evaluation failure with a WDL-level category, so callers
// can tell EvalError apart from NullValue/OutOfBounds without string
// matching.
type Error struct {
	Category string // "EvalError", "NullValue", "OutOfBounds", "NoSuchFunction", "NoSuchMember"
	Pos      ast.Position
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Pos.String(), e.Category, e.Message)
}

func fail(category string, pos ast.Position, format string, args ...any) error {
	return &Error{Category: category, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// Evaluator evaluates expressions given an IO capability (for stdlib
// read_*/write_*/glob/size) and the standard library registry.
type Evaluator struct {
	IO stdlib.IO
}

// New constructs an Evaluator. io may be nil for contexts (e.g. static
// default-value evaluation) guaranteed not to call file-touching functions.
func New(io stdlib.IO) *Evaluator {
	return &Evaluator{IO: io}
}

// Eval evaluates expr within scope.
func (e *Evaluator) Eval(scope Env, expr ast.Expression) (values.Value, error) {
	switch n := expr.(type) {
	case *ast.IntLiteral:
		return values.Int(n.Value), nil
	case *ast.FloatLiteral:
		return values.Float(n.Value), nil
	case *ast.BoolLiteral:
		return values.Bool(n.Value), nil
	case *ast.NoneLiteral:
		return values.Null(types.Any()), nil
	case *ast.StringLiteral:
		return e.evalString(scope, n)
	case *ast.Identifier:
		v, ok := scope.Resolve(n.Name)
		if !ok {
			return values.Value{}, fail("EvalError", n.Pos(), "undefined identifier %q", n.Name)
		}
		return v, nil
	case *ast.ArrayLiteral:
		return e.evalArray(scope, n)
	case *ast.MapLiteral:
		return e.evalMap(scope, n)
	case *ast.PairLiteral:
		l, err := e.Eval(scope, n.Left)
		if err != nil {
			return values.Value{}, err
		}
		r, err := e.Eval(scope, n.Right)
		if err != nil {
			return values.Value{}, err
		}
		return values.Pair(l, r), nil
	case *ast.ObjectLiteral:
		return e.evalObject(scope, n)
	case *ast.MemberAccess:
		return e.evalMember(scope, n)
	case *ast.IndexExpr:
		return e.evalIndex(scope, n)
	case *ast.UnaryExpr:
		return e.evalUnary(scope, n)
	case *ast.BinaryExpr:
		return e.evalBinary(scope, n)
	case *ast.IfThenElseExpr:
		return e.evalIfThenElse(scope, n)
	case *ast.FunctionCall:
		return e.evalCall(scope, n)
	}
	return values.Value{}, fail("EvalError", expr.Pos(), "cannot evaluate %T", expr)
}

func (e *Evaluator) evalString(scope Env, n *ast.StringLiteral) (values.Value, error) {
	var b []byte
	for _, p := range n.Parts {
		if p.Placeholder == nil {
			b = append(b, p.Literal...)
			continue
		}
		s, err := e.evalPlaceholder(scope, p.Placeholder)
		if err != nil {
			return values.Value{}, err
		}
		b = append(b, s...)
	}
	return values.Str(string(b)), nil
}

// evalPlaceholder implements the sep/true/false/default option clauses and
// the short-circuit rule (a null Array under `sep=` is an empty string,
// not an error; a null scalar under `default=` substitutes the default).
func (e *Evaluator) evalPlaceholder(scope Env, p *ast.Placeholder) (string, error) {
	v, err := e.Eval(scope, p.Expr)
	if err != nil {
		return "", err
	}

	var sep, def string
	var trueVal, falseVal *string
	for _, o := range p.Options {
		switch o.Kind {
		case "sep":
			sep = o.Value
		case "default":
			def = o.Value
		case "true":
			t := o.Value
			trueVal = &t
		case "false":
			f := o.Value
			falseVal = &f
		}
	}

	if v.IsNull() {
		return def, nil
	}
	if trueVal != nil || falseVal != nil {
		if v.Type().Kind != types.KindBoolean {
			return "", fail("EvalError", p.Pos(), "true=/false= placeholder requires a Boolean expression")
		}
		if v.Bool() {
			if trueVal != nil {
				return *trueVal, nil
			}
			return "", nil
		}
		if falseVal != nil {
			return *falseVal, nil
		}
		return "", nil
	}
	if v.Type().Kind == types.KindArray {
		parts := make([]string, 0, v.Len())
		for _, elem := range v.Elements() {
			s, err := values.CoerceString(elem)
			if err != nil {
				return "", fail("EvalError", p.Pos(), "%v", err)
			}
			parts = append(parts, s)
		}
		return joinStrings(parts, sep), nil
	}
	s, err := values.CoerceString(v)
	if err != nil {
		return "", fail("EvalError", p.Pos(), "%v", err)
	}
	return s, nil
}

func joinStrings(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

func (e *Evaluator) evalArray(scope Env, n *ast.ArrayLiteral) (values.Value, error) {
	elems := make([]values.Value, len(n.Elements))
	elemType := types.Any()
	for i, elExpr := range n.Elements {
		v, err := e.Eval(scope, elExpr)
		if err != nil {
			return values.Value{}, err
		}
		elems[i] = v
		if i == 0 {
			elemType = v.Type()
		} else if u, ok := types.Unify(elemType, v.Type()); ok {
			elemType = u
		}
	}
	return values.Array(elemType, elems), nil
}

func (e *Evaluator) evalMap(scope Env, n *ast.MapLiteral) (values.Value, error) {
	entries := make([]values.MapEntry, len(n.Entries))
	keyType, valType := types.Any(), types.Any()
	for i, entry := range n.Entries {
		k, err := e.Eval(scope, entry.Key)
		if err != nil {
			return values.Value{}, err
		}
		v, err := e.Eval(scope, entry.Value)
		if err != nil {
			return values.Value{}, err
		}
		entries[i] = values.MapEntry{Key: k, Value: v}
		if i == 0 {
			keyType, valType = k.Type(), v.Type()
		}
	}
	return values.Map(keyType, valType, entries), nil
}

func (e *Evaluator) evalObject(scope Env, n *ast.ObjectLiteral) (values.Value, error) {
	fields := make(map[string]values.Value, len(n.Entries))
	order := make([]string, 0, len(n.Entries))
	for _, entry := range n.Entries {
		ident, ok := entry.Key.(*ast.Identifier)
		var key string
		if ok {
			key = ident.Name
		} else {
			kv, err := e.Eval(scope, entry.Key)
			if err != nil {
				return values.Value{}, err
			}
			key, _ = values.CoerceString(kv)
		}
		v, err := e.Eval(scope, entry.Value)
		if err != nil {
			return values.Value{}, err
		}
		fields[key] = v
		order = append(order, key)
	}
	t := types.Object()
	if n.TypeName != "" {
		t = types.Type{Kind: types.KindStruct, StructName: n.TypeName}
	}
	return values.Struct(t, fields, order), nil
}

func (e *Evaluator) evalMember(scope Env, n *ast.MemberAccess) (values.Value, error) {
	obj, err := e.Eval(scope, n.Object)
	if err != nil {
		return values.Value{}, err
	}
	if obj.IsNull() {
		return values.Value{}, fail("NullValue", n.Pos(), "cannot access member %q of null", n.Field)
	}
	switch obj.Type().Kind {
	case types.KindPair:
		switch n.Field {
		case "left":
			return obj.Left(), nil
		case "right":
			return obj.Right(), nil
		}
	case types.KindStruct, types.KindObject:
		if v, ok := obj.Field(n.Field); ok {
			return v, nil
		}
	}
	return values.Value{}, fail("NoSuchMember", n.Pos(), "no member %q", n.Field)
}

func (e *Evaluator) evalIndex(scope Env, n *ast.IndexExpr) (values.Value, error) {
	obj, err := e.Eval(scope, n.Object)
	if err != nil {
		return values.Value{}, err
	}
	idx, err := e.Eval(scope, n.Subscript)
	if err != nil {
		return values.Value{}, err
	}
	if obj.IsNull() {
		return values.Value{}, fail("NullValue", n.Pos(), "cannot index null")
	}
	switch obj.Type().Kind {
	case types.KindArray:
		i := idx.Int()
		if i < 0 || int(i) >= len(obj.Elements()) {
			return values.Value{}, fail("OutOfBounds", n.Pos(), "index %d out of bounds (length %d)", i, obj.Len())
		}
		return obj.Elements()[i], nil
	case types.KindMap:
		for _, entry := range obj.Entries() {
			if values.Equal(entry.Key, idx) {
				return entry.Value, nil
			}
		}
		return values.Value{}, fail("OutOfBounds", n.Pos(), "map has no entry for key")
	}
	return values.Value{}, fail("EvalError", n.Pos(), "%s is not subscriptable", obj.Type())
}

func (e *Evaluator) evalUnary(scope Env, n *ast.UnaryExpr) (values.Value, error) {
	v, err := e.Eval(scope, n.Operand)
	if err != nil {
		return values.Value{}, err
	}
	switch n.Operator {
	case "!":
		return values.Bool(!v.Bool()), nil
	case "-":
		if v.Type().Kind == types.KindFloat {
			return values.Float(-v.Float()), nil
		}
		return values.Int(-v.Int()), nil
	}
	return values.Value{}, fail("EvalError", n.Pos(), "unknown unary operator %q", n.Operator)
}

func (e *Evaluator) evalBinary(scope Env, n *ast.BinaryExpr) (values.Value, error) {
	switch n.Operator {
	case "&&":
		l, err := e.Eval(scope, n.Left)
		if err != nil {
			return values.Value{}, err
		}
		if !l.Bool() {
			return values.Bool(false), nil
		}
		r, err := e.Eval(scope, n.Right)
		if err != nil {
			return values.Value{}, err
		}
		return values.Bool(r.Bool()), nil
	case "||":
		l, err := e.Eval(scope, n.Left)
		if err != nil {
			return values.Value{}, err
		}
		if l.Bool() {
			return values.Bool(true), nil
		}
		r, err := e.Eval(scope, n.Right)
		if err != nil {
			return values.Value{}, err
		}
		return values.Bool(r.Bool()), nil
	}

	l, err := e.Eval(scope, n.Left)
	if err != nil {
		return values.Value{}, err
	}
	r, err := e.Eval(scope, n.Right)
	if err != nil {
		return values.Value{}, err
	}

	switch n.Operator {
	case "==":
		return values.Bool(values.Equal(l, r)), nil
	case "!=":
		return values.Bool(!values.Equal(l, r)), nil
	case "<", "<=", ">", ">=":
		return compareOrdered(n.Operator, l, r)
	case "+":
		return add(l, r)
	case "-", "*", "/", "%":
		return arith(n.Operator, n.Pos(), l, r)
	}
	return values.Value{}, fail("EvalError", n.Pos(), "unknown binary operator %q", n.Operator)
}

func compareOrdered(op string, l, r values.Value) (values.Value, error) {
	var cmp int
	if l.Type().Kind == types.KindString {
		cmp = strcmp(l.String(), r.String())
	} else {
		lf, rf := l.AsFloat(), r.AsFloat()
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	}
	switch op {
	case "<":
		return values.Bool(cmp < 0), nil
	case "<=":
		return values.Bool(cmp <= 0), nil
	case ">":
		return values.Bool(cmp > 0), nil
	case ">=":
		return values.Bool(cmp >= 0), nil
	}
	return values.Value{}, fmt.Errorf("eval: unknown comparator %q", op)
}

func strcmp(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func add(l, r values.Value) (values.Value, error) {
	if l.Type().Kind == types.KindString || r.Type().Kind == types.KindString ||
		l.Type().Kind == types.KindFile || r.Type().Kind == types.KindFile {
		ls, err := values.CoerceString(l)
		if err != nil {
			return values.Value{}, fail("EvalError", ast.Position{}, "%v", err)
		}
		rs, err := values.CoerceString(r)
		if err != nil {
			return values.Value{}, fail("EvalError", ast.Position{}, "%v", err)
		}
		return values.Str(ls + rs), nil
	}
	return arith("+", ast.Position{}, l, r)
}

func arith(op string, pos ast.Position, l, r values.Value) (values.Value, error) {
	if l.Type().Kind == types.KindFloat || r.Type().Kind == types.KindFloat {
		lf, rf := l.AsFloat(), r.AsFloat()
		switch op {
		case "+":
			return values.Float(lf + rf), nil
		case "-":
			return values.Float(lf - rf), nil
		case "*":
			return values.Float(lf * rf), nil
		case "/":
			if rf == 0 {
				return values.Value{}, fail("EvalError", pos, "division by zero")
			}
			return values.Float(lf / rf), nil
		case "%":
			return values.Value{}, fail("EvalError", pos, "%% is not defined for Float")
		}
	}
	li, ri := l.Int(), r.Int()
	switch op {
	case "+":
		return values.Int(li + ri), nil
	case "-":
		return values.Int(li - ri), nil
	case "*":
		return values.Int(li * ri), nil
	case "/":
		if ri == 0 {
			return values.Value{}, fail("EvalError", pos, "division by zero")
		}
		return values.Int(li / ri), nil
	case "%":
		if ri == 0 {
			return values.Value{}, fail("EvalError", pos, "division by zero")
		}
		return values.Int(li % ri), nil
	}
	return values.Value{}, fail("EvalError", pos, "unknown arithmetic operator %q", op)
}

func (e *Evaluator) evalIfThenElse(scope Env, n *ast.IfThenElseExpr) (values.Value, error) {
	cond, err := e.Eval(scope, n.Condition)
	if err != nil {
		return values.Value{}, err
	}
	if cond.Bool() {
		return e.Eval(scope, n.Then)
	}
	return e.Eval(scope, n.Else)
}

func (e *Evaluator) evalCall(scope Env, n *ast.FunctionCall) (values.Value, error) {
	sig, ok := stdlib.Lookup(n.Name)
	if !ok {
		return values.Value{}, fail("NoSuchFunction", n.Pos(), "no such function %q", n.Name)
	}
	args := make([]values.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := e.Eval(scope, a)
		if err != nil {
			return values.Value{}, err
		}
		args[i] = v
	}
	v, err := sig.Call(e.IO, args)
	if err != nil {
		return values.Value{}, fail("EvalError", n.Pos(), "%s: %v", n.Name, err)
	}
	return v, nil
}
