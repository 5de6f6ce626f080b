// Package types represents the WDL type lattice: leaf types, container
// types, struct instances, and the optional/nonempty quantifiers that
// decorate them. It computes coercibility and unification, the two
// operations the resolver and type checker build on.
package types

import (
	"fmt"
	"strings"

	"github.com/wdlrun/wdlrun/internal/ast"
)

// Kind discriminates the type lattice's node shapes.
type Kind int

const (
	KindAny Kind = iota
	KindBoolean
	KindInt
	KindFloat
	KindString
	KindFile
	KindDirectory
	KindArray
	KindMap
	KindPair
	KindStruct
	KindObject // legacy pre-1.0 sentinel "object" type
)

var kindNames = map[Kind]string{
	KindAny:       "Any",
	KindBoolean:   "Boolean",
	KindInt:       "Int",
	KindFloat:     "Float",
	KindString:    "String",
	KindFile:      "File",
	KindDirectory: "Directory",
	KindArray:     "Array",
	KindMap:       "Map",
	KindPair:      "Pair",
	KindStruct:    "Struct",
	KindObject:    "Object",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Type is an immutable node in the WDL type lattice. Zero value is Any.
type Type struct {
	Kind     Kind
	Optional bool
	NonEmpty bool // Array only

	// Array element type / Map value type share Elem; Map key type is Key.
	Elem *Type
	Key  *Type // Map only

	// Pair component types.
	Left  *Type
	Right *Type

	// Struct name and member types, in declaration order.
	StructName string
	Members    []StructMember
}

// StructMember is one field of a struct type.
type StructMember struct {
	Name string
	Type Type
}

// Leaf type constructors.
func Any() Type       { return Type{Kind: KindAny} }
func Boolean() Type   { return Type{Kind: KindBoolean} }
func Int() Type       { return Type{Kind: KindInt} }
func Float() Type     { return Type{Kind: KindFloat} }
func String() Type    { return Type{Kind: KindString} }
func File() Type      { return Type{Kind: KindFile} }
func Directory() Type { return Type{Kind: KindDirectory} }
func Object() Type    { return Type{Kind: KindObject} }

// Array builds Array[elem], optionally nonempty.
func Array(elem Type, nonEmpty bool) Type {
	e := elem
	return Type{Kind: KindArray, Elem: &e, NonEmpty: nonEmpty}
}

// Map builds Map[key,value].
func Map(key, value Type) Type {
	k, v := key, value
	return Type{Kind: KindMap, Key: &k, Elem: &v}
}

// Pair builds Pair[left,right].
func Pair(left, right Type) Type {
	l, r := left, right
	return Type{Kind: KindPair, Left: &l, Right: &r}
}

// Struct builds a named struct instance type.
func Struct(name string, members []StructMember) Type {
	return Type{Kind: KindStruct, StructName: name, Members: members}
}

// WithOptional returns a copy of t with Optional set as given.
func (t Type) WithOptional(opt bool) Type {
	t.Optional = opt
	return t
}

// WithNonEmpty returns a copy of t (must be Array) with NonEmpty set.
func (t Type) WithNonEmpty(ne bool) Type {
	t.NonEmpty = ne
	return t
}

// IsNumeric reports whether t is Int or Float.
func (t Type) IsNumeric() bool { return t.Kind == KindInt || t.Kind == KindFloat }

// IsCoercibleToString reports whether t has a defined String() coercion.
func (t Type) IsCoercibleToString() bool {
	switch t.Kind {
	case KindBoolean, KindInt, KindFloat, KindString, KindFile, KindDirectory:
		return true
	default:
		return false
	}
}

// Base returns t with Optional and NonEmpty both cleared, for equality
// checks that ignore quantifiers.
func (t Type) Base() Type {
	b := t
	b.Optional = false
	b.NonEmpty = false
	return b
}

// Member looks up a struct member by name.
func (t Type) Member(name string) (Type, bool) {
	if t.Kind != KindStruct {
		return Type{}, false
	}
	for _, m := range t.Members {
		if m.Name == name {
			return m.Type, true
		}
	}
	return Type{}, false
}

// String renders t in WDL surface syntax, e.g. "Array[File]+?".
func (t Type) String() string {
	var b strings.Builder
	switch t.Kind {
	case KindArray:
		b.WriteString("Array[")
		b.WriteString(t.Elem.String())
		b.WriteString("]")
		if t.NonEmpty {
			b.WriteString("+")
		}
	case KindMap:
		b.WriteString("Map[")
		b.WriteString(t.Key.String())
		b.WriteString(",")
		b.WriteString(t.Elem.String())
		b.WriteString("]")
	case KindPair:
		b.WriteString("Pair[")
		b.WriteString(t.Left.String())
		b.WriteString(",")
		b.WriteString(t.Right.String())
		b.WriteString("]")
	case KindStruct:
		b.WriteString(t.StructName)
	default:
		b.WriteString(t.Kind.String())
	}
	if t.Optional {
		b.WriteString("?")
	}
	return b.String()
}

// Equals reports structural type equality, quantifiers included.
func (t Type) Equals(u Type) bool {
	if t.Kind != u.Kind || t.Optional != u.Optional {
		return false
	}
	switch t.Kind {
	case KindArray:
		return t.NonEmpty == u.NonEmpty && t.Elem.Equals(*u.Elem)
	case KindMap:
		return t.Key.Equals(*u.Key) && t.Elem.Equals(*u.Elem)
	case KindPair:
		return t.Left.Equals(*u.Left) && t.Right.Equals(*u.Right)
	case KindStruct:
		if t.StructName != u.StructName || len(t.Members) != len(u.Members) {
			return false
		}
		for i := range t.Members {
			if t.Members[i].Name != u.Members[i].Name || !t.Members[i].Type.Equals(u.Members[i].Type) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// CoercibleOptions relaxes quantifier strictness for legacy documents.
type CoercibleOptions struct {
	// CheckQuant, when false, ignores optional/nonempty mismatches.
	CheckQuant bool
}

// StrictOptions is the default: quantifiers are enforced.
var StrictOptions = CoercibleOptions{CheckQuant: true}

// CoercibleTo reports whether a value of type t may be coerced to type u,
// under the given quantifier strictness: Int->Float, T->String for
// coercible leaves, File/Directory <-> String, container types
// component-wise, T->T?, Array[T]+ -> Array[T].
func (t Type) CoercibleTo(u Type, opts CoercibleOptions) bool {
	if u.Kind == KindAny {
		return true
	}
	if !opts.CheckQuant {
		tb, ub := t.Base(), u.Base()
		return tb.coercibleBase(ub, opts)
	}
	if t.Optional && !u.Optional {
		return false
	}
	if !t.NonEmpty && u.NonEmpty && t.Kind == KindArray && u.Kind == KindArray {
		return false
	}
	return t.coercibleBase(u, opts)
}

func (t Type) coercibleBase(u Type, opts CoercibleOptions) bool {
	if t.Kind == KindAny {
		return true
	}
	if t.Kind == u.Kind {
		switch t.Kind {
		case KindArray:
			return t.Elem.CoercibleTo(*u.Elem, opts)
		case KindMap:
			return t.Key.CoercibleTo(*u.Key, opts) && t.Elem.CoercibleTo(*u.Elem, opts)
		case KindPair:
			return t.Left.CoercibleTo(*u.Left, opts) && t.Right.CoercibleTo(*u.Right, opts)
		case KindStruct:
			return t.Equals(u.Base())
		default:
			return true
		}
	}
	switch {
	case t.Kind == KindInt && u.Kind == KindFloat:
		return true
	case t.Kind == KindFile && u.Kind == KindString:
		return true
	case t.Kind == KindDirectory && u.Kind == KindString:
		return true
	case t.Kind == KindString && (u.Kind == KindFile || u.Kind == KindDirectory):
		return true
	case u.Kind == KindString && t.IsCoercibleToString():
		return true
	case t.Kind == KindObject && u.Kind == KindStruct:
		return true
	case t.Kind == KindStruct && u.Kind == KindObject:
		return true
	}
	return false
}

// Unify computes the least common supertype of t and u for array/map
// literal element inference, or reports ok=false when none exists.
// Any unifies with anything; Boolean, Int and Float do not unify with
// String; otherwise one side must coerce to the other, and the result is
// the side the other coerces to.
func Unify(t, u Type) (Type, bool) {
	if t.Kind == KindAny {
		return u, true
	}
	if u.Kind == KindAny {
		return t, true
	}
	if (t.Kind == KindString) != (u.Kind == KindString) {
		other := t
		if t.Kind == KindString {
			other = u
		}
		if other.Kind == KindBoolean || other.IsNumeric() {
			return Type{}, false
		}
	}
	if t.CoercibleTo(u, CoercibleOptions{CheckQuant: false}) {
		return looser(u, t), true
	}
	if u.CoercibleTo(t, CoercibleOptions{CheckQuant: false}) {
		return looser(t, u), true
	}
	return Type{}, false
}

// looser returns wide with quantifiers relaxed to accommodate narrow: if
// either side is optional, the result is optional.
func looser(wide, narrow Type) Type {
	out := wide
	out.Optional = wide.Optional || narrow.Optional
	return out
}

// FromExpr resolves unevaluated type syntax (ast.TypeExpr) into a Type,
// looking up struct names in known. Shared by internal/resolver and
// internal/typecheck so the two never disagree on what a type annotation
// means.
func FromExpr(t *ast.TypeExpr, known map[string]Type) Type {
	var base Type
	switch t.Name {
	case "Boolean":
		base = Boolean()
	case "Int":
		base = Int()
	case "Float":
		base = Float()
	case "String":
		base = String()
	case "File":
		base = File()
	case "Directory":
		base = Directory()
	case "Any":
		base = Any()
	case "Object":
		base = Object()
	case "Array":
		elem := Any()
		if len(t.Params) > 0 {
			elem = FromExpr(t.Params[0], known)
		}
		base = Array(elem, t.NonEmpty)
	case "Map":
		key, val := Any(), Any()
		if len(t.Params) > 0 {
			key = FromExpr(t.Params[0], known)
		}
		if len(t.Params) > 1 {
			val = FromExpr(t.Params[1], known)
		}
		base = Map(key, val)
	case "Pair":
		left, right := Any(), Any()
		if len(t.Params) > 0 {
			left = FromExpr(t.Params[0], known)
		}
		if len(t.Params) > 1 {
			right = FromExpr(t.Params[1], known)
		}
		base = Pair(left, right)
	default:
		if st, ok := known[t.Name]; ok {
			base = st
		} else {
			base = Type{Kind: KindStruct, StructName: t.Name}
		}
	}
	if t.Optional {
		base = base.WithOptional(true)
	}
	return base
}
