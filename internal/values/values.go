// Package values implements the WDL runtime value model: tagged variants
// paralleling the type lattice in internal/types, a JSON bridge matching
// the standard Cromwell/miniwdl Inputs/Outputs JSON shapes, and
// File/Directory reference tracking used by task staging.
package values

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/wdlrun/wdlrun/internal/types"
)

// Value is a typed WDL runtime value. The zero Value is a null of type Any.
type Value struct {
	typ types.Type
	// Exactly one of the following is meaningful, selected by typ.Kind.
	null    bool
	boolean bool
	integer int64
	float   float64
	str     string // String, File, Directory payload
	array   []Value
	pairs   []MapEntry // Map, in insertion order
	left    *Value     // Pair
	right   *Value     // Pair
	fields  map[string]Value // Struct/Object
	order   []string         // Struct/Object field order, for stable JSON/serialization
}

// MapEntry is one key/value pair of a Map value, order preserved.
type MapEntry struct {
	Key   Value
	Value Value
}

// Type returns v's WDL type.
func (v Value) Type() types.Type { return v.typ }

// IsNull reports whether v is the null value of its type.
func (v Value) IsNull() bool { return v.null }

// Null constructs a null value of the given (optional) type.
func Null(t types.Type) Value {
	t.Optional = true
	return Value{typ: t, null: true}
}

func Bool(b bool) Value    { return Value{typ: types.Boolean(), boolean: b} }
func Int(i int64) Value    { return Value{typ: types.Int(), integer: i} }
func Float(f float64) Value { return Value{typ: types.Float(), float: f} }
func Str(s string) Value   { return Value{typ: types.String(), str: s} }
func FilePath(p string) Value      { return Value{typ: types.File(), str: p} }
func DirectoryPath(p string) Value { return Value{typ: types.Directory(), str: p} }

func (v Value) Bool() bool     { return v.boolean }
func (v Value) Int() int64     { return v.integer }
func (v Value) Float() float64 { return v.float }
func (v Value) String() string { return v.str }

// AsFloat widens an Int or Float value to float64; panics on other kinds,
// callers must check Type().IsNumeric() first.
func (v Value) AsFloat() float64 {
	if v.typ.Kind == types.KindInt {
		return float64(v.integer)
	}
	return v.float
}

// Array constructs an Array[elem] value from elements already of type elem.
func Array(elem types.Type, elements []Value) Value {
	nonEmpty := false
	return Value{typ: types.Array(elem, nonEmpty), array: elements}
}

// Elements returns the elements of an Array value.
func (v Value) Elements() []Value { return v.array }

// Len returns the element/entry count of Array or Map values.
func (v Value) Len() int {
	switch v.typ.Kind {
	case types.KindArray:
		return len(v.array)
	case types.KindMap:
		return len(v.pairs)
	}
	return 0
}

// Map constructs a Map[key,val] value from entries in insertion order.
func Map(key, val types.Type, entries []MapEntry) Value {
	return Value{typ: types.Map(key, val), pairs: entries}
}

// Entries returns a Map value's entries in insertion order.
func (v Value) Entries() []MapEntry { return v.pairs }

// Pair constructs a Pair[left,right] value.
func Pair(left, right Value) Value {
	l, r := left, right
	return Value{typ: types.Pair(left.typ, right.typ), left: &l, right: &r}
}

// Left and Right return a Pair value's components.
func (v Value) Left() Value  { return *v.left }
func (v Value) Right() Value { return *v.right }

// Struct constructs a struct-instance or legacy object value.
func Struct(t types.Type, fields map[string]Value, order []string) Value {
	return Value{typ: t, fields: fields, order: append([]string(nil), order...)}
}

// Field looks up a struct/object member by name.
func (v Value) Field(name string) (Value, bool) {
	f, ok := v.fields[name]
	return f, ok
}

// FieldOrder returns struct/object member names in declaration/insertion order.
func (v Value) FieldOrder() []string { return v.order }

// Equal performs structural equality: component-wise for compound types,
// and a null equals only a null of a compatible base type.
func Equal(a, b Value) bool {
	if a.null || b.null {
		return a.null && b.null && a.typ.Base().Equals(b.typ.Base())
	}
	if a.typ.Kind != b.typ.Kind {
		// Int/Float cross-comparison is permitted since both coerce.
		if a.typ.IsNumeric() && b.typ.IsNumeric() {
			return a.AsFloat() == b.AsFloat()
		}
		return false
	}
	switch a.typ.Kind {
	case types.KindBoolean:
		return a.boolean == b.boolean
	case types.KindInt:
		return a.integer == b.integer
	case types.KindFloat:
		return a.float == b.float
	case types.KindString, types.KindFile, types.KindDirectory:
		return a.str == b.str
	case types.KindArray:
		if len(a.array) != len(b.array) {
			return false
		}
		for i := range a.array {
			if !Equal(a.array[i], b.array[i]) {
				return false
			}
		}
		return true
	case types.KindMap:
		if len(a.pairs) != len(b.pairs) {
			return false
		}
		for i := range a.pairs {
			if !Equal(a.pairs[i].Key, b.pairs[i].Key) || !Equal(a.pairs[i].Value, b.pairs[i].Value) {
				return false
			}
		}
		return true
	case types.KindPair:
		return Equal(*a.left, *b.left) && Equal(*a.right, *b.right)
	case types.KindStruct, types.KindObject:
		if len(a.fields) != len(b.fields) {
			return false
		}
		for k, av := range a.fields {
			bv, ok := b.fields[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// CoerceString renders v using WDL's fixed string-coercion rules: floats
// use six fraction digits (printf "%f"), booleans render lowercase, ints
// render base-10.
func CoerceString(v Value) (string, error) {
	switch v.typ.Kind {
	case types.KindString, types.KindFile, types.KindDirectory:
		return v.str, nil
	case types.KindBoolean:
		if v.boolean {
			return "true", nil
		}
		return "false", nil
	case types.KindInt:
		return strconv.FormatInt(v.integer, 10), nil
	case types.KindFloat:
		return fmt.Sprintf("%f", v.float), nil
	}
	return "", fmt.Errorf("values: %s is not coercible to String", v.typ)
}

// Files walks v and calls fn for every File/Directory value reachable,
// depth-first. Used by task staging to collect the full set of file
// references in an inputs environment.
func Files(v Value, fn func(Value)) {
	switch v.typ.Kind {
	case types.KindFile, types.KindDirectory:
		if !v.null {
			fn(v)
		}
	case types.KindArray:
		for _, e := range v.array {
			Files(e, fn)
		}
	case types.KindMap:
		for _, e := range v.pairs {
			Files(e.Key, fn)
			Files(e.Value, fn)
		}
	case types.KindPair:
		Files(*v.left, fn)
		Files(*v.right, fn)
	case types.KindStruct, types.KindObject:
		keys := make([]string, 0, len(v.fields))
		for k := range v.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			Files(v.fields[k], fn)
		}
	}
}

// WithFiles returns a copy of v with every File/Directory string rewritten
// by rewrite; used to substitute host paths with staged container paths.
func WithFiles(v Value, rewrite func(Value) Value) Value {
	switch v.typ.Kind {
	case types.KindFile, types.KindDirectory:
		if v.null {
			return v
		}
		return rewrite(v)
	case types.KindArray:
		out := make([]Value, len(v.array))
		for i, e := range v.array {
			out[i] = WithFiles(e, rewrite)
		}
		nv := v
		nv.array = out
		return nv
	case types.KindMap:
		out := make([]MapEntry, len(v.pairs))
		for i, e := range v.pairs {
			out[i] = MapEntry{Key: WithFiles(e.Key, rewrite), Value: WithFiles(e.Value, rewrite)}
		}
		nv := v
		nv.pairs = out
		return nv
	case types.KindPair:
		l := WithFiles(*v.left, rewrite)
		r := WithFiles(*v.right, rewrite)
		nv := v
		nv.left, nv.right = &l, &r
		return nv
	case types.KindStruct, types.KindObject:
		out := make(map[string]Value, len(v.fields))
		for k, f := range v.fields {
			out[k] = WithFiles(f, rewrite)
		}
		nv := v
		nv.fields = out
		return nv
	}
	return v
}

// GoString renders v for diagnostics (not the coercion rule — see CoerceString).
func (v Value) GoString() string {
	if v.null {
		return "null"
	}
	switch v.typ.Kind {
	case types.KindArray:
		parts := make([]string, len(v.array))
		for i, e := range v.array {
			parts[i] = e.GoString()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		s, err := CoerceString(v)
		if err != nil {
			return v.typ.String()
		}
		return s
	}
}
