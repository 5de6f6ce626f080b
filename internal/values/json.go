package values

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/wdlrun/wdlrun/internal/types"
)

// ToJSON renders v the standard WDL way: Array[T] as a JSON array,
// Map[String,V] as an object, Map[K,V] (K non-string) as an array of
// {"left","right"} pairs, Pair[L,R] as {"left","right"}, struct/object as
// an object.
func ToJSON(v Value) (any, error) {
	if v.null {
		return nil, nil
	}
	switch v.typ.Kind {
	case types.KindBoolean:
		return v.boolean, nil
	case types.KindInt:
		return v.integer, nil
	case types.KindFloat:
		return v.float, nil
	case types.KindString, types.KindFile, types.KindDirectory:
		return v.str, nil
	case types.KindArray:
		out := make([]any, len(v.array))
		for i, e := range v.array {
			j, err := ToJSON(e)
			if err != nil {
				return nil, err
			}
			out[i] = j
		}
		return out, nil
	case types.KindMap:
		if v.typ.Key.Kind == types.KindString {
			out := make(map[string]any, len(v.pairs))
			for _, e := range v.pairs {
				j, err := ToJSON(e.Value)
				if err != nil {
					return nil, err
				}
				out[e.Key.str] = j
			}
			return out, nil
		}
		out := make([]any, len(v.pairs))
		for i, e := range v.pairs {
			kj, err := ToJSON(e.Key)
			if err != nil {
				return nil, err
			}
			vj, err := ToJSON(e.Value)
			if err != nil {
				return nil, err
			}
			out[i] = map[string]any{"left": kj, "right": vj}
		}
		return out, nil
	case types.KindPair:
		lj, err := ToJSON(*v.left)
		if err != nil {
			return nil, err
		}
		rj, err := ToJSON(*v.right)
		if err != nil {
			return nil, err
		}
		return map[string]any{"left": lj, "right": rj}, nil
	case types.KindStruct, types.KindObject:
		out := make(map[string]any, len(v.fields))
		for k, f := range v.fields {
			j, err := ToJSON(f)
			if err != nil {
				return nil, err
			}
			out[k] = j
		}
		return out, nil
	}
	return nil, fmt.Errorf("values: cannot render %s to JSON", v.typ)
}

// FromJSON parses raw into a Value of type t, per the same shape mapping
// as ToJSON. A shape mismatch (e.g. an array where an object is declared,
// or an object missing a required struct field) is reported as an error;
// callers at the input/read_json boundary wrap this as InputError or
// EvalError depending on where the mismatched value originated.
func FromJSON(t types.Type, raw any) (Value, error) {
	if raw == nil {
		if !t.Optional {
			return Value{}, fmt.Errorf("values: null is not assignable to non-optional %s", t)
		}
		return Null(t), nil
	}
	switch t.Kind {
	case types.KindAny:
		return fromJSONAny(raw)
	case types.KindBoolean:
		b, ok := raw.(bool)
		if !ok {
			return Value{}, fmt.Errorf("values: expected Boolean, got %T", raw)
		}
		return Bool(b), nil
	case types.KindInt:
		n, ok := asNumber(raw)
		if !ok {
			return Value{}, fmt.Errorf("values: expected Int, got %T", raw)
		}
		return Int(int64(n)), nil
	case types.KindFloat:
		n, ok := asNumber(raw)
		if !ok {
			return Value{}, fmt.Errorf("values: expected Float, got %T", raw)
		}
		return Float(n), nil
	case types.KindString:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("values: expected String, got %T", raw)
		}
		return Str(s), nil
	case types.KindFile:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("values: expected File (string), got %T", raw)
		}
		return FilePath(s), nil
	case types.KindDirectory:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("values: expected Directory (string), got %T", raw)
		}
		return DirectoryPath(s), nil
	case types.KindArray:
		arr, ok := raw.([]any)
		if !ok {
			return Value{}, fmt.Errorf("values: expected Array, got %T", raw)
		}
		elems := make([]Value, len(arr))
		for i, e := range arr {
			ev, err := FromJSON(*t.Elem, e)
			if err != nil {
				return Value{}, fmt.Errorf("values: array element %d: %w", i, err)
			}
			elems[i] = ev
		}
		return Array(*t.Elem, elems), nil
	case types.KindMap:
		if t.Key.Kind == types.KindString {
			obj, ok := raw.(map[string]any)
			if !ok {
				return Value{}, fmt.Errorf("values: expected Map (object), got %T", raw)
			}
			keys := make([]string, 0, len(obj))
			for k := range obj {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			entries := make([]MapEntry, 0, len(obj))
			for _, k := range keys {
				vv, err := FromJSON(*t.Elem, obj[k])
				if err != nil {
					return Value{}, fmt.Errorf("values: map value %q: %w", k, err)
				}
				entries = append(entries, MapEntry{Key: Str(k), Value: vv})
			}
			return Map(*t.Key, *t.Elem, entries), nil
		}
		arr, ok := raw.([]any)
		if !ok {
			return Value{}, fmt.Errorf("values: expected Map (left/right array), got %T", raw)
		}
		entries := make([]MapEntry, len(arr))
		for i, e := range arr {
			pair, ok := e.(map[string]any)
			if !ok {
				return Value{}, fmt.Errorf("values: map entry %d is not a left/right object", i)
			}
			kv, err := FromJSON(*t.Key, pair["left"])
			if err != nil {
				return Value{}, err
			}
			vv, err := FromJSON(*t.Elem, pair["right"])
			if err != nil {
				return Value{}, err
			}
			entries[i] = MapEntry{Key: kv, Value: vv}
		}
		return Map(*t.Key, *t.Elem, entries), nil
	case types.KindPair:
		obj, ok := raw.(map[string]any)
		if !ok {
			return Value{}, fmt.Errorf("values: expected Pair (left/right object), got %T", raw)
		}
		lv, err := FromJSON(*t.Left, obj["left"])
		if err != nil {
			return Value{}, err
		}
		rv, err := FromJSON(*t.Right, obj["right"])
		if err != nil {
			return Value{}, err
		}
		return Pair(lv, rv), nil
	case types.KindStruct, types.KindObject:
		obj, ok := raw.(map[string]any)
		if !ok {
			return Value{}, fmt.Errorf("values: expected %s (object), got %T", t.Kind, raw)
		}
		fields := make(map[string]Value, len(obj))
		var order []string
		if t.Kind == types.KindStruct {
			for _, m := range t.Members {
				raw, present := obj[m.Name]
				if !present {
					if !m.Type.Optional {
						return Value{}, fmt.Errorf("values: struct %s missing required field %q", t.StructName, m.Name)
					}
					fields[m.Name] = Null(m.Type)
				} else {
					fv, err := FromJSON(m.Type, raw)
					if err != nil {
						return Value{}, fmt.Errorf("values: field %q: %w", m.Name, err)
					}
					fields[m.Name] = fv
				}
				order = append(order, m.Name)
			}
		} else {
			keys := make([]string, 0, len(obj))
			for k := range obj {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fv, err := fromJSONAny(obj[k])
				if err != nil {
					return Value{}, err
				}
				fields[k] = fv
				order = append(order, k)
			}
		}
		return Struct(t, fields, order), nil
	}
	return Value{}, fmt.Errorf("values: unsupported type %s", t)
}

func asNumber(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func fromJSONAny(raw any) (Value, error) {
	switch r := raw.(type) {
	case nil:
		return Null(types.Any()), nil
	case bool:
		return Bool(r), nil
	case float64:
		if r == float64(int64(r)) {
			return Int(int64(r)), nil
		}
		return Float(r), nil
	case string:
		return Str(r), nil
	case []any:
		elems := make([]Value, len(r))
		for i, e := range r {
			ev, err := fromJSONAny(e)
			if err != nil {
				return Value{}, err
			}
			elems[i] = ev
		}
		return Array(types.Any(), elems), nil
	case map[string]any:
		keys := make([]string, 0, len(r))
		for k := range r {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make(map[string]Value, len(r))
		for _, k := range keys {
			fv, err := fromJSONAny(r[k])
			if err != nil {
				return Value{}, err
			}
			fields[k] = fv
		}
		return Struct(types.Object(), fields, keys), nil
	}
	return Value{}, fmt.Errorf("values: unsupported JSON type %T", raw)
}
