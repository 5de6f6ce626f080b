// Package stdlib implements the WDL standard function library: size,
// range, length, defined, select_first, select_all, basename,
// prefix, sub, the read_*/write_* family, glob, and the
// array-shape helpers flatten/transpose/zip/cross. Each function carries
// both its static signature (consumed by internal/typecheck) and its
// runtime implementation (consumed by internal/eval), separating a
// compile-time shape from a runtime executor.
package stdlib

import (
	"fmt"

	"github.com/wdlrun/wdlrun/internal/types"
	"github.com/wdlrun/wdlrun/internal/values"
)

// Signature is one stdlib function's static and dynamic behavior.
type Signature struct {
	Name string
	// CheckArgs validates argument types and returns the call's result
	// type, or an error diagnosed as IncompatibleOperand.
	CheckArgs func(args []types.Type) (types.Type, error)
	// Call evaluates the function given already-evaluated argument values
	// and an IO capability used by read_*/write_*/glob/size.
	Call func(io IO, args []values.Value) (values.Value, error)
}

// IO is the capability surface stdlib functions need beyond pure value
// computation: reading/writing files relative to the current task's
// working directory, and globbing.
type IO interface {
	ReadFile(path string) (string, error)
	WriteFile(content string) (string, error) // returns the written File path
	Glob(pattern string) ([]string, error)
	FileSize(path string) (int64, error)
}

// sizeUnits maps size()'s optional unit argument to the divisor applied
// to a byte count; "B" (or an omitted argument) is the identity.
var sizeUnits = map[string]float64{
	"B":   1,
	"KB":  1e3,
	"MB":  1e6,
	"GB":  1e9,
	"TB":  1e12,
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
	"TiB": 1 << 40,
}

var registry = map[string]Signature{}

func register(s Signature) { registry[s.Name] = s }

// Lookup returns the named function's signature.
func Lookup(name string) (Signature, bool) {
	s, ok := registry[name]
	return s, ok
}

func fixed(n int, name string) func([]types.Type) error {
	return func(args []types.Type) error {
		if len(args) != n {
			return fmt.Errorf("%s expects %d argument(s), got %d", name, n, len(args))
		}
		return nil
	}
}

func init() {
	register(Signature{
		Name: "length",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(1, "length")(args); err != nil {
				return types.Type{}, err
			}
			if args[0].Kind != types.KindArray && args[0].Kind != types.KindMap && args[0].Kind != types.KindAny {
				return types.Type{}, fmt.Errorf("length requires Array or Map, got %s", args[0])
			}
			return types.Int(), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			return values.Int(int64(args[0].Len())), nil
		},
	})

	register(Signature{
		Name: "size",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if len(args) < 1 || len(args) > 2 {
				return types.Type{}, fmt.Errorf("size expects 1 or 2 arguments, got %d", len(args))
			}
			return types.Float(), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			unit := "B"
			if len(args) == 2 {
				unit = args[1].String()
			}
			divisor, ok := sizeUnits[unit]
			if !ok {
				return values.Value{}, fmt.Errorf("size: unknown unit %q", unit)
			}
			var total float64
			var fnErr error
			values.Files(args[0], func(v values.Value) {
				if fnErr != nil {
					return
				}
				n, err := io.FileSize(v.String())
				if err != nil {
					fnErr = err
					return
				}
				total += float64(n)
			})
			if fnErr != nil {
				return values.Value{}, fnErr
			}
			return values.Float(total / divisor), nil
		},
	})

	register(Signature{
		Name: "range",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(1, "range")(args); err != nil {
				return types.Type{}, err
			}
			return types.Array(types.Int(), false), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			n := args[0].Int()
			elems := make([]values.Value, 0, n)
			for i := int64(0); i < n; i++ {
				elems = append(elems, values.Int(i))
			}
			return values.Array(types.Int(), elems), nil
		},
	})

	register(Signature{
		Name: "defined",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(1, "defined")(args); err != nil {
				return types.Type{}, err
			}
			return types.Boolean(), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			return values.Bool(!args[0].IsNull()), nil
		},
	})

	register(Signature{
		Name: "select_first",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(1, "select_first")(args); err != nil {
				return types.Type{}, err
			}
			if args[0].Kind != types.KindArray {
				return types.Type{}, fmt.Errorf("select_first requires Array[T?], got %s", args[0])
			}
			return args[0].Elem.WithOptional(false), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			for _, e := range args[0].Elements() {
				if !e.IsNull() {
					return e, nil
				}
			}
			return values.Value{}, fmt.Errorf("select_first: every element is null")
		},
	})

	register(Signature{
		Name: "select_all",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(1, "select_all")(args); err != nil {
				return types.Type{}, err
			}
			if args[0].Kind != types.KindArray {
				return types.Type{}, fmt.Errorf("select_all requires Array[T?], got %s", args[0])
			}
			return types.Array(args[0].Elem.WithOptional(false), false), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			elem := args[0].Type().Elem.WithOptional(false)
			var out []values.Value
			for _, e := range args[0].Elements() {
				if !e.IsNull() {
					out = append(out, e)
				}
			}
			return values.Array(elem, out), nil
		},
	})

	register(Signature{
		Name: "basename",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if len(args) < 1 || len(args) > 2 {
				return types.Type{}, fmt.Errorf("basename expects 1 or 2 arguments, got %d", len(args))
			}
			return types.String(), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			p := args[0].String()
			for i := len(p) - 1; i >= 0; i-- {
				if p[i] == '/' {
					p = p[i+1:]
					break
				}
			}
			if len(args) == 2 {
				suffix := args[1].String()
				if len(p) > len(suffix) && p[len(p)-len(suffix):] == suffix {
					p = p[:len(p)-len(suffix)]
				}
			}
			return values.Str(p), nil
		},
	})

	register(Signature{
		Name: "sub",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(3, "sub")(args); err != nil {
				return types.Type{}, err
			}
			return types.String(), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			return values.Str(regexpReplace(args[0].String(), args[1].String(), args[2].String())), nil
		},
	})

	register(Signature{
		Name: "prefix",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(2, "prefix")(args); err != nil {
				return types.Type{}, err
			}
			return types.Array(types.String(), false), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			p := args[0].String()
			elems := args[1].Elements()
			out := make([]values.Value, len(elems))
			for i, e := range elems {
				s, _ := values.CoerceString(e)
				out[i] = values.Str(p + s)
			}
			return values.Array(types.String(), out), nil
		},
	})

	register(Signature{
		Name: "flatten",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(1, "flatten")(args); err != nil {
				return types.Type{}, err
			}
			if args[0].Kind != types.KindArray || args[0].Elem.Kind != types.KindArray {
				return types.Type{}, fmt.Errorf("flatten requires Array[Array[T]], got %s", args[0])
			}
			return types.Array(*args[0].Elem.Elem, false), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			elem := *args[0].Type().Elem.Elem
			var out []values.Value
			for _, inner := range args[0].Elements() {
				out = append(out, inner.Elements()...)
			}
			return values.Array(elem, out), nil
		},
	})

	register(Signature{
		Name: "zip",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(2, "zip")(args); err != nil {
				return types.Type{}, err
			}
			return types.Array(types.Pair(*args[0].Elem, *args[1].Elem), false), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			a, b := args[0].Elements(), args[1].Elements()
			n := len(a)
			if len(b) < n {
				n = len(b)
			}
			out := make([]values.Value, n)
			for i := 0; i < n; i++ {
				out[i] = values.Pair(a[i], b[i])
			}
			return values.Array(types.Pair(args[0].Type().Elem.Base(), args[1].Type().Elem.Base()), out), nil
		},
	})

	register(Signature{
		Name: "cross",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(2, "cross")(args); err != nil {
				return types.Type{}, err
			}
			return types.Array(types.Pair(*args[0].Elem, *args[1].Elem), false), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			a, b := args[0].Elements(), args[1].Elements()
			out := make([]values.Value, 0, len(a)*len(b))
			for _, x := range a {
				for _, y := range b {
					out = append(out, values.Pair(x, y))
				}
			}
			return values.Array(types.Pair(args[0].Type().Elem.Base(), args[1].Type().Elem.Base()), out), nil
		},
	})

	register(Signature{
		Name: "read_string",
		CheckArgs: readArgs("read_string", types.String()),
		Call: func(io IO, args []values.Value) (values.Value, error) {
			s, err := io.ReadFile(args[0].String())
			if err != nil {
				return values.Value{}, err
			}
			return values.Str(trimTrailingNewline(s)), nil
		},
	})

	register(Signature{
		Name:      "read_int",
		CheckArgs: readArgs("read_int", types.Int()),
		Call: func(io IO, args []values.Value) (values.Value, error) {
			s, err := io.ReadFile(args[0].String())
			if err != nil {
				return values.Value{}, err
			}
			var n int64
			if _, err := fmt.Sscanf(trimTrailingNewline(s), "%d", &n); err != nil {
				return values.Value{}, fmt.Errorf("read_int: %w", err)
			}
			return values.Int(n), nil
		},
	})

	register(Signature{
		Name:      "read_float",
		CheckArgs: readArgs("read_float", types.Float()),
		Call: func(io IO, args []values.Value) (values.Value, error) {
			s, err := io.ReadFile(args[0].String())
			if err != nil {
				return values.Value{}, err
			}
			var f float64
			if _, err := fmt.Sscanf(trimTrailingNewline(s), "%g", &f); err != nil {
				return values.Value{}, fmt.Errorf("read_float: %w", err)
			}
			return values.Float(f), nil
		},
	})

	register(Signature{
		Name:      "read_boolean",
		CheckArgs: readArgs("read_boolean", types.Boolean()),
		Call: func(io IO, args []values.Value) (values.Value, error) {
			s, err := io.ReadFile(args[0].String())
			if err != nil {
				return values.Value{}, err
			}
			return values.Bool(trimTrailingNewline(s) == "true"), nil
		},
	})

	register(Signature{
		Name: "read_lines",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(1, "read_lines")(args); err != nil {
				return types.Type{}, err
			}
			return types.Array(types.String(), false), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			s, err := io.ReadFile(args[0].String())
			if err != nil {
				return values.Value{}, err
			}
			lines := splitLines(s)
			out := make([]values.Value, len(lines))
			for i, l := range lines {
				out[i] = values.Str(l)
			}
			return values.Array(types.String(), out), nil
		},
	})

	register(Signature{
		Name: "write_lines",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(1, "write_lines")(args); err != nil {
				return types.Type{}, err
			}
			return types.File(), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			var content string
			for _, e := range args[0].Elements() {
				s, _ := values.CoerceString(e)
				content += s + "\n"
			}
			path, err := io.WriteFile(content)
			if err != nil {
				return values.Value{}, err
			}
			return values.FilePath(path), nil
		},
	})

	register(Signature{
		Name: "glob",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(1, "glob")(args); err != nil {
				return types.Type{}, err
			}
			return types.Array(types.File(), false), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			matches, err := io.Glob(args[0].String())
			if err != nil {
				return values.Value{}, err
			}
			out := make([]values.Value, len(matches))
			for i, m := range matches {
				out[i] = values.FilePath(m)
			}
			return values.Array(types.File(), out), nil
		},
	})
}

func readArgs(name string, result types.Type) func([]types.Type) (types.Type, error) {
	return func(args []types.Type) (types.Type, error) {
		if err := fixed(1, name)(args); err != nil {
			return types.Type{}, err
		}
		return result, nil
	}
}

func trimTrailingNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func splitLines(s string) []string {
	s = trimTrailingNewline(s)
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			line := s[start:i]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			lines = append(lines, line)
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

// regexpReplace replaces every match of pattern in input using Go's
// RE2-based regexp package (patterns compiled once by compileCached); an
// invalid pattern leaves input unchanged.
func regexpReplace(input, pattern, replacement string) string {
	re := compileCached(pattern)
	if re == nil {
		return input
	}
	return re.ReplaceAllString(input, replacement)
}
