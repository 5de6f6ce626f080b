package stdlib

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wdlrun/wdlrun/internal/types"
	"github.com/wdlrun/wdlrun/internal/values"
)

func init() {
	register(Signature{
		Name: "read_tsv",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(1, "read_tsv")(args); err != nil {
				return types.Type{}, err
			}
			return types.Array(types.Array(types.String(), false), false), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			s, err := io.ReadFile(args[0].String())
			if err != nil {
				return values.Value{}, err
			}
			rowType := types.Array(types.String(), false)
			var rows []values.Value
			for _, line := range splitLines(s) {
				cells := strings.Split(line, "\t")
				row := make([]values.Value, len(cells))
				for i, c := range cells {
					row[i] = values.Str(c)
				}
				rows = append(rows, values.Array(types.String(), row))
			}
			return values.Array(rowType, rows), nil
		},
	})

	register(Signature{
		Name: "write_tsv",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(1, "write_tsv")(args); err != nil {
				return types.Type{}, err
			}
			return types.File(), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			var b strings.Builder
			for _, row := range args[0].Elements() {
				cells := row.Elements()
				for i, c := range cells {
					if i > 0 {
						b.WriteByte('\t')
					}
					s, err := values.CoerceString(c)
					if err != nil {
						return values.Value{}, fmt.Errorf("write_tsv: %w", err)
					}
					b.WriteString(s)
				}
				b.WriteByte('\n')
			}
			path, err := io.WriteFile(b.String())
			if err != nil {
				return values.Value{}, err
			}
			return values.FilePath(path), nil
		},
	})

	register(Signature{
		Name: "read_map",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(1, "read_map")(args); err != nil {
				return types.Type{}, err
			}
			return types.Map(types.String(), types.String()), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			s, err := io.ReadFile(args[0].String())
			if err != nil {
				return values.Value{}, err
			}
			var entries []values.MapEntry
			seen := map[string]bool{}
			for _, line := range splitLines(s) {
				cols := strings.Split(line, "\t")
				if len(cols) != 2 {
					return values.Value{}, fmt.Errorf("read_map: line %q is not key\\tvalue", line)
				}
				key, val := cols[0], cols[1]
				if seen[key] {
					return values.Value{}, fmt.Errorf("read_map: duplicate key %q", key)
				}
				seen[key] = true
				entries = append(entries, values.MapEntry{Key: values.Str(key), Value: values.Str(val)})
			}
			return values.Map(types.String(), types.String(), entries), nil
		},
	})

	register(Signature{
		Name: "write_map",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(1, "write_map")(args); err != nil {
				return types.Type{}, err
			}
			return types.File(), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			var b strings.Builder
			for _, e := range args[0].Entries() {
				k, err := values.CoerceString(e.Key)
				if err != nil {
					return values.Value{}, fmt.Errorf("write_map: %w", err)
				}
				v, err := values.CoerceString(e.Value)
				if err != nil {
					return values.Value{}, fmt.Errorf("write_map: %w", err)
				}
				b.WriteString(k)
				b.WriteByte('\t')
				b.WriteString(v)
				b.WriteByte('\n')
			}
			path, err := io.WriteFile(b.String())
			if err != nil {
				return values.Value{}, err
			}
			return values.FilePath(path), nil
		},
	})

	register(Signature{
		Name: "read_json",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(1, "read_json")(args); err != nil {
				return types.Type{}, err
			}
			// read_json's result type depends on the file's content, which
			// typecheck cannot know statically; callers coerce the Any
			// result at the point it's assigned to a typed declaration.
			return types.Any(), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			s, err := io.ReadFile(args[0].String())
			if err != nil {
				return values.Value{}, err
			}
			var generic any
			dec := json.NewDecoder(strings.NewReader(s))
			dec.UseNumber()
			if err := dec.Decode(&generic); err != nil {
				return values.Value{}, fmt.Errorf("read_json: %w", err)
			}
			return values.FromJSON(types.Any(), generic)
		},
	})

	register(Signature{
		Name: "write_json",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(1, "write_json")(args); err != nil {
				return types.Type{}, err
			}
			return types.File(), nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			generic, err := values.ToJSON(args[0])
			if err != nil {
				return values.Value{}, fmt.Errorf("write_json: %w", err)
			}
			raw, err := json.Marshal(generic)
			if err != nil {
				return values.Value{}, fmt.Errorf("write_json: %w", err)
			}
			path, err := io.WriteFile(string(raw))
			if err != nil {
				return values.Value{}, err
			}
			return values.FilePath(path), nil
		},
	})

	register(Signature{
		Name: "transpose",
		CheckArgs: func(args []types.Type) (types.Type, error) {
			if err := fixed(1, "transpose")(args); err != nil {
				return types.Type{}, err
			}
			if args[0].Kind != types.KindArray || args[0].Elem.Kind != types.KindArray {
				return types.Type{}, fmt.Errorf("transpose expects Array[Array[X]], got %s", args[0])
			}
			return args[0], nil
		},
		Call: func(io IO, args []values.Value) (values.Value, error) {
			rows := args[0].Elements()
			if len(rows) == 0 {
				return values.Array(args[0].Type().Elem.Base(), nil), nil
			}
			cols := rows[0].Len()
			for _, r := range rows {
				if r.Len() != cols {
					return values.Value{}, fmt.Errorf("transpose: ragged array, row lengths differ")
				}
			}
			elemType := rows[0].Type()
			out := make([]values.Value, cols)
			for c := 0; c < cols; c++ {
				col := make([]values.Value, len(rows))
				for r, row := range rows {
					col[r] = row.Elements()[c]
				}
				out[c] = values.Array(elemType.Elem.Base(), col)
			}
			return values.Array(elemType, out), nil
		},
	})
}
