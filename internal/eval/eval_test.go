package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdlrun/wdlrun/internal/env"
	"github.com/wdlrun/wdlrun/internal/parser"
	"github.com/wdlrun/wdlrun/internal/values"
)

func TestEval_Arithmetic(t *testing.T) {
	ev := New(nil)
	scope := env.Empty[values.Value]()

	doc, err := parser.Parse("sample.wdl", `version 1.0

task t {
  command <<< >>>
  output {
    Int x = 2 + 3 * 4
  }
}
`)
	require.NoError(t, err)
	v, err := ev.Eval(scope, doc.Tasks[0].Outputs[0].Expr)
	require.NoError(t, err)
	assert.Equal(t, int64(14), v.Int())
}

func TestEval_StringInterpolation(t *testing.T) {
	ev := New(nil)
	scope := env.Empty[values.Value]().Bind("name", values.Str("world"))

	doc, err := parser.Parse("sample.wdl", `version 1.0

task t {
  command <<< >>>
  output {
    String x = "hello ~{name}"
  }
}
`)
	require.NoError(t, err)
	v, err := ev.Eval(scope, doc.Tasks[0].Outputs[0].Expr)
	require.NoError(t, err)
	assert.Equal(t, "hello world", v.String())
}

func TestEval_IfThenElse(t *testing.T) {
	ev := New(nil)
	scope := env.Empty[values.Value]()

	doc, err := parser.Parse("sample.wdl", `version 1.0

task t {
  command <<< >>>
  output {
    Int x = if true then 1 else 2
  }
}
`)
	require.NoError(t, err)
	v, err := ev.Eval(scope, doc.Tasks[0].Outputs[0].Expr)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int())
}

func TestEval_ArrayIndex(t *testing.T) {
	ev := New(nil)
	scope := env.Empty[values.Value]()

	doc, err := parser.Parse("sample.wdl", `version 1.0

task t {
  command <<< >>>
  output {
    Int x = [10, 20, 30][1]
  }
}
`)
	require.NoError(t, err)
	v, err := ev.Eval(scope, doc.Tasks[0].Outputs[0].Expr)
	require.NoError(t, err)
	assert.Equal(t, int64(20), v.Int())
}

func TestEval_UnknownIdentifier(t *testing.T) {
	ev := New(nil)
	scope := env.Empty[values.Value]()

	doc, err := parser.Parse("sample.wdl", `version 1.0

task t {
  command <<< >>>
  output {
    Int x = undefined_name
  }
}
`)
	require.NoError(t, err)
	_, err = ev.Eval(scope, doc.Tasks[0].Outputs[0].Expr)
	assert.Error(t, err)
}
