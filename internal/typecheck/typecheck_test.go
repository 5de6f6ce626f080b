package typecheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdlrun/wdlrun/internal/parser"
	"github.com/wdlrun/wdlrun/internal/types"
)

const sampleDoc = `version 1.0

task greet {
  input {
    String name
  }
  command <<<
    echo "hello ~{name}"
  >>>
  output {
    String greeting = read_string(stdout())
  }
}

workflow main {
  input {
    String who
  }
  call greet { input: name = who }
  output {
    String result = greet.greeting
  }
}
`

func TestCheckTask_Valid(t *testing.T) {
	doc, err := parser.Parse("sample.wdl", sampleDoc)
	require.NoError(t, err)

	checker := NewChecker(doc.SourceText, nil, true)
	checker.CheckTask(doc.Tasks[0])
	assert.False(t, checker.Diagnostics().HasErrors(), checker.Diagnostics().Error())
}

func TestCheckWorkflow_Valid(t *testing.T) {
	doc, err := parser.Parse("sample.wdl", sampleDoc)
	require.NoError(t, err)

	checker := NewChecker(doc.SourceText, nil, true)
	sigs := map[string]TaskSig{
		"greet": {
			Inputs:  map[string]types.Type{"name": types.String()},
			Outputs: map[string]types.Type{"greeting": types.String()},
		},
	}
	checker.CheckWorkflow(doc.Workflow, sigs)
	assert.False(t, checker.Diagnostics().HasErrors(), checker.Diagnostics().Error())
}

func TestCheckWorkflow_UnknownCallTarget(t *testing.T) {
	doc, err := parser.Parse("sample.wdl", sampleDoc)
	require.NoError(t, err)

	checker := NewChecker(doc.SourceText, nil, true)
	checker.CheckWorkflow(doc.Workflow, map[string]TaskSig{})
	assert.True(t, checker.Diagnostics().HasErrors())
}

func TestCheckWorkflow_UnknownIdentifier(t *testing.T) {
	doc, err := parser.Parse("sample.wdl", `version 1.0

workflow main {
  output {
    String x = undefined_name
  }
}
`)
	require.NoError(t, err)

	checker := NewChecker(doc.SourceText, nil, true)
	checker.CheckWorkflow(doc.Workflow, nil)
	assert.True(t, checker.Diagnostics().HasErrors())
}

func TestCheckCall_StaticTypeMismatch(t *testing.T) {
	doc, err := parser.Parse("sample.wdl", sampleDoc)
	require.NoError(t, err)

	checker := NewChecker(doc.SourceText, nil, true)
	sigs := map[string]TaskSig{
		"greet": {
			Inputs:  map[string]types.Type{"name": types.Int()},
			Outputs: map[string]types.Type{"greeting": types.String()},
		},
	}
	checker.CheckWorkflow(doc.Workflow, sigs)
	assert.True(t, checker.Diagnostics().HasErrors())
}
