package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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
  runtime {
    docker: "ubuntu:latest"
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

func TestParse_Document(t *testing.T) {
	doc, err := Parse("sample.wdl", sampleDoc)
	require.NoError(t, err)
	require.Len(t, doc.Tasks, 1)
	assert.Equal(t, "greet", doc.Tasks[0].Name)
	require.NotNil(t, doc.Workflow)
	assert.Equal(t, "main", doc.Workflow.Name)
	require.Len(t, doc.Workflow.Body, 1)
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse("bad.wdl", "version 1.0\ntask {\n")
	assert.Error(t, err)
}

func TestUnescapeChunk_ValidEscapes(t *testing.T) {
	out, err := unescapeChunk(`a\nb\tc\\d`)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\tc\\d", out)
}

func TestUnescapeChunk_RejectsUnknownEscape(t *testing.T) {
	_, err := unescapeChunk(`bad\qescape`)
	assert.Error(t, err)
}

func TestParse_RejectsInvalidStringEscape(t *testing.T) {
	src := `version 1.0

workflow main {
  output {
    String x = "bad \q escape"
  }
}
`
	_, err := Parse("bad_escape.wdl", src)
	assert.Error(t, err)
}
