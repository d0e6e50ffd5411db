package adapter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "tia.dev/pkg/tia/internal/model"
)

const sampleTrace = `tests:
  - module: calc/calc_test.go
    name: TestAdd
    line: 12
    calls:
      - module: calc/calc.go
        method: Counter.Add
        decisions: [true, false]
        instance: 1
      - module: calc/calc.go
        method: Sum
        workers: 4
  - module: calc/calc_test.go
    name: TestBroken
    outcome: failed
    calls: []
`

func TestYAMLTraceReader_ReadTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTrace), 0o600))

	trace, err := NewYAMLTraceReader().ReadTrace(m.Path(path))
	require.NoError(t, err)
	require.Len(t, trace.Tests, 2)

	first := trace.Tests[0]
	assert.Equal(t, "calc/calc_test.go#TestAdd", first.QualifiedName())
	assert.Equal(t, uint32(12), first.Line)
	require.Len(t, first.Calls, 2)
	assert.Equal(t, []bool{true, false}, first.Calls[0].Decisions)
	assert.Equal(t, m.InstanceID(1), first.Calls[0].Instance)
	assert.Equal(t, 4, first.Calls[1].Workers)

	outcome, ok := m.ParseOutcome(trace.Tests[1].Outcome)
	require.True(t, ok)
	assert.Equal(t, m.Failed, outcome)
}

func TestDecodeTrace_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not yaml", doc: "tests: [\n"},
		{name: "unknown field", doc: "tests:\n  - module: a\n    name: T\n    colour: red\n"},
		{name: "missing name", doc: "tests:\n  - module: a\n"},
		{name: "duplicate", doc: "tests:\n  - {module: a, name: T}\n  - {module: a, name: T}\n"},
		{name: "bad outcome", doc: "tests:\n  - {module: a, name: T, outcome: maybe}\n"},
		{name: "call without method", doc: "tests:\n  - module: a\n    name: T\n    calls: [{module: b}]\n"},
		{name: "negative workers", doc: "tests:\n  - module: a\n    name: T\n    calls: [{module: b, method: F, workers: -1}]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTrace(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, ErrMalformedTrace)
		})
	}
}

func TestDecodeTrace_Empty(t *testing.T) {
	trace, err := DecodeTrace(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, trace.Tests)
}
