package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "tia.dev/pkg/tia/internal/model"
)

func sampleStructure() m.ModuleStructure {
	return m.ModuleStructure{
		Module: "pkg/m.go",
		Origin: "/src/pkg/m.go",
		Fields: []m.FieldDecl{{Name: "T.value"}, {Name: "pkg.total", Static: true}},
		Methods: []m.Method{{
			Name:     "T.Check",
			LastLine: 13,
			Blocks: []m.Block{
				{Line: 10, Conditional: true, Succs: []int{2, 1}, Fields: []m.FieldAccess{{Field: "T.value"}}},
				{Line: 11, Succs: []int{2}, Fields: []m.FieldAccess{{Field: "pkg.total", Write: true}}},
				{Line: 12},
			},
		}},
	}
}

func TestYAMLModuleCodec_Structure(t *testing.T) {
	codec := NewYAMLModuleCodec()

	data, err := codec.EncodeStructure(sampleStructure())
	require.NoError(t, err)
	assert.Contains(t, string(data), "succs: [2, 1]")

	decoded, err := codec.DecodeStructure(data)
	require.NoError(t, err)
	assert.Equal(t, sampleStructure(), decoded)
}

func TestYAMLModuleCodec_Malformed(t *testing.T) {
	codec := NewYAMLModuleCodec()

	tests := []struct {
		name string
		data string
	}{
		{name: "not yaml", data: "module: [unclosed"},
		{name: "unknown key", data: "module: a.go\nbogus: 1\nmethods: []\n"},
		{name: "no module name", data: "methods: []\n"},
		{name: "dangling successor", data: "module: a.go\nmethods:\n  - name: f\n    blocks:\n      - line: 1\n        succs: [4]\n"},
		{name: "conditional with one successor", data: "module: a.go\nmethods:\n  - name: f\n    blocks:\n      - line: 1\n        conditional: true\n        succs: [0]\n"},
		{name: "empty method", data: "module: a.go\nmethods:\n  - name: f\n    blocks: []\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.DecodeStructure([]byte(tt.data))
			require.ErrorIs(t, err, m.ErrMalformedModule)

			_, err = codec.DecodeInstrumented([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestYAMLModuleCodec_Instrumented(t *testing.T) {
	codec := NewYAMLModuleCodec()

	module := m.InstrumentedModule{
		Instrumented: true,
		Fingerprint:  "abc",
		Structure:    sampleStructure(),
		Probes: []m.ProbeSite{
			{Kind: m.ProbeMethod, Line: 10},
			{Kind: m.ProbeSegment, Block: 0, Line: 10, Segment: 1, Jump: false},
		},
	}

	data, err := codec.EncodeInstrumented(module)
	require.NoError(t, err)

	decoded, err := codec.DecodeInstrumented(data)
	require.NoError(t, err)
	assert.Equal(t, module, decoded)

	plain, err := codec.EncodeStructure(sampleStructure())
	require.NoError(t, err)

	decoded, err = codec.DecodeInstrumented(plain)
	require.NoError(t, err)
	assert.False(t, decoded.Instrumented)
	assert.Equal(t, sampleStructure(), decoded.Structure)
}
