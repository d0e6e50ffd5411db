package coverage

import (
	"testing"

	"github.com/stretchr/testify/require"
	"tia.dev/pkg/tia/internal/model"
)

// ifModule is a method with one if at line 10, its body at line 11 and the
// implicit else falling through to line 12.
func ifModule(t *testing.T) (*ModuleCoverage, model.ModuleStructure) {
	t.Helper()

	structure := model.ModuleStructure{
		Module: "pkg/m.go",
		Fields: []model.FieldDecl{{Name: "T.value"}, {Name: "pkg.total", Static: true}},
		Methods: []model.Method{{
			Name:     "Check",
			LastLine: 12,
			Blocks: []model.Block{
				{Line: 10, Conditional: true, Succs: []int{2, 1}},
				{Line: 11, Succs: []int{2}},
				{Line: 12},
			},
		}},
	}
	require.NoError(t, structure.Validate())

	mc := NewModuleCoverage(structure.Module, "", "fp")
	line10 := mc.Line(10)
	line10.Segments = []*BranchSegment{NewBranchSegment(false, true), NewBranchSegment(true, false)}
	mc.Line(11)
	mc.Line(12)

	paths, ok := NewGraph(structure.Methods[0]).EnumeratePaths(0)
	require.True(t, ok)

	mc.Methods[10] = &MethodCoverage{Name: "Check", FirstLine: 10, LastLine: 12, Paths: paths}
	mc.Fields["T.value"] = &FieldCoverage{Name: "T.value"}
	mc.Fields["pkg.total"] = &FieldCoverage{Name: "pkg.total", Static: true}

	return mc, structure
}
