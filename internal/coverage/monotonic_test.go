package coverage

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tia.dev/pkg/tia/internal/model"
)

// twoIfModule is a method with two sequential ifs: conditions at lines 1 and
// 3, bodies at lines 2 and 4, exit at line 5.
func twoIfModule(t *testing.T) (*ModuleCoverage, model.ModuleStructure) {
	t.Helper()

	structure := model.ModuleStructure{
		Module: "pkg/two.go",
		Methods: []model.Method{{
			Name:     "Both",
			LastLine: 5,
			Blocks: []model.Block{
				{Line: 1, Conditional: true, Succs: []int{2, 1}},
				{Line: 2, Succs: []int{2}},
				{Line: 3, Conditional: true, Succs: []int{4, 3}},
				{Line: 4, Succs: []int{4}},
				{Line: 5},
			},
		}},
	}
	require.NoError(t, structure.Validate())

	mc := NewModuleCoverage(structure.Module, "", "fp")
	for _, line := range []uint32{1, 2, 3, 4, 5} {
		mc.Line(line)
	}

	paths, ok := NewGraph(structure.Methods[0]).EnumeratePaths(0)
	require.True(t, ok)
	require.Len(t, paths, 4)

	mc.Methods[1] = &MethodCoverage{Name: "Both", FirstLine: 1, LastLine: 5, Paths: paths}

	return mc, structure
}

func runBoth(ctx context.Context, r *Registry, first, second bool) {
	const module = "pkg/two.go"

	inv := r.Enter(ctx, module, 1)
	inv.Reach(0)

	if first {
		r.RecordLineHit(ctx, module, 2)
		inv.Reach(1)
	}

	inv.Reach(2)

	if second {
		r.RecordLineHit(ctx, module, 4)
		inv.Reach(3)
	}

	inv.Reach(4)
	inv.Exit()
}

func TestRegistry_PathPartitionTwoBranches(t *testing.T) {
	SetDebugAssertions(true)
	t.Cleanup(func() { SetDebugAssertions(false) })

	mc, structure := twoIfModule(t)
	r := NewRegistry(nil, Options{})
	r.Register(mc, structure)

	ctx, scope := r.BeginTest(context.Background(), testInfo)

	rng := rand.New(rand.NewPCG(3, 4))
	for range 101 {
		runBoth(ctx, r, rng.IntN(2) == 0, rng.IntN(2) == 0)
	}

	scope.Commit()

	method := r.Data().Modules["pkg/two.go"].Methods[1]
	assert.Equal(t, uint64(101), method.ExecutionCount)
	assert.Equal(t, method.ExecutionCount, method.PathCounts())
	assert.Zero(t, r.Unmatched())

	for _, path := range method.Paths {
		assert.Positive(t, path.ExecutionCount, "path %s", path.Key())
	}
}

type countSnapshot struct {
	lines   map[uint32]uint64
	jumps   int64
	noJumps int64
	method  uint64
	paths   []uint64
}

func snapshot(mc *ModuleCoverage) countSnapshot {
	s := countSnapshot{lines: map[uint32]uint64{}}
	for line, lc := range mc.Lines {
		s.lines[line] = lc.ExecutionCount
	}

	s.jumps = mc.Lines[10].Segments[0].JumpCount
	s.noJumps = mc.Lines[10].Segments[1].NoJumpCount
	s.method = mc.Methods[10].ExecutionCount

	for _, path := range mc.Methods[10].Paths {
		s.paths = append(s.paths, path.ExecutionCount)
	}

	return s
}

func assertNotDecreased(t *testing.T, before, after countSnapshot) {
	t.Helper()

	for line, n := range before.lines {
		assert.GreaterOrEqual(t, after.lines[line], n, "line %d", line)
	}

	assert.GreaterOrEqual(t, after.jumps, before.jumps)
	assert.GreaterOrEqual(t, after.noJumps, before.noJumps)
	assert.GreaterOrEqual(t, after.method, before.method)

	for i, n := range before.paths {
		assert.GreaterOrEqual(t, after.paths[i], n, "path %d", i)
	}
}

func TestRegistry_CountsNeverDecrease(t *testing.T) {
	type step struct {
		test    string
		taken   []bool
		outcome model.Outcome
		flush   bool
	}

	tests := []struct {
		name  string
		steps []step
	}{
		{
			name: "passing tests in sequence",
			steps: []step{
				{test: "TestA", taken: []bool{true}},
				{test: "TestB", taken: []bool{false, false}},
				{test: "TestA", taken: []bool{true, false}},
			},
		},
		{
			name: "aborted and failed tests in between",
			steps: []step{
				{test: "TestA", taken: []bool{true}},
				{test: "TestB", taken: []bool{true, true}, outcome: model.Aborted},
				{test: "TestC", taken: []bool{false}, outcome: model.Failed},
				{test: "TestD"},
			},
		},
		{
			name: "background hits between tests",
			steps: []step{
				{taken: []bool{false}, flush: true},
				{test: "TestA", taken: []bool{true}},
				{taken: []bool{true, true}, flush: true},
				{test: "TestB", taken: []bool{false}, outcome: model.Aborted},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc, structure := ifModule(t)
			r := NewRegistry(nil, Options{})
			r.Register(mc, structure)

			previous := snapshot(r.Data().Modules["pkg/m.go"])

			for _, st := range tt.steps {
				if st.flush {
					for _, taken := range st.taken {
						runCheck(context.Background(), r, taken)
					}

					r.Flush()
				} else {
					ctx, scope := r.BeginTest(context.Background(),
						model.TestInfo{Module: "pkg/m_test.go", Member: st.test})
					for _, taken := range st.taken {
						runCheck(ctx, r, taken)
					}

					if st.outcome == model.Aborted {
						scope.Discard()
					} else {
						scope.Commit()
					}
				}

				current := snapshot(r.Data().Modules["pkg/m.go"])
				assertNotDecreased(t, previous, current)
				previous = current
			}
		})
	}
}

func TestRegistry_HitsAfterScopeEndsAreDropped(t *testing.T) {
	t.Run("discarded", func(t *testing.T) {
		mc, structure := ifModule(t)
		r := NewRegistry(nil, Options{})
		r.Register(mc, structure)

		ctx, scope := r.BeginTest(context.Background(), testInfo)
		runCheck(ctx, r, true)
		scope.Discard()

		runCheck(ctx, r, true)
		r.RecordFieldWrite(ctx, "pkg/m.go", "T.value", 1)
		r.RecordFieldRead(ctx, "pkg/m.go", "T.value", 1)
		r.Flush()

		got := r.Data().Modules["pkg/m.go"]
		assert.Zero(t, got.Lines[11].ExecutionCount)
		assert.Zero(t, got.Lines[10].Segments[0].JumpCount)
		assert.Zero(t, got.Methods[10].ExecutionCount)
		assert.Zero(t, got.Methods[10].PathCounts())
		assert.Zero(t, got.Fields["T.value"].WriteCount)
		assert.False(t, got.Fields["T.value"].Covered)
	})

	t.Run("committed", func(t *testing.T) {
		mc, structure := ifModule(t)
		r := NewRegistry(nil, Options{})
		r.Register(mc, structure)

		ctx, scope := r.BeginTest(context.Background(), testInfo)
		runCheck(ctx, r, true)
		scope.Commit()

		runCheck(ctx, r, false)
		r.Flush()

		got := r.Data().Modules["pkg/m.go"]
		assert.Equal(t, uint64(1), got.Lines[12].ExecutionCount)
		assert.Equal(t, uint64(1), got.Methods[10].ExecutionCount)
		assert.Zero(t, got.Lines[10].Segments[1].NoJumpCount)
	})
}
