package impact

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tia.dev/pkg/tia/internal/coverage"
	m "tia.dev/pkg/tia/internal/model"
)

type fakeTimes map[m.ModuleName]time.Time

func (f fakeTimes) ModTime(module m.ModuleName) (time.Time, error) {
	t, ok := f[module]
	if !ok {
		return time.Time{}, errors.New("no such module")
	}

	return t, nil
}

const testName = "pkg/x_test.go#TestX"

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func freshStore(times fakeTimes) *Store {
	store := NewStore(times)
	store.Complete(testName, m.Passed, base, []m.ModuleName{"pkg/y.go", "pkg/x.go"})

	return store
}

func TestStore_ShouldRun(t *testing.T) {
	t.Run("unknown test runs", func(t *testing.T) {
		store := NewStore(fakeTimes{})

		assert.True(t, store.ShouldRun(testName))
		assert.Equal(t, Unknown, store.State(testName))
	})

	t.Run("unchanged modules skip the test", func(t *testing.T) {
		store := freshStore(fakeTimes{
			"pkg/x.go":      base.Add(-time.Hour),
			"pkg/y.go":      base.Add(-time.Hour),
			"pkg/x_test.go": base.Add(-time.Minute),
		})

		assert.Equal(t, Fresh, store.State(testName))
		assert.False(t, store.ShouldRun(testName))
		assert.Equal(t, Skipped, store.State(testName))
	})

	t.Run("modified module makes the test stale", func(t *testing.T) {
		store := freshStore(fakeTimes{
			"pkg/x.go":      base.Add(-time.Hour),
			"pkg/y.go":      base.Add(time.Second),
			"pkg/x_test.go": base.Add(-time.Minute),
		})

		assert.True(t, store.ShouldRun(testName))
		assert.Equal(t, Stale, store.State(testName))

		_, ok := store.Entry(testName)
		assert.False(t, ok, "stale record is deleted")
	})

	t.Run("modified test module makes the test stale", func(t *testing.T) {
		store := freshStore(fakeTimes{
			"pkg/x.go":      base.Add(-time.Hour),
			"pkg/y.go":      base.Add(-time.Hour),
			"pkg/x_test.go": base.Add(time.Minute),
		})

		assert.True(t, store.ShouldRun(testName))
	})

	t.Run("missing module time resolves to run", func(t *testing.T) {
		store := freshStore(fakeTimes{"pkg/x.go": base.Add(-time.Hour)})

		assert.True(t, store.ShouldRun(testName))
		assert.Equal(t, Stale, store.State(testName))
	})

	t.Run("malformed record resolves to run", func(t *testing.T) {
		store := NewStore(fakeTimes{})
		store.Load([]Entry{{Test: testName, Malformed: true}})

		assert.True(t, store.ShouldRun(testName))
		assert.Equal(t, Stale, store.State(testName))
	})

	t.Run("unqualified name resolves to run", func(t *testing.T) {
		store := NewStore(fakeTimes{})
		store.Load([]Entry{{Test: "TestX", Timestamp: base}})

		assert.True(t, store.ShouldRun("TestX"))
	})
}

func TestStore_Complete(t *testing.T) {
	t.Run("passed test records sorted modules and start time", func(t *testing.T) {
		store := NewStore(nil)
		started := base.Add(1234567 * time.Nanosecond)

		store.Complete(testName, m.Passed, started, []m.ModuleName{"b.go", "a.go", "b.go"})

		entry, ok := store.Entry(testName)
		require.True(t, ok)
		assert.Equal(t, []m.ModuleName{"a.go", "b.go"}, entry.Modules)
		assert.Equal(t, base.Add(time.Millisecond), entry.Timestamp)
	})

	t.Run("failed test loses its record", func(t *testing.T) {
		store := freshStore(fakeTimes{})

		store.Complete(testName, m.Failed, base, []m.ModuleName{"a.go"})

		_, ok := store.Entry(testName)
		assert.False(t, ok)
		assert.Equal(t, Stale, store.State(testName))
	})

	t.Run("aborted test is untouched", func(t *testing.T) {
		store := freshStore(fakeTimes{})

		store.Complete(testName, m.Aborted, base.Add(time.Hour), nil)

		entry, ok := store.Entry(testName)
		require.True(t, ok)
		assert.Equal(t, base, entry.Timestamp)
	})

	t.Run("test without call points gets no record", func(t *testing.T) {
		store := NewStore(nil)

		store.Complete(testName, m.Passed, base, nil)

		assert.Empty(t, store.Entries())
	})
}

func TestStore_SecondRunWithoutChangesSkips(t *testing.T) {
	times := fakeTimes{
		"pkg/x.go":      base.Add(-time.Hour),
		"pkg/y.go":      base.Add(-time.Hour),
		"pkg/x_test.go": base.Add(-time.Hour),
	}

	first := NewStore(times)
	require.True(t, first.ShouldRun(testName))
	first.Complete(testName, m.Passed, base, []m.ModuleName{"pkg/x.go", "pkg/y.go"})

	second := NewStore(times)
	second.Load(first.Entries())

	assert.False(t, second.ShouldRun(testName))
}

func TestStore_Rebuild(t *testing.T) {
	data := coverage.NewData()

	a := coverage.NewModuleCoverage("a.go", "", "")
	a.Line(1).CallPoints = []m.CallPoint{{Module: "a_test.go", Member: "TestA", Test: 1, Started: base}}
	a.Line(2).CallPoints = []m.CallPoint{{Module: "ab_test.go", Member: "TestAB", Test: 2, Started: base.Add(time.Second)}}
	data.Put(a)

	b := coverage.NewModuleCoverage("b.go", "", "")
	b.Line(7).Segments = []*coverage.BranchSegment{{JumpCount: 1, NoJumpCount: -1,
		CallPoints: []m.CallPoint{{Module: "ab_test.go", Member: "TestAB", Test: 2, Started: base.Add(-time.Hour)}}}}
	data.Put(b)

	store := NewStore(nil)
	store.Complete("stale_test.go#TestGone", m.Passed, base, []m.ModuleName{"z.go"})

	assert.Equal(t, 2, store.Rebuild(data))

	entries := store.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a_test.go#TestA", entries[0].Test)
	assert.Equal(t, []m.ModuleName{"a.go"}, entries[0].Modules)
	assert.Equal(t, base, entries[0].Timestamp)
	assert.Equal(t, "ab_test.go#TestAB", entries[1].Test)
	assert.Equal(t, []m.ModuleName{"a.go", "b.go"}, entries[1].Modules)
	assert.Equal(t, base.Add(-time.Hour), entries[1].Timestamp, "earliest start wins")
}

func TestStore_RebuildKeepsOnlyPassedDatedTests(t *testing.T) {
	data := coverage.NewData()

	calc := coverage.NewModuleCoverage("calc.go", "", "")
	calc.Line(3).CallPoints = []m.CallPoint{
		{Module: "calc_test.go", Member: "TestAdd", Test: 1, Started: base},
		{Module: "calc_test.go", Member: "TestFails", Test: 2, Started: base, Failed: true},
		{Module: "calc_test.go", Member: "TestUndated", Test: 3},
	}
	data.Put(calc)

	times := fakeTimes{
		"calc.go":      base.Add(10 * time.Minute),
		"calc_test.go": base.Add(-time.Hour),
	}

	store := NewStore(times)
	assert.Equal(t, 1, store.Rebuild(data))

	_, ok := store.Entry("calc_test.go#TestFails")
	assert.False(t, ok, "failed test has no record")

	_, ok = store.Entry("calc_test.go#TestUndated")
	assert.False(t, ok)

	for _, test := range []string{"calc_test.go#TestAdd", "calc_test.go#TestFails", "calc_test.go#TestUndated"} {
		assert.True(t, store.ShouldRun(test), test)
	}

	assert.Equal(t, Stale, store.State("calc_test.go#TestAdd"), "module edited after the run")
}
