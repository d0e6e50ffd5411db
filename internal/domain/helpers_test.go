package domain

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"tia.dev/pkg/tia/internal/adapter"
	m "tia.dev/pkg/tia/internal/model"
)

const calcModule m.ModuleName = "calc/calc.go"

var errNoSuchModule = errors.New("no such module")

// ifStructure is Calc.Check: an if at line 10 whose body at line 11 writes
// both tracked fields, and line 12 reading them back.
func ifStructure() m.ModuleStructure {
	return m.ModuleStructure{
		Module: calcModule,
		Origin: "/src/calc/calc.go",
		Fields: []m.FieldDecl{{Name: "Calc.last"}, {Name: "calc.total", Static: true}},
		Methods: []m.Method{{
			Name:     "Calc.Check",
			LastLine: 12,
			Blocks: []m.Block{
				{Line: 10, Conditional: true, Succs: []int{2, 1}},
				{Line: 11, Succs: []int{2}, Fields: []m.FieldAccess{{Field: "Calc.last", Write: true}, {Field: "calc.total", Write: true}}},
				{Line: 12, Fields: []m.FieldAccess{{Field: "Calc.last"}, {Field: "calc.total"}}},
			},
		}},
	}
}

func encodeStructure(t *testing.T, structure m.ModuleStructure) []byte {
	t.Helper()

	data, err := adapter.NewYAMLModuleCodec().EncodeStructure(structure)
	require.NoError(t, err)

	return data
}

func instrument(t *testing.T, structure m.ModuleStructure) *Instrumented {
	t.Helper()

	result, err := NewInstrumenter(adapter.NewYAMLModuleCodec(), 0).Instrument(encodeStructure(t, structure))
	require.NoError(t, err)

	return result
}

// memModules serves loaded module bytes from memory.
type memModules map[m.ModuleName][]byte

func (mm memModules) Loaded(module m.ModuleName) ([]byte, bool) {
	data, ok := mm[module]
	return data, ok
}

// fakeTimes reports settable modification times.
type fakeTimes struct {
	mu    sync.Mutex
	times map[m.ModuleName]time.Time
}

func newFakeTimes(at time.Time, modules ...m.ModuleName) *fakeTimes {
	ft := &fakeTimes{times: map[m.ModuleName]time.Time{}}
	for _, module := range modules {
		ft.times[module] = at
	}

	return ft
}

func (ft *fakeTimes) set(module m.ModuleName, at time.Time) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	ft.times[module] = at
}

func (ft *fakeTimes) ModTime(module m.ModuleName) (time.Time, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	at, ok := ft.times[module]
	if !ok {
		return time.Time{}, errNoSuchModule
	}

	return at, nil
}
