package adapter

import (
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "tia.dev/pkg/tia/internal/model"
)

const sampleSource = `package sample

var total int

type Counter struct {
	value int
	name  string
}

func (c *Counter) Add(n int) {
	if n > 0 {
		c.value += n
	}
	total = c.value
}

func Sum(xs []int) int {
	s := 0
	for _, x := range xs {
		s += x
	}
	return s
}

func Kind(n int) string {
	switch {
	case n < 0:
		return "neg"
	case n == 0:
		return "zero"
	default:
		return "pos"
	}
}
`

func lower(t *testing.T, src string) m.ModuleStructure {
	t.Helper()

	adapter := NewLocalGoFileAdapter()
	fset := token.NewFileSet()

	file, err := adapter.Parse(fset, "sample.go", []byte(src))
	require.NoError(t, err)

	structure := adapter.Lower(fset, file, "sample.go", "/src/sample.go")
	require.NoError(t, structure.Validate())

	return structure
}

func methodNamed(t *testing.T, structure m.ModuleStructure, name string) m.Method {
	t.Helper()

	for _, method := range structure.Methods {
		if method.Name == name {
			return method
		}
	}

	t.Fatalf("method %s not found", name)

	return m.Method{}
}

func TestLocalGoFileAdapter_Parse_InvalidSource(t *testing.T) {
	adapter := NewLocalGoFileAdapter()

	if _, err := adapter.Parse(token.NewFileSet(), "broken.go", []byte("package foo\n func")); err == nil {
		t.Fatalf("Parse() expected error for invalid source")
	}
}

func TestLocalGoFileAdapter_LowerFields(t *testing.T) {
	structure := lower(t, sampleSource)

	assert.Equal(t, []m.FieldDecl{
		{Name: "sample.total", Static: true},
		{Name: "Counter.value"},
		{Name: "Counter.name"},
	}, structure.Fields)
	assert.Equal(t, m.ModuleName("sample.go"), structure.Module)
	assert.Equal(t, m.Path("/src/sample.go"), structure.Origin)
}

func TestLocalGoFileAdapter_LowerIf(t *testing.T) {
	method := methodNamed(t, lower(t, sampleSource), "Counter.Add")

	assert.Equal(t, uint32(15), method.LastLine)
	assert.Equal(t, []m.Block{
		{Line: 11, Conditional: true, Succs: []int{2, 1}},
		{Line: 12, Succs: []int{2}, Fields: []m.FieldAccess{
			{Field: "Counter.value"},
			{Field: "Counter.value", Write: true},
		}},
		{Line: 14, Succs: []int{3}, Fields: []m.FieldAccess{
			{Field: "Counter.value"},
			{Field: "sample.total", Write: true},
		}},
		{Line: 15},
	}, method.Blocks)
}

func TestLocalGoFileAdapter_LowerShadowedData(t *testing.T) {
	structure := lower(t, `package sample

var total int

type Counter struct {
	value int
}

func Shadow() int {
	total := 3
	return total
}

func Param(total int) int {
	return total
}

func (c *Counter) Rebind(other *Counter) int {
	c = other
	{
		c := &Counter{}
		c.value = 1
	}
	return total
}
`)

	fieldsOf := func(name string) []m.FieldAccess {
		var out []m.FieldAccess
		for _, block := range methodNamed(t, structure, name).Blocks {
			out = append(out, block.Fields...)
		}

		return out
	}

	assert.Empty(t, fieldsOf("Shadow"))
	assert.Empty(t, fieldsOf("Param"))
	assert.Equal(t, []m.FieldAccess{{Field: "sample.total"}}, fieldsOf("Counter.Rebind"))
}

func TestLocalGoFileAdapter_LowerRange(t *testing.T) {
	method := methodNamed(t, lower(t, sampleSource), "Sum")

	assert.Equal(t, []m.Block{
		{Line: 18, Succs: []int{1}},
		{Line: 19, Conditional: true, Succs: []int{3, 2}},
		{Line: 20, Succs: []int{1}},
		{Line: 22},
	}, method.Blocks)
}

func TestLocalGoFileAdapter_LowerSwitch(t *testing.T) {
	method := methodNamed(t, lower(t, sampleSource), "Kind")

	assert.Equal(t, []m.Block{
		{Line: 27, Conditional: true, Succs: []int{1, 2}},
		{Line: 29, Conditional: true, Succs: []int{4, 3}},
		{Line: 28},
		{Line: 30},
		{Line: 32},
	}, method.Blocks)
}

func TestLocalGoFileAdapter_LowerUnreachableAndEmpty(t *testing.T) {
	structure := lower(t, `package p

func Empty() {
}

func Dead() int {
	return 1
	println("never")
}
`)

	empty := methodNamed(t, structure, "Empty")
	assert.Equal(t, []m.Block{{Line: 4}}, empty.Blocks)

	dead := methodNamed(t, structure, "Dead")
	require.Len(t, dead.Blocks, 3)
	assert.Empty(t, dead.Blocks[0].Succs)
	assert.Equal(t, uint32(8), dead.Blocks[1].Line)
	assert.Equal(t, []int{2}, dead.Blocks[1].Succs)
	assert.Equal(t, uint32(9), dead.Blocks[2].Line)
}

func TestLocalGoFileAdapter_LowerJumpsStayValid(t *testing.T) {
	structure := lower(t, `package p

func Jumps(ch chan int, xs []int) (n int) {
outer:
	for i := 0; i < len(xs); i++ {
		for {
			if xs[i] < 0 {
				continue outer
			}
			if xs[i] == 0 {
				break outer
			}
			break
		}
		switch xs[i] {
		case 1:
			n++
			fallthrough
		case 2:
			n += 2
		case 3:
		default:
			goto done
		}
	}
	select {
	case v := <-ch:
		n += v
	default:
	}
done:
	if n > 10 {
		panic("too big")
	}
	return n
}

func Loop() {
	for {
	}
}
`)

	jumps := methodNamed(t, structure, "Jumps")
	assert.Greater(t, len(jumps.Blocks), 10)

	for i, block := range jumps.Blocks {
		for _, succ := range block.Succs {
			assert.GreaterOrEqual(t, succ, 0, "block %d", i)
		}
	}

	loop := methodNamed(t, structure, "Loop")
	assert.Equal(t, []m.Block{{Line: 39, Succs: []int{0}}}, loop.Blocks)
}

func TestLocalGoFileAdapter_LowerExampleProject(t *testing.T) {
	path := filepath.Join("..", "..", "examples", "calc", "calc.go")

	src, err := os.ReadFile(path)
	require.NoError(t, err)

	adapter := NewLocalGoFileAdapter()
	fset := token.NewFileSet()

	file, err := adapter.Parse(fset, path, src)
	require.NoError(t, err)

	structure := adapter.Lower(fset, file, "calc.go", m.Path(path))
	require.NoError(t, structure.Validate())

	names := make([]string, 0, len(structure.Methods))
	for _, method := range structure.Methods {
		names = append(names, method.Name)
	}

	assert.Equal(t, []string{"Calc.Add", "Clamp", "Status", "Sum"}, names)
	assert.Contains(t, structure.Fields, m.FieldDecl{Name: "calc.calls", Static: true})
	assert.Contains(t, structure.Fields, m.FieldDecl{Name: "Calc.last"})
}
