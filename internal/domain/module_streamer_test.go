package domain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tia.dev/pkg/tia/internal/adapter"
	m "tia.dev/pkg/tia/internal/model"
)

const calcSource = `package calc

type Calc struct {
	last int
}

var total int

func (c *Calc) Add(v int) int {
	if v > 0 {
		c.last = v
		total += v
	}
	return total
}
`

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	return root
}

func newTestStreamer(root string) ModuleStreamer {
	return NewModuleStreamer(
		&adapter.LocalSourceFSAdapter{Root: m.Path(root)},
		adapter.NewLocalGoFileAdapter(),
		adapter.NewYAMLModuleCodec(),
	)
}

func TestModuleStreamer_Get(t *testing.T) {
	root := writeTree(t, map[string]string{
		"calc/calc.go":         calcSource,
		"calc/broken.go":       "package calc\n\nfunc broken( {\n",
		"calc/gen_test.go":     "package calc\n\nfunc TestGen() {}\n",
		"vendor/dep/dep.go":    "package dep\n",
		"calc/notes/README":    "not go",
		"calc/util/strings.go": "package util\n\nfunc Upper() {}\n",
	})

	ch, err := newTestStreamer(root).Get(context.Background(), []m.Path{m.Path(root + "/...")}, []string{`_test\.go$`}, 2)
	require.NoError(t, err)

	modules, err := CollectModules(context.Background(), ch)
	require.NoError(t, err)
	require.Len(t, modules, 2)

	assert.Equal(t, m.ModuleName("calc/calc.go"), modules[0].Source.Module)
	assert.Equal(t, m.ModuleName("calc/util/strings.go"), modules[1].Source.Module)

	calc := modules[0]
	require.Len(t, calc.Structure.Methods, 1)
	assert.Equal(t, "Calc.Add", calc.Structure.Methods[0].Name)
	assert.Contains(t, calc.Structure.Fields, m.FieldDecl{Name: "calc.total", Static: true})

	decoded, err := adapter.NewYAMLModuleCodec().DecodeStructure(calc.Bytes)
	require.NoError(t, err)
	assert.Equal(t, calc.Structure.Module, decoded.Module)
}

func TestModuleStreamer_Errors(t *testing.T) {
	t.Run("invalid exclude", func(t *testing.T) {
		_, err := newTestStreamer(t.TempDir()).Get(context.Background(), nil, []string{"("}, 1)
		require.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		root := writeTree(t, map[string]string{"calc/calc.go": calcSource})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		ch, err := newTestStreamer(root).Get(context.Background(), []m.Path{m.Path(root + "/...")}, nil, 1)
		require.NoError(t, err)

		_, err = CollectModules(ctx, ch)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestNormalizeThreads(t *testing.T) {
	assert.Equal(t, 1, normalizeThreads(0))
	assert.Equal(t, 1, normalizeThreads(-3))
	assert.Equal(t, 8, normalizeThreads(8))
}
