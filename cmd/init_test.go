package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func chdirTemp(t *testing.T) string {
	t.Helper()

	tempDir := t.TempDir()
	originalWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tempDir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(originalWD)) })

	return tempDir
}

func initRoot(out *bytes.Buffer, args ...string) *cobra.Command {
	initForceFlag = false

	cmd := newRootCmd()
	cmd.AddCommand(newInitCmd())
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"init"}, args...))

	return cmd
}

func TestInitCmd_WritesTiaSettings(t *testing.T) {
	tempDir := chdirTemp(t)

	out := &bytes.Buffer{}
	require.NoError(t, initRoot(out).Execute())
	assert.Contains(t, out.String(), configFileName)

	contents, err := os.ReadFile(filepath.Join(tempDir, configFileName))
	require.NoError(t, err)

	var written struct {
		Version  int `yaml:"version"`
		Coverage struct {
			CallPoints    string `yaml:"callpoints"`
			MaxCallPoints int    `yaml:"max_callpoints"`
		} `yaml:"coverage"`
		Paths struct {
			MaxPerMethod int `yaml:"max_per_method"`
		} `yaml:"paths"`
		Instrument struct {
			Include []string `yaml:"include"`
		} `yaml:"instrument"`
		Run struct {
			Parallel int `yaml:"parallel"`
		} `yaml:"run"`
	}
	require.NoError(t, yaml.Unmarshal(contents, &written))

	assert.Equal(t, currentConfigVersion, written.Version)
	assert.NotEmpty(t, written.Coverage.CallPoints)
	assert.Positive(t, written.Coverage.MaxCallPoints)
	assert.Positive(t, written.Paths.MaxPerMethod)
	assert.NotEmpty(t, written.Instrument.Include)
	assert.Positive(t, written.Run.Parallel)
}

func TestInitCmd_ErrorsWhenFileExists(t *testing.T) {
	tempDir := chdirTemp(t)

	targetPath := filepath.Join(tempDir, configFileName)
	require.NoError(t, os.WriteFile(targetPath, []byte("existing: true\n"), 0o600))

	require.Error(t, initRoot(&bytes.Buffer{}).Execute())

	contents, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	assert.Equal(t, "existing: true\n", string(contents))
}

func TestInitCmd_ForceOverwrites(t *testing.T) {
	tempDir := chdirTemp(t)

	targetPath := filepath.Join(tempDir, configFileName)
	require.NoError(t, os.WriteFile(targetPath, []byte("existing: true\n"), 0o600))

	require.NoError(t, initRoot(&bytes.Buffer{}, "--force").Execute())

	contents, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "callpoints")
	assert.Contains(t, string(contents), "max_per_method")
}
