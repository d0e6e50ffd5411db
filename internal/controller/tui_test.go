package controller

import (
	"bytes"
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTUI_SmallTableIsPrinted(t *testing.T) {
	var buf bytes.Buffer

	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	tui := NewTUI(cmd)
	require.NoError(t, tui.DisplayModules(context.Background(), []ModuleRow{{Module: "calc/add.go", Lines: 3}}))

	output := buf.String()
	assert.Contains(t, output, "Instrumented modules")
	assert.Contains(t, output, "calc/add.go")
	assert.Contains(t, output, "Total 1 modules")
}

func TestTableModel_Keys(t *testing.T) {
	model := newTableModel("Coverage", reportHeader, [][]string{{"a.go", "1%", "2%", "3%", "4%"}}, nil, 80, 24)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	updated, _ := model.Update(tea.WindowSizeMsg{Width: 100, Height: 10})
	view := updated.(tableModel).View()
	assert.Contains(t, view, "Coverage")
	assert.Contains(t, view, "q quit")
}

func TestTableModel_ColumnWidths(t *testing.T) {
	long := strings.Repeat("x", 200)
	model := newTableModel("T", []string{"Module", "Line"}, [][]string{{long, "1%"}}, []string{"Total", "1%"}, 0, 0)

	columns := model.table.Columns()
	require.Len(t, columns, 2)
	assert.Equal(t, maxColumnText, columns[0].Width)
	assert.Equal(t, len("Line"), columns[1].Width)
	assert.Equal(t, "Total  1%", model.footer)
}
