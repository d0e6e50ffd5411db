package controller

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"tia.dev/pkg/tia/internal/coverage"
)

const (
	// lines around the table: title, border, footer and help
	chromeHeight = 5
	// header row plus its bottom border
	headerHeight  = 2
	maxColumnText = 60
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	baseStyle   = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// TUI shows tables in a scrollable Bubble Tea view when they do not fit the
// terminal. Everything else is printed like SimpleUI.
type TUI struct {
	*SimpleUI
	output io.Writer
	width  int
	height int
}

var _ UI = (*TUI)(nil)

// NewTUI creates a TUI writing to the command output.
func NewTUI(cmd *cobra.Command) *TUI {
	tui := &TUI{SimpleUI: NewSimpleUI(cmd), output: cmd.OutOrStdout()}

	if f, ok := tui.output.(*os.File); ok {
		width, height, err := term.GetSize(int(f.Fd()))
		if err == nil {
			tui.width, tui.height = width, height
		}
	}

	return tui
}

// DisplayModules implements UI.
func (p *TUI) DisplayModules(ctx context.Context, rows []ModuleRow) error {
	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells = append(cells, moduleCells(row))
	}

	return p.show(ctx, "Instrumented modules", modulesHeader, cells, modulesFooter(rows))
}

// DisplayTests implements UI.
func (p *TUI) DisplayTests(ctx context.Context, rows []TestRow) error {
	cells := make([][]string, 0, len(rows))
	ran := 0

	for _, row := range rows {
		cells = append(cells, testCells(row))

		if row.Run {
			ran++
		}
	}

	footer := []string{fmt.Sprintf("Total %d tests", len(rows)), "", fmt.Sprintf("%d run", ran), fmt.Sprintf("%d skipped", len(rows)-ran), ""}

	return p.show(ctx, "Tests", testsHeader, cells, footer)
}

// DisplayReport implements UI.
func (p *TUI) DisplayReport(ctx context.Context, data coverage.Reader) error {
	rows, total := reportRows(data)
	return p.show(ctx, "Coverage", reportHeader, rows, total)
}

func (p *TUI) show(ctx context.Context, title string, header []string, rows [][]string, footer []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	model := newTableModel(title, header, rows, footer, p.width, p.height)

	// Small tables are printed and left on screen.
	if p.height == 0 || len(rows)+chromeHeight+headerHeight <= p.height {
		_, err := fmt.Fprintln(p.output, model.staticView())
		return err
	}

	program := tea.NewProgram(model, tea.WithOutput(p.output), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return err
	}

	return nil
}

// tableModel is a scrollable table with a title and a totals line.
type tableModel struct {
	title  string
	footer string
	table  table.Model
}

func newTableModel(title string, header []string, rows [][]string, footer []string, width, height int) tableModel {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}

	measure := func(cells []string) {
		for i, cell := range cells {
			if i < len(widths) {
				widths[i] = min(max(widths[i], len(cell)), maxColumnText)
			}
		}
	}

	tableRows := make([]table.Row, 0, len(rows))
	for _, row := range rows {
		measure(row)
		tableRows = append(tableRows, table.Row(row))
	}

	measure(footer)

	columns := make([]table.Column, len(header))
	for i, h := range header {
		columns[i] = table.Column{Title: h, Width: widths[i]}
	}

	visible := len(rows)
	if height > chromeHeight+headerHeight {
		visible = min(visible, height-chromeHeight-headerHeight)
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(tableRows),
		table.WithFocused(true),
	)

	if width > 0 {
		t.SetWidth(width - 2)
	}

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(styles)
	t.SetHeight(max(visible, 1) + headerHeight)

	return tableModel{title: title, footer: strings.Join(nonEmpty(footer), "  "), table: t}
}

func nonEmpty(cells []string) []string {
	out := make([]string, 0, len(cells))
	for _, cell := range cells {
		if cell != "" {
			out = append(out, cell)
		}
	}

	return out
}

func (tm tableModel) Init() tea.Cmd {
	return nil
}

func (tm tableModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return tm, tea.Quit
		}
	case tea.WindowSizeMsg:
		tm.table.SetWidth(msg.Width - 2)
		tm.table.SetHeight(max(msg.Height-chromeHeight, headerHeight+1))

		return tm, nil
	}

	var cmd tea.Cmd
	tm.table, cmd = tm.table.Update(msg)

	return tm, cmd
}

func (tm tableModel) View() string {
	return tm.render(footerStyle.Render("↑/↓ scroll • q quit"))
}

func (tm tableModel) staticView() string {
	tm.table.Blur()
	return tm.render("")
}

func (tm tableModel) render(help string) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(tm.title))
	b.WriteString("\n")
	b.WriteString(baseStyle.Render(tm.table.View()))
	b.WriteString("\n")
	b.WriteString(footerStyle.Render(tm.footer))

	if help != "" {
		b.WriteString("\n")
		b.WriteString(help)
	}

	return b.String()
}
