// Package controller renders the results of tia commands, as plain tables or
// as an interactive terminal view.
package controller

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"tia.dev/pkg/tia/internal/coverage"
	m "tia.dev/pkg/tia/internal/model"
)

// ModuleRow summarises the instrumentation of one module.
type ModuleRow struct {
	Module    m.ModuleName
	Lines     int
	Segments  int
	Paths     int
	Fields    int
	Truncated int    // methods without path coverage
	Skipped   string // reason the module keeps its original code
}

// TestRow is the decision or outcome of one test.
type TestRow struct {
	Test    string
	State   string
	Run     bool
	Outcome string
	Modules int
}

// MergeSummary describes a merge of coverage files.
type MergeSummary struct {
	Files   int
	Modules int
	Output  m.Path
	Stats   coverage.MergeStats
}

// UI displays the results of the workflows.
type UI interface {
	DisplayModules(ctx context.Context, rows []ModuleRow) error
	DisplayDiff(ctx context.Context, module m.ModuleName, diff string)
	DisplayTests(ctx context.Context, rows []TestRow) error
	DisplayReport(ctx context.Context, data coverage.Reader) error
	DisplayMerge(ctx context.Context, summary MergeSummary)
	DisplayChecks(ctx context.Context, failures []string)
}

// NewUI picks the interactive view for terminals and plain tables otherwise.
func NewUI(cmd *cobra.Command, tty bool) UI {
	if tty {
		return NewTUI(cmd)
	}

	return NewSimpleUI(cmd)
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return term.IsTerminal(int(f.Fd()))
}

func formatPercent(percent int) string {
	if percent < 0 {
		return "n/a"
	}

	return fmt.Sprintf("%d%%", percent)
}

var reportHeader = []string{"Module", "Line", "Segment", "Path", "Data"}

func metricsRow(name string, metrics coverage.Metrics) []string {
	return []string{
		name,
		formatPercent(metrics.Line.Percent()),
		formatPercent(metrics.Segment.Percent()),
		formatPercent(metrics.Path.Percent()),
		formatPercent(metrics.Data.Percent()),
	}
}

// reportRows returns one row per module and the total row.
func reportRows(data coverage.Reader) ([][]string, []string) {
	var rows [][]string

	for file := range data.FilesCovered() {
		rows = append(rows, metricsRow(string(file.Module), file.Metrics()))
	}

	return rows, metricsRow(fmt.Sprintf("Total %d modules", len(rows)), data.Metrics())
}

var modulesHeader = []string{"Module", "Lines", "Segments", "Paths", "Fields", "Note"}

func moduleCells(row ModuleRow) []string {
	note := row.Skipped
	if note == "" && row.Truncated > 0 {
		note = fmt.Sprintf("%d method(s) without paths", row.Truncated)
	}

	return []string{
		string(row.Module),
		fmt.Sprintf("%d", row.Lines),
		fmt.Sprintf("%d", row.Segments),
		fmt.Sprintf("%d", row.Paths),
		fmt.Sprintf("%d", row.Fields),
		note,
	}
}

func modulesFooter(rows []ModuleRow) []string {
	var total ModuleRow
	for _, row := range rows {
		total.Lines += row.Lines
		total.Segments += row.Segments
		total.Paths += row.Paths
		total.Fields += row.Fields
	}

	cells := moduleCells(total)
	cells[0] = fmt.Sprintf("Total %d modules", len(rows))

	return cells
}

var testsHeader = []string{"Test", "State", "Run", "Outcome", "Modules"}

func testCells(row TestRow) []string {
	run := "skip"
	if row.Run {
		run = "run"
	}

	return []string{row.Test, row.State, run, row.Outcome, fmt.Sprintf("%d", row.Modules)}
}
