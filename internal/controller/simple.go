package controller

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"tia.dev/pkg/tia/internal/coverage"
	m "tia.dev/pkg/tia/internal/model"
)

// SimpleUI implements UI with plain tables written to the command output.
type SimpleUI struct {
	cmd *cobra.Command
}

var _ UI = (*SimpleUI)(nil)

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// DisplayModules prints the instrumentation summary of each module.
func (s *SimpleUI) DisplayModules(ctx context.Context, rows []ModuleRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells = append(cells, moduleCells(row))
	}

	s.printf("\n%s", renderTable(modulesHeader, cells, modulesFooter(rows)))

	return nil
}

// DisplayDiff prints the unified diff of a rewritten module.
func (s *SimpleUI) DisplayDiff(ctx context.Context, _ m.ModuleName, diff string) {
	if ctx.Err() != nil || diff == "" {
		return
	}

	s.printf("%s\n", strings.TrimRight(diff, "\n"))
}

// DisplayTests prints test decisions and outcomes.
func (s *SimpleUI) DisplayTests(ctx context.Context, rows []TestRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cells := make([][]string, 0, len(rows))
	ran := 0

	for _, row := range rows {
		cells = append(cells, testCells(row))

		if row.Run {
			ran++
		}
	}

	footer := []string{fmt.Sprintf("Total %d tests", len(rows)), "", fmt.Sprintf("%d run", ran), fmt.Sprintf("%d skipped", len(rows)-ran), ""}
	s.printf("\n%s", renderTable(testsHeader, cells, footer))

	return nil
}

// DisplayReport prints per-module coverage percentages.
func (s *SimpleUI) DisplayReport(ctx context.Context, data coverage.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rows, total := reportRows(data)
	s.printf("\n%s", renderTable(reportHeader, rows, total))

	return nil
}

// DisplayMerge prints what a merge did.
func (s *SimpleUI) DisplayMerge(ctx context.Context, summary MergeSummary) {
	if ctx.Err() != nil {
		return
	}

	s.printf("Merged %d file(s) into %s: %d modules, %d carried modules, %d carried lines, %d stale modules, %d newly covered lines\n",
		summary.Files, summary.Output, summary.Modules,
		summary.Stats.CarriedModules, summary.Stats.CarriedLines, summary.Stats.StaleModules, summary.Stats.NewlyCovered)
}

// DisplayChecks prints failed coverage checks, or that all passed.
func (s *SimpleUI) DisplayChecks(ctx context.Context, failures []string) {
	if ctx.Err() != nil {
		return
	}

	if len(failures) == 0 {
		s.printf("All coverage checks passed\n")
		return
	}

	for _, failure := range failures {
		s.printf("%s\n", failure)
	}
}

func (s *SimpleUI) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}

func renderTable(header []string, rows [][]string, footer []string) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)

	alignment := make([]int, len(header))
	for i := range alignment {
		alignment[i] = tablewriter.ALIGN_RIGHT
	}

	alignment[0] = tablewriter.ALIGN_LEFT
	table.SetColumnAlignment(alignment)

	table.AppendBulk(rows)

	if footer != nil {
		table.SetFooter(footer)
	}

	table.Render()

	return tableBuffer.String()
}
