package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/errgroup"
	"tia.dev/pkg/tia/internal/adapter"
	"tia.dev/pkg/tia/internal/controller"
	"tia.dev/pkg/tia/internal/coverage"
	"tia.dev/pkg/tia/internal/impact"
	m "tia.dev/pkg/tia/internal/model"
)

// CommonArgs are the arguments shared by the commands that scan sources.
type CommonArgs struct {
	Paths   []m.Path
	Exclude []string
	Output  m.Path
	Threads int
}

// ListArgs contains the arguments for listing instrumentable modules.
type ListArgs struct {
	CommonArgs
	Selector SelectorOptions
	MaxPaths int
}

// InstrumentArgs contains the arguments for instrumenting modules.
type InstrumentArgs struct {
	ListArgs
	Diff bool
}

// ReplayArgs contains the arguments for replaying a trace under coverage.
type ReplayArgs struct {
	ListArgs
	Trace         m.Path
	NoCache       bool
	CallPoints    coverage.CallPointMode
	MaxCallPoints int
}

// ReportArgs contains the arguments for the coverage report.
type ReportArgs struct {
	Output m.Path
}

// MergeArgs contains the arguments for merging coverage files.
type MergeArgs struct {
	Files  []m.Path // newest first
	Output m.Path
}

// CheckArgs contains the arguments for coverage checks.
type CheckArgs struct {
	Output     m.Path
	Thresholds []string
}

// ImpactArgs contains the arguments for test-impact decisions.
type ImpactArgs struct {
	Output  m.Path
	Tests   []string
	Rebuild bool
}

// Workflow is what the commands drive.
type Workflow interface {
	List(ctx context.Context, args ListArgs) error
	Instrument(ctx context.Context, args InstrumentArgs) error
	Replay(ctx context.Context, args ReplayArgs) error
	Report(ctx context.Context, args ReportArgs) error
	Merge(ctx context.Context, args MergeArgs) error
	Check(ctx context.Context, args CheckArgs) error
	Impact(ctx context.Context, args ImpactArgs) error
}

// Loader is a ModuleLoader the workflow can also load modules into and run
// them from.
type Loader interface {
	adapter.ModuleLoader
	LoadedModules
	Load(module m.ModuleName, original []byte) error
}

// WorkflowDeps are the collaborators of the workflow.
type WorkflowDeps struct {
	SourceFS      adapter.SourceFSAdapter
	GoFile        adapter.GoFileAdapter
	Codec         adapter.ModuleCodec
	CoverageStore adapter.CoverageStore
	ImpactFile    adapter.ImpactFile
	TraceReader   adapter.TraceReader
	UI            controller.UI
	Times         impact.ModTimes
	NewLoader     func(output m.Path) Loader
	Now           func() time.Time
}

type workflow struct {
	WorkflowDeps
	streamer ModuleStreamer
}

// NewWorkflow creates a Workflow.
func NewWorkflow(deps WorkflowDeps) Workflow {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	if deps.NewLoader == nil {
		deps.NewLoader = func(output m.Path) Loader {
			return adapter.NewLocalModuleLoader(output)
		}
	}

	return &workflow{
		WorkflowDeps: deps,
		streamer:     NewModuleStreamer(deps.SourceFS, deps.GoFile, deps.Codec),
	}
}

func (w *workflow) compile(ctx context.Context, args CommonArgs) ([]CompiledModule, error) {
	ch, err := w.streamer.Get(ctx, args.Paths, args.Exclude, args.Threads)
	if err != nil {
		return nil, err
	}

	return CollectModules(ctx, ch)
}

// List instruments every selected module in memory and shows what it would probe.
func (w *workflow) List(ctx context.Context, args ListArgs) error {
	selector, err := NewModuleSelector(args.Selector)
	if err != nil {
		return err
	}

	modules, err := w.compile(ctx, args.CommonArgs)
	if err != nil {
		return fmt.Errorf("compile modules: %w", err)
	}

	instrumenter := NewInstrumenter(w.Codec, args.MaxPaths)
	rows := make([]controller.ModuleRow, 0, len(modules))

	for _, compiled := range modules {
		if !selector.ShouldInstrument(compiled.Source.Module, compiled.Source.Origin.FullPath) {
			continue
		}

		result, err := instrumenter.Instrument(compiled.Bytes)
		if err != nil {
			rows = append(rows, controller.ModuleRow{Module: compiled.Source.Module, Skipped: err.Error()})
			continue
		}

		selector.MarkInstrumented(compiled.Source.Module)
		rows = append(rows, moduleRow(result))
	}

	return w.UI.DisplayModules(ctx, rows)
}

// Instrument loads the selected modules and swaps in their instrumented form.
func (w *workflow) Instrument(ctx context.Context, args InstrumentArgs) error {
	selector, err := NewModuleSelector(args.Selector)
	if err != nil {
		return err
	}

	modules, err := w.compile(ctx, args.CommonArgs)
	if err != nil {
		return fmt.Errorf("compile modules: %w", err)
	}

	loader := w.NewLoader(args.Output)
	instrumenter := NewInstrumenter(w.Codec, args.MaxPaths)
	rows := make([]controller.ModuleRow, 0, len(modules))

	for _, compiled := range modules {
		name := compiled.Source.Module
		if !selector.ShouldInstrument(name, compiled.Source.Origin.FullPath) {
			continue
		}

		if err := loader.Load(name, compiled.Bytes); err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}

		result, err := instrumenter.Instrument(compiled.Bytes)
		if err != nil {
			slog.Warn("Module keeps its original code", "module", name, "error", err)
			rows = append(rows, controller.ModuleRow{Module: name, Skipped: err.Error()})

			continue
		}

		selector.MarkInstrumented(name)

		if err := loader.ApplyRewrite(name, result.Bytes); err != nil {
			return fmt.Errorf("rewrite %s: %w", name, err)
		}

		if args.Diff {
			diff, err := unifiedDiff(name, compiled.Bytes, result.Bytes)
			if err != nil {
				return fmt.Errorf("diff %s: %w", name, err)
			}

			w.UI.DisplayDiff(ctx, name, diff)
		}

		rows = append(rows, moduleRow(result))
	}

	return w.UI.DisplayModules(ctx, rows)
}

func unifiedDiff(module m.ModuleName, original, rewritten []byte) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(original)),
		B:        difflib.SplitLines(string(rewritten)),
		FromFile: string(module),
		ToFile:   string(module) + " (instrumented)",
		Context:  3,
	})
}

func moduleRow(result *Instrumented) controller.ModuleRow {
	row := controller.ModuleRow{
		Module:    result.Coverage.Module,
		Lines:     len(result.Coverage.Lines),
		Fields:    len(result.Coverage.Fields),
		Truncated: len(result.Truncated),
	}

	for _, line := range result.Coverage.Lines {
		row.Segments += len(line.Segments)
	}

	for _, method := range result.Coverage.Methods {
		row.Paths += len(method.Paths)
	}

	return row
}

// Replay runs the tests of a trace through instrumented modules. Tests whose
// record is still valid are skipped. Coverage and test-impact records are
// merged and persisted when all tests are done.
func (w *workflow) Replay(ctx context.Context, args ReplayArgs) error {
	trace, err := w.TraceReader.ReadTrace(args.Trace)
	if err != nil {
		return err
	}

	selector, err := NewModuleSelector(args.Selector)
	if err != nil {
		return err
	}

	loader := w.NewLoader(args.Output)
	session := OpenSession(SessionDeps{
		Loader:        loader,
		Instrumenter:  NewInstrumenter(w.Codec, args.MaxPaths),
		Selector:      selector,
		CoverageStore: w.CoverageStore,
		ImpactFile:    w.ImpactFile,
	}, SessionOptions{
		Output:        args.Output,
		NoCache:       args.NoCache,
		CallPoints:    args.CallPoints,
		MaxCallPoints: args.MaxCallPoints,
		Times:         w.Times,
		Now:           w.Now,
	})

	rows, runErr := w.replayTests(ctx, args, trace, session, loader)

	if _, err := session.Close(); err != nil {
		runErr = errors.Join(runErr, err)
	}

	if runErr != nil {
		return runErr
	}

	return w.UI.DisplayTests(ctx, rows)
}

func (w *workflow) replayTests(ctx context.Context, args ReplayArgs, trace m.Trace, session *Session, loader Loader) ([]controller.TestRow, error) {
	modules, err := w.compile(ctx, args.CommonArgs)
	if err != nil {
		return nil, fmt.Errorf("compile modules: %w", err)
	}

	for _, compiled := range modules {
		if err := loader.Load(compiled.Source.Module, compiled.Bytes); err != nil {
			return nil, fmt.Errorf("load %s: %w", compiled.Source.Module, err)
		}
	}

	executor := NewExecutor(loader, w.Codec, session.Registry())
	rows := make([]controller.TestRow, len(trace.Tests))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(normalizeThreads(args.Threads))

	for i, test := range trace.Tests {
		name := test.QualifiedName()

		if !session.ShouldRun(name) {
			rows[i] = controller.TestRow{Test: name, State: session.Store().State(name).String()}
			slog.Debug("Test skipped", "test", name)

			continue
		}

		group.Go(func() error {
			rows[i] = runTest(groupCtx, session, executor, test)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return rows, err
	}

	return rows, ctx.Err()
}

func runTest(ctx context.Context, session *Session, executor *Executor, test m.TraceTest) controller.TestRow {
	name := test.QualifiedName()
	row := controller.TestRow{Test: name, Run: true}

	ctx, run, err := session.BeginTest(ctx, m.TestInfo{Module: test.Module, Member: test.Name, Line: test.Line})
	if err != nil {
		row.Outcome = m.Aborted.String()
		return row
	}

	outcome, _ := m.ParseOutcome(test.Outcome)

	if err := executor.Replay(ctx, test); err != nil {
		outcome = m.Failed
		if ctx.Err() != nil {
			outcome = m.Aborted
		}

		slog.Warn("Test replay failed", "test", name, "outcome", outcome, "error", err)
	}

	row.Modules = len(run.End(outcome))
	row.Outcome = outcome.String()
	row.State = session.Store().State(name).String()

	return row
}

func coveragePath(output m.Path) m.Path {
	return m.Path(filepath.Join(string(output), CoverageFileName))
}

func (w *workflow) loadCoverage(path m.Path) (*coverage.Data, error) {
	data, err := w.CoverageStore.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoCoverageFiles, path)
	}

	return data, err
}

// Report shows the persisted coverage.
func (w *workflow) Report(ctx context.Context, args ReportArgs) error {
	data, err := w.loadCoverage(coveragePath(args.Output))
	if err != nil {
		return err
	}

	return w.UI.DisplayReport(ctx, data)
}

// Merge folds coverage files, newest first, into the output coverage file.
func (w *workflow) Merge(ctx context.Context, args MergeArgs) error {
	if len(args.Files) == 0 {
		return ErrNoCoverageFiles
	}

	current, err := w.loadCoverage(args.Files[0])
	if err != nil {
		return err
	}

	var total coverage.MergeStats

	for _, file := range args.Files[1:] {
		if err := ctx.Err(); err != nil {
			return err
		}

		previous, err := w.loadCoverage(file)
		if err != nil {
			return err
		}

		stats := current.MergePrevious(previous)
		total.CarriedModules += stats.CarriedModules
		total.CarriedLines += stats.CarriedLines
		total.StaleModules += stats.StaleModules
		total.NewlyCovered += stats.NewlyCovered
	}

	output := coveragePath(args.Output)
	if err := w.CoverageStore.Save(output, current); err != nil {
		return err
	}

	w.UI.DisplayMerge(ctx, controller.MergeSummary{
		Files:   len(args.Files),
		Modules: len(current.Modules),
		Output:  output,
		Stats:   total,
	})

	return nil
}

// Check verifies the persisted coverage against the thresholds.
func (w *workflow) Check(ctx context.Context, args CheckArgs) error {
	data, err := w.loadCoverage(coveragePath(args.Output))
	if err != nil {
		return err
	}

	failures, err := RunChecks(data, args.Thresholds, args.Output)

	messages := make([]string, 0, len(failures))
	for _, failure := range failures {
		messages = append(messages, failure.String())
	}

	if len(failures) > 0 || err == nil {
		w.UI.DisplayChecks(ctx, messages)
	}

	return err
}

// Impact shows whether each test would run. With Rebuild the records are
// first derived from the call points of the persisted coverage and saved.
func (w *workflow) Impact(ctx context.Context, args ImpactArgs) error {
	store := impact.NewStore(w.Times)
	path := m.Path(filepath.Join(string(args.Output), ImpactFileName))

	if args.Rebuild {
		data, err := w.loadCoverage(coveragePath(args.Output))
		if err != nil {
			return err
		}

		count := store.Rebuild(data)
		if err := w.ImpactFile.Save(path, store.Entries()); err != nil {
			return err
		}

		slog.Info("Test impact records rebuilt", "tests", count, "path", path)
	} else {
		entries, err := w.ImpactFile.Load(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		store.Load(entries)
	}

	tests := args.Tests
	if len(tests) == 0 {
		for _, entry := range store.Entries() {
			tests = append(tests, entry.Test)
		}
	}

	rows := make([]controller.TestRow, 0, len(tests))

	for _, test := range tests {
		entry, _ := store.Entry(test)
		run := store.ShouldRun(test)

		rows = append(rows, controller.TestRow{
			Test:    test,
			State:   store.State(test).String(),
			Run:     run,
			Modules: len(entry.Modules),
		})
	}

	return w.UI.DisplayTests(ctx, rows)
}
