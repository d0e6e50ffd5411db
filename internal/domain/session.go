package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"tia.dev/pkg/tia/internal/adapter"
	"tia.dev/pkg/tia/internal/coverage"
	"tia.dev/pkg/tia/internal/impact"
	m "tia.dev/pkg/tia/internal/model"
)

const (
	// CoverageFileName is the coverage file inside the output directory.
	CoverageFileName = "coverage.gob"
	// ImpactFileName is the test-impact file inside the output directory.
	ImpactFileName = "impact.txt"
)

// SessionOptions configures a Session.
type SessionOptions struct {
	Output        m.Path // directory of the coverage and test-impact files
	NoCache       bool   // run every test
	CallPoints    coverage.CallPointMode
	MaxCallPoints int
	Times         impact.ModTimes
	Now           func() time.Time
}

// SessionDeps are the collaborators of a Session.
type SessionDeps struct {
	Loader        adapter.ModuleLoader
	Instrumenter  Instrumenter
	Selector      *ModuleSelector
	CoverageStore adapter.CoverageStore
	ImpactFile    adapter.ImpactFile
}

// Session owns the probe registry, the coverage data and the test-impact
// store of one run. It is opened before modules load and closed once the
// tests are done.
type Session struct {
	SessionDeps

	id       string
	opts     SessionOptions
	log      *slog.Logger
	registry *coverage.Registry
	store    *impact.Store
	previous *coverage.Data
	opened   time.Time

	mu       sync.Mutex
	modules  map[m.ModuleName]*Instrumented
	inflight map[*TestRun]struct{}
	closed   bool
}

// OpenSession loads the previous generation of coverage and the test-impact
// records, then hooks instrumentation into future module loads. Unreadable
// files are logged and replaced by empty data.
func OpenSession(deps SessionDeps, opts SessionOptions) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Session{
		SessionDeps: deps,
		id:          uuid.NewString(),
		opts:        opts,
		registry:    coverage.NewRegistry(coverage.NewData(), coverage.Options{CallPoints: opts.CallPoints, MaxCallPoints: opts.MaxCallPoints}),
		store:       impact.NewStore(opts.Times),
		modules:     map[m.ModuleName]*Instrumented{},
		inflight:    map[*TestRun]struct{}{},
	}
	s.opened = opts.Now()
	s.log = slog.Default().With("run", s.id)

	s.previous = s.loadPrevious()
	s.loadImpact()

	if s.Loader != nil {
		s.Loader.OnFutureLoad(func(module m.ModuleName) bool {
			return s.Selector == nil || s.Selector.ShouldInstrument(module, "")
		}, s.rewrite)
	}

	s.log.Debug("Coverage session opened", "output", opts.Output, "previous", len(s.previous.Modules))

	return s
}

// ID returns the run id.
func (s *Session) ID() string {
	return s.id
}

// Registry returns the probe registry modules report to.
func (s *Session) Registry() *coverage.Registry {
	return s.registry
}

// Store returns the test-impact store.
func (s *Session) Store() *impact.Store {
	return s.store
}

// CoveragePath is where the session persists coverage.
func (s *Session) CoveragePath() m.Path {
	return m.Path(filepath.Join(string(s.opts.Output), CoverageFileName))
}

// ImpactPath is where the session persists test-impact records.
func (s *Session) ImpactPath() m.Path {
	return m.Path(filepath.Join(string(s.opts.Output), ImpactFileName))
}

func (s *Session) loadPrevious() *coverage.Data {
	if s.CoverageStore == nil {
		return coverage.NewData()
	}

	data, err := s.CoverageStore.Load(s.CoveragePath())
	if err != nil {
		s.log.Warn("No previous coverage, starting empty", "path", s.CoveragePath(), "error", err)
		return coverage.NewData()
	}

	return data
}

func (s *Session) loadImpact() {
	if s.ImpactFile == nil {
		return
	}

	entries, err := s.ImpactFile.Load(s.ImpactPath())
	if err != nil {
		s.log.Warn("No test impact records, every test runs", "path", s.ImpactPath(), "error", err)
		return
	}

	s.store.Load(entries)
}

// Instrument instruments the original bytes of module and makes its probes
// live. It is the rewrite hook registered with the module loader.
func (s *Session) Instrument(module m.ModuleName, original []byte) (*Instrumented, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, ErrSessionClosed
	}

	result, err := s.Instrumenter.Instrument(original)
	if err != nil {
		s.log.Warn("Module keeps its original code", "module", module, "error", err)
		return nil, err
	}

	if result.Coverage.Module != module {
		return nil, fmt.Errorf("%w: loaded as %s but named %s", ErrNotInstrumentable, module, result.Coverage.Module)
	}

	s.registry.Register(result.Coverage, result.Module.Structure)

	if s.Selector != nil {
		s.Selector.MarkInstrumented(module)
	}

	s.mu.Lock()
	s.modules[module] = result
	s.mu.Unlock()

	return result, nil
}

func (s *Session) rewrite(module m.ModuleName, original []byte) ([]byte, error) {
	result, err := s.Instrument(module, original)
	if err != nil {
		return nil, err
	}

	return result.Bytes, nil
}

// Attach instruments a module that was loaded before the session opened and
// swaps its code in place. Modules the selector rejects are left alone.
func (s *Session) Attach(module m.ModuleName, origin m.Path, original []byte) error {
	if s.Selector != nil && !s.Selector.ShouldInstrument(module, origin) {
		return nil
	}

	if s.Loader == nil {
		return fmt.Errorf("%w: %s", ErrNoLoader, module)
	}

	if !s.Loader.IsLoaded(module) {
		return fmt.Errorf("%w: %s", adapter.ErrNotLoaded, module)
	}

	result, err := s.Instrument(module, original)
	if err != nil {
		return err
	}

	return s.Loader.ApplyRewrite(module, result.Bytes)
}

// Instrumented returns the instrumentation result of module.
func (s *Session) Instrumented(module m.ModuleName) (*Instrumented, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, ok := s.modules[module]

	return result, ok
}

// ShouldRun answers the scheduler: false only when the test passed before
// and nothing it touched has changed since.
func (s *Session) ShouldRun(test string) bool {
	if s.opts.NoCache {
		return true
	}

	return s.store.ShouldRun(test)
}

// TestRun is one test executing under the session.
type TestRun struct {
	session *Session
	scope   *coverage.Scope
	started time.Time
	once    sync.Once
}

// BeginTest starts attributing probe hits made with the returned context to test.
// The test's start is taken no later than the session opening, since the
// modules it runs may have been read from then on.
func (s *Session) BeginTest(ctx context.Context, test m.TestInfo) (context.Context, *TestRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ctx, nil, ErrSessionClosed
	}

	test.Started = s.opts.Now()
	if s.opened.Before(test.Started) {
		test.Started = s.opened
	}

	ctx, scope := s.registry.BeginTest(ctx, test)
	run := &TestRun{session: s, scope: scope, started: test.Started}
	s.inflight[run] = struct{}{}

	return ctx, run, nil
}

// Test returns the test being run.
func (r *TestRun) Test() m.TestInfo {
	return r.scope.Test()
}

// End completes the test. Passed and failed tests commit their coverage;
// aborted tests drop it. It returns the modules the test touched.
func (r *TestRun) End(outcome m.Outcome) []m.ModuleName {
	var touched []m.ModuleName

	r.once.Do(func() {
		s := r.session
		name := r.Test().QualifiedName()

		touched = r.scope.End(outcome)

		s.store.Complete(name, outcome, r.started, touched)

		s.mu.Lock()
		delete(s.inflight, r)
		s.mu.Unlock()

		s.log.Debug("Test ended", "test", name, "outcome", outcome, "modules", len(touched))
	})

	return touched
}

// Close aborts the tests still running, merges the coverage with the previous
// generation and persists coverage and test-impact records. Write failures
// are joined and returned.
func (s *Session) Close() (coverage.MergeStats, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return coverage.MergeStats{}, ErrSessionClosed
	}

	s.closed = true

	inflight := make([]*TestRun, 0, len(s.inflight))
	for run := range s.inflight {
		inflight = append(inflight, run)
	}
	s.mu.Unlock()

	for _, run := range inflight {
		s.log.Warn("Test still running at close, discarding its coverage", "test", run.Test().QualifiedName())
		run.End(m.Aborted)
	}

	s.registry.Flush()

	data := s.registry.Data()
	stats := data.MergePrevious(s.previous)

	var errs []error

	if s.CoverageStore != nil {
		if err := s.CoverageStore.Save(s.CoveragePath(), data); err != nil {
			errs = append(errs, fmt.Errorf("save coverage: %w", err))
		}
	}

	if s.ImpactFile != nil {
		if err := s.ImpactFile.Save(s.ImpactPath(), s.store.Entries()); err != nil {
			errs = append(errs, fmt.Errorf("save test impact: %w", err))
		}
	}

	if unmatched := s.registry.Unmatched(); unmatched > 0 {
		s.log.Warn("Invocations matched no path", "count", unmatched)
	}

	s.log.Info("Coverage session closed",
		"modules", len(data.Modules),
		"carried_modules", stats.CarriedModules,
		"carried_lines", stats.CarriedLines,
		"stale_modules", stats.StaleModules,
		"newly_covered", stats.NewlyCovered,
	)

	return stats, errors.Join(errs...)
}
