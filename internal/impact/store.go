// Package impact decides which tests must run again, from the modules each
// test touched when it last passed.
package impact

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"tia.dev/pkg/tia/internal/coverage"
	m "tia.dev/pkg/tia/internal/model"
)

// State is the selective-execution state of a test.
type State int

const (
	// Unknown means there is no record: the test runs.
	Unknown State = iota
	// Stale means the record is outdated or unusable: the test runs.
	Stale
	// Fresh means the test passed and its record is current.
	Fresh
	// Skipped means the record is still valid: the test does not run.
	Skipped
)

func (s State) String() string {
	switch s {
	case Stale:
		return "stale"
	case Fresh:
		return "fresh"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Entry is the persisted record of one test.
type Entry struct {
	Test      string
	Timestamp time.Time
	Modules   []m.ModuleName
	Malformed bool // kept so the test resolves to Stale
}

// ModTimes reports when a module, or a test's own module, last changed.
type ModTimes interface {
	ModTime(module m.ModuleName) (time.Time, error)
}

// Store holds the records and the per-test states of the current run.
type Store struct {
	mu      sync.Mutex
	times   ModTimes
	entries map[string]Entry
	states  map[string]State
}

// NewStore creates an empty store consulting times for modification times.
func NewStore(times ModTimes) *Store {
	return &Store{
		times:   times,
		entries: map[string]Entry{},
		states:  map[string]State{},
	}
}

// Load replaces the records with entries.
func (s *Store) Load(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]Entry, len(entries))
	for _, entry := range entries {
		s.entries[entry.Test] = entry
	}
}

// Entries returns the records ordered by test name.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.entries))
	for _, name := range slices.Sorted(maps.Keys(s.entries)) {
		entries = append(entries, s.entries[name])
	}

	return entries
}

// Entry returns the record of test.
func (s *Store) Entry(test string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[test]

	return entry, ok
}

// State returns the state test is in during this run.
func (s *Store) State(test string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.states[test]; ok {
		return state
	}

	if _, ok := s.entries[test]; ok {
		return Fresh
	}

	return Unknown
}

// ShouldRun reports whether test has to run. Any doubt resolves to running
// it; a stale record is deleted.
func (s *Store) ShouldRun(test string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[test]
	if !ok {
		s.states[test] = Unknown
		return true
	}

	if err := s.validate(entry); err != nil {
		slog.Debug("Test must run", "test", test, "reason", err)
		delete(s.entries, test)
		s.states[test] = Stale

		return true
	}

	s.states[test] = Skipped

	return false
}

func (s *Store) validate(entry Entry) error {
	if entry.Malformed {
		return errors.New("malformed record")
	}

	own, _, ok := m.SplitTestName(entry.Test)
	if !ok {
		return errors.New("unqualified test name")
	}

	if s.times == nil {
		return errors.New("no modification times available")
	}

	for _, module := range append([]m.ModuleName{own}, entry.Modules...) {
		modified, err := s.times.ModTime(module)
		if err != nil {
			return fmt.Errorf("module %s: %w", module, err)
		}

		if modified.After(entry.Timestamp) {
			return fmt.Errorf("module %s changed at %s", module, modified.Format(time.RFC3339Nano))
		}
	}

	return nil
}

// Complete records how test ended. A passed test that touched modules becomes
// Fresh with a record timestamped at its start; a failed test loses its
// record; an aborted test is left as it was.
func (s *Store) Complete(test string, outcome m.Outcome, started time.Time, modules []m.ModuleName) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch outcome {
	case m.Passed:
		s.states[test] = Fresh

		if len(modules) == 0 {
			delete(s.entries, test)
			return
		}

		s.entries[test] = Entry{
			Test:      test,
			Timestamp: started.Truncate(time.Millisecond),
			Modules:   sortedModules(modules),
		}
	case m.Failed:
		s.states[test] = Stale
		delete(s.entries, test)
	case m.Aborted:
	}
}

// Forget deletes the record of test.
func (s *Store) Forget(test string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, test)
	delete(s.states, test)
}

// Rebuild replaces the records with those derived from the call points of
// data. A test gets a record only when every call point it left comes from a
// passed run with a known start; the record is stamped with the earliest of
// those starts. It returns the number of records.
func (s *Store) Rebuild(data *coverage.Data) int {
	type rebuilt struct {
		started  time.Time
		modules  map[m.ModuleName]bool
		unusable bool
	}

	tests := map[string]*rebuilt{}

	for file := range data.FilesCovered() {
		for _, point := range file.AllCallPoints() {
			name := point.TestName()

			test, ok := tests[name]
			if !ok {
				test = &rebuilt{started: point.Started, modules: map[m.ModuleName]bool{}}
				tests[name] = test
			}

			test.modules[file.Module] = true

			if point.Failed || point.Started.IsZero() {
				test.unusable = true
			}

			if point.Started.Before(test.started) {
				test.started = point.Started
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]Entry, len(tests))
	for name, test := range tests {
		if test.unusable {
			slog.Debug("No record rebuilt", "test", name, "reason", "failed or undated call point")
			continue
		}

		s.entries[name] = Entry{
			Test:      name,
			Timestamp: test.started.Truncate(time.Millisecond),
			Modules:   slices.Sorted(maps.Keys(test.modules)),
		}
	}

	return len(s.entries)
}

func sortedModules(modules []m.ModuleName) []m.ModuleName {
	out := slices.Clone(modules)
	slices.Sort(out)

	return slices.Compact(out)
}
