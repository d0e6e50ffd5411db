// Package domain holds the coverage engine of tia: module selection,
// instrumentation, trace replay, coverage sessions and the workflows the
// commands drive.
package domain

import "errors"

var (
	// ErrNotInstrumentable is returned for modules that must keep their
	// original code, such as modules that are already instrumented.
	ErrNotInstrumentable = errors.New("module cannot be instrumented")
	// ErrSessionClosed is returned by a session after Close.
	ErrSessionClosed = errors.New("coverage session closed")
	// ErrNoLoader is returned when a session without a module loader is asked
	// to swap module code.
	ErrNoLoader = errors.New("no module loader")
	// ErrThresholdsNotMet is returned when a coverage check fails.
	ErrThresholdsNotMet = errors.New("minimum coverage percentages not reached")
	// ErrNoCoverageFiles is returned when there is no coverage data to work on.
	ErrNoCoverageFiles = errors.New("no coverage files")
)
