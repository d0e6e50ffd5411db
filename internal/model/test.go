package model

import (
	"strings"
	"time"
)

// TestID identifies one test execution within a run. Zero means "no test".
type TestID uint64

// NoTest is the id attributed to probes fired outside of any test.
const NoTest TestID = 0

// InstanceID is the stable arena index of an object whose fields are tracked.
type InstanceID uint64

// TestInfo describes the test currently driving the probes.
type TestInfo struct {
	ID     TestID
	Module ModuleName // the test's own compiled form
	Member string     // test function name
	Line   uint32

	// Started is when the test began, or earlier when the code it runs was
	// read before that.
	Started time.Time
}

// QualifiedName is the key used by the test impact store.
func (t TestInfo) QualifiedName() string {
	return QualifiedTestName(t.Module, t.Member)
}

// QualifiedTestName joins a test module and member into a test-impact key.
func QualifiedTestName(module ModuleName, member string) string {
	return string(module) + "#" + member
}

// SplitTestName is the inverse of QualifiedTestName.
func SplitTestName(name string) (ModuleName, string, bool) {
	i := strings.LastIndex(name, "#")
	if i <= 0 || i == len(name)-1 {
		return "", "", false
	}

	return ModuleName(name[:i]), name[i+1:], true
}

// CallPoint records that a line or segment executed during a test.
type CallPoint struct {
	Module     ModuleName // test module
	Member     string     // test member
	SourceLine uint32     // line of the test
	Test       TestID
	Started    time.Time
	Failed     bool
}

// TestName is the qualified name of the test that produced the call point.
func (c CallPoint) TestName() string {
	return QualifiedTestName(c.Module, c.Member)
}

// CallPointFor builds the call point attributed to test, which ended with
// outcome.
func CallPointFor(test TestInfo, outcome Outcome) CallPoint {
	return CallPoint{
		Module:     test.Module,
		Member:     test.Member,
		SourceLine: test.Line,
		Test:       test.ID,
		Started:    test.Started,
		Failed:     outcome != Passed,
	}
}

// Outcome is how a test run ended.
type Outcome int

const (
	// Passed means the test completed successfully.
	Passed Outcome = iota
	// Failed means the test completed with a failure.
	Failed
	// Aborted means the test did not complete; its coverage is discarded.
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ParseOutcome parses the textual form used in trace files.
func ParseOutcome(s string) (Outcome, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pass", "passed", "ok":
		return Passed, true
	case "fail", "failed":
		return Failed, true
	case "abort", "aborted":
		return Aborted, true
	}

	return Passed, false
}
