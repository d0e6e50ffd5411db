package model

// Trace is a recorded test session replayed through instrumented modules.
type Trace struct {
	Tests []TraceTest `yaml:"tests"`
}

// TraceTest is one test and the calls it made into instrumented code.
type TraceTest struct {
	Module  ModuleName  `yaml:"module"`
	Name    string      `yaml:"name"`
	Line    uint32      `yaml:"line,omitempty"`
	Outcome string      `yaml:"outcome,omitempty"`
	Calls   []TraceCall `yaml:"calls"`
}

// QualifiedName returns the test-impact key of the test.
func (t TraceTest) QualifiedName() string {
	return QualifiedTestName(t.Module, t.Name)
}

// TraceCall is one invocation of a method: the branch decisions it took in
// order (true = condition held) and the receiver instance for field accesses.
type TraceCall struct {
	Module    ModuleName `yaml:"module"`
	Method    string     `yaml:"method"`
	Decisions []bool     `yaml:"decisions,flow,omitempty"`
	Instance  InstanceID `yaml:"instance,omitempty"`
	Workers   int        `yaml:"workers,omitempty"` // replay concurrently on this many goroutines
}
