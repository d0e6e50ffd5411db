package model

// ProbeKind tells what a probe site counts.
type ProbeKind string

const (
	// ProbeLine counts entries into a block's line.
	ProbeLine ProbeKind = "line"
	// ProbeSegment counts one outcome of a conditional line.
	ProbeSegment ProbeKind = "segment"
	// ProbeFieldRead counts reads of a tracked field.
	ProbeFieldRead ProbeKind = "field-read"
	// ProbeFieldWrite counts writes of a tracked field.
	ProbeFieldWrite ProbeKind = "field-write"
	// ProbeMethod counts method invocations.
	ProbeMethod ProbeKind = "method"
)

// ProbeSite is one counting operation inserted into a rewritten module.
type ProbeSite struct {
	Kind    ProbeKind `yaml:"kind"`
	Method  int       `yaml:"method"`
	Block   int       `yaml:"block"`
	Line    uint32    `yaml:"line"`
	Segment int       `yaml:"segment,omitempty"`
	Jump    bool      `yaml:"jump,omitempty"`
	Field   string    `yaml:"field,omitempty"`
}

// InstrumentedModule is the rewritten form of a module: its structure plus the
// probes a loader must honour when executing it.
type InstrumentedModule struct {
	Instrumented bool            `yaml:"instrumented"`
	Fingerprint  string          `yaml:"fingerprint"`
	Structure    ModuleStructure `yaml:"structure"`
	Probes       []ProbeSite     `yaml:"probes"`
}

// SegmentProbe returns the segment probe fired when block of method takes the
// given outcome.
func (im *InstrumentedModule) SegmentProbe(method, block int, jump bool) (ProbeSite, bool) {
	for _, probe := range im.Probes {
		if probe.Kind == ProbeSegment && probe.Method == method && probe.Block == block && probe.Jump == jump {
			return probe, true
		}
	}

	return ProbeSite{}, false
}
