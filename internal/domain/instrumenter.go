package domain

import (
	"crypto/sha256"
	"fmt"
	"log/slog"

	"tia.dev/pkg/tia/internal/adapter"
	"tia.dev/pkg/tia/internal/coverage"
	m "tia.dev/pkg/tia/internal/model"
)

// DefaultMaxPaths bounds the paths enumerated per method.
const DefaultMaxPaths = 4096

// Instrumented is the result of instrumenting one module.
type Instrumented struct {
	Coverage *coverage.ModuleCoverage
	Module   m.InstrumentedModule
	Bytes    []byte
	// Truncated lists the methods whose paths exceeded the limit.
	Truncated []string
}

// Instrumenter builds coverage metadata and the rewritten form of modules.
type Instrumenter interface {
	Instrument(original []byte) (*Instrumented, error)
}

type instrumenter struct {
	codec    adapter.ModuleCodec
	maxPaths int
}

// NewInstrumenter creates an Instrumenter decoding modules with codec. A
// maxPaths <= 0 selects DefaultMaxPaths.
func NewInstrumenter(codec adapter.ModuleCodec, maxPaths int) Instrumenter {
	if maxPaths <= 0 {
		maxPaths = DefaultMaxPaths
	}

	return &instrumenter{codec: codec, maxPaths: maxPaths}
}

// Instrument implements Instrumenter. Malformed modules fail with
// m.ErrMalformedModule and modules that already carry probes with
// ErrNotInstrumentable; callers keep the original bytes in both cases.
func (i *instrumenter) Instrument(original []byte) (*Instrumented, error) {
	decoded, err := i.codec.DecodeInstrumented(original)
	if err != nil {
		return nil, err
	}

	if decoded.Instrumented {
		return nil, fmt.Errorf("%w: %s is already instrumented", ErrNotInstrumentable, decoded.Structure.Module)
	}

	structure := decoded.Structure

	canonical, err := i.codec.EncodeStructure(structure)
	if err != nil {
		return nil, err
	}

	result := &Instrumented{
		Coverage: coverage.NewModuleCoverage(structure.Module, structure.Origin, fmt.Sprintf("%x", sha256.Sum256(canonical))),
	}

	for _, field := range structure.Fields {
		result.Coverage.Fields[field.Name] = &coverage.FieldCoverage{Name: field.Name, Static: field.Static}
	}

	var probes []m.ProbeSite

	// A line is unreachable only if none of its blocks is reachable.
	reachable := map[uint32]bool{}

	for index, method := range structure.Methods {
		methodProbes, truncated := i.method(result.Coverage, reachable, index, method)
		probes = append(probes, methodProbes...)

		if truncated {
			result.Truncated = append(result.Truncated, method.Name)
		}
	}

	for line, ok := range reachable {
		result.Coverage.Lines[line].Unreachable = !ok
	}

	result.Module = m.InstrumentedModule{
		Instrumented: true,
		Fingerprint:  result.Coverage.Fingerprint,
		Structure:    structure,
		Probes:       probes,
	}

	result.Bytes, err = i.codec.EncodeInstrumented(result.Module)
	if err != nil {
		return nil, err
	}

	slog.Debug("Instrumented module", "module", structure.Module, "methods", len(structure.Methods), "probes", len(probes))

	return result, nil
}

func (i *instrumenter) method(mc *coverage.ModuleCoverage, reachable map[uint32]bool, index int, method m.Method) ([]m.ProbeSite, bool) {
	graph := coverage.NewGraph(method)
	first := method.FirstLine()

	probes := []m.ProbeSite{{Kind: m.ProbeMethod, Method: index, Line: first}}

	for b, block := range method.Blocks {
		lc := mc.Line(block.Line)
		reachable[block.Line] = reachable[block.Line] || graph.Reachable(b)

		probes = append(probes, m.ProbeSite{Kind: m.ProbeLine, Method: index, Block: b, Line: block.Line})

		for _, access := range block.Fields {
			if _, ok := mc.Fields[access.Field]; !ok {
				slog.Debug("Access to undeclared field", "module", mc.Module, "field", access.Field)
				continue
			}

			kind := m.ProbeFieldRead
			if access.Write {
				kind = m.ProbeFieldWrite
			}

			probes = append(probes, m.ProbeSite{Kind: kind, Method: index, Block: b, Line: block.Line, Field: access.Field})
		}

		if block.Conditional {
			probes = append(probes, segments(lc, index, b, block, graph.Reachable(b))...)
		}
	}

	record := &coverage.MethodCoverage{Name: method.Name, FirstLine: first, LastLine: method.LastLine}

	paths, ok := graph.EnumeratePaths(i.maxPaths)
	if ok {
		record.Paths = paths
	} else {
		slog.Warn("Too many paths, method keeps no path coverage", "module", mc.Module, "method", method.Name, "limit", i.maxPaths)
	}

	if record.LastLine == 0 {
		for _, block := range method.Blocks {
			record.LastLine = max(record.LastLine, block.Line)
		}
	}

	if _, dup := mc.Methods[first]; dup {
		slog.Warn("Two methods start on the same line, keeping the first", "module", mc.Module, "method", method.Name, "line", first)
	} else {
		mc.Methods[first] = record
	}

	return probes, !ok
}

// segments appends the outcome segments of a conditional block to its line,
// ordered by target block, and returns their probes. Both outcomes share one
// segment when they reach the same block.
func segments(lc *coverage.LineCoverage, method, block int, b m.Block, reachable bool) []m.ProbeSite {
	noJump, jump := b.Succs[0], b.Succs[1]
	base := len(lc.Segments)

	probe := func(segment int, viaJump bool) m.ProbeSite {
		return m.ProbeSite{Kind: m.ProbeSegment, Method: method, Block: block, Line: b.Line, Segment: segment, Jump: viaJump}
	}

	add := func(noJumpOK, viaJump bool) {
		segment := coverage.NewBranchSegment(noJumpOK, viaJump)
		segment.Unreachable = !reachable
		lc.Segments = append(lc.Segments, segment)
	}

	switch {
	case noJump == jump:
		add(true, true)
		return []m.ProbeSite{probe(base, false), probe(base, true)}
	case jump < noJump:
		add(false, true)
		add(true, false)

		return []m.ProbeSite{probe(base, true), probe(base+1, false)}
	default:
		add(true, false)
		add(false, true)

		return []m.ProbeSite{probe(base, false), probe(base+1, true)}
	}
}
