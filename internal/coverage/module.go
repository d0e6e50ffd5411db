package coverage

import (
	"maps"
	"slices"

	"tia.dev/pkg/tia/internal/model"
)

// ModuleCoverage is the coverage record of one compiled module.
type ModuleCoverage struct {
	Module      model.ModuleName
	Origin      model.Path
	Fingerprint string
	Lines       map[uint32]*LineCoverage
	Methods     map[uint32]*MethodCoverage
	Fields      map[string]*FieldCoverage
}

// NewModuleCoverage creates an empty record.
func NewModuleCoverage(module model.ModuleName, origin model.Path, fingerprint string) *ModuleCoverage {
	return &ModuleCoverage{
		Module:      module,
		Origin:      origin,
		Fingerprint: fingerprint,
		Lines:       map[uint32]*LineCoverage{},
		Methods:     map[uint32]*MethodCoverage{},
		Fields:      map[string]*FieldCoverage{},
	}
}

// Line returns the entry for line, creating it when missing.
func (mc *ModuleCoverage) Line(line uint32) *LineCoverage {
	if lc, ok := mc.Lines[line]; ok {
		return lc
	}

	lc := &LineCoverage{Line: line}
	mc.Lines[line] = lc

	return lc
}

// SortedLines returns the line numbers in ascending order.
func (mc *ModuleCoverage) SortedLines() []uint32 {
	return slices.Sorted(maps.Keys(mc.Lines))
}

// SortedMethods returns the methods ordered by their first line.
func (mc *ModuleCoverage) SortedMethods() []*MethodCoverage {
	methods := make([]*MethodCoverage, 0, len(mc.Methods))
	for _, first := range slices.Sorted(maps.Keys(mc.Methods)) {
		methods = append(methods, mc.Methods[first])
	}

	return methods
}

// SortedFields returns the fields ordered by name.
func (mc *ModuleCoverage) SortedFields() []*FieldCoverage {
	fields := make([]*FieldCoverage, 0, len(mc.Fields))
	for _, name := range slices.Sorted(maps.Keys(mc.Fields)) {
		fields = append(fields, mc.Fields[name])
	}

	return fields
}

// Metrics computes line, segment, path and data ratios. Unreachable lines and
// segments are left out of the totals.
func (mc *ModuleCoverage) Metrics() Metrics {
	var metrics Metrics

	for _, lc := range mc.Lines {
		if lc.Unreachable {
			continue
		}

		metrics.Line.Total++
		if lc.Covered() {
			metrics.Line.Covered++
		}

		metrics.Segment = metrics.Segment.Add(lc.SegmentRatio())
	}

	for _, method := range mc.Methods {
		metrics.Path = metrics.Path.Add(method.PathRatio())
	}

	for _, field := range mc.Fields {
		metrics.Data.Total++
		if field.Covered {
			metrics.Data.Covered++
		}
	}

	return metrics
}

// TestNames returns the qualified names of the tests with call points in the module.
func (mc *ModuleCoverage) TestNames() []string {
	seen := map[string]bool{}
	for _, point := range mc.AllCallPoints() {
		seen[point.TestName()] = true
	}

	return slices.Sorted(maps.Keys(seen))
}

// AllCallPoints returns the call points of every line and segment of the module.
func (mc *ModuleCoverage) AllCallPoints() []model.CallPoint {
	var points []model.CallPoint

	for _, lc := range mc.Lines {
		points = append(points, lc.CallPoints...)

		for _, segment := range lc.Segments {
			points = append(points, segment.CallPoints...)
		}
	}

	return points
}
