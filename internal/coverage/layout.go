package coverage

import (
	"tia.dev/pkg/tia/internal/model"
)

type segmentKey struct {
	line  uint32
	index int
}

type methodLayout struct {
	first    uint32
	record   *MethodCoverage
	graph    *Graph
	pathBase int
	pathSlot map[string]int
}

// layout maps the probe keys of a registered module to dense counter slots.
type layout struct {
	record *ModuleCoverage

	lines     []uint32
	lineSlot  map[uint32]int
	segments  []segmentKey
	segSlot   map[segmentKey]int
	methods   []*methodLayout
	methodIdx map[uint32]int
	paths     int
	fields    []string
	fieldSlot map[string]int
	static    []bool
}

func newLayout(mc *ModuleCoverage, structure model.ModuleStructure) *layout {
	l := &layout{
		record:    mc,
		lineSlot:  map[uint32]int{},
		segSlot:   map[segmentKey]int{},
		methodIdx: map[uint32]int{},
		fieldSlot: map[string]int{},
	}

	for _, line := range mc.SortedLines() {
		l.lineSlot[line] = len(l.lines)
		l.lines = append(l.lines, line)

		for i := range mc.Lines[line].Segments {
			key := segmentKey{line: line, index: i}
			l.segSlot[key] = len(l.segments)
			l.segments = append(l.segments, key)
		}
	}

	for _, method := range structure.Methods {
		record, ok := mc.Methods[method.FirstLine()]
		if !ok {
			continue
		}

		if _, dup := l.methodIdx[record.FirstLine]; dup {
			continue
		}

		ml := &methodLayout{
			first:    record.FirstLine,
			record:   record,
			graph:    NewGraph(method),
			pathBase: l.paths,
			pathSlot: make(map[string]int, len(record.Paths)),
		}

		for i, path := range record.Paths {
			ml.pathSlot[path.Key()] = i
		}

		l.paths += len(record.Paths)
		l.methodIdx[record.FirstLine] = len(l.methods)
		l.methods = append(l.methods, ml)
	}

	for _, field := range mc.SortedFields() {
		l.fieldSlot[field.Name] = len(l.fields)
		l.fields = append(l.fields, field.Name)
		l.static = append(l.static, field.Static)
	}

	return l
}
