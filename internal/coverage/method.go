package coverage

import (
	"strconv"
	"strings"
)

// NodeKind classifies a control-flow node of a path.
type NodeKind uint8

const (
	// NodeEntry is the first block of a method.
	NodeEntry NodeKind = iota
	// NodeBasic is a block with at most one successor.
	NodeBasic
	// NodeFork is a conditional block.
	NodeFork
	// NodeExit is a block that leaves the method.
	NodeExit
)

func (k NodeKind) String() string {
	switch k {
	case NodeEntry:
		return "entry"
	case NodeFork:
		return "fork"
	case NodeExit:
		return "exit"
	default:
		return "basic"
	}
}

// NodeRef points at a block of the method a path runs through.
type NodeRef struct {
	Block int
	Line  uint32
	Kind  NodeKind
}

// Path is one acyclic entry-to-exit route through a method.
type Path struct {
	Nodes          []NodeRef
	ExecutionCount uint64
}

// Covered reports whether the path ran at least once.
func (p *Path) Covered() bool {
	return p.ExecutionCount > 0
}

// Key is the identity of the route: its block sequence.
func (p *Path) Key() string {
	blocks := make([]int, len(p.Nodes))
	for i, node := range p.Nodes {
		blocks[i] = node.Block
	}

	return routeKey(blocks)
}

// Lines returns the distinct source lines the path goes through, in order.
func (p *Path) Lines() []uint32 {
	lines := make([]uint32, 0, len(p.Nodes))

	for _, node := range p.Nodes {
		if len(lines) == 0 || lines[len(lines)-1] != node.Line {
			lines = append(lines, node.Line)
		}
	}

	return lines
}

func routeKey(blocks []int) string {
	var b strings.Builder

	for i, block := range blocks {
		if i > 0 {
			b.WriteByte(',')
		}

		b.WriteString(strconv.Itoa(block))
	}

	return b.String()
}

// MethodCoverage is the coverage of one method, keyed by the first line of its body.
type MethodCoverage struct {
	Name           string
	FirstLine      uint32
	LastLine       uint32
	ExecutionCount uint64
	Paths          []*Path
}

// PathRatio counts covered paths.
func (m *MethodCoverage) PathRatio() Ratio {
	r := Ratio{Total: len(m.Paths)}

	for _, path := range m.Paths {
		if path.Covered() {
			r.Covered++
		}
	}

	return r
}

// PathCounts sums the execution counts of all paths.
func (m *MethodCoverage) PathCounts() uint64 {
	var sum uint64
	for _, path := range m.Paths {
		sum += path.ExecutionCount
	}

	return sum
}
