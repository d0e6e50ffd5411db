package coverage

import (
	"slices"

	"tia.dev/pkg/tia/internal/model"
)

// Graph is the block graph of one method, prepared for path enumeration and
// for matching executed routes against the enumerated paths.
//
// Loops are cut the same way in both directions: when a route reaches a block
// that is already on it, the route resumes at the blocks through which control
// leaves that block's strongly connected component. Executions are reduced by
// the same rule, so only the first pass through a loop tells paths apart.
type Graph struct {
	blocks    []model.Block
	succs     [][]int
	reachable []bool
	component []int
	exits     [][]int
}

// NewGraph prepares the graph of method. The method must be valid.
func NewGraph(method model.Method) *Graph {
	g := &Graph{
		blocks: method.Blocks,
		succs:  make([][]int, len(method.Blocks)),
	}

	for i, block := range method.Blocks {
		succs := slices.Clone(block.Succs)
		slices.Sort(succs)
		g.succs[i] = slices.Compact(succs)
	}

	g.reachable = g.markReachable()
	g.component = g.components()
	g.exits = g.componentExits()

	return g
}

// Len returns the number of blocks.
func (g *Graph) Len() int {
	return len(g.blocks)
}

// Reachable reports whether block can be entered from the method entry.
func (g *Graph) Reachable(block int) bool {
	return block >= 0 && block < len(g.reachable) && g.reachable[block]
}

func (g *Graph) markReachable() []bool {
	seen := make([]bool, len(g.blocks))
	if len(g.blocks) == 0 {
		return seen
	}

	queue := []int{0}
	seen[0] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, succ := range g.succs[current] {
			if !seen[succ] {
				seen[succ] = true
				queue = append(queue, succ)
			}
		}
	}

	return seen
}

// components labels strongly connected components (Tarjan).
func (g *Graph) components() []int {
	n := len(g.blocks)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	component := make([]int, n)

	for i := range index {
		index[i] = -1
	}

	var (
		stack   []int
		counter int
		next    int
	)

	var connect func(v int)
	connect = func(v int) {
		index[v] = counter
		low[v] = counter
		counter++

		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.succs[v] {
			if index[w] < 0 {
				connect(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}

		if low[v] != index[v] {
			return
		}

		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			component[w] = next

			if w == v {
				break
			}
		}

		next++
	}

	for v := range n {
		if index[v] < 0 {
			connect(v)
		}
	}

	return component
}

func (g *Graph) componentExits() [][]int {
	count := 0
	for _, c := range g.component {
		count = max(count, c+1)
	}

	exits := make([][]int, count)

	for v, succs := range g.succs {
		c := g.component[v]

		for _, succ := range succs {
			if g.component[succ] != c {
				exits[c] = append(exits[c], succ)
			}
		}
	}

	for c := range exits {
		slices.Sort(exits[c])
		exits[c] = slices.Compact(exits[c])
	}

	return exits
}

func (g *Graph) kind(block int) NodeKind {
	switch {
	case block == 0:
		return NodeEntry
	case len(g.succs[block]) == 0:
		return NodeExit
	case g.blocks[block].Conditional:
		return NodeFork
	default:
		return NodeBasic
	}
}

func (g *Graph) nodes(route []int) []NodeRef {
	nodes := make([]NodeRef, len(route))
	for i, block := range route {
		nodes[i] = NodeRef{Block: block, Line: g.blocks[block].Line, Kind: g.kind(block)}
	}

	return nodes
}

// EnumeratePaths lists every route from the entry to an exit, depth first with
// successors in ascending block order. It returns false, and no paths, when the
// method has more than limit routes. A limit <= 0 means no limit.
func (g *Graph) EnumeratePaths(limit int) ([]*Path, bool) {
	if len(g.blocks) == 0 {
		return nil, true
	}

	var paths []*Path

	seen := map[string]bool{}
	onRoute := make([]bool, len(g.blocks))

	emit := func(route []int) bool {
		key := routeKey(route)
		if seen[key] {
			return true
		}

		seen[key] = true
		paths = append(paths, &Path{Nodes: g.nodes(route)})

		return limit <= 0 || len(paths) <= limit
	}

	if !g.walk(nil, onRoute, 0, emit) {
		return nil, false
	}

	return paths, true
}

func (g *Graph) walk(route []int, onRoute []bool, current int, emit func([]int) bool) bool {
	route = append(route, current)
	onRoute[current] = true

	defer func() { onRoute[current] = false }()

	if len(g.succs[current]) == 0 {
		return emit(route)
	}

	for _, succ := range g.succs[current] {
		if !g.step(route, onRoute, succ, emit) {
			return false
		}
	}

	return true
}

func (g *Graph) step(route []int, onRoute []bool, target int, emit func([]int) bool) bool {
	if !onRoute[target] {
		return g.walk(route, onRoute, target, emit)
	}

	for _, exit := range g.exits[g.component[target]] {
		if onRoute[exit] {
			continue
		}

		if !g.walk(route, onRoute, exit, emit) {
			return false
		}
	}

	return true
}

// Route accumulates the blocks an invocation runs through, reduced by the
// loop rule of the graph.
type Route struct {
	graph   *Graph
	blocks  []int
	onRoute []bool
	skip    int
}

// NewRoute starts an empty route over g.
func (g *Graph) NewRoute() *Route {
	return &Route{graph: g, onRoute: make([]bool, len(g.blocks)), skip: -1}
}

// Visit records that control entered block.
func (r *Route) Visit(block int) {
	if block < 0 || block >= len(r.onRoute) {
		assertf(false, "block %d outside of method with %d blocks", block, len(r.onRoute))
		return
	}

	if r.skip >= 0 && r.graph.component[block] == r.skip {
		return
	}

	r.skip = -1

	if r.onRoute[block] {
		r.skip = r.graph.component[block]
		return
	}

	r.blocks = append(r.blocks, block)
	r.onRoute[block] = true
}

// Key returns the identity of the reduced route, comparable with Path.Key.
func (r *Route) Key() string {
	return routeKey(r.blocks)
}
