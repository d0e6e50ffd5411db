package coverage

import (
	"context"

	"tia.dev/pkg/tia/internal/model"
)

// Invocation follows one execution of a method so that, on exit, the route it
// took can be counted against the matching path.
type Invocation struct {
	registry *Registry
	counters *counters
	method   *methodLayout
	index    int
	route    *Route
}

// Enter counts one invocation of the method whose body starts at firstLine.
// It returns nil when the module or method has no probes or the scope of ctx
// has ended; a nil Invocation accepts every call.
func (r *Registry) Enter(ctx context.Context, module model.ModuleName, firstLine uint32) *Invocation {
	l := r.layout(module)
	if l == nil {
		return nil
	}

	index, ok := l.methodIdx[firstLine]
	if !ok {
		return nil
	}

	c := r.counters(ctx, l)
	if c == nil {
		return nil
	}

	c.methods[index].Add(1)

	method := l.methods[index]

	return &Invocation{
		registry: r,
		counters: c,
		method:   method,
		index:    index,
		route:    method.graph.NewRoute(),
	}
}

// Reach records that control entered block.
func (inv *Invocation) Reach(block int) {
	if inv == nil {
		return
	}

	inv.route.Visit(block)
}

// Exit ends the invocation and counts the path it took. A route matching no
// path only degrades path statistics.
func (inv *Invocation) Exit() {
	if inv == nil || len(inv.method.record.Paths) == 0 {
		return
	}

	key := inv.route.Key()

	slot, ok := inv.method.pathSlot[key]
	if !ok {
		inv.registry.unmatched.Add(1)
		assertf(false, "route %s of %s.%s matches no path", key,
			inv.counters.layout.record.Module, inv.method.record.Name)

		return
	}

	inv.counters.paths[inv.method.pathBase+slot].Add(1)
}
