package coverage

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"tia.dev/pkg/tia/internal/model"
)

// CallPointMode tells how many call points a line or segment keeps per test.
type CallPointMode int

const (
	// CallPointsFirst keeps one call point per test.
	CallPointsFirst CallPointMode = iota
	// CallPointsOff keeps none.
	CallPointsOff
	// CallPointsAll keeps one per execution, up to Options.MaxCallPoints.
	CallPointsAll
)

func (m CallPointMode) String() string {
	switch m {
	case CallPointsOff:
		return "off"
	case CallPointsAll:
		return "all"
	default:
		return "first"
	}
}

// ParseCallPointMode parses off, first or all.
func ParseCallPointMode(s string) (CallPointMode, error) {
	switch s {
	case "", "first":
		return CallPointsFirst, nil
	case "off", "none":
		return CallPointsOff, nil
	case "all":
		return CallPointsAll, nil
	}

	return CallPointsFirst, fmt.Errorf("unknown call point mode %q", s)
}

// Options configures a Registry.
type Options struct {
	CallPoints    CallPointMode
	MaxCallPoints int
}

// Registry receives the probe hits of instrumented modules and folds them into
// the coverage data. Hits are attributed to the Scope carried by the context;
// hits outside any test go to a background scope committed by Flush. Hits
// carried by a scope that already ended are dropped.
type Registry struct {
	opts Options

	mu   sync.Mutex // guards data
	data *Data

	layouts    sync.Map // model.ModuleName -> *layout
	background atomic.Pointer[Scope]
	nextTest   atomic.Uint64
	unmatched  atomic.Uint64
	unreached  atomic.Uint64
}

// NewRegistry creates a registry writing into data.
func NewRegistry(data *Data, opts Options) *Registry {
	if data == nil {
		data = NewData()
	}

	if opts.MaxCallPoints <= 0 {
		opts.MaxCallPoints = 64
	}

	r := &Registry{opts: opts, data: data}
	r.background.Store(&Scope{registry: r})

	return r
}

// Register makes the probes of an instrumented module live. Registering a
// module again with the same fingerprint keeps the counts gathered so far.
func (r *Registry) Register(mc *ModuleCoverage, structure model.ModuleStructure) {
	r.mu.Lock()

	if existing, ok := r.data.Module(mc.Module); ok && existing.Fingerprint == mc.Fingerprint {
		mc = existing
	} else {
		r.data.Put(mc)
	}

	r.mu.Unlock()

	r.layouts.Store(mc.Module, newLayout(mc, structure))
	slog.Debug("Registered module probes", "module", mc.Module, "lines", len(mc.Lines), "methods", len(mc.Methods))
}

// Registered reports whether module has live probes.
func (r *Registry) Registered(module model.ModuleName) bool {
	_, ok := r.layouts.Load(module)
	return ok
}

// Data returns the coverage data. It must not be read while probes still run.
func (r *Registry) Data() *Data {
	return r.data
}

// Unmatched returns how many invocations could not be attributed to a path.
func (r *Registry) Unmatched() uint64 {
	return r.unmatched.Load()
}

// BeginTest opens a scope for test and returns a context carrying it. A zero
// test id is replaced by a fresh one.
func (r *Registry) BeginTest(ctx context.Context, test model.TestInfo) (context.Context, *Scope) {
	if test.ID == model.NoTest {
		test.ID = model.TestID(r.nextTest.Add(1))
	}

	scope := &Scope{registry: r, test: test}

	return WithScope(ctx, scope), scope
}

// Flush commits the hits collected outside of tests.
func (r *Registry) Flush() {
	previous := r.background.Swap(&Scope{registry: r})
	previous.Commit()
}

func (r *Registry) layout(module model.ModuleName) *layout {
	l, ok := r.layouts.Load(module)
	if !ok {
		return nil
	}

	return l.(*layout)
}

// counters returns the counters of l in the scope hits are attributed to, or
// nil when that scope has ended.
func (r *Registry) counters(ctx context.Context, l *layout) *counters {
	scope, ok := ScopeFrom(ctx)
	if !ok {
		scope = r.background.Load()
	}

	if scope.done.Load() {
		return nil
	}

	c := scope.counters(l)
	c.touched.Store(true)

	return c
}

func (r *Registry) unreachableHit(module model.ModuleName, line uint32) {
	if r.unreached.Add(1) == 1 {
		slog.Warn("Probe of unreachable code fired", "module", module, "line", line)
	}
}

// RecordLineHit counts one entry into line of module.
func (r *Registry) RecordLineHit(ctx context.Context, module model.ModuleName, line uint32) {
	l := r.layout(module)
	if l == nil {
		return
	}

	slot, ok := l.lineSlot[line]
	if !ok {
		return
	}

	if l.record.Lines[line].Unreachable {
		r.unreachableHit(module, line)
		return
	}

	if c := r.counters(ctx, l); c != nil {
		c.lines[slot].Add(1)
	}
}

// RecordSegmentHit counts one outcome of segment on a conditional line.
func (r *Registry) RecordSegmentHit(ctx context.Context, module model.ModuleName, line uint32, segment int, viaJump bool) {
	l := r.layout(module)
	if l == nil {
		return
	}

	slot, ok := l.segSlot[segmentKey{line: line, index: segment}]
	if !ok {
		return
	}

	if l.record.Lines[line].Segments[segment].Unreachable {
		r.unreachableHit(module, line)
		return
	}

	c := r.counters(ctx, l)
	if c == nil {
		return
	}

	if viaJump {
		c.jumps[slot].Add(1)
	} else {
		c.noJumps[slot].Add(1)
	}
}

// RecordFieldWrite counts an assignment of field on instance.
func (r *Registry) RecordFieldWrite(ctx context.Context, module model.ModuleName, field string, instance model.InstanceID) {
	l := r.layout(module)
	if l == nil {
		return
	}

	slot, ok := l.fieldSlot[field]
	if !ok {
		return
	}

	c := r.counters(ctx, l)
	if c == nil {
		return
	}

	c.writes[slot].Add(1)
	c.fieldWrite(field, l.static[slot], instance)
}

// RecordFieldRead counts a read of field on instance.
func (r *Registry) RecordFieldRead(ctx context.Context, module model.ModuleName, field string, instance model.InstanceID) {
	l := r.layout(module)
	if l == nil {
		return
	}

	slot, ok := l.fieldSlot[field]
	if !ok {
		return
	}

	c := r.counters(ctx, l)
	if c == nil {
		return
	}

	c.reads[slot].Add(1)
	c.fieldRead(field, l.static[slot], instance)
}

func (r *Registry) commit(scope *Scope) []model.ModuleName {
	var touched []model.ModuleName

	r.mu.Lock()
	defer r.mu.Unlock()

	scope.modules.Range(func(_, value any) bool {
		c := value.(*counters)
		if !c.touched.Load() {
			return true
		}

		r.commitCounters(scope.test, scope.outcome, c)

		if !slices.Contains(touched, c.layout.record.Module) {
			touched = append(touched, c.layout.record.Module)
		}

		return true
	})

	slices.Sort(touched)

	return touched
}

func (r *Registry) commitCounters(test model.TestInfo, outcome model.Outcome, c *counters) {
	l := c.layout
	mc := l.record

	for slot, line := range l.lines {
		n := c.lines[slot].Load()
		if n == 0 {
			continue
		}

		lc := mc.Lines[line]
		lc.ExecutionCount += n
		lc.CallPoints = r.appendCallPoints(lc.CallPoints, test, outcome, n)
	}

	for slot, key := range l.segments {
		jumps, noJumps := c.jumps[slot].Load(), c.noJumps[slot].Load()
		if jumps == 0 && noJumps == 0 {
			continue
		}

		segment := mc.Lines[key.line].Segments[key.index]
		segment.add(true, jumps)
		segment.add(false, noJumps)
		segment.CallPoints = r.appendCallPoints(segment.CallPoints, test, outcome, jumps+noJumps)
	}

	for i, ml := range l.methods {
		ml.record.ExecutionCount += c.methods[i].Load()

		for j, path := range ml.record.Paths {
			path.ExecutionCount += c.paths[ml.pathBase+j].Load()
		}
	}

	for slot, name := range l.fields {
		field := mc.Fields[name]
		field.WriteCount += c.writes[slot].Load()
		field.ReadCount += c.reads[slot].Load()

		if !field.Covered && c.fieldCovered(name) {
			field.Covered = true
		}
	}
}

func (r *Registry) appendCallPoints(points []model.CallPoint, test model.TestInfo, outcome model.Outcome, hits uint64) []model.CallPoint {
	if test.ID == model.NoTest {
		return points
	}

	point := model.CallPointFor(test, outcome)

	switch r.opts.CallPoints {
	case CallPointsOff:
		return points
	case CallPointsAll:
		room := r.opts.MaxCallPoints - len(points)
		for i := 0; uint64(i) < hits && i < room; i++ {
			points = append(points, point)
		}

		return points
	default:
		for _, existing := range points {
			if existing.Test == test.ID {
				return points
			}
		}

		return append(points, point)
	}
}
