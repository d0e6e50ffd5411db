package coverage

import (
	"context"
	"sync"
	"sync/atomic"

	"tia.dev/pkg/tia/internal/model"
)

// counters are the hits of one scope on one module. Scalar counters are
// atomic; field states are guarded by mu.
type counters struct {
	layout  *layout
	touched atomic.Bool

	lines   []atomic.Uint64
	jumps   []atomic.Uint64
	noJumps []atomic.Uint64
	methods []atomic.Uint64
	paths   []atomic.Uint64
	writes  []atomic.Uint64
	reads   []atomic.Uint64

	mu        sync.Mutex
	statics   map[string]*StaticFieldData
	instances map[string]*InstanceFieldData
}

func newCounters(l *layout) *counters {
	return &counters{
		layout:    l,
		lines:     make([]atomic.Uint64, len(l.lines)),
		jumps:     make([]atomic.Uint64, len(l.segments)),
		noJumps:   make([]atomic.Uint64, len(l.segments)),
		methods:   make([]atomic.Uint64, len(l.methods)),
		paths:     make([]atomic.Uint64, l.paths),
		writes:    make([]atomic.Uint64, len(l.fields)),
		reads:     make([]atomic.Uint64, len(l.fields)),
		statics:   map[string]*StaticFieldData{},
		instances: map[string]*InstanceFieldData{},
	}
}

func (c *counters) fieldWrite(field string, static bool, instance model.InstanceID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if static {
		c.static(field).RegisterWrite()
		return
	}

	c.instance(field).RegisterWrite(instance)
}

func (c *counters) fieldRead(field string, static bool, instance model.InstanceID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if static {
		c.static(field).RegisterRead()
		return
	}

	c.instance(field).RegisterRead(instance)
}

func (c *counters) static(field string) *StaticFieldData {
	data, ok := c.statics[field]
	if !ok {
		data = &StaticFieldData{}
		c.statics[field] = data
	}

	return data
}

func (c *counters) instance(field string) *InstanceFieldData {
	data, ok := c.instances[field]
	if !ok {
		data = &InstanceFieldData{}
		c.instances[field] = data
	}

	return data
}

func (c *counters) fieldCovered(field string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if data, ok := c.statics[field]; ok && data.Covered() {
		return true
	}

	data, ok := c.instances[field]

	return ok && data.Covered()
}

// Scope collects the probe hits of one test until it ends. Hits reach the
// coverage data only when the scope is committed.
type Scope struct {
	registry *Registry
	test     model.TestInfo
	modules  sync.Map // *layout -> *counters
	done     atomic.Bool
	outcome  model.Outcome
}

// Test returns the test the scope belongs to.
func (s *Scope) Test() model.TestInfo {
	return s.test
}

func (s *Scope) counters(l *layout) *counters {
	if c, ok := s.modules.Load(l); ok {
		return c.(*counters)
	}

	c, _ := s.modules.LoadOrStore(l, newCounters(l))

	return c.(*counters)
}

// Commit adds the hits of the scope to the coverage data, attributing call
// points to the test, and returns the modules the test touched. Committing an
// ended scope is a no-op.
func (s *Scope) Commit() []model.ModuleName {
	return s.End(model.Passed)
}

// End closes the scope with the outcome of its test. Hits of passed and failed
// tests are committed, with call points recording the outcome; hits of an
// aborted test are dropped.
func (s *Scope) End(outcome model.Outcome) []model.ModuleName {
	if outcome == model.Aborted {
		s.Discard()
		return nil
	}

	if !s.done.CompareAndSwap(false, true) {
		return nil
	}

	s.outcome = outcome

	return s.registry.commit(s)
}

// Discard drops the hits of the scope.
func (s *Scope) Discard() {
	if s.done.CompareAndSwap(false, true) {
		s.modules.Clear()
	}
}

type scopeKey struct{}

// WithScope returns a context whose probe hits are attributed to scope.
func WithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFrom returns the scope carried by ctx.
func ScopeFrom(ctx context.Context) (*Scope, bool) {
	if ctx == nil {
		return nil, false
	}

	scope, ok := ctx.Value(scopeKey{}).(*Scope)

	return scope, ok && scope != nil
}
