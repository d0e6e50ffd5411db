package domain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"tia.dev/pkg/tia/internal/adapter"
	"tia.dev/pkg/tia/internal/coverage"
	m "tia.dev/pkg/tia/internal/model"
)

// DefaultMaxSteps bounds the blocks one replayed invocation may run through.
const DefaultMaxSteps = 1 << 16

var (
	// ErrUnknownMethod is returned when a trace calls a method the module lacks.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrRunaway is returned when an invocation does not reach an exit block.
	ErrRunaway = errors.New("invocation did not return")
)

// LoadedModules gives access to the bytes modules currently run with.
type LoadedModules interface {
	Loaded(module m.ModuleName) ([]byte, bool)
}

// Executor runs recorded calls through loaded modules. Instrumented modules
// fire their probes into the registry; plain modules run without counting.
type Executor struct {
	modules  LoadedModules
	codec    adapter.ModuleCodec
	registry *coverage.Registry
	arena    *coverage.InstanceArena
	maxSteps int

	mu       sync.Mutex
	programs map[m.ModuleName]*program
}

// NewExecutor creates an Executor.
func NewExecutor(modules LoadedModules, codec adapter.ModuleCodec, registry *coverage.Registry) *Executor {
	return &Executor{
		modules:  modules,
		codec:    codec,
		registry: registry,
		arena:    coverage.NewInstanceArena(),
		maxSteps: DefaultMaxSteps,
		programs: map[m.ModuleName]*program{},
	}
}

type blockProbes struct {
	line   bool
	fields []m.ProbeSite
	noJump *m.ProbeSite
	jump   *m.ProbeSite
}

// program is a decoded module ready to run.
type program struct {
	source  []byte
	module  m.InstrumentedModule
	methods map[string]int
	probes  [][]blockProbes
}

func newProgram(source []byte, module m.InstrumentedModule) *program {
	p := &program{
		source:  source,
		module:  module,
		methods: make(map[string]int, len(module.Structure.Methods)),
		probes:  make([][]blockProbes, len(module.Structure.Methods)),
	}

	for i, method := range module.Structure.Methods {
		if _, dup := p.methods[method.Name]; !dup {
			p.methods[method.Name] = i
		}

		p.probes[i] = make([]blockProbes, len(method.Blocks))
	}

	for _, probe := range module.Probes {
		if probe.Method < 0 || probe.Method >= len(p.probes) || probe.Block < 0 || probe.Block >= len(p.probes[probe.Method]) {
			continue
		}

		slot := &p.probes[probe.Method][probe.Block]

		switch probe.Kind {
		case m.ProbeLine:
			slot.line = true
		case m.ProbeFieldRead, m.ProbeFieldWrite:
			slot.fields = append(slot.fields, probe)
		case m.ProbeSegment:
			site := probe
			if probe.Jump {
				slot.jump = &site
			} else {
				slot.noJump = &site
			}
		case m.ProbeMethod:
		}
	}

	return p
}

func (e *Executor) program(module m.ModuleName) (*program, error) {
	data, ok := e.modules.Loaded(module)
	if !ok {
		return nil, fmt.Errorf("%w: %s", adapter.ErrNotLoaded, module)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.programs[module]; ok && bytes.Equal(p.source, data) {
		return p, nil
	}

	decoded, err := e.codec.DecodeInstrumented(data)
	if err != nil {
		return nil, err
	}

	p := newProgram(data, decoded)
	e.programs[module] = p

	return p, nil
}

type receiver struct {
	token m.InstanceID
}

// Replay runs every call of test. Instances named by the trace are mapped to
// arena ids for the duration of the replay.
func (e *Executor) Replay(ctx context.Context, test m.TraceTest) error {
	objects := map[m.InstanceID]*receiver{}

	resolve := func(token m.InstanceID) m.InstanceID {
		if token == 0 {
			return 0
		}

		obj, ok := objects[token]
		if !ok {
			obj = &receiver{token: token}
			objects[token] = obj
		}

		return coverage.Track(e.arena, obj)
	}

	for _, call := range test.Calls {
		if err := ctx.Err(); err != nil {
			return err
		}

		instance := resolve(call.Instance)

		if call.Workers <= 1 {
			if err := e.Call(ctx, call, instance); err != nil {
				return err
			}

			continue
		}

		group, groupCtx := errgroup.WithContext(ctx)
		for range call.Workers {
			group.Go(func() error {
				return e.Call(groupCtx, call, instance)
			})
		}

		if err := group.Wait(); err != nil {
			return err
		}
	}

	return nil
}

// Call runs one invocation of call.Method, taking the recorded decisions at
// the conditional blocks in order. Missing decisions count as false.
func (e *Executor) Call(ctx context.Context, call m.TraceCall, instance m.InstanceID) error {
	p, err := e.program(call.Module)
	if err != nil {
		return err
	}

	index, ok := p.methods[call.Method]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownMethod, call.Module, call.Method)
	}

	method := p.module.Structure.Methods[index]
	probes := p.probes[index]
	live := p.module.Instrumented
	module := call.Module

	var inv *coverage.Invocation
	if live {
		inv = e.registry.Enter(ctx, module, method.FirstLine())
	}

	decisions := call.Decisions
	block := 0

	var previous uint32

	for step := 0; step < e.maxSteps; step++ {
		b := method.Blocks[block]
		inv.Reach(block)

		if live {
			if probes[block].line && (step == 0 || b.Line != previous) {
				e.registry.RecordLineHit(ctx, module, b.Line)
			}

			e.fields(ctx, module, probes[block].fields, instance)
		}

		previous = b.Line

		switch {
		case b.Exit():
			inv.Exit()
			return nil
		case b.Conditional:
			taken := false
			if len(decisions) > 0 {
				taken, decisions = decisions[0], decisions[1:]
			}

			site := probes[block].noJump
			if taken {
				site = probes[block].jump
			}

			if live && site != nil {
				e.registry.RecordSegmentHit(ctx, module, site.Line, site.Segment, site.Jump)
			}

			block = b.Succs[0]
			if taken {
				block = b.Succs[1]
			}
		default:
			block = b.Succs[0]
		}
	}

	return fmt.Errorf("%w: %s.%s after %d blocks", ErrRunaway, module, call.Method, e.maxSteps)
}

func (e *Executor) fields(ctx context.Context, module m.ModuleName, sites []m.ProbeSite, instance m.InstanceID) {
	for _, site := range sites {
		if site.Kind == m.ProbeFieldWrite {
			e.registry.RecordFieldWrite(ctx, module, site.Field, instance)
		} else {
			e.registry.RecordFieldRead(ctx, module, site.Field, instance)
		}
	}
}
