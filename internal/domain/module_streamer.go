package domain

import (
	"context"
	"fmt"
	"go/token"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
	"tia.dev/pkg/tia/internal/adapter"
	m "tia.dev/pkg/tia/internal/model"
)

// CompiledModule is a discovered source file lowered to its module form. Err
// is set when the file could not be compiled; the module is then skipped.
type CompiledModule struct {
	Source    m.Source
	Structure m.ModuleStructure
	Bytes     []byte
	Err       error
}

// ModuleStreamer discovers Go files and compiles them into module documents.
type ModuleStreamer interface {
	Get(ctx context.Context, paths []m.Path, exclude []string, threads int) (<-chan CompiledModule, error)
}

type moduleStreamer struct {
	adapter.SourceFSAdapter
	adapter.GoFileAdapter
	adapter.ModuleCodec
}

// NewModuleStreamer creates a ModuleStreamer.
func NewModuleStreamer(fsAdapter adapter.SourceFSAdapter, goFileAdapter adapter.GoFileAdapter, codec adapter.ModuleCodec) ModuleStreamer {
	return &moduleStreamer{
		SourceFSAdapter: fsAdapter,
		GoFileAdapter:   goFileAdapter,
		ModuleCodec:     codec,
	}
}

// Get streams the compiled modules under paths, compiling on up to threads
// goroutines. The channel closes when done or when ctx is cancelled.
func (ms *moduleStreamer) Get(ctx context.Context, paths []m.Path, exclude []string, threads int) (<-chan CompiledModule, error) {
	sources, err := ms.SourceFSAdapter.Get(ctx, paths, exclude...)
	if err != nil {
		return nil, fmt.Errorf("discover sources: %w", err)
	}

	slog.Debug("Discovered sources", "count", len(sources), "threads", threads)

	threads = normalizeThreads(threads)
	ch := make(chan CompiledModule, threads)

	go func() {
		defer close(ch)

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(threads)

		for _, source := range sources {
			if groupCtx.Err() != nil {
				break
			}

			group.Go(func() error {
				compiled := ms.compile(source)

				select {
				case <-groupCtx.Done():
					return groupCtx.Err()
				case ch <- compiled:
					return nil
				}
			})
		}

		if err := group.Wait(); err != nil {
			slog.Debug("Module streaming cancelled", "error", err)
		}
	}()

	return ch, nil
}

func (ms *moduleStreamer) compile(source m.Source) CompiledModule {
	compiled := CompiledModule{Source: source}

	src, err := ms.ReadFile(source.Origin.FullPath)
	if err != nil {
		compiled.Err = err
		return compiled
	}

	fset := token.NewFileSet()

	file, err := ms.Parse(fset, string(source.Origin.FullPath), src)
	if err != nil {
		compiled.Err = fmt.Errorf("%w: %w", m.ErrMalformedModule, err)
		return compiled
	}

	compiled.Structure = ms.Lower(fset, file, source.Module, source.Origin.FullPath)

	compiled.Bytes, err = ms.EncodeStructure(compiled.Structure)
	if err != nil {
		compiled.Err = err
	}

	return compiled
}

// CollectModules drains ch into a slice ordered by module name. Modules that
// failed to compile are logged and left out.
func CollectModules(ctx context.Context, ch <-chan CompiledModule) ([]CompiledModule, error) {
	var modules []CompiledModule

	for compiled := range ch {
		if compiled.Err != nil {
			slog.Warn("Skipping module", "module", compiled.Source.Module, "error", compiled.Err)
			continue
		}

		modules = append(modules, compiled)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(modules, func(i, j int) bool {
		return modules[i].Source.Module < modules[j].Source.Module
	})

	return modules, nil
}

func normalizeThreads(threads int) int {
	if threads <= 0 {
		return 1
	}

	return threads
}
