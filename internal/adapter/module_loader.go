package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	m "tia.dev/pkg/tia/internal/model"
)

// ErrNotLoaded is returned when rewriting a module that was never loaded.
var ErrNotLoaded = errors.New("module not loaded")

// LoadPredicate selects the modules a load hook applies to.
type LoadPredicate func(module m.ModuleName) bool

// RewriteFunc transforms the bytes of a module as it is loaded.
type RewriteFunc func(module m.ModuleName, original []byte) ([]byte, error)

// ModuleLoader loads modules into the running process and swaps their code.
type ModuleLoader interface {
	IsLoaded(module m.ModuleName) bool
	ApplyRewrite(module m.ModuleName, rewritten []byte) error
	OnFutureLoad(predicate LoadPredicate, rewrite RewriteFunc)
}

type loadHook struct {
	predicate LoadPredicate
	rewrite   RewriteFunc
}

// LocalModuleLoader keeps the active bytes of each loaded module in memory
// and mirrors them under <Output>/modules. An empty Output disables the
// mirror.
type LocalModuleLoader struct {
	Output m.Path

	mu       sync.Mutex
	modules  map[m.ModuleName][]byte
	original map[m.ModuleName][]byte
	hooks    []loadHook
}

var _ ModuleLoader = (*LocalModuleLoader)(nil)

// NewLocalModuleLoader constructs a LocalModuleLoader writing under output.
func NewLocalModuleLoader(output m.Path) *LocalModuleLoader {
	return &LocalModuleLoader{
		Output:   output,
		modules:  map[m.ModuleName][]byte{},
		original: map[m.ModuleName][]byte{},
	}
}

// IsLoaded implements ModuleLoader.
func (l *LocalModuleLoader) IsLoaded(module m.ModuleName) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.modules[module]

	return ok
}

// ApplyRewrite implements ModuleLoader.
func (l *LocalModuleLoader) ApplyRewrite(module m.ModuleName, rewritten []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.modules[module]; !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, module)
	}

	if err := l.mirror(module, rewritten); err != nil {
		return err
	}

	l.modules[module] = rewritten
	slog.Debug("Module rewritten", "module", module, "bytes", len(rewritten))

	return nil
}

// OnFutureLoad implements ModuleLoader. Hooks run in registration order on
// every module loaded afterwards.
func (l *LocalModuleLoader) OnFutureLoad(predicate LoadPredicate, rewrite RewriteFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.hooks = append(l.hooks, loadHook{predicate: predicate, rewrite: rewrite})
}

// Load loads module from its original bytes, running the matching hooks. A
// failing hook leaves the bytes it was given in place.
func (l *LocalModuleLoader) Load(module m.ModuleName, original []byte) error {
	l.mu.Lock()
	hooks := append([]loadHook(nil), l.hooks...)
	l.mu.Unlock()

	active := original

	for _, hook := range hooks {
		if hook.predicate != nil && !hook.predicate(module) {
			continue
		}

		rewritten, err := hook.rewrite(module, active)
		if err != nil {
			slog.Warn("Load hook failed, keeping module as is", "module", module, "error", err)
			continue
		}

		active = rewritten
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.mirror(module, active); err != nil {
		return err
	}

	l.original[module] = original
	l.modules[module] = active

	return nil
}

// Loaded returns the bytes module currently runs with.
func (l *LocalModuleLoader) Loaded(module m.ModuleName) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, ok := l.modules[module]

	return data, ok
}

// Original returns the bytes module was loaded from.
func (l *LocalModuleLoader) Original(module m.ModuleName) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, ok := l.original[module]

	return data, ok
}

// Path returns the mirror file of module.
func (l *LocalModuleLoader) Path(module m.ModuleName) m.Path {
	return m.Path(filepath.Join(string(l.Output), "modules", filepath.FromSlash(string(module))+".yaml"))
}

func (l *LocalModuleLoader) mirror(module m.ModuleName, data []byte) error {
	if l.Output == "" {
		return nil
	}

	path := string(l.Path(module))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create module directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write module %s: %w", module, err)
	}

	return nil
}
