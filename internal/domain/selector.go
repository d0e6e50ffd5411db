package domain

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar"
	lru "github.com/hashicorp/golang-lru/v2"
	m "tia.dev/pkg/tia/internal/model"
)

const defaultVerdictCacheSize = 4096

// SelectorOptions configures a ModuleSelector.
type SelectorOptions struct {
	Include   []string // doublestar globs on module names; empty means every module
	Exclude   []string // regular expressions on module names and origins
	Tests     bool     // instrument _test.go modules too
	CacheSize int
}

// ModuleSelector decides which modules get instrumented.
type ModuleSelector struct {
	include  []string
	exclude  []*regexp.Regexp
	tests    bool
	verdicts *lru.Cache[string, bool]

	mu   sync.Mutex
	seen map[m.ModuleName]bool
}

// NewModuleSelector validates the filters of opts.
func NewModuleSelector(opts SelectorOptions) (*ModuleSelector, error) {
	for _, pattern := range opts.Include {
		if _, err := doublestar.Match(pattern, "x"); err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", pattern, err)
		}
	}

	exclude := make([]*regexp.Regexp, 0, len(opts.Exclude))

	for _, expr := range opts.Exclude {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", expr, err)
		}

		exclude = append(exclude, re)
	}

	size := opts.CacheSize
	if size <= 0 {
		size = defaultVerdictCacheSize
	}

	verdicts, err := lru.New[string, bool](size)
	if err != nil {
		return nil, err
	}

	return &ModuleSelector{
		include:  opts.Include,
		exclude:  exclude,
		tests:    opts.Tests,
		verdicts: verdicts,
		seen:     map[m.ModuleName]bool{},
	}, nil
}

// ShouldInstrument reports whether module, loaded from origin, passes the
// filters and was not instrumented yet.
func (s *ModuleSelector) ShouldInstrument(module m.ModuleName, origin m.Path) bool {
	if s.Instrumented(module) {
		return false
	}

	return s.Matches(module, origin)
}

// Matches applies the filters only.
func (s *ModuleSelector) Matches(module m.ModuleName, origin m.Path) bool {
	key := string(module) + "\x00" + string(origin)
	if verdict, ok := s.verdicts.Get(key); ok {
		return verdict
	}

	verdict := s.match(module, origin)
	s.verdicts.Add(key, verdict)

	return verdict
}

func (s *ModuleSelector) match(module m.ModuleName, origin m.Path) bool {
	name := string(module)
	if name == "" {
		return false
	}

	if !s.tests && strings.HasSuffix(name, "_test.go") {
		return false
	}

	for _, re := range s.exclude {
		if re.MatchString(name) || (origin != "" && re.MatchString(string(origin))) {
			return false
		}
	}

	if len(s.include) == 0 {
		return true
	}

	for _, pattern := range s.include {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}

	return false
}

// MarkInstrumented adds module to the seen-set.
func (s *ModuleSelector) MarkInstrumented(module m.ModuleName) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen[module] = true
}

// Instrumented reports whether module was marked.
func (s *ModuleSelector) Instrumented(module m.ModuleName) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.seen[module]
}
