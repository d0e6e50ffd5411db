// Package adapter contains the infrastructure adapters of the tia CLI: source
// discovery, the Go frontend, module documents, persisted data and the module loader.
package adapter

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	m "tia.dev/pkg/tia/internal/model"
)

// SourceFSAdapter abstracts filesystem-specific operations that the domain layer
// relies on when scanning user projects. It hides direct `os` access so the
// workflow logic can be tested without touching the disk.
//
//nolint:interfacebloat // A richer interface keeps workflow logic decoupled from os/fs.
type SourceFSAdapter interface {
	// Get discovers the Go files under paths. A path ending in /... is scanned
	// recursively. Files matching any exclude regex are skipped.
	Get(ctx context.Context, paths []m.Path, exclude ...string) ([]m.Source, error)

	// Walk traverses the provided root path. When recursive is false the
	// implementation should limit itself to the root directory (no sub-dirs).
	Walk(root m.Path, recursive bool, fn FilepathWalkFunc) error

	// ReadFile loads a file from disk and returns its contents.
	ReadFile(path m.Path) ([]byte, error)

	// HashFile returns a stable fingerprint (SHA-256) for the file at path.
	HashFile(path m.Path) (string, error)

	// FileInfo returns metadata for a path.
	FileInfo(path m.Path) (os.FileInfo, error)

	// FindProjectRoot searches for go.mod file walking up the directory tree.
	FindProjectRoot(startPath m.Path) (m.Path, error)

	// WriteFile writes content to a file, creating parent directories.
	WriteFile(path m.Path, content []byte, perm os.FileMode) error

	// RelPath returns the relative path from base to target.
	RelPath(base, target m.Path) (m.Path, error)

	// JoinPath joins path elements into a single path.
	JoinPath(elem ...string) m.Path
}

// FilepathWalkFunc mirrors the callback shape used by filepath.Walk. It is
// defined here to avoid leaking the standard-library type directly into the
// domain layer.
type FilepathWalkFunc func(path string, info os.FileInfo, err error) error

// LocalSourceFSAdapter is the os-backed SourceFSAdapter. Module names are
// slash paths relative to Root.
type LocalSourceFSAdapter struct {
	Root m.Path
}

// NewLocalSourceFSAdapter constructs a LocalSourceFSAdapter rooted at the
// working directory.
func NewLocalSourceFSAdapter() *LocalSourceFSAdapter {
	root, err := os.Getwd()
	if err != nil {
		root = "."
	}

	return &LocalSourceFSAdapter{Root: m.Path(root)}
}

// Get implements SourceFSAdapter.
func (a *LocalSourceFSAdapter) Get(ctx context.Context, paths []m.Path, exclude ...string) ([]m.Source, error) {
	patterns, err := compileExcludes(exclude)
	if err != nil {
		return nil, err
	}

	if len(paths) == 0 {
		paths = []m.Path{"./..."}
	}

	seen := map[string]bool{}

	var sources []m.Source

	for _, path := range paths {
		root, recursive := splitRecursive(string(path))

		err := a.Walk(m.Path(root), recursive, func(file string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			if info.IsDir() {
				if file != root && skipDir(info.Name()) {
					return filepath.SkipDir
				}

				return nil
			}

			if filepath.Ext(file) != ".go" || seen[file] || matchesAny(patterns, file) {
				return nil
			}

			seen[file] = true

			source, err := a.source(file, info)
			if err != nil {
				return err
			}

			sources = append(sources, source)

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", path, err)
		}
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Module < sources[j].Module
	})

	return sources, nil
}

func (a *LocalSourceFSAdapter) source(file string, info os.FileInfo) (m.Source, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return m.Source{}, err
	}

	rel, err := a.RelPath(a.Root, m.Path(abs))
	if err != nil || strings.HasPrefix(string(rel), "..") {
		rel = m.Path(abs)
	}

	hash, err := a.HashFile(m.Path(abs))
	if err != nil {
		return m.Source{}, err
	}

	return m.Source{
		Module:  m.ModuleName(filepath.ToSlash(string(rel))),
		Package: filepath.Base(filepath.Dir(abs)),
		Origin: &m.File{
			ShortPath: rel,
			FullPath:  m.Path(abs),
			Hash:      hash,
			ModTime:   info.ModTime(),
		},
	}, nil
}

func splitRecursive(path string) (string, bool) {
	switch {
	case path == "...":
		return ".", true
	case strings.HasSuffix(path, "/..."):
		root := strings.TrimSuffix(path, "/...")
		if root == "" {
			root = "/"
		}

		return root, true
	}

	return path, false
}

func skipDir(name string) bool {
	return name == "vendor" || name == "testdata" || (strings.HasPrefix(name, ".") && name != ".") || strings.HasPrefix(name, "_")
}

func compileExcludes(exclude []string) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(exclude))

	for _, expr := range exclude {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", expr, err)
		}

		patterns = append(patterns, re)
	}

	return patterns, nil
}

func matchesAny(patterns []*regexp.Regexp, path string) bool {
	slash := filepath.ToSlash(path)
	for _, re := range patterns {
		if re.MatchString(slash) {
			return true
		}
	}

	return false
}

// Walk iterates over files under root, optionally descending into subdirectories.
func (a *LocalSourceFSAdapter) Walk(root m.Path, recursive bool, fn FilepathWalkFunc) error {
	rootStr := string(root)

	return filepath.Walk(rootStr, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fn(path, info, err)
		}

		if info.IsDir() && !recursive && path != rootStr {
			return filepath.SkipDir
		}

		return fn(path, info, nil)
	})
}

// ReadFile loads file contents from disk.
func (a *LocalSourceFSAdapter) ReadFile(path m.Path) ([]byte, error) {
	return os.ReadFile(string(path))
}

// HashFile returns the SHA-256 hash of the file at the provided path.
func (a *LocalSourceFSAdapter) HashFile(path m.Path) (string, error) {
	f, err := os.Open(string(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// FileInfo returns os.FileInfo metadata for the given path.
func (a *LocalSourceFSAdapter) FileInfo(path m.Path) (os.FileInfo, error) {
	return os.Stat(string(path))
}

// FindProjectRoot searches for go.mod file walking up the directory tree.
func (a *LocalSourceFSAdapter) FindProjectRoot(startPath m.Path) (m.Path, error) {
	dir := filepath.Dir(string(startPath))

	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return m.Path(dir), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory of %s", startPath)
		}

		dir = parent
	}
}

// WriteFile writes content to a file with the given permissions.
func (a *LocalSourceFSAdapter) WriteFile(path m.Path, content []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(string(path)), 0o750); err != nil {
		return err
	}

	return os.WriteFile(string(path), content, perm)
}

// RelPath returns the relative path from base to target.
func (a *LocalSourceFSAdapter) RelPath(base, target m.Path) (m.Path, error) {
	rel, err := filepath.Rel(string(base), string(target))
	if err != nil {
		return "", err
	}

	return m.Path(rel), nil
}

// JoinPath joins path elements into a single path.
func (a *LocalSourceFSAdapter) JoinPath(elem ...string) m.Path {
	return m.Path(filepath.Join(elem...))
}

// ModuleTimes resolves module names against a root directory and reports
// their modification times.
type ModuleTimes struct {
	Root m.Path
}

// ModTime returns the modification time of the file behind module.
func (t ModuleTimes) ModTime(module m.ModuleName) (time.Time, error) {
	path := filepath.FromSlash(string(module))
	if !filepath.IsAbs(path) {
		path = filepath.Join(string(t.Root), path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}

	return info.ModTime(), nil
}
