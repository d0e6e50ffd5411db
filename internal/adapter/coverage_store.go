package adapter

import (
	"fmt"
	"log/slog"
	"os"

	"tia.dev/pkg/tia/internal/coverage"
	m "tia.dev/pkg/tia/internal/model"
	"tia.dev/pkg/tia/pkg"
)

// CoverageStore persists coverage data, one record per module.
type CoverageStore interface {
	Save(path m.Path, data *coverage.Data) error
	Load(path m.Path) (*coverage.Data, error)
}

// LocalCoverageStore keeps coverage data in a gob spill file. Saves go to a
// sibling temporary file that replaces path once complete.
type LocalCoverageStore struct{}

// NewLocalCoverageStore constructs a LocalCoverageStore.
func NewLocalCoverageStore() *LocalCoverageStore {
	return &LocalCoverageStore{}
}

// Save writes every module of data to path.
func (s *LocalCoverageStore) Save(path m.Path, data *coverage.Data) (err error) {
	tmp := string(path) + ".tmp"

	spill, err := pkg.CreateFileSpill[coverage.ModuleCoverage](tmp)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := spill.Close(); closeErr != nil && err == nil {
			err = closeErr
		}

		if err != nil {
			_ = os.Remove(tmp)
			return
		}

		if renameErr := os.Rename(tmp, string(path)); renameErr != nil {
			err = fmt.Errorf("failed to replace %s: %w", path, renameErr)
		}
	}()

	for module := range data.FilesCovered() {
		if err := spill.Append(module); err != nil {
			return fmt.Errorf("failed to save %s: %w", module.Module, err)
		}
	}

	slog.Debug("Saved coverage", "path", path, "modules", spill.Len())

	return nil
}

// Load reads the coverage data at path.
func (s *LocalCoverageStore) Load(path m.Path) (*coverage.Data, error) {
	spill, err := pkg.OpenFileSpill[coverage.ModuleCoverage](string(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load coverage %s: %w", path, err)
	}

	defer func() {
		_ = spill.Close()
	}()

	data := coverage.NewData()

	err = spill.Range(func(_ uint64, module coverage.ModuleCoverage) error {
		restore(&module)
		data.Put(&module)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load coverage %s: %w", path, err)
	}

	slog.Debug("Loaded coverage", "path", path, "modules", len(data.Modules))

	return data, nil
}

// restore replaces the nil maps gob leaves for empty ones.
func restore(mc *coverage.ModuleCoverage) {
	if mc.Lines == nil {
		mc.Lines = map[uint32]*coverage.LineCoverage{}
	}

	if mc.Methods == nil {
		mc.Methods = map[uint32]*coverage.MethodCoverage{}
	}

	if mc.Fields == nil {
		mc.Fields = map[string]*coverage.FieldCoverage{}
	}
}
