package coverage

import (
	"iter"
	"maps"
	"slices"

	"tia.dev/pkg/tia/internal/model"
)

// Reader is the read-only view handed to report consumers.
type Reader interface {
	FilesCovered() iter.Seq[ModuleCoverage]
	LinesFor(module model.ModuleName) iter.Seq2[uint32, LineCoverage]
	MethodsFor(module model.ModuleName) iter.Seq[MethodCoverage]
	Metrics() Metrics
}

// Data is the coverage of every module seen. It is not safe for concurrent
// mutation; the Registry serialises its writes.
type Data struct {
	Modules map[model.ModuleName]*ModuleCoverage
}

var _ Reader = (*Data)(nil)

// NewData creates an empty data set.
func NewData() *Data {
	return &Data{Modules: map[model.ModuleName]*ModuleCoverage{}}
}

// Module returns the record of module.
func (d *Data) Module(module model.ModuleName) (*ModuleCoverage, bool) {
	mc, ok := d.Modules[module]
	return mc, ok
}

// Put stores mc, replacing any record of the same module.
func (d *Data) Put(mc *ModuleCoverage) {
	d.Modules[mc.Module] = mc
}

// Names returns the module names in ascending order.
func (d *Data) Names() []model.ModuleName {
	return slices.Sorted(maps.Keys(d.Modules))
}

// FilesCovered yields a copy of every module record, by name.
func (d *Data) FilesCovered() iter.Seq[ModuleCoverage] {
	return func(yield func(ModuleCoverage) bool) {
		for _, name := range d.Names() {
			if !yield(*d.Modules[name]) {
				return
			}
		}
	}
}

// LinesFor yields the lines of module in ascending order.
func (d *Data) LinesFor(module model.ModuleName) iter.Seq2[uint32, LineCoverage] {
	return func(yield func(uint32, LineCoverage) bool) {
		mc, ok := d.Modules[module]
		if !ok {
			return
		}

		for _, line := range mc.SortedLines() {
			if !yield(line, *mc.Lines[line]) {
				return
			}
		}
	}
}

// MethodsFor yields the methods of module by first line.
func (d *Data) MethodsFor(module model.ModuleName) iter.Seq[MethodCoverage] {
	return func(yield func(MethodCoverage) bool) {
		mc, ok := d.Modules[module]
		if !ok {
			return
		}

		for _, method := range mc.SortedMethods() {
			if !yield(*method) {
				return
			}
		}
	}
}

// Metrics sums the metrics of all modules.
func (d *Data) Metrics() Metrics {
	var metrics Metrics
	for _, mc := range d.Modules {
		metrics = metrics.Add(mc.Metrics())
	}

	return metrics
}

// MergeStats describes what MergePrevious did.
type MergeStats struct {
	CarriedModules int // modules absent from the current generation
	CarriedLines   int
	StaleModules   int // previous records dropped because the module changed
	NewlyCovered   int // lines covered now but not in the previous generation
}

// MergePrevious folds an older generation into d. Entries missing from d are
// carried over unchanged; entries present in both keep d's counts. A previous
// module whose fingerprint differs from the current one is ignored.
func (d *Data) MergePrevious(previous *Data) MergeStats {
	var stats MergeStats

	if previous == nil {
		return stats
	}

	for name, old := range previous.Modules {
		current, ok := d.Modules[name]
		if !ok {
			d.Modules[name] = old
			stats.CarriedModules++

			continue
		}

		if current == old {
			continue
		}

		if current.Fingerprint != old.Fingerprint {
			stats.StaleModules++
			continue
		}

		current.mergePrevious(old, &stats)
	}

	return stats
}

func (mc *ModuleCoverage) mergePrevious(old *ModuleCoverage, stats *MergeStats) {
	for line, oldLine := range old.Lines {
		lc, ok := mc.Lines[line]
		if !ok {
			mc.Lines[line] = oldLine
			stats.CarriedLines++

			continue
		}

		if lc.Covered() && !oldLine.Covered() {
			stats.NewlyCovered++
		}
	}

	for first, method := range old.Methods {
		if _, ok := mc.Methods[first]; !ok {
			mc.Methods[first] = method
		}
	}

	for name, field := range old.Fields {
		if _, ok := mc.Fields[name]; !ok {
			mc.Fields[name] = field
		}
	}
}
