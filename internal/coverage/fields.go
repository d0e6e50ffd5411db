package coverage

import (
	"slices"

	"tia.dev/pkg/tia/internal/model"
)

// FieldCoverage is the persisted data coverage of one tracked field.
type FieldCoverage struct {
	Name       string
	Static     bool
	WriteCount uint64
	ReadCount  uint64
	Covered    bool
}

// StaticFieldData tracks a package-level variable during one test: it is
// covered once a read follows a write.
type StaticFieldData struct {
	written bool
	covered bool
}

// RegisterWrite records an assignment.
func (d *StaticFieldData) RegisterWrite() {
	d.written = true
}

// RegisterRead records a read and reports whether it covered the field.
func (d *StaticFieldData) RegisterRead() bool {
	if d.written {
		d.covered = true
	}

	return d.covered
}

// Covered reports whether a read followed a write.
func (d *StaticFieldData) Covered() bool {
	return d.covered
}

// InstanceFieldData tracks an instance field during one test: the instances
// holding a value that was assigned but not read yet. The field is covered as
// soon as a read consumes a pending assignment on the same instance.
type InstanceFieldData struct {
	pending []model.InstanceID
	covered bool
}

// RegisterWrite enqueues instance unless it is already pending.
func (d *InstanceFieldData) RegisterWrite(instance model.InstanceID) {
	if !slices.Contains(d.pending, instance) {
		d.pending = append(d.pending, instance)
	}
}

// RegisterRead removes instance from the pending set, if present, and
// reports whether the field is covered.
func (d *InstanceFieldData) RegisterRead(instance model.InstanceID) bool {
	if i := slices.Index(d.pending, instance); i >= 0 {
		d.pending = slices.Delete(d.pending, i, i+1)
		d.covered = true
	}

	return d.covered
}

// Pending returns the instances with unread assignments.
func (d *InstanceFieldData) Pending() []model.InstanceID {
	return slices.Clone(d.pending)
}

// Covered reports whether an assignment was read back on its instance.
func (d *InstanceFieldData) Covered() bool {
	return d.covered
}
