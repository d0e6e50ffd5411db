package coverage

import "tia.dev/pkg/tia/internal/model"

// BranchSegment is one outcome of a conditional line. A count of -1 means the
// outcome cannot be reached that way.
type BranchSegment struct {
	NoJumpCount int64
	JumpCount   int64
	Unreachable bool
	CallPoints  []model.CallPoint
}

// NewBranchSegment creates a segment reached by falling through, by jumping or
// both.
func NewBranchSegment(noJump, jump bool) *BranchSegment {
	s := &BranchSegment{NoJumpCount: -1, JumpCount: -1}
	if noJump {
		s.NoJumpCount = 0
	}

	if jump {
		s.JumpCount = 0
	}

	assertf(!s.Empty(), "segment created with no applicable outcome")

	return s
}

// Empty reports a segment with no applicable count. Such a segment is a
// modelling bug.
func (s *BranchSegment) Empty() bool {
	return s.NoJumpCount < 0 && s.JumpCount < 0
}

// Covered reports whether any applicable outcome was observed.
func (s *BranchSegment) Covered() bool {
	return s.NoJumpCount > 0 || s.JumpCount > 0
}

func (s *BranchSegment) add(viaJump bool, n uint64) {
	if viaJump {
		if s.JumpCount >= 0 {
			s.JumpCount += int64(n)
		}

		return
	}

	if s.NoJumpCount >= 0 {
		s.NoJumpCount += int64(n)
	}
}

// LineCoverage is the coverage of one source line.
type LineCoverage struct {
	Line           uint32
	ExecutionCount uint64
	Unreachable    bool
	Segments       []*BranchSegment
	CallPoints     []model.CallPoint
}

// Covered reports whether the line ran at least once.
func (l *LineCoverage) Covered() bool {
	return l.ExecutionCount > 0
}

// Simple reports a line without a branching construct.
func (l *LineCoverage) Simple() bool {
	return len(l.Segments) <= 1
}

// SegmentRatio counts the line as a single segment when it has no branches,
// otherwise each reachable branch segment.
func (l *LineCoverage) SegmentRatio() Ratio {
	if l.Unreachable {
		return Ratio{}
	}

	if len(l.Segments) == 0 {
		if l.Covered() {
			return Ratio{Covered: 1, Total: 1}
		}

		return Ratio{Total: 1}
	}

	var r Ratio

	for _, segment := range l.Segments {
		assertf(!segment.Empty(), "line %d has an empty segment", l.Line)

		if segment.Unreachable || segment.Empty() {
			continue
		}

		r.Total++

		if segment.Covered() {
			r.Covered++
		}
	}

	return r
}

// Segment returns the segment at index, or nil.
func (l *LineCoverage) Segment(index int) *BranchSegment {
	if index < 0 || index >= len(l.Segments) {
		return nil
	}

	return l.Segments[index]
}
