// Package coverage holds the coverage data model, the path enumerator and the
// runtime probe registry that instrumented modules report to.
package coverage

// NotApplicable is the percentage reported when there is nothing to measure.
const NotApplicable = -1

// Percentage returns round-half-up(100 * covered / total), or NotApplicable
// when total is zero.
func Percentage(covered, total int) int {
	if total <= 0 {
		return NotApplicable
	}

	if covered < 0 {
		covered = 0
	}

	if covered > total {
		covered = total
	}

	c, t := int64(covered), int64(total)

	return int((200*c + t) / (2 * t))
}

// Ratio is a covered/total pair for one metric.
type Ratio struct {
	Covered int
	Total   int
}

// Percent returns the rounded percentage of the ratio.
func (r Ratio) Percent() int {
	return Percentage(r.Covered, r.Total)
}

// Add returns the sum of both ratios.
func (r Ratio) Add(other Ratio) Ratio {
	return Ratio{Covered: r.Covered + other.Covered, Total: r.Total + other.Total}
}

// Metrics groups the four coverage metrics of a module or of a whole data set.
type Metrics struct {
	Line    Ratio
	Segment Ratio
	Path    Ratio
	Data    Ratio
}

// Add sums metrics component-wise.
func (m Metrics) Add(other Metrics) Metrics {
	return Metrics{
		Line:    m.Line.Add(other.Line),
		Segment: m.Segment.Add(other.Segment),
		Path:    m.Path.Add(other.Path),
		Data:    m.Data.Add(other.Data),
	}
}
