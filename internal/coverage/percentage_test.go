package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		name    string
		covered int
		total   int
		want    int
	}{
		{name: "nothing to measure", covered: 0, total: 0, want: NotApplicable},
		{name: "none covered", covered: 0, total: 7, want: 0},
		{name: "all covered", covered: 7, total: 7, want: 100},
		{name: "rounds half up", covered: 1, total: 8, want: 13},
		{name: "rounds down below half", covered: 1, total: 3, want: 33},
		{name: "rounds up above half", covered: 2, total: 3, want: 67},
		{name: "exact half", covered: 1, total: 200, want: 1},
		{name: "clamps overflow", covered: 9, total: 4, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percentage(tt.covered, tt.total))
		})
	}
}

func TestPercentage_Bounds(t *testing.T) {
	for total := 0; total <= 50; total++ {
		for covered := 0; covered <= total; covered++ {
			p := Percentage(covered, total)
			if total == 0 {
				assert.Equal(t, NotApplicable, p)
				continue
			}

			assert.GreaterOrEqual(t, p, 0)
			assert.LessOrEqual(t, p, 100)
		}
	}
}

func TestMetrics_Add(t *testing.T) {
	a := Metrics{Line: Ratio{1, 2}, Segment: Ratio{0, 1}}
	b := Metrics{Line: Ratio{2, 2}, Path: Ratio{1, 4}}

	sum := a.Add(b)

	assert.Equal(t, Ratio{3, 4}, sum.Line)
	assert.Equal(t, Ratio{0, 1}, sum.Segment)
	assert.Equal(t, 25, sum.Path.Percent())
	assert.Equal(t, NotApplicable, sum.Data.Percent())
}
