package domain

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tia.dev/pkg/tia/internal/coverage"
	m "tia.dev/pkg/tia/internal/model"
)

// CheckIndicatorFile exists in the output directory while coverage checks fail.
const CheckIndicatorFile = "coverage.check.failed"

const perFileScope = "perFile"

// MetricNames are the checked metrics, in threshold order.
var MetricNames = [4]string{"line", "segment", "path", "data"}

// Threshold is a minimum coverage requirement.
type Threshold struct {
	Scope   string // "" for all modules, "perFile", or a module name prefix
	Minimum [4]int // line, segment, path, data; 0 disables the check
}

// ParseThreshold parses "L,S,P,D", "perFile:L,S,P,D" or "<prefix>:L,S,P,D".
// Missing or empty percentages are not checked.
func ParseThreshold(text string) (Threshold, error) {
	var threshold Threshold

	csv := strings.TrimSpace(text)
	if scope, rest, ok := strings.Cut(csv, ":"); ok {
		threshold.Scope = strings.TrimSpace(scope)
		csv = rest
	}

	for i, value := range strings.Split(csv, ",") {
		if i >= len(threshold.Minimum) {
			return Threshold{}, fmt.Errorf("threshold %q has more than %d percentages", text, len(threshold.Minimum))
		}

		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 100 {
			return Threshold{}, fmt.Errorf("threshold %q: bad percentage %q", text, value)
		}

		threshold.Minimum[i] = n
	}

	return threshold, nil
}

// CheckFailure is one metric below its minimum.
type CheckFailure struct {
	Scope   string
	Metric  string
	Percent int
	Minimum int
}

func (f CheckFailure) String() string {
	scope := ""

	switch f.Scope {
	case "":
	case perFileScope:
		scope = " for some source files"
	default:
		scope = " for " + f.Scope
	}

	return fmt.Sprintf("%s coverage too low%s: %d%% < %d%%", f.Metric, scope, f.Percent, f.Minimum)
}

// Check verifies data against thresholds. A metric that does not apply (-1)
// always passes.
func Check(data coverage.Reader, thresholds []Threshold) []CheckFailure {
	var failures []CheckFailure

	for _, threshold := range thresholds {
		percents := threshold.percents(data)

		for i, minimum := range threshold.Minimum {
			if percents[i] < 0 || percents[i] >= minimum {
				continue
			}

			failures = append(failures, CheckFailure{
				Scope:   threshold.Scope,
				Metric:  MetricNames[i],
				Percent: percents[i],
				Minimum: minimum,
			})
		}
	}

	return failures
}

func percents(metrics coverage.Metrics) [4]int {
	return [4]int{metrics.Line.Percent(), metrics.Segment.Percent(), metrics.Path.Percent(), metrics.Data.Percent()}
}

func (t Threshold) percents(data coverage.Reader) [4]int {
	if t.Scope != perFileScope {
		var metrics coverage.Metrics

		for file := range data.FilesCovered() {
			if strings.HasPrefix(string(file.Module), t.Scope) {
				metrics = metrics.Add(file.Metrics())
			}
		}

		return percents(metrics)
	}

	smallest := [4]int{coverage.NotApplicable, coverage.NotApplicable, coverage.NotApplicable, coverage.NotApplicable}

	for file := range data.FilesCovered() {
		for i, percent := range percents(file.Metrics()) {
			if percent >= 0 && (smallest[i] < 0 || percent < smallest[i]) {
				smallest[i] = percent
			}
		}
	}

	return smallest
}

// RunChecks parses thresholds, checks data and maintains the indicator file
// in output: created or touched on failure, removed on success.
func RunChecks(data coverage.Reader, thresholds []string, output m.Path) ([]CheckFailure, error) {
	parsed := make([]Threshold, 0, len(thresholds))

	for _, text := range thresholds {
		if strings.TrimSpace(text) == "" {
			continue
		}

		threshold, err := ParseThreshold(text)
		if err != nil {
			return nil, err
		}

		parsed = append(parsed, threshold)
	}

	failures := Check(data, parsed)
	indicator := filepath.Join(string(output), CheckIndicatorFile)

	if len(failures) == 0 {
		if err := os.Remove(indicator); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove %s: %w", indicator, err)
		}

		return nil, nil
	}

	for _, failure := range failures {
		slog.Warn("Coverage check failed", "scope", failure.Scope, "metric", failure.Metric, "percent", failure.Percent, "minimum", failure.Minimum)
	}

	if err := touch(indicator); err != nil {
		return failures, err
	}

	return failures, fmt.Errorf("%w: %d failing", ErrThresholdsNotMet, len(failures))
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	now := time.Now()
	if err := os.Chtimes(path, now, now); err == nil {
		return nil
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	return file.Close()
}
