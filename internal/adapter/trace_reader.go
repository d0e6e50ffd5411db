package adapter

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
	m "tia.dev/pkg/tia/internal/model"
)

// ErrMalformedTrace reports a trace file that cannot be replayed.
var ErrMalformedTrace = errors.New("malformed trace")

// TraceReader loads recorded test sessions.
type TraceReader interface {
	ReadTrace(path m.Path) (m.Trace, error)
}

// YAMLTraceReader reads traces written as YAML documents.
type YAMLTraceReader struct{}

// NewYAMLTraceReader constructs a YAMLTraceReader.
func NewYAMLTraceReader() *YAMLTraceReader {
	return &YAMLTraceReader{}
}

// ReadTrace implements TraceReader.
func (r *YAMLTraceReader) ReadTrace(path m.Path) (m.Trace, error) {
	file, err := os.Open(string(path))
	if err != nil {
		return m.Trace{}, fmt.Errorf("failed to open trace: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	return DecodeTrace(file)
}

// DecodeTrace parses and checks a trace document.
func DecodeTrace(reader io.Reader) (m.Trace, error) {
	var trace m.Trace

	dec := yaml.NewDecoder(reader)
	dec.KnownFields(true)

	if err := dec.Decode(&trace); err != nil && !errors.Is(err, io.EOF) {
		return m.Trace{}, fmt.Errorf("%w: %w", ErrMalformedTrace, err)
	}

	seen := map[string]bool{}

	for i, test := range trace.Tests {
		if test.Module == "" || test.Name == "" {
			return m.Trace{}, fmt.Errorf("%w: test %d needs a module and a name", ErrMalformedTrace, i)
		}

		if seen[test.QualifiedName()] {
			return m.Trace{}, fmt.Errorf("%w: duplicate test %s", ErrMalformedTrace, test.QualifiedName())
		}

		seen[test.QualifiedName()] = true

		if _, ok := m.ParseOutcome(test.Outcome); !ok {
			return m.Trace{}, fmt.Errorf("%w: test %s has unknown outcome %q", ErrMalformedTrace, test.QualifiedName(), test.Outcome)
		}

		for j, call := range test.Calls {
			if call.Module == "" || call.Method == "" {
				return m.Trace{}, fmt.Errorf("%w: test %s call %d needs a module and a method", ErrMalformedTrace, test.QualifiedName(), j)
			}

			if call.Workers < 0 {
				return m.Trace{}, fmt.Errorf("%w: test %s call %d has negative workers", ErrMalformedTrace, test.QualifiedName(), j)
			}
		}
	}

	return trace, nil
}
