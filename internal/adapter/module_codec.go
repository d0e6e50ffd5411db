package adapter

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
	m "tia.dev/pkg/tia/internal/model"
)

// ModuleCodec converts module documents to and from their byte form.
type ModuleCodec interface {
	// EncodeStructure serialises a compiled module.
	EncodeStructure(structure m.ModuleStructure) ([]byte, error)
	// DecodeStructure parses and validates a compiled module.
	DecodeStructure(data []byte) (m.ModuleStructure, error)
	// EncodeInstrumented serialises a rewritten module.
	EncodeInstrumented(module m.InstrumentedModule) ([]byte, error)
	// DecodeInstrumented parses a module that may or may not be rewritten. A
	// plain compiled module decodes with Instrumented == false.
	DecodeInstrumented(data []byte) (m.InstrumentedModule, error)
}

// YAMLModuleCodec is the ModuleCodec backed by gopkg.in/yaml.v3.
type YAMLModuleCodec struct{}

// NewYAMLModuleCodec constructs a YAMLModuleCodec.
func NewYAMLModuleCodec() *YAMLModuleCodec {
	return &YAMLModuleCodec{}
}

func encodeYAML(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	if err := enc.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeYAML(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	return dec.Decode(v)
}

// EncodeStructure implements ModuleCodec.
func (c *YAMLModuleCodec) EncodeStructure(structure m.ModuleStructure) ([]byte, error) {
	data, err := encodeYAML(structure)
	if err != nil {
		return nil, fmt.Errorf("failed to encode module %s: %w", structure.Module, err)
	}

	return data, nil
}

// DecodeStructure implements ModuleCodec.
func (c *YAMLModuleCodec) DecodeStructure(data []byte) (m.ModuleStructure, error) {
	var structure m.ModuleStructure
	if err := decodeYAML(data, &structure); err != nil {
		return m.ModuleStructure{}, fmt.Errorf("%w: %w", m.ErrMalformedModule, err)
	}

	if err := structure.Validate(); err != nil {
		return m.ModuleStructure{}, err
	}

	return structure, nil
}

// EncodeInstrumented implements ModuleCodec.
func (c *YAMLModuleCodec) EncodeInstrumented(module m.InstrumentedModule) ([]byte, error) {
	data, err := encodeYAML(module)
	if err != nil {
		return nil, fmt.Errorf("failed to encode instrumented module %s: %w", module.Structure.Module, err)
	}

	return data, nil
}

// DecodeInstrumented implements ModuleCodec.
func (c *YAMLModuleCodec) DecodeInstrumented(data []byte) (m.InstrumentedModule, error) {
	var probe struct {
		Instrumented bool `yaml:"instrumented"`
	}

	if err := yaml.Unmarshal(data, &probe); err != nil {
		return m.InstrumentedModule{}, fmt.Errorf("%w: %w", m.ErrMalformedModule, err)
	}

	if !probe.Instrumented {
		structure, err := c.DecodeStructure(data)
		if err != nil {
			return m.InstrumentedModule{}, err
		}

		return m.InstrumentedModule{Structure: structure}, nil
	}

	var module m.InstrumentedModule
	if err := decodeYAML(data, &module); err != nil {
		return m.InstrumentedModule{}, fmt.Errorf("%w: %w", m.ErrMalformedModule, err)
	}

	if err := module.Structure.Validate(); err != nil {
		return m.InstrumentedModule{}, err
	}

	return module, nil
}
