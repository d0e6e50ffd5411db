package model

import (
	"errors"
	"fmt"
)

// ErrMalformedModule reports a module document that cannot be turned into a
// block graph: bad encoding, dangling successors or an empty method.
var ErrMalformedModule = errors.New("malformed module")

// FieldDecl declares a data item tracked for data coverage.
type FieldDecl struct {
	Name   string `yaml:"name"`             // qualified: Type.field or pkg.var
	Static bool   `yaml:"static,omitempty"` // package-level variable
}

// FieldAccess is a read or write of a tracked field inside a block.
type FieldAccess struct {
	Field string `yaml:"field"`
	Write bool   `yaml:"write,omitempty"`
}

// Block is a basic block of a method, annotated with its source line.
//
// A conditional block has exactly two successors: Succs[0] is taken when the
// condition is false (no jump), Succs[1] when it holds (jump). A plain block has
// at most one successor and an exit block has none.
type Block struct {
	Line        uint32        `yaml:"line"`
	Conditional bool          `yaml:"conditional,omitempty"`
	Succs       []int         `yaml:"succs,flow,omitempty"`
	Fields      []FieldAccess `yaml:"fields,omitempty"`
}

// Exit reports whether the block returns from the method.
func (b Block) Exit() bool {
	return len(b.Succs) == 0
}

// Method is the control-flow structure of one function body. Block 0 is the entry.
type Method struct {
	Name     string  `yaml:"name"`
	LastLine uint32  `yaml:"last_line,omitempty"`
	Blocks   []Block `yaml:"blocks"`
}

// FirstLine returns the line of the entry block.
func (m Method) FirstLine() uint32 {
	if len(m.Blocks) == 0 {
		return 0
	}

	return m.Blocks[0].Line
}

// ModuleStructure is the structural representation of a compiled module.
type ModuleStructure struct {
	Module  ModuleName  `yaml:"module"`
	Origin  Path        `yaml:"origin,omitempty"`
	Fields  []FieldDecl `yaml:"fields,omitempty"`
	Methods []Method    `yaml:"methods"`
}

// Validate checks the block graph invariants.
func (s *ModuleStructure) Validate() error {
	if s.Module == "" {
		return fmt.Errorf("%w: module name is empty", ErrMalformedModule)
	}

	for _, method := range s.Methods {
		if err := method.validate(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrMalformedModule, s.Module, err)
		}
	}

	return nil
}

func (m Method) validate() error {
	if len(m.Blocks) == 0 {
		return fmt.Errorf("method %s has no blocks", m.Name)
	}

	for i, block := range m.Blocks {
		if block.Line == 0 {
			return fmt.Errorf("method %s: block %d has no line", m.Name, i)
		}

		if block.Conditional && len(block.Succs) != 2 {
			return fmt.Errorf("method %s: conditional block %d needs two successors", m.Name, i)
		}

		if !block.Conditional && len(block.Succs) > 1 {
			return fmt.Errorf("method %s: plain block %d has %d successors", m.Name, i, len(block.Succs))
		}

		for _, succ := range block.Succs {
			if succ < 0 || succ >= len(m.Blocks) {
				return fmt.Errorf("method %s: block %d jumps to %d", m.Name, i, succ)
			}
		}
	}

	return nil
}
