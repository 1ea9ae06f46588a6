package engine

import (
	"context"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasm-jsapi/wasm"
)

// Descriptor describes one import or export of a module.
// Module is empty for exports.
type Descriptor struct {
	Module string
	Name   string
	Kind   string
}

// Module is a compiled, immutable module.
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
	decoded  *wasm.Module
	bytes    []byte
}

// Bytes returns a copy of the module binary.
func (m *Module) Bytes() []byte {
	return append([]byte(nil), m.bytes...)
}

// Decoded returns the module's decoded descriptors. Callers must not
// modify the result.
func (m *Module) Decoded() *wasm.Module {
	return m.decoded
}

// Exports lists the module's exports in declaration order.
func (m *Module) Exports() []Descriptor {
	out := make([]Descriptor, len(m.decoded.Exports))
	for i, exp := range m.decoded.Exports {
		out[i] = Descriptor{Name: exp.Name, Kind: wasm.KindName(exp.Kind)}
	}
	return out
}

// Imports lists the module's imports in declaration order.
func (m *Module) Imports() []Descriptor {
	out := make([]Descriptor, len(m.decoded.Imports))
	for i, imp := range m.decoded.Imports {
		out[i] = Descriptor{Module: imp.Module, Name: imp.Name, Kind: wasm.KindName(imp.Desc.Kind)}
	}
	return out
}

// CustomSections returns copies of every custom section called name.
func (m *Module) CustomSections(name string) [][]byte {
	sections := m.decoded.CustomSectionsNamed(name)
	out := make([][]byte, len(sections))
	for i, s := range sections {
		out[i] = append([]byte(nil), s...)
	}
	return out
}

// Close releases the compiled code. Instances already created keep working.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}
