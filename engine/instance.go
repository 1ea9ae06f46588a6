package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/store"
)

// Instance is an instantiated module. Its exports are *store.FunctionRef,
// *store.Memory, *store.Global and, for re-exported imports, *store.Table.
type Instance struct {
	module  *Module
	ec      *ExecutionContext
	mod     api.Module
	exports map[string]any
	names   []string
}

// Module returns the module the instance was created from.
func (i *Instance) Module() *Module {
	return i.module
}

// ContextID returns the identifier of the instance's execution context.
func (i *Instance) ContextID() string {
	return i.ec.ID()
}

// Exports returns a copy of the export bindings.
//
// A table export is present only when the module re-exports an imported
// table; it is the host *store.Table that was imported. The instance runs
// on a copy of that table taken at link time, so later writes on either
// side are not shared.
func (i *Instance) Exports() map[string]any {
	out := make(map[string]any, len(i.exports))
	for name, v := range i.exports {
		out[name] = v
	}
	return out
}

// ExportNames returns the exposed export names in declaration order.
func (i *Instance) ExportNames() []string {
	return append([]string(nil), i.names...)
}

// Export returns the binding for name.
func (i *Instance) Export(name string) (any, bool) {
	v, ok := i.exports[name]
	return v, ok
}

// Function returns the exported function name.
func (i *Instance) Function(name string) (*store.FunctionRef, bool) {
	f, ok := i.exports[name].(*store.FunctionRef)
	return f, ok
}

// Memory returns the exported memory name.
func (i *Instance) Memory(name string) (*store.Memory, bool) {
	m, ok := i.exports[name].(*store.Memory)
	return m, ok
}

// Global returns the exported global name.
func (i *Instance) Global(name string) (*store.Global, bool) {
	g, ok := i.exports[name].(*store.Global)
	return g, ok
}

// Table returns the exported table name. The result is the imported host
// table, whose contents the instance copied when it was linked; see Exports.
func (i *Instance) Table(name string) (*store.Table, bool) {
	t, ok := i.exports[name].(*store.Table)
	return t, ok
}

// Functions returns the names of exported functions, sorted.
func (i *Instance) Functions() []string {
	var names []string
	for name, v := range i.exports {
		if _, ok := v.(*store.FunctionRef); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Call invokes the exported function name with host arguments.
func (i *Instance) Call(ctx context.Context, name string, args ...any) ([]any, error) {
	f, ok := i.Function(name)
	if !ok {
		return nil, errors.New(errors.PhaseRuntime, errors.KindTypeError).
			Value(name).
			Detail("%q is not an exported function", name).
			Build()
	}
	return f.Call(ctx, args...)
}

// Close releases the instance and every module created to link it.
func (i *Instance) Close(ctx context.Context) error {
	if err := i.ec.Close(ctx); err != nil {
		return fmt.Errorf("close instance %s: %w", i.ec.ID(), err)
	}
	return nil
}
