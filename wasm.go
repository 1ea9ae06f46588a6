package wasmjsapi

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-jsapi/engine"
	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/hostval"
	"github.com/wippyai/wasm-jsapi/limits"
	"github.com/wippyai/wasm-jsapi/store"
)

// WebAssembly is the host-facing API. Every method coerces its host
// arguments, delegates to the engine or store and returns classified
// errors.
type WebAssembly struct {
	engine  *engine.Engine
	log     *zap.Logger
	members map[string]member
}

// InstantiatedSource pairs a module compiled from bytes with its instance.
type InstantiatedSource struct {
	Module   *engine.Module
	Instance *engine.Instance
}

// New creates the API on a fresh engine. A nil cfg uses defaults.
func New(ctx context.Context, cfg *engine.Config) (*WebAssembly, error) {
	e, err := engine.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	w := &WebAssembly{engine: e, log: Logger()}
	w.members = w.memberTable()
	return w, nil
}

// Engine returns the underlying engine.
func (w *WebAssembly) Engine() *engine.Engine {
	return w.engine
}

// Close releases the engine and every instance created through it.
func (w *WebAssembly) Close(ctx context.Context) error {
	return w.engine.Close(ctx)
}

// Compile compiles a byte source into a module.
func (w *WebAssembly) Compile(ctx context.Context, source any) (*engine.Module, error) {
	bin, err := hostval.ToBytes(source)
	if err != nil {
		return nil, err
	}
	return w.engine.Compile(ctx, bin)
}

// Validate reports whether source compiles. Only a source that is not
// byte-convertible is an error.
func (w *WebAssembly) Validate(ctx context.Context, source any) (bool, error) {
	bin, err := hostval.ToBytes(source)
	if err != nil {
		return false, err
	}
	return w.engine.Validate(ctx, bin), nil
}

// Instantiate links a module, or compiles and links a byte source. It
// returns *engine.Instance for a module and *InstantiatedSource for bytes.
func (w *WebAssembly) Instantiate(ctx context.Context, source, imports any) (any, error) {
	if m, ok := source.(*engine.Module); ok {
		return w.InstantiateModule(ctx, m, imports)
	}
	return w.InstantiateSource(ctx, source, imports)
}

// InstantiateModule links m against imports.
func (w *WebAssembly) InstantiateModule(ctx context.Context, m *engine.Module, imports any) (*engine.Instance, error) {
	return w.engine.Instantiate(ctx, m, imports)
}

// InstantiateSource compiles source and links the result against imports.
func (w *WebAssembly) InstantiateSource(ctx context.Context, source, imports any) (*InstantiatedSource, error) {
	m, err := w.Compile(ctx, source)
	if err != nil {
		return nil, err
	}
	inst, err := w.engine.Instantiate(ctx, m, imports)
	if err != nil {
		return nil, err
	}
	return &InstantiatedSource{Module: m, Instance: inst}, nil
}

// Memory creates a standalone memory from initial[, maximum] page counts.
func (w *WebAssembly) Memory(args ...any) (*store.Memory, error) {
	l, err := limits.Parse(args...)
	if err != nil {
		return nil, err
	}
	return store.NewMemory(l)
}

// Global creates a standalone global. valueType must be convertible to a
// string and mutable to a boolean.
func (w *WebAssembly) Global(valueType, mutable, value any) (*store.Global, error) {
	tag, err := hostval.ToString(valueType)
	if err != nil {
		return nil, errors.New(errors.PhaseGlobal, errors.KindTypeError).
			Value(valueType).
			Cause(err).
			Detail("first argument (value type) must be convertible to string").
			Build()
	}
	mut, err := hostval.ToBool(mutable)
	if err != nil {
		return nil, errors.New(errors.PhaseGlobal, errors.KindTypeError).
			Value(mutable).
			Cause(err).
			Detail("second argument (mutable) must be convertible to boolean").
			Build()
	}
	return store.NewGlobal(tag, mut, value)
}

// ModuleExports lists the exports of a module.
func (w *WebAssembly) ModuleExports(m any) ([]engine.Descriptor, error) {
	mod, err := toModule(m)
	if err != nil {
		return nil, err
	}
	return mod.Exports(), nil
}

// ModuleImports lists the imports of a module.
func (w *WebAssembly) ModuleImports(m any) ([]engine.Descriptor, error) {
	mod, err := toModule(m)
	if err != nil {
		return nil, err
	}
	return mod.Imports(), nil
}

// ModuleCustomSections returns the contents of the module's custom
// sections called name.
func (w *WebAssembly) ModuleCustomSections(m, name any) ([][]byte, error) {
	mod, err := toModule(m)
	if err != nil {
		return nil, err
	}
	s, err := hostval.ToString(name)
	if err != nil {
		return nil, argumentError(1, "convertible to string", err)
	}
	return mod.CustomSections(s), nil
}

// TableAlloc creates a standalone table from initial[, maximum] sizes.
func (w *WebAssembly) TableAlloc(args ...any) (*store.Table, error) {
	l, err := limits.Parse(args...)
	if err != nil {
		return nil, err
	}
	return store.AllocTable(l)
}

// TableGrow appends delta empty slots and returns the previous size.
func (w *WebAssembly) TableGrow(table, delta any) (uint32, error) {
	t, err := toTable(table)
	if err != nil {
		return 0, err
	}
	raw, err := hostval.ToScalar(delta, hostval.TagI64)
	if err != nil {
		return 0, argumentError(1, "an integer", err)
	}
	n := raw.(int64)
	if n < 0 || n > int64(^uint32(0)) {
		return 0, errors.New(errors.PhaseTable, errors.KindRangeError).
			Value(n).
			Cause(fmt.Errorf("delta %d is not a valid u32", n)).
			Detail("table grow failed").
			Build()
	}
	return t.Grow(uint32(n))
}

// TableRead returns the element at index, or store.Void for an empty slot.
func (w *WebAssembly) TableRead(table, index any) (any, error) {
	t, err := toTable(table)
	if err != nil {
		return nil, err
	}
	i, err := toIndex(index)
	if err != nil {
		return nil, err
	}
	ref, err := t.Get(i)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return store.Void, nil
	}
	return ref, nil
}

// TableWrite stores a function reference at index. A null element clears
// the slot. It returns store.Void.
func (w *WebAssembly) TableWrite(table, index, element any) (any, error) {
	t, err := toTable(table)
	if err != nil {
		return nil, err
	}
	i, err := toIndex(index)
	if err != nil {
		return nil, err
	}

	var ref *store.FunctionRef
	switch e := element.(type) {
	case *store.FunctionRef:
		ref = e
	case store.VoidValue:
	default:
		if !hostval.IsNull(element) {
			return nil, errors.New(errors.PhaseTable, errors.KindTypeError).
				Value(element).
				Detail("invalid table element").
				Build()
		}
	}
	if err := t.Set(i, ref); err != nil {
		return nil, err
	}
	return store.Void, nil
}

// TableSize returns the current number of slots.
func (w *WebAssembly) TableSize(table any) (uint32, error) {
	t, err := toTable(table)
	if err != nil {
		return 0, err
	}
	return t.Size(), nil
}

// FuncType formats the signature of a function reference.
func (w *WebAssembly) FuncType(fn any) (string, error) {
	ref, ok := fn.(*store.FunctionRef)
	if !ok {
		return "", errors.ArgumentType(0, "a wasm function")
	}
	return store.FormatSignature(ref)
}

func toModule(v any) (*engine.Module, error) {
	m, ok := v.(*engine.Module)
	if !ok || m == nil {
		return nil, errors.ArgumentType(0, "a Module")
	}
	return m, nil
}

func toTable(v any) (*store.Table, error) {
	t, ok := v.(*store.Table)
	if !ok || t == nil {
		return nil, errors.ArgumentType(0, "a wasm table")
	}
	return t, nil
}

func toIndex(v any) (uint32, error) {
	i, err := hostval.ToU32(v)
	if err != nil {
		return 0, argumentError(1, "an integer", err)
	}
	return i, nil
}

func argumentError(position int, expected string, cause error) error {
	err := errors.ArgumentType(position, expected)
	err.Cause = cause
	return err
}
