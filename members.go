package wasmjsapi

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-jsapi/errors"
)

// member is one name-dispatched operation. arity is the number of
// arguments checked before any coercion.
type member struct {
	call  func(ctx context.Context, args []any) (any, error)
	arity int
}

func (w *WebAssembly) memberTable() map[string]member {
	return map[string]member{
		"compile": {arity: 1, call: func(ctx context.Context, args []any) (any, error) {
			return w.Compile(ctx, args[0])
		}},
		"validate": {arity: 1, call: func(ctx context.Context, args []any) (any, error) {
			return w.Validate(ctx, args[0])
		}},
		"instantiate": {arity: 2, call: func(ctx context.Context, args []any) (any, error) {
			return w.Instantiate(ctx, args[0], args[1])
		}},
		"Memory": {call: func(_ context.Context, args []any) (any, error) {
			return w.Memory(args...)
		}},
		"Global": {arity: 3, call: func(_ context.Context, args []any) (any, error) {
			return w.Global(args[0], args[1], args[2])
		}},
		"Module.exports": {arity: 1, call: func(_ context.Context, args []any) (any, error) {
			return w.ModuleExports(args[0])
		}},
		"Module.imports": {arity: 1, call: func(_ context.Context, args []any) (any, error) {
			return w.ModuleImports(args[0])
		}},
		"Module.customSections": {arity: 2, call: func(_ context.Context, args []any) (any, error) {
			return w.ModuleCustomSections(args[0], args[1])
		}},
		"table_alloc": {call: func(_ context.Context, args []any) (any, error) {
			return w.TableAlloc(args...)
		}},
		"table_grow": {arity: 2, call: func(_ context.Context, args []any) (any, error) {
			return w.TableGrow(args[0], args[1])
		}},
		"table_read": {arity: 2, call: func(_ context.Context, args []any) (any, error) {
			return w.TableRead(args[0], args[1])
		}},
		"table_write": {arity: 3, call: func(_ context.Context, args []any) (any, error) {
			return w.TableWrite(args[0], args[1], args[2])
		}},
		"table_size": {arity: 1, call: func(_ context.Context, args []any) (any, error) {
			return w.TableSize(args[0])
		}},
		"func_type": {arity: 1, call: func(_ context.Context, args []any) (any, error) {
			return w.FuncType(args[0])
		}},
	}
}

// Members returns the names Invoke dispatches, sorted.
func (w *WebAssembly) Members() []string {
	names := make([]string, 0, len(w.members))
	for name := range w.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke calls the operation registered under name. Missing arguments are
// a TypeError raised before any argument is inspected.
func (w *WebAssembly) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	m, ok := w.members[name]
	if !ok {
		return nil, errors.New(errors.PhaseDescribe, errors.KindTypeError).
			Value(name).
			Detail("unknown member %q", name).
			Build()
	}
	if len(args) < m.arity {
		return nil, errors.InsufficientArguments(m.arity, len(args))
	}

	res, err := m.call(ctx, args)
	if err != nil {
		w.log.Debug("member failed",
			zap.String("member", name),
			zap.String("kind", string(errors.KindOf(err))),
			zap.Error(err))
		return nil, err
	}
	return res, nil
}
