package store

import (
	"context"
	"fmt"

	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/wasm"
)

// Function is a callable engine function working on raw 64-bit values.
// wazero's api.Function satisfies it.
type Function interface {
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// FunctionRef identifies a function by index and signature.
type FunctionRef struct {
	fn    Function
	Name  string
	Type  wasm.FuncType
	Index uint32
}

// NewFunctionRef returns a reference to fn, function index within its module.
func NewFunctionRef(index uint32, name string, typ wasm.FuncType, fn Function) *FunctionRef {
	return &FunctionRef{Index: index, Name: name, Type: typ, fn: fn}
}

// Function returns the underlying engine function.
func (f *FunctionRef) Function() Function {
	return f.fn
}

// Call coerces args to the parameter types, invokes the function and
// returns its results as Go scalars.
func (f *FunctionRef) Call(ctx context.Context, args ...any) ([]any, error) {
	if f.fn == nil {
		return nil, errors.TypeError(errors.PhaseRuntime, "function reference is not callable")
	}
	if len(args) < len(f.Type.Params) {
		return nil, errors.InsufficientArguments(len(f.Type.Params), len(args))
	}

	params := make([]uint64, len(f.Type.Params))
	for i, vt := range f.Type.Params {
		raw, err := EncodeValue(vt, args[i])
		if err != nil {
			return nil, errors.Wrap(errors.PhaseRuntime, errors.KindTypeError, err,
				fmt.Sprintf("argument %d of %s", i, f))
		}
		params[i] = raw
	}

	raw, err := f.fn.Call(ctx, params...)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", f, err)
	}
	results := make([]any, len(f.Type.Results))
	for i, vt := range f.Type.Results {
		results[i] = DecodeValue(vt, raw[i])
	}
	return results, nil
}

func (f *FunctionRef) String() string {
	if f.Name != "" {
		return fmt.Sprintf("%s#%d", f.Name, f.Index)
	}
	return fmt.Sprintf("func#%d", f.Index)
}

// HostFunc is a Go function a module can import.
// Fn receives arguments as Go scalars and returns one result per result type.
type HostFunc struct {
	Fn   func(ctx context.Context, args []any) ([]any, error)
	Type wasm.FuncType
}

// NewHostFunc builds a HostFunc with the given signature.
func NewHostFunc(params, results []wasm.ValType, fn func(ctx context.Context, args []any) ([]any, error)) *HostFunc {
	return &HostFunc{Type: wasm.FuncType{Params: params, Results: results}, Fn: fn}
}

// Invoke decodes raw engine values, runs Fn and encodes its results back
// into stack, which must be large enough for both.
func (h *HostFunc) Invoke(ctx context.Context, stack []uint64) error {
	args := make([]any, len(h.Type.Params))
	for i, vt := range h.Type.Params {
		args[i] = DecodeValue(vt, stack[i])
	}
	results, err := h.Fn(ctx, args)
	if err != nil {
		return err
	}
	if len(results) != len(h.Type.Results) {
		return fmt.Errorf("host function returned %d results, want %d", len(results), len(h.Type.Results))
	}
	for i, vt := range h.Type.Results {
		raw, err := EncodeValue(vt, results[i])
		if err != nil {
			return fmt.Errorf("host function result %d: %w", i, err)
		}
		stack[i] = raw
	}
	return nil
}
