package wasmjsapi

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/store"
	"github.com/wippyai/wasm-jsapi/wasm"
)

// Host is a struct-based import namespace. All exported methods (except
// Namespace) are registered as host functions.
type Host interface {
	// Namespace returns the import module name (e.g., "env").
	Namespace() string
}

// ExplicitRegistrar allows hosts to provide exact import names when the
// automatic PascalCase to snake_case conversion doesn't apply.
type ExplicitRegistrar interface {
	Register() map[string]any
}

// Imports is an import object assembled from Go values. It can be passed
// to Instantiate wherever an import object is expected.
type Imports struct {
	values map[string]map[string]any
	mu     sync.RWMutex
}

func NewImports() *Imports {
	return &Imports{
		values: make(map[string]map[string]any),
	}
}

// Set binds an import to a store object, a host function or a number.
func (r *Imports) Set(namespace, name string, v any) error {
	if namespace == "" {
		return errors.TypeError(errors.PhaseLink, "namespace cannot be empty")
	}
	if name == "" {
		return errors.TypeError(errors.PhaseLink, "import name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.values[namespace] == nil {
		r.values[namespace] = make(map[string]any)
	}
	r.values[namespace][name] = v
	return nil
}

// RegisterFunc binds a typed Go function. See HostFuncOf for the
// accepted signatures.
func (r *Imports) RegisterFunc(namespace, name string, fn any) error {
	hf, err := HostFuncOf(fn)
	if err != nil {
		return err
	}
	return r.Set(namespace, name, hf)
}

// RegisterHost registers every exported method of h under h.Namespace().
func (r *Imports) RegisterHost(h Host) error {
	ns := h.Namespace()
	if ns == "" {
		return errors.TypeError(errors.PhaseLink, "namespace cannot be empty")
	}

	if er, ok := h.(ExplicitRegistrar); ok {
		for name, fn := range er.Register() {
			if err := r.RegisterFunc(ns, name, fn); err != nil {
				return err
			}
		}
		return nil
	}

	rv := reflect.ValueOf(h)
	rt := rv.Type()
	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)
		if !method.IsExported() || method.Name == "Namespace" {
			continue
		}
		if err := r.RegisterFunc(ns, toSnakeCase(method.Name), rv.Method(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

// Member returns a snapshot of one namespace.
func (r *Imports) Member(namespace string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fields, ok := r.values[namespace]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(fields))
	for name, v := range fields {
		out[name] = v
	}
	return out, true
}

// Namespaces returns the registered namespace names, sorted.
func (r *Imports) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.values))
	for ns := range r.values {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// scalarTypes maps Go parameter and result kinds onto value types.
var scalarTypes = map[reflect.Kind]wasm.ValType{
	reflect.Int32:   wasm.ValI32,
	reflect.Uint32:  wasm.ValI32,
	reflect.Int64:   wasm.ValI64,
	reflect.Uint64:  wasm.ValI64,
	reflect.Float32: wasm.ValF32,
	reflect.Float64: wasm.ValF64,
}

// canonicalTypes are the Go types store.EncodeValue expects per value type.
var canonicalTypes = map[wasm.ValType]reflect.Type{
	wasm.ValI32: reflect.TypeOf(int32(0)),
	wasm.ValI64: reflect.TypeOf(int64(0)),
	wasm.ValF32: reflect.TypeOf(float32(0)),
	wasm.ValF64: reflect.TypeOf(float64(0)),
}

// HostFuncOf derives a host function from a typed Go function such as
// func(int32, int32) int32. An optional leading context.Context receives
// the call context and an optional trailing error aborts the call.
func HostFuncOf(fn any) (*store.HostFunc, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, errors.New(errors.PhaseLink, errors.KindTypeError).
			Value(fn).
			Detail("handler must be a function, got %T", fn).
			Build()
	}
	rt := rv.Type()
	if rt.IsVariadic() {
		return nil, errors.TypeError(errors.PhaseLink, "variadic handlers are not supported")
	}

	first := 0
	takesContext := rt.NumIn() > 0 && rt.In(0) == contextType
	if takesContext {
		first = 1
	}
	params := make([]wasm.ValType, 0, rt.NumIn()-first)
	for i := first; i < rt.NumIn(); i++ {
		vt, ok := scalarTypes[rt.In(i).Kind()]
		if !ok {
			return nil, unsupportedHandlerType("parameter", rt.In(i))
		}
		params = append(params, vt)
	}

	numOut := rt.NumOut()
	returnsError := numOut > 0 && rt.Out(numOut-1) == errorType
	if returnsError {
		numOut--
	}
	results := make([]wasm.ValType, 0, numOut)
	for i := 0; i < numOut; i++ {
		vt, ok := scalarTypes[rt.Out(i).Kind()]
		if !ok {
			return nil, unsupportedHandlerType("result", rt.Out(i))
		}
		results = append(results, vt)
	}

	call := func(ctx context.Context, args []any) ([]any, error) {
		in := make([]reflect.Value, 0, rt.NumIn())
		if takesContext {
			in = append(in, reflect.ValueOf(ctx))
		}
		for i, a := range args {
			in = append(in, reflect.ValueOf(a).Convert(rt.In(first+i)))
		}

		out := rv.Call(in)
		if returnsError {
			if err, _ := out[numOut].Interface().(error); err != nil {
				return nil, err
			}
		}
		res := make([]any, numOut)
		for i := range res {
			res[i] = out[i].Convert(canonicalTypes[results[i]]).Interface()
		}
		return res, nil
	}
	return store.NewHostFunc(params, results, call), nil
}

func unsupportedHandlerType(what string, t reflect.Type) error {
	return errors.New(errors.PhaseLink, errors.KindTypeError).
		Value(t.String()).
		Detail("unsupported %s type %s", what, t).
		Build()
}

// toSnakeCase converts PascalCase to snake_case.
// Handles acronyms: GetHTTPURL -> get_http_url
func toSnakeCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if unicode.IsUpper(r) {
			acronymEnd := i + 1
			for acronymEnd < len(runes) && unicode.IsUpper(runes[acronymEnd]) {
				acronymEnd++
			}

			if acronymEnd > i+1 {
				// Last uppercase before lowercase starts next word, not part of acronym
				if acronymEnd < len(runes) && unicode.IsLower(runes[acronymEnd]) {
					acronymEnd--
				}
			}

			if i > 0 {
				result.WriteByte('_')
			}

			for j := i; j < acronymEnd; j++ {
				result.WriteRune(unicode.ToLower(runes[j]))
			}
			i = acronymEnd - 1
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
