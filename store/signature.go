package store

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/wasm"
)

// TypeCode returns the single-character signature code of a scalar type.
func TypeCode(vt wasm.ValType) (byte, bool) {
	switch vt {
	case wasm.ValI32:
		return 'i', true
	case wasm.ValI64:
		return 'l', true
	case wasm.ValF32:
		return 'f', true
	case wasm.ValF64:
		return 'd', true
	}
	return 0, false
}

// FormatSignature renders ref as <index>(<param codes>)<result codes>,
// for example 7(ii)d. A function without results ends at the parenthesis.
func FormatSignature(ref *FunctionRef) (string, error) {
	if ref == nil {
		return "", errors.TypeError(errors.PhaseDescribe, "not a function reference")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d(", ref.Index)
	if err := writeCodes(&b, ref.Type.Params); err != nil {
		return "", err
	}
	b.WriteByte(')')
	if err := writeCodes(&b, ref.Type.Results); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeCodes(b *strings.Builder, types []wasm.ValType) error {
	for _, vt := range types {
		c, ok := TypeCode(vt)
		if !ok {
			return errors.New(errors.PhaseDescribe, errors.KindTypeError).
				Value(vt).
				Detail("unresolved signature: %s has no type code", vt).
				Build()
		}
		b.WriteByte(c)
	}
	return nil
}

// WITType maps a scalar value type onto its WIT primitive.
func WITType(vt wasm.ValType) (wit.Type, bool) {
	switch vt {
	case wasm.ValI32:
		return wit.S32{}, true
	case wasm.ValI64:
		return wit.S64{}, true
	case wasm.ValF32:
		return wit.F32{}, true
	case wasm.ValF64:
		return wit.F64{}, true
	}
	return nil, false
}

func witName(t wit.Type) string {
	switch t.(type) {
	case wit.S32:
		return "s32"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	default:
		return "_"
	}
}

// WITSignature renders a core signature in WIT function syntax, e.g.
// "func(p0: s32, p1: s32) -> f64". Multiple results render as a tuple.
func WITSignature(ft wasm.FuncType) (string, error) {
	var b strings.Builder
	b.WriteString("func(")
	for i, vt := range ft.Params {
		t, ok := WITType(vt)
		if !ok {
			return "", fmt.Errorf("parameter %d: no WIT type for %s", i, vt)
		}
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "p%d: %s", i, witName(t))
	}
	b.WriteByte(')')

	names := make([]string, len(ft.Results))
	for i, vt := range ft.Results {
		t, ok := WITType(vt)
		if !ok {
			return "", fmt.Errorf("result %d: no WIT type for %s", i, vt)
		}
		names[i] = witName(t)
	}
	switch len(names) {
	case 0:
	case 1:
		b.WriteString(" -> " + names[0])
	default:
		b.WriteString(" -> tuple<" + strings.Join(names, ", ") + ">")
	}
	return b.String(), nil
}
