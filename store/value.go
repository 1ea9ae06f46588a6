package store

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/hostval"
	"github.com/wippyai/wasm-jsapi/wasm"
)

// VoidValue is the type of Void.
type VoidValue struct{}

func (VoidValue) String() string { return "void" }

// Void is returned where an operation has no value to report, such as an
// empty table slot or a table write. It is distinct from a nil reference.
var Void VoidValue

// ParseValueType maps a value type tag ("i32", "i64", "f32", "f64") onto its
// binary encoding.
func ParseValueType(tag string) (wasm.ValType, error) {
	switch tag {
	case hostval.TagI32:
		return wasm.ValI32, nil
	case hostval.TagI64:
		return wasm.ValI64, nil
	case hostval.TagF32:
		return wasm.ValF32, nil
	case hostval.TagF64:
		return wasm.ValF64, nil
	}
	return 0, errors.New(errors.PhaseCoerce, errors.KindTypeError).
		Value(tag).
		Detail("invalid value type %q", tag).
		Build()
}

// IsNumeric reports whether vt is one of the four scalar value types.
func IsNumeric(vt wasm.ValType) bool {
	switch vt {
	case wasm.ValI32, wasm.ValI64, wasm.ValF32, wasm.ValF64:
		return true
	}
	return false
}

// EncodeValue coerces a host value to vt and returns the engine's raw
// 64-bit representation.
func EncodeValue(vt wasm.ValType, v any) (uint64, error) {
	if !IsNumeric(vt) {
		return 0, errors.TypeError(errors.PhaseCoerce, "unsupported value type "+vt.String())
	}
	s, err := hostval.ToScalar(v, vt.String())
	if err != nil {
		return 0, err
	}
	switch x := s.(type) {
	case int32:
		return api.EncodeI32(x), nil
	case int64:
		return api.EncodeI64(x), nil
	case float32:
		return api.EncodeF32(x), nil
	default:
		return api.EncodeF64(x.(float64)), nil
	}
}

// DecodeValue converts a raw engine value of type vt to a Go scalar:
// int32, int64, float32 or float64.
func DecodeValue(vt wasm.ValType, raw uint64) any {
	switch vt {
	case wasm.ValI32:
		return api.DecodeI32(raw)
	case wasm.ValI64:
		return int64(raw)
	case wasm.ValF32:
		return api.DecodeF32(raw)
	case wasm.ValF64:
		return api.DecodeF64(raw)
	default:
		return raw
	}
}
