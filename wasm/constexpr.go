package wasm

import "github.com/wippyai/wasm-jsapi/wasm/internal/binary"

// I32Const returns the constant expression `i32.const v; end`.
func I32Const(v int32) []byte {
	w := binary.NewWriter()
	w.Byte(OpI32Const)
	w.WriteS32(v)
	w.Byte(OpEnd)
	return w.Bytes()
}

// I64Const returns the constant expression `i64.const v; end`.
func I64Const(v int64) []byte {
	w := binary.NewWriter()
	w.Byte(OpI64Const)
	w.WriteS64(v)
	w.Byte(OpEnd)
	return w.Bytes()
}

// F32Const returns the constant expression `f32.const v; end`.
func F32Const(v float32) []byte {
	w := binary.NewWriter()
	w.Byte(OpF32Const)
	w.WriteF32(v)
	w.Byte(OpEnd)
	return w.Bytes()
}

// F64Const returns the constant expression `f64.const v; end`.
func F64Const(v float64) []byte {
	w := binary.NewWriter()
	w.Byte(OpF64Const)
	w.WriteF64(v)
	w.Byte(OpEnd)
	return w.Bytes()
}

// ZeroConst returns the zero constant expression for a numeric type.
func ZeroConst(vt ValType) []byte {
	switch vt {
	case ValI64:
		return I64Const(0)
	case ValF32:
		return F32Const(0)
	case ValF64:
		return F64Const(0)
	default:
		return I32Const(0)
	}
}

// U32 encodes v as unsigned LEB128, for building instruction immediates.
func U32(v uint32) []byte {
	w := binary.NewWriter()
	w.WriteU32(v)
	return w.Bytes()
}
