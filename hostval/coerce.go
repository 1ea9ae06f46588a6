package hostval

import (
	"fmt"
	"math"

	"github.com/wippyai/wasm-jsapi/errors"
)

// Value type tags accepted by ToScalar.
const (
	TagI32 = "i32"
	TagI64 = "i64"
	TagF32 = "f32"
	TagF64 = "f64"
)

func errIndex(i, n int64) error {
	return fmt.Errorf("index %d out of range [0, %d)", i, n)
}

func cannotConvertToBytes(cause error) *errors.Error {
	return errors.Wrap(errors.PhaseCoerce, errors.KindTypeError, cause, "cannot convert to bytes")
}

// ToBytes reads an array-like host value into a byte slice.
// Numeric elements are truncated to their low byte; wrapped elements go
// through NumberConvertible and must fit in a byte.
func ToBytes(v any) ([]byte, error) {
	switch s := v.(type) {
	case []byte:
		out := make([]byte, len(s))
		copy(out, s)
		return out, nil
	case []int8:
		out := make([]byte, len(s))
		for i, b := range s {
			out[i] = byte(b)
		}
		return out, nil
	case []int:
		out := make([]byte, len(s))
		for i, b := range s {
			out[i] = byte(b)
		}
		return out, nil
	case []int32:
		out := make([]byte, len(s))
		for i, b := range s {
			out[i] = byte(b)
		}
		return out, nil
	case []float64:
		out := make([]byte, len(s))
		for i, b := range s {
			out[i] = byte(int64(b))
		}
		return out, nil
	case []any:
		return readBytes(Array(s))
	case ByteReadable:
		return readBytes(s)
	}
	return nil, cannotConvertToBytes(nil)
}

const readChunk = 64 << 10

func readBytes(src ByteReadable) ([]byte, error) {
	size := src.Len()
	if size < 0 || size > math.MaxUint32 {
		return nil, cannotConvertToBytes(fmt.Errorf("size %d does not fit in u32", size))
	}

	// Len is host-reported; grow with the elements actually read.
	out := make([]byte, 0, min(size, readChunk))
	for i := int64(0); i < size; i++ {
		elem, err := src.Index(i)
		if err != nil {
			return nil, cannotConvertToBytes(err)
		}
		b, err := toByte(elem)
		if err != nil {
			return nil, cannotConvertToBytes(fmt.Errorf("element %d: %w", i, err))
		}
		out = append(out, b)
	}
	return out, nil
}

func toByte(v any) (byte, error) {
	switch n := v.(type) {
	case byte:
		return n, nil
	case int8:
		return byte(n), nil
	case int:
		return byte(n), nil
	case int16:
		return byte(n), nil
	case int32:
		return byte(n), nil
	case int64:
		return byte(n), nil
	case uint16:
		return byte(n), nil
	case uint32:
		return byte(n), nil
	case uint64:
		return byte(n), nil
	case float32:
		return byte(int64(n)), nil
	case float64:
		return byte(int64(n)), nil
	case NumberConvertible:
		i, ok := n.Int64()
		if !ok || i < math.MinInt8 || i > math.MaxUint8 {
			return 0, fmt.Errorf("value %v does not fit in a byte", v)
		}
		return byte(i), nil
	}
	return 0, fmt.Errorf("unsupported element %T", v)
}

// ToScalar coerces v to the scalar named by tag and returns an int32,
// int64, float32 or float64.
func ToScalar(v any, tag string) (any, error) {
	var (
		out any
		ok  bool
	)
	switch tag {
	case TagI32:
		out, ok = asInt32(v)
	case TagI64:
		out, ok = asInt64(v)
	case TagF32:
		out, ok = asFloat32(v)
	case TagF64:
		out, ok = asFloat64(v)
	default:
		return nil, errors.New(errors.PhaseCoerce, errors.KindTypeError).
			Value(tag).
			Detail("invalid value type %q", tag).
			Build()
	}
	if !ok {
		return nil, errors.New(errors.PhaseCoerce, errors.KindTypeError).
			Value(v).
			Detail("cannot convert value to the specified value type %s", tag).
			Build()
	}
	return out, nil
}

// ValidTag reports whether tag names one of the four scalar value types.
func ValidTag(tag string) bool {
	switch tag {
	case TagI32, TagI64, TagF32, TagF64:
		return true
	}
	return false
}

// ToU32 coerces a size or index argument.
// Negative 32-bit values are reinterpreted as unsigned, so callers must
// compare the result with unsigned semantics.
func ToU32(v any) (uint32, error) {
	i, ok := asInt64(v)
	if !ok || i < math.MinInt32 || i > math.MaxUint32 {
		return 0, errors.New(errors.PhaseCoerce, errors.KindTypeError).
			Value(v).
			Detail("value %v is not convertible to u32", v).
			Build()
	}
	return uint32(i), nil
}

// ToInt32 coerces v to an exact int32.
func ToInt32(v any) (int32, error) {
	i, ok := asInt32(v)
	if !ok {
		return 0, errors.New(errors.PhaseCoerce, errors.KindTypeError).
			Value(v).
			Detail("value %v is not convertible to i32", v).
			Build()
	}
	return i, nil
}

// ToString coerces v to a string.
func ToString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case StringConvertible:
		if str, ok := s.AsString(); ok {
			return str, nil
		}
	}
	return "", errors.New(errors.PhaseCoerce, errors.KindTypeError).
		Value(v).
		Detail("value of type %T is not convertible to string", v).
		Build()
}

// ToBool coerces v to a bool.
func ToBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case BoolConvertible:
		if x, ok := b.AsBool(); ok {
			return x, nil
		}
	}
	return false, errors.New(errors.PhaseCoerce, errors.KindTypeError).
		Value(v).
		Detail("value of type %T is not convertible to boolean", v).
		Build()
}

// IsNull reports whether v is the host null or absence marker.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	if n, ok := v.(Nullable); ok {
		return n.IsNull()
	}
	return false
}

// Member reads a named member of an object-like host value.
func Member(obj any, name string) (any, bool) {
	switch o := obj.(type) {
	case map[string]any:
		v, ok := o[name]
		return v, ok
	case Object:
		return o.Member(name)
	}
	return nil, false
}

// IsObject reports whether v exposes named members.
func IsObject(v any) bool {
	switch v.(type) {
	case map[string]any, Object:
		return true
	}
	return false
}

func asInt32(v any) (int32, bool) {
	i, ok := asInt64(v)
	if !ok || i < math.MinInt32 || i > math.MaxInt32 {
		return 0, false
	}
	return int32(i), true
}

func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint:
		if uint64(v) <= math.MaxInt64 {
			return int64(v), true
		}
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v), true
		}
	case float32:
		return exactInt64(float64(v))
	case float64:
		return exactInt64(v)
	case NumberConvertible:
		return v.Int64()
	}
	return 0, false
}

func exactInt64(f float64) (int64, bool) {
	// 2^63 is exactly representable; anything at or above it overflows.
	if math.IsNaN(f) || f < math.MinInt64 || f >= 1<<63 || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func asFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case NumberConvertible:
		if f, ok := v.Float64(); ok {
			return f, true
		}
		if i, ok := v.Int64(); ok {
			return exactFloat64(i)
		}
		return 0, false
	}
	if i, ok := asInt64(value); ok {
		return exactFloat64(i)
	}
	return 0, false
}

func exactFloat64(i int64) (float64, bool) {
	f := float64(i)
	if f >= 1<<63 || int64(f) != i {
		return 0, false
	}
	return f, true
}

func asFloat32(value any) (float32, bool) {
	if f, ok := value.(float32); ok {
		return f, true
	}
	f, ok := asFloat64(value)
	if !ok {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return float32(f), true
	}
	if float64(float32(f)) != f {
		return 0, false
	}
	return float32(f), true
}
