package hostval

// ByteReadable is implemented by array-like host values.
type ByteReadable interface {
	Len() int64
	Index(i int64) (any, error)
}

// NumberConvertible is implemented by wrapped numeric host values.
// Int64 reports false when the value has no exact integer representation.
type NumberConvertible interface {
	Int64() (int64, bool)
	Float64() (float64, bool)
}

// StringConvertible is implemented by host values with a string reading.
type StringConvertible interface {
	AsString() (string, bool)
}

// BoolConvertible is implemented by host values with a boolean reading.
type BoolConvertible interface {
	AsBool() (bool, bool)
}

// Nullable is implemented by host values that may be the host null.
type Nullable interface {
	IsNull() bool
}

// Object is implemented by host values with named members.
type Object interface {
	Member(name string) (any, bool)
}

// Null is the host null marker.
type Null struct{}

func (Null) IsNull() bool { return true }

// Number is a host number with float64 storage.
type Number float64

func (n Number) Int64() (int64, bool) {
	return exactInt64(float64(n))
}

func (n Number) Float64() (float64, bool) {
	return float64(n), true
}

// String is a host string.
type String string

func (s String) AsString() (string, bool) {
	return string(s), true
}

// Bool is a host boolean.
type Bool bool

func (b Bool) AsBool() (bool, bool) {
	return bool(b), true
}

// Array is an array-like host value holding arbitrary elements.
type Array []any

func (a Array) Len() int64 {
	return int64(len(a))
}

func (a Array) Index(i int64) (any, error) {
	if i < 0 || i >= int64(len(a)) {
		return nil, errIndex(i, int64(len(a)))
	}
	return a[i], nil
}

// Map is an Object backed by a Go map.
type Map map[string]any

func (m Map) Member(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}
