// Package hostval converts loosely-typed host values into the WebAssembly
// value model.
//
// Host values are plain Go values (numbers, strings, bools, slices, maps)
// or wrapper types implementing one of the capability interfaces:
//
//	ByteReadable       array-like value with a length and indexed elements
//	NumberConvertible  value with an exact integer and/or float reading
//	StringConvertible  value with a string reading
//	BoolConvertible    value with a boolean reading
//	Nullable           value that may represent the host null
//	Object             value with named members (import objects)
//
// Every coercion validates shape before interpreting content and reports
// failures as TypeError records from the errors package.
package hostval
