// Package errors provides the classified error record used at the API boundary.
//
// Every failure that crosses the boundary carries a Kind (TypeError, RangeError,
// LinkError or CompileError), the Phase it was detected in, a human-readable
// detail and an optional wrapped cause.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseTable, errors.KindRangeError).
//		Value(index).
//		Detail("table index out of bounds: %d", index).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeError(errors.PhaseCoerce, "cannot convert to bytes")
//	err := errors.OutOfBounds(errors.PhaseTable, "table", 10, 5)
//
// Call sites match on kind rather than on concrete types:
//
//	if errors.KindOf(err) == errors.KindLinkError { ... }
//	if stderrors.Is(err, errors.ErrRangeError) { ... }
package errors
