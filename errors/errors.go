package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseCoerce   Phase = "coerce"   // host value conversion
	PhaseLimits   Phase = "limits"   // size limit parsing and checks
	PhaseTable    Phase = "table"    // table operations
	PhaseMemory   Phase = "memory"   // memory operations
	PhaseGlobal   Phase = "global"   // global construction and access
	PhaseCompile  Phase = "compile"  // module compilation
	PhaseLink     Phase = "link"     // import resolution and instantiation
	PhaseDescribe Phase = "describe" // module and function introspection
	PhaseRuntime  Phase = "runtime"  // calls into instances
)

// Kind classifies a boundary failure
type Kind string

const (
	KindTypeError    Kind = "TypeError"
	KindRangeError   Kind = "RangeError"
	KindLinkError    Kind = "LinkError"
	KindCompileError Kind = "CompileError"
)

// Sentinels for errors.Is matching on kind alone.
var (
	ErrTypeError    = &Error{Kind: KindTypeError}
	ErrRangeError   = &Error{Kind: KindRangeError}
	ErrLinkError    = &Error{Kind: KindLinkError}
	ErrCompileError = &Error{Kind: KindCompileError}
)

// Error is the classified error record
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Message returns the detail without phase, kind or cause decoration.
func (e *Error) Message() string {
	return e.Detail
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// An empty Phase on the target matches any phase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Phase == "" || e.Phase == t.Phase
}

// KindOf returns the kind of the first classified error in err's chain,
// or the empty Kind when err carries no classification.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// As is the standard library errors.As, re-exported so callers importing
// this package do not need a second errors import.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// TypeError creates an argument shape or type precondition error
func TypeError(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeError,
		Detail: detail,
	}
}

// RangeError creates an out-of-range error
func RangeError(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRangeError,
		Detail: detail,
	}
}

// LinkError creates a structural or limits violation error
func LinkError(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindLinkError,
		Detail: detail,
		Cause:  cause,
	}
}

// CompileError creates an engine-reported malformation error
func CompileError(cause error) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindCompileError,
		Detail: "invalid module",
		Cause:  cause,
	}
}

// Wrap wraps an existing error with a classification
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// OutOfBounds creates a RangeError for an index past the current size
func OutOfBounds(phase Phase, what string, index, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRangeError,
		Detail: fmt.Sprintf("%s index out of bounds: %d (size %d)", what, index, size),
		Value:  index,
	}
}

// InsufficientArguments creates the TypeError raised before any coercion
// when a call supplies fewer arguments than required.
func InsufficientArguments(required, given int) *Error {
	return &Error{
		Kind:   KindTypeError,
		Detail: fmt.Sprintf("insufficient number of arguments: %d required, %d given", required, given),
		Value:  given,
	}
}

// ArgumentType creates a TypeError naming the offending positional argument
func ArgumentType(position int, expected string) *Error {
	return &Error{
		Kind:   KindTypeError,
		Detail: fmt.Sprintf("%s argument must be %s", ordinal(position), expected),
		Value:  position,
	}
}

func ordinal(position int) string {
	switch position {
	case 0:
		return "first"
	case 1:
		return "second"
	case 2:
		return "third"
	default:
		return fmt.Sprintf("#%d", position+1)
	}
}
