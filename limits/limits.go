// Package limits parses and checks the (initial, optional maximum) size
// pairs that govern table and memory allocation.
package limits

import (
	"fmt"

	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/hostval"
)

// Limits is an initial size with an optional maximum.
// A nil Maximum means no maximum, never zero.
type Limits struct {
	Maximum *uint32
	Initial uint32
}

// New returns limits with the given initial size and no maximum.
func New(initial uint32) Limits {
	return Limits{Initial: initial}
}

// WithMax returns limits with both an initial size and a maximum.
func WithMax(initial, maximum uint32) Limits {
	return Limits{Initial: initial, Maximum: &maximum}
}

// Max returns the maximum and whether one is set.
func (l Limits) Max() (uint32, bool) {
	if l.Maximum == nil {
		return 0, false
	}
	return *l.Maximum, true
}

// MaxOr returns the maximum, or def when none is set.
func (l Limits) MaxOr(def uint32) uint32 {
	if l.Maximum == nil {
		return def
	}
	return *l.Maximum
}

func (l Limits) String() string {
	if l.Maximum == nil {
		return fmt.Sprintf("{min %d}", l.Initial)
	}
	return fmt.Sprintf("{min %d, max %d}", l.Initial, *l.Maximum)
}

// Parse reads limits from positional host arguments: the initial size,
// then an optional maximum. No ordering or ceiling check happens here.
func Parse(args ...any) (Limits, error) {
	if len(args) == 0 {
		return Limits{}, errors.TypeError(errors.PhaseLimits, "initial argument is required")
	}

	initial, err := hostval.ToU32(args[0])
	if err != nil {
		return Limits{}, errors.Wrap(errors.PhaseLimits, errors.KindTypeError, err,
			"initial argument must be convertible to u32")
	}

	if len(args) == 1 {
		return New(initial), nil
	}

	maximum, err := hostval.ToU32(args[1])
	if err != nil {
		return Limits{}, errors.Wrap(errors.PhaseLimits, errors.KindTypeError, err,
			"maximum argument must be convertible to u32")
	}
	return WithMax(initial, maximum), nil
}

// Check validates the limits for a construct named what against an
// implementation ceiling. All comparisons are unsigned; an absent
// maximum behaves as the largest u32.
func (l Limits) Check(what string, ceiling uint32) error {
	if l.Initial > l.MaxOr(^uint32(0)) {
		return errors.New(errors.PhaseLimits, errors.KindLinkError).
			Value(l.Initial).
			Detail("min %s size exceeds max %s size", what, what).
			Build()
	}
	if l.Initial > ceiling {
		return errors.New(errors.PhaseLimits, errors.KindLinkError).
			Value(l.Initial).
			Detail("min %s size exceeds implementation limit", what).
			Build()
	}
	return nil
}

// Ceiling returns min(maximum, impl), the size a construct may grow to.
func (l Limits) Ceiling(impl uint32) uint32 {
	return min(l.MaxOr(^uint32(0)), impl)
}
