package store

import (
	"fmt"
	"math"
	"sync"

	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/limits"
)

// MaxTableSize is the implementation limit on table length.
const MaxTableSize uint32 = 10_000_000

// Table is a growable array of function references.
// Its length never exceeds its ceiling, min(maximum, MaxTableSize).
type Table struct {
	elements []*FunctionRef
	maximum  uint32 // math.MaxUint32 when unbounded
	ceiling  uint32
	mu       sync.RWMutex
}

// AllocTable allocates a table of l.Initial empty slots.
func AllocTable(l limits.Limits) (*Table, error) {
	if err := l.Check("table", MaxTableSize); err != nil {
		return nil, err
	}
	maximum := l.MaxOr(math.MaxUint32)
	return &Table{
		elements: make([]*FunctionRef, l.Initial),
		maximum:  maximum,
		ceiling:  min(maximum, MaxTableSize),
	}, nil
}

// Size returns the current number of slots.
func (t *Table) Size() uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return uint32(len(t.elements))
}

// Maximum returns the declared maximum and whether one was given.
func (t *Table) Maximum() (uint32, bool) {
	return t.maximum, t.maximum != math.MaxUint32
}

// Ceiling returns the size the table can grow to.
func (t *Table) Ceiling() uint32 {
	return t.ceiling
}

// Grow appends delta empty slots and returns the size before growth.
// On failure the table is unchanged.
func (t *Table) Grow(delta uint32) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := uint32(len(t.elements))
	if delta > t.ceiling-prev {
		return prev, errors.New(errors.PhaseTable, errors.KindRangeError).
			Value(delta).
			Cause(fmt.Errorf("size %d + delta %d exceeds limit %d", prev, delta, t.ceiling)).
			Detail("table grow failed").
			Build()
	}
	t.elements = append(t.elements, make([]*FunctionRef, delta)...)
	return prev, nil
}

// Get returns the reference at index, or nil for an empty slot.
func (t *Table) Get(index uint32) (*FunctionRef, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if index >= uint32(len(t.elements)) {
		return nil, errors.OutOfBounds(errors.PhaseTable, "table", index, uint32(len(t.elements)))
	}
	return t.elements[index], nil
}

// Set stores ref at index. A nil ref clears the slot.
func (t *Table) Set(index uint32, ref *FunctionRef) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index >= uint32(len(t.elements)) {
		return errors.OutOfBounds(errors.PhaseTable, "table", index, uint32(len(t.elements)))
	}
	t.elements[index] = ref
	return nil
}

// Snapshot returns a copy of the current slots.
func (t *Table) Snapshot() []*FunctionRef {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*FunctionRef(nil), t.elements...)
}

// Limits returns the table's current size and declared maximum.
func (t *Table) Limits() limits.Limits {
	size := t.Size()
	if maximum, ok := t.Maximum(); ok {
		return limits.WithMax(size, maximum)
	}
	return limits.New(size)
}
