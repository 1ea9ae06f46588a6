package store

import (
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/wasm"
)

// Global is a typed scalar cell, standalone or bound to an engine global.
type Global struct {
	bound   api.Global
	bits    uint64
	mu      sync.RWMutex
	typ     wasm.ValType
	mutable bool
}

// NewGlobal creates a global of the type named by tag holding raw.
// The tag is checked before the value is coerced.
func NewGlobal(tag string, mutable bool, raw any) (*Global, error) {
	vt, err := ParseValueType(tag)
	if err != nil {
		return nil, err
	}
	bits, err := EncodeValue(vt, raw)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGlobal, errors.KindTypeError, err,
			fmt.Sprintf("cannot initialize %s global", tag))
	}
	return &Global{typ: vt, mutable: mutable, bits: bits}, nil
}

// WrapGlobal returns a Global bound to an engine global, used for exports.
func WrapGlobal(g api.Global) *Global {
	_, mutable := g.(api.MutableGlobal)
	return &Global{bound: g, typ: wasm.ValType(g.Type()), mutable: mutable}
}

// Type returns the value type.
func (g *Global) Type() wasm.ValType {
	return g.typ
}

// Mutable reports whether the global may be set.
func (g *Global) Mutable() bool {
	return g.mutable
}

// Raw returns the engine representation of the current value.
func (g *Global) Raw() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.bound != nil {
		return g.bound.Get()
	}
	return g.bits
}

// Value returns the current value as int32, int64, float32 or float64.
func (g *Global) Value() any {
	return DecodeValue(g.typ, g.Raw())
}

// Set coerces v to the global's type and stores it.
func (g *Global) Set(v any) error {
	if !g.mutable {
		return errors.TypeError(errors.PhaseGlobal, "cannot set an immutable global")
	}
	bits, err := EncodeValue(g.typ, v)
	if err != nil {
		return errors.Wrap(errors.PhaseGlobal, errors.KindTypeError, err,
			fmt.Sprintf("cannot set %s global", g.typ))
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.bound != nil {
		g.bound.(api.MutableGlobal).Set(bits)
		return nil
	}
	g.bits = bits
	return nil
}

// Bind switches the global to delegate to an engine global that already
// holds its value.
func (g *Global) Bind(eg api.Global) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.bound != nil {
		return fmt.Errorf("global already bound")
	}
	if wasm.ValType(eg.Type()) != g.typ {
		return fmt.Errorf("engine global has type %s, want %s", wasm.ValType(eg.Type()), g.typ)
	}
	g.bound = eg
	return nil
}

// Bound returns the engine global, or nil for a standalone global.
func (g *Global) Bound() api.Global {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.bound
}

func (g *Global) String() string {
	mut := "const"
	if g.mutable {
		mut = "mut"
	}
	return fmt.Sprintf("global(%s %s = %v)", mut, g.typ, g.Value())
}
