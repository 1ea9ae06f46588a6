package store

import (
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/limits"
)

const (
	// PageSize is the size of a WebAssembly memory page in bytes.
	PageSize = 65536

	// MaxMemoryPages is the implementation limit on memory size in pages.
	MaxMemoryPages uint32 = 65536
)

// Memory is a linear memory measured in pages. It is either a standalone
// host buffer or bound to an engine memory.
//
// A standalone memory only backs the prefix that has been written; bytes
// past len(data) and below pages*PageSize read as zero.
type Memory struct {
	bound   api.Memory
	data    []byte
	maximum *uint32
	pages   uint32
	ceiling uint32
	mu      sync.RWMutex
}

// NewMemory returns a zeroed standalone memory of l.Initial pages.
func NewMemory(l limits.Limits) (*Memory, error) {
	if err := l.Check("memory", MaxMemoryPages); err != nil {
		return nil, err
	}
	return &Memory{
		pages:   l.Initial,
		maximum: l.Maximum,
		ceiling: l.Ceiling(MaxMemoryPages),
	}, nil
}

// WrapMemory returns a Memory bound to an engine memory, used for exports.
func WrapMemory(mem api.Memory) *Memory {
	m := &Memory{bound: mem, ceiling: MaxMemoryPages}
	if maximum, ok := mem.Definition().Max(); ok {
		m.maximum = &maximum
		m.ceiling = min(maximum, MaxMemoryPages)
	}
	return m
}

// Size returns the current size in pages.
func (m *Memory) Size() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sizeLocked()
}

func (m *Memory) sizeLocked() uint32 {
	if m.bound != nil {
		return m.bound.Size() / PageSize
	}
	return m.pages
}

func (m *Memory) byteLen() uint64 {
	return uint64(m.pages) * PageSize
}

// Maximum returns the declared maximum in pages and whether one was given.
func (m *Memory) Maximum() (uint32, bool) {
	if m.maximum == nil {
		return 0, false
	}
	return *m.maximum, true
}

// Limits returns the memory's current size and declared maximum.
func (m *Memory) Limits() limits.Limits {
	return limits.Limits{Initial: m.Size(), Maximum: m.maximum}
}

// Grow adds delta zeroed pages and returns the size before growth.
func (m *Memory) Grow(delta uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.sizeLocked()
	if delta > m.ceiling-prev {
		return prev, m.growError(delta, fmt.Errorf("size %d + delta %d exceeds limit %d", prev, delta, m.ceiling))
	}
	if m.bound != nil {
		if _, ok := m.bound.Grow(delta); !ok {
			return prev, m.growError(delta, fmt.Errorf("engine refused to grow by %d pages", delta))
		}
		return prev, nil
	}
	m.pages += delta
	return prev, nil
}

func (m *Memory) growError(delta uint32, cause error) error {
	return errors.New(errors.PhaseMemory, errors.KindRangeError).
		Value(delta).
		Cause(cause).
		Detail("memory grow failed").
		Build()
}

// Read copies n bytes starting at offset.
func (m *Memory) Read(offset, n uint32) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.bound != nil {
		buf, ok := m.bound.Read(offset, n)
		if !ok {
			return nil, m.boundsError(offset, n)
		}
		return append([]byte(nil), buf...), nil
	}
	if uint64(offset)+uint64(n) > m.byteLen() {
		return nil, m.boundsError(offset, n)
	}
	out := make([]byte, n)
	if uint64(offset) < uint64(len(m.data)) {
		copy(out, m.data[offset:])
	}
	return out, nil
}

// Write copies data into memory starting at offset.
func (m *Memory) Write(offset uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := uint32(len(data))
	if m.bound != nil {
		if !m.bound.Write(offset, data) {
			return m.boundsError(offset, n)
		}
		return nil
	}
	end := uint64(offset) + uint64(len(data))
	if end > m.byteLen() {
		return m.boundsError(offset, n)
	}
	if end > uint64(len(m.data)) {
		m.data = append(m.data, make([]byte, end-uint64(len(m.data)))...)
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *Memory) boundsError(offset, n uint32) error {
	return errors.New(errors.PhaseMemory, errors.KindRangeError).
		Value(offset).
		Detail("memory access out of bounds: offset %d length %d (size %d bytes)", offset, n, uint64(m.sizeLocked())*PageSize).
		Build()
}

// Bind switches the memory to delegate to mem after copying the current
// standalone contents into it. mem must be at least as large.
func (m *Memory) Bind(mem api.Memory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bound != nil {
		return fmt.Errorf("memory already bound")
	}
	if uint64(mem.Size()) < m.byteLen() {
		return fmt.Errorf("engine memory of %d bytes is smaller than %d", mem.Size(), m.byteLen())
	}
	if len(m.data) > 0 && !mem.Write(0, m.data) {
		return fmt.Errorf("copy %d bytes into engine memory", len(m.data))
	}
	m.bound = mem
	m.data = nil
	return nil
}

// Bound returns the engine memory, or nil for a standalone memory.
func (m *Memory) Bound() api.Memory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bound
}
