package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/wippyai/wasm-jsapi/wasm"
)

var (
	i32         = wasm.ValI32
	unaryI32    = wasm.FuncType{Params: []wasm.ValType{i32}, Results: []wasm.ValType{i32}}
	binaryI32   = wasm.FuncType{Params: []wasm.ValType{i32, i32}, Results: []wasm.ValType{i32}}
	getterI32   = wasm.FuncType{Results: []wasm.ValType{i32}}
	setterI32   = wasm.FuncType{Params: []wasm.ValType{i32}}
	storeI32    = wasm.FuncType{Params: []wasm.ValType{i32, i32}}
	emptyFuncTy = wasm.FuncType{}
)

// Instruction bytes used by the fixtures that have no named constant.
const (
	opUnreachable byte = 0x00
	opI32Load8U   byte = 0x2D
	opI32Store8   byte = 0x3A
	opMemoryGrow  byte = 0x40
)

func body(code ...byte) wasm.FuncBody {
	return wasm.FuncBody{Code: append(code, wasm.OpEnd)}
}

func u32p(v uint64) *uint64 {
	return &v
}

// addModule exports add(a, b) = a + b and double(x) = x + x.
func addModule() []byte {
	m := &wasm.Module{
		Types: []wasm.FuncType{binaryI32, unaryI32},
		Funcs: []uint32{0, 1},
		Exports: []wasm.Export{
			{Name: "add", Kind: wasm.KindFunc, Idx: 0},
			{Name: "double", Kind: wasm.KindFunc, Idx: 1},
		},
		Code: []wasm.FuncBody{
			body(wasm.OpLocalGet, 0, wasm.OpLocalGet, 1, wasm.OpI32Add),
			body(wasm.OpLocalGet, 0, wasm.OpLocalGet, 0, wasm.OpI32Add),
		},
		CustomSections: []wasm.CustomSection{
			{Name: "producers", Data: []byte("a")},
			{Name: "producers", Data: []byte("b")},
		},
	}
	return m.Encode()
}

// memoryModule defines memory "mem" of 1 page, max 4, holding "hi" at 0,
// and exports grow(delta) = memory.grow.
func memoryModule() []byte {
	m := &wasm.Module{
		Types:    []wasm.FuncType{unaryI32},
		Funcs:    []uint32{0},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1, Max: u32p(4)}}},
		Exports: []wasm.Export{
			{Name: "mem", Kind: wasm.KindMemory, Idx: 0},
			{Name: "grow", Kind: wasm.KindFunc, Idx: 0},
		},
		Code: []wasm.FuncBody{body(wasm.OpLocalGet, 0, opMemoryGrow, 0)},
		Data: []wasm.DataSegment{{Offset: wasm.I32Const(0), Init: []byte("hi")}},
	}
	return m.Encode()
}

// callerModule imports env.double and exports run(x) = double(x) and the
// import itself.
func callerModule() []byte {
	m := &wasm.Module{
		Types: []wasm.FuncType{unaryI32},
		Imports: []wasm.Import{
			{Module: "env", Name: "double", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 0}},
		},
		Funcs: []uint32{0},
		Exports: []wasm.Export{
			{Name: "run", Kind: wasm.KindFunc, Idx: 1},
			{Name: "double", Kind: wasm.KindFunc, Idx: 0},
		},
		Code: []wasm.FuncBody{body(wasm.OpLocalGet, 0, wasm.OpCall, 0)},
	}
	return m.Encode()
}

// memoryUserModule imports env.mem (min 1) and exports load8, store8 and
// the memory itself.
func memoryUserModule() []byte {
	m := &wasm.Module{
		Types: []wasm.FuncType{unaryI32, storeI32},
		Imports: []wasm.Import{{
			Module: "env", Name: "mem",
			Desc: wasm.ImportDesc{Kind: wasm.KindMemory, Memory: &wasm.MemoryType{Limits: wasm.Limits{Min: 1}}},
		}},
		Funcs: []uint32{0, 1},
		Exports: []wasm.Export{
			{Name: "load8", Kind: wasm.KindFunc, Idx: 0},
			{Name: "store8", Kind: wasm.KindFunc, Idx: 1},
			{Name: "mem", Kind: wasm.KindMemory, Idx: 0},
		},
		Code: []wasm.FuncBody{
			body(wasm.OpLocalGet, 0, opI32Load8U, 0, 0),
			body(wasm.OpLocalGet, 0, wasm.OpLocalGet, 1, opI32Store8, 0, 0),
		},
	}
	return m.Encode()
}

// globalUserModule imports env.g as an i32 global and exports get, plus
// set when mutable.
func globalUserModule(mutable bool) []byte {
	m := &wasm.Module{
		Types: []wasm.FuncType{getterI32, setterI32},
		Imports: []wasm.Import{{
			Module: "env", Name: "g",
			Desc: wasm.ImportDesc{Kind: wasm.KindGlobal, Global: &wasm.GlobalType{ValType: i32, Mutable: mutable}},
		}},
		Funcs:   []uint32{0},
		Exports: []wasm.Export{{Name: "get", Kind: wasm.KindFunc, Idx: 0}, {Name: "g", Kind: wasm.KindGlobal, Idx: 0}},
		Code:    []wasm.FuncBody{body(wasm.OpGlobalGet, 0)},
	}
	if mutable {
		m.Funcs = append(m.Funcs, 1)
		m.Exports = append(m.Exports, wasm.Export{Name: "set", Kind: wasm.KindFunc, Idx: 1})
		m.Code = append(m.Code, body(wasm.OpLocalGet, 0, wasm.OpGlobalSet, 0))
	}
	return m.Encode()
}

// tableUserModule imports env.tbl (min 2) and exports call(x, slot),
// which applies the function in slot to x.
func tableUserModule() []byte {
	m := &wasm.Module{
		Types: []wasm.FuncType{unaryI32, binaryI32},
		Imports: []wasm.Import{{
			Module: "env", Name: "tbl",
			Desc: wasm.ImportDesc{Kind: wasm.KindTable, Table: &wasm.TableType{ElemType: wasm.ValFuncRef, Limits: wasm.Limits{Min: 2}}},
		}},
		Funcs: []uint32{1},
		Exports: []wasm.Export{
			{Name: "call", Kind: wasm.KindFunc, Idx: 0},
			{Name: "tbl", Kind: wasm.KindTable, Idx: 0},
		},
		Code: []wasm.FuncBody{body(wasm.OpLocalGet, 0, wasm.OpLocalGet, 1, wasm.OpCallIndirect, 0, 0)},
	}
	return m.Encode()
}

// trapStartModule has a start function that traps.
func trapStartModule() []byte {
	start := uint32(0)
	m := &wasm.Module{
		Types: []wasm.FuncType{emptyFuncTy},
		Funcs: []uint32{0},
		Start: &start,
		Code:  []wasm.FuncBody{body(opUnreachable)},
	}
	return m.Encode()
}

// recorder collects context events.
type recorder struct {
	events map[string][]ContextEvent
	mu     sync.Mutex
}

func newRecorder() *recorder {
	return &recorder{events: make(map[string][]ContextEvent)}
}

func (r *recorder) ContextEvent(id string, event ContextEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[id] = append(r.events[id], event)
}

func (r *recorder) only(t *testing.T) []ContextEvent {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) != 1 {
		t.Fatalf("observed %d contexts, want 1", len(r.events))
	}
	for _, events := range r.events {
		return append([]ContextEvent(nil), events...)
	}
	return nil
}

func newTestEngine(t *testing.T, cfg *Config) *Engine {
	t.Helper()
	ctx := context.Background()
	e, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { e.Close(ctx) })
	return e
}

func mustCompile(t *testing.T, e *Engine, bin []byte) *Module {
	t.Helper()
	m, err := e.Compile(context.Background(), bin)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return m
}

func mustInstantiate(t *testing.T, e *Engine, bin []byte, imports any) *Instance {
	t.Helper()
	inst, err := e.Instantiate(context.Background(), mustCompile(t, e, bin), imports)
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	return inst
}
