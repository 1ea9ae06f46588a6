package engine

import (
	"math"

	"github.com/wippyai/wasm-jsapi/limits"
	"github.com/wippyai/wasm-jsapi/store"
	"github.com/wippyai/wasm-jsapi/wasm"
)

// Export names used by synthesized modules.
const (
	holderMemoryExport = "memory"
	holderGlobalExport = "global"
	providerTableName  = "table"
)

// memoryHolder returns a module that defines and exports one memory with
// the given limits.
func memoryHolder(l limits.Limits) []byte {
	m := &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasmLimits(l)}},
		Exports:  []wasm.Export{{Name: holderMemoryExport, Kind: wasm.KindMemory}},
	}
	return m.Encode()
}

// globalHolder returns a module that defines and exports one global
// initialized to raw.
func globalHolder(vt wasm.ValType, mutable bool, raw uint64) []byte {
	m := &wasm.Module{
		Globals: []wasm.Global{{
			Type: wasm.GlobalType{ValType: vt, Mutable: mutable},
			Init: constExpr(vt, raw),
		}},
		Exports: []wasm.Export{{Name: holderGlobalExport, Kind: wasm.KindGlobal}},
	}
	return m.Encode()
}

// tableProvider builds a module that imports one function per distinct
// table element from hostModule, defines a table with the given limits and
// fills it with active element segments. proxies names the host export
// backing each element.
func tableProvider(hostModule string, l limits.Limits, slots []*store.FunctionRef, proxies map[*store.FunctionRef]string) []byte {
	m := &wasm.Module{
		Tables:  []wasm.TableType{{ElemType: wasm.ValFuncRef, Limits: wasmLimits(l)}},
		Exports: []wasm.Export{{Name: providerTableName, Kind: wasm.KindTable}},
	}

	funcIdx := make(map[*store.FunctionRef]uint32)
	var seg *wasm.Element
	for slot, ref := range slots {
		if ref == nil {
			seg = nil
			continue
		}
		idx, ok := funcIdx[ref]
		if !ok {
			idx = uint32(len(m.Imports))
			funcIdx[ref] = idx
			m.Imports = append(m.Imports, wasm.Import{
				Module: hostModule,
				Name:   proxies[ref],
				Desc:   wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: m.TypeIndex(ref.Type)},
			})
		}
		if seg == nil {
			m.Elements = append(m.Elements, wasm.Element{Offset: wasm.I32Const(int32(slot))})
			seg = &m.Elements[len(m.Elements)-1]
		}
		seg.Funcs = append(seg.Funcs, idx)
	}
	return m.Encode()
}

func wasmLimits(l limits.Limits) wasm.Limits {
	out := wasm.Limits{Min: uint64(l.Initial)}
	if l.Maximum != nil {
		maximum := uint64(*l.Maximum)
		out.Max = &maximum
	}
	return out
}

func constExpr(vt wasm.ValType, raw uint64) []byte {
	switch vt {
	case wasm.ValI64:
		return wasm.I64Const(int64(raw))
	case wasm.ValF32:
		return wasm.F32Const(math.Float32frombits(uint32(raw)))
	case wasm.ValF64:
		return wasm.F64Const(math.Float64frombits(raw))
	default:
		return wasm.I32Const(int32(uint32(raw)))
	}
}
