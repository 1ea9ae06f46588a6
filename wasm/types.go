package wasm

import "strings"

// Module is a decoded WebAssembly module.
//
// ParseModule fills the descriptor fields only. Elements, Code and Data are
// populated by callers building a module for Encode.
type Module struct {
	Start          *uint32
	Types          []FuncType
	Imports        []Import
	Funcs          []uint32 // type indices of defined functions
	Tables         []TableType
	Memories       []MemoryType
	Globals        []Global
	Exports        []Export
	Elements       []Element
	Code           []FuncBody
	Data           []DataSegment
	CustomSections []CustomSection
}

// ValType is a WebAssembly value type.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	default:
		return "unknown"
	}
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports whether two signatures are identical.
func (f FuncType) Equal(o FuncType) bool {
	return equalValTypes(f.Params, o.Params) && equalValTypes(f.Results, o.Results)
}

func (f FuncType) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") -> (")
	for i, r := range f.Results {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(r.String())
	}
	b.WriteByte(')')
	return b.String()
}

func equalValTypes(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Limits bounds a table or memory.
type Limits struct {
	Max    *uint64
	Min    uint64
	Shared bool
}

// TableType describes a table.
type TableType struct {
	Limits   Limits
	ElemType ValType
}

// MemoryType describes a linear memory.
type MemoryType struct {
	Limits Limits
}

// GlobalType describes a global.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global is a defined global with its constant initializer.
type Global struct {
	Init []byte
	Type GlobalType
}

// Import is an imported function, table, memory, global, or tag.
type Import struct {
	Desc   ImportDesc
	Module string
	Name   string
}

// ImportDesc describes an imported item. Kind selects which field is set.
type ImportDesc struct {
	Table   *TableType
	Memory  *MemoryType
	Global  *GlobalType
	TypeIdx uint32
	Kind    byte
}

// Export is an exported definition.
type Export struct {
	Name string
	Idx  uint32
	Kind byte
}

// Element is an active funcref segment.
type Element struct {
	Offset []byte // constant expression, including the end opcode
	Funcs  []uint32
	Table  uint32
}

// FuncBody is the body of a defined function.
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte // instructions, including the final end opcode
}

// LocalEntry declares Count locals of one type.
type LocalEntry struct {
	Count uint32
	Type  ValType
}

// DataSegment is an active data segment.
type DataSegment struct {
	Offset []byte
	Init   []byte
	Memory uint32
}

// CustomSection is a named custom section.
type CustomSection struct {
	Name string
	Data []byte
}

// KindName returns the host-facing name of an import/export kind.
func KindName(kind byte) string {
	switch kind {
	case KindFunc:
		return "function"
	case KindTable:
		return "table"
	case KindMemory:
		return "memory"
	case KindGlobal:
		return "global"
	case KindTag:
		return "tag"
	default:
		return "unknown"
	}
}

// NumImported returns how many imports of the given kind the module has.
func (m *Module) NumImported(kind byte) uint32 {
	var n uint32
	for i := range m.Imports {
		if m.Imports[i].Desc.Kind == kind {
			n++
		}
	}
	return n
}

// ImportIndex returns the position in Imports of the import occupying
// index idx of the kind's index space, or -1 if idx refers to a defined item.
func (m *Module) ImportIndex(kind byte, idx uint32) int {
	var n uint32
	for i := range m.Imports {
		if m.Imports[i].Desc.Kind != kind {
			continue
		}
		if n == idx {
			return i
		}
		n++
	}
	return -1
}

// ImportAt returns the import occupying index idx of the kind's index
// space, or nil if idx refers to a defined item.
func (m *Module) ImportAt(kind byte, idx uint32) *Import {
	if i := m.ImportIndex(kind, idx); i >= 0 {
		return &m.Imports[i]
	}
	return nil
}

// FuncTypeAt resolves the signature of function index idx.
func (m *Module) FuncTypeAt(idx uint32) (FuncType, bool) {
	var typeIdx uint32
	if imp := m.ImportAt(KindFunc, idx); imp != nil {
		typeIdx = imp.Desc.TypeIdx
	} else {
		local := idx - m.NumImported(KindFunc)
		if int(local) >= len(m.Funcs) {
			return FuncType{}, false
		}
		typeIdx = m.Funcs[local]
	}
	if int(typeIdx) >= len(m.Types) {
		return FuncType{}, false
	}
	return m.Types[typeIdx], true
}

// TypeIndex returns the index of ft in the type section, appending it when
// missing.
func (m *Module) TypeIndex(ft FuncType) uint32 {
	for i := range m.Types {
		if m.Types[i].Equal(ft) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

// CustomSectionsNamed returns the contents of every custom section called
// name, in module order.
func (m *Module) CustomSectionsNamed(name string) [][]byte {
	var out [][]byte
	for _, cs := range m.CustomSections {
		if cs.Name == name {
			out = append(out, cs.Data)
		}
	}
	return out
}
