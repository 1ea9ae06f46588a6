package wasm

import (
	"github.com/wippyai/wasm-jsapi/wasm/internal/binary"
)

// Encode encodes the module to WebAssembly binary format.
func (m *Module) Encode() []byte {
	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	if len(m.Types) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.Byte(FuncTypeByte)
			writeValTypes(sec, ft.Params)
			writeValTypes(sec, ft.Results)
		}
		w.Section(SectionType, sec.Bytes())
	}

	if len(m.Imports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			writeImport(sec, imp)
		}
		w.Section(SectionImport, sec.Bytes())
	}

	if len(m.Funcs) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Funcs)))
		for _, typeIdx := range m.Funcs {
			sec.WriteU32(typeIdx)
		}
		w.Section(SectionFunction, sec.Bytes())
	}

	if len(m.Tables) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Tables)))
		for _, t := range m.Tables {
			writeTableType(sec, t)
		}
		w.Section(SectionTable, sec.Bytes())
	}

	if len(m.Memories) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Memories)))
		for _, mt := range m.Memories {
			writeLimits(sec, mt.Limits)
		}
		w.Section(SectionMemory, sec.Bytes())
	}

	if len(m.Globals) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Globals)))
		for _, g := range m.Globals {
			writeGlobalType(sec, g.Type)
			sec.WriteBytes(g.Init)
		}
		w.Section(SectionGlobal, sec.Bytes())
	}

	if len(m.Exports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			sec.WriteName(exp.Name)
			sec.Byte(exp.Kind)
			sec.WriteU32(exp.Idx)
		}
		w.Section(SectionExport, sec.Bytes())
	}

	if m.Start != nil {
		sec := binary.NewWriter()
		sec.WriteU32(*m.Start)
		w.Section(SectionStart, sec.Bytes())
	}

	if len(m.Elements) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Elements)))
		for _, e := range m.Elements {
			writeElement(sec, e)
		}
		w.Section(SectionElement, sec.Bytes())
	}

	if len(m.Code) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Code)))
		for _, body := range m.Code {
			fb := binary.NewWriter()
			fb.WriteU32(uint32(len(body.Locals)))
			for _, l := range body.Locals {
				fb.WriteU32(l.Count)
				fb.Byte(byte(l.Type))
			}
			fb.WriteBytes(body.Code)
			sec.WriteU32(uint32(fb.Len()))
			sec.WriteBytes(fb.Bytes())
		}
		w.Section(SectionCode, sec.Bytes())
	}

	if len(m.Data) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Data)))
		for _, d := range m.Data {
			if d.Memory == 0 {
				sec.WriteU32(0)
			} else {
				sec.WriteU32(2)
				sec.WriteU32(d.Memory)
			}
			sec.WriteBytes(d.Offset)
			sec.WriteU32(uint32(len(d.Init)))
			sec.WriteBytes(d.Init)
		}
		w.Section(SectionData, sec.Bytes())
	}

	for _, cs := range m.CustomSections {
		sec := binary.NewWriter()
		sec.WriteName(cs.Name)
		sec.WriteBytes(cs.Data)
		w.Section(SectionCustom, sec.Bytes())
	}

	return w.Bytes()
}

func writeImport(w *binary.Writer, imp Import) {
	w.WriteName(imp.Module)
	w.WriteName(imp.Name)
	w.Byte(imp.Desc.Kind)
	switch imp.Desc.Kind {
	case KindFunc:
		w.WriteU32(imp.Desc.TypeIdx)
	case KindTable:
		writeTableType(w, *imp.Desc.Table)
	case KindMemory:
		writeLimits(w, imp.Desc.Memory.Limits)
	case KindGlobal:
		writeGlobalType(w, *imp.Desc.Global)
	case KindTag:
		w.Byte(0)
		w.WriteU32(imp.Desc.TypeIdx)
	}
}

// writeElement uses the legacy active form for table 0 and the explicit
// table index form otherwise.
func writeElement(w *binary.Writer, e Element) {
	if e.Table == 0 {
		w.WriteU32(0)
		w.WriteBytes(e.Offset)
	} else {
		w.WriteU32(2)
		w.WriteU32(e.Table)
		w.WriteBytes(e.Offset)
		w.Byte(0x00) // elemkind funcref
	}
	w.WriteU32(uint32(len(e.Funcs)))
	for _, f := range e.Funcs {
		w.WriteU32(f)
	}
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

func writeLimits(w *binary.Writer, l Limits) {
	var flags byte
	if l.Max != nil {
		flags |= LimitsHasMax
	}
	if l.Shared {
		flags |= LimitsShared
	}
	w.Byte(flags)
	w.WriteU32(uint32(l.Min))
	if l.Max != nil {
		w.WriteU32(uint32(*l.Max))
	}
}

func writeTableType(w *binary.Writer, t TableType) {
	elem := t.ElemType
	if elem == 0 {
		elem = ValFuncRef
	}
	w.Byte(byte(elem))
	writeLimits(w, t.Limits)
}

func writeGlobalType(w *binary.Writer, g GlobalType) {
	w.Byte(byte(g.ValType))
	if g.Mutable {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}
