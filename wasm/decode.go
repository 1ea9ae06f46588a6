package wasm

import (
	"errors"
	"fmt"

	"github.com/wippyai/wasm-jsapi/wasm/internal/binary"
)

// Parsing errors returned by ParseModule.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
)

// ParseModule decodes the descriptor sections of a WebAssembly binary.
func ParseModule(data []byte) (*Module, error) {
	r := binary.NewReader(data)
	if err := readHeader(r); err != nil {
		return nil, err
	}

	m := &Module{}
	var lastOrder int
	for r.Len() > 0 {
		id, sr, err := readSection(r)
		if err != nil {
			return nil, err
		}

		if id != SectionCustom {
			order := sectionOrder(id)
			if order == 0 {
				return nil, r.WrapError("section header", fmt.Errorf("unknown section id %d", id))
			}
			if order <= lastOrder {
				return nil, fmt.Errorf("section %d appears out of order", id)
			}
			lastOrder = order
		}

		var perr error
		switch id {
		case SectionCustom:
			perr = parseCustomSection(sr, m)
		case SectionType:
			perr = parseTypeSection(sr, m)
		case SectionImport:
			perr = parseImportSection(sr, m)
		case SectionFunction:
			perr = parseFunctionSection(sr, m)
		case SectionTable:
			perr = parseTableSection(sr, m)
		case SectionMemory:
			perr = parseMemorySection(sr, m)
		case SectionGlobal:
			perr = parseGlobalSection(sr, m)
		case SectionExport:
			perr = parseExportSection(sr, m)
		case SectionStart:
			perr = parseStartSection(sr, m)
		default:
			// element, code, data, data count and tag bodies are left to the engine
			continue
		}
		if perr != nil {
			return nil, fmt.Errorf("%s section: %w", sectionName(id), perr)
		}
	}
	return m, nil
}

func readHeader(r *binary.Reader) error {
	header, err := r.ReadBytes(8)
	if err != nil {
		return r.WrapError("header", err)
	}
	if le32(header[0:4]) != Magic {
		return ErrInvalidMagic
	}
	if le32(header[4:8]) != Version {
		return ErrInvalidVersion
	}
	return nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func readSection(r *binary.Reader) (byte, *binary.Reader, error) {
	id, err := r.ReadByte()
	if err != nil {
		return 0, nil, r.WrapError("section header", err)
	}
	size, err := r.ReadU32()
	if err != nil {
		return 0, nil, r.WrapError("section size", err)
	}
	sr, err := r.Sub(int(size))
	if err != nil {
		return 0, nil, r.WrapError("section data", err)
	}
	return id, sr, nil
}

// sectionOrder maps section ids onto their canonical position; the tag and
// data count sections sit between their numeric neighbours.
func sectionOrder(id byte) int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionTag:
		return 6
	case SectionGlobal:
		return 7
	case SectionExport:
		return 8
	case SectionStart:
		return 9
	case SectionElement:
		return 10
	case SectionDataCount:
		return 11
	case SectionCode:
		return 12
	case SectionData:
		return 13
	default:
		return 0
	}
}

func sectionName(id byte) string {
	switch id {
	case SectionCustom:
		return "custom"
	case SectionType:
		return "type"
	case SectionImport:
		return "import"
	case SectionFunction:
		return "function"
	case SectionTable:
		return "table"
	case SectionMemory:
		return "memory"
	case SectionGlobal:
		return "global"
	case SectionExport:
		return "export"
	case SectionStart:
		return "start"
	default:
		return fmt.Sprintf("id %d", id)
	}
}

func parseCustomSection(r *binary.Reader, m *Module) error {
	name, err := r.ReadName()
	if err != nil {
		return err
	}
	data, err := r.ReadBytes(r.Len())
	if err != nil {
		return err
	}
	m.CustomSections = append(m.CustomSections, CustomSection{
		Name: name,
		Data: append([]byte(nil), data...),
	})
	return nil
}

func parseTypeSection(r *binary.Reader, m *Module) error {
	count, err := readCount(r, "types")
	if err != nil {
		return err
	}
	m.Types = make([]FuncType, 0, count)
	for i := uint32(0); i < count; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form != FuncTypeByte {
			return r.WrapError("type", fmt.Errorf("unsupported type form 0x%02x", form))
		}
		params, err := readValTypes(r)
		if err != nil {
			return err
		}
		results, err := readValTypes(r)
		if err != nil {
			return err
		}
		m.Types = append(m.Types, FuncType{Params: params, Results: results})
	}
	return nil
}

// readCount reads a vector length. Every entry takes at least one byte, so a
// count larger than the remaining input is rejected before anything is
// allocated for it.
func readCount(r *binary.Reader, what string) (uint32, error) {
	count, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	if uint64(count) > uint64(r.Len()) {
		return 0, r.WrapError(what, fmt.Errorf("count %d exceeds section", count))
	}
	return count, nil
}

func readValTypes(r *binary.Reader) ([]ValType, error) {
	count, err := readCount(r, "value types")
	if err != nil {
		return nil, err
	}
	types := make([]ValType, count)
	for i := range types {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		types[i] = ValType(b)
	}
	return types, nil
}

func parseImportSection(r *binary.Reader, m *Module) error {
	count, err := readCount(r, "imports")
	if err != nil {
		return err
	}
	m.Imports = make([]Import, 0, count)
	for i := uint32(0); i < count; i++ {
		imp, err := readImport(r)
		if err != nil {
			return err
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func readImport(r *binary.Reader) (Import, error) {
	module, err := r.ReadName()
	if err != nil {
		return Import{}, err
	}
	name, err := r.ReadName()
	if err != nil {
		return Import{}, err
	}
	desc, err := readImportDesc(r)
	if err != nil {
		return Import{}, fmt.Errorf("import %s.%s: %w", module, name, err)
	}
	return Import{Module: module, Name: name, Desc: desc}, nil
}

func readImportDesc(r *binary.Reader) (ImportDesc, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return ImportDesc{}, err
	}
	desc := ImportDesc{Kind: kind}
	switch kind {
	case KindFunc:
		desc.TypeIdx, err = r.ReadU32()
	case KindTable:
		var t TableType
		t, err = readTableType(r)
		desc.Table = &t
	case KindMemory:
		var mt MemoryType
		mt, err = readMemoryType(r)
		desc.Memory = &mt
	case KindGlobal:
		var g GlobalType
		g, err = readGlobalType(r)
		desc.Global = &g
	case KindTag:
		if _, err = r.ReadByte(); err == nil {
			desc.TypeIdx, err = r.ReadU32()
		}
	default:
		err = r.WrapError("import", fmt.Errorf("unknown import kind 0x%02x", kind))
	}
	if err != nil {
		return ImportDesc{}, err
	}
	return desc, nil
}

func parseFunctionSection(r *binary.Reader, m *Module) error {
	count, err := readCount(r, "functions")
	if err != nil {
		return err
	}
	m.Funcs = make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		m.Funcs = append(m.Funcs, idx)
	}
	return nil
}

func parseTableSection(r *binary.Reader, m *Module) error {
	count, err := readCount(r, "tables")
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		t, err := readTableType(r)
		if err != nil {
			return err
		}
		m.Tables = append(m.Tables, t)
	}
	return nil
}

func parseMemorySection(r *binary.Reader, m *Module) error {
	count, err := readCount(r, "memories")
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		mt, err := readMemoryType(r)
		if err != nil {
			return err
		}
		m.Memories = append(m.Memories, mt)
	}
	return nil
}

func parseGlobalSection(r *binary.Reader, m *Module) error {
	count, err := readCount(r, "globals")
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		gt, err := readGlobalType(r)
		if err != nil {
			return err
		}
		init, err := readConstExpr(r)
		if err != nil {
			return err
		}
		m.Globals = append(m.Globals, Global{Type: gt, Init: init})
	}
	return nil
}

func parseExportSection(r *binary.Reader, m *Module) error {
	count, err := readCount(r, "exports")
	if err != nil {
		return err
	}
	m.Exports = make([]Export, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		m.Exports = append(m.Exports, Export{Name: name, Kind: kind, Idx: idx})
	}
	return nil
}

func parseStartSection(r *binary.Reader, m *Module) error {
	idx, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Start = &idx
	return nil
}

func readLimits(r *binary.Reader) (Limits, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	if flags&LimitsMemory64 != 0 {
		return Limits{}, r.WrapError("limits", errors.New("memory64 is not supported"))
	}

	l := Limits{Shared: flags&LimitsShared != 0}
	minVal, err := r.ReadU32()
	if err != nil {
		return Limits{}, err
	}
	l.Min = uint64(minVal)
	if flags&LimitsHasMax != 0 {
		maxVal, err := r.ReadU32()
		if err != nil {
			return Limits{}, err
		}
		max64 := uint64(maxVal)
		l.Max = &max64
	}
	if l.Max != nil && l.Min > *l.Max {
		return Limits{}, fmt.Errorf("limits min (%d) exceeds max (%d)", l.Min, *l.Max)
	}
	return l, nil
}

func readTableType(r *binary.Reader) (TableType, error) {
	elem, err := r.ReadByte()
	if err != nil {
		return TableType{}, err
	}
	if ValType(elem) != ValFuncRef && ValType(elem) != ValExtern {
		return TableType{}, r.WrapError("table", fmt.Errorf("unsupported element type 0x%02x", elem))
	}
	limits, err := readLimits(r)
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElemType: ValType(elem), Limits: limits}, nil
}

func readMemoryType(r *binary.Reader) (MemoryType, error) {
	limits, err := readLimits(r)
	if err != nil {
		return MemoryType{}, err
	}
	return MemoryType{Limits: limits}, nil
}

func readGlobalType(r *binary.Reader) (GlobalType, error) {
	vt, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, r.WrapError("global", fmt.Errorf("invalid mutability 0x%02x", mut))
	}
	return GlobalType{ValType: ValType(vt), Mutable: mut == 1}, nil
}

// readConstExpr copies a constant expression up to and including its end
// opcode. Immediates are skipped by shape, so an 0x0B inside an immediate
// does not terminate the expression.
func readConstExpr(r *binary.Reader) ([]byte, error) {
	start := r.Offset()
	for {
		op, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		switch op {
		case OpEnd:
			return append([]byte(nil), r.Slice(start, r.Offset())...), nil
		case OpI32Const, OpI64Const, OpGlobalGet, OpRefFunc, OpRefNull:
			err = r.SkipLEB128()
		case OpF32Const:
			_, err = r.ReadBytes(4)
		case OpF64Const:
			_, err = r.ReadBytes(8)
		case OpI32Add, OpI32Sub, OpI32Mul, OpI64Add, OpI64Sub, OpI64Mul:
		case OpPrefixSIMD:
			var sub uint32
			if sub, err = r.ReadU32(); err == nil && sub == 12 {
				_, err = r.ReadBytes(16)
			}
		default:
			err = r.WrapError("const expr", fmt.Errorf("opcode 0x%02x not allowed", op))
		}
		if err != nil {
			return nil, err
		}
	}
}
