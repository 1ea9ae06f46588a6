package wasm

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported WebAssembly binary format version.
	Version uint32 = 0x01
)

// Section IDs define the binary identifiers for each module section.
const (
	SectionCustom    byte = 0
	SectionType      byte = 1
	SectionImport    byte = 2
	SectionFunction  byte = 3
	SectionTable     byte = 4
	SectionMemory    byte = 5
	SectionGlobal    byte = 6
	SectionExport    byte = 7
	SectionStart     byte = 8
	SectionElement   byte = 9
	SectionCode      byte = 10
	SectionData      byte = 11
	SectionDataCount byte = 12
	SectionTag       byte = 13
)

// Import/Export descriptor kinds.
const (
	KindFunc   byte = 0
	KindTable  byte = 1
	KindMemory byte = 2
	KindGlobal byte = 3
	KindTag    byte = 4
)

// Value type encodings.
const (
	ValI32     ValType = 0x7F
	ValI64     ValType = 0x7E
	ValF32     ValType = 0x7D
	ValF64     ValType = 0x7C
	ValV128    ValType = 0x7B
	ValFuncRef ValType = 0x70
	ValExtern  ValType = 0x6F
)

// FuncTypeByte introduces a function type in the type section.
const FuncTypeByte byte = 0x60

// Limits flags.
const (
	LimitsHasMax   byte = 0x01
	LimitsShared   byte = 0x02
	LimitsMemory64 byte = 0x04
)

// Opcodes allowed in constant expressions.
const (
	OpEnd        byte = 0x0B
	OpGlobalGet  byte = 0x23
	OpI32Const   byte = 0x41
	OpI64Const   byte = 0x42
	OpF32Const   byte = 0x43
	OpF64Const   byte = 0x44
	OpI32Add     byte = 0x6A
	OpI32Sub     byte = 0x6B
	OpI32Mul     byte = 0x6C
	OpI64Add     byte = 0x7C
	OpI64Sub     byte = 0x7D
	OpI64Mul     byte = 0x7E
	OpRefNull    byte = 0xD0
	OpRefFunc    byte = 0xD2
	OpPrefixSIMD byte = 0xFD
)

// Opcodes used by synthesized function bodies.
const (
	OpCall         byte = 0x10
	OpCallIndirect byte = 0x11
	OpLocalGet     byte = 0x20
	OpGlobalSet    byte = 0x24
)
