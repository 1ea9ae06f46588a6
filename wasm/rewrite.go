package wasm

import (
	"fmt"

	"github.com/wippyai/wasm-jsapi/wasm/internal/binary"
)

// RenameFunc returns the module and field name an import should use
// instead of its own. index is the import's position in the import section.
type RenameFunc func(index int, module, name string) (string, string)

// RewriteImports returns a copy of a module binary with every import
// renamed by rename. Import descriptors and all other sections are copied
// byte for byte. When no name changes, the input is returned unchanged.
func RewriteImports(data []byte, rename RenameFunc) ([]byte, error) {
	r := binary.NewReader(data)
	if err := readHeader(r); err != nil {
		return nil, err
	}

	out := binary.NewWriter()
	out.WriteBytes(data[:8])
	changed := false
	for r.Len() > 0 {
		id, sr, err := readSection(r)
		if err != nil {
			return nil, err
		}
		body := sr.Slice(0, sr.Len())
		if id == SectionImport {
			rewritten, n, err := rewriteImportSection(sr, rename)
			if err != nil {
				return nil, fmt.Errorf("import section: %w", err)
			}
			if n > 0 {
				body = rewritten
				changed = true
			}
		}
		out.Section(id, body)
	}
	if !changed {
		return data, nil
	}
	return out.Bytes(), nil
}

// rewriteImportSection re-encodes the import section and reports how many
// imports changed.
func rewriteImportSection(r *binary.Reader, rename RenameFunc) ([]byte, int, error) {
	count, err := readCount(r, "imports")
	if err != nil {
		return nil, 0, err
	}
	w := binary.NewWriter()
	w.WriteU32(count)
	changed := 0
	for i := uint32(0); i < count; i++ {
		module, err := r.ReadName()
		if err != nil {
			return nil, 0, err
		}
		name, err := r.ReadName()
		if err != nil {
			return nil, 0, err
		}
		start := r.Offset()
		if _, err := readImportDesc(r); err != nil {
			return nil, 0, fmt.Errorf("import %s.%s: %w", module, name, err)
		}

		newModule, newName := rename(int(i), module, name)
		if newModule != module || newName != name {
			changed++
		}
		w.WriteName(newModule)
		w.WriteName(newName)
		w.WriteBytes(r.Slice(start, r.Offset()))
	}
	return w.Bytes(), changed, nil
}
