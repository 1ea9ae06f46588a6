// Package wasm reads and writes the parts of the WebAssembly binary format
// that an embedder needs without executing code.
//
// ParseModule decodes the descriptor sections of a module (types, imports,
// functions, tables, memories, globals, exports, start and custom
// sections). Code, element and data sections are skipped; validating them
// is the engine's job.
//
//	data, _ := os.ReadFile("module.wasm")
//	m, err := wasm.ParseModule(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, exp := range m.Exports {
//	    fmt.Println(exp.Name, wasm.KindName(exp.Kind))
//	}
//
// Module.Encode writes a complete module, including function bodies and
// segments. It is used to synthesize small provider modules at link time
// and to build fixtures in tests.
//
// RewriteImports renames imports in a binary while leaving every other
// byte untouched.
package wasm
