// Package wasmjsapi provides a host-embedding API for WebAssembly modules
// modeled on the JavaScript WebAssembly object, running on wazero.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	wasmjsapi/           Root package with the WebAssembly API and import objects
//	├── engine/          Compilation, linking and execution contexts on wazero
//	├── store/           Tables, memories, globals and function references
//	├── limits/          Size limit parsing and ceiling checks
//	├── hostval/         Host value coercion (bytes, scalars, strings, booleans)
//	├── wasm/            Core WASM binary decoding, encoding and import rewriting
//	├── errors/          Classified TypeError/RangeError/LinkError records
//	└── cmd/wasmjs/      Command-line tool for validating and running modules
//
// # Quick Start
//
// Compile and instantiate a module:
//
//	wa, err := wasmjsapi.New(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer wa.Close(ctx)
//
//	src, err := wa.InstantiateSource(ctx, wasmBytes, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := src.Instance.Call(ctx, "add", 2, 40)
//	fmt.Println(result) // [42]
//
// # Import Objects
//
// An import object is a map[string]any of namespaces, any hostval.Object, or
// an Imports built from Go values:
//
//	imports := wasmjsapi.NewImports()
//	imports.RegisterFunc("env", "log_i32", func(ctx context.Context, v int32) {
//	    fmt.Println(v)
//	})
//	mem, _ := wa.Memory(1, 16)
//	imports.Set("env", "memory", mem)
//
// # Name Dispatch
//
// Every operation is also reachable by name with untyped host arguments,
// mirroring the members of the JavaScript WebAssembly object:
//
//	tbl, err := wa.Invoke(ctx, "table_alloc", 4)
//	prev, err := wa.Invoke(ctx, "table_grow", tbl, 2)
//
// Argument counts are checked first; a short call fails with a TypeError
// before any argument is coerced.
//
// # Errors
//
// Failures are *errors.Error values classified as TypeError, RangeError,
// LinkError or CompileError. Match them with errors.KindOf or errors.Is
// against the sentinels in the errors package.
//
// # Thread Safety
//
// WebAssembly, Imports and the store objects are safe for concurrent use.
// Instances share wazero's concurrency rules: an instance should be called
// by one goroutine at a time.
package wasmjsapi
