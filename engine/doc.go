// Package engine compiles, validates and instantiates WebAssembly modules on
// top of wazero and links them against host import objects.
//
// # Compilation
//
// Engine.Compile decodes the module's descriptors and compiles it with
// wazero. Either failure is reported as a CompileError. Engine.Validate
// answers the same question as a boolean and never fails.
//
// # Linking
//
// Every instantiation runs inside its own ExecutionContext. The context is
// entered before any import is bound and left exactly once on every exit
// path. Imports are resolved against the import object one by one:
//
//	functions   store.HostFunc, GoFunc or *store.FunctionRef, exposed through a
//	            per-context host module
//	memories    *store.Memory, materialized once in a holder module and
//	            shared with every later importer
//	globals     *store.Global or a number for immutable globals
//	tables      *store.Table, snapshotted into a provider module
//
// The module's import section is then rewritten so each import names the
// module that provides it, and the rewritten binary is instantiated. When
// linking fails, every module created for the context is closed.
//
// # Exports
//
// Instance.Exports maps export names onto store objects: functions become
// *store.FunctionRef, memories and globals become bound store objects, and
// re-exported imports keep the identity of the host object that was passed
// in.
package engine
