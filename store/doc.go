// Package store holds the host-visible WebAssembly objects: tables of
// function references, linear memories, typed globals and function
// references.
//
// Tables, memories and globals start out standalone, owned by the host.
// When an instance imports or exports a memory or global, the object is
// bound to the engine's instance and every later operation delegates to
// it, so growth or mutation inside the module is visible to the host and
// the other way around. Tables stay host-owned; the engine snapshots them
// at link time.
//
// All objects are safe for concurrent use.
package store
