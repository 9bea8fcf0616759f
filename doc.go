// Package pack is a component runtime for WebAssembly packages that
// communicate across CGRF, a custom schema-aware binary graph format.
//
// Independently compiled packages exchange structured values - including
// recursive and polymorphic data - through a guest-allocates pointer/length
// calling convention, and can be wired together either dynamically (runtime
// cross-module call plumbing) or statically (merged into one module by the
// composer).
//
// # Architecture Overview
//
//	pack/                Root package: Memory/Allocator contracts, reserved offsets
//	├── value/           Polymorphic value tree with inline type witnesses
//	├── cgrf/            Binary graph codec and schema-directed validator
//	├── typehash/         256-bit structural type hashing
//	├── metadata/         Package metadata reader (imports/exports/interface hashes)
//	├── wasmir/           WebAssembly binary parser, IR, and encoder
//	├── abi/              Guest ABI dispatcher (host -> package export calls)
//	├── bridge/           Cross-package call bridge (import -> export forwarding)
//	├── ifacecheck/       Export signature compatibility checks
//	├── composition/      Dynamic composition builder
//	├── compose/          Static composer (module merger)
//	└── errors/           Structured error taxonomy shared by every subsystem
//
// # Quick start
//
// Dynamic composition wires two already-compiled packages together at
// runtime, forwarding one package's import calls into another's exports:
//
//	b := composition.NewBuilder(zap.NewNop())
//	b.AddPackage("doubler", doublerWasm)
//	b.AddPackage("adder", adderWasm)
//	b.Wire("adder", "math", "double", "doubler", "double")
//	c, err := b.Build(ctx)
//	defer c.Close(ctx)
//	result, err := c.Call(ctx, "adder", "process", value.S64(5))
//
// Static composition merges the same two modules into a single binary ahead
// of time via the compose package, trading per-call bridge overhead for a
// build-time merge step.
//
// # Memory model
//
// WASM linear memory can only grow, never shrink; this is a specification
// limitation, not a bug in this runtime. Each package instance owns its own
// memory except when statically composed, where the composer guarantees a
// single shared memory (see compose.Merge) so that pointers exchanged across
// the merged module's internal calls stay valid.
//
// # Thread safety
//
// A Composition serializes calls to each named instance behind its own
// mutex: concurrent calls to different packages proceed in parallel,
// concurrent calls to the same package are serialized, and the
// cross-package bridge never holds the shared registry lock while execution
// is inside WebAssembly.
package pack
