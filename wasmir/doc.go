// Package wasmir provides WebAssembly binary format parsing, a remappable
// intermediate representation, and re-encoding.
//
// It underlies two subsystems of the pack runtime: the metadata reader
// (which scans a parsed module's data segments for an embedded CGRF blob)
// and the static composer (which merges several parsed modules into one,
// remapping every type/function/table/memory/global index along the way).
//
// # Supported Features
//
//	WebAssembly 2.0:
//	  - Core value types (i32, i64, f32, f64)
//	  - Functions, tables, memories, globals
//	  - Control flow, calls, local/global access
//	  - Memory and table operations
//	  - Import/export of all definitions
//
//	Post-2.0 Proposals (scoped to what the composer's body rewriting needs):
//	  - Tail calls (return_call, return_call_indirect)
//	  - Typed function references, minimal form (call_ref, return_call_ref)
//	  - Bulk memory (memory.copy, memory.fill, data.drop, table.init, ...)
//	  - Reference types (funcref, externref, ref.null, ref.is_null, ref.func)
//	  - Multi-memory (multiple memory instances)
//	  - Memory64 (64-bit memory addressing)
//
//	GC, exception handling, SIMD, and threads/atomics are out of scope: the
//	composer never consumes them, and DecodeInstructions rejects a body that
//	contains one of their opcodes rather than decoding it.
//
// # Parsing
//
// Parse a WebAssembly module from binary:
//
//	data, _ := os.ReadFile("module.wasm")
//	module, err := wasmir.ParseModule(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Parse with validation enabled:
//
//	module, err := wasmir.ParseModuleValidate(data)
//
// # Encoding
//
// Encode a module back to binary:
//
//	encoded := module.Encode()
//
// Round-trip parsing and encoding preserves module semantics:
//
//	original, _ := wasmir.ParseModule(data)
//	roundtrip, _ := wasmir.ParseModule(original.Encode())
//	// original and roundtrip are semantically equivalent
//
// # Module Structure
//
// A parsed module contains all sections:
//
//	module.Types      []FuncType    // Function signatures
//	module.Funcs      []uint32      // Type indices for functions
//	module.Tables     []TableType   // Table definitions
//	module.Memories   []MemoryType  // Memory definitions
//	module.Globals    []Global      // Global definitions
//	module.Imports    []Import      // Imported definitions
//	module.Exports    []Export      // Exported definitions
//	module.Code       []FuncBody    // Function bodies
//	module.Data       []DataSegment // Data segments
//	module.Elements   []Element     // Element segments
//
// # Instructions
//
// Decode instructions from bytecode:
//
//	instructions, err := wasmir.DecodeInstructions(code)
//	for _, instr := range instructions {
//	    fmt.Printf("%s\n", instr.Opcode)
//	}
//
// Encode instructions back to bytecode:
//
//	encoded := wasmir.EncodeInstructions(instructions)
//
// # Validation
//
// Validate module structure:
//
//	if err := module.Validate(); err != nil {
//	    log.Printf("invalid module: %v", err)
//	}
//
// Validation checks:
//   - Type indices are in bounds
//   - Function, table, memory and global indices named by exports,
//     element segments, data segments and the start function are in bounds
//   - The start function has signature [] -> []
//   - Export names are unique
//   - Data count and code count agree with their sections
//   - Memory limits are valid
//
// Names are checked for valid UTF-8 while parsing. Validate does not
// check table limits and does not decode function bodies.
//
// # LEB128 Encoding
//
// The package provides LEB128 utilities used throughout:
//
//	u, err := wasmir.ReadLEB128u(r)  // Unsigned; r is an io.ByteReader
//	s, err := wasmir.ReadLEB128s(r)  // Signed
package wasmir
