// Package testwasm builds small, valid WebAssembly binaries in-process for
// tests elsewhere in this module, the way the teacher's
// linker/internal/wasm.SynthModuleBuilder synthesizes host-side stub
// modules for its own tests - except these are guest modules, built
// directly out of wasmir's IR types rather than hand-rolled bytes, since
// wasmir is this module's own encoder.
//
// Every module built here implements the guest-allocates ABI: it exports
// "memory", "__pack_alloc"/"__pack_free", and zero or more business
// functions of the standard (i32,i32,i32,i32)->i32 shape.
package testwasm

import (
	"github.com/packrun/pack/abi"
	"github.com/packrun/pack/wasmir"
)

var standardParams = []wasmir.ValType{wasmir.ValI32, wasmir.ValI32, wasmir.ValI32, wasmir.ValI32}
var standardResults = []wasmir.ValType{wasmir.ValI32}

// Builder assembles a wasmir.Module one function at a time. Imports must be
// added before any business function (AddImportFunc renumbers the
// __pack_alloc/__pack_free that New already defined), matching the real compiler-emitted
// shape this builder produces: the function index space always starts with
// every imported function, followed by every defined one.
type Builder struct {
	mod        *wasmir.Module
	heapGlobal uint32
}

// New creates a Builder for a module already exporting "memory",
// "__pack_alloc", and "__pack_free", with a mutable i32 heap-pointer global
// initialized to heapInit.
func New(heapInit int32) *Builder {
	b := &Builder{mod: &wasmir.Module{}}

	b.mod.Memories = []wasmir.MemoryType{{Limits: wasmir.Limits{Min: 1}}}
	b.mod.Exports = append(b.mod.Exports, wasmir.Export{Name: "memory", Kind: wasmir.KindMemory, Idx: 0})

	b.heapGlobal = uint32(len(b.mod.Globals))
	b.mod.Globals = append(b.mod.Globals, wasmir.Global{
		Type: wasmir.GlobalType{ValType: wasmir.ValI32, Mutable: true},
		Init: wasmir.EncodeInstructions([]wasmir.Instruction{
			{Opcode: wasmir.OpI32Const, Imm: wasmir.I32Imm{Value: heapInit}},
			{Opcode: wasmir.OpEnd},
		}),
	})

	b.addAlloc()
	b.addFree()
	return b
}

// addAlloc defines __pack_alloc(size) -> i32 as a bump allocator over the
// heap-pointer global: it returns the current pointer, then advances it by
// size.
func (b *Builder) addAlloc() {
	typeIdx := b.mod.AddType(wasmir.FuncType{Params: []wasmir.ValType{wasmir.ValI32}, Results: []wasmir.ValType{wasmir.ValI32}})
	instrs := []wasmir.Instruction{
		{Opcode: wasmir.OpGlobalGet, Imm: wasmir.GlobalImm{GlobalIdx: b.heapGlobal}},
		{Opcode: wasmir.OpLocalSet, Imm: wasmir.LocalImm{LocalIdx: 1}},
		{Opcode: wasmir.OpGlobalGet, Imm: wasmir.GlobalImm{GlobalIdx: b.heapGlobal}},
		{Opcode: wasmir.OpLocalGet, Imm: wasmir.LocalImm{LocalIdx: 0}},
		{Opcode: wasmir.OpI32Add},
		{Opcode: wasmir.OpGlobalSet, Imm: wasmir.GlobalImm{GlobalIdx: b.heapGlobal}},
		{Opcode: wasmir.OpLocalGet, Imm: wasmir.LocalImm{LocalIdx: 1}},
		{Opcode: wasmir.OpEnd},
	}
	b.defineFunc(abi.ExportAlloc, typeIdx, []wasmir.LocalEntry{{Count: 1, ValType: wasmir.ValI32}}, instrs)
}

// addFree defines __pack_free(ptr, len) as a no-op: this builder's modules
// never reuse freed memory.
func (b *Builder) addFree() {
	typeIdx := b.mod.AddType(wasmir.FuncType{Params: []wasmir.ValType{wasmir.ValI32, wasmir.ValI32}})
	b.defineFunc(abi.ExportFree, typeIdx, nil, []wasmir.Instruction{{Opcode: wasmir.OpEnd}})
}

// AddEcho defines a standard-shape business export that replies with
// exactly the bytes the caller wrote as input: it writes the caller's own
// in_ptr/in_len straight into the out_ptr_slot/out_len_slot, with no copy
// and no allocation, then returns status 0. Since the caller always reads
// the reply before it writes anything else to that address, forwarding the
// pointer is sufficient to round-trip arbitrary input.
func (b *Builder) AddEcho(name string) uint32 {
	typeIdx := b.mod.AddType(wasmir.FuncType{Params: standardParams, Results: standardResults})
	instrs := []wasmir.Instruction{
		{Opcode: wasmir.OpLocalGet, Imm: wasmir.LocalImm{LocalIdx: 2}},
		{Opcode: wasmir.OpLocalGet, Imm: wasmir.LocalImm{LocalIdx: 0}},
		{Opcode: wasmir.OpI32Store, Imm: wasmir.MemoryImm{Align: 2}},
		{Opcode: wasmir.OpLocalGet, Imm: wasmir.LocalImm{LocalIdx: 3}},
		{Opcode: wasmir.OpLocalGet, Imm: wasmir.LocalImm{LocalIdx: 1}},
		{Opcode: wasmir.OpI32Store, Imm: wasmir.MemoryImm{Align: 2}},
		{Opcode: wasmir.OpI32Const, Imm: wasmir.I32Imm{Value: 0}},
		{Opcode: wasmir.OpEnd},
	}
	return b.defineFunc(name, typeIdx, nil, instrs)
}

// AddFailing defines a standard-shape business export that always reports
// failure (status 1) with an empty reply.
func (b *Builder) AddFailing(name string) uint32 {
	typeIdx := b.mod.AddType(wasmir.FuncType{Params: standardParams, Results: standardResults})
	instrs := []wasmir.Instruction{
		{Opcode: wasmir.OpLocalGet, Imm: wasmir.LocalImm{LocalIdx: 2}},
		{Opcode: wasmir.OpI32Const, Imm: wasmir.I32Imm{Value: 0}},
		{Opcode: wasmir.OpI32Store, Imm: wasmir.MemoryImm{Align: 2}},
		{Opcode: wasmir.OpLocalGet, Imm: wasmir.LocalImm{LocalIdx: 3}},
		{Opcode: wasmir.OpI32Const, Imm: wasmir.I32Imm{Value: 0}},
		{Opcode: wasmir.OpI32Store, Imm: wasmir.MemoryImm{Align: 2}},
		{Opcode: wasmir.OpI32Const, Imm: wasmir.I32Imm{Value: 1}},
		{Opcode: wasmir.OpEnd},
	}
	return b.defineFunc(name, typeIdx, nil, instrs)
}

// AddImportFunc declares an imported standard-shape function and returns
// its function index. Must be called before any AddEcho/AddForward/
// AddFailing/AddRaw call on the same Builder.
func (b *Builder) AddImportFunc(module, name string) uint32 {
	typeIdx := b.mod.AddType(wasmir.FuncType{Params: standardParams, Results: standardResults})
	idx := uint32(b.mod.NumImportedFuncs())
	b.mod.Imports = append(b.mod.Imports, wasmir.Import{
		Module: module,
		Name:   name,
		Desc:   wasmir.ImportDesc{Kind: wasmir.KindFunc, TypeIdx: typeIdx},
	})
	// The new import shifts every defined function, including the
	// __pack_alloc/__pack_free that New defined, up by one index.
	for i := range b.mod.Exports {
		if b.mod.Exports[i].Kind == wasmir.KindFunc && b.mod.Exports[i].Idx >= idx {
			b.mod.Exports[i].Idx++
		}
	}
	return idx
}

// AddForward defines a standard-shape business export that forwards all
// four of its arguments to the named imported function index and returns
// its result unchanged.
func (b *Builder) AddForward(name string, importFuncIdx uint32) uint32 {
	typeIdx := b.mod.AddType(wasmir.FuncType{Params: standardParams, Results: standardResults})
	instrs := []wasmir.Instruction{
		{Opcode: wasmir.OpLocalGet, Imm: wasmir.LocalImm{LocalIdx: 0}},
		{Opcode: wasmir.OpLocalGet, Imm: wasmir.LocalImm{LocalIdx: 1}},
		{Opcode: wasmir.OpLocalGet, Imm: wasmir.LocalImm{LocalIdx: 2}},
		{Opcode: wasmir.OpLocalGet, Imm: wasmir.LocalImm{LocalIdx: 3}},
		{Opcode: wasmir.OpCall, Imm: wasmir.CallImm{FuncIdx: importFuncIdx}},
		{Opcode: wasmir.OpEnd},
	}
	return b.defineFunc(name, typeIdx, nil, instrs)
}

// AddRaw defines a business function with a caller-supplied body, for
// tests that need a shape the convenience helpers above don't cover.
func (b *Builder) AddRaw(name string, params, results []wasmir.ValType, locals []wasmir.LocalEntry, instrs []wasmir.Instruction) uint32 {
	typeIdx := b.mod.AddType(wasmir.FuncType{Params: params, Results: results})
	return b.defineFunc(name, typeIdx, locals, instrs)
}

func (b *Builder) defineFunc(name string, typeIdx uint32, locals []wasmir.LocalEntry, instrs []wasmir.Instruction) uint32 {
	funcIdx := uint32(b.mod.NumImportedFuncs() + len(b.mod.Funcs))
	b.mod.Funcs = append(b.mod.Funcs, typeIdx)
	b.mod.Code = append(b.mod.Code, wasmir.FuncBody{
		Locals: locals,
		Code:   wasmir.EncodeInstructions(instrs),
	})
	b.mod.Exports = append(b.mod.Exports, wasmir.Export{Name: name, Kind: wasmir.KindFunc, Idx: funcIdx})
	return funcIdx
}

// Module returns the underlying wasmir.Module, for tests (e.g. compose)
// that work on the IR directly rather than through compiled bytes.
func (b *Builder) Module() *wasmir.Module { return b.mod }

// Bytes encodes the module to a WebAssembly binary ready for
// abi.Engine.Compile.
func (b *Builder) Bytes() []byte { return b.mod.Encode() }
