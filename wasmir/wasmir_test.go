package wasmir

import (
	"bytes"
	"testing"
)

func TestLEB128_UnsignedRoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 63, 127, 128, 300, 1 << 20, ^uint32(0)} {
		encoded := EncodeLEB128u(v)
		got, err := ReadLEB128u(bytes.NewReader(encoded))
		if err != nil {
			t.Fatalf("ReadLEB128u(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("expected %d, got %d", v, got)
		}
	}
}

func TestLEB128_Unsigned64RoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 1 << 40, ^uint64(0)} {
		encoded := EncodeLEB128u64(v)
		got, err := ReadLEB128u64(bytes.NewReader(encoded))
		if err != nil {
			t.Fatalf("ReadLEB128u64(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("expected %d, got %d", v, got)
		}
	}
}

func TestLEB128_SignedRoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 63, -64, 1000, -1000, 1 << 20, -(1 << 20)} {
		encoded := EncodeLEB128s(v)
		got, err := ReadLEB128s(bytes.NewReader(encoded))
		if err != nil {
			t.Fatalf("ReadLEB128s(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("expected %d, got %d", v, got)
		}
	}
}

func TestLEB128_Signed64RoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 1 << 40, -(1 << 40)} {
		encoded := EncodeLEB128s64(v)
		got, err := ReadLEB128s64(bytes.NewReader(encoded))
		if err != nil {
			t.Fatalf("ReadLEB128s64(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("expected %d, got %d", v, got)
		}
	}
}

func TestModule_AddType_Interns(t *testing.T) {
	m := &Module{}
	idx1 := m.AddType(FuncType{Params: []ValType{ValI32}, Results: []ValType{ValI32}})
	idx2 := m.AddType(FuncType{Params: []ValType{ValI32}, Results: []ValType{ValI32}})
	idx3 := m.AddType(FuncType{Params: []ValType{ValI64}, Results: []ValType{ValI32}})

	if idx1 != idx2 {
		t.Fatalf("expected identical FuncTypes to intern to the same index, got %d and %d", idx1, idx2)
	}
	if idx3 == idx1 {
		t.Fatal("expected a distinct FuncType to get its own index")
	}
	if len(m.Types) != 2 {
		t.Fatalf("expected 2 distinct types after interning, got %d", len(m.Types))
	}
}

// buildSampleModule constructs a small module exercising memory, a mutable
// global, a function import, a defined function, an export, and an active
// data segment - one instance of each section ParseModule/Encode handle.
func buildSampleModule() *Module {
	m := &Module{
		Memories: []MemoryType{{Limits: Limits{Min: 1}}},
	}

	importType := m.AddType(FuncType{Params: []ValType{ValI32}, Results: []ValType{ValI32}})
	m.Imports = append(m.Imports, Import{
		Module: "env", Name: "double",
		Desc: ImportDesc{Kind: KindFunc, TypeIdx: importType},
	})

	m.Globals = append(m.Globals, Global{
		Type: GlobalType{ValType: ValI32, Mutable: true},
		Init: EncodeInstructions([]Instruction{
			{Opcode: OpI32Const, Imm: I32Imm{Value: 100}},
			{Opcode: OpEnd},
		}),
	})

	funcType := m.AddType(FuncType{Params: nil, Results: []ValType{ValI32}})
	m.Funcs = append(m.Funcs, funcType)
	m.Code = append(m.Code, FuncBody{
		Code: EncodeInstructions([]Instruction{
			{Opcode: OpGlobalGet, Imm: GlobalImm{GlobalIdx: 0}},
			{Opcode: OpEnd},
		}),
	})
	m.Exports = append(m.Exports, Export{Name: "get_value", Kind: KindFunc, Idx: 1})
	m.Exports = append(m.Exports, Export{Name: "memory", Kind: KindMemory, Idx: 0})

	m.Data = append(m.Data, DataSegment{
		Flags: 0,
		Offset: EncodeInstructions([]Instruction{
			{Opcode: OpI32Const, Imm: I32Imm{Value: 0}},
			{Opcode: OpEnd},
		}),
		Init: []byte("hello"),
	})

	return m
}

func TestModule_EncodeParseRoundTrip(t *testing.T) {
	want := buildSampleModule()
	encoded := want.Encode()

	got, err := ParseModule(encoded)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}

	if len(got.Memories) != 1 || got.Memories[0].Limits.Min != 1 {
		t.Fatalf("unexpected memories after round-trip: %+v", got.Memories)
	}
	if len(got.Imports) != 1 || got.Imports[0].Module != "env" || got.Imports[0].Name != "double" {
		t.Fatalf("unexpected imports after round-trip: %+v", got.Imports)
	}
	if len(got.Globals) != 1 || !got.Globals[0].Type.Mutable {
		t.Fatalf("unexpected globals after round-trip: %+v", got.Globals)
	}
	if len(got.Funcs) != 1 || len(got.Code) != 1 {
		t.Fatalf("unexpected funcs/code after round-trip: funcs=%d code=%d", len(got.Funcs), len(got.Code))
	}
	if len(got.Exports) != 2 {
		t.Fatalf("unexpected exports after round-trip: %+v", got.Exports)
	}
	if len(got.Data) != 1 || string(got.Data[0].Init) != "hello" {
		t.Fatalf("unexpected data segments after round-trip: %+v", got.Data)
	}

	instrs, err := DecodeInstructions(got.Code[0].Code)
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	if len(instrs) != 2 || instrs[0].Opcode != OpGlobalGet || instrs[1].Opcode != OpEnd {
		t.Fatalf("unexpected decoded instructions: %+v", instrs)
	}
}

func TestParseModule_RejectsGarbage(t *testing.T) {
	if _, err := ParseModule([]byte{1, 2, 3, 4}); err == nil {
		t.Fatal("expected an error parsing a buffer with an invalid magic header")
	}
}

func TestModule_NumImportedFuncs(t *testing.T) {
	m := buildSampleModule()
	if got := m.NumImportedFuncs(); got != 1 {
		t.Fatalf("expected 1 imported func, got %d", got)
	}
}

func TestModule_GetFuncType(t *testing.T) {
	m := buildSampleModule()
	ft := m.GetFuncType(1)
	if ft == nil {
		t.Fatal("expected a func type for the defined function at index 1")
	}
	if len(ft.Results) != 1 || ft.Results[0] != ValI32 {
		t.Fatalf("unexpected func type: %+v", ft)
	}
}
