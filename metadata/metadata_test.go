package metadata

import (
	"testing"

	"github.com/packrun/pack/wasmir"
)

func sampleMetadata() *PackageMetadata {
	return &PackageMetadata{
		Imports: []FuncSig{
			{
				Interface: "math",
				Name:      "double",
				Params:    []Param{{Name: "n", Type: DS32()}},
				Results:   []TypeDesc{DS32()},
			},
		},
		Exports: []FuncSig{
			{
				Interface: "adder",
				Name:      "process",
				Params:    []Param{{Name: "value", Type: DS64()}},
				Results:   []TypeDesc{DS64()},
			},
		},
		ImportHashes: []InterfaceBinding{
			{Name: "math", Hash: FuncSig{Name: "double"}.Hash()},
		},
		ExportHashes: []InterfaceBinding{
			{Name: "adder", Hash: FuncSig{Name: "process"}.Hash()},
		},
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	want := sampleMetadata()

	blob, err := Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(got.Imports) != 1 || got.Imports[0].Name != "double" || got.Imports[0].Interface != "math" {
		t.Fatalf("unexpected imports after round-trip: %+v", got.Imports)
	}
	if len(got.Imports[0].Params) != 1 || got.Imports[0].Params[0].Name != "n" {
		t.Fatalf("unexpected import params after round-trip: %+v", got.Imports[0].Params)
	}
	if len(got.Exports) != 1 || got.Exports[0].Name != "process" {
		t.Fatalf("unexpected exports after round-trip: %+v", got.Exports)
	}
	if len(got.ImportHashes) != 1 || got.ImportHashes[0].Name != "math" {
		t.Fatalf("unexpected import hashes after round-trip: %+v", got.ImportHashes)
	}
	if got.ImportHashes[0].Hash != want.ImportHashes[0].Hash {
		t.Fatal("expected interface hash to survive the round-trip unchanged")
	}
}

func TestDecode_RejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte{0, 1, 2, 3}); err == nil {
		t.Fatal("expected an error decoding a non-CGRF blob")
	}
}

func moduleWithDataSegment(init []byte) *wasmir.Module {
	offset := wasmir.EncodeInstructions([]wasmir.Instruction{
		{Opcode: wasmir.OpI32Const, Imm: wasmir.I32Imm{Value: 0}},
		{Opcode: wasmir.OpEnd},
	})
	return &wasmir.Module{
		Memories: []wasmir.MemoryType{{Limits: wasmir.Limits{Min: 1}}},
		Data: []wasmir.DataSegment{
			{Flags: 0, Offset: offset, Init: init},
		},
	}
}

func TestFindInModule_LocatesMetadataSegment(t *testing.T) {
	blob, err := Encode(sampleMetadata())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	mod := moduleWithDataSegment(blob)

	found, ok := FindInModule(mod)
	if !ok {
		t.Fatal("expected to find the metadata segment by its magic prefix")
	}
	if string(found) != string(blob) {
		t.Fatal("expected FindInModule to return the exact segment bytes")
	}
}

func TestFindInModule_NoMagicSegment(t *testing.T) {
	mod := moduleWithDataSegment([]byte("not cgrf data"))
	if _, ok := FindInModule(mod); ok {
		t.Fatal("expected no match for a data segment without the CGRF magic prefix")
	}
}

func TestDescribe_EndToEnd(t *testing.T) {
	blob, err := Encode(sampleMetadata())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	mod := moduleWithDataSegment(blob)
	wasmBytes := mod.Encode()

	got, err := Describe(wasmBytes)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if len(got.Exports) != 1 || got.Exports[0].Name != "process" {
		t.Fatalf("unexpected exports from Describe: %+v", got.Exports)
	}
}

func TestDescribe_NoMetadataSegment(t *testing.T) {
	mod := &wasmir.Module{}
	wasmBytes := mod.Encode()

	if _, err := Describe(wasmBytes); err == nil {
		t.Fatal("expected a NotFound error for a module with no metadata segment")
	}
}

func TestTypeDesc_HashMatchesSameShapeDifferentName(t *testing.T) {
	a := DRecord("point", DescField{Name: "x", Type: DU32()}, DescField{Name: "y", Type: DU32()})
	b := DRecord("coord", DescField{Name: "y", Type: DU32()}, DescField{Name: "x", Type: DU32()})

	if a.Hash() != b.Hash() {
		t.Fatal("expected TypeDesc.Hash to be structural: name and field order should not matter")
	}
}

func TestTypeDesc_EncodeDecodeRoundTrip(t *testing.T) {
	want := DVariant("shape",
		DescCase{Name: "circle", Payload: func() *TypeDesc { d := DF64(); return &d }()},
		DescCase{Name: "point"},
	)

	v := want.toValue()
	got, err := typeDescFromValue(v)
	if err != nil {
		t.Fatalf("typeDescFromValue: %v", err)
	}
	if got.Name != "shape" || len(got.Cases) != 2 {
		t.Fatalf("unexpected type-desc after round-trip: %+v", got)
	}
	if got.Cases[0].Payload == nil || got.Cases[0].Payload.Kind != DescF64 {
		t.Fatalf("expected circle case to carry an f64 payload, got %+v", got.Cases[0].Payload)
	}
	if got.Cases[1].Payload != nil {
		t.Fatal("expected point case to carry no payload")
	}
}
