package compose

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/packrun/pack/abi"
	"github.com/packrun/pack/internal/testwasm"
	"github.com/packrun/pack/wasmir"
)

func providerModule(t *testing.T, name, export string) *ParsedModule {
	t.Helper()
	b := testwasm.New(0xC000)
	b.AddEcho(export)
	pm, err := Parse(name, b.Bytes())
	if err != nil {
		t.Fatalf("Parse(%s): %v", name, err)
	}
	return pm
}

func consumerModule(t *testing.T, name, importModule, importName, export string) *ParsedModule {
	t.Helper()
	b := testwasm.New(0xC000)
	idx := b.AddImportFunc(importModule, importName)
	b.AddForward(export, idx)
	pm, err := Parse(name, b.Bytes())
	if err != nil {
		t.Fatalf("Parse(%s): %v", name, err)
	}
	return pm
}

func TestMerge_WiresImportToDirectCall(t *testing.T) {
	ctx := context.Background()
	provider := providerModule(t, "provider", "double")
	consumer := consumerModule(t, "consumer", "math", "double", "process")

	merged, err := Merge(
		zap.NewNop(),
		[]*ParsedModule{provider, consumer},
		[]Wiring{{Consumer: "consumer", ImportModule: "math", ImportFn: "double", Provider: "provider", ExportFn: "double"}},
		[]ExportSpec{
			{Module: "consumer", Name: "memory", As: "memory"},
			{Module: "consumer", Name: "__pack_alloc", As: "__pack_alloc"},
			{Module: "consumer", Name: "__pack_free", As: "__pack_free"},
			{Module: "consumer", Name: "process", As: "process"},
		},
		false,
	)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	engine := abi.NewEngine(ctx, zap.NewNop())
	defer engine.Close(ctx)
	mod, err := engine.Compile(ctx, "merged", merged)
	if err != nil {
		t.Fatalf("Compile merged module: %v", err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate merged module: %v", err)
	}
	defer inst.Close(ctx)

	in := []byte{1, 2, 3}
	out, err := inst.CallBytes(ctx, "process", in)
	if err != nil {
		t.Fatalf("CallBytes: %v", err)
	}
	if string(out) != string(in) {
		t.Fatalf("expected echoed bytes %v, got %v", in, out)
	}
}

func TestMerge_NoModules(t *testing.T) {
	if _, err := Merge(zap.NewNop(), nil, nil, nil, false); err == nil {
		t.Fatal("expected NoModules error")
	}
}

func TestMerge_UnwiredImportPassesThrough(t *testing.T) {
	consumer := consumerModule(t, "consumer", "math", "double", "process")

	merged, err := Merge(zap.NewNop(), []*ParsedModule{consumer}, nil, nil, false)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	parsed, err := wasmir.ParseModule(merged)
	if err != nil {
		t.Fatalf("ParseModule(merged): %v", err)
	}
	found := false
	for _, imp := range parsed.Imports {
		if imp.Module == "math" && imp.Name == "double" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected unwired import math::double to survive as a real import")
	}
}

func TestMerge_AutoWireNoMatch(t *testing.T) {
	consumer := consumerModule(t, "consumer", "math", "double", "process")

	merged, err := Merge(zap.NewNop(), []*ParsedModule{consumer}, nil, nil, true)
	if err != nil {
		t.Fatalf("expected a missing auto-wire match to be recoverable, got: %v", err)
	}

	parsed, err := wasmir.ParseModule(merged)
	if err != nil {
		t.Fatalf("ParseModule(merged): %v", err)
	}
	found := false
	for _, imp := range parsed.Imports {
		if imp.Module == "math" && imp.Name == "double" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected unmatched import math::double to survive as a real import")
	}
}

func TestMerge_AutoWireTypeMismatch(t *testing.T) {
	provider := providerModule(t, "provider", "double")
	// mismatch: provider's "double" export expects the standard 4-arg shape,
	// but consumer's import of the same name declares a different signature.
	consumerBuilder := testwasm.New(0xC000)
	idx := consumerBuilder.AddImportFunc("math", "double")
	consumerBuilder.AddForward("process", idx)
	consumerMod := consumerBuilder.Module()
	consumerMod.Imports[len(consumerMod.Imports)-1].Desc.TypeIdx = consumerMod.AddType(wasmir.FuncType{
		Params:  []wasmir.ValType{wasmir.ValI32},
		Results: []wasmir.ValType{wasmir.ValI32},
	})
	consumer := &ParsedModule{Name: "consumer", Module: consumerMod}

	_, err := Merge(zap.NewNop(), []*ParsedModule{provider, consumer}, nil, nil, true)
	if err == nil {
		t.Fatal("expected ComposeTypeMismatch error for an auto-wired name with an incompatible signature")
	}
}

func TestMerge_AutoWire(t *testing.T) {
	ctx := context.Background()
	provider := providerModule(t, "provider", "double")
	consumer := consumerModule(t, "consumer", "math", "double", "process")

	merged, err := Merge(
		zap.NewNop(),
		[]*ParsedModule{provider, consumer},
		nil,
		[]ExportSpec{
			{Module: "consumer", Name: "memory", As: "memory"},
			{Module: "consumer", Name: "__pack_alloc", As: "__pack_alloc"},
			{Module: "consumer", Name: "__pack_free", As: "__pack_free"},
			{Module: "consumer", Name: "process", As: "process"},
		},
		true,
	)
	if err != nil {
		t.Fatalf("Merge with auto-wiring: %v", err)
	}

	engine := abi.NewEngine(ctx, zap.NewNop())
	defer engine.Close(ctx)
	mod, err := engine.Compile(ctx, "merged", merged)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	out, err := inst.CallBytes(ctx, "process", []byte{9})
	if err != nil {
		t.Fatalf("CallBytes: %v", err)
	}
	if len(out) != 1 || out[0] != 9 {
		t.Fatalf("expected [9], got %v", out)
	}
}

func TestMerge_DuplicateModuleName(t *testing.T) {
	a := providerModule(t, "dup", "double")
	b := providerModule(t, "dup", "double")

	if _, err := Merge(zap.NewNop(), []*ParsedModule{a, b}, nil, nil, false); err == nil {
		t.Fatal("expected DuplicateInternal error")
	}
}

func TestMerge_CircularWiring(t *testing.T) {
	a := consumerModule(t, "a", "env", "call_b", "process")
	b := consumerModule(t, "b", "env", "call_a", "process")

	wirings := []Wiring{
		{Consumer: "a", ImportModule: "env", ImportFn: "call_b", Provider: "b", ExportFn: "process"},
		{Consumer: "b", ImportModule: "env", ImportFn: "call_a", Provider: "a", ExportFn: "process"},
	}
	if _, err := Merge(zap.NewNop(), []*ParsedModule{a, b}, wirings, nil, false); err == nil {
		t.Fatal("expected CircularDependency error")
	}
}

func TestMerge_ExportNotFound(t *testing.T) {
	provider := providerModule(t, "provider", "double")

	exports := []ExportSpec{{Module: "provider", Name: "missing", As: "x"}}
	if _, err := Merge(zap.NewNop(), []*ParsedModule{provider}, nil, exports, false); err == nil {
		t.Fatal("expected export-not-found error")
	}
}
