package ifacecheck

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/packrun/pack/abi"
	"github.com/packrun/pack/internal/testwasm"
	"github.com/packrun/pack/wasmir"
)

func compileAndInstantiate(t *testing.T, build func(b *testwasm.Builder)) *abi.Instance {
	t.Helper()
	ctx := context.Background()
	b := testwasm.New(0xC000)
	build(b)

	engine := abi.NewEngine(ctx, zap.NewNop())
	mod, err := engine.Compile(ctx, "test", b.Bytes())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	t.Cleanup(func() {
		inst.Close(ctx)
		mod.Close(ctx)
		engine.Close(ctx)
	})
	return inst
}

func TestCheck_RequiredExportsSatisfied(t *testing.T) {
	inst := compileAndInstantiate(t, func(b *testwasm.Builder) {
		b.AddEcho("process")
	})

	expected := append(RequiredExports(), StandardExport("process"))
	if err := Check(inst, expected); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestCheck_MissingFunction(t *testing.T) {
	inst := compileAndInstantiate(t, func(b *testwasm.Builder) {
		b.AddEcho("process")
	})

	expected := append(RequiredExports(), StandardExport("missing"))
	if err := Check(inst, expected); err == nil {
		t.Fatal("expected MissingFunction error")
	}
}

func TestCheck_SignatureMismatch(t *testing.T) {
	inst := compileAndInstantiate(t, func(b *testwasm.Builder) {
		// A no-argument, no-result function exported under the "process"
		// name: the wrong signature for a StandardExport check.
		b.AddRaw("process", nil, nil, nil, []wasmir.Instruction{{Opcode: wasmir.OpEnd}})
	})

	if err := Check(inst, []Signature{StandardExport("process")}); err == nil {
		t.Fatal("expected SignatureMismatch error")
	}
}
