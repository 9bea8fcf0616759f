package abi

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/packrun/pack/internal/testwasm"
	"github.com/packrun/pack/value"
)

func newInstance(t *testing.T, build func(b *testwasm.Builder)) (*Instance, *Engine) {
	t.Helper()
	ctx := context.Background()
	b := testwasm.New(0xC000)
	build(b)

	engine := NewEngine(ctx, zap.NewNop())
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
	return inst, engine
}

func TestInstance_CallRoundTrip(t *testing.T) {
	inst, _ := newInstance(t, func(b *testwasm.Builder) {
		b.AddEcho("echo")
	})

	ctx := context.Background()
	got, err := inst.Call(ctx, "echo", value.S64(42))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got.Kind != value.KindS64 || got.S64 != 42 {
		t.Fatalf("expected S64(42), got %#v", got)
	}
}

func TestInstance_CallBytes(t *testing.T) {
	inst, _ := newInstance(t, func(b *testwasm.Builder) {
		b.AddEcho("echo")
	})

	ctx := context.Background()
	in := []byte{1, 2, 3, 4, 5}
	out, err := inst.CallBytes(ctx, "echo", in)
	if err != nil {
		t.Fatalf("CallBytes: %v", err)
	}
	if string(out) != string(in) {
		t.Fatalf("expected %v, got %v", in, out)
	}
}

func TestInstance_CallBytes_StatusError(t *testing.T) {
	inst, _ := newInstance(t, func(b *testwasm.Builder) {
		b.AddFailing("bad")
	})

	ctx := context.Background()
	if _, err := inst.CallBytes(ctx, "bad", []byte{1}); err == nil {
		t.Fatal("expected error for non-zero status")
	}
}

func TestInstance_CallBytes_FunctionNotFound(t *testing.T) {
	inst, _ := newInstance(t, func(b *testwasm.Builder) {
		b.AddEcho("echo")
	})

	ctx := context.Background()
	if _, err := inst.CallBytes(ctx, "missing", []byte{1}); err == nil {
		t.Fatal("expected FunctionNotFound error")
	}
}

func TestInstance_Allocator(t *testing.T) {
	inst, _ := newInstance(t, func(b *testwasm.Builder) {
		b.AddEcho("echo")
	})

	ctx := context.Background()
	alloc := inst.Allocator()
	first, err := alloc.Alloc(ctx, 16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	second, err := alloc.Alloc(ctx, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if second != first+16 {
		t.Fatalf("expected bump allocation, got first=%d second=%d", first, second)
	}
	if err := alloc.Free(ctx, first, 16); err != nil {
		t.Fatalf("Free: %v", err)
	}
}

func TestInstance_Memory(t *testing.T) {
	inst, _ := newInstance(t, func(b *testwasm.Builder) {
		b.AddEcho("echo")
	})

	mem := inst.Memory()
	if mem == nil {
		t.Fatal("expected non-nil memory")
	}
	if err := mem.Write(2048, []byte{9, 9, 9}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := mem.Read(2048, 3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string([]byte{9, 9, 9}) {
		t.Fatalf("unexpected memory contents: %v", got)
	}
}

func TestInstance_Metadata_NotFound(t *testing.T) {
	inst, _ := newInstance(t, func(b *testwasm.Builder) {
		b.AddEcho("echo")
	})

	ctx := context.Background()
	if _, err := inst.Metadata(ctx); err == nil {
		t.Fatal("expected error when __pack_types is absent")
	}
}

func TestEngine_Compile_InvalidModule(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(ctx, zap.NewNop())
	defer engine.Close(ctx)

	if _, err := engine.Compile(ctx, "broken", []byte{0x00, 0x01, 0x02}); err == nil {
		t.Fatal("expected error compiling invalid bytes")
	}
}
