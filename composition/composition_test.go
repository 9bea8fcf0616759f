package composition

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/packrun/pack/internal/testwasm"
	"github.com/packrun/pack/value"
)

func providerWasm(export string) []byte {
	b := testwasm.New(0xC000)
	b.AddEcho(export)
	return b.Bytes()
}

func consumerWasm(importModule, importName, export string) []byte {
	b := testwasm.New(0xC000)
	idx := b.AddImportFunc(importModule, importName)
	b.AddForward(export, idx)
	return b.Bytes()
}

func TestBuilder_DynamicComposition(t *testing.T) {
	ctx := context.Background()
	b := NewBuilder(zap.NewNop())
	b.AddPackage("doubler", providerWasm("double"))
	b.AddPackage("adder", consumerWasm("math", "double", "process"))
	b.Wire("adder", "math", "double", "doubler", "double")

	c, err := b.Build(ctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Close(ctx)

	got, err := c.Call(ctx, "adder", "process", value.S64(5))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got.Kind != value.KindS64 || got.S64 != 5 {
		t.Fatalf("expected echoed S64(5), got %#v", got)
	}
}

func TestBuilder_NoPackages(t *testing.T) {
	ctx := context.Background()
	b := NewBuilder(zap.NewNop())
	if _, err := b.Build(ctx); err == nil {
		t.Fatal("expected NoModules error")
	}
}

func TestBuilder_UnknownProvider(t *testing.T) {
	ctx := context.Background()
	b := NewBuilder(zap.NewNop())
	b.AddPackage("adder", consumerWasm("math", "double", "process"))
	b.Wire("adder", "math", "double", "doubler", "double")

	if _, err := b.Build(ctx); err == nil {
		t.Fatal("expected ModuleNotFound error for unknown provider")
	}
}

func TestBuilder_CircularDependency(t *testing.T) {
	ctx := context.Background()
	b := NewBuilder(zap.NewNop())
	b.AddPackage("a", consumerWasm("env", "call_b", "process"))
	b.AddPackage("b", consumerWasm("env", "call_a", "process"))
	b.Wire("a", "env", "call_b", "b", "process")
	b.Wire("b", "env", "call_a", "a", "process")

	if _, err := b.Build(ctx); err == nil {
		t.Fatal("expected CircularDependency error")
	}
}

func TestComposition_PackagesAndInstance(t *testing.T) {
	ctx := context.Background()
	b := NewBuilder(zap.NewNop())
	b.AddPackage("doubler", providerWasm("double"))

	c, err := b.Build(ctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Close(ctx)

	names := c.Packages()
	if len(names) != 1 || names[0] != "doubler" {
		t.Fatalf("expected [doubler], got %v", names)
	}
	if _, ok := c.Instance("doubler"); !ok {
		t.Fatal("expected to find instance doubler")
	}
	if _, ok := c.Instance("missing"); ok {
		t.Fatal("expected no instance for unknown package")
	}
}

func TestComposition_CallUnknownPackage(t *testing.T) {
	ctx := context.Background()
	b := NewBuilder(zap.NewNop())
	b.AddPackage("doubler", providerWasm("double"))

	c, err := b.Build(ctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Close(ctx)

	if _, err := c.Call(ctx, "missing", "process", value.S64(1)); err == nil {
		t.Fatal("expected ModuleNotFound error")
	}
}
