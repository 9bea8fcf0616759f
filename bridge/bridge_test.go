package bridge

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/packrun/pack/abi"
	"github.com/packrun/pack/internal/testwasm"
)

// fakeProvider is a Registry Instance that always echoes its input back,
// without compiling any WebAssembly - enough to test Bridge.forward's
// plumbing in isolation from abi.Instance.
type fakeProvider struct {
	calls int
}

func (p *fakeProvider) CallBytes(ctx context.Context, fn string, data []byte) ([]byte, error) {
	p.calls++
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func newConsumer(t *testing.T, engine *abi.Engine, importModule, importName string) *abi.Instance {
	t.Helper()
	ctx := context.Background()

	b := testwasm.New(0xC000)
	importIdx := b.AddImportFunc(importModule, importName)
	b.AddForward("call_provider", importIdx)

	mod, err := engine.Compile(ctx, "consumer", b.Bytes())
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
	})
	return inst
}

func TestBridge_ForwardsCallToProvider(t *testing.T) {
	ctx := context.Background()
	engine := abi.NewEngine(ctx, zap.NewNop())
	defer engine.Close(ctx)

	registry := NewRegistry()
	provider := &fakeProvider{}
	registry.Register("adder", provider)

	br := New(engine.Runtime(), registry, zap.NewNop())
	wirings := []Wiring{
		{ImportModule: "env", ImportName: "add", Provider: "adder", Export: "add"},
	}
	if err := br.Install(ctx, wirings); err != nil {
		t.Fatalf("Install: %v", err)
	}

	consumer := newConsumer(t, engine, "env", "add")

	in := []byte{7, 7, 7}
	out, err := consumer.CallBytes(ctx, "call_provider", in)
	if err != nil {
		t.Fatalf("CallBytes: %v", err)
	}
	if string(out) != string(in) {
		t.Fatalf("expected echoed bytes %v, got %v", in, out)
	}
	if provider.calls != 1 {
		t.Fatalf("expected provider to be called once, got %d", provider.calls)
	}
}

func TestBridge_UnregisteredProviderFails(t *testing.T) {
	ctx := context.Background()
	engine := abi.NewEngine(ctx, zap.NewNop())
	defer engine.Close(ctx)

	registry := NewRegistry()
	br := New(engine.Runtime(), registry, zap.NewNop())
	wirings := []Wiring{
		{ImportModule: "env", ImportName: "add", Provider: "missing", Export: "add"},
	}
	if err := br.Install(ctx, wirings); err != nil {
		t.Fatalf("Install: %v", err)
	}

	consumer := newConsumer(t, engine, "env", "add")
	if _, err := consumer.CallBytes(ctx, "call_provider", []byte{1}); err == nil {
		t.Fatal("expected call through an unregistered provider to fail")
	}
}

func TestRegistry_NamesAndLookup(t *testing.T) {
	registry := NewRegistry()
	registry.Register("a", &fakeProvider{})
	registry.Register("b", &fakeProvider{})

	if _, ok := registry.Lookup("a"); !ok {
		t.Fatal("expected to find registered instance a")
	}
	if _, ok := registry.Lookup("missing"); ok {
		t.Fatal("expected no instance for unregistered name")
	}
	names := registry.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}
}
