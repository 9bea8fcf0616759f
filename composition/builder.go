// Package composition wires already-compiled packages together at runtime
// (spec §4.6), topologically instantiating providers before consumers and
// binding each consumer's wired imports to bridge stubs that forward into
// the provider's exports.
package composition

import (
	"context"

	"go.uber.org/zap"

	"github.com/packrun/pack/abi"
	"github.com/packrun/pack/bridge"
	"github.com/packrun/pack/errors"
)

// Builder is the fluent composition-building API, mirroring
// _examples/original_source/src/runtime/composition.rs's CompositionBuilder
// adapted to Go's chained-method-returns-the-builder idiom.
type Builder struct {
	engine   *abi.Engine
	logger   *zap.Logger
	packages []packageDef
	wirings  map[string][]bridge.Wiring
}

type packageDef struct {
	name string
	wasm []byte
}

// NewBuilder creates an empty Builder. A nil logger is replaced with
// zap.NewNop(). The underlying engine is created lazily, on Build, since
// wazero.NewRuntimeWithConfig needs a context and NewBuilder doesn't take
// one.
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		logger:  logger,
		wirings: make(map[string][]bridge.Wiring),
	}
}

// AddPackage registers a package's WebAssembly bytes under name.
func (b *Builder) AddPackage(name string, wasmBytes []byte) *Builder {
	b.packages = append(b.packages, packageDef{name: name, wasm: wasmBytes})
	return b
}

// Wire declares that when consumer calls (importModule, importName), it
// should be forwarded to provider's export export instead.
func (b *Builder) Wire(consumer, importModule, importName, provider, export string) *Builder {
	b.wirings[consumer] = append(b.wirings[consumer], bridge.Wiring{
		ImportModule: importModule,
		ImportName:   importName,
		Provider:     provider,
		Export:       export,
	})
	return b
}

// Build compiles and instantiates every package in dependency order
// (providers before their consumers), installing bridge stubs for every
// wiring before the consumer is instantiated, and returns the running
// Composition.
func (b *Builder) Build(ctx context.Context) (*Composition, error) {
	if len(b.packages) == 0 {
		return nil, errors.NoModules()
	}

	order, err := topoSort(b.packages, b.wirings)
	if err != nil {
		return nil, err
	}

	b.engine = abi.NewEngine(ctx, b.logger)
	registry := bridge.NewRegistry()
	br := bridge.New(b.engine.Runtime(), registry, b.logger)

	byName := make(map[string]packageDef, len(b.packages))
	for _, p := range b.packages {
		byName[p.name] = p
	}

	modules := make(map[string]*abi.Module, len(order))
	instances := make(map[string]*abi.Instance, len(order))

	for _, name := range order {
		pkg := byName[name]

		mod, err := b.engine.Compile(ctx, name, pkg.wasm)
		if err != nil {
			closeAll(ctx, instances, modules, b.engine)
			return nil, err
		}
		modules[name] = mod

		if ws := b.wirings[name]; len(ws) > 0 {
			if err := br.Install(ctx, ws); err != nil {
				closeAll(ctx, instances, modules, b.engine)
				return nil, errors.WasmError(name, err)
			}
		}

		inst, err := mod.Instantiate(ctx)
		if err != nil {
			closeAll(ctx, instances, modules, b.engine)
			return nil, err
		}
		instances[name] = inst
		registry.Register(name, inst)
	}

	return &Composition{
		engine:    b.engine,
		registry:  registry,
		modules:   modules,
		instances: instances,
		logger:    b.logger,
	}, nil
}

func closeAll(ctx context.Context, instances map[string]*abi.Instance, modules map[string]*abi.Module, engine *abi.Engine) {
	for _, inst := range instances {
		_ = inst.Close(ctx)
	}
	for _, mod := range modules {
		_ = mod.Close(ctx)
	}
	_ = engine.Close(ctx)
}

// topoSort orders packages so that every wiring's provider appears before
// its consumer, detecting cycles (errors.CircularDependency) and wirings
// that name a package absent from the builder (errors.ModuleNotFound).
func topoSort(packages []packageDef, wirings map[string][]bridge.Wiring) ([]string, error) {
	known := make(map[string]bool, len(packages))
	names := make([]string, 0, len(packages))
	for _, p := range packages {
		known[p.name] = true
		names = append(names, p.name)
	}

	deps := make(map[string][]string)
	for consumer, ws := range wirings {
		if !known[consumer] {
			return nil, errors.ModuleNotFound(consumer)
		}
		for _, w := range ws {
			if !known[w.Provider] {
				return nil, errors.ModuleNotFound(w.Provider)
			}
			deps[consumer] = append(deps[consumer], w.Provider)
		}
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(names))
	order := make([]string, 0, len(names))

	var visit func(name string, stack []string) error
	visit = func(name string, stack []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return errors.CircularDependency(append(append([]string{}, stack...), name))
		}
		state[name] = visiting
		for _, dep := range deps[name] {
			if err := visit(dep, append(stack, name)); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}
