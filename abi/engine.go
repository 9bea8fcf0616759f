// Package abi implements the guest-allocates calling convention (spec §4.4):
// every host-callable package export has the shape
//
//	fn(in_ptr, in_len, out_ptr_slot, out_len_slot) -> status
//
// Engine wraps a wazero runtime the way the teacher's engine.WazeroEngine
// wraps one: one Engine per process (or per isolation domain), many Modules
// compiled against it, many Instances per Module.
package abi

import (
	"context"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/packrun/pack/errors"
)

// Config configures engine creation, mirroring engine.Config in the teacher.
type Config struct {
	// MemoryLimitPages bounds linear memory per instance (64KiB pages). Zero
	// means wazero's default (65536 pages = 4GiB).
	MemoryLimitPages uint32
}

// Engine owns a wazero runtime and compiles packages against it.
type Engine struct {
	runtime wazero.Runtime
	logger  *zap.Logger
}

// NewEngine creates an Engine with default configuration. A nil logger is
// replaced with zap.NewNop(), following the teacher's injected-logger
// pattern throughout engine/linker/runtime.
func NewEngine(ctx context.Context, logger *zap.Logger) *Engine {
	return NewEngineWithConfig(ctx, nil, logger)
}

// NewEngineWithConfig creates an Engine with a custom Config.
func NewEngineWithConfig(ctx context.Context, cfg *Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		logger:  logger,
	}
}

// Runtime exposes the underlying wazero runtime so callers (the bridge,
// composition builder) can install host modules against the same runtime
// instance.
func (e *Engine) Runtime() wazero.Runtime {
	return e.runtime
}

// Close releases the engine's runtime and every module compiled against it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Compile compiles a package's WebAssembly bytes. name is used only for
// error reporting (module field on *errors.Error).
func (e *Engine) Compile(ctx context.Context, name string, wasmBytes []byte) (*Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.InvalidModule(name, err.Error())
	}
	return &Module{engine: e, name: name, compiled: compiled, raw: wasmBytes}, nil
}

// Module is a compiled package, ready to be instantiated one or more times.
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
	raw      []byte
	name     string
}

// Name returns the module's package name, as given to Engine.Compile.
func (m *Module) Name() string { return m.name }

// Bytes returns the raw WebAssembly bytes the module was compiled from, for
// readers (metadata.Describe) that need the original binary rather than a
// running instance.
func (m *Module) Bytes() []byte { return m.raw }

// Close releases the compiled module.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}
