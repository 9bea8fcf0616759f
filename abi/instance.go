package abi

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/packrun/pack"
	"github.com/packrun/pack/cgrf"
	"github.com/packrun/pack/errors"
	"github.com/packrun/pack/metadata"
	"github.com/packrun/pack/value"
)

const (
	exportMemory    = "memory"
	exportAlloc     = "__pack_alloc"
	exportFree      = "__pack_free"
	exportPackTypes = "__pack_types"
)

// Required/optional export names every package under the new ABI is judged
// against (spec §6). Exported so ifacecheck can check a module before ever
// constructing an Instance from it.
const (
	ExportMemory    = exportMemory
	ExportAlloc     = exportAlloc
	ExportFree      = exportFree
	ExportPackTypes = exportPackTypes
)

// Instance is one running package instance: a wazero api.Module plus the
// cached memory/allocator adapters and exported functions the dispatcher
// needs on every call.
//
// An Instance serializes its own calls: CallBytes and Metadata hold mu for
// the whole guest call, matching the "each instance's store is protected by
// a mutex" rule of spec §5.
type Instance struct {
	module   *Module
	instance api.Module
	memory   *instanceMemory
	alloc    *instanceAllocator
	funcs    map[string]api.Function
	logger   *zap.Logger
	mu       sync.Mutex
}

// Instantiate creates a new running instance of m, with its own linear
// memory.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	modCfg := wazero.NewModuleConfig().WithName("")
	inst, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modCfg)
	if err != nil {
		return nil, errors.WasmError(m.name, err)
	}

	i := &Instance{
		module:   m,
		instance: inst,
		funcs:    make(map[string]api.Function),
		logger:   m.engine.logger,
	}

	if mem := inst.Memory(); mem != nil {
		i.memory = &instanceMemory{mem: mem}
	}
	i.alloc = &instanceAllocator{
		allocFn: inst.ExportedFunction(exportAlloc),
		freeFn:  inst.ExportedFunction(exportFree),
	}
	return i, nil
}

// Close releases the instance.
func (i *Instance) Close(ctx context.Context) error {
	return i.instance.Close(ctx)
}

// Raw returns the underlying wazero api.Module, for callers (ifacecheck)
// that need to inspect exports beyond what Instance exposes directly.
func (i *Instance) Raw() api.Module {
	return i.instance
}

// Module returns the compiled Module this instance was created from.
func (i *Instance) Module() *Module {
	return i.module
}

// Memory returns the instance's linear memory as a pack.Memory, nil if the
// package declares none.
func (i *Instance) Memory() pack.Memory {
	if i.memory == nil {
		return nil
	}
	return i.memory
}

// Allocator returns the instance's __pack_alloc/__pack_free pair as a
// pack.Allocator.
func (i *Instance) Allocator() pack.Allocator {
	return i.alloc
}

func (i *Instance) exportedFunction(name string) api.Function {
	if fn, ok := i.funcs[name]; ok {
		return fn
	}
	fn := i.instance.ExportedFunction(name)
	if fn != nil {
		i.funcs[name] = fn
	}
	return fn
}

// Call invokes the named export using the guest-allocates calling
// convention of spec §4.4: it encodes v, writes it at the reserved input
// offset, invokes fn with (in_ptr, in_len, out_ptr_slot, out_len_slot),
// decodes the reply the callee allocated, and frees the callee's buffer.
func (i *Instance) Call(ctx context.Context, fn string, v value.Value) (value.Value, error) {
	data, err := cgrf.Encode(v)
	if err != nil {
		return value.Value{}, errors.AbiError("encode call input: " + err.Error())
	}

	reply, err := i.CallBytes(ctx, fn, data)
	if err != nil {
		return value.Value{}, err
	}

	out, err := cgrf.Decode(reply)
	if err != nil {
		return value.Value{}, errors.AbiError("decode call output: " + err.Error())
	}
	return out, nil
}

// CallBytes drives the guest-allocates calling convention directly on
// already-encoded bytes, without going through value.Value. The
// cross-package bridge uses this: it only ever relays opaque CGRF bytes
// between two instances and never needs to decode them.
func (i *Instance) CallBytes(ctx context.Context, fn string, data []byte) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.memory == nil {
		return nil, errors.MissingMemory(i.module.name)
	}

	export := i.exportedFunction(fn)
	if export == nil {
		return nil, errors.FunctionNotFound(i.module.name, fn)
	}

	if err := ensureCapacity(i.memory.mem, pack.InputBufferOffset, uint32(len(data))); err != nil {
		return nil, err
	}
	if err := i.memory.Write(pack.InputBufferOffset, data); err != nil {
		return nil, err
	}

	i.logger.Debug("abi call",
		zap.String("module", i.module.name),
		zap.String("func", fn),
		zap.Int("input_bytes", len(data)))

	results, err := export.Call(ctx,
		uint64(pack.InputBufferOffset),
		uint64(len(data)),
		uint64(pack.ResultPtrOffset),
		uint64(pack.ResultLenOffset),
	)
	if err != nil {
		return nil, errors.WasmError(i.module.name, err)
	}
	if len(results) == 0 {
		return nil, errors.AbiError("export returned no status")
	}
	status := int32(uint32(results[0]))

	resultPtr, err := i.memory.ReadU32(pack.ResultPtrOffset)
	if err != nil {
		return nil, err
	}
	resultLen, err := i.memory.ReadU32(pack.ResultLenOffset)
	if err != nil {
		return nil, err
	}

	reply, err := i.memory.Read(resultPtr, resultLen)
	if err != nil {
		return nil, err
	}
	if ferr := i.alloc.Free(ctx, resultPtr, resultLen); ferr != nil {
		i.logger.Warn("abi call: failed to free reply buffer",
			zap.String("module", i.module.name), zap.Error(ferr))
	}

	if status != 0 {
		return nil, errors.WasmError(i.module.name, errors.InvalidEncoding(string(reply)))
	}
	return reply, nil
}

// Metadata invokes the optional __pack_types export and decodes its reply
// as package metadata. Packages that don't implement it (the export is
// absent) report a metadata NotFound, not an abi error, matching
// metadata.Describe's treatment of an absent segment.
func (i *Instance) Metadata(ctx context.Context) (*metadata.PackageMetadata, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	export := i.exportedFunction(exportPackTypes)
	if export == nil {
		return nil, errors.NotFound(errors.PhaseMetadata, "export", exportPackTypes)
	}

	results, err := export.Call(ctx, uint64(pack.ResultPtrOffset), uint64(pack.ResultLenOffset))
	if err != nil {
		return nil, errors.WasmError(i.module.name, err)
	}
	if len(results) == 0 || int32(uint32(results[0])) != 0 {
		return nil, errors.AbiError("__pack_types reported failure")
	}

	ptr, err := i.memory.ReadU32(pack.ResultPtrOffset)
	if err != nil {
		return nil, err
	}
	ln, err := i.memory.ReadU32(pack.ResultLenOffset)
	if err != nil {
		return nil, err
	}
	blob, err := i.memory.Read(ptr, ln)
	if err != nil {
		return nil, err
	}
	if ferr := i.alloc.Free(ctx, ptr, ln); ferr != nil {
		i.logger.Warn("metadata: failed to free __pack_types buffer", zap.Error(ferr))
	}

	return metadata.Decode(blob)
}
