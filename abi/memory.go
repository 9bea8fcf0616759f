package abi

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/packrun/pack"
	"github.com/packrun/pack/errors"
)

// instanceMemory adapts wazero's api.Memory to pack.Memory, the same
// narrowing the teacher's WazeroMemory does over api.Memory.
type instanceMemory struct {
	mem api.Memory
}

func (m *instanceMemory) Read(offset, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.MemoryError("read out of bounds", nil)
	}
	// Read returns a view into live WASM memory; the caller may hold this
	// past the next guest call, so copy it out.
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *instanceMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.MemoryError("write out of bounds", nil)
	}
	return nil
}

func (m *instanceMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.MemoryError("read u32 out of bounds", nil)
	}
	return v, nil
}

func (m *instanceMemory) WriteU32(offset, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.MemoryError("write u32 out of bounds", nil)
	}
	return nil
}

func (m *instanceMemory) Size() uint32 {
	return m.mem.Size()
}

var _ pack.Memory = (*instanceMemory)(nil)

// EnsureCapacity grows mem, if needed, so that [offset, offset+length) is
// addressable. Exported for the bridge package, which grows a caller's
// memory directly (the caller is a raw api.Module handed in by wazero's
// host-function callback, not an *Instance).
func EnsureCapacity(mem api.Memory, offset, length uint32) error {
	return ensureCapacity(mem, offset, length)
}

// ensureCapacity grows the instance's memory, if needed, so that
// [offset, offset+length) is addressable. WASM memory can only grow.
func ensureCapacity(mem api.Memory, offset, length uint32) error {
	need := offset + length
	if need < offset {
		return errors.MemoryError("requested region overflows addressable memory", nil)
	}
	if need <= mem.Size() {
		return nil
	}
	const pageSize = 65536
	deltaBytes := need - mem.Size()
	deltaPages := deltaBytes / pageSize
	if deltaBytes%pageSize != 0 {
		deltaPages++
	}
	if _, ok := mem.Grow(deltaPages); !ok {
		return errors.MemoryError("failed to grow linear memory", nil)
	}
	return nil
}

// instanceAllocator adapts a package's __pack_alloc/__pack_free exports to
// pack.Allocator.
type instanceAllocator struct {
	allocFn api.Function
	freeFn  api.Function
}

func (a *instanceAllocator) Alloc(ctx any, size uint32) (uint32, error) {
	if a.allocFn == nil {
		return 0, errors.AbiError("package does not export __pack_alloc")
	}
	goCtx, _ := ctx.(context.Context)
	if goCtx == nil {
		goCtx = context.Background()
	}
	results, err := a.allocFn.Call(goCtx, uint64(size))
	if err != nil {
		return 0, errors.WasmError("", err)
	}
	if len(results) == 0 {
		return 0, errors.AbiError("__pack_alloc returned no result")
	}
	return uint32(results[0]), nil
}

func (a *instanceAllocator) Free(ctx any, ptr, size uint32) error {
	if a.freeFn == nil {
		// __pack_free is required by the ABI, but a dispatcher calling a
		// package that never declared one shouldn't panic: just leak.
		return nil
	}
	goCtx, _ := ctx.(context.Context)
	if goCtx == nil {
		goCtx = context.Background()
	}
	if _, err := a.freeFn.Call(goCtx, uint64(ptr), uint64(size)); err != nil {
		return errors.WasmError("", err)
	}
	return nil
}

var _ pack.Allocator = (*instanceAllocator)(nil)
