package bridge

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/packrun/pack"
	"github.com/packrun/pack/abi"
)

// Wiring names one forwarded import: when the consumer being instantiated
// calls (ImportModule, ImportName), it should actually invoke Export on the
// already-running Provider instance.
type Wiring struct {
	ImportModule string
	ImportName   string
	Provider     string
	Export       string
}

// Bridge installs host module stubs into a wazero runtime that forward a
// consumer's import calls to a provider package's exports, per spec §4.5.
type Bridge struct {
	runtime  wazero.Runtime
	registry *Registry
	logger   *zap.Logger
}

// New creates a Bridge backed by rt and registry. A nil logger is replaced
// with zap.NewNop().
func New(rt wazero.Runtime, registry *Registry, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{runtime: rt, registry: registry, logger: logger}
}

// Install instantiates one host module per distinct import module name
// appearing in wirings, each exporting a stub function per wiring with the
// standard four-i32 guest ABI signature. Call this before instantiating the
// consumer module so its imports resolve against the stubs.
func (b *Bridge) Install(ctx context.Context, wirings []Wiring) error {
	byModule := make(map[string][]Wiring)
	for _, w := range wirings {
		byModule[w.ImportModule] = append(byModule[w.ImportModule], w)
	}

	for modName, ws := range byModule {
		if b.runtime.Module(modName) != nil {
			continue
		}
		hb := b.runtime.NewHostModuleBuilder(modName)
		for _, w := range ws {
			w := w
			hb.NewFunctionBuilder().
				WithGoModuleFunction(
					api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
						b.forward(ctx, mod, w, stack)
					}),
					[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
					[]api.ValueType{api.ValueTypeI32},
				).
				Export(w.ImportName)
		}
		if _, err := hb.Instantiate(ctx); err != nil {
			return err
		}
	}
	return nil
}

// forward implements the six steps of spec §4.5's cross-package call.
// stack carries (in_ptr, in_len, out_ptr_slot, out_len_slot) on entry and
// the i32 status on return.
func (b *Bridge) forward(ctx context.Context, caller api.Module, w Wiring, stack []uint64) {
	fail := func(reason string) {
		b.logger.Debug("bridge: call failed",
			zap.String("import_module", w.ImportModule),
			zap.String("import_name", w.ImportName),
			zap.String("provider", w.Provider),
			zap.String("reason", reason))
		stack[0] = 1
	}

	inPtr := uint32(stack[0])
	inLen := uint32(stack[1])
	outPtrSlot := uint32(stack[2])
	outLenSlot := uint32(stack[3])

	callerMem := caller.Memory()
	if callerMem == nil {
		fail("caller has no memory export")
		return
	}

	// 1. Read the input bytes from the consumer's memory.
	view, ok := callerMem.Read(inPtr, inLen)
	if !ok {
		fail("input out of bounds")
		return
	}
	input := make([]byte, len(view))
	copy(input, view)

	// 2. Look up the provider under the registry lock, then release it
	// before entering WebAssembly - see package doc.
	inst, ok := b.registry.Lookup(w.Provider)
	if !ok {
		fail("provider not registered: " + w.Provider)
		return
	}

	// 3-5. Call the provider with the guest-allocates ABI; CallBytes writes
	// the input at the provider's INPUT_BUFFER_OFFSET, invokes the export,
	// reads back the reply, and frees the provider's buffer.
	reply, err := inst.CallBytes(ctx, w.Export, input)
	if err != nil {
		fail(err.Error())
		return
	}

	// 6. Relay the reply into the consumer's fixed cross-call region so the
	// consumer never needs to expose its own allocator to a foreign import.
	if err := abi.EnsureCapacity(callerMem, pack.CrossCallBufferOffset, uint32(len(reply))); err != nil {
		fail("grow caller memory: " + err.Error())
		return
	}
	if !callerMem.Write(pack.CrossCallBufferOffset, reply) {
		fail("write cross-call buffer")
		return
	}
	if !callerMem.WriteUint32Le(outPtrSlot, pack.CrossCallBufferOffset) {
		fail("write out_ptr_slot")
		return
	}
	if !callerMem.WriteUint32Le(outLenSlot, uint32(len(reply))) {
		fail("write out_len_slot")
		return
	}

	stack[0] = 0
}
