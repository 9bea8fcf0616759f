// Package pack provides the root types shared across the component runtime:
// the guest linear-memory contract and the allocation hooks every package
// must export under the new ABI.
package pack

// Memory represents a package's WebAssembly linear memory as seen by the
// host. Offsets are guest addresses; all reads/writes are little-endian.
type Memory interface {
	Read(offset, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
	Size() uint32
}

// Allocator exposes a package's __pack_alloc/__pack_free exports to the
// host, used to place encoded CGRF buffers in the guest's heap and to
// release them once the host has consumed them.
type Allocator interface {
	Alloc(ctx any, size uint32) (uint32, error)
	Free(ctx any, ptr, size uint32) error
}

// Reserved memory offsets used by the guest ABI dispatcher and the
// cross-package bridge (see the abi and bridge packages). Kept here since
// both packages, and package metadata readers written against this module,
// need to agree on the same fixed layout.
const (
	// InputBufferOffset is where the host writes the encoded call input
	// before invoking a package export. It sits above the result slots and
	// the cross-call region, so a long input never runs into the slots.
	InputBufferOffset uint32 = 0x2000
	// ResultPtrOffset and ResultLenOffset are the two 4-byte slots a
	// package export writes its (ptr, len) reply into.
	ResultPtrOffset uint32 = 1040
	ResultLenOffset uint32 = 1044
	// CrossCallBufferOffset is where the bridge relays a provider's reply
	// back into the consumer's memory, avoiding the need for the consumer
	// to expose its allocator to a foreign import.
	CrossCallBufferOffset = ResultLenOffset + 4
	// CrossCallBufferSize is the room between CrossCallBufferOffset and
	// InputBufferOffset. The bridge does not consult it: it writes each
	// reply whole at CrossCallBufferOffset, growing the consumer's memory
	// only when the reply would run past the end of it.
	CrossCallBufferSize = InputBufferOffset - CrossCallBufferOffset

	// DefaultHeapGlobalInit is the conventional initial value of a
	// package's heap-pointer global, used by the static composer to
	// detect and unify allocator globals across merged modules.
	DefaultHeapGlobalInit int32 = 0xC000
	// DefaultStackGlobalInit is the conventional initial value of a
	// package's encoding-stack-pointer global.
	DefaultStackGlobalInit int32 = 0xB000
)
