package compose

import "github.com/packrun/pack/wasmir"

const dataAlignment = 8

// relocateData adds a per-module constant shift to every active data
// segment's offset: zero for the first module, then the 8-byte-aligned
// high-water mark left by all modules merged so far. Segments keep their
// relative layout within a module; only the module's whole data region
// moves, which is the sole mechanism preventing merged modules' .rodata
// regions from overlapping in the shared memory. Segments whose offset
// isn't a constant expression (e.g. a global.get) aren't shifted, a known
// limitation.
func (m *merger) relocateData() {
	var shift uint32

	for _, name := range m.order {
		mod := m.byName[name].Module
		remap := m.remaps[name]

		for _, seg := range mod.Data {
			seg.MemIdx = remap.Memories[seg.MemIdx]

			if seg.Flags == 1 { // passive: no offset to relocate
				m.out.Data = append(m.out.Data, seg)
				continue
			}

			if off, ok := constI32Offset(seg.Offset); ok {
				newOffset := off + int32(shift)
				seg.Offset = wasmir.EncodeInstructions([]wasmir.Instruction{
					{Opcode: wasmir.OpI32Const, Imm: wasmir.I32Imm{Value: newOffset}},
					{Opcode: wasmir.OpEnd},
				})
				if end := uint32(newOffset) + uint32(len(seg.Init)); end > m.dataWatermark {
					m.dataWatermark = end
				}
			}

			m.out.Data = append(m.out.Data, seg)
		}

		shift = alignUp(m.dataWatermark, dataAlignment)
	}
}

func constI32Offset(offsetExpr []byte) (int32, bool) {
	instrs, err := wasmir.DecodeInstructions(offsetExpr)
	if err != nil || len(instrs) != 2 {
		return 0, false
	}
	if instrs[0].Opcode != wasmir.OpI32Const || instrs[1].Opcode != wasmir.OpEnd {
		return 0, false
	}
	imm, ok := instrs[0].Imm.(wasmir.I32Imm)
	if !ok {
		return 0, false
	}
	return imm.Value, true
}

func alignUp(v, align uint32) uint32 {
	rem := v % align
	if rem == 0 {
		return v
	}
	return v + (align - rem)
}
