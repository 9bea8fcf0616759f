package compose

import (
	"github.com/packrun/pack"
	"github.com/packrun/pack/wasmir"
)

// globalPass appends every module's defined globals to the merged module,
// except that the second and subsequent modules defining a global matching
// the conventional heap-pointer or stack-pointer shape are mapped onto the
// first module's instance of that global instead of getting their own -
// their bump allocators then share state rather than each believing it owns
// the whole shared memory from the same starting address.
func (m *merger) globalPass() {
	// Defined globals follow the imported ones in both the merged module's
	// and each input module's global index space.
	importedGlobals := uint32(m.out.NumImportedGlobals())
	for _, name := range m.order {
		mod := m.byName[name].Module
		remap := m.remaps[name]
		numImported := uint32(mod.NumImportedGlobals())

		for i, g := range mod.Globals {
			localIdx := numImported + uint32(i)

			if shape, ok := constI32Init(g); ok && g.Type.Mutable && g.Type.ValType == wasmir.ValI32 {
				switch {
				case shape == pack.DefaultHeapGlobalInit && m.heapGlobalIdx != nil:
					remap.Globals[localIdx] = *m.heapGlobalIdx
					continue
				case shape == pack.DefaultStackGlobalInit && m.stackGlobalIdx != nil:
					remap.Globals[localIdx] = *m.stackGlobalIdx
					continue
				}
			}

			mergedIdx := importedGlobals + uint32(len(m.out.Globals))
			m.out.Globals = append(m.out.Globals, g)
			remap.Globals[localIdx] = mergedIdx

			if shape, ok := constI32Init(g); ok && g.Type.Mutable && g.Type.ValType == wasmir.ValI32 {
				switch shape {
				case pack.DefaultHeapGlobalInit:
					idx := mergedIdx
					m.heapGlobalIdx = &idx
				case pack.DefaultStackGlobalInit:
					idx := mergedIdx
					m.stackGlobalIdx = &idx
				}
			}
		}
	}
}

// constI32Init reports the constant value of a global's initializer if it
// is exactly "i32.const N; end", the only shape the heap/stack pointer
// detection recognizes.
func constI32Init(g wasmir.Global) (int32, bool) {
	instrs, err := wasmir.DecodeInstructions(g.Init)
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
