package compose

import (
	"github.com/packrun/pack/errors"
	"github.com/packrun/pack/wasmir"
)

// functionDeclPass assigns merged function indices to every module's
// locally-defined functions (continuing the shared index space the import
// pass started) and copies their (remapped) type declarations.
func (m *merger) functionDeclPass() {
	var nextFunc uint32
	for _, imp := range m.out.Imports {
		if imp.Desc.Kind == wasmir.KindFunc {
			nextFunc++
		}
	}

	for _, name := range m.order {
		mod := m.byName[name].Module
		remap := m.remaps[name]
		numImportedFuncs := uint32(mod.NumImportedFuncs())

		for i, typeIdx := range mod.Funcs {
			localIdx := numImportedFuncs + uint32(i)
			mergedIdx := nextFunc
			nextFunc++
			remap.Funcs[localIdx] = mergedIdx
			m.out.Funcs = append(m.out.Funcs, remap.Types[typeIdx])
		}
	}
}

// resolveWirings patches each consumer's Funcs remap so a wired import's
// local index now points at the provider's real, merged function index.
// Every function import not already resolved by the import pass must have a
// pending wiring by now - Merge's auto-wire pre-pass runs before the import
// pass precisely so this is never a dead end.
func (m *merger) resolveWirings() error {
	for _, consumer := range m.order {
		mod := m.byName[consumer].Module
		remap := m.remaps[consumer]

		localIdx := uint32(0)
		for _, imp := range mod.Imports {
			if imp.Desc.Kind != wasmir.KindFunc {
				continue
			}
			if _, already := remap.Funcs[localIdx]; already {
				localIdx++
				continue
			}

			w, pending := m.pending[consumer][localIdx]
			if !pending {
				return errors.UnresolvedImport(consumer, imp.Module, imp.Name)
			}

			providerIdx, providerType, err := m.resolveExportFunc(w.Provider, w.ExportFn)
			if err != nil {
				return err
			}
			if funcTypeKey(providerType) != funcTypeKey(mod.Types[imp.Desc.TypeIdx]) {
				return errors.ComposeTypeMismatch(consumer + "::" + imp.Name + " wired to " + w.Provider + "::" + w.ExportFn + " with incompatible signature")
			}

			remap.Funcs[localIdx] = providerIdx
			localIdx++
		}
	}
	return nil
}

// resolveExportFunc returns a provider's merged function index and its
// function type for a named function export.
func (m *merger) resolveExportFunc(provider, export string) (uint32, wasmir.FuncType, error) {
	mod := m.byName[provider]
	if mod == nil {
		return 0, wasmir.FuncType{}, errors.ModuleNotFound(provider)
	}
	remap := m.remaps[provider]

	for _, exp := range mod.Module.Exports {
		if exp.Kind == wasmir.KindFunc && exp.Name == export {
			mergedIdx, ok := remap.Funcs[exp.Idx]
			if !ok {
				return 0, wasmir.FuncType{}, errors.FunctionNotFound(provider, export)
			}
			ft := mod.Module.GetFuncType(exp.Idx)
			if ft == nil {
				return 0, wasmir.FuncType{}, errors.FunctionNotFound(provider, export)
			}
			return mergedIdx, *ft, nil
		}
	}
	return 0, wasmir.FuncType{}, errors.FunctionNotFound(provider, export)
}

// rewriteFunctionBodies walks every module's function bodies, remapping
// every call/global/ref.func/memory operand through the owning module's
// IndexRemap, and appends the rewritten bodies to the merged module.
func (m *merger) rewriteFunctionBodies() error {
	for _, name := range m.order {
		mod := m.byName[name].Module
		remap := m.remaps[name]

		for _, body := range mod.Code {
			instrs, err := wasmir.DecodeInstructions(body.Code)
			if err != nil {
				return errors.ParseError(name, "decode function body: "+err.Error())
			}
			for i := range instrs {
				remapInstruction(&instrs[i], remap)
			}

			locals := make([]wasmir.LocalEntry, len(body.Locals))
			copy(locals, body.Locals)

			m.out.Code = append(m.out.Code, wasmir.FuncBody{
				Locals: locals,
				Code:   wasmir.EncodeInstructions(instrs),
			})
		}
	}
	return nil
}

func remapInstruction(instr *wasmir.Instruction, remap *IndexRemap) {
	switch imm := instr.Imm.(type) {
	case wasmir.CallImm:
		imm.FuncIdx = remap.Funcs[imm.FuncIdx]
		instr.Imm = imm
	case wasmir.CallIndirectImm:
		imm.TypeIdx = remap.Types[imm.TypeIdx]
		imm.TableIdx = remap.Tables[imm.TableIdx]
		instr.Imm = imm
	case wasmir.CallRefImm:
		imm.TypeIdx = remap.Types[imm.TypeIdx]
		instr.Imm = imm
	case wasmir.GlobalImm:
		imm.GlobalIdx = remap.Globals[imm.GlobalIdx]
		instr.Imm = imm
	case wasmir.RefFuncImm:
		imm.FuncIdx = remap.Funcs[imm.FuncIdx]
		instr.Imm = imm
	case wasmir.MemoryImm:
		imm.MemIdx = remap.Memories[imm.MemIdx]
		instr.Imm = imm
	case wasmir.MemoryIdxImm:
		imm.MemIdx = remap.Memories[imm.MemIdx]
		instr.Imm = imm
	case wasmir.TableImm:
		imm.TableIdx = remap.Tables[imm.TableIdx]
		instr.Imm = imm
	}
}
