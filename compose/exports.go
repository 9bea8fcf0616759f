package compose

import (
	"github.com/packrun/pack/errors"
	"github.com/packrun/pack/wasmir"
)

// rebindExports selects the caller-supplied exports from their source
// modules and rebinds each one at its merged-module index.
func (m *merger) rebindExports(exports []ExportSpec) error {
	for _, spec := range exports {
		mod, ok := m.byName[spec.Module]
		if !ok {
			return errors.ModuleNotFound(spec.Module)
		}
		remap := m.remaps[spec.Module]

		var found *wasmir.Export
		for i := range mod.Module.Exports {
			if mod.Module.Exports[i].Name == spec.Name {
				found = &mod.Module.Exports[i]
				break
			}
		}
		if found == nil {
			return errors.NotFound(errors.PhaseCompose, "export", spec.Module+"::"+spec.Name)
		}

		var mergedIdx uint32
		switch found.Kind {
		case wasmir.KindFunc:
			mergedIdx = remap.Funcs[found.Idx]
		case wasmir.KindTable:
			mergedIdx = remap.Tables[found.Idx]
		case wasmir.KindMemory:
			mergedIdx = remap.Memories[found.Idx]
		case wasmir.KindGlobal:
			mergedIdx = remap.Globals[found.Idx]
		default:
			return errors.ComposeTypeMismatch("unsupported export kind for " + spec.Module + "::" + spec.Name)
		}

		m.out.Exports = append(m.out.Exports, wasmir.Export{
			Name: spec.As,
			Kind: found.Kind,
			Idx:  mergedIdx,
		})
	}
	return nil
}
