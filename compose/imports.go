package compose

import (
	"github.com/packrun/pack/errors"
	"github.com/packrun/pack/wasmir"
)

// importPass emits every module's imports before any defined function
// (WebAssembly's ordering rule), resolving function imports that a wiring
// covers to an internal placeholder instead of a merged import, and
// counting imported functions/tables/globals so the defined-entity pass
// knows where each module's index space continues from.
func (m *merger) importPass(wirings []Wiring) error {
	wiringFor := make(map[string]map[[2]string]Wiring)
	for _, w := range wirings {
		if wiringFor[w.Consumer] == nil {
			wiringFor[w.Consumer] = make(map[[2]string]Wiring)
		}
		wiringFor[w.Consumer][[2]string{w.ImportModule, w.ImportFn}] = w
	}

	var nextFunc, nextTable, nextGlobal uint32

	for _, name := range m.order {
		mod := m.byName[name].Module
		remap := m.remaps[name]

		var localFuncIdx uint32
		for _, imp := range mod.Imports {
			switch imp.Desc.Kind {
			case wasmir.KindFunc:
				if w, ok := wiringFor[name][[2]string{imp.Module, imp.Name}]; ok {
					if m.pending[name] == nil {
						m.pending[name] = make(map[uint32]Wiring)
					}
					m.pending[name][localFuncIdx] = w
				} else {
					mergedIdx := nextFunc
					nextFunc++
					remap.Funcs[localFuncIdx] = mergedIdx
					m.out.Imports = append(m.out.Imports, wasmir.Import{
						Module: imp.Module,
						Name:   imp.Name,
						Desc:   wasmir.ImportDesc{Kind: wasmir.KindFunc, TypeIdx: remap.Types[imp.Desc.TypeIdx]},
					})
				}
				localFuncIdx++

			case wasmir.KindTable:
				mergedIdx := nextTable
				nextTable++
				localIdx := uint32(len(remap.Tables))
				remap.Tables[localIdx] = mergedIdx
				m.out.Imports = append(m.out.Imports, imp)

			case wasmir.KindGlobal:
				mergedIdx := nextGlobal
				nextGlobal++
				localIdx := uint32(len(remap.Globals))
				remap.Globals[localIdx] = mergedIdx
				m.out.Imports = append(m.out.Imports, imp)

			case wasmir.KindMemory:
				return errors.ComposeMemoryError("imported memory not supported by the static composer: " + name)

			default:
				m.out.Imports = append(m.out.Imports, imp)
			}
		}
	}

	return nil
}
