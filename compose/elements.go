package compose

import "go.uber.org/zap"

// remapElements rewrites each module's element segments' table index and
// function-reference items through the owning module's IndexRemap.
// Expression-based items (flags 4-7) aren't rewritten since a ref.func
// buried in an arbitrary constant expression isn't remapped by this pass;
// such segments are skipped, a known limitation shared with the parser.
func (m *merger) remapElements() {
	for _, name := range m.order {
		mod := m.byName[name].Module
		remap := m.remaps[name]

		for _, el := range mod.Elements {
			if len(el.Exprs) > 0 {
				m.logger.Warn("compose: skipping expression-based element segment",
					zap.String("module", name))
				continue
			}

			el.TableIdx = remap.Tables[el.TableIdx]
			funcIdxs := make([]uint32, len(el.FuncIdxs))
			for i, idx := range el.FuncIdxs {
				funcIdxs[i] = remap.Funcs[idx]
			}
			el.FuncIdxs = funcIdxs

			m.out.Elements = append(m.out.Elements, el)
		}
	}
}
