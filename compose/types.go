package compose

import "github.com/packrun/pack/wasmir"

// internTypes deduplicates function types across every module by the
// structural key (param-bytes, result-bytes), filling each module's Types
// remap and the merged Types slice.
func (m *merger) internTypes() {
	seen := make(map[string]uint32)

	intern := func(ft wasmir.FuncType) uint32 {
		key := funcTypeKey(ft)
		if idx, ok := seen[key]; ok {
			return idx
		}
		idx := uint32(len(m.out.Types))
		m.out.Types = append(m.out.Types, ft)
		seen[key] = idx
		return idx
	}

	for _, name := range m.order {
		mod := m.byName[name].Module
		remap := m.remaps[name]
		for i, ft := range mod.Types {
			remap.Types[uint32(i)] = intern(ft)
		}
	}
}

func funcTypeKey(ft wasmir.FuncType) string {
	buf := make([]byte, 0, len(ft.Params)+len(ft.Results)+2)
	buf = append(buf, byte(len(ft.Params)))
	for _, p := range ft.Params {
		buf = append(buf, byte(p))
	}
	buf = append(buf, byte(len(ft.Results)))
	for _, r := range ft.Results {
		buf = append(buf, byte(r))
	}
	return string(buf)
}
