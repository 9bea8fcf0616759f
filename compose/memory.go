package compose

import (
	"github.com/packrun/pack/errors"
	"github.com/packrun/pack/wasmir"
)

// memoryPass merges every module's single defined memory into one shared
// memory at merged index 0, growing initial and maximum to the per-module
// maximum. Wired calls pass pointers across module boundaries, so sharing
// one memory is mandatory, not an optimization.
func (m *merger) memoryPass() error {
	var merged *wasmir.MemoryType

	for _, name := range m.order {
		mod := m.byName[name].Module
		remap := m.remaps[name]

		if len(mod.Memories) != 1 {
			return errors.ComposeMemoryError(name + ": expected exactly one defined memory")
		}
		remap.Memories[0] = 0

		mt := mod.Memories[0]
		if merged == nil {
			cp := mt
			merged = &cp
			continue
		}
		if mt.Limits.Min > merged.Limits.Min {
			merged.Limits.Min = mt.Limits.Min
		}
		if mt.Limits.Max == nil || merged.Limits.Max == nil {
			merged.Limits.Max = nil
		} else if *mt.Limits.Max > *merged.Limits.Max {
			merged.Limits.Max = mt.Limits.Max
		}
	}

	m.out.Memories = []wasmir.MemoryType{*merged}
	return nil
}
