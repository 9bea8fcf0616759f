package compose

import (
	"github.com/packrun/pack/errors"
	"github.com/packrun/pack/wasmir"
)

// discoverAutoWirings scans every consumer's function imports not already
// covered by an explicit wiring and matches each against any other module's
// export of the same name, returning one synthetic Wiring per match. A name
// with no match at all is left for the caller to keep as a real
// pass-through import; a name that matches an export with an incompatible
// signature is fatal.
func discoverAutoWirings(modules []*ParsedModule, explicit []Wiring) ([]Wiring, error) {
	wired := make(map[string]map[[2]string]bool, len(modules))
	for _, w := range explicit {
		if wired[w.Consumer] == nil {
			wired[w.Consumer] = make(map[[2]string]bool)
		}
		wired[w.Consumer][[2]string{w.ImportModule, w.ImportFn}] = true
	}

	var extra []Wiring
	for _, consumer := range modules {
		for _, imp := range consumer.Module.Imports {
			if imp.Desc.Kind != wasmir.KindFunc {
				continue
			}
			if wired[consumer.Name][[2]string{imp.Module, imp.Name}] {
				continue
			}

			importType := consumer.Module.Types[imp.Desc.TypeIdx]
			provider, exportIdx, ok := findExportFunc(modules, consumer.Name, imp.Name)
			if !ok {
				continue
			}

			providerType := provider.Module.GetFuncType(exportIdx)
			if providerType == nil || funcTypeKey(*providerType) != funcTypeKey(importType) {
				return nil, errors.ComposeTypeMismatch(
					consumer.Name + "::" + imp.Name + " auto-wired to " + provider.Name + "::" + imp.Name + " with incompatible signature")
			}

			extra = append(extra, Wiring{
				Consumer:     consumer.Name,
				ImportModule: imp.Module,
				ImportFn:     imp.Name,
				Provider:     provider.Name,
				ExportFn:     imp.Name,
			})
		}
	}
	return extra, nil
}

// findExportFunc returns the first module, in input order and other than
// excludeName, exporting a function named fnName; it does not check that
// the match is unique.
func findExportFunc(modules []*ParsedModule, excludeName, fnName string) (*ParsedModule, uint32, bool) {
	for _, mod := range modules {
		if mod.Name == excludeName {
			continue
		}
		for _, exp := range mod.Module.Exports {
			if exp.Kind == wasmir.KindFunc && exp.Name == fnName {
				return mod, exp.Idx, true
			}
		}
	}
	return nil, 0, false
}
