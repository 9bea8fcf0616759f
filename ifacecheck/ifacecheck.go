// Package ifacecheck validates that a running package instance implements
// an expected set of exports before a composition wires anything to it,
// grounded on the original implementation's
// validate_instance_implements_interface (spec §7's Interface-check error
// row: MissingFunction, SignatureMismatch, MissingMemory).
package ifacecheck

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/packrun/pack/abi"
	"github.com/packrun/pack/errors"
)

// Signature is the WASM-level export shape expected for one function name.
type Signature struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// StandardExport describes the shape every host-callable business function
// uses under the guest-allocates ABI: (i32,i32,i32,i32) -> i32.
func StandardExport(name string) Signature {
	return Signature{
		Name:    name,
		Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
	}
}

// RequiredExports returns the two function exports every package must implement
// under the new ABI: __pack_alloc(i32)->i32 and __pack_free(i32,i32)->().
// "memory" is checked separately since it isn't a function export.
func RequiredExports() []Signature {
	return []Signature{
		{Name: abi.ExportAlloc, Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}},
		{Name: abi.ExportFree, Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, Results: nil},
	}
}

// Check verifies that inst exports a "memory" and every signature in
// expected, matching name and WASM-level param/result types exactly.
func Check(inst *abi.Instance, expected []Signature) error {
	name := inst.Module().Name()
	mod := inst.Raw()

	if mod.Memory() == nil {
		return errors.MissingMemory(name)
	}

	defs := mod.ExportedFunctionDefinitions()
	for _, sig := range expected {
		def, ok := defs[sig.Name]
		if !ok {
			return errors.MissingFunction(name, sig.Name)
		}
		if !valueTypesEqual(def.ParamTypes(), sig.Params) || !valueTypesEqual(def.ResultTypes(), sig.Results) {
			return errors.SignatureMismatch(name, sig.Name, describe(sig.Params, sig.Results), describe(def.ParamTypes(), def.ResultTypes()))
		}
	}
	return nil
}

func valueTypesEqual(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func describe(params, results []api.ValueType) string {
	return fmt.Sprintf("(%s) -> (%s)", valueTypeNames(params), valueTypeNames(results))
}

func valueTypeNames(ts []api.ValueType) string {
	s := ""
	for i, t := range ts {
		if i > 0 {
			s += ","
		}
		s += api.ValueTypeName(t)
	}
	return s
}
