// Package metadata reads the package metadata a compiled component embeds
// in its own WebAssembly data segments: its declared imports and exports,
// each as a function signature, plus a Merkle-style interface hash per
// interface for O(1) compatibility signaling (spec §4.3, §4.2).
//
// A package finds its own metadata blob by scanning data segments for the
// CGRF magic prefix, matching how the reference implementation's CLI
// inspector locates it, and decodes it as an ordinary CGRF value tree - the
// metadata format reuses the same codec as cross-package calls.
package metadata

import (
	"bytes"

	"github.com/packrun/pack/cgrf"
	"github.com/packrun/pack/errors"
	"github.com/packrun/pack/typehash"
	"github.com/packrun/pack/value"
	"github.com/packrun/pack/wasmir"
)

// Param is one named, typed function parameter.
type Param struct {
	Name string
	Type TypeDesc
}

// FuncSig describes one exported or imported function: the interface it
// belongs to, its name, its parameters, and its result types.
type FuncSig struct {
	Interface string
	Name      string
	Params    []Param
	Results   []TypeDesc
}

// InterfaceBinding names an interface and the structural hash of its
// exposed members, as produced by typehash.HashInterface.
type InterfaceBinding struct {
	Name string
	Hash typehash.Hash
}

// PackageMetadata is everything a package declares about its own surface.
type PackageMetadata struct {
	Imports       []FuncSig
	Exports       []FuncSig
	ImportHashes  []InterfaceBinding
	ExportHashes  []InterfaceBinding
}

// Describe parses a compiled WebAssembly module, locates its embedded CGRF
// metadata blob, and decodes it. It returns a NotFound error (not a panic)
// when the module carries no metadata segment at all - packages are free to
// omit it, which only forfeits interface-hash compatibility checking.
func Describe(wasmBytes []byte) (*PackageMetadata, error) {
	mod, err := wasmir.ParseModule(wasmBytes)
	if err != nil {
		return nil, errors.ParseError("", err.Error())
	}
	blob, ok := FindInModule(mod)
	if !ok {
		return nil, errors.NotFound(errors.PhaseMetadata, "metadata segment", "__pack_types")
	}
	return Decode(blob)
}

// FindInModule scans mod's data segments for one beginning with the CGRF
// magic prefix, returning its raw bytes.
func FindInModule(mod *wasmir.Module) ([]byte, bool) {
	for _, seg := range mod.Data {
		if len(seg.Init) >= 4 && bytes.Equal(seg.Init[0:4], cgrf.Magic[:]) {
			return seg.Init, true
		}
	}
	return nil, false
}

// Encode serializes m as a CGRF value tree, the same format a package
// embeds in its own data segment.
func Encode(m *PackageMetadata) ([]byte, error) {
	return cgrf.Encode(m.toValue())
}

// Decode parses a metadata blob previously produced by Encode.
func Decode(data []byte) (*PackageMetadata, error) {
	v, err := cgrf.Decode(data)
	if err != nil {
		return nil, errors.DecodeError(err)
	}
	m, err := metadataFromValue(v)
	if err != nil {
		return nil, errors.DecodeError(err)
	}
	return m, nil
}

func (m *PackageMetadata) toValue() value.Value {
	return value.Record("package-metadata",
		value.Field{Name: "imports", Value: funcSigListValue(m.Imports)},
		value.Field{Name: "exports", Value: funcSigListValue(m.Exports)},
		value.Field{Name: "import-hashes", Value: bindingListValue(m.ImportHashes)},
		value.Field{Name: "export-hashes", Value: bindingListValue(m.ExportHashes)},
	)
}

func metadataFromValue(v value.Value) (*PackageMetadata, error) {
	if v.Kind != value.KindRecord || v.Name != "package-metadata" {
		return nil, errors.CodecTypeMismatch("package-metadata record", v.Kind.String())
	}
	fields := map[string]value.Value{}
	for _, f := range v.Fields {
		fields[f.Name] = f.Value
	}
	imports, err := funcSigListFromValue(fields["imports"])
	if err != nil {
		return nil, err
	}
	exports, err := funcSigListFromValue(fields["exports"])
	if err != nil {
		return nil, err
	}
	importHashes, err := bindingListFromValue(fields["import-hashes"])
	if err != nil {
		return nil, err
	}
	exportHashes, err := bindingListFromValue(fields["export-hashes"])
	if err != nil {
		return nil, err
	}
	return &PackageMetadata{
		Imports: imports, Exports: exports,
		ImportHashes: importHashes, ExportHashes: exportHashes,
	}, nil
}
