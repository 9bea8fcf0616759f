// Package typehash computes a 256-bit structural hash for a cgrf.Type,
// used purely for compatibility signaling between packages (spec §4.2):
// two types with the same shape hash identically regardless of what they
// are named, and interfaces/functions layer name-aware hashing on top.
package typehash

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"github.com/packrun/pack/cgrf"
	"github.com/packrun/pack/errors"
	"github.com/packrun/pack/value"
)

// Hash is a 256-bit structural type hash.
type Hash [32]byte

// ToU64s splits the hash into four little-endian u64s, the representation
// used when a hash crosses the guest ABI as four i64 values.
func (h Hash) ToU64s() (a, b, c, d uint64) {
	return binary.LittleEndian.Uint64(h[0:8]),
		binary.LittleEndian.Uint64(h[8:16]),
		binary.LittleEndian.Uint64(h[16:24]),
		binary.LittleEndian.Uint64(h[24:32])
}

// FromU64s is the inverse of ToU64s.
func FromU64s(a, b, c, d uint64) Hash {
	var h Hash
	binary.LittleEndian.PutUint64(h[0:8], a)
	binary.LittleEndian.PutUint64(h[8:16], b)
	binary.LittleEndian.PutUint64(h[16:24], c)
	binary.LittleEndian.PutUint64(h[24:32], d)
	return h
}

// primitive hashes are predeclared constants, one per primitive value.Kind
// (14 in all), each the SHA-256 of a short ASCII tag naming the primitive.
// Building the table once at package initialization keeps HashType a pure
// function of its argument.
var primitiveHashes = buildPrimitiveHashes()

func buildPrimitiveHashes() map[value.Kind]Hash {
	tags := map[value.Kind]string{
		value.KindBool: "bool", value.KindU8: "u8", value.KindU16: "u16",
		value.KindU32: "u32", value.KindU64: "u64", value.KindS8: "s8",
		value.KindS16: "s16", value.KindS32: "s32", value.KindS64: "s64",
		value.KindF32: "f32", value.KindF64: "f64", value.KindChar: "char",
		value.KindString: "string", value.KindFlags: "flags",
	}
	out := make(map[value.Kind]Hash, len(tags))
	for k, tag := range tags {
		out[k] = sha256.Sum256([]byte(tag))
	}
	return out
}

// HashType computes the structural hash of a Type. Named references (record/
// variant/self/qualified) are resolved through arena; unit and dynamic have
// no place in a concrete structural hash, and HashType reports them as
// UnsupportedType.
func HashType(t cgrf.Type, arena *cgrf.Arena) (Hash, error) {
	return hashType(t, arena, "")
}

func hashType(t cgrf.Type, arena *cgrf.Arena, selfName string) (Hash, error) {
	if h, ok := primitiveHashes[t.Kind()]; ok {
		return h, nil
	}
	switch t.Kind() {
	case value.KindList:
		inner, err := hashType(*t.Elem, arena, selfName)
		if err != nil {
			return Hash{}, err
		}
		return domainHash("list", inner), nil
	case value.KindOption:
		inner, err := hashType(*t.Elem, arena, selfName)
		if err != nil {
			return Hash{}, err
		}
		return domainHash("opt", inner), nil
	case value.KindResult:
		okH, err := hashType(*t.Ok, arena, selfName)
		if err != nil {
			return Hash{}, err
		}
		errH, err := hashType(*t.Err, arena, selfName)
		if err != nil {
			return Hash{}, err
		}
		return domainHash("res", okH, errH), nil
	case value.KindTuple:
		children := make([]Hash, len(t.Elems))
		for i, e := range t.Elems {
			h, err := hashType(e, arena, selfName)
			if err != nil {
				return Hash{}, err
			}
			children[i] = h
		}
		return domainHash("tup", children...), nil
	case cgrf.KindSelfRef:
		def, ok := arena.Lookup(selfName)
		if !ok {
			return Hash{}, errUndefined(selfName)
		}
		return hashNamedDef(def, arena)
	case cgrf.KindNamedRef:
		def, ok := arena.Lookup(t.Ref)
		if !ok {
			return Hash{}, errUndefined(t.Ref)
		}
		return hashNamedDef(def, arena)
	default:
		return Hash{}, errUnsupported(t.Kind().String())
	}
}

func hashNamedDef(def *cgrf.TypeDef, arena *cgrf.Arena) (Hash, error) {
	switch def.Kind {
	case cgrf.DefAlias:
		return hashType(*def.Alias, arena, def.Name)
	case cgrf.DefRecord:
		fields := append([]cgrf.FieldDef(nil), def.Fields...)
		sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
		hashes := make([]Hash, 0, len(fields)*2)
		for _, f := range fields {
			h, err := hashType(f.Type, arena, def.Name)
			if err != nil {
				return Hash{}, err
			}
			hashes = append(hashes, sha256.Sum256([]byte(f.Name)), h)
		}
		return domainHash("rec", hashes...), nil
	case cgrf.DefVariant, cgrf.DefEnum:
		cases := append([]cgrf.CaseDef(nil), def.Cases...)
		sort.Slice(cases, func(i, j int) bool { return cases[i].Name < cases[j].Name })
		hashes := make([]Hash, 0, len(cases)*2)
		for _, c := range cases {
			var h Hash
			if c.Payload != nil {
				var err error
				h, err = hashType(*c.Payload, arena, def.Name)
				if err != nil {
					return Hash{}, err
				}
			} else {
				h = domainHash("unit")
			}
			hashes = append(hashes, sha256.Sum256([]byte(c.Name)), h)
		}
		return domainHash("var", hashes...), nil
	case cgrf.DefFlags:
		return domainHash("flags"), nil
	default:
		return Hash{}, errUnsupported(def.Name)
	}
}

func errUndefined(name string) error  { return errors.UndefinedType(name) }
func errUnsupported(name string) error { return errors.UnsupportedType(name) }

// InterfaceField names one member exposed in an interface hash.
type InterfaceField struct {
	Name string
	Type cgrf.Type
}

// InterfaceFunc names one function exposed in an interface hash.
type InterfaceFunc struct {
	Name    string
	Params  []cgrf.Type
	Results []cgrf.Type
}

// HashInterface computes H("iface" || name || sorted (field,hash)* ||
// sorted (func,hash)*), matching spec §4.2.
func HashInterface(name string, fields []InterfaceField, funcs []InterfaceFunc, arena *cgrf.Arena) (Hash, error) {
	parts := [][]byte{[]byte("iface"), []byte(name)}

	sortedFields := append([]InterfaceField(nil), fields...)
	sort.Slice(sortedFields, func(i, j int) bool { return sortedFields[i].Name < sortedFields[j].Name })
	for _, f := range sortedFields {
		h, err := hashType(f.Type, arena, "")
		if err != nil {
			return Hash{}, err
		}
		parts = append(parts, []byte(f.Name), h[:])
	}

	sortedFuncs := append([]InterfaceFunc(nil), funcs...)
	sort.Slice(sortedFuncs, func(i, j int) bool { return sortedFuncs[i].Name < sortedFuncs[j].Name })
	for _, f := range sortedFuncs {
		h, err := HashFunc(f.Params, f.Results, arena)
		if err != nil {
			return Hash{}, err
		}
		parts = append(parts, []byte(f.Name), h[:])
	}
	return sum(parts...), nil
}

// HashFunc computes H("func" || param-type-hash* || result-type-hash*),
// with parameter and result order preserved positionally (not sorted).
func HashFunc(params, results []cgrf.Type, arena *cgrf.Arena) (Hash, error) {
	parts := [][]byte{[]byte("func")}
	for _, p := range params {
		h, err := hashType(p, arena, "")
		if err != nil {
			return Hash{}, err
		}
		parts = append(parts, h[:])
	}
	for _, r := range results {
		h, err := hashType(r, arena, "")
		if err != nil {
			return Hash{}, err
		}
		parts = append(parts, h[:])
	}
	return sum(parts...), nil
}

// PrimitiveHash looks up the predeclared hash for a primitive value.Kind.
// Used by callers (such as metadata's self-contained TypeDesc) that hash a
// structure directly without going through an Arena/Type.
func PrimitiveHash(k value.Kind) (Hash, bool) {
	h, ok := primitiveHashes[k]
	return h, ok
}

// DomainHash computes H(tag || child*), the building block every compound
// hash (list/opt/res/tup/rec/var) is defined in terms of.
func DomainHash(tag string, children ...Hash) Hash {
	return domainHash(tag, children...)
}

// NameHash hashes a bare name, used when a domain hash's components
// include a field or case name.
func NameHash(name string) Hash {
	return sha256.Sum256([]byte(name))
}

func domainHash(tag string, children ...Hash) Hash {
	parts := make([][]byte, 0, len(children)+1)
	parts = append(parts, []byte(tag))
	for _, c := range children {
		parts = append(parts, c[:])
	}
	return sum(parts...)
}

func sum(parts ...[]byte) Hash {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
