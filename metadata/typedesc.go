package metadata

import (
	"sort"

	"github.com/packrun/pack/errors"
	"github.com/packrun/pack/typehash"
	"github.com/packrun/pack/value"
)

// DescKind discriminates the shape of a TypeDesc.
type DescKind int

const (
	DescBool DescKind = iota
	DescU8
	DescU16
	DescU32
	DescU64
	DescS8
	DescS16
	DescS32
	DescS64
	DescF32
	DescF64
	DescChar
	DescString
	DescFlags
	DescList
	DescOption
	DescResult
	DescRecord
	DescVariant
	DescTuple
	DescValue
)

var descKindNames = map[DescKind]string{
	DescBool: "bool", DescU8: "u8", DescU16: "u16", DescU32: "u32", DescU64: "u64",
	DescS8: "s8", DescS16: "s16", DescS32: "s32", DescS64: "s64",
	DescF32: "f32", DescF64: "f64", DescChar: "char", DescString: "string", DescFlags: "flags",
	DescList: "list", DescOption: "option", DescResult: "result",
	DescRecord: "record", DescVariant: "variant", DescTuple: "tuple", DescValue: "value",
}

func (k DescKind) String() string { return descKindNames[k] }

// DescField is one named, typed record field in a TypeDesc.
type DescField struct {
	Name string
	Type TypeDesc
}

// DescCase is one variant case in a TypeDesc; Payload is nil for a
// unit (enum-like) case.
type DescCase struct {
	Name    string
	Payload *TypeDesc
}

// TypeDesc is a self-contained, wire-transportable type descriptor: unlike
// cgrf's schema Type, it never references an external arena - record and
// variant shapes carry their full field/case list inline, matching how a
// package embeds its own signatures in its metadata blob without assuming
// the caller has a matching arena loaded.
type TypeDesc struct {
	Elem    *TypeDesc
	Ok, Err *TypeDesc
	Name    string
	Fields  []DescField
	Cases   []DescCase
	Elems   []TypeDesc
	Kind    DescKind
}

func primitiveDesc(k DescKind) TypeDesc { return TypeDesc{Kind: k} }

func DBool() TypeDesc   { return primitiveDesc(DescBool) }
func DU8() TypeDesc     { return primitiveDesc(DescU8) }
func DU16() TypeDesc    { return primitiveDesc(DescU16) }
func DU32() TypeDesc    { return primitiveDesc(DescU32) }
func DU64() TypeDesc    { return primitiveDesc(DescU64) }
func DS8() TypeDesc     { return primitiveDesc(DescS8) }
func DS16() TypeDesc    { return primitiveDesc(DescS16) }
func DS32() TypeDesc    { return primitiveDesc(DescS32) }
func DS64() TypeDesc    { return primitiveDesc(DescS64) }
func DF32() TypeDesc    { return primitiveDesc(DescF32) }
func DF64() TypeDesc    { return primitiveDesc(DescF64) }
func DChar() TypeDesc   { return primitiveDesc(DescChar) }
func DString() TypeDesc { return primitiveDesc(DescString) }
func DFlags() TypeDesc  { return primitiveDesc(DescFlags) }
func DValue() TypeDesc  { return primitiveDesc(DescValue) }

func DList(elem TypeDesc) TypeDesc   { return TypeDesc{Kind: DescList, Elem: &elem} }
func DOption(elem TypeDesc) TypeDesc { return TypeDesc{Kind: DescOption, Elem: &elem} }
func DResult(ok, errT TypeDesc) TypeDesc {
	return TypeDesc{Kind: DescResult, Ok: &ok, Err: &errT}
}
func DRecord(name string, fields ...DescField) TypeDesc {
	return TypeDesc{Kind: DescRecord, Name: name, Fields: fields}
}
func DVariant(name string, cases ...DescCase) TypeDesc {
	return TypeDesc{Kind: DescVariant, Name: name, Cases: cases}
}
func DTuple(elems ...TypeDesc) TypeDesc { return TypeDesc{Kind: DescTuple, Elems: elems} }

// Hash computes td's structural type hash directly, without requiring an
// arena: record/variant field and case lists are already inline.
func (td TypeDesc) Hash() typehash.Hash {
	if h, ok := typehash.PrimitiveHash(descToValueKind(td.Kind)); ok {
		return h
	}
	switch td.Kind {
	case DescList:
		return typehash.DomainHash("list", td.Elem.Hash())
	case DescOption:
		return typehash.DomainHash("opt", td.Elem.Hash())
	case DescResult:
		return typehash.DomainHash("res", td.Ok.Hash(), td.Err.Hash())
	case DescTuple:
		children := make([]typehash.Hash, len(td.Elems))
		for i, e := range td.Elems {
			children[i] = e.Hash()
		}
		return typehash.DomainHash("tup", children...)
	case DescRecord:
		fields := append([]DescField(nil), td.Fields...)
		sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
		parts := make([]typehash.Hash, 0, len(fields)*2)
		for _, f := range fields {
			parts = append(parts, typehash.NameHash(f.Name), f.Type.Hash())
		}
		return typehash.DomainHash("rec", parts...)
	case DescVariant:
		cases := append([]DescCase(nil), td.Cases...)
		sort.Slice(cases, func(i, j int) bool { return cases[i].Name < cases[j].Name })
		parts := make([]typehash.Hash, 0, len(cases)*2)
		for _, c := range cases {
			h := typehash.DomainHash("unit")
			if c.Payload != nil {
				h = c.Payload.Hash()
			}
			parts = append(parts, typehash.NameHash(c.Name), h)
		}
		return typehash.DomainHash("var", parts...)
	case DescValue:
		return typehash.DomainHash("value")
	default:
		return typehash.DomainHash("unknown")
	}
}

func descToValueKind(k DescKind) value.Kind {
	switch k {
	case DescBool:
		return value.KindBool
	case DescU8:
		return value.KindU8
	case DescU16:
		return value.KindU16
	case DescU32:
		return value.KindU32
	case DescU64:
		return value.KindU64
	case DescS8:
		return value.KindS8
	case DescS16:
		return value.KindS16
	case DescS32:
		return value.KindS32
	case DescS64:
		return value.KindS64
	case DescF32:
		return value.KindF32
	case DescF64:
		return value.KindF64
	case DescChar:
		return value.KindChar
	case DescString:
		return value.KindString
	case DescFlags:
		return value.KindFlags
	default:
		return 0
	}
}

// toValue encodes td as a "type-desc" variant value, mirroring how a
// package embeds its own signatures.
func (td TypeDesc) toValue() value.Value {
	switch td.Kind {
	case DescList:
		return value.Variant("type-desc", "list", uint32(td.Kind), td.Elem.toValue())
	case DescOption:
		return value.Variant("type-desc", "option", uint32(td.Kind), td.Elem.toValue())
	case DescResult:
		payload := value.Record("result-desc",
			value.Field{Name: "ok", Value: td.Ok.toValue()},
			value.Field{Name: "err", Value: td.Err.toValue()},
		)
		return value.Variant("type-desc", "result", uint32(td.Kind), payload)
	case DescRecord:
		fields := make([]value.Value, len(td.Fields))
		for i, f := range td.Fields {
			fields[i] = value.Record("field-desc",
				value.Field{Name: "name", Value: value.Str(f.Name)},
				value.Field{Name: "type", Value: f.Type.toValue()},
			)
		}
		payload := value.Record("record-desc",
			value.Field{Name: "name", Value: value.Str(td.Name)},
			value.Field{Name: "fields", Value: value.List(value.TRecord("field-desc"), fields)},
		)
		return value.Variant("type-desc", "record", uint32(td.Kind), payload)
	case DescVariant:
		cases := make([]value.Value, len(td.Cases))
		for i, c := range td.Cases {
			var payloadVal value.Value
			if c.Payload != nil {
				payloadVal = value.Some(value.TVariant("type-desc"), c.Payload.toValue())
			} else {
				payloadVal = value.None(value.TVariant("type-desc"))
			}
			cases[i] = value.Record("case-desc",
				value.Field{Name: "name", Value: value.Str(c.Name)},
				value.Field{Name: "payload", Value: payloadVal},
			)
		}
		payload := value.Record("variant-desc",
			value.Field{Name: "name", Value: value.Str(td.Name)},
			value.Field{Name: "cases", Value: value.List(value.TRecord("case-desc"), cases)},
		)
		return value.Variant("type-desc", "variant", uint32(td.Kind), payload)
	case DescTuple:
		elems := make([]value.Value, len(td.Elems))
		for i, e := range td.Elems {
			elems[i] = e.toValue()
		}
		return value.Variant("type-desc", "tuple", uint32(td.Kind), value.List(value.TVariant("type-desc"), elems))
	default:
		return value.Variant("type-desc", td.Kind.String(), uint32(td.Kind))
	}
}

func typeDescFromValue(v value.Value) (TypeDesc, error) {
	if v.Kind != value.KindVariant || v.Name != "type-desc" {
		return TypeDesc{}, errors.CodecTypeMismatch("type-desc variant", v.Kind.String())
	}
	kind := DescKind(v.Tag)
	switch kind {
	case DescList, DescOption:
		if len(v.Payload) != 1 {
			return TypeDesc{}, errors.DecodeError(errors.VariantPayloadMismatch(-1, v.Tag))
		}
		elem, err := typeDescFromValue(v.Payload[0])
		if err != nil {
			return TypeDesc{}, err
		}
		return TypeDesc{Kind: kind, Elem: &elem}, nil
	case DescResult:
		rec := v.Payload[0]
		f := fieldMap(rec)
		ok, err := typeDescFromValue(f["ok"])
		if err != nil {
			return TypeDesc{}, err
		}
		errT, err := typeDescFromValue(f["err"])
		if err != nil {
			return TypeDesc{}, err
		}
		return TypeDesc{Kind: kind, Ok: &ok, Err: &errT}, nil
	case DescRecord:
		rec := v.Payload[0]
		f := fieldMap(rec)
		name := f["name"].Str
		items := f["fields"].Items
		fields := make([]DescField, len(items))
		for i, item := range items {
			ff := fieldMap(item)
			t, err := typeDescFromValue(ff["type"])
			if err != nil {
				return TypeDesc{}, err
			}
			fields[i] = DescField{Name: ff["name"].Str, Type: t}
		}
		return TypeDesc{Kind: kind, Name: name, Fields: fields}, nil
	case DescVariant:
		rec := v.Payload[0]
		f := fieldMap(rec)
		name := f["name"].Str
		items := f["cases"].Items
		cases := make([]DescCase, len(items))
		for i, item := range items {
			cf := fieldMap(item)
			var payload *TypeDesc
			if cf["payload"].Present {
				t, err := typeDescFromValue(*cf["payload"].Inner)
				if err != nil {
					return TypeDesc{}, err
				}
				payload = &t
			}
			cases[i] = DescCase{Name: cf["name"].Str, Payload: payload}
		}
		return TypeDesc{Kind: kind, Name: name, Cases: cases}, nil
	case DescTuple:
		items := v.Payload[0].Items
		elems := make([]TypeDesc, len(items))
		for i, item := range items {
			t, err := typeDescFromValue(item)
			if err != nil {
				return TypeDesc{}, err
			}
			elems[i] = t
		}
		return TypeDesc{Kind: kind, Elems: elems}, nil
	default:
		return TypeDesc{Kind: kind}, nil
	}
}

func fieldMap(v value.Value) map[string]value.Value {
	m := make(map[string]value.Value, len(v.Fields))
	for _, f := range v.Fields {
		m[f.Name] = f.Value
	}
	return m
}
