// Package value implements the polymorphic in-memory value tree exchanged
// between packages: scalars, compounds carrying an inline type witness
// (list, option, result, record, variant), and the witness-free tuple.
//
// Kind constants reuse the CGRF node kind byte assignments (spec §6) so the
// codec can use a Value's Kind directly as its wire tag.
package value

import "fmt"

// Kind discriminates the shape of a Value or ValueType. Values equal the
// CGRF node kind byte for the same shape.
type Kind byte

const (
	KindBool    Kind = 0x01
	KindS32     Kind = 0x02
	KindS64     Kind = 0x03
	KindF32     Kind = 0x04
	KindF64     Kind = 0x05
	KindString  Kind = 0x06
	KindList    Kind = 0x07
	KindVariant Kind = 0x08
	KindRecord  Kind = 0x09
	KindOption  Kind = 0x0A
	KindTuple   Kind = 0x0B
	KindU8      Kind = 0x0C
	KindU16     Kind = 0x0D
	KindU32     Kind = 0x0E
	KindU64     Kind = 0x0F
	KindS8      Kind = 0x10
	KindS16     Kind = 0x11
	KindChar    Kind = 0x12
	KindFlags   Kind = 0x13
	KindResult  Kind = 0x14
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindS32:
		return "s32"
	case KindS64:
		return "s64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindVariant:
		return "variant"
	case KindRecord:
		return "record"
	case KindOption:
		return "option"
	case KindTuple:
		return "tuple"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindS8:
		return "s8"
	case KindS16:
		return "s16"
	case KindChar:
		return "char"
	case KindFlags:
		return "flags"
	case KindResult:
		return "result"
	default:
		return fmt.Sprintf("kind(0x%02x)", byte(k))
	}
}

// IsPrimitive reports whether k names a scalar kind.
func (k Kind) IsPrimitive() bool {
	switch k {
	case KindBool, KindU8, KindU16, KindU32, KindU64, KindS8, KindS16, KindS32, KindS64,
		KindF32, KindF64, KindChar, KindString, KindFlags:
		return true
	}
	return false
}

// ValueType is the design-time, payload-free view of a Value: it mirrors
// Value's shape but carries only type information.
type ValueType struct {
	// Elem is the element type for List and the inner type for Option.
	Elem *ValueType
	// Ok and Err hold the two arms of a Result type.
	Ok, Err *ValueType
	// Name is the record/variant type name for Record and Variant.
	Name string
	// Elems holds the member types of a Tuple, positional.
	Elems []ValueType
	Kind  Kind
}

func TBool() ValueType   { return ValueType{Kind: KindBool} }
func TU8() ValueType     { return ValueType{Kind: KindU8} }
func TU16() ValueType    { return ValueType{Kind: KindU16} }
func TU32() ValueType    { return ValueType{Kind: KindU32} }
func TU64() ValueType    { return ValueType{Kind: KindU64} }
func TS8() ValueType     { return ValueType{Kind: KindS8} }
func TS16() ValueType    { return ValueType{Kind: KindS16} }
func TS32() ValueType    { return ValueType{Kind: KindS32} }
func TS64() ValueType    { return ValueType{Kind: KindS64} }
func TF32() ValueType    { return ValueType{Kind: KindF32} }
func TF64() ValueType    { return ValueType{Kind: KindF64} }
func TChar() ValueType   { return ValueType{Kind: KindChar} }
func TString() ValueType { return ValueType{Kind: KindString} }
func TFlags() ValueType  { return ValueType{Kind: KindFlags} }

func TListOf(elem ValueType) ValueType {
	return ValueType{Kind: KindList, Elem: &elem}
}

func TOptionOf(inner ValueType) ValueType {
	return ValueType{Kind: KindOption, Elem: &inner}
}

func TResultOf(ok, err ValueType) ValueType {
	return ValueType{Kind: KindResult, Ok: &ok, Err: &err}
}

func TRecord(name string) ValueType {
	return ValueType{Kind: KindRecord, Name: name}
}

func TVariant(name string) ValueType {
	return ValueType{Kind: KindVariant, Name: name}
}

func TTupleOf(elems ...ValueType) ValueType {
	return ValueType{Kind: KindTuple, Elems: elems}
}

// Equal reports structural equality of two ValueTypes, ignoring nothing:
// record/variant identity is by Name (structural typing lives in the
// typehash package, not here).
func (t ValueType) Equal(o ValueType) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindList, KindOption:
		return t.Elem.Equal(*o.Elem)
	case KindResult:
		return t.Ok.Equal(*o.Ok) && t.Err.Equal(*o.Err)
	case KindRecord, KindVariant:
		return t.Name == o.Name
	case KindTuple:
		if len(t.Elems) != len(o.Elems) {
			return false
		}
		for i := range t.Elems {
			if !t.Elems[i].Equal(o.Elems[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Field is an ordered (name, value) pair carried by a Record.
type Field struct {
	Name  string
	Value Value
}

// Value is a polymorphic runtime value. Which fields are meaningful is
// determined by Kind; see the constructors below for the supported shapes.
type Value struct {
	Elem  *ValueType // List element type / Option inner type
	Ok    *ValueType // Result ok-arm type
	Err   *ValueType // Result err-arm type
	Inner *Value     // Option payload (nil when absent)
	Res   *Value     // Result payload

	Name     string // Record/Variant type name
	CaseName string // Variant case name

	Fields  []Field // Record fields, ordered
	Items   []Value // List/Tuple items, ordered
	Payload []Value // Variant case payload, ordered

	Str string

	U64 uint64
	S64 int64
	F64 float64

	Tag     uint32 // Variant case tag / Result arm selector (0=ok,1=err)
	Present bool   // Option presence / Result arm validity
	Bool    bool

	Kind Kind
}

func Bool(v bool) Value    { return Value{Kind: KindBool, Bool: v} }
func U8(v uint8) Value     { return Value{Kind: KindU8, U64: uint64(v)} }
func U16(v uint16) Value   { return Value{Kind: KindU16, U64: uint64(v)} }
func U32(v uint32) Value   { return Value{Kind: KindU32, U64: uint64(v)} }
func U64(v uint64) Value   { return Value{Kind: KindU64, U64: v} }
func S8(v int8) Value      { return Value{Kind: KindS8, S64: int64(v)} }
func S16(v int16) Value    { return Value{Kind: KindS16, S64: int64(v)} }
func S32(v int32) Value    { return Value{Kind: KindS32, S64: int64(v)} }
func S64(v int64) Value    { return Value{Kind: KindS64, S64: v} }
func F32(v float32) Value  { return Value{Kind: KindF32, F64: float64(v)} }
func F64(v float64) Value  { return Value{Kind: KindF64, F64: v} }
func Char(v rune) Value    { return Value{Kind: KindChar, S64: int64(v)} }
func Str(v string) Value   { return Value{Kind: KindString, Str: v} }
func Flags(v uint64) Value { return Value{Kind: KindFlags, U64: v} }

// List builds a list value with an explicit element type, matching the
// inline type witness every list node carries on the wire.
func List(elem ValueType, items []Value) Value {
	return Value{Kind: KindList, Elem: &elem, Items: items}
}

// None builds an absent option of the given inner type.
func None(inner ValueType) Value {
	return Value{Kind: KindOption, Elem: &inner, Present: false}
}

// Some builds a present option wrapping v.
func Some(inner ValueType, v Value) Value {
	return Value{Kind: KindOption, Elem: &inner, Present: true, Inner: &v}
}

// ResultOk builds the ok arm of a result.
func ResultOk(okType, errType ValueType, v Value) Value {
	return Value{Kind: KindResult, Ok: &okType, Err: &errType, Tag: 0, Present: true, Res: &v}
}

// ResultErr builds the err arm of a result.
func ResultErr(okType, errType ValueType, v Value) Value {
	return Value{Kind: KindResult, Ok: &okType, Err: &errType, Tag: 1, Present: true, Res: &v}
}

// ResultOkUnit/ResultErrUnit build a result arm carrying no payload (a
// `unit` arm per spec §3's Type algebra).
func ResultOkUnit(okType, errType ValueType) Value {
	return Value{Kind: KindResult, Ok: &okType, Err: &errType, Tag: 0, Present: false}
}

func ResultErrUnit(okType, errType ValueType) Value {
	return Value{Kind: KindResult, Ok: &okType, Err: &errType, Tag: 1, Present: false}
}

// Record builds a record value with ordered (name, value) fields.
func Record(typeName string, fields ...Field) Value {
	return Value{Kind: KindRecord, Name: typeName, Fields: fields}
}

// Variant builds a variant value: a named case with a numeric tag and an
// ordered payload (empty for an enum-like case).
func Variant(typeName, caseName string, tag uint32, payload ...Value) Value {
	return Value{Kind: KindVariant, Name: typeName, CaseName: caseName, Tag: tag, Payload: payload}
}

// Tuple builds a witness-free ordered tuple; element types are inferred
// from the items, never carried on the wire.
func Tuple(items ...Value) Value {
	return Value{Kind: KindTuple, Items: items}
}

// InferType derives this value's structural ValueType, recursing into
// tuple members (the only compound without an inline witness).
func (v Value) InferType() ValueType {
	switch v.Kind {
	case KindList:
		return ValueType{Kind: KindList, Elem: v.Elem}
	case KindOption:
		return ValueType{Kind: KindOption, Elem: v.Elem}
	case KindResult:
		return ValueType{Kind: KindResult, Ok: v.Ok, Err: v.Err}
	case KindRecord:
		return ValueType{Kind: KindRecord, Name: v.Name}
	case KindVariant:
		return ValueType{Kind: KindVariant, Name: v.Name}
	case KindTuple:
		elems := make([]ValueType, len(v.Items))
		for i, it := range v.Items {
			elems[i] = it.InferType()
		}
		return ValueType{Kind: KindTuple, Elems: elems}
	default:
		return ValueType{Kind: v.Kind}
	}
}

// Equal reports deep structural equality, used by round-trip tests.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindU8, KindU16, KindU32, KindU64, KindFlags:
		return v.U64 == o.U64
	case KindS8, KindS16, KindS32, KindS64, KindChar:
		return v.S64 == o.S64
	case KindF32, KindF64:
		return v.F64 == o.F64
	case KindString:
		return v.Str == o.Str
	case KindList:
		if !v.Elem.Equal(*o.Elem) || len(v.Items) != len(o.Items) {
			return false
		}
		for i := range v.Items {
			if !v.Items[i].Equal(o.Items[i]) {
				return false
			}
		}
		return true
	case KindOption:
		if !v.Elem.Equal(*o.Elem) || v.Present != o.Present {
			return false
		}
		if !v.Present {
			return true
		}
		return v.Inner.Equal(*o.Inner)
	case KindResult:
		if !v.Ok.Equal(*o.Ok) || !v.Err.Equal(*o.Err) || v.Tag != o.Tag || v.Present != o.Present {
			return false
		}
		if !v.Present {
			return true
		}
		return v.Res.Equal(*o.Res)
	case KindRecord:
		if v.Name != o.Name || len(v.Fields) != len(o.Fields) {
			return false
		}
		for i := range v.Fields {
			if v.Fields[i].Name != o.Fields[i].Name || !v.Fields[i].Value.Equal(o.Fields[i].Value) {
				return false
			}
		}
		return true
	case KindVariant:
		if v.Name != o.Name || v.CaseName != o.CaseName || v.Tag != o.Tag || len(v.Payload) != len(o.Payload) {
			return false
		}
		for i := range v.Payload {
			if !v.Payload[i].Equal(o.Payload[i]) {
				return false
			}
		}
		return true
	case KindTuple:
		if len(v.Items) != len(o.Items) {
			return false
		}
		for i := range v.Items {
			if !v.Items[i].Equal(o.Items[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
