package cgrf

import (
	"github.com/packrun/pack/errors"
	"github.com/packrun/pack/value"
)

// TypeDefKind discriminates the shape of a named definition in an Arena.
type TypeDefKind int

const (
	DefAlias TypeDefKind = iota
	DefRecord
	DefVariant
	DefEnum
	DefFlags
)

// FieldDef is one named, typed record field.
type FieldDef struct {
	Name string
	Type Type
}

// CaseDef is one variant case. Payload is nil for an enum-like (unit) case.
type CaseDef struct {
	Name    string
	Payload *Type
}

// TypeDef is one named entry in an Arena: an alias, record, variant, enum
// (a variant all of whose cases carry no payload), or flags set.
type TypeDef struct {
	Name  string
	Kind  TypeDefKind
	Alias *Type      // DefAlias
	Fields []FieldDef // DefRecord
	Cases []CaseDef   // DefVariant, DefEnum
}

// Arena is a flat, name-unique namespace of type definitions (spec §3's
// "Arena of type definitions"). Cross-arena references use qualified paths
// of the form "arena/Name", resolved by the caller before validation.
type Arena struct {
	defs  []TypeDef
	index map[string]int
}

// NewArena builds an Arena from a list of definitions, rejecting duplicate
// names.
func NewArena(defs ...TypeDef) (*Arena, error) {
	a := &Arena{defs: defs, index: make(map[string]int, len(defs))}
	for i, d := range defs {
		if _, dup := a.index[d.Name]; dup {
			return nil, errors.UnsupportedType(d.Name)
		}
		a.index[d.Name] = i
	}
	return a, nil
}

// Lookup finds a definition by name.
func (a *Arena) Lookup(name string) (*TypeDef, bool) {
	i, ok := a.index[name]
	if !ok {
		return nil, false
	}
	return &a.defs[i], true
}

// tkind extends value.Kind with design-time-only shapes that never appear
// on the wire: unit, explicit self-reference, qualified named reference,
// and the dynamic "value" escape hatch (spec §3's Type algebra).
const (
	tkUnit    value.Kind = 0x70
	tkSelf    value.Kind = 0x71
	tkRef     value.Kind = 0x72
	tkDynamic value.Kind = 0x73
)

// Type is the design-time type algebra used by the validator: every
// ValueType shape, plus Unit, a Self placeholder, a qualified Ref to a
// named Arena definition, and Dynamic (matches any Value).
type Type struct {
	Elem     *Type
	Ok, Err  *Type
	Elems    []Type
	Ref      string // named-type reference (DefRecord/DefVariant by name, or TKRef)
	kind     value.Kind
}

func TUnit() Type    { return Type{kind: tkUnit} }
func TSelf() Type    { return Type{kind: tkSelf} }
func TDynamic() Type { return Type{kind: tkDynamic} }
func TNamed(name string) Type { return Type{kind: tkRef, Ref: name} }

// Exported aliases of the design-time-only kinds, for packages (such as
// typehash) that need to branch on a Type's shape without depending on
// cgrf's internal byte assignments.
const (
	KindUnit     = tkUnit
	KindSelfRef  = tkSelf
	KindNamedRef = tkRef
	KindDynamic  = tkDynamic
)

// Kind reports t's discriminant: a value.Kind for every concrete shape, or
// one of the exported design-time-only constants above.
func (t Type) Kind() value.Kind { return t.kind }

func TFromValueType(vt value.ValueType) Type {
	switch vt.Kind {
	case value.KindList:
		e := TFromValueType(*vt.Elem)
		return Type{kind: value.KindList, Elem: &e}
	case value.KindOption:
		e := TFromValueType(*vt.Elem)
		return Type{kind: value.KindOption, Elem: &e}
	case value.KindResult:
		ok := TFromValueType(*vt.Ok)
		errT := TFromValueType(*vt.Err)
		return Type{kind: value.KindResult, Ok: &ok, Err: &errT}
	case value.KindRecord, value.KindVariant:
		return Type{kind: tkRef, Ref: vt.Name}
	case value.KindTuple:
		elems := make([]Type, len(vt.Elems))
		for i, e := range vt.Elems {
			elems[i] = TFromValueType(e)
		}
		return Type{kind: value.KindTuple, Elems: elems}
	default:
		return Type{kind: vt.Kind}
	}
}

func listT(elem Type) Type          { return Type{kind: value.KindList, Elem: &elem} }
func optionT(elem Type) Type        { return Type{kind: value.KindOption, Elem: &elem} }
func resultT(ok, errT Type) Type    { return Type{kind: value.KindResult, Ok: &ok, Err: &errT} }
func tupleT(elems ...Type) Type     { return Type{kind: value.KindTuple, Elems: elems} }

// ListOf, OptionOf, ResultOf, TupleOf are the exported Type constructors
// mirroring value's ValueType builders.
func ListOf(elem Type) Type       { return listT(elem) }
func OptionOf(elem Type) Type     { return optionT(elem) }
func ResultOf(ok, errT Type) Type { return resultT(ok, errT) }
func TupleOf(elems ...Type) Type  { return tupleT(elems...) }

func primitiveT(k value.Kind) Type { return Type{kind: k} }

func Bool() Type   { return primitiveT(value.KindBool) }
func U8T() Type    { return primitiveT(value.KindU8) }
func U16T() Type   { return primitiveT(value.KindU16) }
func U32T() Type   { return primitiveT(value.KindU32) }
func U64T() Type   { return primitiveT(value.KindU64) }
func S8T() Type    { return primitiveT(value.KindS8) }
func S16T() Type   { return primitiveT(value.KindS16) }
func S32T() Type   { return primitiveT(value.KindS32) }
func S64T() Type   { return primitiveT(value.KindS64) }
func F32T() Type   { return primitiveT(value.KindF32) }
func F64T() Type   { return primitiveT(value.KindF64) }
func CharT() Type  { return primitiveT(value.KindChar) }
func StringT() Type { return primitiveT(value.KindString) }
func FlagsT() Type { return primitiveT(value.KindFlags) }

// ValidateGraph walks a parsed graph buffer against an expected Type,
// resolving named references through arena, and tracking per-node assigned
// types so that a shared node visited under two different expected types is
// rejected (spec §4.1's sharing-across-incompatible-positions rule).
func ValidateGraph(nodes []RawNode, root uint32, arena *Arena, t Type) error {
	v := &validator{nodes: nodes, arena: arena, assigned: map[uint32]string{}}
	return v.validate(int(root), t, "")
}

type validator struct {
	nodes    []RawNode
	arena    *Arena
	assigned map[uint32]string
}

func (v *validator) validate(idx int, t Type, selfName string) error {
	if idx < 0 || idx >= len(v.nodes) {
		return errors.InvalidEncoding("node index out of range")
	}
	// Resolve a bare self-reference to its enclosing named type before the
	// assigned-type check: otherwise this node would be registered once for
	// "self" and again, one recursive call later, for the resolved name -
	// two distinct map entries for what is actually a single visit.
	if t.kind == tkSelf {
		if selfName == "" {
			return errors.SelfRefOutsideType()
		}
		t = TNamed(selfName)
	}
	// Follow aliases to their target first, so a node reached through an
	// alias is registered once, under the target's key.
	for hops := 0; t.kind == tkRef; hops++ {
		def, ok := v.arena.Lookup(t.Ref)
		if !ok || def.Kind != DefAlias {
			break
		}
		if hops > len(v.arena.defs) {
			return errors.UnsupportedType(def.Name)
		}
		t, selfName = *def.Alias, def.Name
	}

	key := typeKey(t, selfName)
	if prev, ok := v.assigned[uint32(idx)]; ok {
		if prev != key {
			return errors.SchemaTypeMismatch(idx, prev, key)
		}
		return nil
	}
	v.assigned[uint32(idx)] = key

	if t.kind == tkDynamic {
		return nil
	}
	if t.kind == tkRef {
		def, ok := v.arena.Lookup(t.Ref)
		if !ok {
			return errors.UndefinedType(t.Ref)
		}
		return v.validateNamed(idx, def)
	}
	if t.kind == tkUnit {
		return errors.InvalidEncoding("unit type cannot have a concrete node")
	}

	n := v.nodes[idx]
	if value.Kind(n.Kind) != t.kind {
		return errors.SchemaTypeMismatch(idx, t.kind.String(), value.Kind(n.Kind).String())
	}

	switch t.kind {
	case value.KindList:
		info, err := InspectNode(n)
		if err != nil {
			return err
		}
		for _, c := range info.Children {
			if err := v.validate(int(c), *t.Elem, selfName); err != nil {
				return err
			}
		}
		return nil
	case value.KindOption:
		info, err := InspectNode(n)
		if err != nil {
			return err
		}
		if !info.Present {
			return nil
		}
		return v.validate(int(info.Child), *t.Elem, selfName)
	case value.KindResult:
		info, err := InspectNode(n)
		if err != nil {
			return err
		}
		arm := t.Ok
		if info.Tag == 1 {
			arm = t.Err
		} else if info.Tag != 0 {
			return errors.InvalidEncoding("result tag must be 0 or 1")
		}
		if arm.kind == tkUnit {
			if info.Present {
				return errors.VariantPayloadMismatch(idx, info.Tag)
			}
			return nil
		}
		if !info.Present {
			return errors.VariantPayloadMismatch(idx, info.Tag)
		}
		return v.validate(int(info.Child), *arm, selfName)
	case value.KindTuple:
		info, err := InspectNode(n)
		if err != nil {
			return err
		}
		if len(info.Children) != len(t.Elems) {
			return errors.SchemaTypeMismatch(idx, "tuple arity mismatch", "")
		}
		for i, c := range info.Children {
			if err := v.validate(int(c), t.Elems[i], selfName); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil // primitive: kind match above already confirmed equality
	}
}

func (v *validator) validateNamed(idx int, def *TypeDef) error {
	n := v.nodes[idx]
	switch def.Kind {
	case DefAlias:
		return v.validate(idx, *def.Alias, def.Name)
	case DefRecord:
		if value.Kind(n.Kind) != value.KindRecord {
			return errors.SchemaTypeMismatch(idx, "record "+def.Name, value.Kind(n.Kind).String())
		}
		info, err := InspectNode(n)
		if err != nil {
			return err
		}
		if info.TypeName != def.Name {
			return errors.SchemaTypeMismatch(idx, def.Name, info.TypeName)
		}
		if len(info.Children) != len(def.Fields) {
			return errors.SchemaTypeMismatch(idx, "record field count", "")
		}
		for i, f := range def.Fields {
			if info.FieldNames[i] != f.Name {
				return errors.SchemaTypeMismatch(idx, f.Name, info.FieldNames[i])
			}
			if err := v.validate(int(info.Children[i]), f.Type, def.Name); err != nil {
				return err
			}
		}
		return nil
	case DefVariant, DefEnum:
		if value.Kind(n.Kind) != value.KindVariant {
			return errors.SchemaTypeMismatch(idx, "variant "+def.Name, value.Kind(n.Kind).String())
		}
		info, err := InspectNode(n)
		if err != nil {
			return err
		}
		if info.TypeName != def.Name {
			return errors.SchemaTypeMismatch(idx, def.Name, info.TypeName)
		}
		if int(info.Tag) >= len(def.Cases) {
			return errors.VariantTagOutOfRange(idx, info.Tag, uint32(len(def.Cases)-1))
		}
		c := def.Cases[info.Tag]
		if c.Name != info.CaseName {
			return errors.SchemaTypeMismatch(idx, c.Name, info.CaseName)
		}
		if c.Payload == nil {
			if len(info.Children) != 0 {
				return errors.VariantPayloadMismatch(idx, info.Tag)
			}
			return nil
		}
		if len(info.Children) != 1 {
			return errors.VariantPayloadMismatch(idx, info.Tag)
		}
		return v.validate(int(info.Children[0]), *c.Payload, def.Name)
	case DefFlags:
		if value.Kind(n.Kind) != value.KindFlags {
			return errors.SchemaTypeMismatch(idx, "flags "+def.Name, value.Kind(n.Kind).String())
		}
		return nil
	default:
		return errors.UnsupportedType(def.Name)
	}
}

// typeKey renders a Type into a comparable string for the assigned-type
// sharing check; selfName resolves Self so two equivalent expansions key
// the same.
func typeKey(t Type, selfName string) string {
	switch t.kind {
	case tkSelf:
		return "ref:" + selfName
	case tkRef:
		return "ref:" + t.Ref
	case value.KindList:
		return "list(" + typeKey(*t.Elem, selfName) + ")"
	case value.KindOption:
		return "opt(" + typeKey(*t.Elem, selfName) + ")"
	case value.KindResult:
		return "res(" + typeKey(*t.Ok, selfName) + "," + typeKey(*t.Err, selfName) + ")"
	case value.KindTuple:
		s := "tup("
		for i, e := range t.Elems {
			if i > 0 {
				s += ","
			}
			s += typeKey(e, selfName)
		}
		return s + ")"
	default:
		return t.kind.String()
	}
}

// ValidateValue validates v against t in the value domain (no wire bytes
// involved), used by EncodeWithSchema before delegating to the schema-free
// encoder.
func ValidateValue(v value.Value, arena *Arena, t Type, selfName string) error {
	switch t.kind {
	case tkDynamic:
		return nil
	case tkSelf:
		if selfName == "" {
			return errors.SelfRefOutsideType()
		}
		return ValidateValue(v, arena, TNamed(selfName), selfName)
	case tkRef:
		def, ok := arena.Lookup(t.Ref)
		if !ok {
			return errors.UndefinedType(t.Ref)
		}
		return validateValueNamed(v, arena, def)
	case tkUnit:
		return errors.InvalidEncoding("unit type cannot have a concrete value")
	}
	if v.Kind != t.kind {
		return errors.CodecTypeMismatch(t.kind.String(), v.Kind.String())
	}
	switch t.kind {
	case value.KindList:
		for _, item := range v.Items {
			if err := ValidateValue(item, arena, *t.Elem, selfName); err != nil {
				return err
			}
		}
	case value.KindOption:
		if v.Present {
			return ValidateValue(*v.Inner, arena, *t.Elem, selfName)
		}
	case value.KindResult:
		arm := t.Ok
		if v.Tag == 1 {
			arm = t.Err
		}
		if arm.kind == tkUnit {
			if v.Present {
				return errors.VariantPayloadMismatch(-1, v.Tag)
			}
			return nil
		}
		if !v.Present {
			return errors.VariantPayloadMismatch(-1, v.Tag)
		}
		return ValidateValue(*v.Res, arena, *arm, selfName)
	case value.KindTuple:
		if len(v.Items) != len(t.Elems) {
			return errors.CodecTypeMismatch("tuple arity", "mismatch")
		}
		for i, item := range v.Items {
			if err := ValidateValue(item, arena, t.Elems[i], selfName); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateValueNamed(v value.Value, arena *Arena, def *TypeDef) error {
	switch def.Kind {
	case DefAlias:
		return ValidateValue(v, arena, *def.Alias, def.Name)
	case DefRecord:
		if v.Kind != value.KindRecord || v.Name != def.Name {
			return errors.CodecTypeMismatch("record "+def.Name, v.Kind.String())
		}
		if len(v.Fields) != len(def.Fields) {
			return errors.CodecTypeMismatch("record field count", "mismatch")
		}
		for i, f := range def.Fields {
			if v.Fields[i].Name != f.Name {
				return errors.CodecTypeMismatch(f.Name, v.Fields[i].Name)
			}
			if err := ValidateValue(v.Fields[i].Value, arena, f.Type, def.Name); err != nil {
				return err
			}
		}
		return nil
	case DefVariant, DefEnum:
		if v.Kind != value.KindVariant || v.Name != def.Name {
			return errors.CodecTypeMismatch("variant "+def.Name, v.Kind.String())
		}
		if int(v.Tag) >= len(def.Cases) {
			return errors.VariantTagOutOfRange(-1, v.Tag, uint32(len(def.Cases)-1))
		}
		c := def.Cases[v.Tag]
		if c.Payload == nil {
			if len(v.Payload) != 0 {
				return errors.VariantPayloadMismatch(-1, v.Tag)
			}
			return nil
		}
		if len(v.Payload) != 1 {
			return errors.VariantPayloadMismatch(-1, v.Tag)
		}
		return ValidateValue(v.Payload[0], arena, *c.Payload, def.Name)
	case DefFlags:
		if v.Kind != value.KindFlags {
			return errors.CodecTypeMismatch("flags", v.Kind.String())
		}
		return nil
	default:
		return errors.UnsupportedType(def.Name)
	}
}

// EncodeWithSchema validates v against t (recursing through arena for named
// references) and, on success, delegates to the schema-free Encode.
func EncodeWithSchema(v value.Value, arena *Arena, t Type) ([]byte, error) {
	if err := ValidateValue(v, arena, t, ""); err != nil {
		return nil, err
	}
	return Encode(v)
}

// DecodeWithSchema performs basic validation, schema validation against t,
// and finally full decoding, in that order (spec §4.1).
func DecodeWithSchema(data []byte, limits Limits, arena *Arena, t Type) (value.Value, error) {
	nodes, root, err := ParseGraph(data, limits)
	if err != nil {
		return value.Value{}, err
	}
	if err := ValidateGraph(nodes, root, arena, t); err != nil {
		return value.Value{}, err
	}
	return DecodeValue(nodes, root)
}
