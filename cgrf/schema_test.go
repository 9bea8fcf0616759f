package cgrf

import (
	"testing"

	"github.com/packrun/pack/value"
)

func TestDecodeWithSchema_RoundTrip(t *testing.T) {
	arena, err := NewArena()
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	v := value.List(value.TS64(), []value.Value{value.S64(1), value.S64(2), value.S64(3)})
	data, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeWithSchema(data, DefaultLimits(), arena, ListOf(S64T()))
	if err != nil {
		t.Fatalf("DecodeWithSchema: %v", err)
	}
	if !got.Equal(v) {
		t.Errorf("decoded = %+v, want %+v", got, v)
	}
}

func TestDecodeWithSchema_TypeMismatchRejected(t *testing.T) {
	arena, _ := NewArena()
	v := value.List(value.TS64(), []value.Value{value.S64(1)})
	data, _ := Encode(v)

	_, err := DecodeWithSchema(data, DefaultLimits(), arena, ListOf(StringT()))
	if err == nil {
		t.Fatal("expected TypeMismatch decoding a list-of-s64 buffer against list-of-string")
	}
}

func TestValidateGraph_RecordViaArena(t *testing.T) {
	pointDef := TypeDef{
		Name: "point",
		Kind: DefRecord,
		Fields: []FieldDef{
			{Name: "x", Type: S32T()},
			{Name: "y", Type: S32T()},
		},
	}
	arena, err := NewArena(pointDef)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	v := value.Record("point",
		value.Field{Name: "x", Value: value.S32(3)},
		value.Field{Name: "y", Value: value.S32(4)},
	)
	data, err := EncodeWithSchema(v, arena, TNamed("point"))
	if err != nil {
		t.Fatalf("EncodeWithSchema: %v", err)
	}
	got, err := DecodeWithSchema(data, DefaultLimits(), arena, TNamed("point"))
	if err != nil {
		t.Fatalf("DecodeWithSchema: %v", err)
	}
	if !got.Equal(v) {
		t.Errorf("decoded = %+v, want %+v", got, v)
	}
}

func TestValidateGraph_VariantTagOutOfRange(t *testing.T) {
	shapeDef := TypeDef{
		Name: "shape",
		Kind: DefVariant,
		Cases: []CaseDef{
			{Name: "circle"},
			{Name: "square"},
		},
	}
	arena, err := NewArena(shapeDef)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	// Tag 5 doesn't exist in the declared cases.
	v := value.Variant("shape", "circle", 5)
	data, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, err = DecodeWithSchema(data, DefaultLimits(), arena, TNamed("shape"))
	if err == nil {
		t.Fatal("expected VariantTagOutOfRange")
	}
}

func TestValidateGraph_SelfReference(t *testing.T) {
	// list-node ::= record { value: s64, next: option<self> }
	nextT := OptionOf(TSelf())
	listNodeDef := TypeDef{
		Name: "list-node",
		Kind: DefRecord,
		Fields: []FieldDef{
			{Name: "value", Type: S64T()},
			{Name: "next", Type: nextT},
		},
	}
	arena, err := NewArena(listNodeDef)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}

	tail := value.Record("list-node",
		value.Field{Name: "value", Value: value.S64(2)},
		value.Field{Name: "next", Value: value.None(value.TRecord("list-node"))},
	)
	head := value.Record("list-node",
		value.Field{Name: "value", Value: value.S64(1)},
		value.Field{Name: "next", Value: value.Some(value.TRecord("list-node"), tail)},
	)

	data, err := EncodeWithSchema(head, arena, TNamed("list-node"))
	if err != nil {
		t.Fatalf("EncodeWithSchema: %v", err)
	}
	got, err := DecodeWithSchema(data, DefaultLimits(), arena, TNamed("list-node"))
	if err != nil {
		t.Fatalf("DecodeWithSchema: %v", err)
	}
	if !got.Equal(head) {
		t.Errorf("decoded = %+v, want %+v", got, head)
	}
}

func TestValidateGraph_SharedNodeConflictingTypes(t *testing.T) {
	// A tuple whose two members are the *same* encoded node index but
	// validated against incompatible expected types must be rejected.
	enc := &encoder{}
	shared := enc.push(byte(value.KindS64), []byte{5, 0, 0, 0, 0, 0, 0, 0})
	payload := append(u32le(2), u32le(shared)...)
	payload = append(payload, u32le(shared)...)
	root := enc.push(byte(value.KindTuple), payload)
	data := enc.finish(root)

	arena, _ := NewArena()
	nodes, rootIdx, err := ParseGraph(data, DefaultLimits())
	if err != nil {
		t.Fatalf("ParseGraph: %v", err)
	}
	// string != s64 at the same shared node index: must fail even though
	// each individual position, read alone, would be internally consistent.
	err = ValidateGraph(nodes, rootIdx, arena, TupleOf(S64T(), StringT()))
	if err == nil {
		t.Fatal("expected TypeMismatch for a shared node visited under two different types")
	}
}
