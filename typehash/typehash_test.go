package typehash

import (
	"testing"

	"github.com/packrun/pack/cgrf"
)

func TestHashType_PrimitivesDistinct(t *testing.T) {
	arena, err := cgrf.NewArena()
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}

	u8, err := HashType(cgrf.U8T(), arena)
	if err != nil {
		t.Fatalf("HashType(u8): %v", err)
	}
	u16, err := HashType(cgrf.U16T(), arena)
	if err != nil {
		t.Fatalf("HashType(u16): %v", err)
	}
	if u8 == u16 {
		t.Fatal("expected distinct primitives to hash differently")
	}

	u8Again, err := HashType(cgrf.U8T(), arena)
	if err != nil {
		t.Fatalf("HashType(u8) again: %v", err)
	}
	if u8 != u8Again {
		t.Fatal("expected HashType to be deterministic for the same primitive")
	}
}

func TestHashType_CompoundsDistinctByDomain(t *testing.T) {
	arena, err := cgrf.NewArena()
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}

	list, err := HashType(cgrf.ListOf(cgrf.U32T()), arena)
	if err != nil {
		t.Fatalf("HashType(list<u32>): %v", err)
	}
	opt, err := HashType(cgrf.OptionOf(cgrf.U32T()), arena)
	if err != nil {
		t.Fatalf("HashType(opt<u32>): %v", err)
	}
	if list == opt {
		t.Fatal("expected list<u32> and option<u32> to hash differently despite the same element")
	}
}

func TestHashType_TupleOrderMatters(t *testing.T) {
	arena, err := cgrf.NewArena()
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}

	ab, err := HashType(cgrf.TupleOf(cgrf.U8T(), cgrf.U16T()), arena)
	if err != nil {
		t.Fatalf("HashType(tuple(u8,u16)): %v", err)
	}
	ba, err := HashType(cgrf.TupleOf(cgrf.U16T(), cgrf.U8T()), arena)
	if err != nil {
		t.Fatalf("HashType(tuple(u16,u8)): %v", err)
	}
	if ab == ba {
		t.Fatal("expected tuple element order to affect the hash")
	}
}

func TestHashType_RecordFieldOrderIndependent(t *testing.T) {
	recA := cgrf.TypeDef{
		Name: "point",
		Kind: cgrf.DefRecord,
		Fields: []cgrf.FieldDef{
			{Name: "x", Type: cgrf.U32T()},
			{Name: "y", Type: cgrf.U32T()},
		},
	}
	recB := cgrf.TypeDef{
		Name: "point",
		Kind: cgrf.DefRecord,
		Fields: []cgrf.FieldDef{
			{Name: "y", Type: cgrf.U32T()},
			{Name: "x", Type: cgrf.U32T()},
		},
	}
	arenaA, err := cgrf.NewArena(recA)
	if err != nil {
		t.Fatalf("NewArena(A): %v", err)
	}
	arenaB, err := cgrf.NewArena(recB)
	if err != nil {
		t.Fatalf("NewArena(B): %v", err)
	}

	hashA, err := HashType(cgrf.TNamed("point"), arenaA)
	if err != nil {
		t.Fatalf("HashType(A): %v", err)
	}
	hashB, err := HashType(cgrf.TNamed("point"), arenaB)
	if err != nil {
		t.Fatalf("HashType(B): %v", err)
	}
	if hashA != hashB {
		t.Fatal("expected field declaration order not to affect a record's structural hash")
	}
}

func TestHashType_RecordNameIndependent(t *testing.T) {
	fields := []cgrf.FieldDef{{Name: "x", Type: cgrf.U32T()}}
	recA := cgrf.TypeDef{Name: "point", Kind: cgrf.DefRecord, Fields: fields}
	recB := cgrf.TypeDef{Name: "coord", Kind: cgrf.DefRecord, Fields: fields}
	arenaA, _ := cgrf.NewArena(recA)
	arenaB, _ := cgrf.NewArena(recB)

	hashA, err := HashType(cgrf.TNamed("point"), arenaA)
	if err != nil {
		t.Fatalf("HashType(A): %v", err)
	}
	hashB, err := HashType(cgrf.TNamed("coord"), arenaB)
	if err != nil {
		t.Fatalf("HashType(B): %v", err)
	}
	if hashA != hashB {
		t.Fatal("expected a record's structural hash to be name-independent (spec's compatibility-by-shape rule)")
	}
}

func TestHashType_UndefinedReference(t *testing.T) {
	arena, _ := cgrf.NewArena()
	if _, err := HashType(cgrf.TNamed("missing"), arena); err == nil {
		t.Fatal("expected an error hashing a reference to an undefined type")
	}
}

func TestHashFunc_PositionalNotSorted(t *testing.T) {
	arena, _ := cgrf.NewArena()

	ab, err := HashFunc([]cgrf.Type{cgrf.U8T(), cgrf.U16T()}, []cgrf.Type{cgrf.Bool()}, arena)
	if err != nil {
		t.Fatalf("HashFunc(u8,u16): %v", err)
	}
	ba, err := HashFunc([]cgrf.Type{cgrf.U16T(), cgrf.U8T()}, []cgrf.Type{cgrf.Bool()}, arena)
	if err != nil {
		t.Fatalf("HashFunc(u16,u8): %v", err)
	}
	if ab == ba {
		t.Fatal("expected parameter order to affect HashFunc's result")
	}
}

func TestHashInterface_MemberNameOrderIndependent(t *testing.T) {
	arena, _ := cgrf.NewArena()
	funcs := []InterfaceFunc{
		{Name: "add", Params: []cgrf.Type{cgrf.U32T(), cgrf.U32T()}, Results: []cgrf.Type{cgrf.U32T()}},
		{Name: "sub", Params: []cgrf.Type{cgrf.U32T(), cgrf.U32T()}, Results: []cgrf.Type{cgrf.U32T()}},
	}
	reversed := []InterfaceFunc{funcs[1], funcs[0]}

	h1, err := HashInterface("math", nil, funcs, arena)
	if err != nil {
		t.Fatalf("HashInterface(funcs): %v", err)
	}
	h2, err := HashInterface("math", nil, reversed, arena)
	if err != nil {
		t.Fatalf("HashInterface(reversed): %v", err)
	}
	if h1 != h2 {
		t.Fatal("expected HashInterface to sort members, making declaration order irrelevant")
	}
}

func TestHashInterface_NameAffectsHash(t *testing.T) {
	arena, _ := cgrf.NewArena()
	h1, err := HashInterface("math", nil, nil, arena)
	if err != nil {
		t.Fatalf("HashInterface(math): %v", err)
	}
	h2, err := HashInterface("geometry", nil, nil, arena)
	if err != nil {
		t.Fatalf("HashInterface(geometry): %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected different interface names to hash differently")
	}
}

func TestHashRoundTripThroughU64s(t *testing.T) {
	arena, _ := cgrf.NewArena()
	h, err := HashType(cgrf.U64T(), arena)
	if err != nil {
		t.Fatalf("HashType: %v", err)
	}
	a, b, c, d := h.ToU64s()
	got := FromU64s(a, b, c, d)
	if got != h {
		t.Fatalf("expected ToU64s/FromU64s to round-trip, got %x want %x", got, h)
	}
}

func TestPrimitiveHash_UnknownKindMissing(t *testing.T) {
	if _, ok := PrimitiveHash(0xFF); ok {
		t.Fatal("expected no primitive hash for an unrecognized value.Kind")
	}
}
