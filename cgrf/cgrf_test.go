package cgrf

import (
	"testing"

	"github.com/packrun/pack/value"
)

func roundTrip(t *testing.T, v value.Value) value.Value {
	t.Helper()
	data, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return got
}

func TestRoundTrip_Scalars(t *testing.T) {
	tests := []value.Value{
		value.Bool(true),
		value.U8(200),
		value.U16(60000),
		value.U32(4000000000),
		value.U64(1 << 40),
		value.S8(-12),
		value.S16(-1000),
		value.S32(-70000),
		value.S64(42),
		value.F32(1.5),
		value.F64(3.14159),
		value.Char('λ'),
		value.Str("hello, pack"),
		value.Flags(0b1011),
	}
	for _, v := range tests {
		t.Run(v.Kind.String(), func(t *testing.T) {
			got := roundTrip(t, v)
			if !got.Equal(v) {
				t.Errorf("round trip = %+v, want %+v", got, v)
			}
		})
	}
}

func TestRoundTrip_List(t *testing.T) {
	v := value.List(value.TS64(), []value.Value{value.S64(1), value.S64(2), value.S64(3)})
	got := roundTrip(t, v)
	if !got.Equal(v) {
		t.Errorf("round trip list = %+v, want %+v", got, v)
	}
}

func TestRoundTrip_Option(t *testing.T) {
	some := value.Some(value.TString(), value.Str("present"))
	if got := roundTrip(t, some); !got.Equal(some) {
		t.Errorf("round trip some = %+v, want %+v", got, some)
	}
	none := value.None(value.TString())
	if got := roundTrip(t, none); !got.Equal(none) {
		t.Errorf("round trip none = %+v, want %+v", got, none)
	}
}

func TestRoundTrip_Result(t *testing.T) {
	ok := value.ResultOk(value.TS64(), value.TString(), value.S64(7))
	if got := roundTrip(t, ok); !got.Equal(ok) {
		t.Errorf("round trip result-ok = %+v, want %+v", got, ok)
	}
	errV := value.ResultErr(value.TS64(), value.TString(), value.Str("boom"))
	if got := roundTrip(t, errV); !got.Equal(errV) {
		t.Errorf("round trip result-err = %+v, want %+v", got, errV)
	}
}

func TestRoundTrip_RecordAndVariant(t *testing.T) {
	rec := value.Record("point",
		value.Field{Name: "x", Value: value.S32(3)},
		value.Field{Name: "y", Value: value.S32(4)},
	)
	if got := roundTrip(t, rec); !got.Equal(rec) {
		t.Errorf("round trip record = %+v, want %+v", got, rec)
	}

	v := value.Variant("shape", "circle", 0, value.F64(2.0))
	if got := roundTrip(t, v); !got.Equal(v) {
		t.Errorf("round trip variant = %+v, want %+v", got, v)
	}
}

func TestRoundTrip_Tuple(t *testing.T) {
	tup := value.Tuple(value.S64(1), value.Str("two"), value.Bool(true))
	if got := roundTrip(t, tup); !got.Equal(tup) {
		t.Errorf("round trip tuple = %+v, want %+v", got, tup)
	}
}

func TestRoundTrip_NestedSharedChildren(t *testing.T) {
	inner := value.Record("pair", value.Field{Name: "a", Value: value.S64(1)})
	list := value.List(value.TRecord("pair"), []value.Value{inner, inner, inner})
	got := roundTrip(t, list)
	if !got.Equal(list) {
		t.Errorf("round trip shared-child list = %+v, want %+v", got, list)
	}
}

func TestDecode_RejectsTruncatedBuffer(t *testing.T) {
	data, err := Encode(value.S64(5))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, err = Decode(data[:len(data)-2])
	if err == nil {
		t.Fatal("expected error decoding truncated buffer")
	}
}

func TestDecode_RejectsBadMagic(t *testing.T) {
	data, err := Encode(value.S64(5))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	corrupt := append([]byte(nil), data...)
	corrupt[0] = 'X'
	if _, err := Decode(corrupt); err == nil {
		t.Fatal("expected error decoding bad magic")
	}
}

func TestDecode_RejectsCycle(t *testing.T) {
	// Hand-build a one-node buffer where node 0's single tuple child points
	// back to itself: DAG rules permit sharing, not self-reference.
	enc := &encoder{}
	enc.push(byte(value.KindTuple), append(u32le(1), u32le(0)...))
	data := enc.finish(0)

	if _, err := Decode(data); err == nil {
		t.Fatal("expected cycle detection to reject self-referential tuple")
	}
}

func TestParseGraph_RejectsOversizedNodeCount(t *testing.T) {
	v := value.List(value.TS64(), []value.Value{value.S64(1), value.S64(2), value.S64(3)})
	data, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	limits := DefaultLimits()
	limits.MaxNodeCount = 2 // the list itself plus 3 items is 4 nodes
	if _, _, err := ParseGraph(data, limits); err == nil {
		t.Fatal("expected node count over the configured limit to be rejected")
	}
}
