package value

import "testing"

func TestInferType(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want Kind
	}{
		{"bool", Bool(true), KindBool},
		{"s64", S64(42), KindS64},
		{"list", List(TS64(), []Value{S64(1), S64(2)}), KindList},
		{"tuple", Tuple(S64(1), Str("x")), KindTuple},
		{"record", Record("point", Field{Name: "x", Value: S32(1)}), KindRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.InferType().Kind; got != tt.want {
				t.Errorf("InferType().Kind = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInferType_Tuple_Recurses(t *testing.T) {
	v := Tuple(S64(1), Str("x"), Bool(true))
	got := v.InferType()
	want := TTupleOf(TS64(), TString(), TBool())
	if !got.Equal(want) {
		t.Errorf("tuple type = %+v, want %+v", got, want)
	}
}

func TestValue_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"equal scalars", S64(5), S64(5), true},
		{"unequal scalars", S64(5), S64(6), false},
		{"equal lists", List(TS64(), []Value{S64(1)}), List(TS64(), []Value{S64(1)}), true},
		{"unequal list length", List(TS64(), []Value{S64(1)}), List(TS64(), []Value{S64(1), S64(2)}), false},
		{"equal options some", Some(TS64(), S64(7)), Some(TS64(), S64(7)), true},
		{"option presence differs", Some(TS64(), S64(7)), None(TS64()), false},
		{"equal records", Record("p", Field{"x", S32(1)}), Record("p", Field{"x", S32(1)}), true},
		{"record name differs", Record("p", Field{"x", S32(1)}), Record("q", Field{"x", S32(1)}), false},
		{
			"equal variants",
			Variant("shape", "circle", 0, F64(1.5)),
			Variant("shape", "circle", 0, F64(1.5)),
			true,
		},
		{
			"variant tag differs",
			Variant("shape", "circle", 0, F64(1.5)),
			Variant("shape", "square", 1, F64(1.5)),
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResultArms(t *testing.T) {
	ok := ResultOk(TS64(), TString(), S64(1))
	if ok.Tag != 0 || !ok.Present {
		t.Errorf("ResultOk: Tag=%d Present=%v", ok.Tag, ok.Present)
	}
	errV := ResultErr(TS64(), TString(), Str("bad"))
	if errV.Tag != 1 || !errV.Present {
		t.Errorf("ResultErr: Tag=%d Present=%v", errV.Tag, errV.Present)
	}
	unit := ResultOkUnit(TS64(), TString())
	if unit.Present {
		t.Error("ResultOkUnit should have Present=false")
	}
}

func TestValueType_Equal(t *testing.T) {
	if !TListOf(TS64()).Equal(TListOf(TS64())) {
		t.Error("identical list types should be equal")
	}
	if TListOf(TS64()).Equal(TListOf(TString())) {
		t.Error("lists of different element type should not be equal")
	}
	if !TResultOf(TS64(), TString()).Equal(TResultOf(TS64(), TString())) {
		t.Error("identical result types should be equal")
	}
}
