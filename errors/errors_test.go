package errors

import (
	"strings"
	"testing"
)

func containsSubstring(s, substr string) bool {
	return strings.Contains(s, substr)
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseSchema,
				Kind:   KindTypeMismatch,
				Path:   []string{"root", "items[2]"},
				Module: "adder",
				Func:   "process",
				Detail: "expected string, got s64",
			},
			contains: []string{"[schema]", "type_mismatch", "root.items[2]", "module=adder", "func=process", "expected string, got s64"},
		},
		{
			name:     "minimal error",
			err:      &Error{Phase: PhaseCodec, Kind: KindBufferTooSmall},
			contains: []string{"[codec]", "buffer_too_small"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseCompose,
				Kind:   KindEncodingError,
				Cause:  VariantTagOutOfRange(3, 9, 2),
				Detail: "re-encode merged module",
			},
			contains: []string{"[compose]", "encoding_error", "caused by", "variant_tag_out_of_range"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !containsSubstring(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := BufferTooSmall(16, 4)
	err := &Error{Phase: PhaseCodec, Kind: KindInvalidEncoding, Cause: cause}
	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
}

func TestError_Is(t *testing.T) {
	a := UndefinedType("point")
	b := UndefinedType("vec2")
	c := SelfRefOutsideType()

	if !a.Is(b) {
		t.Error("errors with same Phase/Kind should match via Is")
	}
	if a.Is(c) {
		t.Error("errors with different Kind should not match via Is")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseBridge, KindWasmError).
		Module("consumer").
		Func("double").
		Path("args", "0").
		Detail("trap: %s", "out of bounds").
		Build()

	if err.Phase != PhaseBridge || err.Kind != KindWasmError {
		t.Fatalf("unexpected phase/kind: %v/%v", err.Phase, err.Kind)
	}
	if !strings.Contains(err.Error(), "trap: out of bounds") {
		t.Errorf("Detail format args not applied: %s", err.Error())
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want Kind
	}{
		{"InvalidTag", InvalidTag(0xFF), KindInvalidTag},
		{"VariantTagOutOfRange", VariantTagOutOfRange(1, 5, 2), KindVariantTagOutOfRange},
		{"UnresolvedImport", UnresolvedImport("m", "math", "double"), KindUnresolvedImport},
		{"CircularDependency", CircularDependency([]string{"a", "b", "a"}), KindCircularDep},
		{"MissingFunction", MissingFunction("m", "f"), KindMissingFunction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.want)
			}
		})
	}
}
