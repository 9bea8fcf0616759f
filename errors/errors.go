package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which subsystem of the runtime produced the error.
type Phase string

const (
	PhaseCodec     Phase = "codec"     // CGRF graph buffer encode/decode
	PhaseSchema    Phase = "schema"    // schema-directed validate/encode/decode
	PhaseMetadata  Phase = "metadata"  // package metadata reader
	PhaseRuntime   Phase = "runtime"   // guest ABI dispatcher, instance lifecycle
	PhaseBridge    Phase = "bridge"    // cross-package call bridge
	PhaseInterface Phase = "interface" // export signature compatibility checks
	PhaseCompose   Phase = "compose"   // static module parser/merger
)

// Kind categorizes the error within its Phase. Spec §7 groups these by
// subsystem; Kind values are shared across phases where the underlying
// failure shape is the same (e.g. TypeMismatch appears in both codec and
// schema phases).
type Kind string

const (
	// Codec kinds.
	KindInvalidEncoding Kind = "invalid_encoding"
	KindBufferTooSmall  Kind = "buffer_too_small"
	KindInvalidTag      Kind = "invalid_tag"
	KindTypeMismatch    Kind = "type_mismatch"

	// Schema kinds.
	KindVariantTagOutOfRange   Kind = "variant_tag_out_of_range"
	KindVariantPayloadMismatch Kind = "variant_payload_mismatch"
	KindUndefinedType          Kind = "undefined_type"
	KindSelfRefOutsideType     Kind = "self_ref_outside_type"
	KindUnsupportedType        Kind = "unsupported_type"

	// Metadata kinds.
	KindNotFound    Kind = "not_found"
	KindDecodeError Kind = "decode_error"

	// Runtime kinds.
	KindModuleNotFound   Kind = "module_not_found"
	KindFunctionNotFound Kind = "function_not_found"
	KindWasmError        Kind = "wasm_error"
	KindAbiError         Kind = "abi_error"
	KindMemoryError      Kind = "memory_error"
	KindNotInitialized   Kind = "not_initialized"

	// Interface-check kinds.
	KindMissingFunction   Kind = "missing_function"
	KindSignatureMismatch Kind = "signature_mismatch"
	KindMissingMemory     Kind = "missing_memory"

	// Compose kinds.
	KindParseError        Kind = "parse_error"
	KindUnresolvedImport  Kind = "unresolved_import"
	KindDuplicateInternal Kind = "duplicate_internal"
	KindCircularDep       Kind = "circular_dependency"
	KindEncodingError     Kind = "encoding_error"
	KindNoModules         Kind = "no_modules"
	KindInvalidModule     Kind = "invalid_module"
)

// Error is the structured error type used throughout the runtime.
type Error struct {
	Cause  error
	Value  any
	Module string
	Func   string
	Detail string
	Path   []string
	Phase  Phase
	Kind   Kind
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Module != "" {
		b.WriteString(" module=")
		b.WriteString(e.Module)
	}
	if e.Func != "" {
		b.WriteString(" func=")
		b.WriteString(e.Func)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error's Phase and Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides fluent construction of structured errors.
type Builder struct {
	err Error
}

func New(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind}}
}

func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

func (b *Builder) Module(name string) *Builder {
	b.err.Module = name
	return b
}

func (b *Builder) Func(name string) *Builder {
	b.err.Func = name
	return b
}

func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors, grouped by phase.

// InvalidEncoding builds a codec-phase error for any violation of the
// graph-buffer invariants (bad magic/version, out-of-range index, cycle,
// invalid UTF-8, non-scalar char, oversized flags mask, trailing bytes).
func InvalidEncoding(reason string) *Error {
	return &Error{Phase: PhaseCodec, Kind: KindInvalidEncoding, Detail: reason}
}

func BufferTooSmall(need, have int) *Error {
	return &Error{
		Phase:  PhaseCodec,
		Kind:   KindBufferTooSmall,
		Detail: fmt.Sprintf("need %d bytes, have %d", need, have),
	}
}

func InvalidTag(b byte) *Error {
	return &Error{
		Phase:  PhaseCodec,
		Kind:   KindInvalidTag,
		Detail: fmt.Sprintf("unknown node kind byte 0x%02x", b),
		Value:  b,
	}
}

func CodecTypeMismatch(expected, got string) *Error {
	return &Error{
		Phase:  PhaseCodec,
		Kind:   KindTypeMismatch,
		Detail: fmt.Sprintf("expected %s, got %s", expected, got),
	}
}

// SchemaTypeMismatch builds a schema-phase TypeMismatch, naming the graph
// node index that failed validation.
func SchemaTypeMismatch(node int, expected, actual string) *Error {
	return &Error{
		Phase:  PhaseSchema,
		Kind:   KindTypeMismatch,
		Detail: fmt.Sprintf("node %d: expected %s, actual %s", node, expected, actual),
	}
}

func VariantTagOutOfRange(node int, tag, max uint32) *Error {
	return &Error{
		Phase:  PhaseSchema,
		Kind:   KindVariantTagOutOfRange,
		Detail: fmt.Sprintf("node %d: tag %d out of range (max %d)", node, tag, max),
		Value:  tag,
	}
}

func VariantPayloadMismatch(node int, tag uint32) *Error {
	return &Error{
		Phase:  PhaseSchema,
		Kind:   KindVariantPayloadMismatch,
		Detail: fmt.Sprintf("node %d: payload presence mismatch for tag %d", node, tag),
	}
}

func UndefinedType(name string) *Error {
	return &Error{Phase: PhaseSchema, Kind: KindUndefinedType, Detail: fmt.Sprintf("undefined type %q", name)}
}

func SelfRefOutsideType() *Error {
	return &Error{Phase: PhaseSchema, Kind: KindSelfRefOutsideType, Detail: "self-reference used outside of a named type"}
}

func UnsupportedType(name string) *Error {
	return &Error{Phase: PhaseSchema, Kind: KindUnsupportedType, Detail: fmt.Sprintf("unsupported type %q", name)}
}

// NotFound builds a NotFound in the given phase. In the metadata phase it
// signals that the package genuinely has no embedded metadata segment, not
// an error condition.
func NotFound(phase Phase, what, name string) *Error {
	return &Error{Phase: phase, Kind: KindNotFound, Detail: fmt.Sprintf("%s %q not found", what, name)}
}

func DecodeError(cause error) *Error {
	return &Error{Phase: PhaseMetadata, Kind: KindDecodeError, Cause: cause, Detail: "decode embedded metadata"}
}

func ModuleNotFound(name string) *Error {
	return &Error{Phase: PhaseRuntime, Kind: KindModuleNotFound, Module: name}
}

func FunctionNotFound(module, fn string) *Error {
	return &Error{Phase: PhaseRuntime, Kind: KindFunctionNotFound, Module: module, Func: fn}
}

func WasmError(module string, cause error) *Error {
	return &Error{Phase: PhaseRuntime, Kind: KindWasmError, Module: module, Cause: cause, Detail: "trap or call failure"}
}

func AbiError(detail string) *Error {
	return &Error{Phase: PhaseRuntime, Kind: KindAbiError, Detail: detail}
}

func MemoryError(detail string, cause error) *Error {
	return &Error{Phase: PhaseRuntime, Kind: KindMemoryError, Detail: detail, Cause: cause}
}

func NotInitialized(what string) *Error {
	return &Error{Phase: PhaseRuntime, Kind: KindNotInitialized, Detail: fmt.Sprintf("%s not initialized", what)}
}

func MissingFunction(module, fn string) *Error {
	return &Error{Phase: PhaseInterface, Kind: KindMissingFunction, Module: module, Func: fn}
}

func SignatureMismatch(module, fn, expected, actual string) *Error {
	return &Error{
		Phase:  PhaseInterface,
		Kind:   KindSignatureMismatch,
		Module: module,
		Func:   fn,
		Detail: fmt.Sprintf("expected %s, actual %s", expected, actual),
	}
}

func MissingMemory(module string) *Error {
	return &Error{Phase: PhaseInterface, Kind: KindMissingMemory, Module: module, Detail: "module does not export \"memory\""}
}

func ParseError(module, message string) *Error {
	return &Error{Phase: PhaseCompose, Kind: KindParseError, Module: module, Detail: message}
}

func UnresolvedImport(module, importModule, importName string) *Error {
	return &Error{
		Phase:  PhaseCompose,
		Kind:   KindUnresolvedImport,
		Module: module,
		Detail: fmt.Sprintf("%s::%s", importModule, importName),
	}
}

func ComposeTypeMismatch(detail string) *Error {
	return &Error{Phase: PhaseCompose, Kind: KindTypeMismatch, Detail: detail}
}

func DuplicateInternal(name string) *Error {
	return &Error{Phase: PhaseCompose, Kind: KindDuplicateInternal, Detail: name}
}

func CircularDependency(cycle []string) *Error {
	return &Error{Phase: PhaseCompose, Kind: KindCircularDep, Detail: strings.Join(cycle, " -> ")}
}

func EncodingError(cause error) *Error {
	return &Error{Phase: PhaseCompose, Kind: KindEncodingError, Cause: cause}
}

func ComposeMemoryError(detail string) *Error {
	return &Error{Phase: PhaseCompose, Kind: KindMemoryError, Detail: detail}
}

func NoModules() *Error {
	return &Error{Phase: PhaseCompose, Kind: KindNoModules, Detail: "no modules given to compose"}
}

func InvalidModule(module, detail string) *Error {
	return &Error{Phase: PhaseCompose, Kind: KindInvalidModule, Module: module, Detail: detail}
}
