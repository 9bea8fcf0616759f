// Package errors provides the structured error type shared by every
// subsystem of the pack runtime.
//
// Errors are categorized by Phase (which subsystem produced the error) and
// Kind (the shape of the failure), matching the taxonomy in spec §7. The
// Error type carries a field path, offending module/function names, and a
// cause chain so callers can report precisely where in a graph buffer, a
// schema walk, or a module merge something went wrong.
//
// Use the Builder for ad hoc construction:
//
//	err := errors.New(errors.PhaseSchema, errors.KindTypeMismatch).
//		Path("root", "items[2]").
//		Detail("expected string, got s64").
//		Build()
//
// Or one of the per-phase convenience constructors:
//
//	err := errors.VariantTagOutOfRange(node, tag, maxTag)
//	err := errors.UnresolvedImport(module, "math", "double")
//
// All errors implement the standard error interface and support
// errors.Is/As via Unwrap and an Is method that compares Phase and Kind.
package errors
