// Package errors provides structured error types for the hostbridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: field path, Go type and host kind names, and
// a cause chain. These errors cover registration-time and conversion failures on the
// Go side; failures a host caller should observe are raised as host exceptions by the
// bridge instead.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseConvert, errors.KindTypeMismatch).
//		Path("args", "name").
//		GoType("int8").
//		HostKind("String").
//		Detail("cannot convert string to integer").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseConvert, path, "int8", "String")
//	err := errors.MissingArgument("name")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
