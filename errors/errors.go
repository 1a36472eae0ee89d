package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseRegister Phase = "register" // method/type registration
	PhaseBind     Phase = "bind"     // typed-data binding
	PhaseConvert  Phase = "convert"  // value conversion across the boundary
	PhaseParse    Phase = "parse"    // argument parsing
	PhaseCall     Phase = "call"     // host calls into native code and back
	PhaseGC       Phase = "gc"       // collection callbacks
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch      Kind = "type_mismatch"
	KindRange             Kind = "range"
	KindMissingArgument   Kind = "missing_argument"
	KindNoBlock           Kind = "no_block"
	KindUnsupported       Kind = "unsupported"
	KindDoubleBinding     Kind = "double_binding"
	KindDoubleAssociation Kind = "double_association"
	KindNotBound          Kind = "not_bound"
	KindNotAssociated     Kind = "not_associated"
	KindNotInitialized    Kind = "not_initialized"
	KindFrozen            Kind = "frozen"
	KindInvalidInput      Kind = "invalid_input"
	KindRegistration      Kind = "registration"
)

// Error is the structured error type used throughout the library for
// registration-time and conversion failures. Per-call failures that a
// host caller should see become host exceptions instead.
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	GoType   string
	HostKind string
	Detail   string
	Path     []string
}

// Error implements the error interface
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

	if e.GoType != "" || e.HostKind != "" {
		b.WriteString(": ")
		switch {
		case e.GoType != "" && e.HostKind != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", host kind ")
			b.WriteString(e.HostKind)
		case e.GoType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		default:
			b.WriteString("host kind ")
			b.WriteString(e.HostKind)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.HostKind != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// HostKind sets the host kind name
func (b *Builder) HostKind(k string) *Builder {
	b.err.HostKind = k
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, hostKind string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Path:     path,
		GoType:   goType,
		HostKind: hostKind,
	}
}

// OutOfRange creates a range error for a numeric narrowing that would
// truncate
func OutOfRange(phase Phase, value any, targetType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRange,
		GoType: targetType,
		Detail: fmt.Sprintf("value %v does not fit %s", value, targetType),
		Value:  value,
	}
}

// MissingArgument creates a missing required argument error
func MissingArgument(name string) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindMissingArgument,
		Detail: fmt.Sprintf("missing required argument (%s)", name),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// DoubleBinding reports a second type binding or converter
// registration for the same Go type. Always fatal at load time.
func DoubleBinding(goType string) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindDoubleBinding,
		GoType: goType,
		Detail: "already bound",
	}
}

// DoubleAssociation reports a second owner association on a native
// struct. Always fatal.
func DoubleAssociation(goType string) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindDoubleAssociation,
		GoType: goType,
		Detail: "already associated with a host object",
	}
}

// NotBound reports use of a Go type that has no class binding yet
func NotBound(goType string) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindNotBound,
		GoType: goType,
		Detail: "type is not bound to a host class",
	}
}

// NotAssociated reports converting a native struct that has no owning
// host object
func NotAssociated(goType string) *Error {
	return &Error{
		Phase:  PhaseConvert,
		Kind:   KindNotAssociated,
		GoType: goType,
		Detail: "struct is not managed by the host",
	}
}

// NotInitialized reports typed-data access on an allocated but not yet
// initialized shell
func NotInitialized(goType string) *Error {
	return &Error{
		Phase:  PhaseConvert,
		Kind:   KindNotInitialized,
		GoType: goType,
		Detail: "object is not yet initialized",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration wraps a failure while registering a named method
func Registration(class, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("define %s#%s", class, name),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
