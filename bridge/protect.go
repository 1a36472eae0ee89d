package bridge

import (
	"fmt"

	hb "github.com/hostbridge/hostbridge"
	berrors "github.com/hostbridge/hostbridge/errors"
)

// Jump is a non-exception host control transfer observed crossing a Go
// frame. It must be propagated unchanged: return it from a handler (or
// re-panic it) and the bridge re-injects the original tag.
type Jump struct {
	Tag hb.Tag
}

func (j *Jump) Error() string {
	return fmt.Sprintf("host jump (tag %d)", int(j.Tag))
}

// HostError carries a host exception through Go code as an error.
// Returning it from a handler re-raises the original exception object,
// preserving its identity.
type HostError struct {
	rt  *Runtime
	exc hb.Handle
}

// Exception returns the wrapped exception object.
func (e *HostError) Exception() Exception { return Exception{e.rt.Wrap(e.exc)} }

// Error formats as "ClassName: message".
func (e *HostError) Error() string {
	return fmt.Sprintf("%s: %s",
		e.rt.host.ClassName(e.rt.host.ClassOf(e.exc)),
		e.rt.host.ExceptionMessage(e.exc))
}

// Errorf builds a HostError with a fresh exception of the given class.
// It does not raise; return it from a handler or pass it to RaiseError.
func (rt *Runtime) Errorf(class Class, format string, args ...any) *HostError {
	exc := rt.host.NewException(class.Raw(), fmt.Sprintf(format, args...))
	return &HostError{rt: rt, exc: exc}
}

// jumpPanic is the bridge-internal encoding of a host jump while it
// crosses Go frames between a barrier and the next guard.
type jumpPanic struct {
	tag hb.Tag
}

// call runs fn under the host barrier and turns any jump into a
// jumpPanic for the surrounding guard. Used by every wrapper around a
// may-jump host operation.
func (rt *Runtime) call(fn func() hb.Handle) hb.Handle {
	h, tag := rt.host.Protect(fn)
	if tag != hb.TagNone {
		panic(jumpPanic{tag: tag})
	}
	return h
}

// protectErr runs fn under the barrier and reports jumps as errors.
// fn runs guarded, so raised HostErrors and Go panics inside it are
// translated the same way they would be inside a bound method.
func (rt *Runtime) protectErr(fn func() hb.Handle) (hb.Handle, error) {
	h, tag := rt.host.Protect(func() hb.Handle {
		return rt.guard(fn)
	})
	switch tag {
	case hb.TagNone:
		return h, nil
	case hb.TagRaise:
		exc := rt.host.PendingException()
		rt.host.SetPendingException(hb.Nil)
		return 0, &HostError{rt: rt, exc: exc}
	default:
		return 0, &Jump{Tag: tag}
	}
}

// Protect runs fn under the host's jump barrier. A raise comes back as
// *HostError, any other transfer as *Jump. This is the entry point for
// top-level embedding code; inside bound methods the barrier is
// already in place and the jumping APIs can be used directly.
func (rt *Runtime) Protect(fn func() Value) (Value, error) {
	h, err := rt.protectErr(func() hb.Handle {
		return fn().Raw()
	})
	if err != nil {
		return Value{}, err
	}
	return rt.Wrap(h), nil
}

// guard runs fn and converts whatever escapes into a host-side
// transfer. The translation is collected inside the recover frame but
// executed after it, so the resulting host jump unwinds cleanly.
func (rt *Runtime) guard(fn func() hb.Handle) hb.Handle {
	var raise func()
	h := func() (out hb.Handle) {
		defer func() {
			if r := recover(); r != nil {
				raise = rt.translate(r)
			}
		}()
		return fn()
	}()
	if raise != nil {
		raise()
	}
	return h
}

// translate maps a recovered value to the host action that re-encodes
// it. Order matters: in-flight jumps first, then carried exceptions,
// then Go errors, then everything else.
func (rt *Runtime) translate(r any) func() {
	switch v := r.(type) {
	case jumpPanic:
		return func() { rt.host.InjectJump(v.tag) }
	case *Jump:
		return func() { rt.host.InjectJump(v.Tag) }
	case *HostError:
		return func() { rt.host.Raise(v.exc) }
	case error:
		exc := rt.exceptionFor(v)
		return func() { rt.host.Raise(exc) }
	default:
		exc := rt.host.NewException(rt.builtin("RuntimeError").Raw(),
			fmt.Sprintf("unknown: %T(%v)", r, r))
		return func() { rt.host.Raise(exc) }
	}
}

// RaiseError hands err to the nearest guard for translation into a
// host transfer. Only valid inside a bound method.
func (rt *Runtime) RaiseError(err error) {
	panic(err)
}

// exceptionFor maps a Go error to a host exception instance. Structured
// bridge errors pick a matching builtin class; everything else becomes
// a RuntimeError tagged with the Go type.
func (rt *Runtime) exceptionFor(err error) hb.Handle {
	class := rt.builtin("RuntimeError")
	msg := fmt.Sprintf("%T: %s", err, err.Error())

	if be, ok := err.(*berrors.Error); ok {
		msg = be.Error()
		if d := be.Detail; d != "" {
			msg = d
		}
		switch be.Kind {
		case berrors.KindTypeMismatch:
			class = rt.builtin("TypeError")
		case berrors.KindRange:
			class = rt.builtin("RangeError")
		case berrors.KindMissingArgument, berrors.KindNoBlock, berrors.KindInvalidInput:
			class = rt.builtin("ArgumentError")
		case berrors.KindFrozen:
			class = rt.builtin("FrozenError")
		case berrors.KindNotInitialized, berrors.KindNotAssociated:
			class = rt.builtin("TypeError")
		}
	}
	return rt.host.NewException(class.Raw(), msg)
}
