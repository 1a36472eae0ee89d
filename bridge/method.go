package bridge

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	hb "github.com/hostbridge/hostbridge"
	berrors "github.com/hostbridge/hostbridge/errors"
)

// Stage is where in a method's parameter sequence an ArgSpec may
// appear. Specs must be supplied in non-decreasing stage order.
type Stage uint8

const (
	StageReceiver Stage = iota
	StageRequired
	StageOptional
	StageSplat
	StageBlock
)

// ArgSpec describes one parameter of a bound method: what Go type it
// produces and how to pull it from the incoming call. Implementations
// live in package args; typed-object bindings add their own receiver
// spec.
type ArgSpec interface {
	// GoType is the Go parameter type the spec produces.
	GoType() reflect.Type

	// Stage reports the spec's position class for ordering validation.
	Stage() Stage

	// Describe names the spec for diagnostics.
	Describe() string

	// Pull consumes input from the cursor and produces the parameter
	// value. Errors surface to the caller as host exceptions.
	Pull(c *Cursor) (reflect.Value, error)
}

// Cursor is the left-to-right consumption state of one incoming call.
// Each positional spec takes the next unconsumed argument; nothing is
// ever consumed twice.
type Cursor struct {
	rt   *Runtime
	self hb.Handle
	argv []hb.Handle
	pos  int
}

// Runtime returns the runtime the call arrived on.
func (c *Cursor) Runtime() *Runtime { return c.rt }

// Self returns the receiver.
func (c *Cursor) Self() Value { return c.rt.Wrap(c.self) }

// Next consumes and returns the next positional argument.
func (c *Cursor) Next() (Value, bool) {
	if c.pos >= len(c.argv) {
		return Value{}, false
	}
	v := c.rt.Wrap(c.argv[c.pos])
	c.pos++
	return v, true
}

// Rest consumes and returns all remaining positional arguments.
func (c *Cursor) Rest() []Value {
	out := make([]Value, 0, len(c.argv)-c.pos)
	for c.pos < len(c.argv) {
		out = append(out, c.rt.Wrap(c.argv[c.pos]))
		c.pos++
	}
	return out
}

// Remaining reports how many positional arguments are unconsumed.
func (c *Cursor) Remaining() int { return len(c.argv) - c.pos }

// Block returns the block attached to the current call, if any.
func (c *Cursor) Block() (Proc, bool) {
	h, ok := c.rt.host.CurrentBlock()
	if !ok {
		return Proc{}, false
	}
	return Proc{c.rt.Wrap(h)}, true
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// validateSpecs checks the static shape of a registration: spec
// ordering, arity against the handler signature, and parameter type
// agreement.
func validateSpecs(fnt reflect.Type, specs []ArgSpec) error {
	if fnt.Kind() != reflect.Func {
		return berrors.InvalidInput(berrors.PhaseRegister,
			fmt.Sprintf("handler must be a func, got %s", fnt))
	}
	if fnt.IsVariadic() {
		return berrors.Unsupported(berrors.PhaseRegister, "variadic handlers; use a splat spec")
	}
	if fnt.NumIn() != len(specs) {
		return berrors.InvalidInput(berrors.PhaseRegister,
			fmt.Sprintf("handler takes %d parameters but %d specs were given",
				fnt.NumIn(), len(specs)))
	}

	last := StageReceiver
	splats, blocks := 0, 0
	for i, sp := range specs {
		st := sp.Stage()
		if st < last {
			return berrors.InvalidInput(berrors.PhaseRegister,
				fmt.Sprintf("%s is out of order at position %d", sp.Describe(), i))
		}
		last = st
		switch st {
		case StageReceiver:
			if i != 0 {
				return berrors.InvalidInput(berrors.PhaseRegister,
					"receiver spec must come first")
			}
		case StageSplat:
			splats++
		case StageBlock:
			blocks++
		}
		if !sp.GoType().AssignableTo(fnt.In(i)) {
			return berrors.TypeMismatch(berrors.PhaseRegister,
				[]string{sp.Describe()}, fnt.In(i).String(), sp.GoType().String())
		}
	}
	if splats > 1 {
		return berrors.InvalidInput(berrors.PhaseRegister, "more than one splat spec")
	}
	if blocks > 1 {
		return berrors.InvalidInput(berrors.PhaseRegister, "more than one block spec")
	}

	switch fnt.NumOut() {
	case 0, 1:
	case 2:
		if !fnt.Out(1).Implements(errType) {
			return berrors.InvalidInput(berrors.PhaseRegister,
				"second return value must be an error")
		}
	default:
		return berrors.InvalidInput(berrors.PhaseRegister,
			fmt.Sprintf("handler returns %d values, at most 2 supported", fnt.NumOut()))
	}
	return nil
}

// buildTrampoline adapts fn to the host's fixed calling convention.
// The returned RawFunc parses arguments through the specs, invokes fn,
// converts the result, and guards the whole exchange.
func (rt *Runtime) buildTrampoline(fn any, specs []ArgSpec) (hb.RawFunc, error) {
	fnv := reflect.ValueOf(fn)
	fnt := fnv.Type()
	if err := validateSpecs(fnt, specs); err != nil {
		return nil, err
	}

	errOnly := fnt.NumOut() == 1 && fnt.Out(0).Implements(errType)

	return func(self hb.Handle, argv []hb.Handle) hb.Handle {
		return rt.guard(func() hb.Handle {
			c := &Cursor{rt: rt, self: self, argv: argv}
			in := make([]reflect.Value, len(specs))
			for i, sp := range specs {
				rv, err := sp.Pull(c)
				if err != nil {
					panic(err)
				}
				in[i] = rv
			}
			if c.Remaining() > 0 {
				panic(rt.Errorf(rt.builtin("ArgumentError"),
					"wrong number of arguments (given %d, expected %d)",
					len(argv), c.pos))
			}

			out := fnv.Call(in)
			switch {
			case len(out) == 0:
				return hb.Nil
			case errOnly:
				if !out[0].IsNil() {
					panic(out[0].Interface().(error))
				}
				return hb.Nil
			default:
				if len(out) == 2 && !out[1].IsNil() {
					panic(out[1].Interface().(error))
				}
				res, err := intoReflect(rt, out[0])
				if err != nil {
					panic(err)
				}
				return res.Raw()
			}
		})
	}, nil
}

// DefineMethod binds fn as an instance method on m. The handler is a
// plain Go function; specs describe, position by position, how its
// parameters are produced from the incoming call. A handler may return
// nothing, a convertible value, an error, or a value and an error; a
// non-nil error is translated and raised on the host side.
func (m Module) DefineMethod(name string, fn any, specs ...ArgSpec) error {
	rt := m.rt
	raw, err := rt.buildTrampoline(fn, specs)
	if err != nil {
		return berrors.Registration(m.Name(), name, err)
	}
	_, err = rt.protectErr(func() hb.Handle {
		rt.host.DefineMethod(m.Raw(), rt.intern(name), raw)
		return hb.Nil
	})
	if err != nil {
		return berrors.Registration(m.Name(), name, err)
	}
	rt.log.Debug("method bound",
		zap.String("owner", m.Name()),
		zap.String("method", name),
		zap.Int("specs", len(specs)))
	return nil
}

// DefineClassMethod binds fn on c's singleton class, making it callable
// on the class itself.
func (c Class) DefineClassMethod(name string, fn any, specs ...ArgSpec) error {
	return c.Value.DefineSingletonMethod(name, fn, specs...)
}
