package bridge

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	hb "github.com/hostbridge/hostbridge"
)

var (
	nopOnce   sync.Once
	nopShared *zap.Logger
)

func nopLogger() *zap.Logger {
	nopOnce.Do(func() {
		nopShared = zap.NewNop()
	})
	return nopShared
}

// Runtime wraps one Host and is the entry point of the bridge. A
// Runtime is cheap; all state lives in the host.
type Runtime struct {
	host hb.Host
	log  *zap.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used for registration reporting.
func WithLogger(log *zap.Logger) Option {
	return func(rt *Runtime) {
		if log != nil {
			rt.log = log
		}
	}
}

// New wraps host in a Runtime.
func New(host hb.Host, opts ...Option) *Runtime {
	rt := &Runtime{host: host, log: nopLogger()}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Host exposes the underlying ABI surface for operations the bridge
// does not wrap.
func (rt *Runtime) Host() hb.Host { return rt.host }

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() *zap.Logger { return rt.log }

// Wrap turns a raw handle into a Value bound to this runtime.
func (rt *Runtime) Wrap(h hb.Handle) Value {
	return Value{rt: rt, h: h}
}

// NilValue, TrueValue and FalseValue wrap the immediate constants.
func (rt *Runtime) NilValue() Value   { return rt.Wrap(hb.Nil) }
func (rt *Runtime) TrueValue() Value  { return rt.Wrap(hb.True) }
func (rt *Runtime) FalseValue() Value { return rt.Wrap(hb.False) }

// Int wraps a fixnum.
func (rt *Runtime) Int(n int64) Value { return rt.Wrap(hb.FromFixnum(n)) }

// Float allocates a host float.
func (rt *Runtime) Float(f float64) Value { return rt.Wrap(rt.host.NewFloat(f)) }

// Str allocates a mutable host string.
func (rt *Runtime) Str(s string) String {
	return String{rt.Wrap(rt.host.NewString([]byte(s)))}
}

// FrozenStr returns the interned, frozen host string for s. Use it for
// literals that cross the boundary repeatedly.
func (rt *Runtime) FrozenStr(s string) String {
	return String{rt.Wrap(rt.host.InternString([]byte(s)))}
}

// Sym returns the symbol for name.
func (rt *Runtime) Sym(name string) Symbol {
	return Symbol{rt.Wrap(rt.host.SymbolOf(rt.host.Intern(name)))}
}

// NewArray allocates a host array holding vs.
func (rt *Runtime) NewArray(vs ...Value) Array {
	elems := make([]hb.Handle, len(vs))
	for i, v := range vs {
		elems[i] = v.Raw()
	}
	return Array{rt.Wrap(rt.host.NewArray(elems))}
}

// NewBuffer allocates a zeroed host buffer.
func (rt *Runtime) NewBuffer(n int) Buffer {
	return Buffer{rt.Wrap(rt.host.NewBuffer(n))}
}

// Builtin returns a well-known class by name.
func (rt *Runtime) Builtin(name string) (Class, bool) {
	h, ok := rt.host.Builtin(name)
	if !ok {
		return Class{}, false
	}
	return Class{Module{rt.Wrap(h)}}, true
}

// builtin fetches a class every conforming host must seed.
func (rt *Runtime) builtin(name string) Class {
	c, ok := rt.Builtin(name)
	if !ok {
		panic(fmt.Sprintf("bridge: host does not provide builtin %s", name))
	}
	return c
}

// ObjectClass returns the root class.
func (rt *Runtime) ObjectClass() Class { return rt.builtin("Object") }

// DefineModule defines (or reopens) a module under the root namespace.
func (rt *Runtime) DefineModule(name string) (Module, error) {
	return rt.ObjectClass().DefineModuleUnder(name)
}

// DefineClass defines (or reopens) a class under the root namespace.
// A zero super means the root class.
func (rt *Runtime) DefineClass(name string, super Class) (Class, error) {
	return rt.ObjectClass().DefineClassUnder(name, super)
}

// DefineGlobalFunction binds fn so it is callable from anywhere in the
// host: the method lands on the root class.
func (rt *Runtime) DefineGlobalFunction(name string, fn any, specs ...ArgSpec) error {
	return rt.ObjectClass().DefineMethod(name, fn, specs...)
}

// NewModule creates an anonymous module.
func (rt *Runtime) NewModule() Module {
	return Module{rt.Wrap(rt.host.NewModule())}
}

// NewClass creates an anonymous class. A zero super means the root
// class.
func (rt *Runtime) NewClass(super Class) (Class, error) {
	h, err := rt.protectErr(func() hb.Handle {
		return rt.host.NewClass(super.Raw())
	})
	if err != nil {
		return Class{}, err
	}
	return Class{Module{rt.Wrap(h)}}, nil
}

// NewProc wraps fn as a host procedure. fn follows the bound-method
// contract: it runs guarded, and whatever it raises is translated. The
// handles in captures stay live and relocated alongside the proc.
func (rt *Runtime) NewProc(fn func(args []Value) Value, captures ...Value) Proc {
	raws := make([]hb.Handle, len(captures))
	for i, c := range captures {
		raws[i] = c.Raw()
	}
	raw := func(self hb.Handle, argv []hb.Handle) hb.Handle {
		return rt.guard(func() hb.Handle {
			in := make([]Value, len(argv))
			for i, a := range argv {
				in[i] = rt.Wrap(a)
			}
			return fn(in).Raw()
		})
	}
	return Proc{rt.Wrap(rt.host.NewProc(raw, raws))}
}

// GCStart forces a collection on the host.
func (rt *Runtime) GCStart(compact bool) { rt.host.GCStart(compact) }

// WithoutToken runs fn with the host's execution token released, for
// long native work that must not stall other host activity. The host
// may call unblock to request early return. fn must not touch handles
// or call any bridge or host operation.
func (rt *Runtime) WithoutToken(fn func(), unblock func()) {
	rt.host.ReleaseToken(fn, unblock)
}

// intern is a shorthand for host identifier interning.
func (rt *Runtime) intern(name string) hb.ID { return rt.host.Intern(name) }
