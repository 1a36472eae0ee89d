package bridge

import (
	"fmt"

	hb "github.com/hostbridge/hostbridge"
)

// Value is a handle bound to its runtime. The zero Value reads as the
// host nil. Values are cheap to copy and only stable across compaction
// when rooted through a container or reachable from the host.
type Value struct {
	rt *Runtime
	h  hb.Handle
}

// Raw returns the underlying handle.
func (v Value) Raw() hb.Handle {
	if v.rt == nil {
		return hb.Nil
	}
	return v.h
}

// Runtime returns the owning runtime, nil for the zero Value.
func (v Value) Runtime() *Runtime { return v.rt }

func (v Value) rebuild(rt *Runtime, h hb.Handle) Value {
	return Value{rt: rt, h: h}
}

// IsNil reports whether v is the host nil.
func (v Value) IsNil() bool { return v.Raw() == hb.Nil }

// Test reports host truthiness: everything but nil and false.
func (v Value) Test() bool { return hb.Truthy(v.Raw()) }

// Kind returns the dynamic kind of v.
func (v Value) Kind() hb.Kind {
	if v.rt == nil {
		return hb.KindNil
	}
	return v.rt.host.KindOf(v.h)
}

// Class returns the class of v.
func (v Value) Class() Class {
	return Class{Module{v.rt.Wrap(v.rt.host.ClassOf(v.Raw()))}}
}

// ClassName returns the class name of v, for diagnostics.
func (v Value) ClassName() string {
	if v.rt == nil {
		return "nil"
	}
	return v.rt.host.ClassName(v.h)
}

// Serial returns the compaction-stable identity of v.
func (v Value) Serial() uint64 {
	if v.rt == nil {
		return uint64(hb.Nil)
	}
	return v.rt.host.Serial(v.h)
}

// IsFrozen reports whether v is immutable.
func (v Value) IsFrozen() bool {
	if v.rt == nil {
		return true
	}
	return v.rt.host.IsFrozen(v.h)
}

// Freeze marks v immutable and returns it.
func (v Value) Freeze() Value {
	v.rt.host.Freeze(v.h)
	return v
}

// CheckFrozen jumps with the host's immutability error if v is frozen.
func (v Value) CheckFrozen() {
	v.rt.call(func() hb.Handle {
		v.rt.host.CheckFrozen(v.h)
		return hb.Nil
	})
}

// Send invokes the named method on v. Jumps on failure.
func (v Value) Send(name string, args ...Value) Value {
	return v.SendWithBlock(name, Proc{}, args...)
}

// SendWithBlock invokes the named method with an attached block. A
// zero block means none. Jumps on failure.
func (v Value) SendWithBlock(name string, block Proc, args ...Value) Value {
	rt := v.rt
	raws := make([]hb.Handle, len(args))
	for i, a := range args {
		raws[i] = a.Raw()
	}
	h := rt.call(func() hb.Handle {
		return rt.host.Call(v.Raw(), rt.intern(name), raws, block.Raw())
	})
	return rt.Wrap(h)
}

// IVarDefined reports whether the named instance variable is set.
func (v Value) IVarDefined(name string) bool {
	return v.rt.host.IVarDefined(v.Raw(), v.rt.intern(name))
}

// IVarGet reads an instance variable; unset variables read as nil.
func (v Value) IVarGet(name string) Value {
	return v.rt.Wrap(v.rt.host.IVarGet(v.Raw(), v.rt.intern(name)))
}

// IVarSet writes an instance variable. Jumps if v is frozen.
func (v Value) IVarSet(name string, val Value) {
	v.rt.call(func() hb.Handle {
		v.rt.host.IVarSet(v.Raw(), v.rt.intern(name), val.Raw())
		return hb.Nil
	})
}

// Clone shallow-copies v through the host, running the class's copy
// hook. Jumps on failure.
func (v Value) Clone() Value {
	h := v.rt.call(func() hb.Handle {
		return v.rt.host.Clone(v.Raw())
	})
	return v.rt.Wrap(h)
}

// DefineSingletonMethod binds fn to v's singleton class. See
// Module.DefineMethod for the handler contract.
func (v Value) DefineSingletonMethod(name string, fn any, specs ...ArgSpec) error {
	rt := v.rt
	sing, err := rt.protectErr(func() hb.Handle {
		return rt.host.SingletonClass(v.Raw())
	})
	if err != nil {
		return err
	}
	return Module{rt.Wrap(sing)}.DefineMethod(name, fn, specs...)
}

// Inspect renders v in quoting form. Jumps on failure.
func (v Value) Inspect() string {
	rt := v.rt
	if rt == nil {
		return "nil"
	}
	h := rt.call(func() hb.Handle {
		return rt.host.Inspect(v.h)
	})
	return string(rt.host.StringBytes(h))
}

// DisplayString renders v in display form. Jumps on failure.
func (v Value) DisplayString() string {
	rt := v.rt
	if rt == nil {
		return ""
	}
	h := rt.call(func() hb.Handle {
		return rt.host.DisplayString(v.h)
	})
	return string(rt.host.StringBytes(h))
}

// Format implements fmt.Formatter: %v renders display form, %#v and %q
// the inspect form.
func (v Value) Format(f fmt.State, verb rune) {
	switch {
	case verb == 'q', verb == 'v' && f.Flag('#'):
		fmt.Fprint(f, v.Inspect())
	default:
		fmt.Fprint(f, v.DisplayString())
	}
}

// expectKind narrows v's kind or jumps with the host's type error.
func (v Value) expectKind(want hb.Kind, name string) {
	got := v.Kind()
	if got == want {
		return
	}
	// typed objects report as plain objects for kind checks
	if want == hb.KindObject && got == hb.KindTypedObject {
		return
	}
	rt := v.rt
	panic(rt.Errorf(rt.builtin("TypeError"),
		"expected a %s but got a %s", name, v.ClassName()))
}

// AsString narrows v to a String. Jumps with TypeError on mismatch.
func (v Value) AsString() String {
	v.expectKind(hb.KindString, "String")
	return String{v}
}

// AsSymbol narrows v to a Symbol. Jumps with TypeError on mismatch.
func (v Value) AsSymbol() Symbol {
	v.expectKind(hb.KindSymbol, "Symbol")
	return Symbol{v}
}

// AsArray narrows v to an Array. Jumps with TypeError on mismatch.
func (v Value) AsArray() Array {
	v.expectKind(hb.KindArray, "Array")
	return Array{v}
}

// AsProc narrows v to a Proc. Jumps with TypeError on mismatch.
func (v Value) AsProc() Proc {
	v.expectKind(hb.KindProc, "Proc")
	return Proc{v}
}

// AsException narrows v to an Exception. Jumps with TypeError on
// mismatch.
func (v Value) AsException() Exception {
	v.expectKind(hb.KindException, "Exception")
	return Exception{v}
}

// AsModule narrows v to a Module. Jumps with TypeError on mismatch.
func (v Value) AsModule() Module {
	if k := v.Kind(); k != hb.KindModule && k != hb.KindClass {
		v.expectKind(hb.KindModule, "Module")
	}
	return Module{v}
}

// AsClass narrows v to a Class. Jumps with TypeError on mismatch.
func (v Value) AsClass() Class {
	v.expectKind(hb.KindClass, "Class")
	return Class{Module{v}}
}

// AsBuffer narrows v to a Buffer. Jumps with TypeError on mismatch.
func (v Value) AsBuffer() Buffer {
	v.expectKind(hb.KindBuffer, "Buffer")
	return Buffer{v}
}
