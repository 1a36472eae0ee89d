package bridge

import (
	hb "github.com/hostbridge/hostbridge"
)

// Ref is any runtime-bound wrapper. All leaf types and Value itself
// satisfy it.
type Ref interface {
	Raw() hb.Handle
	Runtime() *Runtime
}

// RefOf constrains a wrapper type that can be rebuilt around a
// relocated handle, which is what the lifetime containers need.
type RefOf[T any] interface {
	Ref
	rebuild(rt *Runtime, h hb.Handle) T
}

// The leaf wrappers below embed Value as an exported field, so a
// composite literal like String{v} compiles for any Value. That form
// performs no kind check and is meant for code that has already proven
// the kind; the checked entry points are the As* methods and From.

// String wraps a host string.
type String struct {
	Value
}

func (s String) rebuild(rt *Runtime, h hb.Handle) String {
	return String{Value{rt: rt, h: h}}
}

// Bytes returns a copy of the string contents.
func (s String) Bytes() []byte {
	raw := s.rt.host.StringBytes(s.Raw())
	return append([]byte(nil), raw...)
}

// Text returns the string contents.
func (s String) Text() string {
	return string(s.rt.host.StringBytes(s.Raw()))
}

// Len returns the byte length.
func (s String) Len() int { return s.rt.host.StringLen(s.Raw()) }

// Append mutates the string in place. Jumps if frozen.
func (s String) Append(text string) String {
	s.rt.call(func() hb.Handle {
		return s.rt.host.StringAppend(s.Raw(), []byte(text))
	})
	return s
}

// Symbol wraps an interned host symbol.
type Symbol struct {
	Value
}

func (s Symbol) rebuild(rt *Runtime, h hb.Handle) Symbol {
	return Symbol{Value{rt: rt, h: h}}
}

// Name returns the symbol's identifier text.
func (s Symbol) Name() string {
	return s.rt.host.IDName(s.rt.host.SymbolID(s.Raw()))
}

// Array wraps a host array.
type Array struct {
	Value
}

func (a Array) rebuild(rt *Runtime, h hb.Handle) Array {
	return Array{Value{rt: rt, h: h}}
}

func (a Array) Len() int { return a.rt.host.ArrayLen(a.Raw()) }

// Get returns the element at i. Jumps on out-of-bounds.
func (a Array) Get(i int) Value {
	h := a.rt.call(func() hb.Handle {
		return a.rt.host.ArrayGet(a.Raw(), i)
	})
	return a.rt.Wrap(h)
}

// Push appends v. Jumps if frozen.
func (a Array) Push(v Value) Array {
	a.rt.call(func() hb.Handle {
		return a.rt.host.ArrayPush(a.Raw(), v.Raw())
	})
	return a
}

// Pop removes and returns the last element, nil when empty. Jumps if
// frozen.
func (a Array) Pop() Value {
	h := a.rt.call(func() hb.Handle {
		return a.rt.host.ArrayPop(a.Raw())
	})
	return a.rt.Wrap(h)
}

// Values snapshots the elements.
func (a Array) Values() []Value {
	n := a.Len()
	out := make([]Value, n)
	for i := 0; i < n; i++ {
		out[i] = a.Get(i)
	}
	return out
}

// Proc wraps a host procedure. The zero Proc means "no block".
type Proc struct {
	Value
}

func (p Proc) rebuild(rt *Runtime, h hb.Handle) Proc {
	return Proc{Value{rt: rt, h: h}}
}

// Call invokes the procedure. Jumps on failure.
func (p Proc) Call(args ...Value) Value {
	raws := make([]hb.Handle, len(args))
	for i, a := range args {
		raws[i] = a.Raw()
	}
	h := p.rt.call(func() hb.Handle {
		return p.rt.host.ProcCall(p.Raw(), raws)
	})
	return p.rt.Wrap(h)
}

// Exception wraps a host exception instance.
type Exception struct {
	Value
}

func (e Exception) rebuild(rt *Runtime, h hb.Handle) Exception {
	return Exception{Value{rt: rt, h: h}}
}

// Message returns the exception message.
func (e Exception) Message() string {
	return e.rt.host.ExceptionMessage(e.Raw())
}

// Module wraps a host module (or class; Class embeds Module).
type Module struct {
	Value
}

func (m Module) rebuild(rt *Runtime, h hb.Handle) Module {
	return Module{Value{rt: rt, h: h}}
}

// Name returns the module's name path.
func (m Module) Name() string { return m.rt.host.ClassName(m.Raw()) }

// DefineModuleUnder defines (or reopens) a module namespaced under m.
func (m Module) DefineModuleUnder(name string) (Module, error) {
	rt := m.rt
	h, err := rt.protectErr(func() hb.Handle {
		return rt.host.DefineModule(m.Raw(), rt.intern(name))
	})
	if err != nil {
		return Module{}, err
	}
	return Module{rt.Wrap(h)}, nil
}

// DefineClassUnder defines (or reopens) a class namespaced under m. A
// zero super means the root class.
func (m Module) DefineClassUnder(name string, super Class) (Class, error) {
	rt := m.rt
	h, err := rt.protectErr(func() hb.Handle {
		return rt.host.DefineClass(m.Raw(), rt.intern(name), super.Raw())
	})
	if err != nil {
		return Class{}, err
	}
	return Class{Module{rt.Wrap(h)}}, nil
}

// ConstDefined reports whether the named constant is visible from m.
func (m Module) ConstDefined(name string) bool {
	return m.rt.host.ConstDefined(m.Raw(), m.rt.intern(name))
}

// ConstGet reads a constant. Jumps if missing.
func (m Module) ConstGet(name string) Value {
	h := m.rt.call(func() hb.Handle {
		return m.rt.host.ConstGet(m.Raw(), m.rt.intern(name))
	})
	return m.rt.Wrap(h)
}

// DefineConstant sets a constant under m.
func (m Module) DefineConstant(name string, v Value) error {
	rt := m.rt
	_, err := rt.protectErr(func() hb.Handle {
		rt.host.ConstSet(m.Raw(), rt.intern(name), v.Raw())
		return hb.Nil
	})
	return err
}

// Class wraps a host class.
type Class struct {
	Module
}

func (c Class) rebuild(rt *Runtime, h hb.Handle) Class {
	return Class{Module{Value{rt: rt, h: h}}}
}

// Superclass returns the parent class.
func (c Class) Superclass() Class {
	return Class{Module{c.rt.Wrap(c.rt.host.Superclass(c.Raw()))}}
}

// New allocates and initializes an instance. Jumps on failure.
func (c Class) New(args ...Value) Value {
	rt := c.rt
	raws := make([]hb.Handle, len(args))
	for i, a := range args {
		raws[i] = a.Raw()
	}
	h := rt.call(func() hb.Handle {
		return rt.host.NewInstance(c.Raw(), raws)
	})
	return rt.Wrap(h)
}

// Allocate produces an uninitialized instance. Jumps on failure.
func (c Class) Allocate() Value {
	h := c.rt.call(func() hb.Handle {
		return c.rt.host.Allocate(c.Raw())
	})
	return c.rt.Wrap(h)
}

// IsSubclassOf reports whether c is other or inherits from it.
func (c Class) IsSubclassOf(other Class) bool {
	rt := c.rt
	for h := c.Raw(); h != hb.Nil; h = rt.host.Superclass(h) {
		if h == other.Raw() {
			return true
		}
	}
	return false
}

// Buffer wraps a host byte buffer.
type Buffer struct {
	Value
}

func (b Buffer) rebuild(rt *Runtime, h hb.Handle) Buffer {
	return Buffer{Value{rt: rt, h: h}}
}

// Bytes returns the live backing bytes. Jumps if the buffer is locked.
func (b Buffer) Bytes() []byte {
	var out []byte
	b.rt.call(func() hb.Handle {
		out = b.rt.host.BufferBytes(b.Raw())
		return hb.Nil
	})
	return out
}

// Len returns the buffer size in bytes.
func (b Buffer) Len() int { return len(b.Bytes()) }

// Resize reallocates the buffer. Jumps if locked or frozen.
func (b Buffer) Resize(n int) {
	b.rt.call(func() hb.Handle {
		b.rt.host.BufferResize(b.Raw(), n)
		return hb.Nil
	})
}

// Lock marks the buffer externally held for the duration of fn,
// refusing resizes. Jumps if already locked.
func (b Buffer) Lock(fn func(data []byte)) {
	b.rt.call(func() hb.Handle {
		b.rt.host.BufferLock(b.Raw())
		return hb.Nil
	})
	defer b.rt.call(func() hb.Handle {
		b.rt.host.BufferUnlock(b.Raw())
		return hb.Nil
	})
	fn(b.rt.host.BufferBytes(b.Raw()))
}
