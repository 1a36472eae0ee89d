package minihost

import (
	hb "github.com/hostbridge/hostbridge"
)

// dispatchClass is where method lookup starts: the singleton class when
// the receiver has one, its class otherwise.
func (s *Space) dispatchClass(recv hb.Handle) hb.Handle {
	if o := s.obj(recv); o != nil && o.singleton != 0 {
		return o.singleton
	}
	return s.ClassOf(recv)
}

// lookupMethod walks the superclass chain from class.
func (s *Space) lookupMethod(class hb.Handle, name hb.ID) hb.RawFunc {
	for c := class; c != hb.Nil && c != 0; c = s.moduleObj(c).mod.super {
		if fn, ok := s.moduleObj(c).mod.methods[name]; ok {
			return fn
		}
	}
	return nil
}

// Call invokes the method name on recv. The block, Nil for none, is
// visible to the callee through CurrentBlock for the duration of the
// call.
func (s *Space) Call(recv hb.Handle, name hb.ID, args []hb.Handle, block hb.Handle) hb.Handle {
	fn := s.lookupMethod(s.dispatchClass(recv), name)
	if fn == nil {
		s.raiseBuiltin("NoMethodError", "undefined method '%s' for an instance of %s",
			s.IDName(name), s.ClassName(recv))
	}
	s.blockStack = append(s.blockStack, block)
	defer func() {
		s.blockStack = s.blockStack[:len(s.blockStack)-1]
	}()
	return fn(recv, args)
}

// lookupAlloc walks the superclass chain for an allocator.
func (s *Space) lookupAlloc(class hb.Handle) hb.AllocFunc {
	for c := class; c != hb.Nil && c != 0; c = s.moduleObj(c).mod.super {
		if fn := s.moduleObj(c).mod.alloc; fn != nil {
			return fn
		}
	}
	return nil
}

// Allocate produces an uninitialized instance without running any
// visible constructor.
func (s *Space) Allocate(class hb.Handle) hb.Handle {
	o := s.moduleObj(class)
	if o.kind != hb.KindClass {
		s.raiseBuiltin("TypeError", "can't allocate an instance of a Module")
	}
	if fn := s.lookupAlloc(class); fn != nil {
		return fn(class)
	}
	return s.alloc(&object{kind: hb.KindObject, class: class})
}

// NewInstance is allocate followed by initialize; the two stay
// independently reachable for hosts that split them.
func (s *Space) NewInstance(class hb.Handle, args []hb.Handle) hb.Handle {
	h := s.Allocate(class)
	s.Call(h, s.Intern("initialize"), args, hb.Nil)
	return h
}

// Clone shallow-copies h and runs the copy hook. The copy starts
// unfrozen; typed data is left empty for the hook to fill.
func (s *Space) Clone(h hb.Handle) hb.Handle {
	src := s.obj(h)
	if src == nil {
		return h // immediates copy by value
	}
	dup := &object{
		kind:  src.kind,
		class: src.class,
		fval:  src.fval,
		sym:   src.sym,
		msg:   src.msg,
	}
	if src.str != nil {
		dup.str = append([]byte(nil), src.str...)
	}
	if src.elems != nil {
		dup.elems = append([]hb.Handle(nil), src.elems...)
	}
	if src.ivars != nil {
		dup.ivars = make(map[hb.ID]hb.Handle, len(src.ivars))
		for k, v := range src.ivars {
			dup.ivars[k] = v
		}
	}
	if src.buf != nil {
		dup.buf = &bufferData{data: append([]byte(nil), src.buf.data...)}
	}
	if src.typed != nil {
		dup.typed = &typedSlot{dt: src.typed.dt}
	}
	if src.mod != nil {
		s.raiseBuiltin("TypeError", "can't clone a %s", s.ClassName(h))
	}
	out := s.alloc(dup)
	s.Call(out, s.Intern("initialize_copy"), []hb.Handle{h}, hb.Nil)
	return out
}

// CurrentBlock returns the block attached to the innermost active call.
func (s *Space) CurrentBlock() (hb.Handle, bool) {
	if n := len(s.blockStack); n > 0 && s.blockStack[n-1] != hb.Nil {
		return s.blockStack[n-1], true
	}
	return hb.Nil, false
}

// NewProc wraps fn as a host procedure. captures stay live and are
// relocated with the proc.
func (s *Space) NewProc(fn hb.RawFunc, captures []hb.Handle) hb.Handle {
	cp := append([]hb.Handle(nil), captures...)
	return s.alloc(&object{
		kind:  hb.KindProc,
		class: s.builtin("Proc"),
		proc:  &procData{fn: fn, captures: cp},
	})
}

func (s *Space) ProcCall(proc hb.Handle, args []hb.Handle) hb.Handle {
	o := s.obj(proc)
	if o == nil || o.kind != hb.KindProc {
		s.raiseBuiltin("TypeError", "expected a Proc but got a %s", s.KindOf(proc))
	}
	return o.proc.fn(proc, args)
}
