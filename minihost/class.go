package minihost

import (
	hb "github.com/hostbridge/hostbridge"
)

// newModuleObject allocates a bare module or class object. The caller
// wires name, superclass and class pointers.
func (s *Space) newModuleObject(kind hb.Kind) (hb.Handle, *object) {
	o := &object{
		kind: kind,
		mod: &moduleData{
			super:   hb.Nil,
			consts:  make(map[hb.ID]hb.Handle),
			methods: make(map[hb.ID]hb.RawFunc),
		},
	}
	return s.alloc(o), o
}

// seedBuiltins creates the well-known class graph. Object, Module and
// Class are mutually referential, so they are created bare and wired
// afterwards.
func (s *Space) seedBuiltins() {
	hObject, oObject := s.newModuleObject(hb.KindClass)
	hModule, oModule := s.newModuleObject(hb.KindClass)
	hClass, oClass := s.newModuleObject(hb.KindClass)

	oObject.mod.name = "Object"
	oModule.mod.name = "Module"
	oModule.mod.super = hObject
	oClass.mod.name = "Class"
	oClass.mod.super = hModule
	oObject.class = hClass
	oModule.class = hClass
	oClass.class = hClass

	s.builtins["Object"] = hObject
	s.builtins["Module"] = hModule
	s.builtins["Class"] = hClass

	seed := func(name string, super hb.Handle) hb.Handle {
		h, o := s.newModuleObject(hb.KindClass)
		o.class = hClass
		o.mod.name = name
		o.mod.super = super
		s.builtins[name] = h
		s.mustObj(hObject).mod.consts[s.Intern(name)] = h
		return h
	}
	s.mustObj(hObject).mod.consts[s.Intern("Object")] = hObject
	s.mustObj(hObject).mod.consts[s.Intern("Module")] = hModule
	s.mustObj(hObject).mod.consts[s.Intern("Class")] = hClass

	seed("NilClass", hObject)
	seed("TrueClass", hObject)
	seed("FalseClass", hObject)
	numeric := seed("Numeric", hObject)
	seed("Integer", numeric)
	seed("Float", numeric)
	seed("String", hObject)
	seed("Symbol", hObject)
	seed("Array", hObject)
	seed("Proc", hObject)
	seed("Buffer", hObject)

	exc := seed("Exception", hObject)
	std := seed("StandardError", exc)
	seed("RuntimeError", std)
	seed("TypeError", std)
	seed("ArgumentError", std)
	seed("RangeError", std)
	seed("IndexError", std)
	nameErr := seed("NameError", std)
	seed("NoMethodError", nameErr)
	seed("FrozenError", std)
	seed("LocalJumpError", std)
	seed("Interrupt", exc)

	s.seedMethods()
}

// seedMethods installs the handful of host-side methods the bridge
// relies on: default initializers and exception message plumbing.
func (s *Space) seedMethods() {
	objClass := s.builtins["Object"]
	excClass := s.builtins["Exception"]

	s.DefineMethod(objClass, s.Intern("initialize"), func(self hb.Handle, argv []hb.Handle) hb.Handle {
		return hb.Nil
	})
	// default copy hook only re-checks mutability of the target
	s.DefineMethod(objClass, s.Intern("initialize_copy"), func(self hb.Handle, argv []hb.Handle) hb.Handle {
		s.CheckFrozen(self)
		return self
	})
	s.DefineMethod(objClass, s.Intern("inspect"), func(self hb.Handle, argv []hb.Handle) hb.Handle {
		return s.Inspect(self)
	})
	s.DefineMethod(objClass, s.Intern("to_s"), func(self hb.Handle, argv []hb.Handle) hb.Handle {
		return s.DisplayString(self)
	})
	s.DefineMethod(objClass, s.Intern("frozen?"), func(self hb.Handle, argv []hb.Handle) hb.Handle {
		if s.IsFrozen(self) {
			return hb.True
		}
		return hb.False
	})
	s.DefineMethod(objClass, s.Intern("freeze"), func(self hb.Handle, argv []hb.Handle) hb.Handle {
		return s.Freeze(self)
	})

	s.DefineMethod(excClass, s.Intern("initialize"), func(self hb.Handle, argv []hb.Handle) hb.Handle {
		if len(argv) > 0 {
			s.mustObj(self).msg = s.render(argv[0], false)
		}
		return hb.Nil
	})
	s.DefineMethod(excClass, s.Intern("message"), func(self hb.Handle, argv []hb.Handle) hb.Handle {
		return s.NewString([]byte(s.ExceptionMessage(self)))
	})
	s.DefineAllocFunc(excClass, func(class hb.Handle) hb.Handle {
		return s.alloc(&object{kind: hb.KindException, class: class})
	})
}

// Builtin returns a well-known class by name.
func (s *Space) Builtin(name string) (hb.Handle, bool) {
	h, ok := s.builtins[name]
	return h, ok
}

// builtin fetches a class seeded at construction; absence is a bug in
// the space itself.
func (s *Space) builtin(name string) hb.Handle {
	h, ok := s.builtins[name]
	if !ok {
		panic("minihost: missing builtin " + name)
	}
	return h
}

// moduleObj narrows h to a class or module or raises TypeError.
func (s *Space) moduleObj(h hb.Handle) *object {
	o := s.obj(h)
	if o == nil || o.mod == nil {
		s.raiseBuiltin("TypeError", "expected a Class or Module but got a %s", s.KindOf(h))
	}
	return o
}

// qualify joins a namespace path with a leaf name.
func (s *Space) qualify(under hb.Handle, name string) string {
	if under == s.builtin("Object") {
		return name
	}
	outer := s.moduleObj(under).mod.name
	if outer == "" {
		return name
	}
	return outer + "::" + name
}

func (s *Space) DefineModule(under hb.Handle, name hb.ID) hb.Handle {
	ns := s.moduleObj(under)
	if h, ok := ns.mod.consts[name]; ok {
		o := s.obj(h)
		if o == nil || o.kind != hb.KindModule {
			s.raiseBuiltin("TypeError", "%s is not a module", s.IDName(name))
		}
		return h
	}
	h, o := s.newModuleObject(hb.KindModule)
	o.class = s.builtin("Module")
	o.mod.name = s.qualify(under, s.IDName(name))
	s.ConstSet(under, name, h)
	return h
}

func (s *Space) NewModule() hb.Handle {
	h, o := s.newModuleObject(hb.KindModule)
	o.class = s.builtin("Module")
	return h
}

func (s *Space) DefineClass(under hb.Handle, name hb.ID, super hb.Handle) hb.Handle {
	ns := s.moduleObj(under)
	if super == hb.Nil {
		super = s.builtin("Object")
	}
	sup := s.moduleObj(super)
	if sup.kind != hb.KindClass {
		s.raiseBuiltin("TypeError", "superclass must be a Class")
	}
	if h, ok := ns.mod.consts[name]; ok {
		o := s.obj(h)
		if o == nil || o.kind != hb.KindClass {
			s.raiseBuiltin("TypeError", "%s is not a class", s.IDName(name))
		}
		if o.mod.super != super {
			s.raiseBuiltin("TypeError", "superclass mismatch for class %s", s.IDName(name))
		}
		return h
	}
	h, o := s.newModuleObject(hb.KindClass)
	o.class = s.builtin("Class")
	o.mod.name = s.qualify(under, s.IDName(name))
	o.mod.super = super
	s.ConstSet(under, name, h)
	return h
}

func (s *Space) NewClass(super hb.Handle) hb.Handle {
	if super == hb.Nil {
		super = s.builtin("Object")
	}
	s.moduleObj(super)
	h, o := s.newModuleObject(hb.KindClass)
	o.class = s.builtin("Class")
	o.mod.super = super
	return h
}

func (s *Space) Superclass(h hb.Handle) hb.Handle {
	return s.moduleObj(h).mod.super
}

// SingletonClass returns the per-object class of h, creating it on
// first use. Immediates have no singleton class here.
func (s *Space) SingletonClass(h hb.Handle) hb.Handle {
	o := s.obj(h)
	if o == nil {
		s.raiseBuiltin("TypeError", "can't define singleton for a %s", s.KindOf(h))
	}
	if o.singleton != 0 {
		return o.singleton
	}
	sh, so := s.newModuleObject(hb.KindClass)
	so.class = s.builtin("Class")
	so.mod.super = o.class
	so.mod.isSingleton = true
	o.singleton = sh
	return sh
}

func (s *Space) DefineMethod(class hb.Handle, name hb.ID, fn hb.RawFunc) {
	s.moduleObj(class).mod.methods[name] = fn
}

func (s *Space) DefineAllocFunc(class hb.Handle, fn hb.AllocFunc) {
	o := s.moduleObj(class)
	if o.kind != hb.KindClass {
		s.raiseBuiltin("TypeError", "allocator requires a Class")
	}
	o.mod.alloc = fn
}

func (s *Space) ConstDefined(mod hb.Handle, name hb.ID) bool {
	o := s.moduleObj(mod)
	if _, ok := o.mod.consts[name]; ok {
		return true
	}
	// constants are visible through the superclass chain and Object
	for sup := o.mod.super; sup != hb.Nil; sup = s.moduleObj(sup).mod.super {
		if _, ok := s.moduleObj(sup).mod.consts[name]; ok {
			return true
		}
	}
	if mod != s.builtin("Object") && o.kind == hb.KindModule {
		return s.ConstDefined(s.builtin("Object"), name)
	}
	return false
}

func (s *Space) ConstGet(mod hb.Handle, name hb.ID) hb.Handle {
	o := s.moduleObj(mod)
	if v, ok := o.mod.consts[name]; ok {
		return v
	}
	for sup := o.mod.super; sup != hb.Nil; sup = s.moduleObj(sup).mod.super {
		if v, ok := s.moduleObj(sup).mod.consts[name]; ok {
			return v
		}
	}
	if o.kind == hb.KindModule {
		root := s.moduleObj(s.builtin("Object"))
		if v, ok := root.mod.consts[name]; ok {
			return v
		}
	}
	s.raiseBuiltin("NameError", "uninitialized constant %s", s.IDName(name))
	return hb.Nil // unreachable
}

func (s *Space) ConstSet(mod hb.Handle, name hb.ID, v hb.Handle) {
	o := s.moduleObj(mod)
	s.CheckFrozen(mod)
	o.mod.consts[name] = v
}
