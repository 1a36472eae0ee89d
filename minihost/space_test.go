package minihost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hb "github.com/hostbridge/hostbridge"
)

// protectErr runs fn under the jump barrier and returns the raised
// exception, requiring that fn did raise.
func protectErr(t *testing.T, s *Space, fn func() hb.Handle) hb.Handle {
	t.Helper()
	_, tag := s.Protect(fn)
	require.Equal(t, hb.TagRaise, tag, "expected a raise")
	exc := s.PendingException()
	s.SetPendingException(hb.Nil)
	return exc
}

func TestInterning(t *testing.T) {
	s := New()

	a := s.Intern("length")
	b := s.Intern("length")
	assert.Equal(t, a, b)
	assert.Equal(t, "length", s.IDName(a))
	assert.NotEqual(t, a, s.Intern("size"))

	sym := s.SymbolOf(a)
	assert.Equal(t, sym, s.SymbolOf(a))
	assert.Equal(t, hb.KindSymbol, s.KindOf(sym))
	assert.Equal(t, a, s.SymbolID(sym))
	assert.True(t, s.IsFrozen(sym))
}

func TestStrings(t *testing.T) {
	s := New()

	src := []byte("hello")
	str := s.NewString(src)
	src[0] = 'X' // the space owns its copy
	assert.Equal(t, "hello", string(s.StringBytes(str)))
	assert.Equal(t, 5, s.StringLen(str))

	s.StringAppend(str, []byte(" world"))
	assert.Equal(t, "hello world", string(s.StringBytes(str)))

	frozen := s.InternString([]byte("shared"))
	assert.True(t, s.IsFrozen(frozen))
	assert.Equal(t, frozen, s.InternString([]byte("shared")))

	exc := protectErr(t, s, func() hb.Handle {
		return s.StringAppend(frozen, []byte("!"))
	})
	assert.Equal(t, "FrozenError", s.ClassName(s.ClassOf(exc)))
}

func TestArrays(t *testing.T) {
	s := New()

	arr := s.NewArray([]hb.Handle{hb.FromFixnum(1), hb.True})
	assert.Equal(t, 2, s.ArrayLen(arr))
	assert.Equal(t, hb.FromFixnum(1), s.ArrayGet(arr, 0))

	s.ArrayPush(arr, hb.Nil)
	assert.Equal(t, 3, s.ArrayLen(arr))
	assert.Equal(t, hb.Nil, s.ArrayPop(arr))
	assert.Equal(t, 2, s.ArrayLen(arr))

	exc := protectErr(t, s, func() hb.Handle {
		return s.ArrayGet(arr, 99)
	})
	assert.Equal(t, "IndexError", s.ClassName(s.ClassOf(exc)))
}

func TestDefineClassAndCall(t *testing.T) {
	s := New()
	root := must(s.Builtin("Object"))

	cls := s.DefineClass(root, s.Intern("Greeter"), hb.Nil)
	assert.Equal(t, "Greeter", s.ClassName(cls))
	assert.Equal(t, root, s.Superclass(cls))

	s.DefineMethod(cls, s.Intern("greet"), func(self hb.Handle, argv []hb.Handle) hb.Handle {
		return s.NewString(append([]byte("hi "), s.StringBytes(argv[0])...))
	})

	obj := s.NewInstance(cls, nil)
	assert.Equal(t, cls, s.ClassOf(obj))
	assert.Equal(t, hb.KindObject, s.KindOf(obj))

	out := s.Call(obj, s.Intern("greet"), []hb.Handle{s.NewString([]byte("there"))}, hb.Nil)
	assert.Equal(t, "hi there", string(s.StringBytes(out)))

	exc := protectErr(t, s, func() hb.Handle {
		return s.Call(obj, s.Intern("missing"), nil, hb.Nil)
	})
	assert.Equal(t, "NoMethodError", s.ClassName(s.ClassOf(exc)))
	assert.Contains(t, s.ExceptionMessage(exc), "missing")
	assert.Contains(t, s.ExceptionMessage(exc), "Greeter")
}

func TestRedefiningClassChecksSuperclass(t *testing.T) {
	s := New()
	root := must(s.Builtin("Object"))
	std := must(s.Builtin("StandardError"))

	cls := s.DefineClass(root, s.Intern("Thing"), hb.Nil)
	again := s.DefineClass(root, s.Intern("Thing"), hb.Nil)
	assert.Equal(t, cls, again)

	exc := protectErr(t, s, func() hb.Handle {
		return s.DefineClass(root, s.Intern("Thing"), std)
	})
	assert.Equal(t, "TypeError", s.ClassName(s.ClassOf(exc)))
}

func TestExceptionInstances(t *testing.T) {
	s := New()
	runtimeErr := must(s.Builtin("RuntimeError"))

	// direct construction bypasses initialize
	direct := s.NewException(runtimeErr, "boom")
	assert.Equal(t, "boom", s.ExceptionMessage(direct))
	assert.Equal(t, hb.KindException, s.KindOf(direct))

	// visible construction goes through allocate + initialize
	built := s.NewInstance(runtimeErr, []hb.Handle{s.NewString([]byte("bang"))})
	assert.Equal(t, "bang", s.ExceptionMessage(built))

	msg := s.Call(built, s.Intern("message"), nil, hb.Nil)
	assert.Equal(t, "bang", string(s.StringBytes(msg)))
}

func TestCloneRunsCopyHook(t *testing.T) {
	s := New()
	root := must(s.Builtin("Object"))
	cls := s.DefineClass(root, s.Intern("Copyable"), hb.Nil)

	copied := false
	s.DefineMethod(cls, s.Intern("initialize_copy"), func(self hb.Handle, argv []hb.Handle) hb.Handle {
		copied = true
		require.Len(t, argv, 1)
		return self
	})

	obj := s.NewInstance(cls, nil)
	s.IVarSet(obj, s.Intern("@x"), hb.FromFixnum(7))
	s.Freeze(obj)

	dup := s.Clone(obj)
	assert.True(t, copied)
	assert.NotEqual(t, obj, dup)
	assert.False(t, s.IsFrozen(dup), "clones start unfrozen")
	assert.Equal(t, hb.FromFixnum(7), s.IVarGet(dup, s.Intern("@x")))
}

func TestFrozenObjects(t *testing.T) {
	s := New()
	root := must(s.Builtin("Object"))
	cls := s.DefineClass(root, s.Intern("Ice"), hb.Nil)
	obj := s.NewInstance(cls, nil)

	s.IVarSet(obj, s.Intern("@a"), hb.True)
	s.Freeze(obj)
	assert.True(t, s.IsFrozen(obj))

	exc := protectErr(t, s, func() hb.Handle {
		s.IVarSet(obj, s.Intern("@a"), hb.False)
		return hb.Nil
	})
	assert.Equal(t, "FrozenError", s.ClassName(s.ClassOf(exc)))
	assert.Contains(t, s.ExceptionMessage(exc), "Ice")

	// immediates are frozen but unfreezable errors never apply to reads
	assert.True(t, s.IsFrozen(hb.Nil))
	assert.True(t, s.IsFrozen(hb.FromFixnum(3)))
}

func TestSingletonMethods(t *testing.T) {
	s := New()
	root := must(s.Builtin("Object"))
	cls := s.DefineClass(root, s.Intern("Plain"), hb.Nil)
	a := s.NewInstance(cls, nil)
	b := s.NewInstance(cls, nil)

	sing := s.SingletonClass(a)
	assert.Equal(t, sing, s.SingletonClass(a))
	s.DefineMethod(sing, s.Intern("special"), func(self hb.Handle, argv []hb.Handle) hb.Handle {
		return hb.True
	})

	assert.Equal(t, hb.True, s.Call(a, s.Intern("special"), nil, hb.Nil))
	exc := protectErr(t, s, func() hb.Handle {
		return s.Call(b, s.Intern("special"), nil, hb.Nil)
	})
	assert.Equal(t, "NoMethodError", s.ClassName(s.ClassOf(exc)))
}

func TestConstants(t *testing.T) {
	s := New()
	root := must(s.Builtin("Object"))

	mod := s.DefineModule(root, s.Intern("Config"))
	assert.Equal(t, "Config", s.ClassName(mod))

	name := s.Intern("LIMIT")
	assert.False(t, s.ConstDefined(mod, name))
	s.ConstSet(mod, name, hb.FromFixnum(42))
	assert.True(t, s.ConstDefined(mod, name))
	assert.Equal(t, hb.FromFixnum(42), s.ConstGet(mod, name))

	// nested namespaces carry the full path
	inner := s.DefineClass(mod, s.Intern("Entry"), hb.Nil)
	assert.Equal(t, "Config::Entry", s.ClassName(inner))

	exc := protectErr(t, s, func() hb.Handle {
		return s.ConstGet(mod, s.Intern("MISSING"))
	})
	assert.Equal(t, "NameError", s.ClassName(s.ClassOf(exc)))
}

func TestJumps(t *testing.T) {
	s := New()
	runtimeErr := must(s.Builtin("RuntimeError"))

	t.Run("normal return", func(t *testing.T) {
		h, tag := s.Protect(func() hb.Handle { return hb.True })
		assert.Equal(t, hb.TagNone, tag)
		assert.Equal(t, hb.True, h)
	})

	t.Run("raise", func(t *testing.T) {
		exc := s.NewException(runtimeErr, "oops")
		_, tag := s.Protect(func() hb.Handle {
			s.Raise(exc)
			return hb.Nil
		})
		assert.Equal(t, hb.TagRaise, tag)
		assert.Equal(t, exc, s.PendingException())
		s.SetPendingException(hb.Nil)
	})

	t.Run("opaque tag crosses protect", func(t *testing.T) {
		const tagBreak = hb.Tag(2)
		_, tag := s.Protect(func() hb.Handle {
			s.ThrowTag(tagBreak)
			return hb.Nil
		})
		assert.Equal(t, tagBreak, tag)

		// re-injecting resumes the transfer
		_, tag = s.Protect(func() hb.Handle {
			s.InjectJump(tagBreak)
			return hb.Nil
		})
		assert.Equal(t, tagBreak, tag)
	})

	t.Run("catch matching tag", func(t *testing.T) {
		const tagBreak = hb.Tag(2)
		_, caught := s.CatchTag(tagBreak, func() hb.Handle {
			s.ThrowTag(tagBreak)
			return hb.Nil
		})
		assert.True(t, caught)

		// a different tag keeps unwinding past CatchTag
		_, tag := s.Protect(func() hb.Handle {
			h, c := s.CatchTag(tagBreak, func() hb.Handle {
				s.ThrowTag(hb.Tag(3))
				return hb.Nil
			})
			assert.False(t, c)
			return h
		})
		assert.Equal(t, hb.Tag(3), tag)
	})
}

func TestBlocks(t *testing.T) {
	s := New()
	root := must(s.Builtin("Object"))
	cls := s.DefineClass(root, s.Intern("Each"), hb.Nil)

	s.DefineMethod(cls, s.Intern("run"), func(self hb.Handle, argv []hb.Handle) hb.Handle {
		blk, ok := s.CurrentBlock()
		if !ok {
			return hb.False
		}
		return s.ProcCall(blk, []hb.Handle{hb.FromFixnum(10)})
	})

	obj := s.NewInstance(cls, nil)
	assert.Equal(t, hb.False, s.Call(obj, s.Intern("run"), nil, hb.Nil))

	double := s.NewProc(func(self hb.Handle, argv []hb.Handle) hb.Handle {
		return hb.FromFixnum(hb.FixnumValue(argv[0]) * 2)
	}, nil)
	out := s.Call(obj, s.Intern("run"), nil, double)
	assert.Equal(t, hb.FromFixnum(20), out)
}

func TestTokenAndInterrupt(t *testing.T) {
	s := New()
	interruptCls := must(s.Builtin("Interrupt"))
	exc := s.NewException(interruptCls, "stop")

	assert.True(t, s.HoldsToken())

	unblocked := false
	s.ReleaseToken(func() {
		assert.False(t, s.HoldsToken())
		s.Interrupt(exc)
	}, func() {
		unblocked = true
	})

	assert.True(t, s.HoldsToken())
	assert.True(t, unblocked, "interrupt while released fires unblock")

	// the queued exception is delivered on the next barrier entry
	_, tag := s.Protect(func() hb.Handle { return hb.Nil })
	assert.Equal(t, hb.TagRaise, tag)
	assert.Equal(t, exc, s.PendingException())
	s.SetPendingException(hb.Nil)

	// and only once
	h, tag := s.Protect(func() hb.Handle { return hb.True })
	assert.Equal(t, hb.TagNone, tag)
	assert.Equal(t, hb.True, h)
}

func TestBuffers(t *testing.T) {
	s := New()

	buf := s.NewBuffer(4)
	assert.Equal(t, hb.KindBuffer, s.KindOf(buf))
	b := s.BufferBytes(buf)
	require.Len(t, b, 4)
	copy(b, "abcd")

	s.BufferResize(buf, 6)
	assert.Equal(t, "abcd\x00\x00", string(s.BufferBytes(buf)))

	s.BufferLock(buf)
	exc := protectErr(t, s, func() hb.Handle {
		s.BufferResize(buf, 8)
		return hb.Nil
	})
	assert.Equal(t, "RuntimeError", s.ClassName(s.ClassOf(exc)))

	s.BufferUnlock(buf)
	s.BufferResize(buf, 2)
	assert.Equal(t, "ab", string(s.BufferBytes(buf)))
}

func TestRendering(t *testing.T) {
	s := New()

	cases := []struct {
		h       hb.Handle
		inspect string
	}{
		{hb.Nil, "nil"},
		{hb.True, "true"},
		{hb.FromFixnum(-3), "-3"},
		{s.NewString([]byte("hi")), `"hi"`},
		{s.SymbolOf(s.Intern("key")), ":key"},
		{s.NewArray([]hb.Handle{hb.FromFixnum(1), s.NewString([]byte("x"))}), `[1, "x"]`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.inspect, string(s.StringBytes(s.Inspect(tc.h))))
	}

	// display differs from inspect for strings
	str := s.NewString([]byte("plain"))
	assert.Equal(t, "plain", string(s.StringBytes(s.DisplayString(str))))
}

func must(h hb.Handle, ok bool) hb.Handle {
	if !ok {
		panic("missing builtin")
	}
	return h
}
