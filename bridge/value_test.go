package bridge_test

import (
	"fmt"
	"testing"

	hb "github.com/hostbridge/hostbridge"
	"github.com/hostbridge/hostbridge/bridge"
)

func TestZeroValueReadsAsNil(t *testing.T) {
	var v bridge.Value
	if v.Raw() != hb.Nil {
		t.Errorf("Raw() = %#x, want nil", uint64(v.Raw()))
	}
	if !v.IsNil() || v.Test() {
		t.Error("zero Value should be nil and falsy")
	}
	if !v.IsFrozen() {
		t.Error("zero Value should read frozen")
	}
}

func TestValueBasics(t *testing.T) {
	rt := newRT(t)

	s := rt.Str("hello")
	if s.Kind() != hb.KindString {
		t.Errorf("Kind = %v", s.Kind())
	}
	if s.ClassName() != "String" {
		t.Errorf("ClassName = %s", s.ClassName())
	}
	if !rt.Int(0).Test() {
		t.Error("zero should be truthy")
	}
	if rt.FalseValue().Test() {
		t.Error("false should be falsy")
	}
}

func TestFormatVerbs(t *testing.T) {
	rt := newRT(t)
	s := rt.Str("hi")

	if got := fmt.Sprintf("%v", s); got != "hi" {
		t.Errorf("%%v = %q", got)
	}
	if got := fmt.Sprintf("%#v", s); got != `"hi"` {
		t.Errorf("%%#v = %q", got)
	}
	arr := rt.NewArray(rt.Int(1), s.Value)
	if got := fmt.Sprintf("%v", arr); got != `[1, "hi"]` {
		t.Errorf("array %%v = %q", got)
	}
}

func TestIVarAccess(t *testing.T) {
	rt := newRT(t)
	cls := defineClass(t, rt, "Bag")
	obj := cls.New()

	if obj.IVarDefined("@x") {
		t.Error("unset ivar should not be defined")
	}
	if !obj.IVarGet("@x").IsNil() {
		t.Error("unset ivar should read nil")
	}
	obj.IVarSet("@x", rt.Int(5))
	if !obj.IVarDefined("@x") {
		t.Error("ivar should be defined after set")
	}
	if n, _ := bridge.From[int64](rt, obj.IVarGet("@x")); n != 5 {
		t.Errorf("@x = %d", n)
	}

	obj.Freeze()
	exc := callErrIVar(t, rt, obj)
	if exc.ClassName() != "FrozenError" {
		t.Errorf("frozen ivar set raised %s", exc.ClassName())
	}
}

func callErrIVar(t *testing.T, rt *bridge.Runtime, obj bridge.Value) bridge.Exception {
	t.Helper()
	_, err := rt.Protect(func() bridge.Value {
		obj.IVarSet("@x", rt.Int(6))
		return rt.NilValue()
	})
	he, ok := err.(*bridge.HostError)
	if !ok {
		t.Fatalf("err = %T, want HostError", err)
	}
	return he.Exception().AsException()
}

func TestCheckedNarrowing(t *testing.T) {
	rt := newRT(t)

	str := rt.Str("x").Value
	if got := str.AsString().Text(); got != "x" {
		t.Errorf("AsString = %q", got)
	}

	_, err := rt.Protect(func() bridge.Value {
		return str.AsArray().Value
	})
	he, ok := err.(*bridge.HostError)
	if !ok {
		t.Fatalf("AsArray on a string: err = %T", err)
	}
	exc := he.Exception().AsException()
	if exc.ClassName() != "TypeError" {
		t.Errorf("class = %s, want TypeError", exc.ClassName())
	}
	if exc.Message() != "expected a Array but got a String" {
		t.Errorf("message = %q", exc.Message())
	}
}

func TestSingletonMethodsOnValues(t *testing.T) {
	rt := newRT(t)
	cls := defineClass(t, rt, "Solo")
	a := cls.New()
	b := cls.New()

	if err := a.DefineSingletonMethod("only_here", func() int64 {
		return 1
	}); err != nil {
		t.Fatal(err)
	}
	if n, _ := bridge.From[int64](rt, a.Send("only_here")); n != 1 {
		t.Error("singleton method should answer on its object")
	}
	if _, err := rt.Protect(func() bridge.Value {
		return b.Send("only_here")
	}); err == nil {
		t.Error("singleton method must not leak to other instances")
	}
}

func TestConstantsViaModule(t *testing.T) {
	rt := newRT(t)
	mod, err := rt.DefineModule("Settings")
	if err != nil {
		t.Fatal(err)
	}
	if err := mod.DefineConstant("MAX", rt.Int(100)); err != nil {
		t.Fatal(err)
	}
	if !mod.ConstDefined("MAX") {
		t.Error("MAX should be defined")
	}
	if n, _ := bridge.From[int64](rt, mod.ConstGet("MAX")); n != 100 {
		t.Errorf("MAX = %d", n)
	}
}

func TestBufferAccess(t *testing.T) {
	rt := newRT(t)

	buf := rt.NewBuffer(4)
	if buf.Len() != 4 {
		t.Fatalf("Len = %d", buf.Len())
	}
	buf.Lock(func(data []byte) {
		copy(data, "abcd")
	})
	if string(buf.Bytes()) != "abcd" {
		t.Errorf("Bytes = %q", buf.Bytes())
	}
	buf.Resize(2)
	if string(buf.Bytes()) != "ab" {
		t.Errorf("after resize = %q", buf.Bytes())
	}
}
