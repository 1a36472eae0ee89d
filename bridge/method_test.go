package bridge_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hostbridge/hostbridge/args"
	"github.com/hostbridge/hostbridge/bridge"
	berrors "github.com/hostbridge/hostbridge/errors"
)

// defineClass registers a fresh class for one test.
func defineClass(t *testing.T, rt *bridge.Runtime, name string) bridge.Class {
	t.Helper()
	cls, err := rt.DefineClass(name, bridge.Class{})
	if err != nil {
		t.Fatalf("DefineClass(%s): %v", name, err)
	}
	return cls
}

// callErr invokes a method expecting a raise and returns the
// exception.
func callErr(t *testing.T, rt *bridge.Runtime, recv bridge.Value, name string, argv ...bridge.Value) bridge.Exception {
	t.Helper()
	_, err := rt.Protect(func() bridge.Value {
		return recv.Send(name, argv...)
	})
	if err == nil {
		t.Fatalf("Send(%s) should have raised", name)
	}
	var he *bridge.HostError
	if !errors.As(err, &he) {
		t.Fatalf("Send(%s) error = %T (%v), want HostError", name, err, err)
	}
	return he.Exception().AsException()
}

func TestDefineMethodBasic(t *testing.T) {
	rt := newRT(t)
	cls := defineClass(t, rt, "Adder")

	err := cls.DefineMethod("add", func(a, b int64) int64 {
		return a + b
	}, args.Req[int64]("a"), args.Req[int64]("b"))
	if err != nil {
		t.Fatalf("DefineMethod: %v", err)
	}

	obj := cls.New()
	got := obj.Send("add", rt.Int(2), rt.Int(40))
	if n, _ := bridge.From[int64](rt, got); n != 42 {
		t.Errorf("add(2, 40) = %v", got)
	}
}

func TestMissingRequiredArgument(t *testing.T) {
	rt := newRT(t)
	cls := defineClass(t, rt, "Strict")

	if err := cls.DefineMethod("name", func(name string) string {
		return name
	}, args.Req[string]("name")); err != nil {
		t.Fatal(err)
	}

	obj := cls.New()
	exc := callErr(t, rt, obj, "name")
	if got := exc.ClassName(); got != "ArgumentError" {
		t.Errorf("class = %s, want ArgumentError", got)
	}
	if msg := exc.Message(); msg != "missing required argument (name)" {
		t.Errorf("message = %q", msg)
	}
}

func TestExtraArgumentsRejected(t *testing.T) {
	rt := newRT(t)
	cls := defineClass(t, rt, "Exact")

	if err := cls.DefineMethod("one", func(n int64) int64 {
		return n
	}, args.Req[int64]("n")); err != nil {
		t.Fatal(err)
	}

	obj := cls.New()
	exc := callErr(t, rt, obj, "one", rt.Int(1), rt.Int(2))
	if got := exc.ClassName(); got != "ArgumentError" {
		t.Errorf("class = %s, want ArgumentError", got)
	}
	if !strings.Contains(exc.Message(), "wrong number of arguments") {
		t.Errorf("message = %q", exc.Message())
	}
}

func TestOptionalArguments(t *testing.T) {
	rt := newRT(t)
	cls := defineClass(t, rt, "Greets")

	err := cls.DefineMethod("greet", func(name string, punct *string) string {
		if punct == nil {
			return "hi " + name
		}
		return "hi " + name + *punct
	}, args.Req[string]("name"), args.Opt[string]("punct"))
	if err != nil {
		t.Fatal(err)
	}

	obj := cls.New()
	got, _ := bridge.From[string](rt, obj.Send("greet", rt.Str("ada").Value))
	if got != "hi ada" {
		t.Errorf("omitted optional: %q", got)
	}
	got, _ = bridge.From[string](rt, obj.Send("greet", rt.Str("ada").Value, rt.Str("!").Value))
	if got != "hi ada!" {
		t.Errorf("supplied optional: %q", got)
	}
	// explicit nil reads as absent
	got, _ = bridge.From[string](rt, obj.Send("greet", rt.Str("ada").Value, rt.NilValue()))
	if got != "hi ada" {
		t.Errorf("nil optional: %q", got)
	}
}

func TestRequiredThenSplat(t *testing.T) {
	rt := newRT(t)
	cls := defineClass(t, rt, "Joiner")

	// the first positional binds the required parameter; the splat
	// gets only what is left
	err := cls.DefineMethod("join", func(sep string, parts []string) string {
		return strings.Join(parts, sep)
	}, args.Req[string]("sep"), args.Splat[string]())
	if err != nil {
		t.Fatal(err)
	}

	obj := cls.New()
	got, _ := bridge.From[string](rt, obj.Send("join",
		rt.Str("-").Value, rt.Str("a").Value, rt.Str("b").Value, rt.Str("c").Value))
	if got != "a-b-c" {
		t.Errorf("join = %q", got)
	}
	// splat may be empty
	got, _ = bridge.From[string](rt, obj.Send("join", rt.Str("-").Value))
	if got != "" {
		t.Errorf("empty splat = %q", got)
	}
}

func TestBlockArguments(t *testing.T) {
	rt := newRT(t)
	cls := defineClass(t, rt, "Each")

	err := cls.DefineMethod("map3", func(blk bridge.Proc) []bridge.Value {
		out := make([]bridge.Value, 0, 3)
		for i := int64(0); i < 3; i++ {
			out = append(out, blk.Call(rt.Int(i)))
		}
		return out
	}, args.Block())
	if err != nil {
		t.Fatal(err)
	}
	err = cls.DefineMethod("maybe", func(blk *bridge.Proc) bool {
		return blk != nil
	}, args.BlockOpt())
	if err != nil {
		t.Fatal(err)
	}

	obj := cls.New()
	double := rt.NewProc(func(in []bridge.Value) bridge.Value {
		n, _ := bridge.From[int64](rt, in[0])
		return rt.Int(n * 2)
	})

	res, err := rt.Protect(func() bridge.Value {
		return obj.SendWithBlock("map3", double)
	})
	if err != nil {
		t.Fatalf("map3: %v", err)
	}
	arr := res.AsArray()
	for i, want := range []int64{0, 2, 4} {
		if n, _ := bridge.From[int64](rt, arr.Get(i)); n != want {
			t.Errorf("map3[%d] = %d, want %d", i, n, want)
		}
	}

	// required block missing
	exc := callErr(t, rt, obj, "map3")
	if exc.ClassName() != "ArgumentError" || !strings.Contains(exc.Message(), "no block") {
		t.Errorf("missing block: %s %q", exc.ClassName(), exc.Message())
	}

	// optional block reports presence
	if got := obj.Send("maybe"); got.Test() {
		t.Error("maybe without block should be false")
	}
}

func TestReceiverSpec(t *testing.T) {
	rt := newRT(t)
	cls := defineClass(t, rt, "Mirror")

	err := cls.DefineMethod("myself", func(self bridge.Value) bridge.Value {
		return self
	}, args.Receiver[bridge.Value]())
	if err != nil {
		t.Fatal(err)
	}

	obj := cls.New()
	if got := obj.Send("myself"); got.Serial() != obj.Serial() {
		t.Error("receiver spec should bind self")
	}
}

func TestHandlerErrorReturns(t *testing.T) {
	rt := newRT(t)
	cls := defineClass(t, rt, "Failing")

	if err := cls.DefineMethod("check", func(n int64) (int64, error) {
		if n < 0 {
			return 0, fmt.Errorf("negative input %d", n)
		}
		return n, nil
	}, args.Req[int64]("n")); err != nil {
		t.Fatal(err)
	}
	if err := cls.DefineMethod("fail_only", func() error {
		return errors.New("always")
	}); err != nil {
		t.Fatal(err)
	}

	obj := cls.New()
	if got := obj.Send("check", rt.Int(5)); got.IsNil() {
		t.Error("successful (value, error) should return the value")
	}

	exc := callErr(t, rt, obj, "check", rt.Int(-1))
	if exc.ClassName() != "RuntimeError" {
		t.Errorf("class = %s, want RuntimeError", exc.ClassName())
	}
	if !strings.Contains(exc.Message(), "negative input -1") {
		t.Errorf("message = %q", exc.Message())
	}

	exc = callErr(t, rt, obj, "fail_only")
	if !strings.Contains(exc.Message(), "always") {
		t.Errorf("message = %q", exc.Message())
	}
}

func TestConversionFailuresRaise(t *testing.T) {
	rt := newRT(t)
	cls := defineClass(t, rt, "Typed")

	if err := cls.DefineMethod("narrow", func(n int8) int8 {
		return n
	}, args.Req[int8]("n")); err != nil {
		t.Fatal(err)
	}

	obj := cls.New()
	exc := callErr(t, rt, obj, "narrow", rt.Int(1000))
	if exc.ClassName() != "RangeError" {
		t.Errorf("overflow class = %s, want RangeError", exc.ClassName())
	}
	exc = callErr(t, rt, obj, "narrow", rt.Str("x").Value)
	if exc.ClassName() != "TypeError" {
		t.Errorf("mismatch class = %s, want TypeError", exc.ClassName())
	}
}

func TestRegistrationValidation(t *testing.T) {
	rt := newRT(t)
	cls := defineClass(t, rt, "Invalid")

	tests := []struct {
		name  string
		fn    any
		specs []bridge.ArgSpec
	}{
		{"not a func", 42, nil},
		{"arity mismatch", func(a int64) int64 { return a }, nil},
		{
			"type disagreement",
			func(a string) string { return a },
			[]bridge.ArgSpec{args.Req[int64]("a")},
		},
		{
			"splat before required",
			func(a []int64, b int64) int64 { return b },
			[]bridge.ArgSpec{args.Splat[int64](), args.Req[int64]("b")},
		},
		{
			"receiver not first",
			func(a int64, self bridge.Value) int64 { return a },
			[]bridge.ArgSpec{args.Req[int64]("a"), args.Receiver[bridge.Value]()},
		},
		{
			"variadic handler",
			func(ns ...int64) int64 { return 0 },
			[]bridge.ArgSpec{args.Splat[int64]()},
		},
		{"too many returns", func() (int64, int64, error) { return 0, 0, nil }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cls.DefineMethod("bad", tt.fn, tt.specs...)
			var be *berrors.Error
			if !errors.As(err, &be) {
				t.Fatalf("err = %v, want structured registration error", err)
			}
			if be.Kind != berrors.KindRegistration {
				t.Errorf("Kind = %v, want registration", be.Kind)
			}
		})
	}
}
