package bridge

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	hb "github.com/hostbridge/hostbridge"
	berrors "github.com/hostbridge/hostbridge/errors"
)

// convEntry is one registered bidirectional conversion, stored untyped
// so the trampoline generator can drive it through reflection.
type convEntry struct {
	into func(rt *Runtime, v any) Value
	from func(rt *Runtime, v Value) (any, error)
}

var (
	convMu  sync.RWMutex
	convReg = map[reflect.Type]*convEntry{}
)

// RegisterConverter installs the bidirectional conversion for T. Either
// direction may be nil to leave it unsupported. A second registration
// for the same type is fatal at load time.
func RegisterConverter[T any](
	into func(rt *Runtime, v T) Value,
	from func(rt *Runtime, v Value) (T, error),
) error {
	t := reflect.TypeOf((*T)(nil)).Elem()
	convMu.Lock()
	defer convMu.Unlock()
	if _, dup := convReg[t]; dup {
		return berrors.DoubleBinding(t.String())
	}
	e := &convEntry{}
	if into != nil {
		e.into = func(rt *Runtime, v any) Value { return into(rt, v.(T)) }
	}
	if from != nil {
		e.from = func(rt *Runtime, v Value) (any, error) { return from(rt, v) }
	}
	convReg[t] = e
	return nil
}

func lookupConv(t reflect.Type) *convEntry {
	convMu.RLock()
	defer convMu.RUnlock()
	return convReg[t]
}

// Into converts a Go value to a host value. Panics with a structured
// error for types nothing was registered or derived for; inside a
// bound method that surfaces as a host TypeError.
func Into[T any](rt *Runtime, v T) Value {
	out, err := intoReflect(rt, reflect.ValueOf(&v).Elem())
	if err != nil {
		panic(err)
	}
	return out
}

// From converts a host value to a Go value.
func From[T any](rt *Runtime, v Value) (T, error) {
	var zero T
	rv, err := fromReflect(rt, v, reflect.TypeOf(&zero).Elem())
	if err != nil {
		return zero, err
	}
	return rv.Interface().(T), nil
}

var pairPkgPath = reflect.TypeOf(Pair[int, int]{}).PkgPath()

// Pair is the two-element product type. It converts to and from a
// two-element host array.
type Pair[A, B any] struct {
	First  A
	Second B
}

func isPairType(t reflect.Type) bool {
	return t.Kind() == reflect.Struct &&
		t.PkgPath() == pairPkgPath &&
		strings.HasPrefix(t.Name(), "Pair[") &&
		t.NumField() == 2
}

var (
	valueType = reflect.TypeOf(Value{})
	errorType = reflect.TypeOf((*error)(nil)).Elem()
	refType   = reflect.TypeOf((*Ref)(nil)).Elem()
	bytesType = reflect.TypeOf([]byte(nil))
)

// intoReflect converts a Go value held in rv to a host value, deriving
// pointer, slice and pair conversions from registered element types.
func intoReflect(rt *Runtime, rv reflect.Value) (Value, error) {
	t := rv.Type()

	if e := lookupConv(t); e != nil {
		if e.into == nil {
			return Value{}, berrors.Unsupported(berrors.PhaseConvert,
				fmt.Sprintf("%s cannot convert to a host value", t))
		}
		return e.into(rt, rv.Interface()), nil
	}

	switch {
	case t.Implements(refType):
		ref := rv.Interface().(Ref)
		return rt.Wrap(ref.Raw()), nil

	case t.Kind() == reflect.Pointer:
		if rv.IsNil() {
			return rt.NilValue(), nil
		}
		return intoReflect(rt, rv.Elem())

	case t.Kind() == reflect.Slice:
		arr := rt.NewArray()
		for i := 0; i < rv.Len(); i++ {
			elem, err := intoReflect(rt, rv.Index(i))
			if err != nil {
				return Value{}, err
			}
			arr.Push(elem)
		}
		return arr.Value, nil

	case isPairType(t):
		first, err := intoReflect(rt, rv.Field(0))
		if err != nil {
			return Value{}, err
		}
		second, err := intoReflect(rt, rv.Field(1))
		if err != nil {
			return Value{}, err
		}
		return rt.NewArray(first, second).Value, nil
	}

	return Value{}, berrors.Unsupported(berrors.PhaseConvert,
		fmt.Sprintf("no conversion for Go type %s", t))
}

// fromReflect converts a host value to the Go type t.
func fromReflect(rt *Runtime, v Value, t reflect.Type) (reflect.Value, error) {
	if e := lookupConv(t); e != nil {
		if e.from == nil {
			return reflect.Value{}, berrors.Unsupported(berrors.PhaseConvert,
				fmt.Sprintf("%s cannot convert from a host value", t))
		}
		out, err := e.from(rt, v)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(out), nil
	}

	switch {
	case t.Kind() == reflect.Pointer:
		// pointers derive the optional reading: host nil is Go nil
		if v.IsNil() {
			return reflect.Zero(t), nil
		}
		elem, err := fromReflect(rt, v, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(t.Elem())
		out.Elem().Set(elem)
		return out, nil

	case t.Kind() == reflect.Slice:
		if v.Kind() != hb.KindArray {
			return reflect.Value{}, berrors.TypeMismatch(
				berrors.PhaseConvert, nil, t.String(), v.ClassName())
		}
		arr := Array{v}
		n := arr.Len()
		out := reflect.MakeSlice(t, n, n)
		for i := 0; i < n; i++ {
			elem, err := fromReflect(rt, arr.Get(i), t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(elem)
		}
		return out, nil

	case isPairType(t):
		if v.Kind() != hb.KindArray {
			return reflect.Value{}, berrors.TypeMismatch(
				berrors.PhaseConvert, nil, t.String(), v.ClassName())
		}
		arr := Array{v}
		if arr.Len() != 2 {
			return reflect.Value{}, berrors.TypeMismatch(
				berrors.PhaseConvert, nil, t.String(), v.ClassName())
		}
		out := reflect.New(t).Elem()
		for i := 0; i < 2; i++ {
			f, err := fromReflect(rt, arr.Get(i), t.Field(i).Type)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Field(i).Set(f)
		}
		return out, nil
	}

	return reflect.Value{}, berrors.Unsupported(berrors.PhaseConvert,
		fmt.Sprintf("no conversion for Go type %s", t))
}

// fixnumOf narrows a host value to its integer content or reports a
// type mismatch.
func fixnumOf(v Value, goType string) (int64, error) {
	if !hb.IsFixnum(v.Raw()) {
		return 0, berrors.TypeMismatch(berrors.PhaseConvert, nil, goType, v.ClassName())
	}
	return hb.FixnumValue(v.Raw()), nil
}

// registerSignedConverter wires a signed integer type with
// range-checked narrowing in both directions: a host integer that does
// not fit the Go type, or a Go integer outside the fixnum range, raises
// RangeError rather than truncating.
func registerSignedConverter[T int | int8 | int16 | int32 | int64](min, max int64) {
	mustRegister(RegisterConverter[T](
		func(rt *Runtime, v T) Value {
			if int64(v) < hb.FixnumMin || int64(v) > hb.FixnumMax {
				panic(berrors.OutOfRange(berrors.PhaseConvert, v, "host integer"))
			}
			return rt.Int(int64(v))
		},
		func(rt *Runtime, v Value) (T, error) {
			n, err := fixnumOf(v, reflect.TypeOf(T(0)).String())
			if err != nil {
				return 0, err
			}
			if n < min || n > max {
				return 0, berrors.OutOfRange(berrors.PhaseConvert, n, reflect.TypeOf(T(0)).String())
			}
			return T(n), nil
		},
	))
}

// registerUnsignedConverter mirrors registerSignedConverter for the
// unsigned types; negatives are always out of range.
func registerUnsignedConverter[T uint | uint8 | uint16 | uint32 | uint64](max uint64) {
	mustRegister(RegisterConverter[T](
		func(rt *Runtime, v T) Value {
			if uint64(v) > uint64(hb.FixnumMax) {
				panic(berrors.OutOfRange(berrors.PhaseConvert, v, "host integer"))
			}
			return rt.Int(int64(v))
		},
		func(rt *Runtime, v Value) (T, error) {
			n, err := fixnumOf(v, reflect.TypeOf(T(0)).String())
			if err != nil {
				return 0, err
			}
			if n < 0 || uint64(n) > max {
				return 0, berrors.OutOfRange(berrors.PhaseConvert, n, reflect.TypeOf(T(0)).String())
			}
			return T(n), nil
		},
	))
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}

func init() {
	registerSignedConverter[int](math.MinInt, math.MaxInt)
	registerSignedConverter[int8](math.MinInt8, math.MaxInt8)
	registerSignedConverter[int16](math.MinInt16, math.MaxInt16)
	registerSignedConverter[int32](math.MinInt32, math.MaxInt32)
	registerSignedConverter[int64](math.MinInt64, math.MaxInt64)
	registerUnsignedConverter[uint](math.MaxUint)
	registerUnsignedConverter[uint8](math.MaxUint8)
	registerUnsignedConverter[uint16](math.MaxUint16)
	registerUnsignedConverter[uint32](math.MaxUint32)
	registerUnsignedConverter[uint64](math.MaxUint64)

	mustRegister(RegisterConverter[bool](
		func(rt *Runtime, v bool) Value {
			if v {
				return rt.TrueValue()
			}
			return rt.FalseValue()
		},
		func(rt *Runtime, v Value) (bool, error) {
			// host truthiness, not strict booleans
			return v.Test(), nil
		},
	))

	mustRegister(RegisterConverter[float64](
		func(rt *Runtime, v float64) Value { return rt.Float(v) },
		func(rt *Runtime, v Value) (float64, error) {
			switch v.Kind() {
			case hb.KindFloat:
				return v.rt.host.FloatValue(v.Raw()), nil
			case hb.KindFixnum:
				return float64(hb.FixnumValue(v.Raw())), nil
			}
			return 0, berrors.TypeMismatch(berrors.PhaseConvert, nil, "float64", v.ClassName())
		},
	))

	mustRegister(RegisterConverter[float32](
		func(rt *Runtime, v float32) Value { return rt.Float(float64(v)) },
		func(rt *Runtime, v Value) (float32, error) {
			f, err := From[float64](v.rt, v)
			if err != nil {
				return 0, berrors.TypeMismatch(berrors.PhaseConvert, nil, "float32", v.ClassName())
			}
			if !math.IsInf(f, 0) && math.IsInf(float64(float32(f)), 0) {
				return 0, berrors.OutOfRange(berrors.PhaseConvert, f, "float32")
			}
			return float32(f), nil
		},
	))

	mustRegister(RegisterConverter[string](
		func(rt *Runtime, v string) Value { return rt.Str(v).Value },
		func(rt *Runtime, v Value) (string, error) {
			if v.Kind() != hb.KindString {
				return "", berrors.TypeMismatch(berrors.PhaseConvert, nil, "string", v.ClassName())
			}
			return String{v}.Text(), nil
		},
	))

	mustRegister(RegisterConverter[[]byte](
		func(rt *Runtime, v []byte) Value { return rt.Wrap(rt.host.NewString(v)) },
		func(rt *Runtime, v Value) ([]byte, error) {
			if v.Kind() != hb.KindString {
				return nil, berrors.TypeMismatch(berrors.PhaseConvert, nil, "[]byte", v.ClassName())
			}
			return String{v}.Bytes(), nil
		},
	))

	mustRegister(RegisterConverter[Value](
		func(rt *Runtime, v Value) Value { return v },
		func(rt *Runtime, v Value) (Value, error) { return v, nil },
	))

	registerLeafConverter(hb.KindString, "String", func(v Value) String { return String{v} })
	registerLeafConverter(hb.KindSymbol, "Symbol", func(v Value) Symbol { return Symbol{v} })
	registerLeafConverter(hb.KindArray, "Array", func(v Value) Array { return Array{v} })
	registerLeafConverter(hb.KindProc, "Proc", func(v Value) Proc { return Proc{v} })
	registerLeafConverter(hb.KindException, "Exception", func(v Value) Exception { return Exception{v} })
	registerLeafConverter(hb.KindBuffer, "Buffer", func(v Value) Buffer { return Buffer{v} })
	registerLeafConverter(hb.KindClass, "Class", func(v Value) Class { return Class{Module{v}} })

	mustRegister(RegisterConverter[Module](
		func(rt *Runtime, v Module) Value { return v.Value },
		func(rt *Runtime, v Value) (Module, error) {
			if k := v.Kind(); k != hb.KindModule && k != hb.KindClass {
				return Module{}, berrors.TypeMismatch(berrors.PhaseConvert, nil, "bridge.Module", v.ClassName())
			}
			return Module{v}, nil
		},
	))
}

// registerLeafConverter wires one kind-checked wrapper type.
func registerLeafConverter[T Ref](kind hb.Kind, name string, wrap func(Value) T) {
	mustRegister(RegisterConverter[T](
		func(rt *Runtime, v T) Value { return rt.Wrap(v.Raw()) },
		func(rt *Runtime, v Value) (T, error) {
			var zero T
			if v.Kind() != kind {
				return zero, berrors.TypeMismatch(berrors.PhaseConvert, nil,
					"bridge."+name, v.ClassName())
			}
			return wrap(v), nil
		},
	))
}
