package args

import (
	"fmt"
	"reflect"

	"github.com/hostbridge/hostbridge/bridge"
	berrors "github.com/hostbridge/hostbridge/errors"
)

// spec is the common shape of every parameter spec in this package.
type spec struct {
	goType reflect.Type
	stage  bridge.Stage
	name   string
	pull   func(c *bridge.Cursor) (reflect.Value, error)
}

func (s spec) GoType() reflect.Type { return s.goType }
func (s spec) Stage() bridge.Stage  { return s.stage }
func (s spec) Describe() string     { return s.name }

func (s spec) Pull(c *bridge.Cursor) (reflect.Value, error) {
	return s.pull(c)
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Receiver binds the method receiver, converted to T. Use
// bridge.Value for an untyped receiver.
func Receiver[T any]() bridge.ArgSpec {
	return spec{
		goType: typeOf[T](),
		stage:  bridge.StageReceiver,
		name:   "receiver",
		pull: func(c *bridge.Cursor) (reflect.Value, error) {
			v, err := bridge.From[T](c.Runtime(), c.Self())
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(v), nil
		},
	}
}

// Req binds one required positional argument, converted to T. A call
// that does not supply it raises ArgumentError naming the parameter.
func Req[T any](name string) bridge.ArgSpec {
	return spec{
		goType: typeOf[T](),
		stage:  bridge.StageRequired,
		name:   fmt.Sprintf("required argument %q", name),
		pull: func(c *bridge.Cursor) (reflect.Value, error) {
			in, ok := c.Next()
			if !ok {
				return reflect.Value{}, berrors.MissingArgument(name)
			}
			v, err := bridge.From[T](c.Runtime(), in)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(v), nil
		},
	}
}

// Opt binds one optional positional argument. The handler receives a
// *T that is nil when the caller omitted it. An explicit host nil also
// reads as absent.
func Opt[T any](name string) bridge.ArgSpec {
	return spec{
		goType: reflect.PointerTo(typeOf[T]()),
		stage:  bridge.StageOptional,
		name:   fmt.Sprintf("optional argument %q", name),
		pull: func(c *bridge.Cursor) (reflect.Value, error) {
			in, ok := c.Next()
			if !ok || in.IsNil() {
				return reflect.Zero(reflect.PointerTo(typeOf[T]())), nil
			}
			v, err := bridge.From[T](c.Runtime(), in)
			if err != nil {
				return reflect.Value{}, err
			}
			out := reflect.New(typeOf[T]())
			out.Elem().Set(reflect.ValueOf(v))
			return out, nil
		},
	}
}

// Splat absorbs every remaining positional argument into a []T. A call
// with nothing left yields an empty slice.
func Splat[T any]() bridge.ArgSpec {
	sliceType := reflect.SliceOf(typeOf[T]())
	return spec{
		goType: sliceType,
		stage:  bridge.StageSplat,
		name:   "splat",
		pull: func(c *bridge.Cursor) (reflect.Value, error) {
			rest := c.Rest()
			out := reflect.MakeSlice(sliceType, len(rest), len(rest))
			for i, in := range rest {
				v, err := bridge.From[T](c.Runtime(), in)
				if err != nil {
					return reflect.Value{}, err
				}
				out.Index(i).Set(reflect.ValueOf(v))
			}
			return out, nil
		},
	}
}

var procType = reflect.TypeOf(bridge.Proc{})

// Block binds the block attached to the call. A call without a block
// raises ArgumentError.
func Block() bridge.ArgSpec {
	return spec{
		goType: procType,
		stage:  bridge.StageBlock,
		name:   "block",
		pull: func(c *bridge.Cursor) (reflect.Value, error) {
			blk, ok := c.Block()
			if !ok {
				return reflect.Value{}, &berrors.Error{
					Phase:  berrors.PhaseParse,
					Kind:   berrors.KindNoBlock,
					Detail: "no block given",
				}
			}
			return reflect.ValueOf(blk), nil
		},
	}
}

// BlockOpt binds the block if one is attached; the handler receives a
// *bridge.Proc that is nil otherwise.
func BlockOpt() bridge.ArgSpec {
	return spec{
		goType: reflect.PointerTo(procType),
		stage:  bridge.StageBlock,
		name:   "optional block",
		pull: func(c *bridge.Cursor) (reflect.Value, error) {
			blk, ok := c.Block()
			if !ok {
				return reflect.Zero(reflect.PointerTo(procType)), nil
			}
			out := reflect.New(procType)
			out.Elem().Set(reflect.ValueOf(blk))
			return out, nil
		},
	}
}
