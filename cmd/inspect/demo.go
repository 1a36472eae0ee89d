package main

import (
	"fmt"
	"math"

	"github.com/hostbridge/hostbridge/args"
	"github.com/hostbridge/hostbridge/bridge"
	"github.com/hostbridge/hostbridge/minihost"
	"github.com/hostbridge/hostbridge/typeddata"
)

// point is the native half of the demo's typed class.
type point struct {
	typeddata.TwoWay
	X, Y int64
}

// counter keeps a host value alive across collections so the inspector
// can demonstrate relocation.
type counter struct {
	typeddata.TwoWay
	Label bridge.Value
	N     int64
}

func (c *counter) MarkRefs(g *bridge.GC) {
	g.MarkMovable(&c.Label)
}

// exhibit is one object on the workbench, with the calls the inspector
// offers for it.
type exhibit struct {
	name    string
	value   *bridge.Leak[bridge.Value]
	methods []string
	// native unwraps the struct behind the (current) handle; nil for
	// plain host values
	native func(v bridge.Value) any
}

// workbench is the demo object space the inspector browses.
type workbench struct {
	rt       *bridge.Runtime
	exhibits []exhibit
}

func (w *workbench) release() {
	for _, e := range w.exhibits {
		e.value.Release()
	}
}

// buildWorkbench populates a fresh host with a typed class, a mutable
// typed class holding a host reference, and a handful of plain values.
func buildWorkbench() (*workbench, error) {
	rt := bridge.New(minihost.New())
	w := &workbench{rt: rt}

	pointCls, err := rt.DefineClass("Point", bridge.Class{})
	if err != nil {
		return nil, err
	}
	pb, err := typeddata.Bind[point](pointCls)
	if err != nil {
		return nil, err
	}
	if err := pb.DefineConstructor(func(x, y int64) *point {
		return &point{X: x, Y: y}
	}, args.Req[int64]("x"), args.Req[int64]("y")); err != nil {
		return nil, err
	}
	if err := pb.DefineMethod("x", func(p *point) int64 { return p.X }); err != nil {
		return nil, err
	}
	if err := pb.DefineMethod("y", func(p *point) int64 { return p.Y }); err != nil {
		return nil, err
	}
	if err := pb.DefineMethod("norm", func(p *point) float64 {
		return math.Hypot(float64(p.X), float64(p.Y))
	}); err != nil {
		return nil, err
	}
	if err := pb.DefineMutator("move", func(p *point, dx, dy int64) *point {
		p.X += dx
		p.Y += dy
		return p
	}, args.Req[int64]("dx"), args.Req[int64]("dy")); err != nil {
		return nil, err
	}
	if err := pb.DefineCopyConstructor(func(src *point) (*point, error) {
		return &point{X: src.X, Y: src.Y}, nil
	}); err != nil {
		return nil, err
	}

	counterCls, err := rt.DefineClass("Counter", bridge.Class{})
	if err != nil {
		return nil, err
	}
	cb, err := typeddata.Bind[counter](counterCls)
	if err != nil {
		return nil, err
	}
	if err := cb.DefineConstructor(func(label string) *counter {
		return &counter{Label: rt.Str(label).Value}
	}, args.Req[string]("label")); err != nil {
		return nil, err
	}
	if err := cb.DefineMethod("label", func(c *counter) bridge.Value {
		return c.Label
	}); err != nil {
		return nil, err
	}
	if err := cb.DefineMutator("bump", func(c *counter) int64 {
		c.N++
		return c.N
	}); err != nil {
		return nil, err
	}

	pt := pb.Class().New(rt.Int(3), rt.Int(4))
	ct := cb.Class().New(rt.Str("requests").Value)

	settings, err := rt.DefineModule("Settings")
	if err != nil {
		return nil, err
	}
	if err := settings.DefineConstant("MAX", rt.Int(100)); err != nil {
		return nil, err
	}

	frozen := rt.FrozenStr("immutable").Value
	arr := rt.NewArray(rt.Int(1), rt.Str("two").Value, rt.Sym("three").Value)

	w.exhibits = []exhibit{
		{
			name:    "point",
			value:   bridge.NewLeak(pt),
			methods: []string{"x", "y", "norm", "move 1 2", "freeze", "inspect"},
			native: func(v bridge.Value) any {
				p, err := pb.Unwrap(v)
				if err != nil {
					return err
				}
				return p
			},
		},
		{
			name:    "counter",
			value:   bridge.NewLeak(ct),
			methods: []string{"label", "bump", "inspect"},
			native: func(v bridge.Value) any {
				c, err := cb.Unwrap(v)
				if err != nil {
					return err
				}
				return c
			},
		},
		{
			name:    "frozen string",
			value:   bridge.NewLeak(rt.Wrap(frozen.Raw())),
			methods: []string{"frozen?", "to_s", "inspect"},
		},
		{
			name:    "array",
			value:   bridge.NewLeak(arr.Value),
			methods: []string{"inspect", "to_s"},
		},
		{
			name:    "settings module",
			value:   bridge.NewLeak(settings.Value),
			methods: []string{"inspect"},
		},
	}
	return w, nil
}

// describe renders one line per exhibit: name, class, serial, rendering.
func (w *workbench) describe(e exhibit) string {
	v := e.value.Get()
	return fmt.Sprintf("%-16s %-10s #%-4d %s", e.name, v.ClassName(), v.Serial(), v.Inspect())
}
