// Package typeddata binds Go structs to host classes. A binding owns
// the descriptor the host uses to mark, relocate, size and free the
// native struct behind each instance, and registers converters so
// bound pointers flow through the bridge's conversion layer.
//
//	type Counter struct {
//		typeddata.TwoWay
//		n int64
//	}
//
//	b, err := typeddata.Bind[Counter](class)
//	err = b.DefineConstructor(func(start int64) (*Counter, error) {
//		return &Counter{n: start}, nil
//	}, args.Req[int64]("start"))
//	err = b.DefineMutator("add", func(c *Counter, n int64) int64 {
//		c.n += n
//		return c.n
//	}, args.Req[int64]("n"))
//
// Instances are created host-side in two independent steps: allocation
// produces an empty shell, the constructor builds the struct and
// installs it. Accessing a shell before its constructor ran reports
// the object as not yet initialized.
//
// Structs that hold host values implement Markable and rewrite their
// fields through the capability in both collector phases. Embedding
// TwoWay gives the struct an owning host object, which is what lets a
// bare *T returned from a handler convert back to its wrapper.
//
// DefineMethod binds read access; DefineMutator additionally rejects
// frozen receivers before unwrapping, so mutation of a frozen instance
// surfaces as the host's immutability error.
package typeddata
