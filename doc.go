// Package hostbridge defines the contracts shared between a
// dynamically-typed, garbage-collected host runtime and native Go
// extension code.
//
// The library lets compiled Go code extend such a host: define
// host-visible classes and methods, convert values across the
// boundary, and participate correctly in the host's moving collector.
// This root package holds only the low-level ABI: opaque handles,
// interned identifiers, jump tags, the single fixed calling
// convention every registered method is invoked through, and the
// typed-object descriptor the collector drives.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	hostbridge/          Root package with Handle, Tag, Host and DataType contracts
//	├── bridge/          Typed references, conversion, protection, trampolines, lifetime containers
//	├── args/            Declarative argument specs parsed left-to-right over a shared cursor
//	├── typeddata/       Binding Go structs to host classes with GC mark/compact participation
//	├── minihost/        Reference in-process host with a mark/compact object space
//	├── errors/          Structured error types for registration and conversion failures
//	└── cmd/inspect/     Interactive object-space inspector
//
// # Quick Start
//
// Define a class backed by a Go struct and register methods on it:
//
//	rt := bridge.New(minihost.New())
//
//	cls, _ := rt.DefineClass("Counter", bridge.Class{})
//	b, _ := typeddata.Bind[Counter](cls)
//	b.DefineConstructor(func() (*Counter, error) { return &Counter{}, nil })
//	b.DefineMethod("add", func(c *Counter, n int64) int64 {
//	    c.total += n
//	    return c.total
//	}, args.Req[int64]("n"))
//
// A host caller of "add" sees ordinary host values and host
// exceptions; the Go side sees ordinary Go values and errors. No Go
// panic crosses into the host raw, and no host jump tag crosses into
// Go raw.
//
// # Concurrency
//
// The host owns one logical execution token. Registration happens at
// extension load, strictly before concurrent use; per-type bindings,
// converters and trampolines are process-lifetime singletons and are
// immutable once registered.
package hostbridge
