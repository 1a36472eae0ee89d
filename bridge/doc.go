// Package bridge is the embedding layer between Go code and a
// hostbridge.Host. It wraps raw handles in typed values, converts
// between Go values and host objects, generates trampolines that adapt
// plain Go functions to the host's fixed calling convention, and
// translates failures in both directions across the boundary.
//
// Architecture:
//
//	Runtime          entry point; wraps one Host plus a logger
//	Value and leaves typed handle wrappers (String, Array, Class, ...)
//	convert.go       the converter registry: Into / From / RegisterConverter
//	method.go        trampoline generation over ArgSpec parameter specs
//	protect.go       jump barrier, HostError, Jump, panic translation
//	gc.go            the GC capability passed to mark hooks
//	containers.go    Leak and Pinned lifetime containers
//
// The cardinal rule is that a host jump must never unwind raw through
// Go frames and a Go panic must never reach the host undecoded. Every
// bridge operation that can jump runs under the host's barrier and
// resurfaces as a typed control transfer; every trampoline guards its
// handler and re-encodes whatever escapes as a host exception or a
// re-injected jump.
//
// Operations documented as "jumps on failure" are meant to be used
// inside bound method bodies, where the host barrier is already below.
// Top-level embedding code uses Runtime.Protect and gets errors
// instead.
package bridge
