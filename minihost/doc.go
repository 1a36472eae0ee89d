// Package minihost is the reference implementation of the hostbridge
// Host ABI: a single-threaded, in-process object space with interned
// identifiers, class hierarchies, frozen flags, non-local jump tags,
// and a mark/compact collector that relocates boxed objects.
//
// It exists so the bridge's boundary-crossing machinery (trampolines,
// exception translation, typed-object binding, GC participation,
// lifetime containers) can be exercised end to end without an
// external runtime. It is also a precise executable statement of what
// the bridge expects from a real host.
//
// The collector runs only on demand (GCStart); handles held solely on
// the Go side are safe between collections, and anything that must
// survive a pass is rooted through registered root cells, constants,
// or a two-way association. Compaction moves every live, unpinned
// boxed object to a new slot, so stale handles are detectably invalid
// rather than silently aliased.
//
// The space is not safe for concurrent use. This mirrors the
// single-execution-token model of the hosts the bridge targets:
// registration happens at load, calls happen under the token.
package minihost
