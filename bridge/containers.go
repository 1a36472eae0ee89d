package bridge

import (
	"fmt"

	hb "github.com/hostbridge/hostbridge"
)

// Leak roots a host value for the process lifetime, the way a global
// registered once at extension load would be. The rooted slot is
// rewritten by the host on compaction, so Get always returns a live
// handle. Release exists for tests; production leaks are intentional.
type Leak[T RefOf[T]] struct {
	rt    *Runtime
	cell  *hb.Handle
	proto T
}

// NewLeak roots v. The value must be bound to a runtime.
func NewLeak[T RefOf[T]](v T) *Leak[T] {
	rt := v.Runtime()
	if rt == nil {
		panic(fmt.Sprintf("bridge: cannot leak an unbound %T", v))
	}
	cell := new(hb.Handle)
	*cell = v.Raw()
	rt.host.RegisterRoot(cell)
	return &Leak[T]{rt: rt, cell: cell, proto: v}
}

// Get returns the current, relocation-tracked value.
func (l *Leak[T]) Get() T {
	return l.proto.rebuild(l.rt, *l.cell)
}

// Set replaces the rooted value.
func (l *Leak[T]) Set(v T) {
	*l.cell = v.Raw()
}

// Release drops the root. The Leak must not be used afterwards.
func (l *Leak[T]) Release() {
	l.rt.host.UnregisterRoot(l.cell)
	*l.cell = hb.Nil
}

// pinCtrl is the shared control block behind Pinned copies.
type pinCtrl struct {
	rt   *Runtime
	cell hb.Handle
	refs int
}

// Pinned keeps a host value alive and in place for as long as at least
// one reference is retained. Go has no destructors, so the count is
// explicit: every Pin and Retain must be paired with a Release.
type Pinned[T RefOf[T]] struct {
	ctrl  *pinCtrl
	proto T
}

// Pin roots and pins v with an initial reference count of one.
func Pin[T RefOf[T]](v T) *Pinned[T] {
	rt := v.Runtime()
	if rt == nil {
		panic(fmt.Sprintf("bridge: cannot pin an unbound %T", v))
	}
	ctrl := &pinCtrl{rt: rt, cell: v.Raw(), refs: 1}
	rt.host.RegisterRoot(&ctrl.cell)
	return &Pinned[T]{ctrl: ctrl, proto: v}
}

// Get returns the pinned value. Pinned objects never move, so the
// handle is stable for the pin's lifetime.
func (p *Pinned[T]) Get() T {
	if p.ctrl == nil {
		panic("bridge: use of a released pin")
	}
	return p.proto.rebuild(p.ctrl.rt, p.ctrl.cell)
}

// Retain adds a reference and returns an independent handle to the
// same pin.
func (p *Pinned[T]) Retain() *Pinned[T] {
	if p.ctrl == nil {
		panic("bridge: use of a released pin")
	}
	p.ctrl.refs++
	return &Pinned[T]{ctrl: p.ctrl, proto: p.proto}
}

// Release drops one reference; the last release unroots the value.
func (p *Pinned[T]) Release() {
	if p.ctrl == nil {
		panic("bridge: double release of a pin")
	}
	p.ctrl.refs--
	if p.ctrl.refs == 0 {
		p.ctrl.rt.host.UnregisterRoot(&p.ctrl.cell)
	}
	p.ctrl = nil
}
