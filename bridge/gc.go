package bridge

import (
	hb "github.com/hostbridge/hostbridge"
)

// GC is the phase-aware capability handed to mark hooks. One hook
// serves both collector passes: during marking the Mark methods
// declare reachability, during compaction MarkMovable rewrites the
// referenced slot to the relocated handle and MarkPinned does nothing,
// because a pinned object never moved.
//
// A GC is only valid for the duration of the hook invocation, and mark
// hooks must not allocate host objects or raise.
type GC struct {
	rt  *Runtime
	raw hb.GC
}

// NewGC wraps the host's per-pass capability. Binding layers call this
// from their mark and compact callbacks.
func NewGC(rt *Runtime, raw hb.GC) *GC {
	return &GC{rt: rt, raw: raw}
}

// Phase returns the current collector phase.
func (g *GC) Phase() hb.Phase { return g.raw.Phase() }

// MarkMovable declares the value at v reachable and relocatable. The
// slot is updated in place when the referent moves, so the same call
// is correct in both phases. Pass the address of the field the struct
// actually stores.
func (g *GC) MarkMovable(v *Value) {
	if v == nil || v.rt == nil {
		return
	}
	if g.raw.Phase() == hb.Marking {
		g.raw.MarkMovable(v.h)
		return
	}
	v.h = g.raw.NewLocation(v.h)
}

// MarkPinned declares the value at v reachable and immovable for this
// collection. No-op during compaction.
func (g *GC) MarkPinned(v *Value) {
	if v == nil || v.rt == nil {
		return
	}
	g.raw.MarkPinned(v.h)
}

// MarkHandle is the raw-handle variant of MarkMovable for structs that
// store handles directly.
func (g *GC) MarkHandle(h *hb.Handle) {
	if h == nil {
		return
	}
	if g.raw.Phase() == hb.Marking {
		g.raw.MarkMovable(*h)
		return
	}
	*h = g.raw.NewLocation(*h)
}
