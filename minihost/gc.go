package minihost

import (
	"go.uber.org/zap"

	hb "github.com/hostbridge/hostbridge"
)

// collector implements hostbridge.GC for the duration of one pass.
type collector struct {
	s     *Space
	phase hb.Phase
	work  []hb.Handle
}

func (c *collector) Phase() hb.Phase {
	return c.phase
}

func (c *collector) MarkMovable(h hb.Handle) {
	c.mark(h, false)
}

// MarkPinned during Compaction is contractually a no-op.
func (c *collector) MarkPinned(h hb.Handle) {
	if c.phase == hb.Compaction {
		return
	}
	c.mark(h, true)
}

func (c *collector) mark(h hb.Handle, pin bool) {
	o := c.s.obj(h)
	if o == nil {
		return
	}
	if pin {
		o.pinned = true
	}
	if !o.marked {
		o.marked = true
		c.work = append(c.work, h)
	}
}

// NewLocation maps a pre-compaction handle to its new slot. Identity
// outside Compaction and for anything that did not move.
func (c *collector) NewLocation(h hb.Handle) hb.Handle {
	if c.phase != hb.Compaction {
		return h
	}
	return c.s.fwd(h)
}

// fwd resolves a handle through the forwarding set up by the current
// compaction. Valid only between location assignment and slot install.
func (s *Space) fwd(h hb.Handle) hb.Handle {
	o := s.obj(h)
	if o == nil || o.forward == 0 {
		return h
	}
	return o.forward
}

// RegisterRoot roots and pins the handle stored at addr. The cell is
// re-read on every pass and rewritten if the referent relocates.
func (s *Space) RegisterRoot(addr *hb.Handle) {
	s.roots[addr] = struct{}{}
}

func (s *Space) UnregisterRoot(addr *hb.Handle) {
	delete(s.roots, addr)
}

// GCStart forces a full collection. With compact set, surviving
// unpinned objects are moved to new slots and every handle the space
// can reach is rewritten; handles held only on the native side without
// a root are left dangling on purpose.
func (s *Space) GCStart(compact bool) {
	c := &collector{s: s, phase: hb.Marking}

	for i := reservedSlots; i < len(s.slots); i++ {
		if o := s.slots[i]; o != nil {
			o.marked = false
			o.pinned = false
			o.forward = 0
		}
	}

	// roots
	for _, h := range s.builtins {
		c.MarkPinned(h)
	}
	for _, h := range s.symbols {
		c.MarkPinned(h)
	}
	for _, h := range s.fstrings {
		c.MarkPinned(h)
	}
	for addr := range s.roots {
		c.MarkPinned(*addr)
	}
	c.MarkMovable(s.pending)
	c.MarkMovable(s.queued)
	for _, b := range s.blockStack {
		c.MarkMovable(b)
	}

	// trace
	for len(c.work) > 0 {
		h := c.work[len(c.work)-1]
		c.work = c.work[:len(c.work)-1]
		s.markChildren(c, s.mustObj(h))
	}

	live, swept := 0, 0
	if compact {
		live, swept = s.compact(c)
		s.compactRuns++
	} else {
		live, swept = s.sweep()
	}
	s.gcRuns++

	s.log.Debug("collection pass finished",
		zap.Bool("compact", compact),
		zap.Int("live", live),
		zap.Int("swept", swept),
		zap.Int("runs", s.gcRuns))
}

// markChildren pushes everything reachable from o.
func (s *Space) markChildren(c *collector, o *object) {
	c.MarkMovable(o.class)
	c.MarkMovable(o.singleton)
	for _, v := range o.ivars {
		c.MarkMovable(v)
	}
	for _, e := range o.elems {
		c.MarkMovable(e)
	}
	if o.mod != nil {
		c.MarkMovable(o.mod.super)
		for _, v := range o.mod.consts {
			c.MarkMovable(v)
		}
	}
	if o.proc != nil {
		for _, cap := range o.proc.captures {
			c.MarkMovable(cap)
		}
	}
	if o.typed != nil {
		// descriptor classes stay rooted for the process lifetime
		c.MarkPinned(o.typed.dt.Class)
		if o.typed.data != nil && o.typed.dt.Mark != nil {
			o.typed.dt.Mark(c, o.typed.data)
		}
	}
}

// freeObject runs the native destructor of a swept typed object.
func (s *Space) freeObject(o *object) {
	if o.typed != nil && o.typed.data != nil && o.typed.dt.Free != nil {
		o.typed.dt.Free(o.typed.data)
	}
}

// sweep reclaims unmarked slots in place.
func (s *Space) sweep() (live, swept int) {
	for i := reservedSlots; i < len(s.slots); i++ {
		o := s.slots[i]
		if o == nil {
			continue
		}
		if o.marked {
			live++
			continue
		}
		s.freeObject(o)
		s.slots[i] = nil
		s.free = append(s.free, i)
		swept++
	}
	return live, swept
}

// compact assigns new slots to live objects, lets typed hooks and root
// cells observe the relocation, then installs the new layout. Pinned
// objects keep their slot; movable ones pack toward the low end.
func (s *Space) compact(c *collector) (live, swept int) {
	n := len(s.slots)
	next := make([]*object, n)

	// pinned objects first, keeping their positions
	for i := reservedSlots; i < n; i++ {
		o := s.slots[i]
		if o != nil && o.marked && o.pinned {
			next[i] = o
			o.forward = hb.FromSlot(i)
			live++
		}
	}
	// movable objects pack into the lowest empty slots
	cursor := reservedSlots
	for i := reservedSlots; i < n; i++ {
		o := s.slots[i]
		if o == nil || !o.marked || o.pinned {
			continue
		}
		for next[cursor] != nil {
			cursor++
		}
		next[cursor] = o
		o.forward = hb.FromSlot(cursor)
		live++
	}

	// update: every reachable handle is rewritten through the forward
	// map while the old layout is still addressable
	c.phase = hb.Compaction
	for i := reservedSlots; i < n; i++ {
		o := s.slots[i]
		if o == nil || !o.marked {
			continue
		}
		s.forwardChildren(o)
		if o.typed != nil && o.typed.data != nil && o.typed.dt.Compact != nil {
			o.typed.dt.Compact(c, o.typed.data)
		}
	}
	for name, h := range s.builtins {
		s.builtins[name] = s.fwd(h)
	}
	for id, h := range s.symbols {
		s.symbols[id] = s.fwd(h)
	}
	for key, h := range s.fstrings {
		s.fstrings[key] = s.fwd(h)
	}
	for addr := range s.roots {
		*addr = s.fwd(*addr)
	}
	s.pending = s.fwd(s.pending)
	s.queued = s.fwd(s.queued)
	for i, b := range s.blockStack {
		s.blockStack[i] = s.fwd(b)
	}

	// sweep the dead before the old layout disappears
	for i := reservedSlots; i < n; i++ {
		if o := s.slots[i]; o != nil && !o.marked {
			s.freeObject(o)
			swept++
		}
	}

	// install, dropping the empty tail
	top := reservedSlots
	for i := reservedSlots; i < n; i++ {
		if next[i] != nil {
			top = i + 1
		}
	}
	s.slots = next[:top]
	s.free = s.free[:0]
	for i := reservedSlots; i < top; i++ {
		if s.slots[i] == nil {
			s.free = append(s.free, i)
		}
	}
	return live, swept
}

// forwardChildren rewrites the handles held inside o.
func (s *Space) forwardChildren(o *object) {
	o.class = s.fwd(o.class)
	if o.singleton != 0 {
		o.singleton = s.fwd(o.singleton)
	}
	for k, v := range o.ivars {
		o.ivars[k] = s.fwd(v)
	}
	for i, e := range o.elems {
		o.elems[i] = s.fwd(e)
	}
	if o.mod != nil {
		o.mod.super = s.fwd(o.mod.super)
		for k, v := range o.mod.consts {
			o.mod.consts[k] = s.fwd(v)
		}
	}
	if o.proc != nil {
		for i, cap := range o.proc.captures {
			o.proc.captures[i] = s.fwd(cap)
		}
	}
}
