package minihost

import (
	"fmt"

	hb "github.com/hostbridge/hostbridge"
)

// jumpSignal carries a non-local transfer through Go frames. It is
// recovered by the innermost Protect or matching CatchTag; anything
// else must let it pass.
type jumpSignal struct {
	tag hb.Tag
}

func (j jumpSignal) String() string {
	return fmt.Sprintf("minihost jump (tag %d)", int(j.tag))
}

// Protect runs fn under the jump barrier. On a normal return the tag
// is TagNone; on any jump the returned handle is zero and the tag
// reports what happened. A queued interrupt is delivered before fn
// runs.
func (s *Space) Protect(fn func() hb.Handle) (h hb.Handle, tag hb.Tag) {
	if s.queued != hb.Nil {
		exc := s.queued
		s.queued = hb.Nil
		s.pending = exc
		return 0, hb.TagRaise
	}
	defer func() {
		if r := recover(); r != nil {
			j, ok := r.(jumpSignal)
			if !ok {
				panic(r)
			}
			h = 0
			tag = j.tag
		}
	}()
	return fn(), hb.TagNone
}

// PendingException returns the exception set by the last raise.
func (s *Space) PendingException() hb.Handle {
	return s.pending
}

// SetPendingException replaces the pending exception slot.
func (s *Space) SetPendingException(h hb.Handle) {
	s.pending = h
}

// Raise sets h pending and jumps with TagRaise.
func (s *Space) Raise(h hb.Handle) {
	s.pending = h
	panic(jumpSignal{tag: hb.TagRaise})
}

// raiseBuiltin raises a fresh instance of a seeded exception class.
func (s *Space) raiseBuiltin(class string, format string, args ...any) {
	s.Raise(s.NewException(s.builtin(class), fmt.Sprintf(format, args...)))
}

// InjectJump resumes a transfer previously observed from Protect. For
// TagRaise the pending exception must still be set.
func (s *Space) InjectJump(tag hb.Tag) {
	if tag == hb.TagNone {
		return
	}
	panic(jumpSignal{tag: tag})
}

// ThrowTag jumps with an arbitrary non-exception tag.
func (s *Space) ThrowTag(tag hb.Tag) {
	if tag == hb.TagNone || tag == hb.TagRaise {
		s.raiseBuiltin("ArgumentError", "cannot throw reserved tag %d", int(tag))
	}
	panic(jumpSignal{tag: tag})
}

// CatchTag runs fn and reports whether it threw tag. Other jumps keep
// unwinding.
func (s *Space) CatchTag(tag hb.Tag, fn func() hb.Handle) (h hb.Handle, caught bool) {
	defer func() {
		if r := recover(); r != nil {
			j, ok := r.(jumpSignal)
			if !ok || j.tag != tag {
				panic(r)
			}
			h = hb.Nil
			caught = true
		}
	}()
	return fn(), false
}

// --- execution token ---

// HoldsToken reports whether the logical execution token is held. The
// space is single-threaded, so this models state rather than enforcing
// exclusion.
func (s *Space) HoldsToken() bool {
	return s.tokenHeld
}

// ReleaseToken runs fn without the token. An interrupt arriving while
// released calls unblock so fn can return early; the exception itself
// is delivered on the next Protect.
func (s *Space) ReleaseToken(fn func(), unblock func()) {
	s.tokenHeld = false
	s.unblock = unblock
	defer func() {
		s.tokenHeld = true
		s.unblock = nil
	}()
	fn()
}

// Interrupt queues exc for delivery at the next Protect call. If the
// token is currently released the registered unblock callback fires.
func (s *Space) Interrupt(exc hb.Handle) {
	s.queued = exc
	if !s.tokenHeld && s.unblock != nil {
		s.unblock()
	}
}
