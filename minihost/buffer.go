package minihost

import (
	hb "github.com/hostbridge/hostbridge"
)

// NewBuffer allocates a zeroed byte buffer of n bytes.
func (s *Space) NewBuffer(n int) hb.Handle {
	if n < 0 {
		s.raiseBuiltin("ArgumentError", "negative buffer size %d", n)
	}
	return s.alloc(&object{
		kind:  hb.KindBuffer,
		class: s.builtin("Buffer"),
		buf:   &bufferData{data: make([]byte, n)},
	})
}

func (s *Space) bufferObj(h hb.Handle) *object {
	o := s.obj(h)
	if o == nil || o.kind != hb.KindBuffer {
		s.raiseBuiltin("TypeError", "expected a Buffer but got a %s", s.KindOf(h))
	}
	return o
}

// BufferBytes returns the live backing bytes.
func (s *Space) BufferBytes(h hb.Handle) []byte {
	return s.bufferObj(h).buf.data
}

// BufferResize reallocates the buffer, preserving the common prefix.
func (s *Space) BufferResize(h hb.Handle, n int) {
	o := s.bufferObj(h)
	if o.buf.locked {
		s.raiseBuiltin("RuntimeError", "can't resize a locked buffer")
	}
	s.CheckFrozen(h)
	if n < 0 {
		s.raiseBuiltin("ArgumentError", "negative buffer size %d", n)
	}
	next := make([]byte, n)
	copy(next, o.buf.data)
	o.buf.data = next
}

// BufferLock marks the buffer as externally held; resizes are refused
// until the matching unlock.
func (s *Space) BufferLock(h hb.Handle) {
	o := s.bufferObj(h)
	if o.buf.locked {
		s.raiseBuiltin("RuntimeError", "buffer is already locked")
	}
	o.buf.locked = true
}

func (s *Space) BufferUnlock(h hb.Handle) {
	o := s.bufferObj(h)
	if !o.buf.locked {
		s.raiseBuiltin("RuntimeError", "buffer is not locked")
	}
	o.buf.locked = false
}
