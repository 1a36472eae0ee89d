package minihost

import (
	hb "github.com/hostbridge/hostbridge"
)

// NewTypedObject wraps an empty native-struct shell. The data slot
// stays nil until SetTypedData installs the struct.
func (s *Space) NewTypedObject(class hb.Handle, dt *hb.DataType) hb.Handle {
	if dt == nil {
		s.raiseBuiltin("TypeError", "typed object requires a descriptor")
	}
	s.moduleObj(class)
	return s.alloc(&object{
		kind:  hb.KindTypedObject,
		class: class,
		typed: &typedSlot{dt: dt},
	})
}

// TypedData returns the native struct of h when h's descriptor is dt
// or a descendant of dt.
func (s *Space) TypedData(h hb.Handle, dt *hb.DataType) (any, bool) {
	o := s.obj(h)
	if o == nil || o.typed == nil {
		return nil, false
	}
	if !dt.IsAncestorOf(o.typed.dt) {
		return nil, false
	}
	return o.typed.data, true
}

// SetTypedData installs the native struct into an allocated shell.
func (s *Space) SetTypedData(h hb.Handle, data any) {
	o := s.obj(h)
	if o == nil || o.typed == nil {
		s.raiseBuiltin("TypeError", "not a typed object: %s", s.render(h, true))
	}
	o.typed.data = data
}

// DataTypeOf returns h's descriptor, or nil for untyped handles.
func (s *Space) DataTypeOf(h hb.Handle) *hb.DataType {
	o := s.obj(h)
	if o == nil || o.typed == nil {
		return nil
	}
	return o.typed.dt
}
