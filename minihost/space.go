package minihost

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	hb "github.com/hostbridge/hostbridge"
)

// reservedSlots keeps the low handle range free for the immediate
// encoding; the first boxed object lives in slot 8.
const reservedSlots = 8

// object is one boxed entry in the space. Payload fields are populated
// according to kind; everything else stays zero.
type object struct {
	kind   hb.Kind
	class  hb.Handle
	serial uint64
	frozen bool

	// singleton is the per-object class used for dispatch, 0 when the
	// object has none.
	singleton hb.Handle

	// collector working state, valid only inside a pass
	marked  bool
	pinned  bool
	forward hb.Handle

	ivars map[hb.ID]hb.Handle

	str      []byte
	interned bool
	fval     float64
	sym      hb.ID
	elems    []hb.Handle
	msg      string
	mod      *moduleData
	proc     *procData
	buf      *bufferData
	typed    *typedSlot
}

type moduleData struct {
	name    string
	super   hb.Handle
	consts  map[hb.ID]hb.Handle
	methods map[hb.ID]hb.RawFunc
	alloc   hb.AllocFunc
	// isSingleton marks per-object classes created by SingletonClass.
	isSingleton bool
}

type procData struct {
	fn       hb.RawFunc
	captures []hb.Handle
}

type bufferData struct {
	data   []byte
	locked bool
}

type typedSlot struct {
	dt   *hb.DataType
	data any
}

// Space is an in-process object space implementing hostbridge.Host.
// Not safe for concurrent use.
type Space struct {
	slots []*object
	free  []int

	nextSerial uint64

	ids      map[string]hb.ID
	idNames  []string
	symbols  map[hb.ID]hb.Handle
	fstrings map[string]hb.Handle

	builtins map[string]hb.Handle

	roots map[*hb.Handle]struct{}

	pending    hb.Handle
	blockStack []hb.Handle

	tokenHeld bool
	unblock   func()
	queued    hb.Handle

	gcRuns      int
	compactRuns int

	log *zap.Logger
}

// Option configures a Space.
type Option func(*Space)

// WithLogger sets the logger used for collector pass reporting.
func WithLogger(log *zap.Logger) Option {
	return func(s *Space) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates an empty space with the well-known classes seeded.
func New(opts ...Option) *Space {
	s := &Space{
		slots:     make([]*object, reservedSlots),
		ids:       make(map[string]hb.ID),
		symbols:   make(map[hb.ID]hb.Handle),
		fstrings:  make(map[string]hb.Handle),
		builtins:  make(map[string]hb.Handle),
		roots:     make(map[*hb.Handle]struct{}),
		pending:   hb.Nil,
		queued:    hb.Nil,
		tokenHeld: true,
		log:       nopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.seedBuiltins()
	return s
}

// alloc places obj in the lowest free slot and returns its handle.
func (s *Space) alloc(obj *object) hb.Handle {
	s.nextSerial++
	obj.serial = s.nextSerial
	var idx int
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
		s.slots[idx] = obj
	} else {
		idx = len(s.slots)
		s.slots = append(s.slots, obj)
	}
	return hb.FromSlot(idx)
}

// obj resolves a boxed handle, or nil for immediates and stale slots.
func (s *Space) obj(h hb.Handle) *object {
	if !hb.IsBoxed(h) {
		return nil
	}
	i := hb.Slot(h)
	if i < reservedSlots || i >= len(s.slots) {
		return nil
	}
	return s.slots[i]
}

// mustObj is obj for call sites that hold a handle the caller already
// validated; a miss is a contract failure, not a host exception.
func (s *Space) mustObj(h hb.Handle) *object {
	o := s.obj(h)
	if o == nil {
		panic(fmt.Sprintf("minihost: dangling or immediate handle %#x", uint64(h)))
	}
	return o
}

// --- identity and kinds ---

func (s *Space) KindOf(h hb.Handle) hb.Kind {
	switch {
	case h == hb.Nil:
		return hb.KindNil
	case h == hb.True:
		return hb.KindTrue
	case h == hb.False:
		return hb.KindFalse
	case hb.IsFixnum(h):
		return hb.KindFixnum
	}
	if o := s.obj(h); o != nil {
		return o.kind
	}
	return hb.KindNone
}

func (s *Space) ClassOf(h hb.Handle) hb.Handle {
	switch {
	case h == hb.Nil:
		return s.builtins["NilClass"]
	case h == hb.True:
		return s.builtins["TrueClass"]
	case h == hb.False:
		return s.builtins["FalseClass"]
	case hb.IsFixnum(h):
		return s.builtins["Integer"]
	}
	if o := s.obj(h); o != nil {
		return o.class
	}
	return hb.Nil
}

func (s *Space) ClassName(h hb.Handle) string {
	if o := s.obj(h); o != nil && o.mod != nil {
		if o.mod.name == "" {
			if o.mod.isSingleton {
				return "#<singleton class>"
			}
			return "#<anonymous>"
		}
		return o.mod.name
	}
	return s.ClassName(s.ClassOf(h))
}

func (s *Space) Serial(h hb.Handle) uint64 {
	if o := s.obj(h); o != nil {
		return o.serial
	}
	return uint64(h)
}

// --- interning ---

func (s *Space) Intern(name string) hb.ID {
	if id, ok := s.ids[name]; ok {
		return id
	}
	s.idNames = append(s.idNames, name)
	id := hb.ID(len(s.idNames)) // IDs start at 1; 0 is never valid
	s.ids[name] = id
	return id
}

func (s *Space) IDName(id hb.ID) string {
	if id == 0 || int(id) > len(s.idNames) {
		return ""
	}
	return s.idNames[id-1]
}

func (s *Space) SymbolOf(id hb.ID) hb.Handle {
	if h, ok := s.symbols[id]; ok {
		return h
	}
	h := s.alloc(&object{
		kind:   hb.KindSymbol,
		class:  s.builtins["Symbol"],
		frozen: true,
		sym:    id,
	})
	s.symbols[id] = h
	return h
}

func (s *Space) SymbolID(h hb.Handle) hb.ID {
	o := s.obj(h)
	if o == nil || o.kind != hb.KindSymbol {
		s.raiseBuiltin("TypeError", "expected a Symbol but got a %s", s.KindOf(h))
	}
	return o.sym
}

// --- strings ---

func (s *Space) NewString(b []byte) hb.Handle {
	cp := make([]byte, len(b))
	copy(cp, b)
	return s.alloc(&object{
		kind:  hb.KindString,
		class: s.builtins["String"],
		str:   cp,
	})
}

func (s *Space) InternString(b []byte) hb.Handle {
	key := string(b)
	if h, ok := s.fstrings[key]; ok {
		return h
	}
	h := s.alloc(&object{
		kind:     hb.KindString,
		class:    s.builtins["String"],
		frozen:   true,
		interned: true,
		str:      []byte(key),
	})
	s.fstrings[key] = h
	return h
}

// stringObj narrows h to a string object or raises TypeError.
func (s *Space) stringObj(h hb.Handle) *object {
	o := s.obj(h)
	if o == nil || o.kind != hb.KindString {
		s.raiseBuiltin("TypeError", "expected a String but got a %s", s.KindOf(h))
	}
	return o
}

// StringBytes returns the live backing bytes; callers must copy before
// the next host call that can mutate or collect.
func (s *Space) StringBytes(h hb.Handle) []byte {
	return s.stringObj(h).str
}

func (s *Space) StringLen(h hb.Handle) int {
	return len(s.stringObj(h).str)
}

func (s *Space) StringAppend(h hb.Handle, b []byte) hb.Handle {
	o := s.stringObj(h)
	s.CheckFrozen(h)
	o.str = append(o.str, b...)
	return h
}

// --- floats ---

func (s *Space) NewFloat(f float64) hb.Handle {
	return s.alloc(&object{
		kind:  hb.KindFloat,
		class: s.builtins["Float"],
		fval:  f,
	})
}

func (s *Space) FloatValue(h hb.Handle) float64 {
	o := s.obj(h)
	if o == nil || o.kind != hb.KindFloat {
		s.raiseBuiltin("TypeError", "expected a Float but got a %s", s.KindOf(h))
	}
	return o.fval
}

// --- arrays ---

func (s *Space) NewArray(elems []hb.Handle) hb.Handle {
	cp := make([]hb.Handle, len(elems))
	copy(cp, elems)
	return s.alloc(&object{
		kind:  hb.KindArray,
		class: s.builtins["Array"],
		elems: cp,
	})
}

func (s *Space) arrayObj(h hb.Handle) *object {
	o := s.obj(h)
	if o == nil || o.kind != hb.KindArray {
		s.raiseBuiltin("TypeError", "expected an Array but got a %s", s.KindOf(h))
	}
	return o
}

func (s *Space) ArrayLen(h hb.Handle) int {
	return len(s.arrayObj(h).elems)
}

func (s *Space) ArrayGet(h hb.Handle, i int) hb.Handle {
	o := s.arrayObj(h)
	if i < 0 || i >= len(o.elems) {
		s.raiseBuiltin("IndexError", "index %d outside of array bounds", i)
	}
	return o.elems[i]
}

func (s *Space) ArrayPush(h hb.Handle, v hb.Handle) hb.Handle {
	o := s.arrayObj(h)
	s.CheckFrozen(h)
	o.elems = append(o.elems, v)
	return h
}

func (s *Space) ArrayPop(h hb.Handle) hb.Handle {
	o := s.arrayObj(h)
	s.CheckFrozen(h)
	n := len(o.elems)
	if n == 0 {
		return hb.Nil
	}
	v := o.elems[n-1]
	o.elems = o.elems[:n-1]
	return v
}

// --- exceptions ---

// NewException builds an exception instance directly, bypassing the
// class's initialize. Safe inside boundary translation.
func (s *Space) NewException(class hb.Handle, msg string) hb.Handle {
	return s.alloc(&object{
		kind:  hb.KindException,
		class: class,
		msg:   msg,
	})
}

func (s *Space) ExceptionMessage(h hb.Handle) string {
	o := s.obj(h)
	if o == nil || o.kind != hb.KindException {
		s.raiseBuiltin("TypeError", "expected an Exception but got a %s", s.KindOf(h))
	}
	return o.msg
}

// --- instance variables ---

func (s *Space) IVarDefined(h hb.Handle, name hb.ID) bool {
	o := s.obj(h)
	if o == nil {
		return false
	}
	_, ok := o.ivars[name]
	return ok
}

func (s *Space) IVarGet(h hb.Handle, name hb.ID) hb.Handle {
	o := s.obj(h)
	if o == nil {
		return hb.Nil
	}
	if v, ok := o.ivars[name]; ok {
		return v
	}
	return hb.Nil
}

func (s *Space) IVarSet(h hb.Handle, name hb.ID, v hb.Handle) {
	o := s.obj(h)
	if o == nil {
		s.raiseBuiltin("TypeError", "cannot set instance variable on a %s", s.KindOf(h))
	}
	s.CheckFrozen(h)
	if o.ivars == nil {
		o.ivars = make(map[hb.ID]hb.Handle)
	}
	o.ivars[name] = v
}

// --- freezing ---

func (s *Space) Freeze(h hb.Handle) hb.Handle {
	if o := s.obj(h); o != nil {
		o.frozen = true
	}
	return h
}

func (s *Space) IsFrozen(h hb.Handle) bool {
	o := s.obj(h)
	if o == nil {
		// immediates are always frozen
		return true
	}
	return o.frozen
}

func (s *Space) CheckFrozen(h hb.Handle) {
	if s.IsFrozen(h) {
		s.raiseBuiltin("FrozenError", "can't modify frozen %s", s.ClassName(h))
	}
}

// LiveObjects reports the number of boxed objects currently in slots.
func (s *Space) LiveObjects() int {
	n := 0
	for i := reservedSlots; i < len(s.slots); i++ {
		if s.slots[i] != nil {
			n++
		}
	}
	return n
}

// render produces the diagnostic text for a handle. inspect selects the
// quoting form; display the to-string form.
func (s *Space) render(h hb.Handle, inspect bool) string {
	switch {
	case h == hb.Nil:
		if inspect {
			return "nil"
		}
		return ""
	case h == hb.True:
		return "true"
	case h == hb.False:
		return "false"
	case hb.IsFixnum(h):
		return strconv.FormatInt(hb.FixnumValue(h), 10)
	}
	o := s.obj(h)
	if o == nil {
		return fmt.Sprintf("#<stale handle %#x>", uint64(h))
	}
	switch o.kind {
	case hb.KindFloat:
		return strconv.FormatFloat(o.fval, 'g', -1, 64)
	case hb.KindString:
		if inspect {
			return strconv.Quote(string(o.str))
		}
		return string(o.str)
	case hb.KindSymbol:
		name := s.IDName(o.sym)
		if inspect {
			return ":" + name
		}
		return name
	case hb.KindArray:
		out := "["
		for i, e := range o.elems {
			if i > 0 {
				out += ", "
			}
			out += s.render(e, true)
		}
		return out + "]"
	case hb.KindModule, hb.KindClass:
		return s.ClassName(h)
	case hb.KindException:
		if inspect {
			return fmt.Sprintf("#<%s: %s>", s.ClassName(h), o.msg)
		}
		return o.msg
	case hb.KindProc:
		return "#<Proc>"
	case hb.KindBuffer:
		return fmt.Sprintf("#<Buffer size=%d>", len(o.buf.data))
	default:
		return fmt.Sprintf("#<%s>", s.ClassName(h))
	}
}

func (s *Space) Inspect(h hb.Handle) hb.Handle {
	return s.NewString([]byte(s.render(h, true)))
}

func (s *Space) DisplayString(h hb.Handle) hb.Handle {
	return s.NewString([]byte(s.render(h, false)))
}
