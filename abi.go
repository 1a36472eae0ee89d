package hostbridge

// Handle is an opaque host-managed reference to a runtime object. It
// may encode an immediate value (nil, booleans, small integers) or
// refer to a boxed object in the host's object space. Handles are
// cheap to copy and never owned by native code; a handle to a boxed
// object is only guaranteed stable until the next compaction pass
// unless rooted or pinned.
//
// The immediate encoding is part of the ABI so that predicates on
// special constants need no host call:
//
//	0x00        false
//	0x08        nil
//	0x14        true
//	0x34        undef (never visible to host code)
//	(n<<1)|1    integer n (fixnum)
//	k<<3, k>=8  boxed object in slot k
type Handle uint64

const (
	False Handle = 0x00
	Nil   Handle = 0x08
	True  Handle = 0x14
	Undef Handle = 0x34
)

// The fixnum immediate holds 63 bits; integers outside this range have
// no handle encoding and must be rejected before FromFixnum.
const (
	FixnumMax int64 = 1<<62 - 1
	FixnumMin int64 = -1 << 62
)

// FromFixnum encodes a small integer as an immediate handle. The value
// must be within the fixnum range.
func FromFixnum(n int64) Handle { return Handle(uint64(n)<<1 | 1) }

// IsFixnum reports whether h encodes an immediate integer.
func IsFixnum(h Handle) bool { return h&1 == 1 }

// FixnumValue decodes an immediate integer handle.
func FixnumValue(h Handle) int64 { return int64(uint64(h)) >> 1 }

// IsBoxed reports whether h refers to a boxed object.
func IsBoxed(h Handle) bool { return h&7 == 0 && h >= 0x40 }

// Slot returns the object-space slot index of a boxed handle.
func Slot(h Handle) int { return int(h >> 3) }

// FromSlot builds the boxed handle for a slot index.
func FromSlot(i int) Handle { return Handle(uint64(i) << 3) }

// Truthy reports the host truth value of h: everything except nil and
// false is true.
func Truthy(h Handle) bool { return h != Nil && h != False }

// ID is an interned identifier (method names, constant names, symbol
// contents). Static IDs are never collected and safe to store on the
// Go heap.
type ID uint32

// Tag identifies why a non-local control transfer occurred inside the
// host. TagNone means normal return and TagRaise means an exception is
// pending; every other value is opaque to native code and must be
// re-injected verbatim if it unwinds through a native frame.
type Tag int

const (
	TagNone  Tag = 0
	TagRaise Tag = 6
)

// Kind is the dynamic kind of a handle, used for checked narrowing.
type Kind uint8

const (
	KindNone Kind = iota
	KindNil
	KindTrue
	KindFalse
	KindFixnum
	KindFloat
	KindString
	KindSymbol
	KindArray
	KindModule
	KindClass
	KindProc
	KindException
	KindBuffer
	KindObject
	KindTypedObject
)

var kindNames = [...]string{
	KindNone: "none", KindNil: "nil", KindTrue: "true", KindFalse: "false",
	KindFixnum: "Integer", KindFloat: "Float", KindString: "String",
	KindSymbol: "Symbol", KindArray: "Array", KindModule: "Module",
	KindClass: "Class", KindProc: "Proc", KindException: "Exception",
	KindBuffer: "Buffer", KindObject: "Object", KindTypedObject: "Object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// RawFunc is the single fixed calling convention the host invokes
// registered methods through: receiver plus positional arguments in,
// one result handle out. Everything richer (typed receivers, optional
// arguments, splats, blocks) is layered on top by trampolines.
type RawFunc func(self Handle, argv []Handle) Handle

// AllocFunc produces an empty, uninitialized instance of a class. The
// host calls it for typed-object classes before the visible
// constructor runs; allocation and initialization are independently
// invokable host operations.
type AllocFunc func(class Handle) Handle

// Phase is the collector phase a GC callback is invoked under.
type Phase uint8

const (
	Marking Phase = iota
	Compaction
)

func (p Phase) String() string {
	if p == Marking {
		return "marking"
	}
	return "compaction"
}

// GC is the capability the host passes into typed-object mark and
// compact hooks. Implementations must be used only for the duration of
// the callback. These callbacks must never raise: a violation is a
// contract failure, not a recoverable error.
type GC interface {
	// Phase returns the current collector phase.
	Phase() Phase

	// MarkMovable declares h reachable and relocatable. Only
	// meaningful during Marking.
	MarkMovable(h Handle)

	// MarkPinned declares h reachable and immovable. Only meaningful
	// during Marking; a no-op contractually during Compaction.
	MarkPinned(h Handle)

	// NewLocation returns the post-compaction handle for h. Only
	// meaningful during Compaction; identity during Marking.
	NewLocation(h Handle) Handle
}

// DataType describes one native struct type bound to one host class.
// Exactly one DataType exists per bound Go type; it is created at
// extension load and immutable afterward. The host invokes the hooks
// during collection and sweep; Class is rooted by the host for the
// process lifetime.
type DataType struct {
	// Name is the diagnostic name of the binding, usually the host
	// class path.
	Name string

	// Parent is the descriptor of the bound native parent class, if
	// the Go type wraps a subclass of another bound class.
	Parent *DataType

	// Class is the host class this descriptor was bound to. The host
	// treats this field as a registered root.
	Class Handle

	// Mark is called once per object during every Marking pass. It
	// must pass every handle reachable from data through gc.
	Mark func(gc GC, data any)

	// Compact is called once per object during every Compaction pass
	// to rewrite relocated handles held by data.
	Compact func(gc GC, data any)

	// Free destroys the native struct when its owning host object is
	// swept. It is the only place the struct may be destroyed.
	Free func(data any)

	// Size reports the native memory attributed to data, for host
	// accounting.
	Size func(data any) uintptr
}

// IsAncestorOf reports whether dt appears in the parent chain of
// other, including other itself. Hosts use it for checked typed-data
// access on subclasses.
func (dt *DataType) IsAncestorOf(other *DataType) bool {
	for d := other; d != nil; d = d.Parent {
		if d == dt {
			return true
		}
	}
	return false
}

// Host is the embedding surface a bridge runtime consumes. All calls
// must be made while holding the host's execution token unless noted.
// Operations documented as "may jump" can trigger a non-local
// transfer; callers must issue them inside Protect.
//
// The reference implementation lives in package minihost.
type Host interface {
	// --- identity and kinds ---

	// KindOf returns the dynamic kind of h.
	KindOf(h Handle) Kind
	// ClassOf returns the class of h.
	ClassOf(h Handle) Handle
	// ClassName returns the name path of a class or module handle, or
	// the class name of any other object, for diagnostics.
	ClassName(h Handle) string
	// Serial returns a logical object identity that survives
	// compaction. Immediates are their own identity.
	Serial(h Handle) uint64

	// --- interning and literals ---

	Intern(name string) ID
	IDName(id ID) string
	SymbolOf(id ID) Handle
	SymbolID(h Handle) ID

	NewString(b []byte) Handle
	// InternString returns a frozen, deduplicated string.
	InternString(b []byte) Handle
	StringBytes(h Handle) []byte
	StringLen(h Handle) int
	// StringAppend mutates a string in place. May jump (frozen).
	StringAppend(h Handle, b []byte) Handle

	NewFloat(f float64) Handle
	FloatValue(h Handle) float64

	NewArray(elems []Handle) Handle
	ArrayLen(h Handle) int
	// ArrayGet may jump (index error).
	ArrayGet(h Handle, i int) Handle
	// ArrayPush may jump (frozen).
	ArrayPush(h Handle, v Handle) Handle
	// ArrayPop may jump (frozen).
	ArrayPop(h Handle) Handle

	// NewException builds an exception instance without running host
	// code. Never jumps; usable inside boundary translation.
	NewException(class Handle, msg string) Handle
	ExceptionMessage(h Handle) string

	// --- classes, modules, constants, methods ---

	// Builtin returns a well-known class or module by name ("Object",
	// "RuntimeError", ...). The boolean is false if the host does not
	// provide it.
	Builtin(name string) (Handle, bool)
	// DefineModule may jump (name collision).
	DefineModule(under Handle, name ID) Handle
	NewModule() Handle
	// DefineClass may jump (name collision, bad superclass).
	DefineClass(under Handle, name ID, super Handle) Handle
	NewClass(super Handle) Handle
	Superclass(h Handle) Handle
	// SingletonClass may jump.
	SingletonClass(h Handle) Handle

	// DefineMethod registers fn under the fixed calling convention.
	// Registration is process-lifetime; fn is never released.
	DefineMethod(class Handle, name ID, fn RawFunc)
	DefineAllocFunc(class Handle, fn AllocFunc)

	ConstDefined(mod Handle, name ID) bool
	// ConstGet may jump (name error).
	ConstGet(mod Handle, name ID) Handle
	// ConstSet may jump (frozen).
	ConstSet(mod Handle, name ID, v Handle)

	// --- calls ---

	// Call invokes a method. block may be Nil. May jump.
	Call(recv Handle, name ID, args []Handle, block Handle) Handle
	// NewInstance allocates and initializes. May jump.
	NewInstance(class Handle, args []Handle) Handle
	// Allocate produces an uninitialized instance. May jump.
	Allocate(class Handle) Handle
	// Clone produces a shallow copy, running the class's copy hook.
	// May jump.
	Clone(h Handle) Handle
	// CurrentBlock returns the block attached to the innermost active
	// native method call, if any.
	CurrentBlock() (Handle, bool)
	// NewProc wraps a native callable as a host procedure. captures
	// are handles the callable closes over; the host keeps them live
	// and relocates them.
	NewProc(fn RawFunc, captures []Handle) Handle
	// ProcCall may jump.
	ProcCall(proc Handle, args []Handle) Handle
	// Inspect and DisplayString render h. May jump.
	Inspect(h Handle) Handle
	DisplayString(h Handle) Handle

	IVarDefined(h Handle, name ID) bool
	// IVarGet never jumps; missing ivars read as nil.
	IVarGet(h Handle, name ID) Handle
	// IVarSet may jump (frozen).
	IVarSet(h Handle, name ID, v Handle)

	// --- freezing ---

	Freeze(h Handle) Handle
	IsFrozen(h Handle) bool
	// CheckFrozen jumps with the host's immutability error if h is
	// frozen.
	CheckFrozen(h Handle)

	// --- exceptions and jumps ---

	// Protect runs fn under the host's jump barrier and reports how
	// it returned. The returned handle is valid only for TagNone.
	Protect(fn func() Handle) (Handle, Tag)
	// PendingException returns the exception set by the last TagRaise.
	PendingException() Handle
	// SetPendingException replaces the pending exception; pass Nil to
	// clear it.
	SetPendingException(h Handle)
	// Raise sets h pending and jumps with TagRaise.
	Raise(h Handle)
	// InjectJump re-enters the host's jump mechanism with an opaque
	// tag previously observed from Protect.
	InjectJump(tag Tag)
	// ThrowTag and CatchTag expose the host's non-exception jump
	// mechanism. CatchTag reports whether fn threw tag.
	ThrowTag(tag Tag)
	CatchTag(tag Tag, fn func() Handle) (Handle, bool)

	// --- typed objects ---

	// NewTypedObject wraps an empty native-struct shell: the data slot
	// is nil until SetTypedData.
	NewTypedObject(class Handle, dt *DataType) Handle
	// TypedData returns the native struct of h if h's descriptor is dt
	// or a descendant of dt.
	TypedData(h Handle, dt *DataType) (any, bool)
	// SetTypedData installs the native struct into an allocated shell.
	SetTypedData(h Handle, data any)
	// DataTypeOf returns h's descriptor, or nil.
	DataTypeOf(h Handle) *DataType

	// --- garbage collection ---

	// RegisterRoot roots and pins the handle stored at addr; the host
	// re-reads and may rewrite *addr on every pass.
	RegisterRoot(addr *Handle)
	UnregisterRoot(addr *Handle)
	// GCStart forces a collection, with or without compaction.
	GCStart(compact bool)
	// LiveObjects reports the number of live boxed objects.
	LiveObjects() int

	// --- buffers ---

	NewBuffer(n int) Handle
	// BufferBytes may jump (locked).
	BufferBytes(h Handle) []byte
	// BufferResize may jump (locked, frozen).
	BufferResize(h Handle, n int)
	// BufferLock and BufferUnlock may jump (double lock/unlock).
	BufferLock(h Handle)
	BufferUnlock(h Handle)

	// --- execution token ---

	// HoldsToken reports whether the caller holds the host's logical
	// execution token.
	HoldsToken() bool
	// ReleaseToken runs fn without the token. The host may invoke
	// unblock to request early interruption. Touching any handle or
	// calling any other Host method from inside fn is forbidden by
	// caller contract.
	ReleaseToken(fn func(), unblock func())
	// Interrupt queues exc for delivery: immediately via the pending
	// unblock callback if the token is released, otherwise on the next
	// Protect call.
	Interrupt(exc Handle)
}
