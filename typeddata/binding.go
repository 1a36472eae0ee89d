package typeddata

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	hb "github.com/hostbridge/hostbridge"
	"github.com/hostbridge/hostbridge/args"
	"github.com/hostbridge/hostbridge/bridge"
	berrors "github.com/hostbridge/hostbridge/errors"
)

var (
	regMu      sync.Mutex
	boundTypes = map[reflect.Type]struct{}{}
	// class serial → descriptor, per runtime, for native-inheritance
	// validation; serials are only unique within one host
	boundClasses = map[*bridge.Runtime]map[uint64]*hb.DataType{}
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

// Descriptor is the class-facing view of a binding, used to declare
// native inheritance between bound types.
type Descriptor interface {
	Class() bridge.Class
	DataType() *hb.DataType
}

type bindConfig struct {
	parent Descriptor
}

// BindOption configures a binding.
type BindOption func(*bindConfig)

// WithParent declares that the bound struct extends another bound
// type: the host class must inherit from the parent binding's class,
// and the Go struct must embed the parent struct as its first-level
// anonymous field.
func WithParent(parent Descriptor) BindOption {
	return func(c *bindConfig) {
		c.parent = parent
	}
}

// Binding connects one Go struct type to one host class. Exactly one
// binding may exist per Go type and per class; both are fixed at
// extension load.
type Binding[T any] struct {
	rt     *bridge.Runtime
	class  *bridge.Leak[bridge.Class]
	dt     *hb.DataType
	goType reflect.Type
	ptr    string
}

// Bind attaches T to class: installs the allocator that produces empty
// shells, builds the descriptor with the struct's mark/free/size
// hooks, and registers the *T converters. The class is rooted for the
// process lifetime.
func Bind[T any](class bridge.Class, opts ...BindOption) (*Binding[T], error) {
	rt := class.Runtime()
	if rt == nil {
		return nil, berrors.InvalidInput(berrors.PhaseBind, "class is not bound to a runtime")
	}
	goType := reflect.TypeOf((*T)(nil)).Elem()
	if goType.Kind() != reflect.Struct {
		return nil, berrors.InvalidInput(berrors.PhaseBind,
			fmt.Sprintf("bound type must be a struct, got %s", goType))
	}

	var cfg bindConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	var parentDT *hb.DataType
	if cfg.parent != nil {
		parentDT = cfg.parent.DataType()
	}

	host := rt.Host()

	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := boundTypes[goType]; dup {
		return nil, berrors.DoubleBinding(goType.String())
	}
	classes := boundClasses[rt]
	if classes == nil {
		classes = map[uint64]*hb.DataType{}
		boundClasses[rt] = classes
	}
	if _, dup := classes[host.Serial(class.Raw())]; dup {
		return nil, berrors.DoubleBinding(class.Name())
	}

	// the declared native parent must be exactly the nearest bound
	// ancestor in the host class hierarchy
	var inherited *hb.DataType
	for h := host.Superclass(class.Raw()); h != hb.Nil; h = host.Superclass(h) {
		if dt, ok := classes[host.Serial(h)]; ok {
			inherited = dt
			break
		}
	}
	if inherited != parentDT {
		return nil, &berrors.Error{
			Phase:  berrors.PhaseBind,
			Kind:   berrors.KindTypeMismatch,
			GoType: goType.String(),
			Detail: "superclass has mismatching native binding",
		}
	}

	b := &Binding[T]{
		rt:     rt,
		class:  bridge.NewLeak(class),
		goType: goType,
		ptr:    "*" + goType.String(),
	}

	// one hook serves marking and compaction through the phase-aware
	// capability
	hook := func(raw hb.GC, data any) {
		g := bridge.NewGC(rt, raw)
		if oc, ok := data.(ownerCarrier); ok {
			oc.markOwner(g)
		}
		if m, ok := data.(Markable); ok {
			m.MarkRefs(g)
		}
	}
	b.dt = &hb.DataType{
		Name:    class.Name(),
		Parent:  parentDT,
		Class:   class.Raw(),
		Mark:    hook,
		Compact: hook,
		Free: func(data any) {
			if f, ok := data.(Freeable); ok {
				f.Free()
			}
		},
		Size: func(data any) uintptr {
			if m, ok := data.(MemSizer); ok {
				return m.MemSize()
			}
			return goType.Size()
		},
	}

	_, err := rt.Protect(func() bridge.Value {
		host.DefineAllocFunc(class.Raw(), func(cls hb.Handle) hb.Handle {
			return host.NewTypedObject(cls, b.dt)
		})
		return rt.NilValue()
	})
	if err != nil {
		b.class.Release()
		return nil, berrors.Wrap(berrors.PhaseBind, berrors.KindRegistration, err,
			"installing allocator for "+class.Name())
	}

	if err := bridge.RegisterConverter[*T](
		func(rt *bridge.Runtime, v *T) bridge.Value {
			if v == nil {
				return rt.NilValue()
			}
			if oc, ok := any(v).(ownerCarrier); ok {
				if h, set := oc.ownerHandle(); set {
					return rt.Wrap(h)
				}
			}
			panic(berrors.NotAssociated(b.ptr))
		},
		func(rt *bridge.Runtime, v bridge.Value) (*T, error) {
			return b.Unwrap(v)
		},
	); err != nil {
		b.class.Release()
		return nil, err
	}

	boundTypes[goType] = struct{}{}
	classes[host.Serial(class.Raw())] = b.dt
	return b, nil
}

// Class returns the bound host class.
func (b *Binding[T]) Class() bridge.Class { return b.class.Get() }

// DataType returns the binding's descriptor.
func (b *Binding[T]) DataType() *hb.DataType { return b.dt }

// Unwrap returns the native struct behind v for read access. Fails if
// v is not an instance of the bound class (or a bound subclass), or if
// its constructor has not run.
func (b *Binding[T]) Unwrap(v bridge.Value) (*T, error) {
	data, ok := b.rt.Host().TypedData(v.Raw(), b.dt)
	if !ok {
		return nil, berrors.TypeMismatch(berrors.PhaseConvert, nil, b.ptr, v.ClassName())
	}
	if data == nil {
		return nil, berrors.NotInitialized(b.ptr)
	}
	out, ok := asEmbedded[T](data)
	if !ok {
		return nil, berrors.TypeMismatch(berrors.PhaseConvert, nil, b.ptr,
			reflect.TypeOf(data).String())
	}
	return out, nil
}

// UnwrapMutable is Unwrap plus a frozen check, for handlers that will
// modify the struct.
func (b *Binding[T]) UnwrapMutable(v bridge.Value) (*T, error) {
	if v.IsFrozen() {
		return nil, &berrors.Error{
			Phase:  berrors.PhaseCall,
			Kind:   berrors.KindFrozen,
			GoType: b.ptr,
			Detail: "can't modify frozen " + v.ClassName(),
		}
	}
	return b.Unwrap(v)
}

// asEmbedded recovers a *T from the stored struct pointer: either the
// exact type, or a bound subclass struct that embeds T.
func asEmbedded[T any](data any) (*T, bool) {
	if out, ok := data.(*T); ok {
		return out, true
	}
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return nil, false
	}
	elem := rv.Elem()
	want := reflect.TypeOf((*T)(nil)).Elem()
	for i := 0; i < elem.NumField(); i++ {
		f := elem.Type().Field(i)
		if !f.Anonymous {
			continue
		}
		// Addr().Interface() panics for unexported embedded fields, and
		// bound parent structs are usually unexported, so rebuild the
		// field pointer through unsafe instead.
		fp := unsafe.Pointer(elem.Field(i).UnsafeAddr())
		if f.Type == want {
			return (*T)(fp), true
		}
		// embedded bound parents may themselves embed the target
		if f.Type.Kind() == reflect.Struct {
			if out, ok := asEmbedded[T](reflect.NewAt(f.Type, fp).Interface()); ok {
				return out, true
			}
		}
	}
	return nil, false
}

// install puts data behind self and, for owner-carrying structs,
// records the association. A struct already owned elsewhere is
// rejected.
func (b *Binding[T]) install(self bridge.Value, data *T) error {
	if oc, ok := any(data).(ownerCarrier); ok {
		if err := oc.associate(self.Raw(), b.ptr); err != nil {
			return err
		}
	}
	b.rt.Host().SetTypedData(self.Raw(), data)
	return nil
}

// Wrap creates a fresh instance of the bound class around data,
// bypassing the visible constructor.
func (b *Binding[T]) Wrap(data *T) (bridge.Value, error) {
	if data == nil {
		return bridge.Value{}, berrors.InvalidInput(berrors.PhaseBind, "cannot wrap a nil struct")
	}
	rt := b.rt
	v, err := rt.Protect(func() bridge.Value {
		return rt.Wrap(rt.Host().NewTypedObject(b.class.Get().Raw(), b.dt))
	})
	if err != nil {
		return bridge.Value{}, err
	}
	if err := b.install(v, data); err != nil {
		return bridge.Value{}, err
	}
	return v, nil
}

// receiverSpec unwraps the bound receiver as the handler's first
// parameter.
type receiverSpec[T any] struct {
	b       *Binding[T]
	mutable bool
}

func (r receiverSpec[T]) GoType() reflect.Type {
	return reflect.PointerTo(r.b.goType)
}

func (r receiverSpec[T]) Stage() bridge.Stage { return bridge.StageReceiver }

func (r receiverSpec[T]) Describe() string { return "bound receiver" }

func (r receiverSpec[T]) Pull(c *bridge.Cursor) (reflect.Value, error) {
	self := c.Self()
	var (
		data *T
		err  error
	)
	if r.mutable {
		data, err = r.b.UnwrapMutable(self)
	} else {
		data, err = r.b.Unwrap(self)
	}
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(data), nil
}

// DefineMethod binds fn with the receiver unwrapped for read access:
// fn's first parameter is *T, the remaining parameters follow specs.
func (b *Binding[T]) DefineMethod(name string, fn any, specs ...bridge.ArgSpec) error {
	all := append([]bridge.ArgSpec{receiverSpec[T]{b: b}}, specs...)
	return b.Class().DefineMethod(name, fn, all...)
}

// DefineMutator is DefineMethod for handlers that modify the struct:
// a frozen receiver raises the host's immutability error before the
// handler runs.
func (b *Binding[T]) DefineMutator(name string, fn any, specs ...bridge.ArgSpec) error {
	all := append([]bridge.ArgSpec{receiverSpec[T]{b: b, mutable: true}}, specs...)
	return b.Class().DefineMethod(name, fn, all...)
}

// DefineConstructor binds fn as the class's initialize: it parses the
// construction arguments through specs, builds the struct, and
// installs it into the allocated shell. fn returns *T or (*T, error).
func (b *Binding[T]) DefineConstructor(fn any, specs ...bridge.ArgSpec) error {
	fnv := reflect.ValueOf(fn)
	fnt := fnv.Type()
	ptrT := reflect.PointerTo(b.goType)

	bad := func(detail string) error {
		return berrors.Registration(b.Class().Name(), "initialize",
			berrors.InvalidInput(berrors.PhaseRegister, detail))
	}
	if fnt.Kind() != reflect.Func {
		return bad("constructor must be a func")
	}
	switch fnt.NumOut() {
	case 1:
		if fnt.Out(0) != ptrT {
			return bad(fmt.Sprintf("constructor must return %s", ptrT))
		}
	case 2:
		if fnt.Out(0) != ptrT || !fnt.Out(1).Implements(errType) {
			return bad(fmt.Sprintf("constructor must return (%s, error)", ptrT))
		}
	default:
		return bad(fmt.Sprintf("constructor must return %s or (%s, error)", ptrT, ptrT))
	}

	// adapt to an initialize handler: (self, construction args) error
	ins := make([]reflect.Type, 0, fnt.NumIn()+1)
	ins = append(ins, reflect.TypeOf(bridge.Value{}))
	for i := 0; i < fnt.NumIn(); i++ {
		ins = append(ins, fnt.In(i))
	}
	wrappedType := reflect.FuncOf(ins, []reflect.Type{errType}, false)
	wrapped := reflect.MakeFunc(wrappedType, func(in []reflect.Value) []reflect.Value {
		self := in[0].Interface().(bridge.Value)
		out := fnv.Call(in[1:])
		errOut := reflect.New(errType).Elem()
		if len(out) == 2 && !out[1].IsNil() {
			errOut.Set(out[1])
			return []reflect.Value{errOut}
		}
		data := out[0].Interface().(*T)
		if data == nil {
			errOut.Set(reflect.ValueOf(error(berrors.InvalidInput(
				berrors.PhaseCall, "constructor returned no struct"))))
			return []reflect.Value{errOut}
		}
		if err := b.install(self, data); err != nil {
			errOut.Set(reflect.ValueOf(err))
			return []reflect.Value{errOut}
		}
		return []reflect.Value{errOut}
	})

	all := append([]bridge.ArgSpec{args.Receiver[bridge.Value]()}, specs...)
	return b.Class().DefineMethod("initialize", wrapped.Interface(), all...)
}

// DefineCopyConstructor wires the host's copy hook: cloning an
// instance builds a fresh struct from the source and installs it into
// the clone's shell. Without it, clones stay uninitialized.
func (b *Binding[T]) DefineCopyConstructor(fn func(src *T) (*T, error)) error {
	handler := func(self bridge.Value, source bridge.Value) error {
		src, err := b.Unwrap(source)
		if err != nil {
			return err
		}
		dup, err := fn(src)
		if err != nil {
			return err
		}
		if dup == nil {
			return berrors.InvalidInput(berrors.PhaseCall, "copy constructor returned no struct")
		}
		return b.install(self, dup)
	}
	return b.Class().DefineMethod("initialize_copy", handler,
		args.Receiver[bridge.Value](), args.Req[bridge.Value]("source"))
}
