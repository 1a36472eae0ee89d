package minihost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hb "github.com/hostbridge/hostbridge"
)

func TestSweepCollectsUnreachable(t *testing.T) {
	s := New()
	base := s.LiveObjects()

	kept := s.NewString([]byte("kept"))
	s.RegisterRoot(&kept)
	defer s.UnregisterRoot(&kept)

	for i := 0; i < 10; i++ {
		s.NewString([]byte("garbage"))
	}
	assert.Equal(t, base+11, s.LiveObjects())

	s.GCStart(false)
	assert.Equal(t, base+1, s.LiveObjects())
	assert.Equal(t, "kept", string(s.StringBytes(kept)))
}

func TestReachabilityThroughContainers(t *testing.T) {
	s := New()

	inner := s.NewString([]byte("deep"))
	arr := s.NewArray([]hb.Handle{inner})
	s.RegisterRoot(&arr)
	defer s.UnregisterRoot(&arr)

	// also reachable: ivar values and proc captures
	root := must(s.Builtin("Object"))
	cls := s.DefineClass(root, s.Intern("Holder"), hb.Nil)
	obj := s.NewInstance(cls, nil)
	s.IVarSet(obj, s.Intern("@v"), s.NewString([]byte("ivar")))
	s.ArrayPush(arr, obj)

	captured := s.NewString([]byte("captured"))
	proc := s.NewProc(func(self hb.Handle, argv []hb.Handle) hb.Handle {
		return hb.Nil
	}, []hb.Handle{captured})
	s.ArrayPush(arr, proc)

	s.GCStart(false)

	assert.Equal(t, "deep", string(s.StringBytes(s.ArrayGet(arr, 0))))
	held := s.ArrayGet(arr, 1)
	assert.Equal(t, "ivar", string(s.StringBytes(s.IVarGet(held, s.Intern("@v")))))
}

func TestCompactionRelocatesAndRewrites(t *testing.T) {
	s := New()

	// interleave survivors with garbage so survivors sit in high slots
	// with holes below them
	var garbage []hb.Handle
	arr := s.NewArray(nil)
	s.RegisterRoot(&arr)
	defer s.UnregisterRoot(&arr)
	for i := 0; i < 20; i++ {
		garbage = append(garbage, s.NewString([]byte("junk")))
		s.ArrayPush(arr, s.NewString([]byte{byte('a' + i)}))
	}
	_ = garbage

	before := make([]hb.Handle, 20)
	serials := make([]uint64, 20)
	for i := 0; i < 20; i++ {
		before[i] = s.ArrayGet(arr, i)
		serials[i] = s.Serial(before[i])
	}

	s.GCStart(true)

	moved := 0
	for i := 0; i < 20; i++ {
		after := s.ArrayGet(arr, i)
		assert.Equal(t, string([]byte{byte('a' + i)}), string(s.StringBytes(after)))
		assert.Equal(t, serials[i], s.Serial(after), "identity survives relocation")
		if after != before[i] {
			moved++
		}
	}
	assert.Greater(t, moved, 0, "compaction should relocate at least one survivor")
}

func TestCompactionLeavesPinnedInPlace(t *testing.T) {
	s := New()

	pinned := s.NewString([]byte("pinned"))
	s.RegisterRoot(&pinned)
	defer s.UnregisterRoot(&pinned)

	// garbage below the pinned object opens holes it must not slide into
	for i := 0; i < 5; i++ {
		s.NewString([]byte("junk"))
	}
	movable := s.NewString([]byte("movable"))
	arr := s.NewArray([]hb.Handle{movable})
	s.RegisterRoot(&arr)
	defer s.UnregisterRoot(&arr)

	was := pinned
	s.GCStart(true)

	assert.Equal(t, was, pinned, "registered roots pin their referent")
	assert.Equal(t, "pinned", string(s.StringBytes(pinned)))
	assert.Equal(t, "movable", string(s.StringBytes(s.ArrayGet(arr, 0))))
}

func TestTypedObjectHooks(t *testing.T) {
	s := New()
	root := must(s.Builtin("Object"))
	cls := s.DefineClass(root, s.Intern("Node"), hb.Nil)
	s.RegisterRoot(&cls)
	defer s.UnregisterRoot(&cls)

	type node struct {
		label hb.Handle
	}

	marks, compacts, frees := 0, 0, 0
	dt := &hb.DataType{
		Name:  "Node",
		Class: cls,
		Mark: func(gc hb.GC, data any) {
			marks++
			gc.MarkMovable(data.(*node).label)
		},
		Compact: func(gc hb.GC, data any) {
			compacts++
			n := data.(*node)
			n.label = gc.NewLocation(n.label)
		},
		Free: func(data any) {
			frees++
		},
		Size: func(data any) uintptr { return 16 },
	}

	obj := s.NewTypedObject(cls, dt)
	s.RegisterRoot(&obj)
	s.SetTypedData(obj, &node{label: s.NewString([]byte("label"))})

	got, ok := s.TypedData(obj, dt)
	require.True(t, ok)
	require.NotNil(t, got)
	assert.Equal(t, dt, s.DataTypeOf(obj))

	// garbage so compaction actually moves the label string
	for i := 0; i < 8; i++ {
		s.NewString([]byte("junk"))
	}
	s.GCStart(true)

	assert.Equal(t, 1, marks, "mark hook runs once per pass")
	assert.Equal(t, 1, compacts, "compact hook runs once per compaction")
	assert.Equal(t, 0, frees)
	n := got.(*node)
	assert.Equal(t, "label", string(s.StringBytes(n.label)), "label survives through the hook")

	// dropping the root sweeps the object and runs the destructor
	s.UnregisterRoot(&obj)
	s.GCStart(false)
	assert.Equal(t, 1, frees, "free hook runs exactly once on sweep")
}

func TestTypedDataChecksDescriptorAncestry(t *testing.T) {
	s := New()
	root := must(s.Builtin("Object"))
	base := s.DefineClass(root, s.Intern("Shape"), hb.Nil)
	derived := s.DefineClass(root, s.Intern("Circle"), base)

	dtBase := &hb.DataType{Name: "Shape", Class: base}
	dtDerived := &hb.DataType{Name: "Circle", Class: derived, Parent: dtBase}
	dtOther := &hb.DataType{Name: "Other"}

	obj := s.NewTypedObject(derived, dtDerived)
	s.SetTypedData(obj, "payload")

	_, ok := s.TypedData(obj, dtDerived)
	assert.True(t, ok, "exact descriptor matches")
	_, ok = s.TypedData(obj, dtBase)
	assert.True(t, ok, "ancestor descriptor matches")
	_, ok = s.TypedData(obj, dtOther)
	assert.False(t, ok, "unrelated descriptor does not")
}

func TestUninitializedTypedShell(t *testing.T) {
	s := New()
	root := must(s.Builtin("Object"))
	cls := s.DefineClass(root, s.Intern("Shell"), hb.Nil)
	dt := &hb.DataType{Name: "Shell", Class: cls}

	obj := s.NewTypedObject(cls, dt)
	data, ok := s.TypedData(obj, dt)
	assert.True(t, ok, "descriptor matches even before initialization")
	assert.Nil(t, data, "shell data starts empty")
}

func TestPendingExceptionSurvivesCompaction(t *testing.T) {
	s := New()
	runtimeErr := must(s.Builtin("RuntimeError"))

	exc := s.NewException(runtimeErr, "held")
	s.SetPendingException(exc)
	for i := 0; i < 6; i++ {
		s.NewString([]byte("junk"))
	}
	s.GCStart(true)

	got := s.PendingException()
	assert.Equal(t, "held", s.ExceptionMessage(got))
	s.SetPendingException(hb.Nil)
}
