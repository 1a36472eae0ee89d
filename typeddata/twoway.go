package typeddata

import (
	"github.com/hostbridge/hostbridge/bridge"
	berrors "github.com/hostbridge/hostbridge/errors"

	hb "github.com/hostbridge/hostbridge"
)

// Markable is implemented by bound structs that hold host values. The
// hook runs in both collector phases with a phase-aware capability:
// mark every held value through it and relocation comes for free.
type Markable interface {
	MarkRefs(g *bridge.GC)
}

// Freeable is implemented by bound structs that own native resources.
// Free runs exactly once, when the owning host object is swept.
type Freeable interface {
	Free()
}

// MemSizer reports native memory attributed to the struct for host
// accounting. Bindings fall back to the Go type's shallow size.
type MemSizer interface {
	MemSize() uintptr
}

// TwoWay links a bound struct back to its owning host object. Embed it
// when handlers need to return the bare struct pointer and have it
// convert to the existing wrapper instead of failing.
//
// The association is set once, when the struct is installed into a
// shell; installing the same struct under a second object is fatal.
type TwoWay struct {
	owner hb.Handle
	set   bool
}

// ownerCarrier is how bindings reach the embedded TwoWay.
type ownerCarrier interface {
	associate(h hb.Handle, goType string) error
	ownerHandle() (hb.Handle, bool)
	markOwner(g *bridge.GC)
}

func (t *TwoWay) associate(h hb.Handle, goType string) error {
	if t.set {
		return berrors.DoubleAssociation(goType)
	}
	t.owner = h
	t.set = true
	return nil
}

func (t *TwoWay) ownerHandle() (hb.Handle, bool) {
	return t.owner, t.set
}

// markOwner keeps the back reference correct across relocation. The
// hook only runs while the owner itself is being traced, so marking it
// is redundant; the work happens on compaction, rewriting the cell.
func (t *TwoWay) markOwner(g *bridge.GC) {
	if t.set {
		g.MarkHandle(&t.owner)
	}
}

// Owner returns the owning host object, if the struct was installed.
func (t *TwoWay) Owner(rt *bridge.Runtime) (bridge.Value, bool) {
	if !t.set {
		return bridge.Value{}, false
	}
	return rt.Wrap(t.owner), true
}
