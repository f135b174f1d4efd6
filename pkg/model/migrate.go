package model

import "math"

// Event describes the structural edit an owner is undergoing.
type Event struct {
	Op    Operation
	Owner Entity
	// Other is the new or partner entity: the split-off part, the merge
	// target, the replacement, the tolerant or exact counterpart, or the
	// copy. It is nil for transform and geometry change.
	Other     Entity
	Transform Transform
	// Deleting is set on merge when Owner is about to be lost.
	Deleting bool
	// Reversed is set on replace when the roles of owner and replacement
	// are swapped, and on tolerant conversion back to exact geometry.
	Reversed bool
}

// Hook interfaces implemented by attributes declaring ActionCustom.
type (
	CopyHook interface {
		CopyOwner(ev Event) error
	}
	MergeHook interface {
		MergeOwner(ev Event) error
	}
	SplitHook interface {
		SplitOwner(ev Event) error
	}
	TransformHook interface {
		TransformOwner(ev Event) error
	}
	ReplaceHook interface {
		ReplaceOwner(ev Event) error
	}
	TolerantHook interface {
		TolerantOwner(ev Event) error
	}
	GeometryHook interface {
		GeometryChanged(ev Event) error
	}
)

// Transformable is implemented by entities carrying geometry that an affine
// transform moves. TransformAll backs them up before calling it.
type Transformable interface {
	ApplyTransform(t Transform) error
}

type strategy func(a Attribute, ev Event) error

var strategies = [numActions]strategy{
	ActionLose:      loseStrategy,
	ActionKeep:      keepStrategy,
	ActionDuplicate: duplicateStrategy,
	ActionCustom:    runCustom,
}

type customHook func(a Attribute, ev Event) (bool, error)

var customHooks = [numOperations]customHook{
	OpCopy: func(a Attribute, ev Event) (bool, error) {
		h, ok := a.(CopyHook)
		if !ok {
			return false, nil
		}
		return true, h.CopyOwner(ev)
	},
	OpMerge: func(a Attribute, ev Event) (bool, error) {
		h, ok := a.(MergeHook)
		if !ok {
			return false, nil
		}
		return true, h.MergeOwner(ev)
	},
	OpSplit: func(a Attribute, ev Event) (bool, error) {
		h, ok := a.(SplitHook)
		if !ok {
			return false, nil
		}
		return true, h.SplitOwner(ev)
	},
	OpTransform: func(a Attribute, ev Event) (bool, error) {
		h, ok := a.(TransformHook)
		if !ok {
			return false, nil
		}
		return true, h.TransformOwner(ev)
	},
	OpReplace: func(a Attribute, ev Event) (bool, error) {
		h, ok := a.(ReplaceHook)
		if !ok {
			return false, nil
		}
		return true, h.ReplaceOwner(ev)
	},
	OpTolerant: func(a Attribute, ev Event) (bool, error) {
		h, ok := a.(TolerantHook)
		if !ok {
			return false, nil
		}
		return true, h.TolerantOwner(ev)
	},
	OpGeometryChange: func(a Attribute, ev Event) (bool, error) {
		h, ok := a.(GeometryHook)
		if !ok {
			return false, nil
		}
		return true, h.GeometryChanged(ev)
	},
}

func loseStrategy(a Attribute, _ Event) error { return Lose(a) }

func keepStrategy(Attribute, Event) error { return nil }

func duplicateStrategy(a Attribute, ev Event) error {
	if isNil(ev.Other) {
		return nil
	}
	_, err := DuplicateAttribute(a, ev.Other)
	return err
}

func runCustom(a Attribute, ev Event) error {
	ran, err := customHooks[ev.Op](a, ev)
	if !ran {
		return contractErr(ev.Op.String(), a, ErrMissingHook)
	}
	return err
}

// Dispatch applies attr's resolved action for ev.Op.
func Dispatch(attr Attribute, ev Event) error {
	act := ResolveAction(attr, ev.Op)
	if act == ActionUnset || act >= numActions {
		act = builtinDefaults.Get(ev.Op)
	}
	return strategies[act](attr, ev)
}

// migrate dispatches ev to every attribute on owner. Attributes a previous
// strategy already removed are skipped.
func migrate(owner Entity, ev Event) error {
	if isNil(owner) {
		return contractErr(ev.Op.String(), nil, ErrNilEntity)
	}
	if owner.Core().hdr == nil {
		return contractErr(ev.Op.String(), owner, ErrNotCreated)
	}
	for _, a := range owner.Core().Attributes() {
		if a.Core().IsLost() || a.attrib().owner != owner {
			continue
		}
		if err := Dispatch(a, ev); err != nil {
			return err
		}
	}
	return nil
}

// Split tells owner's attributes that created was split off from it.
func Split(owner, created Entity) error {
	return migrate(owner, Event{Op: OpSplit, Owner: owner, Other: created})
}

// Merge tells from's attributes that from is being merged into into. deleting
// reports that from will be lost afterwards.
func Merge(from, into Entity, deleting bool) error {
	return migrate(from, Event{Op: OpMerge, Owner: from, Other: into, Deleting: deleting})
}

// Replace tells owner's attributes that replacement takes owner's place.
func Replace(owner, replacement Entity, reversed bool) error {
	return migrate(owner, Event{Op: OpReplace, Owner: owner, Other: replacement, Reversed: reversed})
}

// ToTolerant tells owner's attributes that tolerant replaces exact owner.
func ToTolerant(owner, tolerant Entity) error {
	return migrate(owner, Event{Op: OpTolerant, Owner: owner, Other: tolerant})
}

// FromTolerant tells tolerant owner's attributes that exact replaces it.
func FromTolerant(owner, exact Entity) error {
	return migrate(owner, Event{Op: OpTolerant, Owner: owner, Other: exact, Reversed: true})
}

// GeometryChanged tells owner's attributes that its geometry was modified in
// place.
func GeometryChanged(owner Entity) error {
	return migrate(owner, Event{Op: OpGeometryChange, Owner: owner})
}

// TransformAll applies t to every entity reachable downward from roots. Each
// entity in the closure is visited once: transformable entities are backed up
// and moved, then their attributes receive the transform event.
func TransformAll(roots []Entity, t Transform) error {
	for _, e := range Scan(roots, ScanDownOnly) {
		if _, ok := e.(Attribute); ok {
			continue
		}
		if tr, ok := e.(Transformable); ok {
			if err := e.Core().Backup(); err != nil {
				return err
			}
			if err := tr.ApplyTransform(t); err != nil {
				return err
			}
		}
		if err := migrate(e, Event{Op: OpTransform, Owner: e, Transform: t}); err != nil {
			return err
		}
	}
	return nil
}

// Transform is an affine map: a uniform scale, then a rotation, then a
// translation.
type Transform struct {
	Rotation    [3][3]float64
	Translation [3]float64
	Scale       float64
}

// IdentityTransform returns the transform that leaves points unchanged.
func IdentityTransform() Transform {
	return Transform{Rotation: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, Scale: 1}
}

// Translation returns a pure translation.
func Translation(x, y, z float64) Transform {
	t := IdentityTransform()
	t.Translation = [3]float64{x, y, z}
	return t
}

// Scaling returns a uniform scale about the origin.
func Scaling(s float64) Transform {
	t := IdentityTransform()
	t.Scale = s
	return t
}

// RotationZ returns a rotation by angle radians about the z axis.
func RotationZ(angle float64) Transform {
	c, s := math.Cos(angle), math.Sin(angle)
	t := IdentityTransform()
	t.Rotation = [3][3]float64{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
	return t
}

// Apply maps p through t.
func (t Transform) Apply(p [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		var v float64
		for j := 0; j < 3; j++ {
			v += t.Rotation[i][j] * p[j] * t.Scale
		}
		out[i] = v + t.Translation[i]
	}
	return out
}

// ApplyVector maps a direction through t, ignoring translation.
func (t Transform) ApplyVector(v [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i] += t.Rotation[i][j] * v[j] * t.Scale
		}
	}
	return out
}

// Then returns the transform applying t first and next second.
func (t Transform) Then(next Transform) Transform {
	var out Transform
	out.Scale = t.Scale * next.Scale
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out.Rotation[i][j] += next.Rotation[i][k] * t.Rotation[k][j]
			}
		}
	}
	out.Translation = next.Apply(t.Translation)
	return out
}

// IsIdentity reports whether t leaves every point unchanged.
func (t Transform) IsIdentity() bool {
	return t == IdentityTransform()
}
