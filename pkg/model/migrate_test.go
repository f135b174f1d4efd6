package model

import (
	"errors"
	"math"
	"testing"
)

// TestSplitScenario follows one attribute with a duplicate split action
// through a split that is then discarded.
func TestSplitScenario(t *testing.T) {
	d, s := newTestDoc()
	begin(t, s, "setup")
	e1 := create(t, s, &node{value: 1})
	p1 := create(t, s, &note{text: "P1"})
	if err := p1.SetAction(OpSplit, ActionDuplicate); err != nil {
		t.Fatalf("set action: %v", err)
	}
	attach(t, e1, p1)
	commit(t, s)
	baseline := d.Allocated()

	begin(t, s, "split")
	if err := e1.Backup(); err != nil {
		t.Fatalf("backup: %v", err)
	}
	e2 := create(t, s, &node{value: 2})
	if err := Split(e1, e2); err != nil {
		t.Fatalf("split: %v", err)
	}
	attrs1, attrs2 := e1.Attributes(), e2.Attributes()
	if len(attrs1) != 1 || len(attrs2) != 1 {
		t.Fatalf("expected one attribute on each side, got %d and %d", len(attrs1), len(attrs2))
	}
	p1c, ok := attrs2[0].(*note)
	if !ok || p1c == p1 || p1c.text != "P1" || attrs1[0] != Attribute(p1) {
		t.Fatalf("split did not produce an independent clone")
	}
	clone := p1c

	if err := s.Discard(); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if got := e1.Attributes(); len(got) != 1 || got[0] != Attribute(p1) {
		t.Fatalf("E1 should carry only P1 after discard, got %v", kindsOf(got))
	}
	if p1.Owner() != Entity(e1) || p1.text != "P1" {
		t.Fatalf("P1 changed by discard")
	}
	if !e2.Deallocated() || !clone.Deallocated() {
		t.Fatalf("E2 and its clone must be deallocated, refs=%d/%d", e2.BulletinRefs(), clone.BulletinRefs())
	}
	if d.Allocated() != baseline {
		t.Fatalf("allocated = %d, want %d", d.Allocated(), baseline)
	}
}

// TestMigrationCompleteness drives every operation with every action on an
// owner carrying a single attribute.
func TestMigrationCompleteness(t *testing.T) {
	type driver func(t *testing.T, s *Stream, owner, other *node) Entity
	pair := func(fn func(owner, other Entity) error) driver {
		return func(t *testing.T, s *Stream, owner, other *node) Entity {
			if err := fn(owner, other); err != nil {
				t.Fatalf("migrate: %v", err)
			}
			return other
		}
	}
	drivers := map[Operation]driver{
		OpCopy: func(t *testing.T, s *Stream, owner, _ *node) Entity {
			c, err := CopyOne(s, owner, CopyDeep)
			if err != nil {
				t.Fatalf("copy: %v", err)
			}
			return c
		},
		OpMerge:   pair(func(o, x Entity) error { return Merge(o, x, false) }),
		OpSplit:   pair(Split),
		OpReplace: pair(func(o, x Entity) error { return Replace(o, x, false) }),
		OpTolerant: pair(func(o, x Entity) error {
			return ToTolerant(o, x)
		}),
		OpTransform: func(t *testing.T, _ *Stream, owner, _ *node) Entity {
			if err := TransformAll([]Entity{owner}, Translation(1, 0, 0)); err != nil {
				t.Fatalf("transform: %v", err)
			}
			return nil
		},
		OpGeometryChange: func(t *testing.T, _ *Stream, owner, _ *node) Entity {
			if err := GeometryChanged(owner); err != nil {
				t.Fatalf("geometry change: %v", err)
			}
			return nil
		},
	}

	for _, op := range Operations() {
		for _, act := range []Action{ActionLose, ActionKeep, ActionDuplicate, ActionCustom} {
			t.Run(op.String()+"/"+act.String(), func(t *testing.T) {
				_, s := newTestDoc()
				var log []string
				begin(t, s, "case")
				owner := create(t, s, &node{})
				other := create(t, s, &node{})
				attr := create(t, s, &note{text: "n", log: &log})
				if err := attr.SetAction(op, act); err != nil {
					t.Fatalf("set action: %v", err)
				}
				attach(t, owner, attr)

				result := drivers[op](t, s, owner, other)

				onOwner := len(owner.Attributes())
				onResult := 0
				if result != nil {
					onResult = len(result.Core().Attributes())
				}
				switch act {
				case ActionLose:
					if !attr.IsLost() || onOwner != 0 || onResult != 0 {
						t.Fatalf("lose: lost=%v owner=%d result=%d", attr.IsLost(), onOwner, onResult)
					}
				case ActionKeep:
					if attr.Owner() != Entity(owner) || onResult != 0 {
						t.Fatalf("keep: owner=%v result=%d", attr.Owner(), onResult)
					}
				case ActionDuplicate:
					if attr.Owner() != Entity(owner) {
						t.Fatalf("duplicate moved the original")
					}
					if result == nil {
						return
					}
					if onResult != 1 || result.Core().FirstAttribute() == Attribute(attr) {
						t.Fatalf("duplicate: result carries %d attributes", onResult)
					}
				case ActionCustom:
					if len(log) != 1 || log[0] != op.String()+":n" {
						t.Fatalf("custom hook log = %v", log)
					}
				}
			})
		}
	}
}

func TestCustomWithoutHookFails(t *testing.T) {
	_, s := newTestDoc()
	begin(t, s, "custom")
	owner := create(t, s, &node{})
	other := create(t, s, &node{})
	b := create(t, s, &bare{})
	if err := b.SetAction(OpMerge, ActionCustom); err != nil {
		t.Fatalf("set action: %v", err)
	}
	attach(t, owner, b)
	err := Merge(owner, other, true)
	if !errors.Is(err, ErrMissingHook) {
		t.Fatalf("expected ErrMissingHook, got %v", err)
	}
	var ce *ContractError
	if !errors.As(err, &ce) || ce.Op != "merge" {
		t.Fatalf("expected contract error for merge, got %v", err)
	}
}

func TestTransformAllVisitsClosureOnce(t *testing.T) {
	_, s := newTestDoc()
	var log []string
	begin(t, s, "setup")
	a := create(t, s, &node{pos: [3]float64{1, 0, 0}})
	b := create(t, s, &node{pos: [3]float64{0, 1, 0}})
	a.peer, b.peer = b, a
	for _, n := range []*node{a, b} {
		attr := create(t, s, &note{text: "t", log: &log})
		if err := attr.SetAction(OpTransform, ActionCustom); err != nil {
			t.Fatalf("set action: %v", err)
		}
		attach(t, n, attr)
	}
	commit(t, s)

	begin(t, s, "move")
	if err := TransformAll([]Entity{a, b}, Translation(0, 0, 2)); err != nil {
		t.Fatalf("transform: %v", err)
	}
	if a.pos != [3]float64{1, 0, 2} || b.pos != [3]float64{0, 1, 2} {
		t.Fatalf("positions = %v %v", a.pos, b.pos)
	}
	if len(log) != 2 {
		t.Fatalf("expected one hook call per owner, got %v", log)
	}
	if err := s.Discard(); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if a.pos != [3]float64{1, 0, 0} {
		t.Fatalf("discard did not restore position: %v", a.pos)
	}
}

func TestTransformComposition(t *testing.T) {
	rot := RotationZ(math.Pi / 2)
	moved := rot.Then(Translation(1, 0, 0)).Apply([3]float64{1, 0, 0})
	if math.Abs(moved[0]-1) > 1e-9 || math.Abs(moved[1]-1) > 1e-9 {
		t.Fatalf("rotate then translate = %v", moved)
	}
	if !IdentityTransform().IsIdentity() || Scaling(2).IsIdentity() {
		t.Fatalf("identity detection wrong")
	}
	if got := Scaling(2).ApplyVector([3]float64{1, 2, 3}); got != [3]float64{2, 4, 6} {
		t.Fatalf("scaled vector = %v", got)
	}
}

func TestDispatchUsesPolicyOverride(t *testing.T) {
	d, s := newTestDoc()
	d.Registry().SetOverrides("test_note", Behavior{}.With(OpGeometryChange, ActionLose))
	begin(t, s, "policy")
	owner := create(t, s, &node{})
	attr := create(t, s, &note{})
	attach(t, owner, attr)
	if err := GeometryChanged(owner); err != nil {
		t.Fatalf("geometry changed: %v", err)
	}
	if !attr.IsLost() {
		t.Fatalf("policy override should lose the attribute")
	}
}
