package model

import (
	"errors"
	"reflect"
	"testing"
)

func TestAttachPrependsAndLinksOwner(t *testing.T) {
	_, s := newTestDoc()
	begin(t, s, "attach")
	n := create(t, s, &node{})
	first := create(t, s, &note{text: "first"})
	second := create(t, s, &bare{})
	attach(t, n, first)
	attach(t, n, second)

	if got := kindsOf(n.Attributes()); !reflect.DeepEqual(got, []string{"test_bare", "test_note"}) {
		t.Fatalf("attribute order = %v", got)
	}
	if second.Next() != Attribute(first) || first.Prev() != Attribute(second) || n.FirstAttribute() != Attribute(second) {
		t.Fatalf("list links inconsistent")
	}
	if first.Owner() != Entity(n) || OwnerOf(second) != Entity(n) {
		t.Fatalf("owner pointer not set")
	}
	if err := Attach(create(t, s, &node{}), first); !errors.Is(err, ErrAttached) {
		t.Fatalf("expected ErrAttached, got %v", err)
	}
	if err := Attach(first, first); !errors.Is(err, ErrSelfAttach) {
		t.Fatalf("expected ErrSelfAttach, got %v", err)
	}
	if n.FindAttribute(noteKind) != Attribute(first) {
		t.Fatalf("FindAttribute did not find the note")
	}
}

func TestUnhookRequiresBackup(t *testing.T) {
	_, s := newTestDoc()
	begin(t, s, "setup")
	n := create(t, s, &node{})
	a := create(t, s, &note{text: "a"})
	b := create(t, s, &note{text: "b"})
	c := create(t, s, &note{text: "c"})
	attach(t, n, c)
	attach(t, n, b)
	attach(t, n, a)
	commit(t, s)

	begin(t, s, "unhook")
	if err := b.Unhook(); !errors.Is(err, ErrNotBackedUp) {
		t.Fatalf("expected ErrNotBackedUp, got %v", err)
	}
	if err := b.Backup(); err != nil {
		t.Fatalf("backup: %v", err)
	}
	if err := b.Unhook(); err != nil {
		t.Fatalf("unhook: %v", err)
	}
	if a.Next() != Attribute(c) || c.Prev() != Attribute(a) || b.Owner() != nil {
		t.Fatalf("neighbours not relinked")
	}
	for _, e := range []Entity{n, a, c} {
		if e.Core().Rollback() == nil {
			t.Fatalf("%T not backed up automatically", e)
		}
	}
	if err := b.Unhook(); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("expected ErrNotAttached, got %v", err)
	}
	if err := s.Discard(); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if a.Next() != Attribute(b) || b.Owner() != Entity(n) || b.Next() != Attribute(c) {
		t.Fatalf("discard did not relink b")
	}
}

func TestLoseOwnerLosesDeletableAttributes(t *testing.T) {
	_, s := newTestDoc()
	begin(t, s, "setup")
	n := create(t, s, &node{})
	doomed := create(t, s, &note{})
	kept := create(t, s, &sticky{})
	attach(t, n, doomed)
	attach(t, n, kept)
	commit(t, s)

	begin(t, s, "lose")
	if err := Lose(n); err != nil {
		t.Fatalf("lose: %v", err)
	}
	if !doomed.IsLost() {
		t.Fatalf("deletable attribute should be lost with its owner")
	}
	if kept.IsLost() || kept.Owner() != nil {
		t.Fatalf("non-deletable attribute should be detached and kept: lost=%v owner=%v", kept.IsLost(), kept.Owner())
	}
	commit(t, s)
	if _, err := s.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if n.IsLost() || doomed.IsLost() || kept.Owner() != Entity(n) {
		t.Fatalf("undo should restore owner and attributes")
	}
}

func TestLoseAttachedAttributeUnhooksIt(t *testing.T) {
	_, s := newTestDoc()
	begin(t, s, "setup")
	n := create(t, s, &node{})
	a := create(t, s, &note{})
	attach(t, n, a)
	if err := Lose(a); err != nil {
		t.Fatalf("lose: %v", err)
	}
	if len(n.Attributes()) != 0 {
		t.Fatalf("lost attribute still on list")
	}
}

func TestDuplicateAttributeRespectsPredicates(t *testing.T) {
	_, s := newTestDoc()
	begin(t, s, "dup")
	from := create(t, s, &node{})
	to := create(t, s, &node{})
	ok := create(t, s, &note{text: "copy me"})
	refused := create(t, s, &sticky{noCopy: true})
	attach(t, from, ok)
	attach(t, from, refused)

	clone, err := DuplicateAttribute(ok, to)
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	cn, isNote := clone.(*note)
	if !isNote || cn == ok || cn.text != "copy me" || cn.Owner() != Entity(to) {
		t.Fatalf("bad clone %+v", clone)
	}
	if ok.Owner() != Entity(from) {
		t.Fatalf("original moved")
	}
	got, err := DuplicateAttribute(refused, to)
	if err != nil || got != nil {
		t.Fatalf("non-duplicatable attribute should not clone: %v %v", got, err)
	}
}

func TestActionResolutionOrder(t *testing.T) {
	d, s := newTestDoc()
	begin(t, s, "resolve")
	a := create(t, s, &sticky{})
	if got := a.Action(OpSplit); got != ActionDuplicate {
		t.Fatalf("kind default: got %s", got)
	}
	if got := a.Action(OpMerge); got != ActionKeep {
		t.Fatalf("built-in default: got %s", got)
	}
	d.Registry().SetOverrides("test_sticky", Behavior{}.With(OpSplit, ActionLose).With(OpMerge, ActionLose))
	if got := a.Action(OpSplit); got != ActionLose {
		t.Fatalf("policy override: got %s", got)
	}
	if err := a.SetAction(OpSplit, ActionCustom); err != nil {
		t.Fatalf("set action: %v", err)
	}
	if got := a.Action(OpSplit); got != ActionCustom {
		t.Fatalf("instance override: got %s", got)
	}
	d.Registry().SetOverrides("attrib", Behavior{}.With(OpCopy, ActionKeep))
	if got := a.Action(OpCopy); got != ActionKeep {
		t.Fatalf("ancestor override: got %s", got)
	}
}

func TestGenericAttribKeepsDeclaredActions(t *testing.T) {
	_, s := newTestDoc()
	begin(t, s, "generic")
	g := create(t, s, NewGenericAttrib("vendor_tag", Behavior{}.With(OpSplit, ActionDuplicate), []byte(`{"k":1}`)))
	if g.Action(OpSplit) != ActionDuplicate || g.OriginalKind() != "vendor_tag" {
		t.Fatalf("generic attrib lost its declaration")
	}
	if StateOf(g).Kind != "vendor_tag" || string(g.Raw()) != `{"k":1}` {
		t.Fatalf("generic attrib state %+v", StateOf(g))
	}
}

func TestPolicyOverridesGenericAttribDeclaration(t *testing.T) {
	d, s := newTestDoc()
	d.Registry().SetOverrides("vendor_tag", Behavior{}.With(OpSplit, ActionLose))
	begin(t, s, "setup")
	owner := create(t, s, &node{})
	other := create(t, s, &node{})
	g := create(t, s, NewGenericAttrib("vendor_tag", Behavior{}.With(OpSplit, ActionDuplicate).With(OpMerge, ActionLose), nil))
	attach(t, owner, g)
	commit(t, s)

	if got := ResolveAction(g, OpSplit); got != ActionLose {
		t.Fatalf("split action = %s, want lose", got)
	}
	if got := ResolveAction(g, OpMerge); got != ActionLose {
		t.Fatalf("merge action = %s, want declared lose", got)
	}

	begin(t, s, "split")
	if err := Split(owner, other); err != nil {
		t.Fatalf("split: %v", err)
	}
	commit(t, s)
	if len(owner.Attributes()) != 0 || len(other.Attributes()) != 0 || !g.IsLost() {
		t.Fatalf("after split: owner attrs=%d other attrs=%d lost=%v", len(owner.Attributes()), len(other.Attributes()), g.IsLost())
	}
}
