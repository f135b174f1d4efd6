package model

import (
	"errors"
	"testing"
)

func TestCreateRequiresOpenBoard(t *testing.T) {
	_, s := newTestDoc()
	if _, err := Create(s, &node{}); !errors.Is(err, ErrNoOpenBoard) {
		t.Fatalf("expected ErrNoOpenBoard, got %v", err)
	}
	begin(t, s, "create")
	n := create(t, s, &node{})
	if _, err := Create(s, n); !errors.Is(err, ErrAlreadyCreated) {
		t.Fatalf("expected ErrAlreadyCreated, got %v", err)
	}
	if n.Rollback() == nil || n.Rollback().Type() != BulletinCreate {
		t.Fatalf("expected creation bulletin, got %+v", n.Rollback())
	}
	var ce *ContractError
	if _, err := Create(s, n); !errors.As(err, &ce) || ce.Kind != "test_node" {
		t.Fatalf("expected contract error naming kind, got %v", err)
	}
}

func TestBackupIsIdempotentWithinBoard(t *testing.T) {
	_, s := newTestDoc()
	begin(t, s, "setup")
	n := create(t, s, &node{value: 1})
	commit(t, s)

	begin(t, s, "edit")
	if err := n.Backup(); err != nil {
		t.Fatalf("backup: %v", err)
	}
	first := n.Rollback()
	if err := n.setValue(2); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if n.Rollback() != first {
		t.Fatalf("second backup filed a new bulletin")
	}
	if got := s.Board().Len(); got != 1 {
		t.Fatalf("expected 1 bulletin, got %d", got)
	}
	if before := first.Before().(*node); before.value != 1 {
		t.Fatalf("before snapshot should hold 1, got %d", before.value)
	}
	commit(t, s)
	if n.Rollback() != nil {
		t.Fatalf("rollback pointer must clear on commit")
	}
}

func TestBackupOutsideBoardFails(t *testing.T) {
	_, s := newTestDoc()
	begin(t, s, "setup")
	n := create(t, s, &node{})
	commit(t, s)
	if err := n.Backup(); !errors.Is(err, ErrNoOpenBoard) {
		t.Fatalf("expected ErrNoOpenBoard, got %v", err)
	}
	if err := n.RequireBackup(); !errors.Is(err, ErrNoOpenBoard) {
		t.Fatalf("expected ErrNoOpenBoard from RequireBackup, got %v", err)
	}
	begin(t, s, "edit")
	if err := n.RequireBackup(); !errors.Is(err, ErrNotBackedUp) {
		t.Fatalf("expected ErrNotBackedUp, got %v", err)
	}
	if err := (&node{}).Backup(); !errors.Is(err, ErrNotCreated) {
		t.Fatalf("expected ErrNotCreated, got %v", err)
	}
}

func TestDiscardRestoresTouchedEntities(t *testing.T) {
	d, s := newTestDoc()
	begin(t, s, "setup")
	a := create(t, s, &node{value: 1})
	b := create(t, s, &node{value: 2})
	commit(t, s)
	allocated := d.Allocated()

	begin(t, s, "edit")
	if err := a.setValue(10); err != nil {
		t.Fatalf("set a: %v", err)
	}
	if err := Lose(b); err != nil {
		t.Fatalf("lose b: %v", err)
	}
	c := create(t, s, &node{value: 3})
	handle := c.Handle()
	if err := s.Discard(); err != nil {
		t.Fatalf("discard: %v", err)
	}

	if a.value != 1 || a.Rollback() != nil {
		t.Fatalf("a not restored: value=%d rollback=%v", a.value, a.Rollback())
	}
	if b.IsLost() || b.value != 2 {
		t.Fatalf("b not revived: lost=%v value=%d", b.IsLost(), b.value)
	}
	if !c.Deallocated() {
		t.Fatalf("entity created in discarded board must be deallocated")
	}
	if _, ok := d.Lookup(handle); ok {
		t.Fatalf("handle of deallocated entity still resolves")
	}
	if d.Allocated() != allocated {
		t.Fatalf("allocated = %d, want %d", d.Allocated(), allocated)
	}
	if s.Recording() {
		t.Fatalf("stream should be idle after discard")
	}
}

func TestLoseDefersDeallocationUntilBulletinsReleased(t *testing.T) {
	d, s := newTestDoc(WithMaxStates(1))
	begin(t, s, "setup")
	n := create(t, s, &node{})
	commit(t, s)

	begin(t, s, "lose")
	if err := Lose(n); err != nil {
		t.Fatalf("lose: %v", err)
	}
	if err := Lose(n); !errors.Is(err, ErrLost) {
		t.Fatalf("expected ErrLost on second lose, got %v", err)
	}
	commit(t, s)
	if !n.IsLost() || n.Deallocated() {
		t.Fatalf("lost entity must stay addressable while referenced: lost=%v freed=%v", n.IsLost(), n.Deallocated())
	}
	if _, ok := d.Lookup(n.Handle()); !ok {
		t.Fatalf("lost entity handle should still resolve")
	}

	// A third state pushes the deletion out of the one-state history.
	begin(t, s, "other")
	create(t, s, &node{})
	commit(t, s)
	if !n.Deallocated() {
		t.Fatalf("entity should be deallocated once its last bulletin is pruned (refs=%d)", n.BulletinRefs())
	}
}

func TestCreateThenLoseIsDroppedAtCommit(t *testing.T) {
	d, s := newTestDoc()
	begin(t, s, "scratch")
	n := create(t, s, &node{})
	if err := Lose(n); err != nil {
		t.Fatalf("lose: %v", err)
	}
	if ds := commit(t, s); ds != nil {
		t.Fatalf("expected no delta state, got %d bulletins", ds.Len())
	}
	if !n.Deallocated() || d.Allocated() != 0 {
		t.Fatalf("scratch entity should be deallocated")
	}
}

func TestUseCountLosesAtZero(t *testing.T) {
	_, s := newTestDoc()
	begin(t, s, "setup")
	sh := create(t, s, &shape{name: "disk"})
	if err := sh.AddUse(); err != nil {
		t.Fatalf("add use: %v", err)
	}
	if err := sh.AddUse(); err != nil {
		t.Fatalf("add use: %v", err)
	}
	commit(t, s)

	begin(t, s, "release")
	if err := sh.RemoveUse(); err != nil {
		t.Fatalf("remove use: %v", err)
	}
	if sh.IsLost() {
		t.Fatalf("shape lost with one use left")
	}
	if err := sh.RemoveUse(); err != nil {
		t.Fatalf("remove use: %v", err)
	}
	if !sh.IsLost() {
		t.Fatalf("shape should be lost at zero uses")
	}
	if err := s.Discard(); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if sh.IsLost() || sh.UseCount() != 2 {
		t.Fatalf("discard should restore use count 2, got lost=%v count=%d", sh.IsLost(), sh.UseCount())
	}
}

func TestRemoveUseBelowZero(t *testing.T) {
	_, s := newTestDoc()
	begin(t, s, "setup")
	n := create(t, s, &node{})
	if err := n.RemoveUse(); !errors.Is(err, ErrUseCount) {
		t.Fatalf("expected ErrUseCount, got %v", err)
	}
}

func TestTagsAreLazyAndFindable(t *testing.T) {
	d, s := newTestDoc()
	begin(t, s, "setup")
	a := create(t, s, &node{})
	b := create(t, s, &node{})
	commit(t, s)
	if a.HasTag() {
		t.Fatalf("tag assigned before request")
	}
	ta, tb := a.Tag(), b.Tag()
	if ta == 0 || tb == 0 || ta == tb {
		t.Fatalf("tags must be distinct and non-zero: %d %d", ta, tb)
	}
	if a.Tag() != ta {
		t.Fatalf("tag changed between calls")
	}
	if got, ok := d.FindByTag(tb); !ok || got != Entity(b) {
		t.Fatalf("FindByTag(%d) = %v, %v", tb, got, ok)
	}
	if got := d.SetTag(b, ta); got == ta {
		t.Fatalf("SetTag must not steal a tag in use")
	}
}

func TestRollbackRestoresSharedReferences(t *testing.T) {
	_, s := newTestDoc()
	p1, p2 := &profile{width: 1}, &profile{width: 2}
	begin(t, s, "setup")
	n := create(t, s, &node{})
	if err := n.setProfile(p1); err != nil {
		t.Fatalf("set profile: %v", err)
	}
	commit(t, s)
	// live node and the committed after snapshot
	if got := p1.UseCount(); got != 2 {
		t.Fatalf("p1 count = %d, want 2", got)
	}

	begin(t, s, "swap")
	if err := n.setProfile(p2); err != nil {
		t.Fatalf("swap profile: %v", err)
	}
	if err := s.Discard(); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if n.prof.Ptr() != p1 {
		t.Fatalf("profile not restored")
	}
	if p1.UseCount() != 2 || p2.UseCount() != 0 || !p2.Destroyed() {
		t.Fatalf("counts after discard: p1=%d p2=%d destroyed=%v", p1.UseCount(), p2.UseCount(), p2.Destroyed())
	}
}

func TestIdentity(t *testing.T) {
	name, level := Identity(&note{})
	if name != "test_note" || level != 2 {
		t.Fatalf("Identity = %s/%d", name, level)
	}
	if _, level := Identity(nil); level != -1 {
		t.Fatalf("nil identity level = %d", level)
	}
}
