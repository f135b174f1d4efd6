package model

import (
	"errors"
	"testing"

	"solidcore/pkg/model/sharedref"
)

func TestDeepCopyPreservesSharing(t *testing.T) {
	_, s := newTestDoc()
	shared := &profile{width: 4}
	begin(t, s, "setup")
	a := create(t, s, &node{value: 1})
	b := create(t, s, &node{value: 2})
	if err := a.setProfile(shared); err != nil {
		t.Fatalf("profile a: %v", err)
	}
	if err := b.setProfile(shared); err != nil {
		t.Fatalf("profile b: %v", err)
	}
	a.peer = b
	commit(t, s)
	before := shared.UseCount()

	begin(t, s, "copy")
	out, err := Copy(s, []Entity{a, b}, CopyDeep)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	ac, bc := out[0].(*node), out[1].(*node)
	if ac == a || bc == b || ac.value != 1 || bc.value != 2 {
		t.Fatalf("copies not distinct")
	}
	if ac.peer != bc {
		t.Fatalf("internal pointer not remapped to the copy")
	}
	pa, pb := ac.prof.Ptr(), bc.prof.Ptr()
	if pa == nil || pa != pb {
		t.Fatalf("copies must share one cloned profile")
	}
	if pa == shared || pa.width != 4 || pa.UseCount() != 2 {
		t.Fatalf("cloned profile wrong: same=%v width=%v count=%d", pa == shared, pa.width, pa.UseCount())
	}
	if shared.UseCount() != before {
		t.Fatalf("original profile count changed: %d -> %d", before, shared.UseCount())
	}
	commit(t, s)
}

func TestPlainCopySharesUseCountedEntities(t *testing.T) {
	_, s := newTestDoc()
	begin(t, s, "setup")
	sh := create(t, s, &shape{name: "disk"})
	if err := sh.AddUse(); err != nil {
		t.Fatalf("add use: %v", err)
	}
	n := create(t, s, &node{shape: sh})
	commit(t, s)

	begin(t, s, "plain")
	c, err := CopyOne(s, n, CopyPlain)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if c.shape != sh || sh.UseCount() != 2 {
		t.Fatalf("plain copy should share the shape and add a use: same=%v uses=%d", c.shape == sh, sh.UseCount())
	}
	if err := s.Discard(); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if sh.UseCount() != 1 {
		t.Fatalf("discard should restore use count, got %d", sh.UseCount())
	}

	begin(t, s, "deep")
	d, err := CopyOne(s, n, CopyDeep)
	if err != nil {
		t.Fatalf("deep copy: %v", err)
	}
	if d.shape == sh || d.shape == nil || d.shape.name != "disk" {
		t.Fatalf("deep copy should clone the shape")
	}
	commit(t, s)
}

func TestPatternCopyStaysInsideSeed(t *testing.T) {
	_, s := newTestDoc()
	begin(t, s, "setup")
	outside := create(t, s, &node{value: 9})
	inside := create(t, s, &node{value: 1, peer: outside})
	commit(t, s)

	begin(t, s, "pattern")
	c, err := CopyOne(s, inside, CopyPattern, WithSeed(inside))
	if err != nil {
		t.Fatalf("pattern copy: %v", err)
	}
	if c.peer != outside {
		t.Fatalf("pointer leaving the seed must keep its original target")
	}
	commit(t, s)
}

func TestDeepCopyOfLostTargetIsUnresolved(t *testing.T) {
	_, s := newTestDoc()
	begin(t, s, "setup")
	gone := create(t, s, &node{})
	n := create(t, s, &node{peer: gone})
	commit(t, s)

	begin(t, s, "break")
	if err := Lose(gone); err != nil {
		t.Fatalf("lose: %v", err)
	}
	_, err := Copy(s, []Entity{n}, CopyDeep)
	if !errors.Is(err, ErrUnresolvedPointer) {
		t.Fatalf("expected ErrUnresolvedPointer, got %v", err)
	}
	if err := s.Discard(); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if gone.IsLost() {
		t.Fatalf("discard should revive the lost target")
	}
}

func TestCopyCarriesDuplicateAttributes(t *testing.T) {
	_, s := newTestDoc()
	var log []string
	begin(t, s, "setup")
	n := create(t, s, &node{})
	dup := create(t, s, &note{text: "dup"})
	custom := create(t, s, &note{text: "custom", log: &log})
	if err := custom.SetAction(OpCopy, ActionCustom); err != nil {
		t.Fatalf("set action: %v", err)
	}
	kept := create(t, s, &bare{})
	if err := kept.SetAction(OpCopy, ActionKeep); err != nil {
		t.Fatalf("set action: %v", err)
	}
	attach(t, n, kept)
	attach(t, n, custom)
	attach(t, n, dup)
	commit(t, s)

	begin(t, s, "copy")
	c, err := CopyOne(s, n, CopyDeep)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	attrs := c.Attributes()
	if len(attrs) != 1 || attrs[0].(*note).text != "dup" || OwnerOf(attrs[0]) != Entity(c) {
		t.Fatalf("copy attributes = %v", kindsOf(attrs))
	}
	if len(log) != 1 || log[0] != "copy:custom" {
		t.Fatalf("custom copy hook log = %v", log)
	}
	if len(n.Attributes()) != 3 {
		t.Fatalf("original attributes changed")
	}
	commit(t, s)
}

func TestCopyPreservesAttributeOrder(t *testing.T) {
	_, s := newTestDoc()
	begin(t, s, "setup")
	n := create(t, s, &node{})
	for _, text := range []string{"c", "b", "a"} {
		attach(t, n, create(t, s, &note{text: text}))
	}
	c, err := CopyOne(s, n, CopyDeep)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	var got string
	for _, a := range c.Attributes() {
		got += a.(*note).text
	}
	if got != "abc" {
		t.Fatalf("copied order = %q, want abc", got)
	}
}

func TestScanReasons(t *testing.T) {
	_, s := newTestDoc()
	begin(t, s, "setup")
	sh := create(t, s, &shape{name: "disk"})
	if err := sh.AddUse(); err != nil {
		t.Fatalf("add use: %v", err)
	}
	peer := create(t, s, &node{})
	root := create(t, s, &node{peer: peer, shape: sh})
	attach(t, root, create(t, s, &bare{}))
	commit(t, s)

	if got := len(Scan([]Entity{root}, ScanDownOnly)); got != 3 {
		t.Fatalf("down-only scan = %d entities, want 3", got)
	}
	if got := len(Scan([]Entity{root, nil}, ScanDelete)); got != 3 {
		t.Fatalf("delete scan = %d entities, want 3", got)
	}
	if got := len(Scan([]Entity{root}, CopyDeep)); got != 4 {
		t.Fatalf("deep copy scan = %d entities, want 4", got)
	}
	if links := Links(root); len(links) != 2 || links[0] != Entity(peer) || links[1] != Entity(sh) {
		t.Fatalf("links = %v", links)
	}

	begin(t, s, "delete")
	if err := LoseTree(root); err != nil {
		t.Fatalf("lose tree: %v", err)
	}
	if !sh.IsLost() || !root.IsLost() {
		t.Fatalf("lose tree left owned entities behind")
	}
	if peer.IsLost() {
		t.Fatalf("lose tree destroyed a referenced peer")
	}
	commit(t, s)
}

func TestLoseTreeLeavesMutualPeers(t *testing.T) {
	_, s := newTestDoc()
	begin(t, s, "setup")
	a := create(t, s, &node{})
	b := create(t, s, &node{})
	a.peer, b.peer = b, a
	commit(t, s)

	if got := len(Scan([]Entity{a}, ScanDelete)); got != 1 {
		t.Fatalf("delete scan = %d entities, want 1", got)
	}
	if got := len(Scan([]Entity{a}, ScanDownOnly)); got != 1 {
		t.Fatalf("down-only scan = %d entities, want 1", got)
	}

	begin(t, s, "delete")
	if err := LoseTree(a); err != nil {
		t.Fatalf("lose tree: %v", err)
	}
	if !a.IsLost() || b.IsLost() {
		t.Fatalf("after lose tree: a.lost=%v b.lost=%v", a.IsLost(), b.IsLost())
	}
	commit(t, s)

	begin(t, s, "move")
	if err := TransformAll([]Entity{b}, Translation(1, 0, 0)); err != nil {
		t.Fatalf("transform: %v", err)
	}
	commit(t, s)
	if b.pos != [3]float64{1, 0, 0} {
		t.Fatalf("b.pos = %v", b.pos)
	}
}

func TestSharedHandleClosedByFixer(t *testing.T) {
	_, s := newTestDoc()
	p := &profile{}
	begin(t, s, "setup")
	n := create(t, s, &node{})
	if err := n.setProfile(p); err != nil {
		t.Fatalf("profile: %v", err)
	}
	c, err := CopyOne(s, n, CopyPlain)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if c.prof.Ptr() != p || p.UseCount() != 2 {
		t.Fatalf("plain copy should share the profile: count=%d", p.UseCount())
	}
	h := sharedref.New(p)
	if p.UseCount() != 3 {
		t.Fatalf("count = %d", p.UseCount())
	}
	if err := h.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
