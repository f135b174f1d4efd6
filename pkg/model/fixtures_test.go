package model

import (
	"testing"

	"solidcore/pkg/model/sharedref"
)

var (
	nodeKind   = DefineKind("test_node", EntityKind)
	shapeKind  = DefineKind("test_shape", EntityKind, UseCounted())
	noteKind   = DefineKind("test_note", AttribKind)
	bareKind   = DefineKind("test_bare", AttribKind)
	stickyKind = DefineKind("test_sticky", AttribKind, WithDefaults(Behavior{}.With(OpSplit, ActionDuplicate)))
)

type profile struct {
	sharedref.Count
	width float64
}

func cloneProfile(p *profile) *profile { return &profile{width: p.width} }

type node struct {
	Base
	value int
	pos   [3]float64
	peer  *node
	shape *shape
	prof  sharedref.Handle[*profile]
}

func (n *node) Kind() *Kind { return nodeKind }

func (n *node) CopyScan(s *Scanner) {
	s.AddRef(n.peer)
	s.Add(n.shape)
}

func (n *node) FixPointers(f *Fixer) {
	n.peer = Ref(f, n.peer)
	n.shape = Ref(f, n.shape)
	n.prof = Shared(f, n.prof, cloneProfile)
}

func (n *node) SharedRefs() []sharedref.Counted {
	if t := n.prof.Target(); t != nil {
		return []sharedref.Counted{t}
	}
	return nil
}

func (n *node) ApplyTransform(t Transform) error {
	n.pos = t.Apply(n.pos)
	return nil
}

func (n *node) setValue(v int) error {
	if err := n.Backup(); err != nil {
		return err
	}
	n.value = v
	return nil
}

func (n *node) setProfile(p *profile) error {
	if err := n.Backup(); err != nil {
		return err
	}
	return n.prof.Reset(p)
}

type shape struct {
	Base
	name string
}

func (s *shape) Kind() *Kind { return shapeKind }

// note implements every migration hook and records the calls it receives.
type note struct {
	AttribBase
	text     string
	log      *[]string
	notified *[]RollEvent
}

func (n *note) Kind() *Kind { return noteKind }

func (n *note) record(ev Event) error {
	if n.log != nil {
		*n.log = append(*n.log, ev.Op.String()+":"+n.text)
	}
	return nil
}

func (n *note) CopyOwner(ev Event) error      { return n.record(ev) }
func (n *note) MergeOwner(ev Event) error     { return n.record(ev) }
func (n *note) SplitOwner(ev Event) error     { return n.record(ev) }
func (n *note) TransformOwner(ev Event) error { return n.record(ev) }
func (n *note) ReplaceOwner(ev Event) error   { return n.record(ev) }
func (n *note) TolerantOwner(ev Event) error  { return n.record(ev) }
func (n *note) GeometryChanged(ev Event) error {
	return n.record(ev)
}

func (n *note) RollNotify(ev RollEvent) {
	if n.notified != nil {
		*n.notified = append(*n.notified, ev)
	}
}

type bare struct {
	AttribBase
}

func (b *bare) Kind() *Kind { return bareKind }

type sticky struct {
	AttribBase
	noCopy bool
}

func (s *sticky) Kind() *Kind        { return stickyKind }
func (s *sticky) Deletable() bool    { return false }
func (s *sticky) Duplicatable() bool { return !s.noCopy }

func newTestDoc(opts ...DocumentOption) (*Document, *Stream) {
	d := NewDocument(opts...)
	return d, d.Stream()
}

func begin(t *testing.T, s *Stream, name string) {
	t.Helper()
	if _, err := s.Begin(name); err != nil {
		t.Fatalf("begin %s: %v", name, err)
	}
}

func commit(t *testing.T, s *Stream) *DeltaState {
	t.Helper()
	ds, err := s.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return ds
}

func create[T Entity](t *testing.T, s *Stream, e T) T {
	t.Helper()
	out, err := Create(s, e)
	if err != nil {
		t.Fatalf("create %T: %v", e, err)
	}
	return out
}

func attach(t *testing.T, owner Entity, a Attribute) {
	t.Helper()
	if err := Attach(owner, a); err != nil {
		t.Fatalf("attach: %v", err)
	}
}

func kindsOf(attrs []Attribute) []string {
	out := make([]string, len(attrs))
	for i, a := range attrs {
		out[i] = a.Kind().Name()
	}
	return out
}
