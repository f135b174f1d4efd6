package model

import (
	"errors"
	"fmt"

	"solidcore/pkg/model/remap"
	"solidcore/pkg/model/sharedref"
)

// CopyReason selects which edges a scan follows and how clones are made.
type CopyReason uint8

const (
	// CopyPlain clones the roots but shares use-counted entities they reach.
	CopyPlain CopyReason = iota
	// CopyDeep clones everything reachable.
	CopyDeep
	// CopyPattern clones within a seed set; pointers leaving it keep their
	// original targets.
	CopyPattern
	// ScanDelete collects the roots and what they own, lost entities
	// included.
	ScanDelete
	// ScanDownOnly collects the live roots and what they own.
	ScanDownOnly
)

func (r CopyReason) String() string {
	switch r {
	case CopyPlain:
		return "copy_plain"
	case CopyDeep:
		return "copy_deep"
	case CopyPattern:
		return "copy_pattern"
	case ScanDelete:
		return "scan_delete"
	case ScanDownOnly:
		return "scan_down_only"
	default:
		return fmt.Sprintf("copy_reason(%d)", r)
	}
}

func (r CopyReason) isCopy() bool { return r <= CopyPattern }

// ScanOption adjusts a scan.
type ScanOption func(*scanOptions)

type scanOptions struct {
	seed         []Entity
	keepExternal bool
}

// WithSeed restricts a pattern copy to the given entities and their
// attributes.
func WithSeed(seed ...Entity) ScanOption {
	return func(o *scanOptions) { o.seed = append(o.seed, seed...) }
}

// KeepExternal lets pointers to unscanned entities keep their original target
// instead of failing the fix-up.
func KeepExternal() ScanOption {
	return func(o *scanOptions) { o.keepExternal = true }
}

// Scanner assigns every distinct entity reachable from the roots one slot in
// an ordered list. Entities report what they point to from CopyScan: Add for
// entities they own, AddRef for entities they only refer to. Deletion and
// down-only scans follow owned edges alone.
type Scanner struct {
	reason   CopyReason
	links    *[]Entity
	list     []Entity
	index    map[Entity]int
	seed     map[Entity]struct{}
	external map[Entity]struct{}
	roots    map[Entity]struct{}
}

func newScanner(reason CopyReason, o scanOptions) *Scanner {
	s := &Scanner{
		reason:   reason,
		index:    make(map[Entity]int),
		external: make(map[Entity]struct{}),
		roots:    make(map[Entity]struct{}),
	}
	if reason == CopyPattern && len(o.seed) > 0 {
		s.seed = make(map[Entity]struct{}, len(o.seed))
		for _, e := range o.seed {
			if !isNil(e) {
				s.seed[e] = struct{}{}
			}
		}
	}
	return s
}

// Add schedules an entity the caller owns. Nil entities, lost entities and
// entities the reason leaves outside the copy are ignored.
func (s *Scanner) Add(e Entity) { s.visit(e, true) }

// AddRef schedules an entity the caller refers to without owning it. Copies
// treat it like Add; ScanDelete and ScanDownOnly do not follow it.
func (s *Scanner) AddRef(e Entity) { s.visit(e, false) }

func (s *Scanner) visit(e Entity, owned bool) {
	if isNil(e) {
		return
	}
	if s.links != nil {
		*s.links = append(*s.links, e)
		return
	}
	if !owned && !s.reason.isCopy() {
		return
	}
	if _, ok := s.index[e]; ok {
		return
	}
	if e.Core().IsLost() && s.reason != ScanDelete {
		return
	}
	if s.seed != nil {
		if _, ok := s.seed[e]; !ok {
			s.external[e] = struct{}{}
			return
		}
	}
	if s.reason == CopyPlain && e.Kind().UseCounted() {
		if _, root := s.roots[e]; !root {
			s.external[e] = struct{}{}
			return
		}
	}
	s.push(e)
}

func (s *Scanner) push(e Entity) {
	s.index[e] = len(s.list)
	s.list = append(s.list, e)
}

// Index returns e's slot, or -1 for nil and unscanned entities.
func (s *Scanner) Index(e Entity) int {
	if isNil(e) {
		return -1
	}
	if i, ok := s.index[e]; ok {
		return i
	}
	return -1
}

// Len reports the number of slots assigned.
func (s *Scanner) Len() int { return len(s.list) }

// Entities returns the scanned entities in slot order.
func (s *Scanner) Entities() []Entity {
	out := make([]Entity, len(s.list))
	copy(out, s.list)
	return out
}

func (s *Scanner) run(roots []Entity) {
	for _, r := range roots {
		if !isNil(r) {
			s.roots[r] = struct{}{}
		}
	}
	for _, r := range roots {
		s.Add(r)
	}
	for i := 0; i < len(s.list); i++ {
		e := s.list[i]
		e.CopyScan(s)
		for _, a := range e.Core().Attributes() {
			if _, ok := s.index[a]; ok || !s.wantAttrib(a) {
				continue
			}
			s.push(a)
		}
	}
}

func (s *Scanner) wantAttrib(a Attribute) bool {
	if a.Core().IsLost() {
		return false
	}
	if !s.reason.isCopy() {
		return true
	}
	return copyable(a) && ResolveAction(a, OpCopy) == ActionDuplicate
}

// Scan returns the closure of roots for reason without copying anything.
func Scan(roots []Entity, reason CopyReason, opts ...ScanOption) []Entity {
	var o scanOptions
	for _, opt := range opts {
		opt(&o)
	}
	s := newScanner(reason, o)
	s.run(roots)
	return s.list
}

// Links returns the entities e points to directly, owned or referenced, in the
// order its CopyScan reports them. Lost targets are included.
func Links(e Entity) []Entity {
	if isNil(e) {
		return nil
	}
	var out []Entity
	e.CopyScan(&Scanner{links: &out})
	return out
}

// Fixer resolves the pointer fields of clones. Each clone's FixPointers
// replaces every entity pointer it holds with the result of Entity or Ref.
type Fixer struct {
	scan         *Scanner
	clones       []Entity
	shared       *remap.Table
	keepExternal bool
	errs         []error
}

// Entity maps an original pointer to its clone. Entities left outside the copy
// are returned unchanged. Every pointer resolved to a use-counted entity, clone
// or shared original, records one use on it.
func (f *Fixer) Entity(e Entity) Entity {
	if isNil(e) {
		return nil
	}
	if i := f.scan.Index(e); i >= 0 {
		c := f.clones[i]
		if c.Kind().UseCounted() {
			if err := c.Core().AddUse(); err != nil {
				f.errs = append(f.errs, err)
			}
		}
		return c
	}
	_, ext := f.scan.external[e]
	if ext || f.keepExternal {
		if f.scan.reason == CopyPlain && e.Kind().UseCounted() {
			if err := e.Core().AddUse(); err != nil {
				f.errs = append(f.errs, err)
			}
		}
		return e
	}
	f.errs = append(f.errs, contractErr("fix pointers", e, ErrUnresolvedPointer))
	return nil
}

// Index returns the slot the original e was assigned, -1 for nil or none.
func (f *Fixer) Index(e Entity) int { return f.scan.Index(e) }

// Ref is the typed form of Fixer.Entity.
func Ref[T Entity](f *Fixer, e T) T {
	var zero T
	if isNil(e) {
		return zero
	}
	r := f.Entity(e)
	if r == nil {
		return zero
	}
	return r.(T)
}

// Shared maps a handle to a shared sub-object onto the copy session's clone of
// it. Every holder of the same original receives the same clone, so sharing
// topology survives the copy. The incoming handle is released.
func Shared[T sharedref.Counted](f *Fixer, h sharedref.Handle[T], clone func(T) T) sharedref.Handle[T] {
	obj, ok := h.Get()
	if !ok {
		return sharedref.Handle[T]{}
	}
	defer func() {
		if err := h.Close(); err != nil {
			f.errs = append(f.errs, err)
		}
	}()
	if f.scan.reason == CopyPlain {
		return sharedref.New(obj)
	}
	c, _ := remap.Resolve(f.shared, any(obj), func(o any) T { return clone(o.(T)) })
	return sharedref.New(c)
}

func (f *Fixer) err() error {
	return errors.Join(f.errs...)
}

type copySession struct {
	scan   *Scanner
	fix    *Fixer
	clones []Entity
}

// duplicate runs both phases: scan the roots, then clone every slot into dst
// and fix the clones' pointers and attribute lists.
func duplicate(dst *Stream, roots []Entity, reason CopyReason, o scanOptions) (*copySession, error) {
	sc := newScanner(reason, o)
	sc.run(roots)
	clones := make([]Entity, len(sc.list))
	for i, e := range sc.list {
		c := cloneEntity(e)
		resetForCopy(c)
		for _, r := range sharedRefs(c) {
			r.AddRef()
		}
		clones[i] = c
	}
	for _, c := range clones {
		if err := dst.create(c); err != nil {
			return nil, err
		}
	}
	f := &Fixer{scan: sc, clones: clones, shared: remap.New(), keepExternal: o.keepExternal}
	for _, c := range clones {
		c.FixPointers(f)
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	for i, e := range sc.list {
		for _, a := range e.Core().Attributes() {
			j := sc.Index(a)
			if j < 0 {
				continue
			}
			if err := appendAttrib(clones[i], clones[j].(Attribute)); err != nil {
				return nil, err
			}
		}
	}
	return &copySession{scan: sc, fix: f, clones: clones}, nil
}

func resetForCopy(e Entity) {
	b := e.Core()
	b.hdr = nil
	b.attribHead = nil
	b.useCount = 0
	if a, ok := e.(Attribute); ok {
		ab := a.attrib()
		ab.owner, ab.next, ab.prev = nil, nil, nil
	}
}

// Copy duplicates the graph reachable from roots into dst and returns the
// clones of the roots. Attributes travel with their owners according to their
// copy action: duplicate clones them, custom calls their CopyHook, lose loses
// them on the original, keep leaves them behind.
func Copy(dst *Stream, roots []Entity, reason CopyReason, opts ...ScanOption) ([]Entity, error) {
	if !reason.isCopy() {
		return nil, fmt.Errorf("copy: %s is not a copy reason", reason)
	}
	var o scanOptions
	for _, opt := range opts {
		opt(&o)
	}
	sess, err := duplicate(dst, roots, reason, o)
	if err != nil {
		return nil, err
	}
	for i, orig := range sess.scan.list {
		if err := copyMigrate(orig, sess.clones[i]); err != nil {
			return nil, err
		}
	}
	out := make([]Entity, 0, len(roots))
	for _, r := range roots {
		if i := sess.scan.Index(r); i >= 0 {
			out = append(out, sess.clones[i])
		}
	}
	return out, nil
}

// CopyOne is Copy for a single root with the root's static type preserved.
func CopyOne[T Entity](dst *Stream, root T, reason CopyReason, opts ...ScanOption) (T, error) {
	var zero T
	out, err := Copy(dst, []Entity{root}, reason, opts...)
	if err != nil {
		return zero, err
	}
	if len(out) == 0 {
		return zero, contractErr("copy", root, ErrUnresolvedPointer)
	}
	return out[0].(T), nil
}

func copyMigrate(orig, clone Entity) error {
	ev := Event{Op: OpCopy, Owner: orig, Other: clone}
	for _, a := range orig.Core().Attributes() {
		if a.Core().IsLost() || a.attrib().owner != orig {
			continue
		}
		switch ResolveAction(a, OpCopy) {
		case ActionCustom:
			if err := runCustom(a, ev); err != nil {
				return err
			}
		case ActionLose:
			if err := Lose(a); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoseTree loses root and everything a deletion scan reaches from it, owned
// entities before their owners. Attributes go with their owner's Lose, so
// non-deletable ones are detached rather than lost.
func LoseTree(root Entity) error {
	list := Scan([]Entity{root}, ScanDelete)
	for i := len(list) - 1; i >= 0; i-- {
		e := list[i]
		if _, ok := e.(Attribute); ok && e != root {
			continue
		}
		if e.Core().IsLost() {
			continue
		}
		if err := Lose(e); err != nil {
			return err
		}
	}
	return nil
}
