package model

import (
	"errors"
	"reflect"

	"solidcore/pkg/model/sharedref"
)

// Entity is implemented by every persistent modeling object. Concrete types
// embed Base (or AttribBase for attributes) and provide Kind. CopyScan and
// FixPointers have no-op defaults on Base; types holding pointers to other
// entities override them.
type Entity interface {
	Core() *Base
	Kind() *Kind
	CopyScan(s *Scanner)
	FixPointers(f *Fixer)
}

// Snapshotter is implemented by entities whose state cannot be captured by a
// shallow struct copy, typically because they hold slices or maps. Snapshot
// must copy the embedded Base along with the entity's own fields.
type Snapshotter interface {
	Snapshot() Entity
	Restore(from Entity)
}

// SharedHolder is implemented by entities holding sharedref handles. Bulletin
// snapshots take their own reference to every object returned.
type SharedHolder interface {
	SharedRefs() []sharedref.Counted
}

// header is the bookkeeping that must survive snapshot restore. Live entities
// and their snapshots share one header.
type header struct {
	self         Entity
	stream       *Stream
	handle       Handle
	rollback     *Bulletin
	bulletinRefs int
	tag          int64
	lost         bool
	freed        bool
}

// Base carries the state every entity has. Its attribute list head and use
// count are part of the snapshotted state.
type Base struct {
	hdr        *header
	attribHead Attribute
	useCount   int
}

// Core returns the embedded base state.
func (b *Base) Core() *Base { return b }

// CopyScan is the default for entities that point to no other entity.
func (b *Base) CopyScan(*Scanner) {}

// FixPointers is the default for entities that point to no other entity.
func (b *Base) FixPointers(*Fixer) {}

// Created reports whether the entity went through Create.
func (b *Base) Created() bool { return b.hdr != nil }

// Handle returns the arena handle; the zero handle before creation.
func (b *Base) Handle() Handle {
	if b.hdr == nil {
		return Handle{}
	}
	return b.hdr.handle
}

// Stream returns the history stream the entity is associated with.
func (b *Base) Stream() *Stream {
	if b.hdr == nil {
		return nil
	}
	return b.hdr.stream
}

// Document returns the owning document.
func (b *Base) Document() *Document {
	if b.hdr == nil {
		return nil
	}
	return b.hdr.stream.doc
}

// IsLost reports whether Lose was called and not rolled back.
func (b *Base) IsLost() bool { return b.hdr != nil && b.hdr.lost }

// Deallocated reports whether the arena slot was freed.
func (b *Base) Deallocated() bool { return b.hdr != nil && b.hdr.freed }

// Rollback returns the bulletin recording the entity's pending change in the
// open board, or nil when there is none.
func (b *Base) Rollback() *Bulletin {
	if b.hdr == nil {
		return nil
	}
	return b.hdr.rollback
}

// BulletinRefs reports how many bulletins still reference the entity.
func (b *Base) BulletinRefs() int {
	if b.hdr == nil {
		return 0
	}
	return b.hdr.bulletinRefs
}

// UseCount reports the number of reference-sharing users.
func (b *Base) UseCount() int { return b.useCount }

// Tag returns the entity's numeric tag, assigning one on first request.
func (b *Base) Tag() int64 {
	h := b.hdr
	if h == nil {
		return 0
	}
	if h.tag == 0 {
		h.stream.doc.assignTag(h, 0)
	}
	return h.tag
}

// HasTag reports whether a tag has been assigned.
func (b *Base) HasTag() bool { return b.hdr != nil && b.hdr.tag != 0 }

// FirstAttribute returns the head of the attribute list.
func (b *Base) FirstAttribute() Attribute { return b.attribHead }

// Attributes returns the attribute list in order. The slice is a copy, so
// callers may unhook while iterating.
func (b *Base) Attributes() []Attribute {
	var out []Attribute
	for a := b.attribHead; a != nil; a = a.attrib().next {
		out = append(out, a)
	}
	return out
}

// FindAttribute returns the first attribute of kind k.
func (b *Base) FindAttribute(k *Kind) Attribute {
	for a := b.attribHead; a != nil; a = a.attrib().next {
		if a.Kind().IsA(k) {
			return a
		}
	}
	return nil
}

// Backup records the entity's current state before its first mutation in the
// open board. Further calls in the same board are no-ops. With logging
// suspended on the stream it does nothing.
func (b *Base) Backup() error {
	h := b.hdr
	if h == nil {
		return contractErr("backup", nil, ErrNotCreated)
	}
	if h.freed {
		return contractErr("backup", h.self, ErrDeallocated)
	}
	s := h.stream
	if !s.logging || h.rollback != nil {
		return nil
	}
	if h.lost {
		return contractErr("backup", h.self, ErrLost)
	}
	board := s.board
	if board == nil {
		return contractErr("backup", h.self, ErrNoOpenBoard)
	}
	if board.aborted {
		return contractErr("backup", h.self, ErrBoardAborted)
	}
	board.file(newBulletin(h.self, capture(h.self)))
	return nil
}

// RequireBackup fails unless the entity's pending change is already recorded.
func (b *Base) RequireBackup() error {
	h := b.hdr
	if h == nil {
		return contractErr("require backup", nil, ErrNotCreated)
	}
	if !h.stream.logging || h.rollback != nil {
		return nil
	}
	if h.stream.board == nil {
		return contractErr("require backup", h.self, ErrNoOpenBoard)
	}
	return contractErr("require backup", h.self, ErrNotBackedUp)
}

// AddUse records another reference-sharing user.
func (b *Base) AddUse() error {
	if err := b.Backup(); err != nil {
		return err
	}
	b.useCount++
	return nil
}

// RemoveUse drops one user. A use-counted entity whose count reaches zero is
// lost.
func (b *Base) RemoveUse() error {
	if b.useCount == 0 {
		return contractErr("remove use", b.self(), ErrUseCount)
	}
	if err := b.Backup(); err != nil {
		return err
	}
	b.useCount--
	if b.useCount == 0 && b.hdr.self.Kind().UseCounted() {
		return Lose(b.hdr.self)
	}
	return nil
}

func (b *Base) self() Entity {
	if b.hdr == nil {
		return nil
	}
	return b.hdr.self
}

// Lose destroys e: owned deletable attributes are lost first, non-deletable
// ones are detached, then e is marked lost. The arena slot is freed once no
// bulletin references e.
func Lose(e Entity) error {
	if isNil(e) {
		return contractErr("lose", nil, ErrNilEntity)
	}
	b := e.Core()
	h := b.hdr
	if h == nil {
		return contractErr("lose", e, ErrNotCreated)
	}
	if h.lost || h.freed {
		return contractErr("lose", e, ErrLost)
	}
	if err := b.Backup(); err != nil {
		return err
	}
	for _, a := range b.Attributes() {
		if !deletable(a) {
			if err := a.Core().Backup(); err != nil {
				return err
			}
			if err := a.attrib().Unhook(); err != nil {
				return err
			}
			continue
		}
		if err := Lose(a); err != nil {
			return err
		}
	}
	if a, ok := e.(Attribute); ok && a.attrib().owner != nil {
		if err := a.attrib().Unhook(); err != nil {
			return err
		}
	}
	h.lost = true
	if h.rollback != nil {
		h.rollback.deleted = true
	}
	h.stream.doc.maybeFree(h)
	return nil
}

// Identity returns the kind name and derivation level of e.
func Identity(e Entity) (string, int) {
	if isNil(e) {
		return "", -1
	}
	k := e.Kind()
	return k.Name(), k.Level()
}

func isNil(e Entity) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// cloneEntity returns a shallow copy of e, or its Snapshot when provided.
func cloneEntity(e Entity) Entity {
	if s, ok := e.(Snapshotter); ok {
		return s.Snapshot()
	}
	v := reflect.ValueOf(e).Elem()
	cp := reflect.New(v.Type())
	cp.Elem().Set(v)
	return cp.Interface().(Entity)
}

func restoreEntity(dst, src Entity) {
	if s, ok := dst.(Snapshotter); ok {
		s.Restore(src)
		return
	}
	reflect.ValueOf(dst).Elem().Set(reflect.ValueOf(src).Elem())
}

func sharedRefs(e Entity) []sharedref.Counted {
	h, ok := e.(SharedHolder)
	if !ok {
		return nil
	}
	return h.SharedRefs()
}

// capture snapshots e and takes the snapshot's own shared references.
func capture(e Entity) Entity {
	snap := cloneEntity(e)
	for _, r := range sharedRefs(snap) {
		r.AddRef()
	}
	return snap
}

// restore overwrites e with snap, moving e's shared references to the ones the
// snapshot names.
func restore(e, snap Entity) error {
	old := sharedRefs(e)
	restoreEntity(e, snap)
	for _, r := range sharedRefs(e) {
		r.AddRef()
	}
	var errs []error
	for _, r := range old {
		if err := r.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func releaseAll(refs []sharedref.Counted) error {
	var errs []error
	for _, r := range refs {
		if err := r.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
