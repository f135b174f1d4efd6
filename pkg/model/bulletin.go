package model

import "errors"

// BulletinType classifies a bulletin by which snapshots it carries.
type BulletinType uint8

const (
	BulletinChange BulletinType = iota
	BulletinCreate
	BulletinDelete
)

func (t BulletinType) String() string {
	switch t {
	case BulletinCreate:
		return "create"
	case BulletinDelete:
		return "delete"
	default:
		return "change"
	}
}

// Bulletin records one entity's change within a board: the state before the
// first mutation (absent for a creation) and, once committed, the state after
// (absent for a deletion).
type Bulletin struct {
	entity   Entity
	before   Entity
	after    Entity
	deleted  bool
	state    *DeltaState
	released bool
}

func newBulletin(e Entity, before Entity) *Bulletin {
	e.Core().hdr.bulletinRefs++
	return &Bulletin{entity: e, before: before}
}

// Entity returns the live entity the bulletin describes.
func (b *Bulletin) Entity() Entity { return b.entity }

// Before returns the snapshot taken at backup; nil for a creation.
func (b *Bulletin) Before() Entity { return b.before }

// After returns the snapshot taken at commit; nil for a deletion or while the
// board is still open.
func (b *Bulletin) After() Entity { return b.after }

// State returns the delta state holding the bulletin once committed.
func (b *Bulletin) State() *DeltaState { return b.state }

// Type reports whether the bulletin is a creation, change or deletion.
func (b *Bulletin) Type() BulletinType {
	switch {
	case b.before == nil:
		return BulletinCreate
	case b.deleted:
		return BulletinDelete
	default:
		return BulletinChange
	}
}

// Deleted reports whether the entity was lost within the bulletin's board.
func (b *Bulletin) Deleted() bool { return b.deleted }

func (b *Bulletin) applyBefore() error {
	h := b.entity.Core().hdr
	if b.before == nil {
		h.lost = true
		return nil
	}
	h.lost = false
	return restore(b.entity, b.before)
}

func (b *Bulletin) applyAfter() error {
	h := b.entity.Core().hdr
	if b.after == nil {
		h.lost = true
		return nil
	}
	h.lost = false
	return restore(b.entity, b.after)
}

// release drops the bulletin's snapshots and its reference to the entity,
// completing a deferred deallocation when it was the last one.
func (b *Bulletin) release() error {
	if b.released {
		return nil
	}
	b.released = true
	err := errors.Join(releaseAll(sharedRefs(b.before)), releaseAll(sharedRefs(b.after)))
	h := b.entity.Core().hdr
	h.bulletinRefs--
	h.stream.doc.maybeFree(h)
	return err
}

// Board collects the bulletins of one logical operation on a stream.
type Board struct {
	stream    *Stream
	name      string
	bulletins []*Bulletin
	depth     int
	aborted   bool
}

// Name returns the operation name the board was opened with.
func (b *Board) Name() string { return b.name }

// Stream returns the stream the board records on.
func (b *Board) Stream() *Stream { return b.stream }

// Depth reports how many nested Begin calls are open.
func (b *Board) Depth() int { return b.depth }

// Aborted reports whether a nested Discard already unwound the board.
func (b *Board) Aborted() bool { return b.aborted }

// Len reports the number of bulletins filed so far.
func (b *Board) Len() int { return len(b.bulletins) }

// Bulletins returns the filed bulletins in filing order.
func (b *Board) Bulletins() []*Bulletin {
	out := make([]*Bulletin, len(b.bulletins))
	copy(out, b.bulletins)
	return out
}

func (b *Board) file(bl *Bulletin) {
	bl.entity.Core().hdr.rollback = bl
	b.bulletins = append(b.bulletins, bl)
}

// DeltaState is a committed board. Its bulletins are immutable.
type DeltaState struct {
	id        int
	name      string
	stream    *Stream
	bulletins []*Bulletin
	pruned    bool
}

// ID returns the stream-unique state identifier.
func (d *DeltaState) ID() int { return d.id }

// Name returns the operation name of the committed board.
func (d *DeltaState) Name() string { return d.name }

// Stream returns the owning stream.
func (d *DeltaState) Stream() *Stream { return d.stream }

// Len reports the number of bulletins.
func (d *DeltaState) Len() int { return len(d.bulletins) }

// Bulletins returns the bulletins in filing order.
func (d *DeltaState) Bulletins() []*Bulletin {
	out := make([]*Bulletin, len(d.bulletins))
	copy(out, d.bulletins)
	return out
}

// Pruned reports whether the state was dropped from its stream.
func (d *DeltaState) Pruned() bool { return d.pruned }

// Position returns the index of the state on its stream, or -1 once pruned.
func (d *DeltaState) Position() int {
	if d.pruned {
		return -1
	}
	for i, s := range d.stream.states {
		if s == d {
			return i
		}
	}
	return -1
}

// Prev returns the preceding state.
func (d *DeltaState) Prev() *DeltaState {
	i := d.Position()
	if i <= 0 {
		return nil
	}
	return d.stream.states[i-1]
}

// Next returns the following state.
func (d *DeltaState) Next() *DeltaState {
	i := d.Position()
	if i < 0 || i+1 >= len(d.stream.states) {
		return nil
	}
	return d.stream.states[i+1]
}

// Applied reports whether the state is at or before the stream cursor.
func (d *DeltaState) Applied() bool {
	i := d.Position()
	return i >= 0 && i < d.stream.cursor
}

// Entities returns the distinct entities touched by the state.
func (d *DeltaState) Entities() []Entity {
	return touched(d.bulletins)
}

func (d *DeltaState) rollBack() error {
	var errs []error
	for i := len(d.bulletins) - 1; i >= 0; i-- {
		errs = append(errs, d.bulletins[i].applyBefore())
	}
	notifyRoll(d.bulletins, RollEvent{Direction: RollBack, State: d})
	return errors.Join(errs...)
}

func (d *DeltaState) rollForward() error {
	var errs []error
	for _, bl := range d.bulletins {
		errs = append(errs, bl.applyAfter())
	}
	notifyRoll(d.bulletins, RollEvent{Direction: RollForward, State: d})
	return errors.Join(errs...)
}

func (d *DeltaState) release() error {
	var errs []error
	for _, bl := range d.bulletins {
		errs = append(errs, bl.release())
	}
	d.pruned = true
	return errors.Join(errs...)
}

func touched(bulletins []*Bulletin) []Entity {
	seen := make(map[Entity]struct{}, len(bulletins))
	out := make([]Entity, 0, len(bulletins))
	for _, bl := range bulletins {
		if _, ok := seen[bl.entity]; ok {
			continue
		}
		seen[bl.entity] = struct{}{}
		out = append(out, bl.entity)
	}
	return out
}

// RollDirection says why attributes are being notified.
type RollDirection uint8

const (
	RollDiscard RollDirection = iota
	RollBack
	RollForward
)

func (d RollDirection) String() string {
	switch d {
	case RollBack:
		return "roll_back"
	case RollForward:
		return "roll_forward"
	default:
		return "discard"
	}
}

// RollEvent is delivered to attributes after their owner was restored.
type RollEvent struct {
	Direction RollDirection
	Owner     Entity
	// State is nil for a discard.
	State *DeltaState
}

// RollNotifier is implemented by attributes that cache derived data and must
// refresh it after a rollback or roll forward. Notifications run with no board
// open, so implementations must not mutate entities.
type RollNotifier interface {
	RollNotify(ev RollEvent)
}

func notifyRoll(bulletins []*Bulletin, ev RollEvent) {
	done := make(map[Attribute]struct{})
	for _, e := range touched(bulletins) {
		b := e.Core()
		if b.hdr.lost || b.hdr.freed {
			continue
		}
		ev.Owner = e
		for _, a := range b.Attributes() {
			if _, ok := done[a]; ok {
				continue
			}
			done[a] = struct{}{}
			if n, ok := a.(RollNotifier); ok {
				n.RollNotify(ev)
			}
		}
	}
}
