package model

import (
	"errors"
	"fmt"
)

// Stream is an independent history: an ordered list of delta states with a
// cursor, plus at most one open board. Entities belong to exactly one stream.
type Stream struct {
	doc       *Document
	name      string
	board     *Board
	states    []*DeltaState
	cursor    int
	nextID    int
	logging   bool
	maxStates int
}

// Name returns the stream name.
func (s *Stream) Name() string { return s.name }

// Document returns the owning document.
func (s *Stream) Document() *Document { return s.doc }

// Logging reports whether backups file bulletins.
func (s *Stream) Logging() bool { return s.logging }

// SetLogging turns bulletin filing on or off and returns the previous setting.
// Mutations made while logging is off cannot be rolled back.
func (s *Stream) SetLogging(on bool) bool {
	prev := s.logging
	s.logging = on
	return prev
}

// Board returns the open board, or nil when the stream is idle.
func (s *Stream) Board() *Board { return s.board }

// Recording reports whether a board is open.
func (s *Stream) Recording() bool { return s.board != nil }

// Begin opens a board for the operation called name. Calling Begin while a
// board is open joins it; only the outermost Commit commits.
func (s *Stream) Begin(name string) (*Board, error) {
	if b := s.board; b != nil {
		if b.aborted {
			return nil, contractErr("begin", nil, ErrBoardAborted)
		}
		b.depth++
		return b, nil
	}
	s.board = &Board{stream: s, name: name, depth: 1}
	return s.board, nil
}

// Commit closes the open board. The outermost commit snapshots the after state
// of every touched entity and appends a delta state, pruning any states after
// the cursor. A board with no bulletins produces no state; nested commits
// return nil.
func (s *Stream) Commit() (*DeltaState, error) {
	b := s.board
	if b == nil {
		return nil, contractErr("commit", nil, ErrNoOpenBoard)
	}
	if b.depth > 1 {
		b.depth--
		return nil, nil
	}
	s.board = nil
	if b.aborted {
		return nil, contractErr("commit", nil, ErrBoardAborted)
	}
	kept := make([]*Bulletin, 0, len(b.bulletins))
	var dropped []*Bulletin
	for _, bl := range b.bulletins {
		bl.entity.Core().hdr.rollback = nil
		if bl.before == nil && bl.deleted {
			dropped = append(dropped, bl)
			continue
		}
		if !bl.deleted {
			bl.after = capture(bl.entity)
		}
		kept = append(kept, bl)
	}
	b.bulletins = nil
	var errs []error
	for _, bl := range dropped {
		errs = append(errs, bl.release())
	}
	if len(kept) == 0 {
		return nil, errors.Join(errs...)
	}
	errs = append(errs, s.pruneRedo())
	ds := &DeltaState{id: s.nextID, name: b.name, stream: s, bulletins: kept}
	s.nextID++
	for _, bl := range kept {
		bl.state = ds
	}
	s.states = append(s.states, ds)
	s.cursor = len(s.states)
	errs = append(errs, s.enforceMax())
	return ds, errors.Join(errs...)
}

// Discard unwinds the open board newest bulletin first, restoring every
// touched entity, then notifies their attributes. Inside a nested operation
// the board stays open, aborted, until the outermost level closes it.
func (s *Stream) Discard() error {
	b := s.board
	if b == nil {
		return contractErr("discard", nil, ErrNoOpenBoard)
	}
	var err error
	if !b.aborted {
		err = s.unwind(b)
		b.aborted = true
	}
	b.depth--
	if b.depth <= 0 {
		s.board = nil
	}
	return err
}

func (s *Stream) unwind(b *Board) error {
	var errs []error
	bulletins := b.bulletins
	b.bulletins = nil
	for i := len(bulletins) - 1; i >= 0; i-- {
		bl := bulletins[i]
		errs = append(errs, bl.applyBefore())
		bl.entity.Core().hdr.rollback = nil
	}
	s.board = nil
	notifyRoll(bulletins, RollEvent{Direction: RollDiscard})
	s.board = b
	for _, bl := range bulletins {
		errs = append(errs, bl.release())
	}
	return errors.Join(errs...)
}

// Undo rolls back the state before the cursor.
func (s *Stream) Undo() (*DeltaState, error) {
	if s.board != nil {
		return nil, contractErr("undo", nil, ErrBoardOpen)
	}
	if s.cursor == 0 {
		return nil, ErrNothingToUndo
	}
	ds := s.states[s.cursor-1]
	s.cursor--
	return ds, ds.rollBack()
}

// Redo rolls forward the state at the cursor.
func (s *Stream) Redo() (*DeltaState, error) {
	if s.board != nil {
		return nil, contractErr("redo", nil, ErrBoardOpen)
	}
	if s.cursor >= len(s.states) {
		return nil, ErrNothingToRedo
	}
	ds := s.states[s.cursor]
	s.cursor++
	return ds, ds.rollForward()
}

// RollTo moves the cursor so that the state with id is the last applied one.
// id zero rolls back every state.
func (s *Stream) RollTo(id int) error {
	if s.board != nil {
		return contractErr("roll to", nil, ErrBoardOpen)
	}
	target := 0
	if id != 0 {
		ds, ok := s.State(id)
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownState, id)
		}
		target = ds.Position() + 1
	}
	for s.cursor > target {
		if _, err := s.Undo(); err != nil {
			return err
		}
	}
	for s.cursor < target {
		if _, err := s.Redo(); err != nil {
			return err
		}
	}
	return nil
}

// CanUndo reports whether a state is available to roll back.
func (s *Stream) CanUndo() bool { return s.board == nil && s.cursor > 0 }

// CanRedo reports whether a state is available to roll forward.
func (s *Stream) CanRedo() bool { return s.board == nil && s.cursor < len(s.states) }

// Cursor returns the number of applied states.
func (s *Stream) Cursor() int { return s.cursor }

// Current returns the last applied state.
func (s *Stream) Current() *DeltaState {
	if s.cursor == 0 {
		return nil
	}
	return s.states[s.cursor-1]
}

// States returns every retained state, oldest first.
func (s *Stream) States() []*DeltaState {
	out := make([]*DeltaState, len(s.states))
	copy(out, s.states)
	return out
}

// State returns the retained state with id.
func (s *Stream) State(id int) (*DeltaState, bool) {
	for _, ds := range s.states {
		if ds.id == id {
			return ds, true
		}
	}
	return nil, false
}

// MaxStates returns the history bound; zero means unbounded.
func (s *Stream) MaxStates() int { return s.maxStates }

// SetMaxStates bounds the history and prunes the oldest applied states.
func (s *Stream) SetMaxStates(n int) error {
	if n < 0 {
		n = 0
	}
	s.maxStates = n
	return s.enforceMax()
}

// Entities returns the live entities associated with the stream.
func (s *Stream) Entities() []Entity {
	var out []Entity
	for _, e := range s.doc.Entities() {
		if e.Core().hdr.stream == s {
			out = append(out, e)
		}
	}
	return out
}

func (s *Stream) pruneRedo() error {
	if s.cursor >= len(s.states) {
		return nil
	}
	var errs []error
	for _, ds := range s.states[s.cursor:] {
		errs = append(errs, ds.release())
	}
	s.states = s.states[:s.cursor]
	return errors.Join(errs...)
}

func (s *Stream) enforceMax() error {
	var errs []error
	for s.maxStates > 0 && len(s.states) > s.maxStates && s.cursor > 0 {
		oldest := s.states[0]
		s.states = s.states[1:]
		s.cursor--
		errs = append(errs, oldest.release())
	}
	return errors.Join(errs...)
}

func (s *Stream) create(e Entity) error {
	if isNil(e) {
		return contractErr("create", nil, ErrNilEntity)
	}
	if e.Kind() == nil {
		return contractErr("create", nil, ErrNilKind)
	}
	b := e.Core()
	if b.hdr != nil {
		return contractErr("create", e, ErrAlreadyCreated)
	}
	if s.logging {
		if s.board == nil {
			return contractErr("create", e, ErrNoOpenBoard)
		}
		if s.board.aborted {
			return contractErr("create", e, ErrBoardAborted)
		}
	}
	h := &header{self: e, stream: s}
	b.hdr = h
	s.doc.alloc(h)
	if s.logging {
		s.board.file(newBulletin(e, nil))
	}
	return nil
}
