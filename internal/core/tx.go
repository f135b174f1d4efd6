package core

import (
	"context"

	"solidcore/pkg/model"
)

// Tx is the handle an operation func receives. It is valid only until the
// func returns.
type Tx struct {
	ctx    context.Context
	id     string
	name   string
	stream *model.Stream
	board  *model.Board
}

// Context returns the operation context.
func (t *Tx) Context() context.Context { return t.ctx }

// ID returns the operation id.
func (t *Tx) ID() string { return t.id }

// Name returns the operation name.
func (t *Tx) Name() string { return t.name }

// Stream returns the stream the operation records on.
func (t *Tx) Stream() *model.Stream { return t.stream }

// Document returns the stream's document.
func (t *Tx) Document() *model.Document { return t.stream.Document() }

// Board returns the open board.
func (t *Tx) Board() *model.Board { return t.board }

// Touched returns the distinct entities recorded on the board, first touch
// first.
func (t *Tx) Touched() []model.Entity {
	seen := make(map[model.Entity]struct{})
	var out []model.Entity
	for _, bl := range t.board.Bulletins() {
		e := bl.Entity()
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Nested runs fn as an inner operation on the same board. A failing inner
// operation discards the whole board; the outer operation then fails too.
func (t *Tx) Nested(name string, fn func(*Tx) error) error {
	if _, err := t.stream.Begin(name); err != nil {
		return err
	}
	inner := &Tx{ctx: t.ctx, id: t.id, name: name, stream: t.stream, board: t.board}
	if err := fn(inner); err != nil {
		if derr := t.stream.Discard(); derr != nil {
			return derr
		}
		return err
	}
	_, err := t.stream.Commit()
	return err
}
