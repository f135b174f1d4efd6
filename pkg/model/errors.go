package model

import (
	"errors"
	"fmt"
)

// Contract violations. They are always returned wrapped in a *ContractError.
var (
	ErrNotCreated        = errors.New("entity was not created through model.Create")
	ErrAlreadyCreated    = errors.New("entity already created")
	ErrNoOpenBoard       = errors.New("no bulletin board open on stream")
	ErrBoardOpen         = errors.New("bulletin board still open on stream")
	ErrBoardAborted      = errors.New("bulletin board was discarded")
	ErrNotBackedUp       = errors.New("entity mutated without backup")
	ErrLost              = errors.New("entity has been lost")
	ErrDeallocated       = errors.New("entity has been deallocated")
	ErrAttached          = errors.New("attribute already attached to an owner")
	ErrNotAttached       = errors.New("attribute has no owner")
	ErrSelfAttach        = errors.New("attribute cannot own itself")
	ErrStreamMismatch    = errors.New("entities belong to different history streams")
	ErrUnresolvedPointer = errors.New("pointer target was not assigned a slot during scan")
	ErrMissingHook       = errors.New("custom action declared without migration hook")
	ErrUseCount          = errors.New("use count already zero")
	ErrNilEntity         = errors.New("nil entity")
	ErrNilKind           = errors.New("entity reports no kind")
)

// History navigation and registry failures. These are ordinary errors returned
// directly to callers.
var (
	ErrNothingToUndo = errors.New("no delta state to roll back")
	ErrNothingToRedo = errors.New("no delta state to roll forward")
	ErrUnknownState  = errors.New("delta state not found on stream")
	ErrUnknownKind   = errors.New("unknown entity kind")
	ErrDuplicateKind = errors.New("entity kind already registered")
)

// ContractError reports a programming-contract violation against a specific
// entity. Callers inside a transaction are expected to discard the open board.
type ContractError struct {
	Op     string
	Kind   string
	Handle Handle
	Err    error
}

func (e *ContractError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s%s: %v", e.Op, e.Kind, e.Handle, e.Err)
}

func (e *ContractError) Unwrap() error { return e.Err }

func contractErr(op string, e Entity, err error) error {
	ce := &ContractError{Op: op, Err: err}
	if isNil(e) {
		return ce
	}
	if k := e.Kind(); k != nil {
		ce.Kind = k.Name()
	}
	if h := e.Core().hdr; h != nil {
		ce.Handle = h.handle
	}
	return ce
}
