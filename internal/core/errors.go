package core

import (
	"errors"
	"fmt"
)

var (
	// ErrOperationPanicked wraps a panic recovered from an operation func.
	ErrOperationPanicked = errors.New("operation panicked")
	// ErrNoArchiveStore is returned by archive operations on a service
	// built without WithArchiveStore.
	ErrNoArchiveStore = errors.New("no archive store configured")
	// ErrNoBlobStore is returned by Export on a service built without
	// WithBlobStore.
	ErrNoBlobStore = errors.New("no blob store configured")
)

// OperationError reports a failed service operation. The operation's board
// has been discarded when it is returned.
type OperationError struct {
	Operation   string
	OperationID string
	Err         error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %s (%s): %v", e.Operation, e.OperationID, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
