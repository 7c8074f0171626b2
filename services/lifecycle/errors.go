package lifecycle

import (
	"errors"
	"fmt"
)

// Sentinels usable with errors.Is. The structs below carry the context a
// caller needs to decide on a corrective action instead of blindly retrying.
var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("invalid input")
)

// InvalidTransitionError reports a lifecycle command that is illegal from the
// operation's current status.
type InvalidTransitionError struct {
	OperationID int64
	Current     Status
	Action      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("operation %d: cannot %s while %s", e.OperationID, e.Action, e.Current)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// ConflictError reports an invariant broken by a concurrent writer, such as a
// second open pause entry for the same operation.
type ConflictError struct {
	OperationID int64
	Detail      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("operation %d: %s", e.OperationID, e.Detail)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NotFoundError reports a reference to a record that does not exist.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Detail)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
