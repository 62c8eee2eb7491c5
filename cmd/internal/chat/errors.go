package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation classifies bad caller input.
	ErrValidation = errors.New("validation failed")

	// ErrSelfConversation is returned when both participants are the same user.
	ErrSelfConversation = fmt.Errorf("%w: cannot open a conversation with yourself", ErrValidation)

	// ErrPersistence classifies store failures.
	ErrPersistence = errors.New("persistence failed")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Msg)
	}
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Field, e.Msg)
}

func (e ValidationError) Unwrap() error { return ErrValidation }

// PersistenceError wraps a store failure; it matches both ErrPersistence and the cause.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("chat.%s: %v: %v", e.Op, ErrPersistence, e.Err)
}

func (e PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }
