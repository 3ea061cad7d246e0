// Package services defines the business logic for conversations, messages
// and sessions. This file centralizes service-level error values so that
// they can be returned consistently by service methods and mapped to HTTP
// status codes by the handler layer.
package services

import (
	"errors"
	"fmt"
)

// Validation errors. These are returned before any I/O takes place.
var (
	// ErrEmptyBody is returned when a message body is blank after trimming.
	ErrEmptyBody = errors.New("message body is empty")

	// ErrBodyTooLong is returned when a message body exceeds the configured
	// rune limit.
	ErrBodyTooLong = errors.New("message body too long")

	// ErrInvalidRole is returned when a session role is not one of the
	// marketplace roles.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidSession is returned when sign-in data fails validation.
	ErrInvalidSession = errors.New("invalid session data")

	// ErrNotParticipant is returned when a summary names a sender outside
	// the conversation.
	ErrNotParticipant = errors.New("sender is not a participant")
)

// Lookup errors.
var (
	// ErrConversationNotFound indicates that no message has been exchanged
	// between the two participants yet.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrMessageNotFound indicates that the message does not exist in the
	// conversation.
	ErrMessageNotFound = errors.New("message not found")

	// ErrSessionNotFound indicates an unknown or expired session token.
	ErrSessionNotFound = errors.New("session not found")
)

// ErrStoreUnavailable classifies failures of the backing store. Use
// errors.Is(err, ErrStoreUnavailable) to tell "nothing was written" apart
// from validation failures.
var ErrStoreUnavailable = errors.New("store unavailable")

// StoreError wraps a persistence failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

// Unwrap returns the underlying driver error.
func (e *StoreError) Unwrap() error { return e.Err }

// Is reports ErrStoreUnavailable as a match.
func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
