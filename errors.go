package jaidee

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidConfig is returned when the bot configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTurnInFlight is returned by HandleTurn when another turn already
	// holds the user's lock. The accompanying reply text, when non-empty,
	// is the rate-limited wait notice to deliver.
	ErrTurnInFlight = errors.New("turn already in flight")

	// ErrLockIndeterminate is returned when the lock store is unreachable
	// and it cannot be determined whether another turn is running.
	ErrLockIndeterminate = errors.New("turn lock state indeterminate")

	// ErrEmptyMessage is returned when the inbound message is empty.
	ErrEmptyMessage = errors.New("empty user message")

	// ErrSessionNotFound is returned by commands that need an existing
	// session when the user has none.
	ErrSessionNotFound = errors.New("session not found")
)

// TurnError represents a turn-processing error with additional context
type TurnError struct {
	Op      string         // Operation that failed
	Err     error          // Underlying error
	UserID  string         // User ID if applicable
	Context map[string]any // Additional context
}

// Error implements the error interface
func (e *TurnError) Error() string {
	if e.UserID != "" {
		return fmt.Sprintf("%s (user=%s): %v", e.Op, e.UserID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *TurnError) Unwrap() error {
	return e.Err
}

// WithContext adds additional context to the error
func (e *TurnError) WithContext(key string, value any) *TurnError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewTurnError creates a new TurnError
func NewTurnError(op string, err error) *TurnError {
	return &TurnError{
		Op:  op,
		Err: err,
	}
}

// NewTurnErrorWithUser creates a new TurnError with user ID
func NewTurnErrorWithUser(op string, userID string, err error) *TurnError {
	return &TurnError{
		Op:     op,
		Err:    err,
		UserID: userID,
	}
}
