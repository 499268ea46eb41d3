package model

import (
	"errors"
	"fmt"
)

// Expected outcomes are sentinel errors so callers can branch with errors.Is
// instead of parsing messages. Anything not matching these is a storage
// failure and must be surfaced, not swallowed.
var (
	// ErrNotFound covers missing sessions and other absent rows.
	ErrNotFound = errors.New("not found")

	// ErrInvalidToken means the presented check-in token matches no session.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUnknownParticipant means the participant id is not on the roster.
	ErrUnknownParticipant = errors.New("unknown participant")

	// ErrAlreadyCheckedIn means a record already exists for the pair; the
	// prior check-in is preserved untouched.
	ErrAlreadyCheckedIn = errors.New("already checked in")

	// ErrDuplicateToken is returned by stores on a token uniqueness
	// violation; the registry retries with a fresh token.
	ErrDuplicateToken = errors.New("duplicate session token")
)

// ValidationError rejects malformed input to a command.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
