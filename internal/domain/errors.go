package domain

import "errors"

// Sentinel errors shared across services and handlers. Wrap with
// fmt.Errorf("...: %w", err) to add context; match with errors.Is.
var (
	// ErrValidation covers bad user input: empty fields, malformed email,
	// short password, unusable trip config.
	ErrValidation = errors.New("validation failed")

	// ErrAuthRequired means the caller has no session for an operation
	// that needs one.
	ErrAuthRequired = errors.New("authentication required")

	ErrDuplicateAccount   = errors.New("account already exists")
	ErrNotFound           = errors.New("not found")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAlreadyPaid rejects a second pay attempt against the same booking.
	ErrAlreadyPaid = errors.New("booking already paid")
)
