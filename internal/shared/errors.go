package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a request that failed input validation.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState indicates a transition from a status that does not allow it.
	ErrInvalidState = errors.New("invalid state")
	// ErrConflict indicates a lost optimistic guard or a duplicate unique value.
	ErrConflict = errors.New("conflict")
	// ErrForbidden indicates the actor lacks a required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrTooManyAttempts indicates the attempt tracker refused the caller.
	ErrTooManyAttempts = errors.New("too many attempts")
)
