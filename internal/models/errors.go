package models

import "errors"

// Error taxonomy shared across services. Callers match with errors.Is; the
// API layer maps each sentinel to an HTTP status.
var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("not found")
	ErrExpired           = errors.New("challenge expired")
	ErrAlreadyUsed       = errors.New("challenge already used")
	ErrAttemptsExceeded  = errors.New("verification attempts exceeded")
	ErrRateLimited       = errors.New("rate limited")
)
