package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound     = errors.New("domain: not found")
	ErrConflict     = errors.New("domain: conflict")
	ErrUnauthorized = errors.New("domain: unauthorized")
	ErrValidation   = errors.New("domain: validation failed")
	ErrWriteFailed  = errors.New("domain: write returned no record")
)
