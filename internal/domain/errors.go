package domain

import "errors"

var (
	// ErrValidation marks caller-supplied input that fails shape checks.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or malformed operator configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a lookup for a row that does not exist.
	ErrNotFound = errors.New("not found")
)
