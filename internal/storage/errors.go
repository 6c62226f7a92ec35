package storage

import "errors"

// Storage errors shared by all backends. There is no duplicate-key
// sentinel: redelivery is filtered upstream by event fingerprint, and
// the stores themselves are upsert or append-as-is.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
