package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrLockHeld indicates the run lock is held by another process.
	// A normal control signal, not a failure.
	ErrLockHeld = errors.New("lock already held")

	// ErrLockNotFound indicates a held lock's row has disappeared,
	// typically because it was reclaimed as stale by another process.
	ErrLockNotFound = errors.New("lock record not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a file type no extractor handles.
	ErrUnsupportedType = errors.New("unsupported type")
)
