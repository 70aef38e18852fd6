package store

import "errors"

var (
	// ErrClosed is returned when an operation is attempted on a closed
	// or never-connected store.
	ErrClosed = errors.New("store is closed")

	// ErrNotFound is returned when a frame, event, or anchor does not
	// exist.
	ErrNotFound = errors.New("not found")

	// ErrIntegrity is returned on foreign-key or uniqueness violations.
	// Never retried automatically.
	ErrIntegrity = errors.New("integrity violation")

	// ErrInvalidRetention is returned when a write carries an
	// unrecognized retention policy tag.
	ErrInvalidRetention = errors.New("invalid retention policy")
)
