package vector

import "errors"

var (
	// ErrNotFound is returned when an embedding is not found in the vector store.
	ErrNotFound = errors.New("embedding not found")

	// ErrDimensionMismatch is returned when an embedding's width does not
	// match the configured index width.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")
)
