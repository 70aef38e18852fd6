package embeddings

import "errors"

var (
	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrUnavailable is returned by Probe when a provider cannot be
	// reached or is missing required configuration.
	ErrUnavailable = errors.New("embedding provider unavailable")
)
