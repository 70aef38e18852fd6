// Package embeddings defines the text embedding provider contract used to
// derive frame vectors from digest text.
package embeddings

import "context"

// Provider converts text into fixed-width vector embeddings. Implementations
// must return vectors of exactly Dimension() entries.
type Provider interface {
	// Name identifies the provider ("local", "ollama", "openai").
	Name() string

	// Dimension is the width of vectors this provider produces.
	Dimension() int

	// Embed converts a single text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts several texts in one round trip where the
	// backend supports it. The result is index-aligned with the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Probe checks whether the provider is reachable and usable. Called
	// once at construction time by the factory before committing to a
	// provider.
	Probe(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}
