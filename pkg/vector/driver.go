// Package vector provides interfaces and implementations for frame
// embedding storage and nearest-neighbor retrieval.
package vector

import "context"

// Document is a frame's embedding as stored in a vector backend.
type Document struct {
	// FrameID identifies the frame this embedding was derived from.
	FrameID string

	// Embedding is the vector representation of the frame's digest text.
	Embedding []float32
}

// QueryResult is a nearest-neighbor hit. Distance is backend-native
// (lower = closer); callers normalize before fusing with other signals.
type QueryResult struct {
	FrameID  string
	Distance float64
}

// Driver handles storage and retrieval of frame embeddings.
type Driver interface {
	// Upsert stores embeddings, replacing any existing embedding for the
	// same frame ID.
	Upsert(ctx context.Context, docs []Document) error

	// Query returns the topK nearest neighbors of the given embedding,
	// closest first.
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResult, error)

	// Delete removes embeddings by frame ID. Missing IDs are not an error.
	Delete(ctx context.Context, frameIDs []string) error

	// Close releases any resources held by the driver.
	Close() error
}
