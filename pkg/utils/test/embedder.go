package testutils

import (
	"context"
	"fmt"
)

// MockEmbedder is a test embedding provider that returns predictable
// embeddings.
type MockEmbedder struct {
	// Embeddings maps input text to a fixed embedding.
	Embeddings map[string][]float32

	// Default is returned for texts not in Embeddings.
	Default []float32

	// FailOn causes Embed to return an error when the input text matches.
	FailOn string

	// ProbeErr is returned by Probe, to simulate an unreachable backend.
	ProbeErr error
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
		Default:    []float32{0.1, 0.2, 0.3},
	}
}

func (m *MockEmbedder) Name() string {
	return "mock"
}

func (m *MockEmbedder) Dimension() int {
	return len(m.Default)
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	return m.Default, nil
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

func (m *MockEmbedder) Probe(context.Context) error {
	return m.ProbeErr
}

func (m *MockEmbedder) Close() error {
	return nil
}
