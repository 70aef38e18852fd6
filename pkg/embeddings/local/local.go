// Package local implements a dependency-free embedding provider using
// feature hashing. It needs no external service, so it serves as the last
// link in the provider fallback chain. The vectors carry far less semantic
// signal than a learned model's, but identical text always produces the
// identical vector, which keeps hybrid search deterministic in tests and
// air-gapped installs.
package local

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	// DefaultDimensions is the default vector width.
	DefaultDimensions = 256
)

// Embedder hashes tokens into a fixed number of buckets and L2-normalizes
// the resulting histogram.
type Embedder struct {
	dimensions int
}

// Config holds configuration for the local embedder.
type Config struct {
	// Dimensions is the vector width. Defaults to DefaultDimensions.
	Dimensions int
}

// New creates a local feature-hashing embedder.
func New(cfg Config) *Embedder {
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

func (e *Embedder) Name() string {
	return "local"
}

func (e *Embedder) Dimension() int {
	return e.dimensions
}

// Embed tokenizes on non-alphanumeric boundaries, hashes each token (and
// each adjacent token bigram, for a little word-order signal) into a
// bucket, and L2-normalizes the histogram.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)

	tokens := tokenize(text)
	for i, tok := range tokens {
		vec[e.bucket(tok)]++
		if i > 0 {
			vec[e.bucket(tokens[i-1]+" "+tok)]++
		}
	}

	normalize(vec)
	return vec, nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Probe never fails; the local embedder has no external dependency.
func (e *Embedder) Probe(context.Context) error {
	return nil
}

func (e *Embedder) Close() error {
	return nil
}

func (e *Embedder) bucket(token string) int {
	h := fnv.New32a()
	h.Write([]byte(token))
	return int(h.Sum32() % uint32(e.dimensions))
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// normalize scales the vector to unit length. The zero vector (empty
// input) is left as-is.
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
