// Package embeddingutils builds the configured embedding provider chain.
package embeddingutils

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/reels/pkg/embeddings"
	"github.com/papercomputeco/reels/pkg/embeddings/local"
	"github.com/papercomputeco/reels/pkg/embeddings/ollama"
	"github.com/papercomputeco/reels/pkg/embeddings/openai"
)

type NewEmbedderOpts struct {
	// ProviderType is the preferred provider ("local", "ollama",
	// "openai", or "none" to disable embedding entirely).
	ProviderType string

	// Fallbacks are tried in order when the preferred provider fails its
	// probe.
	Fallbacks []string

	// TargetURL overrides the provider's API endpoint (Ollama daemon URL
	// or an OpenAI-compatible base URL).
	TargetURL string

	// Model names the embedding model for remote providers.
	Model string

	// APIKey authenticates the openai provider.
	APIKey string

	// Dimensions overrides the provider's default vector width.
	Dimensions int

	Logger *zap.Logger
}

// NewEmbedder walks the provider chain (preferred first, then fallbacks in
// order) and returns the first provider whose probe succeeds. When every
// provider fails it returns (nil, nil): the caller runs with vector search
// disabled rather than failing startup.
func NewEmbedder(ctx context.Context, o *NewEmbedderOpts) (embeddings.Provider, error) {
	if o.ProviderType == "none" {
		return nil, nil
	}

	chain := append([]string{o.ProviderType}, o.Fallbacks...)
	seen := make(map[string]bool, len(chain))

	for _, name := range chain {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		provider, err := build(name, o)
		if err != nil {
			return nil, err
		}

		if err := provider.Probe(ctx); err != nil {
			o.Logger.Warn("embedding provider unavailable, trying next",
				zap.String("provider", name),
				zap.Error(err),
			)
			_ = provider.Close()
			continue
		}

		o.Logger.Info("embedding provider selected",
			zap.String("provider", name),
			zap.Int("dimensions", provider.Dimension()),
		)
		return provider, nil
	}

	o.Logger.Warn("no embedding provider available, vector search disabled")
	return nil, nil
}

func build(name string, o *NewEmbedderOpts) (embeddings.Provider, error) {
	// URL and model overrides apply only to the preferred provider;
	// fallbacks run with their own defaults.
	var url, model string
	if name == o.ProviderType {
		url, model = o.TargetURL, o.Model
	}

	switch name {
	case "local":
		return local.New(local.Config{
			Dimensions: o.Dimensions,
		}), nil
	case "ollama":
		return ollama.New(ollama.Config{
			BaseURL:    url,
			Model:      model,
			Dimensions: o.Dimensions,
		}), nil
	case "openai":
		return openai.New(openai.Config{
			APIKey:     o.APIKey,
			BaseURL:    url,
			Model:      model,
			Dimensions: o.Dimensions,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", name)
	}
}
