package embeddingutils_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	embeddingutils "github.com/papercomputeco/reels/pkg/embeddings/utils"
)

func TestEmbeddingUtils(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "EmbeddingUtils Suite")
}

var _ = Describe("NewEmbedder", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("returns no provider when embedding is disabled", func() {
		provider, err := embeddingutils.NewEmbedder(ctx, &embeddingutils.NewEmbedderOpts{
			ProviderType: "none",
			Logger:       zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(provider).To(BeNil())
	})

	It("selects the local provider directly", func() {
		provider, err := embeddingutils.NewEmbedder(ctx, &embeddingutils.NewEmbedderOpts{
			ProviderType: "local",
			Logger:       zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(provider).NotTo(BeNil())
		Expect(provider.Name()).To(Equal("local"))
	})

	It("passes the dimension override through", func() {
		provider, err := embeddingutils.NewEmbedder(ctx, &embeddingutils.NewEmbedderOpts{
			ProviderType: "local",
			Dimensions:   64,
			Logger:       zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(provider.Dimension()).To(Equal(64))
	})

	It("falls back when the preferred provider's probe fails", func() {
		provider, err := embeddingutils.NewEmbedder(ctx, &embeddingutils.NewEmbedderOpts{
			ProviderType: "ollama",
			TargetURL:    "http://127.0.0.1:1",
			Fallbacks:    []string{"local"},
			Logger:       zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(provider).NotTo(BeNil())
		Expect(provider.Name()).To(Equal("local"))
	})

	It("disables embedding when every provider in the chain fails", func() {
		provider, err := embeddingutils.NewEmbedder(ctx, &embeddingutils.NewEmbedderOpts{
			ProviderType: "ollama",
			TargetURL:    "http://127.0.0.1:1",
			Logger:       zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(provider).To(BeNil())
	})

	It("rejects an unknown provider name", func() {
		_, err := embeddingutils.NewEmbedder(ctx, &embeddingutils.NewEmbedderOpts{
			ProviderType: "word2vec",
			Logger:       zap.NewNop(),
		})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unsupported embedding provider"))
	})
})
