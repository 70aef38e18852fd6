package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reels/pkg/embeddings"
	"github.com/papercomputeco/reels/pkg/embeddings/ollama"
)

func TestOllama(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Ollama Embedder Suite")
}

var _ = Describe("Embedder", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("EmbedBatch", func() {
		It("posts to /api/embed and returns the embeddings", func() {
			var gotModel string
			var gotInput []string

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/embed"))

				var req struct {
					Model string   `json:"model"`
					Input []string `json:"input"`
				}
				Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
				gotModel = req.Model
				gotInput = req.Input

				json.NewEncoder(w).Encode(map[string]any{
					"embeddings": [][]float32{{0.1, 0.2}, {0.3, 0.4}},
				})
			}))
			defer server.Close()

			embedder := ollama.New(ollama.Config{
				BaseURL: server.URL,
				Model:   "all-minilm",
			})

			vecs, err := embedder.EmbedBatch(ctx, []string{"one", "two"})
			Expect(err).NotTo(HaveOccurred())
			Expect(vecs).To(Equal([][]float32{{0.1, 0.2}, {0.3, 0.4}}))
			Expect(gotModel).To(Equal("all-minilm"))
			Expect(gotInput).To(Equal([]string{"one", "two"}))
		})

		It("wraps non-200 responses in ErrEmbedding", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			}))
			defer server.Close()

			embedder := ollama.New(ollama.Config{BaseURL: server.URL})

			_, err := embedder.Embed(ctx, "text")
			Expect(err).To(MatchError(embeddings.ErrEmbedding))
		})

		It("rejects a count mismatch between inputs and embeddings", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"embeddings": [][]float32{{0.1}},
				})
			}))
			defer server.Close()

			embedder := ollama.New(ollama.Config{BaseURL: server.URL})

			_, err := embedder.EmbedBatch(ctx, []string{"one", "two"})
			Expect(err).To(MatchError(embeddings.ErrEmbedding))
		})
	})

	Describe("Probe", func() {
		It("succeeds when the daemon answers /api/tags", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/tags"))
				w.Write([]byte(`{"models": []}`))
			}))
			defer server.Close()

			embedder := ollama.New(ollama.Config{BaseURL: server.URL})
			Expect(embedder.Probe(ctx)).To(Succeed())
		})

		It("fails with ErrUnavailable when the daemon is unreachable", func() {
			embedder := ollama.New(ollama.Config{BaseURL: "http://127.0.0.1:1"})

			err := embedder.Probe(ctx)
			Expect(err).To(MatchError(embeddings.ErrUnavailable))
		})
	})

	Describe("defaults", func() {
		It("reports the default model's dimensions", func() {
			embedder := ollama.New(ollama.Config{})
			Expect(embedder.Dimension()).To(Equal(ollama.DefaultDimensions))
			Expect(embedder.Name()).To(Equal("ollama"))
		})
	})
})
