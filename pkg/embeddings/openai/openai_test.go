package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kbase/pkg/embeddings/openai"
	"github.com/papercomputeco/kbase/pkg/vector"
)

type embeddingItem struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

var _ = Describe("Embedder", func() {
	var (
		server   *httptest.Server
		requests atomic.Int32
		fail     bool
	)

	BeforeEach(func() {
		requests.Store(0)
		fail = false

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			requests.Add(1)
			Expect(r.URL.Path).To(HaveSuffix("/embeddings"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer test-key"))

			if fail {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
				return
			}

			var body struct {
				Input []string `json:"input"`
				Model string   `json:"model"`
			}
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())

			// Return data in reverse order to exercise index sorting.
			data := make([]embeddingItem, 0, len(body.Input))
			for i := len(body.Input) - 1; i >= 0; i-- {
				data = append(data, embeddingItem{
					Object:    "embedding",
					Embedding: []float32{float32(len(body.Input[i])), 0.5},
					Index:     i,
				})
			}

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"object": "list",
				"data":   data,
				"model":  body.Model,
				"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
			})
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newEmbedder := func(batchSize int) *openai.Embedder {
		e, err := openai.NewEmbedder(openai.EmbedderConfig{
			APIKey:            "test-key",
			BaseURL:           server.URL + "/v1",
			BatchSize:         batchSize,
			RequestsPerSecond: 1000,
		})
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	It("requires an API key", func() {
		_, err := openai.NewEmbedder(openai.EmbedderConfig{})
		Expect(err).To(HaveOccurred())
	})

	It("returns embeddings in input order", func() {
		out, err := newEmbedder(0).EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal([][]float32{{1, 0.5}, {2, 0.5}, {3, 0.5}}))
		Expect(requests.Load()).To(Equal(int32(1)))
	})

	It("splits large inputs into several requests", func() {
		out, err := newEmbedder(2).EmbedBatch(context.Background(), []string{"a", "bb", "ccc", "dddd", "e"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(5))
		Expect(out[3]).To(Equal([]float32{4, 0.5}))
		Expect(requests.Load()).To(Equal(int32(3)))
	})

	It("wraps API errors as embedding failures", func() {
		fail = true
		_, err := newEmbedder(0).Embed(context.Background(), "a")
		Expect(err).To(MatchError(vector.ErrEmbedding))
	})
})
