package hashing_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kbase/pkg/embeddings/hashing"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ = Describe("Embedder", func() {
	var (
		ctx context.Context
		e   *hashing.Embedder
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		e, err = hashing.NewEmbedder(64)
		Expect(err).NotTo(HaveOccurred())
	})

	It("uses the default dimension when none is given", func() {
		d, err := hashing.NewEmbedder(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Dimensions()).To(Equal(hashing.DefaultDimensions))
	})

	It("rejects negative dimensions", func() {
		_, err := hashing.NewEmbedder(-1)
		Expect(err).To(HaveOccurred())
	})

	It("produces unit vectors of the configured size", func() {
		v, err := e.Embed(ctx, "The quick brown fox")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(HaveLen(64))

		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		Expect(norm).To(BeNumerically("~", 1.0, 1e-6))
	})

	It("is deterministic and batch-interchangeable", func() {
		single, err := e.Embed(ctx, "retrieval augmented generation")
		Expect(err).NotTo(HaveOccurred())

		batch, err := e.EmbedBatch(ctx, []string{"other text", "retrieval augmented generation"})
		Expect(err).NotTo(HaveOccurred())
		Expect(batch[1]).To(Equal(single))
	})

	It("ignores case and punctuation", func() {
		a, _ := e.Embed(ctx, "Hello, World!")
		b, _ := e.Embed(ctx, "hello world")
		Expect(a).To(Equal(b))
	})

	It("scores overlapping texts higher than unrelated ones", func() {
		q, _ := e.Embed(ctx, "vector database persistence")
		near, _ := e.Embed(ctx, "the vector database handles persistence on disk")
		far, _ := e.Embed(ctx, "banana smoothie recipe")
		Expect(cosine(q, near)).To(BeNumerically(">", cosine(q, far)))
	})

	It("handles text written without spaces", func() {
		a, _ := e.Embed(ctx, "知识库检索")
		b, _ := e.Embed(ctx, "检索知识库")
		Expect(cosine(a, b)).To(BeNumerically(">", 0.5))
	})

	It("embeds token-free text to the zero vector", func() {
		v, err := e.Embed(ctx, "  ... ")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(HaveLen(64))
		for _, x := range v {
			Expect(x).To(BeZero())
		}
	})
})
