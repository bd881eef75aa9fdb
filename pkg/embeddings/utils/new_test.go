package embeddingutils_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kbase/pkg/embeddings/hashing"
	"github.com/papercomputeco/kbase/pkg/embeddings/ollama"
	"github.com/papercomputeco/kbase/pkg/embeddings/openai"
	embeddingutils "github.com/papercomputeco/kbase/pkg/embeddings/utils"
)

var _ = Describe("NewEmbedder", func() {
	It("builds an ollama embedder", func() {
		e, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: embeddingutils.ProviderOllama,
			TargetURL:    "http://localhost:11434",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(e).To(BeAssignableToTypeOf(&ollama.Embedder{}))
	})

	It("builds an openai embedder when a key is present", func() {
		e, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: embeddingutils.ProviderOpenAI,
			APIKey:       "sk-test",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(e).To(BeAssignableToTypeOf(&openai.Embedder{}))
	})

	It("fails for openai without a key", func() {
		_, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: embeddingutils.ProviderOpenAI,
		})
		Expect(err).To(HaveOccurred())
	})

	It("builds a hashing embedder with the requested size", func() {
		e, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: embeddingutils.ProviderHash,
			Dimensions:   32,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(e.(*hashing.Embedder).Dimensions()).To(Equal(32))
	})

	It("rejects unknown providers", func() {
		_, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{ProviderType: "word2vec"})
		Expect(err).To(MatchError(ContainSubstring("unsupported embedding provider")))
	})
})
