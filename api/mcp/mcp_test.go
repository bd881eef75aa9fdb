package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kbase/pkg/answer"
	"github.com/papercomputeco/kbase/pkg/knowledge"
	"github.com/papercomputeco/kbase/pkg/logger"
	testutils "github.com/papercomputeco/kbase/pkg/utils/test"
	"github.com/papercomputeco/kbase/pkg/vector"
)

const document = "alpha\n\nbeta"

func newKnowledge(generator answer.Generator) (*knowledge.Service, *testutils.MockEmbedder) {
	embedder := testutils.NewMockEmbedder()
	embedder.Embeddings["alpha"] = []float32{1, 0}
	embedder.Embeddings["beta"] = []float32{0, 1}
	embedder.Embeddings["first letter"] = []float32{1, 0}
	embedder.Default = []float32{0.7, 0.7}

	cfg := knowledge.Config{
		Store:               vector.NewStore(vector.StoreConfig{}, logger.Nop()),
		Embedder:            embedder,
		MaxChunkChars:       5,
		SimilarityThreshold: knowledge.DefaultSimilarityThreshold,
		Logger:              logger.Nop(),
	}
	if generator != nil {
		cfg.Generator = generator
	}

	svc, err := knowledge.NewService(cfg)
	Expect(err).NotTo(HaveOccurred())
	return svc, embedder
}

func textOf(res *mcp.CallToolResult) string {
	Expect(res.Content).To(HaveLen(1))
	text, ok := res.Content[0].(*mcp.TextContent)
	Expect(ok).To(BeTrue())
	return text.Text
}

var _ = Describe("MCP Server", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("NewServer", func() {
		It("returns an error when the knowledge service is nil", func() {
			_, err := NewServer(Config{Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("knowledge service is required")))
		})

		It("returns an error when logger is nil", func() {
			svc, _ := newKnowledge(nil)
			_, err := NewServer(Config{Knowledge: svc})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("creates an empty server in noop mode", func() {
			server, err := NewServer(Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("tool registration", func() {
		listTools := func(server *Server) []string {
			clientTransport, serverTransport := mcp.NewInMemoryTransports()
			ss, err := server.mcpServer.Connect(ctx, serverTransport, nil)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(ss.Close)

			client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
			cs, err := client.Connect(ctx, clientTransport, nil)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(cs.Close)

			res, err := cs.ListTools(ctx, nil)
			Expect(err).NotTo(HaveOccurred())

			names := make([]string, 0, len(res.Tools))
			for _, t := range res.Tools {
				names = append(names, t.Name)
			}
			return names
		}

		It("exposes search and context without a generator", func() {
			svc, _ := newKnowledge(nil)
			server, err := NewServer(Config{Knowledge: svc, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			Expect(listTools(server)).To(ConsistOf("search", "context"))
		})

		It("adds ask when a generator is configured", func() {
			svc, _ := newKnowledge(testutils.NewMockGenerator("42"))
			server, err := NewServer(Config{Knowledge: svc, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			Expect(listTools(server)).To(ConsistOf("search", "context", "ask"))
		})
	})

	Describe("handlers", func() {
		var (
			server    *Server
			svc       *knowledge.Service
			generator *testutils.MockGenerator
		)

		BeforeEach(func() {
			generator = testutils.NewMockGenerator("It is alpha.")
			svc, _ = newKnowledge(generator)

			var err error
			server, err = NewServer(Config{Knowledge: svc, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
		})

		It("reports no document loaded before ingestion", func() {
			res, out, err := server.handleSearch(ctx, nil, SearchInput{Query: "first letter"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(textOf(res)).To(Equal("no document loaded"))
			Expect(out.Sections).To(BeEmpty())
		})

		Context("with a loaded document", func() {
			BeforeEach(func() {
				_, err := svc.Ingest(ctx, "file1", document, "test")
				Expect(err).NotTo(HaveOccurred())
			})

			It("returns scored sections", func() {
				res, out, err := server.handleSearch(ctx, nil, SearchInput{Query: "first letter", Collections: []string{"file1"}})
				Expect(err).NotTo(HaveOccurred())
				Expect(res.IsError).To(BeFalse())
				Expect(out.Sections).To(HaveLen(1))
				Expect(out.Sections[0].Collection).To(Equal("file1"))
				Expect(out.Sections[0].Results[0].Text).To(Equal("alpha"))
				Expect(out.Count).To(Equal(1))
				Expect(textOf(res)).To(ContainSubstring(`"collection":"file1"`))
			})

			It("returns the labeled context", func() {
				_, out, err := server.handleContext(ctx, nil, SearchInput{Query: "first letter"})
				Expect(err).NotTo(HaveOccurred())
				Expect(out.Context).To(Equal("[file1]\nalpha"))
				Expect(out.Sources).To(HaveLen(1))
			})

			It("answers through the generator", func() {
				_, out, err := server.handleAsk(ctx, nil, SearchInput{Query: "first letter"})
				Expect(err).NotTo(HaveOccurred())
				Expect(out.Answer).To(Equal("It is alpha."))
				Expect(out.Timestamp).NotTo(BeEmpty())
				Expect(generator.Prompts()).To(HaveLen(1))
			})

			It("reports generation failures as tool errors", func() {
				generator.Err = answer.ErrGeneration

				res, _, err := server.handleAsk(ctx, nil, SearchInput{Query: "first letter"})
				Expect(err).NotTo(HaveOccurred())
				Expect(res.IsError).To(BeTrue())
				Expect(textOf(res)).To(Equal("answer generation temporarily unavailable"))
			})
		})
	})
})
