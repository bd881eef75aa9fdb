package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kbase/pkg/answer"
	"github.com/papercomputeco/kbase/pkg/knowledge"
	"github.com/papercomputeco/kbase/pkg/logger"
	"github.com/papercomputeco/kbase/pkg/utils"
	testutils "github.com/papercomputeco/kbase/pkg/utils/test"
	"github.com/papercomputeco/kbase/pkg/vector"
)

var _ = Describe("Server", func() {
	var (
		server    *Server
		svc       *knowledge.Service
		embedder  *testutils.MockEmbedder
		persister *testutils.MockPersister
		generator *testutils.MockGenerator
	)

	newServer := func(gen answer.Generator) {
		embedder = testutils.NewMockEmbedder()
		embedder.Embeddings["alpha"] = []float32{1, 0}
		embedder.Embeddings["beta"] = []float32{0, 1}
		embedder.Embeddings["first letter"] = []float32{1, 0}
		embedder.Default = []float32{0.7, 0.7}

		persister = testutils.NewMockPersister()
		store := vector.NewStore(vector.StoreConfig{Persister: persister}, logger.Nop())

		cfg := knowledge.Config{
			Store:               store,
			Embedder:            embedder,
			MaxChunkChars:       5,
			SimilarityThreshold: knowledge.DefaultSimilarityThreshold,
			Logger:              logger.Nop(),
		}
		if gen != nil {
			cfg.Generator = gen
		}

		var err error
		svc, err = knowledge.NewService(cfg)
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{ListenAddr: ":0"}, svc, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	}

	do := func(req *http.Request) (int, []byte) {
		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp.StatusCode, body
	}

	put := func(id, text string) (int, []byte) {
		req := httptest.NewRequest(http.MethodPut, "/v1/collections/"+id, strings.NewReader(text))
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		return do(req)
	}

	postJSON := func(path, body string) (int, []byte) {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return do(req)
	}

	errorOf := func(body []byte) string {
		var e ErrorResponse
		Expect(json.Unmarshal(body, &e)).To(Succeed())
		return e.Error
	}

	BeforeEach(func() {
		generator = testutils.NewMockGenerator("The answer is alpha.")
		newServer(generator)
	})

	Describe("NewServer", func() {
		It("requires a knowledge service", func() {
			_, err := NewServer(Config{}, nil, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("knowledge service is required")))
		})

		It("requires a logger", func() {
			_, err := NewServer(Config{}, svc, nil)
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			status, body := do(httptest.NewRequest(http.MethodGet, "/ping", nil))
			Expect(status).To(Equal(http.StatusOK))
			Expect(string(body)).To(Equal(`"pong"`))
		})

		It("identifies the server build", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.Header.Get("Server")).To(Equal(utils.Build().UserAgent()))
		})
	})

	Describe("PUT /v1/collections/:id", func() {
		It("ingests a document and reports the collection", func() {
			status, body := put("file1", "alpha\n\nbeta")
			Expect(status).To(Equal(http.StatusOK))

			var resp IngestResponse
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.Collection).To(Equal("file1"))
			Expect(resp.Units).To(Equal(2))
			Expect(resp.Dimension).To(Equal(2))
			Expect(resp.Persisted).To(BeTrue())
			Expect(resp.Warning).To(BeEmpty())
			Expect(persister.Stored("file1")).NotTo(BeNil())
		})

		It("keeps the collection live when persisting fails", func() {
			persister.FailSave = true

			status, body := put("file1", "alpha\n\nbeta")
			Expect(status).To(Equal(http.StatusOK))

			var resp IngestResponse
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.Persisted).To(BeFalse())
			Expect(resp.Warning).To(Equal("collection could not be saved"))
		})

		It("keeps the collection id once later requests reuse the buffers", func() {
			status, _ := put("manual", "alpha")
			Expect(status).To(Equal(http.StatusOK))

			for range 20 {
				status, _ = do(httptest.NewRequest(http.MethodDelete, "/v1/collections/zzzzzz", nil))
				Expect(status).To(Equal(http.StatusNoContent))
			}

			seen := map[string]int{}
			for _, c := range svc.Collections() {
				seen[c.ID]++
			}
			for id, n := range seen {
				Expect(n).To(Equal(1), "collection %q listed more than once", id)
			}
			Expect(svc.Collections()).To(ContainElement(knowledge.CollectionInfo{ID: "manual", Units: 1, Dimension: 2}))

			status, body := do(httptest.NewRequest(http.MethodGet, "/v1/search?query=alpha&collections=manual", nil))
			Expect(status).To(Equal(http.StatusOK))
			Expect(string(body)).To(ContainSubstring(`"manual"`))
		})

		It("rejects an empty document", func() {
			status, body := put("file1", "  \n\n ")
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(errorOf(body)).To(Equal("input is empty"))
		})

		It("rejects an invalid collection id", func() {
			status, _ := put("bad%21id", "alpha")
			Expect(status).To(Equal(http.StatusBadRequest))
		})

		It("rejects non UTF-8 bodies", func() {
			status, body := put("file1", "\xff\xfe")
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(errorOf(body)).To(ContainSubstring("UTF-8"))
		})

		It("reports embedding failures as temporarily unavailable", func() {
			embedder.FailOn = "beta"

			status, body := put("file1", "alpha\n\nbeta")
			Expect(status).To(Equal(http.StatusServiceUnavailable))
			Expect(errorOf(body)).To(Equal("retrieval temporarily unavailable"))
		})
	})

	Describe("GET /v1/collections", func() {
		It("lists the default slots with their sizes", func() {
			put("file1", "alpha\n\nbeta")

			status, body := do(httptest.NewRequest(http.MethodGet, "/v1/collections", nil))
			Expect(status).To(Equal(http.StatusOK))

			var resp CollectionsResponse
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.Collections).To(HaveLen(2))
			Expect(resp.Collections[0]).To(Equal(knowledge.CollectionInfo{ID: "file1", Units: 2, Dimension: 2}))
			Expect(resp.Collections[1]).To(Equal(knowledge.CollectionInfo{ID: "file2"}))
		})
	})

	Describe("DELETE /v1/collections/:id", func() {
		It("empties the collection", func() {
			put("file1", "alpha\n\nbeta")

			status, _ := do(httptest.NewRequest(http.MethodDelete, "/v1/collections/file1", nil))
			Expect(status).To(Equal(http.StatusNoContent))
			Expect(persister.Stored("file1")).To(BeNil())

			status, body := do(httptest.NewRequest(http.MethodGet, "/v1/search?query=first+letter", nil))
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(errorOf(body)).To(Equal("no document loaded"))
		})
	})

	Describe("GET /v1/search", func() {
		It("requires a query", func() {
			status, body := do(httptest.NewRequest(http.MethodGet, "/v1/search", nil))
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(errorOf(body)).To(Equal("query parameter is required"))
		})

		It("reports no document loaded when nothing is ingested", func() {
			status, body := do(httptest.NewRequest(http.MethodGet, "/v1/search?query=first+letter", nil))
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(errorOf(body)).To(Equal("no document loaded"))
		})

		It("returns sections in the requested order", func() {
			put("file1", "alpha\n\nbeta")
			put("file2", "beta")

			status, body := do(httptest.NewRequest(http.MethodGet, "/v1/search?query=first+letter&collections=file2,file1", nil))
			Expect(status).To(Equal(http.StatusOK))

			var resp SearchResponse
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.Query).To(Equal("first letter"))
			Expect(resp.Sections).To(HaveLen(2))
			Expect(resp.Sections[0].Collection).To(Equal("file2"))
			Expect(resp.Sections[0].Results).To(BeEmpty())
			Expect(resp.Sections[1].Collection).To(Equal("file1"))
			Expect(resp.Sections[1].Results).To(HaveLen(1))
			Expect(resp.Sections[1].Results[0].Text).To(Equal("alpha"))
			Expect(resp.Sections[1].Results[0].Score).To(BeNumerically("~", 1.0, 1e-6))
			Expect(resp.Count).To(Equal(1))
		})
	})

	Describe("POST /v1/context", func() {
		It("returns the labeled context", func() {
			put("file1", "alpha\n\nbeta")

			status, body := postJSON("/v1/context", `{"query":"first letter"}`)
			Expect(status).To(Equal(http.StatusOK))

			var resp knowledge.ContextResult
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.Context).To(Equal("[file1]\nalpha"))
			Expect(resp.Labels).To(Equal([]string{"file1"}))
			Expect(resp.Sources).To(HaveLen(1))
			Expect(resp.Truncated).To(BeFalse())
		})

		It("rejects a malformed body", func() {
			status, body := postJSON("/v1/context", `{`)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(errorOf(body)).To(Equal("invalid request body"))
		})

		It("rejects an empty query", func() {
			status, body := postJSON("/v1/context", `{"query":"  "}`)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(errorOf(body)).To(Equal("query is required"))
		})
	})

	Describe("POST /v1/ask", func() {
		It("answers from the assembled context", func() {
			put("file1", "alpha\n\nbeta")

			status, body := postJSON("/v1/ask", `{"query":"first letter","collections":["file1"]}`)
			Expect(status).To(Equal(http.StatusOK))

			var resp knowledge.Answer
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.Answer).To(Equal("The answer is alpha."))
			Expect(resp.Context).To(Equal("[file1]\nalpha"))

			prompts := generator.Prompts()
			Expect(prompts).To(HaveLen(1))
			Expect(prompts[0].Question).To(Equal("first letter"))
		})

		It("maps generation failures to bad gateway", func() {
			put("file1", "alpha\n\nbeta")
			generator.Err = answer.ErrGeneration

			status, body := postJSON("/v1/ask", `{"query":"first letter"}`)
			Expect(status).To(Equal(http.StatusBadGateway))
			Expect(errorOf(body)).To(Equal("answer generation temporarily unavailable"))
		})

		It("reports a missing generator", func() {
			newServer(nil)
			put("file1", "alpha\n\nbeta")

			status, body := postJSON("/v1/ask", `{"query":"first letter"}`)
			Expect(status).To(Equal(http.StatusNotImplemented))
			Expect(errorOf(body)).To(Equal("answer generation is not configured"))
		})
	})

	Describe("/mcp", func() {
		It("is mounted", func() {
			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json, text/event-stream")
			status, _ := do(req)
			Expect(status).NotTo(Equal(http.StatusNotFound))
		})
	})
})
