package api

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/kbase/pkg/assembler"
	"github.com/papercomputeco/kbase/pkg/config"
	"github.com/papercomputeco/kbase/pkg/knowledge"
	"github.com/papercomputeco/kbase/pkg/retriever"
	"github.com/papercomputeco/kbase/pkg/vector"
)

// CollectionsResponse lists the known collections.
type CollectionsResponse struct {
	Collections []knowledge.CollectionInfo `json:"collections"`
}

// IngestResponse describes a re-processed collection. Warning is set when
// the collection is live but could not be persisted.
type IngestResponse struct {
	*knowledge.IngestResult
	Warning string `json:"warning,omitempty"`
}

// QueryRequest is the body of POST /v1/context and POST /v1/ask.
type QueryRequest struct {
	Query       string   `json:"query"`
	Collections []string `json:"collections,omitempty"`
}

// SearchSection holds the results of one collection.
type SearchSection struct {
	Collection string             `json:"collection"`
	Results    []retriever.Result `json:"results"`
}

// SearchResponse is the body of GET /v1/search.
type SearchResponse struct {
	Query    string          `json:"query"`
	Sections []SearchSection `json:"sections"`
	Count    int             `json:"count"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListCollections handles GET /v1/collections.
func (s *Server) handleListCollections(c *fiber.Ctx) error {
	return c.JSON(CollectionsResponse{Collections: s.knowledge.Collections()})
}

// handleIngest handles PUT /v1/collections/:id. The request body is the
// raw UTF-8 document text; form feeds separate pages.
// Query parameters:
//   - source (optional): a label for where the text came from
func (s *Server) handleIngest(c *fiber.Ctx) error {
	id := c.Params("id")

	body := c.Body()
	if !utf8.Valid(body) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "document must be UTF-8 text"})
	}

	source := c.Query("source", "api")

	result, err := s.knowledge.Ingest(c.Context(), id, string(body), source)
	if err != nil {
		if result != nil && errors.Is(err, vector.ErrPersistence) {
			return c.JSON(IngestResponse{IngestResult: result, Warning: knowledge.UserMessage(err)})
		}
		return s.fail(c, err)
	}

	return c.JSON(IngestResponse{IngestResult: result})
}

// handleDeleteCollection handles DELETE /v1/collections/:id.
func (s *Server) handleDeleteCollection(c *fiber.Ctx) error {
	if err := s.knowledge.Delete(c.Context(), c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleSearch handles GET /v1/search requests.
// Query parameters:
//   - query (required): the search query text
//   - collections (optional): comma separated collections, in order
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := c.Query("query")
	if strings.TrimSpace(query) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query parameter is required"})
	}

	sections, err := s.knowledge.Search(c.Context(), query, config.SplitList(c.Query("collections")))
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(NewSearchResponse(query, sections))
}

// NewSearchResponse flattens per-collection sections into the search
// response shape. Sections without results keep an empty list.
func NewSearchResponse(query string, sections []assembler.Section) SearchResponse {
	resp := SearchResponse{
		Query:    strings.TrimSpace(query),
		Sections: make([]SearchSection, 0, len(sections)),
	}
	for _, section := range sections {
		results := section.Results
		if results == nil {
			results = []retriever.Result{}
		}
		resp.Sections = append(resp.Sections, SearchSection{Collection: section.Label, Results: results})
		resp.Count += len(results)
	}
	return resp
}

// handleContext handles POST /v1/context.
func (s *Server) handleContext(c *fiber.Ctx) error {
	req, err := parseQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	result, err := s.knowledge.Context(c.Context(), req.Query, req.Collections)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(result)
}

// handleAsk handles POST /v1/ask.
func (s *Server) handleAsk(c *fiber.Ctx) error {
	req, err := parseQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	result, err := s.knowledge.Ask(c.Context(), req.Query, req.Collections)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(result)
}

func parseQuery(c *fiber.Ctx) (*QueryRequest, error) {
	req := &QueryRequest{}
	if err := c.BodyParser(req); err != nil {
		return nil, errors.New("invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.New("query is required")
	}
	return req, nil
}
