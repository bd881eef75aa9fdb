package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/kbase/pkg/assembler"
	"github.com/papercomputeco/kbase/pkg/retriever"
)

var (
	searchToolName    = "search"
	searchDescription = "Search the loaded documents for the passages most similar to a query. Returns the matching passages per collection with their cosine similarity scores."

	contextToolName    = "context"
	contextDescription = "Build the labeled context block kbase would give an answering model for a query: the best passages of every collection, grouped under their collection name and cut to the configured length."
)

// SearchInput represents the input arguments for the search and context tools.
type SearchInput struct {
	Query       string   `json:"query" jsonschema:"the question or search text"`
	Collections []string `json:"collections,omitempty" jsonschema:"collections to search in order (default: all configured collections)"`
}

// SearchSection holds the passages found in one collection.
type SearchSection struct {
	Collection string             `json:"collection"`
	Results    []retriever.Result `json:"results"`
}

// SearchOutput represents the output of the search tool.
type SearchOutput struct {
	Query    string          `json:"query"`
	Sections []SearchSection `json:"sections"`
	Count    int             `json:"count"`
}

// ContextOutput represents the output of the context tool.
type ContextOutput struct {
	Query     string             `json:"query"`
	Context   string             `json:"context"`
	Sources   []retriever.Result `json:"sources"`
	Truncated bool               `json:"truncated"`
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	s.config.Logger.Debug("MCP search request",
		"query", input.Query,
		"collections", input.Collections,
	)

	sections, err := s.config.Knowledge.Search(ctx, input.Query, input.Collections)
	if err != nil {
		return s.errorResult(searchToolName, err), SearchOutput{}, nil
	}

	output := buildSearchOutput(input.Query, sections)
	return jsonResult(output)
}

func (s *Server) handleContext(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, ContextOutput, error) {
	cr, err := s.config.Knowledge.Context(ctx, input.Query, input.Collections)
	if err != nil {
		return s.errorResult(contextToolName, err), ContextOutput{}, nil
	}

	return jsonResult(ContextOutput{
		Query:     cr.Query,
		Context:   cr.Context,
		Sources:   cr.Sources,
		Truncated: cr.Truncated,
	})
}

// buildSearchOutput converts service sections into the tool output,
// keeping the requested collection order.
func buildSearchOutput(query string, sections []assembler.Section) SearchOutput {
	output := SearchOutput{
		Query:    query,
		Sections: make([]SearchSection, 0, len(sections)),
	}
	for _, section := range sections {
		results := section.Results
		if results == nil {
			results = []retriever.Result{}
		}
		output.Sections = append(output.Sections, SearchSection{
			Collection: section.Label,
			Results:    results,
		})
		output.Count += len(results)
	}
	return output
}

// jsonResult returns out as structured content plus a serialized JSON
// TextContent block for clients without structured output support.
func jsonResult[T any](out T) (*mcp.CallToolResult, T, error) {
	jsonBytes, err := json.Marshal(out)
	if err != nil {
		var zero T
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize results: %v", err)},
			},
		}, zero, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, out, nil
}
