package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/kbase/pkg/retriever"
)

var (
	askToolName    = "ask"
	askDescription = "Answer a question from the loaded documents. Retrieves the most relevant passages and has the configured chat model answer from them."
)

// AskOutput represents the structured output of the ask tool.
type AskOutput struct {
	Query     string             `json:"query"`
	Answer    string             `json:"answer"`
	Sources   []retriever.Result `json:"sources"`
	Timestamp string             `json:"timestamp"`
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, AskOutput, error) {
	a, err := s.config.Knowledge.Ask(ctx, input.Query, input.Collections)
	if err != nil {
		return s.errorResult(askToolName, err), AskOutput{}, nil
	}

	return jsonResult(AskOutput{
		Query:     a.Query,
		Answer:    a.Answer,
		Sources:   a.Sources,
		Timestamp: a.Timestamp.Format(time.RFC3339),
	})
}
