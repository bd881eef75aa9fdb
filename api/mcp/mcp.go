// Package mcp provides an MCP (Model Context Protocol) server exposing the
// kbase knowledge base as tools.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/kbase/pkg/assembler"
	"github.com/papercomputeco/kbase/pkg/knowledge"
	"github.com/papercomputeco/kbase/pkg/utils"
)

// Knowledge is the part of knowledge.Service the tools call.
type Knowledge interface {
	Search(ctx context.Context, query string, collections []string) ([]assembler.Section, error)
	Context(ctx context.Context, query string, collections []string) (*knowledge.ContextResult, error)
	Ask(ctx context.Context, query string, collections []string) (*knowledge.Answer, error)
	CanAnswer() bool
}

type Config struct {
	// Knowledge answers every tool call.
	Knowledge Knowledge

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the search and context tools,
// plus the ask tool when answer generation is configured.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "kbase",
			Version: utils.Build().Short(),
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Knowledge == nil {
			return nil, errors.New("knowledge service is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        searchToolName,
			Description: searchDescription,
		}, s.handleSearch)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        contextToolName,
			Description: contextDescription,
		}, s.handleContext)

		if c.Knowledge.CanAnswer() {
			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        askToolName,
				Description: askDescription,
			}, s.handleAsk)
		}
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// errorResult reports err to the calling model with its user message.
func (s *Server) errorResult(tool string, err error) *mcp.CallToolResult {
	s.config.Logger.Warn("MCP tool failed", "tool", tool, "error", err)
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: knowledge.UserMessage(err)},
		},
	}
}
