package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/kbase/api/mcp"
	"github.com/papercomputeco/kbase/pkg/knowledge"
	"github.com/papercomputeco/kbase/pkg/utils"
)

// Knowledge is the knowledge.Service surface the API serves.
type Knowledge interface {
	mcp.Knowledge
	Collections() []knowledge.CollectionInfo
	Ingest(ctx context.Context, collection, rawText, source string) (*knowledge.IngestResult, error)
	Delete(ctx context.Context, collection string) error
}

// Server is the API server for managing and querying kbase collections.
type Server struct {
	config    Config
	knowledge Knowledge
	logger    *slog.Logger
	app       *fiber.App
}

// NewServer creates a new API server.
// The knowledge service is injected so it can be shared with other
// components such as the file watcher.
func NewServer(config Config, kb Knowledge, logger *slog.Logger) (*Server, error) {
	if kb == nil {
		return nil, errors.New("knowledge service is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	bodyLimit := config.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
		ServerHeader:          utils.Build().UserAgent(),

		// Params and query values outlive the request as collection ids.
		Immutable: true,
	})

	s := &Server{
		config:    config,
		knowledge: kb,
		logger:    logger,
		app:       app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Get("/collections", s.handleListCollections)
	v1.Put("/collections/:id", s.handleIngest)
	v1.Delete("/collections/:id", s.handleDeleteCollection)
	v1.Get("/search", s.handleSearch)
	v1.Post("/context", s.handleContext)
	v1.Post("/ask", s.handleAsk)

	if !config.DisableMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Knowledge: kb,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
