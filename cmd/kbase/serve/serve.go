// Package servecmder provides the serve command, which runs the kbase HTTP
// API (with MCP mounted at /mcp) and optionally watches source documents.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/kbase/api"
	"github.com/papercomputeco/kbase/cmd/kbase/bootstrap"
	"github.com/papercomputeco/kbase/pkg/config"
	"github.com/papercomputeco/kbase/pkg/ingest"
)

type ServeCommander struct {
	watch    []string
	noMCP    bool
	workers  uint
	flagKeys []string
}

const serveLongDesc string = `Run the kbase API server.

The server exposes:
  GET    /ping                  Health check
  GET    /v1/collections        List collections
  PUT    /v1/collections/:id    Re-process a collection from the request body
  DELETE /v1/collections/:id    Delete a collection
  GET    /v1/search             Search (query, collections)
  POST   /v1/context            Assemble a labeled context
  POST   /v1/ask                Answer a question
  /mcp                          MCP tools: search, context, ask

Use --watch collection=file to re-process a collection in the background
whenever its file changes.

Examples:
  kbase serve
  kbase serve --listen :9000
  kbase serve --watch file1=manual.txt --watch file2=faq.txt`

const serveShortDesc string = "Run the kbase API server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringArrayVar(&cmder.watch, "watch", nil, "collection=file to re-process when the file changes (repeatable)")
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Do not mount the MCP server at /mcp")
	cmd.Flags().UintVar(&cmder.workers, "workers", 2, "Number of background ingest workers for --watch")
	bootstrap.AddLogFlags(cmd)

	cmder.flagKeys = bootstrap.AddFlags(cmd,
		[]string{config.FlagAPIListen},
		bootstrap.StorageFlags,
		bootstrap.EmbeddingFlags,
		bootstrap.RetrievalFlags,
		bootstrap.GenerationFlags,
		bootstrap.EventsFlags,
	)

	return cmd
}

// ParseWatch parses collection=file specs into a file to collection map.
func ParseWatch(specs []string) (map[string]string, error) {
	sources := make(map[string]string, len(specs))
	for _, spec := range specs {
		collection, path, ok := strings.Cut(spec, "=")
		collection, path = strings.TrimSpace(collection), strings.TrimSpace(path)
		if !ok || collection == "" || path == "" {
			return nil, fmt.Errorf("invalid --watch %q: expected collection=file", spec)
		}
		sources[path] = collection
	}
	return sources, nil
}

func (c *ServeCommander) run(cmd *cobra.Command) error {
	sources, err := ParseWatch(c.watch)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	env, err := bootstrap.Setup(ctx, cmd, c.flagKeys, bootstrap.GeneratorOptional)
	if err != nil {
		return err
	}
	defer env.Close()

	server, err := api.NewServer(api.Config{
		ListenAddr: env.Config.API.Listen,
		DisableMCP: c.noMCP,
	}, env.Service, env.Logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 2)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	if len(sources) > 0 {
		pool, err := ingest.NewPool(&ingest.Config{
			Ingester:   env.Service,
			NumWorkers: c.workers,
			Timeout:    env.Config.EmbeddingTimeout() + env.Config.StorageTimeout(),
			Logger:     env.Logger,
		})
		if err != nil {
			return err
		}
		defer pool.Close()

		for path, collection := range sources {
			pool.Enqueue(ingest.Job{Collection: collection, Path: path})
		}

		watcher, err := ingest.NewWatcher(sources, pool, ingest.DefaultDebounce, env.Logger)
		if err != nil {
			return err
		}

		go func() {
			if err := watcher.Run(ctx); err != nil {
				errChan <- fmt.Errorf("file watcher error: %w", err)
			}
		}()

		env.Logger.Info("watching documents", "files", len(sources))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		_ = server.Shutdown()
		return err
	case sig := <-sigChan:
		env.Logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}
