// Package ingestcmder provides the ingest command, which (re-)processes
// documents into collections and can keep watching them for changes.
package ingestcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/kbase/cmd/kbase/bootstrap"
	"github.com/papercomputeco/kbase/pkg/cliui"
	"github.com/papercomputeco/kbase/pkg/ingest"
	"github.com/papercomputeco/kbase/pkg/knowledge"
	"github.com/papercomputeco/kbase/pkg/vector"
)

type ingestCommander struct {
	sources  []Source
	watch    bool
	workers  uint
	flagKeys []string
}

// Source pairs a collection with the document that fills it.
type Source struct {
	Collection string
	Path       string
}

const ingestLongDesc string = `Process documents into collections.

Each document replaces the named collection wholesale: it is split into
text units, every unit is embedded, and the collection is swapped and
persisted in one step. Queries keep seeing the previous collection until
the swap. Documents are UTF-8 text; form feeds separate pages.

Pass arguments as collection/file pairs. With --watch, kbase keeps running
and re-processes a collection whenever its file changes.

Examples:
  kbase ingest file1 manual.txt
  kbase ingest file1 manual.txt file2 faq.txt
  kbase ingest file1 manual.txt --watch`

const ingestShortDesc string = "Process documents into collections"

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest <collection> <file> [<collection> <file>...]",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return errors.New("expected collection/file pairs")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.sources = ParseSources(args)
			return cmder.run(cmd)
		},
	}

	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Keep running and re-process files when they change")
	cmd.Flags().UintVar(&cmder.workers, "workers", 2, "Number of background ingest workers when watching")

	cmder.flagKeys = bootstrap.AddFlags(cmd,
		bootstrap.StorageFlags,
		bootstrap.EmbeddingFlags,
		bootstrap.EventsFlags,
	)

	return cmd
}

// ParseSources turns alternating collection/file arguments into Sources.
func ParseSources(args []string) []Source {
	sources := make([]Source, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		sources = append(sources, Source{Collection: args[i], Path: args[i+1]})
	}
	return sources
}

func (c *ingestCommander) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	env, err := bootstrap.Setup(ctx, cmd, c.flagKeys, bootstrap.GeneratorSkip)
	if err != nil {
		return err
	}
	defer env.Close()

	out := cmd.OutOrStdout()
	for _, src := range c.sources {
		if err := ingestFile(ctx, out, env.Service, src); err != nil {
			return err
		}
	}

	if !c.watch {
		return nil
	}

	return c.watchSources(ctx, out, env)
}

// ingestFile processes one source synchronously. A persistence failure is
// reported but not fatal: the collection is live for this process.
func ingestFile(ctx context.Context, out io.Writer, svc *knowledge.Service, src Source) error {
	text, err := ingest.ReadDocument(src.Path)
	if err != nil {
		return err
	}

	var result *knowledge.IngestResult
	err = cliui.Step(out, fmt.Sprintf("Indexing %s into %s", src.Path, cliui.LabelStyle.Render(src.Collection)), func() error {
		var err error
		result, err = svc.Ingest(ctx, src.Collection, text, src.Path)
		if result != nil && errors.Is(err, vector.ErrPersistence) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("ingesting %s: %s", src.Path, knowledge.UserMessage(err))
	}

	fmt.Fprintf(out, "    %s\n", cliui.DimStyle.Render(fmt.Sprintf("%d units, dimension %d", result.Units, result.Dimension)))
	if !result.Persisted {
		fmt.Fprintf(out, "    %s collection is in memory only; it could not be saved\n", cliui.WarnStyle.Render("!"))
	}
	return nil
}

func (c *ingestCommander) watchSources(ctx context.Context, out io.Writer, env *bootstrap.Env) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := ingest.NewPool(&ingest.Config{
		Ingester:   env.Service,
		NumWorkers: c.workers,
		Timeout:    env.Config.EmbeddingTimeout() + env.Config.StorageTimeout(),
		OnDone: func(job ingest.Job, result *knowledge.IngestResult, err error) {
			if result == nil {
				fmt.Fprintf(out, "  %s %s: %s\n", cliui.FailMark, job.Path, knowledge.UserMessage(err))
				return
			}
			fmt.Fprintf(out, "  %s re-indexed %s %s\n",
				cliui.Mark(err),
				cliui.LabelStyle.Render(job.Collection),
				cliui.DimStyle.Render(fmt.Sprintf("(%d units)", result.Units)),
			)
		},
		Logger: env.Logger,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	watched := make(map[string]string, len(c.sources))
	for _, src := range c.sources {
		watched[src.Path] = src.Collection
	}

	watcher, err := ingest.NewWatcher(watched, pool, ingest.DefaultDebounce, env.Logger)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- watcher.Run(ctx)
	}()

	fmt.Fprintf(out, "\n  %s\n", cliui.DimStyle.Render("Watching for changes. Press Ctrl+C to stop."))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		env.Logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
		return <-errChan
	}
}
