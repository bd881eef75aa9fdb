// Package bootstrap turns the resolved configuration into the running
// pieces every kbase command shares: the logger, the vector store, the
// embedder, the answer generator, the event publisher and the knowledge
// service on top of them.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/kbase/pkg/answer"
	"github.com/papercomputeco/kbase/pkg/config"
	"github.com/papercomputeco/kbase/pkg/credentials"
	"github.com/papercomputeco/kbase/pkg/dotdir"
	"github.com/papercomputeco/kbase/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/kbase/pkg/embeddings/utils"
	"github.com/papercomputeco/kbase/pkg/eventstream"
	"github.com/papercomputeco/kbase/pkg/eventstream/kafka"
	"github.com/papercomputeco/kbase/pkg/eventstream/nop"
	"github.com/papercomputeco/kbase/pkg/knowledge"
	"github.com/papercomputeco/kbase/pkg/logger"
	"github.com/papercomputeco/kbase/pkg/vector"
	vectorutils "github.com/papercomputeco/kbase/pkg/vector/utils"
)

// Events providers.
const (
	EventsNone  = "none"
	EventsKafka = "kafka"
)

// GeneratorMode says how a command depends on answer generation.
type GeneratorMode int

const (
	// GeneratorSkip never builds a generator.
	GeneratorSkip GeneratorMode = iota

	// GeneratorOptional builds one when possible and logs why not otherwise.
	GeneratorOptional

	// GeneratorRequired fails when no generator can be built.
	GeneratorRequired
)

// Load resolves the configuration for cmd with precedence
// flag > KBASE_* env > config.toml > defaults, binding the given flag
// registry keys.
func Load(cmd *cobra.Command, flagKeys []string) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}

	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	return config.FromViper(v)
}

// NewLogger returns the console logger: charmbracelet output on a
// terminal, slog text otherwise, or JSON when jsonOut is set. Logs go to
// stderr so stdout stays pipeable.
func NewLogger(debug, jsonOut bool) *slog.Logger {
	format := logger.FormatText
	switch {
	case jsonOut:
		format = logger.FormatJSON
	case term.IsTerminal(int(os.Stderr.Fd())):
		format = logger.FormatPretty
	}

	return logger.New(
		logger.WithOutput(os.Stderr),
		logger.WithDebug(debug),
		logger.WithFormat(format),
	)
}

// Options tunes NewService.
type Options struct {
	// ConfigDir overrides the .kbase/ directory.
	ConfigDir string

	Generator GeneratorMode

	// SkipHydrate leaves persisted collections on disk.
	SkipHydrate bool
}

// NewService builds the knowledge service described by cfg and hydrates
// it from the configured persister.
func NewService(ctx context.Context, cfg *config.Config, o Options, log *slog.Logger) (*knowledge.Service, error) {
	ddm := dotdir.NewManager()

	credMgr, err := credentials.NewManager(o.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	persister, err := newPersister(ctx, cfg, ddm, o.ConfigDir, log)
	if err != nil {
		return nil, err
	}

	store := vector.NewStore(vector.StoreConfig{
		Persister:   persister,
		Timeout:     cfg.StorageTimeout(),
		Collections: cfg.Retrieval.Collections,
	}, log)

	embedder, err := NewEmbedder(cfg, credMgr)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	generator, err := newGenerator(cfg, credMgr, o.Generator, log)
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, err
	}

	publisher, err := NewPublisher(cfg, log)
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, err
	}

	svc, err := knowledge.NewService(knowledge.Config{
		Store:               store,
		Embedder:            embedder,
		Generator:           generator,
		Publisher:           publisher,
		Collections:         cfg.Retrieval.Collections,
		MaxChunkChars:       cfg.Chunking.MaxChunkChars,
		TopK:                cfg.Retrieval.TopK,
		SimilarityThreshold: threshold(cfg.Retrieval.SimilarityThreshold, knowledge.DefaultSimilarityThreshold),
		MaxContextChars:     cfg.Retrieval.MaxContextChars,
		Overrides:           overrides(cfg.Retrieval.Overrides),
		EmbedTimeout:        cfg.EmbeddingTimeout(),
		Logger:              log,
	})
	if err != nil {
		_ = errors.Join(store.Close(), embedder.Close(), publisher.Close())
		return nil, err
	}

	if !o.SkipHydrate {
		n, err := svc.Hydrate(ctx)
		if err != nil {
			log.Warn("could not list persisted collections", "error", err)
		} else {
			log.Debug("hydrated collections", "count", n)
		}
	}

	return svc, nil
}

func newPersister(ctx context.Context, cfg *config.Config, ddm *dotdir.Manager, configDir string, log *slog.Logger) (vector.Persister, error) {
	opts := &vectorutils.NewPersisterOpts{
		ProviderType: strings.ToLower(cfg.Storage.Provider),
		Target:       cfg.Storage.Target,
		Logger:       log,
	}

	local := opts.ProviderType == "" ||
		opts.ProviderType == vectorutils.ProviderFile ||
		opts.ProviderType == vectorutils.ProviderSQLite
	if local && opts.Target == "" {
		dir, err := ddm.IndexDir(configDir)
		if err != nil {
			return nil, err
		}
		opts.IndexDir = dir
	}

	persister, err := vectorutils.NewPersister(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("creating %s persister: %w", cfg.Storage.Provider, err)
	}

	if persister == nil {
		log.Info("using in-memory vector store")
	} else {
		log.Debug("using vector store", "provider", cfg.Storage.Provider)
	}
	return persister, nil
}

// NewEmbedder creates the configured embedder. OpenAI keys resolve from
// credentials.toml or OPENAI_API_KEY.
func NewEmbedder(cfg *config.Config, credMgr *credentials.Manager) (embeddings.Embedder, error) {
	opts := &embeddingutils.NewEmbedderOpts{
		ProviderType: strings.ToLower(cfg.Embedding.Provider),
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
		Timeout:      cfg.EmbeddingTimeout(),
	}

	if opts.ProviderType == embeddingutils.ProviderOpenAI {
		key := credMgr.Resolve("", "openai")
		if err := key.Err("embeddings"); err != nil {
			return nil, err
		}
		opts.APIKey = key.Key
	}

	embedder, err := embeddingutils.NewEmbedder(opts)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return embedder, nil
}

func newGenerator(cfg *config.Config, credMgr *credentials.Manager, mode GeneratorMode, log *slog.Logger) (answer.Generator, error) {
	if mode == GeneratorSkip {
		return nil, nil
	}

	temperature := float32(0)
	if cfg.Generation.Temperature != nil {
		temperature = float32(*cfg.Generation.Temperature)
	}

	gen, err := answer.NewGenerator(answer.GeneratorConfig{
		Provider:    cfg.Generation.Provider,
		Target:      cfg.Generation.Target,
		Model:       cfg.Generation.Model,
		Temperature: temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		Timeout:     cfg.GenerationTimeout(),
		CredMgr:     credMgr,
	})

	switch {
	case err != nil && mode == GeneratorRequired:
		return nil, err
	case err != nil:
		log.Warn("answer generation disabled", "error", err)
		return nil, nil
	case gen == nil && mode == GeneratorRequired:
		return nil, knowledge.ErrNoGenerator
	}
	return gen, nil
}

// NewPublisher creates the configured collection event publisher.
func NewPublisher(cfg *config.Config, log *slog.Logger) (eventstream.Publisher, error) {
	switch strings.ToLower(cfg.Events.Provider) {
	case "", EventsNone:
		return nop.NewPublisher(), nil
	case EventsKafka:
		return kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Events.Brokers,
			Topic:   cfg.Events.Topic,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", cfg.Events.Provider)
	}
}

func threshold(f *float64, fallback float32) float32 {
	if f == nil {
		return fallback
	}
	return float32(*f)
}

func overrides(in map[string]config.RetrievalOverride) map[string]knowledge.Retrieval {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]knowledge.Retrieval, len(in))
	for id, o := range in {
		r := knowledge.Retrieval{TopK: o.TopK}
		if o.SimilarityThreshold != nil {
			t := float32(*o.SimilarityThreshold)
			r.Threshold = &t
		}
		out[id] = r
	}
	return out
}
