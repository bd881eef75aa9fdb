package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/kbase/pkg/config"
	"github.com/papercomputeco/kbase/pkg/knowledge"
	"github.com/papercomputeco/kbase/pkg/logger"
)

// StorageFlags, EmbeddingFlags, RetrievalFlags, GenerationFlags and
// EventsFlags group registry keys by the part of the service they tune.
var (
	StorageFlags = []string{
		config.FlagStorageProvider,
		config.FlagStorageTarget,
	}
	EmbeddingFlags = []string{
		config.FlagEmbeddingProv,
		config.FlagEmbeddingTgt,
		config.FlagEmbeddingModel,
		config.FlagEmbeddingDims,
		config.FlagMaxChunkChars,
	}
	RetrievalFlags = []string{
		config.FlagTopK,
		config.FlagThreshold,
		config.FlagMaxContextChars,
	}
	GenerationFlags = []string{
		config.FlagGenerationProv,
		config.FlagGenerationTgt,
		config.FlagGenerationModel,
	}
	EventsFlags = []string{
		config.FlagEventsProvider,
		config.FlagEventsBrokers,
		config.FlagEventsTopic,
	}
)

// AddFlags registers the given config registry flags on cmd and returns
// their keys for Load. Values are read back through viper once bound, so the
// flag targets are throwaway.
func AddFlags(cmd *cobra.Command, groups ...[]string) []string {
	var keys []string
	for _, group := range groups {
		for _, key := range group {
			switch key {
			case config.FlagEmbeddingDims:
				config.AddUintFlag(cmd, config.Flags, key, new(uint))
			case config.FlagMaxChunkChars, config.FlagTopK, config.FlagMaxContextChars:
				config.AddIntFlag(cmd, config.Flags, key, new(int))
			case config.FlagThreshold:
				config.AddFloat64Flag(cmd, config.Flags, key, new(float64))
			default:
				config.AddStringFlag(cmd, config.Flags, key, new(string))
			}
			keys = append(keys, key)
		}
	}
	return keys
}

// Logging flags read by Setup when a command registers them.
const (
	FlagLogJSON = "log-json"
	FlagLogFile = "log-file"
)

// AddLogFlags registers --log-json and --log-file on cmd.
func AddLogFlags(cmd *cobra.Command) {
	cmd.Flags().Bool(FlagLogJSON, false, "Write logs to stderr as JSON")
	cmd.Flags().String(FlagLogFile, "", "Also append JSON logs to this file")
}

// Env is everything a command needs to talk to the knowledge base.
type Env struct {
	Config    *config.Config
	Logger    *slog.Logger
	Service   *knowledge.Service
	ConfigDir string

	closers []io.Closer
}

// Close releases the service and any log file.
func (e *Env) Close() error {
	var errs []error
	if e.Service != nil {
		errs = append(errs, e.Service.Close())
	}
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Setup loads configuration for cmd, creates the logger and builds a
// hydrated knowledge service.
func Setup(ctx context.Context, cmd *cobra.Command, flagKeys []string, mode GeneratorMode) (*Env, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	configDir, _ := cmd.Flags().GetString("config-dir")

	cfg, err := Load(cmd, flagKeys)
	if err != nil {
		return nil, err
	}

	jsonLogs, _ := cmd.Flags().GetBool(FlagLogJSON)
	logFile, _ := cmd.Flags().GetString(FlagLogFile)

	env := &Env{
		Config:    cfg,
		Logger:    NewLogger(debug, jsonLogs),
		ConfigDir: configDir,
	}

	if logFile != "" {
		fileLog, f, err := logger.OpenFile(logFile, logger.WithDebug(debug), logger.WithComponent(cmd.Name()))
		if err != nil {
			return nil, err
		}
		env.Logger = logger.Tee(env.Logger, fileLog)
		env.closers = append(env.closers, f)
	}

	env.Service, err = NewService(ctx, cfg, Options{ConfigDir: configDir, Generator: mode}, env.Logger)
	if err != nil {
		_ = env.Close()
		return nil, err
	}

	return env, nil
}
