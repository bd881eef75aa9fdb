package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/kbase/pkg/dotdir"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "KBASE"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the KBASE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (KBASE_EMBEDDING_PROVIDER, KBASE_API_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: KBASE_STORAGE_PROVIDER, KBASE_RETRIEVAL_TOP_K, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.target", d.Storage.Target)
	v.SetDefault("storage.timeout", d.Storage.Timeout)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.timeout", d.Embedding.Timeout)

	// Chunking
	v.SetDefault("chunking.max_chunk_chars", d.Chunking.MaxChunkChars)

	// Retrieval
	v.SetDefault("retrieval.top_k", d.Retrieval.TopK)
	v.SetDefault("retrieval.similarity_threshold", *d.Retrieval.SimilarityThreshold)
	v.SetDefault("retrieval.max_context_chars", d.Retrieval.MaxContextChars)
	v.SetDefault("retrieval.collections", d.Retrieval.Collections)

	// Generation
	v.SetDefault("generation.provider", d.Generation.Provider)
	v.SetDefault("generation.target", d.Generation.Target)
	v.SetDefault("generation.model", d.Generation.Model)
	v.SetDefault("generation.temperature", *d.Generation.Temperature)
	v.SetDefault("generation.max_tokens", d.Generation.MaxTokens)
	v.SetDefault("generation.timeout", d.Generation.Timeout)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}

// FromViper resolves the effective Config from v, honoring its
// flag > env > file > default precedence, and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	threshold := v.GetFloat64("retrieval.similarity_threshold")
	temperature := v.GetFloat64("generation.temperature")

	cfg := &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			Provider: v.GetString("storage.provider"),
			Target:   v.GetString("storage.target"),
			Timeout:  v.GetString("storage.timeout"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
			Timeout:    v.GetString("embedding.timeout"),
		},
		Chunking: ChunkingConfig{
			MaxChunkChars: v.GetInt("chunking.max_chunk_chars"),
		},
		Retrieval: RetrievalConfig{
			TopK:                v.GetInt("retrieval.top_k"),
			SimilarityThreshold: &threshold,
			MaxContextChars:     v.GetInt("retrieval.max_context_chars"),
			Collections:         stringList(v, "retrieval.collections"),
		},
		Generation: GenerationConfig{
			Provider:    v.GetString("generation.provider"),
			Target:      v.GetString("generation.target"),
			Model:       v.GetString("generation.model"),
			Temperature: &temperature,
			MaxTokens:   v.GetInt("generation.max_tokens"),
			Timeout:     v.GetString("generation.timeout"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  stringList(v, "events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
	}

	if v.IsSet("retrieval.overrides") {
		overrides := map[string]RetrievalOverride{}
		if err := v.UnmarshalKey("retrieval.overrides", &overrides); err != nil {
			return nil, fmt.Errorf("decoding retrieval.overrides: %w", err)
		}
		cfg.Retrieval.Overrides = overrides
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// stringList reads a list key. Environment variables and flags carry lists
// as comma separated strings, so every element is split again.
func stringList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		out = append(out, SplitList(item)...)
	}
	return out
}
