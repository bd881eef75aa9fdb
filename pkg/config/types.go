package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent kbase configuration stored as config.toml
// in the .kbase/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version    int              `toml:"version"`
	Storage    StorageConfig    `toml:"storage"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Chunking   ChunkingConfig   `toml:"chunking"`
	Retrieval  RetrievalConfig  `toml:"retrieval"`
	Generation GenerationConfig `toml:"generation"`
	API        APIConfig        `toml:"api"`
	Events     EventsConfig     `toml:"events"`
}

// StorageConfig selects the persister that backs the vector store.
type StorageConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Timeout  string `toml:"timeout,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
	Timeout    string `toml:"timeout,omitempty"`
}

// ChunkingConfig holds document segmentation settings.
type ChunkingConfig struct {
	MaxChunkChars int `toml:"max_chunk_chars,omitempty"`
}

// RetrievalConfig holds the retrieval and context assembly settings.
// Overrides are keyed by collection id and only settable in the file.
type RetrievalConfig struct {
	TopK                int                          `toml:"top_k,omitempty"`
	SimilarityThreshold *float64                     `toml:"similarity_threshold,omitempty"`
	MaxContextChars     int                          `toml:"max_context_chars,omitempty"`
	Collections         []string                     `toml:"collections,omitempty"`
	Overrides           map[string]RetrievalOverride `toml:"overrides,omitempty"`
}

// RetrievalOverride replaces top_k and/or similarity_threshold for one collection.
type RetrievalOverride struct {
	TopK                int      `toml:"top_k,omitempty" mapstructure:"top_k"`
	SimilarityThreshold *float64 `toml:"similarity_threshold,omitempty" mapstructure:"similarity_threshold"`
}

// GenerationConfig holds answer generation settings.
type GenerationConfig struct {
	Provider    string   `toml:"provider,omitempty"`
	Target      string   `toml:"target,omitempty"`
	Model       string   `toml:"model,omitempty"`
	Temperature *float64 `toml:"temperature,omitempty"`
	MaxTokens   int      `toml:"max_tokens,omitempty"`
	Timeout     string   `toml:"timeout,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventsConfig selects where collection events are published.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error { c.Storage.Provider = v; return nil },
	},
	"storage.target": {
		get: func(c *Config) string { return c.Storage.Target },
		set: func(c *Config, v string) error { c.Storage.Target = v; return nil },
	},
	"storage.timeout": {
		get: func(c *Config) string { return c.Storage.Timeout },
		set: durationSetter("storage.timeout", func(c *Config) *string { return &c.Storage.Timeout }),
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"embedding.timeout": {
		get: func(c *Config) string { return c.Embedding.Timeout },
		set: durationSetter("embedding.timeout", func(c *Config) *string { return &c.Embedding.Timeout }),
	},
	"chunking.max_chunk_chars": {
		get: func(c *Config) string { return formatInt(c.Chunking.MaxChunkChars) },
		set: positiveIntSetter("chunking.max_chunk_chars", func(c *Config) *int { return &c.Chunking.MaxChunkChars }),
	},
	"retrieval.top_k": {
		get: func(c *Config) string { return formatInt(c.Retrieval.TopK) },
		set: positiveIntSetter("retrieval.top_k", func(c *Config) *int { return &c.Retrieval.TopK }),
	},
	"retrieval.similarity_threshold": {
		get: func(c *Config) string { return formatFloat(c.Retrieval.SimilarityThreshold) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.similarity_threshold: %w", err)
			}
			if f < -1 || f > 1 {
				return fmt.Errorf("invalid value for retrieval.similarity_threshold: %v is outside [-1, 1]", f)
			}
			c.Retrieval.SimilarityThreshold = &f
			return nil
		},
	},
	"retrieval.max_context_chars": {
		get: func(c *Config) string { return formatInt(c.Retrieval.MaxContextChars) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.max_context_chars: %w", err)
			}
			c.Retrieval.MaxContextChars = n
			return nil
		},
	},
	"retrieval.collections": {
		get: func(c *Config) string { return strings.Join(c.Retrieval.Collections, ",") },
		set: func(c *Config, v string) error {
			ids := SplitList(v)
			if len(ids) == 0 {
				return fmt.Errorf("invalid value for retrieval.collections: at least one collection is required")
			}
			c.Retrieval.Collections = ids
			return nil
		},
	},
	"generation.provider": {
		get: func(c *Config) string { return c.Generation.Provider },
		set: func(c *Config, v string) error { c.Generation.Provider = v; return nil },
	},
	"generation.target": {
		get: func(c *Config) string { return c.Generation.Target },
		set: func(c *Config, v string) error { c.Generation.Target = v; return nil },
	},
	"generation.model": {
		get: func(c *Config) string { return c.Generation.Model },
		set: func(c *Config, v string) error { c.Generation.Model = v; return nil },
	},
	"generation.temperature": {
		get: func(c *Config) string { return formatFloat(c.Generation.Temperature) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for generation.temperature: %w", err)
			}
			c.Generation.Temperature = &f
			return nil
		},
	},
	"generation.max_tokens": {
		get: func(c *Config) string { return formatInt(c.Generation.MaxTokens) },
		set: positiveIntSetter("generation.max_tokens", func(c *Config) *int { return &c.Generation.MaxTokens }),
	},
	"generation.timeout": {
		get: func(c *Config) string { return c.Generation.Timeout },
		set: durationSetter("generation.timeout", func(c *Config) *string { return &c.Generation.Timeout }),
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error { c.Events.Brokers = SplitList(v); return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}

func durationSetter(key string, field func(c *Config) *string) func(c *Config, v string) error {
	return func(c *Config, v string) error {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		*field(c) = v
		return nil
	}
}

func positiveIntSetter(key string, field func(c *Config) *int) func(c *Config, v string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		if n <= 0 {
			return fmt.Errorf("invalid value for %s: must be positive", key)
		}
		*field(c) = n
		return nil
	}
}

func formatInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}

// SplitList splits a comma separated list, trimming whitespace and
// dropping empty entries.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
