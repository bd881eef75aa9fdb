package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate reports the first setting that cannot drive a running kbase.
func (c *Config) Validate() error {
	if c.Version != 0 && c.Version != CurrentV {
		return fmt.Errorf("unsupported config version %d (expected %d)", c.Version, CurrentV)
	}

	for key, raw := range map[string]string{
		"storage.timeout":    c.Storage.Timeout,
		"embedding.timeout":  c.Embedding.Timeout,
		"generation.timeout": c.Generation.Timeout,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}

	if c.Chunking.MaxChunkChars < 0 {
		return errors.New("chunking.max_chunk_chars must not be negative")
	}
	if c.Retrieval.TopK < 0 {
		return errors.New("retrieval.top_k must not be negative")
	}
	if err := checkThreshold("retrieval.similarity_threshold", c.Retrieval.SimilarityThreshold); err != nil {
		return err
	}
	for id, o := range c.Retrieval.Overrides {
		if o.TopK < 0 {
			return fmt.Errorf("retrieval.overrides.%s.top_k must not be negative", id)
		}
		if err := checkThreshold("retrieval.overrides."+id+".similarity_threshold", o.SimilarityThreshold); err != nil {
			return err
		}
	}
	if c.Generation.MaxTokens < 0 {
		return errors.New("generation.max_tokens must not be negative")
	}

	return nil
}

func checkThreshold(key string, f *float64) error {
	if f == nil {
		return nil
	}
	if *f < -1 || *f > 1 {
		return fmt.Errorf("%s must be within [-1, 1], got %v", key, *f)
	}
	return nil
}

// StorageTimeout returns storage.timeout, or zero when unset.
func (c *Config) StorageTimeout() time.Duration {
	return parseDuration(c.Storage.Timeout)
}

// EmbeddingTimeout returns embedding.timeout, or zero when unset.
func (c *Config) EmbeddingTimeout() time.Duration {
	return parseDuration(c.Embedding.Timeout)
}

// GenerationTimeout returns generation.timeout, or zero when unset.
func (c *Config) GenerationTimeout() time.Duration {
	return parseDuration(c.Generation.Timeout)
}

// parseDuration assumes Validate has already accepted s.
func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
