// Package embeddings defines the text embedding capability used by kbase
// and helpers for embedding whole batches of text units.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/papercomputeco/kbase/pkg/vector"
)

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// BatchEmbedder is an Embedder that can embed many texts in one call.
// Implementations must return exactly one vector per input, in input order,
// numerically interchangeable with single-text Embed calls.
type BatchEmbedder interface {
	Embedder

	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedAll embeds every text with e, using a single batch call when e
// supports it.
//
// Any failure aborts the whole batch: nothing is returned for the texts that
// did succeed. The result always has len(texts) vectors of one shared,
// non-zero dimension, otherwise an error wrapping vector.ErrEmbedding is
// returned. An empty input returns an empty result without calling e.
func EmbedAll(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var (
		out [][]float32
		err error
	)

	if be, ok := e.(BatchEmbedder); ok {
		out, err = be.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, wrap(err)
		}
	} else {
		out = make([][]float32, 0, len(texts))
		for i, text := range texts {
			v, err := e.Embed(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("unit %d: %w", i, wrap(err))
			}
			out = append(out, v)
		}
	}

	if len(out) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", vector.ErrEmbedding, len(out), len(texts))
	}

	if _, err := vector.Dimension(out); err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrEmbedding, err)
	}

	return out, nil
}

// wrap tags err as an embedding failure unless it already is one.
func wrap(err error) error {
	if errors.Is(err, vector.ErrEmbedding) {
		return err
	}
	return fmt.Errorf("%w: %w", vector.ErrEmbedding, err)
}
