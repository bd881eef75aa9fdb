// Package hashing implements a deterministic, dependency-free embedder based
// on feature hashing. It needs no model server, which makes it suitable for
// offline use and tests. Its vectors capture lexical overlap only.
package hashing

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/papercomputeco/kbase/pkg/embeddings"
)

// DefaultDimensions is the vector size used when none is configured.
const DefaultDimensions = 256

// Embedder hashes word tokens (and runes plus rune bigrams for scripts
// written without spaces) into a fixed number of signed buckets, then
// L2-normalises the result.
type Embedder struct {
	dimensions int
}

// NewEmbedder creates a hashing embedder producing vectors of the given
// dimension.
func NewEmbedder(dimensions int) (*Embedder, error) {
	if dimensions < 0 {
		return nil, errors.New("hashing embedder dimensions must not be negative")
	}
	if dimensions == 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: dimensions}, nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Embed converts text into a vector embedding. Text without any token
// embeds to the zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

// EmbedBatch embeds every text independently, so batch and single results
// are identical.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *Embedder) embed(text string) []float32 {
	acc := make([]float64, e.dimensions)
	for _, tok := range tokens(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()

		idx := sum % uint64(e.dimensions)
		if sum>>63 == 1 {
			acc[idx]--
		} else {
			acc[idx]++
		}
	}

	var norm float64
	for _, x := range acc {
		norm += x * x
	}
	norm = math.Sqrt(norm)

	out := make([]float32, e.dimensions)
	if norm == 0 {
		return out
	}
	for i, x := range acc {
		out[i] = float32(x / norm)
	}
	return out
}

// tokens splits text into lower-cased word tokens. Han, Hiragana, Katakana
// and Hangul runes are emitted one by one together with their bigrams.
func tokens(text string) []string {
	var (
		out  []string
		word strings.Builder
		prev rune
	)

	flushWord := func() {
		if word.Len() > 0 {
			out = append(out, word.String())
			word.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case isIdeographic(r):
			flushWord()
			out = append(out, string(r))
			if prev != 0 {
				out = append(out, string([]rune{prev, r}))
			}
			prev = r
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flushWord()
		}
		prev = 0
	}
	flushWord()

	return out
}

func isIdeographic(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.BatchEmbedder = (*Embedder)(nil)
