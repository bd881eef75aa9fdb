// Package openai implements an embeddings.BatchEmbedder for OpenAI and
// OpenAI-compatible embedding endpoints.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/papercomputeco/kbase/pkg/embeddings"
	"github.com/papercomputeco/kbase/pkg/vector"
)

const (
	// DefaultEmbeddingModel is the default OpenAI embedding model.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultBatchSize is the maximum number of inputs sent per request.
	DefaultBatchSize = 256

	// DefaultRequestsPerSecond throttles outgoing requests.
	DefaultRequestsPerSecond = 5

	// DefaultTimeout bounds a single embed request.
	DefaultTimeout = 60 * time.Second
)

// EmbedderConfig holds configuration for the OpenAI embedder.
type EmbedderConfig struct {
	// APIKey authenticates requests. Required.
	APIKey string

	// BaseURL overrides the API base URL for OpenAI-compatible servers.
	BaseURL string

	// Model is the embedding model. Defaults to DefaultEmbeddingModel.
	Model string

	// Dimensions requests shortened embeddings from models that support it.
	// Zero keeps the model's native size.
	Dimensions int

	// BatchSize caps inputs per request. Defaults to DefaultBatchSize.
	BatchSize int

	// RequestsPerSecond limits the request rate. Defaults to
	// DefaultRequestsPerSecond.
	RequestsPerSecond float64

	// Timeout bounds each HTTP request. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Embedder wraps the OpenAI embeddings API.
type Embedder struct {
	client     *goopenai.Client
	model      string
	dimensions int
	batchSize  int
	limiter    *rate.Limiter
}

// NewEmbedder creates a new OpenAI embedder.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}

	return &Embedder{
		client:     goopenai.NewClientWithConfig(clientCfg),
		model:      model,
		dimensions: cfg.Dimensions,
		batchSize:  batchSize,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in requests of at most BatchSize inputs.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))

		part, err := e.embedRequest(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, part...)
	}

	return out, nil
}

func (e *Embedder) embedRequest(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: waiting for rate limiter: %v", vector.ErrEmbedding, err)
	}

	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Model:      goopenai.EmbeddingModel(e.model),
		Input:      texts,
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai request: %v", vector.ErrEmbedding, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: openai returned %d embeddings for %d inputs",
			vector.ErrEmbedding, len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		v := make([]float32, len(d.Embedding))
		for j := range d.Embedding {
			v[j] = float32(d.Embedding[j])
		}
		out[i] = v
	}

	return out, nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.BatchEmbedder = (*Embedder)(nil)
