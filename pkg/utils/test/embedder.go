package testutils

import (
	"context"
	"fmt"
	"sync/atomic"
)

// MockEmbedder is a test embedder that returns predictable embeddings.
// It implements both embeddings.Embedder and embeddings.BatchEmbedder and is
// safe for concurrent use as long as its fields are not modified.
type MockEmbedder struct {
	Embeddings map[string][]float32

	// Default is returned for any text not present in Embeddings.
	Default []float32

	// FailOn causes Embed and EmbedBatch to return an error when an input
	// text matches.
	FailOn string

	calls      atomic.Int64
	batchCalls atomic.Int64
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
		Default:    []float32{0.1, 0.2, 0.3},
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	return m.lookup(text)
}

func (m *MockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := m.lookup(t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (m *MockEmbedder) lookup(text string) ([]float32, error) {
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return append([]float32(nil), emb...), nil
	}

	return append([]float32(nil), m.Default...), nil
}

// Calls returns the number of single-text Embed calls.
func (m *MockEmbedder) Calls() int64 {
	return m.calls.Load()
}

// BatchCalls returns the number of EmbedBatch calls.
func (m *MockEmbedder) BatchCalls() int64 {
	return m.batchCalls.Load()
}

func (m *MockEmbedder) Close() error {
	return nil
}
