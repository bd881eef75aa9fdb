package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/kbase/pkg/answer"
)

// MockGenerator records prompts and returns a fixed answer.
type MockGenerator struct {
	Answer string
	Err    error

	mu      sync.Mutex
	prompts []answer.Prompt
}

func NewMockGenerator(reply string) *MockGenerator {
	return &MockGenerator{Answer: reply}
}

// Generate implements answer.Generator.
func (m *MockGenerator) Generate(_ context.Context, p answer.Prompt) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, p)
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	if m.Answer == "" {
		return "", errors.New("mock generator has no answer")
	}
	return m.Answer, nil
}

// Prompts returns a copy of every prompt received.
func (m *MockGenerator) Prompts() []answer.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]answer.Prompt, len(m.prompts))
	copy(out, m.prompts)
	return out
}
