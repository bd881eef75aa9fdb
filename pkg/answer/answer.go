// Package answer provides the answer-generation collaborator: it turns an
// assembled context and a user question into a natural-language answer via
// a chat model.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrGeneration is returned when the chat model cannot produce an answer.
var ErrGeneration = errors.New("answer generation failed")

const (
	// DefaultTemperature keeps answers close to the retrieved text.
	DefaultTemperature = 0.2

	// DefaultMaxTokens caps the generated answer length.
	DefaultMaxTokens = 2000

	// DefaultTimeout bounds a single generation call.
	DefaultTimeout = 30 * time.Second
)

// DefaultPreamble is the fixed instruction sent as the system message.
const DefaultPreamble = `You are a document analysis assistant. You help the user understand the documents they have loaded.

Follow these rules:
1. Answer strictly from the provided document excerpts. Do not add facts the documents do not state.
2. If the excerpts do not contain enough information, say "The documents do not provide this information" and name what is missing.
3. Cite the document label (for example [file1]) that supports each part of your answer.
4. When asked who you are, say you are a document assistant for the loaded documents.
5. Questions outside the scope of the documents should be declined as out of scope.`

// Generator produces an answer for a prompt.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// Prompt is the input to a Generator.
type Prompt struct {
	// Preamble is the system instruction. Empty uses DefaultPreamble.
	Preamble string

	// Context is the assembled, labeled document context. It may be empty
	// when nothing relevant was retrieved.
	Context string

	// Question is the raw user query.
	Question string
}

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Messages renders p as the system, context and question messages sent to
// chat models.
func Messages(p Prompt) []Message {
	preamble := p.Preamble
	if preamble == "" {
		preamble = DefaultPreamble
	}

	excerpts := strings.TrimSpace(p.Context)
	if excerpts == "" {
		excerpts = "(no relevant excerpts were found)"
	}

	return []Message{
		{Role: "system", Content: preamble},
		{Role: "user", Content: "Document excerpts:\n\n" + excerpts + "\n\nEnd of document excerpts."},
		{Role: "user", Content: "Question: " + p.Question + "\n\nAnswer using only the document excerpts above."},
	}
}

// Func adapts a plain function to the Generator interface.
type Func func(ctx context.Context, p Prompt) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

// boundedCall runs call under timeout and tags failures with ErrGeneration.
func boundedCall(ctx context.Context, timeout time.Duration, call func(context.Context) (string, error)) (string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := call(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: empty response", ErrGeneration)
	}

	return out, nil
}
