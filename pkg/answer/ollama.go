package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaConfig configures an OllamaGenerator.
type OllamaConfig struct {
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// OllamaGenerator answers through Ollama's /api/chat endpoint.
type OllamaGenerator struct {
	baseURL     string
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	httpClient  *http.Client
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error"`
}

// NewOllamaGenerator creates a generator backed by a local Ollama server.
func NewOllamaGenerator(c OllamaConfig) (*OllamaGenerator, error) {
	if c.Model == "" {
		return nil, errors.New("model is required")
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &OllamaGenerator{
		baseURL:     baseURL,
		model:       c.Model,
		temperature: c.Temperature,
		maxTokens:   maxTokens,
		timeout:     c.Timeout,
		httpClient:  &http.Client{},
	}, nil
}

// Generate sends the prompt as a non-streaming chat request.
func (g *OllamaGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	request := ollamaChatRequest{
		Model:    g.model,
		Messages: Messages(p),
		Stream:   false,
		Options: map[string]any{
			"temperature": g.temperature,
			"num_predict": g.maxTokens,
		},
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("%w: marshal ollama request: %v", ErrGeneration, err)
	}

	return boundedCall(ctx, g.timeout, func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/chat", bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("create ollama request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("send ollama request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return "", fmt.Errorf("ollama status %d: %s", resp.StatusCode, string(body))
		}

		var response ollamaChatResponse
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return "", fmt.Errorf("decode ollama response: %w", err)
		}
		if response.Error != "" {
			return "", fmt.Errorf("ollama error: %s", response.Error)
		}

		return response.Message.Content, nil
	})
}
