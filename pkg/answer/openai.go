package answer

import (
	"context"
	"errors"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

// DeepSeekBaseURL is the OpenAI-compatible DeepSeek endpoint.
const DeepSeekBaseURL = "https://api.deepseek.com/v1"

// OpenAIConfig configures an OpenAIGenerator.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAIGenerator answers through an OpenAI-compatible chat completions API.
type OpenAIGenerator struct {
	client      *goopenai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

// NewOpenAIGenerator creates a generator for OpenAI or any compatible server
// such as DeepSeek.
func NewOpenAIGenerator(c OpenAIConfig) (*OpenAIGenerator, error) {
	if c.APIKey == "" {
		return nil, errors.New("API key is required")
	}
	if c.Model == "" {
		return nil, errors.New("model is required")
	}

	cfg := goopenai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}

	g := &OpenAIGenerator{
		client:      goopenai.NewClientWithConfig(cfg),
		model:       c.Model,
		temperature: c.Temperature,
		maxTokens:   c.MaxTokens,
		timeout:     c.Timeout,
	}
	if g.maxTokens <= 0 {
		g.maxTokens = DefaultMaxTokens
	}

	return g, nil
}

// Generate sends the prompt as a chat completion.
func (g *OpenAIGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	msgs := Messages(p)
	chat := make([]goopenai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		chat[i] = goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	return boundedCall(ctx, g.timeout, func(ctx context.Context) (string, error) {
		resp, err := g.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
			Model:       g.model,
			Messages:    chat,
			Temperature: g.temperature,
			MaxTokens:   g.maxTokens,
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("no choices in response")
		}
		return resp.Choices[0].Message.Content, nil
	})
}
