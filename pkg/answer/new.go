package answer

import (
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/kbase/pkg/credentials"
)

// Supported generation providers.
const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderOllama   = "ollama"
	ProviderNone     = "none"
)

// GeneratorConfig holds the settings for NewGenerator.
type GeneratorConfig struct {
	Provider    string
	Target      string
	Model       string
	APIKey      string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration

	// CredMgr is consulted for an API key when APIKey is empty.
	CredMgr *credentials.Manager
}

// NewGenerator creates a Generator for the configured provider.
// The "none" provider, or an empty one, returns a nil Generator and no error:
// retrieval still works, but asking questions is disabled.
//
// API keys resolve from the explicit key, then credentials.toml, then the
// provider's environment variable.
func NewGenerator(c GeneratorConfig) (Generator, error) {
	provider := strings.ToLower(c.Provider)

	switch provider {
	case "", ProviderNone:
		return nil, nil

	case ProviderOpenAI:
		model := c.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		key := c.CredMgr.Resolve(c.APIKey, ProviderOpenAI)
		if err := key.Err(""); err != nil {
			return nil, err
		}
		return NewOpenAIGenerator(OpenAIConfig{
			APIKey:      key.Key,
			BaseURL:     c.Target,
			Model:       model,
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
			Timeout:     c.Timeout,
		})

	case ProviderDeepSeek:
		model := c.Model
		if model == "" {
			model = "deepseek-chat"
		}
		baseURL := c.Target
		if baseURL == "" {
			baseURL = DeepSeekBaseURL
		}
		key := c.CredMgr.Resolve(c.APIKey, ProviderDeepSeek)
		if err := key.Err(""); err != nil {
			return nil, err
		}
		return NewOpenAIGenerator(OpenAIConfig{
			APIKey:      key.Key,
			BaseURL:     baseURL,
			Model:       model,
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
			Timeout:     c.Timeout,
		})

	case ProviderOllama:
		model := c.Model
		if model == "" {
			model = "llama3.2"
		}
		return NewOllamaGenerator(OllamaConfig{
			BaseURL:     c.Target,
			Model:       model,
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
			Timeout:     c.Timeout,
		})

	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", c.Provider)
	}
}
