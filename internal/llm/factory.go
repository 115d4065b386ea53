package llm

import (
	"fmt"
	"time"

	"droidrun/internal/agent/ports"
)

// Provider identifies a supported completion backend.
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderDeepSeek Provider = "deepseek"
	ProviderOllama   Provider = "ollama"
)

// Config carries provider selection and connection settings.
type Config struct {
	Provider Provider
	Model    string
	BaseURL  string
	APIKey   string
	Vision   bool
	Timeout  time.Duration
}

// defaultBaseURL returns the conventional endpoint for known providers.
func defaultBaseURL(provider Provider) string {
	switch provider {
	case ProviderDeepSeek:
		return "https://api.deepseek.com/v1"
	case ProviderOllama:
		return "http://localhost:11434/v1"
	default:
		return "https://api.openai.com/v1"
	}
}

// New builds the provider client and wraps it with bounded retry.
// All supported providers speak the OpenAI chat completions format.
func New(config Config) (ports.LLMClient, error) {
	switch config.Provider {
	case ProviderOpenAI, ProviderDeepSeek, ProviderOllama, "":
	default:
		return nil, fmt.Errorf("unknown provider %q", config.Provider)
	}

	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL(config.Provider)
	}

	client, err := NewOpenAIClient(config)
	if err != nil {
		return nil, err
	}
	return NewRetryClient(client), nil
}
