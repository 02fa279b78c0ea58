package providers

import (
	"fmt"
)

// AnthropicConfig configures the Anthropic adapter.
type AnthropicConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	BaseURL   string `yaml:"base_url"`
}

// DefaultAnthropicConfig returns the default Anthropic configuration.
func DefaultAnthropicConfig() AnthropicConfig {
	return AnthropicConfig{
		Model:     "claude-sonnet-4-5-20250901",
		MaxTokens: 4096,
	}
}

// Validate checks the configuration is usable.
func (c AnthropicConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("anthropic: api key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("anthropic: model is required")
	}
	return nil
}

// OpenAIConfig configures the OpenAI adapter.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	MaxTokens    int    `yaml:"max_tokens"`
	BaseURL      string `yaml:"base_url"`
	Organization string `yaml:"organization"`
}

// DefaultOpenAIConfig returns the default OpenAI configuration.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:     "gpt-4o",
		MaxTokens: 4096,
	}
}

// Validate checks the configuration is usable.
func (c OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("openai: api key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("openai: model is required")
	}
	return nil
}
