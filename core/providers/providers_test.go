package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicConfigValidate(t *testing.T) {
	cfg := DefaultAnthropicConfig()
	assert.Error(t, cfg.Validate(), "missing api key must be rejected")

	cfg.APIKey = "sk-test"
	assert.NoError(t, cfg.Validate())

	cfg.Model = ""
	assert.Error(t, cfg.Validate())
}

func TestOpenAIConfigValidate(t *testing.T) {
	cfg := DefaultOpenAIConfig()
	assert.Error(t, cfg.Validate(), "missing api key must be rejected")

	cfg.APIKey = "sk-test"
	assert.NoError(t, cfg.Validate())
}

func TestNewAnthropicInvokerAppliesDefaults(t *testing.T) {
	inv, err := NewAnthropicInvoker(AnthropicConfig{APIKey: "sk-test"})
	require.NoError(t, err)

	assert.Equal(t, "anthropic", inv.Name())
	assert.Equal(t, DefaultAnthropicConfig().Model, inv.config.Model)
	assert.Equal(t, DefaultAnthropicConfig().MaxTokens, inv.config.MaxTokens)
}

func TestNewAnthropicInvokerRequiresKey(t *testing.T) {
	_, err := NewAnthropicInvoker(AnthropicConfig{})
	assert.Error(t, err)
}

func TestNewOpenAIInvokerAppliesDefaults(t *testing.T) {
	inv, err := NewOpenAIInvoker(OpenAIConfig{APIKey: "sk-test"})
	require.NoError(t, err)

	assert.Equal(t, "openai", inv.Name())
	assert.Equal(t, DefaultOpenAIConfig().Model, inv.config.Model)
}

func TestRegistryRoundTrip(t *testing.T) {
	registry := NewRegistry()

	inv, err := NewAnthropicInvoker(AnthropicConfig{APIKey: "sk-test"})
	require.NoError(t, err)
	registry.Register(inv)

	got, err := registry.Get("anthropic")
	require.NoError(t, err)
	assert.Equal(t, inv, got)

	_, err = registry.Get("missing")
	assert.Error(t, err)

	assert.Equal(t, []string{"anthropic"}, registry.Names())
}

func TestRetryAfterOf(t *testing.T) {
	assert.Equal(t, 30*time.Second, retryAfterOf("30"))
	assert.Equal(t, time.Duration(0), retryAfterOf(""))
	assert.Equal(t, time.Duration(0), retryAfterOf("soon"))
	assert.Equal(t, time.Duration(0), retryAfterOf("-5"))
}

func TestAnthropicClassifyTimeout(t *testing.T) {
	inv, err := NewAnthropicInvoker(AnthropicConfig{APIKey: "sk-test"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	classified := inv.classifyError(context.Canceled, ctx)
	assert.Contains(t, classified.Error(), "timeout")
}

func TestExtractRequiredFields(t *testing.T) {
	params := map[string]any{
		"required": []any{"value", "confidence", 42},
	}
	assert.Equal(t, []string{"value", "confidence"}, extractRequiredFields(params))
	assert.Nil(t, extractRequiredFields(map[string]any{}))
}
