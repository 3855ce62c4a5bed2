package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/astrodarshan/astro-engine/pkg/config"
)

func TestNewClient_OpenAIProvider(t *testing.T) {
	client, err := NewClient(config.LLMConfig{
		Provider: "openai",
		Endpoint: "https://api.openai.com/v1",
		Model:    "gpt-4o-mini",
		APIKey:   "test-key",
	}, zap.NewNop())

	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, client)
	assert.Equal(t, "gpt-4o-mini", client.Model())
}

func TestNewClient_DefaultsToOpenAI(t *testing.T) {
	client, err := NewClient(config.LLMConfig{
		Endpoint: "http://localhost:8000/v1",
		Model:    "local-model",
	}, zap.NewNop())

	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, client)
}

func TestNewClient_AnthropicProvider(t *testing.T) {
	client, err := NewClient(config.LLMConfig{
		Provider: "anthropic",
		Model:    "claude-sonnet-4-20250514",
		APIKey:   "test-key",
	}, zap.NewNop())

	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, client)
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(config.LLMConfig{
		Provider: "cohere",
		Model:    "command",
	}, zap.NewNop())

	assert.Error(t, err)
}

func TestNewOpenAIClient_RequiresModel(t *testing.T) {
	_, err := NewOpenAIClient(&Config{Endpoint: "http://x"}, zap.NewNop())
	assert.Error(t, err)
}
