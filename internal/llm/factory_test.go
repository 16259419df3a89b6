package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/padi/internal/config"
)

func TestNewClient_None(t *testing.T) {
	for _, p := range []string{"", "none", " NONE "} {
		c, err := NewClient(context.Background(), config.LLMConfig{Provider: p}, nil)
		require.NoError(t, err)
		assert.Nil(t, c)
	}
}

func TestNewClient_Providers(t *testing.T) {
	c, err := NewClient(context.Background(), config.LLMConfig{Provider: "OpenAI", APIKey: "sk-test", Model: "gpt-4o-mini"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", ProviderName(c))

	c, err = NewClient(context.Background(), config.LLMConfig{Provider: "claude", APIKey: "key", Model: "claude-3-5-haiku-latest"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "claude", ProviderName(c))
}

func TestNewClient_Ollama(t *testing.T) {
	c, err := NewClient(context.Background(), config.LLMConfig{Provider: "ollama", BaseURL: "http://ollama:11434/", Model: "llama3"}, nil)
	require.NoError(t, err)

	oc, ok := c.(*OpenAIClient)
	require.True(t, ok)
	assert.Equal(t, "ollama", oc.Provider())
}

func TestNewClient_Errors(t *testing.T) {
	_, err := NewClient(context.Background(), config.LLMConfig{Provider: "openai"}, nil)
	assert.ErrorContains(t, err, "api key")

	_, err = NewClient(context.Background(), config.LLMConfig{Provider: "bard"}, nil)
	assert.EqualError(t, err, "unsupported llm provider: bard")
}

type anonymous struct{}

func (anonymous) Generate(ctx context.Context, prompt string) (string, error) { return "", nil }

func TestProviderName_Unknown(t *testing.T) {
	assert.Equal(t, "unknown", ProviderName(anonymous{}))
}
